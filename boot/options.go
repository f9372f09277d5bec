package boot

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/wnxd/xspiboot/image"
	"github.com/wnxd/xspiboot/layout"
	"github.com/wnxd/xspiboot/loader"
	"github.com/wnxd/xspiboot/region"
)

const DefaultBlinkPeriod = 500 * time.Millisecond

type config struct {
	regions     region.Map
	exclusion   []region.Range
	logger      *slog.Logger
	indicator   Indicator
	interrupts  Interrupts
	chunkSize   int
	blinkPeriod time.Duration
	sleep       func(context.Context, time.Duration)
	progress    func(image.Segment)
}

func defaultConfig() config {
	return config{
		regions:     layout.Selected(),
		exclusion:   layout.Exclusion(),
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		indicator:   nopIndicator{},
		interrupts:  nopInterrupts{},
		chunkSize:   loader.DefaultChunkSize,
		blinkPeriod: DefaultBlinkPeriod,
		sleep:       sleep,
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

type Option func(*config)

// WithRegionMap replaces the compiled-in map.
func WithRegionMap(m region.Map) Option {
	return func(c *config) {
		if m.Len() > 0 {
			c.regions = m
		}
	}
}

// WithExclusion replaces the bootloader footprint. No arguments means no
// exclusion at all.
func WithExclusion(ranges ...region.Range) Option {
	return func(c *config) {
		c.exclusion = ranges
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithIndicator(ind Indicator) Option {
	return func(c *config) {
		if ind != nil {
			c.indicator = ind
		}
	}
}

func WithInterrupts(irq Interrupts) Option {
	return func(c *config) {
		if irq != nil {
			c.interrupts = irq
		}
	}
}

func WithChunkSize(n int) Option {
	return func(c *config) {
		c.chunkSize = n
	}
}

func WithBlinkPeriod(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.blinkPeriod = d
		}
	}
}

// WithSleep replaces the wait between blinks. fn should return early when
// ctx is done.
func WithSleep(fn func(context.Context, time.Duration)) Option {
	return func(c *config) {
		if fn != nil {
			c.sleep = fn
		}
	}
}

// WithProgress is passed on to the loader.
func WithProgress(fn func(image.Segment)) Option {
	return func(c *config) {
		c.progress = fn
	}
}
