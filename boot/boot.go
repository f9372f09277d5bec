// Package boot runs the boot sequence: validate the image in flash, load
// it, hand over. Any failure leaves the device in a safe halt with the
// indicator blinking and the debug port usable.
package boot

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/wnxd/xspiboot/image"
	"github.com/wnxd/xspiboot/launch"
	"github.com/wnxd/xspiboot/loader"
	"github.com/wnxd/xspiboot/store"
)

type Bootloader struct {
	store    store.Store
	ram      io.WriterAt
	launcher launch.Launcher
	cfg      config
	state    State
	masked   bool
}

func New(s store.Store, ram io.WriterAt, launcher launch.Launcher, opts ...Option) *Bootloader {
	if s == nil || ram == nil || launcher == nil {
		panic("store, ram and launcher are required")
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Bootloader{store: s, ram: ram, launcher: launcher, cfg: cfg}
}

func (b *Bootloader) State() State {
	return b.state
}

// Run boots the image. It only returns once the launcher returns, which
// real hardware never does, or after a failure once ctx is done. In the
// latter case the boot error is returned.
func (b *Bootloader) Run(ctx context.Context) error {
	b.setState(StateIdle)
	err := b.boot()
	if err == nil {
		return nil
	}
	b.halt(ctx, err)
	return err
}

func (b *Bootloader) boot() error {
	logger := b.cfg.logger
	logger.Info("validating image", "size", b.store.Size(), "regions", b.cfg.regions.Len())
	img, err := image.Validate(b.store, b.cfg.regions,
		image.WithExclusion(b.cfg.exclusion...),
		image.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	b.cfg.interrupts.Disable()
	b.masked = true
	l := loader.New(b.ram,
		loader.WithChunkSize(b.cfg.chunkSize),
		loader.WithProgress(b.cfg.progress),
		loader.WithLogger(logger),
	)
	if err := l.Load(b.store, img.Segments); err != nil {
		return err
	}

	b.setState(StateLaunching)
	logger.Info("booting",
		"entry", fmt.Sprintf("0x%08X", img.Launch.Entry),
		"sp", fmt.Sprintf("0x%08X", img.Launch.StackTop),
		"vtor", fmt.Sprintf("0x%08X", img.Launch.VectorTable),
	)
	b.launcher.Launch(img.Launch)
	return nil
}

func (b *Bootloader) halt(ctx context.Context, err error) {
	if b.masked {
		b.cfg.interrupts.Enable()
		b.masked = false
	}
	b.setState(StateSafeHalt)
	b.cfg.logger.Error(reason(err), "error", err)
	for ctx.Err() == nil {
		b.cfg.indicator.Toggle()
		b.cfg.sleep(ctx, b.cfg.blinkPeriod)
	}
}

func reason(err error) string {
	switch {
	case errors.Is(err, image.ErrBadHeader):
		return "no bootable image"
	case errors.Is(err, image.ErrBadSegment):
		return "malformed segment table"
	case errors.Is(err, image.ErrRegionViolation):
		return "segment outside loadable memory"
	case errors.Is(err, image.ErrOverlap):
		return "overlapping segments"
	case errors.Is(err, image.ErrBadEntry):
		return "invalid entry point"
	case errors.Is(err, loader.ErrCopyFailure):
		return "copy to ram failed"
	}
	return "boot failed"
}

func (b *Bootloader) setState(s State) {
	b.cfg.logger.Debug("state", "from", b.state, "to", s)
	b.state = s
	b.cfg.indicator.Signal(s)
}
