package loader

import (
	"io"
	"log/slog"

	"github.com/wnxd/xspiboot/image"
)

const (
	DefaultChunkSize = 512
	MinChunkSize     = 16
	MaxChunkSize     = 4096
)

type config struct {
	chunkSize int
	progress  func(image.Segment)
	logger    *slog.Logger
}

func defaultConfig() config {
	return config{
		chunkSize: DefaultChunkSize,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

type Option func(*config)

// WithChunkSize sets the scratch buffer size. Values outside
// MinChunkSize..MaxChunkSize are ignored.
func WithChunkSize(n int) Option {
	return func(c *config) {
		if n >= MinChunkSize && n <= MaxChunkSize {
			c.chunkSize = n
		}
	}
}

// WithProgress registers fn to be called after each segment is in place.
func WithProgress(fn func(image.Segment)) Option {
	return func(c *config) {
		c.progress = fn
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}
