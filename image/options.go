package image

import (
	"debug/elf"
	"io"
	"log/slog"

	"github.com/wnxd/xspiboot/region"
)

const (
	// EABI version 5, the ABI produced by arm-none-eabi toolchains and
	// thumbv7em targets.
	EF_ARM_EABIMASK  = 0xFF00_0000
	EF_ARM_EABI_VER5 = 0x0500_0000

	DefaultMaxSegments = 16
)

type config struct {
	machine     elf.Machine
	flagsMask   uint32
	flags       uint32
	maxSegments int
	exclusion   []region.Range
	logger      *slog.Logger
}

func defaultConfig() config {
	return config{
		machine:     elf.EM_ARM,
		flagsMask:   EF_ARM_EABIMASK,
		flags:       EF_ARM_EABI_VER5,
		maxSegments: DefaultMaxSegments,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

type Option func(*config)

// WithMachine sets the expected e_machine and the e_flags bits that must
// match under mask. A zero mask accepts any flags.
func WithMachine(machine elf.Machine, mask, flags uint32) Option {
	return func(c *config) {
		c.machine = machine
		c.flagsMask = mask
		c.flags = flags & mask
	}
}

// WithExclusion adds address ranges no segment may touch, normally the
// bootloader's own code, data and stack.
func WithExclusion(ranges ...region.Range) Option {
	return func(c *config) {
		c.exclusion = append(c.exclusion, ranges...)
	}
}

func WithMaxSegments(n int) Option {
	return func(c *config) {
		if n > 0 && n <= 64 {
			c.maxSegments = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}
