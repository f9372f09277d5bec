package store

import (
	"fmt"
	"math"
)

// Device is a flash chip driven by read commands rather than mapped into
// the address space.
type Device interface {
	ReadMemory(addr uint32, p []byte) error
}

// Flash adapts a command-driven Device to a Store. Unlike Bytes, a read can
// fail at the device; the failure is reported as ErrRead.
type Flash struct {
	dev  Device
	size int64
}

func NewFlash(dev Device, size int64) *Flash {
	if dev == nil {
		panic("device cannot be nil")
	}
	if size <= 0 || size > math.MaxUint32+1 {
		panic("flash size out of range")
	}
	return &Flash{dev: dev, size: size}
}

func (f *Flash) Size() int64 {
	return f.size
}

func (f *Flash) ReadAt(p []byte, off int64) (int, error) {
	if err := checkRange(off, len(p), f.size); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	if err := f.dev.ReadMemory(uint32(off), p); err != nil {
		return 0, fmt.Errorf("%w at %#x: %w", ErrRead, off, err)
	}
	return len(p), nil
}
