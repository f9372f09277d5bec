// Package store gives byte-addressable, read-only access to the external
// flash holding the candidate image.
package store

import (
	"errors"
	"fmt"
	"io"
)

var (
	ErrOutOfRange = errors.New("read out of range")
	ErrRead       = errors.New("flash read failed")
)

// Store is a read-only view of flash. Offsets are relative to the start of
// the store. ReadAt either fills p completely or returns an error.
type Store interface {
	io.ReaderAt
	Size() int64
}

func checkRange(off int64, n int, size int64) error {
	if off < 0 || n < 0 || off > size || int64(n) > size-off {
		return fmt.Errorf("%w: offset %#x length %#x size %#x", ErrOutOfRange, off, n, size)
	}
	return nil
}

// Bytes is flash that is addressable as ordinary memory: the XSPI window in
// memory-mapped mode on target, a fixture on the host.
type Bytes []byte

func (b Bytes) Size() int64 {
	return int64(len(b))
}

func (b Bytes) ReadAt(p []byte, off int64) (int, error) {
	if err := checkRange(off, len(p), b.Size()); err != nil {
		return 0, err
	}
	return copy(p, b[off:]), nil
}

// Window restricts s to size bytes starting at off, the image region inside
// a larger flash.
func Window(s Store, off, size int64) (Store, error) {
	if err := checkRange(off, 0, s.Size()); err != nil {
		return nil, err
	}
	if size <= 0 || size > s.Size()-off {
		size = s.Size() - off
	}
	return window{io.NewSectionReader(s, off, size)}, nil
}

type window struct {
	*io.SectionReader
}

func (w window) ReadAt(p []byte, off int64) (int, error) {
	if err := checkRange(off, len(p), w.Size()); err != nil {
		return 0, err
	}
	return w.SectionReader.ReadAt(p, off)
}
