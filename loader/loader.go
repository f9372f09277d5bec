// Package loader places validated segments into target RAM.
package loader

import (
	"fmt"
	"io"

	"github.com/wnxd/xspiboot/image"
	"github.com/wnxd/xspiboot/store"
)

// Loader streams segments through one fixed scratch buffer. It allocates
// nothing after New.
type Loader struct {
	ram io.WriterAt
	buf []byte
	cfg config
}

// New returns a loader writing to ram, whose offsets are absolute target
// addresses.
func New(ram io.WriterAt, opts ...Option) *Loader {
	if ram == nil {
		panic("ram cannot be nil")
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Loader{ram: ram, buf: make([]byte, cfg.chunkSize), cfg: cfg}
}

// Load places segments in declaration order. Segments must come from a
// validated image; Load does not check them against the region map. The
// first failing read or write stops the load.
func (l *Loader) Load(s store.Store, segments []image.Segment) error {
	for _, seg := range segments {
		var err error
		switch seg.Fill {
		case image.FILL_COPY:
			err = l.copy(s, seg)
		case image.FILL_ZERO:
			err = l.zero(seg)
		default:
			err = &CopyFailure{Index: seg.Index, Addr: seg.Addr, Err: fmt.Errorf("unknown fill mode %v", seg.Fill)}
		}
		if err != nil {
			l.cfg.logger.Debug("load failed", "segment", seg.String(), "error", err)
			return err
		}
		l.cfg.logger.Debug("loaded", "segment", seg.String())
		if l.cfg.progress != nil {
			l.cfg.progress(seg)
		}
	}
	return nil
}

func (l *Loader) copy(s store.Store, seg image.Segment) error {
	for done := uint64(0); done < seg.Size; {
		chunk := l.buf[:min(uint64(len(l.buf)), seg.Size-done)]
		if _, err := s.ReadAt(chunk, int64(seg.Offset+done)); err != nil {
			return &CopyFailure{Index: seg.Index, Addr: seg.Addr + done, Err: err}
		}
		if _, err := l.ram.WriteAt(chunk, int64(seg.Addr+done)); err != nil {
			return &CopyFailure{Index: seg.Index, Addr: seg.Addr + done, Err: err}
		}
		done += uint64(len(chunk))
	}
	return nil
}

func (l *Loader) zero(seg image.Segment) error {
	clear(l.buf)
	for done := uint64(0); done < seg.Size; {
		chunk := l.buf[:min(uint64(len(l.buf)), seg.Size-done)]
		if _, err := l.ram.WriteAt(chunk, int64(seg.Addr+done)); err != nil {
			return &CopyFailure{Index: seg.Index, Addr: seg.Addr + done, Err: err}
		}
		done += uint64(len(chunk))
	}
	return nil
}
