package image

import (
	"debug/elf"
	"fmt"

	"github.com/wnxd/xspiboot/region"
)

type Fill int

const (
	FILL_COPY Fill = iota
	FILL_ZERO
)

func (f Fill) String() string {
	switch f {
	case FILL_COPY:
		return "copy"
	case FILL_ZERO:
		return "zero"
	}
	return fmt.Sprintf("Fill(%d)", int(f))
}

// Segment is a destination range in target RAM. Copy segments take Size
// bytes from Offset in the image store; zero segments are cleared. Index is
// the program header the segment came from: a PT_LOAD whose memory size
// exceeds its file size yields a copy segment and a zero segment with the
// same Index.
type Segment struct {
	Index  int
	Offset uint64
	Addr   uint64
	Size   uint64
	Fill   Fill
	Flags  elf.ProgFlag
}

func (s Segment) End() uint64 {
	return s.Addr + s.Size
}

func (s Segment) Range() region.Range {
	return region.Range{Start: s.Addr, End: s.End()}
}

func (s Segment) Exec() bool {
	return s.Flags&elf.PF_X != 0
}

func (s Segment) Writable() bool {
	return s.Flags&elf.PF_W != 0
}

// Need is the capability the destination region must carry. Code needs an
// executable region and data a writable one; read-only data may live in
// either.
func (s Segment) Need() region.Cap {
	var c region.Cap
	if s.Exec() {
		c |= region.CAP_EXEC
	}
	if s.Writable() {
		c |= region.CAP_WRITE
	}
	return c
}

func (s Segment) String() string {
	return fmt.Sprintf("#%d %s %08X+%X %s", s.Index, s.Fill, s.Addr, s.Size, s.Flags)
}
