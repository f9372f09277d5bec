package image

import (
	"encoding/binary"
	"slices"

	"github.com/wnxd/xspiboot/launch"
	"github.com/wnxd/xspiboot/region"
	"github.com/wnxd/xspiboot/store"
)

const (
	// VTOR ignores the low seven address bits.
	vectorTableAlign = 0x80
	// AAPCS stack alignment at a public interface.
	stackAlign = 8
)

// Check validates a segment set against m and derives the launch context.
// Segments must be in declaration order. s is only consulted when the image
// has no writable segment and the initial stack pointer has to be taken from
// the vector table; it may be nil otherwise.
func Check(s store.Store, m region.Map, segments []Segment, entry uint64, opts ...Option) (launch.Context, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return check(s, m, segments, entry, &cfg)
}

func check(s store.Store, m region.Map, segments []Segment, entry uint64, cfg *config) (launch.Context, error) {
	if err := checkShape(segments); err != nil {
		return launch.Context{}, err
	}
	if err := checkRegions(m, segments); err != nil {
		return launch.Context{}, err
	}
	if err := checkOverlap(segments, cfg.exclusion); err != nil {
		return launch.Context{}, err
	}
	return launchContext(s, m, segments, entry, cfg)
}

func checkShape(segments []Segment) error {
	for _, seg := range segments {
		switch seg.Fill {
		case FILL_COPY:
			if seg.Size == 0 {
				return segmentError(ErrBadSegment, seg, "zero-length copy segment")
			}
		case FILL_ZERO:
		default:
			return segmentError(ErrBadSegment, seg, "unknown fill mode %v", seg.Fill)
		}
		if _, ok := region.End(seg.Addr, seg.Size, region.AddressLimit); !ok {
			return segmentError(ErrBadSegment, seg, "destination wraps the address space")
		}
	}
	return nil
}

func checkRegions(m region.Map, segments []Segment) error {
	for _, seg := range segments {
		if seg.Size == 0 {
			continue
		}
		r, ok := m.Find(seg.Addr, seg.Size)
		if !ok {
			return segmentError(ErrRegionViolation, seg, "not inside any single region")
		}
		if need := seg.Need(); !r.Cap.Has(need) {
			return segmentError(ErrRegionViolation, seg, "%s has %s, segment needs %s", r.Name, r.Cap, need)
		}
	}
	return nil
}

// checkOverlap sorts by destination and sweeps once, remembering the
// segment that reaches furthest. Declaration order does not matter.
func checkOverlap(segments []Segment, exclusion []region.Range) error {
	sorted := make([]Segment, 0, len(segments))
	for _, seg := range segments {
		if seg.Size > 0 {
			sorted = append(sorted, seg)
		}
	}
	slices.SortFunc(sorted, func(a, b Segment) int {
		switch {
		case a.Addr < b.Addr:
			return -1
		case a.Addr > b.Addr:
			return 1
		}
		return 0
	})
	var reach Segment
	for i, seg := range sorted {
		if i > 0 && seg.Addr < reach.End() {
			return segmentError(ErrOverlap, seg, "overlaps segment %d [%08X+%X]", reach.Index, reach.Addr, reach.Size)
		}
		if i == 0 || seg.End() > reach.End() {
			reach = seg
		}
		for _, e := range exclusion {
			if seg.Range().Overlaps(e) {
				return segmentError(ErrOverlap, seg, "intersects bootloader footprint %s", e)
			}
		}
	}
	return nil
}

func launchContext(s store.Store, m region.Map, segments []Segment, entry uint64, cfg *config) (launch.Context, error) {
	pc := entry &^ 1
	inCode := slices.ContainsFunc(segments, func(seg Segment) bool {
		return seg.Exec() && pc >= seg.Addr && pc < seg.End()
	})
	if !inCode {
		return launch.Context{}, entryError("entry %08X outside executable segments", entry)
	}

	// The vector table opens the image. It may sit in a read-only segment
	// of its own ahead of the code.
	i := slices.IndexFunc(segments, func(seg Segment) bool {
		return seg.Fill == FILL_COPY
	})
	if i < 0 {
		return launch.Context{}, entryError("no copy segment carries a vector table")
	}
	vt := segments[i]
	if !region.IsAligned(vt.Addr, vectorTableAlign) {
		return launch.Context{}, entryError("vector table %08X not %d-byte aligned", vt.Addr, vectorTableAlign)
	}

	var top uint64
	for _, seg := range segments {
		if seg.Writable() && seg.Size > 0 && seg.End() > top {
			top = seg.End()
		}
	}
	if top == 0 {
		sp, err := initialStack(s, m, vt, cfg)
		if err != nil {
			return launch.Context{}, err
		}
		top = sp
	}
	ctx := launch.Context{
		Entry:       entry,
		StackTop:    region.AlignDown(top, stackAlign),
		VectorTable: vt.Addr,
	}
	cfg.logger.Debug("launch context", "context", ctx.String())
	return ctx, nil
}

// initialStack reads word 0 of the vector table, the stack pointer a
// Cortex-M core would load on reset, and makes sure the stack it describes
// lies in writable RAM outside the bootloader.
func initialStack(s store.Store, m region.Map, vt Segment, cfg *config) (uint64, error) {
	if s == nil || vt.Size < 4 {
		return 0, entryError("no writable segment and no vector table stack pointer")
	}
	var word [4]byte
	if _, err := s.ReadAt(word[:], int64(vt.Offset)); err != nil {
		e := entryError("reading vector table stack pointer")
		e.Err = err
		return 0, e
	}
	sp := uint64(binary.LittleEndian.Uint32(word[:]))
	if sp < stackAlign {
		return 0, entryError("initial stack pointer %08X not in writable RAM", sp)
	}
	r, ok := m.Find(sp-stackAlign, stackAlign)
	if !ok || !r.Cap.Has(region.CAP_WRITE) {
		return 0, entryError("initial stack pointer %08X not in writable RAM", sp)
	}
	below := region.Range{Start: sp - stackAlign, End: sp}
	for _, e := range cfg.exclusion {
		if below.Overlaps(e) {
			return 0, entryError("initial stack pointer %08X inside bootloader footprint %s", sp, e)
		}
	}
	return sp, nil
}
