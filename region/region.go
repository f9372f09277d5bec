package region

import (
	"fmt"
	"slices"
)

// AddressLimit is the size of the 32-bit target address space.
const AddressLimit uint64 = 1 << 32

type Region struct {
	Name       string
	Addr, Size uint64
	Cap        Cap
}

func (r Region) End() uint64 {
	return r.Addr + r.Size
}

// Contains reports whether [addr, addr+size) lies wholly inside r.
func (r Region) Contains(addr, size uint64) bool {
	end, ok := End(addr, size, AddressLimit)
	return ok && addr >= r.Addr && end <= r.End()
}

func (r Region) String() string {
	return fmt.Sprintf("%s[%08X-%08X %s]", r.Name, r.Addr, r.End(), r.Cap)
}

type Range struct {
	Start, End uint64
}

func (r Range) Size() uint64 {
	return r.End - r.Start
}

func (r Range) Overlaps(o Range) bool {
	return Overlaps(r.Start, r.End, o.Start, o.End)
}

func (r Range) String() string {
	return fmt.Sprintf("%08X-%08X", r.Start, r.End)
}

// Map is a fixed set of non-overlapping regions sorted by address.
type Map struct {
	regions []Region
}

// MustMap builds a Map and panics if any region is empty, exceeds the
// address space or overlaps another. Region tables are compiled in, so a
// bad table is a build defect rather than a runtime condition.
func MustMap(regions ...Region) Map {
	m, err := NewMap(regions...)
	if err != nil {
		panic(err)
	}
	return m
}

func NewMap(regions ...Region) (Map, error) {
	sorted := slices.Clone(regions)
	slices.SortFunc(sorted, func(a, b Region) int {
		switch {
		case a.Addr < b.Addr:
			return -1
		case a.Addr > b.Addr:
			return 1
		}
		return 0
	})
	for i, r := range sorted {
		if r.Size == 0 {
			return Map{}, fmt.Errorf("region %s: empty", r.Name)
		}
		if _, ok := End(r.Addr, r.Size, AddressLimit); !ok {
			return Map{}, fmt.Errorf("region %s: exceeds address space", r.Name)
		}
		if i > 0 && sorted[i-1].End() > r.Addr {
			return Map{}, fmt.Errorf("region %s overlaps %s", r.Name, sorted[i-1].Name)
		}
	}
	return Map{regions: sorted}, nil
}

func (m Map) Regions() []Region {
	return slices.Clone(m.regions)
}

func (m Map) Len() int {
	return len(m.regions)
}

// Find returns the region wholly containing [addr, addr+size). Regions never
// overlap, so at most one can match; a range straddling two adjacent
// regions matches none.
func (m Map) Find(addr, size uint64) (Region, bool) {
	for _, r := range m.regions {
		if r.Contains(addr, size) {
			return r, true
		}
	}
	return Region{}, false
}

func (m Map) Lookup(name string) (Region, bool) {
	for _, r := range m.regions {
		if r.Name == name {
			return r, true
		}
	}
	return Region{}, false
}
