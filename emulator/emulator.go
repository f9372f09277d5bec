// Package emulator simulates the target's RAM and core on the host, so the
// boot path can be driven end to end without hardware.
package emulator

import (
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/zeebo/blake3"

	"github.com/wnxd/xspiboot/region"
)

// Memory is a sparse 32-bit address space made of banks. Accesses outside a
// single bank fault with ErrUnmapped. Memory implements io.WriterAt and
// io.ReaderAt with offsets taken as absolute target addresses.
type Memory struct {
	banks  []*bank
	faults []region.Range
}

// NewMemory maps one zeroed bank per region of m.
func NewMemory(m region.Map) *Memory {
	mem := new(Memory)
	for _, r := range m.Regions() {
		if err := mem.MemMap(r.Name, r.Addr, r.Size, ProtOf(r.Cap)); err != nil {
			panic(err)
		}
	}
	return mem
}

func (mem *Memory) MemMap(name string, addr, size uint64, prot MemProt) error {
	end, ok := region.End(addr, size, region.AddressLimit)
	if !ok || size == 0 {
		return fmt.Errorf("%w: %08X+%X", ErrUnmapped, addr, size)
	}
	for _, b := range mem.banks {
		if region.Overlaps(addr, end, b.Addr, b.end()) {
			return fmt.Errorf("%w: %08X+%X and %s", ErrOverlap, addr, size, b)
		}
	}
	mem.banks = append(mem.banks, &bank{
		MemRegion: MemRegion{Name: name, Addr: addr, Size: size, Prot: prot},
		data:      make([]byte, size),
	})
	slices.SortFunc(mem.banks, func(a, b *bank) int {
		switch {
		case a.Addr < b.Addr:
			return -1
		case a.Addr > b.Addr:
			return 1
		}
		return 0
	})
	return nil
}

func (mem *Memory) MemRegions() []MemRegion {
	regions := make([]MemRegion, len(mem.banks))
	for i, b := range mem.banks {
		regions[i] = b.MemRegion
	}
	return regions
}

// Fault makes every later access touching [addr, addr+size) fail with
// ErrFault, as a bus error from a bad ECC line would.
func (mem *Memory) Fault(addr, size uint64) {
	mem.faults = append(mem.faults, region.Range{Start: addr, End: addr + size})
}

func (mem *Memory) access(addr, size uint64) (*bank, error) {
	for _, f := range mem.faults {
		if size > 0 && f.Overlaps(region.Range{Start: addr, End: addr + size}) {
			return nil, fmt.Errorf("%w at %08X", ErrFault, max(addr, f.Start))
		}
	}
	for _, b := range mem.banks {
		if b.contains(addr, size) {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: %08X+%X", ErrUnmapped, addr, size)
}

func (mem *Memory) MemRead(addr, size uint64) ([]byte, error) {
	b, err := mem.access(addr, size)
	if err != nil {
		return nil, err
	}
	off := addr - b.Addr
	return slices.Clone(b.data[off : off+size]), nil
}

func (mem *Memory) MemWrite(addr uint64, data []byte) error {
	b, err := mem.access(addr, uint64(len(data)))
	if err != nil {
		return err
	}
	copy(b.data[addr-b.Addr:], data)
	return nil
}

func (mem *Memory) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("%w: negative address", ErrUnmapped)
	}
	b, err := mem.access(uint64(off), uint64(len(p)))
	if err != nil {
		return 0, err
	}
	return copy(p, b.data[uint64(off)-b.Addr:]), nil
}

func (mem *Memory) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("%w: negative address", ErrUnmapped)
	}
	if err := mem.MemWrite(uint64(off), p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Digest hashes every bank with its placement. Two memories with the same
// banks and contents have the same digest.
func (mem *Memory) Digest() [32]byte {
	h := blake3.New()
	var hdr [16]byte
	for _, b := range mem.banks {
		binary.LittleEndian.PutUint64(hdr[:8], b.Addr)
		binary.LittleEndian.PutUint64(hdr[8:], b.Size)
		h.Write(hdr[:])
		h.Write(b.data)
	}
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

// Reset zeroes every bank and clears injected faults.
func (mem *Memory) Reset() {
	for _, b := range mem.banks {
		clear(b.data)
	}
	mem.faults = nil
}
