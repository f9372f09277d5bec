package emulator

import (
	"encoding/binary"
	"slices"
)

type Pointer struct {
	mem  *Memory
	addr uint64
}

func ToPointer(mem *Memory, addr uint64) Pointer {
	return Pointer{mem, addr}
}

func (p Pointer) Address() uint64 {
	return p.addr
}

func (p Pointer) Add(offset uint64) Pointer {
	return Pointer{p.mem, p.addr + offset}
}

func (p Pointer) Sub(offset uint64) Pointer {
	return Pointer{p.mem, p.addr - offset}
}

func (p Pointer) MemRead(size uint64) ([]byte, error) {
	return p.mem.MemRead(p.addr, size)
}

func (p Pointer) MemWrite(data []byte) error {
	return p.mem.MemWrite(p.addr, data)
}

// MemReadPointer follows a 32-bit little-endian pointer stored at p.
func (p Pointer) MemReadPointer() (Pointer, error) {
	b, err := p.mem.MemRead(p.addr, 4)
	if err != nil {
		return Pointer{}, err
	}
	return Pointer{p.mem, uint64(binary.LittleEndian.Uint32(b))}, nil
}

// IsZero reports whether size bytes at p are all zero.
func (p Pointer) IsZero(size uint64) (bool, error) {
	b, err := p.MemRead(size)
	if err != nil {
		return false, err
	}
	return !slices.ContainsFunc(b, func(c byte) bool { return c != 0 }), nil
}
