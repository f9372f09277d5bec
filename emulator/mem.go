package emulator

import (
	"fmt"

	"github.com/wnxd/xspiboot/region"
)

type MemProt int

const (
	MEM_PROT_NONE MemProt = 0
	MEM_PROT_READ MemProt = 1 << (iota - 1)
	MEM_PROT_WRITE
	MEM_PROT_EXEC

	MEM_PROT_ALL = MEM_PROT_READ | MEM_PROT_WRITE | MEM_PROT_EXEC
)

// ProtOf is the protection a bank backing r gets. Every bank is writable:
// the bootloader itself stores code into instruction memory.
func ProtOf(c region.Cap) MemProt {
	prot := MEM_PROT_READ | MEM_PROT_WRITE
	if c.Has(region.CAP_EXEC) {
		prot |= MEM_PROT_EXEC
	}
	return prot
}

func (p MemProt) String() string {
	b := []byte("---")
	if p&MEM_PROT_READ != 0 {
		b[0] = 'r'
	}
	if p&MEM_PROT_WRITE != 0 {
		b[1] = 'w'
	}
	if p&MEM_PROT_EXEC != 0 {
		b[2] = 'x'
	}
	return string(b)
}

type MemRegion struct {
	Name       string
	Addr, Size uint64
	Prot       MemProt
}

func (r MemRegion) String() string {
	return fmt.Sprintf("%s %08X+%X %s", r.Name, r.Addr, r.Size, r.Prot)
}

type bank struct {
	MemRegion
	data []byte
}

func (b *bank) end() uint64 {
	return b.Addr + b.Size
}

func (b *bank) contains(addr, size uint64) bool {
	return addr >= b.Addr && size <= b.Size && addr-b.Addr <= b.Size-size
}
