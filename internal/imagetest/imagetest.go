// Package imagetest builds small ELF images for tests.
package imagetest

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
)

const DefaultFlags = 0x0500_0400

type Prog struct {
	Type  elf.ProgType
	Flags elf.ProgFlag
	Paddr uint32
	Data  []byte
	// Memsz defaults to len(Data).
	Memsz uint32
}

func Code(addr uint32, data []byte) Prog {
	return Prog{Type: elf.PT_LOAD, Flags: elf.PF_R | elf.PF_X, Paddr: addr, Data: data}
}

func Data(addr uint32, data []byte) Prog {
	return Prog{Type: elf.PT_LOAD, Flags: elf.PF_R | elf.PF_W, Paddr: addr, Data: data}
}

func BSS(addr, size uint32) Prog {
	return Prog{Type: elf.PT_LOAD, Flags: elf.PF_R | elf.PF_W, Paddr: addr, Memsz: size}
}

type Builder struct {
	Entry uint32
	Progs []Prog
	// Header is applied after the default header has been filled in.
	Header func(*elf.Header32)
	// Prog is applied to each encoded program header.
	Prog func(int, *elf.Prog32)
}

// Pattern returns n bytes that differ from their neighbours, so misplaced
// copies show up in comparisons.
func Pattern(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i%251) ^ seed
	}
	return b
}

func (b *Builder) Bytes() []byte {
	hdr := elf.Header32{
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(elf.EM_ARM),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     b.Entry,
		Phoff:     52,
		Flags:     DefaultFlags,
		Ehsize:    52,
		Phentsize: 32,
		Phnum:     uint16(len(b.Progs)),
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS32)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	if b.Header != nil {
		b.Header(&hdr)
	}

	off := uint32(52 + 32*len(b.Progs))
	progs := make([]elf.Prog32, len(b.Progs))
	for i, p := range b.Progs {
		memsz := p.Memsz
		if memsz == 0 {
			memsz = uint32(len(p.Data))
		}
		progs[i] = elf.Prog32{
			Type:   uint32(p.Type),
			Off:    off,
			Paddr:  p.Paddr,
			Vaddr:  p.Paddr,
			Filesz: uint32(len(p.Data)),
			Memsz:  memsz,
			Flags:  uint32(p.Flags),
			Align:  4,
		}
		off += (uint32(len(p.Data)) + 3) &^ 3
		if b.Prog != nil {
			b.Prog(i, &progs[i])
		}
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, &hdr)
	binary.Write(&buf, binary.LittleEndian, progs)
	for _, p := range b.Progs {
		buf.Write(p.Data)
		buf.Write(make([]byte, (4-len(p.Data)%4)%4))
	}
	return buf.Bytes()
}
