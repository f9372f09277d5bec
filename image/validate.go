// Package image decides whether the ELF file in external flash may be
// booted and, if so, what to load where.
//
// Validation is all or nothing: any failed check rejects the whole image,
// and nothing in a rejected image is trusted or loaded.
package image

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"

	"github.com/wnxd/xspiboot/encoding"
	"github.com/wnxd/xspiboot/launch"
	"github.com/wnxd/xspiboot/region"
	"github.com/wnxd/xspiboot/store"
)

const PT_ARM_ATTRIBUTES elf.ProgType = 0x7000_0003

var (
	headerSize = encoding.Size((*elf.Header32)(nil))
	progSize   = encoding.Size((*elf.Prog32)(nil))
)

// Image is a validated candidate. Segments are in declaration order.
type Image struct {
	Entry    uint64
	Segments []Segment
	Launch   launch.Context
}

func Validate(s store.Store, m region.Map, opts ...Option) (*Image, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	hdr, err := readHeader(s, &cfg)
	if err != nil {
		return nil, err
	}
	segments, err := readSegments(s, hdr, &cfg)
	if err != nil {
		return nil, err
	}
	ctx, err := check(s, m, segments, uint64(hdr.Entry), &cfg)
	if err != nil {
		return nil, err
	}
	return &Image{Entry: uint64(hdr.Entry), Segments: segments, Launch: ctx}, nil
}

func readHeader(s store.Store, cfg *config) (*elf.Header32, error) {
	if s.Size() < int64(headerSize) {
		return nil, headerError(nil, "image is %d bytes, shorter than an ELF header", s.Size())
	}
	hdr := new(elf.Header32)
	if err := encoding.Decode(encoding.NewStream(s, 0), binary.LittleEndian, hdr); err != nil {
		return nil, headerError(err, "reading header")
	}
	switch {
	case !bytes.Equal(hdr.Ident[:elf.EI_CLASS], []byte(elf.ELFMAG)):
		return nil, headerError(nil, "magic % X", hdr.Ident[:elf.EI_CLASS])
	case elf.Class(hdr.Ident[elf.EI_CLASS]) != elf.ELFCLASS32:
		return nil, headerError(nil, "class %v", elf.Class(hdr.Ident[elf.EI_CLASS]))
	case elf.Data(hdr.Ident[elf.EI_DATA]) != elf.ELFDATA2LSB:
		return nil, headerError(nil, "data encoding %v", elf.Data(hdr.Ident[elf.EI_DATA]))
	case elf.Version(hdr.Ident[elf.EI_VERSION]) != elf.EV_CURRENT || elf.Version(hdr.Version) != elf.EV_CURRENT:
		return nil, headerError(nil, "version %d", hdr.Version)
	case elf.Type(hdr.Type) != elf.ET_EXEC:
		return nil, headerError(nil, "type %v, want %v", elf.Type(hdr.Type), elf.ET_EXEC)
	case elf.Machine(hdr.Machine) != cfg.machine:
		return nil, headerError(nil, "machine %v, want %v", elf.Machine(hdr.Machine), cfg.machine)
	case hdr.Flags&cfg.flagsMask != cfg.flags:
		return nil, headerError(nil, "flags %#08x, want %#08x under mask %#08x", hdr.Flags, cfg.flags, cfg.flagsMask)
	case int(hdr.Phentsize) != progSize:
		return nil, headerError(nil, "program header size %d, want %d", hdr.Phentsize, progSize)
	case hdr.Phnum == 0:
		return nil, headerError(nil, "no program headers")
	case int(hdr.Phnum) > cfg.maxSegments:
		return nil, headerError(nil, "%d program headers, at most %d supported", hdr.Phnum, cfg.maxSegments)
	}
	if _, ok := region.End(uint64(hdr.Phoff), uint64(hdr.Phnum)*uint64(progSize), uint64(s.Size())); !ok {
		return nil, headerError(nil, "program header table at %#x outside image", hdr.Phoff)
	}
	cfg.logger.Debug("elf header",
		"entry", fmt.Sprintf("0x%08X", hdr.Entry),
		"phnum", hdr.Phnum,
		"flags", fmt.Sprintf("0x%08X", hdr.Flags),
	)
	return hdr, nil
}

func readSegments(s store.Store, hdr *elf.Header32, cfg *config) ([]Segment, error) {
	segments := make([]Segment, 0, 2*int(hdr.Phnum))
	stream := encoding.NewStream(s, int64(hdr.Phoff))
	for i := 0; i < int(hdr.Phnum); i++ {
		var ph elf.Prog32
		if err := encoding.Decode(stream, binary.LittleEndian, &ph); err != nil {
			return nil, &Error{Kind: ErrBadSegment, Index: i, Reason: fmt.Sprintf("reading program header at %#x", stream.Offset()), Err: err}
		}
		typ := elf.ProgType(ph.Type)
		switch typ {
		case elf.PT_LOAD:
		case elf.PT_NULL, elf.PT_NOTE, elf.PT_PHDR, elf.PT_GNU_STACK, elf.PT_ARM_ARCHEXT, elf.PT_ARM_EXIDX, PT_ARM_ATTRIBUTES:
			cfg.logger.Debug("skipping noload", "index", i, "type", typ, "paddr", fmt.Sprintf("0x%08X", ph.Paddr))
			continue
		default:
			return nil, &Error{Kind: ErrBadSegment, Index: i, Addr: uint64(ph.Paddr), Size: uint64(ph.Memsz), Reason: fmt.Sprintf("unrecognized type %v", typ)}
		}
		if ph.Memsz == 0 && ph.Filesz == 0 {
			cfg.logger.Debug("skipping empty load", "index", i, "paddr", fmt.Sprintf("0x%08X", ph.Paddr))
			continue
		}
		seg := Segment{
			Index:  i,
			Offset: uint64(ph.Off),
			Addr:   uint64(ph.Paddr),
			Size:   uint64(ph.Filesz),
			Fill:   FILL_COPY,
			Flags:  elf.ProgFlag(ph.Flags),
		}
		if ph.Filesz > ph.Memsz {
			seg.Size = uint64(ph.Memsz)
			return nil, segmentError(ErrBadSegment, seg, "file size %#x exceeds memory size %#x", ph.Filesz, ph.Memsz)
		}
		if _, ok := region.End(seg.Addr, uint64(ph.Memsz), region.AddressLimit); !ok {
			seg.Size = uint64(ph.Memsz)
			return nil, segmentError(ErrBadSegment, seg, "destination wraps the address space")
		}
		if _, ok := region.End(seg.Offset, seg.Size, uint64(s.Size())); seg.Size > 0 && !ok {
			return nil, segmentError(ErrBadSegment, seg, "file data at %#x outside image", seg.Offset)
		}
		cfg.logger.Debug("segment",
			"index", i,
			"paddr", fmt.Sprintf("0x%08X", ph.Paddr),
			"filesz", fmt.Sprintf("0x%X", ph.Filesz),
			"memsz", fmt.Sprintf("0x%X", ph.Memsz),
			"offset", fmt.Sprintf("0x%X", ph.Off),
			"flags", seg.Flags,
		)
		if seg.Size > 0 {
			segments = append(segments, seg)
		}
		if ph.Memsz > ph.Filesz {
			segments = append(segments, Segment{
				Index: i,
				Addr:  seg.Addr + seg.Size,
				Size:  uint64(ph.Memsz - ph.Filesz),
				Fill:  FILL_ZERO,
				Flags: seg.Flags,
			})
		}
	}
	return segments, nil
}
