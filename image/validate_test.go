package image

import (
	"debug/elf"
	"errors"
	"strings"
	"testing"

	"github.com/wnxd/xspiboot/internal/imagetest"
	"github.com/wnxd/xspiboot/layout"
	"github.com/wnxd/xspiboot/region"
	"github.com/wnxd/xspiboot/store"
)

const ram = layout.SRAM1Base

func testMap() region.Map {
	return layout.STM32H7S(layout.Split128, layout.Split64)
}

func scenario() *imagetest.Builder {
	return &imagetest.Builder{
		Entry: ram + 16,
		Progs: []imagetest.Prog{
			imagetest.Code(ram, imagetest.Pattern(4096, 0x5A)),
			imagetest.BSS(ram+4096, 1024),
		},
	}
}

func TestValidateScenario(t *testing.T) {
	img, err := Validate(store.Bytes(scenario().Bytes()), testMap())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(img.Segments) != 2 {
		t.Fatalf("Segments = %v, want 2", img.Segments)
	}
	code, data := img.Segments[0], img.Segments[1]
	if code.Fill != FILL_COPY || code.Addr != ram || code.Size != 4096 || code.Offset != 52+2*32 {
		t.Errorf("code segment = %v (offset %#x)", code, code.Offset)
	}
	if data.Fill != FILL_ZERO || data.Addr != ram+4096 || data.Size != 1024 {
		t.Errorf("data segment = %v", data)
	}
	if img.Entry != ram+16 {
		t.Errorf("Entry = %#x, want %#x", img.Entry, ram+16)
	}
	want := struct{ entry, sp, vt uint64 }{ram + 16, ram + 4096 + 1024, ram}
	if img.Launch.Entry != want.entry || img.Launch.StackTop != want.sp || img.Launch.VectorTable != want.vt {
		t.Errorf("Launch = %v, want entry=%#x sp=%#x vtor=%#x", img.Launch, want.entry, want.sp, want.vt)
	}
}

func TestValidateSplitsPartialBSS(t *testing.T) {
	b := &imagetest.Builder{
		Entry: 0x101,
		Progs: []imagetest.Prog{
			imagetest.Code(0, imagetest.Pattern(0x200, 1)),
			{Type: elf.PT_LOAD, Flags: elf.PF_R | elf.PF_W, Paddr: layout.DTCMBase, Data: imagetest.Pattern(0x40, 2), Memsz: 0x100},
		},
	}
	img, err := Validate(store.Bytes(b.Bytes()), testMap())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(img.Segments) != 3 {
		t.Fatalf("Segments = %v, want copy, copy, zero", img.Segments)
	}
	tail := img.Segments[2]
	if tail.Index != 1 || tail.Fill != FILL_ZERO || tail.Addr != layout.DTCMBase+0x40 || tail.Size != 0xC0 {
		t.Errorf("zero tail = %v", tail)
	}
	if img.Launch.StackTop != layout.DTCMBase+0x100 {
		t.Errorf("StackTop = %#x, want %#x", img.Launch.StackTop, layout.DTCMBase+0x100)
	}
}

func TestValidateSkipsNoload(t *testing.T) {
	b := scenario()
	b.Progs = append(b.Progs,
		imagetest.Prog{Type: elf.PT_NOTE, Data: []byte("note")},
		imagetest.Prog{Type: elf.PT_GNU_STACK, Flags: elf.PF_R | elf.PF_W},
		imagetest.Prog{Type: elf.PT_ARM_EXIDX, Paddr: ram + 0x800, Data: []byte{1, 2, 3, 4}},
		imagetest.BSS(0x3000_0000, 0),
	)
	img, err := Validate(store.Bytes(b.Bytes()), testMap())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(img.Segments) != 2 {
		t.Errorf("Segments = %v, want only the two loadable ones", img.Segments)
	}
}

func TestValidateBadHeader(t *testing.T) {
	tests := []struct {
		name   string
		header func(*elf.Header32)
		reason string
	}{
		{"magic", func(h *elf.Header32) { h.Ident[0] = 0x7E }, "magic"},
		{"class", func(h *elf.Header32) { h.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64) }, "class"},
		{"endianness", func(h *elf.Header32) { h.Ident[elf.EI_DATA] = byte(elf.ELFDATA2MSB) }, "data encoding"},
		{"version", func(h *elf.Header32) { h.Version = 2 }, "version"},
		{"type", func(h *elf.Header32) { h.Type = uint16(elf.ET_DYN) }, "type"},
		{"machine", func(h *elf.Header32) { h.Machine = uint16(elf.EM_RISCV) }, "machine"},
		{"abi", func(h *elf.Header32) { h.Flags = 0x0400_0000 }, "flags"},
		{"phentsize", func(h *elf.Header32) { h.Phentsize = 56 }, "program header size"},
		{"no phdrs", func(h *elf.Header32) { h.Phnum = 0 }, "no program headers"},
		{"too many phdrs", func(h *elf.Header32) { h.Phnum = DefaultMaxSegments + 1 }, "at most"},
		{"phoff", func(h *elf.Header32) { h.Phoff = 0x10_0000 }, "outside image"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := scenario()
			b.Header = tt.header
			img, err := Validate(store.Bytes(b.Bytes()), testMap())
			if !errors.Is(err, ErrBadHeader) {
				t.Fatalf("Validate() = %v, %v, want ErrBadHeader", img, err)
			}
			if img != nil {
				t.Errorf("rejected image returned %v", img)
			}
			if !strings.Contains(err.Error(), tt.reason) {
				t.Errorf("error %q does not mention %q", err, tt.reason)
			}
		})
	}
}

func TestValidateTruncated(t *testing.T) {
	data := scenario().Bytes()
	if _, err := Validate(store.Bytes(data[:40]), testMap()); !errors.Is(err, ErrBadHeader) {
		t.Errorf("Validate(short) error = %v, want ErrBadHeader", err)
	}
}

type failingDevice struct{ err error }

func (d failingDevice) ReadMemory(uint32, []byte) error { return d.err }

func TestValidateReadFailure(t *testing.T) {
	cause := errors.New("xspi timeout")
	_, err := Validate(store.NewFlash(failingDevice{cause}, 1<<20), testMap())
	if !errors.Is(err, ErrBadHeader) || !errors.Is(err, store.ErrRead) || !errors.Is(err, cause) {
		t.Fatalf("Validate() error = %v, want ErrBadHeader wrapping the read failure", err)
	}
}

func TestValidateBadSegment(t *testing.T) {
	tests := []struct {
		name   string
		edit   func(*imagetest.Builder)
		reason string
	}{
		{"dynamic", func(b *imagetest.Builder) {
			b.Progs = append(b.Progs, imagetest.Prog{Type: elf.PT_DYNAMIC, Paddr: ram + 0x2000, Data: []byte{0, 0, 0, 0}})
		}, "unrecognized type"},
		{"interp", func(b *imagetest.Builder) {
			b.Progs = append(b.Progs, imagetest.Prog{Type: elf.PT_INTERP, Data: []byte("/lib/ld.so")})
		}, "unrecognized type"},
		{"filesz exceeds memsz", func(b *imagetest.Builder) {
			b.Prog = func(i int, p *elf.Prog32) {
				if i == 0 {
					p.Memsz = p.Filesz - 1
				}
			}
		}, "exceeds memory size"},
		{"wraps", func(b *imagetest.Builder) {
			b.Progs = append(b.Progs, imagetest.BSS(0xFFFF_FF00, 0x200))
		}, "wraps"},
		{"file data outside image", func(b *imagetest.Builder) {
			b.Prog = func(i int, p *elf.Prog32) {
				if i == 0 {
					p.Off = 0x0100_0000
				}
			}
		}, "outside image"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := scenario()
			tt.edit(b)
			_, err := Validate(store.Bytes(b.Bytes()), testMap())
			if !errors.Is(err, ErrBadSegment) {
				t.Fatalf("Validate() error = %v, want ErrBadSegment", err)
			}
			if !strings.Contains(err.Error(), tt.reason) {
				t.Errorf("error %q does not mention %q", err, tt.reason)
			}
		})
	}
}

func TestValidateRegionViolation(t *testing.T) {
	tests := []struct {
		name  string
		progs []imagetest.Prog
		entry uint32
	}{
		{"code in DTCM", []imagetest.Prog{imagetest.Code(layout.DTCMBase, make([]byte, 64))}, layout.DTCMBase},
		{"data in ITCM", []imagetest.Prog{imagetest.Code(0, make([]byte, 64)), imagetest.BSS(0x1000, 64)}, 0},
		{"straddles ITCM end", []imagetest.Prog{imagetest.Code(0x1_FF80, make([]byte, 0x100))}, 0x1_FF80},
		{"unmapped", []imagetest.Prog{imagetest.Code(0x3000_0000, make([]byte, 64))}, 0x3000_0000},
		{"bootloader SRAM2", []imagetest.Prog{imagetest.Code(0, make([]byte, 64)), imagetest.BSS(layout.SRAM2Base, 64)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &imagetest.Builder{Entry: tt.entry, Progs: tt.progs}
			_, err := Validate(store.Bytes(b.Bytes()), testMap())
			if !errors.Is(err, ErrRegionViolation) {
				t.Fatalf("Validate() error = %v, want ErrRegionViolation", err)
			}
		})
	}
}

func TestValidateOverlapEitherOrder(t *testing.T) {
	first := imagetest.Code(ram, make([]byte, 0x100))
	second := imagetest.BSS(ram+0xFF, 0x100)
	for _, progs := range [][]imagetest.Prog{{first, second}, {second, first}} {
		b := &imagetest.Builder{Entry: ram, Progs: progs}
		_, err := Validate(store.Bytes(b.Bytes()), testMap())
		if !errors.Is(err, ErrOverlap) {
			t.Errorf("Validate(%v) error = %v, want ErrOverlap", progs, err)
		}
	}
}

func TestValidateExclusion(t *testing.T) {
	excl := region.Range{Start: layout.SRAM3Base + 0x1000, End: layout.SRAM3Base + 0x2000}
	b := scenario()
	b.Progs = append(b.Progs, imagetest.BSS(layout.SRAM3Base+0x0800, 0x0801))
	_, err := Validate(store.Bytes(b.Bytes()), testMap(), WithExclusion(excl))
	if !errors.Is(err, ErrOverlap) || !strings.Contains(err.Error(), "footprint") {
		t.Fatalf("Validate() error = %v, want ErrOverlap with the bootloader footprint", err)
	}
	b.Progs[2] = imagetest.BSS(layout.SRAM3Base+0x0800, 0x0800)
	if _, err := Validate(store.Bytes(b.Bytes()), testMap(), WithExclusion(excl)); err != nil {
		t.Fatalf("segment ending at the footprint rejected: %v", err)
	}
}

func TestValidateBadEntry(t *testing.T) {
	tests := []struct {
		name   string
		edit   func(*imagetest.Builder)
		reason string
	}{
		{"outside segments", func(b *imagetest.Builder) { b.Entry = ram + 0x8000 }, "outside executable"},
		{"inside data", func(b *imagetest.Builder) { b.Entry = ram + 4096 + 8 }, "outside executable"},
		{"past code end", func(b *imagetest.Builder) { b.Entry = ram + 4096 }, "outside executable"},
		{"misaligned vector table", func(b *imagetest.Builder) {
			b.Progs[0].Paddr = ram + 0x40
			b.Progs[1].Paddr = ram + 0x40 + 4096
			b.Entry = ram + 0x50
		}, "aligned"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := scenario()
			tt.edit(b)
			_, err := Validate(store.Bytes(b.Bytes()), testMap())
			if !errors.Is(err, ErrBadEntry) {
				t.Fatalf("Validate() error = %v, want ErrBadEntry", err)
			}
			if !strings.Contains(err.Error(), tt.reason) {
				t.Errorf("error %q does not mention %q", err, tt.reason)
			}
		})
	}
}

func TestValidateThumbEntry(t *testing.T) {
	b := scenario()
	b.Entry = ram + 4095 | 1
	img, err := Validate(store.Bytes(b.Bytes()), testMap())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if img.Launch.Entry != ram+4095|1 {
		t.Errorf("Entry = %#x, Thumb bit must be kept", img.Launch.Entry)
	}
}

func vectorTable(sp uint32) []byte {
	v := imagetest.Pattern(0x100, 3)
	v[0], v[1], v[2], v[3] = byte(sp), byte(sp>>8), byte(sp>>16), byte(sp>>24)
	return v
}

func TestValidateStackFromVectorTable(t *testing.T) {
	b := &imagetest.Builder{
		Entry: 0x41,
		Progs: []imagetest.Prog{imagetest.Code(0, vectorTable(layout.DTCMBase + 0x1_0000))},
	}
	img, err := Validate(store.Bytes(b.Bytes()), testMap())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if img.Launch.StackTop != layout.DTCMBase+0x1_0000 {
		t.Errorf("StackTop = %#x, want top of DTCM", img.Launch.StackTop)
	}

	for _, sp := range []uint32{layout.SRAM2Base + 0x100, 0x1000, 4} {
		b.Progs[0] = imagetest.Code(0, vectorTable(sp))
		if _, err := Validate(store.Bytes(b.Bytes()), testMap()); !errors.Is(err, ErrBadEntry) {
			t.Errorf("stack pointer %#x: error = %v, want ErrBadEntry", sp, err)
		}
	}
}

func TestValidateMachineOption(t *testing.T) {
	b := scenario()
	b.Header = func(h *elf.Header32) {
		h.Machine = uint16(elf.EM_RISCV)
		h.Flags = 0
	}
	if _, err := Validate(store.Bytes(b.Bytes()), testMap(), WithMachine(elf.EM_RISCV, 0, 0)); err != nil {
		t.Fatalf("Validate with matching machine: %v", err)
	}
}

func TestErrorFormat(t *testing.T) {
	err := error(segmentError(ErrOverlap, Segment{Index: 2, Addr: 0x2400_0000, Size: 0x10}, "overlaps segment %d", 1))
	want := "overlap: segment 2 [24000000+10]: overlaps segment 1"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	var e *Error
	if !errors.As(err, &e) || e.Index != 2 {
		t.Errorf("errors.As = %v", e)
	}
}

func TestValidateReadOnlyVectorTable(t *testing.T) {
	vectors := imagetest.Prog{Type: elf.PT_LOAD, Flags: elf.PF_R, Paddr: 0, Data: vectorTable(layout.DTCMBase + 0x1000)}
	vectors.Data = append(vectors.Data, make([]byte, 0x300)...)
	text := imagetest.Code(0x400, imagetest.Pattern(0x200, 9))

	b := &imagetest.Builder{
		Entry: 0x401,
		Progs: []imagetest.Prog{vectors, text, imagetest.BSS(layout.DTCMBase, 0x100)},
	}
	img, err := Validate(store.Bytes(b.Bytes()), testMap())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if img.Launch.VectorTable != 0 || img.Launch.StackTop != layout.DTCMBase+0x100 {
		t.Errorf("Launch = %v, want vtor=00000000 sp=%08X", img.Launch, layout.DTCMBase+0x100)
	}

	b.Progs = b.Progs[:2]
	img, err = Validate(store.Bytes(b.Bytes()), testMap())
	if err != nil {
		t.Fatalf("Validate without bss: %v", err)
	}
	if img.Launch.VectorTable != 0 || img.Launch.StackTop != layout.DTCMBase+0x1000 {
		t.Errorf("Launch = %v, want the stack pointer from the read-only vector table", img.Launch)
	}
}

type headerOnlyDevice struct{ data []byte }

func (d headerOnlyDevice) ReadMemory(addr uint32, p []byte) error {
	if addr >= 52 {
		return errors.New("xspi timeout")
	}
	copy(p, d.data[addr:])
	return nil
}

func TestValidateProgramHeaderReadFailure(t *testing.T) {
	data := scenario().Bytes()
	_, err := Validate(store.NewFlash(headerOnlyDevice{data}, int64(len(data))), testMap())
	if !errors.Is(err, ErrBadSegment) || !errors.Is(err, store.ErrRead) {
		t.Fatalf("Validate() error = %v, want ErrBadSegment wrapping the read failure", err)
	}
	if !strings.Contains(err.Error(), "reading program header at 0x34") {
		t.Errorf("error %q does not name the table offset", err)
	}
}
