package layout

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wnxd/xspiboot/region"
)

// File describes a board that is not compiled in. It is only used by host
// tooling; firmware always boots with Selected.
//
//	name: custom
//	flash:
//	  base: 0x70000000
//	  size: 0x2000000
//	  image_offset: 0x0
//	regions:
//	  - name: ITCM
//	    addr: 0x0
//	    size: 0x20000
//	    caps: [exec, ecc]
//	exclusions:
//	  - start: 0x24020000
//	    end: 0x24040000
type File struct {
	Name       string        `yaml:"name"`
	Flash      FlashConfig   `yaml:"flash"`
	Regions    []RegionEntry `yaml:"regions"`
	Exclusions []RangeEntry  `yaml:"exclusions"`
}

type FlashConfig struct {
	Base        uint64 `yaml:"base"`
	Size        uint64 `yaml:"size"`
	ImageOffset uint64 `yaml:"image_offset"`
}

type RegionEntry struct {
	Name string   `yaml:"name"`
	Addr uint64   `yaml:"addr"`
	Size uint64   `yaml:"size"`
	Caps []string `yaml:"caps"`
}

type RangeEntry struct {
	Start uint64 `yaml:"start"`
	End   uint64 `yaml:"end"`
}

// Board is a resolved layout.
type Board struct {
	Name      string
	Map       region.Map
	Exclusion []region.Range
	Flash     FlashConfig
}

// Default is the compiled-in board.
func Default() Board {
	return Board{
		Name:      Variant,
		Map:       Selected(),
		Exclusion: Exclusion(),
		Flash:     FlashConfig{Base: FlashBase, Size: FlashSize, ImageOffset: ImageOffset},
	}
}

// Named returns the compiled-in board for a variant listed by Names.
func Named(name string) (Board, bool) {
	m, ok := ByName(name)
	if !ok {
		return Board{}, false
	}
	b := Default()
	b.Name, b.Map = name, m
	return b, true
}

func LoadFile(path string) (Board, error) {
	f, err := os.Open(path)
	if err != nil {
		return Board{}, fmt.Errorf("opening layout %s: %w", path, err)
	}
	defer f.Close()
	board, err := Load(f)
	if err != nil {
		return Board{}, fmt.Errorf("layout %s: %w", path, err)
	}
	return board, nil
}

func Load(r io.Reader) (Board, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return Board{}, fmt.Errorf("decoding layout: %w", err)
	}
	return file.Board()
}

func (f *File) Board() (Board, error) {
	if len(f.Regions) == 0 {
		return Board{}, fmt.Errorf("no regions")
	}
	regions := make([]region.Region, 0, len(f.Regions))
	for _, entry := range f.Regions {
		var c region.Cap
		for _, name := range entry.Caps {
			flag, ok := region.ParseCap(name)
			if !ok {
				return Board{}, fmt.Errorf("region %s: unknown capability %q", entry.Name, name)
			}
			c |= flag
		}
		regions = append(regions, region.Region{Name: entry.Name, Addr: entry.Addr, Size: entry.Size, Cap: c})
	}
	m, err := region.NewMap(regions...)
	if err != nil {
		return Board{}, err
	}
	exclusion := make([]region.Range, 0, len(f.Exclusions))
	for _, e := range f.Exclusions {
		if e.End <= e.Start {
			return Board{}, fmt.Errorf("exclusion %08X-%08X: empty", e.Start, e.End)
		}
		exclusion = append(exclusion, region.Range{Start: e.Start, End: e.End})
	}
	if f.Flash.Size == 0 {
		return Board{}, fmt.Errorf("flash size not set")
	}
	if f.Flash.ImageOffset >= f.Flash.Size {
		return Board{}, fmt.Errorf("image offset %#x beyond flash size %#x", f.Flash.ImageOffset, f.Flash.Size)
	}
	name := f.Name
	if name == "" {
		name = "custom"
	}
	return Board{Name: name, Map: m, Exclusion: exclusion, Flash: f.Flash}, nil
}
