// Package layout holds the memory maps of the boards xspiboot runs on.
//
// The map used by the firmware is picked at build time: without tags the
// ITCM/SRAM1 split is 128/64 KiB and DTCM/SRAM3 is 64/128 KiB. The tags
// itcm192 (instruction heavy) and itcm64 (data heavy) select the other
// compiled-in splits. Setting both is a build error.
package layout

import (
	"fmt"

	"github.com/wnxd/xspiboot/region"
)

// Split is the share in KiB of a 192 KiB pool given to a TCM. The paired
// AXI SRAM bank gets the rest.
type Split uint64

const (
	Split64  Split = 64
	Split128 Split = 128
	Split192 Split = 192

	tcmPool = 192
)

const (
	ITCMBase  = 0x0000_0000
	DTCMBase  = 0x2000_0000
	SRAM1Base = 0x2400_0000
	SRAM2Base = 0x2402_0000
	SRAM2Size = 0x0002_0000
	SRAM3Base = 0x2404_0000

	// XSPI2 memory-mapped window
	FlashBase   = 0x7000_0000
	FlashSize   = 32 * 1024 * 1024
	ImageOffset = 0
)

func (s Split) bytes() uint64 {
	return uint64(s) * 1024
}

func (s Split) rest() uint64 {
	return (tcmPool - uint64(s)) * 1024
}

func (s Split) String() string {
	return fmt.Sprintf("%dK", uint64(s))
}

// STM32H7S returns the loadable RAM of an STM32H7S with the given TCM splits.
// SRAM2 is never part of the map: the bootloader links there.
func STM32H7S(itcm, dtcm Split) region.Map {
	var regions []region.Region
	add := func(name string, addr, size uint64, c region.Cap) {
		if size > 0 {
			regions = append(regions, region.Region{Name: name, Addr: addr, Size: size, Cap: c})
		}
	}
	add("ITCM", ITCMBase, itcm.bytes(), region.CAP_EXEC|region.CAP_ECC)
	add("DTCM", DTCMBase, dtcm.bytes(), region.CAP_WRITE|region.CAP_ECC)
	add("SRAM1", SRAM1Base, itcm.rest(), region.CAP_EXEC|region.CAP_WRITE|region.CAP_DMA|region.CAP_SHARED)
	add("SRAM3", SRAM3Base, dtcm.rest(), region.CAP_WRITE|region.CAP_DMA|region.CAP_SHARED)
	return region.MustMap(regions...)
}

// Exclusion is the resident footprint of the bootloader: its code, data and
// stack all live in SRAM2.
func Exclusion() []region.Range {
	return []region.Range{{Start: SRAM2Base, End: SRAM2Base + SRAM2Size}}
}

// Selected returns the map chosen by build tags.
func Selected() region.Map {
	return STM32H7S(ITCM, DTCM)
}

var variants = map[string][2]Split{
	"itcm64":  {Split64, Split192},
	"itcm128": {Split128, Split64},
	"itcm192": {Split192, Split64},
}

func Names() []string {
	return []string{"itcm64", "itcm128", "itcm192"}
}

func ByName(name string) (region.Map, bool) {
	v, ok := variants[name]
	if !ok {
		return region.Map{}, false
	}
	return STM32H7S(v[0], v[1]), true
}
