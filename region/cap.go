package region

import "strings"

type Cap int

const (
	CAP_NONE Cap = 0
	CAP_EXEC Cap = 1 << (iota - 1)
	CAP_WRITE
	CAP_DMA
	CAP_ECC
	CAP_SHARED

	CAP_LOAD = CAP_EXEC | CAP_WRITE
)

var capNames = [...]struct {
	c    Cap
	name string
}{
	{CAP_EXEC, "exec"},
	{CAP_WRITE, "write"},
	{CAP_DMA, "dma"},
	{CAP_ECC, "ecc"},
	{CAP_SHARED, "shared"},
}

// Has reports whether c carries every flag in need. A zero need is satisfied
// by any loadable capability set.
func (c Cap) Has(need Cap) bool {
	if need == CAP_NONE {
		return c&CAP_LOAD != 0
	}
	return c&need == need
}

func (c Cap) String() string {
	if c == CAP_NONE {
		return "none"
	}
	var names []string
	for _, n := range capNames {
		if c&n.c != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, "|")
}

func ParseCap(name string) (Cap, bool) {
	for _, n := range capNames {
		if n.name == name {
			return n.c, true
		}
	}
	return CAP_NONE, false
}
