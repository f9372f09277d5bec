package region

import "golang.org/x/exp/constraints"

func Align[I constraints.Integer](a, b I) I {
	return (a + b - 1) &^ (b - 1)
}

func AlignDown[I constraints.Integer](a, b I) I {
	return a &^ (b - 1)
}

func IsAligned[I constraints.Integer](a, b I) bool {
	return a&(b-1) == 0
}

// Overlaps reports whether the half-open ranges [aStart, aEnd) and
// [bStart, bEnd) share at least one address.
func Overlaps[I constraints.Unsigned](aStart, aEnd, bStart, bEnd I) bool {
	return aStart < bEnd && bStart < aEnd
}

// End returns addr+size and false when the sum does not fit in limit.
func End[I constraints.Unsigned](addr, size, limit I) (I, bool) {
	if addr > limit || size > limit-addr {
		return 0, false
	}
	return addr + size, true
}
