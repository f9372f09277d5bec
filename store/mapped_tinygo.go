//go:build tinygo

package store

import "unsafe"

// Mapped returns the memory-mapped flash window at base. The XSPI
// controller must already be in memory-mapped mode.
func Mapped(base uintptr, size int) Bytes {
	return unsafe.Slice((*byte)(unsafe.Pointer(base)), size)
}
