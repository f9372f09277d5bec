package emulator

import "errors"

var (
	ErrUnmapped = errors.New("memory unmapped")
	ErrFault    = errors.New("bus fault")
	ErrOverlap  = errors.New("mapping overlaps existing bank")
	ErrNotRun   = errors.New("core not launched")
)
