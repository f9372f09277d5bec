package loader

import (
	"errors"
	"fmt"
)

var ErrCopyFailure = errors.New("copy failure")

// CopyFailure reports the segment and target address at which loading
// stopped. RAM already written is left as is.
type CopyFailure struct {
	Index int
	Addr  uint64
	Err   error
}

func (e *CopyFailure) Error() string {
	return fmt.Sprintf("%v: segment %d at %08X: %v", ErrCopyFailure, e.Index, e.Addr, e.Err)
}

func (e *CopyFailure) Is(target error) bool {
	return target == ErrCopyFailure
}

func (e *CopyFailure) Unwrap() error {
	return e.Err
}
