package image

import (
	"errors"
	"fmt"
)

var (
	ErrBadHeader       = errors.New("bad header")
	ErrBadSegment      = errors.New("bad segment")
	ErrRegionViolation = errors.New("region violation")
	ErrOverlap         = errors.New("overlap")
	ErrBadEntry        = errors.New("bad entry")
)

// Error describes why an image was rejected. Kind is one of the Err*
// sentinels above, so errors.Is(err, ErrOverlap) works on any rejection.
type Error struct {
	Kind   error
	Index  int
	Addr   uint64
	Size   uint64
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Index >= 0 {
		msg += fmt.Sprintf(": segment %d [%08X+%X]", e.Index, e.Addr, e.Size)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

func headerError(err error, format string, args ...any) *Error {
	return &Error{Kind: ErrBadHeader, Index: -1, Reason: fmt.Sprintf(format, args...), Err: err}
}

func segmentError(kind error, seg Segment, format string, args ...any) *Error {
	return &Error{Kind: kind, Index: seg.Index, Addr: seg.Addr, Size: seg.Size, Reason: fmt.Sprintf(format, args...)}
}

func entryError(format string, args ...any) *Error {
	return &Error{Kind: ErrBadEntry, Index: -1, Reason: fmt.Sprintf(format, args...)}
}
