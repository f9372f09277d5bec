// Package launch hands the processor over to a loaded image.
package launch

import "fmt"

// Context is everything the target needs at hand-off. It is derived from a
// validated image and never stored.
type Context struct {
	Entry       uint64
	StackTop    uint64
	VectorTable uint64
}

func (c Context) String() string {
	return fmt.Sprintf("entry=%08X sp=%08X vtor=%08X", c.Entry, c.StackTop, c.VectorTable)
}

// Launcher relocates the vector table to c.VectorTable, sets the stack
// pointer to c.StackTop and branches to c.Entry. On hardware Launch does
// not return; host implementations record the call and return so that the
// caller can inspect it.
type Launcher interface {
	Launch(c Context)
}

type Func func(Context)

func (f Func) Launch(c Context) {
	f(c)
}
