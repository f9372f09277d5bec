package emulator

import (
	"fmt"

	"github.com/wnxd/xspiboot/launch"
)

type Reg int

const (
	REG_PC Reg = iota
	REG_MSP
	REG_VTOR
	REG_XPSR
)

// EPSR.T, set when the core executes Thumb code.
const XPSR_T = 1 << 24

func (r Reg) String() string {
	switch r {
	case REG_PC:
		return "pc"
	case REG_MSP:
		return "msp"
	case REG_VTOR:
		return "vtor"
	case REG_XPSR:
		return "xpsr"
	}
	return fmt.Sprintf("Reg(%d)", int(r))
}

type RegisterContext interface {
	RegRead(reg Reg) (uint64, error)
}

// Recorder is a launch.Launcher that, instead of jumping, records each
// context and leaves a simulated core in the state the hand-off would have
// produced. Unlike the hardware launcher it returns.
type Recorder struct {
	Contexts []launch.Context
	regs     [REG_XPSR + 1]uint64
}

func (r *Recorder) Launch(ctx launch.Context) {
	r.Contexts = append(r.Contexts, ctx)
	r.regs[REG_PC] = ctx.Entry &^ 1
	r.regs[REG_MSP] = ctx.StackTop
	r.regs[REG_VTOR] = ctx.VectorTable
	r.regs[REG_XPSR] = XPSR_T
}

// Last returns the most recent launch.
func (r *Recorder) Last() (launch.Context, bool) {
	if len(r.Contexts) == 0 {
		return launch.Context{}, false
	}
	return r.Contexts[len(r.Contexts)-1], true
}

func (r *Recorder) RegRead(reg Reg) (uint64, error) {
	if len(r.Contexts) == 0 {
		return 0, ErrNotRun
	}
	if reg < 0 || int(reg) >= len(r.regs) {
		return 0, fmt.Errorf("unknown register %v", reg)
	}
	return r.regs[reg], nil
}

var _ launch.Launcher = (*Recorder)(nil)
var _ RegisterContext = (*Recorder)(nil)
