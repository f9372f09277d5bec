package boot

import "fmt"

type State int

const (
	StateIdle State = iota
	StateLaunching
	StateSafeHalt
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLaunching:
		return "launching"
	case StateSafeHalt:
		return "safe-halt"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Lit is the steady indicator level for s: on while idle, off once the
// hand-off is imminent. SafeHalt starts off and blinks.
func (s State) Lit() bool {
	return s == StateIdle
}

// Indicator is the operator-visible status output, an LED on the boards we
// ship. Signal is called on every state change; Toggle drives the blink
// while halted.
type Indicator interface {
	Signal(State)
	Toggle()
}

// Interrupts masks and unmasks the core's interrupts.
type Interrupts interface {
	Disable()
	Enable()
}

type nopIndicator struct{}

func (nopIndicator) Signal(State) {}
func (nopIndicator) Toggle()      {}

type nopInterrupts struct{}

func (nopInterrupts) Disable() {}
func (nopInterrupts) Enable()  {}
