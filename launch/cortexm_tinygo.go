//go:build tinygo && cortexm

package launch

import (
	"device/arm"
	"runtime/volatile"
	"unsafe"
)

const scbVTOR = 0xE000_ED08

type cortexM struct{}

// CortexM is the hardware launcher. Interrupts stay masked across the
// hand-off; the target unmasks them once its own handlers are in place.
var CortexM Launcher = cortexM{}

func (cortexM) Launch(c Context) {
	arm.DisableInterrupts()
	arm.Asm("dsb")
	volatile.StoreUint32((*uint32)(unsafe.Pointer(uintptr(scbVTOR))), uint32(c.VectorTable))
	arm.Asm("dsb")
	arm.Asm("isb")
	arm.AsmFull(`
		msr msp, {sp}
		isb
		bx {entry}
	`, map[string]interface{}{
		"sp":    uint32(c.StackTop),
		"entry": uint32(c.Entry) | 1,
	})
	for {
		arm.Asm("wfi")
	}
}
