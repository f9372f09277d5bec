//go:build tinygo && cortexm

// xspiloader is the second-stage bootloader firmware. It boots the ELF
// image at the start of XSPI2 flash and, if that image is unusable, stays
// in a safe halt with the LED blinking and the debug port open.
package main

import (
	"context"
	"device/arm"
	"log/slog"
	"machine"

	"github.com/wnxd/xspiboot/boot"
	"github.com/wnxd/xspiboot/launch"
	"github.com/wnxd/xspiboot/layout"
	"github.com/wnxd/xspiboot/loader"
	"github.com/wnxd/xspiboot/store"
)

type led struct {
	pin machine.Pin
}

func (l led) Signal(s boot.State) {
	l.pin.Set(s.Lit())
}

func (l led) Toggle() {
	l.pin.Set(!l.pin.Get())
}

type interrupts struct {
	mask uintptr
}

func (i *interrupts) Disable() {
	i.mask = arm.DisableInterrupts()
}

func (i *interrupts) Enable() {
	arm.EnableInterrupts(i.mask)
}

func main() {
	logger := slog.New(slog.NewTextHandler(machine.Serial, &slog.HandlerOptions{Level: slog.LevelDebug}))
	logger.Info("xspiloader", "layout", layout.Variant)

	machine.LED.Configure(machine.PinConfig{Mode: machine.PinOutput})

	// XSPI2 is expected in memory-mapped mode.
	flash := store.Mapped(layout.FlashBase, layout.FlashSize)
	s, err := store.Window(flash, layout.ImageOffset, 0)
	if err != nil {
		logger.Error("flash window", "error", err)
		for {
			arm.Asm("wfi")
		}
	}

	b := boot.New(s, loader.RAM, launch.CortexM,
		boot.WithLogger(logger),
		boot.WithIndicator(led{machine.LED}),
		boot.WithInterrupts(new(interrupts)),
	)
	// The context is never done: Run only returns if the launcher does.
	if err := b.Run(context.Background()); err != nil {
		logger.Error("boot returned", "error", err)
	}
}
