// Package pio drives step pulses through the RP2040's PIO block instead
// of bit-banging GPIO from the step-executor ISR, so pulse timing stays
// exact even when the Go scheduler is busy elsewhere. The Backend here
// implements core.Backend (SetDirection/Step), so the step executor can
// drive it exactly like any other axis backend.
//
//go:build tinygo

package pio

import (
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

// buildStepperProgram assembles a one-pulse-per-FIFO-word step generator:
// pull a command word, set the direction pin, then emit a single step pulse.
// Each core.Backend.Step() call pushes one command; the PIO state machine
// handles the pulse's rising/falling edge timing without CPU involvement.
func buildStepperProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Pull(false, true).Encode(),                   // 0: pull block
		asm.Out(rp2pio.OutDestPins, 1).Encode(),          // 1: out pins, 1 (direction)
		asm.Set(rp2pio.SetDestPins, 1).Delay(7).Encode(), // 2: set pins, 1 [7]
		asm.Set(rp2pio.SetDestPins, 0).Encode(),          // 3: set pins, 0
		// .wrap
	}
}

const stepperPIOOrigin = 0

// Backend drives one stepper axis's step/direction pins via a dedicated PIO
// state machine. It implements core.Backend, so it plugs into the same
// step-executor ring buffer as the host-side simulated GPIO backend.
type Backend struct {
	pio        *rp2pio.PIO
	sm         rp2pio.StateMachine
	stepPin    machine.Pin
	dirPin     machine.Pin
	offset     uint8
	pendingDir bool
}

// NewBackend claims state machine smNum on PIO block pioNum (0 or 1) for
// step/dir generation on stepPin/dirPin. Init must be called once before
// the backend is handed to a core.StepExecutor.
func NewBackend(pioNum, smNum uint8, stepPin, dirPin machine.Pin) *Backend {
	pioHW := rp2pio.PIO0
	if pioNum != 0 {
		pioHW = rp2pio.PIO1
	}
	return &Backend{
		pio:     pioHW,
		sm:      pioHW.StateMachine(smNum),
		stepPin: stepPin,
		dirPin:  dirPin,
	}
}

// Init loads the pulse program and configures the state machine's pins.
func (b *Backend) Init() error {
	b.sm.TryClaim()

	program := buildStepperProgram()
	offset, err := b.pio.AddProgram(program, stepperPIOOrigin)
	if err != nil {
		return err
	}
	b.offset = offset

	b.stepPin.Configure(machine.PinConfig{Mode: b.pio.PinMode()})
	b.dirPin.Configure(machine.PinConfig{Mode: b.pio.PinMode()})

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetSetPins(b.stepPin, 1)
	cfg.SetOutPins(b.dirPin, 1)
	cfg.SetOutShift(true, false, 32)
	cfg.SetWrap(offset+uint8(len(program))-1, offset)
	cfg.SetClkDivIntFrac(1000, 0)

	b.sm.Init(offset, cfg)
	b.sm.SetPindirsConsecutive(b.stepPin, 1, true)
	b.sm.SetPindirsConsecutive(b.dirPin, 1, true)
	b.sm.SetPinsConsecutive(b.stepPin, 1, false)
	b.sm.SetPinsConsecutive(b.dirPin, 1, false)
	b.sm.SetEnabled(true)
	return nil
}

// SetDirection latches the direction that Step will encode into the next
// pulse command. core.StepExecutor always calls SetDirection before the
// first Step of a run of same-direction steps, never mid-run.
func (b *Backend) SetDirection(reverse bool) {
	b.pendingDir = reverse
}

// Step enqueues one pulse command into the state machine's TX FIFO. The
// PIO program generates the pulse's timing autonomously; this call returns
// once the word is accepted, not once the pulse has fired.
func (b *Backend) Step() {
	cmd := uint32(0)
	if b.pendingDir {
		cmd = 1
	}
	for b.sm.IsTxFIFOFull() {
	}
	b.sm.TxPut(cmd)
}

// Stop disables the state machine and clears any pending pulse commands,
// so no queued pulse fires afterward.
func (b *Backend) Stop() {
	b.sm.SetEnabled(false)
	b.sm.ClearFIFOs()
	b.sm.Restart()
}
