//go:build tinygo

// Tinygo build of tinygfw: the real controller firmware. Wires the same
// Controller pipeline as main_native.go against actual hardware: USB-CDC
// serial for the line protocol and per-axis GPIO step/dir pins
// (gpioBackend) for the step executor. The watchdog is disabled on boot and USB
// comes up before anything that might print.
package main

import (
	"bufio"
	"machine"

	"tinyg/config"
	"tinyg/core"
	"tinyg/planner"
)

// gpioBackend bit-bangs one axis's STEP/DIR pins directly, for boards
// without a PIO peripheral wired up for hardware-timed pulses.
type gpioBackend struct {
	step, dir machine.Pin
}

func newGPIOBackend(step, dir machine.Pin) *gpioBackend {
	step.Configure(machine.PinConfig{Mode: machine.PinOutput})
	dir.Configure(machine.PinConfig{Mode: machine.PinOutput})
	return &gpioBackend{step: step, dir: dir}
}

func (b *gpioBackend) SetDirection(reverse bool) { b.dir.Set(reverse) }
func (b *gpioBackend) Step() {
	b.step.High()
	b.step.Low()
}

// axisPins maps each of the six axes to its STEP/DIR GPIO pair. Boards
// without a physical axis leave the entry unused; NewController only
// drives as many backends as the board provides.
var axisPins = [...][2]machine.Pin{
	{machine.GPIO2, machine.GPIO3},   // X
	{machine.GPIO4, machine.GPIO5},   // Y
	{machine.GPIO6, machine.GPIO7},   // Z
	{machine.GPIO8, machine.GPIO9},   // A
	{machine.GPIO10, machine.GPIO11}, // B
	{machine.GPIO12, machine.GPIO13}, // C
}

// homeSwitchPins maps each axis to its limit-switch input pin, wired
// normally-open to ground (active-low).
var homeSwitchPins = [...]machine.Pin{
	machine.GPIO14, machine.GPIO15, machine.GPIO16,
	machine.GPIO17, machine.GPIO18, machine.GPIO19,
}

// enablePins maps each axis to its driver ENABLE output.
var enablePins = [...]machine.Pin{
	machine.GPIO20, machine.GPIO21, machine.GPIO22,
	machine.GPIO23, machine.GPIO24, machine.GPIO25,
}

// spindlePin drives the spindle relay (M3/M4 on, M5 off).
const spindlePin = machine.GPIO26

// machineGPIO adapts tinygo's machine.Pin to core.GPIODriver, so
// core.LimitSwitch (and anything else under core/) can drive real hardware
// without importing the machine package itself.
type machineGPIO struct{}

func (machineGPIO) ConfigureOutput(pin core.GPIOPin) error {
	machine.Pin(pin).Configure(machine.PinConfig{Mode: machine.PinOutput})
	return nil
}

func (machineGPIO) ConfigureInputPullUp(pin core.GPIOPin) error {
	machine.Pin(pin).Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	return nil
}

func (machineGPIO) ConfigureInputPullDown(pin core.GPIOPin) error {
	machine.Pin(pin).Configure(machine.PinConfig{Mode: machine.PinInputPulldown})
	return nil
}

func (machineGPIO) SetPin(pin core.GPIOPin, value bool) error {
	machine.Pin(pin).Set(value)
	return nil
}

func (machineGPIO) GetPin(pin core.GPIOPin) (bool, error) {
	return machine.Pin(pin).Get(), nil
}

func (machineGPIO) ReadPin(pin core.GPIOPin) bool {
	return machine.Pin(pin).Get()
}

func main() {
	machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})

	machine.Serial.Configure(machine.UARTConfig{})
	core.TimerInit()
	core.SetGPIODriver(machineGPIO{})

	cfg := config.DefaultConfig()

	backends := make([]core.Backend, planner.NumAxes)
	for i := range backends {
		backends[i] = newGPIOBackend(axisPins[i][0], axisPins[i][1])
	}

	tickInterval := core.TimerFreq / 10000 // 10 kHz default
	ctl := NewController(cfg, backends, tickInterval)

	var switches [planner.NumAxes]*core.LimitSwitch
	for i := range switches {
		if cfg.Axis[i].SwitchMode == config.SwitchModeDisabled {
			continue
		}
		ls, err := core.NewLimitSwitch(core.GPIOPin(homeSwitchPins[i]), false)
		if err != nil {
			continue
		}
		switches[i] = ls
	}
	ctl.WireHoming(switches)

	spindle, _ := core.NewDigitalOut(core.GPIOPin(spindlePin), false, false, 0)
	enables := make([]*core.DigitalOut, planner.NumAxes)
	for i := range enables {
		enables[i], _ = core.NewDigitalOut(core.GPIOPin(enablePins[i]), false, cfg.Axis[i].InvertEnable, 0)
	}
	ctl.WireOutputs(spindle, enables)

	ctl.Start(core.GetTime())

	scanner := bufio.NewScanner(machine.Serial)
	for scanner.Scan() {
		resp := ctl.Dispatch(scanner.Text())
		machine.Serial.Write([]byte(resp))
		core.ProcessTimers()
		ctl.Tick(core.GetTime())
	}
}
