// Digital output control for spindle, coolant, and axis-enable lines:
// plain on/off, an optional PWM cycle timer, and a max-duration safety
// cutoff that returns the pin to its default state if the controller
// wedges with the output asserted.
package core

// DigitalOut flags.
const (
	dofOn       = 1 << 0 // current pin state (1=high, 0=low)
	dofToggling = 1 << 1 // PWM mode active
	dofCheckEnd = 1 << 2 // monitor MaxDuration
	dofDefault  = 1 << 3 // default state for shutdown
)

// DigitalOut is a configured GPIO output pin with optional PWM cycling and
// a safety max-duration cutoff (e.g. a spindle relay that must not be left
// on past a configured bound if the controller wedges).
type DigitalOut struct {
	Pin   GPIOPin
	flags uint8
	timer Timer

	onDuration  uint32
	offDuration uint32
	cycleTime   uint32
	endTime     uint32
	maxDuration uint32
}

var digitalOutputs []*DigitalOut

// NewDigitalOut configures pin as an output, sets its initial value, and
// registers it so ShutdownAllDigitalOut can return it to defaultOn on a
// safe-state transition.
func NewDigitalOut(pin GPIOPin, initialOn, defaultOn bool, maxDuration uint32) (*DigitalOut, error) {
	d := &DigitalOut{Pin: pin, maxDuration: maxDuration}
	if defaultOn {
		d.flags |= dofDefault
	}

	if err := MustGPIO().ConfigureOutput(pin); err != nil {
		return nil, err
	}
	if err := MustGPIO().SetPin(pin, initialOn); err != nil {
		return nil, err
	}
	if initialOn {
		d.flags |= dofOn
	}

	digitalOutputs = append(digitalOutputs, d)
	return d, nil
}

// SetPWMCycle configures a PWM cycle length in timer ticks; 0 disables PWM
// and returns the pin to plain on/off behavior.
func (d *DigitalOut) SetPWMCycle(cycleTicks uint32) {
	d.cycleTime = cycleTicks
}

// Set schedules a level change at clock: for a plain pin this is simply
// on/off; with a PWM cycle configured, onTicks is the on-time within the
// cycle (clamped to the cycle length).
func (d *DigitalOut) Set(clock uint32, onTicks uint32) {
	if d.cycleTime != 0 {
		d.onDuration = onTicks
		d.offDuration = d.cycleTime - onTicks
		if d.onDuration > d.cycleTime {
			d.onDuration = d.cycleTime
			d.offDuration = 0
		}
		if d.onDuration > 0 && d.offDuration > 0 {
			d.flags |= dofToggling
		} else {
			d.flags &^= dofToggling
			if d.onDuration > 0 {
				d.flags |= dofOn
			} else {
				d.flags &^= dofOn
			}
		}
	} else {
		if onTicks > 0 {
			d.flags |= dofOn
		} else {
			d.flags &^= dofOn
		}
		d.flags &^= dofToggling
	}

	if d.maxDuration != 0 {
		newOn := d.flags&dofOn != 0
		defaultOn := d.flags&dofDefault != 0
		if newOn != defaultOn {
			d.endTime = clock + d.maxDuration
			d.flags |= dofCheckEnd
		} else {
			d.flags &^= dofCheckEnd
		}
	}

	d.timer.Next = nil
	d.timer.WakeTime = clock
	d.timer.Handler = d.loadEvent
	ScheduleTimer(&d.timer)
}

// SetNow immediately updates the pin value, bypassing the scheduler.
func (d *DigitalOut) SetNow(on bool) error {
	if err := MustGPIO().SetPin(d.Pin, on); err != nil {
		return err
	}
	if on {
		d.flags |= dofOn
	} else {
		d.flags &^= dofOn
	}
	d.flags &^= dofToggling
	return nil
}

func (d *DigitalOut) loadEvent(t *Timer) uint8 {
	if d.flags&dofToggling != 0 {
		if err := MustGPIO().SetPin(d.Pin, true); err != nil {
			d.flags &^= dofToggling
			return SF_DONE
		}
		t.WakeTime = GetTime() + d.onDuration
		t.Handler = d.toggleEvent
		return SF_RESCHEDULE
	}

	state := d.flags&dofOn != 0
	if err := MustGPIO().SetPin(d.Pin, state); err != nil {
		return SF_DONE
	}

	if d.flags&dofCheckEnd != 0 {
		t.WakeTime = d.endTime
		t.Handler = d.endEvent
		return SF_RESCHEDULE
	}
	return SF_DONE
}

func (d *DigitalOut) toggleEvent(t *Timer) uint8 {
	if d.flags&dofToggling == 0 {
		return SF_DONE
	}

	newState := d.flags&dofOn == 0
	if err := MustGPIO().SetPin(d.Pin, newState); err != nil {
		d.flags &^= dofToggling
		return SF_DONE
	}
	if newState {
		d.flags |= dofOn
	} else {
		d.flags &^= dofOn
	}

	var next uint32
	if newState {
		next = d.onDuration
	} else {
		next = d.offDuration
	}

	now := GetTime()
	if d.flags&dofCheckEnd != 0 && now+next >= d.endTime {
		t.WakeTime = d.endTime
		t.Handler = d.loadEvent
		return SF_RESCHEDULE
	}

	t.WakeTime = now + next
	return SF_RESCHEDULE
}

func (d *DigitalOut) endEvent(t *Timer) uint8 {
	defaultOn := d.flags&dofDefault != 0
	if err := MustGPIO().SetPin(d.Pin, defaultOn); err != nil {
		return SF_DONE
	}
	if defaultOn {
		d.flags |= dofOn
	} else {
		d.flags &^= dofOn
	}
	d.flags &^= dofToggling | dofCheckEnd
	return SF_DONE
}

// shutdown returns the pin to its default state and cancels any scheduled
// timer; called from ShutdownAllDigitalOut during a safe-state transition.
func (d *DigitalOut) shutdown() {
	defaultOn := d.flags&dofDefault != 0
	_ = MustGPIO().SetPin(d.Pin, defaultOn)
	if defaultOn {
		d.flags |= dofOn
	} else {
		d.flags &^= dofOn
	}
	d.flags &^= dofToggling | dofCheckEnd
	d.timer.Next = nil
}

// ShutdownAllDigitalOut returns every registered output to its default
// state; called by TryShutdown.
func ShutdownAllDigitalOut() {
	for _, d := range digitalOutputs {
		if d != nil {
			d.shutdown()
		}
	}
}
