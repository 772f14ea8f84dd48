// GPIO limit-switch input: debounced edges delivered as events through a
// HoldSync. A two-stage sample/oversample state machine driven directly
// by core.Timer confirms a trigger before anyone believes it.
package core

// LimitSwitch flags.
const (
	lsfPinHigh = 1 << 0 // expected pin state when triggered
	lsfArmed   = 1 << 1 // currently arming/armed for a trigger
)

// LimitSwitch debounces a single GPIO limit/home/probe input. A potential
// trigger must hold for SampleCount consecutive samples, spaced SampleTime
// ticks apart, before it is reported.
type LimitSwitch struct {
	Pin          GPIOPin
	flags        uint8
	timer        Timer
	sampleTime   uint32
	sampleCount  uint8
	triggerCount uint8
	restTime     uint32
	nextWake     uint32
	sync         *HoldSync
	reason       uint8
}

// NewLimitSwitch configures pin as an input (pull-up if activeHigh is
// false, for a switch wired normally-open to ground; pull-down
// otherwise) and
// returns a switch ready to Arm.
func NewLimitSwitch(pin GPIOPin, activeHigh bool) (*LimitSwitch, error) {
	ls := &LimitSwitch{Pin: pin}
	if activeHigh {
		if err := MustGPIO().ConfigureInputPullDown(pin); err != nil {
			return nil, err
		}
		ls.flags = lsfPinHigh
	} else {
		if err := MustGPIO().ConfigureInputPullUp(pin); err != nil {
			return nil, err
		}
	}
	return ls, nil
}

// Triggered reports the pin's current raw state, without debouncing and
// without arming a watch.
func (ls *LimitSwitch) Triggered() bool {
	pinHigh := MustGPIO().ReadPin(ls.Pin)
	expectHigh := (ls.flags & lsfPinHigh) != 0
	return pinHigh == expectHigh
}

// Arm starts watching for a trigger: the pin is polled every restTicks
// ticks until it reads triggered, then re-checked every sampleTicks ticks
// until sampleCount consecutive samples confirm it (a failed check returns
// to polling). sync is signalled (via HoldSync.Trigger) with reason when
// the debounce completes; with a nil sync the watch just ends, recording
// nothing. A sampleCount of 0 disarms.
func (ls *LimitSwitch) Arm(startClock, sampleTicks uint32, sampleCount uint8, restTicks uint32, sync *HoldSync, reason uint8) {
	ls.timer.Next = nil
	if sampleCount == 0 {
		ls.sync = nil
		ls.flags &^= lsfArmed
		return
	}

	ls.sampleTime = sampleTicks
	ls.sampleCount = sampleCount
	ls.triggerCount = sampleCount
	ls.restTime = restTicks
	ls.sync = sync
	ls.reason = reason
	ls.flags |= lsfArmed

	ls.timer.WakeTime = startClock
	ls.timer.Handler = ls.sampleEvent
	ScheduleTimer(&ls.timer)
}

// Disarm cancels any pending debounce watch.
func (ls *LimitSwitch) Disarm() {
	ls.timer.Next = nil
	ls.flags &^= lsfArmed
	ls.sync = nil
}

// sampleEvent is the first-stage check: look for a candidate trigger edge.
func (ls *LimitSwitch) sampleEvent(t *Timer) uint8 {
	nextWake := t.WakeTime + ls.restTime
	if !ls.Triggered() {
		t.WakeTime = nextWake
		return SF_RESCHEDULE
	}

	ls.nextWake = nextWake
	t.Handler = ls.oversampleEvent
	return ls.oversampleEvent(t)
}

// oversampleEvent confirms a candidate trigger with further consecutive
// samples before reporting it.
func (ls *LimitSwitch) oversampleEvent(t *Timer) uint8 {
	if !ls.Triggered() {
		t.Handler = ls.sampleEvent
		t.WakeTime = ls.nextWake
		ls.triggerCount = ls.sampleCount
		return SF_RESCHEDULE
	}

	ls.triggerCount--
	if ls.triggerCount == 0 {
		ls.flags &^= lsfArmed
		if ls.sync != nil {
			ls.sync.Trigger(ls.reason)
		}
		return SF_DONE
	}

	t.WakeTime += ls.sampleTime
	return SF_RESCHEDULE
}
