// Multi-watcher trigger synchronization, used by canon's homing cycle
// (a limit switch racing a timeout to decide when a seek move stops) to
// let whichever watcher fires first win, exactly once. A can-trigger/
// triggered flag pair gates the race; registered signal callbacks fan the
// winning reason out to every listener.
package core

// HoldSync flags.
const (
	hsfCanTrigger = 1 << 0
	hsfTriggered  = 1 << 1
)

// holdSignal is one registered callback in a HoldSync's fan-out list.
type holdSignal struct {
	callback func(reason uint8)
	next     *holdSignal
}

// HoldSync coordinates several independent watchers (in the homing cycle,
// one axis's limit switch and a per-probe timeout) that must all react to
// whichever one triggers first, exactly once.
type HoldSync struct {
	flags        uint8
	triggerCause uint8
	expireReason uint8
	reportTicks  uint32
	reportTimer  Timer
	expireTimer  Timer
	signals      *holdSignal
}

// NewHoldSync returns a HoldSync ready to accept Trigger calls.
func NewHoldSync() *HoldSync {
	return &HoldSync{flags: hsfCanTrigger}
}

// Arm resets a HoldSync for a new watch, with an optional periodic report
// timer (reportTicks == 0 disables it) that reschedules itself until the
// HoldSync triggers; it emits no output.
func (hs *HoldSync) Arm(startClock, reportTicks uint32) {
	hs.flags = hsfCanTrigger
	hs.triggerCause = 0
	hs.reportTicks = reportTicks
	hs.reportTimer.Next = nil
	hs.expireTimer.Next = nil

	if reportTicks > 0 {
		hs.reportTimer.WakeTime = startClock
		hs.reportTimer.Handler = hs.reportEvent
		ScheduleTimer(&hs.reportTimer)
	}
}

// SetExpiry schedules a forced trigger at expireClock with reason, used as
// a watchdog: if no limit switch has fired by then, the move is aborted
// anyway rather than running past its travel bound.
func (hs *HoldSync) SetExpiry(expireClock uint32, reason uint8) {
	hs.expireReason = reason
	hs.expireTimer.WakeTime = expireClock
	hs.expireTimer.Handler = hs.expireEvent
	ScheduleTimer(&hs.expireTimer)
}

// Trigger fires the synchronization point with reason. Only the first
// caller wins; later calls are no-ops. Every registered signal callback
// runs synchronously, in registration order.
func (hs *HoldSync) Trigger(reason uint8) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	if hs.flags&hsfCanTrigger == 0 {
		return
	}
	hs.flags &^= hsfCanTrigger
	hs.flags |= hsfTriggered
	hs.triggerCause = reason

	for sig := hs.signals; sig != nil; sig = sig.next {
		if sig.callback != nil {
			sig.callback(reason)
		}
	}
}

// AddSignal registers a callback invoked when Trigger fires.
func (hs *HoldSync) AddSignal(callback func(reason uint8)) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	hs.signals = &holdSignal{callback: callback, next: hs.signals}
}

// Triggered reports whether Trigger has already fired, and with what
// reason (only meaningful when the first return value is true).
func (hs *HoldSync) Triggered() (bool, uint8) {
	return hs.flags&hsfTriggered != 0, hs.triggerCause
}

func (hs *HoldSync) reportEvent(t *Timer) uint8 {
	if hs.flags&hsfCanTrigger == 0 {
		return SF_DONE
	}
	t.WakeTime = GetTime() + hs.reportTicks
	return SF_RESCHEDULE
}

func (hs *HoldSync) expireEvent(t *Timer) uint8 {
	hs.Trigger(hs.expireReason)
	return SF_DONE
}
