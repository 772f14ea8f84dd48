// Safe-state shutdown: when an internal invariant is violated the system
// halts step pulsing, returns every digital output to its default state,
// and refuses to run again until reset. An atomic latch fans the shutdown
// out to every subsystem's halt hook.
package core

import "sync/atomic"

var isShutdown uint32

// TryShutdown puts the controller into its safe state: all step pulsing
// halted, all digital outputs (spindle/coolant/enable) returned to their
// default state. Idempotent. The reason is recorded for diagnostics; the
// controller will not run again until reset.
func TryShutdown(reason string) {
	atomic.StoreUint32(&isShutdown, 1)
	ShutdownAllDigitalOut()
	haltStepExecutor()
	DebugPrintln("[SHUTDOWN] " + reason)
	RecordTiming(EvtTimerPast, 0, GetTime(), 0, 0)
}

// IsShutdown reports whether the controller is in its safe state.
func IsShutdown() bool {
	return atomic.LoadUint32(&isShutdown) != 0
}

// ClearShutdown resets the shutdown latch; called by the reset path only.
func ClearShutdown() {
	atomic.StoreUint32(&isShutdown, 0)
}
