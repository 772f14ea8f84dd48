package main

import (
	"strings"
	"testing"

	"tinyg/config"
	"tinyg/core"
	"tinyg/gcode"
	"tinyg/planner"
)

type fakeBackend struct {
	steps int
}

func (f *fakeBackend) SetDirection(reverse bool) {}
func (f *fakeBackend) Step()                     { f.steps++ }

func newTestController() *Controller {
	cfg := config.DefaultConfig()
	backends := make([]core.Backend, planner.NumAxes)
	for i := range backends {
		backends[i] = &fakeBackend{}
	}
	return NewController(cfg, backends, core.TimerFreq/10000)
}

func TestDispatchGCodeBlock(t *testing.T) {
	ctl := newTestController()
	if resp := ctl.Dispatch("G1 X10 F300"); resp != "ok\n" {
		t.Fatalf("Dispatch = %q, want ok", resp)
	}
	if ctl.queue.Len() != 1 {
		t.Fatalf("queue length = %d, want 1", ctl.queue.Len())
	}
}

func TestDispatchStatusReport(t *testing.T) {
	ctl := newTestController()
	resp := ctl.Dispatch("?")
	if !strings.HasPrefix(resp, "<Idle,MPos:") {
		t.Fatalf("status report = %q, want <Idle,MPos:... prefix", resp)
	}

	ctl.Dispatch("G1 X10 F300")
	resp = ctl.Dispatch("?")
	if !strings.HasPrefix(resp, "<Run,") {
		t.Fatalf("status report with queued motion = %q, want <Run,... prefix", resp)
	}
}

func TestDispatchConfigReadWrite(t *testing.T) {
	ctl := newTestController()

	resp := ctl.Dispatch("$xvm")
	if !strings.HasPrefix(resp, "300\n") {
		t.Fatalf("$xvm read = %q, want default 300", resp)
	}

	if resp := ctl.Dispatch("$xvm=250"); resp != "ok\n" {
		t.Fatalf("$xvm write = %q, want ok", resp)
	}
	if ctl.cfg.Axis[0].VelocityMax != 250 {
		t.Fatalf("VelocityMax after write = %v, want 250", ctl.cfg.Axis[0].VelocityMax)
	}

	if resp := ctl.Dispatch("$nosuchtoken"); resp != "unrecognized_command\n" {
		t.Fatalf("unknown token = %q, want unrecognized_command", resp)
	}
}

func TestDispatchWarningStillExecutesBlock(t *testing.T) {
	ctl := newTestController()
	resp := ctl.Dispatch("M117 G1 X5 F300")
	if resp != "warning\n" {
		t.Fatalf("Dispatch = %q, want warning", resp)
	}
	if ctl.queue.Len() != 1 {
		t.Fatalf("queue length = %d, want 1 (warned block must still move)", ctl.queue.Len())
	}
}

func TestDispatchFeedHoldAndResume(t *testing.T) {
	ctl := newTestController()
	ctl.Dispatch("G1 X10 F300")

	if resp := ctl.Dispatch("!"); resp != "ok\n" {
		t.Fatalf("feed-hold = %q, want ok", resp)
	}
	if !strings.HasPrefix(ctl.Dispatch("?"), "<Hold,") {
		t.Fatalf("status after hold should report Hold")
	}
	if resp := ctl.Dispatch("~"); resp != "ok\n" {
		t.Fatalf("resume = %q, want ok", resp)
	}
	if strings.HasPrefix(ctl.Dispatch("?"), "<Hold,") {
		t.Fatalf("status after resume must leave Hold")
	}
}

func TestDispatchMessageForwarding(t *testing.T) {
	ctl := newTestController()
	resp := ctl.Dispatch("G4 P0 (MSG hello operator)")
	if !strings.Contains(resp, "hello operator") {
		t.Fatalf("response %q should carry the forwarded MSG text", resp)
	}
}

func TestDispatchHardResetFlushesQueuesAndState(t *testing.T) {
	ctl := newTestController()
	ctl.Dispatch("G1 X10 F300")
	ctl.Dispatch("M3 S1000")

	if resp := ctl.Dispatch("\x18"); resp != "ok\n" {
		t.Fatalf("reset = %q, want ok", resp)
	}
	if ctl.queue.Len() != 0 {
		t.Fatalf("queue length after reset = %d, want 0", ctl.queue.Len())
	}
	if ctl.cm.Spindle != gcode.SpindleOff {
		t.Fatalf("spindle after reset = %v, want off", ctl.cm.Spindle)
	}
	if ctl.cm.Position[0] != 0 {
		t.Fatalf("position after reset = %v, want origin", ctl.cm.Position[0])
	}
}

func TestDispatchRejectsOverlongLine(t *testing.T) {
	ctl := newTestController()
	long := "G1 X" + strings.Repeat("1", 300)
	if resp := ctl.Dispatch(long); resp != "queue_full\n" {
		t.Fatalf("overlong line = %q, want queue_full", resp)
	}
	if ctl.queue.Len() != 0 {
		t.Fatalf("overlong line must not enqueue")
	}
}
