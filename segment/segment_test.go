package segment

import (
	"testing"

	"tinyg/core"
	"tinyg/planner"
)

// fakeBackend counts Step() calls, standing in for a real core.Backend GPIO
// driver.
type fakeBackend struct {
	steps int
}

func (f *fakeBackend) SetDirection(reverse bool) {}
func (f *fakeBackend) Step()                     { f.steps++ }

func testLimits() *planner.Limits {
	l := &planner.Limits{JunctionAcceleration: 2000, JunctionDeviation: 0.05}
	for i := range l.Axis {
		l.Axis[i] = planner.AxisLimits{VelocityMax: 300, JerkMax: 50_000_000, StepsPerUnit: 80}
	}
	return l
}

// drive advances core's simulated clock in fixed steps, running the step
// executor's ISR (via core.ProcessTimers, exactly as cmd/tinygfw's runClock
// does) interleaved with segment generator ticks, until the planner queue
// empties, the executor consumes its last queued segment, or an iteration
// budget is exhausted. exec.Halt is called only once the executor is fully
// idle (halting earlier would drop queued segments and their pulses), and
// a few more ticks are pumped so its timer is dropped from core's global
// schedule rather than left armed for a later test.
func drive(t *testing.T, q *planner.Queue, gen *Generator, exec *core.StepExecutor, step uint32) {
	t.Helper()
	for i := 0; i < 2_000_000; i++ {
		now := core.GetTime() + step
		core.SetTime(now)
		core.ProcessTimers()
		gen.Tick(now)
		if q.Len() == 0 && exec.Idle() {
			exec.Halt()
			for j := 0; j < 4; j++ {
				now = core.GetTime() + step
				core.SetTime(now)
				core.ProcessTimers()
			}
			return
		}
	}
	t.Fatalf("drive did not converge: queue still holds %d blocks, executor idle=%v", q.Len(), exec.Idle())
}

// The sum of per-axis integer step deltas across all segments of a block
// equals the block's target step counts exactly.
func TestSegmentGeneratorEmitsExactStepCounts(t *testing.T) {
	limits := testLimits()
	q := planner.NewQueue(limits, 0)

	var dir [planner.NumAxes]float64
	dir[0] = 1
	steps := [planner.NumAxes]int32{800, 0, 0, 0, 0, 0} // 10mm at 80 steps/mm
	req := planner.MoveRequest{
		Line: 1, Target: [planner.NumAxes]float64{10}, Dir: dir,
		Length: 10, Steps: steps, RequestedCruise: 5,
	}
	if s := q.Enqueue(req); s != core.StatusOK {
		t.Fatalf("Enqueue: %v", s)
	}

	backends := make([]core.Backend, planner.NumAxes)
	fakes := make([]*fakeBackend, planner.NumAxes)
	for i := range backends {
		f := &fakeBackend{}
		fakes[i] = f
		backends[i] = f
	}
	tickInterval := uint32(core.TimerFreq / 100000) // fast ISR rate so the test converges quickly
	exec := core.NewStepExecutor(backends, tickInterval)
	core.SetTime(0)
	exec.Start(0)

	var completedTarget [planner.NumAxes]float64
	completed := false
	gen := New(q, exec, func(target [planner.NumAxes]float64) {
		completedTarget = target
		completed = true
	})

	drive(t, q, gen, exec, tickInterval)

	if !completed {
		t.Fatalf("onComplete callback never fired")
	}
	if fakes[0].steps != 800 {
		t.Fatalf("axis 0 steps pulsed = %d, want 800", fakes[0].steps)
	}
	for i := 1; i < planner.NumAxes; i++ {
		if fakes[i].steps != 0 {
			t.Fatalf("axis %d steps pulsed = %d, want 0", i, fakes[i].steps)
		}
	}
	if completedTarget[0] != 10 {
		t.Fatalf("onComplete target[0] = %v, want 10", completedTarget[0])
	}
}

// A block's generated segments must sum to the exact per-axis step counts
// even for a multi-axis diagonal move with non-trivial jerk-limited phases.
func TestSegmentGeneratorExactStepsMultiAxis(t *testing.T) {
	limits := testLimits()
	q := planner.NewQueue(limits, 0)

	dir := [planner.NumAxes]float64{0.6, 0.8, 0, 0, 0, 0}
	steps := [planner.NumAxes]int32{480, 640, 0, 0, 0, 0}
	req := planner.MoveRequest{
		Line: 1, Target: [planner.NumAxes]float64{6, 8, 0, 0, 0, 0}, Dir: dir,
		Length: 10, Steps: steps, RequestedCruise: 5,
	}
	if s := q.Enqueue(req); s != core.StatusOK {
		t.Fatalf("Enqueue: %v", s)
	}

	backends := make([]core.Backend, planner.NumAxes)
	fakes := make([]*fakeBackend, planner.NumAxes)
	for i := range backends {
		f := &fakeBackend{}
		fakes[i] = f
		backends[i] = f
	}
	tickInterval := uint32(core.TimerFreq / 100000)
	exec := core.NewStepExecutor(backends, tickInterval)
	core.SetTime(0)
	exec.Start(0)

	gen := New(q, exec, nil)
	drive(t, q, gen, exec, tickInterval)

	if fakes[0].steps != 480 {
		t.Fatalf("axis 0 steps = %d, want 480", fakes[0].steps)
	}
	if fakes[1].steps != 640 {
		t.Fatalf("axis 1 steps = %d, want 640", fakes[1].steps)
	}
}

// A dwell block holds the pipeline for its full duration without emitting
// a single step pulse.
func TestDwellHoldsForDurationWithoutSteps(t *testing.T) {
	limits := testLimits()
	q := planner.NewQueue(limits, 0)
	if s := q.EnqueueDwell(planner.DwellRequest{Line: 1, Seconds: 0.05}); s != core.StatusOK {
		t.Fatalf("EnqueueDwell: %v", s)
	}

	backends := make([]core.Backend, planner.NumAxes)
	fakes := make([]*fakeBackend, planner.NumAxes)
	for i := range backends {
		f := &fakeBackend{}
		fakes[i] = f
		backends[i] = f
	}
	tickInterval := uint32(core.TimerFreq / 100000)
	exec := core.NewStepExecutor(backends, tickInterval)
	core.SetTime(0)
	exec.Start(0)

	gen := New(q, exec, nil)
	start := core.GetTime()
	drive(t, q, gen, exec, tickInterval)
	elapsed := core.GetTime() - start

	if want := uint32(0.05 * float64(core.TimerFreq)); elapsed < want {
		t.Fatalf("dwell drained after %d ticks, want at least %d", elapsed, want)
	}
	for i, f := range fakes {
		if f.steps != 0 {
			t.Fatalf("axis %d pulsed %d steps during a dwell", i, f.steps)
		}
	}
}

// A feed-hold partway through a program decelerates to a safe stop,
// and resuming (the producer simply keeps the remaining blocks queued)
// still lands the trajectory on the same endpoint with the exact same
// total step count.
func TestFeedHoldResumeReachesSameEndpoint(t *testing.T) {
	limits := testLimits()
	q := planner.NewQueue(limits, 0)

	var dir [planner.NumAxes]float64
	dir[0] = 1
	for i := 0; i < 2; i++ {
		from := float64(i) * 10
		req := planner.MoveRequest{
			Line: uint32(i + 1), Target: [planner.NumAxes]float64{from + 10}, Dir: dir,
			Length: 10, Steps: [planner.NumAxes]int32{800}, RequestedCruise: 5,
		}
		if s := q.Enqueue(req); s != core.StatusOK {
			t.Fatalf("Enqueue %d: %v", i, s)
		}
	}

	backends := make([]core.Backend, planner.NumAxes)
	fakes := make([]*fakeBackend, planner.NumAxes)
	for i := range backends {
		f := &fakeBackend{}
		fakes[i] = f
		backends[i] = f
	}
	tickInterval := uint32(core.TimerFreq / 100000)
	exec := core.NewStepExecutor(backends, tickInterval)
	core.SetTime(0)
	exec.Start(0)
	gen := New(q, exec, nil)

	// Run until the first block is partway through, then hold mid-flight.
	for fakes[0].steps < 200 {
		now := core.GetTime() + tickInterval
		core.SetTime(now)
		core.ProcessTimers()
		gen.Tick(now)
	}
	q.FeedHold()

	drive(t, q, gen, exec, tickInterval)

	if fakes[0].steps != 1600 {
		t.Fatalf("axis 0 steps after hold+resume = %d, want 1600 (same endpoint)", fakes[0].steps)
	}
}
