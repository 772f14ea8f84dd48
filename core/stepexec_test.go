package core

import "testing"

type fakeBackend struct {
	steps     int
	lastDir   bool
	dirCalled bool
}

func (f *fakeBackend) SetDirection(reverse bool) {
	f.lastDir = reverse
	f.dirCalled = true
}

func (f *fakeBackend) Step() {
	f.steps++
}

func runTicks(se *StepExecutor, n int) {
	for i := 0; i < n; i++ {
		se.tick(&se.timer)
	}
}

func TestStepExecutorDistributesStepsExactly(t *testing.T) {
	backends := []Backend{&fakeBackend{}, &fakeBackend{}}
	se := NewStepExecutor(backends, 100)

	// 2000 timer ticks at interval 100 = 20 ISR slots.
	seg := Segment{Ticks: 2000, Steps: [MaxAxes]int32{7, -13}}
	if !se.Enqueue(seg) {
		t.Fatal("enqueue failed on empty queue")
	}

	runTicks(se, 20)

	x := backends[0].(*fakeBackend)
	y := backends[1].(*fakeBackend)

	if x.steps != 7 {
		t.Errorf("axis0: got %d steps, want 7", x.steps)
	}
	if y.steps != 13 {
		t.Errorf("axis1: got %d steps, want 13", y.steps)
	}
	if !y.dirCalled || !y.lastDir {
		t.Errorf("axis1: expected reverse direction to be set")
	}
	if x.dirCalled && x.lastDir {
		t.Errorf("axis0: expected forward direction")
	}
}

func TestStepExecutorHoldsWhenQueueEmpty(t *testing.T) {
	backend := &fakeBackend{}
	se := NewStepExecutor([]Backend{backend}, 100)

	result := se.tick(&se.timer)
	if result != SF_RESCHEDULE {
		t.Fatalf("expected SF_RESCHEDULE on empty queue, got %d", result)
	}
	if backend.steps != 0 {
		t.Errorf("expected no pulses while queue empty, got %d", backend.steps)
	}
}

func TestStepExecutorQueueFullRejectsEnqueue(t *testing.T) {
	se := NewStepExecutor(nil, 100)
	seg := Segment{Ticks: 10, Steps: [MaxAxes]int32{1}}

	accepted := 0
	for i := 0; i < segmentQueueSize+2; i++ {
		if se.Enqueue(seg) {
			accepted++
		}
	}
	if accepted != segmentQueueSize {
		t.Errorf("got %d accepted enqueues, want %d", accepted, segmentQueueSize)
	}
}

func TestStepExecutorHaltDropsQueue(t *testing.T) {
	backend := &fakeBackend{}
	se := NewStepExecutor([]Backend{backend}, 100)
	se.Enqueue(Segment{Ticks: 10, Steps: [MaxAxes]int32{5}})

	se.Halt()

	if se.Free() != segmentQueueSize-1 {
		t.Errorf("expected queue drained after Halt, Free()=%d", se.Free())
	}
	result := se.tick(&se.timer)
	if result != SF_DONE {
		t.Errorf("expected SF_DONE after Halt, got %d", result)
	}
}

func TestStepExecutorDirectionInvertFlipsPolarity(t *testing.T) {
	backend := &fakeBackend{}
	se := NewStepExecutor([]Backend{backend}, 100)
	se.SetDirectionInvert(0, true)

	se.Enqueue(Segment{Ticks: 1000, Steps: [MaxAxes]int32{5}})
	runTicks(se, 10)

	if !backend.dirCalled || !backend.lastDir {
		t.Errorf("positive steps on an inverted axis must assert reverse direction")
	}
	if backend.steps != 5 {
		t.Errorf("got %d steps, want 5 (polarity must not change pulse count)", backend.steps)
	}
}

func TestStepExecutorStretchesOverdrivenSegment(t *testing.T) {
	backend := &fakeBackend{}
	se := NewStepExecutor([]Backend{backend}, 100)

	// 300 timer ticks = 3 ISR slots, but 9 pulses requested: the executor
	// must stretch rather than drop pulses.
	se.Enqueue(Segment{Ticks: 300, Steps: [MaxAxes]int32{9}})
	runTicks(se, 9)

	if backend.steps != 9 {
		t.Errorf("got %d steps, want 9 (over-driven segment must stretch, not drop)", backend.steps)
	}
}
