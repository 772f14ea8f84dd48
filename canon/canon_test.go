package canon

import (
	"math"
	"testing"

	"tinyg/config"
	"tinyg/core"
	"tinyg/gcode"
	"tinyg/planner"
)

func newTestMachine(t *testing.T) (*Machine, *planner.Queue) {
	t.Helper()
	cfg := config.DefaultConfig()
	limits := cfg.PlannerLimits()
	q := planner.NewQueue(&limits, 1)
	return New(cfg, q), q
}

func TestStraightFeedEnqueuesAndAdvancesPosition(t *testing.T) {
	m, q := newTestMachine(t)

	b, status := gcode.NextBlock("G1 X10 Y0 F300")
	if status != core.StatusOK {
		t.Fatalf("parse failed: %v", status)
	}
	if s := m.Execute(b); s != core.StatusOK {
		t.Fatalf("Execute: %v", s)
	}
	if math.Abs(m.Position[0]-10) > 1e-9 {
		t.Fatalf("Position[X] = %v, want 10", m.Position[0])
	}
	if q.Len() != 1 {
		t.Fatalf("queue length = %d, want 1", q.Len())
	}
}

func TestStraightFeedAbsentAxisHoldsCurrentPosition(t *testing.T) {
	m, _ := newTestMachine(t)

	b1, _ := gcode.NextBlock("G1 X10 Y5 F300")
	m.Execute(b1)

	b2, _ := gcode.NextBlock("G1 X20 F300")
	m.Execute(b2)

	if math.Abs(m.Position[1]-5) > 1e-9 {
		t.Fatalf("Position[Y] = %v, want 5 (unchanged, absent word in absolute mode)", m.Position[1])
	}
	if math.Abs(m.Position[0]-20) > 1e-9 {
		t.Fatalf("Position[X] = %v, want 20", m.Position[0])
	}
}

func TestIncrementalModeAddsDelta(t *testing.T) {
	m, _ := newTestMachine(t)

	b1, _ := gcode.NextBlock("G1 X10 F300")
	m.Execute(b1)

	b2, _ := gcode.NextBlock("G91")
	m.Execute(b2)

	b3, _ := gcode.NextBlock("G1 X5")
	m.Execute(b3)

	if math.Abs(m.Position[0]-15) > 1e-9 {
		t.Fatalf("Position[X] = %v, want 15 (10 + 5 incremental)", m.Position[0])
	}
}

func TestInchesConvertToMillimeters(t *testing.T) {
	m, _ := newTestMachine(t)

	b1, _ := gcode.NextBlock("G20")
	m.Execute(b1)
	b2, _ := gcode.NextBlock("G1 X1 F10")
	m.Execute(b2)

	if math.Abs(m.Position[0]-25.4) > 1e-9 {
		t.Fatalf("Position[X] = %v, want 25.4 (1 inch)", m.Position[0])
	}

	// Inch conversion applies to incremental deltas too.
	b3, _ := gcode.NextBlock("G91 X1")
	m.Execute(b3)
	if math.Abs(m.Position[0]-50.8) > 1e-9 {
		t.Fatalf("Position[X] = %v, want 50.8 (another inch, incremental)", m.Position[0])
	}
}

func TestSoftLimitExceededRejectsMove(t *testing.T) {
	m, q := newTestMachine(t)

	b, _ := gcode.NextBlock("G1 X100000 F300")
	status := m.Execute(b)
	if status != core.StatusSoftLimitExceeded {
		t.Fatalf("status = %v, want soft-limit rejection", status)
	}
	if q.Len() != 0 {
		t.Fatalf("queue length = %d, want 0 (rejected move must not enqueue)", q.Len())
	}
}

func TestArcFeedQuarterCircleDecomposesIntoChords(t *testing.T) {
	m, q := newTestMachine(t)
	// Coarse chords so the whole arc fits the planner ring with no
	// consumer draining it.
	m.cfg.ArcSegmentMM = 1.0

	b, status := gcode.NextBlock("G2 X10 Y10 I10 J0 F300")
	if status != core.StatusOK {
		t.Fatalf("parse failed: %v", status)
	}
	if s := m.Execute(b); s != core.StatusOK {
		t.Fatalf("Execute: %v", s)
	}
	if q.Len() == 0 {
		t.Fatalf("expected at least one enqueued chord")
	}
	if math.Abs(m.Position[0]-10) > 1e-6 || math.Abs(m.Position[1]-10) > 1e-6 {
		t.Fatalf("Position after arc = %v, want endpoint (10,10)", m.Position[:2])
	}
}

func TestG92SetsOriginOffsetSoWorkPositionMatches(t *testing.T) {
	m, _ := newTestMachine(t)

	b1, _ := gcode.NextBlock("G1 X10 F300")
	m.Execute(b1)

	b2, _ := gcode.NextBlock("G92 X0")
	m.Execute(b2)

	if math.Abs(m.Position[0]-10) > 1e-9 {
		t.Fatalf("G92 must not move the machine, Position[X] = %v, want 10", m.Position[0])
	}
	if math.Abs(m.workOffset(0)-10) > 1e-9 {
		t.Fatalf("origin offset = %v, want 10 so work position reads 0", m.workOffset(0))
	}
}

func TestDwellEnqueuesAndDrainsNoPosition(t *testing.T) {
	m, q := newTestMachine(t)

	b, _ := gcode.NextBlock("G4 P0.5")
	if s := m.Execute(b); s != core.StatusOK {
		t.Fatalf("Execute: %v", s)
	}
	if q.Len() != 1 {
		t.Fatalf("queue length = %d, want 1 (dwell enqueued)", q.Len())
	}
}

// A full semicircle (G2 X10 Y0 I5 J0 from the origin: radius 5 centered at
// (5,0)) must decompose into chords no longer than the configured arc
// segment length, whose total path length approximates pi*r.
func TestArcFeedSemicircleChordBound(t *testing.T) {
	m, q := newTestMachine(t)
	m.cfg.ArcSegmentMM = 1.0

	b, status := gcode.NextBlock("G17 G2 X10 Y0 I5 J0 F600")
	if status != core.StatusOK {
		t.Fatalf("parse failed: %v", status)
	}
	if s := m.Execute(b); s != core.StatusOK {
		t.Fatalf("Execute: %v", s)
	}

	blocks := q.Snapshot()
	if len(blocks) == 0 {
		t.Fatalf("expected chord blocks")
	}
	total := 0.0
	segLen := m.cfg.ArcSegmentMM
	for i, blk := range blocks {
		if blk.Length > segLen*1.01 {
			t.Fatalf("chord %d length %v exceeds arc segment bound %v", i, blk.Length, segLen)
		}
		total += blk.Length
	}
	want := math.Pi * 5
	if math.Abs(total-want) > want*0.01 {
		t.Fatalf("total chord length = %v, want ~%v (pi*r)", total, want)
	}
	if math.Abs(m.Position[0]-10) > 1e-6 || math.Abs(m.Position[1]) > 1e-6 {
		t.Fatalf("Position after semicircle = %v, want (10,0)", m.Position[:2])
	}
}

// A helical arc (G2 with motion on the plane's third axis) ramps the
// helical axis linearly across the chords, not in a single end jump.
func TestArcFeedHelicalAxisRampsLinearly(t *testing.T) {
	m, q := newTestMachine(t)
	m.cfg.ArcSegmentMM = 1.0

	b, status := gcode.NextBlock("G17 G2 X10 Y0 Z3 I5 J0 F600")
	if status != core.StatusOK {
		t.Fatalf("parse failed: %v", status)
	}
	if s := m.Execute(b); s != core.StatusOK {
		t.Fatalf("Execute: %v", s)
	}

	blocks := q.Snapshot()
	n := len(blocks)
	if n < 3 {
		t.Fatalf("expected several chords, got %d", n)
	}
	for i, blk := range blocks {
		want := 3.0 * float64(i+1) / float64(n)
		if math.Abs(blk.Target[2]-want) > 1e-9 {
			t.Fatalf("chord %d Z = %v, want %v (linear ramp)", i, blk.Target[2], want)
		}
	}
	if math.Abs(m.Position[2]-3) > 1e-9 {
		t.Fatalf("Position[Z] after helix = %v, want 3", m.Position[2])
	}
}
