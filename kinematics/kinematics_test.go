package kinematics

import (
	"math"
	"testing"
)

func TestDisplacementPureLinear(t *testing.T) {
	k := DefaultCartesian()
	start := [NumAxes]float64{0, 0, 0, 0, 0, 0}
	target := [NumAxes]float64{3, 4, 0, 0, 0, 0}

	delta, length, dir := k.Displacement(start, target)
	if math.Abs(length-5) > 1e-9 {
		t.Fatalf("length = %v, want 5", length)
	}
	if math.Abs(delta[0]-3) > 1e-9 || math.Abs(delta[1]-4) > 1e-9 {
		t.Fatalf("delta = %v, want [3 4 0 0 0 0]", delta)
	}
	if math.Abs(dir[0]-0.6) > 1e-9 || math.Abs(dir[1]-0.8) > 1e-9 {
		t.Fatalf("dir = %v, want [0.6 0.8 ...]", dir)
	}
}

func TestDisplacementRotaryJoinsViaRadius(t *testing.T) {
	var axes [NumAxes]Axis
	axes[3] = Axis{Kind: Rotary, Radius: 10}
	k := NewCartesian(axes)

	start := [NumAxes]float64{}
	target := [NumAxes]float64{0, 0, 0, 90}

	_, length, _ := k.Displacement(start, target)
	want := 90 * (math.Pi / 180) * 10
	if math.Abs(length-want) > 1e-9 {
		t.Fatalf("length = %v, want %v", length, want)
	}
}

func TestDisplacementZeroLengthMove(t *testing.T) {
	k := DefaultCartesian()
	pos := [NumAxes]float64{1, 2, 3, 0, 0, 0}

	_, length, dir := k.Displacement(pos, pos)
	if length != 0 {
		t.Fatalf("length = %v, want 0", length)
	}
	for i, d := range dir {
		if d != 0 {
			t.Fatalf("dir[%d] = %v, want 0 on a zero-length move", i, d)
		}
	}
}

func TestStepsForDeltaSignedCounts(t *testing.T) {
	var axes [NumAxes]Axis
	delta := [NumAxes]float64{1.0, -1.0, 0, 0, 0, 0}
	stepsPerUnit := [NumAxes]float64{80, 80, 80, 0, 0, 0}

	steps := StepsForDelta(delta, axes, stepsPerUnit)
	if steps[0] != 80 || steps[1] != -80 {
		t.Fatalf("steps = %v, want [80 -80 0 0 0 0]", steps)
	}
}

func TestCheckLimits(t *testing.T) {
	min := [NumAxes]float64{0, 0, 0, 0, 0, 0}
	max := [NumAxes]float64{100, 100, 100, 0, 0, 0}

	if axis, ok := CheckLimits([NumAxes]float64{50, 50, 50, 0, 0, 0}, min, max); !ok {
		t.Fatalf("expected position within limits, got axis %d out of range", axis)
	}
	if axis, ok := CheckLimits([NumAxes]float64{150, 0, 0, 0, 0, 0}, min, max); ok || axis != 0 {
		t.Fatalf("expected axis 0 out of range, got axis=%d ok=%v", axis, ok)
	}
}
