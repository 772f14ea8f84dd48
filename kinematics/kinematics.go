// Package kinematics maps the six-axis position vector onto the
// geometric length and unit direction the motion planner needs: the L2
// norm of the participating linear axes, with rotary axes scaled by their
// configured radius to join the norm.
package kinematics

import "math"

// NumAxes is the machine's axis count: X Y Z A B C.
const NumAxes = 6

// AxisKind distinguishes linear axes (mm) from rotary axes (degrees);
// rotary axes must be scaled by a configured radius before they can be
// combined with linear axes in a single Euclidean norm.
type AxisKind uint8

const (
	Linear AxisKind = iota
	Rotary
)

// Axis carries the per-axis geometry the joined norm needs.
type Axis struct {
	Kind AxisKind
	// Radius converts a rotary axis's degrees into an equivalent linear
	// travel for the purposes of joining the Cartesian norm. Unused for
	// Linear axes.
	Radius float64
}

// Cartesian is the identity kinematics: machine position equals work
// position mapped 1:1 per axis (no delta/corexy transform). It still
// performs the rotary-axis norm join, which a pure XYZ-only kinematics
// would not need.
type Cartesian struct {
	Axes [NumAxes]Axis
}

// NewCartesian returns a Cartesian kinematics with the given per-axis
// geometry (radius only meaningful for Rotary kinds).
func NewCartesian(axes [NumAxes]Axis) *Cartesian {
	return &Cartesian{Axes: axes}
}

// DefaultCartesian returns a Cartesian kinematics with all six axes linear
// (A/B/C default to degrees-as-mm, with no radius applied), the common case when a
// machine has no configured rotary radius.
func DefaultCartesian() *Cartesian {
	var axes [NumAxes]Axis
	for i := range axes {
		axes[i] = Axis{Kind: Linear}
	}
	return &Cartesian{Axes: axes}
}

// Displacement computes, for a move from start to target, the per-axis
// delta already scaled into the joined geometric space (rotary deltas
// multiplied by their radius), the total Euclidean length in that space,
// and the corresponding unit direction vector.
//
// A zero-length move (identical start/target) returns a zero direction
// vector and length 0; callers must treat that as "nothing to plan."
func (k *Cartesian) Displacement(start, target [NumAxes]float64) (delta [NumAxes]float64, length float64, dir [NumAxes]float64) {
	for i := 0; i < NumAxes; i++ {
		d := target[i] - start[i]
		if k.Axes[i].Kind == Rotary {
			r := k.Axes[i].Radius
			if r == 0 {
				r = 1
			}
			d = d * (math.Pi / 180) * r
		}
		delta[i] = d
		length += d * d
	}
	length = math.Sqrt(length)
	if length < 1e-12 {
		return delta, 0, dir
	}
	for i := 0; i < NumAxes; i++ {
		dir[i] = delta[i] / length
	}
	return delta, length, dir
}

// StepsForDelta converts a joined-space per-axis delta back into raw
// machine-units delta (undoing the rotary radius scale) and then into
// signed integer step counts using stepsPerUnit.
func StepsForDelta(delta [NumAxes]float64, axes [NumAxes]Axis, stepsPerUnit [NumAxes]float64) [NumAxes]int32 {
	var steps [NumAxes]int32
	for i := 0; i < NumAxes; i++ {
		d := delta[i]
		if axes[i].Kind == Rotary {
			r := axes[i].Radius
			if r == 0 {
				r = 1
			}
			d = d / (math.Pi / 180) / r
		}
		steps[i] = int32(math.Round(d * stepsPerUnit[i]))
	}
	return steps
}

// CheckLimits validates a candidate machine position against configured
// per-axis travel bounds (the soft limits).
func CheckLimits(pos [NumAxes]float64, min, max [NumAxes]float64) (axis int, ok bool) {
	for i := 0; i < NumAxes; i++ {
		if pos[i] < min[i] || pos[i] > max[i] {
			return i, false
		}
	}
	return -1, true
}
