package planner

import "math"

// sCurvePhase computes the duration and distance of a jerk-limited
// acceleration ramp from v0 to v1 (either direction): a jerk-up sub-phase
// and (optionally) a constant-acceleration sub-phase such that peak
// acceleration stays within amax and peak jerk within jmax.
//
// The ramp is symmetric about its midpoint (jerk-up, optional constant
// accel, jerk-down), which makes its average velocity exactly (v0+v1)/2
// regardless of whether the constant-accel plateau is present, the same
// identity that holds for a plain constant-acceleration trapezoid, so
// distance = avg(v0,v1) * duration in both cases.
func sCurvePhase(v0, v1, amax, jmax float64) (duration, distance float64) {
	dv := v1 - v0
	if dv < 0 {
		dv = -dv
	}
	if dv < 1e-12 || amax <= 0 || jmax <= 0 {
		return 0, 0
	}

	// Maximum velocity change achievable with a pure jerk-up/jerk-down
	// ramp (no constant-acceleration plateau), reached when peak
	// acceleration hits amax exactly as the ramp completes.
	dvTriangle := amax * amax / jmax

	if dv <= dvTriangle {
		peak := math.Sqrt(dv * jmax)
		tj := peak / jmax
		duration = 2 * tj
	} else {
		tj := amax / jmax
		remaining := dv - dvTriangle
		tConst := remaining / amax
		duration = 2*tj + tConst
	}

	distance = (v0 + v1) / 2 * duration
	return duration, distance
}

// splitPhases computes the three phase durations (head: accelerate entry
// to cruise; body: constant cruise; tail: decelerate cruise to exit) from
// the move's length and the acceleration/jerk caps. If the head and tail
// distances would overrun the available length, cruise is lowered to the
// largest V satisfying the trapezoidal relation
// `L = (V² − entry²)/(2a) + (V² − exit²)/(2a)` and the body collapses to
// zero duration.
func splitPhases(entry, cruise, exit, length, amax, jmax float64) (headDur, bodyDur, tailDur, cruiseOut float64) {
	headDur, headDist := sCurvePhase(entry, cruise, amax, jmax)
	tailDur, tailDist := sCurvePhase(cruise, exit, amax, jmax)

	if headDist+tailDist > length && amax > 0 {
		v2 := (2*amax*length + entry*entry + exit*exit) / 2
		if v2 < 0 {
			v2 = 0
		}
		v := math.Sqrt(v2)
		if v < entry {
			v = entry
		}
		if v < exit {
			v = exit
		}
		cruise = v
		headDur, _ = sCurvePhase(entry, cruise, amax, jmax)
		tailDur, _ = sCurvePhase(cruise, exit, amax, jmax)
		return headDur, 0, tailDur, cruise
	}

	bodyLength := length - headDist - tailDist
	if cruise > 1e-9 {
		bodyDur = bodyLength / cruise
	}
	if bodyDur < 0 {
		bodyDur = 0
	}
	return headDur, bodyDur, tailDur, cruise
}
