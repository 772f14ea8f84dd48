// Package canon implements the canonical machine: the authoritative
// machining model (position, active coordinate system, modal state) and
// the action primitives (straight traverse, straight feed, arc feed,
// dwell, return to home, set origin) that turn a parsed gcode.Block into
// planner.Queue enqueues. Six axes (XYZABC), nine G54-G59.3 coordinate
// systems plus a G92 origin offset, arc decomposition bounded by a
// configured chord length, and RS-274/NGC table-8 execution order.
package canon

import (
	"math"

	"tinyg/config"
	"tinyg/core"
	"tinyg/gcode"
	"tinyg/kinematics"
	"tinyg/planner"
)

// Machine is the canonical machine: position plus every active modal
// group.
type Machine struct {
	// Position is the current machine position in machine coordinates
	// (mm / degrees). It is advanced optimistically at planner-enqueue
	// time, so later blocks plan from the logical end of queued motion.
	Position [kinematics.NumAxes]float64

	MotionMode   gcode.MotionMode
	DistanceMode gcode.DistanceMode
	FeedMode     gcode.FeedMode
	Units        gcode.Units
	Plane        gcode.Plane
	PathControl  gcode.PathControl
	ProgramFlow  gcode.ProgramFlow
	Spindle      gcode.SpindleState
	SpindleRPM   float64
	Tool         int
	LineNumber   uint32

	ActiveCoordSystem int                         // 0..8, index into cfg.CoordinateSystem (G54..G59.3)
	OriginOffset      [kinematics.NumAxes]float64 // G92

	FeedRate float64 // as entered: per minute in the block's units (mm, in, or deg), or moves per minute under G93

	kin    *kinematics.Cartesian
	limits *planner.Limits
	cfg    *config.Config
	queue  *planner.Queue

	axisSwitches [kinematics.NumAxes]*core.LimitSwitch // set by SetAxisSwitches; nil entries skip homing
	pump         func()                                // set by SetMotionPump; nil makes HomingCycle a no-op

	messages []string // pending (MSG ...) forwards, drained by the host console
}

// millimetersPerInch converts G20 (inches) input to the machine's native
// mm/degree units; all unit conversion happens in this package.
const millimetersPerInch = 25.4

// New builds a Machine starting at the origin, in absolute/mm/XY-plane/
// continuous-path default modal state.
func New(cfg *config.Config, queue *planner.Queue) *Machine {
	limits := cfg.PlannerLimits()
	m := &Machine{
		DistanceMode: gcode.DistanceAbsolute,
		FeedMode:     gcode.FeedModeUnitsPerMinute,
		Units:        cfg.UnitsDefault,
		Plane:        gcode.PlaneXY,
		PathControl:  gcode.PathContinuous,
		ProgramFlow:  gcode.ProgramFlowNone,
		Spindle:      gcode.SpindleOff,
		kin:          kinematics.NewCartesian(cfg.KinematicsAxes()),
		limits:       &limits,
		cfg:          cfg,
		queue:        queue,
	}
	return m
}

// Execute dispatches one parsed block's word values onto the canonical
// machine, in RS-274/NGC table-8 order: feed-rate-mode, feed, spindle
// speed, tool select, tool change, spindle on/off, dwell, plane, units,
// absolute/incremental, home/offset, motion, stop. Returns early on any
// non-OK status.
func (m *Machine) Execute(b *gcode.Block) core.Status {
	if b.LineNumber != nil {
		m.LineNumber = *b.LineNumber
	}
	if b.Message != "" {
		m.messages = append(m.messages, b.Message)
	}

	if b.FeedMode != nil {
		m.FeedMode = *b.FeedMode
	}
	if b.FeedRate != nil {
		m.FeedRate = *b.FeedRate
	}
	if b.SpindleRPM != nil {
		m.SpindleRPM = *b.SpindleRPM
	}
	if b.ToolNumber != nil {
		m.Tool = *b.ToolNumber
	}
	if b.ChangeTool {
		if s := m.changeTool(); s != core.StatusOK {
			return s
		}
	}
	if b.Spindle != nil {
		m.Spindle = *b.Spindle
	}
	if b.NextAction == gcode.ActionDwell {
		seconds := 0.0
		if b.DwellTime != nil {
			seconds = *b.DwellTime
		}
		if s := m.Dwell(seconds); s != core.StatusOK {
			return s
		}
	}
	if b.Plane != nil {
		m.Plane = *b.Plane
	}
	if b.Units != nil {
		m.Units = *b.Units
	}
	if b.DistanceMode != nil {
		m.DistanceMode = *b.DistanceMode
	}
	if b.PathControl != nil {
		m.PathControl = *b.PathControl
	}

	switch b.NextAction {
	case gcode.ActionReturnToHome:
		if s := m.ReturnToHome(); s != core.StatusOK {
			return s
		}
	case gcode.ActionHomingCycle:
		if s := m.HomingCycle(); s != core.StatusOK {
			return s
		}
	case gcode.ActionOffsetCoordinates:
		m.setOriginOffsets(b)
	case gcode.ActionMotion:
		if b.MotionMode != nil {
			m.MotionMode = *b.MotionMode
		}
		if s := m.executeMotion(b); s != core.StatusOK {
			return s
		}
	default:
		// A bare axis-word block (no G-word at all) still moves, under the
		// modal motion mode in effect.
		if b.HasMotion() {
			if s := m.executeMotion(b); s != core.StatusOK {
				return s
			}
		}
	}

	if b.ProgramFlow != nil {
		m.ProgramFlow = *b.ProgramFlow
	}
	return core.StatusOK
}

// DrainMessages returns and clears any (MSG ...) text queued since the
// last call, for the host console to print.
func (m *Machine) DrainMessages() []string {
	out := m.messages
	m.messages = nil
	return out
}

func (m *Machine) changeTool() core.Status {
	// Tool-length compensation and tool-change cycles are not
	// implemented; the change is accepted as an instantaneous modal
	// acknowledgment only.
	return core.StatusOK
}

// toMachineUnits scales a value entered under the block's current unit
// system into the machine's native mm/degree space.
func (m *Machine) toMachineUnits(v float64) float64 {
	if m.Units == gcode.UnitsInches {
		return v * millimetersPerInch
	}
	return v
}

// workOffset returns the active coordinate system's offset plus the G92
// origin offset: the sum that maps work position to machine position.
func (m *Machine) workOffset(axis int) float64 {
	cs := m.cfg.CoordinateSystem[m.ActiveCoordSystem]
	return cs[axis] + m.OriginOffset[axis]
}

// resolveTarget builds the move target: each axis's word value (if
// present) is unit-converted and, in absolute mode (or under a G53
// override), offset into machine coordinates; in incremental mode, it's
// added to the current machine position. An axis with no word in this
// block keeps the current machine position in absolute mode, or
// contributes zero delta in incremental mode, so an unset axis never
// teleports.
func (m *Machine) resolveTarget(b *gcode.Block) [kinematics.NumAxes]float64 {
	target := m.Position
	absolute := m.DistanceMode == gcode.DistanceAbsolute || b.AbsoluteOverride
	for i := 0; i < kinematics.NumAxes; i++ {
		w := b.Target[i]
		if w == nil {
			continue // absent: stays at current machine position (absolute) or contributes no delta (incremental, handled below)
		}
		v := m.toMachineUnits(*w)
		if absolute {
			if !b.AbsoluteOverride {
				v += m.workOffset(i)
			}
			target[i] = v
		} else {
			target[i] = m.Position[i] + v
		}
	}
	return target
}

func (m *Machine) executeMotion(b *gcode.Block) core.Status {
	switch m.MotionMode {
	case gcode.MotionTraverse:
		return m.StraightTraverse(m.resolveTarget(b))
	case gcode.MotionFeed:
		return m.StraightFeed(m.resolveTarget(b))
	case gcode.MotionCWArc, gcode.MotionCCWArc:
		target := m.resolveTarget(b)
		var offset [3]float64
		for i, w := range b.ArcOffset {
			if w != nil {
				offset[i] = m.toMachineUnits(*w)
			}
		}
		var radius *float64
		if b.ArcRadius != nil {
			r := m.toMachineUnits(*b.ArcRadius)
			radius = &r
		}
		return m.ArcFeed(target, offset, radius, m.MotionMode == gcode.MotionCWArc)
	default:
		return core.StatusOK
	}
}

func (m *Machine) setOriginOffsets(b *gcode.Block) {
	if b.ZeroOffsets {
		for i := range m.OriginOffset {
			m.OriginOffset[i] = 0
		}
		return
	}
	for i := 0; i < kinematics.NumAxes; i++ {
		w := b.Target[i]
		if w == nil {
			continue
		}
		// G92 X<v> means: the current position, in work coordinates,
		// becomes v. Solve for the origin offset that makes that true.
		v := m.toMachineUnits(*w)
		cs := m.cfg.CoordinateSystem[m.ActiveCoordSystem][i]
		m.OriginOffset[i] = m.Position[i] - cs - v
	}
}

// cruiseFeedRate resolves the requested F word into a planner cruise
// velocity in mm/s, honoring the G93/G94 feed-rate mode.
func (m *Machine) cruiseFeedRate(length float64) float64 {
	if m.FeedMode == gcode.FeedModeInverseTime {
		if m.FeedRate <= 0 || length <= 0 {
			return 0
		}
		// F is "moves per minute": the whole move must complete in
		// 1/F minutes.
		minutes := 1.0 / m.FeedRate
		return length / (minutes * 60.0)
	}
	return m.toMachineUnits(m.FeedRate) / 60.0
}

// enqueueLinear builds a planner.MoveRequest for a straight move from the
// current position to target and enqueues it, advancing Position only if
// the enqueue takes effect. No retry on StatusEAgain here: the status is
// returned to the caller, and nothing in the controller or the host
// console resubmits the block.
func (m *Machine) enqueueLinear(target [kinematics.NumAxes]float64, cruise float64) core.Status {
	var min, max [kinematics.NumAxes]float64
	for i, a := range m.cfg.Axis {
		min[i] = 0
		max[i] = a.TravelMax
	}
	if _, ok := kinematics.CheckLimits(target, min, max); !ok {
		return core.StatusSoftLimitExceeded
	}

	delta, length, dir := m.kin.Displacement(m.Position, target)
	if length == 0 {
		return core.StatusNOOP
	}
	steps := kinematics.StepsForDelta(delta, m.kin.Axes, m.stepsPerUnit())

	req := planner.MoveRequest{
		Line:            m.LineNumber,
		Target:          target,
		Dir:             dir,
		Length:          length,
		Steps:           steps,
		RequestedCruise: cruise,
		ExactStop:       m.PathControl == gcode.PathExactStop,
	}
	status := m.queue.Enqueue(req)
	if status == core.StatusOK {
		m.Position = target
	}
	return status
}

func (m *Machine) stepsPerUnit() [kinematics.NumAxes]float64 {
	var s [kinematics.NumAxes]float64
	for i, a := range m.cfg.Axis {
		s[i] = a.StepsPerUnit()
	}
	return s
}

// StraightTraverse is G0: a rapid move at the axes' velocity cap,
// ignoring F.
func (m *Machine) StraightTraverse(target [kinematics.NumAxes]float64) core.Status {
	return m.enqueueLinear(target, math.MaxFloat64)
}

// StraightFeed is G1: a linear move at the modal feed rate, clamped by
// the axes' projected velocity cap.
func (m *Machine) StraightFeed(target [kinematics.NumAxes]float64) core.Status {
	_, length, _ := m.kin.Displacement(m.Position, target)
	return m.enqueueLinear(target, m.cruiseFeedRate(length))
}

// planeAxes returns the (first, second, third) axis indices for the
// active plane: first/second span the arc, third is the helical axis.
func (m *Machine) planeAxes() (a, b, helical int) {
	switch m.Plane {
	case gcode.PlaneXZ:
		return 0, 2, 1
	case gcode.PlaneYZ:
		return 1, 2, 0
	default:
		return 0, 1, 2
	}
}

// ArcFeed is G2/G3: decomposes a circular arc into a chord sequence whose
// segment length is bounded by cfg.ArcSegmentMM, each chord enqueued as a
// short straight feed.
func (m *Machine) ArcFeed(target [kinematics.NumAxes]float64, offset [3]float64, radius *float64, clockwise bool) core.Status {
	ai, bi, hi := m.planeAxes()
	start := m.Position

	var centerA, centerB float64
	if radius != nil {
		// Solve for the arc center from the endpoint radius form.
		x1, y1 := start[ai], start[bi]
		x2, y2 := target[ai], target[bi]
		dx, dy := x2-x1, y2-y1
		d := math.Hypot(dx, dy)
		if d < 1e-9 {
			return core.StatusArcSpecificationError
		}
		r := *radius
		if math.Abs(r) < d/2-1e-9 {
			return core.StatusArcSpecificationError
		}
		h := math.Sqrt(math.Max(0, r*r-(d/2)*(d/2)))
		mx, my := (x1+x2)/2, (y1+y2)/2
		ux, uy := -dy/d, dx/d
		sign := 1.0
		if (r < 0) == clockwise {
			sign = -1.0
		}
		centerA = mx + sign*h*ux
		centerB = my + sign*h*uy
	} else {
		centerA = start[ai] + offset[0]
		centerB = start[bi] + offset[1]
	}

	r1 := math.Hypot(start[ai]-centerA, start[bi]-centerB)
	r2 := math.Hypot(target[ai]-centerA, target[bi]-centerB)
	if math.Abs(r1-r2) > 0.01*math.Max(r1, 1) {
		return core.StatusArcSpecificationError
	}

	startAngle := math.Atan2(start[bi]-centerB, start[ai]-centerA)
	endAngle := math.Atan2(target[bi]-centerB, target[ai]-centerA)

	var sweep float64
	if clockwise {
		sweep = startAngle - endAngle
		for sweep <= 0 {
			sweep += 2 * math.Pi
		}
		sweep = -sweep
	} else {
		sweep = endAngle - startAngle
		for sweep <= 0 {
			sweep += 2 * math.Pi
		}
	}

	arcLength := math.Abs(sweep) * r1
	segLen := m.cfg.ArcSegmentMM
	if segLen <= 0 {
		segLen = 0.1
	}
	segments := int(math.Ceil(arcLength / segLen))
	if segments < 1 {
		segments = 1
	}

	feedCruise := m.cruiseFeedRate(arcLength)
	for s := 1; s <= segments; s++ {
		frac := float64(s) / float64(segments)
		angle := startAngle + sweep*frac
		chord := m.Position
		chord[ai] = centerA + r1*math.Cos(angle)
		chord[bi] = centerB + r1*math.Sin(angle)
		chord[hi] = start[hi] + (target[hi]-start[hi])*frac
		if s == segments {
			chord = target
		}
		if status := m.enqueueLinear(chord, feedCruise); status != core.StatusOK {
			return status
		}
	}
	return core.StatusOK
}

// Dwell is G4: enqueues a pure time hold. P is in seconds, per NIST
// RS-274/NGC.
func (m *Machine) Dwell(seconds float64) core.Status {
	return m.queue.EnqueueDwell(planner.DwellRequest{Line: m.LineNumber, Seconds: seconds})
}

// ReturnToHome is G28: traverse to the machine origin.
func (m *Machine) ReturnToHome() core.Status {
	var home [kinematics.NumAxes]float64
	return m.StraightTraverse(home)
}

// SetAxisSwitches registers the limit switches HomingCycle drives, one per
// axis (a nil entry skips that axis, as does AxisModeDisabled or
// SwitchModeDisabled). The controller that owns the GPIO pins constructs
// these and wires them in once at startup; switch debouncing lives in
// core, not here.
func (m *Machine) SetAxisSwitches(switches [kinematics.NumAxes]*core.LimitSwitch) {
	m.axisSwitches = switches
}

// SetMotionPump registers the callback HomingCycle uses to advance the
// machine's clock (core.ProcessTimers plus a segment-generator/step-
// executor tick) while it waits for a queued homing move to drain or a
// limit switch to trip. A nil pump (the default) makes HomingCycle a
// documented no-op, for builds with no homing hardware wired.
func (m *Machine) SetMotionPump(pump func()) {
	m.pump = pump
}

// homingSampleTicks/homingSampleCount tune the limit-switch debounce during
// a homing seek (core.LimitSwitch.Arm): roughly 1ms between samples, 3
// consecutive confirmations before a trigger is believed.
const (
	homingSampleTicks   = core.TimerFreq / 1000
	homingSampleCount   = 3
	homingProbeDistance = 1.0 // mm or deg per seek probe
	homingPumpBudget    = 200_000
)

// HomingCycle is G30: seeks each configured axis's limit switch in turn
// (a fast search pass, a backoff, a slow latch pass to re-confirm the
// trip point, and a final backoff), then sets that axis's position to 0.
// Returns StatusOK with no motion if no motion pump is wired (SetMotionPump
// never called), for builds with no physical switches.
func (m *Machine) HomingCycle() core.Status {
	if m.pump == nil {
		return core.StatusOK
	}
	for axis := 0; axis < kinematics.NumAxes; axis++ {
		a := m.cfg.Axis[axis]
		if a.Mode == config.AxisModeDisabled || a.SwitchMode == config.SwitchModeDisabled {
			continue
		}
		ls := m.axisSwitches[axis]
		if ls == nil {
			continue
		}
		if s := m.homeAxis(axis, ls, a); s != core.StatusOK {
			return s
		}
	}
	return core.StatusOK
}

// homeAxis runs one axis's search/backoff/latch/backoff sequence. The
// search and latch passes move in the negative direction, toward the home
// switch; the backoffs move back out positive.
func (m *Machine) homeAxis(axis int, ls *core.LimitSwitch, a config.AxisConfig) core.Status {
	if s := m.seekSwitch(axis, ls, -a.SearchVelocity); s != core.StatusOK {
		return s
	}
	if s := m.homingMove(axis, a.SearchBackoff, math.MaxFloat64); s != core.StatusOK {
		return s
	}
	if s := m.drainQueue(); s != core.StatusOK {
		return s
	}
	if s := m.seekSwitch(axis, ls, -a.LatchVelocity); s != core.StatusOK {
		return s
	}
	if s := m.homingMove(axis, a.LatchBackoff, math.MaxFloat64); s != core.StatusOK {
		return s
	}
	if s := m.drainQueue(); s != core.StatusOK {
		return s
	}
	m.Position[axis] = 0
	return core.StatusOK
}

// seekSwitch feeds axis a sequence of small probe moves at velocity (its
// sign sets direction), draining each probe before issuing the next, until
// ls reports triggered. A core.HoldSync races the switch's debounced
// trigger (armed via core.LimitSwitch.Arm) against a per-probe expiry.
// Once triggered, the in-flight probe is cut short with a feed-hold.
// Returns StatusInternalError if the switch is never found within twice
// the axis's travel envelope: a homing move must not search forever.
func (m *Machine) seekSwitch(axis int, ls *core.LimitSwitch, velocity float64) core.Status {
	a := m.cfg.Axis[axis]
	step := math.Copysign(homingProbeDistance, velocity)
	maxProbes := int(2*a.TravelMax/homingProbeDistance) + 1

	for i := 0; i < maxProbes; i++ {
		start := core.GetTime()
		sync := core.NewHoldSync()
		sync.Arm(start, 0)
		ls.Arm(start, homingSampleTicks, homingSampleCount, homingSampleTicks, sync, 1)
		sync.SetExpiry(start+m.homingTimeoutTicks(velocity), 2)

		if s := m.homingMove(axis, step, math.Abs(velocity)); s != core.StatusOK {
			ls.Disarm()
			return s
		}

		triggered := false
		for j := 0; j < homingPumpBudget; j++ {
			m.pump()
			if done, reason := sync.Triggered(); done {
				triggered = reason == 1
				break
			}
			if m.queue.Len() == 0 {
				break
			}
		}
		ls.Disarm()

		if triggered {
			m.queue.FeedHold()
			return m.drainQueue()
		}
	}
	return core.StatusInternalError
}

// homingTimeoutTicks bounds one probe's debounce race: generous enough that
// a slow LatchVelocity probe still completes before its watchdog expires.
func (m *Machine) homingTimeoutTicks(velocity float64) uint32 {
	v := math.Abs(velocity)
	if v < 1e-6 {
		v = 1
	}
	seconds := (homingProbeDistance / v) * 4
	if seconds < 0.05 {
		seconds = 0.05
	}
	return uint32(seconds * float64(core.TimerFreq))
}

// homingMove enqueues a single-axis move of delta (mm/deg, signed) without
// soft-limit validation: unlike enqueueLinear, homing must be able to
// travel past the configured travel envelope while searching for the
// physical switch; the switch itself, not TravelMax, is the boundary it
// polices against. cruise is the requested velocity (mm/s or deg/s); the
// planner clamps it to the axis velocity cap.
func (m *Machine) homingMove(axis int, delta, cruise float64) core.Status {
	target := m.Position
	target[axis] += delta
	delta3, length, dir := m.kin.Displacement(m.Position, target)
	if length == 0 {
		return core.StatusNOOP
	}
	steps := kinematics.StepsForDelta(delta3, m.kin.Axes, m.stepsPerUnit())

	req := planner.MoveRequest{
		Line:            m.LineNumber,
		Target:          target,
		Dir:             dir,
		Length:          length,
		Steps:           steps,
		RequestedCruise: cruise,
		ExactStop:       true,
	}
	status := m.queue.Enqueue(req)
	if status == core.StatusOK {
		m.Position = target
	}
	return status
}

// drainQueue pumps the motion pipeline until the planner queue empties,
// for callers (a homing backoff) that just need a move to finish with no
// switch to race.
func (m *Machine) drainQueue() core.Status {
	for i := 0; i < homingPumpBudget; i++ {
		if m.queue.Len() == 0 {
			return core.StatusOK
		}
		m.pump()
	}
	return core.StatusInternalError
}

// Message queues free text for the host console, as a direct canonical
// "message" primitive; Execute queues a block's (MSG ...) text itself.
func (m *Machine) Message(text string) {
	m.messages = append(m.messages, text)
}

// SetFeedRate sets the modal feed rate directly, bypassing a parsed F
// word.
func (m *Machine) SetFeedRate(v float64) { m.FeedRate = v }

// There is no persistent G53 state: G53 applies only to
// the block that carries it, so resolveTarget reads
// gcode.Block.AbsoluteOverride directly instead of any Machine field.
