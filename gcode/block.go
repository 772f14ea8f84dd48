// Package gcode implements the G-code parser: normalizes a raw text line
// and extracts it into a Block of optional fields, so "explicitly set to
// zero" and "absent" stay distinguishable without a parallel presence
// mask.
package gcode

// MotionMode is the active motion modal group.
type MotionMode uint8

const (
	MotionNone MotionMode = iota
	MotionTraverse
	MotionFeed
	MotionCWArc
	MotionCCWArc
	MotionCancelled
)

// Plane selects the active working plane for arcs (G17/G18/G19).
type Plane uint8

const (
	PlaneNone Plane = iota
	PlaneXY
	PlaneXZ
	PlaneYZ
)

// Units is the block-local unit system (G20/G21).
type Units uint8

const (
	UnitsNone Units = iota
	UnitsInches
	UnitsMM
)

// DistanceMode selects absolute vs. incremental target interpretation
// (G90/G91).
type DistanceMode uint8

const (
	DistanceNone DistanceMode = iota
	DistanceAbsolute
	DistanceIncremental
)

// PathControl is the cornering behavior modal group (G61/G61.1/G64).
type PathControl uint8

const (
	PathControlNone PathControl = iota
	PathExactPath
	PathExactStop
	PathContinuous
)

// FeedMode selects how F is interpreted (G93/G94).
type FeedMode uint8

const (
	FeedModeNone FeedMode = iota
	FeedModeInverseTime
	FeedModeUnitsPerMinute
)

// SpindleState is the spindle modal group (M3/M4/M5).
type SpindleState uint8

const (
	SpindleNone SpindleState = iota
	SpindleOff
	SpindleCW
	SpindleCCW
)

// ProgramFlow is the program-flow modal group (M0/M1/M2/M30/M60).
type ProgramFlow uint8

const (
	ProgramFlowNone ProgramFlow = iota
	ProgramPaused
	ProgramCompleted
)

// NextAction names the single "verb" this block performs; the canonical
// machine dispatches it in RS-274/NGC table-8 order.
type NextAction uint8

const (
	ActionNone NextAction = iota
	ActionMotion
	ActionDwell
	ActionReturnToHome
	ActionHomingCycle
	ActionOffsetCoordinates
)

// Axis indexes the six-axis position vector.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
	AxisA
	AxisB
	AxisC
	NumAxes
)

// Block is one parsed G-code line: the set of modal-group changes and
// word values it carries, each represented as an optional pointer so the
// canonical machine can tell "explicitly set to zero" from "absent"
// without a parallel presence mask.
type Block struct {
	LineNumber *uint32

	MotionMode       *MotionMode
	NextAction       NextAction
	Plane            *Plane
	Units            *Units
	DistanceMode     *DistanceMode
	PathControl      *PathControl
	FeedMode         *FeedMode
	Spindle          *SpindleState
	ProgramFlow      *ProgramFlow
	ChangeTool       bool
	AbsoluteOverride bool
	ZeroOffsets      bool // G92.1: zero origin offsets instead of setting them

	Target    [NumAxes]*float64
	ArcOffset [3]*float64 // I, J, K
	ArcRadius *float64    // R

	ToolNumber *int
	FeedRate   *float64 // F
	SpindleRPM *float64 // S
	DwellTime  *float64 // P, seconds

	// Comment is the full parenthetical comment text, including the
	// parentheses, if one was present; ';' does not start a comment.
	Comment string
	// Message is set when Comment's body began with the literal MSG
	// (case-insensitive, no leading space); the text after it is
	// forwarded to the host console.
	Message string
}

// HasMotion reports whether this block carries a motion-mode change or any
// axis target (a bare "X10" with no G-word still moves, in whatever motion
// mode is currently modal).
func (b *Block) HasMotion() bool {
	if b.MotionMode != nil {
		return true
	}
	for _, t := range b.Target {
		if t != nil {
			return true
		}
	}
	return false
}
