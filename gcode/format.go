package gcode

import "strconv"

// Format renders the block back into a single G-code line that NextBlock
// parses to an equivalent Block, used by the host tooling to echo
// normalized blocks. Comments and (MSG ...) text are not reproduced;
// words appear in a fixed canonical order, one space apart.
func (b *Block) Format() string {
	var out []byte

	if b.LineNumber != nil {
		out = appendWord(out, 'N', float64(*b.LineNumber))
	}
	if b.FeedMode != nil {
		switch *b.FeedMode {
		case FeedModeInverseTime:
			out = appendWord(out, 'G', 93)
		case FeedModeUnitsPerMinute:
			out = appendWord(out, 'G', 94)
		}
	}
	if b.Plane != nil {
		switch *b.Plane {
		case PlaneXY:
			out = appendWord(out, 'G', 17)
		case PlaneXZ:
			out = appendWord(out, 'G', 18)
		case PlaneYZ:
			out = appendWord(out, 'G', 19)
		}
	}
	if b.Units != nil {
		if *b.Units == UnitsInches {
			out = appendWord(out, 'G', 20)
		} else {
			out = appendWord(out, 'G', 21)
		}
	}
	if b.DistanceMode != nil {
		if *b.DistanceMode == DistanceAbsolute {
			out = appendWord(out, 'G', 90)
		} else {
			out = appendWord(out, 'G', 91)
		}
	}
	if b.PathControl != nil {
		switch *b.PathControl {
		case PathExactPath:
			out = appendWord(out, 'G', 61)
		case PathExactStop:
			out = appendWord(out, 'G', 61.1)
		case PathContinuous:
			out = appendWord(out, 'G', 64)
		}
	}
	if b.AbsoluteOverride {
		out = appendWord(out, 'G', 53)
	}

	switch b.NextAction {
	case ActionDwell:
		out = appendWord(out, 'G', 4)
	case ActionReturnToHome:
		out = appendWord(out, 'G', 28)
	case ActionHomingCycle:
		out = appendWord(out, 'G', 30)
	case ActionOffsetCoordinates:
		if b.ZeroOffsets {
			out = appendWord(out, 'G', 92.1)
		} else {
			out = appendWord(out, 'G', 92)
		}
	}

	if b.MotionMode != nil {
		switch *b.MotionMode {
		case MotionTraverse:
			out = appendWord(out, 'G', 0)
		case MotionFeed:
			out = appendWord(out, 'G', 1)
		case MotionCWArc:
			out = appendWord(out, 'G', 2)
		case MotionCCWArc:
			out = appendWord(out, 'G', 3)
		case MotionCancelled:
			out = appendWord(out, 'G', 80)
		}
	}

	if b.Spindle != nil {
		switch *b.Spindle {
		case SpindleCW:
			out = appendWord(out, 'M', 3)
		case SpindleCCW:
			out = appendWord(out, 'M', 4)
		case SpindleOff:
			out = appendWord(out, 'M', 5)
		}
	}
	if b.ChangeTool {
		out = appendWord(out, 'M', 6)
	}
	if b.ProgramFlow != nil {
		if *b.ProgramFlow == ProgramPaused {
			out = appendWord(out, 'M', 0)
		} else {
			out = appendWord(out, 'M', 2)
		}
	}

	if b.ToolNumber != nil {
		out = appendWord(out, 'T', float64(*b.ToolNumber))
	}
	if b.FeedRate != nil {
		out = appendWord(out, 'F', *b.FeedRate)
	}
	if b.SpindleRPM != nil {
		out = appendWord(out, 'S', *b.SpindleRPM)
	}
	if b.DwellTime != nil {
		out = appendWord(out, 'P', *b.DwellTime)
	}

	axisLetters := [NumAxes]byte{'X', 'Y', 'Z', 'A', 'B', 'C'}
	for i, w := range b.Target {
		if w != nil {
			out = appendWord(out, axisLetters[i], *w)
		}
	}
	offsetLetters := [3]byte{'I', 'J', 'K'}
	for i, w := range b.ArcOffset {
		if w != nil {
			out = appendWord(out, offsetLetters[i], *w)
		}
	}
	if b.ArcRadius != nil {
		out = appendWord(out, 'R', *b.ArcRadius)
	}

	return string(out)
}

func appendWord(out []byte, letter byte, value float64) []byte {
	if len(out) > 0 {
		out = append(out, ' ')
	}
	out = append(out, letter)
	return strconv.AppendFloat(out, value, 'f', -1, 64)
}
