package gcode

import (
	"strings"

	"tinyg/core"
)

// NextBlock normalizes and parses one line of G-code text. line is
// treated as already stripped of its terminating LF/CR. Letter/value
// scanning and number parsing run over the normalized bytes directly; the
// returned Block and each present word's value are allocated per call.
func NextBlock(line string) (*Block, core.Status) {
	clean, comment, message, blockDelete := normalize(line)
	if blockDelete {
		return nil, core.StatusNOOP
	}

	b := &Block{Comment: comment, Message: message}
	if len(clean) == 0 {
		return b, core.StatusNOOP
	}

	warned := false
	i := 0
	for i < len(clean) {
		letter := clean[i]
		if !isLetter(letter) {
			return nil, core.StatusExpectedCommandLetter
		}
		i++

		value, next, ok := scanNumber(clean, i)
		if !ok {
			return nil, core.StatusBadNumberFormat
		}
		i = next

		status := applyWord(b, letter, value)
		switch status {
		case core.StatusOK:
		case core.StatusWarning:
			warned = true
		default:
			return nil, status
		}
	}

	if warned {
		return b, core.StatusWarning
	}
	return b, core.StatusOK
}

// normalize runs the single normalization pass: block-delete detection,
// uppercasing, character filtering, and parenthetical comment / MSG
// extraction.
func normalize(line string) (clean []byte, comment string, message string, blockDelete bool) {
	i := 0
	n := len(line)
	for i < n && (line[i] == ' ' || line[i] == '\t') {
		i++
	}
	if i < n && line[i] == '/' {
		return nil, "", "", true
	}

	var out []byte
	var commentBuf []byte
	for i < n {
		c := line[i]
		if c == '(' {
			j := i + 1
			for j < n && line[j] != ')' {
				j++
			}
			body := line[i+1 : j]
			if m, ok := extractMessage(body); ok {
				message = m
			}
			commentBuf = append(commentBuf, '(')
			commentBuf = append(commentBuf, body...)
			if j < n {
				commentBuf = append(commentBuf, ')')
				i = j + 1
			} else {
				i = j
			}
			continue
		}

		if c < 0x20 || c == 0x7F {
			i++
			continue
		}
		uc := toUpper(c)
		if isRetained(uc) {
			out = append(out, uc)
		}
		i++
	}
	return out, string(commentBuf), message, false
}

// extractMessage recognizes "(MSG ...)" forwarding: a comment body
// beginning with the case-insensitive literal MSG, with no leading space,
// forwards its remainder to the host.
func extractMessage(body string) (string, bool) {
	if len(body) < 3 {
		return "", false
	}
	if !strings.EqualFold(body[:3], "MSG") {
		return "", false
	}
	return strings.TrimSpace(body[3:]), true
}

func isRetained(c byte) bool {
	if c >= '0' && c <= '9' {
		return true
	}
	if c >= 'A' && c <= 'Z' {
		return true
	}
	switch c {
	case '+', '-', '.', '*', '<', '=', '>', '|', '%', '#', '(', ')', '[', ']', '{', '}':
		return true
	}
	return false
}

func isLetter(c byte) bool {
	return c >= 'A' && c <= 'Z'
}

func toUpper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - ('a' - 'A')
	}
	return c
}

// scanNumber parses a signed decimal (with optional fractional part)
// starting at pos. Returns ok=false if no valid number is present.
func scanNumber(data []byte, pos int) (value float64, next int, ok bool) {
	start := pos
	negative := false
	if pos < len(data) && (data[pos] == '+' || data[pos] == '-') {
		negative = data[pos] == '-'
		pos++
	}

	intStart := pos
	intPart := 0.0
	for pos < len(data) && data[pos] >= '0' && data[pos] <= '9' {
		intPart = intPart*10 + float64(data[pos]-'0')
		pos++
	}
	hasInt := pos > intStart

	fracPart := 0.0
	fracDigits := 0
	hasFrac := false
	if pos < len(data) && data[pos] == '.' {
		hasFrac = true
		pos++
		for pos < len(data) && data[pos] >= '0' && data[pos] <= '9' {
			fracPart = fracPart*10 + float64(data[pos]-'0')
			fracDigits++
			pos++
		}
	}

	if !hasInt && !(hasFrac && fracDigits > 0) {
		return 0, start, false
	}

	value = intPart
	if fracDigits > 0 {
		div := 1.0
		for i := 0; i < fracDigits; i++ {
			div *= 10
		}
		value += fracPart / div
	}
	if negative {
		value = -value
	}
	return value, pos, true
}

func floatPtr(v float64) *float64 { return &v }
func uint32Ptr(v uint32) *uint32  { return &v }
func intPtr(v int) *int           { return &v }

func motionPtr(v MotionMode) *MotionMode        { return &v }
func planePtr(v Plane) *Plane                   { return &v }
func unitsPtr(v Units) *Units                   { return &v }
func distPtr(v DistanceMode) *DistanceMode      { return &v }
func pathPtr(v PathControl) *PathControl        { return &v }
func feedModePtr(v FeedMode) *FeedMode          { return &v }
func spindlePtr(v SpindleState) *SpindleState   { return &v }
func programFlowPtr(v ProgramFlow) *ProgramFlow { return &v }

const epsilon = 1e-6

func near(a, b float64) bool {
	d := a - b
	return d > -epsilon && d < epsilon
}

// applyWord dispatches one (letter, value) statement onto b.
func applyWord(b *Block, letter byte, value float64) core.Status {
	switch letter {
	case 'G':
		return applyGWord(b, value)
	case 'M':
		return applyMWord(b, value)
	case 'T':
		b.ToolNumber = intPtr(int(value))
	case 'F':
		b.FeedRate = floatPtr(value)
	case 'S':
		b.SpindleRPM = floatPtr(value)
	case 'P':
		b.DwellTime = floatPtr(value)
	case 'X':
		b.Target[AxisX] = floatPtr(value)
	case 'Y':
		b.Target[AxisY] = floatPtr(value)
	case 'Z':
		b.Target[AxisZ] = floatPtr(value)
	case 'A':
		b.Target[AxisA] = floatPtr(value)
	case 'B':
		b.Target[AxisB] = floatPtr(value)
	case 'C':
		b.Target[AxisC] = floatPtr(value)
	case 'I':
		b.ArcOffset[0] = floatPtr(value)
	case 'J':
		b.ArcOffset[1] = floatPtr(value)
	case 'K':
		b.ArcOffset[2] = floatPtr(value)
	case 'R':
		b.ArcRadius = floatPtr(value)
	case 'N':
		b.LineNumber = uint32Ptr(uint32(value))
	default:
		return core.StatusUnrecognizedCommand
	}
	return core.StatusOK
}

func applyGWord(b *Block, value float64) core.Status {
	switch {
	case near(value, 0):
		b.MotionMode = motionPtr(MotionTraverse)
		b.NextAction = ActionMotion
	case near(value, 1):
		b.MotionMode = motionPtr(MotionFeed)
		b.NextAction = ActionMotion
	case near(value, 2):
		b.MotionMode = motionPtr(MotionCWArc)
		b.NextAction = ActionMotion
	case near(value, 3):
		b.MotionMode = motionPtr(MotionCCWArc)
		b.NextAction = ActionMotion
	case near(value, 4):
		b.NextAction = ActionDwell
	case near(value, 17):
		b.Plane = planePtr(PlaneXY)
	case near(value, 18):
		b.Plane = planePtr(PlaneXZ)
	case near(value, 19):
		b.Plane = planePtr(PlaneYZ)
	case near(value, 20):
		b.Units = unitsPtr(UnitsInches)
	case near(value, 21):
		b.Units = unitsPtr(UnitsMM)
	case near(value, 28):
		b.NextAction = ActionReturnToHome
	case near(value, 30):
		b.NextAction = ActionHomingCycle
	case near(value, 53):
		b.AbsoluteOverride = true
	case near(value, 61):
		b.PathControl = pathPtr(PathExactPath)
	case near(value, 61.1):
		b.PathControl = pathPtr(PathExactStop)
	case near(value, 64):
		b.PathControl = pathPtr(PathContinuous)
	case near(value, 80):
		b.MotionMode = motionPtr(MotionCancelled)
	case near(value, 90):
		b.DistanceMode = distPtr(DistanceAbsolute)
	case near(value, 91):
		b.DistanceMode = distPtr(DistanceIncremental)
	case near(value, 92):
		b.NextAction = ActionOffsetCoordinates
	case near(value, 92.1):
		b.NextAction = ActionOffsetCoordinates
		b.ZeroOffsets = true
	case near(value, 93):
		b.FeedMode = feedModePtr(FeedModeInverseTime)
	case near(value, 94):
		b.FeedMode = feedModePtr(FeedModeUnitsPerMinute)
	case value >= 40 && value <= 43, near(value, 49):
		// Cutter compensation: accepted, ignored (non-goal).
	default:
		return core.StatusUnrecognizedCommand
	}
	return core.StatusOK
}

func applyMWord(b *Block, value float64) core.Status {
	switch int(value) {
	case 0, 1:
		b.ProgramFlow = programFlowPtr(ProgramPaused)
	case 2, 30, 60:
		b.ProgramFlow = programFlowPtr(ProgramCompleted)
	case 3:
		b.Spindle = spindlePtr(SpindleCW)
	case 4:
		b.Spindle = spindlePtr(SpindleCCW)
	case 5:
		b.Spindle = spindlePtr(SpindleOff)
	case 6:
		b.ChangeTool = true
	case 7, 8, 9, 48, 49:
		// Coolant / override enables: accepted, ignored (non-goal).
	default:
		// Unimplemented M-code: surfaced as a warning rather than
		// failing the block.
		return core.StatusWarning
	}
	return core.StatusOK
}
