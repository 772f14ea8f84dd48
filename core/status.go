// Status codes carried across the serial interface. Distinct from Go's
// error: a Status is a small integer the host can match on, while
// StatusError lets it still flow through normal Go error returns.
package core

// Status is the numeric result code reported to the host for every block,
// status request, or config command.
type Status uint8

const (
	StatusOK Status = iota
	StatusNOOP
	StatusComplete
	StatusEAgain
	StatusExpectedCommandLetter
	StatusBadNumberFormat
	StatusUnrecognizedCommand
	StatusArcSpecificationError
	StatusSoftLimitExceeded
	StatusQueueFull
	StatusInternalError
	// StatusWarning reports an unimplemented M-code: surfaced rather
	// than silently dropped, without failing the block.
	StatusWarning
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNOOP:
		return "noop"
	case StatusComplete:
		return "complete"
	case StatusEAgain:
		return "eagain"
	case StatusExpectedCommandLetter:
		return "expected_command_letter"
	case StatusBadNumberFormat:
		return "bad_number_format"
	case StatusUnrecognizedCommand:
		return "unrecognized_command"
	case StatusArcSpecificationError:
		return "arc_specification_error"
	case StatusSoftLimitExceeded:
		return "soft_limit_exceeded"
	case StatusQueueFull:
		return "queue_full"
	case StatusInternalError:
		return "internal_error"
	case StatusWarning:
		return "warning"
	default:
		return "unknown_status"
	}
}

// Fatal reports whether the status is anything other than OK, NOOP,
// Complete, Warning or EAgain; parse and validation errors count as fatal.
func (s Status) Fatal() bool {
	switch s {
	case StatusOK, StatusNOOP, StatusComplete, StatusWarning, StatusEAgain:
		return false
	default:
		return true
	}
}

// StatusError pairs a Status with the line number it was reported
// against, satisfying error so it can flow through ordinary Go control
// flow while still carrying the wire-level status code and line context
// the host needs.
type StatusError struct {
	Status Status
	Line   uint32
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return e.Status.String()
	}
	return e.Status.String() + ": " + e.Detail
}

// NewStatusError builds a StatusError for the given status, line, and an
// optional free-text detail used in diagnostics.
func NewStatusError(status Status, line uint32, detail string) *StatusError {
	return &StatusError{Status: status, Line: line, Detail: detail}
}
