package core

// StepStatus represents the execution status of a step
type StepStatus int

const (
	StatusPending StepStatus = iota
	StatusRunning
	StatusPassed
	StatusFailed
	StatusErrored
	StatusSkipped
	StatusWarned
)

// String returns the string representation of the status
func (s StepStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusErrored:
		return "errored"
	case StatusSkipped:
		return "skipped"
	case StatusWarned:
		return "warned"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the status represents a completed state
func (s StepStatus) IsTerminal() bool {
	return s != StatusPending && s != StatusRunning
}

// IsSuccess returns true if the status represents a successful completion
func (s StepStatus) IsSuccess() bool {
	return s == StatusPassed || s == StatusWarned
}

// ErrorCategory classifies errors for reporting
type ErrorCategory int

const (
	ErrCategoryNone ErrorCategory = iota
	ErrCategoryAssertion
	ErrCategoryTimeout
	ErrCategoryBridge
	ErrCategoryConnection
	ErrCategoryProtocol
	ErrCategoryApp
	ErrCategoryConfig
)

// String returns the string representation of the error category
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryAssertion:
		return "assertion"
	case ErrCategoryTimeout:
		return "timeout"
	case ErrCategoryBridge:
		return "bridge"
	case ErrCategoryConnection:
		return "connection"
	case ErrCategoryProtocol:
		return "protocol"
	case ErrCategoryApp:
		return "app"
	case ErrCategoryConfig:
		return "config"
	default:
		return "unknown"
	}
}
