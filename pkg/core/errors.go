package core

import (
	"fmt"
)

// ExecutionError represents a structured error with category and details
type ExecutionError struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: element_not_found, rpc_timeout, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is matches two ExecutionErrors by code, so derived copies made with
// WithCause/WithMessage/WithDetails still compare equal to their sentinel.
func (e *ExecutionError) Is(target error) bool {
	t, ok := target.(*ExecutionError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy of the error with the given cause
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Cause:    cause,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  msg,
		Details:  e.Details,
		Cause:    e.Cause,
	}
}

// WithMessagef is WithMessage with formatting.
func (e *ExecutionError) WithMessagef(format string, v ...interface{}) *ExecutionError {
	return e.WithMessage(fmt.Sprintf(format, v...))
}

// WithDetails returns a copy of the error with additional details
func (e *ExecutionError) WithDetails(details map[string]interface{}) *ExecutionError {
	merged := make(map[string]interface{})
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  merged,
		Cause:    e.Cause,
	}
}

// Predefined errors
var (
	// Bridge errors (device discovery and daemon bootstrap)
	ErrNoDevice = &ExecutionError{
		Category: ErrCategoryBridge,
		Code:     "no_device",
		Message:  "no matching device connected",
	}
	ErrHdcCommand = &ExecutionError{
		Category: ErrCategoryBridge,
		Code:     "hdc_command_failed",
		Message:  "hdc command failed",
	}
	ErrDaemonStart = &ExecutionError{
		Category: ErrCategoryBridge,
		Code:     "daemon_start_failed",
		Message:  "uitest daemon did not become ready",
	}
	ErrPortForward = &ExecutionError{
		Category: ErrCategoryBridge,
		Code:     "port_forward_failed",
		Message:  "port forward was rejected",
	}

	// Transport errors
	ErrConnectionFailed = &ExecutionError{
		Category: ErrCategoryConnection,
		Code:     "connection_failed",
		Message:  "could not connect to automation daemon",
	}
	ErrConnectionLost = &ExecutionError{
		Category: ErrCategoryConnection,
		Code:     "connection_lost",
		Message:  "connection to automation daemon lost",
	}

	// Dispatcher errors
	ErrRPCTimeout = &ExecutionError{
		Category: ErrCategoryTimeout,
		Code:     "rpc_timeout",
		Message:  "no reply from automation daemon within deadline",
	}
	ErrRemoteCall = &ExecutionError{
		Category: ErrCategoryProtocol,
		Code:     "remote_call_failed",
		Message:  "automation daemon reported a call failure",
	}
	ErrObjectDropped = &ExecutionError{
		Category: ErrCategoryProtocol,
		Code:     "object_dropped",
		Message:  "remote object used after its session closed",
	}

	// Assertion errors
	ErrElementNotFound = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "element_not_found",
		Message:  "element not found",
	}
	ErrElementStillVisible = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "element_still_visible",
		Message:  "element is still visible",
	}
	ErrConditionNotMet = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "condition_not_met",
		Message:  "condition was not met",
	}

	// Timeout errors
	ErrWaitTimeout = &ExecutionError{
		Category: ErrCategoryTimeout,
		Code:     "wait_timeout",
		Message:  "wait condition timed out",
	}

	// App errors
	ErrAppNotInstalled = &ExecutionError{
		Category: ErrCategoryApp,
		Code:     "app_not_installed",
		Message:  "application is not installed",
	}

	// Config errors
	ErrInvalidConfig = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_config",
		Message:  "invalid configuration",
	}
	ErrInvalidGesture = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_gesture",
		Message:  "gesture is not well-formed",
	}
	ErrInvalidKeyCode = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_key_code",
		Message:  "key code out of range",
	}
)

// NewExecutionError creates a new ExecutionError with the given parameters
func NewExecutionError(category ErrorCategory, code, message string) *ExecutionError {
	return &ExecutionError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}
