package executor

import (
	"errors"

	"github.com/devicelab-dev/harmony-runner/pkg/core"
	"github.com/devicelab-dev/harmony-runner/pkg/report"
)

// commandResultToElement converts core.CommandResult to report.Element.
func commandResultToElement(r *core.CommandResult) *report.Element {
	if r == nil || r.Element == nil {
		return nil
	}

	el := r.Element
	element := &report.Element{
		Found: true,
		ID:    el.ID,
		Text:  el.Text,
		Class: el.Type,
	}

	// Convert bounds
	element.Bounds = &report.Bounds{
		X:      el.Bounds.X,
		Y:      el.Bounds.Y,
		Width:  el.Bounds.Width,
		Height: el.Bounds.Height,
	}

	return element
}

// commandResultToError converts core.CommandResult error to report.Error.
func commandResultToError(r *core.CommandResult) *report.Error {
	if r == nil || r.Error == nil {
		return nil
	}

	errType := "unknown"
	var execErr *core.ExecutionError
	if errors.As(r.Error, &execErr) {
		errType = execErr.Code
	}

	message := r.Error.Error()

	// Use message from result if available
	if r.Message != "" {
		message = r.Message
	}

	return &report.Error{
		Type:    errType,
		Message: message,
	}
}
