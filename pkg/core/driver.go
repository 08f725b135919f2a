package core

import (
	"time"

	"github.com/devicelab-dev/harmony-runner/pkg/flow"
)

// Driver defines the interface for executing commands on a device.
// The Runner handles flow logic; Driver just executes individual commands.
type Driver interface {
	// Execute runs a single step and returns the result
	Execute(step flow.Step) *CommandResult

	// SetFindTimeout sets how long element lookups poll before giving up
	SetFindTimeout(ms int)

	// Screenshot captures the current screen as JPEG
	Screenshot() ([]byte, error)

	// Hierarchy captures the UI hierarchy as JSON
	Hierarchy() ([]byte, error)

	// GetState returns the current device/app state
	GetState() *StateSnapshot

	// GetPlatformInfo returns device/platform information
	GetPlatformInfo() *PlatformInfo
}

// CommandResult represents the outcome of executing a single command
type CommandResult struct {
	// Core outcome
	Success  bool          `json:"success"`
	Error    error         `json:"-"`
	Duration time.Duration `json:"duration"`

	// Human-readable output
	Message string `json:"message,omitempty"`

	// Element information (for tap, assert, scroll, etc.)
	Element *ElementInfo `json:"element,omitempty"`

	// Generic data for command-specific results
	// Examples: toast text, evaluated script value, saved artifact path
	Data interface{} `json:"data,omitempty"`

	// Debug information (internal details, not for reporting)
	Debug interface{} `json:"-"`
}

// ElementInfo represents information about a UI component
type ElementInfo struct {
	ID            string `json:"id,omitempty"`
	Type          string `json:"type,omitempty"`
	Text          string `json:"text,omitempty"`
	Description   string `json:"description,omitempty"`
	Bounds        Bounds `json:"bounds"`
	Enabled       bool   `json:"enabled"`
	Focused       bool   `json:"focused,omitempty"`
	Checked       bool   `json:"checked,omitempty"`
	Selected      bool   `json:"selected,omitempty"`
	Clickable     bool   `json:"clickable,omitempty"`
	LongClickable bool   `json:"longClickable,omitempty"`
	Scrollable    bool   `json:"scrollable,omitempty"`
	Checkable     bool   `json:"checkable,omitempty"`
}

// Bounds represents element position and size
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Center returns the center point of the bounds
func (b Bounds) Center() (int, int) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Contains checks if a point is within the bounds
func (b Bounds) Contains(x, y int) bool {
	return x >= b.X && x < b.X+b.Width && y >= b.Y && y < b.Y+b.Height
}

// StateSnapshot captures the current device/app state
type StateSnapshot struct {
	ForegroundBundle  string `json:"foregroundBundle,omitempty"`  // Bundle name of the foreground app
	ForegroundAbility string `json:"foregroundAbility,omitempty"` // Ability name of the foreground app
	Orientation       string `json:"orientation,omitempty"`       // portrait, landscape
	ScreenOn          bool   `json:"screenOn"`                    // Is the display awake
	DisplayWidth      int    `json:"displayWidth,omitempty"`
	DisplayHeight     int    `json:"displayHeight,omitempty"`
}

// PlatformInfo contains device and platform details
type PlatformInfo struct {
	Platform     string `json:"platform"`               // always "harmony"
	OSVersion    string `json:"osVersion"`              // e.g., "OpenHarmony 5.0.0.71"
	SDKVersion   string `json:"sdkVersion,omitempty"`   // API level, e.g., "12"
	DeviceName   string `json:"deviceName"`             // Product model, e.g., "Mate 60 Pro"
	Brand        string `json:"brand,omitempty"`        // e.g., "HUAWEI"
	DeviceID     string `json:"deviceId"`               // Serial number
	CPUAbi       string `json:"cpuAbi,omitempty"`       // e.g., "arm64-v8a"
	ScreenWidth  int    `json:"screenWidth,omitempty"`  // Screen width in pixels
	ScreenHeight int    `json:"screenHeight,omitempty"` // Screen height in pixels
	AppID        string `json:"appId,omitempty"`        // Bundle name under test
}
