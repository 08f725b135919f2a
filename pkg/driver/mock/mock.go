// Package mock provides a mock driver for running flows without a device.
package mock

import (
	"fmt"
	"time"

	"github.com/devicelab-dev/harmony-runner/pkg/core"
	"github.com/devicelab-dev/harmony-runner/pkg/flow"
)

// Driver is a mock implementation of core.Driver for testing.
type Driver struct {
	// Configuration
	Config Config

	// Internal state
	stepCount int
}

// Config configures mock driver behavior.
type Config struct {
	// FailOnStep makes step N fail (1-indexed). 0 = never fail.
	FailOnStep int
	// StepDelay adds artificial delay per step
	StepDelay time.Duration
	// Platform info to report
	Platform string
	DeviceID string
}

// New creates a new mock driver.
func New(cfg Config) *Driver {
	if cfg.Platform == "" {
		cfg.Platform = "mock"
	}
	if cfg.DeviceID == "" {
		cfg.DeviceID = "mock-device"
	}
	return &Driver{Config: cfg}
}

// Execute simulates executing a step.
func (d *Driver) Execute(step flow.Step) *core.CommandResult {
	d.stepCount++
	start := time.Now()

	// Simulate delay
	if d.Config.StepDelay > 0 {
		time.Sleep(d.Config.StepDelay)
	}

	// Check if this step should fail
	if d.Config.FailOnStep > 0 && d.stepCount == d.Config.FailOnStep {
		return &core.CommandResult{
			Success:  false,
			Duration: time.Since(start),
			Error:    fmt.Errorf("mock failure on step %d", d.stepCount),
			Message:  fmt.Sprintf("Simulated failure on step %d (%s)", d.stepCount, step.Type()),
		}
	}

	// Success - return element info for tap/assert steps
	result := &core.CommandResult{
		Success:  true,
		Duration: time.Since(start),
		Message:  fmt.Sprintf("Mock executed: %s", step.Type()),
	}

	// Add mock element for relevant steps
	if needsElement(step) {
		result.Element = &core.ElementInfo{
			ID:      "mock-element",
			Type:    "Button",
			Text:    "Mock Element",
			Enabled: true,
			Bounds:  core.Bounds{X: 100, Y: 200, Width: 200, Height: 50},
		}
	}

	return result
}

// SetFindTimeout is a no-op; the mock never polls.
func (d *Driver) SetFindTimeout(ms int) {}

// Screenshot returns a mock JPEG image.
func (d *Driver) Screenshot() ([]byte, error) {
	// Minimal valid JPEG (1x1 gray pixel)
	return []byte{
		0xFF, 0xD8, // SOI
		0xFF, 0xDB, 0x00, 0x43, 0x00, // DQT
		0x10, 0x10, 0x10, 0x10, 0x10, 0x10, 0x10, 0x10,
		0x10, 0x10, 0x10, 0x10, 0x10, 0x10, 0x10, 0x10,
		0x10, 0x10, 0x10, 0x10, 0x10, 0x10, 0x10, 0x10,
		0x10, 0x10, 0x10, 0x10, 0x10, 0x10, 0x10, 0x10,
		0x10, 0x10, 0x10, 0x10, 0x10, 0x10, 0x10, 0x10,
		0x10, 0x10, 0x10, 0x10, 0x10, 0x10, 0x10, 0x10,
		0x10, 0x10, 0x10, 0x10, 0x10, 0x10, 0x10, 0x10,
		0x10, 0x10, 0x10, 0x10, 0x10, 0x10, 0x10, 0x10,
		0xFF, 0xC0, 0x00, 0x0B, 0x08, 0x00, 0x01, 0x00, // SOF0, 1x1 grayscale
		0x01, 0x01, 0x01, 0x11, 0x00,
		0xFF, 0xC4, 0x00, 0x14, 0x00, 0x01, 0x00, 0x00, // DHT, DC table
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0xFF, 0xC4, 0x00, 0x14, 0x10, 0x01, 0x00, 0x00, // DHT, AC table
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0xFF, 0xDA, 0x00, 0x08, 0x01, 0x01, 0x00, 0x00, // SOS
		0x3F, 0x00,
		0x3F,       // entropy data: zero DC, EOB
		0xFF, 0xD9, // EOI
	}, nil
}

// Hierarchy returns a mock layout tree.
func (d *Driver) Hierarchy() ([]byte, error) {
	return []byte(`{
  "attributes": {"type": "root", "bounds": "[0,0][1260,2720]"},
  "children": [
    {
      "attributes": {
        "type": "Button",
        "id": "mock-element",
        "text": "Mock Element",
        "bounds": "[100,200][300,250]"
      },
      "children": []
    }
  ]
}`), nil
}

// GetState returns mock device state.
func (d *Driver) GetState() *core.StateSnapshot {
	return &core.StateSnapshot{
		ForegroundBundle:  "com.mock.app",
		ForegroundAbility: "MockAbility",
		Orientation:       "portrait",
		ScreenOn:          true,
		DisplayWidth:      1260,
		DisplayHeight:     2720,
	}
}

// GetPlatformInfo returns mock platform info.
func (d *Driver) GetPlatformInfo() *core.PlatformInfo {
	return &core.PlatformInfo{
		Platform:     d.Config.Platform,
		DeviceID:     d.Config.DeviceID,
		DeviceName:   "Mock Device",
		OSVersion:    "1.0",
		ScreenWidth:  1260,
		ScreenHeight: 2720,
	}
}

// needsElement returns true if the step type typically returns element info.
func needsElement(step flow.Step) bool {
	switch step.Type() {
	case flow.StepTapOn, flow.StepDoubleTapOn, flow.StepLongPressOn,
		flow.StepAssertVisible, flow.StepWaitFor:
		return true
	}
	return false
}
