package hypium

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/devicelab-dev/harmony-runner/pkg/core"
	"github.com/devicelab-dev/harmony-runner/pkg/flow"
	"github.com/devicelab-dev/harmony-runner/pkg/hypium"
)

// Find timeouts in milliseconds. Optional elements get a shorter wait so
// a missing optional step does not stall the flow.
const (
	DefaultFindTimeout  = 17000
	OptionalFindTimeout = 7000

	// NotVisibleTimeout bounds negative assertions; the element is
	// expected to be gone already.
	NotVisibleTimeout = 1000
)

// DefaultEraseChars is how many delete presses eraseText sends when the
// step carries no count.
const DefaultEraseChars = 50

// DefaultSwipeScale is the fraction of the screen a directional swipe
// covers.
const DefaultSwipeScale = 0.8

// DeviceController runs the hdc-backed device commands the driver needs
// for app lifecycle, links and captures.
// Implemented by device.Device. Allows mocking in tests.
type DeviceController interface {
	StartApp(bundle, ability string) error
	StopApp(bundle string) error
	MainAbility(bundle string) (string, error)
	CleanAppData(bundle string) error
	CleanAppCache(bundle string) error
	OpenURL(url string, systemBrowser bool) error
	CurrentApp() (string, string, error)
	ScreenState() (string, error)
	Screenshot(localPath string) (string, error)
}

// Driver implements core.Driver on top of a hypium session. Element
// interaction goes through the uitest daemon; app lifecycle and screen
// capture go through hdc shell commands on the device.
type Driver struct {
	client *hypium.Client
	info   *core.PlatformInfo
	device DeviceController

	// Timeouts (0 = use defaults)
	findTimeout         int // ms, for required elements
	optionalFindTimeout int // ms, for optional elements
}

// New creates a driver over an open hypium session.
func New(client *hypium.Client, info *core.PlatformInfo, device DeviceController) *Driver {
	return &Driver{
		client: client,
		info:   info,
		device: device,
	}
}

// SetFindTimeout sets the timeout for finding required elements.
// Useful for testing with shorter timeouts.
func (d *Driver) SetFindTimeout(ms int) {
	d.findTimeout = ms
}

// SetOptionalFindTimeout sets the timeout for finding optional elements.
func (d *Driver) SetOptionalFindTimeout(ms int) {
	d.optionalFindTimeout = ms
}

// Client exposes the underlying hypium session for callers that need
// APIs beyond flow steps, such as the CLI's record command.
func (d *Driver) Client() *hypium.Client {
	return d.client
}

// Execute runs a single step and returns the result.
func (d *Driver) Execute(step flow.Step) *core.CommandResult {
	start := time.Now()

	var result *core.CommandResult
	switch s := step.(type) {
	// Tap commands
	case *flow.TapOnStep:
		result = d.tapOn(s)
	case *flow.DoubleTapOnStep:
		result = d.doubleTapOn(s)
	case *flow.LongPressOnStep:
		result = d.longPressOn(s)
	case *flow.TapOnPointStep:
		result = d.tapOnPoint(s)

	// Assert commands
	case *flow.AssertVisibleStep:
		result = d.assertVisible(s)
	case *flow.AssertNotVisibleStep:
		result = d.assertNotVisible(s)

	// Input commands
	case *flow.InputTextStep:
		result = d.inputText(s)
	case *flow.EraseTextStep:
		result = d.eraseText(s)

	// Swipe commands
	case *flow.SwipeStep:
		result = d.swipe(s)

	// Navigation commands
	case *flow.BackStep:
		result = d.back(s)
	case *flow.HomeStep:
		result = d.home(s)
	case *flow.PressKeyStep:
		result = d.pressKey(s)

	// App lifecycle
	case *flow.LaunchAppStep:
		result = d.launchApp(s)
	case *flow.StopAppStep:
		result = d.stopApp(s)
	case *flow.ClearStateStep:
		result = d.clearState(s)
	case *flow.OpenLinkStep:
		result = d.openLink(s)

	// Wait commands
	case *flow.WaitForStep:
		result = d.waitFor(s)
	case *flow.WaitStep:
		result = d.wait(s)

	// Media
	case *flow.TakeScreenshotStep:
		result = d.takeScreenshot(s)

	default:
		result = &core.CommandResult{
			Success: false,
			Error:   fmt.Errorf("unknown step type: %T", step),
			Message: fmt.Sprintf("Step type '%T' is not supported", step),
		}
	}

	result.Duration = time.Since(start)
	return result
}

// Screenshot captures the current screen as JPEG via the device shell.
func (d *Driver) Screenshot() ([]byte, error) {
	if d.device == nil {
		return nil, core.ErrNoDevice.WithMessage("screenshot requires device access")
	}
	tmp, err := os.CreateTemp("", "harmony-shot-*.jpeg")
	if err != nil {
		return nil, err
	}
	path := tmp.Name()
	tmp.Close()
	defer os.Remove(path)

	if _, err := d.device.Screenshot(path); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// Hierarchy captures the UI component tree as JSON.
func (d *Driver) Hierarchy() ([]byte, error) {
	return d.client.DumpHierarchy()
}

// GetState returns the current device/app state. Probes that fail leave
// their fields zero rather than failing the snapshot.
func (d *Driver) GetState() *core.StateSnapshot {
	state := &core.StateSnapshot{}

	if d.device != nil {
		if bundle, ability, err := d.device.CurrentApp(); err == nil {
			state.ForegroundBundle = bundle
			state.ForegroundAbility = ability
		}
		if screen, err := d.device.ScreenState(); err == nil {
			state.ScreenOn = strings.EqualFold(screen, "AWAKE")
		}
	}

	if w, h, err := d.client.DisplaySize(); err == nil {
		state.DisplayWidth = w
		state.DisplayHeight = h
	}
	if rot, err := d.client.DisplayRotation(); err == nil {
		switch rot {
		case hypium.Rotation90, hypium.Rotation270:
			state.Orientation = "landscape"
		default:
			state.Orientation = "portrait"
		}
	}

	return state
}

// GetPlatformInfo returns device/platform information.
func (d *Driver) GetPlatformInfo() *core.PlatformInfo {
	return d.info
}

// element compiles a flow selector into a daemon-side element.
func (d *Driver) element(sel flow.Selector) (*hypium.Element, error) {
	by, err := compileSelector(sel)
	if err != nil {
		return nil, err
	}
	el := d.client.Element(by)
	if sel.Index != "" {
		idx, err := strconv.Atoi(sel.Index)
		if err != nil || idx < 0 {
			return nil, core.ErrInvalidConfig.WithMessagef("selector index %q is not a non-negative integer", sel.Index)
		}
		if idx > 0 {
			el = el.At(idx)
		}
	}
	return el, nil
}

// compileSelector maps a flow selector onto a hypium criterion chain.
// Relative selectors become operand chains evaluated by the daemon, so
// no client-side tree walking is needed.
func compileSelector(sel flow.Selector) (*hypium.By, error) {
	if sel.IsEmpty() {
		return nil, core.ErrInvalidConfig.WithMessage("selector must set text, id, type or description")
	}

	by := &hypium.By{}
	if sel.Text != "" {
		by = by.Text(sel.Text)
	}
	if sel.ID != "" {
		by = by.ID(sel.ID)
	}
	if sel.Type != "" {
		by = by.Type(sel.Type)
	}
	if sel.Description != "" {
		by = by.Description(sel.Description)
	}

	if sel.Enabled != nil {
		by = by.Enabled(*sel.Enabled)
	}
	if sel.Focused != nil {
		by = by.Focused(*sel.Focused)
	}
	if sel.Checked != nil {
		by = by.Checked(*sel.Checked)
	}
	if sel.Checkable != nil {
		by = by.Checkable(*sel.Checkable)
	}
	if sel.Clickable != nil {
		by = by.Clickable(*sel.Clickable)
	}
	if sel.LongClickable != nil {
		by = by.LongClickable(*sel.LongClickable)
	}
	if sel.Scrollable != nil {
		by = by.Scrollable(*sel.Scrollable)
	}
	if sel.Selected != nil {
		by = by.Selected(*sel.Selected)
	}

	if sel.Before != nil {
		sub, err := compileSelector(*sel.Before)
		if err != nil {
			return nil, err
		}
		by = by.IsBefore(sub)
	}
	if sel.After != nil {
		sub, err := compileSelector(*sel.After)
		if err != nil {
			return nil, err
		}
		by = by.IsAfter(sub)
	}
	if sel.Within != nil {
		sub, err := compileSelector(*sel.Within)
		if err != nil {
			return nil, err
		}
		by = by.Within(sub)
	}

	return by, nil
}

// findElement resolves a selector, waiting up to the calculated timeout
// for the element to appear. Returns the element plus the attributes
// worth reporting.
func (d *Driver) findElement(sel flow.Selector, optional bool, stepTimeoutMs int) (*hypium.Element, *core.ElementInfo, error) {
	el, err := d.element(sel)
	if err != nil {
		return nil, nil, err
	}
	if err := el.WaitFor(d.calculateTimeout(optional, stepTimeoutMs)); err != nil {
		return nil, nil, err
	}
	return el, d.elementInfo(el), nil
}

// elementInfo fetches the attributes reports care about. Failed
// attribute reads leave their field empty; the element was already
// found and a step should not fail on reporting detail.
func (d *Driver) elementInfo(el *hypium.Element) *core.ElementInfo {
	info := &core.ElementInfo{}
	if text, err := el.Text(); err == nil {
		info.Text = text
	}
	if typ, err := el.Type(); err == nil {
		info.Type = typ
	}
	if enabled, err := el.IsEnabled(); err == nil {
		info.Enabled = enabled
	}
	if b, err := el.Bounds(); err == nil {
		info.Bounds = core.Bounds{X: b.Left, Y: b.Top, Width: b.Width(), Height: b.Height()}
	}
	return info
}

// calculateTimeout determines the find timeout in this order:
// step-level timeout, driver override, package default.
func (d *Driver) calculateTimeout(optional bool, stepTimeoutMs int) time.Duration {
	var timeoutMs int
	if stepTimeoutMs > 0 {
		timeoutMs = stepTimeoutMs
	} else if optional {
		timeoutMs = OptionalFindTimeout
		if d.optionalFindTimeout > 0 {
			timeoutMs = d.optionalFindTimeout
		}
	} else {
		timeoutMs = DefaultFindTimeout
		if d.findTimeout > 0 {
			timeoutMs = d.findTimeout
		}
	}
	return time.Duration(timeoutMs) * time.Millisecond
}

// successResult creates a success result with an optional element.
func successResult(msg string, elem *core.ElementInfo) *core.CommandResult {
	return &core.CommandResult{
		Success: true,
		Message: msg,
		Element: elem,
	}
}

// errorResult creates an error result.
func errorResult(err error, msg string) *core.CommandResult {
	return &core.CommandResult{
		Success: false,
		Error:   err,
		Message: msg,
	}
}
