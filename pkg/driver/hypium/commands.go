package hypium

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/devicelab-dev/harmony-runner/pkg/core"
	"github.com/devicelab-dev/harmony-runner/pkg/flow"
	"github.com/devicelab-dev/harmony-runner/pkg/hypium"
)

// ============================================================================
// Tap Commands
// ============================================================================

func (d *Driver) tapOn(step *flow.TapOnStep) *core.CommandResult {
	elem, info, err := d.findElement(step.Selector, step.IsOptional(), step.TimeoutMs)
	if err != nil {
		return errorResult(err, fmt.Sprintf("Element not found: %v", err))
	}

	if err := elem.Click(); err != nil {
		return errorResult(err, fmt.Sprintf("Failed to tap: %v", err))
	}

	return successResult("Tapped on element", info)
}

func (d *Driver) doubleTapOn(step *flow.DoubleTapOnStep) *core.CommandResult {
	elem, info, err := d.findElement(step.Selector, step.IsOptional(), step.TimeoutMs)
	if err != nil {
		return errorResult(err, fmt.Sprintf("Element not found: %v", err))
	}

	if err := elem.DoubleClick(); err != nil {
		return errorResult(err, fmt.Sprintf("Failed to double tap: %v", err))
	}

	return successResult("Double tapped on element", info)
}

func (d *Driver) longPressOn(step *flow.LongPressOnStep) *core.CommandResult {
	elem, info, err := d.findElement(step.Selector, step.IsOptional(), step.TimeoutMs)
	if err != nil {
		return errorResult(err, fmt.Sprintf("Element not found: %v", err))
	}

	if err := elem.LongClick(); err != nil {
		return errorResult(err, fmt.Sprintf("Failed to long press: %v", err))
	}

	return successResult("Long pressed on element", info)
}

func (d *Driver) tapOnPoint(step *flow.TapOnPointStep) *core.CommandResult {
	x, y := step.X, step.Y

	// "x%, y%" form: percentages become display ratios, which the
	// session converts against the display size.
	if step.Point != "" {
		var err error
		x, y, err = parsePercentageCoords(step.Point)
		if err != nil {
			return errorResult(err, fmt.Sprintf("Invalid point coordinates: %v", err))
		}
	}

	if x == 0 && y == 0 {
		return errorResult(fmt.Errorf("no point specified"), "Either point or x/y coordinates required")
	}

	var err error
	if step.LongPress {
		err = d.client.LongClick(x, y)
	} else {
		err = d.client.Click(x, y)
	}
	if err != nil {
		return errorResult(err, fmt.Sprintf("Failed to tap at point: %v", err))
	}

	if step.LongPress {
		return successResult(fmt.Sprintf("Long pressed at (%v, %v)", x, y), nil)
	}
	return successResult(fmt.Sprintf("Tapped at (%v, %v)", x, y), nil)
}

// ============================================================================
// Assert Commands
// ============================================================================

func (d *Driver) assertVisible(step *flow.AssertVisibleStep) *core.CommandResult {
	_, info, err := d.findElement(step.Selector, step.IsOptional(), step.TimeoutMs)
	if err != nil {
		return errorResult(err, fmt.Sprintf("Element not visible: %v", err))
	}

	return successResult("Element is visible", info)
}

func (d *Driver) assertNotVisible(step *flow.AssertNotVisibleStep) *core.CommandResult {
	// Negative assertions use a short timeout: the element is expected
	// to be gone already. A step timeout still overrides.
	timeout := step.TimeoutMs
	if timeout <= 0 {
		timeout = NotVisibleTimeout
	}

	el, err := d.element(step.Selector)
	if err != nil {
		return errorResult(err, fmt.Sprintf("Invalid selector: %v", err))
	}
	if err := el.WaitGone(time.Duration(timeout) * time.Millisecond); err != nil {
		return errorResult(err, "Element should not be visible but was found")
	}

	return successResult("Element is not visible", nil)
}

// ============================================================================
// Input Commands
// ============================================================================

func (d *Driver) inputText(step *flow.InputTextStep) *core.CommandResult {
	text := step.Text
	if text == "" {
		return errorResult(fmt.Errorf("no text specified"), "No text to input")
	}

	// With a selector, type into that field; otherwise type into
	// whatever holds focus.
	if !step.Selector.IsEmpty() {
		elem, _, err := d.findElement(step.Selector, step.IsOptional(), step.TimeoutMs)
		if err != nil {
			return errorResult(err, fmt.Sprintf("Element not found: %v", err))
		}
		if err := elem.InputText(text); err != nil {
			return errorResult(err, fmt.Sprintf("Failed to input text: %v", err))
		}
	} else {
		if err := d.client.InputText(text); err != nil {
			return errorResult(err, fmt.Sprintf("Failed to input text: %v", err))
		}
	}

	return successResult(fmt.Sprintf("Entered text: %s", text), nil)
}

func (d *Driver) eraseText(step *flow.EraseTextStep) *core.CommandResult {
	// With a selector the field is cleared in place, regardless of count.
	if !step.Selector.IsEmpty() {
		elem, _, err := d.findElement(step.Selector, step.IsOptional(), step.TimeoutMs)
		if err != nil {
			return errorResult(err, fmt.Sprintf("Element not found: %v", err))
		}
		if err := elem.ClearText(); err != nil {
			return errorResult(err, fmt.Sprintf("Failed to erase text: %v", err))
		}
		return successResult("Cleared text", nil)
	}

	chars := step.Characters
	if chars <= 0 {
		chars = DefaultEraseChars
	}

	// Press delete on the focused field, once per character.
	for i := 0; i < chars; i++ {
		if err := d.client.PressKey(hypium.KeyDel); err != nil {
			return errorResult(err, fmt.Sprintf("Failed to erase text: %v", err))
		}
	}

	return successResult(fmt.Sprintf("Erased %d characters", chars), nil)
}

// ============================================================================
// Swipe Commands
// ============================================================================

func (d *Driver) swipe(step *flow.SwipeStep) *core.CommandResult {
	// Coordinate-based swipe between two points
	if step.Start != "" && step.End != "" {
		return d.swipeBetween(step.Start, step.End, step.Speed)
	}

	// Direction-based swipe across the screen
	direction := step.Direction
	if direction == "" {
		direction = "up"
	}
	dir, ok := mapDirection(direction)
	if !ok {
		err := core.ErrInvalidGesture.WithMessagef("unknown swipe direction %q", direction)
		return errorResult(err, fmt.Sprintf("Unknown swipe direction: %s", direction))
	}

	scale := step.Scale
	if scale <= 0 {
		scale = DefaultSwipeScale
	}

	if err := d.client.SwipeIn(dir, scale, nil, step.Speed); err != nil {
		return errorResult(err, fmt.Sprintf("Failed to swipe: %v", err))
	}

	return successResult(fmt.Sprintf("Swiped %s", strings.ToLower(direction)), nil)
}

// swipeBetween handles swipes with explicit start/end coordinates in
// "x%, y%" form.
func (d *Driver) swipeBetween(start, end string, speed int) *core.CommandResult {
	x1, y1, err := parsePercentageCoords(start)
	if err != nil {
		return errorResult(err, fmt.Sprintf("Invalid start coordinates: %v", err))
	}
	x2, y2, err := parsePercentageCoords(end)
	if err != nil {
		return errorResult(err, fmt.Sprintf("Invalid end coordinates: %v", err))
	}

	// An unset speed is expected, not worth the clamp warning.
	if speed <= 0 {
		speed = hypium.DefaultSwipeSpeed
	}

	if err := d.client.Swipe(x1, y1, x2, y2, speed); err != nil {
		return errorResult(err, fmt.Sprintf("Failed to swipe: %v", err))
	}

	return successResult(fmt.Sprintf("Swiped from %s to %s", start, end), nil)
}

// parsePercentageCoords parses "x%, y%" into display ratios (0.0-1.0).
func parsePercentageCoords(coord string) (float64, float64, error) {
	parts := strings.Split(coord, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected 'x%%, y%%' format, got: %s", coord)
	}

	xStr := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(parts[0]), "%"))
	yStr := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(parts[1]), "%"))

	xPct, err := strconv.ParseFloat(xStr, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid x percentage: %s", parts[0])
	}
	yPct, err := strconv.ParseFloat(yStr, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid y percentage: %s", parts[1])
	}

	return xPct / 100.0, yPct / 100.0, nil
}

// mapDirection converts a flow direction to a hypium one.
func mapDirection(dir string) (hypium.Direction, bool) {
	switch strings.ToLower(dir) {
	case "up":
		return hypium.DirectionUp, true
	case "down":
		return hypium.DirectionDown, true
	case "left":
		return hypium.DirectionLeft, true
	case "right":
		return hypium.DirectionRight, true
	}
	return "", false
}

// ============================================================================
// Navigation Commands
// ============================================================================

func (d *Driver) back(_ *flow.BackStep) *core.CommandResult {
	if err := d.client.Back(); err != nil {
		return errorResult(err, fmt.Sprintf("Failed to press back: %v", err))
	}

	return successResult("Pressed back", nil)
}

func (d *Driver) home(_ *flow.HomeStep) *core.CommandResult {
	if err := d.client.Home(); err != nil {
		return errorResult(err, fmt.Sprintf("Failed to press home: %v", err))
	}

	return successResult("Pressed home", nil)
}

func (d *Driver) pressKey(step *flow.PressKeyStep) *core.CommandResult {
	key := step.Key
	code, ok := hypium.KeyCodeByName(key)
	if !ok {
		err := core.ErrInvalidKeyCode.WithMessagef("unknown key %q", key)
		return errorResult(err, fmt.Sprintf("Unknown key: %s", key))
	}

	if err := d.client.PressKey(code); err != nil {
		return errorResult(err, fmt.Sprintf("Failed to press key: %v", err))
	}

	return successResult(fmt.Sprintf("Pressed key: %s", key), nil)
}

// ============================================================================
// App Lifecycle Commands
// ============================================================================

func (d *Driver) launchApp(step *flow.LaunchAppStep) *core.CommandResult {
	bundle := step.AppID
	if bundle == "" {
		return errorResult(fmt.Errorf("no appId specified"), "No app ID to launch")
	}

	if d.device == nil {
		return errorResult(fmt.Errorf("device not configured"), "launchApp requires device access")
	}

	// Stop app first if requested (default: true)
	if step.StopApp == nil || *step.StopApp {
		d.device.StopApp(bundle)
	}

	// Clear state if requested
	if step.ClearState {
		if err := d.device.CleanAppData(bundle); err != nil {
			return errorResult(err, fmt.Sprintf("Failed to clear app state: %v", err))
		}
	}

	ability, err := d.device.MainAbility(bundle)
	if err != nil || ability == "" {
		// Resolution needs bundle metadata that some builds withhold;
		// the conventional entry name usually works.
		ability = "MainAbility"
	}

	if err := d.device.StartApp(bundle, ability); err != nil {
		return errorResult(err, fmt.Sprintf("Failed to launch app: %v", err))
	}

	// Wait for the ability to reach the foreground
	time.Sleep(1 * time.Second)

	return successResult(fmt.Sprintf("Launched app: %s", bundle), nil)
}

func (d *Driver) stopApp(step *flow.StopAppStep) *core.CommandResult {
	bundle := step.AppID
	if bundle == "" {
		return errorResult(fmt.Errorf("no appId specified"), "No app ID to stop")
	}

	if d.device == nil {
		return errorResult(fmt.Errorf("device not configured"), "stopApp requires device access")
	}

	if err := d.device.StopApp(bundle); err != nil {
		return errorResult(err, fmt.Sprintf("Failed to stop app: %v", err))
	}

	return successResult(fmt.Sprintf("Stopped app: %s", bundle), nil)
}

func (d *Driver) clearState(step *flow.ClearStateStep) *core.CommandResult {
	bundle := step.AppID
	if bundle == "" {
		return errorResult(fmt.Errorf("no appId specified"), "No app ID to clear")
	}

	if d.device == nil {
		return errorResult(fmt.Errorf("device not configured"), "clearState requires device access")
	}

	if err := d.device.CleanAppData(bundle); err != nil {
		return errorResult(err, fmt.Sprintf("Failed to clear state: %v", err))
	}
	// Cache cleanup is best effort; some builds reject the flag.
	d.device.CleanAppCache(bundle)

	return successResult(fmt.Sprintf("Cleared state for: %s", bundle), nil)
}

func (d *Driver) openLink(step *flow.OpenLinkStep) *core.CommandResult {
	link := step.Link
	if link == "" {
		return errorResult(fmt.Errorf("no link specified"), "No link to open")
	}

	if d.device == nil {
		return errorResult(fmt.Errorf("device not configured"), "openLink requires device access")
	}

	// Let the system resolve the want; a registered deep link opens in
	// its app, anything else lands in the browser.
	if err := d.device.OpenURL(link, false); err != nil {
		return errorResult(err, fmt.Sprintf("Failed to open link: %v", err))
	}

	return successResult(fmt.Sprintf("Opened link: %s", link), nil)
}

// ============================================================================
// Wait Commands
// ============================================================================

func (d *Driver) waitFor(step *flow.WaitForStep) *core.CommandResult {
	timeout := d.calculateTimeout(step.IsOptional(), step.TimeoutMs)

	// gone: wait for the element to disappear
	if step.Gone != nil {
		el, err := d.element(*step.Gone)
		if err != nil {
			return errorResult(err, fmt.Sprintf("Invalid selector: %v", err))
		}
		if err := el.WaitGone(timeout); err != nil {
			return errorResult(err, fmt.Sprintf("Element '%s' still visible after %v", step.Gone.Describe(), timeout))
		}
		return successResult("Element is no longer visible", nil)
	}

	el, err := d.element(step.Selector)
	if err != nil {
		return errorResult(err, fmt.Sprintf("Invalid selector: %v", err))
	}
	if err := el.WaitFor(timeout); err != nil {
		return errorResult(err, fmt.Sprintf("Element '%s' not visible within %v", step.Selector.Describe(), timeout))
	}

	return successResult("Element is now visible", d.elementInfo(el))
}

func (d *Driver) wait(step *flow.WaitStep) *core.CommandResult {
	if step.DurationMs <= 0 {
		return errorResult(fmt.Errorf("no duration specified"), "wait needs a duration in milliseconds")
	}

	time.Sleep(time.Duration(step.DurationMs) * time.Millisecond)

	return successResult(fmt.Sprintf("Waited %dms", step.DurationMs), nil)
}

// ============================================================================
// Media Commands
// ============================================================================

func (d *Driver) takeScreenshot(_ *flow.TakeScreenshotStep) *core.CommandResult {
	data, err := d.Screenshot()
	if err != nil {
		return errorResult(err, fmt.Sprintf("Failed to take screenshot: %v", err))
	}

	// Return screenshot data; caller handles saving to file if path specified
	return &core.CommandResult{
		Success: true,
		Message: "Screenshot captured",
		Data:    data,
	}
}
