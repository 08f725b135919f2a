package hypium

import (
	"errors"
	"fmt"
	"time"

	"github.com/devicelab-dev/harmony-runner/pkg/core"
	"github.com/devicelab-dev/harmony-runner/pkg/logger"
)

const findRetries = 2

// findInterval separates lookup attempts; tests shorten it.
var findInterval = time.Second

// Element is a lazily resolved component. Lookups run against the
// daemon on first use and the resolved handle is kept for later calls.
type Element struct {
	client *Client
	by     *By
	index  int
	handle Handle
}

// Element wraps a selector for lookup and interaction.
func (c *Client) Element(by *By) *Element {
	return &Element{client: c, by: by}
}

// At selects the index-th match (0-based) instead of the first.
func (e *Element) At(index int) *Element {
	return &Element{client: e.client, by: e.by, index: index}
}

func (e *Element) String() string {
	if e.index > 0 {
		return fmt.Sprintf("element[%s][%d]", e.by, e.index)
	}
	return fmt.Sprintf("element[%s]", e.by)
}

// Find resolves the element once, failing with ElementNotFound when it
// is not on screen.
func (e *Element) Find() error {
	found, err := e.find(1)
	if err != nil {
		return err
	}
	if !found {
		return e.notFound(1)
	}
	return nil
}

// Exists reports whether the element is on screen, retrying briefly the
// way interactions do.
func (e *Element) Exists() (bool, error) {
	return e.find(findRetries)
}

// WaitFor polls until the element appears or timeout passes.
func (e *Element) WaitFor(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		found, err := e.find(1)
		if err != nil {
			return err
		}
		if found {
			return nil
		}
		if time.Now().After(deadline) {
			return core.ErrElementNotFound.WithMessagef("%s not visible after %s", e, timeout)
		}
		time.Sleep(findInterval)
	}
}

// WaitGone polls until the element disappears or timeout passes.
func (e *Element) WaitGone(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		e.handle = Handle{}
		found, err := e.find(1)
		if err != nil {
			return err
		}
		if !found {
			return nil
		}
		if time.Now().After(deadline) {
			return core.ErrElementStillVisible.WithMessagef("%s still visible after %s", e, timeout)
		}
		time.Sleep(findInterval)
	}
}

// find makes up to retries lookup attempts, pausing between them.
func (e *Element) find(retries int) (bool, error) {
	for attempt := 0; attempt < retries; attempt++ {
		if attempt > 0 {
			time.Sleep(findInterval)
			logger.Debug("hypium: retrying lookup for %s", e)
		}
		handle, found, err := e.lookup()
		if err != nil {
			return false, err
		}
		if found {
			e.handle = handle
			return true, nil
		}
	}
	return false, nil
}

func (e *Element) lookup() (Handle, bool, error) {
	by, err := e.by.compile(e.client)
	if err != nil {
		return Handle{}, false, err
	}
	if e.index == 0 {
		res, err := e.client.invokeDriver("Driver.findComponent", by)
		if err != nil {
			return Handle{}, false, err
		}
		if res.IsNull() {
			return Handle{}, false, nil
		}
		h, err := e.client.handleFromResult("Driver.findComponent", res, KindComponent)
		if err != nil {
			return Handle{}, false, err
		}
		return h, true, nil
	}

	res, err := e.client.invokeDriver("Driver.findComponents", by)
	if err != nil {
		return Handle{}, false, err
	}
	if res.IsNull() {
		return Handle{}, false, nil
	}
	var refs []string
	if err := res.Decode(&refs); err != nil {
		return Handle{}, false, core.ErrRemoteCall.WithMessage("decoding component list").WithCause(err)
	}
	if e.index >= len(refs) {
		return Handle{}, false, nil
	}
	h, err := parseHandle(e.client, refs[e.index])
	if err != nil {
		return Handle{}, false, err
	}
	return h, true, nil
}

// FindAll returns every match, resolved, in daemon order. No match is an
// empty slice, not an error.
func (c *Client) FindAll(by *By) ([]*Element, error) {
	compiled, err := by.compile(c)
	if err != nil {
		return nil, err
	}
	res, err := c.invokeDriver("Driver.findComponents", compiled)
	if err != nil {
		return nil, err
	}
	if res.IsNull() {
		return nil, nil
	}
	var refs []string
	if err := res.Decode(&refs); err != nil {
		return nil, core.ErrRemoteCall.WithMessage("decoding component list").WithCause(err)
	}
	elements := make([]*Element, 0, len(refs))
	for i, ref := range refs {
		h, err := parseHandle(c, ref)
		if err != nil {
			return nil, err
		}
		elements = append(elements, &Element{client: c, by: by, index: i, handle: h})
	}
	return elements, nil
}

func (e *Element) notFound(retries int) error {
	return core.ErrElementNotFound.WithMessagef("no component matches %s after %d attempts", e, retries)
}

// operate resolves the element if needed, then calls api on it.
func (e *Element) operate(api string, args ...interface{}) (Result, error) {
	if e.handle.IsZero() {
		found, err := e.find(findRetries)
		if err != nil {
			return Result{}, err
		}
		if !found {
			return Result{}, e.notFound(findRetries)
		}
	}
	return e.client.Invoke(api, e.handle, args...)
}

func (e *Element) stringAttr(api string) (string, error) {
	res, err := e.operate(api)
	if err != nil {
		return "", err
	}
	if res.IsNull() {
		return "", nil
	}
	var s string
	if err := res.Decode(&s); err != nil {
		return "", core.ErrRemoteCall.WithMessagef("decoding %s reply", api).WithCause(err)
	}
	return s, nil
}

func (e *Element) boolAttr(api string) (bool, error) {
	res, err := e.operate(api)
	if err != nil {
		return false, err
	}
	if res.IsNull() {
		return false, nil
	}
	var v bool
	if err := res.Decode(&v); err != nil {
		return false, core.ErrRemoteCall.WithMessagef("decoding %s reply", api).WithCause(err)
	}
	return v, nil
}

// ID returns the component id attribute.
func (e *Element) ID() (string, error) { return e.stringAttr("Component.getId") }

// Key returns the component key, which the daemon stores as the id.
func (e *Element) Key() (string, error) { return e.stringAttr("Component.getId") }

// Type returns the component type, e.g. "Button".
func (e *Element) Type() (string, error) { return e.stringAttr("Component.getType") }

// Text returns the component text.
func (e *Element) Text() (string, error) { return e.stringAttr("Component.getText") }

// Description returns the accessibility description.
func (e *Element) Description() (string, error) { return e.stringAttr("Component.getDescription") }

func (e *Element) IsSelected() (bool, error)      { return e.boolAttr("Component.isSelected") }
func (e *Element) IsChecked() (bool, error)       { return e.boolAttr("Component.isChecked") }
func (e *Element) IsEnabled() (bool, error)       { return e.boolAttr("Component.isEnabled") }
func (e *Element) IsFocused() (bool, error)       { return e.boolAttr("Component.isFocused") }
func (e *Element) IsCheckable() (bool, error)     { return e.boolAttr("Component.isCheckable") }
func (e *Element) IsClickable() (bool, error)     { return e.boolAttr("Component.isClickable") }
func (e *Element) IsLongClickable() (bool, error) { return e.boolAttr("Component.isLongClickable") }
func (e *Element) IsScrollable() (bool, error)    { return e.boolAttr("Component.isScrollable") }

// Bounds returns the component rectangle.
func (e *Element) Bounds() (Bounds, error) {
	res, err := e.operate("Component.getBounds")
	if err != nil {
		return Bounds{}, err
	}
	var b Bounds
	if err := res.Decode(&b); err != nil {
		return Bounds{}, core.ErrRemoteCall.WithMessage("decoding bounds").WithCause(err)
	}
	return b, nil
}

// Center returns the component's center point.
func (e *Element) Center() (Point, error) {
	res, err := e.operate("Component.getBoundsCenter")
	if err != nil {
		return Point{}, err
	}
	var p Point
	if err := res.Decode(&p); err != nil {
		return Point{}, core.ErrRemoteCall.WithMessage("decoding bounds center").WithCause(err)
	}
	return p, nil
}

// Info snapshots every attribute of the component.
func (e *Element) Info() (*Info, error) {
	info := &Info{}
	var err error
	if info.ID, err = e.ID(); err != nil {
		return nil, err
	}
	info.Key = info.ID
	if info.Type, err = e.Type(); err != nil {
		return nil, err
	}
	if info.Text, err = e.Text(); err != nil {
		return nil, err
	}
	if info.Description, err = e.Description(); err != nil {
		return nil, err
	}
	if info.Selected, err = e.IsSelected(); err != nil {
		return nil, err
	}
	if info.Checked, err = e.IsChecked(); err != nil {
		return nil, err
	}
	if info.Enabled, err = e.IsEnabled(); err != nil {
		return nil, err
	}
	if info.Focused, err = e.IsFocused(); err != nil {
		return nil, err
	}
	if info.Checkable, err = e.IsCheckable(); err != nil {
		return nil, err
	}
	if info.Clickable, err = e.IsClickable(); err != nil {
		return nil, err
	}
	if info.LongClickable, err = e.IsLongClickable(); err != nil {
		return nil, err
	}
	if info.Scrollable, err = e.IsScrollable(); err != nil {
		return nil, err
	}
	if info.Bounds, err = e.Bounds(); err != nil {
		return nil, err
	}
	if info.BoundsCenter, err = e.Center(); err != nil {
		return nil, err
	}
	return info, nil
}

func (e *Element) action(api string, args ...interface{}) error {
	if _, err := e.operate(api, args...); err != nil {
		return err
	}
	e.client.settle()
	return nil
}

// Click taps the component.
func (e *Element) Click() error { return e.action("Component.click") }

// ClickIfExists taps the component, quietly doing nothing when it is
// not on screen.
func (e *Element) ClickIfExists() error {
	err := e.Click()
	if errors.Is(err, core.ErrElementNotFound) {
		return nil
	}
	return err
}

// DoubleClick double-taps the component.
func (e *Element) DoubleClick() error { return e.action("Component.doubleClick") }

// LongClick long-presses the component.
func (e *Element) LongClick() error { return e.action("Component.longClick") }

// DragTo drags the component onto target.
func (e *Element) DragTo(target *Element) error {
	if target.handle.IsZero() {
		found, err := target.find(findRetries)
		if err != nil {
			return err
		}
		if !found {
			return target.notFound(findRetries)
		}
	}
	return e.action("Component.dragTo", target.handle)
}

// InputText types into the component.
func (e *Element) InputText(text string) error {
	return e.action("Component.inputText", text)
}

// ClearText empties the component's text.
func (e *Element) ClearText() error { return e.action("Component.clearText") }

// PinchIn zooms out on the component; scale shrinks towards 0.
func (e *Element) PinchIn(scale float64) error {
	return e.action("Component.pinchIn", scale)
}

// PinchOut zooms in on the component; scale grows past 1.
func (e *Element) PinchOut(scale float64) error {
	return e.action("Component.pinchOut", scale)
}
