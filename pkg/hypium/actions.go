package hypium

import (
	"github.com/devicelab-dev/harmony-runner/pkg/core"
	"github.com/devicelab-dev/harmony-runner/pkg/logger"
)

// Click taps the screen. Coordinates may be display ratios or pixels,
// see toAbs.
func (c *Client) Click(x, y float64) error {
	return c.tap("Driver.click", x, y)
}

// DoubleClick double-taps the screen.
func (c *Client) DoubleClick(x, y float64) error {
	return c.tap("Driver.doubleClick", x, y)
}

// LongClick long-presses the screen.
func (c *Client) LongClick(x, y float64) error {
	return c.tap("Driver.longClick", x, y)
}

func (c *Client) tap(api string, x, y float64) error {
	p, err := c.toAbs(x, y)
	if err != nil {
		return err
	}
	return c.tapAbs(api, p)
}

func (c *Client) tapAbs(api string, p Point) error {
	if _, err := c.invokeDriver(api, p.X, p.Y); err != nil {
		return err
	}
	c.settle()
	return nil
}

// Swipe drags from one point to another at speed px/s. Speeds outside
// [200, 40000] fall back to DefaultSwipeSpeed.
func (c *Client) Swipe(x1, y1, x2, y2 float64, speed int) error {
	from, err := c.toAbs(x1, y1)
	if err != nil {
		return err
	}
	to, err := c.toAbs(x2, y2)
	if err != nil {
		return err
	}
	speed = clampSwipeSpeed(speed)
	if _, err := c.invokeDriver("Driver.swipe", from.X, from.Y, to.X, to.Y, speed); err != nil {
		return err
	}
	c.settle()
	return nil
}

func clampSwipeSpeed(speed int) int {
	if speed < minSwipeSpeed || speed > maxSwipeSpeed {
		logger.Warn("swipe speed %d outside [%d, %d], using %d", speed, minSwipeSpeed, maxSwipeSpeed, DefaultSwipeSpeed)
		return DefaultSwipeSpeed
	}
	return speed
}

// SwipeIn swipes across a region of the screen in the given direction.
// scale in (0, 1] is the fraction of the region the swipe covers; box
// nil means the whole screen.
func (c *Client) SwipeIn(dir Direction, scale float64, box *Box, speed int) error {
	if scale <= 0 || scale > 1 {
		return core.ErrInvalidGesture.WithMessagef("swipe scale %v outside (0, 1]", scale)
	}
	if speed < minSwipeSpeed || speed > maxSwipeSpeed {
		speed = DefaultSwipeSpeed
	}

	var x1, y1, x2, y2 int
	if box != nil {
		if box.X1 < 0 || box.Y1 < 0 || box.X2 <= 0 || box.Y2 <= 0 {
			return core.ErrInvalidGesture.WithMessage("swipe box coordinates must not be negative")
		}
		if box.X1 >= box.X2 || box.Y1 >= box.Y2 {
			return core.ErrInvalidGesture.WithMessage("swipe box needs x1 < x2 and y1 < y2")
		}
		p1, err := c.toAbs(box.X1, box.Y1)
		if err != nil {
			return err
		}
		p2, err := c.toAbs(box.X2, box.Y2)
		if err != nil {
			return err
		}
		x1, y1, x2, y2 = p1.X, p1.Y, p2.X, p2.Y
	} else {
		w, h, err := c.DisplaySize()
		if err != nil {
			return err
		}
		x2, y2 = w, h
	}

	width, height := x2-x1, y2-y1
	hOffset := int(float64(width) * (1 - scale) / 2)
	vOffset := int(float64(height) * (1 - scale) / 2)

	var from, to Point
	switch dir {
	case DirectionLeft:
		from = Point{X: x2 - hOffset, Y: y1 + height/2}
		to = Point{X: x1 + hOffset, Y: y1 + height/2}
	case DirectionRight:
		from = Point{X: x1 + hOffset, Y: y1 + height/2}
		to = Point{X: x2 - hOffset, Y: y1 + height/2}
	case DirectionUp:
		from = Point{X: x1 + width/2, Y: y2 - vOffset}
		to = Point{X: x1 + width/2, Y: y1 + vOffset}
	case DirectionDown:
		from = Point{X: x1 + width/2, Y: y1 + vOffset}
		to = Point{X: x1 + width/2, Y: y2 - vOffset}
	default:
		return core.ErrInvalidGesture.WithMessagef("unknown swipe direction %q", dir)
	}

	if _, err := c.invokeDriver("Driver.swipe", from.X, from.Y, to.X, to.Y, speed); err != nil {
		return err
	}
	c.settle()
	return nil
}

// InputText types into the focused field. The field must already hold
// focus, for example after a Click on it.
func (c *Client) InputText(text string) error {
	if _, err := c.invokeDriver("Driver.inputText", Point{X: 1, Y: 1}, text); err != nil {
		return err
	}
	c.settle()
	return nil
}

// PressKey presses a single key.
func (c *Client) PressKey(k KeyCode) error {
	if !k.Valid() {
		return core.ErrInvalidKeyCode.WithMessagef("key code %d outside [0, %d]", int(k), int(MaxKeyCode))
	}
	if _, err := c.invokeDriver("Driver.triggerKey", int(k)); err != nil {
		return err
	}
	c.settle()
	return nil
}

// PressKeys presses two keys together, e.g. meta+tab for the recents
// screen.
func (c *Client) PressKeys(k1, k2 KeyCode) error {
	if !k1.Valid() || !k2.Valid() {
		return core.ErrInvalidKeyCode.WithMessagef("key codes %d, %d outside [0, %d]", int(k1), int(k2), int(MaxKeyCode))
	}
	if _, err := c.invokeDriver("Driver.triggerCombineKeys", int(k1), int(k2)); err != nil {
		return err
	}
	c.settle()
	return nil
}

// Back presses the system back key.
func (c *Client) Back() error { return c.PressKey(KeyBack) }

// Home returns to the launcher.
func (c *Client) Home() error { return c.PressKey(KeyHome) }

// Recents opens the recent tasks screen.
func (c *Client) Recents() error { return c.PressKeys(KeyMetaLeft, KeyTab) }
