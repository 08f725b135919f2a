package hypium

import (
	"github.com/devicelab-dev/harmony-runner/pkg/core"
)

// DisplaySize returns the screen dimensions in pixels. The value is
// fetched once per session and cached.
func (c *Client) DisplaySize() (int, int, error) {
	c.dispMu.Lock()
	defer c.dispMu.Unlock()
	if c.dispSize != nil {
		return c.dispSize.X, c.dispSize.Y, nil
	}
	res, err := c.invokeDriver("Driver.getDisplaySize")
	if err != nil {
		return 0, 0, err
	}
	var size Point
	if err := res.Decode(&size); err != nil {
		return 0, 0, core.ErrRemoteCall.WithMessage("decoding display size").WithCause(err)
	}
	c.dispSize = &size
	return size.X, size.Y, nil
}

// DisplayRotation returns the current orientation, cached until the next
// SetDisplayRotation.
func (c *Client) DisplayRotation() (Rotation, error) {
	c.dispMu.Lock()
	defer c.dispMu.Unlock()
	if c.dispRot != nil {
		return *c.dispRot, nil
	}
	res, err := c.invokeDriver("Driver.getDisplayRotation")
	if err != nil {
		return Rotation0, err
	}
	var rot Rotation
	if err := res.Decode(&rot); err != nil {
		return Rotation0, core.ErrRemoteCall.WithMessage("decoding display rotation").WithCause(err)
	}
	c.dispRot = &rot
	return rot, nil
}

// SetDisplayRotation rotates the screen. The size and rotation caches
// are dropped: a rotation swaps the display dimensions.
func (c *Client) SetDisplayRotation(r Rotation) error {
	if _, err := c.invokeDriver("Driver.setDisplayRotation", int(r)); err != nil {
		return err
	}
	c.dispMu.Lock()
	c.dispSize = nil
	c.dispRot = nil
	c.dispMu.Unlock()
	return nil
}

// toAbs resolves a coordinate pair to absolute pixels. When both values
// lie in [0, 1] they are ratios of the display size, so (1, 1) addresses
// the bottom-right corner; anything larger is taken as pixels already.
func (c *Client) toAbs(x, y float64) (Point, error) {
	if x < 0 || y < 0 {
		return Point{}, core.ErrInvalidGesture.WithMessagef("negative coordinate (%v, %v)", x, y)
	}
	if x <= 1 && y <= 1 {
		w, h, err := c.DisplaySize()
		if err != nil {
			return Point{}, err
		}
		return Point{X: int(float64(w) * x), Y: int(float64(h) * y)}, nil
	}
	return Point{X: int(x), Y: int(y)}, nil
}
