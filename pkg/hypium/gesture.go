package hypium

import (
	"math"
	"time"

	"github.com/devicelab-dev/harmony-runner/pkg/core"
)

const (
	sampleTimeMin    = 10 // ms
	sampleTimeNormal = 50
	sampleTimeMax    = 100

	injectSpeed = 2000
	maxFingers  = 10
)

type stepKind int

const (
	stepStart stepKind = iota
	stepMove
	stepPause
)

type gestureStep struct {
	x, y     int
	kind     stepKind
	interval int // ms
}

// Gesture builds a pointer injection out of start/move/pause steps, one
// path per finger. Coordinates follow the same ratio-or-pixel convention
// as Click. Build errors stick and surface from Action.
type Gesture struct {
	client   *Client
	sampling int // ms
	fingers  []*Finger
	err      error
}

// Finger is one finger's path within a gesture.
type Finger struct {
	g     *Gesture
	steps []gestureStep
}

// Gesture starts a builder with the default sampling interval.
func (c *Client) Gesture() *Gesture {
	return &Gesture{client: c, sampling: sampleTimeNormal}
}

// WithSampling sets the pointer sampling interval. Values outside
// [10ms, 100ms] fall back to the 50ms default.
func (g *Gesture) WithSampling(d time.Duration) *Gesture {
	ms := int(d / time.Millisecond)
	if ms < sampleTimeMin || ms > sampleTimeMax {
		ms = sampleTimeNormal
	}
	g.sampling = ms
	return g
}

// Finger adds another finger path to the gesture.
func (g *Gesture) Finger() *Finger {
	f := &Finger{g: g}
	g.fingers = append(g.fingers, f)
	return f
}

// finger0 is the implicit path behind the single-finger convenience API.
func (g *Gesture) finger0() *Finger {
	if len(g.fingers) == 0 {
		return g.Finger()
	}
	return g.fingers[0]
}

// Start places the finger at x, y and holds it for hold.
func (g *Gesture) Start(x, y float64, hold time.Duration) *Gesture {
	g.finger0().Start(x, y, hold)
	return g
}

// Move slides the finger to x, y over dur.
func (g *Gesture) Move(x, y float64, dur time.Duration) *Gesture {
	g.finger0().Move(x, y, dur)
	return g
}

// Pause keeps the finger in place for dur.
func (g *Gesture) Pause(dur time.Duration) *Gesture {
	g.finger0().Pause(dur)
	return g
}

func (g *Gesture) fail(err error) {
	if g.err == nil {
		g.err = err
	}
}

// Start begins this finger's path. Each finger starts exactly once.
func (f *Finger) Start(x, y float64, hold time.Duration) *Finger {
	if f.g.err != nil {
		return f
	}
	if len(f.steps) > 0 {
		f.g.fail(core.ErrInvalidGesture.WithMessage("finger path already started"))
		return f
	}
	f.add(x, y, stepStart, hold)
	return f
}

// Move extends this finger's path to x, y over dur.
func (f *Finger) Move(x, y float64, dur time.Duration) *Finger {
	if f.g.err != nil {
		return f
	}
	if len(f.steps) == 0 {
		f.g.fail(core.ErrInvalidGesture.WithMessage("finger path must start before moving"))
		return f
	}
	f.add(x, y, stepMove, dur)
	return f
}

// Pause holds this finger in place for dur.
func (f *Finger) Pause(dur time.Duration) *Finger {
	if f.g.err != nil {
		return f
	}
	if len(f.steps) == 0 {
		f.g.fail(core.ErrInvalidGesture.WithMessage("finger path must start before pausing"))
		return f
	}
	last := f.steps[len(f.steps)-1]
	f.steps = append(f.steps, gestureStep{x: last.x, y: last.y, kind: stepPause, interval: durMs(dur)})
	return f
}

func (f *Finger) add(x, y float64, kind stepKind, d time.Duration) {
	p, err := f.g.client.toAbs(x, y)
	if err != nil {
		f.g.fail(err)
		return
	}
	f.steps = append(f.steps, gestureStep{x: p.X, y: p.Y, kind: kind, interval: durMs(d)})
}

func durMs(d time.Duration) int { return int(d / time.Millisecond) }

// cell is one pointer matrix slot. A non-zero delay is encoded into the
// x value as x + 65536*delayMs, which is how the daemon reads hold times.
type cell struct {
	x, y  int
	delay int // ms
}

// buildCells expands one finger's steps into matrix cells. A start emits
// its held point plus a plain copy; a move re-emits the previous
// waypoint at sampling cadence and then the interpolated points; a pause
// spreads its duration over sampled holds and ends on a 3px nudge that
// keeps the event stream alive.
func buildCells(steps []gestureStep, sampling int) []cell {
	var cells []cell
	for i, st := range steps {
		switch st.kind {
		case stepStart:
			cells = append(cells, cell{x: st.x, y: st.y, delay: st.interval}, cell{x: st.x, y: st.y})
		case stepMove:
			prev := steps[i-1]
			dx, dy := st.x-prev.x, st.y-prev.y
			distance := int(math.Sqrt(float64(dx*dx + dy*dy)))
			n := movePoints(distance, st.interval, sampling)
			stepX, stepY := dx/n, dy/n
			cells[len(cells)-1] = cell{x: prev.x, y: prev.y, delay: sampling}
			x, y := prev.x, prev.y
			for j := 0; j < n; j++ {
				x += stepX
				y += stepY
				cells = append(cells, cell{x: x, y: y, delay: sampling})
			}
		case stepPause:
			n := st.interval / sampling
			if n < 1 {
				n = 1
			}
			hold := st.interval / n
			for j := 0; j < n; j++ {
				cells = append(cells, cell{x: st.x, y: st.y, delay: hold})
			}
			cells = append(cells, cell{x: st.x + 3, y: st.y})
		}
	}
	return cells
}

// movePoints decides how many samples a move emits: one point per
// sampling interval, but never more than the pixel distance and never
// less than one.
func movePoints(distance, interval, sampling int) int {
	if interval < sampling || distance < 1 {
		return 1
	}
	n := interval / sampling
	if n > distance {
		n = distance
	}
	return n
}

// Action injects the gesture and resets the builder for reuse.
func (g *Gesture) Action() error {
	defer g.reset()
	if g.err != nil {
		return g.err
	}
	if len(g.fingers) == 0 {
		return core.ErrInvalidGesture.WithMessage("gesture has no steps")
	}
	if len(g.fingers) > maxFingers {
		return core.ErrInvalidGesture.WithMessagef("%d fingers exceed the limit of %d", len(g.fingers), maxFingers)
	}
	for i, f := range g.fingers {
		if len(f.steps) == 0 {
			return core.ErrInvalidGesture.WithMessagef("finger %d has no steps", i)
		}
	}

	// Every row gets the same number of columns; shorter paths freeze at
	// their final waypoint.
	rows := make([][]cell, len(g.fingers))
	columns := 0
	for i, f := range g.fingers {
		rows[i] = buildCells(f.steps, g.sampling)
		if len(rows[i]) > columns {
			columns = len(rows[i])
		}
	}
	for i, f := range g.fingers {
		last := f.steps[len(f.steps)-1]
		for len(rows[i]) < columns {
			rows[i] = append(rows[i], cell{x: last.x, y: last.y})
		}
	}

	res, err := g.client.Invoke("PointerMatrix.create", Handle{}, len(g.fingers), columns)
	if err != nil {
		return err
	}
	matrix, err := g.client.handleFromResult("PointerMatrix.create", res, KindPointerMatrix)
	if err != nil {
		return err
	}

	for finger, row := range rows {
		for col, cl := range row {
			point := Point{X: cl.x, Y: cl.y}
			if cl.delay > 0 {
				point.X += 65536 * cl.delay
			}
			if _, err := g.client.Invoke("PointerMatrix.setPoint", matrix, finger, col, point); err != nil {
				return err
			}
		}
	}

	if _, err := g.client.invokeDriver("Driver.injectMultiPointerAction", matrix, injectSpeed); err != nil {
		return err
	}
	g.client.settle()
	return nil
}

func (g *Gesture) reset() {
	g.fingers = nil
	g.err = nil
}
