// Package hypium implements the RPC protocol spoken by the uitest daemon
// on HarmonyOS devices. A Client owns one TCP connection to the daemon
// (normally reached through an hdc port forward), multiplexes concurrent
// calls over it and tracks the remote object handles the daemon mints.
package hypium

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

const (
	rpcModule      = "com.ohos.devicetest.hypiumApiHelper"
	methodHypium   = "callHypiumApi"
	methodCaptures = "Captures"
	hypiumMessage  = "hypium"
)

const (
	// DefaultTimeout is the per-call reply deadline.
	DefaultTimeout = 20 * time.Second
	// DefaultSettleDelay is slept after each UI action so the interface
	// can settle before the next one.
	DefaultSettleDelay = 600 * time.Millisecond
	// DefaultSwipeSpeed is used when a swipe speed is out of range.
	DefaultSwipeSpeed = 2000

	minSwipeSpeed = 200
	maxSwipeSpeed = 40000
)

// request is one framed call to the daemon.
type request struct {
	Module    string      `json:"module"`
	Method    string      `json:"method"`
	Params    interface{} `json:"params"`
	RequestID string      `json:"request_id"`
}

// hypiumParams targets a remote object API such as Driver.click.
type hypiumParams struct {
	API         string        `json:"api"`
	This        interface{}   `json:"this"`
	Args        []interface{} `json:"args"`
	MessageType string        `json:"message_type"`
}

// capturesParams targets a capture API such as captureLayout.
type capturesParams struct {
	API  string        `json:"api"`
	Args []interface{} `json:"args"`
}

// response is one framed daemon reply. The daemon echoes the request_id
// of the call it answers.
type response struct {
	Result    json.RawMessage `json:"result"`
	Exception json.RawMessage `json:"exception"`
	RequestID string          `json:"request_id"`
}

// Result is the payload of a successful daemon reply.
type Result struct {
	raw json.RawMessage
}

// Raw returns the undecoded JSON payload.
func (r Result) Raw() []byte { return r.raw }

// IsNull reports whether the daemon returned no value. Lookup APIs such
// as Driver.findComponent use null for "not found".
func (r Result) IsNull() bool {
	return len(r.raw) == 0 || bytes.Equal(r.raw, []byte("null"))
}

// Decode unmarshals the payload into v.
func (r Result) Decode(v interface{}) error {
	if r.IsNull() {
		return fmt.Errorf("result is null")
	}
	return json.Unmarshal(r.raw, v)
}

// Point is an absolute screen coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Bounds is a component rectangle as reported by the daemon.
type Bounds struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

func (b Bounds) Width() int  { return b.Right - b.Left }
func (b Bounds) Height() int { return b.Bottom - b.Top }

// Center returns the midpoint of the rectangle.
func (b Bounds) Center() Point {
	return Point{X: (b.Left + b.Right) / 2, Y: (b.Top + b.Bottom) / 2}
}

// Info is a full attribute snapshot of a component.
type Info struct {
	ID            string `json:"id"`
	Key           string `json:"key"`
	Type          string `json:"type"`
	Text          string `json:"text"`
	Description   string `json:"description"`
	Selected      bool   `json:"isSelected"`
	Checked       bool   `json:"isChecked"`
	Enabled       bool   `json:"isEnabled"`
	Focused       bool   `json:"isFocused"`
	Checkable     bool   `json:"isCheckable"`
	Clickable     bool   `json:"isClickable"`
	LongClickable bool   `json:"isLongClickable"`
	Scrollable    bool   `json:"isScrollable"`
	Bounds        Bounds `json:"bounds"`
	BoundsCenter  Point  `json:"boundsCenter"`
}

// Rotation is a display orientation as reported by Driver.getDisplayRotation.
type Rotation int

const (
	Rotation0   Rotation = 0
	Rotation90  Rotation = 1
	Rotation180 Rotation = 2
	Rotation270 Rotation = 3
)

func (r Rotation) String() string {
	switch r {
	case Rotation0:
		return "ROTATION_0"
	case Rotation90:
		return "ROTATION_90"
	case Rotation180:
		return "ROTATION_180"
	case Rotation270:
		return "ROTATION_270"
	}
	return fmt.Sprintf("ROTATION_%d", int(r))
}

// Degrees returns the orientation as a clockwise angle.
func (r Rotation) Degrees() int {
	return int(r) * 90
}

// RotationFromDegrees maps 0/90/180/270 to a Rotation.
func RotationFromDegrees(deg int) (Rotation, bool) {
	switch deg {
	case 0, 90, 180, 270:
		return Rotation(deg / 90), true
	}
	return Rotation0, false
}

// Direction is a swipe direction.
type Direction string

const (
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
	DirectionUp    Direction = "up"
	DirectionDown  Direction = "down"
)

// Box restricts a directional swipe to a screen region. Coordinates
// follow the same ratio-or-pixel convention as Click.
type Box struct {
	X1, Y1, X2, Y2 float64
}
