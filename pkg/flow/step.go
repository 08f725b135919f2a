// Package flow handles parsing and representation of YAML flow files.
package flow

// StepType represents the type of step.
type StepType string

// Step type constants.
const (
	// Interaction
	StepTapOn       StepType = "tapOn"
	StepDoubleTapOn StepType = "doubleTapOn"
	StepLongPressOn StepType = "longPressOn"
	StepTapOnPoint  StepType = "tapOnPoint"
	StepSwipe       StepType = "swipe"
	StepBack        StepType = "back"
	StepHome        StepType = "home"

	// Text & keys
	StepInputText StepType = "inputText"
	StepEraseText StepType = "eraseText"
	StepPressKey  StepType = "pressKey"

	// Assertions & waits
	StepAssertVisible    StepType = "assertVisible"
	StepAssertNotVisible StepType = "assertNotVisible"
	StepWaitFor          StepType = "waitFor"
	StepWait             StepType = "wait"

	// App management
	StepLaunchApp  StepType = "launchApp"
	StepStopApp    StepType = "stopApp"
	StepClearState StepType = "clearState"
	StepOpenLink   StepType = "openLink"

	// Flow control & scripting
	StepRepeat     StepType = "repeat"
	StepRunFlow    StepType = "runFlow"
	StepRunScript  StepType = "runScript"
	StepEvalScript StepType = "evalScript"

	// Media
	StepTakeScreenshot StepType = "takeScreenshot"
)

// Step is the interface for all flow steps.
type Step interface {
	Type() StepType
	IsOptional() bool
	Label() string
	Describe() string
}

// BaseStep contains common fields for all steps.
type BaseStep struct {
	StepType  StepType `yaml:"-"`
	Optional  bool     `yaml:"optional"`
	StepLabel string   `yaml:"label"`
	TimeoutMs int      `yaml:"timeout"`
}

// Type returns the step type.
func (b *BaseStep) Type() StepType { return b.StepType }

// IsOptional returns whether the step is optional.
func (b *BaseStep) IsOptional() bool { return b.Optional }

// Label returns the step label.
func (b *BaseStep) Label() string { return b.StepLabel }

// Describe returns a human-readable description.
func (b *BaseStep) Describe() string { return string(b.StepType) }

// ============================================
// Interaction Steps
// ============================================

// TapOnStep taps on an element.
type TapOnStep struct {
	BaseStep `yaml:",inline"`
	Selector Selector `yaml:",inline"`
}

// DoubleTapOnStep double taps on an element.
type DoubleTapOnStep struct {
	BaseStep `yaml:",inline"`
	Selector Selector `yaml:",inline"`
}

// LongPressOnStep long presses on an element.
type LongPressOnStep struct {
	BaseStep `yaml:",inline"`
	Selector Selector `yaml:",inline"`
}

// TapOnPointStep taps at coordinates. Values in [0, 1] are screen
// ratios, anything larger is absolute pixels. Point is the "x, y" or
// "x%, y%" string alternative.
type TapOnPointStep struct {
	BaseStep  `yaml:",inline"`
	X         float64 `yaml:"x"`
	Y         float64 `yaml:"y"`
	Point     string  `yaml:"point"`
	LongPress bool    `yaml:"longPress"`
}

// SwipeStep performs a swipe, either by direction or between points.
type SwipeStep struct {
	BaseStep  `yaml:",inline"`
	Direction string  `yaml:"direction"` // UP, DOWN, LEFT, RIGHT
	Scale     float64 `yaml:"scale"`     // Directional form: fraction of the screen covered
	Start     string  `yaml:"start"`     // "x, y" or "x%, y%"
	End       string  `yaml:"end"`
	Speed     int     `yaml:"speed"` // px/s
}

// BackStep presses the system back key.
type BackStep struct {
	BaseStep `yaml:",inline"`
}

// HomeStep returns to the launcher.
type HomeStep struct {
	BaseStep `yaml:",inline"`
}

// ============================================
// Text & Key Steps
// ============================================

// InputTextStep types text. With a selector the field is tapped first
// to take focus.
type InputTextStep struct {
	BaseStep `yaml:",inline"`
	Text     string   `yaml:"text"`
	Selector Selector `yaml:",inline"`
}

// EraseTextStep clears text. With a selector the field's text is
// cleared in place; without one the focused field takes delete key
// presses.
type EraseTextStep struct {
	BaseStep   `yaml:",inline"`
	Selector   Selector `yaml:",inline"`
	Characters int      `yaml:"characters"`
}

// PressKeyStep presses a named key.
type PressKeyStep struct {
	BaseStep `yaml:",inline"`
	Key      string `yaml:"key"`
}

// ============================================
// Assertion & Wait Steps
// ============================================

// AssertVisibleStep asserts element is visible.
type AssertVisibleStep struct {
	BaseStep `yaml:",inline"`
	Selector Selector `yaml:",inline"`
}

// AssertNotVisibleStep asserts element is not visible.
type AssertNotVisibleStep struct {
	BaseStep `yaml:",inline"`
	Selector Selector `yaml:",inline"`
}

// WaitForStep waits for an element to appear, or with gone, for one to
// go away. The timeout field bounds the wait.
type WaitForStep struct {
	BaseStep `yaml:",inline"`
	Selector Selector  `yaml:",inline"`
	Gone     *Selector `yaml:"gone"`
}

// WaitStep pauses the flow.
type WaitStep struct {
	BaseStep   `yaml:",inline"`
	DurationMs int `yaml:"duration"`
}

// Condition gates conditional steps.
type Condition struct {
	Visible    *Selector `yaml:"visible"`
	NotVisible *Selector `yaml:"notVisible"`
	Script     string    `yaml:"scriptCondition"`
}

// ============================================
// App Management Steps
// ============================================

// LaunchAppStep launches an app.
type LaunchAppStep struct {
	BaseStep   `yaml:",inline"`
	AppID      string `yaml:"appId"`
	ClearState bool   `yaml:"clearState"`
	StopApp    *bool  `yaml:"stopApp"`
}

// StopAppStep stops an app.
type StopAppStep struct {
	BaseStep `yaml:",inline"`
	AppID    string `yaml:"appId"`
}

// ClearStateStep clears app data and cache.
type ClearStateStep struct {
	BaseStep `yaml:",inline"`
	AppID    string `yaml:"appId"`
}

// OpenLinkStep opens a URL on the device.
type OpenLinkStep struct {
	BaseStep `yaml:",inline"`
	Link     string `yaml:"link"`
}

// ============================================
// Flow Control & Scripting Steps
// ============================================

// RepeatStep repeats steps.
type RepeatStep struct {
	BaseStep `yaml:",inline"`
	Times    string    `yaml:"times"` // String for variable support
	While    Condition `yaml:"while"`
	Steps    []Step    `yaml:"-"`
}

// RunFlowStep runs another flow.
type RunFlowStep struct {
	BaseStep `yaml:",inline"`
	File     string            `yaml:"file"`
	Steps    []Step            `yaml:"-"` // Inline steps
	When     *Condition        `yaml:"when"`
	Env      map[string]string `yaml:"env"`
}

// RunScriptStep runs a script file.
type RunScriptStep struct {
	BaseStep `yaml:",inline"`
	Script   string            `yaml:"script"` // Script filename (string form)
	File     string            `yaml:"file"`   // Script filename (map form)
	Env      map[string]string `yaml:"env"`
}

// ScriptPath returns the script path (either Script or File field).
func (s *RunScriptStep) ScriptPath() string {
	if s.File != "" {
		return s.File
	}
	return s.Script
}

// EvalScriptStep evaluates JavaScript.
type EvalScriptStep struct {
	BaseStep `yaml:",inline"`
	Script   string `yaml:"script"`
}

// ============================================
// Media Steps
// ============================================

// TakeScreenshotStep takes a screenshot.
type TakeScreenshotStep struct {
	BaseStep `yaml:",inline"`
	Path     string `yaml:"path"`
}

// UnsupportedStep represents an unsupported step.
type UnsupportedStep struct {
	BaseStep `yaml:",inline"`
	Reason   string
}

// Describe returns a description including the unsupported reason.
func (s *UnsupportedStep) Describe() string {
	return string(s.StepType) + " (unsupported: " + s.Reason + ")"
}

// ============================================
// Describe() implementations for detailed output
// ============================================

// Describe returns a human-readable description of the tap step.
func (s *TapOnStep) Describe() string {
	return "tapOn: " + s.Selector.DescribeQuoted()
}

// Describe returns a human-readable description of the double tap step.
func (s *DoubleTapOnStep) Describe() string {
	return "doubleTapOn: " + s.Selector.DescribeQuoted()
}

// Describe returns a human-readable description of the long press step.
func (s *LongPressOnStep) Describe() string {
	return "longPressOn: " + s.Selector.DescribeQuoted()
}

// Describe returns a human-readable description of the swipe step.
func (s *SwipeStep) Describe() string {
	if s.Direction != "" {
		return "swipe: " + s.Direction
	}
	if s.Start != "" || s.End != "" {
		return "swipe: " + s.Start + " -> " + s.End
	}
	return "swipe"
}

// Describe returns a human-readable description of the input text step.
func (s *InputTextStep) Describe() string {
	return "inputText: \"" + s.Text + "\""
}

// Describe returns a human-readable description of the press key step.
func (s *PressKeyStep) Describe() string {
	return "pressKey: " + s.Key
}

// Describe returns a human-readable description of the assert visible step.
func (s *AssertVisibleStep) Describe() string {
	return "assertVisible: " + s.Selector.DescribeQuoted()
}

// Describe returns a human-readable description of the assert not visible step.
func (s *AssertNotVisibleStep) Describe() string {
	return "assertNotVisible: " + s.Selector.DescribeQuoted()
}

// Describe returns a human-readable description of the wait for step.
func (s *WaitForStep) Describe() string {
	if s.Gone != nil {
		return "waitFor: gone " + s.Gone.DescribeQuoted()
	}
	return "waitFor: " + s.Selector.DescribeQuoted()
}

// Describe returns a human-readable description of the launch app step.
func (s *LaunchAppStep) Describe() string {
	if s.ClearState {
		return "launchApp (clearState)"
	}
	return "launchApp"
}

// Describe returns a human-readable description of the run flow step.
func (s *RunFlowStep) Describe() string {
	if s.File != "" {
		return "runFlow: " + s.File
	}
	return "runFlow"
}
