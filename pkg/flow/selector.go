// Package flow handles parsing and representation of YAML flow files.
package flow

import "gopkg.in/yaml.v3"

// Selector represents element selection criteria, mirroring the hypium
// On attribute matchers one to one.
// Pure data structure - the driver decides how to compile it.
type Selector struct {
	// Attribute matchers
	Text        string `yaml:"text"`
	ID          string `yaml:"id"`
	Type        string `yaml:"type"` // Component type, e.g. "Button"
	Description string `yaml:"description"`

	// State filters
	Enabled       *bool `yaml:"enabled"`
	Focused       *bool `yaml:"focused"`
	Checked       *bool `yaml:"checked"`
	Checkable     *bool `yaml:"checkable"`
	Clickable     *bool `yaml:"clickable"`
	LongClickable *bool `yaml:"longClickable"`
	Scrollable    *bool `yaml:"scrollable"`
	Selected      *bool `yaml:"selected"`

	// Index for multiple matches (string for variable support)
	Index string `yaml:"index"`

	// Position relative to another match
	Before *Selector `yaml:"before"`
	After  *Selector `yaml:"after"`
	Within *Selector `yaml:"within"`

	// Inline step properties (parsed with selector for YAML convenience)
	Optional *bool  `yaml:"optional"`
	Label    string `yaml:"label"`
}

// selectorRaw mirrors Selector for YAML parsing so UnmarshalYAML can
// decode without recursing into itself.
type selectorRaw struct {
	Text          string    `yaml:"text"`
	ID            string    `yaml:"id"`
	Type          string    `yaml:"type"`
	Description   string    `yaml:"description"`
	Enabled       *bool     `yaml:"enabled"`
	Focused       *bool     `yaml:"focused"`
	Checked       *bool     `yaml:"checked"`
	Checkable     *bool     `yaml:"checkable"`
	Clickable     *bool     `yaml:"clickable"`
	LongClickable *bool     `yaml:"longClickable"`
	Scrollable    *bool     `yaml:"scrollable"`
	Selected      *bool     `yaml:"selected"`
	Index         string    `yaml:"index"`
	Before        *Selector `yaml:"before"`
	After         *Selector `yaml:"after"`
	Within        *Selector `yaml:"within"`
	Optional      *bool     `yaml:"optional"`
	Label         string    `yaml:"label"`
}

// UnmarshalYAML allows Selector to be unmarshaled from string or struct.
func (s *Selector) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		s.Text = node.Value
		return nil
	}

	var raw selectorRaw
	if err := node.Decode(&raw); err != nil {
		return err
	}

	s.Text = raw.Text
	s.ID = raw.ID
	s.Type = raw.Type
	s.Description = raw.Description
	s.Enabled = raw.Enabled
	s.Focused = raw.Focused
	s.Checked = raw.Checked
	s.Checkable = raw.Checkable
	s.Clickable = raw.Clickable
	s.LongClickable = raw.LongClickable
	s.Scrollable = raw.Scrollable
	s.Selected = raw.Selected
	s.Index = raw.Index
	s.Before = raw.Before
	s.After = raw.After
	s.Within = raw.Within
	s.Optional = raw.Optional
	s.Label = raw.Label

	return nil
}

// IsEmpty returns true if no selector criteria are set.
func (s *Selector) IsEmpty() bool {
	return s.Text == "" &&
		s.ID == "" &&
		s.Type == "" &&
		s.Description == "" &&
		s.Enabled == nil &&
		s.Focused == nil &&
		s.Checked == nil &&
		s.Checkable == nil &&
		s.Clickable == nil &&
		s.LongClickable == nil &&
		s.Scrollable == nil &&
		s.Selected == nil &&
		s.Before == nil &&
		s.After == nil &&
		s.Within == nil
}

// HasRelativeSelector returns true if any relative selector is set.
func (s *Selector) HasRelativeSelector() bool {
	return s.Before != nil || s.After != nil || s.Within != nil
}

// Describe returns a human-readable description.
func (s *Selector) Describe() string {
	switch {
	case s.Text != "":
		return s.Text
	case s.ID != "":
		return "#" + s.ID
	case s.Type != "":
		return "type:" + s.Type
	case s.Description != "":
		return "desc:" + s.Description
	default:
		return ""
	}
}

// DescribeQuoted returns a quoted description like text="value" or id="value".
func (s *Selector) DescribeQuoted() string {
	switch {
	case s.Text != "":
		return "text=\"" + s.Text + "\""
	case s.ID != "":
		return "id=\"" + s.ID + "\""
	case s.Type != "":
		return "type=\"" + s.Type + "\""
	case s.Description != "":
		return "description=\"" + s.Description + "\""
	default:
		return ""
	}
}
