package flow

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func TestSelector_UnmarshalYAML_ScalarValue(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		expected string
	}{
		{
			name:     "simple text",
			yaml:     `"Login"`,
			expected: "Login",
		},
		{
			name:     "text with spaces",
			yaml:     `"Sign Up Now"`,
			expected: "Sign Up Now",
		},
		{
			name:     "unquoted text",
			yaml:     `Submit`,
			expected: "Submit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Selector
			if err := yaml.Unmarshal([]byte(tt.yaml), &s); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.Text != tt.expected {
				t.Errorf("got Text=%q, want %q", s.Text, tt.expected)
			}
		})
	}
}

func TestSelector_UnmarshalYAML_StructValue(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		validate func(t *testing.T, s *Selector)
	}{
		{
			name: "id selector",
			yaml: `id: login-btn`,
			validate: func(t *testing.T, s *Selector) {
				if s.ID != "login-btn" {
					t.Errorf("got ID=%q, want login-btn", s.ID)
				}
			},
		},
		{
			name: "type selector",
			yaml: `type: Button`,
			validate: func(t *testing.T, s *Selector) {
				if s.Type != "Button" {
					t.Errorf("got Type=%q, want Button", s.Type)
				}
			},
		},
		{
			name: "description selector",
			yaml: `description: "profile avatar"`,
			validate: func(t *testing.T, s *Selector) {
				if s.Description != "profile avatar" {
					t.Errorf("got Description=%q, want profile avatar", s.Description)
				}
			},
		},
		{
			name: "state filters",
			yaml: `
text: "Save"
enabled: true
clickable: true
selected: false
`,
			validate: func(t *testing.T, s *Selector) {
				if s.Enabled == nil || !*s.Enabled {
					t.Error("expected enabled=true")
				}
				if s.Clickable == nil || !*s.Clickable {
					t.Error("expected clickable=true")
				}
				if s.Selected == nil || *s.Selected {
					t.Error("expected selected=false")
				}
			},
		},
		{
			name: "numeric index becomes string",
			yaml: `
text: "Item"
index: 2
`,
			validate: func(t *testing.T, s *Selector) {
				if s.Index != "2" {
					t.Errorf("got Index=%q, want 2", s.Index)
				}
			},
		},
		{
			name: "relative selectors",
			yaml: `
text: "Price"
before:
  text: "Total"
after:
  id: header
within:
  type: Dialog
`,
			validate: func(t *testing.T, s *Selector) {
				if s.Before == nil || s.Before.Text != "Total" {
					t.Errorf("got Before=%+v, want text=Total", s.Before)
				}
				if s.After == nil || s.After.ID != "header" {
					t.Errorf("got After=%+v, want id=header", s.After)
				}
				if s.Within == nil || s.Within.Type != "Dialog" {
					t.Errorf("got Within=%+v, want type=Dialog", s.Within)
				}
			},
		},
		{
			name: "relative selector shorthand",
			yaml: `
text: "Add to cart"
within: "Products"
`,
			validate: func(t *testing.T, s *Selector) {
				if s.Within == nil || s.Within.Text != "Products" {
					t.Errorf("got Within=%+v, want text=Products", s.Within)
				}
			},
		},
		{
			name: "inline step properties",
			yaml: `
text: "Maybe later"
optional: true
label: "Dismiss upsell"
`,
			validate: func(t *testing.T, s *Selector) {
				if s.Optional == nil || !*s.Optional {
					t.Error("expected optional=true")
				}
				if s.Label != "Dismiss upsell" {
					t.Errorf("got Label=%q, want Dismiss upsell", s.Label)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Selector
			if err := yaml.Unmarshal([]byte(tt.yaml), &s); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.validate(t, &s)
		})
	}
}

func TestSelector_UnmarshalYAML_InvalidValue(t *testing.T) {
	var s Selector
	if err := yaml.Unmarshal([]byte(`text: [not, a, scalar]`), &s); err == nil {
		t.Error("expected error for non-scalar text")
	}
}

func TestSelector_IsEmpty(t *testing.T) {
	tru := true

	tests := []struct {
		name     string
		selector Selector
		expected bool
	}{
		{"empty", Selector{}, true},
		{"text", Selector{Text: "Login"}, false},
		{"id", Selector{ID: "btn"}, false},
		{"type", Selector{Type: "Button"}, false},
		{"description", Selector{Description: "avatar"}, false},
		{"state filter only", Selector{Clickable: &tru}, false},
		{"relative only", Selector{Before: &Selector{Text: "x"}}, false},
		{"index only", Selector{Index: "2"}, true},
		{"inline props only", Selector{Optional: &tru, Label: "step"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.selector.IsEmpty(); got != tt.expected {
				t.Errorf("IsEmpty()=%v, want %v", got, tt.expected)
			}
		})
	}
}

func TestSelector_HasRelativeSelector(t *testing.T) {
	tests := []struct {
		name     string
		selector Selector
		expected bool
	}{
		{"none", Selector{Text: "Login"}, false},
		{"before", Selector{Before: &Selector{Text: "x"}}, true},
		{"after", Selector{After: &Selector{ID: "x"}}, true},
		{"within", Selector{Within: &Selector{Type: "List"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.selector.HasRelativeSelector(); got != tt.expected {
				t.Errorf("HasRelativeSelector()=%v, want %v", got, tt.expected)
			}
		})
	}
}

func TestSelector_Describe(t *testing.T) {
	tests := []struct {
		name     string
		selector Selector
		expected string
	}{
		{"text", Selector{Text: "Login"}, "Login"},
		{"id", Selector{ID: "submit"}, "#submit"},
		{"type", Selector{Type: "Button"}, "type:Button"},
		{"description", Selector{Description: "avatar"}, "desc:avatar"},
		{"text wins over id", Selector{Text: "Login", ID: "submit"}, "Login"},
		{"empty", Selector{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.selector.Describe(); got != tt.expected {
				t.Errorf("Describe()=%q, want %q", got, tt.expected)
			}
		})
	}
}

func TestSelector_DescribeQuoted(t *testing.T) {
	tests := []struct {
		name     string
		selector Selector
		expected string
	}{
		{"text", Selector{Text: "Login"}, `text="Login"`},
		{"id", Selector{ID: "submit"}, `id="submit"`},
		{"type", Selector{Type: "Button"}, `type="Button"`},
		{"description", Selector{Description: "avatar"}, `description="avatar"`},
		{"empty", Selector{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.selector.DescribeQuoted(); got != tt.expected {
				t.Errorf("DescribeQuoted()=%q, want %q", got, tt.expected)
			}
		})
	}
}
