package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/devicelab-dev/harmony-runner/pkg/flow"
)

func TestBuildSkeleton(t *testing.T) {
	flows := []flow.Flow{
		{
			SourcePath: "flows/login.yaml",
			Config:     flow.Config{Name: "Login Flow", Tags: []string{"smoke"}},
			Steps: []flow.Step{
				&flow.LaunchAppStep{BaseStep: flow.BaseStep{StepType: flow.StepLaunchApp}, AppID: "com.example.app"},
				&flow.TapOnStep{
					BaseStep: flow.BaseStep{StepType: flow.StepTapOn},
					Selector: flow.Selector{Text: "Login"},
				},
			},
		},
		{
			SourcePath: "flows/checkout.yaml",
			Steps: []flow.Step{
				&flow.BackStep{BaseStep: flow.BaseStep{StepType: flow.StepBack}},
			},
		},
	}

	cfg := BuilderConfig{
		OutputDir:     t.TempDir(),
		Device:        Device{ID: "FMR0223C13000649", Platform: "harmony"},
		App:           App{ID: "com.example.app"},
		RunnerVersion: "1.0.0",
		DriverName:    "hypium",
	}

	index, details, err := BuildSkeleton(flows, cfg)
	if err != nil {
		t.Fatalf("BuildSkeleton() error = %v", err)
	}

	if index.Status != StatusPending {
		t.Errorf("index.Status = %v, want %v", index.Status, StatusPending)
	}
	if index.Summary.Total != 2 || index.Summary.Pending != 2 {
		t.Errorf("Summary = %+v, want Total=2 Pending=2", index.Summary)
	}
	if index.Runner.Driver != "hypium" {
		t.Errorf("Runner.Driver = %q, want %q", index.Runner.Driver, "hypium")
	}

	first := index.Flows[0]
	if first.ID != "flow-000" {
		t.Errorf("Flows[0].ID = %q, want %q", first.ID, "flow-000")
	}
	if first.Name != "Login Flow" {
		t.Errorf("Flows[0].Name = %q, want %q", first.Name, "Login Flow")
	}
	if first.DataFile != filepath.Join("flows", "flow-000.json") {
		t.Errorf("Flows[0].DataFile = %q", first.DataFile)
	}
	if first.Commands.Total != 2 || first.Commands.Pending != 2 {
		t.Errorf("Flows[0].Commands = %+v, want Total=2 Pending=2", first.Commands)
	}
	if len(first.Tags) != 1 || first.Tags[0] != "smoke" {
		t.Errorf("Flows[0].Tags = %v, want [smoke]", first.Tags)
	}

	// Unnamed flows fall back to the filename
	if index.Flows[1].Name != "checkout" {
		t.Errorf("Flows[1].Name = %q, want %q", index.Flows[1].Name, "checkout")
	}

	if len(details) != 2 {
		t.Fatalf("len(details) = %d, want 2", len(details))
	}
	if details[0].Device == nil || details[0].Device.ID != "FMR0223C13000649" {
		t.Error("flow detail missing device info")
	}
	for _, cmd := range details[0].Commands {
		if cmd.Status != StatusPending {
			t.Errorf("command %s status = %v, want pending", cmd.ID, cmd.Status)
		}
	}
	if details[0].Commands[1].Params == nil || details[0].Commands[1].Params.Selector == nil {
		t.Fatal("tapOn command missing selector params")
	}
	if got := details[0].Commands[1].Params.Selector.Value; got != "Login" {
		t.Errorf("selector value = %q, want %q", got, "Login")
	}
}

func TestExtractParams(t *testing.T) {
	tests := []struct {
		name string
		step flow.Step
		want func(t *testing.T, p *CommandParams)
	}{
		{
			name: "tapOn selector with timeout",
			step: &flow.TapOnStep{
				BaseStep: flow.BaseStep{StepType: flow.StepTapOn, TimeoutMs: 5000},
				Selector: flow.Selector{ID: "btn_submit"},
			},
			want: func(t *testing.T, p *CommandParams) {
				if p.Selector == nil || p.Selector.Type != "id" || p.Selector.Value != "btn_submit" {
					t.Errorf("Selector = %+v, want id=btn_submit", p.Selector)
				}
				if p.Timeout != 5000 {
					t.Errorf("Timeout = %d, want 5000", p.Timeout)
				}
			},
		},
		{
			name: "waitFor gone takes precedence",
			step: &flow.WaitForStep{
				BaseStep: flow.BaseStep{StepType: flow.StepWaitFor},
				Selector: flow.Selector{Text: "Loading"},
				Gone:     &flow.Selector{Text: "Spinner"},
			},
			want: func(t *testing.T, p *CommandParams) {
				if p.Selector == nil || p.Selector.Value != "Spinner" {
					t.Errorf("Selector = %+v, want gone selector Spinner", p.Selector)
				}
			},
		},
		{
			name: "inputText carries text",
			step: &flow.InputTextStep{
				BaseStep: flow.BaseStep{StepType: flow.StepInputText},
				Text:     "hello@example.com",
			},
			want: func(t *testing.T, p *CommandParams) {
				if p.Text != "hello@example.com" {
					t.Errorf("Text = %q", p.Text)
				}
			},
		},
		{
			name: "swipe carries direction",
			step: &flow.SwipeStep{
				BaseStep:  flow.BaseStep{StepType: flow.StepSwipe},
				Direction: "UP",
			},
			want: func(t *testing.T, p *CommandParams) {
				if p.Direction != "UP" {
					t.Errorf("Direction = %q, want UP", p.Direction)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := extractParams(tt.step)
			if p == nil {
				t.Fatal("extractParams() = nil")
			}
			tt.want(t, p)
		})
	}

	// Steps with nothing to report produce nil params
	if p := extractParams(&flow.BackStep{BaseStep: flow.BaseStep{StepType: flow.StepBack}}); p != nil {
		t.Errorf("extractParams(back) = %+v, want nil", p)
	}
}

func TestConvertSelector_Priority(t *testing.T) {
	optional := true
	sel := &flow.Selector{
		Text:        "Submit",
		ID:          "btn_submit",
		Type:        "Button",
		Description: "submit button",
		Optional:    &optional,
	}

	got := convertSelector(sel)
	if got == nil {
		t.Fatal("convertSelector() = nil")
	}
	if got.Type != "text" || got.Value != "Submit" {
		t.Errorf("got %s=%q, text wins over id/type/description", got.Type, got.Value)
	}
	if !got.Optional {
		t.Error("Optional = false, want true")
	}

	if got := convertSelector(&flow.Selector{}); got != nil {
		t.Errorf("convertSelector(empty) = %+v, want nil", got)
	}
}

func TestWriteSkeleton(t *testing.T) {
	tmpDir := t.TempDir()

	flows := []flow.Flow{
		{
			SourcePath: "flows/smoke.yaml",
			Config:     flow.Config{Name: "Smoke"},
			Steps: []flow.Step{
				&flow.LaunchAppStep{BaseStep: flow.BaseStep{StepType: flow.StepLaunchApp}},
			},
		},
	}

	index, details, err := BuildSkeleton(flows, BuilderConfig{OutputDir: tmpDir})
	if err != nil {
		t.Fatalf("BuildSkeleton() error = %v", err)
	}

	if err := WriteSkeleton(tmpDir, index, details); err != nil {
		t.Fatalf("WriteSkeleton() error = %v", err)
	}

	for _, rel := range []string{
		"report.json",
		"report.html",
		filepath.Join("flows", "flow-000.json"),
	} {
		if _, err := os.Stat(filepath.Join(tmpDir, rel)); err != nil {
			t.Errorf("missing %s after WriteSkeleton: %v", rel, err)
		}
	}

	// Per-flow assets directory is pre-created for screenshots
	if fi, err := os.Stat(filepath.Join(tmpDir, "assets", "flow-000")); err != nil || !fi.IsDir() {
		t.Error("assets/flow-000 directory not created")
	}
}
