package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatchDirs_FileMapsToParent(t *testing.T) {
	dir := t.TempDir()
	flowFile := filepath.Join(dir, "login.yaml")
	if err := os.WriteFile(flowFile, []byte(`- launchApp`), 0o644); err != nil {
		t.Fatal(err)
	}

	dirs := watchDirs([]string{flowFile})
	if len(dirs) != 1 {
		t.Fatalf("expected 1 watch dir, got %v", dirs)
	}
	if dirs[0] != dir {
		t.Errorf("expected parent dir %s, got %s", dir, dirs[0])
	}
}

func TestWatchDirs_DirMapsToItself(t *testing.T) {
	dir := t.TempDir()

	dirs := watchDirs([]string{dir})
	if len(dirs) != 1 || dirs[0] != dir {
		t.Errorf("expected [%s], got %v", dir, dirs)
	}
}

func TestWatchDirs_Dedupe(t *testing.T) {
	dir := t.TempDir()
	fileA := filepath.Join(dir, "a.yaml")
	fileB := filepath.Join(dir, "b.yaml")
	for _, f := range []string{fileA, fileB} {
		if err := os.WriteFile(f, []byte(`- back`), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	dirs := watchDirs([]string{fileA, fileB, dir})
	if len(dirs) != 1 {
		t.Errorf("expected deduped single dir, got %v", dirs)
	}
}

func TestWatchDirs_MissingPathUsesParent(t *testing.T) {
	dirs := watchDirs([]string{"flows/login.yaml"})
	if len(dirs) != 1 || dirs[0] != "flows" {
		t.Errorf("expected [flows], got %v", dirs)
	}
}

func TestIsFlowFile(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{"login.yaml", true},
		{"flows/checkout.yml", true},
		{"FLOWS/SMOKE.YAML", true},
		{"config.yaml", true},
		{"readme.md", false},
		{"screenshot.jpeg", false},
		{"flow", false},
		{"", false},
	}

	for _, tc := range tests {
		if got := isFlowFile(tc.path); got != tc.expected {
			t.Errorf("isFlowFile(%q) = %v, want %v", tc.path, got, tc.expected)
		}
	}
}

func TestSettledFiles_OnlyOldEntries(t *testing.T) {
	now := time.Now()
	pending := map[string]time.Time{
		"flows/old.yaml":   now.Add(-time.Second),
		"flows/fresh.yaml": now,
	}

	settled := settledFiles(pending, 500*time.Millisecond)
	if len(settled) != 1 {
		t.Fatalf("expected 1 settled file, got %v", settled)
	}
	if settled[0] != "flows/old.yaml" {
		t.Errorf("expected flows/old.yaml, got %s", settled[0])
	}
}

func TestSettledFiles_Sorted(t *testing.T) {
	old := time.Now().Add(-time.Second)
	pending := map[string]time.Time{
		"flows/b.yaml": old,
		"flows/a.yaml": old,
	}

	settled := settledFiles(pending, 500*time.Millisecond)
	if len(settled) != 2 {
		t.Fatalf("expected 2 settled files, got %v", settled)
	}
	if settled[0] != "flows/a.yaml" || settled[1] != "flows/b.yaml" {
		t.Errorf("expected sorted output, got %v", settled)
	}
}

func TestSettledFiles_Empty(t *testing.T) {
	settled := settledFiles(map[string]time.Time{}, 500*time.Millisecond)
	if len(settled) != 0 {
		t.Errorf("expected no settled files, got %v", settled)
	}
}
