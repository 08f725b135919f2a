package config

import (
	"os"
	"path/filepath"
	"sync"
)

const envHome = "HARMONY_RUNNER_HOME"

var (
	homeOnce sync.Once
	homeDir  string
)

// GetHome returns the harmony-runner home directory.
//
// Resolution order:
//  1. $HARMONY_RUNNER_HOME environment variable
//  2. Parent of the binary's directory (if binary is in <home>/bin/)
//  3. Current working directory (development fallback)
func GetHome() string {
	homeOnce.Do(func() {
		homeDir = resolveHome()
	})
	return homeDir
}

// GetAgentPath returns the bundled uitest agent library, or "" when the
// home directory does not carry one. The agent is optional: without it the
// on-device daemon is started with whatever agent the device already has.
func GetAgentPath() string {
	path := filepath.Join(GetHome(), "agent", "uitest_agent.so")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func resolveHome() string {
	// 1. Environment variable
	if env := os.Getenv(envHome); env != "" {
		return env
	}

	// 2. Binary-relative: if binary is at <home>/bin/harmony-runner, use <home>
	if execPath, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
			execPath = resolved
		}
		binDir := filepath.Dir(execPath)
		if filepath.Base(binDir) == "bin" {
			return filepath.Dir(binDir)
		}
	}

	// 3. Current working directory
	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}

	return "."
}

// ResetHome resets the cached home directory (for testing).
func ResetHome() {
	homeOnce = sync.Once{}
	homeDir = ""
}
