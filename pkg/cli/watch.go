package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/harmony-runner/pkg/logger"
)

// watchDebounce is how long a file must stay quiet before a re-run starts.
// Editors often fire several events for a single save.
const watchDebounce = 500 * time.Millisecond

// watchPollInterval is how often pending events are checked for settling.
const watchPollInterval = 100 * time.Millisecond

// watchAndRun executes the flows once, then re-executes them whenever a
// watched flow file changes. Returns when interrupted with Ctrl+C.
func watchAndRun(cfg *RunConfig) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	// Watch parent directories rather than individual files so editors
	// that replace files on save (rename + create) are still seen.
	dirs := watchDirs(cfg.FlowPaths)
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		logger.Info("Watching directory: %s", dir)
	}

	runPass(cfg)

	fmt.Printf("\n  %s⏳%s Watching %d folder(s) for changes, press Ctrl+C to stop...\n",
		color(colorCyan), color(colorReset), len(dirs))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	// Collect events per file and re-run only after a quiet period
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(watchPollInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isFlowFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			pending[event.Name] = time.Now()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error: %v", err)

		case <-ticker.C:
			changed := settledFiles(pending, watchDebounce)
			if len(changed) == 0 {
				continue
			}
			for _, path := range changed {
				delete(pending, path)
				logger.Info("Flow file changed: %s", path)
			}

			names := make([]string, len(changed))
			for i, path := range changed {
				names[i] = filepath.Base(path)
			}
			fmt.Printf("\n  %s⟳%s Changed: %s - re-running flows\n",
				color(colorCyan), color(colorReset), strings.Join(names, ", "))

			runPass(cfg)
			fmt.Printf("\n  %s⏳%s Watching for changes, press Ctrl+C to stop...\n",
				color(colorCyan), color(colorReset))

		case sig := <-sigCh:
			logger.Info("Received signal %v, stopping watch mode", sig)
			fmt.Println("\nStopping watch mode")
			return nil
		}
	}
}

// runPass runs the flows once, keeping the watcher alive on failure.
func runPass(cfg *RunConfig) {
	if err := runOnce(cfg); err != nil {
		// Flow failures surface as a bare exit code; the summary already
		// explained them, so only print unexpected errors
		var exitErr cli.ExitCoder
		if !errors.As(err, &exitErr) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
}

// watchDirs maps the flow paths to the set of directories to watch.
func watchDirs(paths []string) []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, path := range paths {
		dir := path
		if info, err := os.Stat(path); err != nil || !info.IsDir() {
			dir = filepath.Dir(path)
		}
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// isFlowFile reports whether a changed path is worth a re-run.
// Covers flow files and the workspace config.
func isFlowFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// settledFiles returns the pending files whose last event is older than
// the debounce window, sorted for stable output.
func settledFiles(pending map[string]time.Time, window time.Duration) []string {
	now := time.Now()
	var settled []string
	for path, last := range pending {
		if now.Sub(last) >= window {
			settled = append(settled, path)
		}
	}
	sort.Strings(settled)
	return settled
}
