package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/harmony-runner/pkg/config"
	"github.com/devicelab-dev/harmony-runner/pkg/core"
	"github.com/devicelab-dev/harmony-runner/pkg/device"
	"github.com/devicelab-dev/harmony-runner/pkg/executor"
	"github.com/devicelab-dev/harmony-runner/pkg/flow"
	"github.com/devicelab-dev/harmony-runner/pkg/logger"
	"github.com/devicelab-dev/harmony-runner/pkg/report"
	"github.com/devicelab-dev/harmony-runner/pkg/validator"
)

var runCommand = &cli.Command{
	Name:      "run",
	Aliases:   []string{"test"},
	Usage:     "Run test flows on a device",
	ArgsUsage: "<flow-file-or-folder>...",
	Description: `Run one or more flow files on a connected device.

Reports are generated in the output directory:
  - Default: ./reports/<timestamp>/
  - With --output: <output>/<timestamp>/
  - With --output and --flatten: <output>/ (no timestamp subfolder)

Examples:
 Basic usage
  harmony-runner run flow.yaml
  harmony-runner run flows/
  harmony-runner run login.yaml checkout.yaml

  # With environment variables
  harmony-runner run flows/ -e USER=test -e PASS=secret

  # With tag filtering
  harmony-runner run flows/ --include-tags smoke

  # Re-run on every flow file change
  harmony-runner run flows/ --watch

  # On three devices in parallel
  harmony-runner run flows/ --parallel 3

  # Custom output directory
  harmony-runner run flows/ --output ./my-reports --flatten`,
	Flags: []cli.Flag{
		// Configuration
		&cli.StringFlag{
			Name:  "config",
			Usage: "Path to workspace config.yaml",
		},

		// Environment variables
		&cli.StringSliceFlag{
			Name:    "env",
			Aliases: []string{"e"},
			Usage:   "Environment variables (KEY=VALUE)",
		},

		// Tag filtering
		&cli.StringSliceFlag{
			Name:  "include-tags",
			Usage: "Only include flows with these tags",
		},
		&cli.StringSliceFlag{
			Name:  "exclude-tags",
			Usage: "Exclude flows with these tags",
		},

		// Output directory
		&cli.StringFlag{
			Name:  "output",
			Usage: "Output directory for reports (default: ./reports)",
		},
		&cli.BoolFlag{
			Name:  "flatten",
			Usage: "Don't create timestamp subfolder (requires --output)",
		},
		&cli.BoolFlag{
			Name:  "allure",
			Usage: "Also generate Allure results under the output directory",
		},

		// Parallelization
		&cli.IntFlag{
			Name:  "parallel",
			Usage: "Run tests in parallel on N devices (auto-selects available devices)",
		},

		// Execution modes
		&cli.BoolFlag{
			Name:    "watch",
			Aliases: []string{"continuous", "c"},
			Usage:   "Watch flow files and re-run on change",
		},

		// Driver settings
		&cli.IntFlag{
			Name:    "find-timeout",
			Usage:   "Element lookup timeout in ms (0 = driver default)",
			EnvVars: []string{"HARMONY_FIND_TIMEOUT"},
		},
		&cli.IntFlag{
			Name:  "retries",
			Usage: "Retry failed flows up to N times",
		},
	},
	Action: runTest,
}

// parseDevices parses the --device flag value into a slice of device serials.
// Returns nil if no devices specified (triggers auto-detection later).
func parseDevices(deviceFlag string) []string {
	if deviceFlag != "" {
		// Split comma-separated devices
		devices := strings.Split(deviceFlag, ",")
		for i, d := range devices {
			devices[i] = strings.TrimSpace(d)
		}
		return devices
	}

	// --parallel without --device means auto-detect
	// Return nil to trigger auto-detection in determineExecutionMode
	return nil
}

// isEmulatorSerial reports whether a serial looks like an emulator target.
// Emulators connect over loopback TCP rather than USB.
func isEmulatorSerial(serial string) bool {
	return strings.HasPrefix(serial, "127.0.0.1:") || strings.HasPrefix(serial, "localhost:")
}

// buildDeviceReport creates a report.Device from driver platform info.
func buildDeviceReport(driver core.Driver) report.Device {
	pi := driver.GetPlatformInfo()
	return report.Device{
		ID:         pi.DeviceID,
		Platform:   pi.Platform,
		Name:       pi.DeviceName,
		OSVersion:  pi.OSVersion,
		Model:      pi.DeviceName,
		IsEmulator: isEmulatorSerial(pi.DeviceID),
	}
}

// buildAppReport creates a report.App from driver platform info.
func buildAppReport(driver core.Driver) report.App {
	pi := driver.GetPlatformInfo()
	return report.App{
		ID: pi.AppID,
	}
}

// resolveDriverName returns the driver name for reports.
func resolveDriverName(driverType string) string {
	driverName := strings.ToLower(driverType)
	if driverName == "" {
		driverName = driverHypium
	}
	return driverName
}

// RunConfig holds the complete test run configuration.
type RunConfig struct {
	// Paths
	FlowPaths  []string
	ConfigPath string

	// Environment
	Env map[string]string

	// Filtering
	IncludeTags []string
	ExcludeTags []string

	// Output
	OutputDir string // Final resolved output directory
	Allure    bool

	// Parallelization
	Parallel int // Number of devices to use (0 = single device mode)

	// Execution
	Watch   bool
	Retries int // Max retries per failed flow (0 = no retries)

	// Device
	Devices []string // Device serials (can be comma-separated or multiple from --parallel)
	Verbose bool
	AppFile string // App package to install before testing
	AppID   string // Bundle name under test

	// Driver
	Driver  string // hypium, mock
	HdcPath string // hdc binary, empty = from PATH

	// Driver settings
	RPCTimeoutMs  int // Per-call reply deadline (0 = default)
	FindTimeoutMs int // Element lookup polling window (0 = driver default)
	ActionDelayMs int // Settle pause after each UI action (0 = default)
}

func printBanner() {
	// Make DeviceLab.dev clickable and colored (cyan)
	// OSC 8 hyperlink format: ESC]8;;URL BEL TEXT ESC]8;; BEL
	deviceLabLink := "\x1b]8;;https://devicelab.dev\x07" + color(colorCyan) + "DeviceLab.dev" + color(colorReset) + "\x1b]8;;\x07"

	// Make GitHub link clickable
	githubLink := "\x1b]8;;https://github.com/devicelab-dev/harmony-runner\x07Star us on GitHub\x1b]8;;\x07"

	// Box width is 64 characters (between the ║ symbols)
	// Calculate padding for version line
	// Visible text: "  harmony-runner " + Version + " - by DeviceLab.dev"
	versionLineVisible := 16 + len(Version) + 20 // "  harmony-runner " + version + " - by DeviceLab.dev"
	versionPadding := strings.Repeat(" ", 64-versionLineVisible)

	// Calculate padding for GitHub line
	// Visible text: "  ⭐ Star us on GitHub"
	githubLineVisible := 21 // "  ⭐ " + "Star us on GitHub" (⭐ is 3 bytes but 1 visual char)
	githubPadding := strings.Repeat(" ", 64-githubLineVisible)

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════════════╗")
	fmt.Printf("║  harmony-runner %s - by %s%s   ║\n", Version, deviceLabLink, versionPadding)
	fmt.Println("║  Fast, lightweight UI test runner for HarmonyOS                   ║")
	fmt.Printf("║  ⭐ %s%s  ║\n", githubLink, githubPadding)
	fmt.Println("╚═══════════════════════════════════════════════════════════════════╝")
	fmt.Println()
}

func printFooter() {
	// Make DeviceLab.dev clickable and colored (cyan)
	deviceLabLink := "\x1b]8;;https://devicelab.dev\x07" + color(colorCyan) + "DeviceLab.dev" + color(colorReset) + "\x1b]8;;\x07"

	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════════════════════════════════════╗")
	fmt.Printf("║ Built by %s - Turn Your Devices Into a Distributed Device Lab ║\n", deviceLabLink)
	fmt.Println("╚══════════════════════════════════════════════════════════════════════════╝")
	fmt.Println()
}

func runTest(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("at least one flow file or folder is required")
	}

	// Helper to get flag value from current or parent context
	// When run as subcommand, global flags are in parent context
	getString := func(name string) string {
		if c.IsSet(name) {
			return c.String(name)
		}
		if c.Lineage()[1] != nil {
			return c.Lineage()[1].String(name)
		}
		return c.String(name)
	}
	getInt := func(name string) int {
		if c.IsSet(name) {
			return c.Int(name)
		}
		if c.Lineage()[1] != nil {
			return c.Lineage()[1].Int(name)
		}
		return c.Int(name)
	}
	getBool := func(name string) bool {
		if c.IsSet(name) {
			return c.Bool(name)
		}
		if c.Lineage()[1] != nil {
			return c.Lineage()[1].Bool(name)
		}
		return c.Bool(name)
	}
	getStringSlice := func(name string) []string {
		if c.IsSet(name) {
			return c.StringSlice(name)
		}
		if c.Lineage()[1] != nil {
			return c.Lineage()[1].StringSlice(name)
		}
		return c.StringSlice(name)
	}

	if getBool("no-ansi") {
		colorsEnabled = false
	}

	// Print banner at start
	printBanner()

	// Parse environment variables
	env := parseEnvVars(getStringSlice("env"))

	// Resolve output directory
	outputDir, err := resolveOutputDir(getString("output"), getBool("flatten"))
	if err != nil {
		return err
	}

	// Load workspace config if provided
	var workspaceConfig *config.Config
	configPath := getString("config")
	if configPath != "" {
		var err error
		workspaceConfig, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	}

	// Merge env variables: workspace config env + CLI env (CLI takes precedence)
	mergedEnv := make(map[string]string)
	if workspaceConfig != nil {
		for k, v := range workspaceConfig.Env {
			mergedEnv[k] = v
		}
	}
	for k, v := range env {
		mergedEnv[k] = v // CLI overrides workspace config
	}

	// Device and hdc path: CLI flag takes precedence over workspace config
	deviceFlag := getString("device")
	if deviceFlag == "" && workspaceConfig != nil {
		deviceFlag = workspaceConfig.Device
	}
	hdcPath := getString("hdc")
	if hdcPath == "" && workspaceConfig != nil {
		hdcPath = workspaceConfig.HdcPath
	}

	// Tag filters from CLI and workspace config combine
	includeTags := getStringSlice("include-tags")
	excludeTags := getStringSlice("exclude-tags")
	if workspaceConfig != nil {
		includeTags = append(includeTags, workspaceConfig.IncludeTags...)
		excludeTags = append(excludeTags, workspaceConfig.ExcludeTags...)
	}

	// Build run configuration
	cfg := &RunConfig{
		FlowPaths:     c.Args().Slice(),
		ConfigPath:    configPath,
		Env:           mergedEnv,
		IncludeTags:   includeTags,
		ExcludeTags:   excludeTags,
		OutputDir:     outputDir,
		Allure:        getBool("allure"),
		Parallel:      getInt("parallel"),
		Watch:         getBool("watch"),
		Retries:       getInt("retries"),
		Devices:       parseDevices(deviceFlag),
		Verbose:       getBool("verbose"),
		AppFile:       getString("app-file"),
		Driver:        getString("driver"),
		HdcPath:       hdcPath,
		FindTimeoutMs: getInt("find-timeout"),
	}

	// Apply findTimeout with priority:
	// CLI flag > Workspace config > Driver default
	if !c.IsSet("find-timeout") && workspaceConfig != nil && workspaceConfig.FindTimeoutMs != 0 {
		cfg.FindTimeoutMs = workspaceConfig.FindTimeoutMs
	}

	// RPC timeout and action delay only come from workspace config
	if workspaceConfig != nil {
		cfg.RPCTimeoutMs = workspaceConfig.RPCTimeoutMs
		cfg.ActionDelayMs = workspaceConfig.ActionDelayMs
	}

	if cfg.Watch {
		if cfg.Parallel > 0 || len(cfg.Devices) > 1 {
			return fmt.Errorf("--watch cannot be combined with parallel execution")
		}
		return watchAndRun(cfg)
	}

	return executeRun(cfg)
}

// resolveOutputDir determines the output directory based on flags.
// - No --output: ./reports/<timestamp>/
// - --output given: <output>/<timestamp>/
// - --output + --flatten: <output>/ (error if --output not given)
func resolveOutputDir(output string, flatten bool) (string, error) {
	if flatten && output == "" {
		return "", fmt.Errorf("--flatten requires --output to be specified")
	}

	baseDir := output
	if baseDir == "" {
		baseDir = "./reports"
	}

	if flatten {
		return filepath.Clean(baseDir), nil
	}

	// Create timestamp-based subfolder
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(baseDir, timestamp), nil
}

// executeRun performs a single run with Ctrl+C handling installed.
func executeRun(cfg *RunConfig) error {
	// Handle SIGINT/SIGTERM to clean up on Ctrl+C or kill
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("Received signal %v, cleaning up...", sig)
		fmt.Fprintf(os.Stderr, "\nReceived %v, shutting down...\n", sig)
		logger.Close()
		os.Exit(1)
	}()
	defer signal.Stop(sigCh)

	return runOnce(cfg)
}

// runOnce executes all flows once and generates reports.
func runOnce(cfg *RunConfig) error {
	// 1. Create output directory
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// 2. Initialize logging
	logPath := filepath.Join(cfg.OutputDir, "harmony-runner.log")
	if err := logger.Init(logPath); err != nil {
		fmt.Printf("Warning: Failed to initialize logger: %v\n", err)
	}
	defer logger.Close()
	logger.SetVerbose(cfg.Verbose)

	logger.Info("=== Test execution started ===")
	logger.Info("Output directory: %s", cfg.OutputDir)
	logger.Info("Driver: %s", cfg.Driver)

	// 3. Validate and parse flows
	flows, err := validateAndParseFlows(cfg)
	if err != nil {
		logger.Error("Flow validation failed: %v", err)
		return err
	}
	logger.Info("Validated %d flow(s)", len(flows))

	// Extract appId from first flow if not in config
	if cfg.AppID == "" && len(flows) > 0 && flows[0].Config.AppID != "" {
		cfg.AppID = flows[0].Config.AppID
	}

	// Apply merged env to each flow (CLI/workspace values override flow file)
	applyEnvOverrides(flows, cfg.Env)

	// 4. Determine execution mode and devices
	needsParallel, deviceIDs, err := determineExecutionMode(cfg)
	if err != nil {
		logger.Error("Failed to determine execution mode: %v", err)
		return err
	}

	if needsParallel {
		logger.Info("Parallel execution mode: %d devices: %v", len(deviceIDs), deviceIDs)
	} else {
		logger.Info("Single device execution mode")
	}

	// 5. Execute flows
	logger.Info("Starting flow execution (parallel: %v, devices: %v)", needsParallel, deviceIDs)
	result, err := executeFlowsWithMode(cfg, flows, needsParallel, deviceIDs)
	if err != nil {
		logger.Error("Flow execution failed: %v", err)
		return err
	}
	logger.Info("Flow execution completed: %d passed, %d failed, %d skipped",
		result.PassedFlows, result.FailedFlows, result.SkippedFlows)

	// 6. Print unified output (works for both single and parallel)
	if err := printUnifiedOutput(cfg.OutputDir, result); err != nil {
		fmt.Printf("Warning: Failed to print unified output: %v\n", err)
		// Fallback to basic summary
		printSummary(result)
	}

	// 7. Generate and display reports
	logger.Info("Generating reports...")
	fmt.Println()
	fmt.Printf("  %s⏳ Generating reports...%s\n", color(colorCyan), color(colorReset))
	fmt.Println()

	htmlPath := filepath.Join(cfg.OutputDir, "report.html")
	jsonPath := filepath.Join(cfg.OutputDir, "report.json")

	htmlGenerated := true
	if err := report.GenerateHTML(cfg.OutputDir, report.HTMLConfig{
		OutputPath: htmlPath,
		Title:      "Test Report",
	}); err != nil {
		htmlGenerated = false
		fmt.Printf("  %s⚠%s Warning: failed to generate HTML report: %v\n", color(colorYellow), color(colorReset), err)
	}

	allureGenerated := false
	if cfg.Allure {
		if err := report.GenerateAllure(cfg.OutputDir); err != nil {
			fmt.Printf("  %s⚠%s Warning: failed to generate Allure results: %v\n", color(colorYellow), color(colorReset), err)
		} else {
			allureGenerated = true
		}
	}

	// Display reports section
	fmt.Println("  Reports:")
	if htmlGenerated {
		fmt.Printf("    HTML:   %s\n", htmlPath)
	}
	fmt.Printf("    JSON:   %s\n", jsonPath)
	if allureGenerated {
		fmt.Printf("    Allure: %s\n", filepath.Join(cfg.OutputDir, "allure-results"))
	}

	// 8. Print footer
	printFooter()

	// Exit with code 1 if any flows failed (summary already printed)
	if result.Status != report.StatusPassed {
		return cli.Exit("", 1)
	}

	return nil
}

// validateAndParseFlows validates and parses all flow files.
func validateAndParseFlows(cfg *RunConfig) ([]flow.Flow, error) {
	v := validator.New(cfg.IncludeTags, cfg.ExcludeTags)
	var allTestCases []string
	var allErrors []error

	for _, path := range cfg.FlowPaths {
		result := v.Validate(path)
		allTestCases = append(allTestCases, result.TestCases...)
		allErrors = append(allErrors, result.Errors...)
	}

	if len(allErrors) > 0 {
		fmt.Fprintf(os.Stderr, "Validation errors:\n")
		for _, err := range allErrors {
			fmt.Fprintf(os.Stderr, "  - %v\n", err)
		}
		return nil, fmt.Errorf("validation failed with %d error(s)", len(allErrors))
	}

	if len(allTestCases) == 0 {
		return nil, fmt.Errorf("no test flows found")
	}

	fmt.Printf("\n%sSetup%s\n", color(colorBold), color(colorReset))
	fmt.Println(strings.Repeat("─", 40))
	printSetupSuccess(fmt.Sprintf("Found %d test flow(s)", len(allTestCases)))

	var flows []flow.Flow
	for _, path := range allTestCases {
		f, err := flow.ParseFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		flows = append(flows, *f)
	}

	return flows, nil
}

// applyEnvOverrides merges env into each flow's environment.
// Values from the CLI and workspace config win over flow file values.
func applyEnvOverrides(flows []flow.Flow, env map[string]string) {
	if len(env) == 0 {
		return
	}
	for i := range flows {
		if flows[i].Config.Env == nil {
			flows[i].Config.Env = make(map[string]string, len(env))
		}
		for k, v := range env {
			flows[i].Config.Env[k] = v
		}
	}
}

// determineExecutionMode decides whether to run in parallel and which devices to use.
// With --parallel N and no explicit device list, connected devices are auto-detected.
func determineExecutionMode(cfg *RunConfig) (needsParallel bool, deviceIDs []string, err error) {
	needsParallel = cfg.Parallel > 0 || len(cfg.Devices) > 1

	if needsParallel {
		if len(cfg.Devices) > 0 {
			deviceIDs = cfg.Devices
		} else if cfg.Parallel > 0 {
			if strings.ToLower(cfg.Driver) == driverMock {
				// Mock devices don't exist on the hdc bus; fabricate serials
				for i := 0; i < cfg.Parallel; i++ {
					deviceIDs = append(deviceIDs, fmt.Sprintf("mock-device-%d", i+1))
				}
			} else {
				targets, detectErr := device.ListTargets(cfg.HdcPath)
				if detectErr != nil {
					return false, nil, fmt.Errorf("failed to list devices: %w", detectErr)
				}
				if len(targets) < cfg.Parallel {
					return false, nil, fmt.Errorf(
						"--parallel %d needs %d device(s) but only %d connected\n\n"+
							"Options:\n"+
							"  1. Connect more devices and check with: hdc list targets\n"+
							"  2. Pass explicit serials: --device serial1,serial2\n"+
							"  3. Lower the parallel count",
						cfg.Parallel, cfg.Parallel, len(targets))
				}
				deviceIDs = targets[:cfg.Parallel]
			}
		}

		if cfg.Parallel > 0 && len(deviceIDs) > cfg.Parallel {
			deviceIDs = deviceIDs[:cfg.Parallel]
		}

		printSetupSuccess(fmt.Sprintf("Using %d device(s) for parallel execution", len(deviceIDs)))
		fmt.Println()
		fmt.Printf("  %sℹ Parallel Mode:%s\n", color(colorCyan), color(colorReset))
		fmt.Println("    During execution, only brief status updates will be shown to avoid")
		fmt.Println("    messy interleaved output. Detailed results will be displayed after")
		fmt.Println("    all tests complete.")
		fmt.Println()
	}

	printSetupSuccess(fmt.Sprintf("Report directory: %s", cfg.OutputDir))
	fmt.Printf("\n%sExecution%s\n", color(colorBold), color(colorReset))
	fmt.Println(strings.Repeat("─", 40))

	return needsParallel, deviceIDs, nil
}

// executeFlowsWithMode executes flows using the appropriate execution mode.
func executeFlowsWithMode(cfg *RunConfig, flows []flow.Flow, needsParallel bool, deviceIDs []string) (*executor.RunResult, error) {
	if needsParallel {
		return executeParallel(cfg, deviceIDs, flows)
	}

	return executeSingleDevice(cfg, flows)
}

// executeSingleDevice runs flows on a single device.
func executeSingleDevice(cfg *RunConfig, flows []flow.Flow) (*executor.RunResult, error) {
	logger.Info("Creating driver for single device execution")
	driver, cleanup, err := createDriver(cfg, getFirstDevice(cfg))
	if err != nil {
		logger.Error("Failed to create driver: %v", err)
		// Surface the no-device case with troubleshooting hints instead of
		// burying it under a generic wrapper
		if errors.Is(err, core.ErrNoDevice) {
			return nil, noDeviceError(cfg, err)
		}
		return nil, fmt.Errorf("failed to create driver: %w", err)
	}
	defer cleanup()

	logger.Info("Driver created: %s on %s", driver.GetPlatformInfo().Platform, driver.GetPlatformInfo().DeviceName)

	runner := executor.New(driver, executor.RunnerConfig{
		OutputDir:         cfg.OutputDir,
		Parallelism:       0,
		Retries:           cfg.Retries,
		Artifacts:         executor.ArtifactOnFailure,
		Device:            buildDeviceReport(driver),
		App:               buildAppReport(driver),
		RunnerVersion:     Version,
		DriverName:        resolveDriverName(cfg.Driver),
		OnFlowStart:       onFlowStart,
		OnStepComplete:    onStepComplete,
		OnNestedStep:      onNestedStep,
		OnNestedFlowStart: onNestedFlowStart,
		OnFlowEnd:         onFlowEnd,
	})

	return runner.Run(context.Background(), flows)
}

// noDeviceError decorates a no-device failure with hdc troubleshooting steps.
func noDeviceError(cfg *RunConfig, err error) error {
	hdc := cfg.HdcPath
	if hdc == "" {
		hdc = "hdc"
	}
	return fmt.Errorf("%w\n\nTroubleshooting:\n"+
		"  1. Check connected devices: %s list targets\n"+
		"  2. Enable USB debugging on the device and accept the authorization prompt\n"+
		"  3. For network devices, connect first: %s tconn <ip>:<port>", err, hdc, hdc)
}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// Slow step threshold in milliseconds (5 seconds)
const slowThresholdMs = 5000

// colorsEnabled determines if ANSI colors should be used
var colorsEnabled = true

func init() {
	// Respect NO_COLOR environment variable
	if os.Getenv("NO_COLOR") != "" {
		colorsEnabled = false
		return
	}
	// Check if stdout is a terminal
	if fileInfo, err := os.Stdout.Stat(); err == nil {
		if (fileInfo.Mode() & os.ModeCharDevice) == 0 {
			colorsEnabled = false
		}
	}
}

// color returns the color code if colors are enabled, empty string otherwise
func color(c string) string {
	if colorsEnabled {
		return c
	}
	return ""
}

// Live progress callbacks
func onFlowStart(flowIdx, totalFlows int, name, file string) {
	fmt.Printf("\n  %s[%d/%d]%s %s%s%s (%s)\n",
		color(colorCyan), flowIdx+1, totalFlows, color(colorReset),
		color(colorBold), name, color(colorReset), file)
	fmt.Println(strings.Repeat("─", 60))
}

func onStepComplete(idx int, desc string, passed bool, durationMs int64, errMsg string) {
	// Don't mark runFlow/repeat as slow - they contain multiple steps
	isCompoundStep := strings.HasPrefix(desc, "runFlow:") ||
		strings.HasPrefix(desc, "repeat:")
	isSlow := durationMs >= slowThresholdMs && !isCompoundStep
	durStr := formatDuration(durationMs)

	if passed {
		symbol := "✓"
		symbolColor := color(colorGreen)
		durColor := ""
		if isSlow {
			durColor = color(colorYellow)
			symbol = "⚠"
			symbolColor = color(colorYellow)
		}
		fmt.Printf("    %s%s%s %s %s(%s)%s\n",
			symbolColor, symbol, color(colorReset), desc, durColor, durStr, color(colorReset))
	} else {
		fmt.Printf("    %s✗%s %s (%s)\n", color(colorRed), color(colorReset), desc, durStr)
		if errMsg != "" {
			fmt.Printf("      %s╰─%s %s\n", color(colorGray), color(colorReset), errMsg)
		}
	}
}

func onNestedFlowStart(depth int, desc string) {
	// Base indent (4 spaces) + 2 spaces per depth level
	indent := strings.Repeat("  ", 2+depth)
	fmt.Printf("%s%s▸%s %s\n", indent, color(colorCyan), color(colorReset), desc)
}

func onNestedStep(depth int, desc string, passed bool, durationMs int64, errMsg string) {
	// Base indent (4 spaces) + 2 spaces per depth level + 2 more for being inside the flow
	indent := strings.Repeat("  ", 2+depth+1)
	isSlow := durationMs >= slowThresholdMs
	durStr := formatDuration(durationMs)

	if passed {
		symbol := "✓"
		symbolColor := color(colorGreen)
		durColor := ""
		if isSlow {
			durColor = color(colorYellow)
			symbol = "⚠"
			symbolColor = color(colorYellow)
		}
		fmt.Printf("%s%s%s%s %s %s(%s)%s\n",
			indent, symbolColor, symbol, color(colorReset), desc, durColor, durStr, color(colorReset))
	} else {
		fmt.Printf("%s%s✗%s %s (%s)\n", indent, color(colorRed), color(colorReset), desc, durStr)
		if errMsg != "" {
			fmt.Printf("%s  %s╰─%s %s\n", indent, color(colorGray), color(colorReset), errMsg)
		}
	}
}

func onFlowEnd(name string, passed bool, durationMs int64) {
	if passed {
		fmt.Printf("%s✓ %s%s %s%s%s\n",
			color(colorGreen), color(colorReset), name, color(colorGray), formatDuration(durationMs), color(colorReset))
	} else {
		fmt.Printf("%s✗ %s%s %s%s%s\n",
			color(colorRed), color(colorReset), name, color(colorGray), formatDuration(durationMs), color(colorReset))
	}
}

func printSummary(result *executor.RunResult) {
	// Calculate totals
	totalSteps := 0
	passedSteps := 0
	failedSteps := 0
	skippedSteps := 0
	for _, fr := range result.FlowResults {
		totalSteps += fr.StepsTotal
		passedSteps += fr.StepsPassed
		failedSteps += fr.StepsFailed
		skippedSteps += fr.StepsSkipped
	}

	// Print step summary
	fmt.Println()
	if passedSteps > 0 {
		fmt.Printf("  %s%d steps passing%s (%s)\n", color(colorGreen), passedSteps, color(colorReset), formatDuration(result.Duration))
	}
	if failedSteps > 0 {
		fmt.Printf("  %s%d steps failing%s\n", color(colorRed), failedSteps, color(colorReset))
	}
	if skippedSteps > 0 {
		fmt.Printf("  %s%d steps skipped%s\n", color(colorCyan), skippedSteps, color(colorReset))
	}
	fmt.Println()

	// Print table
	tableWidth := 92
	fmt.Println(strings.Repeat("═", tableWidth))
	fmt.Printf("  %-42s %6s %7s %6s %6s %6s %10s\n", "Flow", "Status", "Steps", "Pass", "Fail", "Skip", "Duration")
	fmt.Println(strings.Repeat("─", tableWidth))

	// Print each flow result
	for _, fr := range result.FlowResults {
		var status string
		var statusColor string
		if fr.Status == report.StatusFailed {
			status = "✗ FAIL"
			statusColor = color(colorRed)
		} else if fr.Status == report.StatusSkipped {
			status = "- SKIP"
			statusColor = color(colorCyan)
		} else {
			status = "✓ PASS"
			statusColor = color(colorGreen)
		}

		// Truncate name if too long
		name := fr.Name
		if len(name) > 42 {
			name = name[:39] + "..."
		}

		fmt.Printf("  %-42s %s%6s%s %7d %6d %6d %6d %10s\n",
			name, statusColor, status, color(colorReset),
			fr.StepsTotal, fr.StepsPassed, fr.StepsFailed, fr.StepsSkipped,
			formatDuration(fr.Duration))
	}

	// Print totals row
	fmt.Println(strings.Repeat("─", tableWidth))
	statusStr := fmt.Sprintf("%d/%d", result.PassedFlows, result.TotalFlows)
	statusColor := color(colorGreen)
	if result.FailedFlows > 0 {
		statusColor = color(colorRed)
	}
	fmt.Printf("  %s%-42s%s %s%6s%s %7d %6d %6d %6d %10s\n",
		color(colorBold), "TOTAL", color(colorReset),
		statusColor, statusStr, color(colorReset),
		totalSteps, passedSteps, failedSteps, skippedSteps,
		formatDuration(result.Duration))
	fmt.Println(strings.Repeat("═", tableWidth))
}

// formatDuration formats milliseconds to a human-readable string.
// Shows milliseconds for values < 1s, seconds otherwise.
func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	mins := ms / 60000
	secs := (ms % 60000) / 1000
	return fmt.Sprintf("%dm %ds", mins, secs)
}

func parseEnvVars(envs []string) map[string]string {
	result := make(map[string]string)
	for _, e := range envs {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) == 2 {
			result[parts[0]] = parts[1]
		}
	}
	return result
}

// printSetupStep prints a setup step with spinner-style prefix
func printSetupStep(msg string) {
	fmt.Printf("  %s⏳%s %s\n", color(colorCyan), color(colorReset), msg)
}

// printSetupSuccess prints a success message for setup
func printSetupSuccess(msg string) {
	fmt.Printf("  %s✓%s %s\n", color(colorGreen), color(colorReset), msg)
}

// getFirstDevice returns the first device from config, or empty string if none.
func getFirstDevice(cfg *RunConfig) string {
	if len(cfg.Devices) > 0 {
		return cfg.Devices[0]
	}
	return ""
}

// executeParallel runs tests in parallel across multiple devices.
func executeParallel(cfg *RunConfig, deviceIDs []string, flows []flow.Flow) (*executor.RunResult, error) {
	if len(deviceIDs) == 0 {
		return nil, fmt.Errorf("no devices available for parallel execution")
	}

	// 1. Validate devices
	if err := validateDevicesAvailable(cfg, deviceIDs); err != nil {
		return nil, err
	}

	// 2. Create workers
	workers, err := createDeviceWorkers(cfg, deviceIDs)
	if err != nil {
		return nil, err
	}

	// 3. Run parallel
	parallelRunner := createParallelRunner(cfg, workers)
	return parallelRunner.Run(context.Background(), flows)
}

// validateDevicesAvailable checks all devices before starting initialization.
func validateDevicesAvailable(cfg *RunConfig, deviceIDs []string) error {
	if strings.ToLower(cfg.Driver) == driverMock {
		return nil
	}

	printSetupStep(fmt.Sprintf("Checking availability of %d device(s)...", len(deviceIDs)))

	targets, err := device.ListTargets(cfg.HdcPath)
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}

	var unavailableDevices []string
	for i, deviceID := range deviceIDs {
		if !containsDevice(targets, deviceID) {
			unavailableDevices = append(unavailableDevices,
				fmt.Sprintf("  Device %d/%d (%s): not found in hdc targets", i+1, len(deviceIDs), deviceID))
		}
	}

	if len(unavailableDevices) > 0 {
		return fmt.Errorf("%d device(s) not available:\n%s\n\nAll devices must be available to start parallel execution",
			len(unavailableDevices), strings.Join(unavailableDevices, "\n"))
	}

	printSetupSuccess(fmt.Sprintf("All %d device(s) available", len(deviceIDs)))
	return nil
}

func containsDevice(targets []string, serial string) bool {
	for _, t := range targets {
		if t == serial {
			return true
		}
	}
	return false
}

// createDeviceWorkers creates a worker for each device.
// Workers clean themselves up when the parallel runner finishes; the
// internal cleanup here only covers partial failure during creation.
func createDeviceWorkers(cfg *RunConfig, deviceIDs []string) ([]executor.DeviceWorker, error) {
	var workers []executor.DeviceWorker
	var cleanups []func()

	cleanupAll := func() {
		for _, cleanup := range cleanups {
			cleanup()
		}
	}

	for i, deviceID := range deviceIDs {
		printSetupStep(fmt.Sprintf("[Device %d/%d] Connecting to %s...", i+1, len(deviceIDs), deviceID))

		driver, cleanup, err := createDriver(cfg, deviceID)
		if err != nil {
			cleanupAll()
			return nil, fmt.Errorf("failed to create driver for device %s: %w", deviceID, err)
		}

		workers = append(workers, executor.DeviceWorker{
			ID:       i,
			DeviceID: deviceID,
			Device:   buildDeviceReport(driver),
			Driver:   driver,
			Cleanup:  cleanup,
		})
		cleanups = append(cleanups, cleanup)
	}

	return workers, nil
}

// createParallelRunner builds the parallel runner with config.
func createParallelRunner(cfg *RunConfig, workers []executor.DeviceWorker) *executor.ParallelRunner {
	firstDriver := workers[0].Driver
	deviceInfo := buildDeviceReport(firstDriver)
	deviceInfo.Name = fmt.Sprintf("%d devices", len(workers))
	runnerConfig := executor.RunnerConfig{
		OutputDir:     cfg.OutputDir,
		Parallelism:   0,
		Retries:       cfg.Retries,
		Artifacts:     executor.ArtifactOnFailure,
		Device:        deviceInfo,
		App:           buildAppReport(firstDriver),
		RunnerVersion: Version,
		DriverName:    resolveDriverName(cfg.Driver),
		// Live callbacks stay unset; parallel progress would interleave
		// across workers, so results are shown by the unified output
	}

	return executor.NewParallelRunner(workers, runnerConfig)
}
