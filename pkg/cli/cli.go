// Package cli provides the command-line interface for harmony-runner.
package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "device",
		Aliases: []string{"t"},
		Usage:   "Device serial to run on (can be comma-separated, empty = first connected)",
		EnvVars: []string{"HARMONY_DEVICE"},
	},
	&cli.StringFlag{
		Name:    "hdc",
		Usage:   "Path to the hdc binary",
		EnvVars: []string{"HARMONY_HDC"},
	},
	&cli.StringFlag{
		Name:    "driver",
		Aliases: []string{"d"},
		Usage:   "Driver to use (hypium, mock)",
		Value:   "hypium",
		EnvVars: []string{"HARMONY_DRIVER"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable verbose logging",
		EnvVars: []string{"HARMONY_VERBOSE"},
	},
	&cli.StringFlag{
		Name:    "app-file",
		Usage:   "App package (.hap) to install before testing",
		EnvVars: []string{"HARMONY_APP_FILE"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// Execute runs the CLI.
func Execute() {
	app := &cli.App{
		Name:    "harmony-runner",
		Usage:   "UI test runner for HarmonyOS apps",
		Version: Version,
		Description: `harmony-runner executes YAML flow files on HarmonyOS devices through
the on-device UiTest daemon, using hdc for device control.

Examples:
  harmony-runner run flow.yaml
  harmony-runner run flows/ -e USER=test
  harmony-runner run flows/ --watch
  harmony-runner -t FMR0223C13000649 hierarchy
  harmony-runner screenshot ui.jpeg`,
		Flags: GlobalFlags,
		Commands: []*cli.Command{
			runCommand,
			devicesCommand,
			infoCommand,
			hierarchyCommand,
			screenshotCommand,
			recordCommand,
			installCommand,
			uninstallCommand,
			daemonCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
