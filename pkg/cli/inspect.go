package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/harmony-runner/pkg/config"
	"github.com/devicelab-dev/harmony-runner/pkg/hypium"
)

var hierarchyCommand = &cli.Command{
	Name:  "hierarchy",
	Usage: "Dump the UI hierarchy of the current screen",
	Description: `Dump the component tree of the foreground screen as JSON.
Useful for finding selector attributes (text, id, type) for flow steps.

Examples:
  harmony-runner hierarchy
  harmony-runner hierarchy -o layout.json
  harmony-runner hierarchy --compact`,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "compact",
			Usage: "Print compact JSON instead of indented output",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write the hierarchy to `FILE` instead of stdout",
		},
	},
	Action: runHierarchy,
}

var screenshotCommand = &cli.Command{
	Name:      "screenshot",
	Usage:     "Capture a screenshot",
	ArgsUsage: "[output.jpeg]",
	Description: `Capture the device screen to a JPEG file. When no output path
is given, a timestamped file is written to the current directory.

Examples:
  harmony-runner screenshot
  harmony-runner screenshot login.jpeg`,
	Action: runScreenshot,
}

var recordCommand = &cli.Command{
	Name:      "record",
	Usage:     "Record the device screen",
	ArgsUsage: "[output.mjpeg]",
	Description: `Stream screen frames from the device into an MJPEG file.
Recording runs until Ctrl+C, or stops on its own when --duration is set.

Examples:
  harmony-runner record
  harmony-runner record demo.mjpeg --duration 30s`,
	Flags: []cli.Flag{
		&cli.DurationFlag{
			Name:  "duration",
			Usage: "Stop recording after `DURATION` (0 = run until Ctrl+C)",
		},
	},
	Action: runRecord,
}

// hypiumOptions builds daemon options for one-shot inspection commands.
func hypiumOptions() hypium.Options {
	return hypium.Options{AgentPath: config.GetAgentPath()}
}

func runHierarchy(c *cli.Context) error {
	dev, err := resolveDevice(c)
	if err != nil {
		return err
	}

	client, err := hypium.Open(dev, hypiumOptions())
	if err != nil {
		return err
	}
	defer client.Close()

	raw, err := client.DumpHierarchy()
	if err != nil {
		return err
	}

	out := raw
	if !c.Bool("compact") {
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "  "); err != nil {
			return fmt.Errorf("hierarchy is not valid JSON: %w", err)
		}
		out = buf.Bytes()
	}

	if path := c.String("output"); path != "" {
		if err := os.WriteFile(path, out, 0o644); err != nil {
			return err
		}
		fmt.Printf("Saved hierarchy to %s\n", path)
		return nil
	}

	fmt.Println(string(out))
	return nil
}

func runScreenshot(c *cli.Context) error {
	dev, err := resolveDevice(c)
	if err != nil {
		return err
	}

	path := c.Args().First()
	if path == "" {
		path = fmt.Sprintf("screenshot_%s.jpeg", time.Now().Format("20060102_150405"))
	}

	saved, err := dev.Screenshot(path)
	if err != nil {
		return err
	}
	fmt.Printf("Saved screenshot to %s\n", saved)
	return nil
}

func runRecord(c *cli.Context) error {
	dev, err := resolveDevice(c)
	if err != nil {
		return err
	}

	path := c.Args().First()
	if path == "" {
		path = fmt.Sprintf("record_%s.mjpeg", time.Now().Format("20060102_150405"))
	}

	client, err := hypium.Open(dev, hypiumOptions())
	if err != nil {
		return err
	}
	defer client.Close()

	rec, err := client.StartRecording(path)
	if err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if duration := c.Duration("duration"); duration > 0 {
		fmt.Printf("Recording for %s... (Ctrl+C to stop early)\n", duration)
		select {
		case <-time.After(duration):
		case <-sigCh:
		}
	} else {
		fmt.Println("Recording... press Ctrl+C to stop")
		<-sigCh
	}

	saved, err := rec.Stop()
	if err != nil {
		return err
	}
	fmt.Printf("Saved %d frames to %s\n", rec.Frames(), saved)
	return nil
}
