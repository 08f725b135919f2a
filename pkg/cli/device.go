package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/harmony-runner/pkg/config"
	"github.com/devicelab-dev/harmony-runner/pkg/device"
)

var devicesCommand = &cli.Command{
	Name:  "devices",
	Usage: "List connected devices",
	Description: `List device serials known to hdc.

Examples:
  harmony-runner devices
  harmony-runner devices --long`,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    "long",
			Aliases: []string{"l"},
			Usage:   "Also show model and OS version (connects to each device)",
		},
	},
	Action: runDevices,
}

var infoCommand = &cli.Command{
	Name:  "info",
	Usage: "Show device information",
	Description: `Show model, OS version, SDK level, and display size of a device.

Examples:
  harmony-runner info
  harmony-runner -t FMR0223C13000649 info`,
	Action: runInfo,
}

var daemonCommand = &cli.Command{
	Name:  "daemon",
	Usage: "Manage the on-device UiTest daemon",
	Description: `Control the UiTest daemon that executes UI commands on the device.
The run command manages the daemon automatically; these subcommands are
for debugging daemon problems.

Examples:
  harmony-runner daemon status
  harmony-runner daemon restart`,
	Subcommands: []*cli.Command{
		{
			Name:   "status",
			Usage:  "Show whether the daemon is running",
			Action: runDaemonStatus,
		},
		{
			Name:   "start",
			Usage:  "Start the daemon, deploying the bundled agent when needed",
			Action: runDaemonStart,
		},
		{
			Name:   "stop",
			Usage:  "Stop the daemon",
			Action: runDaemonStop,
		},
		{
			Name:   "restart",
			Usage:  "Restart the daemon",
			Action: runDaemonRestart,
		},
	},
}

// resolveDevice connects to the device selected by --device, or to the
// first connected device when the flag is unset.
func resolveDevice(c *cli.Context) (*device.Device, error) {
	serial := c.String("device")
	// --device may carry a comma-separated list for parallel runs;
	// device commands operate on the first entry
	if devices := parseDevices(serial); len(devices) > 0 {
		serial = devices[0]
	}
	return device.NewWithHdc(serial, c.String("hdc"))
}

func runDevices(c *cli.Context) error {
	targets, err := device.ListTargets(c.String("hdc"))
	if err != nil {
		return err
	}

	if len(targets) == 0 {
		fmt.Println("No devices connected")
		return nil
	}

	for _, serial := range targets {
		if !c.Bool("long") {
			fmt.Println(serial)
			continue
		}

		dev, err := device.NewWithHdc(serial, c.String("hdc"))
		if err != nil {
			fmt.Printf("%-28s (unavailable: %v)\n", serial, err)
			continue
		}
		info, err := dev.Info()
		if err != nil {
			fmt.Printf("%-28s (unavailable: %v)\n", serial, err)
			continue
		}
		fmt.Printf("%-28s %s %s  %s\n", serial, info.Brand, info.Model, info.SysVersion)
	}

	return nil
}

func runInfo(c *cli.Context) error {
	dev, err := resolveDevice(c)
	if err != nil {
		return err
	}

	info, err := dev.Info()
	if err != nil {
		return err
	}

	fmt.Printf("Serial:      %s\n", info.Serial)
	fmt.Printf("Model:       %s\n", info.Model)
	fmt.Printf("Brand:       %s\n", info.Brand)
	fmt.Printf("Product:     %s\n", info.ProductName)
	fmt.Printf("OS version:  %s\n", info.SysVersion)
	fmt.Printf("SDK version: %s\n", info.SDKVersion)
	fmt.Printf("CPU ABI:     %s\n", info.CPUAbi)
	if info.WlanIP != "" {
		fmt.Printf("WLAN IP:     %s\n", info.WlanIP)
	}
	if width, height, err := dev.DisplaySize(); err == nil {
		fmt.Printf("Display:     %dx%d\n", width, height)
	}

	return nil
}

func runDaemonStatus(c *cli.Context) error {
	dev, err := resolveDevice(c)
	if err != nil {
		return err
	}

	if dev.DaemonRunning() {
		fmt.Printf("%s: uitest daemon running\n", dev.Serial())
	} else {
		fmt.Printf("%s: uitest daemon not running\n", dev.Serial())
	}
	return nil
}

func runDaemonStart(c *cli.Context) error {
	dev, err := resolveDevice(c)
	if err != nil {
		return err
	}

	if err := dev.EnsureDaemon(config.GetAgentPath()); err != nil {
		return err
	}
	fmt.Printf("%s: uitest daemon started\n", dev.Serial())
	return nil
}

func runDaemonStop(c *cli.Context) error {
	dev, err := resolveDevice(c)
	if err != nil {
		return err
	}

	if err := dev.StopDaemon(); err != nil {
		return err
	}
	fmt.Printf("%s: uitest daemon stopped\n", dev.Serial())
	return nil
}

func runDaemonRestart(c *cli.Context) error {
	dev, err := resolveDevice(c)
	if err != nil {
		return err
	}

	if err := dev.RestartDaemon(config.GetAgentPath()); err != nil {
		return err
	}
	fmt.Printf("%s: uitest daemon restarted\n", dev.Serial())
	return nil
}
