package cli

import (
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"
)

var installCommand = &cli.Command{
	Name:      "install",
	Usage:     "Install a .hap package on the device",
	ArgsUsage: "<app.hap>",
	Description: `Install an application package.

Examples:
  harmony-runner install ./build/app.hap
  harmony-runner -t FMR0223C13000649 install app.hap`,
	Action: runInstall,
}

var uninstallCommand = &cli.Command{
	Name:      "uninstall",
	Usage:     "Uninstall an app from the device",
	ArgsUsage: "<bundle-id>",
	Description: `Uninstall an application by bundle name.

Examples:
  harmony-runner uninstall com.example.app`,
	Action: runUninstall,
}

func runInstall(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("path to a .hap package is required")
	}

	dev, err := resolveDevice(c)
	if err != nil {
		return err
	}

	hapPath := c.Args().First()
	if err := dev.Install(hapPath); err != nil {
		return err
	}
	fmt.Printf("Installed %s\n", filepath.Base(hapPath))
	return nil
}

func runUninstall(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("bundle id is required")
	}

	dev, err := resolveDevice(c)
	if err != nil {
		return err
	}

	bundle := c.Args().First()
	if err := dev.Uninstall(bundle); err != nil {
		return err
	}
	fmt.Printf("Uninstalled %s\n", bundle)
	return nil
}
