package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/devicelab-dev/harmony-runner/pkg/config"
	"github.com/devicelab-dev/harmony-runner/pkg/core"
	"github.com/devicelab-dev/harmony-runner/pkg/device"
	"github.com/devicelab-dev/harmony-runner/pkg/driver/mock"
	"github.com/devicelab-dev/harmony-runner/pkg/hypium"
	"github.com/devicelab-dev/harmony-runner/pkg/logger"

	hypiumdriver "github.com/devicelab-dev/harmony-runner/pkg/driver/hypium"
)

// Driver types.
const (
	driverHypium = "hypium"
	driverMock   = "mock"
)

// createDriver creates the driver for one device based on cfg.Driver.
// Returns the driver, a cleanup function, and any error.
func createDriver(cfg *RunConfig, serial string) (core.Driver, func(), error) {
	driverType := strings.ToLower(cfg.Driver)

	switch driverType {
	case driverMock:
		// Mock driver for testing
		driver := mock.New(mock.Config{
			Platform: "mock",
			DeviceID: serial,
		})
		return driver, func() {}, nil
	case "", driverHypium:
		return createHarmonyDriver(cfg, serial)
	default:
		return nil, nil, fmt.Errorf("unsupported driver: %s (use hypium or mock)", driverType)
	}
}

// createHarmonyDriver connects to a device over hdc, brings up the UiTest
// daemon, and builds a hypium-backed driver.
func createHarmonyDriver(cfg *RunConfig, serial string) (core.Driver, func(), error) {
	// 1. Connect to device
	if serial != "" {
		printSetupStep(fmt.Sprintf("Connecting to device %s...", serial))
		logger.Info("Connecting to HarmonyOS device: %s", serial)
	} else {
		printSetupStep("Connecting to device...")
		logger.Info("Auto-detecting HarmonyOS device...")
	}
	dev, err := device.NewWithHdc(serial, cfg.HdcPath)
	if err != nil {
		logger.Error("Failed to connect to device: %v", err)
		return nil, nil, fmt.Errorf("connect to device: %w", err)
	}

	// Get device info for reporting
	info, err := dev.Info()
	if err != nil {
		logger.Error("Failed to get device info: %v", err)
		return nil, nil, fmt.Errorf("get device info: %w", err)
	}
	logger.Info("Device info: %s %s, OS %s, SDK %s, Serial %s",
		info.Brand, info.Model, info.SysVersion, info.SDKVersion, info.Serial)
	printSetupSuccess(fmt.Sprintf("Connected to %s %s (%s)", info.Brand, info.Model, info.SysVersion))

	// 2. Install app if specified
	if cfg.AppFile != "" {
		printSetupStep(fmt.Sprintf("Installing app: %s", cfg.AppFile))
		logger.Info("Installing app: %s", cfg.AppFile)
		if err := dev.Install(cfg.AppFile); err != nil {
			logger.Error("App installation failed: %v", err)
			return nil, nil, fmt.Errorf("install app: %w", err)
		}
		logger.Info("App installed successfully")
		printSetupSuccess("App installed")
	}

	// 3. Start the UiTest daemon and open an RPC session
	printSetupStep("Starting UiTest daemon...")
	logger.Info("Starting UiTest daemon on device %s", dev.Serial())

	opts := hypium.Options{
		AgentPath: config.GetAgentPath(),
	}
	if cfg.RPCTimeoutMs > 0 {
		opts.Timeout = time.Duration(cfg.RPCTimeoutMs) * time.Millisecond
	}
	if cfg.ActionDelayMs > 0 {
		opts.SettleDelay = time.Duration(cfg.ActionDelayMs) * time.Millisecond
	}

	client, err := hypium.Open(dev, opts)
	if err != nil {
		logger.Error("Failed to start UiTest daemon: %v", err)
		return nil, nil, fmt.Errorf("start UiTest daemon: %w", err)
	}
	printSetupSuccess("UiTest daemon ready")

	// 4. Read display size for the report header
	width, height, err := client.DisplaySize()
	if err != nil {
		logger.Warn("Failed to read display size: %v", err)
	}

	// 5. Create driver
	platformInfo := &core.PlatformInfo{
		Platform:     "harmony",
		OSVersion:    info.SysVersion,
		SDKVersion:   info.SDKVersion,
		DeviceName:   fmt.Sprintf("%s %s", info.Brand, info.Model),
		Brand:        info.Brand,
		DeviceID:     info.Serial,
		CPUAbi:       info.CPUAbi,
		ScreenWidth:  width,
		ScreenHeight: height,
		AppID:        cfg.AppID,
	}
	driver := hypiumdriver.New(client, platformInfo, dev)
	if cfg.FindTimeoutMs > 0 {
		driver.SetFindTimeout(cfg.FindTimeoutMs)
	}

	// Cleanup function (silent)
	cleanup := func() {
		if err := client.Close(); err != nil {
			logger.Debug("Close hypium client: %v", err)
		}
	}

	return driver, cleanup, nil
}
