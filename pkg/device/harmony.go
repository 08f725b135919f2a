// Package device provides HarmonyOS device management via hdc.
package device

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/exec"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/devicelab-dev/harmony-runner/pkg/core"
)

// hdc environment variables for a remote hdc server.
const (
	envServerHost = "HDC_SERVER_HOST"
	envServerPort = "HDC_SERVER_PORT"
)

// MaxKeyCode is the highest key code the uiInput injector accepts.
const MaxKeyCode = 3200

// Local port range scanned when forwarding the daemon socket.
const (
	portRangeStart = 10000
	portRangeEnd   = 20000
)

// Device manages a HarmonyOS device connection via hdc.
type Device struct {
	serial     string
	hdcPath    string
	serverArgs []string // ["-s", "host:port"] when HDC_SERVER_HOST/PORT are set
}

// Info contains basic device information.
type Info struct {
	Serial      string
	Model       string
	Brand       string
	ProductName string
	SDKVersion  string
	SysVersion  string
	CPUAbi      string
	WlanIP      string
}

// ListTargets returns the serials of all connected devices.
func ListTargets(hdcPath string) ([]string, error) {
	if hdcPath == "" {
		hdcPath = "hdc"
	}
	path, err := exec.LookPath(hdcPath)
	if err != nil {
		return nil, core.ErrHdcCommand.WithMessage("hdc not found in PATH; ensure the HarmonyOS SDK toolchains are installed").WithCause(err)
	}

	args := append(serverArgsFromEnv(), "list", "targets")
	out, err := runHdc(path, args)
	if err != nil {
		return nil, err
	}
	return parseTargets(out), nil
}

// parseTargets extracts device serials from `hdc list targets` output.
func parseTargets(out string) []string {
	var targets []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.Contains(line, "Empty") {
			continue
		}
		targets = append(targets, line)
	}
	return targets
}

// New creates a Device for the given serial.
// If serial is empty, the first connected device is used.
func New(serial string) (*Device, error) {
	return NewWithHdc(serial, "hdc")
}

// NewWithHdc creates a Device using a specific hdc binary.
func NewWithHdc(serial, hdcPath string) (*Device, error) {
	if hdcPath == "" {
		hdcPath = "hdc"
	}
	path, err := exec.LookPath(hdcPath)
	if err != nil {
		return nil, core.ErrHdcCommand.WithMessage("hdc not found in PATH; ensure the HarmonyOS SDK toolchains are installed").WithCause(err)
	}

	targets, err := ListTargets(path)
	if err != nil {
		return nil, err
	}
	if serial == "" {
		if len(targets) == 0 {
			return nil, core.ErrNoDevice
		}
		serial = targets[0]
	} else if !contains(targets, serial) {
		return nil, core.ErrNoDevice.WithMessagef("device [%s] not found", serial)
	}

	return &Device{
		serial:     serial,
		hdcPath:    path,
		serverArgs: serverArgsFromEnv(),
	}, nil
}

func contains(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}

// serverArgsFromEnv builds the `-s host:port` prefix when a remote hdc
// server is configured through the environment.
func serverArgsFromEnv() []string {
	host := os.Getenv(envServerHost)
	port := os.Getenv(envServerPort)
	if host != "" && port != "" {
		return []string{"-s", host + ":" + port}
	}
	return nil
}

// Serial returns the device serial number.
func (d *Device) Serial() string {
	return d.serial
}

// IsOnline reports whether the device still shows up in `hdc list targets`.
func (d *Device) IsOnline() bool {
	targets, err := ListTargets(d.hdcPath)
	if err != nil {
		return false
	}
	return contains(targets, d.serial)
}

// hdc executes an hdc command addressed to this device.
func (d *Device) hdc(args ...string) (string, error) {
	cmdArgs := make([]string, 0, len(args)+4)
	cmdArgs = append(cmdArgs, d.serverArgs...)
	cmdArgs = append(cmdArgs, "-t", d.serial)
	cmdArgs = append(cmdArgs, args...)
	return runHdc(d.hdcPath, cmdArgs)
}

// runHdc runs the hdc binary and applies hdc's error reporting quirks:
// failures are often printed on stdout with a zero exit code.
func runHdc(hdcPath string, args []string) (string, error) {
	cmd := exec.Command(hdcPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errMsg := stderr.String()
		if errMsg == "" {
			errMsg = stdout.String()
		}
		return "", core.ErrHdcCommand.
			WithMessagef("hdc %s: %s", strings.Join(args, " "), strings.TrimSpace(errMsg)).
			WithCause(err)
	}

	out := stdout.String()
	lowered := strings.ToLower(out)
	if strings.Contains(lowered, "error:") || strings.Contains(lowered, "[fail]") {
		return "", core.ErrHdcCommand.WithMessagef("hdc %s: %s", strings.Join(args, " "), strings.TrimSpace(out))
	}
	return out, nil
}

// Shell executes a shell command on the device.
func (d *Device) Shell(cmd string) (string, error) {
	return d.hdc("shell", cmd)
}

// ForwardPort forwards a free local TCP port to the given device port and
// returns the local port.
func (d *Device) ForwardPort(remotePort int) (int, error) {
	localPort, err := findFreePort(portRangeStart, portRangeEnd)
	if err != nil {
		return 0, core.ErrPortForward.WithCause(err)
	}
	if _, err := d.hdc("fport", fmt.Sprintf("tcp:%d", localPort), fmt.Sprintf("tcp:%d", remotePort)); err != nil {
		return 0, core.ErrPortForward.WithMessagef("fport tcp:%d tcp:%d rejected", localPort, remotePort).WithCause(err)
	}
	return localPort, nil
}

// RemoveForward removes a port forward.
func (d *Device) RemoveForward(localPort, remotePort int) error {
	_, err := d.hdc("fport", "rm", fmt.Sprintf("tcp:%d", localPort), fmt.Sprintf("tcp:%d", remotePort))
	return err
}

var forwardPattern = regexp.MustCompile(`tcp:\d+ tcp:\d+`)

// ListForwards returns the active forwards for this device,
// e.g. ["tcp:10001 tcp:8012"].
func (d *Device) ListForwards() ([]string, error) {
	out, err := d.hdc("fport", "ls")
	if err != nil {
		return nil, err
	}
	return forwardPattern.FindAllString(out, -1), nil
}

// findFreePort finds a free TCP port in the given range.
func findFreePort(start, end int) (int, error) {
	for port := start; port <= end; port++ {
		addr := fmt.Sprintf("127.0.0.1:%d", port)
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			ln.Close()
			return port, nil
		}
	}
	return 0, fmt.Errorf("no free port found in range %d-%d", start, end)
}

// SendFile pushes a local file to the device.
func (d *Device) SendFile(localPath, remotePath string) error {
	_, err := d.hdc("file", "send", localPath, remotePath)
	return err
}

// RecvFile pulls a file from the device.
func (d *Device) RecvFile(remotePath, localPath string) error {
	_, err := d.hdc("file", "recv", remotePath, localPath)
	return err
}

// Install installs a HAP package on the device.
func (d *Device) Install(hapPath string) error {
	_, err := d.hdc("install", hapPath)
	return err
}

// Uninstall removes a bundle from the device.
func (d *Device) Uninstall(bundle string) error {
	_, err := d.hdc("uninstall", bundle)
	return err
}

// ListApps returns the installed bundle names.
func (d *Device) ListApps() ([]string, error) {
	out, err := d.Shell("bm dump -a")
	if err != nil {
		return nil, err
	}
	var apps []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "ID:") {
			continue
		}
		apps = append(apps, line)
	}
	return apps, nil
}

// HasApp checks whether a bundle is installed.
func (d *Device) HasApp(bundle string) (bool, error) {
	apps, err := d.ListApps()
	if err != nil {
		return false, err
	}
	return contains(apps, bundle), nil
}

// AppInfo returns the raw `bm dump -n` JSON document for a bundle.
func (d *Device) AppInfo(bundle string) ([]byte, error) {
	out, err := d.Shell("bm dump -n " + bundle)
	if err != nil {
		return nil, err
	}
	// bm prefixes the JSON with the bundle name; carve out the document.
	start := strings.Index(out, "{")
	end := strings.LastIndex(out, "}")
	if start < 0 || end < start {
		return nil, core.ErrAppNotInstalled.WithMessagef("no bundle info for [%s]", bundle)
	}
	return []byte(out[start : end+1]), nil
}

// MainAbility resolves the ability to start for a bundle. Abilities
// carrying the launcher skill win; ties break on matching the module's
// mainAbility and the bundle's mainEntry module.
func (d *Device) MainAbility(bundle string) (string, error) {
	raw, err := d.AppInfo(bundle)
	if err != nil {
		return "", err
	}
	name, ok := resolveMainAbility(raw)
	if !ok {
		return "", core.ErrAppNotInstalled.WithMessagef("no abilities found for [%s]", bundle)
	}
	return name, nil
}

// resolveMainAbility picks the entry ability out of a `bm dump -n`
// document.
func resolveMainAbility(raw []byte) (string, bool) {
	var dump struct {
		MainEntry      string `json:"mainEntry"`
		HapModuleInfos []struct {
			MainAbility  string `json:"mainAbility"`
			AbilityInfos []struct {
				Name       string `json:"name"`
				ModuleName string `json:"moduleName"`
				Skills     []struct {
					Actions []string `json:"actions"`
				} `json:"skills"`
			} `json:"abilityInfos"`
		} `json:"hapModuleInfos"`
	}
	if err := json.Unmarshal(raw, &dump); err != nil {
		return "", false
	}

	type candidate struct {
		name     string
		launcher bool
		score    int
	}
	var found []candidate
	for _, mod := range dump.HapModuleInfos {
		for _, ability := range mod.AbilityInfos {
			c := candidate{name: ability.Name}
			if len(ability.Skills) > 0 && contains(ability.Skills[0].Actions, "action.system.home") {
				c.launcher = true
			}
			if ability.Name != "" && ability.Name == mod.MainAbility {
				c.score++
			}
			if ability.ModuleName != "" && ability.ModuleName == dump.MainEntry {
				c.score++
			}
			found = append(found, c)
		}
	}
	if len(found) == 0 {
		return "", false
	}
	sort.SliceStable(found, func(i, j int) bool {
		if found[i].launcher != found[j].launcher {
			return found[i].launcher
		}
		return found[i].score > found[j].score
	})
	return found[0].name, true
}

// CleanAppCache clears a bundle's cache.
func (d *Device) CleanAppCache(bundle string) error {
	_, err := d.Shell(fmt.Sprintf("bm clean -n %s -c", bundle))
	return err
}

// CleanAppData clears a bundle's user data.
func (d *Device) CleanAppData(bundle string) error {
	_, err := d.Shell(fmt.Sprintf("bm clean -n %s -d", bundle))
	return err
}

// StartApp starts an ability of a bundle.
func (d *Device) StartApp(bundle, ability string) error {
	_, err := d.Shell(fmt.Sprintf("aa start -a %s -b %s", ability, bundle))
	return err
}

// StopApp force-stops a bundle.
func (d *Device) StopApp(bundle string) error {
	_, err := d.Shell("aa force-stop " + bundle)
	return err
}

var (
	missionPattern    = regexp.MustCompile(`Mission ID #[\s\S]*?isKeepAlive: false\s*}`)
	bundleNamePattern = regexp.MustCompile(`bundle name \[(.*?)\]`)
	mainNamePattern   = regexp.MustCompile(`main name \[(.*?)\]`)
)

// CurrentApp returns the foreground bundle and ability names.
// Both are empty when no foreground mission is found.
func (d *Device) CurrentApp() (string, string, error) {
	out, err := d.Shell("aa dump -l")
	if err != nil {
		return "", "", err
	}
	bundle, ability := parseCurrentApp(out)
	return bundle, ability, nil
}

// parseCurrentApp scans `aa dump -l` mission blocks for the foreground app.
func parseCurrentApp(out string) (string, string) {
	for _, block := range missionPattern.FindAllString(out, -1) {
		if !strings.Contains(block, "state #FOREGROUND") {
			continue
		}
		bundleMatch := bundleNamePattern.FindStringSubmatch(block)
		mainMatch := mainNamePattern.FindStringSubmatch(block)
		if bundleMatch != nil && mainMatch != nil {
			return bundleMatch[1], mainMatch[1]
		}
	}
	return "", ""
}

// WakeUp wakes the device screen.
func (d *Device) WakeUp() error {
	_, err := d.Shell("power-shell wakeup")
	return err
}

var screenStatePattern = regexp.MustCompile(`Current State:\s*(\w+)`)

// ScreenState returns the power state of the screen,
// one of "AWAKE", "INACTIVE", "SLEEP" or "" when unavailable.
func (d *Device) ScreenState() (string, error) {
	out, err := d.Shell("hidumper -s PowerManagerService -a -s")
	if err != nil {
		return "", err
	}
	match := screenStatePattern.FindStringSubmatch(out)
	if match == nil {
		return "", nil
	}
	return match[1], nil
}

var inetAddrPattern = regexp.MustCompile(`inet addr:(\d+\.\d+\.\d+\.\d+)`)

// WlanIP returns the device's non-loopback IPv4 address, or "" when offline.
func (d *Device) WlanIP() (string, error) {
	out, err := d.Shell("ifconfig")
	if err != nil {
		return "", err
	}
	return parseWlanIP(out), nil
}

func parseWlanIP(out string) string {
	for _, match := range inetAddrPattern.FindAllStringSubmatch(out, -1) {
		if !strings.HasPrefix(match[1], "127.") {
			return match[1]
		}
	}
	return ""
}

// Param reads a system parameter via `param get`.
func (d *Device) Param(key string) (string, error) {
	out, err := d.Shell("param get " + key)
	if err != nil {
		return "", err
	}
	return firstLine(out), nil
}

func firstLine(out string) string {
	line, _, _ := strings.Cut(out, "\n")
	return strings.TrimSpace(line)
}

// SDKVersion returns the OpenHarmony API version.
func (d *Device) SDKVersion() (string, error) {
	return d.Param("const.ohos.apiversion")
}

// SysVersion returns the OS software version.
func (d *Device) SysVersion() (string, error) {
	return d.Param("const.product.software.version")
}

// Model returns the product model.
func (d *Device) Model() (string, error) {
	return d.Param("const.product.model")
}

// Brand returns the product brand.
func (d *Device) Brand() (string, error) {
	return d.Param("const.product.brand")
}

// ProductName returns the product name.
func (d *Device) ProductName() (string, error) {
	return d.Param("const.product.name")
}

// CPUAbi returns the primary CPU ABI.
func (d *Device) CPUAbi() (string, error) {
	return d.Param("const.product.cpu.abilist")
}

// Info collects the static device information in one round of queries.
func (d *Device) Info() (Info, error) {
	info := Info{Serial: d.serial}

	if v, err := d.Model(); err == nil {
		info.Model = v
	}
	if v, err := d.Brand(); err == nil {
		info.Brand = v
	}
	if v, err := d.ProductName(); err == nil {
		info.ProductName = v
	}
	if v, err := d.SDKVersion(); err == nil {
		info.SDKVersion = v
	}
	if v, err := d.SysVersion(); err == nil {
		info.SysVersion = v
	}
	if v, err := d.CPUAbi(); err == nil {
		info.CPUAbi = v
	}
	if v, err := d.WlanIP(); err == nil {
		info.WlanIP = v
	}
	return info, nil
}

var activeModePattern = regexp.MustCompile(`activeMode:\s*(\d+)x(\d+),\s*refreshrate=\d+`)

// DisplaySize returns the screen resolution reported by RenderService.
// Returns (0, 0) when the dump does not expose it.
func (d *Device) DisplaySize() (int, int, error) {
	out, err := d.Shell("hidumper -s RenderService -a screen")
	if err != nil {
		return 0, 0, err
	}
	w, h := parseDisplaySize(out)
	return w, h, nil
}

func parseDisplaySize(out string) (int, int) {
	match := activeModePattern.FindStringSubmatch(out)
	if match == nil {
		return 0, 0
	}
	w, _ := strconv.Atoi(match[1])
	h, _ := strconv.Atoi(match[2])
	return w, h
}

// SendKey injects a key event through the uiInput injector.
func (d *Device) SendKey(code int) error {
	if code > MaxKeyCode {
		return core.ErrInvalidKeyCode.WithMessagef("key code %d exceeds %d", code, MaxKeyCode)
	}
	_, err := d.Shell(fmt.Sprintf("uitest uiInput keyEvent %d", code))
	return err
}

// Tap injects a click at the given pixel position.
func (d *Device) Tap(x, y int) error {
	_, err := d.Shell(fmt.Sprintf("uitest uiInput click %d %d", x, y))
	return err
}

// Swipe injects a swipe between two pixel positions.
func (d *Device) Swipe(x1, y1, x2, y2, speed int) error {
	if speed <= 0 {
		speed = 1000
	}
	_, err := d.Shell(fmt.Sprintf("uitest uiInput swipe %d %d %d %d %d", x1, y1, x2, y2, speed))
	return err
}

// InputText types text at the given pixel position.
func (d *Device) InputText(x, y int, text string) error {
	_, err := d.Shell(fmt.Sprintf("uitest uiInput inputText %d %d %s", x, y, text))
	return err
}

// Screenshot captures the screen to a local JPEG file and returns its path.
func (d *Device) Screenshot(localPath string) (string, error) {
	tmpPath := fmt.Sprintf("/data/local/tmp/_tmp_%s.jpeg", uuid.New().String())
	if _, err := d.Shell("snapshot_display -f " + tmpPath); err != nil {
		return "", err
	}
	defer d.Shell("rm -rf " + tmpPath)

	if err := d.RecvFile(tmpPath, localPath); err != nil {
		return "", err
	}
	return localPath, nil
}

// DumpLayout dumps the UI hierarchy to a local JSON file via the uitest CLI.
// The RPC capture is preferred; this works without a session.
func (d *Device) DumpLayout(localPath string) error {
	tmpPath := fmt.Sprintf("/data/local/tmp/%s_tmp.json", d.serial)
	if _, err := d.Shell("uitest dumpLayout -p " + tmpPath); err != nil {
		return err
	}
	defer d.Shell("rm -rf " + tmpPath)

	return d.RecvFile(tmpPath, localPath)
}

// OpenURL opens a URL on the device. With systemBrowser the viewData action
// routes it to the default browser, otherwise the system picks a handler.
func (d *Device) OpenURL(url string, systemBrowser bool) error {
	var cmd string
	if systemBrowser {
		cmd = "aa start -A ohos.want.action.viewData -e entity.system.browsable -U " + url
	} else {
		cmd = "aa start -U " + url
	}
	_, err := d.Shell(cmd)
	return err
}
