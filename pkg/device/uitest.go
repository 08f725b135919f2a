package device

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/devicelab-dev/harmony-runner/pkg/core"
	"github.com/devicelab-dev/harmony-runner/pkg/logger"
)

// UitestServicePort is the fixed RPC port of the on-device uitest daemon.
const UitestServicePort = 8012

// remoteAgentPath is where the agent library lives on the device.
const remoteAgentPath = "/data/local/tmp/agent.so"

// daemonStartTimeout bounds how long EnsureDaemon waits for the daemon
// process to appear after `uitest start-daemon`.
const daemonStartTimeout = 10 * time.Second

// EnsureDaemon makes sure the uitest daemon is running on the device,
// pushing the agent library first when one is provided. Calling it again
// while the daemon is up and the agent is current is a no-op, so repeated
// bootstraps never stack daemon processes.
func (d *Device) EnsureDaemon(agentPath string) error {
	pids, err := d.daemonPIDs()
	if err == nil && len(pids) > 0 {
		if agentPath == "" || d.agentUpToDate(agentPath) {
			logger.Debug("uitest daemon already running (pid %s)", strings.Join(pids, ","))
			return nil
		}
	}

	// Stale daemon or outdated agent: start over.
	d.StopDaemon()

	if agentPath != "" {
		if err := d.setupAgent(agentPath); err != nil {
			return err
		}
	}

	if _, err := d.Shell("uitest start-daemon singleness"); err != nil {
		return core.ErrDaemonStart.WithCause(err)
	}

	return d.waitDaemonUp()
}

// StopDaemon kills every running uitest daemon process.
func (d *Device) StopDaemon() error {
	pids, err := d.daemonPIDs()
	if err != nil {
		return err
	}
	for _, pid := range pids {
		d.Shell("kill -9 " + pid)
		logger.Debug("killed uitest daemon pid %s", pid)
	}
	return nil
}

// RestartDaemon stops and starts the daemon unconditionally. Any live RPC
// session is invalidated: the daemon's object registry does not survive.
func (d *Device) RestartDaemon(agentPath string) error {
	d.StopDaemon()
	return d.EnsureDaemon(agentPath)
}

// DaemonRunning reports whether a uitest daemon process exists.
func (d *Device) DaemonRunning() bool {
	pids, err := d.daemonPIDs()
	return err == nil && len(pids) > 0
}

// ForwardDaemon forwards a free local port to the daemon's RPC socket.
func (d *Device) ForwardDaemon() (int, error) {
	return d.ForwardPort(UitestServicePort)
}

// daemonPIDs returns the pids of running `uitest start-daemon singleness`
// processes.
func (d *Device) daemonPIDs() ([]string, error) {
	out, err := d.Shell("ps -ef")
	if err != nil {
		return nil, err
	}
	return parseDaemonPIDs(out), nil
}

// parseDaemonPIDs extracts daemon pids from `ps -ef` output. Only the
// singleness daemon counts; per-app `uitest start-daemon <bundle>` helpers
// are left alone.
func parseDaemonPIDs(out string) []string {
	var pids []string
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, "uitest") || !strings.Contains(line, "singleness") {
			continue
		}
		if !strings.Contains(line, "uitest start-daemon singleness") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) > 1 {
			pids = append(pids, fields[1])
		}
	}
	return pids
}

// waitDaemonUp polls for the daemon process within a bounded window.
func (d *Device) waitDaemonUp() error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 250 * time.Millisecond
	policy.MaxInterval = time.Second
	policy.MaxElapsedTime = daemonStartTimeout

	err := backoff.Retry(func() error {
		if d.DaemonRunning() {
			return nil
		}
		return fmt.Errorf("daemon not started yet")
	}, policy)
	if err != nil {
		return core.ErrDaemonStart.WithMessagef("uitest daemon did not start within %v", daemonStartTimeout)
	}
	return nil
}

// agentUpToDate reports whether the on-device agent matches the local file.
func (d *Device) agentUpToDate(localPath string) bool {
	if !d.remoteFileExists(remoteAgentPath) {
		return false
	}
	localSum, err := md5Sum(localPath)
	if err != nil {
		return false
	}
	return localSum == d.remoteMD5(remoteAgentPath)
}

// setupAgent pushes the agent library unless the device copy is current.
func (d *Device) setupAgent(localPath string) error {
	if d.remoteFileExists(remoteAgentPath) {
		localSum, err := md5Sum(localPath)
		if err != nil {
			return core.ErrDaemonStart.WithMessagef("cannot read agent %s", localPath).WithCause(err)
		}
		if localSum == d.remoteMD5(remoteAgentPath) {
			logger.Debug("device agent is up to date")
			d.Shell("chmod +x " + remoteAgentPath)
			return nil
		}
		d.Shell("rm " + remoteAgentPath)
	}

	if err := d.SendFile(localPath, remoteAgentPath); err != nil {
		return core.ErrDaemonStart.WithMessage("failed to push agent library").WithCause(err)
	}
	d.Shell("chmod +x " + remoteAgentPath)
	logger.Debug("device agent updated from %s", localPath)
	return nil
}

// remoteFileExists checks for a file on the device.
func (d *Device) remoteFileExists(path string) bool {
	out, err := d.Shell(fmt.Sprintf("[ -f %s ] && echo 'exists' || echo 'not exists'", path))
	if err != nil {
		return false
	}
	return !strings.Contains(out, "not exists")
}

// remoteMD5 returns the md5 checksum of a device file, or "" when missing.
func (d *Device) remoteMD5(path string) string {
	out, err := d.Shell("md5sum " + path)
	if err != nil {
		return ""
	}
	fields := strings.Fields(strings.TrimSpace(out))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// md5Sum computes the md5 checksum of a local file.
func md5Sum(path string) (string, error) {
	f, err := os.Open(path) //#nosec G304 -- caller-provided agent path
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New() //#nosec G401 -- matching the device-side md5sum tool
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
