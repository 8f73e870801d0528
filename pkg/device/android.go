// Package device provides the adb plumbing needed to reach a UIAutomator2
// server running on an Android device.
package device

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
)

// AutoSerial selects the first connected device.
const AutoSerial = "auto"

// commandRunner runs a host command and returns its stdout.
type commandRunner func(ctx context.Context, name string, args ...string) (string, error)

// AndroidDevice manages an Android device connection via ADB.
type AndroidDevice struct {
	serial  string
	adbPath string
	run     commandRunner
	useTCP  bool // Forward over TCP instead of a unix socket (Windows)
}

// New creates an AndroidDevice for the given serial.
// If serial is empty or AutoSerial, it auto-detects the connected device.
func New(ctx context.Context, serial string) (*AndroidDevice, error) {
	adbPath, err := findADB()
	if err != nil {
		return nil, err
	}
	return newDevice(ctx, adbPath, serial, runCommand)
}

func newDevice(ctx context.Context, adbPath, serial string, run commandRunner) (*AndroidDevice, error) {
	d := &AndroidDevice{
		adbPath: adbPath,
		run:     run,
		useTCP:  runtime.GOOS == "windows",
	}

	if serial == "" || serial == AutoSerial {
		var err error
		serial, err = d.detectSerial(ctx)
		if err != nil {
			return nil, fmt.Errorf("no device specified and auto-detect failed: %w", err)
		}
	}
	d.serial = serial

	if err := d.waitForDevice(ctx, 5*time.Second); err != nil {
		return nil, fmt.Errorf("device not found: %w", err)
	}
	return d, nil
}

// detectSerial finds the first connected device serial.
func (d *AndroidDevice) detectSerial(ctx context.Context) (string, error) {
	out, err := d.run(ctx, d.adbPath, "devices")
	if err != nil {
		return "", err
	}

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) >= 2 && parts[1] == "device" {
			return parts[0], nil
		}
	}
	return "", fmt.Errorf("no connected devices found")
}

// Serial returns the device serial number.
func (d *AndroidDevice) Serial() string {
	return d.serial
}

// Shell executes a shell command on the device.
func (d *AndroidDevice) Shell(ctx context.Context, cmd string) (string, error) {
	return d.adb(ctx, "shell", cmd)
}

// Forward creates a port forward from local to device.
func (d *AndroidDevice) Forward(ctx context.Context, localPort, remotePort int) error {
	_, err := d.adb(ctx, "forward", fmt.Sprintf("tcp:%d", localPort), fmt.Sprintf("tcp:%d", remotePort))
	return err
}

// RemoveForward removes a port forward.
func (d *AndroidDevice) RemoveForward(ctx context.Context, localPort int) error {
	_, err := d.adb(ctx, "forward", "--remove", fmt.Sprintf("tcp:%d", localPort))
	return err
}

// ForwardSocket forwards a Unix socket to a device TCP port.
func (d *AndroidDevice) ForwardSocket(ctx context.Context, socketPath string, remotePort int) error {
	_, err := d.adb(ctx, "forward", fmt.Sprintf("localfilesystem:%s", socketPath), fmt.Sprintf("tcp:%d", remotePort))
	return err
}

// RemoveSocketForward removes a Unix socket forward.
func (d *AndroidDevice) RemoveSocketForward(ctx context.Context, socketPath string) error {
	_, err := d.adb(ctx, "forward", "--remove", fmt.Sprintf("localfilesystem:%s", socketPath))
	return err
}

// adb executes an ADB command against this device.
func (d *AndroidDevice) adb(ctx context.Context, args ...string) (string, error) {
	cmdArgs := make([]string, 0, len(args)+2)
	if d.serial != "" {
		cmdArgs = append(cmdArgs, "-s", d.serial)
	}
	cmdArgs = append(cmdArgs, args...)

	out, err := d.run(ctx, d.adbPath, cmdArgs...)
	if err != nil {
		return "", fmt.Errorf("adb %s: %w", strings.Join(args, " "), err)
	}
	return out, nil
}

// waitForDevice polls adb get-state until the device reports ready.
func (d *AndroidDevice) waitForDevice(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	b := backoff.WithContext(backoff.NewConstantBackOff(500*time.Millisecond), ctx)
	err := backoff.Retry(func() error {
		out, err := d.adb(ctx, "get-state")
		if err != nil {
			return err
		}
		if state := strings.TrimSpace(out); state != "device" {
			return fmt.Errorf("state %q", state)
		}
		return nil
	}, b)
	if err != nil {
		return fmt.Errorf("timeout waiting for device %s: %w", d.serial, err)
	}
	return nil
}

func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errMsg := stderr.String()
		if errMsg == "" {
			errMsg = stdout.String()
		}
		return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(errMsg))
	}
	return stdout.String(), nil
}

// findADB locates the ADB binary.
func findADB() (string, error) {
	if path, err := exec.LookPath("adb"); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("adb not found in PATH; ensure Android SDK is installed")
}
