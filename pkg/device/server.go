package device

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/devicelab-dev/uiselector/pkg/logger"
)

// DefaultServerPort is the port the UIAutomator2 server listens on inside
// the device.
const DefaultServerPort = 6790

// Port range for TCP forwarding (Windows)
const (
	portRangeStart = 6001
	portRangeEnd   = 7001
)

// Forward is the local end of a forward to the device server. Exactly one
// of Socket and Port is set.
type Forward struct {
	Socket string
	Port   int
}

// SocketPath returns the unix socket path used for this device.
func (d *AndroidDevice) SocketPath() string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("uiselector-%s.sock", d.serial))
}

// ForwardServer forwards a local endpoint to devicePort: a unix socket, or a
// free TCP port on Windows. The returned function removes the forward.
func (d *AndroidDevice) ForwardServer(ctx context.Context, devicePort int) (Forward, func() error, error) {
	if devicePort == 0 {
		devicePort = DefaultServerPort
	}
	if d.useTCP {
		return d.forwardTCP(ctx, devicePort)
	}
	return d.forwardSocket(ctx, devicePort)
}

func (d *AndroidDevice) forwardSocket(ctx context.Context, devicePort int) (Forward, func() error, error) {
	socketPath := d.SocketPath()

	// Remove stale socket file
	_ = os.Remove(socketPath)

	if err := d.ForwardSocket(ctx, socketPath, devicePort); err != nil {
		return Forward{}, nil, fmt.Errorf("socket forward failed: %w", err)
	}
	logger.Info("Forwarding %s to %s:%d", socketPath, d.serial, devicePort)

	release := func() error {
		err := d.RemoveSocketForward(context.Background(), socketPath)
		_ = os.Remove(socketPath)
		return err
	}
	return Forward{Socket: socketPath}, release, nil
}

func (d *AndroidDevice) forwardTCP(ctx context.Context, devicePort int) (Forward, func() error, error) {
	localPort, err := findFreePort(portRangeStart, portRangeEnd)
	if err != nil {
		return Forward{}, nil, err
	}
	if err := d.Forward(ctx, localPort, devicePort); err != nil {
		return Forward{}, nil, fmt.Errorf("port forward failed: %w", err)
	}
	logger.Info("Forwarding tcp:%d to %s:%d", localPort, d.serial, devicePort)

	release := func() error {
		return d.RemoveForward(context.Background(), localPort)
	}
	return Forward{Port: localPort}, release, nil
}

// findFreePort finds a free TCP port in the given range.
func findFreePort(start, end int) (int, error) {
	for port := start; port <= end; port++ {
		ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err == nil {
			ln.Close()
			return port, nil
		}
	}
	return 0, fmt.Errorf("no free port found in range %d-%d", start, end)
}
