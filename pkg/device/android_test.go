package device

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
)

// fakeADB records adb invocations and answers from a table keyed by the
// joined arguments (without the -s serial prefix).
type fakeADB struct {
	calls   []string
	replies map[string]string
	fail    map[string]bool
}

func (f *fakeADB) run(ctx context.Context, name string, args ...string) (string, error) {
	if len(args) >= 2 && args[0] == "-s" {
		args = args[2:]
	}
	key := strings.Join(args, " ")
	f.calls = append(f.calls, key)
	if f.fail[key] {
		return "", errors.New("exit status 1")
	}
	return f.replies[key], nil
}

func newFake() *fakeADB {
	return &fakeADB{
		replies: map[string]string{
			"devices":   "List of devices attached\nemulator-5554\toffline\nR58M\tdevice\n\n",
			"get-state": "device\n",
		},
		fail: map[string]bool{},
	}
}

var ctx = context.Background()

func TestNewDetectsSerial(t *testing.T) {
	fake := newFake()
	d, err := newDevice(ctx, "adb", AutoSerial, fake.run)
	if err != nil {
		t.Fatalf("newDevice failed: %v", err)
	}
	if d.Serial() != "R58M" {
		t.Errorf("expected R58M, got %s", d.Serial())
	}
}

func TestNewExplicitSerial(t *testing.T) {
	fake := newFake()
	d, err := newDevice(ctx, "adb", "emulator-5556", fake.run)
	if err != nil {
		t.Fatalf("newDevice failed: %v", err)
	}
	if d.Serial() != "emulator-5556" {
		t.Errorf("expected emulator-5556, got %s", d.Serial())
	}
	for _, c := range fake.calls {
		if c == "devices" {
			t.Error("did not expect device detection with an explicit serial")
		}
	}
}

func TestNewNoDevices(t *testing.T) {
	fake := newFake()
	fake.replies["devices"] = "List of devices attached\n\n"
	if _, err := newDevice(ctx, "adb", "", fake.run); err == nil {
		t.Error("expected error with no connected devices")
	}
}

func TestNewDeviceNotReady(t *testing.T) {
	fake := newFake()
	fake.replies["get-state"] = "offline\n"

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := newDevice(cctx, "adb", "R58M", fake.run); err == nil {
		t.Error("expected error for offline device")
	}
}

func TestShell(t *testing.T) {
	fake := newFake()
	fake.replies["shell getprop ro.product.model"] = "Pixel 6\n"
	d, err := newDevice(ctx, "adb", "R58M", fake.run)
	if err != nil {
		t.Fatal(err)
	}

	out, err := d.Shell(ctx, "getprop ro.product.model")
	if err != nil {
		t.Fatalf("Shell failed: %v", err)
	}
	if strings.TrimSpace(out) != "Pixel 6" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestAdbErrorIncludesCommand(t *testing.T) {
	fake := newFake()
	fake.fail["forward --remove tcp:6001"] = true
	d, err := newDevice(ctx, "adb", "R58M", fake.run)
	if err != nil {
		t.Fatal(err)
	}

	err = d.RemoveForward(ctx, 6001)
	if err == nil || !strings.Contains(err.Error(), "adb forward --remove tcp:6001") {
		t.Errorf("expected adb command in error, got %v", err)
	}
}

func TestForwardServerSocket(t *testing.T) {
	fake := newFake()
	d, err := newDevice(ctx, "adb", "R58M", fake.run)
	if err != nil {
		t.Fatal(err)
	}
	d.useTCP = false

	fwd, release, err := d.ForwardServer(ctx, 0)
	if err != nil {
		t.Fatalf("ForwardServer failed: %v", err)
	}
	if fwd.Socket != d.SocketPath() || fwd.Port != 0 {
		t.Errorf("unexpected forward %+v", fwd)
	}
	want := "forward localfilesystem:" + d.SocketPath() + " tcp:6790"
	if last := fake.calls[len(fake.calls)-1]; last != want {
		t.Errorf("expected %q, got %q", want, last)
	}

	if err := release(); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	want = "forward --remove localfilesystem:" + d.SocketPath()
	if last := fake.calls[len(fake.calls)-1]; last != want {
		t.Errorf("expected %q, got %q", want, last)
	}
}

func TestForwardServerTCP(t *testing.T) {
	fake := newFake()
	d, err := newDevice(ctx, "adb", "R58M", fake.run)
	if err != nil {
		t.Fatal(err)
	}
	d.useTCP = true

	fwd, release, err := d.ForwardServer(ctx, 7912)
	if err != nil {
		t.Fatalf("ForwardServer failed: %v", err)
	}
	if fwd.Socket != "" || fwd.Port < portRangeStart || fwd.Port > portRangeEnd {
		t.Errorf("unexpected forward %+v", fwd)
	}
	if last := fake.calls[len(fake.calls)-1]; !strings.HasSuffix(last, " tcp:7912") {
		t.Errorf("expected forward to device port 7912, got %q", last)
	}
	if err := release(); err != nil {
		t.Fatalf("release failed: %v", err)
	}
}

func TestForwardServerFailure(t *testing.T) {
	fake := newFake()
	d, err := newDevice(ctx, "adb", "R58M", fake.run)
	if err != nil {
		t.Fatal(err)
	}
	d.useTCP = false
	fake.fail["forward localfilesystem:"+d.SocketPath()+" tcp:6790"] = true

	if _, _, err := d.ForwardServer(ctx, 0); err == nil {
		t.Error("expected error when adb forward fails")
	}
}

func TestFindFreePort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skip("cannot listen")
	}
	defer ln.Close()
	busy := ln.Addr().(*net.TCPAddr).Port

	if _, err := findFreePort(busy, busy); err == nil {
		t.Error("expected error when the only port is busy")
	}
}
