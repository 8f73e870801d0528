// Package mock provides a mock driver for testing without a real device.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/devicelab-dev/uiselector/pkg/core"
	"github.com/devicelab-dev/uiselector/pkg/uitree"
	"github.com/devicelab-dev/uiselector/pkg/watcher"
)

// Call records one gesture sent to the mock.
type Call struct {
	Kind      string // click, swipe or key
	Bounds    core.Rect
	Direction watcher.SwipeDirection
	Percent   float64
	Speed     int
	KeyCode   int
}

// Driver is a mock implementation of the device driver: it serves a
// hierarchy and records gestures instead of performing them.
type Driver struct {
	// Configuration
	Config Config

	mu        sync.Mutex
	snapshot  *uitree.Snapshot
	calls     []Call
	callCount int
	fetches   int
}

// Config configures mock driver behavior.
type Config struct {
	// FailOnCall makes gesture N fail (1-indexed). 0 = never fail.
	FailOnCall int
	// CallDelay adds artificial delay per gesture
	CallDelay time.Duration
	// FetchError is returned by Fetch when set.
	FetchError error
	// Device info to report
	Device core.DeviceInfo
}

// New creates a new mock driver serving snap.
func New(cfg Config, snap *uitree.Snapshot) *Driver {
	if cfg.Device.ProductName == "" {
		cfg.Device = core.DeviceInfo{
			DisplayWidth:       1080,
			DisplayHeight:      2400,
			DisplaySizeDpX:     411,
			DisplaySizeDpY:     914,
			NaturalOrientation: true,
			SdkInt:             "14",
			ProductName:        "mock",
			CurrentPackageName: "com.example.mock",
		}
	}
	if snap == nil {
		snap = uitree.NewSnapshot()
	}
	return &Driver{Config: cfg, snapshot: snap}
}

// SetSnapshot replaces the hierarchy served by Fetch.
func (d *Driver) SetSnapshot(snap *uitree.Snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.snapshot = snap
}

// Fetch implements uitree.Fetcher.
func (d *Driver) Fetch(ctx context.Context) (*uitree.Snapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.fetches++
	if d.Config.FetchError != nil {
		return nil, d.Config.FetchError
	}
	return d.snapshot, nil
}

// Fetches returns how many hierarchy reads were served.
func (d *Driver) Fetches() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fetches
}

// Click records a click.
func (d *Driver) Click(ctx context.Context, bounds core.Rect) error {
	return d.record(Call{Kind: "click", Bounds: bounds})
}

// Swipe records a swipe.
func (d *Driver) Swipe(ctx context.Context, bounds core.Rect, dir watcher.SwipeDirection, percent float64, speed int) error {
	return d.record(Call{Kind: "swipe", Bounds: bounds, Direction: dir, Percent: percent, Speed: speed})
}

// PressKeyCode records a key press.
func (d *Driver) PressKeyCode(ctx context.Context, code int) error {
	return d.record(Call{Kind: "key", KeyCode: code})
}

// DeviceInfo returns the configured device record.
func (d *Driver) DeviceInfo(ctx context.Context) (*core.DeviceInfo, error) {
	info := d.Config.Device
	return &info, nil
}

func (d *Driver) record(c Call) error {
	if d.Config.CallDelay > 0 {
		time.Sleep(d.Config.CallDelay)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.callCount++
	if d.Config.FailOnCall > 0 && d.callCount == d.Config.FailOnCall {
		return fmt.Errorf("mock failure on call %d (%s)", d.callCount, c.Kind)
	}
	d.calls = append(d.calls, c)
	return nil
}

// Calls returns the gestures recorded so far.
func (d *Driver) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls...)
}

// Reset clears recorded gestures.
func (d *Driver) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = nil
	d.callCount = 0
}
