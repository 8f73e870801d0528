// Package uiautomator2 adapts a UIAutomator2 server to the selector engine:
// it serves page-source dumps as tree snapshots, performs watcher gestures
// and reports device properties.
package uiautomator2

import (
	"context"
	"fmt"
	"time"

	"github.com/devicelab-dev/uiselector/pkg/core"
	"github.com/devicelab-dev/uiselector/pkg/logger"
	"github.com/devicelab-dev/uiselector/pkg/uiautomator2"
	"github.com/devicelab-dev/uiselector/pkg/uitree"
	"github.com/devicelab-dev/uiselector/pkg/watcher"
)

// UIA2Client defines the interface for UIAutomator2 client operations.
// Implemented by uiautomator2.Client. Allows mocking in tests.
type UIA2Client interface {
	// Hierarchy
	Source(ctx context.Context) (string, error)

	// Gestures
	Click(ctx context.Context, x, y int) error
	SwipeInArea(ctx context.Context, area uiautomator2.RectModel, direction string, percent float64, speed int) error

	// Keys
	PressKeyCode(ctx context.Context, keyCode int) error

	// Device state
	GetDeviceInfo(ctx context.Context) (*uiautomator2.DeviceInfo, error)
	GetWindowSize(ctx context.Context) (*uiautomator2.WindowSize, error)
	GetRotation(ctx context.Context) (int, error)
	GetOrientation(ctx context.Context) (string, error)
}

// Driver serves the live hierarchy and performs gestures through UIA2Client.
type Driver struct {
	client UIA2Client
}

// New creates a new UIAutomator2 driver.
func New(client UIA2Client) *Driver {
	return &Driver{client: client}
}

// Fetch implements uitree.Fetcher by reading and parsing the page source.
func (d *Driver) Fetch(ctx context.Context) (*uitree.Snapshot, error) {
	start := time.Now()
	source, err := d.client.Source(ctx)
	if err != nil {
		return nil, err
	}
	snap, err := ParsePageSource(source)
	if err != nil {
		return nil, err
	}
	logger.Debug("page source: %d nodes in %s", snap.Len(), time.Since(start).Round(time.Millisecond))
	return snap, nil
}

// Hierarchy returns the raw page source XML.
func (d *Driver) Hierarchy(ctx context.Context) ([]byte, error) {
	source, err := d.client.Source(ctx)
	if err != nil {
		return nil, err
	}
	return []byte(source), nil
}

// Click taps the center of bounds.
func (d *Driver) Click(ctx context.Context, bounds core.Rect) error {
	if bounds.IsEmpty() {
		return fmt.Errorf("click: element has no visible area %+v", bounds)
	}
	c := bounds.Center()
	return d.client.Click(ctx, c.X, c.Y)
}

// Swipe swipes inside bounds. percent is a fraction of the area (0-1).
func (d *Driver) Swipe(ctx context.Context, bounds core.Rect, dir watcher.SwipeDirection, percent float64, speed int) error {
	if bounds.IsEmpty() {
		return fmt.Errorf("swipe: element has no visible area %+v", bounds)
	}
	area := uiautomator2.NewRect(bounds.Left, bounds.Top, bounds.Width(), bounds.Height())
	return d.client.SwipeInArea(ctx, area, mapDirection(dir), percent, speed)
}

// PressKeyCode presses an Android key code.
func (d *Driver) PressKeyCode(ctx context.Context, code int) error {
	return d.client.PressKeyCode(ctx, code)
}

// DeviceInfo assembles the device record from window size, rotation,
// device properties and the foreground package of the current hierarchy.
func (d *Driver) DeviceInfo(ctx context.Context) (*core.DeviceInfo, error) {
	size, err := d.client.GetWindowSize(ctx)
	if err != nil {
		return nil, fmt.Errorf("window size: %w", err)
	}
	props, err := d.client.GetDeviceInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("device info: %w", err)
	}

	info := &core.DeviceInfo{
		DisplayWidth:       size.Width,
		DisplayHeight:      size.Height,
		NaturalOrientation: true,
		SdkInt:             props.PlatformVersion,
		ProductName:        props.Model,
	}

	if degrees, err := d.client.GetRotation(ctx); err == nil {
		info.DisplayRotation = (degrees / 90) % 4
		info.NaturalOrientation = info.DisplayRotation%2 == 0
	} else if orientation, oerr := d.client.GetOrientation(ctx); oerr == nil {
		// Coarse fallback: landscape is taken as a quarter turn.
		if orientation == uiautomator2.OrientationLandscape {
			info.DisplayRotation = 1
			info.NaturalOrientation = false
		}
	} else {
		logger.Warn("rotation unavailable: %v", err)
	}

	info.DisplaySizeDpX = toDp(size.Width, props.DisplayDensity)
	info.DisplaySizeDpY = toDp(size.Height, props.DisplayDensity)

	if source, err := d.client.Source(ctx); err == nil {
		info.CurrentPackageName = CurrentPackage(source)
	} else {
		logger.Warn("page source unavailable for current package: %v", err)
	}

	return info, nil
}

// toDp converts pixels to density-independent pixels (160 dpi baseline).
func toDp(px, density int) int {
	if density <= 0 {
		return px
	}
	return px * 160 / density
}
