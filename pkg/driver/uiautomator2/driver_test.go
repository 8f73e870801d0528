package uiautomator2

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/devicelab-dev/uiselector/pkg/core"
	"github.com/devicelab-dev/uiselector/pkg/executor"
	"github.com/devicelab-dev/uiselector/pkg/uiautomator2"
	"github.com/devicelab-dev/uiselector/pkg/uitree"
	"github.com/devicelab-dev/uiselector/pkg/watcher"
)

// ============================================================================
// Mock UIA2Client
// ============================================================================

type swipeCall struct {
	Area      uiautomator2.RectModel
	Direction string
	Percent   float64
	Speed     int
}

type MockUIA2Client struct {
	// Tracking
	clickCalls    []struct{ X, Y int }
	swipeCalls    []swipeCall
	pressKeyCalls []int
	sourceCalls   int

	// Return values
	sourceData     string
	sourceErr      error
	clickErr       error
	swipeErr       error
	pressKeyErr    error
	windowSize     *uiautomator2.WindowSize
	windowErr      error
	deviceInfo     *uiautomator2.DeviceInfo
	deviceErr      error
	rotation       int
	rotationErr    error
	orientation    string
	orientationErr error
}

func (m *MockUIA2Client) Source(ctx context.Context) (string, error) {
	m.sourceCalls++
	return m.sourceData, m.sourceErr
}

func (m *MockUIA2Client) Click(ctx context.Context, x, y int) error {
	m.clickCalls = append(m.clickCalls, struct{ X, Y int }{x, y})
	return m.clickErr
}

func (m *MockUIA2Client) SwipeInArea(ctx context.Context, area uiautomator2.RectModel, direction string, percent float64, speed int) error {
	m.swipeCalls = append(m.swipeCalls, swipeCall{area, direction, percent, speed})
	return m.swipeErr
}

func (m *MockUIA2Client) PressKeyCode(ctx context.Context, keyCode int) error {
	m.pressKeyCalls = append(m.pressKeyCalls, keyCode)
	return m.pressKeyErr
}

func (m *MockUIA2Client) GetDeviceInfo(ctx context.Context) (*uiautomator2.DeviceInfo, error) {
	if m.deviceErr != nil {
		return nil, m.deviceErr
	}
	if m.deviceInfo != nil {
		return m.deviceInfo, nil
	}
	return &uiautomator2.DeviceInfo{
		Model:           "Pixel 6",
		PlatformVersion: "13",
		RealDisplaySize: "1080x2400",
		DisplayDensity:  420,
	}, nil
}

func (m *MockUIA2Client) GetWindowSize(ctx context.Context) (*uiautomator2.WindowSize, error) {
	if m.windowErr != nil {
		return nil, m.windowErr
	}
	if m.windowSize != nil {
		return m.windowSize, nil
	}
	return &uiautomator2.WindowSize{Width: 1080, Height: 2400}, nil
}

func (m *MockUIA2Client) GetRotation(ctx context.Context) (int, error) {
	return m.rotation, m.rotationErr
}

func (m *MockUIA2Client) GetOrientation(ctx context.Context) (string, error) {
	if m.orientation == "" && m.orientationErr == nil {
		return uiautomator2.OrientationPortrait, nil
	}
	return m.orientation, m.orientationErr
}

var ctx = context.Background()

// ============================================================================
// Hierarchy
// ============================================================================

func TestFetch(t *testing.T) {
	client := &MockUIA2Client{sourceData: sampleHierarchy}
	d := New(client)

	snap, err := d.Fetch(ctx)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if snap.Len() != 6 {
		t.Errorf("expected 6 nodes, got %d", snap.Len())
	}
}

func TestFetchErrors(t *testing.T) {
	d := New(&MockUIA2Client{sourceErr: errors.New("boom")})
	if _, err := d.Fetch(ctx); err == nil {
		t.Error("expected error when source fails")
	}

	d = New(&MockUIA2Client{sourceData: "garbage"})
	if _, err := d.Fetch(ctx); err == nil {
		t.Error("expected error for invalid source")
	}
}

func TestHierarchy(t *testing.T) {
	d := New(&MockUIA2Client{sourceData: sampleHierarchy})
	data, err := d.Hierarchy(ctx)
	if err != nil {
		t.Fatalf("Hierarchy failed: %v", err)
	}
	if string(data) != sampleHierarchy {
		t.Error("expected raw page source")
	}
}

// ============================================================================
// Gestures
// ============================================================================

func TestClickCenter(t *testing.T) {
	client := &MockUIA2Client{}
	d := New(client)

	if err := d.Click(ctx, core.Rect{Left: 100, Top: 200, Right: 300, Bottom: 280}); err != nil {
		t.Fatalf("Click failed: %v", err)
	}
	if len(client.clickCalls) != 1 {
		t.Fatalf("expected 1 click, got %d", len(client.clickCalls))
	}
	if c := client.clickCalls[0]; c.X != 200 || c.Y != 240 {
		t.Errorf("expected click at (200,240), got (%d,%d)", c.X, c.Y)
	}
}

func TestClickEmptyBounds(t *testing.T) {
	client := &MockUIA2Client{}
	if err := New(client).Click(ctx, core.Rect{}); err == nil {
		t.Error("expected error for empty bounds")
	}
	if len(client.clickCalls) != 0 {
		t.Error("expected no click for empty bounds")
	}
}

func TestSwipe(t *testing.T) {
	client := &MockUIA2Client{}
	d := New(client)

	bounds := core.Rect{Left: 0, Top: 100, Right: 500, Bottom: 900}
	if err := d.Swipe(ctx, bounds, watcher.SwipeUp, 0.5, 3000); err != nil {
		t.Fatalf("Swipe failed: %v", err)
	}
	if len(client.swipeCalls) != 1 {
		t.Fatalf("expected 1 swipe, got %d", len(client.swipeCalls))
	}
	got := client.swipeCalls[0]
	if got.Area != uiautomator2.NewRect(0, 100, 500, 800) {
		t.Errorf("unexpected area: %+v", got.Area)
	}
	if got.Direction != "up" || got.Percent != 0.5 || got.Speed != 3000 {
		t.Errorf("unexpected swipe: %+v", got)
	}
}

func TestPressKeyCode(t *testing.T) {
	client := &MockUIA2Client{}
	if err := New(client).PressKeyCode(ctx, 66); err != nil {
		t.Fatalf("PressKeyCode failed: %v", err)
	}
	if len(client.pressKeyCalls) != 1 || client.pressKeyCalls[0] != 66 {
		t.Errorf("unexpected key presses: %v", client.pressKeyCalls)
	}
}

// ============================================================================
// Device info
// ============================================================================

func TestDeviceInfo(t *testing.T) {
	client := &MockUIA2Client{sourceData: sampleHierarchy}
	info, err := New(client).DeviceInfo(ctx)
	if err != nil {
		t.Fatalf("DeviceInfo failed: %v", err)
	}

	want := core.DeviceInfo{
		NaturalOrientation: true,
		DisplayRotation:    0,
		DisplayWidth:       1080,
		DisplayHeight:      2400,
		DisplaySizeDpX:     411,
		DisplaySizeDpY:     914,
		SdkInt:             "13",
		CurrentPackageName: "com.app",
		ProductName:        "Pixel 6",
	}
	if *info != want {
		t.Errorf("DeviceInfo = %+v, want %+v", *info, want)
	}
}

func TestDeviceInfoRotated(t *testing.T) {
	client := &MockUIA2Client{sourceData: sampleHierarchy, rotation: 270}
	info, err := New(client).DeviceInfo(ctx)
	if err != nil {
		t.Fatalf("DeviceInfo failed: %v", err)
	}
	if info.DisplayRotation != 3 {
		t.Errorf("expected rotation 3, got %d", info.DisplayRotation)
	}
	if info.NaturalOrientation {
		t.Error("expected non-natural orientation")
	}
}

func TestDeviceInfoPartialFailures(t *testing.T) {
	client := &MockUIA2Client{
		sourceErr:      errors.New("no source"),
		rotationErr:    errors.New("no rotation"),
		orientationErr: errors.New("no orientation"),
	}
	info, err := New(client).DeviceInfo(ctx)
	if err != nil {
		t.Fatalf("DeviceInfo failed: %v", err)
	}
	if info.CurrentPackageName != "" {
		t.Errorf("expected empty package, got %q", info.CurrentPackageName)
	}
	if !info.NaturalOrientation || info.DisplayRotation != 0 {
		t.Errorf("expected default orientation, got %+v", info)
	}
}

func TestDeviceInfoOrientationFallback(t *testing.T) {
	client := &MockUIA2Client{
		sourceData:  sampleHierarchy,
		rotationErr: errors.New("no rotation"),
		orientation: uiautomator2.OrientationLandscape,
	}
	info, err := New(client).DeviceInfo(ctx)
	if err != nil {
		t.Fatalf("DeviceInfo failed: %v", err)
	}
	if info.DisplayRotation != 1 || info.NaturalOrientation {
		t.Errorf("expected landscape from orientation, got %+v", info)
	}
}

func TestDeviceInfoErrors(t *testing.T) {
	if _, err := New(&MockUIA2Client{windowErr: errors.New("x")}).DeviceInfo(ctx); err == nil {
		t.Error("expected error when window size fails")
	}
	if _, err := New(&MockUIA2Client{deviceErr: errors.New("x")}).DeviceInfo(ctx); err == nil {
		t.Error("expected error when device info fails")
	}
}

func TestToDp(t *testing.T) {
	if got := toDp(1080, 420); got != 411 {
		t.Errorf("toDp(1080, 420) = %d, want 411", got)
	}
	if got := toDp(1080, 0); got != 1080 {
		t.Errorf("toDp with unknown density = %d, want 1080", got)
	}
}

// ============================================================================
// End to end with the executor
// ============================================================================

func TestResolveAndClickThroughDriver(t *testing.T) {
	client := &MockUIA2Client{sourceData: sampleHierarchy}
	d := New(client)
	tree := uitree.NewSourceTree(d.Fetch)
	exec := executor.New(tree, executor.Options{WaitTimeout: 10 * time.Millisecond, PollInterval: time.Millisecond})

	query := map[string]interface{}{
		"resourceId": "com.app:id/container",
		"child":      map[string]interface{}{"clazz": ".EditText"},
	}
	err := exec.WithElement(ctx, query, func(h *uitree.Handle) error {
		bounds, err := h.Bounds()
		if err != nil {
			return err
		}
		return d.Click(ctx, bounds)
	})
	if err != nil {
		t.Fatalf("WithElement failed: %v", err)
	}

	if len(client.clickCalls) != 1 {
		t.Fatalf("expected 1 click, got %d", len(client.clickCalls))
	}
	if c := client.clickCalls[0]; c.X != 275 || c.Y != 500 {
		t.Errorf("expected click at (275,500), got (%d,%d)", c.X, c.Y)
	}
	if tree.Outstanding() != 0 {
		t.Errorf("expected all handles released, got %d", tree.Outstanding())
	}
}
