package uiautomator2

import (
	"context"
	"net/http"
)

// PressKeyCode presses an Android key code.
func (c *Client) PressKeyCode(ctx context.Context, keyCode int) error {
	_, err := c.request(ctx, http.MethodPost, c.sessionPath("/appium/device/press_keycode"), KeyCodeRequest{
		KeyCode: keyCode,
	})
	return err
}

// Source returns the page source as hierarchy XML.
func (c *Client) Source(ctx context.Context) (string, error) {
	var source string
	if err := c.getValue(ctx, c.sessionPath("/source"), &source); err != nil {
		return "", err
	}
	return source, nil
}

// GetDeviceInfo returns device properties.
func (c *Client) GetDeviceInfo(ctx context.Context) (*DeviceInfo, error) {
	var info DeviceInfo
	if err := c.getValue(ctx, c.sessionPath("/appium/device/info"), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetOrientation returns PORTRAIT or LANDSCAPE.
func (c *Client) GetOrientation(ctx context.Context) (string, error) {
	var orientation string
	if err := c.getValue(ctx, c.sessionPath("/orientation"), &orientation); err != nil {
		return "", err
	}
	return orientation, nil
}

// GetRotation returns the display rotation in degrees: 0, 90, 180 or 270.
func (c *Client) GetRotation(ctx context.Context) (int, error) {
	var rotation struct {
		Z int `json:"z"`
	}
	if err := c.getValue(ctx, c.sessionPath("/rotation"), &rotation); err != nil {
		return 0, err
	}
	return rotation.Z, nil
}

// GetWindowSize returns the display size in pixels.
func (c *Client) GetWindowSize(ctx context.Context) (*WindowSize, error) {
	var size WindowSize
	if err := c.getValue(ctx, c.sessionPath("/window/rect"), &size); err != nil {
		return nil, err
	}
	return &size, nil
}
