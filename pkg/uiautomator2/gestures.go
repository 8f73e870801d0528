package uiautomator2

import (
	"context"
	"net/http"
)

// Click taps at screen coordinates.
func (c *Client) Click(ctx context.Context, x, y int) error {
	_, err := c.request(ctx, http.MethodPost, c.sessionPath("/appium/gestures/click"), ClickRequest{
		Offset: &PointModel{X: x, Y: y},
	})
	return err
}

// SwipeInArea swipes within a screen area. percent is the share of the area
// to cover (0-1), speed is in pixels per second.
func (c *Client) SwipeInArea(ctx context.Context, area RectModel, direction string, percent float64, speed int) error {
	_, err := c.request(ctx, http.MethodPost, c.sessionPath("/appium/gestures/swipe"), SwipeRequest{
		Area:      &area,
		Direction: direction,
		Percent:   percent,
		Speed:     speed,
	})
	return err
}
