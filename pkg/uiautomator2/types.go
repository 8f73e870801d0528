// Package uiautomator2 provides HTTP client for UIAutomator2 server.
package uiautomator2

// Response is the standard UIAutomator2 response format.
type Response struct {
	SessionID string      `json:"sessionId"`
	Value     interface{} `json:"value"`
}

// Capabilities for session creation.
type Capabilities struct {
	PlatformName string `json:"platformName,omitempty"`
	DeviceName   string `json:"deviceName,omitempty"`
}

// SessionRequest for creating a session.
type SessionRequest struct {
	Capabilities Capabilities `json:"capabilities"`
}

// KeyCodeRequest for pressing keys.
type KeyCodeRequest struct {
	KeyCode  int `json:"keycode"`
	MetaKeys int `json:"metastate,omitempty"`
}

// PointModel represents coordinates.
type PointModel struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// RectModel represents a rectangle for swipe area operations.
// UIAutomator2 gesture APIs expect left/top/width/height format.
type RectModel struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// NewRect creates a RectModel from x, y, width, height values.
func NewRect(x, y, width, height int) RectModel {
	return RectModel{
		Left:   x,
		Top:    y,
		Width:  width,
		Height: height,
	}
}

// ClickRequest for tap gestures.
type ClickRequest struct {
	Offset *PointModel `json:"offset,omitempty"`
}

// SwipeRequest for swipe gestures.
type SwipeRequest struct {
	Area      *RectModel `json:"area,omitempty"`
	Direction string     `json:"direction"` // up, down, left, right
	Percent   float64    `json:"percent"`   // 0.0 - 1.0
	Speed     int        `json:"speed,omitempty"`
}

// DeviceInfo from device info endpoint.
type DeviceInfo struct {
	AndroidID       string `json:"androidId"`
	Manufacturer    string `json:"manufacturer"`
	Model           string `json:"model"`
	Brand           string `json:"brand"`
	APIVersion      string `json:"apiVersion"`
	PlatformVersion string `json:"platformVersion"`
	RealDisplaySize string `json:"realDisplaySize"`
	DisplayDensity  int    `json:"displayDensity"`
}

// WindowSize from the window rect endpoint.
type WindowSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Common Android key codes.
const (
	KeyCodeHome       = 3
	KeyCodeBack       = 4
	KeyCodeDpadUp     = 19
	KeyCodeDpadDown   = 20
	KeyCodeDpadLeft   = 21
	KeyCodeDpadRight  = 22
	KeyCodeDpadCenter = 23
	KeyCodeVolumeUp   = 24
	KeyCodeVolumeDown = 25
	KeyCodePower      = 26
	KeyCodeCamera     = 27
	KeyCodeTab        = 61
	KeyCodeSpace      = 62
	KeyCodeEnter      = 66
	KeyCodeDelete     = 67
	KeyCodeMenu       = 82
	KeyCodeSearch     = 84
)

// Swipe directions.
const (
	DirectionUp    = "up"
	DirectionDown  = "down"
	DirectionLeft  = "left"
	DirectionRight = "right"
)

// Orientations.
const (
	OrientationPortrait  = "PORTRAIT"
	OrientationLandscape = "LANDSCAPE"
)
