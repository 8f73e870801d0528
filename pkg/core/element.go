package core

// Rect is a rectangle in screen pixels. The origin is the top-left corner and
// y grows downward.
type Rect struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// Width returns the horizontal extent of the rectangle.
func (r Rect) Width() int {
	return r.Right - r.Left
}

// Height returns the vertical extent of the rectangle.
func (r Rect) Height() int {
	return r.Bottom - r.Top
}

// Center returns the center point of the rectangle
func (r Rect) Center() Point {
	return Point{X: r.Left + r.Width()/2, Y: r.Top + r.Height()/2}
}

// Contains checks if a point is within the rectangle
func (r Rect) Contains(x, y int) bool {
	return x >= r.Left && x < r.Right && y >= r.Top && y < r.Bottom
}

// IsEmpty reports whether the rectangle has no area.
func (r Rect) IsEmpty() bool {
	return r.Width() <= 0 || r.Height() <= 0
}

// Point is a screen coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ElementInfo is the flat description of one UI element returned to callers.
// Strings are empty when the attribute is absent; integers are -1.
type ElementInfo struct {
	ClassName          string `json:"className"`
	ContentDescription string `json:"contentDescription"`
	Hint               string `json:"hint"`
	PackageName        string `json:"packageName"`
	ResourceID         string `json:"resourceId"`
	Text               string `json:"text"`

	Checkable     bool `json:"checkable"`
	Checked       bool `json:"checked"`
	Clickable     bool `json:"clickable"`
	Enabled       bool `json:"enabled"`
	Focusable     bool `json:"focusable"`
	Focused       bool `json:"focused"`
	LongClickable bool `json:"longClickable"`
	Scrollable    bool `json:"scrollable"`
	Selected      bool `json:"selected"`

	VisibleBounds Rect  `json:"visibleBounds"`
	VisibleCenter Point `json:"visibleCenter"`

	ChildCount int `json:"childCount"`
	DisplayID  int `json:"displayId"`
}

// DeviceInfo describes the device display and foreground state.
type DeviceInfo struct {
	NaturalOrientation bool   `json:"naturalOrientation"`
	DisplayRotation    int    `json:"displayRotation"`
	DisplayHeight      int    `json:"displayHeight"`
	DisplayWidth       int    `json:"displayWidth"`
	DisplaySizeDpX     int    `json:"displaySizeDpX"`
	DisplaySizeDpY     int    `json:"displaySizeDpY"`
	SdkInt             string `json:"sdkInt"`
	CurrentPackageName string `json:"currentPackageName"`
	ProductName        string `json:"productName"`
}
