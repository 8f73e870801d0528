// Package position decides spatial adjacency between element bounds.
//
// Every test takes the anchor rectangle first and the candidate second, and
// answers "is the candidate on that side of the anchor". Coordinates are
// screen pixels with the origin at the top-left and y growing downward.
package position

import (
	"fmt"

	"github.com/devicelab-dev/uiselector/pkg/core"
)

// Direction is the side of the anchor a candidate must lie on.
type Direction string

// Directions.
const (
	Bottom Direction = "bottom"
	Left   Direction = "left"
	Right  Direction = "right"
	Top    Direction = "top"
)

// ParseDirection validates a direction name.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case Bottom, Left, Right, Top:
		return d, nil
	}
	return "", fmt.Errorf("unexpected position %q", s)
}

// HorizOverlap reports whether the two rectangles share a horizontal band,
// i.e. their vertical extents intersect. Touching edges count.
func HorizOverlap(a, b core.Rect) bool {
	return a.Bottom >= b.Top && b.Bottom >= a.Top
}

// VertOverlap reports whether the two rectangles share a vertical band.
func VertOverlap(a, b core.Rect) bool {
	return a.Right >= b.Left && b.Right >= a.Left
}

// LeftOf reports whether candidate lies entirely left of anchor.
func LeftOf(anchor, candidate core.Rect) bool {
	return candidate.Right <= anchor.Left && HorizOverlap(anchor, candidate)
}

// RightOf reports whether candidate lies entirely right of anchor.
func RightOf(anchor, candidate core.Rect) bool {
	return candidate.Left >= anchor.Right && HorizOverlap(anchor, candidate)
}

// Below reports whether candidate lies entirely below anchor.
func Below(anchor, candidate core.Rect) bool {
	return candidate.Top >= anchor.Bottom && VertOverlap(anchor, candidate)
}

// Above reports whether candidate lies entirely above anchor.
func Above(anchor, candidate core.Rect) bool {
	return candidate.Bottom <= anchor.Top && VertOverlap(anchor, candidate)
}

// Satisfies reports whether candidate is on side d of anchor.
func Satisfies(d Direction, anchor, candidate core.Rect) bool {
	switch d {
	case Bottom:
		return Below(anchor, candidate)
	case Left:
		return LeftOf(anchor, candidate)
	case Right:
		return RightOf(anchor, candidate)
	case Top:
		return Above(anchor, candidate)
	}
	return false
}

// Nearest returns the index of the candidate closest to anchor on side d,
// or -1 if none qualifies. Closeness is the candidate edge facing the anchor:
// smallest top for bottom, smallest left for right, largest bottom for top,
// largest right for left. On a tie the earlier candidate wins.
func Nearest(d Direction, anchor core.Rect, candidates []core.Rect) int {
	best := -1
	for i, c := range candidates {
		if !Satisfies(d, anchor, c) {
			continue
		}
		if best < 0 || closer(d, c, candidates[best]) {
			best = i
		}
	}
	return best
}

// closer reports whether a is strictly nearer than b.
func closer(d Direction, a, b core.Rect) bool {
	switch d {
	case Bottom:
		return a.Top < b.Top
	case Right:
		return a.Left < b.Left
	case Top:
		return a.Bottom > b.Bottom
	case Left:
		return a.Right > b.Right
	}
	return false
}
