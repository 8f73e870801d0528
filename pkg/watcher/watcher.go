// Package watcher runs registered condition/action pairs against the UI in
// the background, to dismiss dialogs and other unexpected screens while a
// test drives the device.
//
// Each pass resolves every watcher's condition without waiting. When it
// matches, the action runs: a click on the condition element (or on the
// element an action query resolves to), a swipe, or a sequence of key
// presses. A watcher that ran its action is marked triggered until
// ResetTriggers.
//
//	eng := watcher.New(exec, driver, watcher.Options{Interval: time.Second})
//	eng.Register(watcher.Watcher{Name: "crash", Condition: map[string]interface{}{"text": "OK"}})
//	eng.Start(ctx)
//	defer eng.Stop()
package watcher

import (
	"fmt"

	"github.com/devicelab-dev/uiselector/pkg/core"
	"github.com/devicelab-dev/uiselector/pkg/selector"
)

// ActionKind selects what a watcher does once its condition matches.
type ActionKind string

// Action kinds.
const (
	ActionClick     ActionKind = "click"
	ActionPressKeys ActionKind = "pressKeys"
	ActionSwipe     ActionKind = "swipe"
)

// SwipeDirection is the direction of a swipe gesture.
type SwipeDirection string

// Swipe directions.
const (
	SwipeUp    SwipeDirection = "up"
	SwipeDown  SwipeDirection = "down"
	SwipeLeft  SwipeDirection = "left"
	SwipeRight SwipeDirection = "right"
)

// Swipe describes a swipe inside an element's visible bounds.
type Swipe struct {
	Direction SwipeDirection
	Percent   int // Share of the bounds to cover, 0-100
	Speed     int // Pixels per second
}

// Watcher is a registration request.
type Watcher struct {
	Name      string
	Condition map[string]interface{}
	Action    map[string]interface{} // Optional; defaults to the condition element
	Kind      ActionKind             // Defaults to ActionClick
	KeyCodes  []int                  // ActionPressKeys only
	Swipe     Swipe                  // ActionSwipe only
}

// compiled is a validated watcher with its queries parsed once.
type compiled struct {
	Watcher
	condition *selector.Node
	action    *selector.Node
}

func compile(w Watcher) (*compiled, error) {
	if w.Name == "" {
		return nil, core.ErrInvalidWatcher.WithMessage("watcher name is required")
	}
	if w.Kind == "" {
		w.Kind = ActionClick
	}

	c := &compiled{Watcher: w}
	var err error
	if c.condition, err = selector.Parse(w.Condition); err != nil {
		return nil, fmt.Errorf("watcher %s condition: %w", w.Name, err)
	}

	switch w.Kind {
	case ActionClick:
	case ActionPressKeys:
		if len(w.KeyCodes) == 0 {
			return nil, core.ErrInvalidWatcher.WithMessage(fmt.Sprintf("watcher %s: pressKeys needs at least one key code", w.Name))
		}
		if w.Action != nil {
			return nil, core.ErrInvalidWatcher.WithMessage(fmt.Sprintf("watcher %s: pressKeys takes no action query", w.Name))
		}
	case ActionSwipe:
		switch w.Swipe.Direction {
		case SwipeUp, SwipeDown, SwipeLeft, SwipeRight:
		default:
			return nil, core.ErrInvalidWatcher.WithMessage(fmt.Sprintf("watcher %s: invalid swipe direction %q", w.Name, w.Swipe.Direction))
		}
		if w.Swipe.Percent < 0 || w.Swipe.Percent > 100 {
			return nil, core.ErrInvalidWatcher.WithMessage(fmt.Sprintf("watcher %s: swipe percent %d out of range", w.Name, w.Swipe.Percent))
		}
		if w.Swipe.Speed <= 0 {
			return nil, core.ErrInvalidWatcher.WithMessage(fmt.Sprintf("watcher %s: swipe speed must be positive", w.Name))
		}
	default:
		return nil, core.ErrInvalidWatcher.WithMessage(fmt.Sprintf("watcher %s: unknown action %q", w.Name, w.Kind))
	}

	if w.Action != nil {
		if c.action, err = selector.Parse(w.Action); err != nil {
			return nil, fmt.Errorf("watcher %s action: %w", w.Name, err)
		}
	}
	return c, nil
}
