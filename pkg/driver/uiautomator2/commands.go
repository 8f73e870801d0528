package uiautomator2

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/devicelab-dev/uiselector/pkg/uiautomator2"
	"github.com/devicelab-dev/uiselector/pkg/watcher"
)

func mapDirection(dir watcher.SwipeDirection) string {
	switch dir {
	case watcher.SwipeUp:
		return uiautomator2.DirectionUp
	case watcher.SwipeDown:
		return uiautomator2.DirectionDown
	case watcher.SwipeLeft:
		return uiautomator2.DirectionLeft
	case watcher.SwipeRight:
		return uiautomator2.DirectionRight
	default:
		return uiautomator2.DirectionDown
	}
}

// ResolveKey turns a key name such as "back" or "enter", or a decimal key
// code, into an Android key code.
func ResolveKey(key string) (int, error) {
	if code := mapKeyCode(key); code != 0 {
		return code, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(key))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("unknown key: %q", key)
	}
	return n, nil
}

func mapKeyCode(key string) int {
	switch strings.ToLower(key) {
	case "enter":
		return uiautomator2.KeyCodeEnter
	case "back":
		return uiautomator2.KeyCodeBack
	case "home":
		return uiautomator2.KeyCodeHome
	case "menu":
		return uiautomator2.KeyCodeMenu
	case "delete", "backspace":
		return uiautomator2.KeyCodeDelete
	case "tab":
		return uiautomator2.KeyCodeTab
	case "space":
		return uiautomator2.KeyCodeSpace
	case "volume_up":
		return uiautomator2.KeyCodeVolumeUp
	case "volume_down":
		return uiautomator2.KeyCodeVolumeDown
	case "power":
		return uiautomator2.KeyCodePower
	case "camera":
		return uiautomator2.KeyCodeCamera
	case "search":
		return uiautomator2.KeyCodeSearch
	case "dpad_up":
		return uiautomator2.KeyCodeDpadUp
	case "dpad_down":
		return uiautomator2.KeyCodeDpadDown
	case "dpad_left":
		return uiautomator2.KeyCodeDpadLeft
	case "dpad_right":
		return uiautomator2.KeyCodeDpadRight
	case "dpad_center":
		return uiautomator2.KeyCodeDpadCenter
	default:
		return 0
	}
}
