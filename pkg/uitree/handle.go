package uitree

import (
	"errors"
	"sync/atomic"

	"github.com/devicelab-dev/uiselector/pkg/core"
)

// ErrReleased is returned by reads through a handle after Release.
var ErrReleased = errors.New("element handle already released")

// Handle is a caller-owned reference to one node. Every accessor re-reads the
// tree, so a handle never exposes data from a node that has since changed;
// such reads fail with core.StaleElementError instead.
type Handle struct {
	tree     Tree
	id       NodeID
	released atomic.Bool
}

// Acquire creates a handle on id. The caller must Release it.
func Acquire(tree Tree, id NodeID) (*Handle, error) {
	if err := tree.Acquire(id); err != nil {
		return nil, err
	}
	return &Handle{tree: tree, id: id}, nil
}

// ID returns the node id. Ids compare equal only within one resolution pass.
func (h *Handle) ID() NodeID {
	return h.id
}

// Attributes reads the node's current properties.
func (h *Handle) Attributes() (Attributes, error) {
	if h.released.Load() {
		return Attributes{}, ErrReleased
	}
	return h.tree.Attributes(h.id)
}

// Bounds reads the node's visible bounds.
func (h *Handle) Bounds() (core.Rect, error) {
	attrs, err := h.Attributes()
	if err != nil {
		return core.Rect{}, err
	}
	return attrs.VisibleBounds, nil
}

// Info reads the node into an element record.
func (h *Handle) Info() (*core.ElementInfo, error) {
	attrs, err := h.Attributes()
	if err != nil {
		return nil, err
	}
	children, err := h.tree.Children(h.id)
	if err != nil {
		return nil, err
	}
	return NewElementInfo(attrs, len(children)), nil
}

// Children acquires handles on the node's direct children. The caller must
// release them, e.g. with ReleaseAll.
func (h *Handle) Children() ([]*Handle, error) {
	if h.released.Load() {
		return nil, ErrReleased
	}
	ids, err := h.tree.Children(h.id)
	if err != nil {
		return nil, err
	}

	handles := make([]*Handle, 0, len(ids))
	for _, id := range ids {
		child, err := Acquire(h.tree, id)
		if err != nil {
			ReleaseAll(handles)
			return nil, err
		}
		handles = append(handles, child)
	}
	return handles, nil
}

// Release returns the handle to the tree. It is safe to call more than once.
func (h *Handle) Release() {
	if h == nil || !h.released.CompareAndSwap(false, true) {
		return
	}
	h.tree.Recycle(h.id)
}

// ReleaseAll releases every handle in hs.
func ReleaseAll(hs []*Handle) {
	for _, h := range hs {
		h.Release()
	}
}

// NewElementInfo converts node attributes into the element record.
func NewElementInfo(attrs Attributes, childCount int) *core.ElementInfo {
	displayID := -1
	if attrs.DisplayID != nil {
		displayID = *attrs.DisplayID
	}
	return &core.ElementInfo{
		ClassName:          attrs.ClassName,
		ContentDescription: attrs.ContentDescription,
		Hint:               attrs.Hint,
		PackageName:        attrs.PackageName,
		ResourceID:         attrs.ResourceID,
		Text:               attrs.Text,
		Checkable:          attrs.Checkable,
		Checked:            attrs.Checked,
		Clickable:          attrs.Clickable,
		Enabled:            attrs.Enabled,
		Focusable:          attrs.Focusable,
		Focused:            attrs.Focused,
		LongClickable:      attrs.LongClickable,
		Scrollable:         attrs.Scrollable,
		Selected:           attrs.Selected,
		VisibleBounds:      attrs.VisibleBounds,
		VisibleCenter:      attrs.VisibleBounds.Center(),
		ChildCount:         childCount,
		DisplayID:          displayID,
	}
}
