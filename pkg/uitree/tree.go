// Package uitree models the live accessibility tree that selectors are
// resolved against. Node ids are only valid for the tree generation that
// produced them; reads through an outdated id fail with
// core.StaleElementError.
package uitree

import (
	"context"
	"fmt"

	"github.com/devicelab-dev/uiselector/pkg/core"
)

// NodeID identifies a node within one generation of a tree.
type NodeID struct {
	gen uint64
	idx int
}

// String returns "generation:index".
func (id NodeID) String() string {
	return fmt.Sprintf("%d:%d", id.gen, id.idx)
}

// Attributes are the properties of one accessibility node. Absent strings are
// empty; an absent display id is nil.
type Attributes struct {
	ClassName          string
	ContentDescription string
	Hint               string
	PackageName        string
	ResourceID         string
	Text               string

	Checkable     bool
	Checked       bool
	Clickable     bool
	Enabled       bool
	Focusable     bool
	Focused       bool
	LongClickable bool
	Scrollable    bool
	Selected      bool

	VisibleBounds core.Rect
	DisplayID     *int
}

// Tree is the minimal view of an accessibility tree the engine needs.
// Implementations must be safe for concurrent use.
type Tree interface {
	// Roots re-reads the live tree and returns its window roots in order.
	Roots(ctx context.Context) ([]NodeID, error)
	// Attributes returns the properties of a node.
	Attributes(id NodeID) (Attributes, error)
	// Parent returns the parent of a node; false for window roots.
	Parent(id NodeID) (NodeID, bool, error)
	// Children returns the direct children of a node in order.
	Children(id NodeID) ([]NodeID, error)
	// Acquire registers a handle on a node. Every successful Acquire must be
	// paired with Recycle.
	Acquire(id NodeID) error
	// Recycle releases a handle registered by Acquire.
	Recycle(id NodeID)
	// ClearCache drops any cached tree state; existing ids become stale.
	ClearCache()
}
