package uitree

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/devicelab-dev/uiselector/pkg/core"
	"github.com/devicelab-dev/uiselector/pkg/logger"
)

// Fetcher reads the current hierarchy from the device.
type Fetcher func(ctx context.Context) (*Snapshot, error)

// SourceTree is a Tree backed by repeated hierarchy dumps. Each refresh
// starts a new generation and invalidates ids from earlier generations,
// which is how concurrent UI changes surface as stale elements.
type SourceTree struct {
	fetch  Fetcher
	maxAge time.Duration

	mu        sync.Mutex
	gen       uint64
	snap      *Snapshot
	fetchedAt time.Time
	live      map[NodeID]int
}

// Option configures a SourceTree.
type Option func(*SourceTree)

// WithMaxAge lets Roots reuse a dump younger than d. Zero refetches on every
// call; a negative value keeps the dump until ClearCache.
func WithMaxAge(d time.Duration) Option {
	return func(t *SourceTree) {
		t.maxAge = d
	}
}

// NewSourceTree creates a tree that reads hierarchies through fetch.
func NewSourceTree(fetch Fetcher, opts ...Option) *SourceTree {
	t := &SourceTree{
		fetch: fetch,
		live:  make(map[NodeID]int),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Static returns a tree over a fixed snapshot, e.g. a hierarchy file.
func Static(snap *Snapshot) *SourceTree {
	return NewSourceTree(func(context.Context) (*Snapshot, error) {
		return snap, nil
	}, WithMaxAge(-1))
}

// Roots implements Tree.
func (t *SourceTree) Roots(ctx context.Context) ([]NodeID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.needsRefresh() {
		snap, err := t.fetch(ctx)
		if err != nil {
			return nil, fmt.Errorf("read hierarchy: %w", err)
		}
		if snap == nil {
			snap = NewSnapshot()
		}
		t.gen++
		t.snap = snap
		t.fetchedAt = time.Now()
	}

	ids := make([]NodeID, len(t.snap.roots))
	for i, r := range t.snap.roots {
		ids[i] = NodeID{gen: t.gen, idx: r}
	}
	return ids, nil
}

func (t *SourceTree) needsRefresh() bool {
	switch {
	case t.snap == nil:
		return true
	case t.maxAge < 0:
		return false
	case t.maxAge == 0:
		return true
	default:
		return time.Since(t.fetchedAt) > t.maxAge
	}
}

// lookup must be called with t.mu held.
func (t *SourceTree) lookup(id NodeID) (*snapNode, error) {
	if t.snap == nil || id.gen != t.gen {
		return nil, &core.StaleElementError{Reason: fmt.Sprintf("node %s is from an older hierarchy", id)}
	}
	if id.idx < 0 || id.idx >= len(t.snap.nodes) {
		return nil, &core.StaleElementError{Reason: fmt.Sprintf("node %s does not exist", id)}
	}
	return &t.snap.nodes[id.idx], nil
}

// Attributes implements Tree.
func (t *SourceTree) Attributes(id NodeID) (Attributes, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, err := t.lookup(id)
	if err != nil {
		return Attributes{}, err
	}
	return n.attrs, nil
}

// Parent implements Tree.
func (t *SourceTree) Parent(id NodeID) (NodeID, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, err := t.lookup(id)
	if err != nil {
		return NodeID{}, false, err
	}
	if n.parent < 0 {
		return NodeID{}, false, nil
	}
	return NodeID{gen: id.gen, idx: n.parent}, true, nil
}

// Children implements Tree.
func (t *SourceTree) Children(id NodeID) ([]NodeID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, err := t.lookup(id)
	if err != nil {
		return nil, err
	}
	ids := make([]NodeID, len(n.children))
	for i, c := range n.children {
		ids[i] = NodeID{gen: id.gen, idx: c}
	}
	return ids, nil
}

// Acquire implements Tree.
func (t *SourceTree) Acquire(id NodeID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.lookup(id); err != nil {
		return err
	}
	t.live[id]++
	return nil
}

// Recycle implements Tree. Handles from older generations are still counted
// until recycled.
func (t *SourceTree) Recycle(id NodeID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.live[id] <= 1 {
		delete(t.live, id)
		return
	}
	t.live[id]--
}

// ClearCache implements Tree.
func (t *SourceTree) ClearCache() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.snap = nil
	t.gen++
	logger.Debug("hierarchy cache cleared, generation %d", t.gen)
}

// Outstanding returns the number of acquired handles not yet recycled.
func (t *SourceTree) Outstanding() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, c := range t.live {
		n += c
	}
	return n
}

// Generation returns the current tree generation.
func (t *SourceTree) Generation() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.gen
}
