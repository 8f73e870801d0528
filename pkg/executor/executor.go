// Package executor resolves selector queries against a live UI tree.
//
// Every operation parses its request, then resolves it under a retry loop that
// absorbs stale element errors caused by the tree changing mid-resolution.
// Element handles handed to callers must be released; the scoped helpers
// (Info, Children, WithElement) release them on every path.
package executor

import (
	"context"
	"time"

	"github.com/devicelab-dev/uiselector/pkg/core"
	"github.com/devicelab-dev/uiselector/pkg/logger"
	"github.com/devicelab-dev/uiselector/pkg/selector"
	"github.com/devicelab-dev/uiselector/pkg/uitree"
)

// Options configures resolution timing.
type Options struct {
	WaitTimeout        time.Duration // How long the outermost query waits for a first match
	PollInterval       time.Duration // Poll period while waiting
	StaleTimeout       time.Duration // How long stale element errors are retried
	StaleRetryInterval time.Duration // Pause between stale retries (0 = immediate)
	RaiseOnNotFound    bool          // Return core.NoMatchError instead of an empty result
}

// DefaultOptions returns the device defaults: 1s wait polled every 100ms,
// stale errors retried for 5s.
func DefaultOptions() Options {
	return Options{
		WaitTimeout:  time.Second,
		PollInterval: 100 * time.Millisecond,
		StaleTimeout: 5 * time.Second,
	}
}

// Executor resolves queries. It is safe for concurrent use as long as the
// underlying tree is.
type Executor struct {
	tree uitree.Tree
	opts Options
}

// New creates an executor over tree. Zero durations fall back to defaults,
// except StaleRetryInterval where zero means immediate.
func New(tree uitree.Tree, opts Options) *Executor {
	def := DefaultOptions()
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = def.WaitTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	if opts.StaleTimeout <= 0 {
		opts.StaleTimeout = def.StaleTimeout
	}
	if opts.StaleRetryInterval < 0 {
		opts.StaleRetryInterval = 0
	}
	return &Executor{tree: tree, opts: opts}
}

// Tree returns the tree the executor resolves against.
func (e *Executor) Tree() uitree.Tree {
	return e.tree
}

// Options returns the effective options.
func (e *Executor) Options() Options {
	return e.opts
}

// CallOption adjusts a single call.
type CallOption func(*call)

type call struct {
	raise bool
	wait  bool
}

// WithRaise overrides the session's raise-on-not-found setting.
func WithRaise(raise bool) CallOption {
	return func(c *call) {
		c.raise = raise
	}
}

// NoWait skips the initial wait for a first match.
func NoWait() CallOption {
	return func(c *call) {
		c.wait = false
	}
}

func (e *Executor) newCall(opts []CallOption) call {
	c := call{raise: e.opts.RaiseOnNotFound, wait: true}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c call) notFound(node *selector.Node) error {
	if c.raise {
		return &core.NoMatchError{Query: node.String()}
	}
	return nil
}

// Find resolves req to a single element. It returns a nil handle and nil
// error when nothing matches, unless raising is enabled. The caller must
// release the handle.
func (e *Executor) Find(ctx context.Context, req map[string]interface{}, opts ...CallOption) (*uitree.Handle, error) {
	node, err := selector.Parse(req)
	if err != nil {
		return nil, err
	}
	return e.FindNode(ctx, node, opts...)
}

// FindNoWait is Find without the initial wait, as used by watchers.
func (e *Executor) FindNoWait(ctx context.Context, req map[string]interface{}, opts ...CallOption) (*uitree.Handle, error) {
	return e.Find(ctx, req, append(opts, NoWait())...)
}

// FindNode resolves an already parsed query.
func (e *Executor) FindNode(ctx context.Context, node *selector.Node, opts ...CallOption) (*uitree.Handle, error) {
	c := e.newCall(opts)

	var h *uitree.Handle
	err := e.retryStale(ctx, "find", func() error {
		var err error
		h, err = e.resolveTop(ctx, node, c.wait)
		return err
	})
	if err != nil {
		return nil, err
	}
	if h == nil {
		logger.Debug("no element for %s", node)
		return nil, c.notFound(node)
	}
	return h, nil
}

func (e *Executor) resolveTop(ctx context.Context, node *selector.Node, wait bool) (*uitree.Handle, error) {
	pred, err := node.Predicate()
	if err != nil {
		return nil, err
	}
	if pred.IsEmpty() {
		return nil, nil
	}

	var roots []uitree.NodeID
	if wait {
		roots, err = e.waitForMatch(ctx, pred)
	} else {
		roots, err = e.tree.Roots(ctx)
	}
	if err != nil {
		return nil, err
	}

	p := &pass{ctx: ctx, tree: e.tree, roots: roots}
	id, ok, err := p.resolve(node, uitree.NodeID{}, selector.Self)
	if err != nil || !ok {
		return nil, err
	}
	return uitree.Acquire(e.tree, id)
}

// FindAll returns every element matching the top-level criteria of req in
// traversal order. Relations in req are ignored. The caller must release
// the handles.
func (e *Executor) FindAll(ctx context.Context, req map[string]interface{}, opts ...CallOption) ([]*uitree.Handle, error) {
	node, err := selector.Parse(req)
	if err != nil {
		return nil, err
	}
	pred, err := node.Predicate()
	if err != nil {
		return nil, err
	}
	c := e.newCall(opts)
	if pred.IsEmpty() {
		return nil, c.notFound(node)
	}

	var handles []*uitree.Handle
	err = e.retryStale(ctx, "find all", func() error {
		uitree.ReleaseAll(handles)
		handles = nil

		var roots []uitree.NodeID
		var err error
		if c.wait {
			roots, err = e.waitForMatch(ctx, pred)
		} else {
			roots, err = e.tree.Roots(ctx)
		}
		if err != nil {
			return err
		}
		p := &pass{ctx: ctx, tree: e.tree, roots: roots}
		ids, err := p.matchAll(pred)
		if err != nil {
			return err
		}
		for _, id := range ids {
			h, err := uitree.Acquire(e.tree, id)
			if err != nil {
				return err
			}
			handles = append(handles, h)
		}
		return nil
	})
	if err != nil {
		uitree.ReleaseAll(handles)
		return nil, err
	}
	if len(handles) == 0 {
		return nil, c.notFound(node)
	}
	return handles, nil
}

// Exists reports whether req resolves to an element right now. It does not
// wait for a first match; use WaitForExists for that.
func (e *Executor) Exists(ctx context.Context, req map[string]interface{}) (bool, error) {
	found := false
	err := e.WithElement(ctx, req, func(*uitree.Handle) error {
		found = true
		return nil
	}, NoWait(), WithRaise(false))
	return found, err
}

// WaitForExists polls until req resolves to an element or timeout elapses
// (zero means the wait timeout). Stale reads count as not found yet. A
// timeout yields false and no error.
func (e *Executor) WaitForExists(ctx context.Context, req map[string]interface{}, timeout time.Duration) (bool, error) {
	node, err := selector.Parse(req)
	if err != nil {
		return false, err
	}
	return e.pollUntil(ctx, timeout, func() (bool, error) {
		ok, err := e.present(ctx, node)
		if core.IsStale(err) {
			return false, nil
		}
		return ok, err
	})
}

// WaitUntilGone polls until req no longer resolves to an element or timeout
// elapses (zero means the wait timeout). A stale read means the element went
// away. A timeout yields false and no error.
func (e *Executor) WaitUntilGone(ctx context.Context, req map[string]interface{}, timeout time.Duration) (bool, error) {
	node, err := selector.Parse(req)
	if err != nil {
		return false, err
	}
	return e.pollUntil(ctx, timeout, func() (bool, error) {
		ok, err := e.present(ctx, node)
		if core.IsStale(err) {
			return true, nil
		}
		return !ok, err
	})
}

// present resolves node once without waiting and releases the result.
func (e *Executor) present(ctx context.Context, node *selector.Node) (bool, error) {
	h, err := e.resolveTop(ctx, node, false)
	if err != nil || h == nil {
		return false, err
	}
	h.Release()
	return true, nil
}

// HasChild reports whether the element req resolves to has a descendant
// matching the top-level criteria of childReq.
func (e *Executor) HasChild(ctx context.Context, req, childReq map[string]interface{}, opts ...CallOption) (bool, error) {
	childNode, err := selector.Parse(childReq)
	if err != nil {
		return false, err
	}
	pred, err := childNode.Predicate()
	if err != nil {
		return false, err
	}

	found := false
	err = e.WithElement(ctx, req, func(h *uitree.Handle) error {
		p := &pass{ctx: ctx, tree: e.tree}
		ids, err := p.descendants(h.ID(), pred)
		found = len(ids) > 0
		return err
	}, opts...)
	return found, err
}

// WithElement resolves req and runs fn on the element, releasing it
// afterwards. Resolution and fn are retried together while fn reports stale
// elements. fn is not called when nothing matches.
func (e *Executor) WithElement(ctx context.Context, req map[string]interface{}, fn func(*uitree.Handle) error, opts ...CallOption) error {
	node, err := selector.Parse(req)
	if err != nil {
		return err
	}
	c := e.newCall(opts)

	matched := false
	err = e.retryStale(ctx, "element", func() error {
		h, err := e.resolveTop(ctx, node, c.wait)
		if err != nil || h == nil {
			return err
		}
		defer h.Release()
		matched = true
		return fn(h)
	})
	if err != nil {
		return err
	}
	if !matched {
		return c.notFound(node)
	}
	return nil
}

// Info returns the record of the element req resolves to, or nil.
func (e *Executor) Info(ctx context.Context, req map[string]interface{}, opts ...CallOption) (*core.ElementInfo, error) {
	var info *core.ElementInfo
	err := e.WithElement(ctx, req, func(h *uitree.Handle) error {
		var err error
		info, err = h.Info()
		return err
	}, opts...)
	return info, err
}

// InfoAll returns the records of every top-level match of req.
func (e *Executor) InfoAll(ctx context.Context, req map[string]interface{}, opts ...CallOption) ([]*core.ElementInfo, error) {
	var infos []*core.ElementInfo
	err := e.retryStale(ctx, "info all", func() error {
		infos = nil
		handles, err := e.FindAll(ctx, req, opts...)
		if err != nil {
			return err
		}
		defer uitree.ReleaseAll(handles)
		for _, h := range handles {
			info, err := h.Info()
			if err != nil {
				return err
			}
			infos = append(infos, info)
		}
		return nil
	})
	return infos, err
}

// Children returns the records of the direct children of the element req
// resolves to.
func (e *Executor) Children(ctx context.Context, req map[string]interface{}, opts ...CallOption) ([]*core.ElementInfo, error) {
	var infos []*core.ElementInfo
	err := e.WithElement(ctx, req, func(h *uitree.Handle) error {
		infos = nil
		children, err := h.Children()
		if err != nil {
			return err
		}
		defer uitree.ReleaseAll(children)
		for _, c := range children {
			info, err := c.Info()
			if err != nil {
				return err
			}
			infos = append(infos, info)
		}
		return nil
	}, opts...)
	return infos, err
}

// FindChildren returns the records of every descendant of the element req
// resolves to that matches the top-level criteria of childReq. Depth in
// childReq counts from that element.
func (e *Executor) FindChildren(ctx context.Context, req, childReq map[string]interface{}, opts ...CallOption) ([]*core.ElementInfo, error) {
	childNode, err := selector.Parse(childReq)
	if err != nil {
		return nil, err
	}
	pred, err := childNode.Predicate()
	if err != nil {
		return nil, err
	}

	var infos []*core.ElementInfo
	err = e.WithElement(ctx, req, func(h *uitree.Handle) error {
		infos = nil
		p := &pass{ctx: ctx, tree: e.tree}
		ids, err := p.descendants(h.ID(), pred)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := e.appendInfo(id, &infos); err != nil {
				return err
			}
		}
		return nil
	}, opts...)
	return infos, err
}

func (e *Executor) appendInfo(id uitree.NodeID, infos *[]*core.ElementInfo) error {
	h, err := uitree.Acquire(e.tree, id)
	if err != nil {
		return err
	}
	defer h.Release()
	info, err := h.Info()
	if err != nil {
		return err
	}
	*infos = append(*infos, info)
	return nil
}

// ClearCache drops cached tree state. Handles acquired before become stale.
func (e *Executor) ClearCache() {
	e.tree.ClearCache()
}
