package executor

import (
	"context"

	"github.com/devicelab-dev/uiselector/pkg/core"
	"github.com/devicelab-dev/uiselector/pkg/position"
	"github.com/devicelab-dev/uiselector/pkg/selector"
	"github.com/devicelab-dev/uiselector/pkg/uitree"
)

// pass is one resolution over a fixed set of window roots. Every id a pass
// touches belongs to the generation its roots came from, so a concurrent
// refresh surfaces as a stale error instead of a mixed result.
type pass struct {
	ctx   context.Context
	tree  uitree.Tree
	roots []uitree.NodeID
}

// resolve evaluates node relative to base. It returns the single winning id:
// the first candidate when node has no relation, otherwise the result of the
// first candidate whose nested resolution is non-empty.
func (p *pass) resolve(node *selector.Node, base uitree.NodeID, kind selector.RelationKind) (uitree.NodeID, bool, error) {
	if err := p.ctx.Err(); err != nil {
		return uitree.NodeID{}, false, err
	}

	pred, err := node.Predicate()
	if err != nil {
		return uitree.NodeID{}, false, err
	}
	if kind == selector.Self && pred.IsEmpty() {
		return uitree.NodeID{}, false, nil
	}

	candidates, err := p.candidates(node, pred, base, kind)
	if err != nil || len(candidates) == 0 {
		return uitree.NodeID{}, false, err
	}

	rel := node.Relation()
	if rel == nil {
		return candidates[0], true, nil
	}
	for _, c := range candidates {
		id, ok, err := p.resolve(rel.Node, c, rel.Kind)
		if err != nil {
			return uitree.NodeID{}, false, err
		}
		if ok {
			return id, true, nil
		}
	}
	return uitree.NodeID{}, false, nil
}

func (p *pass) candidates(node *selector.Node, pred *selector.Predicate, base uitree.NodeID, kind selector.RelationKind) ([]uitree.NodeID, error) {
	switch kind {
	case selector.Self:
		return p.matchAll(pred)

	case selector.Child:
		var out []uitree.NodeID
		children, err := p.tree.Children(base)
		if err != nil {
			return nil, err
		}
		for _, c := range children {
			if out, err = p.collect(c, 1, pred, out); err != nil {
				return nil, err
			}
		}
		if idx, ok := node.Index(); ok {
			if idx < 0 || idx >= len(out) {
				return nil, nil
			}
			return out[idx : idx+1], nil
		}
		return out, nil

	case selector.Parent:
		// The direct parent is taken as is; its criteria are not checked.
		parent, ok, err := p.tree.Parent(base)
		if err != nil || !ok {
			return nil, err
		}
		return []uitree.NodeID{parent}, nil

	case selector.Ancestor:
		cur := base
		for {
			parent, ok, err := p.tree.Parent(cur)
			if err != nil || !ok {
				return nil, err
			}
			match, err := p.matches(parent, pred)
			if err != nil {
				return nil, err
			}
			if match {
				return []uitree.NodeID{parent}, nil
			}
			cur = parent
		}

	case selector.Sibling:
		parent, ok, err := p.tree.Parent(base)
		if err != nil || !ok {
			return nil, err
		}
		depth, err := p.depth(parent)
		if err != nil {
			return nil, err
		}
		children, err := p.tree.Children(parent)
		if err != nil {
			return nil, err
		}
		var out []uitree.NodeID
		for _, c := range children {
			if c == base {
				continue
			}
			attrs, err := p.tree.Attributes(c)
			if err != nil {
				return nil, err
			}
			if pred.Match(attrs, depth+1) {
				out = append(out, c)
			}
		}
		return out, nil

	case selector.Bottom, selector.Left, selector.Right, selector.Top:
		return p.nearest(position.Direction(kind), pred, base)
	}
	return nil, nil
}

// matchAll returns every node under the pass roots satisfying pred, in
// pre-order. Depth counts from the window root.
func (p *pass) matchAll(pred *selector.Predicate) ([]uitree.NodeID, error) {
	var (
		out []uitree.NodeID
		err error
	)
	for _, r := range p.roots {
		if out, err = p.collect(r, 0, pred, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (p *pass) collect(id uitree.NodeID, depth int, pred *selector.Predicate, out []uitree.NodeID) ([]uitree.NodeID, error) {
	attrs, err := p.tree.Attributes(id)
	if err != nil {
		return nil, err
	}
	if pred.Match(attrs, depth) {
		out = append(out, id)
	}
	children, err := p.tree.Children(id)
	if err != nil {
		return nil, err
	}
	for _, c := range children {
		if out, err = p.collect(c, depth+1, pred, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// descendants returns the nodes below id matching pred, with depth counted
// from id.
func (p *pass) descendants(id uitree.NodeID, pred *selector.Predicate) ([]uitree.NodeID, error) {
	children, err := p.tree.Children(id)
	if err != nil {
		return nil, err
	}
	var out []uitree.NodeID
	for _, c := range children {
		if out, err = p.collect(c, 1, pred, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// matches tests a single node the way a whole-tree search would see it.
func (p *pass) matches(id uitree.NodeID, pred *selector.Predicate) (bool, error) {
	attrs, err := p.tree.Attributes(id)
	if err != nil {
		return false, err
	}
	depth, err := p.depth(id)
	if err != nil {
		return false, err
	}
	return pred.Match(attrs, depth), nil
}

// depth is the distance from id to its window root.
func (p *pass) depth(id uitree.NodeID) (int, error) {
	d := 0
	for {
		parent, ok, err := p.tree.Parent(id)
		if err != nil {
			return 0, err
		}
		if !ok {
			return d, nil
		}
		d++
		id = parent
	}
}

func (p *pass) nearest(dir position.Direction, pred *selector.Predicate, base uitree.NodeID) ([]uitree.NodeID, error) {
	anchor, err := p.tree.Attributes(base)
	if err != nil {
		return nil, err
	}
	all, err := p.matchAll(pred)
	if err != nil {
		return nil, err
	}

	ids := make([]uitree.NodeID, 0, len(all))
	rects := make([]core.Rect, 0, len(all))
	for _, id := range all {
		if id == base {
			continue
		}
		attrs, err := p.tree.Attributes(id)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
		rects = append(rects, attrs.VisibleBounds)
	}

	i := position.Nearest(dir, anchor.VisibleBounds, rects)
	if i < 0 {
		return nil, nil
	}
	return []uitree.NodeID{ids[i]}, nil
}
