package uitree

// Element is one node of a hierarchy under construction, either parsed from
// a page source dump or built by hand.
type Element struct {
	Attributes
	Children []*Element
}

// Snapshot is an immutable, flattened hierarchy. Nodes are stored in
// pre-order so index order equals document order.
type Snapshot struct {
	nodes []snapNode
	roots []int
}

type snapNode struct {
	attrs    Attributes
	parent   int // -1 for window roots
	children []int
}

// NewSnapshot flattens the given window roots into a snapshot.
func NewSnapshot(roots ...*Element) *Snapshot {
	s := &Snapshot{}
	for _, r := range roots {
		if r == nil {
			continue
		}
		s.roots = append(s.roots, s.add(r, -1))
	}
	return s
}

func (s *Snapshot) add(e *Element, parent int) int {
	idx := len(s.nodes)
	s.nodes = append(s.nodes, snapNode{attrs: e.Attributes, parent: parent})
	for _, c := range e.Children {
		if c == nil {
			continue
		}
		child := s.add(c, idx)
		s.nodes[idx].children = append(s.nodes[idx].children, child)
	}
	return idx
}

// Len returns the number of nodes in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.nodes)
}

// RootAttributes returns the attributes of each window root in order.
func (s *Snapshot) RootAttributes() []Attributes {
	out := make([]Attributes, 0, len(s.roots))
	for _, r := range s.roots {
		out = append(out, s.nodes[r].attrs)
	}
	return out
}
