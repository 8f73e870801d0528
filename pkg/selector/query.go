package selector

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/uiselector/pkg/core"
	"github.com/devicelab-dev/uiselector/pkg/logger"
)

// RelationKind says how a nested query relates to the element matched by
// its parent query.
type RelationKind string

// Relation kinds. Self is the implicit kind of the outermost query.
const (
	Self     RelationKind = "self"
	Ancestor RelationKind = "ancestor"
	Child    RelationKind = "child"
	Parent   RelationKind = "parent"
	Sibling  RelationKind = "sibling"
	Bottom   RelationKind = "bottom"
	Left     RelationKind = "left"
	Right    RelationKind = "right"
	Top      RelationKind = "top"
)

// relationOrder is the precedence used when a request carries several
// relation keys; only the first one present is honored.
var relationOrder = []RelationKind{Ancestor, Child, Parent, Sibling, Bottom, Left, Right, Top}

// IsPosition reports whether the relation is spatial rather than structural.
func (k RelationKind) IsPosition() bool {
	switch k {
	case Bottom, Left, Right, Top:
		return true
	}
	return false
}

const indexKey = "index"

// Relation links a query to the nested query evaluated relative to it.
type Relation struct {
	Kind RelationKind
	Node *Node
}

// Node is one parsed level of a query. Nodes are immutable after Parse.
type Node struct {
	criteria []Criterion
	index    int
	hasIndex bool
	relation *Relation
}

// Parse builds a query from a decoded request.
func Parse(req map[string]interface{}) (*Node, error) {
	return parseNode(req, Self)
}

// ParseYAML decodes a JSON or YAML request and parses it.
func ParseYAML(data []byte) (*Node, error) {
	var req map[string]interface{}
	if err := yaml.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decode selector: %w", err)
	}
	if req == nil {
		req = map[string]interface{}{}
	}
	return Parse(req)
}

func parseNode(req map[string]interface{}, under RelationKind) (*Node, error) {
	n := &Node{}
	rest := make(map[string]interface{}, len(req))
	for k, v := range req {
		rest[k] = v
	}

	var present []RelationKind
	for _, kind := range relationOrder {
		if _, ok := rest[string(kind)]; ok {
			present = append(present, kind)
		}
	}
	if len(present) > 0 {
		kind := present[0]
		if len(present) > 1 {
			logger.Warn("selector has %d relations %v, only %q is used", len(present), present, kind)
		}
		raw, ok := asMap(rest[string(kind)])
		if !ok {
			return nil, &core.CriterionTypeError{Key: string(kind), Want: "object", Value: rest[string(kind)]}
		}
		nested, err := parseNode(raw, kind)
		if err != nil {
			return nil, err
		}
		n.relation = &Relation{Kind: kind, Node: nested}
		for _, k := range present {
			delete(rest, string(k))
		}
	}

	if v, ok := rest[indexKey]; ok {
		if under != Child {
			return nil, &core.UnsupportedIndexError{Relation: string(under)}
		}
		i, ok := asInt(v)
		if !ok {
			return nil, &core.CriterionTypeError{Key: indexKey, Want: "integer", Value: v}
		}
		n.index = i
		n.hasIndex = true
		delete(rest, indexKey)
	}

	criteria, err := ParseCriteria(rest)
	if err != nil {
		return nil, err
	}
	n.criteria = criteria
	return n, nil
}

// asMap accepts the map shapes JSON and YAML decoders produce.
func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(m))
		for k, val := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = val
		}
		return out, true
	}
	return nil, false
}

// Criteria returns the node's criteria in key order.
func (n *Node) Criteria() []Criterion {
	return append([]Criterion(nil), n.criteria...)
}

// Index returns the child index and whether one was given.
func (n *Node) Index() (int, bool) {
	return n.index, n.hasIndex
}

// Relation returns the nested relation, or nil.
func (n *Node) Relation() *Relation {
	return n.relation
}

// Predicate compiles the node's criteria.
func (n *Node) Predicate() (*Predicate, error) {
	return Compile(n.criteria)
}

// Map reconstructs the request the node was parsed from, without any
// relation keys that were ignored.
func (n *Node) Map() map[string]interface{} {
	m := make(map[string]interface{}, len(n.criteria)+2)
	for _, c := range n.criteria {
		m[c.Key] = c.Value()
	}
	if n.hasIndex {
		m[indexKey] = n.index
	}
	if n.relation != nil {
		m[string(n.relation.Kind)] = n.relation.Node.Map()
	}
	return m
}

// String returns the reconstructed request as JSON.
func (n *Node) String() string {
	data, err := json.Marshal(n.Map())
	if err != nil {
		return fmt.Sprintf("%v", n.Map())
	}
	return string(data)
}
