// Package selector turns declarative element queries into executable
// predicates and a recursive query structure.
//
// A query is a nested map. Criterion keys (text, descContains, clickable, ...)
// are AND-ed together; a relation key (child, parent, sibling, ...) nests
// another query evaluated relative to the element matched by the outer one:
//
//	{"res": "com.app:id/list", "child": {"text": "Settings", "index": 0}}
package selector

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/devicelab-dev/uiselector/pkg/core"
)

// Attribute is the canonical name of a node property a criterion tests.
type Attribute string

// Canonical attributes.
const (
	AttrCheckable     Attribute = "checkable"
	AttrChecked       Attribute = "checked"
	AttrClickable     Attribute = "clickable"
	AttrEnabled       Attribute = "enabled"
	AttrFocusable     Attribute = "focusable"
	AttrFocused       Attribute = "focused"
	AttrLongClickable Attribute = "longClickable"
	AttrScrollable    Attribute = "scrollable"
	AttrSelected      Attribute = "selected"

	AttrDepth     Attribute = "depth"
	AttrDisplayID Attribute = "displayId"

	AttrClassName   Attribute = "className"
	AttrDescription Attribute = "description"
	AttrHint        Attribute = "hint"
	AttrPackageName Attribute = "packageName"
	AttrResourceID  Attribute = "resourceId"
	AttrText        Attribute = "text"
)

// Operator is how a criterion compares its value to the attribute.
type Operator int

// Operators.
const (
	OpEquals Operator = iota
	OpContains
	OpStartsWith
	OpEndsWith
	OpMatches
)

// String returns the key suffix used for the operator.
func (o Operator) String() string {
	switch o {
	case OpEquals:
		return "equals"
	case OpContains:
		return "contains"
	case OpStartsWith:
		return "startsWith"
	case OpEndsWith:
		return "endsWith"
	case OpMatches:
		return "matches"
	default:
		return "unknown"
	}
}

type valueKind int

const (
	kindBool valueKind = iota
	kindInt
	kindString
)

func (k valueKind) String() string {
	switch k {
	case kindBool:
		return "boolean"
	case kindInt:
		return "integer"
	default:
		return "string"
	}
}

type keySpec struct {
	attr Attribute
	op   Operator
	kind valueKind
}

// aliases maps every accepted request key to its canonical form.
var aliases = buildAliases()

func buildAliases() map[string]keySpec {
	m := make(map[string]keySpec)

	for _, a := range []Attribute{
		AttrCheckable, AttrChecked, AttrClickable, AttrEnabled, AttrFocusable,
		AttrFocused, AttrLongClickable, AttrScrollable, AttrSelected,
	} {
		m[string(a)] = keySpec{attr: a, op: OpEquals, kind: kindBool}
	}

	m["depth"] = keySpec{attr: AttrDepth, op: OpEquals, kind: kindInt}
	m["displayId"] = keySpec{attr: AttrDisplayID, op: OpEquals, kind: kindInt}

	// Attributes supporting every string operator.
	full := map[Attribute][]string{
		AttrDescription: {"desc", "description"},
		AttrHint:        {"hint"},
		AttrText:        {"text"},
	}
	for attr, names := range full {
		for _, name := range names {
			m[name] = keySpec{attr: attr, op: OpEquals, kind: kindString}
			m[name+"Contains"] = keySpec{attr: attr, op: OpContains, kind: kindString}
			m[name+"StartsWith"] = keySpec{attr: attr, op: OpStartsWith, kind: kindString}
			m[name+"EndsWith"] = keySpec{attr: attr, op: OpEndsWith, kind: kindString}
			m[name+"Matches"] = keySpec{attr: attr, op: OpMatches, kind: kindString}
		}
	}

	// Attributes supporting only exact and pattern matching.
	exact := map[Attribute][]string{
		AttrClassName:   {"clazz", "className"},
		AttrPackageName: {"pkg", "packageName"},
		AttrResourceID:  {"res", "resourceId"},
	}
	for attr, names := range exact {
		for _, name := range names {
			m[name] = keySpec{attr: attr, op: OpEquals, kind: kindString}
			m[name+"Matches"] = keySpec{attr: attr, op: OpMatches, kind: kindString}
		}
	}

	return m
}

// Criterion is one validated attribute condition.
type Criterion struct {
	Key       string // key as sent by the caller
	Attribute Attribute
	Op        Operator
	Bool      bool
	Int       int
	Str       string
}

// Value returns the criterion's typed value.
func (c Criterion) Value() interface{} {
	switch aliases[c.Key].kind {
	case kindBool:
		return c.Bool
	case kindInt:
		return c.Int
	default:
		return c.Str
	}
}

// Canonical returns the alias-independent key, e.g. "descContains" and
// "descriptionContains" both give "description/contains".
func (c Criterion) Canonical() string {
	return string(c.Attribute) + "/" + c.Op.String()
}

// IsCriterionKey reports whether key names a criterion.
func IsCriterionKey(key string) bool {
	_, ok := aliases[key]
	return ok
}

// NewCriterion validates one raw key/value pair.
func NewCriterion(key string, value interface{}) (Criterion, error) {
	spec, ok := aliases[key]
	if !ok {
		return Criterion{}, &core.UnknownCriterionError{Key: key}
	}

	c := Criterion{Key: key, Attribute: spec.attr, Op: spec.op}
	switch spec.kind {
	case kindBool:
		b, ok := value.(bool)
		if !ok {
			return Criterion{}, &core.CriterionTypeError{Key: key, Want: spec.kind.String(), Value: value}
		}
		c.Bool = b
	case kindInt:
		n, ok := asInt(value)
		if !ok {
			return Criterion{}, &core.CriterionTypeError{Key: key, Want: spec.kind.String(), Value: value}
		}
		c.Int = n
	case kindString:
		s, ok := value.(string)
		if !ok {
			return Criterion{}, &core.CriterionTypeError{Key: key, Want: spec.kind.String(), Value: value}
		}
		c.Str = s
	}
	return c, nil
}

// ParseCriteria validates a flat map of criteria. Keys are processed in
// sorted order so errors are deterministic.
func ParseCriteria(raw map[string]interface{}) ([]Criterion, error) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	criteria := make([]Criterion, 0, len(keys))
	seen := make(map[Attribute]string)
	for _, key := range keys {
		c, err := NewCriterion(key, raw[key])
		if err != nil {
			return nil, err
		}
		if _, dup := seen[c.Attribute]; dup {
			return nil, &core.DuplicateCriterionError{Key: key, Attribute: string(c.Attribute)}
		}
		seen[c.Attribute] = key
		criteria = append(criteria, c)
	}
	return criteria, nil
}

// asInt accepts Go integers and the float64/json.Number forms JSON decoders
// produce, as long as the value is integral.
func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}
