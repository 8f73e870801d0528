package selector

import (
	"strings"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/devicelab-dev/uiselector/pkg/core"
	"github.com/devicelab-dev/uiselector/pkg/uitree"
)

// patternTimeout bounds a single regex evaluation.
const patternTimeout = time.Second

// widgetPackage is prepended to class names given as ".Simple".
const widgetPackage = "android.widget"

// Predicate is the AND of a node's compiled criteria. The zero value matches
// every node.
type Predicate struct {
	tests []func(a *uitree.Attributes, depth int) bool
}

// Compile folds criteria into one predicate. Pattern criteria are compiled
// here, so an invalid regex surfaces as core.PatternCompileError.
func Compile(criteria []Criterion) (*Predicate, error) {
	p := &Predicate{}
	for _, c := range criteria {
		test, err := compileCriterion(c)
		if err != nil {
			return nil, err
		}
		p.tests = append(p.tests, test)
	}
	return p, nil
}

// IsEmpty reports whether the predicate has no criteria.
func (p *Predicate) IsEmpty() bool {
	return p == nil || len(p.tests) == 0
}

// Match reports whether a node satisfies every criterion. depth is the
// node's distance from the root of the current search.
func (p *Predicate) Match(a uitree.Attributes, depth int) bool {
	if p == nil {
		return true
	}
	for _, test := range p.tests {
		if !test(&a, depth) {
			return false
		}
	}
	return true
}

func compileCriterion(c Criterion) (func(*uitree.Attributes, int) bool, error) {
	switch c.Attribute {
	case AttrCheckable:
		return boolTest(c.Bool, func(a *uitree.Attributes) bool { return a.Checkable }), nil
	case AttrChecked:
		return boolTest(c.Bool, func(a *uitree.Attributes) bool { return a.Checked }), nil
	case AttrClickable:
		return boolTest(c.Bool, func(a *uitree.Attributes) bool { return a.Clickable }), nil
	case AttrEnabled:
		return boolTest(c.Bool, func(a *uitree.Attributes) bool { return a.Enabled }), nil
	case AttrFocusable:
		return boolTest(c.Bool, func(a *uitree.Attributes) bool { return a.Focusable }), nil
	case AttrFocused:
		return boolTest(c.Bool, func(a *uitree.Attributes) bool { return a.Focused }), nil
	case AttrLongClickable:
		return boolTest(c.Bool, func(a *uitree.Attributes) bool { return a.LongClickable }), nil
	case AttrScrollable:
		return boolTest(c.Bool, func(a *uitree.Attributes) bool { return a.Scrollable }), nil
	case AttrSelected:
		return boolTest(c.Bool, func(a *uitree.Attributes) bool { return a.Selected }), nil

	case AttrDepth:
		want := c.Int
		return func(_ *uitree.Attributes, depth int) bool { return depth == want }, nil
	case AttrDisplayID:
		want := c.Int
		return func(a *uitree.Attributes, _ int) bool {
			return a.DisplayID != nil && *a.DisplayID == want
		}, nil

	case AttrClassName:
		value := c.Str
		if c.Op == OpEquals && strings.HasPrefix(value, ".") {
			value = widgetPackage + value
		}
		return stringTest(c, value, func(a *uitree.Attributes) string { return a.ClassName })
	case AttrDescription:
		return stringTest(c, c.Str, func(a *uitree.Attributes) string { return a.ContentDescription })
	case AttrHint:
		return stringTest(c, c.Str, func(a *uitree.Attributes) string { return a.Hint })
	case AttrPackageName:
		return stringTest(c, c.Str, func(a *uitree.Attributes) string { return a.PackageName })
	case AttrResourceID:
		return stringTest(c, c.Str, func(a *uitree.Attributes) string { return a.ResourceID })
	case AttrText:
		return stringTest(c, c.Str, func(a *uitree.Attributes) string { return a.Text })
	}
	return nil, &core.UnknownCriterionError{Key: c.Key}
}

func boolTest(want bool, get func(*uitree.Attributes) bool) func(*uitree.Attributes, int) bool {
	return func(a *uitree.Attributes, _ int) bool {
		return get(a) == want
	}
}

func stringTest(c Criterion, value string, get func(*uitree.Attributes) string) (func(*uitree.Attributes, int) bool, error) {
	switch c.Op {
	case OpEquals:
		return func(a *uitree.Attributes, _ int) bool { return get(a) == value }, nil
	case OpContains:
		return func(a *uitree.Attributes, _ int) bool { return strings.Contains(get(a), value) }, nil
	case OpStartsWith:
		return func(a *uitree.Attributes, _ int) bool { return strings.HasPrefix(get(a), value) }, nil
	case OpEndsWith:
		return func(a *uitree.Attributes, _ int) bool { return strings.HasSuffix(get(a), value) }, nil
	case OpMatches:
		re, err := compilePattern(c.Key, value)
		if err != nil {
			return nil, err
		}
		return func(a *uitree.Attributes, _ int) bool {
			ok, err := re.MatchString(get(a))
			return err == nil && ok
		}, nil
	}
	return nil, &core.UnknownCriterionError{Key: c.Key}
}

// compilePattern compiles a Java-style pattern that must match the whole
// attribute value, as Matcher.matches() does on the device.
func compilePattern(key, pattern string) (*regexp2.Regexp, error) {
	if _, err := regexp2.Compile(pattern, regexp2.None); err != nil {
		return nil, &core.PatternCompileError{Key: key, Pattern: pattern, Err: err}
	}
	re, err := regexp2.Compile(`\A(?:`+pattern+`)\z`, regexp2.None)
	if err != nil {
		return nil, &core.PatternCompileError{Key: key, Pattern: pattern, Err: err}
	}
	re.MatchTimeout = patternTimeout
	return re, nil
}
