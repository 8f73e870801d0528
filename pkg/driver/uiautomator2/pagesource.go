package uiautomator2

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/devicelab-dev/uiselector/pkg/core"
	"github.com/devicelab-dev/uiselector/pkg/uitree"
)

// ParsePageSource parses Android UI hierarchy XML into a snapshot. Every
// element directly under <hierarchy> becomes a window root.
// Supports both formats:
// - UIAutomator dump: uses class name as element tag (e.g., <android.widget.FrameLayout>)
// - Appium format: uses <node> elements with a class attribute
func ParsePageSource(xmlData string) (*uitree.Snapshot, error) {
	decoder := xml.NewDecoder(strings.NewReader(xmlData))

	var roots []*uitree.Element
	foundHierarchy := false
	var parseElement func() (*uitree.Element, error)

	parseElement = func() (*uitree.Element, error) {
		for {
			token, err := decoder.Token()
			if err != nil {
				return nil, err
			}

			switch t := token.(type) {
			case xml.StartElement:
				if t.Name.Local == "hierarchy" {
					foundHierarchy = true
					continue
				}

				elem := &uitree.Element{Attributes: parseAttributes(t)}
				for {
					child, err := parseElement()
					if err != nil {
						return nil, err
					}
					if child == nil {
						break
					}
					elem.Children = append(elem.Children, child)
				}
				return elem, nil

			case xml.EndElement:
				return nil, nil
			}
		}
	}

	for {
		elem, err := parseElement()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("invalid page source: %w", err)
		}
		if elem != nil {
			roots = append(roots, elem)
		}
	}

	if !foundHierarchy {
		return nil, fmt.Errorf("invalid page source: no hierarchy element found")
	}

	return uitree.NewSnapshot(roots...), nil
}

func parseAttributes(t xml.StartElement) uitree.Attributes {
	attrs := uitree.Attributes{}
	if t.Name.Local != "node" {
		attrs.ClassName = t.Name.Local
	}

	for _, attr := range t.Attr {
		v := attr.Value
		switch attr.Name.Local {
		case "text":
			attrs.Text = v
		case "resource-id":
			attrs.ResourceID = v
		case "content-desc":
			attrs.ContentDescription = v
		case "hint":
			attrs.Hint = v
		case "class":
			attrs.ClassName = v
		case "package":
			attrs.PackageName = v
		case "bounds":
			attrs.VisibleBounds = parseBounds(v)
		case "checkable":
			attrs.Checkable = v == "true"
		case "checked":
			attrs.Checked = v == "true"
		case "clickable":
			attrs.Clickable = v == "true"
		case "enabled":
			attrs.Enabled = v == "true"
		case "focusable":
			attrs.Focusable = v == "true"
		case "focused":
			attrs.Focused = v == "true"
		case "long-clickable":
			attrs.LongClickable = v == "true"
		case "scrollable":
			attrs.Scrollable = v == "true"
		case "selected":
			attrs.Selected = v == "true"
		case "display-id":
			if id, err := strconv.Atoi(v); err == nil {
				attrs.DisplayID = &id
			}
		}
	}
	return attrs
}

// parseBounds parses Android bounds string "[x1,y1][x2,y2]" to a Rect.
func parseBounds(s string) core.Rect {
	s = strings.ReplaceAll(s, "][", ",")
	s = strings.Trim(s, "[]")
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return core.Rect{}
	}

	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return core.Rect{}
		}
		v[i] = n
	}
	return core.Rect{Left: v[0], Top: v[1], Right: v[2], Bottom: v[3]}
}

// CurrentPackage returns the package of the first window root that reports
// one, which is the foreground application in a UIAutomator dump.
func CurrentPackage(xmlData string) string {
	snap, err := ParsePageSource(xmlData)
	if err != nil {
		return ""
	}
	return currentPackage(snap)
}

func currentPackage(snap *uitree.Snapshot) string {
	for _, attrs := range snap.RootAttributes() {
		if attrs.PackageName != "" {
			return attrs.PackageName
		}
	}
	return ""
}
