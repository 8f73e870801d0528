package uiautomator2

import (
	"context"
	"testing"

	"github.com/devicelab-dev/uiselector/pkg/core"
	"github.com/devicelab-dev/uiselector/pkg/uitree"
)

const sampleHierarchy = `<?xml version="1.0" encoding="UTF-8"?>
<hierarchy rotation="0">
  <node index="0" text="" resource-id="" class="android.widget.FrameLayout" package="com.app" bounds="[0,0][1080,1920]" clickable="false" enabled="true" display-id="0">
    <node index="0" text="Login" resource-id="com.app:id/login_btn" class="android.widget.Button" package="com.app" bounds="[100,200][300,280]" clickable="true" enabled="true" long-clickable="true"/>
    <node index="1" text="Sign Up" resource-id="com.app:id/signup_btn" class="android.widget.Button" package="com.app" bounds="[100,300][300,380]" clickable="true" enabled="true"/>
    <node index="2" text="" resource-id="com.app:id/container" class="android.widget.LinearLayout" package="com.app" bounds="[0,400][1080,800]" clickable="false" enabled="true">
      <node index="0" text="Username" resource-id="com.app:id/label" class="android.widget.TextView" package="com.app" bounds="[50,420][200,460]" clickable="false" enabled="true"/>
      <node index="1" text="" hint="Enter name" resource-id="com.app:id/input" class="android.widget.EditText" package="com.app" bounds="[50,470][500,530]" clickable="true" enabled="true" focusable="true" focused="true"/>
    </node>
  </node>
</hierarchy>`

// walk collects the attributes of every node in pre-order.
func walk(t *testing.T, tree uitree.Tree) []uitree.Attributes {
	t.Helper()
	roots, err := tree.Roots(context.Background())
	if err != nil {
		t.Fatalf("Roots failed: %v", err)
	}

	var out []uitree.Attributes
	var visit func(id uitree.NodeID)
	visit = func(id uitree.NodeID) {
		attrs, err := tree.Attributes(id)
		if err != nil {
			t.Fatalf("Attributes failed: %v", err)
		}
		out = append(out, attrs)
		children, err := tree.Children(id)
		if err != nil {
			t.Fatalf("Children failed: %v", err)
		}
		for _, c := range children {
			visit(c)
		}
	}
	for _, r := range roots {
		visit(r)
	}
	return out
}

func TestParsePageSource(t *testing.T) {
	snap, err := ParsePageSource(sampleHierarchy)
	if err != nil {
		t.Fatalf("ParsePageSource failed: %v", err)
	}

	// 1 root + 3 children + 2 grandchildren
	if snap.Len() != 6 {
		t.Errorf("expected 6 nodes, got %d", snap.Len())
	}

	nodes := walk(t, uitree.Static(snap))
	login := nodes[1]
	if login.Text != "Login" {
		t.Fatalf("expected Login in document order, got %q", login.Text)
	}
	if login.ResourceID != "com.app:id/login_btn" {
		t.Errorf("expected resource-id com.app:id/login_btn, got %s", login.ResourceID)
	}
	if !login.Clickable || !login.LongClickable {
		t.Error("expected Login button to be clickable and long-clickable")
	}
	if login.VisibleBounds != (core.Rect{Left: 100, Top: 200, Right: 300, Bottom: 280}) {
		t.Errorf("unexpected bounds: %+v", login.VisibleBounds)
	}

	input := nodes[5]
	if input.Hint != "Enter name" || !input.Focused || !input.Focusable {
		t.Errorf("unexpected input attributes: %+v", input)
	}

	root := nodes[0]
	if root.DisplayID == nil || *root.DisplayID != 0 {
		t.Errorf("expected display id 0 on root, got %v", root.DisplayID)
	}
	if login.DisplayID != nil {
		t.Errorf("expected no display id on button, got %v", *login.DisplayID)
	}
}

func TestParsePageSourceClassTags(t *testing.T) {
	xml := `<hierarchy>
  <android.widget.FrameLayout text="" bounds="[0,0][100,100]">
    <android.widget.TextView text="Hello" bounds="[0,0][50,50]"/>
  </android.widget.FrameLayout>
</hierarchy>`

	snap, err := ParsePageSource(xml)
	if err != nil {
		t.Fatalf("ParsePageSource failed: %v", err)
	}
	nodes := walk(t, uitree.Static(snap))
	if len(nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(nodes))
	}
	if nodes[1].ClassName != "android.widget.TextView" {
		t.Errorf("expected class from tag, got %q", nodes[1].ClassName)
	}
}

func TestParsePageSourceMultipleWindows(t *testing.T) {
	xml := `<hierarchy>
  <node class="android.widget.FrameLayout" package="com.android.systemui"/>
  <node class="android.widget.FrameLayout" package="com.app"/>
</hierarchy>`

	snap, err := ParsePageSource(xml)
	if err != nil {
		t.Fatalf("ParsePageSource failed: %v", err)
	}
	roots, err := uitree.Static(snap).Roots(context.Background())
	if err != nil {
		t.Fatalf("Roots failed: %v", err)
	}
	if len(roots) != 2 {
		t.Errorf("expected 2 window roots, got %d", len(roots))
	}
	if pkg := currentPackage(snap); pkg != "com.android.systemui" {
		t.Errorf("expected first window package, got %q", pkg)
	}
}

func TestParsePageSourceInvalidXML(t *testing.T) {
	if _, err := ParsePageSource("not xml"); err == nil {
		t.Error("expected error for invalid XML")
	}
	if _, err := ParsePageSource("<hierarchy><node></hierarchy>"); err == nil {
		t.Error("expected error for mismatched tags")
	}
}

func TestParsePageSourceNoHierarchy(t *testing.T) {
	if _, err := ParsePageSource("<root><node/></root>"); err == nil {
		t.Error("expected error without hierarchy element")
	}
}

func TestParseBounds(t *testing.T) {
	tests := []struct {
		input    string
		expected core.Rect
	}{
		{"[0,0][100,200]", core.Rect{Left: 0, Top: 0, Right: 100, Bottom: 200}},
		{"[50,100][150,300]", core.Rect{Left: 50, Top: 100, Right: 150, Bottom: 300}},
		{"invalid", core.Rect{}},
		{"[0,0]", core.Rect{}},
		{"[a,0][1,1]", core.Rect{}},
	}

	for _, tt := range tests {
		got := parseBounds(tt.input)
		if got != tt.expected {
			t.Errorf("parseBounds(%q) = %+v, want %+v", tt.input, got, tt.expected)
		}
	}
}

func TestCurrentPackage(t *testing.T) {
	if pkg := CurrentPackage(sampleHierarchy); pkg != "com.app" {
		t.Errorf("expected com.app, got %q", pkg)
	}
	if pkg := CurrentPackage("garbage"); pkg != "" {
		t.Errorf("expected empty package for invalid source, got %q", pkg)
	}
}
