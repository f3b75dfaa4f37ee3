package xmltree

import (
	"strings"
	"testing"
)

func TestAppendChildPanicsOnReparent(t *testing.T) {
	parent1 := New("a")
	parent2 := New("b")
	child := New("c")
	parent1.AppendChild(child)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when attaching an already-parented child")
		}
	}()
	parent2.AppendChild(child)
}

func TestSetAttribReplacesNotAccumulates(t *testing.T) {
	n := New("iq")
	n.SetAttribSimple("type", "get")
	n.SetAttribSimple("type", "set")
	if len(n.Attribs()) != 1 {
		t.Fatalf("expected exactly one attribute after replace, got %d", len(n.Attribs()))
	}
	v, ok := n.Attrib("type")
	if !ok || v != "set" {
		t.Fatalf("expected replaced value %q, got %q", "set", v)
	}
}

func TestDefaultNamespaceWalksUpParentChain(t *testing.T) {
	root := New("stream")
	root.SetNamespace("jabber:client")
	child := NewChild(root, "message")
	grandchild := NewChild(child, "body")

	if got := grandchild.DefaultNamespace(); got != "jabber:client" {
		t.Fatalf("expected inherited default namespace, got %q", got)
	}

	child.SetNamespace("jabber:other")
	if got := grandchild.DefaultNamespace(); got != "jabber:other" {
		t.Fatalf("expected nearest ancestor's namespace to win, got %q", got)
	}
}

func TestChildLooksUpByDottedPath(t *testing.T) {
	root := New("iq")
	query := NewChild(root, "query")
	NewChild(query, "item")

	if root.Child("query.item") == nil {
		t.Fatal("expected dotted path to find nested child")
	}
	if root.Child("query.missing") != nil {
		t.Fatal("expected missing nested child to return nil")
	}
}

func TestGetDataConcatenatesTextChildren(t *testing.T) {
	n := New("body")
	n.InsertDataChild("hello ")
	n.InsertDataChild("world")
	if got := n.GetData(); got != "hello world" {
		t.Fatalf("expected concatenated text, got %q", got)
	}
}

func TestRoundTripPreservesShapeAndAttributes(t *testing.T) {
	root := New("iq")
	root.SetAttribSimple("type", "get")
	root.SetAttribSimple("id", "abc123")
	query := NewChild(root, "query")
	query.SetNamespace("jabber:iq:roster")
	item := NewChild(query, "item")
	item.SetAttribSimple("jid", "friend@example.com")

	serialized := ToString(root)
	parsed, err := ParseString(serialized)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	if parsed.Name != "iq" {
		t.Fatalf("expected root name preserved, got %q", parsed.Name)
	}
	if v, _ := parsed.Attrib("type"); v != "get" {
		t.Fatalf("expected type=get preserved, got %q", v)
	}
	if v, _ := parsed.Attrib("id"); v != "abc123" {
		t.Fatalf("expected id preserved, got %q", v)
	}
	parsedQuery := parsed.Child("query")
	if parsedQuery == nil {
		t.Fatal("expected query child preserved")
	}
	if parsedQuery.Xmlns != "jabber:iq:roster" {
		t.Fatalf("expected namespace preserved, got %q", parsedQuery.Xmlns)
	}
	parsedItem := parsedQuery.Child("item")
	if parsedItem == nil {
		t.Fatal("expected item grandchild preserved")
	}
	if v, _ := parsedItem.Attrib("jid"); v != "friend@example.com" {
		t.Fatalf("expected jid preserved, got %q", v)
	}
}

func TestDefaultNamespaceOnlyEmittedWhenDiffersFromParent(t *testing.T) {
	root := New("stream")
	root.SetNamespace("jabber:client")
	child := NewChild(root, "message")
	child.SetNamespace("jabber:client") // same as parent's default

	out := ToString(root)
	if strings.Count(out, "xmlns=") != 1 {
		t.Fatalf("expected xmlns emitted once (on root only), got: %s", out)
	}

	child.SetNamespace("jabber:component:accept") // differs
	out2 := ToString(root)
	if strings.Count(out2, "xmlns=") != 2 {
		t.Fatalf("expected xmlns emitted on both when they differ, got: %s", out2)
	}
}

func TestPrettyPrintIndentsOneTabPerDepth(t *testing.T) {
	root := New("a")
	b := NewChild(root, "b")
	NewChild(b, "c")

	out := ToStringPretty(root)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) < 3 {
		t.Fatalf("expected at least 3 lines, got %d: %q", len(lines), out)
	}
	if strings.HasPrefix(lines[0], "\t") {
		t.Fatalf("expected root line unindented, got %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "\t") || strings.HasPrefix(lines[1], "\t\t") {
		t.Fatalf("expected depth-1 line with exactly one tab, got %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "\t\t") {
		t.Fatalf("expected depth-2 line with two tabs, got %q", lines[2])
	}
}

func TestEscapesReservedCharacters(t *testing.T) {
	n := New("body")
	n.InsertDataChild("a < b & c > d")
	out := ToString(n)
	if strings.Contains(out, "< b") || !strings.Contains(out, "&lt;") {
		t.Fatalf("expected text escaped, got %q", out)
	}
}
