// Package xmltree implements the core's DOM-style XML tree (C8): a
// namespace-aware node tree built by a streaming SAX-style parser and
// round-trip serializer, grounded on libpurple's xmlnode.c (PurpleXmlNode
// tagged-union-of-element/attribute/data, prefix->uri map per element,
// last-child pointer for O(1) append).
package xmltree

import (
	"fmt"
	"strings"
)

// NodeType is the tagged union spec.md §3 describes: {element, attribute,
// data}.
type NodeType int

const (
	TypeElement NodeType = iota
	TypeAttribute
	TypeData
)

// Node is one element, attribute, or text node in the tree. Ownership is
// strictly parental: a Node's children point back to it via Parent, and
// the tree is acyclic by construction (Node values are only ever attached
// through AppendChild/SetAttrib, which refuse to attach an already-parented
// node).
type Node struct {
	Type   NodeType
	Name   string // element/attribute name; empty for TypeData
	Data   string // text content for TypeData; attribute value for TypeAttribute
	Prefix string
	Xmlns  string // explicit namespace of this node, if any

	Parent *Node

	children  []*Node
	lastChild *Node // O(1) append target

	attrs   []*Node            // TypeAttribute children, insertion order
	nsMap   map[string]string // prefix -> uri, only meaningful on elements
}

// New creates a detached element node named name.
func New(name string) *Node {
	return &Node{Type: TypeElement, Name: name}
}

// NewData creates a detached text node.
func NewData(data string) *Node {
	return &Node{Type: TypeData, Data: data}
}

// NewChild creates an element named name and appends it to parent,
// mirroring purple_xmlnode_new_child.
func NewChild(parent *Node, name string) *Node {
	child := New(name)
	parent.AppendChild(child)
	return child
}

// AppendChild attaches child as parent's last child in O(1), using the
// last-child pointer exactly as xmlnode_insert_child does. Panics if
// child already has a parent, preserving the acyclic/strictly-parental
// invariant.
func (n *Node) AppendChild(child *Node) {
	if child.Parent != nil {
		panic("xmltree: child already has a parent")
	}
	child.Parent = n
	if n.lastChild == nil {
		n.children = []*Node{child}
	} else {
		n.children = append(n.children, child)
	}
	n.lastChild = child
}

// Children returns n's element and data children, in insertion order
// (attributes are tracked separately and excluded here).
func (n *Node) Children() []*Node { return n.children }

// SetAttrib sets (or replaces) an attribute, matching
// xmlnode_set_attrib_full's remove-then-insert behavior so repeated calls
// with the same name don't accumulate duplicate attribute nodes.
func (n *Node) SetAttrib(name, xmlns, prefix, value string) {
	n.RemoveAttrib(name, xmlns)
	attr := &Node{Type: TypeAttribute, Name: name, Xmlns: xmlns, Prefix: prefix, Data: value, Parent: n}
	n.attrs = append(n.attrs, attr)
}

// SetAttribSimple is SetAttrib without an explicit namespace/prefix.
func (n *Node) SetAttribSimple(name, value string) { n.SetAttrib(name, "", "", value) }

// RemoveAttrib removes the attribute with name and xmlns, if any.
func (n *Node) RemoveAttrib(name, xmlns string) {
	for i, a := range n.attrs {
		if a.Name == name && a.Xmlns == xmlns {
			n.attrs = append(n.attrs[:i:i], n.attrs[i+1:]...)
			return
		}
	}
}

// Attrib returns the value of the first attribute matching name in any
// namespace, matching xmlnode_get_attrib's namespace-agnostic default.
func (n *Node) Attrib(name string) (string, bool) {
	return n.AttribNS(name, "")
}

// AttribNS returns the value of the attribute matching name and xmlns.
// An empty xmlns matches an attribute with no namespace.
func (n *Node) AttribNS(name, xmlns string) (string, bool) {
	for _, a := range n.attrs {
		if a.Name == name && a.Xmlns == xmlns {
			return a.Data, true
		}
	}
	return "", false
}

// Attribs returns every attribute, in insertion order — SetAttrib's order
// is what the serializer emits.
func (n *Node) Attribs() []*Node { return n.attrs }

// SetNamespace sets n's explicit namespace and records it in the
// prefix->uri map under the empty prefix (the default namespace slot),
// matching purple_xmlnode_set_namespace.
func (n *Node) SetNamespace(xmlns string) {
	n.Xmlns = xmlns
	n.setNamespacePrefix("", xmlns)
}

func (n *Node) setNamespacePrefix(prefix, xmlns string) {
	if n.nsMap == nil {
		n.nsMap = make(map[string]string)
	}
	n.nsMap[prefix] = xmlns
}

// DefaultNamespace walks up from n until it finds a node with an explicit
// default namespace, matching purple_xmlnode_get_default_namespace.
func (n *Node) DefaultNamespace() string {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Prefix == "" && cur.Xmlns != "" {
			return cur.Xmlns
		}
	}
	return ""
}

// Child returns the first direct element child named name (optionally
// scoped to ns), matching xmlnode_get_child_with_namespace. A dotted name
// like "a.b" walks nested children the way the source's slash-free dotted
// convention does.
func (n *Node) Child(name string) *Node { return n.ChildNS(name, "") }

func (n *Node) ChildNS(name, ns string) *Node {
	parts := strings.SplitN(name, ".", 2)
	var found *Node
	for _, c := range n.children {
		if c.Type != TypeElement || c.Name != parts[0] {
			continue
		}
		if ns != "" && c.effectiveNamespace() != ns {
			continue
		}
		found = c
		break
	}
	if found == nil || len(parts) == 1 {
		return found
	}
	return found.ChildNS(parts[1], ns)
}

func (n *Node) effectiveNamespace() string {
	if n.Xmlns != "" {
		return n.Xmlns
	}
	return n.DefaultNamespace()
}

// GetData concatenates every direct TypeData child's text, matching
// xmlnode_get_data's "all text content" behavior for simple leaf
// elements.
func (n *Node) GetData() string {
	var sb strings.Builder
	for _, c := range n.children {
		if c.Type == TypeData {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}

// InsertDataChild appends a text child with data.
func (n *Node) InsertDataChild(data string) {
	n.AppendChild(NewData(data))
}

func (n *Node) String() string {
	return fmt.Sprintf("<%s>", n.Name)
}
