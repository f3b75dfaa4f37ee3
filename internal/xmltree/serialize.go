package xmltree

import (
	"strconv"
	"strings"
)

// ToString serializes n compactly, matching purple_xmlnode_to_str (which
// calls the formatting helper with formatting=false).
func ToString(n *Node) string {
	var sb strings.Builder
	writeNode(&sb, n, false, 0)
	return sb.String()
}

// ToStringPretty serializes n with one-tab-per-depth indentation, matching
// purple_xmlnode_to_formatted_str (formatting=true).
func ToStringPretty(n *Node) string {
	var sb strings.Builder
	writeNode(&sb, n, true, 0)
	return sb.String()
}

func writeNode(sb *strings.Builder, n *Node, pretty bool, depth int) {
	switch n.Type {
	case TypeData:
		sb.WriteString(escapeText(n.Data))
		return
	case TypeAttribute:
		return // attributes are written by the owning element, never standalone
	}

	indent := func(d int) {
		if pretty {
			for i := 0; i < d; i++ {
				sb.WriteByte('\t')
			}
		}
	}

	indent(depth)
	sb.WriteByte('<')
	sb.WriteString(n.Name)

	// A default namespace is only emitted when it differs from the
	// nearest ancestor's default namespace, matching xmlnode_to_str_helper's
	// "xmlns differs from parent" check.
	if n.Prefix == "" && n.Xmlns != "" {
		parentDefault := ""
		if n.Parent != nil {
			parentDefault = n.Parent.DefaultNamespace()
		}
		if n.Xmlns != parentDefault {
			sb.WriteString(` xmlns="`)
			sb.WriteString(escapeAttr(n.Xmlns))
			sb.WriteByte('"')
		}
	} else if n.Prefix != "" && n.Xmlns != "" {
		sb.WriteString(` xmlns:`)
		sb.WriteString(n.Prefix)
		sb.WriteString(`="`)
		sb.WriteString(escapeAttr(n.Xmlns))
		sb.WriteByte('"')
	}

	for _, a := range n.attrs {
		sb.WriteByte(' ')
		if a.Prefix != "" {
			sb.WriteString(a.Prefix)
			sb.WriteByte(':')
		}
		sb.WriteString(a.Name)
		sb.WriteString(`="`)
		sb.WriteString(escapeAttr(a.Data))
		sb.WriteByte('"')
	}

	if len(n.children) == 0 {
		sb.WriteString("/>")
		if pretty {
			sb.WriteByte('\n')
		}
		return
	}

	sb.WriteByte('>')
	allData := true
	for _, c := range n.children {
		if c.Type != TypeData {
			allData = false
			break
		}
	}
	if pretty && !allData {
		sb.WriteByte('\n')
	}
	for _, c := range n.children {
		if pretty && !allData {
			writeNode(sb, c, pretty, depth+1)
		} else {
			writeNode(sb, c, false, 0)
		}
	}
	if pretty && !allData {
		indent(depth)
	}
	sb.WriteString("</")
	sb.WriteString(n.Name)
	sb.WriteByte('>')
	if pretty {
		sb.WriteByte('\n')
	}
}

func escapeText(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}

func escapeAttr(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}

// AttrInt parses an attribute as an integer, returning ok=false if absent
// or malformed — a small convenience the protocol plugins lean on heavily
// for things like SASL/MUC status codes.
func (n *Node) AttrInt(name string) (int, bool) {
	v, ok := n.Attrib(name)
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return i, true
}
