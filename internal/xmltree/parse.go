package xmltree

import (
	"encoding/xml"
	"io"
	"strings"
)

// Parse builds a Node tree from r, driving Go's stdlib SAX-style token
// stream (encoding/xml.Decoder) the way purple_xmlnode_from_str drives
// expat's SAX callbacks: each StartElement pushes a new child onto the
// current node, each EndElement pops, and CharData is appended as a
// TypeData child in the order it's seen.
func Parse(r io.Reader) (*Node, error) {
	dec := xml.NewDecoder(r)
	var root *Node
	var cur *Node

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := New(localName(t.Name))
			if t.Name.Space != "" {
				n.SetNamespace(t.Name.Space)
			}
			for _, a := range t.Attr {
				prefix := ""
				if idx := strings.IndexByte(a.Name.Local, ':'); idx >= 0 {
					// encoding/xml already splits prefix into a.Name.Space in
					// most cases; this branch only fires for raw colon-bearing
					// local names some encoders emit.
					prefix = a.Name.Local[:idx]
				}
				n.SetAttrib(localName(a.Name), a.Name.Space, prefix, a.Value)
			}
			if cur == nil {
				root = n
			} else {
				cur.AppendChild(n)
			}
			cur = n
		case xml.EndElement:
			if cur != nil {
				cur = cur.Parent
			}
		case xml.CharData:
			if cur != nil {
				text := string(t)
				if strings.TrimSpace(text) != "" {
					cur.InsertDataChild(text)
				}
			}
		}
	}
	if root == nil {
		return nil, io.ErrUnexpectedEOF
	}
	return root, nil
}

// ParseString is a convenience wrapper over Parse.
func ParseString(s string) (*Node, error) {
	return Parse(strings.NewReader(s))
}

func localName(n xml.Name) string {
	if n.Local == "" {
		return n.Space
	}
	return n.Local
}
