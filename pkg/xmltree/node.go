// Package xmltree provides the generic tree used to hold workflow documents:
// nodes with a tag, ordered attributes, ordered children and free-form text,
// plus path queries, merging, stringification and XML load/write.
package xmltree

import (
	"fmt"
	"strings"

	"github.com/tiendc/go-deepcopy"
)

// Attr is a single attribute. Attributes keep insertion order so written
// documents are stable across runs.
type Attr struct {
	Name  string
	Value string
}

// Node is one element of a workflow document.
//
// Text may hold nil (absent), a string, a number, a bool or a slice. It is
// reduced to a single string by Stringify before the tree is written.
type Node struct {
	Tag      string
	Attrs    []Attr
	Text     any
	Children []*Node
}

// New creates a node with the given tag and attributes.
func New(tag string, attrs ...Attr) *Node {
	n := &Node{Tag: tag}
	for _, a := range attrs {
		n.Set(a.Name, a.Value)
	}
	return n
}

// Get returns the attribute value, or "" when unset.
func (n *Node) Get(name string) string {
	v, _ := n.Lookup(name)
	return v
}

// Lookup returns the attribute value and whether it is set.
func (n *Node) Lookup(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Set adds or replaces an attribute.
func (n *Node) Set(name, value string) {
	for i := range n.Attrs {
		if n.Attrs[i].Name == name {
			n.Attrs[i].Value = value
			return
		}
	}
	n.Attrs = append(n.Attrs, Attr{Name: name, Value: value})
}

// Unset removes an attribute if present.
func (n *Node) Unset(name string) {
	for i := range n.Attrs {
		if n.Attrs[i].Name == name {
			n.Attrs = append(n.Attrs[:i], n.Attrs[i+1:]...)
			return
		}
	}
}

// AttrMap returns a copy of the attributes as a map.
func (n *Node) AttrMap() map[string]string {
	m := make(map[string]string, len(n.Attrs))
	for _, a := range n.Attrs {
		m[a.Name] = a.Value
	}
	return m
}

// SameAttrs reports whether both nodes carry exactly the same attribute set,
// ignoring order.
func (n *Node) SameAttrs(other *Node) bool {
	if len(n.Attrs) != len(other.Attrs) {
		return false
	}
	for _, a := range n.Attrs {
		v, ok := other.Lookup(a.Name)
		if !ok || v != a.Value {
			return false
		}
	}
	return true
}

// Append adds children at the end.
func (n *Node) Append(children ...*Node) {
	for _, c := range children {
		if c != nil {
			n.Children = append(n.Children, c)
		}
	}
}

// Insert places child at index i, clamping i to the valid range.
func (n *Node) Insert(i int, child *Node) {
	if i < 0 {
		i = 0
	}
	if i >= len(n.Children) {
		n.Children = append(n.Children, child)
		return
	}
	n.Children = append(n.Children, nil)
	copy(n.Children[i+1:], n.Children[i:])
	n.Children[i] = child
}

// IndexOf returns the position of child, or -1.
func (n *Node) IndexOf(child *Node) int {
	for i, c := range n.Children {
		if c == child {
			return i
		}
	}
	return -1
}

// Remove detaches child and reports whether it was found.
func (n *Node) Remove(child *Node) bool {
	i := n.IndexOf(child)
	if i < 0 {
		return false
	}
	n.Children = append(n.Children[:i], n.Children[i+1:]...)
	return true
}

// Replace swaps old for repl in place.
func (n *Node) Replace(old, repl *Node) bool {
	i := n.IndexOf(old)
	if i < 0 {
		return false
	}
	n.Children[i] = repl
	return true
}

// SubElement creates a child with the given tag and attributes and appends it.
func (n *Node) SubElement(tag string, attrs ...Attr) *Node {
	c := New(tag, attrs...)
	n.Children = append(n.Children, c)
	return c
}

// Child returns the first direct child with the given tag.
func (n *Node) Child(tag string) *Node {
	for _, c := range n.Children {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

// Len returns the number of children.
func (n *Node) Len() int { return len(n.Children) }

// TextString returns the text reduced to a string. Values that cannot be
// represented (mappings) yield "".
func (n *Node) TextString() string {
	if n == nil || n.Text == nil {
		return ""
	}
	s, err := ToText(n.Text)
	if err != nil {
		return ""
	}
	return s
}

// HasText reports whether the node carries non-empty text.
func (n *Node) HasText() bool {
	return strings.TrimSpace(n.TextString()) != ""
}

// Walk visits n and its descendants depth-first. Returning false from fn
// skips the children of the visited node.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Clone returns a deep copy of the subtree.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	var dst Node
	if err := deepcopy.Copy(&dst, n); err != nil {
		return n.cloneTree()
	}
	return &dst
}

func (n *Node) cloneTree() *Node {
	c := &Node{Tag: n.Tag, Text: n.Text}
	c.Attrs = append([]Attr(nil), n.Attrs...)
	if items, ok := n.Text.([]string); ok {
		c.Text = append([]string(nil), items...)
	}
	for _, ch := range n.Children {
		c.Children = append(c.Children, ch.cloneTree())
	}
	return c
}

// String renders the start tag, mainly for error messages.
func (n *Node) String() string {
	var b strings.Builder
	b.WriteString("<" + n.Tag)
	for _, a := range n.Attrs {
		fmt.Fprintf(&b, " %s=%q", a.Name, a.Value)
	}
	b.WriteString(">")
	return b.String()
}
