package snippets

import (
	"reflect"
	"slices"
	"strings"

	"github.com/ormasoftchile/ravenwf/pkg/xmltree"
)

// ListView is a live list over the text of a node. It never caches: every
// read coerces the current text into a list and every mutation writes the
// whole list back before returning, so two views over the same node always
// observe the same items.
type ListView struct {
	owner *xmltree.Node
	tag   string
}

// NewListView returns a view over the text of owner's first child with the
// given tag. With an empty tag the view covers owner's own text. The child is
// created on first write.
func NewListView(owner *xmltree.Node, tag string) *ListView {
	return &ListView{owner: owner, tag: tag}
}

func (v *ListView) node(create bool) *xmltree.Node {
	if v.tag == "" {
		return v.owner
	}
	if c := v.owner.Child(v.tag); c != nil || !create {
		return c
	}
	return v.owner.SubElement(v.tag)
}

// CoerceList turns node text into a list: nil or blank is empty, a string
// containing commas is split and trimmed, any other string is a single item,
// and slices are converted element-wise.
func CoerceList(text any) []string {
	switch t := text.(type) {
	case nil:
		return nil
	case []string:
		return append([]string(nil), t...)
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		if !strings.Contains(s, ",") {
			return []string{s}
		}
		var items []string
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				items = append(items, p)
			}
		}
		return items
	}
	rv := reflect.ValueOf(text)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		items := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			s, err := xmltree.ToText(rv.Index(i).Interface())
			if err == nil {
				items = append(items, s)
			}
		}
		return items
	}
	s, err := xmltree.ToText(text)
	if err != nil || s == "" {
		return nil
	}
	return CoerceList(s)
}

// Items returns a copy of the current items.
func (v *ListView) Items() []string {
	n := v.node(false)
	if n == nil {
		return nil
	}
	return CoerceList(n.Text)
}

func (v *ListView) write(items []string) {
	if items == nil {
		items = []string{}
	}
	v.node(true).Text = items
}

// Len returns the number of items.
func (v *ListView) Len() int { return len(v.Items()) }

// At returns item i. It panics when i is out of range, like a slice index.
func (v *ListView) At(i int) string { return v.Items()[i] }

// Set replaces item i.
func (v *ListView) Set(i int, s string) {
	items := v.Items()
	items[i] = s
	v.write(items)
}

// Delete removes item i.
func (v *ListView) Delete(i int) {
	items := v.Items()
	v.write(slices.Delete(items, i, i+1))
}

// Append adds one item at the end.
func (v *ListView) Append(s string) {
	v.write(append(v.Items(), s))
}

// Extend adds items at the end in order.
func (v *ListView) Extend(items ...string) {
	v.write(append(v.Items(), items...))
}

// Insert places s before item i. An index past the end appends; a negative
// index counts from the end.
func (v *ListView) Insert(i int, s string) {
	items := v.Items()
	if i < 0 {
		i += len(items)
		if i < 0 {
			i = 0
		}
	}
	if i > len(items) {
		i = len(items)
	}
	v.write(slices.Insert(items, i, s))
}

// Remove deletes the first occurrence of s and reports whether it was found.
func (v *ListView) Remove(s string) bool {
	items := v.Items()
	i := slices.Index(items, s)
	if i < 0 {
		return false
	}
	v.write(slices.Delete(items, i, i+1))
	return true
}

// Pop removes and returns the last item.
func (v *ListView) Pop() (string, bool) {
	items := v.Items()
	if len(items) == 0 {
		return "", false
	}
	last := items[len(items)-1]
	v.write(items[:len(items)-1])
	return last, true
}

// Clear removes every item.
func (v *ListView) Clear() { v.write(nil) }

// Sort orders the items alphabetically.
func (v *ListView) Sort() {
	items := v.Items()
	slices.Sort(items)
	v.write(items)
}

// Reverse reverses the item order.
func (v *ListView) Reverse() {
	items := v.Items()
	slices.Reverse(items)
	v.write(items)
}

// Index returns the position of s, or -1.
func (v *ListView) Index(s string) int { return slices.Index(v.Items(), s) }

// Count returns how many times s occurs.
func (v *ListView) Count(s string) int {
	n := 0
	for _, it := range v.Items() {
		if it == s {
			n++
		}
	}
	return n
}

// Contains reports whether s is present.
func (v *ListView) Contains(s string) bool { return v.Index(s) >= 0 }

// Copy returns a detached copy of the items.
func (v *ListView) Copy() []string { return v.Items() }

// Replace overwrites the whole list.
func (v *ListView) Replace(items ...string) {
	v.write(append([]string(nil), items...))
}
