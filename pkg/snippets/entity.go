// Package snippets provides typed views over workflow document nodes.
//
// Every entity (sampler, model, data object, step, ...) is a thin wrapper
// around an *xmltree.Node. Accessors read and write the node directly, so a
// wrapper holds no state of its own: any node can be re-wrapped at any time
// and two wrappers over the same node always agree.
package snippets

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ormasoftchile/ravenwf/pkg/xmltree"
)

// Entity classes. The class names the top-level section an entity lives in.
const (
	ClassModels         = "Models"
	ClassSamplers       = "Samplers"
	ClassOptimizers     = "Optimizers"
	ClassDataObjects    = "DataObjects"
	ClassDatabases      = "Databases"
	ClassDistributions  = "Distributions"
	ClassFiles          = "Files"
	ClassOutStreams     = "OutStreams"
	ClassSteps          = "Steps"
	ClassVariableGroups = "VariableGroups"
)

// Identity is the triple that decides where an entity belongs and how it is
// referenced. Class is empty for entities that cannot be referenced, such as
// RunInfo or a sampled variable.
type Identity struct {
	Class   string
	Tag     string
	Subtype string
}

// Key returns the registry key: the tag, qualified by subtype when present.
func (id Identity) Key() string {
	if id.Subtype == "" {
		return id.Tag
	}
	return fmt.Sprintf("%s[@subType='%s']", id.Tag, id.Subtype)
}

// Entity is a typed view over one workflow node.
type Entity interface {
	Node() *xmltree.Node
	Identity() Identity
	Name() string
	ToReference(slot string) (*xmltree.Node, error)
}

// Elem is one ordered subelement specification used when building entity
// defaults. Value may be an Entity, a nested []Elem, a map[string]any, a
// slice (stored as list text) or a scalar.
type Elem struct {
	Tag   string
	Value any
}

// Base carries the node and identity shared by every entity type.
type Base struct {
	node *xmltree.Node
	id   Identity
}

func newBase(id Identity, name string, elems ...Elem) Base {
	n := xmltree.New(id.Tag)
	if name != "" {
		n.Set("name", name)
	}
	if id.Subtype != "" {
		n.Set("subType", id.Subtype)
	}
	b := Base{node: n, id: id}
	b.AddSubelements(elems...)
	return b
}

func wrap(n *xmltree.Node, id Identity) Base {
	if n == nil {
		n = xmltree.New(id.Tag)
	}
	return Base{node: n, id: id}
}

// Node returns the underlying node.
func (b Base) Node() *xmltree.Node { return b.node }

// Identity returns the class, tag and subtype of the entity.
func (b Base) Identity() Identity { return b.id }

// Name returns the name attribute, or "".
func (b Base) Name() string { return b.node.Get("name") }

// SetName sets the name attribute.
func (b Base) SetName(name string) { b.node.Set("name", name) }

// String returns the entity name, falling back to the start tag.
func (b Base) String() string {
	if name := b.Name(); name != "" {
		return name
	}
	return b.node.String()
}

// ToReference builds the cross-reference node <slot class=".." type="..">name</slot>.
func (b Base) ToReference(slot string) (*xmltree.Node, error) {
	return reference(b, slot, b.id.Tag)
}

func reference(e Entity, slot, typ string) (*xmltree.Node, error) {
	id := e.Identity()
	var missing []string
	if id.Class == "" {
		missing = append(missing, "class")
	}
	if e.Name() == "" {
		missing = append(missing, "name")
	}
	if len(missing) > 0 {
		return nil, &ReferenceError{Tag: id.Tag, Class: id.Class, Name: e.Name(), Missing: missing}
	}
	n := xmltree.New(slot, xmltree.Attr{Name: "class", Value: id.Class}, xmltree.Attr{Name: "type", Value: typ})
	n.Text = e.Name()
	return n, nil
}

// MustReference is ToReference for entities known to be named.
func MustReference(e Entity, slot string) *xmltree.Node {
	n, err := e.ToReference(slot)
	if err != nil {
		panic(err)
	}
	return n
}

// AddSubelements appends the given subelements in order.
func (b Base) AddSubelements(elems ...Elem) {
	for _, e := range elems {
		addSubelement(b.node, e.Tag, e.Value)
	}
}

// AddSubelementMap appends one subelement per key, in sorted key order.
// Nested maps become nested subtrees.
func (b Base) AddSubelementMap(m map[string]any) {
	for _, e := range sortedElems(m) {
		addSubelement(b.node, e.Tag, e.Value)
	}
}

func sortedElems(m map[string]any) []Elem {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	elems := make([]Elem, 0, len(keys))
	for _, k := range keys {
		elems = append(elems, Elem{Tag: k, Value: m[k]})
	}
	return elems
}

func addSubelement(parent *xmltree.Node, tag string, value any) {
	switch v := value.(type) {
	case Entity:
		parent.Append(v.Node())
	case *xmltree.Node:
		parent.Append(v)
	case []Elem:
		child := parent.SubElement(tag)
		for _, e := range v {
			addSubelement(child, e.Tag, e.Value)
		}
	case map[string]any:
		child := parent.SubElement(tag)
		for _, e := range sortedElems(v) {
			addSubelement(child, e.Tag, e.Value)
		}
	case []string:
		parent.SubElement(tag).Text = append([]string(nil), v...)
	default:
		child := parent.SubElement(tag)
		if s, ok := v.(string); !ok || s != "" {
			child.Text = v
		}
	}
}

// text returns the text of the child at path, or "" when absent.
func (b Base) text(path string) string {
	return xmltree.Find(b.node, path).TextString()
}

// lookupText is text with presence reported.
func (b Base) lookupText(path string) (string, bool) {
	n := xmltree.Find(b.node, path)
	if n == nil {
		return "", false
	}
	return n.TextString(), true
}

// setText finds or creates the child at path and sets its text.
func (b Base) setText(path string, value any) {
	xmltree.MustFindOrCreate(b.node, path).Text = value
}

// unset removes the first child matching path.
func (b Base) unset(path string) bool {
	n := xmltree.Find(b.node, path)
	if n == nil {
		return false
	}
	parentPath := path
	parent := b.node
	if i := strings.LastIndex(path, "/"); i >= 0 {
		parentPath = path[:i]
		parent = xmltree.Find(b.node, parentPath)
	}
	return parent != nil && parent.Remove(n)
}

// list returns a live view over the text of the child with the given tag.
func (b Base) list(tag string) *ListView {
	return NewListView(b.node, tag)
}

// setReference replaces the attributes and text of the child at path with
// those of e's reference node, creating the child when absent.
func (b Base) setReference(path string, e Entity) error {
	slot := path
	if i := strings.LastIndex(path, "/"); i >= 0 {
		slot = path[i+1:]
	}
	ref, err := e.ToReference(slot)
	if err != nil {
		return err
	}
	n := xmltree.MustFindOrCreate(b.node, path)
	n.Attrs = ref.Attrs
	n.Text = ref.Text
	return nil
}
