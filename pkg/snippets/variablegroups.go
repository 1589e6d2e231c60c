package snippets

import (
	"slices"

	"github.com/ormasoftchile/ravenwf/pkg/xmltree"
)

var variableGroupID = Identity{Class: ClassVariableGroups, Tag: "Group"}

// VariableGroup is a named set of variable names kept in alphabetical order.
// Adding a name that is already present is a no-op. Names of other groups
// are stored like any other variable.
type VariableGroup struct{ Base }

// NewVariableGroup creates a group holding the given variables.
func NewVariableGroup(name string, variables ...string) VariableGroup {
	g := VariableGroup{newBase(variableGroupID, name)}
	g.Add(variables...)
	return g
}

// AsVariableGroup wraps an existing <Group> node.
func AsVariableGroup(n *xmltree.Node) VariableGroup {
	return VariableGroup{wrap(n, variableGroupID)}
}

func (g VariableGroup) view() *ListView { return NewListView(g.node, "") }

// Variables returns the sorted variable names.
func (g VariableGroup) Variables() []string { return g.view().Items() }

// Add inserts each name not yet present and keeps the set sorted.
func (g VariableGroup) Add(names ...string) {
	items := g.view().Items()
	for _, name := range names {
		if name == "" || slices.Contains(items, name) {
			continue
		}
		items = append(items, name)
	}
	slices.Sort(items)
	g.view().Replace(items...)
}

// Remove deletes name and reports whether it was present.
func (g VariableGroup) Remove(name string) bool { return g.view().Remove(name) }

// Contains reports whether name is in the group.
func (g VariableGroup) Contains(name string) bool { return g.view().Contains(name) }

// Len returns the number of variables.
func (g VariableGroup) Len() int { return g.view().Len() }

// normalize rewrites comma-joined text as a sorted, duplicate-free list.
func (g VariableGroup) normalize() {
	items := g.view().Items()
	g.view().Clear()
	g.Add(items...)
}
