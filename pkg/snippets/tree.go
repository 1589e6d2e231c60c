package snippets

import (
	"fmt"

	"github.com/ormasoftchile/ravenwf/pkg/xmltree"
)

// Insert appends e's node under parent. A sibling of the same class with
// the same name fails with *DuplicateEntityError.
func Insert(parent *xmltree.Node, e Entity) error {
	if FindEntity(parent, classOrTag(e.Identity()), e.Name()) != nil {
		return &DuplicateEntityError{Class: classOrTag(e.Identity()), Name: e.Name(), Section: parent.Tag}
	}
	parent.Append(e.Node())
	return nil
}

// Add inserts e into root under parentPath, creating the section when it is
// missing. An empty parentPath means the section named after e's class.
func Add(root *xmltree.Node, e Entity, parentPath string) error {
	if parentPath == "" {
		parentPath = e.Identity().Class
	}
	if parentPath == "" {
		return fmt.Errorf("add %s: no class and no parent path: %w", e.Identity().Tag, ErrWrongClass)
	}
	parent, err := xmltree.FindOrCreate(root, parentPath)
	if err != nil {
		return err
	}
	return Insert(parent, e)
}

// FindEntity returns the direct child of parent with the given name whose
// class is class. Unregistered children and classless kinds compare by tag.
func FindEntity(parent *xmltree.Node, class, name string) *xmltree.Node {
	if parent == nil || name == "" {
		return nil
	}
	for _, c := range parent.Children {
		if c.Get("name") != name {
			continue
		}
		if nodeClass(c) == class {
			return c
		}
	}
	return nil
}

// nodeClass resolves the class of a node through the default registry, or
// returns its tag when the node is unregistered.
func nodeClass(n *xmltree.Node) string {
	if k, ok := Lookup(n); ok {
		return classOrTag(k.Identity)
	}
	return n.Tag
}

func classOrTag(id Identity) string {
	if id.Class != "" {
		return id.Class
	}
	return id.Tag
}
