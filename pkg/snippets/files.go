package snippets

import "github.com/ormasoftchile/ravenwf/pkg/xmltree"

var fileID = Identity{Class: ClassFiles, Tag: "Input"}

// File is an <Input> entry of the Files section. Its text is the path.
type File struct{ Base }

// NewFile creates a file entry.
func NewFile(name, path string) File {
	f := File{newBase(fileID, name)}
	if path != "" {
		f.SetPath(path)
	}
	return f
}

// AsFile wraps an existing Files/Input node.
func AsFile(n *xmltree.Node) File { return File{wrap(n, fileID)} }

// Type returns the type attribute, or "".
func (f File) Type() string { return f.node.Get("type") }

// SetType sets the type attribute.
func (f File) SetType(t string) { f.node.Set("type", t) }

// Path returns the file path.
func (f File) Path() string { return f.node.TextString() }

// SetPath sets the file path.
func (f File) SetPath(p string) { f.node.Text = p }

// ToReference uses the file's own type attribute as the reference type.
func (f File) ToReference(slot string) (*xmltree.Node, error) {
	return reference(f, slot, f.Type())
}
