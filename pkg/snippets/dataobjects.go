package snippets

import (
	"fmt"

	"github.com/ormasoftchile/ravenwf/pkg/xmltree"
)

// DataObject is the common view over PointSet, HistorySet and DataSet.
type DataObject struct{ Base }

func newDataObject(tag, name string) DataObject {
	return DataObject{newBase(Identity{Class: ClassDataObjects, Tag: tag}, name)}
}

// AsDataObject wraps any data object node.
func AsDataObject(n *xmltree.Node) DataObject {
	return DataObject{wrap(n, Identity{Class: ClassDataObjects, Tag: n.Tag})}
}

// Inputs is the live list of input variables.
func (d DataObject) Inputs() *ListView { return d.list("Input") }

// Outputs is the live list of output variables.
func (d DataObject) Outputs() *ListView { return d.list("Output") }

// PointSet holds scalar samples.
type PointSet struct{ DataObject }

// NewPointSet creates a PointSet.
func NewPointSet(name string) PointSet { return PointSet{newDataObject("PointSet", name)} }

// AsPointSet wraps an existing <PointSet> node.
func AsPointSet(n *xmltree.Node) PointSet {
	return PointSet{DataObject{wrap(n, Identity{Class: ClassDataObjects, Tag: "PointSet"})}}
}

// HistorySet holds time histories.
type HistorySet struct{ DataObject }

// NewHistorySet creates a HistorySet.
func NewHistorySet(name string) HistorySet { return HistorySet{newDataObject("HistorySet", name)} }

// AsHistorySet wraps an existing <HistorySet> node.
func AsHistorySet(n *xmltree.Node) HistorySet {
	return HistorySet{DataObject{wrap(n, Identity{Class: ClassDataObjects, Tag: "HistorySet"})}}
}

// DataSet holds variables indexed by arbitrary index variables.
type DataSet struct{ DataObject }

// NewDataSet creates a DataSet.
func NewDataSet(name string) DataSet { return DataSet{newDataObject("DataSet", name)} }

// AsDataSet wraps an existing <DataSet> node.
func AsDataSet(n *xmltree.Node) DataSet {
	return DataSet{DataObject{wrap(n, Identity{Class: ClassDataObjects, Tag: "DataSet"})}}
}

// AddIndex declares that vars depend on indexVar. An existing index for the
// same variable is extended with the variables it lacks.
func (d DataSet) AddIndex(indexVar string, vars ...string) {
	path := fmt.Sprintf("Index[@var='%s']", indexVar)
	node := xmltree.Find(d.node, path)
	if node == nil {
		node = d.node.SubElement("Index", xmltree.Attr{Name: "var", Value: indexVar})
	}
	view := NewListView(node, "")
	for _, v := range vars {
		if !view.Contains(v) {
			view.Append(v)
		}
	}
}

// Index returns the variables indexed by indexVar.
func (d DataSet) Index(indexVar string) []string {
	node := xmltree.Find(d.node, fmt.Sprintf("Index[@var='%s']", indexVar))
	if node == nil {
		return nil
	}
	return CoerceList(node.Text)
}

// IndexVars lists the declared index variables.
func (d DataSet) IndexVars() []string {
	var vars []string
	for _, c := range d.node.Children {
		if c.Tag == "Index" {
			vars = append(vars, c.Get("var"))
		}
	}
	return vars
}
