package snippets

import "github.com/ormasoftchile/ravenwf/pkg/xmltree"

// Database is the common view over NetCDF and HDF5 databases. Settings are
// stored as attributes.
type Database struct{ Base }

// AsDatabase wraps any database node.
func AsDatabase(n *xmltree.Node) Database {
	return Database{wrap(n, Identity{Class: ClassDatabases, Tag: n.Tag})}
}

// ReadMode returns the readMode attribute.
func (d Database) ReadMode() string { return d.node.Get("readMode") }

// SetReadMode sets the readMode attribute, e.g. "overwrite".
func (d Database) SetReadMode(mode string) { d.node.Set("readMode", mode) }

// Directory returns the directory attribute.
func (d Database) Directory() string { return d.node.Get("directory") }

// SetDirectory sets the directory attribute.
func (d Database) SetDirectory(dir string) { d.node.Set("directory", dir) }

// Filename returns the filename attribute.
func (d Database) Filename() string { return d.node.Get("filename") }

// SetFilename sets the filename attribute.
func (d Database) SetFilename(name string) { d.node.Set("filename", name) }

// Variables is the live list of stored variables.
func (d Database) Variables() *ListView { return d.list("variables") }

// AddVariable adds each variable not yet stored.
func (d Database) AddVariable(vars ...string) {
	view := d.Variables()
	for _, v := range vars {
		if !view.Contains(v) {
			view.Append(v)
		}
	}
}

// NetCDF is a NetCDF-backed database.
type NetCDF struct{ Database }

// NewNetCDF creates a NetCDF database.
func NewNetCDF(name string) NetCDF {
	return NetCDF{Database{newBase(Identity{Class: ClassDatabases, Tag: "NetCDF"}, name)}}
}

// AsNetCDF wraps an existing <NetCDF> node.
func AsNetCDF(n *xmltree.Node) NetCDF {
	return NetCDF{Database{wrap(n, Identity{Class: ClassDatabases, Tag: "NetCDF"})}}
}

// HDF5 is an HDF5-backed database.
type HDF5 struct{ Database }

// NewHDF5 creates an HDF5 database.
func NewHDF5(name string) HDF5 {
	return HDF5{Database{newBase(Identity{Class: ClassDatabases, Tag: "HDF5"}, name)}}
}

// AsHDF5 wraps an existing <HDF5> node.
func AsHDF5(n *xmltree.Node) HDF5 {
	return HDF5{Database{wrap(n, Identity{Class: ClassDatabases, Tag: "HDF5"})}}
}

// Compression returns the compression attribute.
func (d HDF5) Compression() string { return d.node.Get("compression") }

// SetCompression sets the compression attribute.
func (d HDF5) SetCompression(c string) { d.node.Set("compression", c) }
