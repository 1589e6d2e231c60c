package snippets

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ormasoftchile/ravenwf/pkg/xmltree"
)

var sampledVariableID = Identity{Tag: "variable"}

// SampledVariable is a <variable> inside a sampler or optimizer. It names a
// distribution or carries a literal grid of values.
type SampledVariable struct{ Base }

// NewSampledVariable creates a <variable name="..."/>.
func NewSampledVariable(name string) SampledVariable {
	return SampledVariable{newBase(sampledVariableID, name)}
}

// AsSampledVariable wraps an existing <variable> node.
func AsSampledVariable(n *xmltree.Node) SampledVariable {
	return SampledVariable{wrap(n, sampledVariableID)}
}

// Initial returns the initial value text, or "".
func (v SampledVariable) Initial() string { return v.text("initial") }

// SetInitial sets the initial value.
func (v SampledVariable) SetInitial(value any) { v.setText("initial", value) }

// Distribution returns the referenced distribution name.
func (v SampledVariable) Distribution() string { return v.text("distribution") }

// SetDistribution points the variable at a distribution by name.
func (v SampledVariable) SetDistribution(name string) { v.setText("distribution", name) }

// Grid constructions and grid types.
const (
	GridEqual  = "equal"
	GridCustom = "custom"
	GridCDF    = "CDF"
	GridValue  = "value"
)

// UseGrid samples the variable on a grid. steps is written only for the
// equal construction. CDF values must lie in [0, 1]. The values are written
// space-separated.
func (v SampledVariable) UseGrid(construction, kind string, steps int, values []float64) error {
	if kind == GridCDF {
		for _, val := range values {
			if val < 0 || val > 1 {
				return fmt.Errorf("grid for %q: CDF values must lie in [0, 1], got %v: %w", v.Name(), values, ErrValue)
			}
		}
	}
	grid := xmltree.MustFindOrCreate(v.node, "grid")
	grid.Set("construction", construction)
	grid.Set("type", kind)
	if construction == GridEqual {
		grid.Set("steps", strconv.Itoa(steps))
	} else {
		grid.Unset("steps")
	}
	text, err := xmltree.ToTextDelim(values, " ")
	if err != nil {
		return err
	}
	grid.Text = text
	return nil
}

// SampledSet is the capability shared by samplers and optimizers: an ordered
// set of sampled variables plus named constants, with the two name sets kept
// disjoint.
type SampledSet interface {
	Entity
	AddVariable(v SampledVariable) error
	AddConstant(name string, value any) error
	HasVariable(name string) bool
	HasConstant(name string) bool
	Variables() []SampledVariable
	NumSampledVars() int
	SetDenoises(n int)
}

// sampling implements SampledSet over any node.
type sampling struct{ Base }

// Variables returns the sampled variables in document order.
func (s sampling) Variables() []SampledVariable {
	var vars []SampledVariable
	for _, c := range s.node.Children {
		if c.Tag == "variable" {
			vars = append(vars, AsSampledVariable(c))
		}
	}
	return vars
}

// Variable returns the sampled variable with the given name.
func (s sampling) Variable(name string) (SampledVariable, bool) {
	n := xmltree.Find(s.node, fmt.Sprintf("variable[@name='%s']", name))
	if n == nil {
		return SampledVariable{}, false
	}
	return AsSampledVariable(n), true
}

// NumSampledVars counts the sampled variables.
func (s sampling) NumSampledVars() int { return len(s.Variables()) }

// HasVariable reports whether a sampled variable with the name exists.
func (s sampling) HasVariable(name string) bool {
	_, ok := s.Variable(name)
	return ok
}

// HasConstant reports whether a constant with the name exists.
func (s sampling) HasConstant(name string) bool {
	return xmltree.Find(s.node, fmt.Sprintf("constant[@name='%s']", name)) != nil
}

// AddVariable appends v. A name held as a constant is rejected; a name
// already sampled is replaced in place.
func (s sampling) AddVariable(v SampledVariable) error {
	name := v.Name()
	if s.HasConstant(name) {
		return fmt.Errorf("%s %q: add variable %q: %w", s.id.Tag, s.Name(), name, ErrSampledConstant)
	}
	if old, ok := s.Variable(name); ok {
		s.node.Replace(old.node, v.node)
		return nil
	}
	s.node.Append(v.node)
	return nil
}

// AddConstant adds or updates <constant name="..">value</constant>. A name
// already sampled is rejected.
func (s sampling) AddConstant(name string, value any) error {
	if s.HasVariable(name) {
		return fmt.Errorf("%s %q: add constant %q: %w", s.id.Tag, s.Name(), name, ErrSampledConstant)
	}
	s.setText(fmt.Sprintf("constant[@name='%s']", name), value)
	return nil
}

// Constant returns the text of a constant.
func (s sampling) Constant(name string) (string, bool) {
	return s.lookupText(fmt.Sprintf("constant[@name='%s']", name))
}

// ConstantNames lists constant names in document order.
func (s sampling) ConstantNames() []string {
	var names []string
	for _, c := range s.node.Children {
		if c.Tag == "constant" {
			names = append(names, c.Get("name"))
		}
	}
	return names
}

// Denoises returns the number of denoising samples, or 0 when unset.
func (s sampling) Denoises() int {
	n, _ := strconv.Atoi(strings.TrimSpace(s.text("constant[@name='denoises']")))
	return n
}

// SetDenoises sets the denoises constant.
func (s sampling) SetDenoises(n int) { s.setText("constant[@name='denoises']", n) }

// InitSeed returns samplerInit/initialSeed, or "".
func (s sampling) InitSeed() string { return s.text("samplerInit/initialSeed") }

// SetInitSeed sets samplerInit/initialSeed.
func (s sampling) SetInitSeed(seed int) { s.setText("samplerInit/initialSeed", seed) }

// InitLimit returns samplerInit/limit, or 0 when unset.
func (s sampling) InitLimit() int {
	n, _ := strconv.Atoi(strings.TrimSpace(s.text("samplerInit/limit")))
	return n
}

// SetInitLimit sets samplerInit/limit.
func (s sampling) SetInitLimit(limit int) { s.setText("samplerInit/limit", limit) }

// Sampler is the common view for every entity in the Samplers section.
type Sampler struct{ sampling }

// AsSampler wraps any sampler node, keeping its tag and subtype.
func AsSampler(n *xmltree.Node) Sampler {
	return Sampler{sampling{wrap(n, Identity{Class: ClassSamplers, Tag: n.Tag, Subtype: n.Get("subType")})}}
}

func newSampler(tag, name string, elems ...Elem) Sampler {
	return Sampler{sampling{newBase(Identity{Class: ClassSamplers, Tag: tag}, name, elems...)}}
}

func asSampler(n *xmltree.Node, tag string) Sampler {
	return Sampler{sampling{wrap(n, Identity{Class: ClassSamplers, Tag: tag})}}
}

// Grid samples every combination of per-variable grids.
type Grid struct{ Sampler }

// NewGrid creates a Grid sampler with denoises set to 1.
func NewGrid(name string) Grid {
	g := Grid{newSampler("Grid", name)}
	g.SetDenoises(1)
	return g
}

// AsGrid wraps an existing <Grid> node.
func AsGrid(n *xmltree.Node) Grid { return Grid{asSampler(n, "Grid")} }

// MonteCarlo samples variables at random from their distributions.
type MonteCarlo struct{ Sampler }

// NewMonteCarlo creates a MonteCarlo sampler.
func NewMonteCarlo(name string) MonteCarlo { return MonteCarlo{newSampler("MonteCarlo", name)} }

// AsMonteCarlo wraps an existing <MonteCarlo> node.
func AsMonteCarlo(n *xmltree.Node) MonteCarlo { return MonteCarlo{asSampler(n, "MonteCarlo")} }

// Stratified is a Latin-hypercube style sampler. It always carries a
// samplerInit block.
type Stratified struct{ Sampler }

// NewStratified creates a Stratified sampler.
func NewStratified(name string) Stratified {
	return Stratified{newSampler("Stratified", name, Elem{Tag: "samplerInit", Value: []Elem{}})}
}

// AsStratified wraps an existing <Stratified> node.
func AsStratified(n *xmltree.Node) Stratified { return Stratified{asSampler(n, "Stratified")} }

// CustomSampler replays points from a data source.
type CustomSampler struct{ Sampler }

// NewCustomSampler creates a CustomSampler.
func NewCustomSampler(name string) CustomSampler {
	return CustomSampler{newSampler("CustomSampler", name)}
}

// AsCustomSampler wraps an existing <CustomSampler> node.
func AsCustomSampler(n *xmltree.Node) CustomSampler {
	return CustomSampler{asSampler(n, "CustomSampler")}
}

// AddSource adds a <Source> reference to the data object the points come
// from. Repeated sources are ignored.
func (c CustomSampler) AddSource(e Entity) error {
	ref, err := e.ToReference("Source")
	if err != nil {
		return err
	}
	for _, s := range c.node.Children {
		if s.Tag == "Source" && s.SameAttrs(ref) && s.TextString() == ref.TextString() {
			return nil
		}
	}
	c.node.Append(ref)
	return nil
}

// EnsembleForward combines several samplers into one.
type EnsembleForward struct{ Sampler }

// NewEnsembleForward creates an EnsembleForward sampler.
func NewEnsembleForward(name string) EnsembleForward {
	return EnsembleForward{newSampler("EnsembleForward", name)}
}

// AsEnsembleForward wraps an existing <EnsembleForward> node.
func AsEnsembleForward(n *xmltree.Node) EnsembleForward {
	return EnsembleForward{asSampler(n, "EnsembleForward")}
}

// AddSampler nests a sampler. Sampler names must be unique inside the
// ensemble.
func (e EnsembleForward) AddSampler(s Entity) error {
	return Insert(e.node, s)
}

// Samplers returns the nested samplers.
func (e EnsembleForward) Samplers() []Sampler {
	var out []Sampler
	for _, c := range e.node.Children {
		if _, ok := samplerTags[c.Tag]; ok {
			out = append(out, AsSampler(c))
		}
	}
	return out
}

var samplerTags = map[string]struct{}{
	"Grid": {}, "MonteCarlo": {}, "Stratified": {}, "CustomSampler": {}, "EnsembleForward": {},
}
