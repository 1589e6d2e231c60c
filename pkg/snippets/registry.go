package snippets

import (
	"fmt"
	"sync"

	"github.com/ormasoftchile/ravenwf/pkg/xmltree"
)

// Kind describes one concrete entity type: its identity, how to build a
// default instance, and how to view an existing node.
type Kind struct {
	// Name identifies the kind in diagnostics, e.g. "GaussianProcessRegressor".
	Name string
	Identity
	// New builds a default instance with the given name.
	New func(name string) Entity
	// As wraps an existing node without touching it.
	As func(n *xmltree.Node) Entity
	// MatchText makes FromXML keep children that differ only in text apart.
	MatchText bool
	// After runs once FromXML has absorbed the source node.
	After func(e Entity, src *xmltree.Node)
}

// FromXML builds a default instance and layers src onto it: children are
// merged with overwrite, then src's attributes and text are copied.
func (k Kind) FromXML(src *xmltree.Node) Entity {
	e := k.New(src.Get("name"))
	n := e.Node()
	opts := xmltree.DefaultMerge
	opts.MatchText = k.MatchText
	xmltree.Merge(n, src, opts)
	for _, a := range src.Attrs {
		n.Set(a.Name, a.Value)
	}
	if src.Text != nil {
		if items, ok := src.Text.([]string); ok {
			n.Text = append([]string(nil), items...)
		} else {
			n.Text = src.Text
		}
	}
	if k.After != nil {
		k.After(e, src)
	}
	return e
}

// Registry maps tag and subtype keys to entity kinds.
type Registry struct {
	kinds map[string]Kind
	order []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{kinds: map[string]Kind{}}
}

// Register adds kinds. Kinds without a tag are abstract and skipped.
// Registering the same kind twice is a no-op; a different kind on a taken
// key fails with *CollisionError.
func (r *Registry) Register(kinds ...Kind) error {
	for _, k := range kinds {
		if k.Tag == "" {
			continue
		}
		key := k.Key()
		if existing, ok := r.kinds[key]; ok {
			if existing.Name == k.Name {
				continue
			}
			return &CollisionError{Key: key, Existing: existing.Name, New: k.Name}
		}
		r.kinds[key] = k
		r.order = append(r.order, key)
	}
	return nil
}

// NodeKey derives the registry key of a node from its tag and subType.
func NodeKey(n *xmltree.Node) string {
	return Identity{Tag: n.Tag, Subtype: n.Get("subType")}.Key()
}

// Lookup returns the kind registered for the node. An unregistered node is
// a normal outcome, not an error.
func (r *Registry) Lookup(n *xmltree.Node) (Kind, bool) {
	if n == nil {
		return Kind{}, false
	}
	k, ok := r.kinds[NodeKey(n)]
	return k, ok
}

// LookupKey returns the kind registered under key.
func (r *Registry) LookupKey(key string) (Kind, bool) {
	k, ok := r.kinds[key]
	return k, ok
}

// Kinds returns the registered kinds in registration order.
func (r *Registry) Kinds() []Kind {
	out := make([]Kind, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.kinds[key])
	}
	return out
}

// Len returns the number of registered kinds.
func (r *Registry) Len() int { return len(r.order) }

// Materialize returns the node of kind.FromXML(n) for a registered node and
// n itself otherwise.
func (r *Registry) Materialize(n *xmltree.Node) *xmltree.Node {
	k, ok := r.Lookup(n)
	if !ok {
		return n
	}
	return k.FromXML(n).Node()
}

// Wrap returns the typed view of a registered node.
func (r *Registry) Wrap(n *xmltree.Node) (Entity, bool) {
	k, ok := r.Lookup(n)
	if !ok || k.As == nil {
		return nil, false
	}
	return k.As(n), true
}

// ParseToSnippets rebuilds the tree under n, replacing every registered node
// with its materialized form. Recursion stops at a registered node since the
// entity owns its whole subtree. Unregistered nodes are copied as is.
func (r *Registry) ParseToSnippets(n *xmltree.Node) *xmltree.Node {
	if _, ok := r.Lookup(n); ok {
		return r.Materialize(n)
	}
	parsed := xmltree.New(n.Tag, n.Attrs...)
	parsed.Text = n.Text
	for _, c := range n.Children {
		parsed.Append(r.ParseToSnippets(c))
	}
	return parsed
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// DefaultRegistry returns the registry of every built-in kind, including one
// kind per distribution in the distribution table. It is built once and is
// read-only afterwards.
func DefaultRegistry() *Registry {
	defaultOnce.Do(func() {
		r := NewRegistry()
		if err := r.Register(Kinds()...); err != nil {
			panic(fmt.Sprintf("register built-in kinds: %v", err))
		}
		if err := r.Register(DistributionKinds()...); err != nil {
			panic(fmt.Sprintf("register distribution kinds: %v", err))
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

// Lookup is DefaultRegistry().Lookup.
func Lookup(n *xmltree.Node) (Kind, bool) { return DefaultRegistry().Lookup(n) }

// ParseToSnippets is DefaultRegistry().ParseToSnippets.
func ParseToSnippets(n *xmltree.Node) *xmltree.Node { return DefaultRegistry().ParseToSnippets(n) }

// Kinds lists every built-in entity kind except distributions.
func Kinds() []Kind {
	return []Kind{
		{Name: "VariableGroup", Identity: variableGroupID,
			New:   func(name string) Entity { return NewVariableGroup(name) },
			As:    func(n *xmltree.Node) Entity { return AsVariableGroup(n) },
			After: func(e Entity, _ *xmltree.Node) { e.(VariableGroup).normalize() }},
		{Name: "SampledVariable", Identity: sampledVariableID,
			New: func(name string) Entity { return NewSampledVariable(name) },
			As:  func(n *xmltree.Node) Entity { return AsSampledVariable(n) }},

		{Name: "Grid", Identity: Identity{Class: ClassSamplers, Tag: "Grid"},
			New: func(name string) Entity { return NewGrid(name) },
			As:  func(n *xmltree.Node) Entity { return AsGrid(n) }},
		{Name: "MonteCarlo", Identity: Identity{Class: ClassSamplers, Tag: "MonteCarlo"},
			New: func(name string) Entity { return NewMonteCarlo(name) },
			As:  func(n *xmltree.Node) Entity { return AsMonteCarlo(n) }},
		{Name: "Stratified", Identity: Identity{Class: ClassSamplers, Tag: "Stratified"},
			New: func(name string) Entity { return NewStratified(name) },
			As:  func(n *xmltree.Node) Entity { return AsStratified(n) }},
		{Name: "CustomSampler", Identity: Identity{Class: ClassSamplers, Tag: "CustomSampler"},
			New: func(name string) Entity { return NewCustomSampler(name) },
			As:  func(n *xmltree.Node) Entity { return AsCustomSampler(n) }},
		{Name: "EnsembleForward", Identity: Identity{Class: ClassSamplers, Tag: "EnsembleForward"},
			New:   func(name string) Entity { return NewEnsembleForward(name) },
			As:    func(n *xmltree.Node) Entity { return AsEnsembleForward(n) },
			After: materializeChildren},

		{Name: "BayesianOptimizer", Identity: Identity{Class: ClassOptimizers, Tag: "BayesianOptimizer"},
			New: func(name string) Entity { return NewBayesianOptimizer(name) },
			As:  func(n *xmltree.Node) Entity { return AsBayesianOptimizer(n) }},
		{Name: "GradientDescent", Identity: Identity{Class: ClassOptimizers, Tag: "GradientDescent"},
			New: func(name string) Entity { return NewGradientDescent(name) },
			As:  func(n *xmltree.Node) Entity { return AsGradientDescent(n) }},
		acquisitionKind(ExpectedImprovement),
		acquisitionKind(ProbabilityOfImprovement),
		acquisitionKind(LowerConfidenceBound),

		{Name: "RavenCode", Identity: ravenCodeID,
			New: func(name string) Entity { return NewRavenCode(name) },
			As:  func(n *xmltree.Node) Entity { return AsRavenCode(n) }},
		{Name: "GaussianProcessRegressor", Identity: gprID,
			New: func(name string) Entity { return NewGaussianProcessRegressor(name) },
			As:  func(n *xmltree.Node) Entity { return AsGaussianProcessRegressor(n) }},
		{Name: "EnsembleModel", Identity: ensembleModelID,
			New: func(name string) Entity { return NewEnsembleModel(name) },
			As:  func(n *xmltree.Node) Entity { return AsEnsembleModel(n) }},
		{Name: "EconomicRatioPostProcessor", Identity: economicRatioID,
			New: func(name string) Entity { return NewEconomicRatioPostProcessor(name) },
			As:  func(n *xmltree.Node) Entity { return AsEconomicRatioPostProcessor(n) }},
		{Name: "ExternalModel", Identity: externalModelID,
			New:   func(name string) Entity { return NewExternalModel(name) },
			As:    func(n *xmltree.Node) Entity { return AsExternalModel(n) },
			After: normalizeList("variables")},
		{Name: "HeronDispatchModel", Identity: dispatchModelID,
			New:   func(name string) Entity { return NewHeronDispatchModel(name) },
			As:    func(n *xmltree.Node) Entity { return AsHeronDispatchModel(n) },
			After: normalizeList("variables")},
		{Name: "PickledROM", Identity: pickledROMID,
			New: func(name string) Entity { return NewPickledROM(name) },
			As:  func(n *xmltree.Node) Entity { return AsPickledROM(n) }},

		{Name: "PointSet", Identity: Identity{Class: ClassDataObjects, Tag: "PointSet"},
			New: func(name string) Entity { return NewPointSet(name) },
			As:  func(n *xmltree.Node) Entity { return AsPointSet(n) }},
		{Name: "HistorySet", Identity: Identity{Class: ClassDataObjects, Tag: "HistorySet"},
			New: func(name string) Entity { return NewHistorySet(name) },
			As:  func(n *xmltree.Node) Entity { return AsHistorySet(n) }},
		{Name: "DataSet", Identity: Identity{Class: ClassDataObjects, Tag: "DataSet"},
			New: func(name string) Entity { return NewDataSet(name) },
			As:  func(n *xmltree.Node) Entity { return AsDataSet(n) }},

		{Name: "NetCDF", Identity: Identity{Class: ClassDatabases, Tag: "NetCDF"},
			New: func(name string) Entity { return NewNetCDF(name) },
			As:  func(n *xmltree.Node) Entity { return AsNetCDF(n) }},
		{Name: "HDF5", Identity: Identity{Class: ClassDatabases, Tag: "HDF5"},
			New: func(name string) Entity { return NewHDF5(name) },
			As:  func(n *xmltree.Node) Entity { return AsHDF5(n) }},

		{Name: "File", Identity: fileID,
			New: func(name string) Entity { return NewFile(name, "") },
			As:  func(n *xmltree.Node) Entity { return AsFile(n) }},

		{Name: "PrintOutStream", Identity: printID,
			New: func(name string) Entity { return NewPrintOutStream(name) },
			As:  func(n *xmltree.Node) Entity { return AsPrintOutStream(n) }},
		{Name: "OptPathPlot", Identity: optPathID,
			New: func(name string) Entity { return NewOptPathPlot(name) },
			As:  func(n *xmltree.Node) Entity { return AsOptPathPlot(n) }},
		{Name: "HeronDispatchPlot", Identity: dispatchPlotID,
			New: func(name string) Entity { return NewHeronDispatchPlot(name) },
			As:  func(n *xmltree.Node) Entity { return AsHeronDispatchPlot(n) }},
		{Name: "TealCashFlowPlot", Identity: cashFlowPlotID,
			New: func(name string) Entity { return NewTealCashFlowPlot(name) },
			As:  func(n *xmltree.Node) Entity { return AsTealCashFlowPlot(n) }},

		{Name: "IOStep", Identity: Identity{Class: ClassSteps, Tag: "IOStep"}, MatchText: true,
			New: func(name string) Entity { return NewIOStep(name) },
			As:  func(n *xmltree.Node) Entity { return AsIOStep(n) }},
		{Name: "MultiRun", Identity: Identity{Class: ClassSteps, Tag: "MultiRun"}, MatchText: true,
			New: func(name string) Entity { return NewMultiRun(name) },
			As:  func(n *xmltree.Node) Entity { return AsMultiRun(n) }},
		{Name: "PostProcess", Identity: Identity{Class: ClassSteps, Tag: "PostProcess"}, MatchText: true,
			New: func(name string) Entity { return NewPostProcess(name) },
			As:  func(n *xmltree.Node) Entity { return AsPostProcess(n) }},

		{Name: "RunInfo", Identity: runInfoID,
			New: func(string) Entity { return NewRunInfo() },
			As:  func(n *xmltree.Node) Entity { return AsRunInfo(n) }},
	}
}

func acquisitionKind(name string) Kind {
	return Kind{
		Name:     name,
		Identity: Identity{Tag: name},
		New: func(string) Entity {
			a, _ := NewAcquisition(name, nil)
			return a
		},
		As: func(n *xmltree.Node) Entity { return AcquisitionFunction{wrap(n, Identity{Tag: name})} },
	}
}

// DistributionKinds synthesizes one kind per entry of the distribution table.
func DistributionKinds() []Kind {
	var kinds []Kind
	for _, spec := range DistributionSpecs() {
		tag := spec.Name
		kinds = append(kinds, Kind{
			Name:     tag,
			Identity: Identity{Class: ClassDistributions, Tag: tag},
			New: func(name string) Entity {
				d, _ := NewDistribution(tag, name)
				return d
			},
			As: func(n *xmltree.Node) Entity { return AsDistribution(n) },
		})
	}
	return kinds
}

func materializeChildren(e Entity, _ *xmltree.Node) {
	n := e.Node()
	for i, c := range n.Children {
		n.Children[i] = DefaultRegistry().Materialize(c)
	}
}

func normalizeList(tag string) func(Entity, *xmltree.Node) {
	return func(e Entity, _ *xmltree.Node) {
		v := NewListView(e.Node(), tag)
		if e.Node().Child(tag) != nil {
			v.Replace(v.Items()...)
		}
	}
}
