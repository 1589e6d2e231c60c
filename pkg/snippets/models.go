package snippets

import (
	"fmt"

	"github.com/ormasoftchile/ravenwf/pkg/xmltree"
)

// DefaultAliasLocation is the inner sampler most aliases point into.
const DefaultAliasLocation = "Samplers|MonteCarlo@name:mc_arma_dispatch"

var ravenCodeID = Identity{Class: ClassModels, Tag: "Code", Subtype: "RAVEN"}

// RavenCode is a <Code subType="RAVEN"> model that runs an inner workflow.
type RavenCode struct{ Base }

// NewRavenCode creates a RAVEN code model.
func NewRavenCode(name string) RavenCode { return RavenCode{newBase(ravenCodeID, name)} }

// AsRavenCode wraps an existing <Code subType="RAVEN"> node.
func AsRavenCode(n *xmltree.Node) RavenCode { return RavenCode{wrap(n, ravenCodeID)} }

// AddAlias maps an outer variable onto an inner constant. The variable name
// is name, or name_suffix when suffix is set. An empty loc uses
// DefaultAliasLocation.
func (m RavenCode) AddAlias(name, suffix, loc string) {
	variable := name
	if suffix != "" {
		variable = name + "_" + suffix
	}
	if loc == "" {
		loc = DefaultAliasLocation
	}
	alias := m.node.SubElement("alias",
		xmltree.Attr{Name: "variable", Value: variable},
		xmltree.Attr{Name: "type", Value: "input"})
	alias.Text = fmt.Sprintf("%s|constant@name:%s", loc, variable)
}

// Alias is one outer-to-inner variable mapping.
type Alias struct {
	Variable string
	Location string
}

// Aliases lists the aliases in document order.
func (m RavenCode) Aliases() []Alias {
	var out []Alias
	for _, c := range m.node.Children {
		if c.Tag == "alias" {
			out = append(out, Alias{Variable: c.Get("variable"), Location: c.TextString()})
		}
	}
	return out
}

// Inner-to-outer hand-off formats.
const (
	HandoffCSV    = "csv"
	HandoffNetCDF = "netcdf"
)

// SetInnerDataHandling routes the inner results to the outer workflow via a
// CSV outstream or a NetCDF database named dest.
func (m RavenCode) SetInnerDataHandling(dest, destType string) error {
	var remove, keep string
	switch destType {
	case HandoffCSV:
		remove, keep = "outputDatabase", "outputExportOutStreams"
	case HandoffNetCDF:
		remove, keep = "outputExportOutStreams", "outputDatabase"
	default:
		return fmt.Errorf("inner results must go through a csv Print outstream or a netcdf database, got %q: %w", destType, ErrValue)
	}
	if n := m.node.Child(remove); n != nil {
		m.node.Remove(n)
	}
	m.setText(keep, dest)
	return nil
}

// Executable returns the RAVEN executable path, or "".
func (m RavenCode) Executable() string { return m.text("executable") }

// SetExecutable sets the RAVEN executable path.
func (m RavenCode) SetExecutable(path string) { m.setText("executable", path) }

// PythonCommand returns the prepended python command, or "".
func (m RavenCode) PythonCommand() string {
	if n := xmltree.Find(m.node, "clargs[@type='prepend']"); n != nil {
		return n.Get("arg")
	}
	return ""
}

// SetPythonCommand sets the command prepended to the RAVEN invocation.
func (m RavenCode) SetPythonCommand(cmd string) {
	xmltree.MustFindOrCreate(m.node, "clargs[@type='prepend']").Set("arg", cmd)
}

var gprID = Identity{Class: ClassModels, Tag: "ROM", Subtype: "GaussianProcessRegressor"}

// GaussianProcessRegressor is the surrogate model used by Bayesian
// optimization.
type GaussianProcessRegressor struct{ Base }

func gprDefaults() []Elem {
	return []Elem{
		{Tag: "alpha", Value: 1e-8},
		{Tag: "n_restarts_optimizer", Value: 5},
		{Tag: "normalize_y", Value: true},
		{Tag: "kernel", Value: "Custom"},
		{Tag: "custom_kernel", Value: "(Constant*Matern)"},
		{Tag: "anisotropic", Value: true},
		{Tag: "multioutput", Value: false},
	}
}

// NewGaussianProcessRegressor creates a GPR model with default settings.
func NewGaussianProcessRegressor(name string) GaussianProcessRegressor {
	return GaussianProcessRegressor{newBase(gprID, name, gprDefaults()...)}
}

// AsGaussianProcessRegressor wraps an existing GPR node.
func AsGaussianProcessRegressor(n *xmltree.Node) GaussianProcessRegressor {
	return GaussianProcessRegressor{wrap(n, gprID)}
}

// Features is the live list of feature variables.
func (m GaussianProcessRegressor) Features() *ListView { return m.list("Features") }

// Target is the live list of target variables.
func (m GaussianProcessRegressor) Target() *ListView { return m.list("Target") }

// CustomKernel returns the kernel expression.
func (m GaussianProcessRegressor) CustomKernel() string { return m.text("custom_kernel") }

// SetCustomKernel sets the kernel expression.
func (m GaussianProcessRegressor) SetCustomKernel(kernel string) { m.setText("custom_kernel", kernel) }

var ensembleModelID = Identity{Class: ClassModels, Tag: "EnsembleModel"}

// EnsembleModel chains several models, each with its input and target
// evaluation data objects.
type EnsembleModel struct{ Base }

// NewEnsembleModel creates an EnsembleModel.
func NewEnsembleModel(name string) EnsembleModel {
	return EnsembleModel{newBase(ensembleModelID, name)}
}

// AsEnsembleModel wraps an existing <EnsembleModel> node.
func AsEnsembleModel(n *xmltree.Node) EnsembleModel { return EnsembleModel{wrap(n, ensembleModelID)} }

// AddModel adds a <Model> reference with nested Input and TargetEvaluation
// references. A model already in the ensemble is left unchanged.
func (m EnsembleModel) AddModel(model, input, target Entity) error {
	ref, err := model.ToReference("Model")
	if err != nil {
		return fmt.Errorf("ensemble %q: %w", m.Name(), err)
	}
	for _, c := range m.node.Children {
		if c.Tag == "Model" && c.TextString() == ref.TextString() {
			return nil
		}
	}
	in, err := input.ToReference("Input")
	if err != nil {
		return fmt.Errorf("ensemble %q: %w", m.Name(), err)
	}
	tgt, err := target.ToReference("TargetEvaluation")
	if err != nil {
		return fmt.Errorf("ensemble %q: %w", m.Name(), err)
	}
	ref.Append(in, tgt)
	m.node.Append(ref)
	return nil
}

// Models lists the model names in the ensemble.
func (m EnsembleModel) Models() []string {
	var names []string
	for _, c := range m.node.Children {
		if c.Tag == "Model" {
			names = append(names, c.TextString())
		}
	}
	return names
}

var economicRatioID = Identity{Class: ClassModels, Tag: "PostProcessor", Subtype: "EconomicRatio"}

// EconomicRatioPostProcessor computes statistics over economic metrics.
type EconomicRatioPostProcessor struct{ Base }

// NewEconomicRatioPostProcessor creates an EconomicRatio post-processor.
func NewEconomicRatioPostProcessor(name string) EconomicRatioPostProcessor {
	return EconomicRatioPostProcessor{newBase(economicRatioID, name)}
}

// AsEconomicRatioPostProcessor wraps an existing EconomicRatio node.
func AsEconomicRatioPostProcessor(n *xmltree.Node) EconomicRatioPostProcessor {
	return EconomicRatioPostProcessor{wrap(n, economicRatioID)}
}

// AddStatistic adds <tag prefix=".." attrs..>variable</tag>. An identical
// statistic is not added twice.
func (p EconomicRatioPostProcessor) AddStatistic(tag, prefix, variable string, attrs ...xmltree.Attr) {
	stat := xmltree.New(tag, append([]xmltree.Attr{{Name: "prefix", Value: prefix}}, attrs...)...)
	stat.Text = variable
	for _, c := range p.node.Children {
		if c.Tag == tag && c.SameAttrs(stat) && c.TextString() == variable {
			return
		}
	}
	p.node.Append(stat)
}

// Statistics returns the number of statistic children.
func (p EconomicRatioPostProcessor) Statistics() int { return len(p.node.Children) }

var externalModelID = Identity{Class: ClassModels, Tag: "ExternalModel"}

// ExternalModel is a model implemented outside the workflow engine.
type ExternalModel struct{ Base }

// NewExternalModel creates an ExternalModel.
func NewExternalModel(name string) ExternalModel { return ExternalModel{newBase(externalModelID, name)} }

// AsExternalModel wraps an existing <ExternalModel> node.
func AsExternalModel(n *xmltree.Node) ExternalModel {
	return ExternalModel{wrap(n, Identity{Class: ClassModels, Tag: "ExternalModel", Subtype: n.Get("subType")})}
}

// Variables is the live list of model variables.
func (m ExternalModel) Variables() *ListView { return m.list("variables") }

var dispatchModelID = Identity{Class: ClassModels, Tag: "ExternalModel", Subtype: "HERON.DispatchManager"}

// HeronDispatchModel is the external dispatch manager model.
type HeronDispatchModel struct{ ExternalModel }

// NewHeronDispatchModel creates a dispatch manager model.
func NewHeronDispatchModel(name string) HeronDispatchModel {
	return HeronDispatchModel{ExternalModel{newBase(dispatchModelID, name)}}
}

// AsHeronDispatchModel wraps an existing dispatch manager node.
func AsHeronDispatchModel(n *xmltree.Node) HeronDispatchModel {
	return HeronDispatchModel{ExternalModel{wrap(n, dispatchModelID)}}
}

var pickledROMID = Identity{Class: ClassModels, Tag: "ROM", Subtype: "pickledROM"}

// PickledROM is a serialized reduced-order model loaded from a file.
type PickledROM struct{ Base }

// NewPickledROM creates a pickled ROM model.
func NewPickledROM(name string) PickledROM { return PickledROM{newBase(pickledROMID, name)} }

// AsPickledROM wraps an existing pickled ROM node.
func AsPickledROM(n *xmltree.Node) PickledROM { return PickledROM{wrap(n, pickledROMID)} }

// SetCycles sets Multicycle/cycles for multi-year sampling.
func (m PickledROM) SetCycles(n int) { m.setText("Multicycle/cycles", n) }

// SetMaxCycles sets maxCycles, limiting interpolation.
func (m PickledROM) SetMaxCycles(n int) { m.setText("maxCycles", n) }

// SetClustered enables clustered evaluation.
func (m PickledROM) SetClustered() { m.setText("clusterEvalMode", "clustered") }
