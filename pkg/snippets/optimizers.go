package snippets

import (
	"fmt"
	"sort"

	"github.com/ormasoftchile/ravenwf/pkg/xmltree"
)

// OptSettings are the user-facing optimizer settings. Zero values mean
// "keep the default".
type OptSettings struct {
	// Convergence criteria written under <convergence>, by criterion tag.
	Convergence map[string]any
	Persistence int
	Limit       int
	// Type is "min" or "max".
	Type string

	// Bayesian optimization.
	Acquisition    string
	Seed           *int
	ModelSelection map[string]any

	// Gradient descent step sizing.
	GrowthFactor     float64
	ShrinkFactor     float64
	InitialStepScale float64
}

// Optimizer is the common view for every entity in the Optimizers section.
// It shares the sampled-variable and constant handling of samplers.
type Optimizer struct{ sampling }

func newOptimizer(tag, name string, elems ...Elem) Optimizer {
	return Optimizer{sampling{newBase(Identity{Class: ClassOptimizers, Tag: tag}, name, elems...)}}
}

// AsOptimizer wraps any optimizer node.
func AsOptimizer(n *xmltree.Node) Optimizer {
	return Optimizer{sampling{wrap(n, Identity{Class: ClassOptimizers, Tag: n.Tag})}}
}

// SetOptSettings applies the settings common to all optimizers:
// convergence criteria, persistence and samplerInit limit/type.
func (o Optimizer) SetOptSettings(s OptSettings) {
	conv := xmltree.MustFindOrCreate(o.node, "convergence")
	keys := make([]string, 0, len(s.Convergence))
	for k := range s.Convergence {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		xmltree.MustFindOrCreate(conv, k).Text = s.Convergence[k]
	}
	if s.Persistence > 0 {
		xmltree.MustFindOrCreate(conv, "persistence").Text = s.Persistence
	}
	samplerInit := xmltree.MustFindOrCreate(o.node, "samplerInit")
	if s.Limit > 0 {
		xmltree.MustFindOrCreate(samplerInit, "limit").Text = s.Limit
	}
	if s.Type != "" {
		xmltree.MustFindOrCreate(samplerInit, "type").Text = s.Type
	}
}

// Objective returns the objective variable name, or "".
func (o Optimizer) Objective() string { return o.text("objective") }

// SetObjective sets the objective variable.
func (o Optimizer) SetObjective(name string) { o.setText("objective", name) }

// TargetEvaluation returns the name of the target evaluation data object.
func (o Optimizer) TargetEvaluation() string { return o.text("TargetEvaluation") }

// SetTargetEvaluation points the optimizer at a data object.
func (o Optimizer) SetTargetEvaluation(target Entity) error {
	if target.Identity().Class != ClassDataObjects {
		return fmt.Errorf("optimizer %q: target evaluation must be a data object, got %s <%s>: %w",
			o.Name(), target.Identity().Class, target.Identity().Tag, ErrWrongClass)
	}
	return o.setReference("TargetEvaluation", target)
}

// BayesianOptimizer drives a Gaussian-process surrogate with an acquisition
// function.
type BayesianOptimizer struct{ Optimizer }

func bayesianDefaults() []Elem {
	return []Elem{
		{Tag: "samplerInit", Value: []Elem{
			{Tag: "limit", Value: 100},
			{Tag: "type", Value: "max"},
			{Tag: "writeSteps", Value: "every"},
		}},
		{Tag: "ModelSelection", Value: []Elem{
			{Tag: "Duration", Value: 1},
			{Tag: "Method", Value: "Internal"},
		}},
		{Tag: "convergence", Value: []Elem{
			{Tag: "acquisition", Value: 1e-5},
			{Tag: "persistence", Value: 4},
		}},
		{Tag: "Acquisition", Value: []Elem{}},
	}
}

// NewBayesianOptimizer creates a BayesianOptimizer with default settings.
func NewBayesianOptimizer(name string) BayesianOptimizer {
	return BayesianOptimizer{newOptimizer("BayesianOptimizer", name, bayesianDefaults()...)}
}

// AsBayesianOptimizer wraps an existing <BayesianOptimizer> node.
func AsBayesianOptimizer(n *xmltree.Node) BayesianOptimizer {
	return BayesianOptimizer{Optimizer{sampling{wrap(n, Identity{Class: ClassOptimizers, Tag: "BayesianOptimizer"})}}}
}

// SetOptSettings applies the common settings, replaces the acquisition
// function (ExpectedImprovement by default), and applies the seed and model
// selection settings.
func (o BayesianOptimizer) SetOptSettings(s OptSettings) error {
	o.Optimizer.SetOptSettings(s)

	name := s.Acquisition
	if name == "" {
		name = DefaultAcquisition
	}
	acq, err := NewAcquisition(name, nil)
	if err != nil {
		return fmt.Errorf("optimizer %q: %w", o.Name(), err)
	}
	node := xmltree.MustFindOrCreate(o.node, "Acquisition")
	node.Children = nil
	node.Append(acq.Node())

	if s.Seed != nil {
		o.setText("samplerInit/initialSeed", *s.Seed)
	}
	sel := xmltree.MustFindOrCreate(o.node, "ModelSelection")
	for _, e := range sortedElems(s.ModelSelection) {
		xmltree.MustFindOrCreate(sel, e.Tag).Text = e.Value
	}
	return nil
}

// Acquisition returns the tag of the configured acquisition function, or "".
func (o BayesianOptimizer) Acquisition() string {
	n := xmltree.Find(o.node, "Acquisition")
	if n == nil || len(n.Children) == 0 {
		return ""
	}
	return n.Children[0].Tag
}

// SetSampler sets the <Sampler> reference used for the initial design.
func (o BayesianOptimizer) SetSampler(s Entity) error { return o.setReference("Sampler", s) }

// SetROM sets the <ROM> reference to the surrogate model.
func (o BayesianOptimizer) SetROM(rom Entity) error { return o.setReference("ROM", rom) }

// Acquisition function names.
const (
	ExpectedImprovement      = "ExpectedImprovement"
	ProbabilityOfImprovement = "ProbabilityOfImprovement"
	LowerConfidenceBound     = "LowerConfidenceBound"
	DefaultAcquisition       = ExpectedImprovement
)

var acquisitionDefaults = map[string][]Elem{
	ExpectedImprovement: {
		{Tag: "optimizationMethod", Value: "differentialEvolution"},
		{Tag: "seedingCount", Value: 30},
	},
	ProbabilityOfImprovement: {
		{Tag: "optimizationMethod", Value: "differentialEvolution"},
		{Tag: "seedingCount", Value: 30},
		{Tag: "epsilon", Value: 1},
		{Tag: "rho", Value: 20},
		{Tag: "transient", Value: "Constant"},
	},
	LowerConfidenceBound: {
		{Tag: "optimizationMethod", Value: "differentialEvolution"},
		{Tag: "seedingCount", Value: 30},
		{Tag: "pi", Value: 0.98},
		{Tag: "transient", Value: "Constant"},
	},
}

// AcquisitionFunction is one acquisition function block.
type AcquisitionFunction struct{ Base }

// AcquisitionNames lists the supported acquisition functions.
func AcquisitionNames() []string {
	return []string{ExpectedImprovement, ProbabilityOfImprovement, LowerConfidenceBound}
}

// NewAcquisition builds an acquisition function with its defaults, applying
// overrides by tag.
func NewAcquisition(name string, overrides map[string]any) (AcquisitionFunction, error) {
	defaults, ok := acquisitionDefaults[name]
	if !ok {
		return AcquisitionFunction{}, fmt.Errorf("unknown acquisition function %q (allowed: %v): %w",
			name, AcquisitionNames(), ErrValue)
	}
	elems := make([]Elem, 0, len(defaults))
	for _, e := range defaults {
		if v, ok := overrides[e.Tag]; ok {
			e.Value = v
		}
		elems = append(elems, e)
	}
	return AcquisitionFunction{newBase(Identity{Tag: name}, "", elems...)}, nil
}

// GradientDescent is a gradient-based optimizer with history-driven step
// sizing.
type GradientDescent struct{ Optimizer }

func gradientDefaults() []Elem {
	return []Elem{
		{Tag: "samplerInit", Value: []Elem{
			{Tag: "limit", Value: 800},
			{Tag: "type", Value: "max"},
			{Tag: "writeSteps", Value: "every"},
		}},
		{Tag: "gradient", Value: []Elem{{Tag: "FiniteDifference", Value: ""}}},
		{Tag: "convergence", Value: []Elem{
			{Tag: "persistence", Value: 1},
			{Tag: "gradient", Value: 1e-4},
			{Tag: "objective", Value: 1e-8},
		}},
		{Tag: "stepSize", Value: []Elem{
			{Tag: "GradientHistory", Value: []Elem{
				{Tag: "growthFactor", Value: 2},
				{Tag: "shrinkFactor", Value: 1.5},
				{Tag: "initialStepScale", Value: 0.2},
			}},
		}},
		{Tag: "acceptance", Value: []Elem{{Tag: "Strict", Value: ""}}},
	}
}

// NewGradientDescent creates a GradientDescent optimizer with default
// settings.
func NewGradientDescent(name string) GradientDescent {
	return GradientDescent{newOptimizer("GradientDescent", name, gradientDefaults()...)}
}

// AsGradientDescent wraps an existing <GradientDescent> node.
func AsGradientDescent(n *xmltree.Node) GradientDescent {
	return GradientDescent{Optimizer{sampling{wrap(n, Identity{Class: ClassOptimizers, Tag: "GradientDescent"})}}}
}

// SetOptSettings applies the common settings and the step-size factors.
func (o GradientDescent) SetOptSettings(s OptSettings) error {
	o.Optimizer.SetOptSettings(s)
	for _, e := range []Elem{
		{Tag: "growthFactor", Value: s.GrowthFactor},
		{Tag: "shrinkFactor", Value: s.ShrinkFactor},
		{Tag: "initialStepScale", Value: s.InitialStepScale},
	} {
		if e.Value.(float64) != 0 {
			o.setText("stepSize/GradientHistory/"+e.Tag, e.Value)
		}
	}
	return nil
}
