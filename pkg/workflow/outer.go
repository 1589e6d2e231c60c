package workflow

import (
	"fmt"
	"slices"

	"github.com/ormasoftchile/ravenwf/pkg/heron"
	"github.com/ormasoftchile/ravenwf/pkg/naming"
	"github.com/ormasoftchile/ravenwf/pkg/snippets"
)

// DefaultExecutable is the RAVEN launcher the outer workflow calls when the
// driver sets none.
const DefaultExecutable = "raven_framework"

// Outer is the outer level of a bilevel workflow: it proposes capacities
// and hands each proposal to the inner workflow through a RAVEN code model.
type Outer struct {
	*Template
	// Executable overrides DefaultExecutable.
	Executable string
}

func loadOuter(c heron.Case) (*Outer, error) {
	name := OuterSweep
	switch c.Mode() {
	case heron.ModeSweep:
	case heron.ModeOpt:
		name = OuterOpt
	default:
		return nil, &ModeError{Mode: c.Mode()}
	}
	t, err := LoadTemplate(name, OuterFile)
	if err != nil {
		return nil, err
	}
	return &Outer{Template: t}, nil
}

// Create fills the outer template. innerSampler is the alias location of
// the inner sampler every outer variable is forwarded to.
func (o *Outer) Create(c heron.Case, comps []heron.Component, sources []heron.Source, innerSampler string) error {
	ri, err := o.initializeRunInfo(c, "o")
	if err != nil {
		return err
	}
	runInfoParallel(ri, c)
	if n := c.InnerParallel(); n > 0 {
		ri.SetNumMPI(n)
	}
	if err := o.configureRavenModel(c, comps, innerSampler); err != nil {
		return err
	}
	if err := o.updateVargroups(c, comps); err != nil {
		return err
	}

	switch o.Name {
	case OuterSweep:
		err = o.createSweep(c, comps)
	case OuterOpt:
		err = o.createOpt(c, comps, sources)
	}
	if err != nil {
		return fmt.Errorf("create %s: %w", o.Name, err)
	}
	o.log.Infow("Created outer workflow", "template", o.Name, "case", c.Name())
	return nil
}

func (o *Outer) ravenModel() (snippets.RavenCode, error) {
	n, err := o.require("Models/Code[@subType='RAVEN']")
	if err != nil {
		return snippets.RavenCode{}, err
	}
	return snippets.AsRavenCode(n), nil
}

// configureRavenModel points the code model at the RAVEN launcher and
// aliases every outer variable onto a constant of the inner sampler.
func (o *Outer) configureRavenModel(c heron.Case, comps []heron.Component, innerSampler string) error {
	raven, err := o.ravenModel()
	if err != nil {
		return err
	}
	exe := o.Executable
	if exe == "" {
		exe = DefaultExecutable
	}
	raven.SetExecutable(exe)
	if cmd := c.PythonCommand(); cmd != "" {
		raven.SetPythonCommand(cmd)
	}

	raven.AddAlias("denoises", "", innerSampler)
	for _, comp := range comps {
		raven.AddAlias(comp.Name(), "capacity", innerSampler)
	}
	for _, l := range c.Labels() {
		raven.AddAlias(l.Key, "label", innerSampler)
	}
	return nil
}

func (o *Outer) updateVargroups(c heron.Case, comps []heron.Component) error {
	caps, err := naming.CapacityVars(comps, c.Debug().Enabled)
	if err != nil {
		return err
	}
	if err := o.extendGroup(naming.CapacityNames(caps), "GRO_capacities"); err != nil {
		return err
	}
	results, err := statisticalResultsVars(c, comps, naming.DefaultStatsNames)
	if err != nil {
		return err
	}
	return o.extendGroup(results, "GRO_outer_results")
}

func (o *Outer) createSweep(c heron.Case, comps []heron.Component) error {
	n, err := o.require("Samplers/Grid")
	if err != nil {
		return err
	}
	grid := snippets.AsGrid(n)
	sampled, consts, err := o.createSamplerVariables(c, comps)
	if err != nil {
		return err
	}
	for _, sv := range sampled {
		vals := slices.Sorted(slices.Values(sv.Values))
		if err := sv.Var.UseGrid(snippets.GridCustom, snippets.GridValue, 0, vals); err != nil {
			return err
		}
		if err := grid.AddVariable(sv.Var); err != nil {
			return err
		}
	}
	if err := addConstants(grid, consts); err != nil {
		return err
	}
	grid.SetDenoises(c.NumSamples())

	if labels := c.Labels(); len(labels) > 0 {
		n, err := o.require("DataObjects/PointSet[@name='grid']")
		if err != nil {
			return err
		}
		g := newCaseLabelsGroup(labels)
		if err := o.add(g); err != nil {
			return err
		}
		snippets.AsPointSet(n).Outputs().Append(g.Name())
		if err := addLabelsToSampler(grid, labels); err != nil {
			return err
		}
	}
	return o.setBatchSize(c, grid.NumSampledVars())
}

func (o *Outer) createOpt(c heron.Case, comps []heron.Component, sources []heron.Source) error {
	var (
		opt       snippets.Optimizer
		sampledVs int
		err       error
	)
	strategy := heron.StrategyBayesianOpt
	if s := c.OptimizationSettings(); s != nil && s.Strategy != "" {
		strategy = s.Strategy
	}
	switch strategy {
	case heron.StrategyBayesianOpt:
		var bo snippets.BayesianOptimizer
		bo, err = o.createBayesianOpt(c, comps)
		opt, sampledVs = bo.Optimizer, bo.NumSampledVars()
	case heron.StrategyGradientDescent:
		var gd snippets.GradientDescent
		gd, err = o.createGradientDescent(c, comps)
		opt, sampledVs = gd.Optimizer, gd.NumSampledVars()
	default:
		return &StrategyError{Strategy: strategy}
	}
	if err != nil {
		return err
	}

	evalNode, err := o.require("DataObjects/PointSet[@name='opt_eval']")
	if err != nil {
		return err
	}
	if err := opt.SetTargetEvaluation(snippets.AsPointSet(evalNode)); err != nil {
		return err
	}
	objective, err := naming.OptObjective(c)
	if err != nil {
		return err
	}
	opt.SetObjective(objective)
	results, err := o.group("GRO_outer_results")
	if err != nil {
		return err
	}
	if !results.Contains(objective) {
		results.Add(objective)
	}

	if labels := c.Labels(); len(labels) > 0 {
		if err := addLabelsToSampler(opt, labels); err != nil {
			return err
		}
	}

	stepNode, err := o.require("Steps/MultiRun[@name='optimize']")
	if err != nil {
		return err
	}
	step := snippets.AsMultiRun(stepNode)
	files, err := o.functionFiles(sources)
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := step.AddInput(f); err != nil {
			return err
		}
	}
	if err := step.AddOptimizer(opt); err != nil {
		return err
	}

	plotNode, err := o.require("OutStreams/Plot[@subType='OptPath']")
	if err != nil {
		return err
	}
	if vars := snippets.AsOptPathPlot(plotNode).Variables(); !vars.Contains(objective) {
		vars.Append(objective)
	}
	return o.setBatchSize(c, sampledVs)
}
