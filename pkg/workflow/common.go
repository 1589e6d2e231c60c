package workflow

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ormasoftchile/ravenwf/pkg/heron"
	"github.com/ormasoftchile/ravenwf/pkg/naming"
	"github.com/ormasoftchile/ravenwf/pkg/snippets"
	"github.com/ormasoftchile/ravenwf/pkg/xmltree"
)

const (
	caseLabelsGroup = "GRO_case_labels"
	econUQGroup     = "GRO_UQ"
	scalingVar      = "scaling"
)

// statsNames returns the mode defaults followed by the case's requested
// statistics, without duplicates.
func statsNames(c heron.Case, defaults func(mode string) []string) []string {
	return naming.Unique(append(defaults(c.Mode()), c.ResultStatistics()...))
}

func nonFinancial(names []string) []string {
	var out []string
	for _, n := range names {
		if !naming.IsFinancial(n) {
			out = append(out, n)
		}
	}
	return out
}

// statisticalResultsVars names every statistic the inner workflow reports:
// all statistics of the economic metrics, then the non-financial
// statistics of the total activity variables. In opt mode the objective is
// guaranteed to be present.
func statisticalResultsVars(c heron.Case, comps []heron.Component, defaults func(string) []string) ([]string, error) {
	names := statsNames(c, defaults)
	meta := c.StatsMetricsMeta()
	vars, err := naming.ResultStats(c.EconMetrics(), names, meta)
	if err != nil {
		return nil, err
	}
	activity := naming.ComponentActivityVars(comps, naming.TotalActivity)
	activityStats, err := naming.ResultStats(activity, nonFinancial(names), meta)
	if err != nil {
		return nil, err
	}
	vars = append(vars, activityStats...)
	if c.Mode() == heron.ModeOpt {
		objective, err := naming.OptObjective(c)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(vars, objective) {
			vars = slices.Insert(vars, 0, objective)
		}
	}
	return vars, nil
}

// deterministicResultsVars names the per-run results of a single-history
// workflow: the economic metrics and total activity variables.
func deterministicResultsVars(c heron.Case, comps []heron.Component) []string {
	return append(c.EconMetrics(), naming.ComponentActivityVars(comps, naming.TotalActivity)...)
}

// statVar is a statistic applied to one variable.
type statVar struct {
	Stat     naming.Statistic
	Variable string
}

// statsForEconPostprocessor pairs every statistic with the variables it is
// computed for, in the order the post-processor lists them.
func statsForEconPostprocessor(c heron.Case, econVars, activityVars []string, defaults func(string) []string) ([]statVar, error) {
	names := statsNames(c, defaults)
	meta := c.StatsMetricsMeta()
	econStats, err := naming.Statistics(names, meta)
	if err != nil {
		return nil, err
	}
	activityStats, err := naming.Statistics(nonFinancial(names), meta)
	if err != nil {
		return nil, err
	}
	var out []statVar
	for _, s := range econStats {
		for _, v := range econVars {
			out = append(out, statVar{s, v})
		}
	}
	for _, s := range activityStats {
		for _, v := range activityVars {
			out = append(out, statVar{s, v})
		}
	}
	if c.Mode() == heron.ModeOpt {
		optStats, err := naming.Statistics([]string{naming.OptStatistic(c)}, meta)
		if err != nil {
			return nil, err
		}
		target := statVar{optStats[0], naming.OptTarget(c)}
		if !slices.Contains(out, target) {
			out = append(out, target)
		}
	}
	return out, nil
}

// sampledVar is a sampled variable and the values it was built from.
type sampledVar struct {
	Var    snippets.SampledVariable
	Values []float64
}

// constVar is a capacity or dispatch variable with a fixed value.
type constVar struct {
	Name  string
	Value float64
}

// newSampledCapacity adds a Uniform distribution spanning vals and returns
// a variable sampled from it.
func (t *Template) newSampledCapacity(name string, vals []float64) (snippets.SampledVariable, error) {
	dist := snippets.NewUniform(naming.DistributionFor(name))
	dist.SetLowerBound(slices.Min(vals))
	dist.SetUpperBound(slices.Max(vals))
	if err := t.add(dist); err != nil {
		return snippets.SampledVariable{}, err
	}
	v := snippets.NewSampledVariable(name)
	v.SetDistribution(dist.Name())
	return v, nil
}

// createSamplerVariables builds the sampled variables (dispatch variables
// and capacities with a list of values) and the constants (capacities with
// a single value). Non-parametric capacities are resolved in the dispatch
// and are skipped.
func (t *Template) createSamplerVariables(c heron.Case, comps []heron.Component) ([]sampledVar, []constVar, error) {
	debug := c.Debug().Enabled
	var sampled []sampledVar
	var consts []constVar

	for _, dv := range c.DispatchVars() {
		val := dv.Value.Value(debug)
		if !val.List || len(val.Values) == 0 {
			continue
		}
		v, err := t.newSampledCapacity(naming.VariableName(dv.Name, "dispatch"), val.Values)
		if err != nil {
			return nil, nil, err
		}
		sampled = append(sampled, sampledVar{v, val.Values})
	}

	for _, comp := range comps {
		capacity := comp.Capacity()
		if !capacity.IsParametric() {
			continue
		}
		name := naming.VariableName(comp.Name(), "capacity")
		val := capacity.Value(debug)
		if val.List && len(val.Values) > 0 {
			v, err := t.newSampledCapacity(name, val.Values)
			if err != nil {
				return nil, nil, err
			}
			sampled = append(sampled, sampledVar{v, val.Values})
			continue
		}
		consts = append(consts, constVar{name, val.First()})
	}
	return sampled, consts, nil
}

func addConstants(s snippets.SampledSet, consts []constVar) error {
	for _, cv := range consts {
		if err := s.AddConstant(cv.Name, cv.Value); err != nil {
			return err
		}
	}
	return nil
}

// uncertainCashflowParams builds one distribution and sampled variable per
// uncertain cashflow parameter, named {component}_{cashflow}_{param}.
func uncertainCashflowParams(comps []heron.Component) ([]snippets.SampledVariable, []snippets.Distribution, error) {
	var vars []snippets.SampledVariable
	var dists []snippets.Distribution
	for _, comp := range comps {
		for _, cf := range comp.Cashflows() {
			for _, up := range cf.UncertainParams() {
				name := naming.VariableName(comp.Name()+"_"+cf.Name(), up.Name)
				dist, err := snippets.NewDistribution(up.Distribution.Type, naming.DistributionFor(name))
				if err != nil {
					return nil, nil, fmt.Errorf("uncertain parameter %s: %w", name, err)
				}
				for _, p := range sortedParams(up.Distribution.Params) {
					if err := dist.SetParam(snippets.AccessorName(p), up.Distribution.Params[p]); err != nil {
						return nil, nil, fmt.Errorf("uncertain parameter %s: %w", name, err)
					}
				}
				v := snippets.NewSampledVariable(name)
				v.SetDistribution(dist.Name())
				vars = append(vars, v)
				dists = append(dists, dist)
			}
		}
	}
	return vars, dists, nil
}

func sortedParams(params map[string]float64) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// labelVar returns {key}_label.
func labelVar(key string) string { return naming.VariableName(key, "label") }

// addLabelsToSampler adds every case label to s as a constant.
func addLabelsToSampler(s snippets.SampledSet, labels []heron.Label) error {
	for _, l := range labels {
		if err := s.AddConstant(labelVar(l.Key), l.Value); err != nil {
			return err
		}
	}
	return nil
}

// newCaseLabelsGroup groups the label variables.
func newCaseLabelsGroup(labels []heron.Label) snippets.VariableGroup {
	g := snippets.NewVariableGroup(caseLabelsGroup)
	for _, l := range labels {
		g.Add(labelVar(l.Key))
	}
	return g
}

// loadFileToObject adds an IOStep reading the source's file into target,
// reusing a Files entry named after the source when the template has one.
func (t *Template) loadFileToObject(src heron.Source, target snippets.Entity) (snippets.IOStep, error) {
	var file snippets.File
	if n := xmltree.Find(t.Root, fmt.Sprintf("Files/Input[@name='%s']", src.Name())); n != nil {
		file = snippets.AsFile(n)
	} else {
		file = snippets.NewFile(src.Name(), src.TargetFile())
		if err := t.add(file); err != nil {
			return snippets.IOStep{}, err
		}
	}
	step := snippets.NewIOStep(naming.Step("read", src.Name()))
	if err := step.AddInput(file); err != nil {
		return snippets.IOStep{}, err
	}
	if err := step.AddOutput(target); err != nil {
		return snippets.IOStep{}, err
	}
	if err := t.add(step); err != nil {
		return snippets.IOStep{}, err
	}
	return step, nil
}

// loadPickledROM builds the file entry, ROM and IOStep loading an ARMA
// source.
func loadPickledROM(src heron.Source) (snippets.File, snippets.PickledROM, snippets.IOStep, error) {
	file := snippets.NewFile(src.Name(), src.TargetFile())
	rom := snippets.NewPickledROM(src.Name())
	if n := src.Multiyear(); n > 0 {
		rom.SetCycles(n)
	}
	if n := src.LimitInterp(); n > 0 {
		rom.SetMaxCycles(n)
	}
	if src.EvalMode() == "clustered" {
		rom.SetClustered()
	}
	step := snippets.NewIOStep(naming.Step("read", src.Name()))
	if err := step.AddInput(file); err != nil {
		return file, rom, step, err
	}
	if err := step.AddOutput(rom); err != nil {
		return file, rom, step, err
	}
	return file, rom, step, nil
}

// printROMMeta builds the data set, outstream and IOStep that print a ROM's
// metadata.
func printROMMeta(rom snippets.Entity) (snippets.DataSet, snippets.PrintOutStream, snippets.IOStep, error) {
	if rom.Identity().Class != snippets.ClassModels {
		return snippets.DataSet{}, snippets.PrintOutStream{}, snippets.IOStep{},
			fmt.Errorf("print metadata of %s: not a model: %w", rom.Name(), snippets.ErrWrongClass)
	}
	ds := snippets.NewDataSet(rom.Name() + "_meta")
	out := snippets.NewPrintOutStream(ds.Name())
	out.SetSource(ds.Name())
	step := snippets.NewIOStep("print_" + ds.Name())
	for _, add := range []func() error{
		func() error { return step.AddInput(rom) },
		func() error { return step.AddOutput(ds) },
		func() error { return step.AddOutput(out) },
	} {
		if err := add(); err != nil {
			return ds, out, step, err
		}
	}
	return ds, out, step, nil
}

// addTimeSeriesROMs loads every ARMA source as a pickled ROM, prints its
// metadata and chains it into ensemble ahead of the dispatch.
func (t *Template) addTimeSeriesROMs(ensemble snippets.EnsembleModel, c heron.Case, sources []heron.Source) error {
	dispatchEvalNode, err := t.require("DataObjects/DataSet[@name='dispatch_eval']")
	if err != nil {
		return err
	}
	dispatchEval := snippets.AsDataSet(dispatchEvalNode)
	armas := heron.SourcesOf(sources, heron.SourceARMA)
	cluster := naming.Cluster()

	if slices.ContainsFunc(armas, func(s heron.Source) bool { return s.EvalMode() == "clustered" }) {
		if err := t.extendGroup([]string{cluster}, "GRO_dispatch"); err != nil {
			return err
		}
		dispatchEval.AddIndex(cluster, "GRO_dispatch_in_Time")
	}

	for _, src := range armas {
		file, rom, load, err := loadPickledROM(src)
		if err != nil {
			return err
		}
		for _, e := range []snippets.Entity{file, rom, load} {
			if err := t.add(e); err != nil {
				return err
			}
		}
		if err := t.addStepToSequence(load, 0); err != nil {
			return err
		}

		meta, out, printStep, err := printROMMeta(rom)
		if err != nil {
			return err
		}
		for _, e := range []snippets.Entity{meta, out, printStep} {
			if err := t.add(e); err != nil {
				return err
			}
		}
		if err := t.addStepToSequence(printStep, 1); err != nil {
			return err
		}

		input := snippets.NewPointSet(naming.DataObjectName(src.Name(), "placeholder"))
		input.Inputs().Append(scalingVar)
		if err := t.add(input); err != nil {
			return err
		}
		vars := src.Variables()
		eval := snippets.NewDataSet(naming.DataObjectName(src.Name(), "samples"))
		eval.Inputs().Append(scalingVar)
		eval.Outputs().Extend(vars...)
		eval.AddIndex(c.TimeName(), vars...)
		eval.AddIndex(c.YearName(), vars...)
		if src.EvalMode() == "clustered" {
			eval.AddIndex(cluster, vars...)
		}
		if err := t.add(eval); err != nil {
			return err
		}
		if err := ensemble.AddModel(rom, input, eval); err != nil {
			return err
		}
		if err := t.extendGroup(vars, "GRO_dispatch_in_Time"); err != nil {
			return err
		}
	}
	return nil
}

// configureStaticHistorySampler reads every CSV source into a DataSet and
// replays it through custom. A nil scaling leaves the scaling constant
// unset.
func (t *Template) configureStaticHistorySampler(custom snippets.CustomSampler, c heron.Case, sources []heron.Source, scaling *float64) error {
	indices := []string{c.YearName(), c.TimeName()}
	if c.Debug().Enabled {
		indices = append(indices, naming.Cluster())
	}
	timeseries, err := t.group("GRO_timeseries")
	if err != nil {
		return err
	}

	for _, src := range heron.SourcesOf(sources, heron.SourceCSV) {
		vars := src.Variables()
		ds := snippets.NewDataSet(src.Name())
		ds.Inputs().Extend(c.TimeName(), c.YearName())
		ds.Outputs().Extend(vars...)
		for _, idx := range indices {
			ds.AddIndex(idx, vars...)
		}
		if err := t.add(ds); err != nil {
			return err
		}

		read, err := t.loadFileToObject(src, ds)
		if err != nil {
			return err
		}
		if err := t.addStepToSequence(read, 0); err != nil {
			return err
		}

		if err := custom.AddSource(ds); err != nil {
			return err
		}
		for _, v := range append(slices.Clone(indices), vars...) {
			if custom.HasVariable(v) {
				continue
			}
			if err := custom.AddVariable(snippets.NewSampledVariable(v)); err != nil {
				return err
			}
		}
		timeseries.Add(vars...)
		timeseries.Add(indices...)
	}

	if scaling != nil && !custom.HasConstant(scalingVar) {
		return custom.AddConstant(scalingVar, *scaling)
	}
	return nil
}

// newEnsembleForward nests samplers in an EnsembleForward sampler.
func newEnsembleForward(name string, samplers ...snippets.Entity) (snippets.EnsembleForward, error) {
	ens := snippets.NewEnsembleForward(name)
	for _, s := range samplers {
		if err := ens.AddSampler(s); err != nil {
			return ens, err
		}
	}
	return ens, nil
}

func optSettings(c heron.Case) snippets.OptSettings {
	s := c.OptimizationSettings()
	if s == nil {
		return snippets.OptSettings{}
	}
	return snippets.OptSettings{
		Convergence:      s.Convergence,
		Persistence:      s.Persistence,
		Limit:            s.Limit,
		Type:             s.Type,
		Acquisition:      s.Acquisition,
		Seed:             s.Seed,
		ModelSelection:   s.ModelSelection,
		GrowthFactor:     s.GrowthFactor,
		ShrinkFactor:     s.ShrinkFactor,
		InitialStepScale: s.InitialStepScale,
	}
}

// createBayesianOpt adds the Bayesian optimizer cap_opt together with the
// LHS_samp initial design and the gpROM surrogate.
func (t *Template) createBayesianOpt(c heron.Case, comps []heron.Component) (snippets.BayesianOptimizer, error) {
	opt := snippets.NewBayesianOptimizer("cap_opt")
	lhs := snippets.NewStratified("LHS_samp")
	gpr := snippets.NewGaussianProcessRegressor("gpROM")
	for _, e := range []snippets.Entity{opt, lhs, gpr} {
		if err := t.add(e); err != nil {
			return opt, err
		}
	}
	if err := opt.SetSampler(lhs); err != nil {
		return opt, err
	}
	if err := opt.SetROM(gpr); err != nil {
		return opt, err
	}
	if err := opt.SetOptSettings(optSettings(c)); err != nil {
		return opt, err
	}
	if s := c.OptimizationSettings(); s != nil && s.Kernel != "" {
		gpr.SetCustomKernel(s.Kernel)
	}

	sampled, consts, err := t.createSamplerVariables(c, comps)
	if err != nil {
		return opt, err
	}
	for _, sv := range sampled {
		if err := sv.Var.UseGrid(snippets.GridEqual, snippets.GridCDF, 4, []float64{0, 1}); err != nil {
			return opt, err
		}
		if err := opt.AddVariable(sv.Var); err != nil {
			return opt, err
		}
		if err := lhs.AddVariable(snippets.AsSampledVariable(sv.Var.Node().Clone())); err != nil {
			return opt, err
		}
	}
	if err := addConstants(opt, consts); err != nil {
		return opt, err
	}
	opt.SetDenoises(c.NumSamples())

	for _, comp := range comps {
		capacity := comp.Capacity()
		if capacity.IsParametric() && capacity.Value(c.Debug().Enabled).List {
			gpr.Features().Append(naming.VariableName(comp.Name(), "capacity"))
		}
	}
	objective, err := naming.OptObjective(c)
	if err != nil {
		return opt, err
	}
	gpr.Target().Append(objective)
	return opt, nil
}

// createGradientDescent adds the gradient descent optimizer cap_opt. Each
// variable starts 5% of its range in from the bound nearest zero.
func (t *Template) createGradientDescent(c heron.Case, comps []heron.Component) (snippets.GradientDescent, error) {
	opt := snippets.NewGradientDescent("cap_opt")
	if err := t.add(opt); err != nil {
		return opt, err
	}
	if err := opt.SetOptSettings(optSettings(c)); err != nil {
		return opt, err
	}
	objective, err := naming.OptObjective(c)
	if err != nil {
		return opt, err
	}
	opt.SetObjective(objective)
	opt.SetDenoises(c.NumSamples())

	sampled, consts, err := t.createSamplerVariables(c, comps)
	if err != nil {
		return opt, err
	}
	for _, sv := range sampled {
		lo, hi := slices.Min(sv.Values), slices.Max(sv.Values)
		delta := hi - lo
		initial := hi - 0.05*delta
		if hi > 0 {
			initial = lo + 0.05*delta
		}
		sv.Var.SetInitial(initial)
		if err := opt.AddVariable(sv.Var); err != nil {
			return opt, err
		}
	}
	return opt, addConstants(opt, consts)
}

// functionFiles returns a Files entry for every Function source, adding
// the missing ones. Paths are relative to the workflow directory, so they
// get a ../ prefix unless they start with a %VARIABLE%.
func (t *Template) functionFiles(sources []heron.Source) ([]snippets.File, error) {
	var files []snippets.File
	for _, src := range heron.SourcesOf(sources, heron.SourceFunction) {
		if n := xmltree.Find(t.Root, fmt.Sprintf("Files/Input[@name='%s']", src.Name())); n != nil {
			files = append(files, snippets.AsFile(n))
			continue
		}
		p := src.Path()
		if !strings.HasPrefix(p, "%") {
			p = "../" + p
		}
		f := snippets.NewFile(src.Name(), p)
		if err := t.add(f); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// runInfoParallel applies the outer parallel settings: a batch of
// outerParallel runs (or 1) and the cluster run settings.
func runInfoParallel(ri snippets.RunInfo, c heron.Case) {
	if n := c.OuterParallel(); n > 0 {
		ri.SetBatchSize(n)
		ri.SetInternalParallel(true)
	} else {
		ri.SetBatchSize(1)
	}
	if c.UseParallel() {
		ri.SetParallelRunSettings(c.ParallelRunInfo())
	}
}

// setBatchSize sizes the batch from the number of sampled variables when
// the case asks for parallel runs without an explicit outer batch.
func (t *Template) setBatchSize(c heron.Case, sampled int) error {
	if c.OuterParallel() != 0 || !c.UseParallel() {
		return nil
	}
	ri, err := t.runInfo()
	if err != nil {
		return err
	}
	ri.SetBatchSize(sampled + 1)
	ri.SetInternalParallel(true)
	return nil
}
