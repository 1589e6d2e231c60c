package workflow

import (
	"fmt"

	"github.com/ormasoftchile/ravenwf/pkg/heron"
	"github.com/ormasoftchile/ravenwf/pkg/naming"
	"github.com/ormasoftchile/ravenwf/pkg/snippets"
	"github.com/ormasoftchile/ravenwf/pkg/xmltree"
)

// DispatchResults is the default name of the Print outstream or NetCDF
// database the inner workflow hands its statistics to the outer workflow
// through.
const DispatchResults = "disp_results"

// Inner is the inner level of a bilevel workflow: it samples histories for
// a fixed set of capacities, dispatches each one and reduces the results
// to statistics.
type Inner struct {
	*Template

	dispatchResults string
}

func loadInner(sources []heron.Source) (*Inner, error) {
	name := InnerStatic
	if heron.HasSource(sources, heron.SourceARMA) {
		name = InnerSynthetic
	}
	t, err := LoadTemplate(name, InnerFile)
	if err != nil {
		return nil, err
	}
	return &Inner{Template: t}, nil
}

// Create fills the inner template.
func (in *Inner) Create(c heron.Case, comps []heron.Component, sources []heron.Source) error {
	if err := in.createCommon(c, comps); err != nil {
		return fmt.Errorf("create %s: %w", in.Name, err)
	}
	var err error
	switch in.Name {
	case InnerSynthetic:
		err = in.createSynthetic(c, comps, sources)
	case InnerStatic:
		err = in.createStatic(c, comps, sources)
	}
	if err != nil {
		return fmt.Errorf("create %s: %w", in.Name, err)
	}
	in.log.Infow("Created inner workflow", "template", in.Name, "case", c.Name())
	return nil
}

func (in *Inner) createCommon(c heron.Case, comps []heron.Component) error {
	ri, err := in.initializeRunInfo(c, "i")
	if err != nil {
		return err
	}
	if n := c.InnerParallel(); n > 0 {
		ri.SetInternalParallel(true)
		ri.SetBatchSize(n)
	} else {
		ri.SetBatchSize(1)
	}

	if err := in.setTimeVars(c.TimeName(), c.YearName()); err != nil {
		return err
	}

	activity := naming.ComponentActivityVars(comps, naming.TotalActivity)
	econ := c.EconMetrics()
	outputs := append(append([]string{}, econ...), activity...)
	if err := in.extendGroup(outputs, "GRO_dispatch_out", "GRO_timeseries_out_scalar"); err != nil {
		return err
	}
	metrics, err := in.require("DataObjects/PointSet[@name='arma_metrics']")
	if err != nil {
		return err
	}
	snippets.AsPointSet(metrics).Outputs().Extend(outputs...)

	results, err := statisticalResultsVars(c, comps, naming.DefaultStatsNames)
	if err != nil {
		return err
	}
	if err := in.extendGroup(results, "GRO_metrics_stats"); err != nil {
		return err
	}

	ppNode, err := in.require("Models/PostProcessor[@name='statistics']")
	if err != nil {
		return err
	}
	pp := snippets.AsEconomicRatioPostProcessor(ppNode)
	stats, err := statsForEconPostprocessor(c, econ, activity, naming.DefaultStatsNames)
	if err != nil {
		return err
	}
	for _, sv := range stats {
		pp.AddStatistic(sv.Stat.Name, sv.Stat.Prefix, sv.Variable, sv.Stat.Attrs()...)
	}

	return in.handleDataInnerToOuter(c)
}

// setTimeVars adds the time and year variables to the dispatch group and
// renames the Time and Year indices of every data set.
func (in *Inner) setTimeVars(timeName, yearName string) error {
	if err := in.extendGroup([]string{timeName, yearName}, "GRO_dispatch"); err != nil {
		return err
	}
	renameIndices(in.Root, "DataObjects/DataSet/Index", [2]string{"Time", timeName}, [2]string{"Year", yearName})
	return nil
}

// renameIndices rewrites the var attribute of the Index nodes matching
// path, one {from, to} pair at a time.
func renameIndices(root *xmltree.Node, path string, renames ...[2]string) {
	for _, r := range renames {
		from, to := r[0], r[1]
		for _, idx := range xmltree.FindAll(root, fmt.Sprintf("%s[@var='%s']", path, from)) {
			idx.Set("var", to)
		}
	}
}

// handleDataInnerToOuter routes metrics_stats to the outer workflow through
// a CSV outstream or a NetCDF database.
func (in *Inner) handleDataInnerToOuter(c heron.Case) error {
	stepNode, err := in.require("Steps/IOStep[@name='database']")
	if err != nil {
		return err
	}
	var dest snippets.Entity
	if c.InnerToOuter() == snippets.HandoffCSV {
		p := snippets.NewPrintOutStream(DispatchResults)
		p.SetSource("metrics_stats")
		dest = p
	} else {
		db := snippets.NewNetCDF(DispatchResults)
		db.SetReadMode("overwrite")
		dest = db
	}
	if err := in.add(dest); err != nil {
		return err
	}
	if err := snippets.AsIOStep(stepNode).AddOutput(dest); err != nil {
		return err
	}
	in.dispatchResults = dest.Name()
	return nil
}

// DispatchResultsName returns the name of the entity created to hand the
// inner results to the outer workflow, or "" before Create.
func (in *Inner) DispatchResultsName() string { return in.dispatchResults }

// SamplerPath returns the alias location of the first sampler, such as
// Samplers|MonteCarlo@name:mc_arma_dispatch.
func (in *Inner) SamplerPath() (string, error) {
	samplers, err := in.require("Samplers")
	if err != nil {
		return "", err
	}
	if len(samplers.Children) == 0 {
		return "", missingNode(in.Name, in.Root, "Samplers/*")
	}
	s := samplers.Children[0]
	return fmt.Sprintf("Samplers|%s@name:%s", s.Tag, s.Get("name")), nil
}

func (in *Inner) addCaseLabelsToSampler(labels []heron.Label, s snippets.SampledSet) error {
	if len(labels) == 0 {
		return nil
	}
	g := newCaseLabelsGroup(labels)
	if err := in.add(g); err != nil {
		return err
	}
	if err := in.extendGroup([]string{g.Name()}, "GRO_timeseries_in_scalar", "GRO_dispatch_in_scalar"); err != nil {
		return err
	}
	return addLabelsToSampler(s, labels)
}

// addUncertainEconParams samples the uncertain cashflow parameters with s
// and lists them in GRO_UQ.
func (in *Inner) addUncertainEconParams(s snippets.SampledSet, vars []snippets.SampledVariable, dists []snippets.Distribution) (snippets.VariableGroup, error) {
	uq, err := in.findOrAddGroup(econUQGroup)
	if err != nil {
		return uq, err
	}
	for i, v := range vars {
		if err := in.add(dists[i]); err != nil {
			return uq, err
		}
		uq.Add(v.Name())
		if err := s.AddVariable(v); err != nil {
			return uq, err
		}
	}
	return uq, nil
}

// addConstantCapsToSampler adds every parametric capacity as a constant.
// Capacities the outer workflow samples are left empty; the outer RAVEN
// model overwrites them through its aliases.
func (in *Inner) addConstantCapsToSampler(s snippets.SampledSet, comps []heron.Component) error {
	caps, err := naming.CapacityVars(comps, false)
	if err != nil {
		return err
	}
	if err := in.extendGroup(naming.CapacityNames(caps), "GRO_capacities"); err != nil {
		return err
	}
	for _, cv := range caps {
		var val any = cv.Value.First()
		if cv.Value.List {
			val = ""
		}
		if err := s.AddConstant(cv.Name, val); err != nil {
			return err
		}
	}
	return nil
}

func (in *Inner) addUQ(s snippets.SampledSet, comps []heron.Component) error {
	vars, dists, err := uncertainCashflowParams(comps)
	if err != nil || len(vars) == 0 {
		return err
	}
	uq, err := in.addUncertainEconParams(s, vars, dists)
	if err != nil {
		return err
	}
	return in.extendGroup([]string{uq.Name()}, "GRO_dispatch_in_scalar", "GRO_timeseries_in_scalar")
}

func (in *Inner) createSynthetic(c heron.Case, comps []heron.Component, sources []heron.Source) error {
	ensNode, err := in.require("Models/EnsembleModel")
	if err != nil {
		return err
	}
	if err := in.addTimeSeriesROMs(snippets.AsEnsembleModel(ensNode), c, sources); err != nil {
		return err
	}

	mcNode, err := in.require("Samplers/MonteCarlo[@name='mc_arma_dispatch']")
	if err != nil {
		return err
	}
	mc := snippets.AsMonteCarlo(mcNode)
	mc.SetInitSeed(42)
	mc.SetInitLimit(3)
	mc.SetDenoises(c.NumSamples())
	if err := in.addConstantCapsToSampler(mc, comps); err != nil {
		return err
	}
	if err := in.addCaseLabelsToSampler(c.Labels(), mc); err != nil {
		return err
	}
	return in.addUQ(mc, comps)
}

func (in *Inner) createStatic(c heron.Case, comps []heron.Component, sources []heron.Source) error {
	custom := snippets.NewCustomSampler("static_history_sampler")
	scaling := 1.0
	if err := in.configureStaticHistorySampler(custom, c, sources, &scaling); err != nil {
		return err
	}
	if err := in.addCaseLabelsToSampler(c.Labels(), custom); err != nil {
		return err
	}
	if err := in.addConstantCapsToSampler(custom, comps); err != nil {
		return err
	}
	custom.SetDenoises(c.NumSamples())

	var sampler snippets.Entity = custom
	if heron.HasUncertainCashflows(comps) {
		mc := snippets.NewMonteCarlo("mc")
		mc.SetInitSeed(42)
		mc.SetInitLimit(c.NumSamples())
		if err := in.addUQ(mc, comps); err != nil {
			return err
		}
		ens, err := newEnsembleForward("ensemble_sampler", custom, mc)
		if err != nil {
			return err
		}
		sampler = ens
	}
	if err := in.add(sampler); err != nil {
		return err
	}

	stepNode, err := in.require("Steps/MultiRun[@name='arma_sampling']")
	if err != nil {
		return err
	}
	return snippets.AsMultiRun(stepNode).AddSampler(sampler)
}
