package workflow

import (
	"fmt"

	"github.com/ormasoftchile/ravenwf/pkg/heron"
	"github.com/ormasoftchile/ravenwf/pkg/naming"
	"github.com/ormasoftchile/ravenwf/pkg/snippets"
	"github.com/ormasoftchile/ravenwf/pkg/xmltree"
)

// Debug is a single-level workflow that dispatches a handful of samples
// with every capacity fixed to its first value and writes the full
// dispatch and cashflows for inspection.
type Debug struct {
	*Template
}

func loadDebug() (*Debug, error) {
	t, err := LoadTemplate(DebugTemplate, OuterFile)
	if err != nil {
		return nil, err
	}
	return &Debug{Template: t}, nil
}

// Create fills the debug template.
func (d *Debug) Create(c heron.Case, comps []heron.Component, sources []heron.Source) error {
	if err := checkSourceConflict(sources); err != nil {
		return err
	}
	if heron.HasSource(sources, heron.SourceCSV) {
		return fmt.Errorf("create %s: debug mode with a static (CSV) history: %w", d.Name, ErrNotImplemented)
	}
	if err := d.create(c, comps, sources); err != nil {
		return fmt.Errorf("create %s: %w", d.Name, err)
	}
	d.log.Infow("Created debug workflow", "template", d.Name, "case", c.Name())
	return nil
}

func (d *Debug) create(c heron.Case, comps []heron.Component, sources []heron.Source) error {
	ri, err := d.initializeRunInfo(c, "o")
	if err != nil {
		return err
	}
	if n := c.OuterParallel(); n > 0 {
		ri.SetBatchSize(n)
		ri.SetInternalParallel(true)
	}
	if c.UseParallel() {
		ri.SetParallelRunSettings(c.ParallelRunInfo())
	}
	if n := c.InnerParallel(); n > 0 {
		ri.SetNumMPI(n)
	}

	if err := d.updateVargroups(c, comps, sources); err != nil {
		return err
	}
	renameIndices(d.Root, ".//DataSet/Index",
		[2]string{"Time", c.TimeName()},
		[2]string{"Year", c.YearName()},
		[2]string{"_ROM_Cluster", naming.Cluster()})

	if err := d.addPlots(c); err != nil {
		return err
	}

	mc, ensemble, err := d.createSampler(c, comps, sources)
	if err != nil {
		return err
	}

	stepNode, err := d.require("Steps/MultiRun[@name='debug']")
	if err != nil {
		return err
	}
	step := snippets.AsMultiRun(stepNode)
	if err := step.AddSampler(mc); err != nil {
		return err
	}
	var model snippets.Entity
	if ensemble != nil {
		model = *ensemble
	} else {
		n, err := d.require("Models/ExternalModel")
		if err != nil {
			return err
		}
		model = snippets.AsHeronDispatchModel(n)
	}
	if err := step.AddModel(model); err != nil {
		return err
	}
	files, err := d.functionFiles(sources)
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := step.AddInput(f); err != nil {
			return err
		}
	}
	return nil
}

func (d *Debug) updateVargroups(c heron.Case, comps []heron.Component, sources []heron.Source) error {
	caps, err := naming.CapacityVars(comps, true)
	if err != nil {
		return err
	}
	for _, u := range []struct {
		group string
		vars  []string
	}{
		{"GRO_capacities", naming.CapacityNames(caps)},
		{"GRO_time_indices", []string{c.TimeName(), c.YearName()}},
		{"GRO_full_dispatch", naming.ComponentActivityVars(comps, naming.Dispatch)},
		{"GRO_cashflows", naming.CashflowNames(comps)},
	} {
		if err := d.extendGroup(u.vars, u.group); err != nil {
			return err
		}
	}

	synth, err := d.group("GRO_debug_synthetics")
	if err != nil {
		return err
	}
	for _, s := range sources {
		if heron.IsType(s, heron.SourceARMA) || heron.IsType(s, heron.SourceCSV) {
			synth.Add(s.Variables()...)
		}
	}

	outputs := deterministicResultsVars(c, comps)
	return d.extendGroup(outputs, "GRO_dispatch_out", "GRO_timeseries_out_scalar")
}

// addPlots adds the plots the debug settings ask for to the debug_output
// step.
func (d *Debug) addPlots(c heron.Case) error {
	dbg := c.Debug()
	if !dbg.DispatchPlot && !dbg.CashflowPlot {
		return nil
	}
	stepNode, err := d.require("Steps/IOStep[@name='debug_output']")
	if err != nil {
		return err
	}
	step := snippets.AsIOStep(stepNode)

	var plots []snippets.Entity
	if dbg.DispatchPlot {
		if _, err := d.require("DataObjects/DataSet[@name='dispatch']"); err != nil {
			return err
		}
		p := snippets.NewHeronDispatchPlot("dispatchPlot")
		p.SetSource("dispatch")
		p.SetMacroVariable(c.YearName())
		p.SetMicroVariable(c.TimeName())
		p.Signals().Append("GRO_debug_synthetics")
		plots = append(plots, p)
	}
	if dbg.CashflowPlot {
		if _, err := d.require("DataObjects/HistorySet[@name='cashflows']"); err != nil {
			return err
		}
		p := snippets.NewTealCashFlowPlot("cashflow_plot")
		p.SetSource("cashflows")
		plots = append(plots, p)
	}
	for _, p := range plots {
		if err := d.add(p); err != nil {
			return err
		}
		if err := step.AddOutput(p); err != nil {
			return err
		}
	}
	return nil
}

// createSampler builds the MonteCarlo sampler mc. With ARMA sources it also
// builds the sample_and_dispatch ensemble, which is returned; otherwise the
// ensemble is nil.
func (d *Debug) createSampler(c heron.Case, comps []heron.Component, sources []heron.Source) (snippets.MonteCarlo, *snippets.EnsembleModel, error) {
	hasARMA := heron.HasSource(sources, heron.SourceARMA)
	sampled, consts, err := d.createSamplerVariables(c, comps)
	if err != nil {
		return snippets.MonteCarlo{}, nil, err
	}
	uqVars, uqDists, err := uncertainCashflowParams(comps)
	if err != nil {
		return snippets.MonteCarlo{}, nil, err
	}
	if !hasARMA && len(sampled) == 0 && len(uqVars) == 0 {
		return snippets.MonteCarlo{}, nil, fmt.Errorf("nothing that requires a sampler was found: %w", ErrConfig)
	}

	mc := snippets.NewMonteCarlo("mc")
	mc.SetDenoises(c.NumSamples())
	mc.SetInitLimit(c.NumSamples())

	var ensemble *snippets.EnsembleModel
	if hasARMA {
		ens, err := d.useTimeSeriesROM(c, sources)
		if err != nil {
			return mc, nil, err
		}
		if err := mc.AddConstant(scalingVar, 1.0); err != nil {
			return mc, nil, err
		}
		ensemble = &ens
	}

	for _, sv := range sampled {
		if err := mc.AddVariable(sv.Var); err != nil {
			return mc, nil, err
		}
	}
	if err := addConstants(mc, consts); err != nil {
		return mc, nil, err
	}

	if len(uqVars) > 0 {
		uq, err := d.group(econUQGroup)
		if err != nil {
			return mc, nil, err
		}
		if err := d.extendGroup([]string{uq.Name()}, "GRO_dispatch_in_scalar", "GRO_timeseries_in_scalar"); err != nil {
			return mc, nil, err
		}
		for i, v := range uqVars {
			if err := d.add(uqDists[i]); err != nil {
				return mc, nil, err
			}
			uq.Add(v.Name())
			if err := mc.AddVariable(v); err != nil {
				return mc, nil, err
			}
		}
	}

	if err := d.add(mc); err != nil {
		return mc, nil, err
	}
	return mc, ensemble, nil
}

// useTimeSeriesROM builds the sample_and_dispatch ensemble: the ARMA ROMs
// followed by the dispatcher, whose inputs are the dispatch placeholder and
// then the function files.
func (d *Debug) useTimeSeriesROM(c heron.Case, sources []heron.Source) (snippets.EnsembleModel, error) {
	ens := snippets.NewEnsembleModel("sample_and_dispatch")
	if err := d.add(ens); err != nil {
		return ens, err
	}
	if err := d.addTimeSeriesROMs(ens, c, sources); err != nil {
		return ens, err
	}

	dispNode, err := d.require("Models/ExternalModel[@subType='HERON.DispatchManager']")
	if err != nil {
		return ens, err
	}
	placeholder, err := d.require("DataObjects/PointSet[@name='dispatch_placeholder']")
	if err != nil {
		return ens, err
	}
	eval, err := d.require("DataObjects/DataSet[@name='dispatch_eval']")
	if err != nil {
		return ens, err
	}
	files, err := d.functionFiles(sources)
	if err != nil {
		return ens, err
	}

	ref := snippets.MustReference(snippets.AsHeronDispatchModel(dispNode), "Model")
	inputs := []*xmltree.Node{snippets.MustReference(snippets.AsPointSet(placeholder), "Input")}
	for _, f := range files {
		inputs = append(inputs, snippets.MustReference(f, "Input"))
	}
	ref.Append(inputs...)
	ref.Append(snippets.MustReference(snippets.AsDataSet(eval), "TargetEvaluation"))
	ens.Node().Append(ref)
	return ens, nil
}
