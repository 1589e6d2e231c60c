package workflow

import (
	"fmt"
	"slices"

	"github.com/ormasoftchile/ravenwf/pkg/heron"
	"github.com/ormasoftchile/ravenwf/pkg/naming"
	"github.com/ormasoftchile/ravenwf/pkg/snippets"
)

// Flat is a single-level workflow for cases without dispatch uncertainty:
// one static history, replayed for every configuration of a capacity grid.
type Flat struct {
	*Template
}

func loadFlat() (*Flat, error) {
	t, err := LoadTemplate(FlatMultiConfig, OuterFile)
	if err != nil {
		return nil, err
	}
	return &Flat{Template: t}, nil
}

// Create fills the flat template.
func (f *Flat) Create(c heron.Case, comps []heron.Component, sources []heron.Source) error {
	if err := f.create(c, comps, sources); err != nil {
		return fmt.Errorf("create %s: %w", f.Name, err)
	}
	f.log.Infow("Created flat workflow", "template", f.Name, "case", c.Name())
	return nil
}

func (f *Flat) create(c heron.Case, comps []heron.Component, sources []heron.Source) error {
	ri, err := f.initializeRunInfo(c, "o")
	if err != nil {
		return err
	}
	runInfoParallel(ri, c)

	caps, err := naming.CapacityVars(comps, false)
	if err != nil {
		return err
	}
	if err := f.extendGroup(naming.CapacityNames(caps), "GRO_capacities"); err != nil {
		return err
	}
	if err := f.extendGroup(deterministicResultsVars(c, comps), "GRO_results"); err != nil {
		return err
	}

	customNode, err := f.require("Samplers/EnsembleForward/CustomSampler")
	if err != nil {
		return err
	}
	if err := f.configureStaticHistorySampler(snippets.AsCustomSampler(customNode), c, sources, nil); err != nil {
		return err
	}

	gridNode, err := f.require("Samplers/EnsembleForward/Grid")
	if err != nil {
		return err
	}
	grid := snippets.AsGrid(gridNode)
	sampled, consts, err := f.createSamplerVariables(c, comps)
	if err != nil {
		return err
	}
	for _, sv := range sampled {
		if err := sv.Var.UseGrid(snippets.GridCustom, snippets.GridValue, 0, slices.Sorted(slices.Values(sv.Values))); err != nil {
			return err
		}
		if err := grid.AddVariable(sv.Var); err != nil {
			return err
		}
	}
	ensNode, err := f.require("Samplers/EnsembleForward")
	if err != nil {
		return err
	}
	if err := addConstants(snippets.AsEnsembleForward(ensNode), consts); err != nil {
		return err
	}
	grid.SetDenoises(c.NumSamples())

	if labels := c.Labels(); len(labels) > 0 {
		results, err := f.require("DataObjects/PointSet[@name='grid']")
		if err != nil {
			return err
		}
		g := newCaseLabelsGroup(labels)
		if err := f.add(g); err != nil {
			return err
		}
		snippets.AsPointSet(results).Outputs().Append(g.Name())
		if err := addLabelsToSampler(grid, labels); err != nil {
			return err
		}
	}

	stepNode, err := f.require("Steps/MultiRun[@name='sweep']")
	if err != nil {
		return err
	}
	step := snippets.AsMultiRun(stepNode)
	files, err := f.functionFiles(sources)
	if err != nil {
		return err
	}
	for _, file := range files {
		if err := step.AddInput(file); err != nil {
			return err
		}
	}
	return f.setBatchSize(c, grid.NumSampledVars())
}
