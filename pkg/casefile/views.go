package casefile

import (
	"sort"

	"github.com/ormasoftchile/ravenwf/pkg/heron"
)

// Defaults applied when the case file leaves a setting out.
const (
	DefaultVerbosity    = "all"
	DefaultTimeName     = "Time"
	DefaultYearName     = "Year"
	DefaultInnerToOuter = "netcdf"
	DefaultEconMetric   = "NPV"
	DefaultOptType      = "max"
)

// HeronCase returns the case settings as a heron.Case.
func (d *Document) HeronCase() heron.Case { return caseView{spec: &d.Case} }

// HeronComponents returns the components in declaration order.
func (d *Document) HeronComponents() []heron.Component {
	out := make([]heron.Component, len(d.Components))
	for i := range d.Components {
		out[i] = componentView{spec: &d.Components[i]}
	}
	return out
}

// HeronSources returns the sources in declaration order.
func (d *Document) HeronSources() []heron.Source {
	out := make([]heron.Source, len(d.Sources))
	for i := range d.Sources {
		out[i] = sourceView{spec: &d.Sources[i]}
	}
	return out
}

type caseView struct{ spec *CaseSpec }

func (c caseView) Name() string { return c.spec.Name }
func (c caseView) Mode() string { return c.spec.Mode }

func (c caseView) Verbosity() string {
	if c.spec.Verbosity == "" {
		return DefaultVerbosity
	}
	return c.spec.Verbosity
}

func (c caseView) NumSamples() int {
	if c.spec.NumSamples < 1 {
		return 1
	}
	return c.spec.NumSamples
}

func (c caseView) TimeName() string { return orDefault(c.spec.TimeName, DefaultTimeName) }
func (c caseView) YearName() string { return orDefault(c.spec.YearName, DefaultYearName) }

// Labels are sorted by key so generated workflows are stable.
func (c caseView) Labels() []heron.Label {
	keys := make([]string, 0, len(c.spec.Labels))
	for k := range c.spec.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]heron.Label, len(keys))
	for i, k := range keys {
		out[i] = heron.Label{Key: k, Value: c.spec.Labels[k]}
	}
	return out
}

func (c caseView) Debug() heron.DebugSettings {
	if c.spec.Debug == nil {
		return heron.DebugSettings{}
	}
	return heron.DebugSettings{
		Enabled:      c.spec.Debug.Enabled,
		DispatchPlot: c.spec.Debug.DispatchPlot,
		CashflowPlot: c.spec.Debug.CashflowPlot,
	}
}

func (c caseView) parallel() ParallelSpec {
	if c.spec.Parallel == nil {
		return ParallelSpec{}
	}
	return *c.spec.Parallel
}

func (c caseView) OuterParallel() int { return c.parallel().Outer }
func (c caseView) InnerParallel() int { return c.parallel().Inner }
func (c caseView) UseParallel() bool { return c.parallel().UseParallel }
func (c caseView) ParallelRunInfo() map[string]string { return c.parallel().RunInfo }
func (c caseView) PythonCommand() string { return c.spec.PythonCmd }

func (c caseView) InnerToOuter() string {
	if c.spec.DataHandling == nil {
		return DefaultInnerToOuter
	}
	return orDefault(c.spec.DataHandling.InnerToOuter, DefaultInnerToOuter)
}

func (c caseView) ResultStatistics() []string {
	if c.spec.Economics == nil {
		return nil
	}
	return c.spec.Economics.Statistics
}

func (c caseView) StatsMetricsMeta() map[string]heron.StatMeta {
	return heron.DefaultStatsMetricsMeta()
}

func (c caseView) EconomicMetricsMeta() map[string]heron.EconMeta {
	return heron.DefaultEconomicMetricsMeta()
}

func (c caseView) metrics() []string {
	if c.spec.Economics == nil || len(c.spec.Economics.Metrics) == 0 {
		return []string{DefaultEconMetric}
	}
	return c.spec.Economics.Metrics
}

// EconMetrics maps each metric to its output name. Unknown metrics keep
// their own name.
func (c caseView) EconMetrics() []string {
	meta := c.EconomicMetricsMeta()
	var out []string
	for _, m := range c.metrics() {
		if em, ok := meta[m]; ok {
			out = append(out, em.OutputName)
			continue
		}
		out = append(out, m)
	}
	return out
}

func (c caseView) OptMetric() (string, string) {
	metric, dir := c.metrics()[0], DefaultOptType
	if o := c.spec.Optimization; o != nil {
		metric = orDefault(o.Metric, metric)
		dir = orDefault(o.Type, dir)
	}
	return metric, dir
}

func (c caseView) OptimizationSettings() *heron.OptimizationSettings {
	o := c.spec.Optimization
	if o == nil {
		return nil
	}
	return &heron.OptimizationSettings{
		Strategy:         orDefault(o.Strategy, heron.StrategyBayesianOpt),
		StatsMetric:      o.StatsMetric,
		Type:             o.Type,
		Persistence:      o.Persistence,
		Limit:            o.Limit,
		Convergence:      o.Convergence,
		Kernel:           o.Kernel,
		Acquisition:      o.Acquisition,
		Seed:             o.Seed,
		ModelSelection:   o.ModelSelection,
		GrowthFactor:     o.GrowthFactor,
		ShrinkFactor:     o.ShrinkFactor,
		InitialStepScale: o.InitialStepScale,
	}
}

// DispatchVars are sorted by name.
func (c caseView) DispatchVars() []heron.DispatchVar {
	names := make([]string, 0, len(c.spec.DispatchVars))
	for k := range c.spec.DispatchVars {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make([]heron.DispatchVar, len(names))
	for i, n := range names {
		p := c.spec.DispatchVars[n]
		out[i] = heron.DispatchVar{Name: n, Value: paramView{spec: &p}}
	}
	return out
}

type componentView struct{ spec *ComponentSpec }

func (c componentView) Name() string { return c.spec.Name }
func (c componentView) Capacity() heron.ValuedParam { return paramView{spec: &c.spec.Capacity} }
func (c componentView) TrackingVars() []string { return c.spec.TrackingVars }
func (c componentView) Resources() []string { return c.spec.Resources }

func (c componentView) Cashflows() []heron.Cashflow {
	out := make([]heron.Cashflow, len(c.spec.Cashflows))
	for i := range c.spec.Cashflows {
		out[i] = cashflowView{spec: &c.spec.Cashflows[i]}
	}
	return out
}

type paramView struct{ spec *ParamSpec }

func (p paramView) Type() string { return orDefault(p.spec.Type, heron.ParamParametric) }

func (p paramView) IsParametric() bool { return p.Type() == heron.ParamParametric }

func (p paramView) Value(debug bool) heron.Value {
	switch {
	case debug && p.spec.DebugValue != nil:
		return heron.Scalar(*p.spec.DebugValue)
	case len(p.spec.Values) > 0:
		return heron.List(p.spec.Values...)
	case p.spec.Value != nil:
		return heron.Scalar(*p.spec.Value)
	}
	return heron.Value{}
}

type cashflowView struct{ spec *CashflowSpec }

func (c cashflowView) Name() string { return c.spec.Name }
func (c cashflowView) NPVExempt() bool { return c.spec.NPVExempt }
func (c cashflowView) Depreciation() int { return c.spec.Depreciation }

func (c cashflowView) UncertainParams() []heron.UncertainParam {
	out := make([]heron.UncertainParam, len(c.spec.Uncertain))
	for i, u := range c.spec.Uncertain {
		out[i] = heron.UncertainParam{
			Name:         u.Param,
			Distribution: heron.DistributionSpec{Type: u.Distribution.Type, Params: u.Distribution.Params},
		}
	}
	return out
}

type sourceView struct{ spec *SourceSpec }

func (s sourceView) Name() string { return s.spec.Name }
func (s sourceView) Type() string { return s.spec.Type }
func (s sourceView) Variables() []string { return s.spec.Variables }
func (s sourceView) TargetFile() string { return s.spec.TargetFile }
func (s sourceView) Path() string { return s.spec.Path }
func (s sourceView) Multiyear() int { return s.spec.Multiyear }
func (s sourceView) LimitInterp() int { return s.spec.LimitInterp }
func (s sourceView) EvalMode() string { return orDefault(s.spec.EvalMode, "full") }

// NumSamples defaults to one history.
func (s sourceView) NumSamples() int {
	if s.spec.NumSamples < 1 {
		return 1
	}
	return s.spec.NumSamples
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
