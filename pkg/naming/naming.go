// Package naming builds the deterministic variable, step, distribution and
// statistic names shared by every workflow template. The inner and outer
// workflows agree on variable names only through these helpers.
package naming

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/ormasoftchile/ravenwf/pkg/heron"
	"github.com/ormasoftchile/ravenwf/pkg/xmltree"
)

// ErrNotImplemented marks a case feature workflow generation does not
// support yet.
var ErrNotImplemented = errors.New("not implemented")

// ErrUnknownStatistic is returned for a statistic missing from the case
// metadata.
var ErrUnknownStatistic = errors.New("unknown statistic")

// Naming template keys.
const (
	JobName       = "jobname"
	StepName      = "stepname"
	Variable      = "variable"
	Dispatch      = "dispatch"
	TotalActivity = "tot_activity"
	DataObject    = "data object"
	Distribution  = "distribution"
	ARMASampler   = "ARMA sampler"
	LibFile       = "lib file"
	CashflowName  = "cashfname"
	RecurringCash = "re_cash"
	ClusterIndex  = "cluster_index"
	MetricName    = "metric_name"
	StatisticName = "statistic"
)

// Templates maps each template key to its pattern. Fields are written as
// {field}.
var Templates = map[string]string{
	JobName:       "{case}_{io}",
	StepName:      "{action}_{subject}",
	Variable:      "{unit}_{feature}",
	Dispatch:      "Dispatch__{component}__{tracker}__{resource}",
	TotalActivity: "TotalActivity__{component}__{tracker}__{resource}",
	DataObject:    "{source}_{contents}",
	Distribution:  "{variable}_dist",
	ARMASampler:   "{rom}_sampler",
	LibFile:       "heron.lib",
	CashflowName:  "_{component}{cashname}",
	RecurringCash: "_rec_{period}_{driverType}{driverName}",
	ClusterIndex:  "_ROM_Cluster",
	MetricName:    "{stats}_{econ}",
	StatisticName: "{prefix}_{name}",
}

// Format fills the template named key with fields. Unknown fields are left
// in place; an unknown key formats to "".
func Format(key string, fields map[string]string) string {
	tmpl, ok := Templates[key]
	if !ok {
		return ""
	}
	pairs := make([]string, 0, 2*len(fields))
	for k, v := range fields {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// VariableName returns {unit}_{feature}.
func VariableName(unit, feature string) string {
	return Format(Variable, map[string]string{"unit": unit, "feature": feature})
}

// Step returns {action}_{subject}.
func Step(action, subject string) string {
	return Format(StepName, map[string]string{"action": action, "subject": subject})
}

// Job returns {case}_{io}; io is "o" for outer workflows and "i" for inner.
func Job(caseName, io string) string {
	return Format(JobName, map[string]string{"case": caseName, "io": io})
}

// DistributionFor returns the distribution name of a variable.
func DistributionFor(variable string) string {
	return Format(Distribution, map[string]string{"variable": variable})
}

// DataObjectName returns {source}_{contents}.
func DataObjectName(source, contents string) string {
	return Format(DataObject, map[string]string{"source": source, "contents": contents})
}

// Cluster returns the ROM cluster index variable name.
func Cluster() string { return Templates[ClusterIndex] }

// Lib returns the case library file name.
func Lib() string { return Templates[LibFile] }

// Statistic names a statistic applied to a variable. Threshold and Percent
// are optional parameters of the statistic.
type Statistic struct {
	Name      string
	Prefix    string
	Threshold string
	Percent   string
}

func (s Statistic) param() string {
	if s.Threshold != "" {
		return s.Threshold
	}
	return s.Percent
}

// Metric returns the name of this statistic of variable, such as mean_NPV
// or perc_5_NPV.
func (s Statistic) Metric(variable string) string {
	if p := s.param(); p != "" {
		return strings.Join([]string{s.Prefix, p, variable}, "_")
	}
	return s.Prefix + "_" + variable
}

// Element returns the post-processor element requesting this statistic of
// variable, such as <percentile prefix="perc" percent="5">NPV</percentile>.
func (s Statistic) Element(variable string) *xmltree.Node {
	n := xmltree.New(s.Name, append([]xmltree.Attr{{Name: "prefix", Value: s.Prefix}}, s.Attrs()...)...)
	n.Text = variable
	return n
}

// Attrs returns the attributes of the statistic element other than prefix.
func (s Statistic) Attrs() []xmltree.Attr {
	var out []xmltree.Attr
	if s.Threshold != "" {
		out = append(out, xmltree.Attr{Name: "threshold", Value: s.Threshold})
	}
	if s.Percent != "" {
		out = append(out, xmltree.Attr{Name: "percent", Value: s.Percent})
	}
	return out
}

func lookupStat(name string, meta map[string]heron.StatMeta) (heron.StatMeta, error) {
	m, ok := meta[name]
	if !ok {
		return heron.StatMeta{}, fmt.Errorf("%w %q", ErrUnknownStatistic, name)
	}
	return m, nil
}

func orNone(vals []string) []string {
	if len(vals) == 0 {
		return []string{""}
	}
	return vals
}

// Statistics expands each named statistic into one Statistic per
// combination of its percent and threshold values.
func Statistics(names []string, meta map[string]heron.StatMeta) ([]Statistic, error) {
	var stats []Statistic
	for _, name := range names {
		m, err := lookupStat(name, meta)
		if err != nil {
			return nil, err
		}
		for _, perc := range orNone(m.Percent) {
			for _, thresh := range orNone(m.Threshold) {
				stats = append(stats, Statistic{Name: name, Prefix: m.Prefix, Threshold: thresh, Percent: perc})
			}
		}
	}
	return stats, nil
}

// StatPrefixes returns the metric prefixes of the named statistics, with
// the percent or threshold values folded in (perc_5, perc_95).
func StatPrefixes(names []string, meta map[string]heron.StatMeta) ([]string, error) {
	var out []string
	for _, name := range names {
		m, err := lookupStat(name, meta)
		if err != nil {
			return nil, err
		}
		if len(m.Percent) == 0 && len(m.Threshold) == 0 {
			out = append(out, m.Prefix)
			continue
		}
		for _, v := range append(append([]string{}, m.Percent...), m.Threshold...) {
			out = append(out, m.Prefix+"_"+v)
		}
	}
	return out, nil
}

// ResultStats returns the metric name of every statistic applied to every
// variable, statistics outermost.
func ResultStats(variables, statNames []string, meta map[string]heron.StatMeta) ([]string, error) {
	stats, err := Statistics(statNames, meta)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(stats)*len(variables))
	for _, s := range stats {
		for _, v := range variables {
			out = append(out, s.Metric(v))
		}
	}
	return out, nil
}

// CapacityVar is a parametric capacity variable and its value.
type CapacityVar struct {
	Name  string
	Value heron.Value
}

// CapacityVars returns the capacity variables of the components with a
// parametric capacity. In debug mode a list value is reduced to its first
// entry. Capacities limited by a signal are resolved in the dispatch and are
// skipped; any other capacity type is not supported.
func CapacityVars(components []heron.Component, debug bool) ([]CapacityVar, error) {
	var out []CapacityVar
	for _, c := range components {
		capacity := c.Capacity()
		switch {
		case capacity.IsParametric():
			v := capacity.Value(debug)
			if v.List && debug {
				v = heron.Scalar(v.First())
			}
			out = append(out, CapacityVar{Name: VariableName(c.Name(), "capacity"), Value: v})
		case isSignalDriven(capacity.Type()):
		default:
			return nil, fmt.Errorf("capacity of %q has type %q: %w", c.Name(), capacity.Type(), ErrNotImplemented)
		}
	}
	return out, nil
}

func isSignalDriven(typ string) bool {
	switch typ {
	case heron.ParamStaticHistory, heron.ParamSyntheticHistory, heron.ParamFunction, heron.ParamVariable:
		return true
	}
	return false
}

// CapacityNames returns the names of CapacityVars.
func CapacityNames(vars []CapacityVar) []string {
	out := make([]string, len(vars))
	for i, v := range vars {
		out[i] = v.Name
	}
	return out
}

// ComponentActivityVars formats templateKey (Dispatch or TotalActivity)
// for every component, tracking variable and resource. Resources are
// visited in sorted order.
func ComponentActivityVars(components []heron.Component, templateKey string) []string {
	var out []string
	for _, c := range components {
		resources := append([]string(nil), c.Resources()...)
		sort.Strings(resources)
		for _, tracker := range c.TrackingVars() {
			for _, r := range resources {
				out = append(out, Format(templateKey, map[string]string{
					"component": c.Name(),
					"tracker":   tracker,
					"resource":  r,
				}))
			}
		}
	}
	return out
}

// CashflowNames returns {component}_{cashflow} for every cashflow.
func CashflowNames(components []heron.Component) []string {
	var out []string
	for _, c := range components {
		for _, cf := range c.Cashflows() {
			out = append(out, c.Name()+"_"+cf.Name())
		}
	}
	return out
}

// OptStatistic returns the statistic applied to the optimized metric:
// the case's stats metric, or expectedValue.
func OptStatistic(c heron.Case) string {
	if s := c.OptimizationSettings(); s != nil && s.StatsMetric != "" {
		return s.StatsMetric
	}
	return "expectedValue"
}

// OptTarget returns the output name of the optimized economic metric.
func OptTarget(c heron.Case) string {
	metric, _ := c.OptMetric()
	if m, ok := c.EconomicMetricsMeta()[metric]; ok {
		return m.OutputName
	}
	return metric
}

// OptObjective returns the objective variable name: the statistic prefix,
// its first percent or threshold when it has one, and the target metric,
// such as mean_NPV.
func OptObjective(c heron.Case) (string, error) {
	stat := OptStatistic(c)
	m, err := lookupStat(stat, c.StatsMetricsMeta())
	if err != nil {
		return "", err
	}
	name := m.Prefix
	switch {
	case len(m.Percent) > 0:
		name += "_" + m.Percent[0]
	case len(m.Threshold) > 0:
		name += "_" + m.Threshold[0]
	}
	return name + "_" + OptTarget(c), nil
}

var defaultStatsNames = map[string][]string{
	heron.ModeOpt:   {"expectedValue", "sigma", "median"},
	heron.ModeSweep: {"maximum", "minimum", "percentile", "samples", "variance"},
}

var flatStatsNames = map[string][]string{
	heron.ModeOpt:   {"expectedValue", "median"},
	heron.ModeSweep: {"maximum", "minimum", "percentile", "samples"},
}

// FinancialStatsNames are the statistics that only apply to economic
// metrics, never to dispatch activity.
var FinancialStatsNames = []string{"sharpeRatio", "sortinoRatio", "expectedShortfall", "valueAtRisk", "gainLossRatio"}

// DefaultStatsNames returns the statistics always reported in mode.
func DefaultStatsNames(mode string) []string {
	return slices.Clone(defaultStatsNames[mode])
}

// FlatStatsNames returns the statistics reported by a single-level
// workflow in mode.
func FlatStatsNames(mode string) []string {
	return slices.Clone(flatStatsNames[mode])
}

// IsFinancial reports whether stat is one of FinancialStatsNames.
func IsFinancial(stat string) bool {
	return slices.Contains(FinancialStatsNames, stat)
}

// Unique returns names with later duplicates dropped.
func Unique(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
