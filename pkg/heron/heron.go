// Package heron defines the read-only view of a techno-economic case that
// workflow generation consumes: the case settings, its components and the
// sources feeding the dispatch.
//
// Every getter is a side-effect-free query. pkg/casefile provides a YAML
// backed implementation; tests use small in-memory fakes.
package heron

// Case modes.
const (
	ModeSweep = "sweep"
	ModeOpt   = "opt"
)

// Source types.
const (
	SourceARMA     = "ARMA"
	SourceCSV      = "CSV"
	SourceFunction = "Function"
)

// Capacity value-parameter types. Parametric capacities are sampled or
// optimized by the outer workflow; the signal-driven ones are resolved in
// the dispatch.
const (
	ParamParametric       = "Parametric"
	ParamStaticHistory    = "StaticHistory"
	ParamSyntheticHistory = "SyntheticHistory"
	ParamFunction         = "Function"
	ParamVariable         = "Variable"
)

// Optimization strategies.
const (
	StrategyBayesianOpt     = "BayesianOpt"
	StrategyGradientDescent = "GradientDescent"
)

// Case is the top-level case description.
type Case interface {
	Name() string
	// Mode is ModeSweep or ModeOpt.
	Mode() string
	Verbosity() string
	NumSamples() int
	TimeName() string
	YearName() string
	// Labels are categorical run identifiers, in declaration order.
	Labels() []Label
	Debug() DebugSettings

	OuterParallel() int
	InnerParallel() int
	UseParallel() bool
	// ParallelRunInfo holds the RunInfo overrides used with UseParallel.
	ParallelRunInfo() map[string]string
	// InnerToOuter is "csv" or "netcdf".
	InnerToOuter() string
	// PythonCommand is an optional custom command used to launch RAVEN.
	PythonCommand() string

	// ResultStatistics names the statistics requested on top of the mode
	// defaults.
	ResultStatistics() []string
	StatsMetricsMeta() map[string]StatMeta
	EconomicMetricsMeta() map[string]EconMeta
	// EconMetrics returns the output names of the economic metrics.
	EconMetrics() []string
	// OptMetric returns the economic metric optimized and its direction.
	OptMetric() (metric, direction string)
	// OptimizationSettings is nil when the case sets none.
	OptimizationSettings() *OptimizationSettings

	// DispatchVars are dispatch-side variables that may be sampled.
	DispatchVars() []DispatchVar
}

// Label is one case label.
type Label struct {
	Key   string
	Value string
}

// DebugSettings are the debug-mode switches.
type DebugSettings struct {
	Enabled      bool
	DispatchPlot bool
	CashflowPlot bool
}

// StatMeta describes how a statistic is named: a prefix, plus optional
// percent or threshold parameters, each of which may list several values.
type StatMeta struct {
	Prefix    string
	Percent   []string
	Threshold []string
}

// EconMeta describes an economic metric.
type EconMeta struct {
	OutputName string
}

// OptimizationSettings are the user-facing optimizer settings.
type OptimizationSettings struct {
	Strategy string
	// StatsMetric is the statistic applied to the optimized metric;
	// empty means expectedValue.
	StatsMetric string
	// Type is "min" or "max".
	Type        string
	Persistence int
	Limit       int
	Convergence map[string]any

	Kernel         string
	Acquisition    string
	Seed           *int
	ModelSelection map[string]any

	GrowthFactor     float64
	ShrinkFactor     float64
	InitialStepScale float64
}

// DispatchVar is a named dispatch variable and its value.
type DispatchVar struct {
	Name  string
	Value ValuedParam
}

// Component is one unit of the energy system.
type Component interface {
	Name() string
	// Capacity is the raw capacity value parameter.
	Capacity() ValuedParam
	TrackingVars() []string
	Resources() []string
	Cashflows() []Cashflow
}

// ValuedParam is a value that is either known (parametric) or comes from a
// signal resolved during dispatch.
type ValuedParam interface {
	Type() string
	IsParametric() bool
	// Value returns the parametric value. In debug mode a dedicated debug
	// value takes precedence when one is set.
	Value(debug bool) Value
}

// Value is a parametric value: a single number, or a list holding sweep
// values or optimization bounds.
type Value struct {
	Values []float64
	List   bool
}

// Scalar returns a single-number value.
func Scalar(v float64) Value { return Value{Values: []float64{v}} }

// List returns a list value.
func List(vs ...float64) Value { return Value{Values: vs, List: true} }

// First returns the first number, or 0 for an empty value.
func (v Value) First() float64 {
	if len(v.Values) == 0 {
		return 0
	}
	return v.Values[0]
}

// Cashflow is one cashflow of a component.
type Cashflow interface {
	Name() string
	NPVExempt() bool
	// Depreciation is the depreciation period in years, or 0.
	Depreciation() int
	// UncertainParams are the cashflow parameters described by a
	// distribution, in declaration order.
	UncertainParams() []UncertainParam
}

// UncertainParam is a cashflow parameter sampled from a distribution.
type UncertainParam struct {
	Name         string
	Distribution DistributionSpec
}

// DistributionSpec names a distribution type and its parameters, keyed by
// the parameter's element name (for example lowerBound).
type DistributionSpec struct {
	Type   string
	Params map[string]float64
}

// Source is an external input to the dispatch.
type Source interface {
	Name() string
	// Type is SourceARMA, SourceCSV or SourceFunction.
	Type() string
	// Variables are the signals the source provides.
	Variables() []string
	// TargetFile is the data file a ROM or CSV is read from.
	TargetFile() string
	// Path is the location of a Function source.
	Path() string
	// NumSamples is the number of static histories a CSV source holds.
	NumSamples() int
	// Multiyear is the number of cycles a ROM must produce, or 0.
	Multiyear() int
	// LimitInterp caps the ROM interpolation cycles, or 0.
	LimitInterp() int
	// EvalMode is "clustered" or "full".
	EvalMode() string
}

// IsType reports whether s has type typ.
func IsType(s Source, typ string) bool { return s.Type() == typ }

// HasSource reports whether any source has type typ.
func HasSource(sources []Source, typ string) bool {
	for _, s := range sources {
		if IsType(s, typ) {
			return true
		}
	}
	return false
}

// SourcesOf returns the sources of type typ in order.
func SourcesOf(sources []Source, typ string) []Source {
	var out []Source
	for _, s := range sources {
		if IsType(s, typ) {
			out = append(out, s)
		}
	}
	return out
}

// HasUncertainCashflows reports whether any component cashflow has an
// uncertain parameter.
func HasUncertainCashflows(components []Component) bool {
	for _, c := range components {
		for _, cf := range c.Cashflows() {
			if len(cf.UncertainParams()) > 0 {
				return true
			}
		}
	}
	return false
}

// AllCapacitiesFixed reports whether no component capacity is parametric.
func AllCapacitiesFixed(components []Component) bool {
	for _, c := range components {
		if c.Capacity().IsParametric() {
			return false
		}
	}
	return true
}
