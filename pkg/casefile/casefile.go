// Package casefile defines the YAML case document read by ravenwf and
// provides strict parsing, JSON Schema export and validation.
//
// A parsed Document exposes its content through the read-only interfaces of
// pkg/heron, which is all workflow generation needs.
package casefile

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// APIVersion is the only accepted document version.
const APIVersion = "ravenwf/v1"

// Document is a complete case file.
type Document struct {
	APIVersion string          `yaml:"apiVersion" json:"apiVersion" jsonschema:"required,enum=ravenwf/v1"`
	Case       CaseSpec        `yaml:"case"       json:"case"       jsonschema:"required"`
	Components []ComponentSpec `yaml:"components" json:"components" jsonschema:"required,minItems=1"`
	Sources    []SourceSpec    `yaml:"sources,omitempty" json:"sources,omitempty"`
}

// CaseSpec holds the case-wide settings.
type CaseSpec struct {
	Name         string               `yaml:"name"                   json:"name"                   jsonschema:"required"`
	Mode         string               `yaml:"mode"                   json:"mode"                   jsonschema:"required,enum=sweep,enum=opt"`
	Verbosity    string               `yaml:"verbosity,omitempty"     json:"verbosity,omitempty"     jsonschema:"enum=silent,enum=quiet,enum=all,enum=debug"`
	NumSamples   int                  `yaml:"num_samples,omitempty"   json:"num_samples,omitempty"   jsonschema:"minimum=1"`
	TimeName     string               `yaml:"time_name,omitempty"     json:"time_name,omitempty"`
	YearName     string               `yaml:"year_name,omitempty"     json:"year_name,omitempty"`
	Labels       map[string]string    `yaml:"labels,omitempty"        json:"labels,omitempty"`
	Debug        *DebugSpec           `yaml:"debug,omitempty"         json:"debug,omitempty"`
	Parallel     *ParallelSpec        `yaml:"parallel,omitempty"      json:"parallel,omitempty"`
	DataHandling *DataHandlingSpec    `yaml:"data_handling,omitempty" json:"data_handling,omitempty"`
	PythonCmd    string               `yaml:"python_command,omitempty" json:"python_command,omitempty"`
	Economics    *EconomicsSpec       `yaml:"economics,omitempty"     json:"economics,omitempty"`
	Optimization *OptimizationSpec    `yaml:"optimization,omitempty"  json:"optimization,omitempty"`
	DispatchVars map[string]ParamSpec `yaml:"dispatch_vars,omitempty" json:"dispatch_vars,omitempty"`
}

// DebugSpec switches debug mode and its extra plots.
type DebugSpec struct {
	Enabled      bool `yaml:"enabled"                 json:"enabled"`
	DispatchPlot bool `yaml:"dispatch_plot,omitempty" json:"dispatch_plot,omitempty"`
	CashflowPlot bool `yaml:"cashflow_plot,omitempty" json:"cashflow_plot,omitempty"`
}

// ParallelSpec configures parallel execution.
type ParallelSpec struct {
	Outer       int               `yaml:"outer,omitempty"        json:"outer,omitempty"        jsonschema:"minimum=0"`
	Inner       int               `yaml:"inner,omitempty"        json:"inner,omitempty"        jsonschema:"minimum=0"`
	UseParallel bool              `yaml:"use_parallel,omitempty" json:"use_parallel,omitempty"`
	RunInfo     map[string]string `yaml:"run_info,omitempty"     json:"run_info,omitempty"`
}

// DataHandlingSpec selects how inner results reach the outer workflow.
type DataHandlingSpec struct {
	InnerToOuter string `yaml:"inner_to_outer,omitempty" json:"inner_to_outer,omitempty" jsonschema:"enum=csv,enum=netcdf"`
}

// EconomicsSpec lists the economic metrics and statistics reported.
type EconomicsSpec struct {
	Metrics    []string `yaml:"metrics,omitempty"    json:"metrics,omitempty"`
	Statistics []string `yaml:"statistics,omitempty" json:"statistics,omitempty"`
}

// OptimizationSpec holds the optimizer settings used in opt mode.
type OptimizationSpec struct {
	Strategy         string         `yaml:"strategy,omitempty"           json:"strategy,omitempty"           jsonschema:"enum=BayesianOpt,enum=GradientDescent"`
	Metric           string         `yaml:"metric,omitempty"             json:"metric,omitempty"`
	StatsMetric      string         `yaml:"stats_metric,omitempty"       json:"stats_metric,omitempty"`
	Type             string         `yaml:"type,omitempty"               json:"type,omitempty"               jsonschema:"enum=min,enum=max"`
	Persistence      int            `yaml:"persistence,omitempty"        json:"persistence,omitempty"        jsonschema:"minimum=0"`
	Limit            int            `yaml:"limit,omitempty"              json:"limit,omitempty"              jsonschema:"minimum=0"`
	Convergence      map[string]any `yaml:"convergence,omitempty"        json:"convergence,omitempty"`
	Kernel           string         `yaml:"kernel,omitempty"             json:"kernel,omitempty"`
	Acquisition      string         `yaml:"acquisition,omitempty"        json:"acquisition,omitempty"`
	Seed             *int           `yaml:"seed,omitempty"               json:"seed,omitempty"`
	ModelSelection   map[string]any `yaml:"model_selection,omitempty"    json:"model_selection,omitempty"`
	GrowthFactor     float64        `yaml:"growth_factor,omitempty"      json:"growth_factor,omitempty"`
	ShrinkFactor     float64        `yaml:"shrink_factor,omitempty"      json:"shrink_factor,omitempty"`
	InitialStepScale float64        `yaml:"initial_step_scale,omitempty" json:"initial_step_scale,omitempty"`
}

// ComponentSpec is one component.
type ComponentSpec struct {
	Name         string         `yaml:"name"                    json:"name"     jsonschema:"required"`
	Capacity     ParamSpec      `yaml:"capacity"                json:"capacity" jsonschema:"required"`
	TrackingVars []string       `yaml:"tracking_vars,omitempty" json:"tracking_vars,omitempty"`
	Resources    []string       `yaml:"resources,omitempty"     json:"resources,omitempty"`
	Cashflows    []CashflowSpec `yaml:"cashflows,omitempty"     json:"cashflows,omitempty"`
}

// ParamSpec is a valued parameter. A parametric parameter sets value, or
// values for sweeps and optimization bounds; the other types name the
// signal they are driven by.
type ParamSpec struct {
	Type       string    `yaml:"type,omitempty"        json:"type,omitempty"        jsonschema:"enum=Parametric,enum=StaticHistory,enum=SyntheticHistory,enum=Function,enum=Variable"`
	Value      *float64  `yaml:"value,omitempty"       json:"value,omitempty"`
	Values     []float64 `yaml:"values,omitempty"      json:"values,omitempty"`
	DebugValue *float64  `yaml:"debug_value,omitempty" json:"debug_value,omitempty"`
	Signal     string    `yaml:"signal,omitempty"      json:"signal,omitempty"`
}

// CashflowSpec is one cashflow of a component.
type CashflowSpec struct {
	Name         string          `yaml:"name"                   json:"name" jsonschema:"required"`
	NPVExempt    bool            `yaml:"npv_exempt,omitempty"   json:"npv_exempt,omitempty"`
	Depreciation int             `yaml:"depreciation,omitempty" json:"depreciation,omitempty" jsonschema:"minimum=0"`
	Uncertain    []UncertainSpec `yaml:"uncertain,omitempty"    json:"uncertain,omitempty"`
}

// UncertainSpec describes an uncertain cashflow parameter.
type UncertainSpec struct {
	Param        string           `yaml:"param"        json:"param"        jsonschema:"required"`
	Distribution DistributionSpec `yaml:"distribution" json:"distribution" jsonschema:"required"`
}

// DistributionSpec names a distribution and its parameters.
type DistributionSpec struct {
	Type   string             `yaml:"type"   json:"type"   jsonschema:"required"`
	Params map[string]float64 `yaml:"params" json:"params,omitempty"`
}

// SourceSpec is an external input: a synthetic history ROM (ARMA), a static
// history (CSV) or a Python function (Function).
type SourceSpec struct {
	Name        string   `yaml:"name"                   json:"name" jsonschema:"required"`
	Type        string   `yaml:"type"                   json:"type" jsonschema:"required,enum=ARMA,enum=CSV,enum=Function"`
	Variables   []string `yaml:"variables,omitempty"    json:"variables,omitempty"`
	TargetFile  string   `yaml:"target_file,omitempty"  json:"target_file,omitempty"`
	Path        string   `yaml:"path,omitempty"         json:"path,omitempty"`
	NumSamples  int      `yaml:"num_samples,omitempty"  json:"num_samples,omitempty"  jsonschema:"minimum=0"`
	Multiyear   int      `yaml:"multiyear,omitempty"    json:"multiyear,omitempty"    jsonschema:"minimum=0"`
	LimitInterp int      `yaml:"limit_interp,omitempty" json:"limit_interp,omitempty" jsonschema:"minimum=0"`
	EvalMode    string   `yaml:"eval_mode,omitempty"    json:"eval_mode,omitempty"    jsonschema:"enum=full,enum=clustered"`
}

// LoadFile reads and parses a case file with strict unknown-field
// rejection.
func LoadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open case file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses a case document from r, rejecting unknown fields.
func Load(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode case file: %w", err)
	}
	return &doc, nil
}

// Marshal renders doc as YAML.
func Marshal(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode case file: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode case file: %w", err)
	}
	return buf.Bytes(), nil
}
