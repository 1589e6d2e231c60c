package casefile

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/expr-lang/expr"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/ormasoftchile/ravenwf/pkg/heron"
	"github.com/ormasoftchile/ravenwf/pkg/snippets"
)

// ValidationError represents a single validation error with location context.
type ValidationError struct {
	Phase    string `json:"phase"` // structural, semantic, domain
	Path     string `json:"path"`  // location in the document, e.g. "components[0].capacity"
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

// HasErrors reports whether errs holds anything worse than a warning.
func HasErrors(errs []*ValidationError) bool {
	for _, e := range errs {
		if e.Severity == "error" {
			return true
		}
	}
	return false
}

// ValidateFile performs the full 3-phase validation pipeline on a case file.
// Phase 1: Structural (strict YAML decode)
// Phase 2: Semantic (JSON Schema validation)
// Phase 3: Domain (custom Go rules)
func ValidateFile(path string) (*Document, []*ValidationError) {
	doc, err := LoadFile(path)
	if err != nil {
		return nil, []*ValidationError{{
			Phase:    "structural",
			Path:     "",
			Message:  err.Error(),
			Severity: "error",
		}}
	}
	return doc, Validate(doc)
}

// Validate runs the semantic and domain phases on a parsed document.
func Validate(doc *Document) []*ValidationError {
	var all []*ValidationError
	all = append(all, validateSemantic(doc)...)
	all = append(all, ValidateDomain(doc)...)
	if len(all) == 0 {
		return nil
	}
	return all
}

func semanticError(format string, args ...any) []*ValidationError {
	return []*ValidationError{{
		Phase:    "semantic",
		Path:     "",
		Message:  fmt.Sprintf(format, args...),
		Severity: "error",
	}}
}

// validateSemantic validates the document against the JSON Schema.
func validateSemantic(doc *Document) []*ValidationError {
	data, err := json.Marshal(doc)
	if err != nil {
		return semanticError("marshal for schema validation: %v", err)
	}

	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return semanticError("generate schema: %v", err)
	}
	var schemaDoc any
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return semanticError("unmarshal schema: %v", err)
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource("case-v1.json", schemaDoc); err != nil {
		return semanticError("add schema resource: %v", err)
	}
	sch, err := c.Compile("case-v1.json")
	if err != nil {
		return semanticError("compile schema: %v", err)
	}

	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return semanticError("unmarshal document: %v", err)
	}

	if err := sch.Validate(instance); err != nil {
		ve, ok := err.(*sjsonschema.ValidationError)
		if !ok {
			return semanticError("%v", err)
		}
		var errs []*ValidationError
		for _, cause := range flattenValidationErrors(ve) {
			errs = append(errs, &ValidationError{
				Phase:    "semantic",
				Path:     strings.Join(cause.InstanceLocation, "/"),
				Message:  fmt.Sprintf("%v", cause.ErrorKind),
				Severity: "error",
			})
		}
		return errs
	}
	return nil
}

// flattenValidationErrors recursively collects all leaf validation errors.
func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}

// paramRule is a boolean expression over a valued parameter. The rule holds
// when the expression is true.
type paramRule struct {
	Expr     string
	Message  string
	Severity string
}

var paramRules = []paramRule{
	{`kind != "Parametric" || has_value || n_values > 0`, "parametric value needs value or values", "error"},
	{`kind == "Parametric" || signal != ""`, "non-parametric value needs a signal", "error"},
	{`mode != "opt" || n_values == 0 || n_values == 2`, "optimization bounds should list exactly two values", "warning"},
	{`!has_value || n_values == 0`, "value and values are both set; values wins", "warning"},
}

func paramEnv(p ParamSpec, mode string) map[string]any {
	return map[string]any{
		"kind":      paramView{spec: &p}.Type(),
		"has_value": p.Value != nil,
		"n_values":  len(p.Values),
		"signal":    p.Signal,
		"mode":      mode,
	}
}

func checkParam(path string, p ParamSpec, mode string) []*ValidationError {
	var errs []*ValidationError
	env := paramEnv(p, mode)
	for _, rule := range paramRules {
		program, err := expr.Compile(rule.Expr, expr.Env(env), expr.AsBool())
		if err != nil {
			errs = append(errs, domainErr(path, "compile rule %q: %v", rule.Expr, err))
			continue
		}
		out, err := expr.Run(program, env)
		if err != nil {
			errs = append(errs, domainErr(path, "evaluate rule %q: %v", rule.Expr, err))
			continue
		}
		if ok, _ := out.(bool); !ok {
			errs = append(errs, &ValidationError{Phase: "domain", Path: path, Message: rule.Message, Severity: rule.Severity})
		}
	}
	return errs
}

var labelKeyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func domainErr(path, format string, args ...any) *ValidationError {
	return &ValidationError{Phase: "domain", Path: path, Message: fmt.Sprintf(format, args...), Severity: "error"}
}

// ValidateDomain performs Phase 3 domain-level validation.
// Returns a slice of errors; empty means valid.
func ValidateDomain(doc *Document) []*ValidationError {
	var errs []*ValidationError

	if doc.APIVersion != APIVersion {
		errs = append(errs, domainErr("apiVersion", "unrecognized apiVersion %q, expected %q", doc.APIVersion, APIVersion))
	}

	c := doc.Case
	if c.Mode != heron.ModeSweep && c.Mode != heron.ModeOpt {
		errs = append(errs, domainErr("case.mode", "unsupported mode %q: must be sweep or opt", c.Mode))
	}

	keys := make([]string, 0, len(c.Labels))
	for k := range c.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !labelKeyPattern.MatchString(k) {
			errs = append(errs, domainErr("case.labels."+k, "label %q is not a valid variable name", k))
		}
	}

	statsMeta := heron.DefaultStatsMetricsMeta()
	econMeta := heron.DefaultEconomicMetricsMeta()
	if e := c.Economics; e != nil {
		for i, s := range e.Statistics {
			if _, ok := statsMeta[s]; !ok {
				errs = append(errs, domainErr(fmt.Sprintf("case.economics.statistics[%d]", i),
					"unknown statistic %q: must be one of %s", s, joinKeys(statsMeta)))
			}
		}
		for i, m := range e.Metrics {
			if _, ok := econMeta[m]; !ok {
				errs = append(errs, domainErr(fmt.Sprintf("case.economics.metrics[%d]", i),
					"unknown economic metric %q: must be one of %s", m, joinKeys(econMeta)))
			}
		}
	}

	if o := c.Optimization; o != nil {
		if o.StatsMetric != "" {
			if _, ok := statsMeta[o.StatsMetric]; !ok {
				errs = append(errs, domainErr("case.optimization.stats_metric", "unknown statistic %q", o.StatsMetric))
			}
		}
		if o.Metric != "" {
			if _, ok := econMeta[o.Metric]; !ok {
				errs = append(errs, domainErr("case.optimization.metric", "unknown economic metric %q", o.Metric))
			}
		}
		if o.Acquisition != "" {
			if _, err := snippets.NewAcquisition(o.Acquisition, nil); err != nil {
				errs = append(errs, domainErr("case.optimization.acquisition", "%v", err))
			}
		}
	} else if c.Mode == heron.ModeOpt {
		errs = append(errs, &ValidationError{Phase: "domain", Path: "case.optimization",
			Message: "opt mode without optimization settings uses Bayesian optimization defaults", Severity: "warning"})
	}

	dvNames := make([]string, 0, len(c.DispatchVars))
	for n := range c.DispatchVars {
		dvNames = append(dvNames, n)
	}
	sort.Strings(dvNames)
	for _, n := range dvNames {
		errs = append(errs, checkParam("case.dispatch_vars."+n, c.DispatchVars[n], c.Mode)...)
	}

	seen := map[string]bool{}
	for i, comp := range doc.Components {
		path := fmt.Sprintf("components[%d]", i)
		if seen[comp.Name] {
			errs = append(errs, domainErr(path+".name", "duplicate component name %q", comp.Name))
		}
		seen[comp.Name] = true
		errs = append(errs, checkParam(path+".capacity", comp.Capacity, c.Mode)...)
		for j, cf := range comp.Cashflows {
			for k, u := range cf.Uncertain {
				upath := fmt.Sprintf("%s.cashflows[%d].uncertain[%d]", path, j, k)
				errs = append(errs, checkDistribution(upath+".distribution", u.Distribution)...)
			}
		}
	}

	errs = append(errs, validateSources(doc.Sources)...)
	return errs
}

// checkDistribution builds the distribution the way the workflow will and
// runs its parameter constraints.
func checkDistribution(path string, spec DistributionSpec) []*ValidationError {
	dist, err := snippets.NewDistribution(spec.Type, "check")
	if err != nil {
		return []*ValidationError{domainErr(path+".type", "%v", err)}
	}
	var errs []*ValidationError
	params := make([]string, 0, len(spec.Params))
	for p := range spec.Params {
		params = append(params, p)
	}
	sort.Strings(params)
	for _, p := range params {
		if err := dist.SetParam(snippets.AccessorName(p), spec.Params[p]); err != nil {
			errs = append(errs, domainErr(path+".params."+p, "%v", err))
		}
	}
	if len(errs) == 0 {
		if err := dist.Validate(); err != nil {
			errs = append(errs, domainErr(path, "%v", err))
		}
	}
	return errs
}

func validateSources(sources []SourceSpec) []*ValidationError {
	var errs []*ValidationError
	seen := map[string]bool{}
	var arma, csv []string
	for i, s := range sources {
		path := fmt.Sprintf("sources[%d]", i)
		if seen[s.Name] {
			errs = append(errs, domainErr(path+".name", "duplicate source name %q", s.Name))
		}
		seen[s.Name] = true
		switch s.Type {
		case heron.SourceARMA, heron.SourceCSV:
			if s.TargetFile == "" {
				errs = append(errs, domainErr(path+".target_file", "%s source %q requires a target_file", s.Type, s.Name))
			}
			if len(s.Variables) == 0 {
				errs = append(errs, domainErr(path+".variables", "%s source %q provides no variables", s.Type, s.Name))
			}
			if s.Type == heron.SourceARMA {
				arma = append(arma, s.Name)
			} else {
				csv = append(csv, s.Name)
			}
		case heron.SourceFunction:
			if s.Path == "" {
				errs = append(errs, domainErr(path+".path", "Function source %q requires a path", s.Name))
			}
		default:
			errs = append(errs, domainErr(path+".type", "unknown source type %q: must be ARMA, CSV, or Function", s.Type))
		}
	}
	if len(arma) > 0 && len(csv) > 0 {
		errs = append(errs, domainErr("sources",
			"synthetic history sources (%s) cannot be combined with static history sources (%s)",
			strings.Join(arma, ", "), strings.Join(csv, ", ")))
	}
	return errs
}

func joinKeys[T any](m map[string]T) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}
