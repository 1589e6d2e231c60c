package casefile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ormasoftchile/ravenwf/pkg/heron"
)

const sweepCase = `apiVersion: ravenwf/v1
case:
  name: Sweep_Runs
  mode: sweep
  num_samples: 3
  labels:
    region: north
    policy: tax
  economics:
    metrics: [NPV]
    statistics: [expectedValue]
components:
  - name: wind
    capacity:
      values: [10, 20, 30]
    tracking_vars: [production]
    resources: [electricity]
    cashflows:
      - name: capex
        uncertain:
          - param: reference_price
            distribution:
              type: Uniform
              params: {lowerBound: 1, upperBound: 2}
  - name: grid
    capacity:
      type: Function
      signal: demand
sources:
  - name: Price
    type: ARMA
    variables: [price]
    target_file: arma.pk
`

func mustLoad(t *testing.T, doc string) *Document {
	t.Helper()
	d, err := Load(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return d
}

// TestLoad_Strict verifies unknown fields are rejected.
func TestLoad_Strict(t *testing.T) {
	_, err := Load(strings.NewReader("apiVersion: ravenwf/v1\ncase:\n  name: x\n  mode: sweep\n  colour: red\n"))
	if err == nil || !strings.Contains(err.Error(), "colour") {
		t.Fatalf("expected unknown-field error, got %v", err)
	}
}

func TestViews(t *testing.T) {
	doc := mustLoad(t, sweepCase)
	c := doc.HeronCase()

	if c.Name() != "Sweep_Runs" || c.Mode() != heron.ModeSweep || c.NumSamples() != 3 {
		t.Errorf("case = %q %q %d", c.Name(), c.Mode(), c.NumSamples())
	}
	if c.TimeName() != "Time" || c.YearName() != "Year" || c.Verbosity() != "all" {
		t.Errorf("defaults: %q %q %q", c.TimeName(), c.YearName(), c.Verbosity())
	}
	if c.InnerToOuter() != "netcdf" {
		t.Errorf("InnerToOuter = %q", c.InnerToOuter())
	}
	want := []heron.Label{{Key: "policy", Value: "tax"}, {Key: "region", Value: "north"}}
	if diff := cmp.Diff(want, c.Labels()); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
	if metric, dir := c.OptMetric(); metric != "NPV" || dir != "max" {
		t.Errorf("OptMetric = %q, %q", metric, dir)
	}
	if c.OptimizationSettings() != nil {
		t.Error("sweep case has optimization settings")
	}

	comps := doc.HeronComponents()
	if len(comps) != 2 {
		t.Fatalf("%d components", len(comps))
	}
	capWind := comps[0].Capacity()
	if !capWind.IsParametric() {
		t.Error("wind capacity should be parametric")
	}
	if v := capWind.Value(false); !v.List || len(v.Values) != 3 {
		t.Errorf("wind capacity = %+v", v)
	}
	if comps[1].Capacity().Type() != heron.ParamFunction {
		t.Errorf("grid capacity type = %q", comps[1].Capacity().Type())
	}
	ups := comps[0].Cashflows()[0].UncertainParams()
	if len(ups) != 1 || ups[0].Name != "reference_price" || ups[0].Distribution.Type != "Uniform" {
		t.Errorf("uncertain params = %+v", ups)
	}
	if !heron.HasUncertainCashflows(comps) {
		t.Error("HasUncertainCashflows = false")
	}

	src := doc.HeronSources()[0]
	if src.NumSamples() != 1 || src.EvalMode() != "full" {
		t.Errorf("source defaults: %d %q", src.NumSamples(), src.EvalMode())
	}
}

func TestParamValue_Debug(t *testing.T) {
	dbg := 5.0
	p := paramView{spec: &ParamSpec{Values: []float64{1, 9}, DebugValue: &dbg}}
	if v := p.Value(true); v.List || v.First() != 5 {
		t.Errorf("debug value = %+v", v)
	}
	if v := p.Value(false); !v.List {
		t.Errorf("non-debug value = %+v", v)
	}
}

// TestValidate_Valid verifies a well-formed case passes all phases.
func TestValidate_Valid(t *testing.T) {
	doc := mustLoad(t, sweepCase)
	for _, e := range Validate(doc) {
		t.Errorf("unexpected %s", e)
	}
}

func TestValidateDomain(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(d *Document)
		path    string
		message string
	}{
		{"mode", func(d *Document) { d.Case.Mode = "explore" }, "case.mode", "unsupported mode"},
		{"statistic", func(d *Document) { d.Case.Economics.Statistics = []string{"meanest"} }, "case.economics.statistics[0]", "unknown statistic"},
		{"label", func(d *Document) { d.Case.Labels["bad key"] = "x" }, "case.labels.bad key", "not a valid variable name"},
		{"capacity", func(d *Document) { d.Components[0].Capacity = ParamSpec{} }, "components[0].capacity", "needs value or values"},
		{"signal", func(d *Document) { d.Components[1].Capacity.Signal = "" }, "components[1].capacity", "needs a signal"},
		{"duplicate", func(d *Document) { d.Components[1].Name = "wind" }, "components[1].name", "duplicate component"},
		{"distribution", func(d *Document) {
			d.Components[0].Cashflows[0].Uncertain[0].Distribution.Type = "Cauchy"
		}, "components[0].cashflows[0].uncertain[0].distribution.type", "Cauchy"},
		{"bounds", func(d *Document) {
			d.Components[0].Cashflows[0].Uncertain[0].Distribution.Params["upperBound"] = 0
		}, "components[0].cashflows[0].uncertain[0].distribution", "upperBound"},
		{"target", func(d *Document) { d.Sources[0].TargetFile = "" }, "sources[0].target_file", "requires a target_file"},
		{"mixed", func(d *Document) {
			d.Sources = append(d.Sources, SourceSpec{Name: "Hist", Type: heron.SourceCSV, Variables: []string{"load"}, TargetFile: "h.csv"})
		}, "sources", "Price"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustLoad(t, sweepCase)
			tt.mutate(doc)
			errs := ValidateDomain(doc)
			for _, e := range errs {
				if e.Path == tt.path && strings.Contains(e.Message, tt.message) && e.Severity == "error" {
					return
				}
			}
			t.Errorf("no error at %s containing %q; got %v", tt.path, tt.message, errs)
		})
	}
}

func TestValidateDomain_OptBoundsWarning(t *testing.T) {
	doc := mustLoad(t, sweepCase)
	doc.Case.Mode = heron.ModeOpt
	errs := ValidateDomain(doc)
	if HasErrors(errs) {
		t.Fatalf("unexpected errors: %v", errs)
	}
	var warned bool
	for _, e := range errs {
		if e.Path == "components[0].capacity" && e.Severity == "warning" {
			warned = true
		}
	}
	if !warned {
		t.Errorf("expected a bounds warning, got %v", errs)
	}
}

func TestValidateFile_Structural(t *testing.T) {
	path := filepath.Join(t.TempDir(), "case.yaml")
	if err := os.WriteFile(path, []byte("apiVersion: [\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	doc, errs := ValidateFile(path)
	if doc != nil || len(errs) != 1 || errs[0].Phase != "structural" {
		t.Errorf("ValidateFile = %v, %v", doc, errs)
	}
}

func TestValidate_Semantic(t *testing.T) {
	doc := mustLoad(t, sweepCase)
	doc.Sources[0].EvalMode = "sometimes"
	var found bool
	for _, e := range Validate(doc) {
		if e.Phase == "semantic" {
			found = true
		}
	}
	if !found {
		t.Error("schema enum violation not reported")
	}
}

func TestGenerateJSONSchema(t *testing.T) {
	data, err := GenerateJSONSchema()
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"ravenwf case file v1"`, `"components"`, `"dispatch_vars"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("schema lacks %s", want)
		}
	}
}

func TestMarshal_RoundTrip(t *testing.T) {
	doc := mustLoad(t, sweepCase)
	data, err := Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	again := mustLoad(t, string(data))
	if diff := cmp.Diff(doc, again); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
