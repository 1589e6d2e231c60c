package naming

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ormasoftchile/ravenwf/pkg/casefile"
	"github.com/ormasoftchile/ravenwf/pkg/heron"
	"github.com/ormasoftchile/ravenwf/pkg/xmltree"
)

const baseCase = `apiVersion: ravenwf/v1
case:
  name: Opt_Runs
  mode: opt
  economics:
    metrics: [NPV, IRR]
components:
  - name: wind
    capacity:
      values: [10, 30]
    tracking_vars: [production]
    resources: [electricity, heat]
  - name: battery
    capacity:
      value: 5
    tracking_vars: [level, charge]
    resources: [electricity]
    cashflows:
      - name: capex
      - name: om
  - name: grid
    capacity:
      type: Function
      signal: demand
`

func loadCase(t *testing.T, doc string) *casefile.Document {
	t.Helper()
	d, err := casefile.Load(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return d
}

func TestFormat(t *testing.T) {
	tests := []struct {
		key    string
		fields map[string]string
		want   string
	}{
		{Dispatch, map[string]string{"component": "wind", "tracker": "production", "resource": "electricity"}, "Dispatch__wind__production__electricity"},
		{JobName, map[string]string{"case": "c1", "io": "o"}, "c1_o"},
		{Distribution, map[string]string{"variable": "wind_capacity"}, "wind_capacity_dist"},
		{StepName, map[string]string{"action": "read"}, "read_{subject}"},
		{"no such template", nil, ""},
	}
	for _, tt := range tests {
		if got := Format(tt.key, tt.fields); got != tt.want {
			t.Errorf("Format(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
	if Cluster() != "_ROM_Cluster" || Lib() != "heron.lib" {
		t.Errorf("constants: %q %q", Cluster(), Lib())
	}
}

// TestStatistics verifies percent and threshold expansion and metric names.
func TestStatistics(t *testing.T) {
	meta := heron.DefaultStatsMetricsMeta()
	stats, err := Statistics([]string{"percentile", "sortinoRatio", "expectedValue"}, meta)
	if err != nil {
		t.Fatal(err)
	}
	var metrics []string
	for _, s := range stats {
		metrics = append(metrics, s.Metric("NPV"))
	}
	want := []string{"perc_5_NPV", "perc_95_NPV", "sortino_median_NPV", "mean_NPV"}
	if diff := cmp.Diff(want, metrics); diff != "" {
		t.Errorf("metrics mismatch (-want +got):\n%s", diff)
	}

	wantAttrs := []xmltree.Attr{{Name: "threshold", Value: "median"}}
	if diff := cmp.Diff(wantAttrs, stats[2].Attrs()); diff != "" {
		t.Errorf("attrs mismatch (-want +got):\n%s", diff)
	}
	if stats[3].Attrs() != nil {
		t.Errorf("plain statistic has attrs %v", stats[3].Attrs())
	}

	if _, err := Statistics([]string{"meanest"}, meta); !errors.Is(err, ErrUnknownStatistic) {
		t.Errorf("err = %v, want ErrUnknownStatistic", err)
	}
}

func TestStatPrefixes(t *testing.T) {
	got, err := StatPrefixes([]string{"expectedValue", "percentile", "valueAtRisk"}, heron.DefaultStatsMetricsMeta())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"mean", "perc_5", "perc_95", "VaR_0.05"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("prefixes mismatch (-want +got):\n%s", diff)
	}
}

// TestResultStats verifies statistics are the outer loop.
func TestResultStats(t *testing.T) {
	got, err := ResultStats([]string{"NPV", "IRR"}, []string{"expectedValue", "sigma"}, heron.DefaultStatsMetricsMeta())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"mean_NPV", "mean_IRR", "std_NPV", "std_IRR"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("result stats mismatch (-want +got):\n%s", diff)
	}
}

func TestCapacityVars(t *testing.T) {
	doc := loadCase(t, baseCase)
	got, err := CapacityVars(doc.HeronComponents(), false)
	if err != nil {
		t.Fatal(err)
	}
	want := []CapacityVar{
		{Name: "wind_capacity", Value: heron.List(10, 30)},
		{Name: "battery_capacity", Value: heron.Scalar(5)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("capacity vars mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"wind_capacity", "battery_capacity"}, CapacityNames(got)); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
}

// TestCapacityVars_Debug verifies list values collapse to their first entry.
func TestCapacityVars_Debug(t *testing.T) {
	doc := loadCase(t, baseCase)
	got, err := CapacityVars(doc.HeronComponents(), true)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Value.List || got[0].Value.First() != 10 {
		t.Errorf("debug wind capacity = %+v", got[0].Value)
	}
}

func TestCapacityVars_Unsupported(t *testing.T) {
	doc := loadCase(t, baseCase)
	doc.Components[2].Capacity.Type = "Lookup"
	_, err := CapacityVars(doc.HeronComponents(), false)
	if !errors.Is(err, ErrNotImplemented) {
		t.Fatalf("err = %v, want ErrNotImplemented", err)
	}
	if !strings.Contains(err.Error(), "grid") {
		t.Errorf("error does not name the component: %v", err)
	}
}

func TestComponentActivityVars(t *testing.T) {
	doc := loadCase(t, baseCase)
	doc.Components[0].Resources = []string{"heat", "electricity"}
	got := ComponentActivityVars(doc.HeronComponents()[:2], TotalActivity)
	want := []string{
		"TotalActivity__wind__production__electricity",
		"TotalActivity__wind__production__heat",
		"TotalActivity__battery__level__electricity",
		"TotalActivity__battery__charge__electricity",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("activity vars mismatch (-want +got):\n%s", diff)
	}
}

func TestCashflowNames(t *testing.T) {
	doc := loadCase(t, baseCase)
	got := CashflowNames(doc.HeronComponents())
	if diff := cmp.Diff([]string{"battery_capex", "battery_om"}, got); diff != "" {
		t.Errorf("cashflow names mismatch (-want +got):\n%s", diff)
	}
}

func TestOptObjective(t *testing.T) {
	tests := []struct {
		name   string
		opt    *casefile.OptimizationSpec
		want   string
		target string
	}{
		{"default", nil, "mean_NPV", "NPV"},
		{"percentile", &casefile.OptimizationSpec{StatsMetric: "percentile"}, "perc_5_NPV", "NPV"},
		{"threshold", &casefile.OptimizationSpec{StatsMetric: "valueAtRisk", Metric: "IRR"}, "VaR_0.05_IRR", "IRR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := loadCase(t, baseCase)
			doc.Case.Optimization = tt.opt
			c := doc.HeronCase()
			got, err := OptObjective(c)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("OptObjective = %q, want %q", got, tt.want)
			}
			if OptTarget(c) != tt.target {
				t.Errorf("OptTarget = %q, want %q", OptTarget(c), tt.target)
			}
		})
	}
}

func TestStatsNames(t *testing.T) {
	names := DefaultStatsNames(heron.ModeOpt)
	names[0] = "changed"
	if DefaultStatsNames(heron.ModeOpt)[0] != "expectedValue" {
		t.Error("DefaultStatsNames returned shared storage")
	}
	if diff := cmp.Diff([]string{"maximum", "minimum", "percentile", "samples"}, FlatStatsNames(heron.ModeSweep)); diff != "" {
		t.Errorf("flat sweep stats mismatch (-want +got):\n%s", diff)
	}
	if !IsFinancial("sharpeRatio") || IsFinancial("median") {
		t.Error("IsFinancial misclassifies")
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, Unique([]string{"a", "b", "a", "c", "b"})); diff != "" {
		t.Errorf("Unique mismatch (-want +got):\n%s", diff)
	}
}
