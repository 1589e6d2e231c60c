package workflow

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ormasoftchile/ravenwf/pkg/casefile"
	"github.com/ormasoftchile/ravenwf/pkg/config"
	"github.com/ormasoftchile/ravenwf/pkg/diagram"
	"github.com/ormasoftchile/ravenwf/pkg/naming"
	"github.com/ormasoftchile/ravenwf/pkg/snippets"
	"github.com/ormasoftchile/ravenwf/pkg/xmltree"
)

const armaSweep = `apiVersion: ravenwf/v1
case:
  name: Sweep_Runs
  mode: sweep
  num_samples: 3
  labels:
    region: west
components:
  - name: wind
    capacity:
      values: [30, 10]
    tracking_vars: [production]
    resources: [electricity]
  - name: battery
    capacity:
      value: 5
    tracking_vars: [level]
    resources: [electricity]
sources:
  - name: Price
    type: ARMA
    variables: [price]
    target_file: price.pk
`

const csvSweep = `apiVersion: ravenwf/v1
case:
  name: Flat_Runs
  mode: sweep
components:
  - name: wind
    capacity:
      values: [10, 30]
    tracking_vars: [production]
    resources: [electricity]
sources:
  - name: history
    type: CSV
    variables: [price, demand]
    target_file: history.csv
    num_samples: 1
  - name: transfers
    type: Function
    path: transfers.py
`

const armaOpt = `apiVersion: ravenwf/v1
case:
  name: Opt_Runs
  mode: opt
  optimization:
    strategy: BayesianOpt
components:
  - name: wind
    capacity:
      values: [10, 30]
    tracking_vars: [production]
    resources: [electricity]
sources:
  - name: Price
    type: ARMA
    variables: [price]
    target_file: price.pk
`

func loadCase(t *testing.T, doc string) *casefile.Document {
	t.Helper()
	d, err := casefile.Load(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return d
}

func createWorkflow(t *testing.T, doc *casefile.Document) *Driver {
	t.Helper()
	d := NewDriver()
	if err := d.CreateFromDocument(doc); err != nil {
		t.Fatalf("CreateFromDocument: %v", err)
	}
	return d
}

func sequence(t *testing.T, tmpl *Template) []string {
	t.Helper()
	ri, err := tmpl.runInfo()
	if err != nil {
		t.Fatal(err)
	}
	return ri.Sequence().Names()
}

func TestTemplateNames(t *testing.T) {
	want := []string{DebugTemplate, FlatMultiConfig, InnerStatic, InnerSynthetic, OuterOpt, OuterSweep}
	if diff := cmp.Diff(want, TemplateNames()); diff != "" {
		t.Errorf("template names mismatch (-want +got):\n%s", diff)
	}
	for _, name := range TemplateNames() {
		if _, err := LoadTemplate(name, OuterFile); err != nil {
			t.Errorf("LoadTemplate(%q): %v", name, err)
		}
	}
}

// TestSelectVariant verifies the variant chosen for each kind of case.
func TestSelectVariant(t *testing.T) {
	debug := loadCase(t, armaSweep)
	debug.Case.Debug = &casefile.DebugSpec{Enabled: true}

	manySamples := loadCase(t, csvSweep)
	manySamples.Sources[0].NumSamples = 4

	tests := []struct {
		name string
		doc  *casefile.Document
		want Variant
	}{
		{"debug", debug, VariantDebug},
		{"single static history", loadCase(t, csvSweep), VariantFlat},
		{"several static histories", manySamples, VariantBilevel},
		{"synthetic history", loadCase(t, armaSweep), VariantBilevel},
		{"optimization", loadCase(t, armaOpt), VariantBilevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectVariant(tt.doc.HeronCase(), tt.doc.HeronComponents(), tt.doc.HeronSources())
			if err != nil {
				t.Fatalf("SelectVariant: %v", err)
			}
			if got != tt.want {
				t.Errorf("variant = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestSelectVariant_SourceConflict verifies mixed ARMA and CSV sources are
// rejected with both source lists in the message.
func TestSelectVariant_SourceConflict(t *testing.T) {
	doc := loadCase(t, armaSweep)
	doc.Sources = append(doc.Sources, casefile.SourceSpec{
		Name: "history", Type: "CSV", Variables: []string{"demand"}, TargetFile: "history.csv",
	})

	_, err := SelectVariant(doc.HeronCase(), doc.HeronComponents(), doc.HeronSources())
	var conflict *SourceConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want *SourceConflictError", err)
	}
	if !errors.Is(err, ErrConfig) {
		t.Errorf("errors.Is(err, ErrConfig) = false")
	}
	for _, name := range []string{"Price", "history"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("message %q does not name source %q", err.Error(), name)
		}
	}
}

// TestSelectVariant_Mode verifies an unsupported mode fails on every path,
// including debug cases.
func TestSelectVariant_Mode(t *testing.T) {
	for _, debug := range []bool{false, true} {
		doc := loadCase(t, armaSweep)
		doc.Case.Mode = "explore"
		doc.Case.Debug = &casefile.DebugSpec{Enabled: debug}
		_, err := SelectVariant(doc.HeronCase(), doc.HeronComponents(), doc.HeronSources())
		var me *ModeError
		if !errors.As(err, &me) || me.Mode != "explore" {
			t.Errorf("debug=%v: err = %v, want *ModeError", debug, err)
		}
	}
}

// TestDriver_BilevelSweep verifies a synthetic-history sweep builds an
// outer grid over the sampled capacity and an inner MonteCarlo sampler
// every alias resolves against.
func TestDriver_BilevelSweep(t *testing.T) {
	d := createWorkflow(t, loadCase(t, armaSweep))
	if d.Variant() != VariantBilevel {
		t.Fatalf("variant = %q", d.Variant())
	}
	b := d.Bilevel()
	if b.Outer.Name != OuterSweep || b.Inner.Name != InnerSynthetic {
		t.Fatalf("templates = %s, %s", b.Outer.Name, b.Inner.Name)
	}

	want := []string{"read_Price", "print_Price_meta", "arma_sampling", "summarize", "database"}
	if diff := cmp.Diff(want, sequence(t, b.Inner.Template)); diff != "" {
		t.Errorf("inner sequence mismatch (-want +got):\n%s", diff)
	}

	grid := xmltree.Find(b.Outer.Root, "Samplers/Grid[@name='grid']")
	if grid == nil {
		t.Fatal("outer grid sampler missing")
	}
	g := xmltree.Find(grid, "variable[@name='wind_capacity']/grid")
	if g == nil {
		t.Fatal("wind_capacity is not sampled on a grid")
	}
	if g.Get("construction") != snippets.GridCustom || g.Get("type") != snippets.GridValue {
		t.Errorf("grid attrs = %v", g.Attrs)
	}
	if got := g.TextString(); got != "10 30" {
		t.Errorf("grid values = %q, want sorted %q", got, "10 30")
	}
	if xmltree.Find(grid, "constant[@name='battery_capacity']") == nil {
		t.Error("fixed battery capacity is not an outer constant")
	}

	unresolved, err := b.VerifyAliases()
	if err != nil {
		t.Fatal(err)
	}
	if len(unresolved) != 0 {
		t.Errorf("unresolved aliases: %v", unresolved)
	}

	raven, err := b.Outer.ravenModel()
	if err != nil {
		t.Fatal(err)
	}
	handoff := b.Inner.DispatchResultsName()
	if handoff == "" {
		t.Fatal("inner workflow recorded no dispatch results")
	}
	if got := raven.Node().Child("outputDatabase").TextString(); got != handoff {
		t.Errorf("outputDatabase = %q, want %q", got, handoff)
	}
	if xmltree.Find(b.Inner.Root, fmt.Sprintf("Databases/NetCDF[@name='%s']", handoff)) == nil {
		t.Errorf("inner workflow has no NetCDF database %q", handoff)
	}
}

// TestDriver_Flat verifies a single static history sweep is built as one
// workflow that reads the history before sweeping.
func TestDriver_Flat(t *testing.T) {
	d := createWorkflow(t, loadCase(t, csvSweep))
	if d.Variant() != VariantFlat || len(d.Templates()) != 1 {
		t.Fatalf("variant = %q, %d templates", d.Variant(), len(d.Templates()))
	}
	tmpl := d.Templates()[0]

	want := []string{"read_history", "sweep", "print"}
	if diff := cmp.Diff(want, sequence(t, tmpl)); diff != "" {
		t.Errorf("sequence mismatch (-want +got):\n%s", diff)
	}
	custom := xmltree.Find(tmpl.Root, "Samplers/EnsembleForward/CustomSampler")
	for _, v := range []string{"Year", "Time", "price", "demand"} {
		if xmltree.Find(custom, "variable[@name='"+v+"']") == nil {
			t.Errorf("custom sampler does not replay %q", v)
		}
	}
	f := xmltree.Find(tmpl.Root, "Files/Input[@name='transfers']")
	if f == nil {
		t.Fatal("function file not added")
	}
	if f.TextString() != "../transfers.py" {
		t.Errorf("function path = %q", f.TextString())
	}
}

// TestDriver_Opt verifies the Bayesian optimizer and its objective.
func TestDriver_Opt(t *testing.T) {
	doc := loadCase(t, armaOpt)
	d := createWorkflow(t, doc)
	outer := d.Bilevel().Outer
	if outer.Name != OuterOpt {
		t.Fatalf("outer template = %s", outer.Name)
	}
	if xmltree.Find(outer.Root, "Optimizers/BayesianOptimizer") == nil {
		t.Fatal("BayesianOptimizer missing")
	}
	objective, err := naming.OptObjective(doc.HeronCase())
	if err != nil {
		t.Fatal(err)
	}
	results, err := outer.group("GRO_outer_results")
	if err != nil {
		t.Fatal(err)
	}
	if !results.Contains(objective) {
		t.Errorf("GRO_outer_results lacks objective %q", objective)
	}
	if xmltree.Find(outer.Root, "Steps/MultiRun[@name='optimize']/Sampler") != nil {
		t.Error("optimize step has a sampler")
	}
}

func TestDriver_ConfigErrors(t *testing.T) {
	badStrategy := loadCase(t, armaOpt)
	badStrategy.Case.Optimization.Strategy = "Annealing"
	var se *StrategyError
	if err := NewDriver().CreateFromDocument(badStrategy); !errors.As(err, &se) || se.Strategy != "Annealing" {
		t.Errorf("strategy err = %v, want *StrategyError", err)
	}

	badMode := loadCase(t, armaSweep)
	badMode.Case.Mode = "explore"
	var me *ModeError
	if err := NewDriver().CreateFromDocument(badMode); !errors.As(err, &me) || !errors.Is(err, ErrConfig) {
		t.Errorf("mode err = %v, want *ModeError", err)
	}

	debugCSV := loadCase(t, csvSweep)
	debugCSV.Case.Debug = &casefile.DebugSpec{Enabled: true}
	if err := NewDriver().CreateFromDocument(debugCSV); !errors.Is(err, ErrNotImplemented) {
		t.Errorf("debug csv err = %v, want ErrNotImplemented", err)
	}
}

// TestTemplate_MissingNode verifies a missing node names what the template
// does have at the deepest existing level.
func TestTemplate_MissingNode(t *testing.T) {
	tmpl, err := LoadTemplate(OuterSweep, OuterFile)
	if err != nil {
		t.Fatal(err)
	}
	_, err = tmpl.require("Samplers/MonteCarlo[@name='mc']")
	var missing *MissingNodeError
	if !errors.As(err, &missing) {
		t.Fatalf("err = %v, want *MissingNodeError", err)
	}
	if diff := cmp.Diff([]string{"Grid[@name='grid']"}, missing.Available); diff != "" {
		t.Errorf("available mismatch (-want +got):\n%s", diff)
	}
	if !errors.Is(err, ErrConfig) {
		t.Error("errors.Is(err, ErrConfig) = false")
	}
}

// TestCheck verifies duplicate names and undefined sequence steps fail,
// and dangling references only warn.
func TestCheck(t *testing.T) {
	root, err := xmltree.ParseString(`<Simulation>
  <RunInfo><Sequence>run, report</Sequence></RunInfo>
  <Steps>
    <MultiRun name="run">
      <Model class="Models" type="ExternalModel">dispatch</Model>
    </MultiRun>
  </Steps>
  <DataObjects>
    <PointSet name="results"/>
    <PointSet name="results"/>
  </DataObjects>
</Simulation>`)
	if err != nil {
		t.Fatal(err)
	}

	warnings, err := Check("broken", root)
	var ce *ConsistencyError
	if !errors.As(err, &ce) || !errors.Is(err, ErrInconsistent) {
		t.Fatalf("err = %v, want *ConsistencyError", err)
	}
	wantProblems := []string{
		`duplicate DataObjects entity "results"`,
		`step "run": step <MultiRun> cannot take Sampler: MultiRun "run" needs a Sampler or an Optimizer`,
		`sequence step "report" is not defined`,
	}
	if diff := cmp.Diff(wantProblems, ce.Problems); diff != "" {
		t.Errorf("problems mismatch (-want +got):\n%s", diff)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], `"dispatch"`) {
		t.Errorf("warnings = %v", warnings)
	}
}

// TestDriver_WriteWorkflow verifies both levels and the case library are
// written, and that nothing is written before a workflow is created.
func TestDriver_WriteWorkflow(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	if _, err := NewDriver().WriteWorkflow(dir); !errors.Is(err, ErrConfig) {
		t.Fatalf("empty driver err = %v, want ErrConfig", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("empty driver created %s", dir)
	}

	d := createWorkflow(t, loadCase(t, armaSweep))
	written, err := d.WriteWorkflow(dir)
	if err != nil {
		t.Fatalf("WriteWorkflow: %v", err)
	}
	want := []string{
		filepath.Join(dir, LibraryFile()),
		filepath.Join(dir, InnerFile),
		filepath.Join(dir, OuterFile),
	}
	if diff := cmp.Diff(want, written); diff != "" {
		t.Errorf("written mismatch (-want +got):\n%s", diff)
	}

	data, err := os.ReadFile(filepath.Join(dir, OuterFile))
	if err != nil {
		t.Fatal(err)
	}
	outer, err := xmltree.ParseString(string(data))
	if err != nil {
		t.Fatalf("reparse outer: %v", err)
	}
	if got := xmltree.Find(outer, "RunInfo/JobName").TextString(); got != "Sweep_Runs_o" {
		t.Errorf("JobName = %q", got)
	}

	lib, err := casefile.LoadFile(filepath.Join(dir, LibraryFile()))
	if err != nil {
		t.Fatalf("reload library: %v", err)
	}
	if lib.Case.Name != "Sweep_Runs" {
		t.Errorf("library case = %q", lib.Case.Name)
	}
}

func writeCase(t *testing.T, doc string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "case.yaml")
	if err := os.WriteFile(p, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// TestGenerate verifies settings overrides reach the built workflow.
func TestGenerate(t *testing.T) {
	s := config.Defaults()
	s.Raven.Executable = "/opt/raven/raven_framework"
	s.Raven.InnerToOuter = "csv"

	d, doc, _, err := Generate(writeCase(t, armaSweep), &s)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if doc.Case.Name != "Sweep_Runs" {
		t.Errorf("case = %q", doc.Case.Name)
	}
	raven, err := d.Bilevel().Outer.ravenModel()
	if err != nil {
		t.Fatal(err)
	}
	if got := raven.Node().Child("executable").TextString(); got != s.Raven.Executable {
		t.Errorf("executable = %q", got)
	}
	if raven.Node().Child("outputExportOutStreams") == nil || raven.Node().Child("outputDatabase") != nil {
		t.Error("csv hand-off not applied")
	}

	md := d.Describe(doc)
	if !strings.Contains(md, "| Variant | bilevel |") {
		t.Errorf("describe missing variant:\n%s", md)
	}
	dia, err := d.Diagram(diagram.FormatMermaid)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(dia, `subgraph inner_xml ["inner.xml"]`) {
		t.Errorf("diagram missing inner level:\n%s", dia)
	}
}

func TestGenerate_InvalidCase(t *testing.T) {
	doc := strings.Replace(armaSweep, "mode: sweep", "mode: explore", 1)
	_, _, errs, err := Generate(writeCase(t, doc), nil)
	var ce *CaseError
	if !errors.As(err, &ce) || !errors.Is(err, ErrConfig) {
		t.Fatalf("err = %v, want *CaseError", err)
	}
	if !casefile.HasErrors(errs) {
		t.Error("validation errors not returned")
	}
}

// TestGenerate_Examples verifies every example case under testdata builds
// and renders with the expected variant.
func TestGenerate_Examples(t *testing.T) {
	want := map[string]Variant{
		"sweep_arma.yaml":     VariantBilevel,
		"sweep_flat_csv.yaml": VariantFlat,
		"opt_bayesian.yaml":   VariantBilevel,
	}
	files, err := filepath.Glob("../../testdata/cases/*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != len(want) {
		t.Fatalf("found %d example cases, want %d", len(files), len(want))
	}
	for _, f := range files {
		t.Run(filepath.Base(f), func(t *testing.T) {
			d, _, _, err := Generate(f, nil)
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if got := d.Variant(); got != want[filepath.Base(f)] {
				t.Errorf("variant = %s, want %s", got, want[filepath.Base(f)])
			}
			if _, err := d.Render(); err != nil {
				t.Errorf("Render: %v", err)
			}
		})
	}
}
