package snippets

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ormasoftchile/ravenwf/pkg/xmltree"
)

func TestIdentityKey(t *testing.T) {
	if got := (Identity{Tag: "Code"}).Key(); got != "Code" {
		t.Errorf("Key() = %q", got)
	}
	if got := ravenCodeID.Key(); got != "Code[@subType='RAVEN']" {
		t.Errorf("Key() = %q", got)
	}
}

func TestToReference(t *testing.T) {
	ps := NewPointSet("grid")
	ref, err := ps.ToReference("Output")
	if err != nil {
		t.Fatalf("ToReference: %v", err)
	}
	want := map[string]string{"class": "DataObjects", "type": "PointSet"}
	if diff := cmp.Diff(want, ref.AttrMap()); diff != "" {
		t.Errorf("attrs mismatch (-want +got):\n%s", diff)
	}
	if ref.Tag != "Output" || ref.TextString() != "grid" {
		t.Errorf("reference = %s%s", ref, ref.TextString())
	}

	// Files reference with their own type attribute.
	f := NewFile("heron_lib", "heron.lib")
	f.SetType("HERON")
	ref, err = f.ToReference("Input")
	if err != nil {
		t.Fatalf("file ToReference: %v", err)
	}
	if ref.Get("class") != "Files" || ref.Get("type") != "HERON" {
		t.Errorf("file reference attrs = %v", ref.AttrMap())
	}
}

// TestToReference_Unreferenceable verifies entities without name or class
// report what is missing.
func TestToReference_Unreferenceable(t *testing.T) {
	_, err := NewPointSet("").ToReference("Input")
	var re *ReferenceError
	if !errors.As(err, &re) {
		t.Fatalf("expected *ReferenceError, got %v", err)
	}
	if diff := cmp.Diff([]string{"name"}, re.Missing); diff != "" {
		t.Errorf("missing mismatch (-want +got):\n%s", diff)
	}

	_, err = NewRunInfo().ToReference("Input")
	if !errors.Is(err, ErrReference) {
		t.Fatalf("RunInfo reference: expected ErrReference, got %v", err)
	}
	errors.As(err, &re)
	if diff := cmp.Diff([]string{"class", "name"}, re.Missing); diff != "" {
		t.Errorf("missing mismatch (-want +got):\n%s", diff)
	}
}

func TestAddSubelements(t *testing.T) {
	gpr := NewGaussianProcessRegressor("gpr")
	if got := gpr.Node().Child("alpha").TextString(); got != "1e-08" {
		t.Errorf("alpha = %q", got)
	}
	if got := gpr.Node().Child("normalize_y").TextString(); got != "True" {
		t.Errorf("normalize_y = %q", got)
	}
	gpr.AddSubelementMap(map[string]any{"b": 1, "a": map[string]any{"y": "2", "x": ""}})
	n := gpr.Node()
	last := n.Children[len(n.Children)-1]
	if last.Tag != "b" {
		t.Errorf("map keys not sorted: last child is %s", last.Tag)
	}
	a := n.Child("a")
	if a == nil || len(a.Children) != 2 || a.Children[0].Tag != "x" || a.Children[0].Text != nil {
		t.Errorf("nested map = %v", a)
	}
}

func TestVariableGroup(t *testing.T) {
	g := NewVariableGroup("GRO_capacities", "wind_capacity", "npp_capacity", "wind_capacity")
	g.Add("battery_capacity", "", "npp_capacity")
	want := []string{"battery_capacity", "npp_capacity", "wind_capacity"}
	if diff := cmp.Diff(want, g.Variables()); diff != "" {
		t.Errorf("variables mismatch (-want +got):\n%s", diff)
	}
	if !g.Remove("npp_capacity") || g.Contains("npp_capacity") {
		t.Error("Remove did not drop npp_capacity")
	}
	if g.Len() != 2 {
		t.Errorf("Len = %d, want 2", g.Len())
	}
}

// TestSampledSet_Disjoint verifies a name cannot be both sampled and
// constant.
func TestSampledSet_Disjoint(t *testing.T) {
	for _, s := range []SampledSet{NewGrid("grid"), NewMonteCarlo("mc"), NewBayesianOptimizer("opt")} {
		if err := s.AddConstant("npp_capacity", 100); err != nil {
			t.Fatalf("%s AddConstant: %v", s.Identity().Tag, err)
		}
		err := s.AddVariable(NewSampledVariable("npp_capacity"))
		if !errors.Is(err, ErrSampledConstant) {
			t.Errorf("%s AddVariable over a constant: got %v", s.Identity().Tag, err)
		}

		if err := s.AddVariable(NewSampledVariable("wind_capacity")); err != nil {
			t.Fatalf("%s AddVariable: %v", s.Identity().Tag, err)
		}
		if err := s.AddConstant("wind_capacity", 1); !errors.Is(err, ErrSampledConstant) {
			t.Errorf("%s AddConstant over a variable: got %v", s.Identity().Tag, err)
		}
		if !s.HasVariable("wind_capacity") || !s.HasConstant("npp_capacity") {
			t.Errorf("%s lost a name", s.Identity().Tag)
		}
	}
}

func TestSampledSet_ReplaceVariable(t *testing.T) {
	mc := NewMonteCarlo("mc")
	v := NewSampledVariable("x")
	v.SetDistribution("x_dist")
	if err := mc.AddVariable(v); err != nil {
		t.Fatal(err)
	}
	v2 := NewSampledVariable("x")
	v2.SetDistribution("other_dist")
	if err := mc.AddVariable(v2); err != nil {
		t.Fatal(err)
	}
	if mc.NumSampledVars() != 1 {
		t.Fatalf("NumSampledVars = %d, want 1", mc.NumSampledVars())
	}
	got, _ := mc.Variable("x")
	if got.Distribution() != "other_dist" {
		t.Errorf("distribution = %q, want other_dist", got.Distribution())
	}
}

func TestGridDefaults(t *testing.T) {
	g := NewGrid("grid")
	if g.Denoises() != 1 {
		t.Errorf("Denoises = %d, want 1", g.Denoises())
	}
	g.SetDenoises(3)
	if diff := cmp.Diff([]string{"denoises"}, g.ConstantNames()); diff != "" {
		t.Errorf("constants mismatch (-want +got):\n%s", diff)
	}
	if c, _ := g.Constant("denoises"); c != "3" {
		t.Errorf("denoises = %q, want 3", c)
	}
}

func TestUseGrid(t *testing.T) {
	v := NewSampledVariable("cap")
	if err := v.UseGrid(GridEqual, GridValue, 4, []float64{1, 5}); err != nil {
		t.Fatalf("UseGrid: %v", err)
	}
	grid := v.Node().Child("grid")
	want := map[string]string{"construction": "equal", "type": "value", "steps": "4"}
	if diff := cmp.Diff(want, grid.AttrMap()); diff != "" {
		t.Errorf("grid attrs mismatch (-want +got):\n%s", diff)
	}
	if grid.TextString() != "1 5" {
		t.Errorf("grid text = %q", grid.TextString())
	}

	if err := v.UseGrid(GridCustom, GridValue, 0, []float64{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if _, ok := grid.Lookup("steps"); ok {
		t.Error("custom grid kept steps")
	}

	if err := v.UseGrid(GridCustom, GridCDF, 0, []float64{0, 1.5}); !errors.Is(err, ErrValue) {
		t.Errorf("CDF outside [0, 1]: got %v", err)
	}
}

func TestEnsembleForward_UniqueSamplers(t *testing.T) {
	ef := NewEnsembleForward("ens")
	if err := ef.AddSampler(NewGrid("a")); err != nil {
		t.Fatal(err)
	}
	if err := ef.AddSampler(NewMonteCarlo("b")); err != nil {
		t.Fatal(err)
	}
	if err := ef.AddSampler(NewMonteCarlo("a")); !errors.Is(err, ErrDuplicateEntity) {
		t.Errorf("duplicate sampler name: got %v", err)
	}
	if got := len(ef.Samplers()); got != 2 {
		t.Errorf("Samplers() = %d, want 2", got)
	}
}

func TestCustomSampler_AddSource(t *testing.T) {
	cs := NewCustomSampler("replay")
	if err := cs.AddSource(NewPointSet("points")); err != nil {
		t.Fatal(err)
	}
	if err := cs.AddSource(NewPointSet("points")); err != nil {
		t.Fatal(err)
	}
	if got := len(cs.Node().Children); got != 1 {
		t.Errorf("sources = %d, want 1", got)
	}
}

func TestStep_SlotOrder(t *testing.T) {
	mr := NewMultiRun("sweep")
	out := NewPointSet("grid")
	for _, add := range []func() error{
		func() error { return mr.AddOutput(out) },
		func() error { return mr.AddSampler(NewGrid("grid")) },
		func() error { return mr.AddInput(NewPointSet("placeholder")) },
		func() error { return mr.AddModel(NewRavenCode("raven")) },
		func() error { return mr.AddSolutionExport(NewPointSet("export")) },
		func() error { return mr.AddOutput(out) },
	} {
		if err := add(); err != nil {
			t.Fatal(err)
		}
	}
	var tags []string
	for _, r := range mr.References() {
		tags = append(tags, r.Tag)
	}
	want := []string{"Input", "Model", "Sampler", "SolutionExport", "Output"}
	if diff := cmp.Diff(want, tags); diff != "" {
		t.Errorf("slot order mismatch (-want +got):\n%s", diff)
	}
	if err := mr.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if diff := cmp.Diff([]string{"grid"}, mr.Items(SlotOutput)); diff != "" {
		t.Errorf("outputs mismatch (-want +got):\n%s", diff)
	}
}

func TestStep_SlotErrors(t *testing.T) {
	io := NewIOStep("read")
	err := io.AddModel(NewRavenCode("raven"))
	var se *SlotError
	if !errors.As(err, &se) {
		t.Fatalf("IOStep model: expected *SlotError, got %v", err)
	}
	if diff := cmp.Diff([]string{"Input", "Output"}, se.Allowed); diff != "" {
		t.Errorf("allowed mismatch (-want +got):\n%s", diff)
	}

	mr := NewMultiRun("opt")
	if err := mr.AddOptimizer(NewGradientDescent("gd")); err != nil {
		t.Fatal(err)
	}
	if err := mr.AddSampler(NewGrid("g")); !errors.Is(err, ErrSlot) {
		t.Errorf("sampler after optimizer: got %v", err)
	}

	sweep := NewMultiRun("sweep")
	if err := sweep.AddSampler(NewGrid("g1")); err != nil {
		t.Fatal(err)
	}
	if err := sweep.AddSampler(NewGrid("g1")); err != nil {
		t.Errorf("re-adding the same sampler: %v", err)
	}
	if err := sweep.AddSampler(NewMonteCarlo("g2")); !errors.Is(err, ErrSlot) {
		t.Errorf("second sampler: got %v", err)
	}
	if err := sweep.AddModel(NewRavenCode("raven")); err != nil {
		t.Fatal(err)
	}
	if err := sweep.AddModel(NewRavenCode("other")); !errors.Is(err, ErrSlot) {
		t.Errorf("second model: got %v", err)
	}
	if diff := cmp.Diff([]string{"g1"}, sweep.Items(SlotSampler)); diff != "" {
		t.Errorf("samplers mismatch (-want +got):\n%s", diff)
	}

	extra, err := NewMonteCarlo("g2").ToReference(SlotSampler)
	if err != nil {
		t.Fatal(err)
	}
	sweep.Node().Append(extra)
	if err := sweep.Validate(); !errors.Is(err, ErrSlot) {
		t.Errorf("two samplers Validate: got %v", err)
	}

	if err := NewMultiRun("empty").Validate(); !errors.Is(err, ErrSlot) {
		t.Errorf("empty MultiRun Validate: got %v", err)
	}

	pp := NewPostProcess("pp")
	if err := pp.AddSampler(NewGrid("g")); !errors.Is(err, ErrSlot) {
		t.Errorf("PostProcess sampler: got %v", err)
	}
}

func TestSequence(t *testing.T) {
	seq := NewRunInfo().Sequence()
	for _, name := range []string{"read", "sweep"} {
		if err := seq.Add(name); err != nil {
			t.Fatal(err)
		}
	}
	if err := seq.Add("database", 1); err != nil {
		t.Fatal(err)
	}
	if err := seq.AddAfter("sweep", "plot"); err != nil {
		t.Fatal(err)
	}
	if err := seq.AddAfter("missing", "print"); err != nil {
		t.Fatal(err)
	}
	want := []string{"read", "database", "sweep", "plot", "print"}
	if diff := cmp.Diff(want, seq.Names()); diff != "" {
		t.Errorf("sequence mismatch (-want +got):\n%s", diff)
	}

	err := seq.Add("sweep")
	var de *DuplicateStepError
	if !errors.As(err, &de) || de.Name != "sweep" {
		t.Fatalf("duplicate step: got %v", err)
	}
	if seq.Len() != 5 {
		t.Errorf("failed Add changed the sequence: %v", seq.Names())
	}
	if err := seq.Set("a", "b", "a"); !errors.Is(err, ErrDuplicateStep) {
		t.Errorf("Set with duplicates: got %v", err)
	}
}

func TestRunInfo_ParallelSettings(t *testing.T) {
	ri := NewRunInfo()
	ri.SetJobName("case_o")
	ri.SetBatchSize(4)
	ri.SetInternalParallel(true)
	ri.SetParallelRunSettings(map[string]string{
		"memory":            "4gb",
		"expectedTime":      "2:00:00",
		"clusterParameters": "-P project",
	})

	n := ri.Node()
	if got := xmltree.Find(n, "mode").TextString(); got != "mpi" {
		t.Errorf("mode = %q", got)
	}
	if xmltree.Find(n, "mode/runQSUB") == nil {
		t.Error("runQSUB missing")
	}
	if got := xmltree.Find(n, "mode/memory").TextString(); got != "4gb" {
		t.Errorf("memory = %q", got)
	}
	if got := xmltree.Find(n, "expectedTime").TextString(); got != "2:00:00" {
		t.Errorf("expectedTime = %q", got)
	}
	if b, ok := ri.BatchSize(); !ok || b != 4 {
		t.Errorf("BatchSize = %d, %v", b, ok)
	}
	if !ri.InternalParallel() {
		t.Error("InternalParallel = false")
	}
	ri.SetInternalParallel(false)
	if n.Child("internalParallel") != nil {
		t.Error("internalParallel not removed")
	}
}

func TestBayesianOptimizer_Settings(t *testing.T) {
	opt := NewBayesianOptimizer("cap_opt")
	seed := 42
	err := opt.SetOptSettings(OptSettings{
		Limit:          50,
		Persistence:    2,
		Acquisition:    ProbabilityOfImprovement,
		Seed:           &seed,
		ModelSelection: map[string]any{"Duration": 5},
	})
	if err != nil {
		t.Fatalf("SetOptSettings: %v", err)
	}
	if opt.Acquisition() != ProbabilityOfImprovement {
		t.Errorf("Acquisition = %q", opt.Acquisition())
	}
	if opt.InitLimit() != 50 || opt.InitSeed() != "42" {
		t.Errorf("samplerInit limit=%d seed=%q", opt.InitLimit(), opt.InitSeed())
	}
	n := opt.Node()
	if got := xmltree.Find(n, "convergence/persistence").TextString(); got != "2" {
		t.Errorf("persistence = %q", got)
	}
	if got := xmltree.Find(n, "ModelSelection/Duration").TextString(); got != "5" {
		t.Errorf("Duration = %q", got)
	}
	if got := xmltree.Find(n, "Acquisition/ProbabilityOfImprovement/rho").TextString(); got != "20" {
		t.Errorf("rho = %q", got)
	}

	if err := opt.SetOptSettings(OptSettings{Acquisition: "Nope"}); !errors.Is(err, ErrValue) {
		t.Errorf("unknown acquisition: got %v", err)
	}

	if err := opt.SetTargetEvaluation(NewGrid("g")); !errors.Is(err, ErrWrongClass) {
		t.Errorf("non data object target: got %v", err)
	}
	if err := opt.SetTargetEvaluation(NewPointSet("opt_eval")); err != nil {
		t.Fatal(err)
	}
	if opt.TargetEvaluation() != "opt_eval" {
		t.Errorf("TargetEvaluation = %q", opt.TargetEvaluation())
	}
}

func TestGradientDescent_Settings(t *testing.T) {
	gd := NewGradientDescent("gd")
	if err := gd.SetOptSettings(OptSettings{GrowthFactor: 3, Type: "min"}); err != nil {
		t.Fatal(err)
	}
	n := gd.Node()
	if got := xmltree.Find(n, "stepSize/GradientHistory/growthFactor").TextString(); got != "3" {
		t.Errorf("growthFactor = %q", got)
	}
	if got := xmltree.Find(n, "stepSize/GradientHistory/shrinkFactor").TextString(); got != "1.5" {
		t.Errorf("shrinkFactor = %q, zero settings must keep defaults", got)
	}
	if got := xmltree.Find(n, "samplerInit/type").TextString(); got != "min" {
		t.Errorf("type = %q", got)
	}
}

func TestRavenCode(t *testing.T) {
	code := NewRavenCode("raven")
	code.AddAlias("wind_capacity", "", "")
	code.AddAlias("price", "mean", "Samplers|Grid@name:grid")
	want := []Alias{
		{Variable: "wind_capacity", Location: DefaultAliasLocation + "|constant@name:wind_capacity"},
		{Variable: "price_mean", Location: "Samplers|Grid@name:grid|constant@name:price_mean"},
	}
	if diff := cmp.Diff(want, code.Aliases()); diff != "" {
		t.Errorf("aliases mismatch (-want +got):\n%s", diff)
	}

	code.Node().SubElement("outputDatabase").Text = "old"
	if err := code.SetInnerDataHandling("disp_results", HandoffCSV); err != nil {
		t.Fatal(err)
	}
	if code.Node().Child("outputDatabase") != nil {
		t.Error("csv hand-off kept outputDatabase")
	}
	if got := code.Node().Child("outputExportOutStreams").TextString(); got != "disp_results" {
		t.Errorf("outputExportOutStreams = %q", got)
	}
	if err := code.SetInnerDataHandling("x", "parquet"); !errors.Is(err, ErrValue) {
		t.Errorf("unknown hand-off: got %v", err)
	}

	code.SetPythonCommand("python3")
	if code.PythonCommand() != "python3" {
		t.Errorf("PythonCommand = %q", code.PythonCommand())
	}
}

func TestEnsembleModel_AddModel(t *testing.T) {
	ens := NewEnsembleModel("sample_and_dispatch")
	rom := NewPickledROM("Price")
	for i := 0; i < 2; i++ {
		if err := ens.AddModel(rom, NewPointSet("Price_placeholder"), NewDataSet("Price_samples")); err != nil {
			t.Fatal(err)
		}
	}
	if diff := cmp.Diff([]string{"Price"}, ens.Models()); diff != "" {
		t.Errorf("models mismatch (-want +got):\n%s", diff)
	}
	model := ens.Node().Child("Model")
	if model.Get("type") != "ROM" || model.Child("TargetEvaluation").TextString() != "Price_samples" {
		t.Errorf("model reference = %s", model)
	}
}

func TestDataSet_AddIndex(t *testing.T) {
	ds := NewDataSet("dispatch")
	ds.AddIndex("Time", "price", "load")
	ds.AddIndex("Time", "load", "wind")
	ds.AddIndex("Year", "price")
	if diff := cmp.Diff([]string{"price", "load", "wind"}, ds.Index("Time")); diff != "" {
		t.Errorf("Time index mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Time", "Year"}, ds.IndexVars()); diff != "" {
		t.Errorf("index vars mismatch (-want +got):\n%s", diff)
	}
}

func TestEconomicRatio_AddStatistic(t *testing.T) {
	pp := NewEconomicRatioPostProcessor("stats")
	pp.AddStatistic("expectedValue", "mean", "NPV")
	pp.AddStatistic("expectedValue", "mean", "NPV")
	pp.AddStatistic("percentile", "perc", "NPV", xmltree.Attr{Name: "percent", Value: "5"})
	if pp.Statistics() != 2 {
		t.Errorf("Statistics = %d, want 2", pp.Statistics())
	}
}

func TestInsertAndAdd(t *testing.T) {
	root := xmltree.New("Simulation")
	if err := Add(root, NewPointSet("grid"), ""); err != nil {
		t.Fatal(err)
	}
	if err := Add(root, NewDataSet("grid"), ""); !errors.Is(err, ErrDuplicateEntity) {
		t.Errorf("same class, same name: got %v", err)
	}
	// A different class may reuse the name.
	if err := Add(root, NewGrid("grid"), ""); err != nil {
		t.Errorf("different class: %v", err)
	}
	if err := Add(root, NewRunInfo(), ""); !errors.Is(err, ErrWrongClass) {
		t.Errorf("classless entity without a path: got %v", err)
	}
	if root.Child("DataObjects") == nil || root.Child("Samplers") == nil {
		t.Error("sections not created")
	}
}
