package diagram

import (
	"strings"
	"testing"

	"github.com/ormasoftchile/ravenwf/pkg/xmltree"
)

const outerXML = `<Simulation>
  <RunInfo><Sequence>sweep, report</Sequence></RunInfo>
  <Steps>
    <MultiRun name="sweep">
      <Input class="Files" type="raven">inner_workflow</Input>
      <Model class="Models" type="Code">raven</Model>
      <Sampler class="Samplers" type="Grid">grid</Sampler>
      <Output class="DataObjects" type="PointSet">grid</Output>
      <Output class="OutStreams" type="Print">sweep</Output>
    </MultiRun>
    <IOStep name="report">
      <Input class="DataObjects" type="PointSet">grid</Input>
    </IOStep>
  </Steps>
  <Models><Code name="raven" subType="RAVEN"/></Models>
</Simulation>`

const innerXML = `<Simulation>
  <RunInfo><Sequence>read_Price, arma_sampling, summarize</Sequence></RunInfo>
  <Steps>
    <IOStep name="read_Price"/>
    <MultiRun name="arma_sampling"/>
    <PostProcess name="summarize"/>
  </Steps>
</Simulation>`

func levels(t *testing.T, docs ...string) []Level {
	t.Helper()
	names := []string{"outer.xml", "inner.xml"}
	var out []Level
	for i, d := range docs {
		root, err := xmltree.ParseString(d)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		out = append(out, Level{Name: names[i], Root: root})
	}
	return out
}

func TestGenerateMermaid_LinearFlow(t *testing.T) {
	out, err := Generate(levels(t, innerXML), FormatMermaid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "flowchart TD") {
		t.Error("missing flowchart header")
	}
	if !strings.Contains(out, "START([Start]) --> read_Price") {
		t.Errorf("missing start edge, got:\n%s", out)
	}
	if !strings.Contains(out, "arma_sampling --> summarize") {
		t.Errorf("missing sequential edge, got:\n%s", out)
	}
	if !strings.Contains(out, `summarize{{"`) {
		t.Errorf("post-process step not drawn as a hexagon, got:\n%s", out)
	}
}

// TestGenerateMermaid_Bilevel verifies the inner level hangs off the step
// running the RAVEN code model.
func TestGenerateMermaid_Bilevel(t *testing.T) {
	out, err := Generate(levels(t, outerXML, innerXML), FormatMermaid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{
		`subgraph inner_xml ["inner.xml"]`,
		`sweep -.->|"per sample"| read_Price`,
		"sweep --> report",
		"Model: raven",
		"Output: grid, sweep",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q, got:\n%s", want, out)
		}
	}
}

func TestGenerateASCII(t *testing.T) {
	out, err := Generate(levels(t, outerXML, innerXML), FormatASCII)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"outer.xml", "↻ sweep", "⇄ report", "per sample: inner.xml", "∑ summarize"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q, got:\n%s", want, out)
		}
	}
}

func TestGenerateASCII_Empty(t *testing.T) {
	root, err := xmltree.ParseString(`<Simulation/>`)
	if err != nil {
		t.Fatal(err)
	}
	out, err := Generate([]Level{{Name: "empty.xml", Root: root}}, FormatASCII)
	if err != nil {
		t.Fatal(err)
	}
	if out != "empty.xml (empty)\n" {
		t.Errorf("got %q", out)
	}
}

func TestGenerate_Errors(t *testing.T) {
	if _, err := Generate(nil, FormatASCII); err == nil {
		t.Error("expected error for no levels")
	}
	if _, err := Generate(levels(t, innerXML), Format("svg")); err == nil {
		t.Error("expected error for unsupported format")
	}
}
