package describe

import (
	"strings"
	"testing"

	"github.com/ormasoftchile/ravenwf/pkg/casefile"
	"github.com/ormasoftchile/ravenwf/pkg/xmltree"
)

const caseDoc = `apiVersion: ravenwf/v1
case:
  name: SweepRuns
  mode: sweep
  num_samples: 2
  labels:
    region: west
components:
  - name: wind
    capacity:
      values: [10, 30]
`

const outerXML = `<Simulation>
  <RunInfo><Sequence>sweep</Sequence></RunInfo>
  <Steps><MultiRun name="sweep"/></Steps>
  <Models>
    <Code name="raven" subType="RAVEN">
      <alias variable="wind_capacity" type="input">Samplers|MonteCarlo@name:mc|constant@name:wind_capacity</alias>
    </Code>
  </Models>
  <Samplers>
    <Grid name="grid">
      <variable name="wind_capacity">
        <distribution>wind_capacity_dist</distribution>
        <grid construction="custom" type="value">10 30</grid>
      </variable>
      <constant name="denoises">2</constant>
    </Grid>
  </Samplers>
</Simulation>`

func summary(t *testing.T) Summary {
	t.Helper()
	doc, err := casefile.Load(strings.NewReader(caseDoc))
	if err != nil {
		t.Fatal(err)
	}
	root, err := xmltree.ParseString(outerXML)
	if err != nil {
		t.Fatal(err)
	}
	return Summary{Case: doc.HeronCase(), Variant: "bilevel", Files: []File{{Name: "outer.xml", Root: root}}}
}

// TestMarkdown verifies each part of the summary is present.
func TestMarkdown(t *testing.T) {
	md := Markdown(summary(t))
	for _, want := range []string{
		"# SweepRuns",
		"| Variant | bilevel |",
		"| Samples | 2 |",
		"| Label `region` | west |",
		"## outer.xml",
		"1. `sweep` (MultiRun)",
		"| Models | `raven` | Code.RAVEN |",
		"| `grid` | `wind_capacity` | grid custom/value: 10 30 |",
		"| `grid` | `denoises` | constant 2 |",
		"| `wind_capacity` | `Samplers\\|MonteCarlo@name:mc\\|constant@name:wind_capacity` |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("missing %q in:\n%s", want, md)
		}
	}
}

func TestHTML(t *testing.T) {
	html, err := HTML(Markdown(summary(t)))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(html), "<h1>SweepRuns</h1>") {
		t.Errorf("missing heading in:\n%s", html)
	}
}

func TestRender(t *testing.T) {
	if got := Render("  ", 80); got != "  " {
		t.Errorf("blank input changed: %q", got)
	}
	if out := Render("# SweepRuns\n", 80); !strings.Contains(out, "SweepRuns") {
		t.Errorf("rendered output lost the heading: %q", out)
	}
}
