package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ormasoftchile/ravenwf/pkg/snippets"
)

const sweepCase = `apiVersion: ravenwf/v1
case:
  name: Sweep_Runs
  mode: sweep
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

func TestFilterKinds(t *testing.T) {
	kinds := filterKinds(snippets.DefaultRegistry().Kinds(), "samplers")
	if len(kinds) == 0 {
		t.Fatal("expected sampler kinds")
	}
	for _, k := range kinds {
		if k.Class != "Samplers" {
			t.Errorf("kind %s has class %s", k.Name, k.Class)
		}
	}
	if got := filterKinds(snippets.DefaultRegistry().Kinds(), "Nope"); len(got) != 0 {
		t.Errorf("unknown class matched %d kinds", len(got))
	}
}

// TestEntitiesTable verifies the header row and one row per kind.
func TestEntitiesTable(t *testing.T) {
	kinds := filterKinds(snippets.DefaultRegistry().Kinds(), "Samplers")
	out := entitiesTable(kinds)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != len(kinds)+1 {
		t.Fatalf("got %d lines, want %d", len(lines), len(kinds)+1)
	}
	for _, col := range []string{"CLASS", "TAG", "SUBTYPE", "NAME"} {
		if !strings.Contains(lines[0], col) {
			t.Errorf("header %q missing %s", lines[0], col)
		}
	}
	if !strings.Contains(out, "Grid") {
		t.Error("Grid sampler not listed")
	}
}

// TestGenerateCommand verifies generate writes the workflow files to the
// --output directory.
func TestGenerateCommand(t *testing.T) {
	dir := t.TempDir()
	casePath := filepath.Join(dir, "case.yaml")
	if err := os.WriteFile(casePath, []byte(sweepCase), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "wf")

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"generate", casePath, "--output", out})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("generate: %v", err)
	}
	for _, name := range []string{"outer.xml", "inner.xml", "heron.lib.yaml"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
	if !strings.Contains(stdout.String(), "bilevel workflow, 3 file(s)") {
		t.Errorf("unexpected output:\n%s", stdout.String())
	}
}
