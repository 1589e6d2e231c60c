package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"

	"github.com/ormasoftchile/ravenwf/pkg/casefile"
)

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "ravenwf.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	s, _, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(Defaults(), *s); diff != "" {
		t.Errorf("settings mismatch (-want +got):\n%s", diff)
	}
}

// TestLoad_Precedence verifies file < environment < flags.
func TestLoad_Precedence(t *testing.T) {
	path := writeSettings(t, `logging:
  level: info
output:
  dir: from-file
raven:
  executable: /opt/raven/raven_framework
  verbosity: quiet
`)
	t.Setenv("RAVENWF__OUTPUT__DIR", "from-env")
	t.Setenv("RAVENWF__RAVEN__INNER_TO_OUTER", "csv")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("output", "", "")
	flags.String("verbosity", "", "")
	flags.String("log-format", "", "")
	if err := flags.Parse([]string{"--output=from-flag"}); err != nil {
		t.Fatal(err)
	}

	s, _, err := Load(path, flags)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Settings{
		Logging: LoggingSettings{Level: "info", Format: "console"},
		Output:  OutputSettings{Dir: "from-flag"},
		Raven: RavenSettings{
			Executable:   "/opt/raven/raven_framework",
			Verbosity:    "quiet",
			InnerToOuter: "csv",
		},
		Diagram: DiagramSettings{Format: DiagramASCII},
	}
	if diff := cmp.Diff(want, *s); diff != "" {
		t.Errorf("settings mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil); err == nil {
		t.Fatal("expected error for missing settings file")
	}
}

// TestLoad_Invalid verifies every bad enumerated value is reported.
func TestLoad_Invalid(t *testing.T) {
	path := writeSettings(t, `logging:
  format: xml
diagram:
  format: svg
`)
	_, _, err := Load(path, nil)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, field := range []string{"logging.format", "diagram.format"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error %q does not mention %s", err, field)
		}
	}
}

func TestLoader_LoadMap(t *testing.T) {
	l := NewLoader("RAVENWF_TEST")
	if err := l.LoadWithDefaults(Defaults(), ""); err != nil {
		t.Fatal(err)
	}
	if err := l.LoadMap(map[string]any{"output.dir": "mcp-out", "raven.executable": ""}); err != nil {
		t.Fatal(err)
	}
	s, err := l.Settings()
	if err != nil {
		t.Fatal(err)
	}
	if s.Output.Dir != "mcp-out" {
		t.Errorf("output.dir = %q", s.Output.Dir)
	}
	if s.Raven.Executable != "raven_framework" {
		t.Errorf("empty override replaced executable: %q", s.Raven.Executable)
	}
}

func TestLoader_DumpYAML(t *testing.T) {
	l := NewLoader("RAVENWF_TEST")
	if err := l.LoadWithDefaults(Defaults(), ""); err != nil {
		t.Fatal(err)
	}
	var b strings.Builder
	if err := l.DumpYAML(&b); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(b.String(), "executable: raven_framework") {
		t.Errorf("dump missing executable:\n%s", b.String())
	}
}

func TestSettings_Apply(t *testing.T) {
	doc := &casefile.Document{Case: casefile.CaseSpec{Name: "c", Verbosity: "all"}}
	s := Defaults()
	s.Apply(doc)
	if doc.Case.Verbosity != "all" || doc.Case.DataHandling != nil {
		t.Fatalf("empty overrides changed the case: %+v", doc.Case)
	}

	s.Raven.Verbosity = "silent"
	s.Raven.InnerToOuter = "csv"
	s.Apply(doc)
	if doc.Case.Verbosity != "silent" {
		t.Errorf("verbosity = %q", doc.Case.Verbosity)
	}
	if got := doc.HeronCase().InnerToOuter(); got != "csv" {
		t.Errorf("inner to outer = %q", got)
	}
}
