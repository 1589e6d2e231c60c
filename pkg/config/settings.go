package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/pflag"

	"github.com/ormasoftchile/ravenwf/pkg/casefile"
)

const (
	// EnvPrefix prefixes every settings environment variable.
	EnvPrefix = "RAVENWF"
	// DefaultFile is read from the working directory when no settings file
	// is named.
	DefaultFile = "ravenwf.yaml"
)

// Diagram formats.
const (
	DiagramASCII   = "ascii"
	DiagramMermaid = "mermaid"
)

// Settings are the generator settings. Case content lives in the case
// file; these only change how a workflow is produced.
type Settings struct {
	Logging LoggingSettings `koanf:"logging" yaml:"logging"`
	Output  OutputSettings  `koanf:"output"  yaml:"output"`
	Raven   RavenSettings   `koanf:"raven"   yaml:"raven"`
	Diagram DiagramSettings `koanf:"diagram" yaml:"diagram"`
}

// LoggingSettings configure the process logger.
type LoggingSettings struct {
	Level  string `koanf:"level"  yaml:"level"`
	Format string `koanf:"format" yaml:"format"`
}

// OutputSettings say where workflows are written.
type OutputSettings struct {
	Dir string `koanf:"dir" yaml:"dir"`
}

// RavenSettings override what the generated workflow asks of RAVEN.
// Empty Verbosity and InnerToOuter keep the case file's values.
type RavenSettings struct {
	Executable   string `koanf:"executable"     yaml:"executable"`
	Verbosity    string `koanf:"verbosity"      yaml:"verbosity"`
	InnerToOuter string `koanf:"inner_to_outer" yaml:"inner_to_outer"`
}

// DiagramSettings pick the diagram renderer.
type DiagramSettings struct {
	Format string `koanf:"format" yaml:"format"`
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{
		Logging: LoggingSettings{Level: "warn", Format: "console"},
		Output:  OutputSettings{Dir: "."},
		Raven:   RavenSettings{Executable: "raven_framework"},
		Diagram: DiagramSettings{Format: DiagramASCII},
	}
}

// FlagMappings maps CLI flag names to settings keys.
var FlagMappings = map[string]string{
	"log-level":      "logging.level",
	"log-format":     "logging.format",
	"output":         "output.dir",
	"executable":     "raven.executable",
	"verbosity":      "raven.verbosity",
	"inner-to-outer": "raven.inner_to_outer",
	"diagram-format": "diagram.format",
}

// Validate checks every enumerated setting.
func (s *Settings) Validate() error {
	var errs []error
	check := func(field, value string, allowed ...string) {
		if value != "" && !slices.Contains(allowed, value) {
			errs = append(errs, fmt.Errorf("%s: %q is not one of %s", field, value, strings.Join(allowed, ", ")))
		}
	}
	check("logging.level", strings.ToLower(s.Logging.Level), "debug", "info", "warn", "error")
	check("logging.format", strings.ToLower(s.Logging.Format), "console", "json")
	check("raven.verbosity", s.Raven.Verbosity, "silent", "quiet", "all", "debug")
	check("raven.inner_to_outer", s.Raven.InnerToOuter, "csv", "netcdf")
	check("diagram.format", s.Diagram.Format, DiagramASCII, DiagramMermaid)
	if s.Output.Dir == "" {
		errs = append(errs, errors.New("output.dir: must not be empty"))
	}
	return errors.Join(errs...)
}

// Load reads the settings. An empty path falls back to DefaultFile when it
// exists. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Settings, *Loader, error) {
	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	l := NewLoader(EnvPrefix)
	if err := l.LoadWithDefaults(Defaults(), path); err != nil {
		return nil, nil, err
	}
	if flags != nil {
		if err := l.LoadFlags(flags, FlagMappings); err != nil {
			return nil, nil, err
		}
	}
	s, err := l.Settings()
	if err != nil {
		return nil, nil, err
	}
	return s, l, nil
}

// Settings decodes and validates the loaded tree.
func (l *Loader) Settings() (*Settings, error) {
	var s Settings
	if err := l.Unmarshal("", &s); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return &s, nil
}

// Apply writes the RAVEN overrides into a case document.
func (s *Settings) Apply(doc *casefile.Document) {
	if s.Raven.Verbosity != "" {
		doc.Case.Verbosity = s.Raven.Verbosity
	}
	if s.Raven.InnerToOuter != "" {
		if doc.Case.DataHandling == nil {
			doc.Case.DataHandling = &casefile.DataHandlingSpec{}
		}
		doc.Case.DataHandling.InnerToOuter = s.Raven.InnerToOuter
	}
}
