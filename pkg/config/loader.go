// Package config loads the generator settings: the defaults below, then a
// ravenwf.yaml file, then RAVENWF__ environment variables, then flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	koanfyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Loader layers settings from several sources into one tree.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
}

// NewLoader creates a loader. Environment variables are read with
// envPrefix plus a double underscore, which also separates nesting levels:
// RAVENWF__LOGGING__LEVEL sets logging.level.
func NewLoader(envPrefix string) *Loader {
	return &Loader{
		k:         koanf.New("."),
		envPrefix: envPrefix + "__",
	}
}

// LoadWithDefaults loads, lowest priority first, the struct defaults, the
// YAML file at configPath and the environment. An empty configPath skips
// the file; a configPath that does not exist is an error.
func (l *Loader) LoadWithDefaults(defaults any, configPath string) error {
	if defaults != nil {
		if err := l.k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
			return fmt.Errorf("load defaults: %w", err)
		}
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return fmt.Errorf("config file not found: %s", configPath)
		}
		if err := l.k.Load(file.Provider(configPath), koanfyaml.Parser()); err != nil {
			return fmt.Errorf("load config file: %w", err)
		}
	}

	envProvider := env.Provider(l.envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, l.envPrefix))
		return strings.ReplaceAll(key, "__", ".")
	})
	if err := l.k.Load(envProvider, nil); err != nil {
		return fmt.Errorf("load environment: %w", err)
	}
	return nil
}

// LoadFlags applies the flags the user set explicitly, each to the key
// mappings names for it.
func (l *Loader) LoadFlags(flags *pflag.FlagSet, mappings map[string]string) error {
	var errs []error
	flags.Visit(func(f *pflag.Flag) {
		if key, ok := mappings[f.Name]; ok {
			if err := l.k.Set(key, f.Value.String()); err != nil {
				errs = append(errs, fmt.Errorf("flag %s: %w", f.Name, err))
			}
		}
	})
	return errors.Join(errs...)
}

// LoadMap applies overrides keyed by dotted path, such as the arguments of
// an MCP tool call. Empty strings are skipped.
func (l *Loader) LoadMap(overrides map[string]any) error {
	m := make(map[string]any, len(overrides))
	for k, v := range overrides {
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		m[k] = v
	}
	if len(m) == 0 {
		return nil
	}
	if err := l.k.Load(confmap.Provider(m, "."), nil); err != nil {
		return fmt.Errorf("load overrides: %w", err)
	}
	return nil
}

// Unmarshal decodes the tree under path into out.
func (l *Loader) Unmarshal(path string, out any) error {
	return l.k.Unmarshal(path, out)
}

// Set sets one value.
func (l *Loader) Set(key string, value any) error {
	return l.k.Set(key, value)
}

// Raw returns the loaded tree as nested maps.
func (l *Loader) Raw() map[string]any {
	return l.k.Raw()
}

// DumpYAML writes the loaded tree as YAML.
func (l *Loader) DumpYAML(w io.Writer) error {
	return yaml.NewEncoder(w).Encode(l.k.Raw())
}
