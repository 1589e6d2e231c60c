package workflow

import (
	"fmt"
	"strings"

	"github.com/ormasoftchile/ravenwf/pkg/heron"
	"github.com/ormasoftchile/ravenwf/pkg/xmltree"
)

// checkSourceConflict fails when sources mix ARMA and CSV histories.
func checkSourceConflict(sources []heron.Source) error {
	armas := heron.SourcesOf(sources, heron.SourceARMA)
	csvs := heron.SourcesOf(sources, heron.SourceCSV)
	if len(armas) == 0 || len(csvs) == 0 {
		return nil
	}
	return &SourceConflictError{ARMA: sourceNames(armas), CSV: sourceNames(csvs)}
}

func sourceNames(sources []heron.Source) []string {
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.Name()
	}
	return names
}

// Bilevel is an outer workflow that runs an inner workflow once per
// proposed set of capacities.
type Bilevel struct {
	Outer *Outer
	Inner *Inner
}

func loadBilevel(c heron.Case, sources []heron.Source, executable string) (*Bilevel, error) {
	if err := checkSourceConflict(sources); err != nil {
		return nil, err
	}
	outer, err := loadOuter(c)
	if err != nil {
		return nil, err
	}
	outer.Executable = executable
	inner, err := loadInner(sources)
	if err != nil {
		return nil, err
	}
	return &Bilevel{Outer: outer, Inner: inner}, nil
}

// Create fills the inner template, then the outer one, aliasing the outer
// variables onto the inner sampler and reading back the inner results.
func (b *Bilevel) Create(c heron.Case, comps []heron.Component, sources []heron.Source) error {
	if err := b.Inner.Create(c, comps, sources); err != nil {
		return err
	}
	samplerPath, err := b.Inner.SamplerPath()
	if err != nil {
		return err
	}
	if err := b.Outer.Create(c, comps, sources, samplerPath); err != nil {
		return err
	}
	raven, err := b.Outer.ravenModel()
	if err != nil {
		return err
	}
	name := b.Inner.DispatchResultsName()
	if name == "" {
		return fmt.Errorf("create %s: inner workflow has no dispatch results: %w", b.Outer.Name, ErrConfig)
	}
	if err := raven.SetInnerDataHandling(name, c.InnerToOuter()); err != nil {
		return fmt.Errorf("create %s: %w", b.Outer.Name, err)
	}
	return nil
}

// VerifyAliases resolves every alias of the outer RAVEN model against the
// inner tree and returns the aliases that point nowhere.
func (b *Bilevel) VerifyAliases() ([]string, error) {
	raven, err := b.Outer.ravenModel()
	if err != nil {
		return nil, err
	}
	var unresolved []string
	for _, a := range raven.Aliases() {
		loc, constant, ok := strings.Cut(a.Location, "|constant@name:")
		if !ok {
			unresolved = append(unresolved, a.Variable)
			continue
		}
		parent := xmltree.Find(b.Inner.Root, xmltree.AliasToPath(loc))
		if parent == nil || xmltree.Find(parent, fmt.Sprintf(".//constant[@name='%s']", constant)) == nil {
			unresolved = append(unresolved, a.Variable)
		}
	}
	if len(unresolved) > 0 {
		b.Outer.log.Warnw("Unresolved aliases", "template", b.Outer.Name, "aliases", unresolved)
	}
	return unresolved, nil
}
