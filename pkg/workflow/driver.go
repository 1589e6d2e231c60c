package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"go.uber.org/zap"

	"github.com/ormasoftchile/ravenwf/pkg/casefile"
	"github.com/ormasoftchile/ravenwf/pkg/heron"
	"github.com/ormasoftchile/ravenwf/pkg/logger"
	"github.com/ormasoftchile/ravenwf/pkg/naming"
)

// Variant names the family of templates a case is built with.
type Variant string

const (
	// VariantDebug dispatches a few samples with fixed capacities.
	VariantDebug Variant = "debug"
	// VariantFlat sweeps capacities over a single static history.
	VariantFlat Variant = "flat"
	// VariantBilevel runs an inner workflow per outer capacity proposal.
	VariantBilevel Variant = "bilevel"
)

// SelectVariant picks the workflow variant for a case: debug when debug
// mode is on, flat when a sweep replays exactly one static history without
// uncertain cashflows, bilevel otherwise. A mode other than sweep or opt,
// or mixing ARMA and CSV sources, is an error.
func SelectVariant(c heron.Case, comps []heron.Component, sources []heron.Source) (Variant, error) {
	if m := c.Mode(); m != heron.ModeSweep && m != heron.ModeOpt {
		return "", &ModeError{Mode: m}
	}
	if err := checkSourceConflict(sources); err != nil {
		return "", err
	}
	switch {
	case c.Debug().Enabled:
		return VariantDebug, nil
	case hasOnlyStaticHistory(sources) &&
		staticHistorySamples(sources) == 1 &&
		!heron.HasUncertainCashflows(comps) &&
		c.Mode() == heron.ModeSweep:
		return VariantFlat, nil
	default:
		return VariantBilevel, nil
	}
}

func hasOnlyStaticHistory(sources []heron.Source) bool {
	return heron.HasSource(sources, heron.SourceCSV) && !heron.HasSource(sources, heron.SourceARMA)
}

// staticHistorySamples returns the largest sample count among the CSV
// sources.
func staticHistorySamples(sources []heron.Source) int {
	var counts []int
	for _, s := range heron.SourcesOf(sources, heron.SourceCSV) {
		counts = append(counts, s.NumSamples())
	}
	if len(counts) == 0 {
		return 0
	}
	return slices.Max(counts)
}

// Driver selects, builds and writes the workflow of one case.
type Driver struct {
	// Executable is the RAVEN launcher called by a bilevel outer workflow.
	Executable string
	// Library, when set, is written next to the workflow as the case
	// library the dispatch reads back.
	Library []byte

	variant   Variant
	templates []*Template
	bilevel   *Bilevel
	log       *zap.SugaredLogger
}

// NewDriver returns a driver with the default RAVEN launcher.
func NewDriver() *Driver {
	return &Driver{
		Executable: DefaultExecutable,
		log:        logger.For(logger.ComponentDriver),
	}
}

// CreateWorkflow selects the variant for the case and builds its
// templates. A driver builds one workflow; calling it again replaces the
// previous one.
func (d *Driver) CreateWorkflow(c heron.Case, comps []heron.Component, sources []heron.Source) error {
	variant, err := SelectVariant(c, comps, sources)
	if err != nil {
		return err
	}
	d.log.Infow("Selected workflow variant", "case", c.Name(), "variant", variant, "mode", c.Mode())

	d.variant, d.templates, d.bilevel = variant, nil, nil
	switch variant {
	case VariantDebug:
		t, err := loadDebug()
		if err != nil {
			return err
		}
		if err := t.Create(c, comps, sources); err != nil {
			return err
		}
		d.templates = []*Template{t.Template}
	case VariantFlat:
		t, err := loadFlat()
		if err != nil {
			return err
		}
		if err := t.Create(c, comps, sources); err != nil {
			return err
		}
		d.templates = []*Template{t.Template}
	case VariantBilevel:
		b, err := loadBilevel(c, sources, d.Executable)
		if err != nil {
			return err
		}
		if err := b.Create(c, comps, sources); err != nil {
			return err
		}
		d.templates = []*Template{b.Outer.Template, b.Inner.Template}
		d.bilevel = b
	}
	return nil
}

// CreateFromDocument builds the workflow of a case file and keeps the
// normalized document as the case library.
func (d *Driver) CreateFromDocument(doc *casefile.Document) error {
	lib, err := casefile.Marshal(doc)
	if err != nil {
		return fmt.Errorf("case library: %w", err)
	}
	if err := d.CreateWorkflow(doc.HeronCase(), doc.HeronComponents(), doc.HeronSources()); err != nil {
		return err
	}
	d.Library = lib
	return nil
}

// Variant returns the variant of the last workflow built.
func (d *Driver) Variant() Variant { return d.variant }

// Templates returns the built templates, outer first.
func (d *Driver) Templates() []*Template { return d.templates }

// Bilevel returns the bilevel workflow, or nil for single-level variants.
func (d *Driver) Bilevel() *Bilevel { return d.bilevel }

// LibraryFile is the case library written next to the workflow files.
func LibraryFile() string { return naming.Lib() + ".yaml" }

// Render finalizes and checks every template and returns the file
// contents keyed by file name. Check warnings are logged.
func (d *Driver) Render() (map[string][]byte, error) {
	if len(d.templates) == 0 {
		return nil, fmt.Errorf("render: no workflow has been created: %w", ErrConfig)
	}
	files := make(map[string][]byte, len(d.templates)+1)
	for _, t := range d.templates {
		if err := t.Finalize(); err != nil {
			return nil, err
		}
		warnings, err := Check(t.Name, t.Root)
		if err != nil {
			return nil, err
		}
		for _, w := range warnings {
			d.log.Warnw("Workflow check", "template", t.Name, "warning", w)
		}
		data, err := t.Bytes()
		if err != nil {
			return nil, err
		}
		files[t.WriteName] = data
	}
	if d.Library != nil {
		files[LibraryFile()] = d.Library
	}
	return files, nil
}

// WriteWorkflow renders the workflow and writes its files to dir, returning
// the paths written in name order. Nothing is written when rendering fails.
func (d *Driver) WriteWorkflow(dir string) ([]string, error) {
	files, err := d.Render()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("write workflow: %w", err)
	}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	slices.Sort(names)

	var written []string
	for _, name := range names {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, files[name], 0o644); err != nil {
			return written, fmt.Errorf("write workflow: %w", err)
		}
		d.log.Infow("Wrote workflow file", "path", p)
		written = append(written, p)
	}
	return written, nil
}
