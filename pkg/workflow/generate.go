package workflow

import (
	"fmt"
	"strings"

	"github.com/ormasoftchile/ravenwf/pkg/casefile"
	"github.com/ormasoftchile/ravenwf/pkg/config"
	"github.com/ormasoftchile/ravenwf/pkg/describe"
	"github.com/ormasoftchile/ravenwf/pkg/diagram"
)

// CaseError reports a case file that failed validation.
type CaseError struct {
	Path   string
	Errors []*casefile.ValidationError
}

func (e *CaseError) Error() string {
	var msgs []string
	for _, v := range e.Errors {
		if v.Severity == "error" {
			msgs = append(msgs, v.Error())
		}
	}
	return fmt.Sprintf("case file %s is invalid: %s", e.Path, strings.Join(msgs, "; "))
}

func (e *CaseError) Is(target error) bool { return target == ErrConfig }

// Generate validates the case file at path, applies the settings and
// builds its workflow. Validation warnings are returned with the driver.
// s may be nil.
func Generate(path string, s *config.Settings) (*Driver, *casefile.Document, []*casefile.ValidationError, error) {
	doc, errs := casefile.ValidateFile(path)
	if casefile.HasErrors(errs) {
		return nil, doc, errs, &CaseError{Path: path, Errors: errs}
	}
	d := NewDriver()
	if s != nil {
		s.Apply(doc)
		if s.Raven.Executable != "" {
			d.Executable = s.Raven.Executable
		}
	}
	if err := d.CreateFromDocument(doc); err != nil {
		return nil, doc, errs, err
	}
	return d, doc, errs, nil
}

// Diagram draws the step sequence of the built workflow, outer level
// first.
func (d *Driver) Diagram(format diagram.Format) (string, error) {
	levels := make([]diagram.Level, len(d.templates))
	for i, t := range d.templates {
		levels[i] = diagram.Level{Name: t.WriteName, Root: t.Root}
	}
	return diagram.Generate(levels, format)
}

// Describe summarizes the built workflow of doc as Markdown.
func (d *Driver) Describe(doc *casefile.Document) string {
	s := describe.Summary{Case: doc.HeronCase(), Variant: string(d.variant)}
	for _, t := range d.templates {
		s.Files = append(s.Files, describe.File{Name: t.WriteName, Root: t.Root})
	}
	return describe.Markdown(s)
}
