package workflow

import (
	"bytes"
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ormasoftchile/ravenwf/pkg/heron"
	"github.com/ormasoftchile/ravenwf/pkg/logger"
	"github.com/ormasoftchile/ravenwf/pkg/naming"
	"github.com/ormasoftchile/ravenwf/pkg/snippets"
	"github.com/ormasoftchile/ravenwf/pkg/xmltree"
)

//go:embed xml/*.xml
var templateFS embed.FS

// Embedded template names.
const (
	InnerSynthetic  = "inner_synth"
	InnerStatic     = "inner_static"
	OuterSweep      = "outer_sweep"
	OuterOpt        = "outer_opt"
	FlatMultiConfig = "flat_multi_config"
	DebugTemplate   = "debug"
)

// File names written by WriteWorkflow.
const (
	OuterFile = "outer.xml"
	InnerFile = "inner.xml"
)

// TemplateNames lists the embedded templates.
func TemplateNames() []string {
	entries, err := templateFS.ReadDir("xml")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".xml"))
	}
	sort.Strings(names)
	return names
}

// Template is a loaded workflow template: the parsed tree with every
// registered node materialized as an entity, and the file it is written to.
type Template struct {
	Name      string
	WriteName string
	Root      *xmltree.Node

	log *zap.SugaredLogger
}

// LoadTemplate parses the embedded template name and materializes its
// entities.
func LoadTemplate(name, writeName string) (*Template, error) {
	data, err := templateFS.ReadFile(path.Join("xml", name+".xml"))
	if err != nil {
		return nil, fmt.Errorf("load template %s: %w", name, err)
	}
	root, err := xmltree.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("load template %s: %w", name, err)
	}
	t := &Template{
		Name:      name,
		WriteName: writeName,
		Root:      snippets.ParseToSnippets(root),
		log:       logger.For(logger.ComponentTemplate),
	}
	t.log.Debugw("Loaded template", "template", name, "sections", len(t.Root.Children))
	return t, nil
}

// require returns the node at path or a *MissingNodeError.
func (t *Template) require(p string) (*xmltree.Node, error) {
	if n := xmltree.Find(t.Root, p); n != nil {
		return n, nil
	}
	return nil, missingNode(t.Name, t.Root, p)
}

func groupPath(name string) string {
	return fmt.Sprintf("VariableGroups/Group[@name='%s']", name)
}

// group returns a variable group the template must define.
func (t *Template) group(name string) (snippets.VariableGroup, error) {
	n, err := t.require(groupPath(name))
	if err != nil {
		return snippets.VariableGroup{}, err
	}
	return snippets.AsVariableGroup(n), nil
}

// extendGroup adds vars to each named group.
func (t *Template) extendGroup(vars []string, names ...string) error {
	for _, name := range names {
		g, err := t.group(name)
		if err != nil {
			return err
		}
		g.Add(vars...)
	}
	return nil
}

// findOrAddGroup returns the named group, adding an empty one when the
// template lacks it.
func (t *Template) findOrAddGroup(name string) (snippets.VariableGroup, error) {
	if n := xmltree.Find(t.Root, groupPath(name)); n != nil {
		return snippets.AsVariableGroup(n), nil
	}
	g := snippets.NewVariableGroup(name)
	if err := t.add(g); err != nil {
		return snippets.VariableGroup{}, err
	}
	return g, nil
}

// add inserts e in the section of its class.
func (t *Template) add(e snippets.Entity) error {
	if err := snippets.Add(t.Root, e, ""); err != nil {
		return fmt.Errorf("template %s: %w", t.Name, err)
	}
	return nil
}

func (t *Template) runInfo() (snippets.RunInfo, error) {
	n, err := t.require("RunInfo")
	if err != nil {
		return snippets.RunInfo{}, err
	}
	return snippets.AsRunInfo(n), nil
}

// addStepToSequence adds step to the RunInfo sequence, at index when one
// is given.
func (t *Template) addStepToSequence(step snippets.Entity, index ...int) error {
	ri, err := t.runInfo()
	if err != nil {
		return err
	}
	if err := ri.Sequence().Add(step.Name(), index...); err != nil {
		return fmt.Errorf("template %s: %w", t.Name, err)
	}
	return nil
}

// initializeRunInfo applies the settings shared by every template: the
// root verbosity, and a job name and working directory of {case}_{io}.
func (t *Template) initializeRunInfo(c heron.Case, io string) (snippets.RunInfo, error) {
	t.Root.Set("verbosity", c.Verbosity())
	ri, err := t.runInfo()
	if err != nil {
		return snippets.RunInfo{}, err
	}
	job := naming.Job(c.Name(), io)
	ri.SetJobName(job)
	ri.SetWorkingDir(job)
	return ri, nil
}

// Finalize converts every text value to its string form and drops empty
// top-level sections. It is safe to call more than once.
func (t *Template) Finalize() error {
	if err := xmltree.Stringify(t.Root); err != nil {
		return fmt.Errorf("finalize %s: %w", t.Name, err)
	}
	if removed := xmltree.PruneEmpty(t.Root); len(removed) > 0 {
		t.log.Debugw("Pruned empty sections", "template", t.Name, "sections", removed)
	}
	return nil
}

// Bytes renders the template as indented XML.
func (t *Template) Bytes() ([]byte, error) {
	data, err := xmltree.Marshal(t.Root)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", t.Name, err)
	}
	return data, nil
}
