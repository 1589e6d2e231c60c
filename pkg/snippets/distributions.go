package snippets

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/ravenwf/pkg/xmltree"
)

//go:embed distributions.yaml
var distributionTable []byte

// ErrUnknownParam is returned for accessors a distribution does not declare.
var ErrUnknownParam = fmt.Errorf("unknown distribution parameter: %w", ErrValue)

// DistributionRule is a boolean constraint over distribution parameters.
type DistributionRule struct {
	Expr    string `yaml:"expr"`
	Message string `yaml:"message"`
}

// DistributionSpec describes one distribution: its tag, its parameter tags
// and the constraints between them.
type DistributionSpec struct {
	Name   string             `yaml:"name"`
	Params []string           `yaml:"params"`
	Rules  []DistributionRule `yaml:"rules"`

	accessors []string
}

// Accessors returns the snake_case accessor names, aligned with Params.
func (s *DistributionSpec) Accessors() []string { return s.accessors }

// ParamFor maps an accessor name to its parameter tag.
func (s *DistributionSpec) ParamFor(accessor string) (string, bool) {
	i := slices.Index(s.accessors, accessor)
	if i < 0 {
		return "", false
	}
	return s.Params[i], true
}

type distributionFile struct {
	Distributions []DistributionSpec `yaml:"distributions"`
}

// LoadDistributionSpecs reads a distribution table.
func LoadDistributionSpecs(r io.Reader) ([]*DistributionSpec, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f distributionFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse distribution table: %w", err)
	}
	specs := make([]*DistributionSpec, 0, len(f.Distributions))
	seen := map[string]bool{}
	for i := range f.Distributions {
		s := &f.Distributions[i]
		if s.Name == "" {
			return nil, fmt.Errorf("distribution table entry %d has no name", i)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("distribution %q is listed twice", s.Name)
		}
		seen[s.Name] = true
		s.accessors = make([]string, len(s.Params))
		for j, p := range s.Params {
			s.accessors[j] = AccessorName(p)
		}
		specs = append(specs, s)
	}
	return specs, nil
}

var (
	specsOnce sync.Once
	specs     []*DistributionSpec
	specIndex map[string]*DistributionSpec
)

// DistributionSpecs returns the built-in distribution table.
func DistributionSpecs() []*DistributionSpec {
	specsOnce.Do(func() {
		var err error
		specs, err = LoadDistributionSpecs(bytes.NewReader(distributionTable))
		if err != nil {
			panic(err)
		}
		specIndex = make(map[string]*DistributionSpec, len(specs))
		for _, s := range specs {
			specIndex[s.Name] = s
		}
	})
	return specs
}

// LookupDistributionSpec returns the spec for a distribution tag.
func LookupDistributionSpec(tag string) (*DistributionSpec, bool) {
	DistributionSpecs()
	s, ok := specIndex[tag]
	return s, ok
}

var (
	groupedCapitals = regexp.MustCompile(`([A-Z]+)([A-Z][a-z])`)
	singleCapital   = regexp.MustCompile(`([a-z\d])([A-Z])`)
)

// CamelToSnake converts camelCase to snake_case, keeping runs of capitals
// together: "lowerBound" -> "lower_bound", "functionID" -> "function_id".
func CamelToSnake(s string) string {
	s = groupedCapitals.ReplaceAllString(s, "${1}_${2}")
	s = singleCapital.ReplaceAllString(s, "${1}_${2}")
	return strings.ToLower(s)
}

var reservedWords = map[string]bool{
	"break": true, "case": true, "chan": true, "const": true, "continue": true,
	"default": true, "defer": true, "else": true, "fallthrough": true, "for": true,
	"func": true, "go": true, "goto": true, "if": true, "import": true,
	"interface": true, "map": true, "package": true, "range": true, "return": true,
	"select": true, "struct": true, "switch": true, "type": true, "var": true,
}

// AccessorName returns the accessor for a parameter tag: CamelToSnake, with
// a trailing underscore when the result is a reserved word.
func AccessorName(param string) string {
	name := CamelToSnake(param)
	if reservedWords[name] {
		name += "_"
	}
	return name
}

// Distribution is a view over any distribution node. Parameter access is
// limited to the parameters its spec declares.
type Distribution struct {
	Base
	spec *DistributionSpec
}

// NewDistribution creates a distribution of the given kind.
func NewDistribution(tag, name string) (Distribution, error) {
	spec, ok := LookupDistributionSpec(tag)
	if !ok {
		return Distribution{}, fmt.Errorf("unknown distribution %q: %w", tag, ErrValue)
	}
	return Distribution{Base: newBase(Identity{Class: ClassDistributions, Tag: tag}, name), spec: spec}, nil
}

// AsDistribution wraps an existing distribution node. Nodes whose tag is not
// in the table get a view without parameter accessors.
func AsDistribution(n *xmltree.Node) Distribution {
	spec, _ := LookupDistributionSpec(n.Tag)
	return Distribution{Base: wrap(n, Identity{Class: ClassDistributions, Tag: n.Tag}), spec: spec}
}

// Spec returns the distribution's spec, or nil.
func (d Distribution) Spec() *DistributionSpec { return d.spec }

// Params lists the accessor names this distribution accepts.
func (d Distribution) Params() []string {
	if d.spec == nil {
		return nil
	}
	return d.spec.Accessors()
}

func (d Distribution) paramTag(accessor string) (string, error) {
	if d.spec != nil {
		if tag, ok := d.spec.ParamFor(accessor); ok {
			return tag, nil
		}
	}
	return "", fmt.Errorf("%s has no parameter %q (accepts %v): %w", d.id.Tag, accessor, d.Params(), ErrUnknownParam)
}

// Param returns the text of a parameter and whether it is set.
func (d Distribution) Param(accessor string) (string, bool, error) {
	tag, err := d.paramTag(accessor)
	if err != nil {
		return "", false, err
	}
	v, ok := d.lookupText(tag)
	return v, ok, nil
}

// SetParam sets a parameter.
func (d Distribution) SetParam(accessor string, value any) error {
	tag, err := d.paramTag(accessor)
	if err != nil {
		return err
	}
	d.setText(tag, value)
	return nil
}

// UnsetParam removes a parameter.
func (d Distribution) UnsetParam(accessor string) error {
	tag, err := d.paramTag(accessor)
	if err != nil {
		return err
	}
	d.unset(tag)
	return nil
}

// Validate evaluates every rule whose parameters are all set and reports the
// violated ones.
func (d Distribution) Validate() error {
	if d.spec == nil {
		return nil
	}
	var failed []string
	for _, rule := range d.spec.Rules {
		env, ok := d.ruleEnv(rule.Expr)
		if !ok {
			continue
		}
		program, err := expr.Compile(rule.Expr, expr.Env(env), expr.AsBool())
		if err != nil {
			return fmt.Errorf("compile rule %q for %s: %w", rule.Expr, d.id.Tag, err)
		}
		out, err := expr.Run(program, env)
		if err != nil {
			failed = append(failed, fmt.Sprintf("%s (%v)", rule.Message, err))
			continue
		}
		if pass, _ := out.(bool); !pass {
			failed = append(failed, rule.Message)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%s %q: %s: %w", d.id.Tag, d.Name(), strings.Join(failed, "; "), ErrValue)
	}
	return nil
}

// ruleEnv collects the parameters a rule mentions. It reports false when any
// of them is unset.
func (d Distribution) ruleEnv(rule string) (map[string]any, bool) {
	env := map[string]any{}
	for _, p := range d.spec.Params {
		if !regexp.MustCompile(`\b` + regexp.QuoteMeta(p) + `\b`).MatchString(rule) {
			continue
		}
		v, ok := d.lookupText(p)
		if !ok {
			return nil, false
		}
		v = strings.TrimSpace(v)
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			env[p] = f
		} else {
			env[p] = v
		}
	}
	return env, true
}

// Uniform is a uniform distribution over [lowerBound, upperBound].
type Uniform struct{ Distribution }

// NewUniform creates a Uniform distribution.
func NewUniform(name string) Uniform {
	d, _ := NewDistribution("Uniform", name)
	return Uniform{d}
}

// AsUniform wraps an existing <Uniform> node.
func AsUniform(n *xmltree.Node) Uniform { return Uniform{AsDistribution(n)} }

// LowerBound returns lowerBound.
func (u Uniform) LowerBound() string { return u.text("lowerBound") }

// SetLowerBound sets lowerBound.
func (u Uniform) SetLowerBound(v float64) { u.setText("lowerBound", v) }

// UpperBound returns upperBound.
func (u Uniform) UpperBound() string { return u.text("upperBound") }

// SetUpperBound sets upperBound.
func (u Uniform) SetUpperBound(v float64) { u.setText("upperBound", v) }

// Normal is a (possibly truncated) normal distribution.
type Normal struct{ Distribution }

// NewNormal creates a Normal distribution.
func NewNormal(name string) Normal {
	d, _ := NewDistribution("Normal", name)
	return Normal{d}
}

// AsNormal wraps an existing <Normal> node.
func AsNormal(n *xmltree.Node) Normal { return Normal{AsDistribution(n)} }

// Mean returns the mean.
func (n Normal) Mean() string { return n.text("mean") }

// SetMean sets the mean.
func (n Normal) SetMean(v float64) { n.setText("mean", v) }

// Sigma returns the standard deviation.
func (n Normal) Sigma() string { return n.text("sigma") }

// SetSigma sets the standard deviation.
func (n Normal) SetSigma(v float64) { n.setText("sigma", v) }
