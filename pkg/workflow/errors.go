package workflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ormasoftchile/ravenwf/pkg/naming"
	"github.com/ormasoftchile/ravenwf/pkg/xmltree"
)

// ErrConfig is matched by every error caused by a case the workflow layer
// cannot turn into a workflow.
var ErrConfig = errors.New("invalid workflow configuration")

// ErrInconsistent is matched by a *ConsistencyError.
var ErrInconsistent = errors.New("inconsistent workflow")

// ErrNotImplemented marks case features workflow generation does not
// support yet.
var ErrNotImplemented = naming.ErrNotImplemented

// ModeError reports a case mode no outer workflow exists for.
type ModeError struct {
	Mode string
}

func (e *ModeError) Error() string {
	return fmt.Sprintf("unsupported case mode %q: must be sweep or opt", e.Mode)
}

func (e *ModeError) Is(target error) bool { return target == ErrConfig }

// SourceConflictError reports a case mixing synthetic (ARMA) and static
// (CSV) history sources.
type SourceConflictError struct {
	ARMA []string
	CSV  []string
}

func (e *SourceConflictError) Error() string {
	return fmt.Sprintf("workflows expect either static history sources or synthetic history sources but not both: "+
		"ARMA sources (%s), CSV sources (%s)", strings.Join(e.ARMA, ", "), strings.Join(e.CSV, ", "))
}

func (e *SourceConflictError) Is(target error) bool { return target == ErrConfig }

// MissingNodeError reports a node the assembly code requires but the
// template does not contain. Available lists the children of the deepest
// node on Path that does exist.
type MissingNodeError struct {
	Template  string
	Path      string
	Parent    string
	Available []string
}

func (e *MissingNodeError) Error() string {
	parent := e.Parent
	if parent == "" {
		parent = "the root"
	}
	msg := fmt.Sprintf("template %s has no node %s", e.Template, e.Path)
	if len(e.Available) == 0 {
		return fmt.Sprintf("%s (%s has no children)", msg, parent)
	}
	return fmt.Sprintf("%s (children of %s: %s)", msg, parent, strings.Join(e.Available, ", "))
}

func (e *MissingNodeError) Is(target error) bool { return target == ErrConfig }

func missingNode(template string, root *xmltree.Node, path string) *MissingNodeError {
	parent, available := xmltree.Siblings(root, path)
	return &MissingNodeError{Template: template, Path: path, Parent: parent, Available: available}
}

// StrategyError reports an optimization strategy without an optimizer.
type StrategyError struct {
	Strategy string
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("unrecognized optimization strategy %q: must be BayesianOpt or GradientDescent", e.Strategy)
}

func (e *StrategyError) Is(target error) bool { return target == ErrConfig }

// ConsistencyError collects the problems Check found in a finished
// workflow.
type ConsistencyError struct {
	Template string
	Problems []string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("%s: %d consistency problem(s): %s", e.Template, len(e.Problems), strings.Join(e.Problems, "; "))
}

func (e *ConsistencyError) Is(target error) bool { return target == ErrInconsistent }
