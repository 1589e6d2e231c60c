package snippets

import (
	"fmt"
	"slices"

	"github.com/ormasoftchile/ravenwf/pkg/xmltree"
)

// Step slots in the order they appear inside a step.
const (
	SlotFunction       = "Function"
	SlotInput          = "Input"
	SlotModel          = "Model"
	SlotSampler        = "Sampler"
	SlotOptimizer      = "Optimizer"
	SlotSolutionExport = "SolutionExport"
	SlotOutput         = "Output"
)

// SlotOrder is the canonical order of step slots.
var SlotOrder = []string{SlotFunction, SlotInput, SlotModel, SlotSampler, SlotOptimizer, SlotSolutionExport, SlotOutput}

var allowedSlots = map[string][]string{
	"IOStep":      {SlotInput, SlotOutput},
	"PostProcess": {SlotInput, SlotModel, SlotOutput},
	"MultiRun":    SlotOrder,
}

// AllowedSlots returns the slots a step type accepts.
func AllowedSlots(stepTag string) []string {
	if s, ok := allowedSlots[stepTag]; ok {
		return s
	}
	return SlotOrder
}

// Step is the common view over IOStep, MultiRun and PostProcess entities.
// Its children are cross-references kept in slot order.
type Step struct{ Base }

func newStep(tag, name string) Step {
	return Step{newBase(Identity{Class: ClassSteps, Tag: tag}, name)}
}

// AsStep wraps any step node.
func AsStep(n *xmltree.Node) Step {
	return Step{wrap(n, Identity{Class: ClassSteps, Tag: n.Tag})}
}

// AddItem adds a reference to e in the given slot. A reference identical to
// an existing one (attributes and text) is skipped. The new reference goes
// before the first child whose slot comes later. A MultiRun holds one Model
// and one Sampler or Optimizer.
func (s Step) AddItem(slot string, e Entity) error {
	allowed := AllowedSlots(s.id.Tag)
	if !slices.Contains(allowed, slot) {
		return &SlotError{Step: s.id.Tag, Slot: slot, Allowed: allowed}
	}
	ref, err := e.ToReference(slot)
	if err != nil {
		return fmt.Errorf("step %q: %w", s.Name(), err)
	}
	for _, c := range s.node.Children {
		if c.Tag == slot && c.SameAttrs(ref) && c.TextString() == ref.TextString() {
			return nil
		}
	}
	if s.id.Tag == "MultiRun" {
		if err := s.checkSingle(slot); err != nil {
			return err
		}
	}
	rank := slices.Index(SlotOrder, slot)
	for i, c := range s.node.Children {
		if r := slices.Index(SlotOrder, c.Tag); r > rank {
			s.node.Insert(i, ref)
			return nil
		}
	}
	s.node.Append(ref)
	return nil
}

// checkSingle rejects a second Model, Sampler or Optimizer on a MultiRun.
func (s Step) checkSingle(slot string) error {
	switch {
	case slot == SlotSampler && s.has(SlotOptimizer):
		return &SlotError{Step: s.id.Tag, Slot: slot, Reason: fmt.Sprintf("MultiRun %q already has an Optimizer", s.Name())}
	case slot == SlotOptimizer && s.has(SlotSampler):
		return &SlotError{Step: s.id.Tag, Slot: slot, Reason: fmt.Sprintf("MultiRun %q already has a Sampler", s.Name())}
	case (slot == SlotModel || slot == SlotSampler || slot == SlotOptimizer) && s.has(slot):
		return &SlotError{Step: s.id.Tag, Slot: slot, Reason: fmt.Sprintf("MultiRun %q already has a %s", s.Name(), slot)}
	}
	return nil
}

func (s Step) has(slot string) bool { return s.node.Child(slot) != nil }

// AddFunction adds e as a Function.
func (s Step) AddFunction(e Entity) error { return s.AddItem(SlotFunction, e) }

// AddInput adds e as an Input.
func (s Step) AddInput(e Entity) error { return s.AddItem(SlotInput, e) }

// AddModel adds e as the Model.
func (s Step) AddModel(e Entity) error { return s.AddItem(SlotModel, e) }

// AddSampler adds e as the Sampler.
func (s Step) AddSampler(e Entity) error { return s.AddItem(SlotSampler, e) }

// AddOptimizer adds e as the Optimizer.
func (s Step) AddOptimizer(e Entity) error { return s.AddItem(SlotOptimizer, e) }

// AddSolutionExport adds e as a SolutionExport.
func (s Step) AddSolutionExport(e Entity) error { return s.AddItem(SlotSolutionExport, e) }

// AddOutput adds e as an Output.
func (s Step) AddOutput(e Entity) error { return s.AddItem(SlotOutput, e) }

// Items returns the names referenced from a slot.
func (s Step) Items(slot string) []string {
	var names []string
	for _, c := range s.node.Children {
		if c.Tag == slot {
			names = append(names, c.TextString())
		}
	}
	return names
}

// References returns every reference child.
func (s Step) References() []*xmltree.Node {
	return append([]*xmltree.Node(nil), s.node.Children...)
}

// Validate checks slot placement and, for MultiRun, that exactly one of
// Sampler and Optimizer is present.
func (s Step) Validate() error {
	allowed := AllowedSlots(s.id.Tag)
	for _, c := range s.node.Children {
		if !slices.Contains(allowed, c.Tag) {
			return &SlotError{Step: s.id.Tag, Slot: c.Tag, Allowed: allowed}
		}
	}
	if s.id.Tag != "MultiRun" {
		return nil
	}
	for _, slot := range []string{SlotModel, SlotSampler, SlotOptimizer} {
		if n := len(s.Items(slot)); n > 1 {
			return &SlotError{Step: s.id.Tag, Slot: slot, Reason: fmt.Sprintf("MultiRun %q has %d %s references", s.Name(), n, slot)}
		}
	}
	switch hasS, hasO := s.has(SlotSampler), s.has(SlotOptimizer); {
	case hasS && hasO:
		return &SlotError{Step: s.id.Tag, Slot: SlotSampler, Reason: fmt.Sprintf("MultiRun %q has both a Sampler and an Optimizer", s.Name())}
	case !hasS && !hasO:
		return &SlotError{Step: s.id.Tag, Slot: SlotSampler, Reason: fmt.Sprintf("MultiRun %q needs a Sampler or an Optimizer", s.Name())}
	}
	return nil
}

// IOStep moves data between files, models, data objects and outstreams.
type IOStep struct{ Step }

// NewIOStep creates an IOStep.
func NewIOStep(name string) IOStep { return IOStep{newStep("IOStep", name)} }

// AsIOStep wraps an existing <IOStep> node.
func AsIOStep(n *xmltree.Node) IOStep {
	return IOStep{Step{wrap(n, Identity{Class: ClassSteps, Tag: "IOStep"})}}
}

// MultiRun evaluates a model repeatedly under a sampler or an optimizer.
type MultiRun struct{ Step }

// NewMultiRun creates a MultiRun step.
func NewMultiRun(name string) MultiRun { return MultiRun{newStep("MultiRun", name)} }

// AsMultiRun wraps an existing <MultiRun> node.
func AsMultiRun(n *xmltree.Node) MultiRun {
	return MultiRun{Step{wrap(n, Identity{Class: ClassSteps, Tag: "MultiRun"})}}
}

// PostProcess runs a post-processor model over data objects.
type PostProcess struct{ Step }

// NewPostProcess creates a PostProcess step.
func NewPostProcess(name string) PostProcess { return PostProcess{newStep("PostProcess", name)} }

// AsPostProcess wraps an existing <PostProcess> node.
func AsPostProcess(n *xmltree.Node) PostProcess {
	return PostProcess{Step{wrap(n, Identity{Class: ClassSteps, Tag: "PostProcess"})}}
}
