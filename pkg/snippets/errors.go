package snippets

import (
	"errors"
	"fmt"
	"strings"
)

// Consistency errors. They point at a programming error in the assembly
// code or at a malformed template and are never ignored.
var (
	ErrDuplicateEntity = errors.New("duplicate entity")
	ErrDuplicateStep   = errors.New("duplicate step")
	ErrCollision       = errors.New("registry key collision")
	ErrSlot            = errors.New("slot not allowed")
	ErrSampledConstant = errors.New("variable is both sampled and constant")
	ErrReference       = errors.New("entity cannot be referenced")
	ErrWrongClass      = errors.New("entity has the wrong class")
	ErrValue           = errors.New("invalid value")
)

// ReferenceError reports an entity that lacks the name or class needed to
// build a cross-reference.
type ReferenceError struct {
	Tag     string
	Class   string
	Name    string
	Missing []string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("<%s> cannot be referenced: missing %s (class=%q, name=%q)",
		e.Tag, strings.Join(e.Missing, " and "), e.Class, e.Name)
}

// Is lets errors.Is match ErrReference.
func (e *ReferenceError) Is(target error) bool { return target == ErrReference }

// CollisionError reports two different kinds claiming the same registry key.
type CollisionError struct {
	Key      string
	Existing string
	New      string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("registry key %q is claimed by both %s and %s", e.Key, e.Existing, e.New)
}

// Is lets errors.Is match ErrCollision.
func (e *CollisionError) Is(target error) bool { return target == ErrCollision }

// DuplicateStepError reports a step name already present in a sequence.
type DuplicateStepError struct {
	Name     string
	Sequence []string
}

func (e *DuplicateStepError) Error() string {
	return fmt.Sprintf("step %q is already in the sequence [%s]", e.Name, strings.Join(e.Sequence, ", "))
}

// Is lets errors.Is match ErrDuplicateStep.
func (e *DuplicateStepError) Is(target error) bool { return target == ErrDuplicateStep }

// DuplicateEntityError reports a second entity with an existing name in the
// same section.
type DuplicateEntityError struct {
	Class   string
	Name    string
	Section string
}

func (e *DuplicateEntityError) Error() string {
	return fmt.Sprintf("%s entity %q already exists under <%s>", e.Class, e.Name, e.Section)
}

// Is lets errors.Is match ErrDuplicateEntity.
func (e *DuplicateEntityError) Is(target error) bool { return target == ErrDuplicateEntity }

// SlotError reports a reference added to a step slot the step type does not
// accept.
type SlotError struct {
	Step    string
	Slot    string
	Allowed []string
	Reason  string
}

func (e *SlotError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("step <%s> cannot take %s: %s", e.Step, e.Slot, e.Reason)
	}
	return fmt.Sprintf("step <%s> does not accept %s; allowed: %s", e.Step, e.Slot, strings.Join(e.Allowed, ", "))
}

// Is lets errors.Is match ErrSlot.
func (e *SlotError) Is(target error) bool { return target == ErrSlot }
