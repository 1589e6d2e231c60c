package workflow

import (
	"fmt"

	"github.com/ormasoftchile/ravenwf/pkg/snippets"
	"github.com/ormasoftchile/ravenwf/pkg/xmltree"
)

// Check looks for structural problems in a finished workflow tree. Two
// entities with the same name in one section, a step with misplaced or
// missing references, or a Sequence entry without a step, fail the check
// with a *ConsistencyError. References to entities
// the tree does not define are returned as warnings.
func Check(name string, root *xmltree.Node) (warnings []string, err error) {
	var problems []string

	for _, section := range root.Children {
		seen := map[string]bool{}
		for _, c := range section.Children {
			n := c.Get("name")
			if n == "" {
				continue
			}
			if seen[n] {
				problems = append(problems, fmt.Sprintf("duplicate %s entity %q", section.Tag, n))
			}
			seen[n] = true
		}
	}

	if steps := root.Child("Steps"); steps != nil {
		for _, n := range steps.Children {
			if err := snippets.AsStep(n).Validate(); err != nil {
				problems = append(problems, fmt.Sprintf("step %q: %v", n.Get("name"), err))
			}
		}
	}

	if seq := xmltree.Find(root, "RunInfo/Sequence"); seq != nil {
		for _, step := range snippets.CoerceList(seq.Text) {
			if xmltree.Find(root, fmt.Sprintf("Steps/*[@name='%s']", step)) == nil {
				problems = append(problems, fmt.Sprintf("sequence step %q is not defined", step))
			}
		}
	}

	root.Walk(func(n *xmltree.Node) bool {
		class, hasClass := n.Lookup("class")
		if _, hasType := n.Lookup("type"); !hasClass || !hasType {
			return true
		}
		target := n.TextString()
		if target == "" {
			return true
		}
		if xmltree.Find(root, fmt.Sprintf("%s/*[@name='%s']", class, target)) == nil {
			warnings = append(warnings, fmt.Sprintf("<%s> references undefined %s entity %q", n.Tag, class, target))
		}
		return true
	})

	if len(problems) > 0 {
		return warnings, &ConsistencyError{Template: name, Problems: problems}
	}
	return warnings, nil
}
