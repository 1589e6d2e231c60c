package xmltree

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrParse is matched by every *ParseError.
var ErrParse = errors.New("malformed path")

// ParseError reports the path segment that could not be parsed.
type ParseError struct {
	Path    string
	Segment string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed path %q: invalid segment %q", e.Path, e.Segment)
}

// Is lets errors.Is match ErrParse.
func (e *ParseError) Is(target error) bool { return target == ErrParse }

// Step is one parsed path segment: a tag and an optional attribute filter.
// The tag * matches any element.
type Step struct {
	Tag   string
	Attrs map[string]string
}

// Matches reports whether node satisfies the step.
func (s Step) Matches(n *Node) bool {
	if s.Tag != "*" && n.Tag != s.Tag {
		return false
	}
	for k, v := range s.Attrs {
		if got, ok := n.Lookup(k); !ok || got != v {
			return false
		}
	}
	return true
}

func (s Step) String() string {
	if len(s.Attrs) == 0 {
		return s.Tag
	}
	for k, v := range s.Attrs {
		return fmt.Sprintf("%s[@%s='%s']", s.Tag, k, v)
	}
	return s.Tag
}

var segmentRe = regexp.MustCompile(`^([^/\[\]@=]+)(?:\[@([^=\]]+)=(?:'([^']*)'|"([^"]*)")\])?$`)

// ParsePath splits a slash-separated path such as
// "Steps/MultiRun[@name='sweep']/Sampler" into steps. Leading and trailing
// slashes are ignored. Slashes inside a predicate value do not split.
func ParsePath(path string) ([]Step, error) {
	trimmed := strings.Trim(strings.TrimSpace(path), "/")
	if trimmed == "" {
		return nil, &ParseError{Path: path, Segment: path}
	}
	var steps []Step
	for _, seg := range splitSegments(trimmed) {
		m := segmentRe.FindStringSubmatch(strings.TrimSpace(seg))
		if m == nil {
			return nil, &ParseError{Path: path, Segment: seg}
		}
		st := Step{Tag: strings.TrimSpace(m[1])}
		if m[2] != "" {
			val := m[3]
			if val == "" {
				val = m[4]
			}
			st.Attrs = map[string]string{strings.TrimSpace(m[2]): val}
		}
		steps = append(steps, st)
	}
	return steps, nil
}

// splitSegments splits on slashes outside of [...] predicates.
func splitSegments(path string) []string {
	var segs []string
	depth, start := 0, 0
	for i, r := range path {
		switch r {
		case '[':
			depth++
		case ']':
			if depth > 0 {
				depth--
			}
		case '/':
			if depth == 0 {
				segs = append(segs, path[start:i])
				start = i + 1
			}
		}
	}
	return append(segs, path[start:])
}

// MustParsePath is ParsePath for paths known at compile time.
func MustParsePath(path string) []Step {
	steps, err := ParsePath(path)
	if err != nil {
		panic(err)
	}
	return steps
}

// Find returns the first node under root matching path, or nil. A path
// starting with ".//" searches all descendants for its first step.
func Find(root *Node, path string) *Node {
	found := FindAll(root, path)
	if len(found) == 0 {
		return nil
	}
	return found[0]
}

// FindAll returns every node under root matching path in document order.
// Malformed paths match nothing.
func FindAll(root *Node, path string) []*Node {
	if root == nil {
		return nil
	}
	descendant := strings.HasPrefix(path, ".//")
	steps, err := ParsePath(strings.TrimPrefix(path, ".//"))
	if err != nil {
		return nil
	}

	var current []*Node
	if descendant {
		root.Walk(func(n *Node) bool {
			if n != root && steps[0].Matches(n) {
				current = append(current, n)
			}
			return true
		})
		steps = steps[1:]
	} else {
		current = []*Node{root}
	}

	for _, st := range steps {
		var next []*Node
		for _, n := range current {
			for _, c := range n.Children {
				if st.Matches(c) {
					next = append(next, c)
				}
			}
		}
		current = next
		if len(current) == 0 {
			return nil
		}
	}
	return current
}

// FindOrCreate walks path from root, creating each missing step with its
// tag and attributes, and returns the final node. Calling it twice with the
// same path returns the same node. The * wildcard names no element to
// create, so it is rejected with a *ParseError.
func FindOrCreate(root *Node, path string) (*Node, error) {
	steps, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	for _, st := range steps {
		if st.Tag == "*" {
			return nil, &ParseError{Path: path, Segment: st.String()}
		}
	}
	current := root
	for _, st := range steps {
		var next *Node
		for _, c := range current.Children {
			if st.Matches(c) {
				next = c
				break
			}
		}
		if next == nil {
			next = current.SubElement(st.Tag)
			for k, v := range st.Attrs {
				next.Set(k, v)
			}
		}
		current = next
	}
	return current, nil
}

// MustFindOrCreate is FindOrCreate for constant paths.
func MustFindOrCreate(root *Node, path string) *Node {
	n, err := FindOrCreate(root, path)
	if err != nil {
		panic(err)
	}
	return n
}

// AliasToPath converts a pipe-delimited alias location such as
// "Samplers|MonteCarlo@name:mc|constant@name:denoises" into the equivalent
// path "Samplers/MonteCarlo[@name='mc']/constant[@name='denoises']".
func AliasToPath(alias string) string {
	parts := strings.Split(alias, "|")
	for i, p := range parts {
		tag, attr, ok := strings.Cut(p, "@")
		if !ok {
			continue
		}
		name, value, ok := strings.Cut(attr, ":")
		if !ok {
			continue
		}
		parts[i] = fmt.Sprintf("%s[@%s='%s']", tag, name, value)
	}
	return strings.Join(parts, "/")
}

// Siblings lists the distinct child tags of the deepest node on path that
// exists, together with that node's path. It is used to build diagnostics
// when a required node is missing.
func Siblings(root *Node, path string) (string, []string) {
	steps, err := ParsePath(path)
	if err != nil {
		return "", nil
	}
	current := root
	var walked []string
	for _, st := range steps {
		var next *Node
		for _, c := range current.Children {
			if st.Matches(c) {
				next = c
				break
			}
		}
		if next == nil {
			break
		}
		walked = append(walked, st.String())
		current = next
	}
	seen := map[string]bool{}
	var tags []string
	for _, c := range current.Children {
		label := c.Tag
		if name := c.Get("name"); name != "" {
			label = fmt.Sprintf("%s[@name='%s']", c.Tag, name)
		} else if sub := c.Get("subType"); sub != "" {
			label = fmt.Sprintf("%s[@subType='%s']", c.Tag, sub)
		}
		if !seen[label] {
			seen[label] = true
			tags = append(tags, label)
		}
	}
	parent := strings.Join(walked, "/")
	if parent == "" {
		parent = root.Tag
	}
	return parent, tags
}
