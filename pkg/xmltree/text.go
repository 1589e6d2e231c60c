package xmltree

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// DefaultDelimiter joins list values in node text.
const DefaultDelimiter = ", "

// ErrType is matched by every *TypeError.
var ErrType = errors.New("value cannot be node text")

// TypeError reports a value that has no text form, such as a mapping.
type TypeError struct {
	Value any
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("unable to convert %T to node text: mappings describe structure, not text", e.Value)
}

// Is lets errors.Is match ErrType.
func (e *TypeError) Is(target error) bool { return target == ErrType }

// ToText returns the canonical text form of v, joining sequences with
// DefaultDelimiter.
func ToText(v any) (string, error) {
	return ToTextDelim(v, DefaultDelimiter)
}

// ToTextDelim is ToText with a custom delimiter for sequences.
//
// Strings are returned as is; sequences have each element converted and
// joined; mappings fail with *TypeError; booleans use the True/False
// spelling the workflow engine reads; everything else uses its natural
// string form. ToTextDelim(ToTextDelim(x)) equals ToTextDelim(x).
func ToTextDelim(v any, delim string) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case bool:
		if t {
			return "True", nil
		}
		return "False", nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return formatFloat(t, 64), nil
	case float32:
		return formatFloat(float64(t), 32), nil
	case []string:
		return strings.Join(t, delim), nil
	case fmt.Stringer:
		return t.String(), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		return "", &TypeError{Value: v}
	case reflect.Slice, reflect.Array:
		parts := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			s, err := ToTextDelim(rv.Index(i).Interface(), delim)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, delim), nil
	case reflect.Pointer:
		if rv.IsNil() {
			return "", nil
		}
		return ToTextDelim(rv.Elem().Interface(), delim)
	}
	return fmt.Sprint(v), nil
}

func formatFloat(f float64, bits int) string {
	return strconv.FormatFloat(f, 'g', -1, bits)
}

// Stringify replaces every non-string text value under root with its
// canonical string form. Attributes are always strings already.
func Stringify(root *Node) error {
	var firstErr error
	var walk func(n *Node, path string)
	walk = func(n *Node, path string) {
		if firstErr != nil {
			return
		}
		here := path + "/" + n.Tag
		if n.Text != nil {
			if _, ok := n.Text.(string); !ok {
				s, err := ToText(n.Text)
				if err != nil {
					firstErr = fmt.Errorf("stringify %s: %w", here, err)
					return
				}
				n.Text = s
			}
		}
		for _, c := range n.Children {
			walk(c, here)
		}
	}
	walk(root, "")
	return firstErr
}

// PruneEmpty removes direct children of root that have no children, such as
// unused top-level sections, and returns their tags.
func PruneEmpty(root *Node) []string {
	var removed []string
	kept := root.Children[:0]
	for _, c := range root.Children {
		if len(c.Children) == 0 {
			removed = append(removed, c.Tag)
			continue
		}
		kept = append(kept, c)
	}
	root.Children = kept
	return removed
}
