// Package describe writes a Markdown summary of a generated workflow and
// renders it for the terminal or as HTML.
package describe

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/yuin/goldmark"

	"github.com/ormasoftchile/ravenwf/pkg/heron"
	"github.com/ormasoftchile/ravenwf/pkg/snippets"
	"github.com/ormasoftchile/ravenwf/pkg/xmltree"
)

// File is one generated workflow file.
type File struct {
	Name string
	Root *xmltree.Node
}

// Summary is what Markdown describes.
type Summary struct {
	Case    heron.Case
	Variant string
	Files   []File
}

// Markdown writes the summary: the case settings, then per file the step
// sequence, the entities of every section, the sampled variables and the
// RAVEN aliases.
func Markdown(s Summary) string {
	var b strings.Builder
	c := s.Case
	fmt.Fprintf(&b, "# %s\n\n", c.Name())
	fmt.Fprintf(&b, "| Setting | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Variant | %s |\n", s.Variant)
	fmt.Fprintf(&b, "| Mode | %s |\n", c.Mode())
	fmt.Fprintf(&b, "| Samples | %d |\n", c.NumSamples())
	fmt.Fprintf(&b, "| Verbosity | %s |\n", c.Verbosity())
	if c.Debug().Enabled {
		b.WriteString("| Debug | on |\n")
	}
	for _, l := range c.Labels() {
		fmt.Fprintf(&b, "| Label `%s` | %s |\n", l.Key, l.Value)
	}

	for _, f := range s.Files {
		fmt.Fprintf(&b, "\n## %s\n", f.Name)
		writeSequence(&b, f.Root)
		writeEntities(&b, f.Root)
		writeSampled(&b, f.Root)
		writeAliases(&b, f.Root)
	}
	return b.String()
}

func writeSequence(b *strings.Builder, root *xmltree.Node) {
	seq := xmltree.Find(root, "RunInfo/Sequence")
	if seq == nil {
		return
	}
	b.WriteString("\n### Sequence\n\n")
	for i, name := range snippets.CoerceList(seq.Text) {
		kind := "undefined"
		if n := xmltree.Find(root, fmt.Sprintf("Steps/*[@name='%s']", name)); n != nil {
			kind = n.Tag
		}
		fmt.Fprintf(b, "%d. `%s` (%s)\n", i+1, name, kind)
	}
}

func writeEntities(b *strings.Builder, root *xmltree.Node) {
	b.WriteString("\n### Entities\n\n| Section | Entity | Type |\n|---|---|---|\n")
	for _, section := range root.Children {
		if section.Tag == "RunInfo" {
			continue
		}
		for _, e := range section.Children {
			name := e.Get("name")
			if name == "" {
				continue
			}
			typ := e.Tag
			if sub := e.Get("subType"); sub != "" {
				typ += "." + sub
			}
			fmt.Fprintf(b, "| %s | `%s` | %s |\n", section.Tag, name, typ)
		}
	}
}

// writeSampled lists the variables and constants of every sampler and
// optimizer, nested ones included.
func writeSampled(b *strings.Builder, root *xmltree.Node) {
	var rows []string
	for _, section := range []string{"Samplers", "Optimizers"} {
		sec := xmltree.Find(root, section)
		if sec == nil {
			continue
		}
		sec.Walk(func(n *xmltree.Node) bool {
			owner := n.Get("name")
			for _, c := range n.Children {
				switch c.Tag {
				case "variable":
					rows = append(rows, fmt.Sprintf("| `%s` | `%s` | %s |", owner, c.Get("name"), sampling(c)))
				case "constant":
					rows = append(rows, fmt.Sprintf("| `%s` | `%s` | constant %s |", owner, c.Get("name"), c.TextString()))
				}
			}
			return true
		})
	}
	if len(rows) == 0 {
		return
	}
	b.WriteString("\n### Sampled variables\n\n| Sampler | Variable | Sampling |\n|---|---|---|\n")
	b.WriteString(strings.Join(rows, "\n") + "\n")
}

func sampling(v *xmltree.Node) string {
	if g := v.Child("grid"); g != nil {
		return fmt.Sprintf("grid %s/%s: %s", g.Get("construction"), g.Get("type"), g.TextString())
	}
	if d := v.Child("distribution"); d != nil {
		return "distribution " + d.TextString()
	}
	if init := v.Child("initial"); init != nil {
		return "initial " + init.TextString()
	}
	return "replayed"
}

func writeAliases(b *strings.Builder, root *xmltree.Node) {
	aliases := xmltree.FindAll(root, "Models/Code/alias")
	if len(aliases) == 0 {
		return
	}
	b.WriteString("\n### Aliases\n\n| Variable | Inner location |\n|---|---|\n")
	for _, a := range aliases {
		fmt.Fprintf(b, "| `%s` | `%s` |\n", a.Get("variable"), strings.ReplaceAll(a.TextString(), "|", `\|`))
	}
}

// Render styles md for a terminal of the given width (0 disables
// wrapping). It falls back to the raw input when rendering fails.
func Render(md string, width int) string {
	if strings.TrimSpace(md) == "" {
		return md
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n") + "\n"
}

// HTML converts md to an HTML fragment.
func HTML(md string) ([]byte, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return nil, fmt.Errorf("convert markdown: %w", err)
	}
	return buf.Bytes(), nil
}
