// Package diagram draws the step sequence of generated workflows.
// Supports Mermaid flowchart and ASCII formats.
package diagram

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/ormasoftchile/ravenwf/pkg/snippets"
	"github.com/ormasoftchile/ravenwf/pkg/xmltree"
)

// Format represents the output diagram format.
type Format string

const (
	FormatMermaid Format = "mermaid"
	FormatASCII   Format = "ascii"
)

// Level is one workflow file. The first level is the entry point; a step
// whose model is a RAVEN code model runs the next level once per sample.
type Level struct {
	Name string
	Root *xmltree.Node
}

// Generate produces a diagram of the levels' step sequences.
func Generate(levels []Level, format Format) (string, error) {
	if len(levels) == 0 || levels[0].Root == nil {
		return "", fmt.Errorf("no workflow to draw")
	}
	flow := buildFlow(levels)
	switch format {
	case FormatMermaid:
		return generateMermaid(flow), nil
	case FormatASCII:
		return generateASCII(flow), nil
	default:
		return "", fmt.Errorf("unsupported diagram format: %s", format)
	}
}

// --- Mermaid flowchart ---

func generateMermaid(f flow) string {
	var b strings.Builder
	b.WriteString("flowchart TD\n")
	if len(f.steps) == 0 {
		return b.String()
	}

	b.WriteString("    START([Start]) --> " + safeID(f.steps[0].id) + "\n")
	for i, s := range f.steps {
		b.WriteString("    " + nodeDefinition(s) + "\n")
		if s.inner != nil && len(s.inner.steps) > 0 {
			fmt.Fprintf(&b, "    subgraph %s [%q]\n", safeID(s.inner.name), s.inner.name)
			for j, is := range s.inner.steps {
				b.WriteString("        " + nodeDefinition(is) + "\n")
				if j < len(s.inner.steps)-1 {
					fmt.Fprintf(&b, "        %s --> %s\n", safeID(is.id), safeID(s.inner.steps[j+1].id))
				}
			}
			b.WriteString("    end\n")
			fmt.Fprintf(&b, "    %s -.->|\"per sample\"| %s\n", safeID(s.id), safeID(s.inner.steps[0].id))
		}
		if i < len(f.steps)-1 {
			fmt.Fprintf(&b, "    %s --> %s\n", safeID(s.id), safeID(f.steps[i+1].id))
		}
	}

	for _, s := range f.steps {
		if s.kind == "MultiRun" {
			fmt.Fprintf(&b, "    style %s fill:#1a3a4a,stroke:#0af\n", safeID(s.id))
		}
	}
	return b.String()
}

// --- ASCII ---

func generateASCII(f flow) string {
	var b strings.Builder

	name := f.name
	if name == "" {
		name = "Workflow"
	}
	if len(f.steps) == 0 {
		b.WriteString(name + " (empty)\n")
		return b.String()
	}

	// Compute uniform box width so every box and connector aligns.
	const indent = 8
	boxWidth := computeUniformBoxWidth(f.steps, name)
	connCol := indent + 1 + boxWidth/2
	pad := strings.Repeat(" ", indent)
	connPad := strings.Repeat(" ", connCol)

	headerText := centerPad(name, boxWidth)
	mid := boxWidth / 2
	b.WriteString(pad + "╔" + strings.Repeat("═", boxWidth) + "╗\n")
	b.WriteString(pad + "║" + headerText + "║\n")
	b.WriteString(pad + "╚" + strings.Repeat("═", mid) + "╤" + strings.Repeat("═", boxWidth-mid-1) + "╝\n")
	b.WriteString(connPad + "│\n")

	for i, s := range f.steps {
		writeASCIIStep(&b, s, indent, boxWidth)

		if s.inner != nil && len(s.inner.steps) > 0 {
			b.WriteString(connPad + "│\n")

			brLines := []string{" per sample: " + s.inner.name + " "}
			for _, is := range s.inner.steps {
				brLines = append(brLines, "  "+stepIcon(is.kind)+" "+is.id+" ")
			}

			// Branch box width = widest content line, minimum 9 (for diamond)
			brWidth := 9
			for _, l := range brLines {
				if w := runewidth.StringWidth(l); w > brWidth {
					brWidth = w
				}
			}
			// Ensure odd width so ◇ and ┬ land at center
			if brWidth%2 == 0 {
				brWidth++
			}
			brHalf := brWidth / 2

			brPad := strings.Repeat(" ", max(connCol-brHalf-1, 0))
			b.WriteString(brPad + "┌" + strings.Repeat("─", brHalf) + "◇" + strings.Repeat("─", brHalf) + "┐\n")
			for _, l := range brLines {
				lw := runewidth.StringWidth(l)
				b.WriteString(brPad + "│" + l + strings.Repeat(" ", brWidth-lw) + "│\n")
			}
			b.WriteString(brPad + "└" + strings.Repeat("─", brHalf) + "┬" + strings.Repeat("─", brHalf) + "┘\n")
		}

		if i < len(f.steps)-1 {
			b.WriteString(connPad + "│\n")
		}
	}
	return b.String()
}

// computeUniformBoxWidth returns the widest interior width needed
// across all steps and the header name.
func computeUniformBoxWidth(steps []diagramStep, name string) int {
	w := 22
	if nameWidth := runewidth.StringWidth(name) + 4; nameWidth > w {
		w = nameWidth
	}
	for _, s := range steps {
		if sw := stepContentWidth(s); sw > w {
			w = sw
		}
	}
	return w
}

func stepContentWidth(s diagramStep) int {
	w := runewidth.StringWidth(stepLabel(s))
	for _, d := range s.details {
		if dw := runewidth.StringWidth(" → " + d); dw > w {
			w = dw
		}
	}
	return w
}

func stepLabel(s diagramStep) string {
	return fmt.Sprintf(" %s %s ", stepIcon(s.kind), s.id)
}

// centerPad centers s within width using spaces, based on display width.
func centerPad(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	total := width - sw
	left := total / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", total-left)
}

func writeASCIIStep(b *strings.Builder, s diagramStep, indent, boxWidth int) {
	content := stepLabel(s)
	pad := strings.Repeat(" ", indent)
	mid := boxWidth / 2

	b.WriteString(pad + "┌" + strings.Repeat("─", boxWidth) + "┐\n")
	b.WriteString(pad + "│" + content + strings.Repeat(" ", boxWidth-runewidth.StringWidth(content)) + "│\n")
	for _, d := range s.details {
		line := " → " + d
		b.WriteString(pad + "│" + line + strings.Repeat(" ", boxWidth-runewidth.StringWidth(line)) + "│\n")
	}
	b.WriteString(pad + "└" + strings.Repeat("─", mid) + "┬" + strings.Repeat("─", boxWidth-mid-1) + "┘\n")
}

func stepIcon(kind string) string {
	switch kind {
	case "MultiRun":
		return "↻"
	case "IOStep":
		return "⇄"
	case "PostProcess":
		return "∑"
	default:
		return "○"
	}
}

// --- tree walking helpers ---

type flow struct {
	name  string
	steps []diagramStep
}

type diagramStep struct {
	id      string
	kind    string
	details []string
	inner   *flow
}

// buildFlow reads each level's sequence. Only the first level is drawn at
// the top; later levels hang off the step that runs them.
func buildFlow(levels []Level) flow {
	f := readFlow(levels[0])
	if len(levels) > 1 {
		inner := buildFlow(levels[1:])
		for i := range f.steps {
			if runsInner(levels[0].Root, f.steps[i].id) {
				f.steps[i].inner = &inner
				break
			}
		}
	}
	return f
}

func readFlow(l Level) flow {
	f := flow{name: l.Name}
	seq := xmltree.Find(l.Root, "RunInfo/Sequence")
	if seq == nil {
		return f
	}
	for _, name := range snippets.CoerceList(seq.Text) {
		ds := diagramStep{id: name}
		if n := xmltree.Find(l.Root, fmt.Sprintf("Steps/*[@name='%s']", name)); n != nil {
			ds.kind = n.Tag
			ds.details = stepDetails(n)
		}
		f.steps = append(f.steps, ds)
	}
	return f
}

// stepDetails summarizes a step's references by role, such as
// "Model: raven" or "Output: grid, sweep".
func stepDetails(step *xmltree.Node) []string {
	var roles []string
	byRole := map[string][]string{}
	for _, c := range step.Children {
		if _, ok := c.Lookup("class"); !ok {
			continue
		}
		if _, seen := byRole[c.Tag]; !seen {
			roles = append(roles, c.Tag)
		}
		byRole[c.Tag] = append(byRole[c.Tag], c.TextString())
	}
	details := make([]string, 0, len(roles))
	for _, r := range roles {
		details = append(details, r+": "+strings.Join(byRole[r], ", "))
	}
	return details
}

// runsInner reports whether the named step's model is a RAVEN code model.
func runsInner(root *xmltree.Node, step string) bool {
	model := xmltree.Find(root, fmt.Sprintf("Steps/*[@name='%s']/Model", step))
	if model == nil {
		return false
	}
	return xmltree.Find(root, fmt.Sprintf("Models/Code[@name='%s']", model.TextString())) != nil
}

// --- string helpers ---

func nodeDefinition(s diagramStep) string {
	id := safeID(s.id)
	label := stepIcon(s.kind) + " " + escMermaid(s.id)
	for _, d := range s.details {
		label += "<br/>→ " + escMermaid(truncate(d, 40))
	}
	switch s.kind {
	case "MultiRun":
		return fmt.Sprintf(`%s[["%s"]]`, id, label)
	case "PostProcess":
		return fmt.Sprintf(`%s{{"%s"}}`, id, label)
	case "IOStep":
		return fmt.Sprintf(`%s[/"%s"/]`, id, label)
	default:
		return fmt.Sprintf(`%s["%s"]`, id, label)
	}
}

func safeID(id string) string {
	r := strings.NewReplacer("-", "_", " ", "_", ".", "_")
	return r.Replace(id)
}

func escMermaid(s string) string {
	s = strings.ReplaceAll(s, `"`, "#quot;")
	s = strings.ReplaceAll(s, `'`, "#apos;")
	return s
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
