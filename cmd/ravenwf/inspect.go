package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/ormasoftchile/ravenwf/pkg/describe"
	"github.com/ormasoftchile/ravenwf/pkg/diagram"
	"github.com/ormasoftchile/ravenwf/pkg/snippets"
	"github.com/ormasoftchile/ravenwf/pkg/workflow"
)

// --- describe ---

var (
	describeHTML  bool
	describeRaw   bool
	describeWidth int
)

var describeCmd = &cobra.Command{
	Use:   "describe [case.yaml]",
	Short: "Summarize the workflow generated for a case",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, doc, errs, err := workflow.Generate(args[0], settings)
		printValidation(errs)
		if err != nil {
			return err
		}
		md := d.Describe(doc)
		switch {
		case describeHTML:
			html, err := describe.HTML(md)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(html)
			return err
		case describeRaw:
			fmt.Fprint(cmd.OutOrStdout(), md)
		default:
			fmt.Fprint(cmd.OutOrStdout(), describe.Render(md, describeWidth))
		}
		return nil
	},
}

// --- diagram ---

var diagramCmd = &cobra.Command{
	Use:   "diagram [case.yaml]",
	Short: "Draw the step sequence of the workflow generated for a case",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, _, errs, err := workflow.Generate(args[0], settings)
		printValidation(errs)
		if err != nil {
			return err
		}
		out, err := d.Diagram(diagram.Format(settings.Diagram.Format))
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

// --- entities ---

var entitiesClass string

var entitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "List the workflow entity kinds the generator recognizes",
	RunE: func(cmd *cobra.Command, args []string) error {
		kinds := filterKinds(snippets.DefaultRegistry().Kinds(), entitiesClass)
		if len(kinds) == 0 {
			return fmt.Errorf("no entity kinds in class %q", entitiesClass)
		}
		fmt.Fprint(cmd.OutOrStdout(), entitiesTable(kinds))
		return nil
	},
}

// filterKinds keeps the kinds of class (all when class is empty), ordered
// by class then tag.
func filterKinds(all []snippets.Kind, class string) []snippets.Kind {
	var kinds []snippets.Kind
	for _, k := range all {
		if class == "" || strings.EqualFold(k.Class, class) {
			kinds = append(kinds, k)
		}
	}
	sort.SliceStable(kinds, func(i, j int) bool {
		if kinds[i].Class != kinds[j].Class {
			return kinds[i].Class < kinds[j].Class
		}
		return kinds[i].Key() < kinds[j].Key()
	})
	return kinds
}

// entitiesTable lays the kinds out in aligned columns.
func entitiesTable(kinds []snippets.Kind) string {
	rows := [][]string{{"CLASS", "TAG", "SUBTYPE", "NAME"}}
	for _, k := range kinds {
		rows = append(rows, []string{k.Class, k.Tag, k.Subtype, k.Name})
	}
	widths := make([]int, len(rows[0]))
	for _, r := range rows {
		for i, cell := range r {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	var b strings.Builder
	for n, r := range rows {
		cells := make([]string, len(r))
		for i, cell := range r {
			style := cellStyle
			if n == 0 {
				style = headerStyle
			} else if i == 0 {
				style = classStyle
			}
			cells[i] = style.Width(widths[i]).Render(cell)
		}
		b.WriteString(strings.TrimRight(strings.Join(cells, "  "), " "))
		b.WriteByte('\n')
	}
	return b.String()
}

func init() {
	describeCmd.Flags().BoolVar(&describeHTML, "html", false, "Write the summary as HTML")
	describeCmd.Flags().BoolVar(&describeRaw, "raw", false, "Write the summary as plain Markdown")
	describeCmd.Flags().IntVar(&describeWidth, "width", 100, "Wrap width for terminal rendering (0 disables wrapping)")

	diagramCmd.Flags().String("diagram-format", "", "Diagram format: ascii or mermaid")

	entitiesCmd.Flags().StringVar(&entitiesClass, "class", "", "Only list kinds of this class, e.g. Samplers")
}
