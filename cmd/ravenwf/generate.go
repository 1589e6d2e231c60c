package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/ravenwf/pkg/logger"
	"github.com/ormasoftchile/ravenwf/pkg/workflow"
)

var generateDryRun bool

var generateCmd = &cobra.Command{
	Use:   "generate [case.yaml]",
	Short: "Generate the RAVEN workflow for a case",
	Long: `Generate validates the case file, picks the workflow variant and writes
the workflow XML plus heron.lib.yaml to the output directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func runGenerate(cmd *cobra.Command, args []string) error {
	log := logger.For(logger.ComponentCLI)
	d, _, errs, err := workflow.Generate(args[0], settings)
	printValidation(errs)
	if err != nil {
		return err
	}
	log.Infow("Built workflow", "case", args[0], "variant", d.Variant())

	if b := d.Bilevel(); b != nil {
		unresolved, err := b.VerifyAliases()
		if err != nil {
			return err
		}
		for _, a := range unresolved {
			fmt.Fprintln(cmd.ErrOrStderr(), warnLine("alias does not resolve in the inner workflow: "+a))
		}
	}

	if generateDryRun {
		files, err := d.Render()
		if err != nil {
			return err
		}
		names := make([]string, 0, len(files))
		for name := range files {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			fmt.Fprintln(cmd.OutOrStdout(), headerStyle.Render("── "+name+" ──"))
			fmt.Fprintln(cmd.OutOrStdout(), string(files[name]))
		}
		return nil
	}

	written, err := d.WriteWorkflow(settings.Output.Dir)
	if err != nil {
		return err
	}
	for _, p := range written {
		fmt.Fprintln(cmd.OutOrStdout(), okLine("wrote "+p))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s workflow, %d file(s)\n", variantStyle.Render(string(d.Variant())), len(written))
	return nil
}

func init() {
	f := generateCmd.Flags()
	f.StringP("output", "o", "", "Directory to write the workflow to")
	f.String("executable", "", "RAVEN launcher the outer workflow calls")
	f.String("verbosity", "", "Override the case verbosity: silent, quiet, all, or debug")
	f.String("inner-to-outer", "", "Override the inner result hand-off: csv or netcdf")
	f.BoolVar(&generateDryRun, "dry-run", false, "Print the files instead of writing them")
}

