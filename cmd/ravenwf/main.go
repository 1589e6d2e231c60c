package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/ravenwf/pkg/casefile"
	"github.com/ormasoftchile/ravenwf/pkg/config"
	"github.com/ormasoftchile/ravenwf/pkg/logger"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

var (
	configPath string
	settings   *config.Settings
)

func main() {
	err := rootCmd.Execute()
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ravenwf",
	Short: "RAVEN workflow generator for HERON cases",
	Long:  "ravenwf turns a HERON case file into the RAVEN workflow XML that samples or optimizes it.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, _, err := config.Load(configPath, cmd.Flags())
		if err != nil {
			return err
		}
		settings = s
		logger.Configure(s.Logging.Level, logger.ParseFormat(s.Logging.Format))
		return nil
	},
	SilenceUsage: true,
}

// --- validate ---

var validateCmd = &cobra.Command{
	Use:   "validate [case.yaml]",
	Short: "Validate a case YAML file against the schema and domain rules",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	doc, errs := casefile.ValidateFile(args[0])
	if printValidation(errs) > 0 {
		return fmt.Errorf("validation failed")
	}
	fmt.Println(okLine(fmt.Sprintf("%s is valid (%d components, %d sources)", doc.Case.Name, len(doc.Components), len(doc.Sources))))
	return nil
}

// printValidation reports warnings and errors on stderr and returns the
// number of errors.
func printValidation(errs []*casefile.ValidationError) int {
	var errors []*casefile.ValidationError
	for _, e := range errs {
		if e.Severity == "warning" {
			fmt.Fprintln(os.Stderr, warnLine(fmt.Sprintf("[%s] %s", e.Phase, e.Message)))
			if e.Path != "" {
				fmt.Fprintf(os.Stderr, "    at: %s\n", e.Path)
			}
			continue
		}
		errors = append(errors, e)
	}
	if len(errors) == 0 {
		return 0
	}
	fmt.Fprintln(os.Stderr, failLine(fmt.Sprintf("Validation failed: %d error(s)", len(errors))))
	for i, e := range errors {
		fmt.Fprintf(os.Stderr, "  %d. [%s] %s\n", i+1, e.Phase, e.Message)
		if e.Path != "" {
			fmt.Fprintf(os.Stderr, "     at: %s\n", e.Path)
		}
	}
	return len(errors)
}

// --- schema ---

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Export the case file JSON Schema to stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := casefile.GenerateJSONSchema()
		if err != nil {
			return fmt.Errorf("generate schema: %w", err)
		}
		var out json.RawMessage = data
		formatted, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			fmt.Println(string(data))
			return nil
		}
		fmt.Println(string(formatted))
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective generator settings as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, l, err := config.Load(configPath, cmd.Flags())
		if err != nil {
			return err
		}
		return l.DumpYAML(cmd.OutOrStdout())
	},
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ravenwf %s (build: %s)\n", version, commit)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Settings file (default ./"+config.DefaultFile+" when present)")
	pf.String("log-level", "", "Log level: debug, info, warn, or error")
	pf.String("log-format", "", "Log format: console or json")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(diagramCmd)
	rootCmd.AddCommand(entitiesCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
