package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ormasoftchile/ravenwf/pkg/casefile"
	"github.com/ormasoftchile/ravenwf/pkg/config"
	"github.com/ormasoftchile/ravenwf/pkg/diagram"
	"github.com/ormasoftchile/ravenwf/pkg/logger"
	"github.com/ormasoftchile/ravenwf/pkg/snippets"
	"github.com/ormasoftchile/ravenwf/pkg/workflow"
)

// HandleValidate implements the ravenwf/validate MCP tool.
func HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}

	doc, errs := casefile.ValidateFile(path)
	if casefile.HasErrors(errs) {
		return errorResult(formatErrors(errs)), nil
	}
	msg := fmt.Sprintf("✓ %s is valid (%d components, %d sources)", doc.Case.Name, len(doc.Components), len(doc.Sources))
	if w := formatWarnings(errs); w != "" {
		msg += "\nwarnings: " + w
	}
	return textResult(msg), nil
}

// HandleGenerate implements the ravenwf/generate MCP tool.
func HandleGenerate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}
	dryRun := true
	if v, ok := args["dry_run"].(bool); ok {
		dryRun = v
	}
	outDir, _ := args["output_dir"].(string)
	if !dryRun && outDir == "" {
		return errorResult("output_dir is required unless dry_run is true"), nil
	}

	settings, err := settingsFor(args)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	d, _, errs, err := workflow.Generate(path, settings)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	response := map[string]any{
		"variant": string(d.Variant()),
		"dry_run": dryRun,
	}
	if w := formatWarnings(errs); w != "" {
		response["warnings"] = w
	}
	if dryRun {
		files, err := d.Render()
		if err != nil {
			return errorResult(err.Error()), nil
		}
		contents := make(map[string]string, len(files))
		for name, data := range files {
			contents[name] = string(data)
		}
		response["files"] = contents
	} else {
		written, err := d.WriteWorkflow(settings.Output.Dir)
		if err != nil {
			return errorResult(err.Error()), nil
		}
		response["written"] = written
	}
	if b := d.Bilevel(); b != nil {
		unresolved, err := b.VerifyAliases()
		if err != nil {
			return errorResult(err.Error()), nil
		}
		if len(unresolved) > 0 {
			response["unresolved_aliases"] = unresolved
		}
	}

	logger.For(logger.ComponentMCP).Infow("Generated workflow", "path", path, "variant", d.Variant(), "dry_run", dryRun)
	data, _ := json.MarshalIndent(response, "", "  ")
	return textResult(string(data)), nil
}

// settingsFor layers the tool arguments over the default settings.
func settingsFor(args map[string]any) (*config.Settings, error) {
	l := config.NewLoader(config.EnvPrefix)
	if err := l.LoadWithDefaults(config.Defaults(), ""); err != nil {
		return nil, err
	}
	overrides := map[string]any{}
	for arg, key := range map[string]string{
		"output_dir":     "output.dir",
		"executable":     "raven.executable",
		"inner_to_outer": "raven.inner_to_outer",
	} {
		if v, ok := args[arg].(string); ok {
			overrides[key] = v
		}
	}
	if err := l.LoadMap(overrides); err != nil {
		return nil, err
	}
	return l.Settings()
}

// HandleDescribe implements the ravenwf/describe MCP tool.
func HandleDescribe(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}
	d, doc, _, err := workflow.Generate(path, nil)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(d.Describe(doc)), nil
}

// HandleDiagram implements the ravenwf/diagram MCP tool.
func HandleDiagram(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}
	format := diagram.FormatMermaid
	if f, _ := args["format"].(string); f != "" {
		format = diagram.Format(f)
	}
	d, _, _, err := workflow.Generate(path, nil)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	out, err := d.Diagram(format)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(out), nil
}

// HandleSchema implements the ravenwf/schema MCP tool.
func HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := casefile.GenerateJSONSchema()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

// entityKind is the JSON form of a registered entity kind.
type entityKind struct {
	Name    string `json:"name"`
	Class   string `json:"class"`
	Tag     string `json:"tag"`
	Subtype string `json:"subType,omitempty"`
}

// HandleEntities implements the ravenwf/entities MCP tool.
func HandleEntities(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	class, _ := args["class"].(string)

	var kinds []entityKind
	for _, k := range snippets.DefaultRegistry().Kinds() {
		if class != "" && k.Class != class {
			continue
		}
		kinds = append(kinds, entityKind{Name: k.Name, Class: k.Class, Tag: k.Tag, Subtype: k.Subtype})
	}
	if len(kinds) == 0 {
		return errorResult(fmt.Sprintf("no entity kinds in class %q", class)), nil
	}
	sort.SliceStable(kinds, func(i, j int) bool { return kinds[i].Class < kinds[j].Class })

	data, _ := json.MarshalIndent(kinds, "", "  ")
	return textResult(string(data)), nil
}

func formatErrors(errs []*casefile.ValidationError) string {
	return formatSeverity(errs, "error")
}

func formatWarnings(errs []*casefile.ValidationError) string {
	return formatSeverity(errs, "warning")
}

func formatSeverity(errs []*casefile.ValidationError, severity string) string {
	var msgs []string
	for _, e := range errs {
		if e.Severity == severity {
			msgs = append(msgs, fmt.Sprintf("[%s] %s", e.Phase, e.Message))
		}
	}
	return strings.Join(msgs, "; ")
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
		IsError: true,
	}
}
