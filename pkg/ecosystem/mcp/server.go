package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates a new MCP server with the ravenwf tools registered.
func NewServer(version string) *server.MCPServer {
	s := server.NewMCPServer(
		"ravenwf",
		version,
		server.WithToolCapabilities(true),
	)

	s.AddTool(
		mcp.NewTool("ravenwf/validate",
			mcp.WithDescription("Validate a ravenwf case YAML file"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the case YAML file")),
		),
		HandleValidate,
	)

	s.AddTool(
		mcp.NewTool("ravenwf/generate",
			mcp.WithDescription("Generate the RAVEN workflow XML for a case (defaults to a dry run that returns the files without writing them)"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the case YAML file")),
			mcp.WithString("output_dir", mcp.Description("Directory to write the workflow to; required unless dry_run is true")),
			mcp.WithString("executable", mcp.Description("RAVEN launcher the outer workflow calls")),
			mcp.WithString("inner_to_outer", mcp.Description("Inner result hand-off: csv or netcdf")),
			mcp.WithBoolean("dry_run", mcp.Description("Return the files instead of writing them (default true)")),
		),
		HandleGenerate,
	)

	s.AddTool(
		mcp.NewTool("ravenwf/describe",
			mcp.WithDescription("Summarize the workflow generated for a case as Markdown"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the case YAML file")),
		),
		HandleDescribe,
	)

	s.AddTool(
		mcp.NewTool("ravenwf/diagram",
			mcp.WithDescription("Draw the step sequence of the workflow generated for a case"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the case YAML file")),
			mcp.WithString("format", mcp.Description("Diagram format: mermaid (default) or ascii")),
		),
		HandleDiagram,
	)

	s.AddTool(
		mcp.NewTool("ravenwf/schema",
			mcp.WithDescription("Export the ravenwf case file JSON Schema"),
		),
		HandleSchema,
	)

	s.AddTool(
		mcp.NewTool("ravenwf/entities",
			mcp.WithDescription("List the workflow entity kinds the generator recognizes"),
			mcp.WithString("class", mcp.Description("Only list kinds of this class, e.g. Samplers")),
		),
		HandleEntities,
	)

	return s
}
