package logger

const (
	// ComponentDriver is the workflow driver and its variants.
	ComponentDriver = "driver"

	// ComponentTemplate is template loading and finalization.
	ComponentTemplate = "template"

	// ComponentRegistry is the entity registry.
	ComponentRegistry = "registry"

	// ComponentCLI is the command-line front end.
	ComponentCLI = "cli"

	// ComponentMCP is the MCP server.
	ComponentMCP = "mcp"
)
