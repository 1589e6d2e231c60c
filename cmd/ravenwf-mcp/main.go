// Package main provides the ravenwf-mcp binary, an MCP server for AI agents.
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	rmcp "github.com/ormasoftchile/ravenwf/pkg/ecosystem/mcp"
	"github.com/ormasoftchile/ravenwf/pkg/logger"
)

var version = "dev"

func main() {
	logger.Initialize()
	defer func() { _ = logger.Sync() }()

	s := rmcp.NewServer(version)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
