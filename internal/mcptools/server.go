package mcptools

import (
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

const instructions = `Patent disclosure drafting tools.

Workflow:
1. Call get_disclosure_template if the inventor needs to know what to provide.
2. Call validate_disclosure and relay every error to the inventor until the report passes.
3. Call process_disclosure_to_patent to draft the application document.

Drafts are machine generated and must be reviewed by a qualified patent attorney.`

// NewServer registers every tool on a fresh MCP server.
func NewServer(version string, polisher Polisher, logger *zap.Logger) *server.MCPServer {
	s := server.NewMCPServer(
		"disclosure-drafter",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	validate := NewValidateTool()
	s.AddTool(validate.Definition(), validate.Handle)

	process := NewProcessTool(polisher, logger)
	s.AddTool(process.Definition(), process.Handle)

	var template TemplateTool
	s.AddTool(template.Definition(), template.Handle)

	return s
}
