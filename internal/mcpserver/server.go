// Package mcpserver exposes chapter context building and identity tracking
// as MCP tools over stdio.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ersonp/lore-novel/internal/application/handlers"
	"github.com/ersonp/lore-novel/internal/domain/ports"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Deps holds the handlers the tools delegate to.
type Deps struct {
	Projects   ports.ProjectStore
	Context    *handlers.ContextHandler
	Exposures  *handlers.ExposureHandler
	Identities *handlers.IdentityHandler
}

// New creates the MCP server with every tool registered.
func New(deps Deps, logger *zap.Logger) *server.MCPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("mcp")

	s := server.NewMCPServer(
		"lore-novel",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	contextTool := NewBuildContextTool(deps.Projects, deps.Context, logger)
	s.AddTool(contextTool.Definition(), contextTool.Handle)

	exposureTool := NewApplyExposuresTool(deps.Projects, deps.Exposures, logger)
	s.AddTool(exposureTool.Definition(), exposureTool.Handle)

	timelineTool := NewTimelineTool(deps.Identities, logger)
	s.AddTool(timelineTool.Definition(), timelineTool.Handle)

	whoKnowsTool := NewWhoKnowsTool(deps.Identities, logger)
	s.AddTool(whoKnowsTool.Definition(), whoKnowsTool.Handle)

	return s
}

// ServeStdio runs the server on stdin and stdout until stdin closes.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

const instructions = `lore-novel tracks the identities of novel characters over the story
timeline and assembles the context needed to write the next chapter.

Call build_chapter_context before writing a chapter. After a chapter is
written, report any identities it exposed with apply_identity_exposures so
later chapters see who knows what. identity_timeline and who_knows answer
questions about a single character or identity.`
