package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/ersonp/lore-novel/internal/application/handlers"
	"github.com/ersonp/lore-novel/internal/domain/ports"
)

// BuildContextTool handles the build_chapter_context MCP tool.
type BuildContextTool struct {
	projects ports.ProjectStore
	handler  *handlers.ContextHandler
	logger   *zap.Logger
}

// NewBuildContextTool creates a BuildContextTool.
func NewBuildContextTool(projects ports.ProjectStore, handler *handlers.ContextHandler, logger *zap.Logger) *BuildContextTool {
	return &BuildContextTool{projects: projects, handler: handler, logger: logger}
}

// Definition returns the MCP tool definition for build_chapter_context.
func (t *BuildContextTool) Definition() mcp.Tool {
	return mcp.NewTool("build_chapter_context",
		mcp.WithDescription(
			"Assemble the writing context for a chapter: outline, how the previous chapter ended, "+
				"the cast with their identities as of this chapter, relevant memories and "+
				"foreshadowing. Returns a prompt, or the raw context with size stats when format is json.",
		),
		mcp.WithString("project_id",
			mcp.Required(),
			mcp.Description("Project ID or title"),
		),
		mcp.WithNumber("chapter_number",
			mcp.Required(),
			mcp.Description("Chapter to build the context for (1-based)"),
		),
		mcp.WithString("style",
			mcp.Description("Writing style instruction"),
		),
		mcp.WithNumber("target_word_count",
			mcp.Description("Target chapter length in words (default: 3000)"),
		),
		mcp.WithString("perspective",
			mcp.Description("Narrative perspective, overriding the project's"),
		),
		mcp.WithString("format",
			mcp.Description("prompt (default) or json"),
			mcp.Enum("prompt", "json"),
		),
	)
}

// Handle processes the build_chapter_context tool call.
func (t *BuildContextTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := handlers.ResolveProject(ctx, t.projects, req.GetString("project_id", ""))
	if err != nil {
		return failure(t.logger, "build_chapter_context", err)
	}

	chapter, err := intArg(req, "chapter_number", 0)
	if err != nil {
		return failure(t.logger, "build_chapter_context", err)
	}
	words, err := intArg(req, "target_word_count", 0)
	if err != nil {
		return failure(t.logger, "build_chapter_context", err)
	}

	result, err := t.handler.Handle(ctx, handlers.ContextRequest{
		ProjectID:       project.ID,
		ChapterNumber:   chapter,
		Style:           req.GetString("style", ""),
		TargetWordCount: words,
		Perspective:     req.GetString("perspective", ""),
	})
	if err != nil {
		return failure(t.logger, "build_chapter_context", err)
	}

	if req.GetString("format", "prompt") == "json" {
		return jsonResult(result.Context)
	}
	return mcp.NewToolResultText(result.Prompt), nil
}
