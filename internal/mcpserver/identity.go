package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/ersonp/lore-novel/internal/application/handlers"
	"github.com/ersonp/lore-novel/internal/domain/entities"
)

// TimelineTool handles the identity_timeline MCP tool.
type TimelineTool struct {
	handler *handlers.IdentityHandler
	logger  *zap.Logger
}

// NewTimelineTool creates a TimelineTool.
func NewTimelineTool(handler *handlers.IdentityHandler, logger *zap.Logger) *TimelineTool {
	return &TimelineTool{handler: handler, logger: logger}
}

// Definition returns the MCP tool definition for identity_timeline.
func (t *TimelineTool) Definition() mcp.Tool {
	return mcp.NewTool("identity_timeline",
		mcp.WithDescription(
			"List every identity of a character with its status as of a chapter. "+
				"An identity exposed in a later chapter is still active here.",
		),
		mcp.WithString("character_id",
			mcp.Required(),
			mcp.Description("Character ID"),
		),
		mcp.WithNumber("chapter_number",
			mcp.Required(),
			mcp.Description("Chapter to evaluate the identities at"),
		),
	)
}

// Handle processes the identity_timeline tool call.
func (t *TimelineTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	characterID := req.GetString("character_id", "")
	if characterID == "" {
		return mcp.NewToolResultError("'character_id' is required"), nil
	}

	chapter, err := intArg(req, "chapter_number", 0)
	if err != nil {
		return failure(t.logger, "identity_timeline", err)
	}

	result, err := t.handler.Timeline(ctx, characterID, chapter)
	if err != nil {
		return failure(t.logger, "identity_timeline", err)
	}
	return jsonResult(result)
}

// WhoKnowsTool handles the who_knows MCP tool.
type WhoKnowsTool struct {
	handler *handlers.IdentityHandler
	logger  *zap.Logger
}

// NewWhoKnowsTool creates a WhoKnowsTool.
func NewWhoKnowsTool(handler *handlers.IdentityHandler, logger *zap.Logger) *WhoKnowsTool {
	return &WhoKnowsTool{handler: handler, logger: logger}
}

// Definition returns the MCP tool definition for who_knows.
func (t *WhoKnowsTool) Definition() mcp.Tool {
	return mcp.NewTool("who_knows",
		mcp.WithDescription("List the characters who know about an identity and how much they know."),
		mcp.WithString("identity_id",
			mcp.Required(),
			mcp.Description("Identity ID"),
		),
		mcp.WithString("level",
			mcp.Description("Only return knowers at this level"),
			mcp.Enum(string(entities.KnowledgeSuspected), string(entities.KnowledgePartial), string(entities.KnowledgeFull)),
		),
	)
}

// Handle processes the who_knows tool call.
func (t *WhoKnowsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	identityID := req.GetString("identity_id", "")
	if identityID == "" {
		return mcp.NewToolResultError("'identity_id' is required"), nil
	}

	level := entities.KnowledgeLevel(req.GetString("level", ""))
	result, err := t.handler.WhoKnows(ctx, identityID, level)
	if err != nil {
		return failure(t.logger, "who_knows", err)
	}
	return jsonResult(result)
}
