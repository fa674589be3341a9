package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/ersonp/lore-novel/internal/application/handlers"
	"github.com/ersonp/lore-novel/internal/domain/entities"
	"github.com/ersonp/lore-novel/internal/domain/ports"
)

// ApplyExposuresTool handles the apply_identity_exposures MCP tool.
type ApplyExposuresTool struct {
	projects ports.ProjectStore
	handler  *handlers.ExposureHandler
	logger   *zap.Logger
}

// NewApplyExposuresTool creates an ApplyExposuresTool.
func NewApplyExposuresTool(projects ports.ProjectStore, handler *handlers.ExposureHandler, logger *zap.Logger) *ApplyExposuresTool {
	return &ApplyExposuresTool{projects: projects, handler: handler, logger: logger}
}

// Definition returns the MCP tool definition for apply_identity_exposures.
func (t *ApplyExposuresTool) Definition() mcp.Tool {
	return mcp.NewTool("apply_identity_exposures",
		mcp.WithDescription(
			"Record the identity exposures that happened in a chapter. Exposed identities are burned "+
				"from that chapter on, witnesses learn the identity, and organization memberships held "+
				"through it change status. "+
				`analysis_json: {"identity_exposures": [{"character_name", "exposed_identity_name", `+
				`"exposure_type": "secret_revealed" | "disguise_broken", "exposure_context", `+
				`"witnesses": [names], "impact_on_organization"}]}`,
		),
		mcp.WithString("project_id",
			mcp.Required(),
			mcp.Description("Project ID or title"),
		),
		mcp.WithNumber("chapter_number",
			mcp.Required(),
			mcp.Description("Chapter in which the exposures happened"),
		),
		mcp.WithString("analysis_json",
			mcp.Required(),
			mcp.Description("Chapter analysis as JSON"),
		),
	)
}

// Handle processes the apply_identity_exposures tool call.
func (t *ApplyExposuresTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw := req.GetString("analysis_json", "")
	if raw == "" {
		return mcp.NewToolResultError("'analysis_json' is required"), nil
	}

	var analysis entities.ChapterAnalysis
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid analysis_json: %v", err)), nil
	}

	project, err := handlers.ResolveProject(ctx, t.projects, req.GetString("project_id", ""))
	if err != nil {
		return failure(t.logger, "apply_identity_exposures", err)
	}

	chapter, err := intArg(req, "chapter_number", 0)
	if err != nil {
		return failure(t.logger, "apply_identity_exposures", err)
	}

	report, err := t.handler.HandleApply(ctx, project.ID, chapter, &analysis)
	if err != nil {
		return failure(t.logger, "apply_identity_exposures", err)
	}

	return jsonResult(report.Results)
}
