package mcpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ersonp/lore-novel/internal/application/handlers"
	"github.com/ersonp/lore-novel/internal/domain/apperrors"
	"github.com/ersonp/lore-novel/internal/domain/entities"
	"github.com/ersonp/lore-novel/internal/domain/services"
	"github.com/ersonp/lore-novel/internal/infrastructure/config"
	"github.com/ersonp/lore-novel/internal/infrastructure/relationaldb/sqlite"
)

type fixture struct {
	db      *sqlite.Repository
	deps    Deps
	project *entities.Project
	lou     *entities.Character
	viper   *entities.Identity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := t.Context()
	db, err := sqlite.NewRepository(config.SQLiteConfig{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.EnsureSchema(ctx))

	f := &fixture{db: db}
	f.project = &entities.Project{Title: "The Disguiser", OutlineMode: entities.OutlineOneToOne}
	require.NoError(t, db.SaveProject(ctx, f.project))

	f.lou = &entities.Character{ProjectID: f.project.ID, Name: "Ming Lou"}
	require.NoError(t, db.SaveCharacter(ctx, f.lou))
	cheng := &entities.Character{ProjectID: f.project.ID, Name: "Ming Cheng"}
	require.NoError(t, db.SaveCharacter(ctx, cheng))

	f.viper = &entities.Identity{CharacterID: f.lou.ID, ProjectID: f.project.ID, Name: "Viper", Type: entities.IdentitySecret}
	require.NoError(t, db.InsertIdentity(ctx, f.viper))

	require.NoError(t, db.SaveChapter(ctx, &entities.Chapter{
		ProjectID: f.project.ID, ChapterNumber: 7, Title: "The Codebook", Content: "The drawer was open.",
	}))

	f.deps = Deps{
		Projects:  db,
		Context:   handlers.NewContextHandler(services.NewContextBuilder(db, nil, nil, nil, nil, nil)),
		Exposures: handlers.NewExposureHandler(db, services.NewExposureService(db, nil, nil), nil, nil, nil),
		Identities: handlers.NewIdentityHandler(db,
			services.NewIdentityService(db, nil), services.NewCharacterService(db, nil)),
	}
	return f
}

// makeReq builds a mcp.CallToolRequest with the given arguments.
func makeReq(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// resultText extracts the text content from a tool result.
func resultText(r *mcp.CallToolResult) string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestNew_ListsTools(t *testing.T) {
	f := newFixture(t)
	s := New(f.deps, zap.NewNop())

	resp := s.HandleMessage(t.Context(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	data, err := json.Marshal(resp)
	require.NoError(t, err)

	for _, name := range []string{"build_chapter_context", "apply_identity_exposures", "identity_timeline", "who_knows"} {
		assert.Contains(t, string(data), fmt.Sprintf("%q", name))
	}
}

func TestBuildContextTool(t *testing.T) {
	f := newFixture(t)
	tool := NewBuildContextTool(f.deps.Projects, f.deps.Context, zap.NewNop())

	def := tool.Definition()
	assert.Equal(t, "build_chapter_context", def.Name)
	assert.ElementsMatch(t, []string{"project_id", "chapter_number"}, def.InputSchema.Required)

	res, err := tool.Handle(t.Context(), makeReq(map[string]any{
		"project_id":     "The Disguiser",
		"chapter_number": float64(7),
		"style":          "Terse.",
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	text := resultText(res)
	assert.Contains(t, text, "# Chapter 7: The Codebook\n")
	assert.Contains(t, text, "## Writing style\nTerse.\n")

	res, err = tool.Handle(t.Context(), makeReq(map[string]any{
		"project_id":     f.project.ID,
		"chapter_number": float64(7),
		"format":         "json",
	}))
	require.NoError(t, err)
	var cc entities.ChapterContext
	require.NoError(t, json.Unmarshal([]byte(resultText(res)), &cc))
	assert.Equal(t, 7, cc.ChapterNumber)
	assert.Equal(t, "The Disguiser", cc.Title)
}

func TestBuildContextTool_Rejections(t *testing.T) {
	f := newFixture(t)
	tool := NewBuildContextTool(f.deps.Projects, f.deps.Context, zap.NewNop())

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{
			name: "unknown project",
			args: map[string]any{"project_id": "Red Sorghum", "chapter_number": float64(7)},
			want: "project Red Sorghum: not found",
		},
		{
			name: "missing chapter number",
			args: map[string]any{"project_id": f.project.ID},
			want: "chapter must be positive",
		},
		{
			name: "unknown chapter",
			args: map[string]any{"project_id": f.project.ID, "chapter_number": float64(9)},
			want: "chapter 9",
		},
		{
			name: "fractional chapter number",
			args: map[string]any{"project_id": f.project.ID, "chapter_number": 10.7},
			want: "'chapter_number' must be an integer, got 10.7",
		},
		{
			name: "fractional word count",
			args: map[string]any{"project_id": f.project.ID, "chapter_number": float64(7), "target_word_count": 2500.5},
			want: "'target_word_count' must be an integer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tool.Handle(t.Context(), makeReq(tt.args))
			require.NoError(t, err)
			assert.True(t, res.IsError)
			assert.Contains(t, resultText(res), tt.want)
		})
	}
}

func TestApplyExposuresTool(t *testing.T) {
	f := newFixture(t)
	tool := NewApplyExposuresTool(f.deps.Projects, f.deps.Exposures, zap.NewNop())

	analysis := `{"identity_exposures": [{"character_name": "Ming Lou", "exposed_identity_name": "Viper",
		"exposure_type": "secret_revealed", "witnesses": ["Ming Cheng"]}]}`
	res, err := tool.Handle(t.Context(), makeReq(map[string]any{
		"project_id":     f.project.ID,
		"chapter_number": float64(7),
		"analysis_json":  analysis,
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(res))

	var results []entities.ExposureResult
	require.NoError(t, json.Unmarshal([]byte(resultText(res)), &results))
	require.Len(t, results, 1)
	assert.True(t, results[0].IdentityUpdated)
	assert.Equal(t, 1, results[0].KnowledgeCreatedCount)

	viper, err := f.db.FindIdentityByID(t.Context(), f.viper.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.IdentityBurned, viper.Status)
}

func TestApplyExposuresTool_Rejections(t *testing.T) {
	f := newFixture(t)
	tool := NewApplyExposuresTool(f.deps.Projects, f.deps.Exposures, zap.NewNop())

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{
			name: "missing analysis",
			args: map[string]any{"project_id": f.project.ID, "chapter_number": float64(7)},
			want: "'analysis_json' is required",
		},
		{
			name: "malformed analysis",
			args: map[string]any{"project_id": f.project.ID, "chapter_number": float64(7), "analysis_json": "{"},
			want: "invalid analysis_json",
		},
		{
			name: "chapter zero",
			args: map[string]any{"project_id": f.project.ID, "chapter_number": float64(0), "analysis_json": "{}"},
			want: "chapter must be positive",
		},
		{
			name: "fractional chapter",
			args: map[string]any{"project_id": f.project.ID, "chapter_number": 7.5, "analysis_json": "{}"},
			want: "'chapter_number' must be an integer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tool.Handle(t.Context(), makeReq(tt.args))
			require.NoError(t, err)
			assert.True(t, res.IsError)
			assert.Contains(t, resultText(res), tt.want)
		})
	}
}

func TestTimelineTool(t *testing.T) {
	f := newFixture(t)
	_, err := f.db.MarkIdentityBurned(t.Context(), f.viper.ID, 12)
	require.NoError(t, err)
	tool := NewTimelineTool(f.deps.Identities, zap.NewNop())

	res, err := tool.Handle(t.Context(), makeReq(map[string]any{
		"character_id":   f.lou.ID,
		"chapter_number": float64(11),
	}))
	require.NoError(t, err)

	var result handlers.TimelineResult
	require.NoError(t, json.Unmarshal([]byte(resultText(res)), &result))
	require.Len(t, result.Identities, 1)
	assert.Equal(t, entities.IdentityActive, result.Identities[0].Status)
	assert.False(t, result.Identities[0].Exposed)

	res, err = tool.Handle(t.Context(), makeReq(map[string]any{"chapter_number": float64(11)}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = tool.Handle(t.Context(), makeReq(map[string]any{"character_id": "nope", "chapter_number": float64(1)}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(res), "not found")

	res, err = tool.Handle(t.Context(), makeReq(map[string]any{"character_id": f.lou.ID, "chapter_number": 11.5}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(res), "'chapter_number' must be an integer")
}

func TestWhoKnowsTool(t *testing.T) {
	f := newFixture(t)
	tool := NewWhoKnowsTool(f.deps.Identities, zap.NewNop())

	res, err := tool.Handle(t.Context(), makeReq(map[string]any{"identity_id": f.viper.ID}))
	require.NoError(t, err)

	var result handlers.WhoKnowsResult
	require.NoError(t, json.Unmarshal([]byte(resultText(res)), &result))
	assert.Equal(t, "Viper", result.Identity.Name)
	assert.Equal(t, "Ming Lou", result.Owner)
	assert.Empty(t, result.Knowers)

	res, err = tool.Handle(t.Context(), makeReq(map[string]any{"identity_id": f.viper.ID, "level": "everything"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestFailure(t *testing.T) {
	res, err := failure(zap.NewNop(), "who_knows", apperrors.NotFound("identity %s", "x"))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "identity x: not found", resultText(res))

	boom := errors.New("disk I/O error")
	res, err = failure(zap.NewNop(), "who_knows", boom)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, boom)
	assert.EqualError(t, err, "who_knows: disk I/O error")
}

func TestIntArg(t *testing.T) {
	tests := []struct {
		name    string
		args    map[string]any
		want    int
		wantErr bool
	}{
		{name: "missing", args: map[string]any{}, want: 3},
		{name: "not a number", args: map[string]any{"n": "7"}, want: 3},
		{name: "whole number", args: map[string]any{"n": float64(12)}, want: 12},
		{name: "negative", args: map[string]any{"n": float64(-2)}, want: -2},
		{name: "fractional", args: map[string]any{"n": 10.7}, wantErr: true},
		{name: "too large", args: map[string]any{"n": 1e12}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := intArg(makeReq(tt.args), "n", 3)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
