package handlers

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ersonp/lore-novel/internal/domain/entities"
	"github.com/ersonp/lore-novel/internal/domain/services"
)

// ContextHandler builds chapter generation contexts.
type ContextHandler struct {
	builder *services.ContextBuilder
}

// NewContextHandler creates a new context handler.
func NewContextHandler(builder *services.ContextBuilder) *ContextHandler {
	return &ContextHandler{builder: builder}
}

// ContextRequest selects the chapter and writing parameters.
type ContextRequest struct {
	ProjectID       string
	ChapterNumber   int
	Style           string
	StyleFile       string // read when Style is empty
	TargetWordCount int
	Perspective     string
}

// ContextResult holds a built context and its rendered prompt.
type ContextResult struct {
	Context *entities.ChapterContext `json:"context"`
	Prompt  string                   `json:"prompt"`
}

// Handle builds the context of one chapter.
func (h *ContextHandler) Handle(ctx context.Context, req ContextRequest) (*ContextResult, error) {
	style := req.Style
	if style == "" && req.StyleFile != "" {
		data, err := os.ReadFile(req.StyleFile)
		if err != nil {
			return nil, fmt.Errorf("reading style file: %w", err)
		}
		style = strings.TrimSpace(string(data))
	}

	cc, err := h.builder.Build(ctx, services.BuildRequest{
		ProjectID:       req.ProjectID,
		ChapterNumber:   req.ChapterNumber,
		StyleContent:    style,
		TargetWordCount: req.TargetWordCount,
		Perspective:     req.Perspective,
	})
	if err != nil {
		return nil, err
	}

	return &ContextResult{
		Context: cc,
		Prompt:  services.RenderPrompt(cc),
	}, nil
}
