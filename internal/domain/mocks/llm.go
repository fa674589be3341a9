package mocks

import (
	"context"

	"github.com/ersonp/lore-novel/internal/domain/entities"
	"github.com/ersonp/lore-novel/internal/domain/ports"
)

// ChapterAnalyzer is a mock implementation of ports.ChapterAnalyzer.
type ChapterAnalyzer struct {
	Analysis *entities.ChapterAnalysis
	Err      error

	// Call tracking
	CallCount   int
	LastChapter *entities.Chapter
	LastCast    []ports.AnalysisCharacter
}

// AnalyzeIdentityExposures returns the configured analysis or error.
func (m *ChapterAnalyzer) AnalyzeIdentityExposures(
	ctx context.Context,
	chapter *entities.Chapter,
	cast []ports.AnalysisCharacter,
) (*entities.ChapterAnalysis, error) {
	m.CallCount++
	m.LastChapter = chapter
	m.LastCast = cast
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Analysis == nil {
		return &entities.ChapterAnalysis{}, nil
	}
	return m.Analysis, nil
}
