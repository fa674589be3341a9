package ports

import (
	"context"

	"github.com/ersonp/lore-novel/internal/domain/entities"
)

// AnalysisCharacter is a character offered to the analyzer together with
// the identities it may be exposed under.
type AnalysisCharacter struct {
	Character  *entities.Character
	Identities []*entities.Identity
}

// ChapterAnalyzer detects story events in generated chapter text.
type ChapterAnalyzer interface {
	// AnalyzeIdentityExposures returns the identity exposures that happen
	// in the chapter.
	AnalyzeIdentityExposures(ctx context.Context, chapter *entities.Chapter, cast []AnalysisCharacter) (*entities.ChapterAnalysis, error)
}
