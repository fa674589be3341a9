package handlers

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/ersonp/lore-novel/internal/domain/apperrors"
	"github.com/ersonp/lore-novel/internal/domain/entities"
	"github.com/ersonp/lore-novel/internal/domain/ports"
	"github.com/ersonp/lore-novel/internal/domain/services"
	"github.com/ersonp/lore-novel/internal/infrastructure/parsers"
)

// ExposureHandler applies chapter analyses to the story state.
type ExposureHandler struct {
	db       ports.StoryDB
	service  *services.ExposureService
	memories *services.MemoryService
	analyzer ports.ChapterAnalyzer
	logger   *zap.Logger
}

// NewExposureHandler creates a new exposure handler. memories and analyzer
// may be nil; without an analyzer HandleAnalyze is unavailable.
func NewExposureHandler(
	db ports.StoryDB,
	service *services.ExposureService,
	memories *services.MemoryService,
	analyzer ports.ChapterAnalyzer,
	logger *zap.Logger,
) *ExposureHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExposureHandler{
		db:       db,
		service:  service,
		memories: memories,
		analyzer: analyzer,
		logger:   logger.Named("exposures"),
	}
}

// ExposureReport is the outcome of applying one chapter analysis.
type ExposureReport struct {
	ChapterNumber int                       `json:"chapter_number"`
	Analysis      *entities.ChapterAnalysis `json:"analysis"`
	Results       []entities.ExposureResult `json:"results"`
}

// Applied counts the events that changed an identity.
func (r *ExposureReport) Applied() int {
	n := 0
	for _, res := range r.Results {
		if res.IdentityUpdated {
			n++
		}
	}
	return n
}

// HandleApply applies an analysis to a chapter of a project.
func (h *ExposureHandler) HandleApply(
	ctx context.Context,
	projectID string,
	chapterNumber int,
	analysis *entities.ChapterAnalysis,
) (*ExposureReport, error) {
	if chapterNumber < 1 {
		return nil, apperrors.Validation("chapter must be positive, got %d", chapterNumber)
	}

	chapter, err := h.db.FindChapterByNumber(ctx, projectID, chapterNumber)
	if err != nil {
		return nil, fmt.Errorf("finding chapter: %w", err)
	}
	chapterID := ""
	if chapter != nil {
		chapterID = chapter.ID
	}

	return h.apply(ctx, projectID, chapterNumber, chapterID, analysis)
}

// HandleApplyFile reads a JSON or YAML analysis file and applies it.
func (h *ExposureHandler) HandleApplyFile(
	ctx context.Context,
	projectID string,
	chapterNumber int,
	filePath string,
) (*ExposureReport, error) {
	parser := parsers.ForFile(filePath)
	if parser == nil {
		return nil, fmt.Errorf("unsupported format for file: %s", filePath)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer file.Close()

	analysis, err := parser.ParseAnalysis(file)
	if err != nil {
		return nil, fmt.Errorf("parsing analysis: %w", err)
	}

	return h.HandleApply(ctx, projectID, chapterNumber, analysis)
}

// HandleAnalyze asks the analyzer which identities a written chapter
// exposes and applies the answer.
func (h *ExposureHandler) HandleAnalyze(ctx context.Context, projectID string, chapterNumber int) (*ExposureReport, error) {
	if h.analyzer == nil {
		return nil, fmt.Errorf("chapter analyzer is not configured")
	}

	chapter, err := h.db.FindChapterByNumber(ctx, projectID, chapterNumber)
	if err != nil {
		return nil, fmt.Errorf("finding chapter: %w", err)
	}
	if chapter == nil {
		return nil, apperrors.NotFound("chapter %d", chapterNumber)
	}
	if !chapter.IsCompleted() {
		return nil, apperrors.Validation("chapter %d has no content", chapterNumber)
	}

	cast, err := h.cast(ctx, projectID)
	if err != nil {
		return nil, err
	}

	analysis, err := h.analyzer.AnalyzeIdentityExposures(ctx, chapter, cast)
	if err != nil {
		return nil, fmt.Errorf("analyzing chapter %d: %w", chapterNumber, err)
	}
	h.logger.Info("chapter analyzed",
		zap.Int("chapter", chapterNumber),
		zap.Int("exposures", len(analysis.IdentityExposures)),
	)

	return h.apply(ctx, projectID, chapterNumber, chapter.ID, analysis)
}

// cast lists the project's characters with their identities. Organizations
// have no identities to expose and are left out.
func (h *ExposureHandler) cast(ctx context.Context, projectID string) ([]ports.AnalysisCharacter, error) {
	characters, err := h.db.ListCharacters(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing characters: %w", err)
	}

	cast := make([]ports.AnalysisCharacter, 0, len(characters))
	for _, c := range characters {
		if c.IsOrganization {
			continue
		}
		identities, err := h.db.ListIdentitiesByCharacter(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("listing identities of %s: %w", c.Name, err)
		}
		cast = append(cast, ports.AnalysisCharacter{Character: c, Identities: identities})
	}
	return cast, nil
}

func (h *ExposureHandler) apply(
	ctx context.Context,
	projectID string,
	chapterNumber int,
	chapterID string,
	analysis *entities.ChapterAnalysis,
) (*ExposureReport, error) {
	results, err := h.service.ProcessChapterExposures(ctx, analysis, chapterNumber, chapterID, projectID)
	if err != nil {
		return nil, err
	}

	// Memories are indexed after commit so a rolled back batch never
	// reaches the vector store.
	if h.memories != nil {
		var recorded []entities.StoryMemory
		for _, res := range results {
			if res.Memory != nil {
				recorded = append(recorded, *res.Memory)
			}
		}
		h.memories.Index(ctx, recorded...)
	}

	return &ExposureReport{
		ChapterNumber: chapterNumber,
		Analysis:      analysis,
		Results:       results,
	}, nil
}
