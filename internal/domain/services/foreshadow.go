package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ersonp/lore-novel/internal/domain/entities"
	"github.com/ersonp/lore-novel/internal/domain/ports"
)

const foreshadowContentLimit = 80

// ForeshadowService renders foreshadowing reminders for chapter generation.
type ForeshadowService struct {
	db     ports.ForeshadowStore
	logger *zap.Logger
}

var _ ports.ForeshadowProvider = (*ForeshadowService)(nil)

// NewForeshadowService creates a new ForeshadowService.
func NewForeshadowService(db ports.ForeshadowStore, logger *zap.Logger) *ForeshadowService {
	return &ForeshadowService{
		db:     db,
		logger: namedLogger(logger, "foreshadow"),
	}
}

// BuildChapterContext returns the reminders for a chapter: overdue
// foreshadows, foreshadows to plant in this chapter and foreshadows due
// within the lookahead window. It returns "" when nothing qualifies.
func (s *ForeshadowService) BuildChapterContext(
	ctx context.Context,
	projectID string,
	chapter int,
	opts ports.ForeshadowContextOptions,
) (string, error) {
	all, err := s.db.ListForeshadows(ctx, projectID)
	if err != nil {
		return "", fmt.Errorf("listing foreshadows: %w", err)
	}

	var overdue, pending, upcoming []*entities.Foreshadow
	for _, f := range all {
		switch {
		case f.Status == entities.ForeshadowPlanted && f.IsOverdue(chapter):
			overdue = append(overdue, f)
		case f.Status == entities.ForeshadowPending && f.PlantChapter == chapter:
			pending = append(pending, f)
		case f.Status == entities.ForeshadowPlanted && f.TargetResolveChapter > chapter &&
			f.TargetResolveChapter <= chapter+opts.Lookahead:
			upcoming = append(upcoming, f)
		}
	}

	var sections []string
	if opts.IncludeOverdue && len(overdue) > 0 {
		sections = append(sections, renderForeshadows("[Resolve now]", overdue))
	}
	if opts.IncludePending && len(pending) > 0 {
		sections = append(sections, renderForeshadows("[Plant in this chapter]", pending))
	}
	if len(upcoming) > 0 {
		sections = append(sections, renderForeshadows("[Due soon]", upcoming))
	}

	s.logger.Debug("foreshadow reminders",
		zap.Int("chapter", chapter),
		zap.Int("overdue", len(overdue)),
		zap.Int("pending", len(pending)),
		zap.Int("upcoming", len(upcoming)),
	)
	return strings.Join(sections, "\n"), nil
}

func renderForeshadows(header string, items []*entities.Foreshadow) string {
	lines := []string{header}
	for _, f := range items {
		line := fmt.Sprintf("- %s (planted in chapter %d", f.Title, f.PlantChapter)
		if f.TargetResolveChapter > 0 {
			line += fmt.Sprintf(", resolve by chapter %d", f.TargetResolveChapter)
		}
		line += "): " + truncate(f.Content, foreshadowContentLimit)
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
