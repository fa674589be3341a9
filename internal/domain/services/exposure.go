package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ersonp/lore-novel/internal/domain/apperrors"
	"github.com/ersonp/lore-novel/internal/domain/entities"
	"github.com/ersonp/lore-novel/internal/domain/ports"
)

const exposureMemoryImportance = 0.9

// ExposureService applies identity exposure events to the story state.
type ExposureService struct {
	db      ports.StoryDB
	metrics ports.Metrics
	logger  *zap.Logger
}

// NewExposureService creates a new ExposureService. metrics may be nil.
func NewExposureService(db ports.StoryDB, metrics ports.Metrics, logger *zap.Logger) *ExposureService {
	return &ExposureService{
		db:      db,
		metrics: metrics,
		logger:  namedLogger(logger, "exposure"),
	}
}

// ProcessIdentityExposure applies one exposure event in its own
// transaction. chapterID may be empty, in which case the chapter is looked
// up by number for the exposure memory.
func (s *ExposureService) ProcessIdentityExposure(
	ctx context.Context,
	event entities.ExposureEvent,
	chapterNumber int,
	chapterID string,
	projectID string,
) (*entities.ExposureResult, error) {
	var result *entities.ExposureResult
	err := s.db.WithTx(ctx, func(tx ports.StoryDB) error {
		var err error
		result, err = s.apply(ctx, tx, event, chapterNumber, chapterID, projectID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.observe(result)
	return result, nil
}

// ProcessChapterExposures applies every exposure event of a chapter
// analysis in one transaction. Rejected events are recorded in their
// result and do not stop the batch; storage failures abort and roll back
// the whole batch.
func (s *ExposureService) ProcessChapterExposures(
	ctx context.Context,
	analysis *entities.ChapterAnalysis,
	chapterNumber int,
	chapterID string,
	projectID string,
) ([]entities.ExposureResult, error) {
	if analysis == nil || len(analysis.IdentityExposures) == 0 {
		s.logger.Info("no identity exposures in chapter", zap.Int("chapter", chapterNumber))
		return []entities.ExposureResult{}, nil
	}

	s.logger.Info("processing identity exposures",
		zap.Int("chapter", chapterNumber),
		zap.Int("events", len(analysis.IdentityExposures)),
	)

	var results []entities.ExposureResult
	err := s.db.WithTx(ctx, func(tx ports.StoryDB) error {
		results = make([]entities.ExposureResult, 0, len(analysis.IdentityExposures))
		for _, event := range analysis.IdentityExposures {
			result, err := s.apply(ctx, tx, event, chapterNumber, chapterID, projectID)
			if err != nil {
				if !apperrors.IsRejection(err) {
					return fmt.Errorf("processing exposure of %q: %w", event.ExposedIdentityName, err)
				}
				s.logger.Warn("exposure event rejected",
					zap.String("character", event.CharacterName),
					zap.String("identity", event.ExposedIdentityName),
					zap.Error(err),
				)
				result = &entities.ExposureResult{
					CharacterName:         event.CharacterName,
					IdentityName:          event.ExposedIdentityName,
					OrganizationsAffected: []entities.MembershipTransition{},
					Error:                 err.Error(),
				}
			}
			results = append(results, *result)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range results {
		s.observe(&results[i])
	}
	return results, nil
}

func (s *ExposureService) observe(result *entities.ExposureResult) {
	if s.metrics != nil {
		s.metrics.ObserveExposure(*result)
	}
}

func validateExposureEvent(event *entities.ExposureEvent, chapterNumber int) error {
	event.CharacterName = strings.TrimSpace(event.CharacterName)
	event.ExposedIdentityName = strings.TrimSpace(event.ExposedIdentityName)
	if event.CharacterName == "" {
		return apperrors.Validation("exposure event has no character name")
	}
	if event.ExposedIdentityName == "" {
		return apperrors.Validation("exposure event for %q has no identity name", event.CharacterName)
	}
	if chapterNumber < 1 {
		return apperrors.Validation("chapter must be positive, got %d", chapterNumber)
	}
	if event.ExposureType == "" {
		event.ExposureType = entities.ExposureSecretRevealed
	}
	return nil
}

// apply runs the exposure steps against tx.
func (s *ExposureService) apply(
	ctx context.Context,
	tx ports.StoryDB,
	event entities.ExposureEvent,
	chapterNumber int,
	chapterID string,
	projectID string,
) (*entities.ExposureResult, error) {
	if err := validateExposureEvent(&event, chapterNumber); err != nil {
		return nil, err
	}

	result := &entities.ExposureResult{
		CharacterName:         event.CharacterName,
		IdentityName:          event.ExposedIdentityName,
		OrganizationsAffected: []entities.MembershipTransition{},
	}
	log := s.logger.With(
		zap.String("character", event.CharacterName),
		zap.String("identity", event.ExposedIdentityName),
		zap.Int("chapter", chapterNumber),
	)

	character, err := tx.FindCharacterByName(ctx, projectID, event.CharacterName)
	if err != nil {
		return nil, fmt.Errorf("finding character: %w", err)
	}
	if character == nil {
		log.Warn("exposed character not found")
		return result, nil
	}

	identity, err := tx.FindIdentityByName(ctx, character.ID, event.ExposedIdentityName)
	if err != nil {
		return nil, fmt.Errorf("finding identity: %w", err)
	}
	if identity == nil {
		log.Warn("exposed identity not found")
		return result, nil
	}
	result.IdentityID = identity.ID

	if err := s.burnIdentity(ctx, tx, identity, event, chapterNumber, result, log); err != nil {
		return nil, err
	}

	witnesses := uniqueNames(event.Witnesses)
	if err := s.recordWitnesses(ctx, tx, identity, event, witnesses, chapterNumber, projectID, result, log); err != nil {
		return nil, err
	}

	if event.ExposureType.AffectsOrganizations() {
		if err := s.transitionMemberships(ctx, tx, identity, event, chapterNumber, projectID, result, log); err != nil {
			return nil, err
		}
	}

	s.recordMemory(ctx, tx, event, witnesses, chapterNumber, chapterID, projectID, result, log)

	return result, nil
}

func (s *ExposureService) burnIdentity(
	ctx context.Context,
	tx ports.StoryDB,
	identity *entities.Identity,
	event entities.ExposureEvent,
	chapterNumber int,
	result *entities.ExposureResult,
	log *zap.Logger,
) error {
	if identity.Status == entities.IdentityBurned {
		return nil
	}

	changed, err := tx.MarkIdentityBurned(ctx, identity.ID, chapterNumber)
	if err != nil {
		return fmt.Errorf("burning identity: %w", err)
	}
	if !changed {
		return nil
	}
	result.IdentityUpdated = true

	if err := tx.LogAction(ctx, &entities.AuditEntry{
		ProjectID: identity.ProjectID,
		Action:    entities.AuditIdentityBurned,
		SubjectID: identity.ID,
		Details: map[string]any{
			"chapter":        chapterNumber,
			"character_name": event.CharacterName,
			"identity_name":  identity.Name,
			"exposure_type":  string(event.ExposureType),
		},
	}); err != nil {
		return fmt.Errorf("auditing identity burn: %w", err)
	}

	log.Info("identity burned", zap.String("identity_id", identity.ID))
	return nil
}

func (s *ExposureService) recordWitnesses(
	ctx context.Context,
	tx ports.StoryDB,
	identity *entities.Identity,
	event entities.ExposureEvent,
	witnesses []string,
	chapterNumber int,
	projectID string,
	result *entities.ExposureResult,
	log *zap.Logger,
) error {
	level := entities.KnowledgePartial
	if event.ExposureType == entities.ExposureSecretRevealed {
		level = entities.KnowledgeFull
	}

	for _, name := range witnesses {
		witness, err := tx.FindCharacterByName(ctx, projectID, name)
		if err != nil {
			return fmt.Errorf("finding witness %q: %w", name, err)
		}
		if witness == nil {
			log.Warn("witness not found", zap.String("witness", name))
			continue
		}

		edge, err := tx.FindKnowledge(ctx, identity.ID, witness.ID)
		if err != nil {
			return fmt.Errorf("finding knowledge of %q: %w", name, err)
		}

		if edge == nil {
			edge = &entities.IdentityKnowledge{
				IdentityID:        identity.ID,
				KnowerCharacterID: witness.ID,
				KnowledgeLevel:    level,
				SinceWhen:         fmt.Sprintf("Chapter %d", chapterNumber),
				DiscoveredHow:     event.ExposureContext,
				IsSecret:          false,
			}
			if err := tx.SaveKnowledge(ctx, edge); err != nil {
				return fmt.Errorf("creating knowledge of %q: %w", name, err)
			}
			result.KnowledgeCreatedCount++
			log.Info("witness now knows identity",
				zap.String("witness", name),
				zap.String("level", string(level)),
			)
			continue
		}

		previous := edge.KnowledgeLevel
		edge.KnowledgeLevel = previous.Merge(entities.KnowledgeFull)
		edge.IsSecret = false
		edge.DiscoveredHow = event.ExposureContext
		if err := tx.SaveKnowledge(ctx, edge); err != nil {
			return fmt.Errorf("raising knowledge of %q: %w", name, err)
		}
		result.KnowledgeRaisedCount++

		if previous != edge.KnowledgeLevel {
			if err := tx.LogAction(ctx, &entities.AuditEntry{
				ProjectID: projectID,
				Action:    entities.AuditKnowledgeRaised,
				SubjectID: edge.ID,
				Details: map[string]any{
					"chapter":   chapterNumber,
					"witness":   name,
					"old_level": string(previous),
					"new_level": string(edge.KnowledgeLevel),
				},
			}); err != nil {
				return fmt.Errorf("auditing knowledge raise: %w", err)
			}
		}
		log.Info("witness knowledge raised",
			zap.String("witness", name),
			zap.String("from", string(previous)),
			zap.String("to", string(edge.KnowledgeLevel)),
		)
	}
	return nil
}

// membershipTarget returns the status a membership moves to after an
// exposure, and false when the exposure leaves it unchanged.
func membershipTarget(exposure entities.ExposureType, current entities.MembershipStatus) (entities.MembershipStatus, bool) {
	switch exposure {
	case entities.ExposureSecretRevealed:
		if current == entities.MembershipActive {
			return entities.MembershipSuspected, true
		}
	case entities.ExposureDisguiseBroken:
		if current != entities.MembershipExpelled {
			return entities.MembershipExpelled, true
		}
	}
	return current, false
}

func (s *ExposureService) transitionMemberships(
	ctx context.Context,
	tx ports.StoryDB,
	identity *entities.Identity,
	event entities.ExposureEvent,
	chapterNumber int,
	projectID string,
	result *entities.ExposureResult,
	log *zap.Logger,
) error {
	memberships, err := tx.ListMembershipsByIdentity(ctx, identity.ID)
	if err != nil {
		return fmt.Errorf("listing memberships: %w", err)
	}

	for _, m := range memberships {
		next, ok := membershipTarget(event.ExposureType, m.Status)
		if !ok {
			continue
		}

		reason := fmt.Sprintf("identity exposed in chapter %d", chapterNumber)
		if event.ExposureContext != "" {
			reason += ": " + event.ExposureContext
		}
		note := "[system] " + reason
		if event.ExposureType == entities.ExposureDisguiseBroken {
			note = fmt.Sprintf("[system] disguise broken in chapter %d", chapterNumber)
			if event.ExposureContext != "" {
				note += ": " + event.ExposureContext
			}
		}

		previous := m.Status
		m.Status = next
		if m.Notes != "" {
			m.Notes += "\n"
		}
		m.Notes += note
		if err := tx.SaveMembership(ctx, m); err != nil {
			return fmt.Errorf("updating membership %s: %w", m.ID, err)
		}

		transition := entities.MembershipTransition{
			OrganizationID: m.OrganizationID,
			MembershipID:   m.ID,
			OldStatus:      previous,
			NewStatus:      next,
			Reason:         reason,
		}
		result.OrganizationsAffected = append(result.OrganizationsAffected, transition)

		if err := tx.LogAction(ctx, &entities.AuditEntry{
			ProjectID: projectID,
			Action:    entities.AuditMembershipTransition,
			SubjectID: m.ID,
			Details: map[string]any{
				"organization_id": m.OrganizationID,
				"identity_id":     identity.ID,
				"old_status":      string(previous),
				"new_status":      string(next),
				"reason":          reason,
				"impact":          event.ImpactOnOrganization,
			},
		}); err != nil {
			return fmt.Errorf("auditing membership transition: %w", err)
		}

		log.Info("membership status changed",
			zap.String("membership_id", m.ID),
			zap.String("from", string(previous)),
			zap.String("to", string(next)),
		)
	}
	return nil
}

// recordMemory writes the exposure memory. Failures are logged and never
// returned.
func (s *ExposureService) recordMemory(
	ctx context.Context,
	tx ports.StoryDB,
	event entities.ExposureEvent,
	witnesses []string,
	chapterNumber int,
	chapterID string,
	projectID string,
	result *entities.ExposureResult,
	log *zap.Logger,
) {
	var chapter *entities.Chapter
	var err error
	if chapterID != "" {
		chapter, err = tx.FindChapterByID(ctx, chapterID)
	} else {
		chapter, err = tx.FindChapterByNumber(ctx, projectID, chapterNumber)
	}
	if err != nil {
		log.Warn("exposure memory skipped", zap.Error(err))
		return
	}
	if chapter == nil {
		log.Warn("chapter not found, exposure memory skipped", zap.String("chapter_id", chapterID))
		return
	}

	memory := &entities.StoryMemory{
		ProjectID:       projectID,
		ChapterID:       chapter.ID,
		MemoryType:      entities.MemoryIdentityExposure,
		Title:           fmt.Sprintf("%s exposed", event.ExposedIdentityName),
		Content:         exposureMemoryContent(event, witnesses, chapterNumber),
		StoryTimeline:   chapterNumber,
		ImportanceScore: exposureMemoryImportance,
		Metadata: map[string]any{
			"character_name": event.CharacterName,
			"identity_name":  event.ExposedIdentityName,
			"exposure_type":  string(event.ExposureType),
			"witnesses":      witnesses,
		},
	}
	if err := tx.SaveMemory(ctx, memory); err != nil {
		log.Warn("failed to record exposure memory", zap.Error(err))
		return
	}
	result.MemoryRecorded = true
	result.Memory = memory
}

func exposureMemoryContent(event entities.ExposureEvent, witnesses []string, chapterNumber int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Identity exposure: %s's identity %q was exposed in chapter %d.",
		event.CharacterName, event.ExposedIdentityName, chapterNumber)
	if event.ExposureContext != "" {
		fmt.Fprintf(&b, " Scene: %s.", event.ExposureContext)
	}
	if len(witnesses) > 0 {
		fmt.Fprintf(&b, " Witnesses: %s.", strings.Join(witnesses, ", "))
	}
	if event.ImpactOnOrganization != "" {
		fmt.Fprintf(&b, " Impact: %s.", event.ImpactOnOrganization)
	}
	return b.String()
}
