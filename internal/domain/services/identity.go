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

const maxStageProgress = 100

// IdentityInput holds the fields of a new identity.
type IdentityInput struct {
	Name        string
	Type        entities.IdentityType
	IsPrimary   bool
	Appearance  string
	Personality string
	Background  string
	VoiceStyle  string
	Status      entities.IdentityStatus
}

// IdentityPatch is a partial identity update. Nil fields are left unchanged.
type IdentityPatch struct {
	Name             *string
	Type             *entities.IdentityType
	IsPrimary        *bool
	Appearance       *string
	Personality      *string
	Background       *string
	VoiceStyle       *string
	Status           *entities.IdentityStatus
	ExposedAtChapter *int
}

// CareerPatch is a partial update of an identity career link.
type CareerPatch struct {
	CurrentStage  *int
	StageProgress *int
	StartedAt     *string
	ReachedAt     *string
	Notes         *string
}

// KnowledgeInput holds the fields of a new knowledge edge.
type KnowledgeInput struct {
	Level         entities.KnowledgeLevel
	DiscoveredHow string
	SinceWhen     string
	// IsSecret defaults to true when nil.
	IsSecret *bool
}

// KnowledgePatch is a partial knowledge edge update.
type KnowledgePatch struct {
	Level         *entities.KnowledgeLevel
	DiscoveredHow *string
	SinceWhen     *string
	IsSecret      *bool
}

// Knower pairs a knowledge edge with the character holding it.
type Knower struct {
	Knowledge *entities.IdentityKnowledge `json:"knowledge"`
	Character *entities.Character         `json:"character"`
}

// IdentityAtChapter is an identity together with its state at a chapter.
type IdentityAtChapter struct {
	Identity *entities.Identity      `json:"identity"`
	Chapter  int                     `json:"chapter"`
	Status   entities.IdentityStatus `json:"status_at_chapter"`
	Exposed  bool                    `json:"exposed"`
}

// IdentityService manages identities, their careers and who knows them.
type IdentityService struct {
	db     ports.StoryDB
	logger *zap.Logger
}

// NewIdentityService creates a new IdentityService.
func NewIdentityService(db ports.StoryDB, logger *zap.Logger) *IdentityService {
	return &IdentityService{
		db:     db,
		logger: namedLogger(logger, "identity"),
	}
}

// Create adds an identity to a character. A primary identity replaces the
// character's previous primary in the same transaction.
func (s *IdentityService) Create(ctx context.Context, characterID string, in IdentityInput) (*entities.Identity, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.Validation("identity name is required")
	}
	if in.Type == "" {
		in.Type = entities.IdentityPublic
	}
	if !in.Type.IsValid() {
		return nil, apperrors.Validation("invalid identity type %q", in.Type)
	}
	if in.Status == "" {
		in.Status = entities.IdentityActive
	}
	if !in.Status.IsValid() {
		return nil, apperrors.Validation("invalid identity status %q", in.Status)
	}

	var created *entities.Identity
	err := s.db.WithTx(ctx, func(tx ports.StoryDB) error {
		character, err := tx.FindCharacterByID(ctx, characterID)
		if err != nil {
			return fmt.Errorf("finding character: %w", err)
		}
		if character == nil {
			return apperrors.NotFound("character %s", characterID)
		}

		if in.IsPrimary {
			if err := tx.ClearPrimaryIdentities(ctx, characterID, ""); err != nil {
				return fmt.Errorf("clearing primary identities: %w", err)
			}
		}

		identity := &entities.Identity{
			CharacterID: character.ID,
			ProjectID:   character.ProjectID,
			Name:        name,
			Type:        in.Type,
			IsPrimary:   in.IsPrimary,
			Appearance:  in.Appearance,
			Personality: in.Personality,
			Background:  in.Background,
			VoiceStyle:  in.VoiceStyle,
			Status:      in.Status,
		}
		if err := tx.InsertIdentity(ctx, identity); err != nil {
			return fmt.Errorf("inserting identity: %w", err)
		}
		created = identity
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("identity created",
		zap.String("identity_id", created.ID),
		zap.String("character_id", characterID),
		zap.String("type", string(created.Type)),
		zap.Bool("primary", created.IsPrimary),
	)
	return created, nil
}

// Update applies a partial update to an identity. The exposure chapter can
// only be set while it is still unset.
func (s *IdentityService) Update(ctx context.Context, id string, patch IdentityPatch) (*entities.Identity, error) {
	var updated *entities.Identity
	err := s.db.WithTx(ctx, func(tx ports.StoryDB) error {
		identity, err := tx.FindIdentityByID(ctx, id)
		if err != nil {
			return fmt.Errorf("finding identity: %w", err)
		}
		if identity == nil {
			return apperrors.NotFound("identity %s", id)
		}

		if err := applyIdentityPatch(identity, patch); err != nil {
			return err
		}

		if patch.IsPrimary != nil && *patch.IsPrimary {
			if err := tx.ClearPrimaryIdentities(ctx, identity.CharacterID, identity.ID); err != nil {
				return fmt.Errorf("clearing primary identities: %w", err)
			}
		}

		if err := tx.UpdateIdentity(ctx, identity); err != nil {
			return fmt.Errorf("updating identity: %w", err)
		}
		updated = identity
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func applyIdentityPatch(identity *entities.Identity, patch IdentityPatch) error {
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return apperrors.Validation("identity name is required")
		}
		identity.Name = name
	}
	if patch.Type != nil {
		if !patch.Type.IsValid() {
			return apperrors.Validation("invalid identity type %q", *patch.Type)
		}
		identity.Type = *patch.Type
	}
	if patch.Status != nil {
		if !patch.Status.IsValid() {
			return apperrors.Validation("invalid identity status %q", *patch.Status)
		}
		identity.Status = *patch.Status
	}
	if patch.ExposedAtChapter != nil {
		if *patch.ExposedAtChapter < 1 {
			return apperrors.Validation("exposure chapter must be positive, got %d", *patch.ExposedAtChapter)
		}
		if identity.ExposedAtChapter != nil && *identity.ExposedAtChapter != *patch.ExposedAtChapter {
			return apperrors.Validation("identity %s already exposed at chapter %d", identity.ID, *identity.ExposedAtChapter)
		}
		chapter := *patch.ExposedAtChapter
		identity.ExposedAtChapter = &chapter
	}
	if patch.IsPrimary != nil {
		identity.IsPrimary = *patch.IsPrimary
	}
	if patch.Appearance != nil {
		identity.Appearance = *patch.Appearance
	}
	if patch.Personality != nil {
		identity.Personality = *patch.Personality
	}
	if patch.Background != nil {
		identity.Background = *patch.Background
	}
	if patch.VoiceStyle != nil {
		identity.VoiceStyle = *patch.VoiceStyle
	}
	return nil
}

// Delete removes an identity with its careers and knowledge edges. It
// returns false when the identity does not exist.
func (s *IdentityService) Delete(ctx context.Context, id string) (bool, error) {
	deleted := false
	err := s.db.WithTx(ctx, func(tx ports.StoryDB) error {
		identity, err := tx.FindIdentityByID(ctx, id)
		if err != nil {
			return fmt.Errorf("finding identity: %w", err)
		}
		if identity == nil {
			return nil
		}
		deleted, err = deleteIdentityCascade(ctx, tx, id)
		return err
	})
	if err != nil {
		return false, err
	}
	if deleted {
		s.logger.Info("identity deleted", zap.String("identity_id", id))
	}
	return deleted, nil
}

// deleteIdentityCascade deletes careers, then knowledge, then the identity.
func deleteIdentityCascade(ctx context.Context, tx ports.StoryDB, id string) (bool, error) {
	if err := tx.DeleteIdentityCareersByIdentity(ctx, id); err != nil {
		return false, fmt.Errorf("deleting identity careers: %w", err)
	}
	if err := tx.DeleteKnowledgeByIdentity(ctx, id); err != nil {
		return false, fmt.Errorf("deleting identity knowledge: %w", err)
	}
	deleted, err := tx.DeleteIdentity(ctx, id)
	if err != nil {
		return false, fmt.Errorf("deleting identity: %w", err)
	}
	return deleted, nil
}

// Get returns an identity by ID.
func (s *IdentityService) Get(ctx context.Context, id string) (*entities.Identity, error) {
	identity, err := s.db.FindIdentityByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("finding identity: %w", err)
	}
	if identity == nil {
		return nil, apperrors.NotFound("identity %s", id)
	}
	return identity, nil
}

// List returns identities matching the filter, newest first.
func (s *IdentityService) List(ctx context.Context, filter ports.IdentityFilter) ([]*entities.Identity, error) {
	if filter.Type != "" && !filter.Type.IsValid() {
		return nil, apperrors.Validation("invalid identity type %q", filter.Type)
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, apperrors.Validation("invalid identity status %q", filter.Status)
	}
	identities, err := s.db.ListIdentities(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing identities: %w", err)
	}
	return identities, nil
}

// Primary returns the primary identity of a character.
func (s *IdentityService) Primary(ctx context.Context, characterID string) (*entities.Identity, error) {
	identity, err := s.db.FindPrimaryIdentity(ctx, characterID)
	if err != nil {
		return nil, fmt.Errorf("finding primary identity: %w", err)
	}
	if identity == nil {
		return nil, apperrors.NotFound("primary identity of character %s", characterID)
	}
	return identity, nil
}

// TimelineAt returns every identity of a character with the state it had at
// the given chapter.
func (s *IdentityService) TimelineAt(ctx context.Context, characterID string, chapter int) ([]IdentityAtChapter, error) {
	if chapter < 1 {
		return nil, apperrors.Validation("chapter must be positive, got %d", chapter)
	}
	character, err := s.db.FindCharacterByID(ctx, characterID)
	if err != nil {
		return nil, fmt.Errorf("finding character: %w", err)
	}
	if character == nil {
		return nil, apperrors.NotFound("character %s", characterID)
	}

	identities, err := s.db.ListIdentitiesByCharacter(ctx, characterID)
	if err != nil {
		return nil, fmt.Errorf("listing identities: %w", err)
	}

	result := make([]IdentityAtChapter, 0, len(identities))
	for _, identity := range identities {
		result = append(result, IdentityAtChapter{
			Identity: identity,
			Chapter:  chapter,
			Status:   identity.StatusAtChapter(chapter),
			Exposed:  identity.IsExposedAtChapter(chapter),
		})
	}
	return result, nil
}

// AddCareer links a career to an identity.
func (s *IdentityService) AddCareer(
	ctx context.Context,
	identityID string,
	careerID string,
	careerType entities.CareerType,
	stage int,
) (*entities.IdentityCareer, error) {
	if !careerType.IsValid() {
		return nil, apperrors.Validation("invalid career type %q", careerType)
	}
	if stage == 0 {
		stage = 1
	}

	var link *entities.IdentityCareer
	err := s.db.WithTx(ctx, func(tx ports.StoryDB) error {
		identity, err := tx.FindIdentityByID(ctx, identityID)
		if err != nil {
			return fmt.Errorf("finding identity: %w", err)
		}
		if identity == nil {
			return apperrors.Validation("identity %s does not exist", identityID)
		}

		career, err := tx.FindCareerByID(ctx, careerID)
		if err != nil {
			return fmt.Errorf("finding career: %w", err)
		}
		if career == nil || career.ProjectID != identity.ProjectID {
			return apperrors.Validation("career %s does not exist in project %s", careerID, identity.ProjectID)
		}
		if career.Type != careerType {
			return apperrors.Validation("career %q is a %s career, not %s", career.Name, career.Type, careerType)
		}
		if stage < 1 || (career.MaxStage > 0 && stage > career.MaxStage) {
			return apperrors.Validation("stage %d is outside career %q range 1-%d", stage, career.Name, career.MaxStage)
		}

		existing, err := tx.FindIdentityCareer(ctx, identityID, careerID)
		if err != nil {
			return fmt.Errorf("checking existing career: %w", err)
		}
		if existing != nil {
			return apperrors.Validation("identity %s already has career %q", identityID, career.Name)
		}

		link = &entities.IdentityCareer{
			IdentityID:   identityID,
			CareerID:     careerID,
			CareerType:   careerType,
			CurrentStage: stage,
		}
		if err := tx.SaveIdentityCareer(ctx, link); err != nil {
			return fmt.Errorf("saving identity career: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return link, nil
}

// UpdateCareer applies a partial update to an identity career link. The
// stage stays within the career's range and progress within 0-100.
func (s *IdentityService) UpdateCareer(ctx context.Context, identityID, careerID string, patch CareerPatch) (*entities.IdentityCareer, error) {
	var link *entities.IdentityCareer
	err := s.db.WithTx(ctx, func(tx ports.StoryDB) error {
		var err error
		link, err = tx.FindIdentityCareer(ctx, identityID, careerID)
		if err != nil {
			return fmt.Errorf("finding identity career: %w", err)
		}
		if link == nil {
			return apperrors.NotFound("career %s of identity %s", careerID, identityID)
		}

		if patch.CurrentStage != nil {
			stage := *patch.CurrentStage
			if stage < 1 {
				return apperrors.Validation("stage must be positive, got %d", stage)
			}
			career, err := tx.FindCareerByID(ctx, careerID)
			if err != nil {
				return fmt.Errorf("finding career: %w", err)
			}
			if career != nil && career.MaxStage > 0 && stage > career.MaxStage {
				return apperrors.Validation("stage %d is outside career %q range 1-%d", stage, career.Name, career.MaxStage)
			}
			link.CurrentStage = stage
		}
		if patch.StageProgress != nil {
			progress := *patch.StageProgress
			if progress < 0 || progress > maxStageProgress {
				return apperrors.Validation("stage progress must be between 0 and %d, got %d", maxStageProgress, progress)
			}
			link.StageProgress = progress
		}
		if patch.StartedAt != nil {
			link.StartedAt = *patch.StartedAt
		}
		if patch.ReachedAt != nil {
			link.ReachedAt = *patch.ReachedAt
		}
		if patch.Notes != nil {
			link.Notes = *patch.Notes
		}

		if err := tx.SaveIdentityCareer(ctx, link); err != nil {
			return fmt.Errorf("saving identity career: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return link, nil
}

// DeleteCareer removes a career from an identity.
func (s *IdentityService) DeleteCareer(ctx context.Context, identityID, careerID string) error {
	deleted, err := s.db.DeleteIdentityCareer(ctx, identityID, careerID)
	if err != nil {
		return fmt.Errorf("deleting identity career: %w", err)
	}
	if !deleted {
		return apperrors.NotFound("career %s of identity %s", careerID, identityID)
	}
	return nil
}

// Careers returns the careers of an identity, main careers first.
func (s *IdentityService) Careers(ctx context.Context, identityID string) ([]*entities.IdentityCareer, error) {
	links, err := s.db.ListIdentityCareers(ctx, identityID)
	if err != nil {
		return nil, fmt.Errorf("listing identity careers: %w", err)
	}
	return links, nil
}

// AddKnowledge records that a character knows about an identity. Existing
// edges must be changed with UpdateKnowledge.
func (s *IdentityService) AddKnowledge(ctx context.Context, identityID, knowerID string, in KnowledgeInput) (*entities.IdentityKnowledge, error) {
	if in.Level == "" {
		in.Level = entities.KnowledgeFull
	}
	if !in.Level.IsValid() {
		return nil, apperrors.Validation("invalid knowledge level %q", in.Level)
	}

	var edge *entities.IdentityKnowledge
	err := s.db.WithTx(ctx, func(tx ports.StoryDB) error {
		identity, err := tx.FindIdentityByID(ctx, identityID)
		if err != nil {
			return fmt.Errorf("finding identity: %w", err)
		}
		if identity == nil {
			return apperrors.Validation("identity %s does not exist", identityID)
		}

		knower, err := tx.FindCharacterByID(ctx, knowerID)
		if err != nil {
			return fmt.Errorf("finding knower: %w", err)
		}
		if knower == nil || knower.ProjectID != identity.ProjectID {
			return apperrors.Validation("knower character %s does not exist in project %s", knowerID, identity.ProjectID)
		}

		existing, err := tx.FindKnowledge(ctx, identityID, knowerID)
		if err != nil {
			return fmt.Errorf("checking existing knowledge: %w", err)
		}
		if existing != nil {
			return apperrors.Validation("%s already knows identity %q (knowledge %s), update it instead", knower.Name, identity.Name, existing.ID)
		}

		secret := true
		if in.IsSecret != nil {
			secret = *in.IsSecret
		}
		edge = &entities.IdentityKnowledge{
			IdentityID:        identityID,
			KnowerCharacterID: knowerID,
			KnowledgeLevel:    in.Level,
			DiscoveredHow:     in.DiscoveredHow,
			SinceWhen:         in.SinceWhen,
			IsSecret:          secret,
		}
		if err := tx.SaveKnowledge(ctx, edge); err != nil {
			return fmt.Errorf("saving knowledge: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return edge, nil
}

// UpdateKnowledge applies a partial update to a knowledge edge of an
// identity.
func (s *IdentityService) UpdateKnowledge(ctx context.Context, identityID, knowledgeID string, patch KnowledgePatch) (*entities.IdentityKnowledge, error) {
	edge, err := s.findKnowledge(ctx, identityID, knowledgeID)
	if err != nil {
		return nil, err
	}

	if patch.Level != nil {
		if !patch.Level.IsValid() {
			return nil, apperrors.Validation("invalid knowledge level %q", *patch.Level)
		}
		edge.KnowledgeLevel = *patch.Level
	}
	if patch.DiscoveredHow != nil {
		edge.DiscoveredHow = *patch.DiscoveredHow
	}
	if patch.SinceWhen != nil {
		edge.SinceWhen = *patch.SinceWhen
	}
	if patch.IsSecret != nil {
		edge.IsSecret = *patch.IsSecret
	}

	if err := s.db.SaveKnowledge(ctx, edge); err != nil {
		return nil, fmt.Errorf("saving knowledge: %w", err)
	}
	return edge, nil
}

// DeleteKnowledge removes a knowledge edge of an identity.
func (s *IdentityService) DeleteKnowledge(ctx context.Context, identityID, knowledgeID string) error {
	if _, err := s.findKnowledge(ctx, identityID, knowledgeID); err != nil {
		return err
	}
	if _, err := s.db.DeleteKnowledge(ctx, knowledgeID); err != nil {
		return fmt.Errorf("deleting knowledge: %w", err)
	}
	return nil
}

func (s *IdentityService) findKnowledge(ctx context.Context, identityID, knowledgeID string) (*entities.IdentityKnowledge, error) {
	edge, err := s.db.FindKnowledgeByID(ctx, knowledgeID)
	if err != nil {
		return nil, fmt.Errorf("finding knowledge: %w", err)
	}
	if edge == nil || edge.IdentityID != identityID {
		return nil, apperrors.NotFound("knowledge %s of identity %s", knowledgeID, identityID)
	}
	return edge, nil
}

// WhoKnows returns the characters that know an identity, optionally
// restricted to one knowledge level.
func (s *IdentityService) WhoKnows(ctx context.Context, identityID string, level entities.KnowledgeLevel) ([]Knower, error) {
	if level != "" && !level.IsValid() {
		return nil, apperrors.Validation("invalid knowledge level %q", level)
	}
	if _, err := s.Get(ctx, identityID); err != nil {
		return nil, err
	}

	edges, err := s.db.ListKnowledgeByIdentity(ctx, identityID, level)
	if err != nil {
		return nil, fmt.Errorf("listing knowledge: %w", err)
	}

	knowers := make([]Knower, 0, len(edges))
	for _, edge := range edges {
		character, err := s.db.FindCharacterByID(ctx, edge.KnowerCharacterID)
		if err != nil {
			return nil, fmt.Errorf("finding knower: %w", err)
		}
		if character == nil {
			continue
		}
		knowers = append(knowers, Knower{Knowledge: edge, Character: character})
	}
	return knowers, nil
}
