package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ersonp/lore-novel/internal/domain/apperrors"
	"github.com/ersonp/lore-novel/internal/domain/entities"
	"github.com/ersonp/lore-novel/internal/domain/ports"
)

// CharacterService handles character lifecycle operations that touch
// identities.
type CharacterService struct {
	db     ports.StoryDB
	logger *zap.Logger
}

// NewCharacterService creates a new CharacterService.
func NewCharacterService(db ports.StoryDB, logger *zap.Logger) *CharacterService {
	return &CharacterService{
		db:     db,
		logger: namedLogger(logger, "character"),
	}
}

// EnsureDefaultIdentity gives a character without identities a primary
// "real" identity named after it. It returns the identity and whether it
// was created. Organizations are skipped and yield a nil identity.
func (s *CharacterService) EnsureDefaultIdentity(ctx context.Context, characterID string) (*entities.Identity, bool, error) {
	var identity *entities.Identity
	created := false

	err := s.db.WithTx(ctx, func(tx ports.StoryDB) error {
		character, err := tx.FindCharacterByID(ctx, characterID)
		if err != nil {
			return fmt.Errorf("finding character: %w", err)
		}
		if character == nil {
			return apperrors.NotFound("character %s", characterID)
		}
		if character.IsOrganization {
			return nil
		}

		existing, err := tx.ListIdentitiesByCharacter(ctx, characterID)
		if err != nil {
			return fmt.Errorf("listing identities: %w", err)
		}
		if len(existing) > 0 {
			identity = existing[0]
			return nil
		}

		def := entities.NewDefaultIdentity(character)
		if err := tx.InsertIdentity(ctx, &def); err != nil {
			return fmt.Errorf("inserting default identity: %w", err)
		}
		identity = &def
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		s.logger.Info("default identity created",
			zap.String("character_id", characterID),
			zap.String("identity_id", identity.ID),
		)
	}
	return identity, created, nil
}

// Delete removes a character together with its identities, the knowledge
// it holds about other identities and its memberships. It returns false
// when the character does not exist.
func (s *CharacterService) Delete(ctx context.Context, characterID string) (bool, error) {
	deleted := false
	err := s.db.WithTx(ctx, func(tx ports.StoryDB) error {
		character, err := tx.FindCharacterByID(ctx, characterID)
		if err != nil {
			return fmt.Errorf("finding character: %w", err)
		}
		if character == nil {
			return nil
		}

		if err := tx.DeleteKnowledgeByKnower(ctx, characterID); err != nil {
			return fmt.Errorf("deleting held knowledge: %w", err)
		}

		identities, err := tx.ListIdentitiesByCharacter(ctx, characterID)
		if err != nil {
			return fmt.Errorf("listing identities: %w", err)
		}
		for _, identity := range identities {
			if _, err := deleteIdentityCascade(ctx, tx, identity.ID); err != nil {
				return err
			}
		}

		if err := tx.DeleteMembershipsByCharacter(ctx, characterID); err != nil {
			return fmt.Errorf("deleting memberships: %w", err)
		}

		deleted, err = tx.DeleteCharacter(ctx, characterID)
		if err != nil {
			return fmt.Errorf("deleting character: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	if deleted {
		s.logger.Info("character deleted", zap.String("character_id", characterID))
	}
	return deleted, nil
}
