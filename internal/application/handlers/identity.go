package handlers

import (
	"context"
	"fmt"

	"github.com/ersonp/lore-novel/internal/domain/apperrors"
	"github.com/ersonp/lore-novel/internal/domain/entities"
	"github.com/ersonp/lore-novel/internal/domain/ports"
	"github.com/ersonp/lore-novel/internal/domain/services"
)

// IdentityHandler answers identity questions that span several entities.
type IdentityHandler struct {
	db         ports.StoryDB
	identities *services.IdentityService
	characters *services.CharacterService
}

// NewIdentityHandler creates a new identity handler.
func NewIdentityHandler(
	db ports.StoryDB,
	identities *services.IdentityService,
	characters *services.CharacterService,
) *IdentityHandler {
	return &IdentityHandler{
		db:         db,
		identities: identities,
		characters: characters,
	}
}

// TimelineResult lists a character's identities as of one chapter.
type TimelineResult struct {
	Character  *entities.Character          `json:"character"`
	Chapter    int                          `json:"chapter"`
	Identities []services.IdentityAtChapter `json:"identities"`
}

// Timeline returns the state of every identity of a character at a chapter.
func (h *IdentityHandler) Timeline(ctx context.Context, characterID string, chapter int) (*TimelineResult, error) {
	identities, err := h.identities.TimelineAt(ctx, characterID, chapter)
	if err != nil {
		return nil, err
	}

	character, err := h.db.FindCharacterByID(ctx, characterID)
	if err != nil {
		return nil, fmt.Errorf("finding character: %w", err)
	}
	if character == nil {
		return nil, apperrors.NotFound("character %s", characterID)
	}

	return &TimelineResult{
		Character:  character,
		Chapter:    chapter,
		Identities: identities,
	}, nil
}

// WhoKnowsResult lists the knowers of an identity.
type WhoKnowsResult struct {
	Identity *entities.Identity `json:"identity"`
	Owner    string             `json:"owner"`
	Knowers  []services.Knower  `json:"knowers"`
}

// WhoKnows returns the characters aware of an identity, optionally limited
// to one knowledge level.
func (h *IdentityHandler) WhoKnows(ctx context.Context, identityID string, level entities.KnowledgeLevel) (*WhoKnowsResult, error) {
	knowers, err := h.identities.WhoKnows(ctx, identityID, level)
	if err != nil {
		return nil, err
	}

	identity, err := h.identities.Get(ctx, identityID)
	if err != nil {
		return nil, err
	}

	owner := ""
	character, err := h.db.FindCharacterByID(ctx, identity.CharacterID)
	if err != nil {
		return nil, fmt.Errorf("finding owner: %w", err)
	}
	if character != nil {
		owner = character.Name
	}

	return &WhoKnowsResult{
		Identity: identity,
		Owner:    owner,
		Knowers:  knowers,
	}, nil
}

// DeleteCharacter removes a character and everything hanging off it.
func (h *IdentityHandler) DeleteCharacter(ctx context.Context, characterID string) error {
	deleted, err := h.characters.Delete(ctx, characterID)
	if err != nil {
		return err
	}
	if !deleted {
		return apperrors.NotFound("character %s", characterID)
	}
	return nil
}

// SeedDefaultIdentities gives every character of a project without an
// identity its default one and returns how many were created.
func (h *IdentityHandler) SeedDefaultIdentities(ctx context.Context, projectID string) (int, error) {
	characters, err := h.db.ListCharacters(ctx, projectID)
	if err != nil {
		return 0, fmt.Errorf("listing characters: %w", err)
	}

	created := 0
	for _, c := range characters {
		_, ok, err := h.characters.EnsureDefaultIdentity(ctx, c.ID)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}
