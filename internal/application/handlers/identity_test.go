package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/lore-novel/internal/domain/apperrors"
	"github.com/ersonp/lore-novel/internal/domain/entities"
	"github.com/ersonp/lore-novel/internal/domain/services"
	"github.com/ersonp/lore-novel/internal/infrastructure/relationaldb/sqlite"
)

func newIdentityHandler(db *sqlite.Repository) *IdentityHandler {
	return NewIdentityHandler(db, services.NewIdentityService(db, nil), services.NewCharacterService(db, nil))
}

func TestIdentityHandler_Timeline(t *testing.T) {
	db := setupStore(t)
	world := seedSpyWorld(t, db)
	handler := newIdentityHandler(db)

	_, err := db.MarkIdentityBurned(t.Context(), world.viper.ID, 12)
	require.NoError(t, err)

	tests := []struct {
		chapter      int
		viperStatus  entities.IdentityStatus
		viperExposed bool
	}{
		{chapter: 11, viperStatus: entities.IdentityActive, viperExposed: false},
		{chapter: 12, viperStatus: entities.IdentityBurned, viperExposed: true},
	}

	for _, tt := range tests {
		result, err := handler.Timeline(t.Context(), world.lou.ID, tt.chapter)
		require.NoError(t, err)
		assert.Equal(t, "Ming Lou", result.Character.Name)
		assert.Equal(t, tt.chapter, result.Chapter)
		require.Len(t, result.Identities, 2)

		assert.Equal(t, "Ming Lou", result.Identities[0].Identity.Name)
		assert.False(t, result.Identities[0].Exposed)

		viper := result.Identities[1]
		assert.Equal(t, "Viper", viper.Identity.Name)
		assert.Equal(t, tt.viperStatus, viper.Status, "chapter %d", tt.chapter)
		assert.Equal(t, tt.viperExposed, viper.Exposed, "chapter %d", tt.chapter)
	}

	_, err = handler.Timeline(t.Context(), "nope", 3)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = handler.Timeline(t.Context(), world.lou.ID, 0)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestIdentityHandler_WhoKnows(t *testing.T) {
	db := setupStore(t)
	world := seedSpyWorld(t, db)
	handler := newIdentityHandler(db)

	require.NoError(t, db.SaveKnowledge(t.Context(), &entities.IdentityKnowledge{
		IdentityID:        world.viper.ID,
		KnowerCharacterID: world.cheng.ID,
		KnowledgeLevel:    entities.KnowledgeSuspected,
	}))

	result, err := handler.WhoKnows(t.Context(), world.viper.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "Viper", result.Identity.Name)
	assert.Equal(t, "Ming Lou", result.Owner)
	require.Len(t, result.Knowers, 1)
	assert.Equal(t, "Ming Cheng", result.Knowers[0].Character.Name)

	result, err = handler.WhoKnows(t.Context(), world.viper.ID, entities.KnowledgeFull)
	require.NoError(t, err)
	assert.Empty(t, result.Knowers)

	_, err = handler.WhoKnows(t.Context(), world.viper.ID, "everything")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = handler.WhoKnows(t.Context(), "nope", "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestIdentityHandler_DeleteCharacter(t *testing.T) {
	db := setupStore(t)
	world := seedSpyWorld(t, db)
	handler := newIdentityHandler(db)

	require.NoError(t, handler.DeleteCharacter(t.Context(), world.lou.ID))

	viper, err := db.FindIdentityByID(t.Context(), world.viper.ID)
	require.NoError(t, err)
	assert.Nil(t, viper)

	err = handler.DeleteCharacter(t.Context(), world.lou.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestIdentityHandler_SeedDefaultIdentities(t *testing.T) {
	db := setupStore(t)
	world := seedSpyWorld(t, db)
	handler := newIdentityHandler(db)

	wang := &entities.Character{ProjectID: world.project.ID, Name: "Wang Manchun"}
	require.NoError(t, db.SaveCharacter(t.Context(), wang))

	created, err := handler.SeedDefaultIdentities(t.Context(), world.project.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	primary, err := db.FindPrimaryIdentity(t.Context(), wang.ID)
	require.NoError(t, err)
	require.NotNil(t, primary)
	assert.Equal(t, "Wang Manchun", primary.Name)

	created, err = handler.SeedDefaultIdentities(t.Context(), world.project.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, created)
}
