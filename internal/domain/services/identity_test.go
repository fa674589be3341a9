package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/lore-novel/internal/domain/apperrors"
	"github.com/ersonp/lore-novel/internal/domain/entities"
	"github.com/ersonp/lore-novel/internal/domain/ports"
)

func TestIdentityService_Create(t *testing.T) {
	db := setupStore(t)
	svc := NewIdentityService(db, nil)
	p := seedProject(t, db, entities.OutlineOneToMany)
	c := seedCharacter(t, db, p, "Ming Lou")

	identity, err := svc.Create(t.Context(), c.ID, IdentityInput{Name: "  Viper ", Type: entities.IdentitySecret})
	require.NoError(t, err)
	assert.Equal(t, "Viper", identity.Name)
	assert.Equal(t, p.ID, identity.ProjectID)
	assert.Equal(t, entities.IdentityActive, identity.Status)
	assert.False(t, identity.IsPrimary)

	defaulted, err := svc.Create(t.Context(), c.ID, IdentityInput{Name: "Economist"})
	require.NoError(t, err)
	assert.Equal(t, entities.IdentityPublic, defaulted.Type)
}

func TestIdentityService_Create_Invalid(t *testing.T) {
	db := setupStore(t)
	svc := NewIdentityService(db, nil)
	p := seedProject(t, db, entities.OutlineOneToMany)
	c := seedCharacter(t, db, p, "Ming Lou")

	tests := []struct {
		name        string
		characterID string
		input       IdentityInput
		sentinel    error
	}{
		{"blank name", c.ID, IdentityInput{Name: " "}, apperrors.ErrValidation},
		{"unknown type", c.ID, IdentityInput{Name: "X", Type: "alias"}, apperrors.ErrValidation},
		{"unknown status", c.ID, IdentityInput{Name: "X", Status: "lost"}, apperrors.ErrValidation},
		{"missing character", "nope", IdentityInput{Name: "X"}, apperrors.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(t.Context(), tt.characterID, tt.input)
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

func TestIdentityService_PrimaryIsExclusive(t *testing.T) {
	db := setupStore(t)
	svc := NewIdentityService(db, nil)
	p := seedProject(t, db, entities.OutlineOneToMany)
	c := seedCharacter(t, db, p, "Ming Lou")

	first, err := svc.Create(t.Context(), c.ID, IdentityInput{Name: "Ming Lou", Type: entities.IdentityReal, IsPrimary: true})
	require.NoError(t, err)
	second, err := svc.Create(t.Context(), c.ID, IdentityInput{Name: "Economist", IsPrimary: true})
	require.NoError(t, err)

	primary, err := svc.Primary(t.Context(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, primary.ID)

	_, err = svc.Update(t.Context(), first.ID, IdentityPatch{IsPrimary: boolPtr(true)})
	require.NoError(t, err)

	identities, err := db.ListIdentitiesByCharacter(t.Context(), c.ID)
	require.NoError(t, err)
	primaries := 0
	for _, identity := range identities {
		if identity.IsPrimary {
			primaries++
			assert.Equal(t, first.ID, identity.ID)
		}
	}
	assert.Equal(t, 1, primaries)
}

func TestIdentityService_Primary_NotFound(t *testing.T) {
	db := setupStore(t)
	svc := NewIdentityService(db, nil)
	p := seedProject(t, db, entities.OutlineOneToMany)
	c := seedCharacter(t, db, p, "Ming Lou")
	seedIdentity(t, db, c, "Viper", entities.IdentitySecret, false)

	_, err := svc.Primary(t.Context(), c.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestIdentityService_Update_ExposureChapterIsPermanent(t *testing.T) {
	db := setupStore(t)
	svc := NewIdentityService(db, nil)
	p := seedProject(t, db, entities.OutlineOneToMany)
	c := seedCharacter(t, db, p, "Ming Lou")
	identity := seedIdentity(t, db, c, "Viper", entities.IdentitySecret, false)

	updated, err := svc.Update(t.Context(), identity.ID, IdentityPatch{ExposedAtChapter: intPtr(12)})
	require.NoError(t, err)
	require.NotNil(t, updated.ExposedAtChapter)
	assert.Equal(t, 12, *updated.ExposedAtChapter)

	_, err = svc.Update(t.Context(), identity.ID, IdentityPatch{ExposedAtChapter: intPtr(12)})
	require.NoError(t, err)

	_, err = svc.Update(t.Context(), identity.ID, IdentityPatch{ExposedAtChapter: intPtr(30)})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	stored, err := svc.Get(t.Context(), identity.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, *stored.ExposedAtChapter)
}

func TestIdentityService_Update_Invalid(t *testing.T) {
	db := setupStore(t)
	svc := NewIdentityService(db, nil)
	p := seedProject(t, db, entities.OutlineOneToMany)
	c := seedCharacter(t, db, p, "Ming Lou")
	identity := seedIdentity(t, db, c, "Viper", entities.IdentitySecret, false)

	badType := entities.IdentityType("alias")
	tests := []struct {
		name     string
		id       string
		patch    IdentityPatch
		sentinel error
	}{
		{"missing identity", "nope", IdentityPatch{}, apperrors.ErrNotFound},
		{"blank name", identity.ID, IdentityPatch{Name: strPtr(" ")}, apperrors.ErrValidation},
		{"bad type", identity.ID, IdentityPatch{Type: &badType}, apperrors.ErrValidation},
		{"bad chapter", identity.ID, IdentityPatch{ExposedAtChapter: intPtr(0)}, apperrors.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Update(t.Context(), tt.id, tt.patch)
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

func TestIdentityService_Delete_Cascades(t *testing.T) {
	db := setupStore(t)
	svc := NewIdentityService(db, nil)
	p := seedProject(t, db, entities.OutlineOneToMany)
	c := seedCharacter(t, db, p, "Ming Lou")
	knower := seedCharacter(t, db, p, "Ming Cheng")
	identity := seedIdentity(t, db, c, "Viper", entities.IdentitySecret, false)

	career := &entities.Career{ProjectID: p.ID, Name: "Intelligence", Type: entities.CareerMain, MaxStage: 5}
	require.NoError(t, db.SaveCareer(t.Context(), career))
	_, err := svc.AddCareer(t.Context(), identity.ID, career.ID, entities.CareerMain, 2)
	require.NoError(t, err)
	_, err = svc.AddKnowledge(t.Context(), identity.ID, knower.ID, KnowledgeInput{})
	require.NoError(t, err)

	deleted, err := svc.Delete(t.Context(), identity.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	links, err := db.ListIdentityCareers(t.Context(), identity.ID)
	require.NoError(t, err)
	assert.Empty(t, links)
	edges, err := db.ListKnowledgeByIdentity(t.Context(), identity.ID, "")
	require.NoError(t, err)
	assert.Empty(t, edges)

	deleted, err = svc.Delete(t.Context(), identity.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestIdentityService_List(t *testing.T) {
	db := setupStore(t)
	svc := NewIdentityService(db, nil)
	p := seedProject(t, db, entities.OutlineOneToMany)
	c := seedCharacter(t, db, p, "Ming Lou")
	seedIdentity(t, db, c, "Ming Lou", entities.IdentityReal, true)
	seedIdentity(t, db, c, "Viper", entities.IdentitySecret, false)

	secret, err := svc.List(t.Context(), ports.IdentityFilter{ProjectID: p.ID, Type: entities.IdentitySecret})
	require.NoError(t, err)
	require.Len(t, secret, 1)
	assert.Equal(t, "Viper", secret[0].Name)

	_, err = svc.List(t.Context(), ports.IdentityFilter{Status: "lost"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestIdentityService_TimelineAt(t *testing.T) {
	db := setupStore(t)
	svc := NewIdentityService(db, nil)
	p := seedProject(t, db, entities.OutlineOneToMany)
	c := seedCharacter(t, db, p, "Ming Lou")
	seedIdentity(t, db, c, "Ming Lou", entities.IdentityReal, true)
	viper := seedIdentity(t, db, c, "Viper", entities.IdentitySecret, false)
	changed, err := db.MarkIdentityBurned(t.Context(), viper.ID, 12)
	require.NoError(t, err)
	require.True(t, changed)

	tests := []struct {
		chapter int
		status  entities.IdentityStatus
		exposed bool
	}{
		{5, entities.IdentityActive, false},
		{11, entities.IdentityActive, false},
		{12, entities.IdentityBurned, true},
		{40, entities.IdentityBurned, true},
	}

	for _, tt := range tests {
		timeline, err := svc.TimelineAt(t.Context(), c.ID, tt.chapter)
		require.NoError(t, err)
		require.Len(t, timeline, 2)
		assert.Equal(t, "Ming Lou", timeline[0].Identity.Name)
		assert.Equal(t, entities.IdentityActive, timeline[0].Status)
		assert.Equal(t, tt.status, timeline[1].Status, "chapter %d", tt.chapter)
		assert.Equal(t, tt.exposed, timeline[1].Exposed, "chapter %d", tt.chapter)
	}

	_, err = svc.TimelineAt(t.Context(), c.ID, 0)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = svc.TimelineAt(t.Context(), "nope", 3)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestIdentityService_Careers(t *testing.T) {
	db := setupStore(t)
	svc := NewIdentityService(db, nil)
	p := seedProject(t, db, entities.OutlineOneToMany)
	other := &entities.Project{Title: "Other"}
	require.NoError(t, db.SaveProject(t.Context(), other))
	c := seedCharacter(t, db, p, "Ming Lou")
	identity := seedIdentity(t, db, c, "Viper", entities.IdentitySecret, false)

	intel := &entities.Career{ProjectID: p.ID, Name: "Intelligence", Type: entities.CareerMain, MaxStage: 5}
	require.NoError(t, db.SaveCareer(t.Context(), intel))
	finance := &entities.Career{ProjectID: p.ID, Name: "Finance", Type: entities.CareerSub, MaxStage: 3}
	require.NoError(t, db.SaveCareer(t.Context(), finance))
	foreign := &entities.Career{ProjectID: other.ID, Name: "Sword", Type: entities.CareerMain, MaxStage: 9}
	require.NoError(t, db.SaveCareer(t.Context(), foreign))

	link, err := svc.AddCareer(t.Context(), identity.ID, intel.ID, entities.CareerMain, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, link.CurrentStage)

	tests := []struct {
		name       string
		identityID string
		careerID   string
		careerType entities.CareerType
		stage      int
	}{
		{"missing identity", "nope", finance.ID, entities.CareerSub, 1},
		{"missing career", identity.ID, "nope", entities.CareerSub, 1},
		{"career of another project", identity.ID, foreign.ID, entities.CareerMain, 1},
		{"type mismatch", identity.ID, finance.ID, entities.CareerMain, 1},
		{"stage above max", identity.ID, finance.ID, entities.CareerSub, 4},
		{"negative stage", identity.ID, finance.ID, entities.CareerSub, -1},
		{"duplicate", identity.ID, intel.ID, entities.CareerMain, 2},
		{"bad type", identity.ID, finance.ID, "side", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddCareer(t.Context(), tt.identityID, tt.careerID, tt.careerType, tt.stage)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}

	updated, err := svc.UpdateCareer(t.Context(), identity.ID, intel.ID, CareerPatch{CurrentStage: intPtr(3), Notes: strPtr("promoted")})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.CurrentStage)
	assert.Equal(t, "promoted", updated.Notes)

	_, err = svc.UpdateCareer(t.Context(), identity.ID, finance.ID, CareerPatch{})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	rejected := []struct {
		name  string
		patch CareerPatch
	}{
		{"stage above max", CareerPatch{CurrentStage: intPtr(9)}},
		{"zero stage", CareerPatch{CurrentStage: intPtr(0)}},
		{"progress above 100", CareerPatch{StageProgress: intPtr(250)}},
		{"negative progress", CareerPatch{StageProgress: intPtr(-40)}},
	}
	for _, tt := range rejected {
		t.Run("update "+tt.name, func(t *testing.T) {
			_, err := svc.UpdateCareer(t.Context(), identity.ID, intel.ID, tt.patch)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}

	updated, err = svc.UpdateCareer(t.Context(), identity.ID, intel.ID, CareerPatch{CurrentStage: intPtr(5), StageProgress: intPtr(100)})
	require.NoError(t, err)
	assert.Equal(t, 5, updated.CurrentStage)
	assert.Equal(t, 100, updated.StageProgress)

	stored, err := db.FindIdentityCareer(t.Context(), identity.ID, intel.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.CurrentStage)
	assert.Equal(t, 100, stored.StageProgress)
	assert.Equal(t, "promoted", stored.Notes)

	links, err := svc.Careers(t.Context(), identity.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)

	require.NoError(t, svc.DeleteCareer(t.Context(), identity.ID, intel.ID))
	assert.ErrorIs(t, svc.DeleteCareer(t.Context(), identity.ID, intel.ID), apperrors.ErrNotFound)
}

func TestIdentityService_Knowledge(t *testing.T) {
	db := setupStore(t)
	svc := NewIdentityService(db, nil)
	p := seedProject(t, db, entities.OutlineOneToMany)
	c := seedCharacter(t, db, p, "Ming Lou")
	cheng := seedCharacter(t, db, p, "Ming Cheng")
	wang := seedCharacter(t, db, p, "Wang Manchun")
	identity := seedIdentity(t, db, c, "Viper", entities.IdentitySecret, false)

	edge, err := svc.AddKnowledge(t.Context(), identity.ID, cheng.ID, KnowledgeInput{DiscoveredHow: "told directly"})
	require.NoError(t, err)
	assert.Equal(t, entities.KnowledgeFull, edge.KnowledgeLevel)
	assert.True(t, edge.IsSecret)

	_, err = svc.AddKnowledge(t.Context(), identity.ID, wang.ID, KnowledgeInput{
		Level:    entities.KnowledgeSuspected,
		IsSecret: boolPtr(false),
	})
	require.NoError(t, err)

	_, err = svc.AddKnowledge(t.Context(), identity.ID, cheng.ID, KnowledgeInput{})
	assert.ErrorIs(t, err, apperrors.ErrValidation, "existing edge must be updated instead")
	_, err = svc.AddKnowledge(t.Context(), "nope", cheng.ID, KnowledgeInput{})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = svc.AddKnowledge(t.Context(), identity.ID, "nope", KnowledgeInput{})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = svc.AddKnowledge(t.Context(), identity.ID, cheng.ID, KnowledgeInput{Level: "certain"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	all, err := svc.WhoKnows(t.Context(), identity.ID, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Ming Cheng", all[0].Character.Name)

	suspects, err := svc.WhoKnows(t.Context(), identity.ID, entities.KnowledgeSuspected)
	require.NoError(t, err)
	require.Len(t, suspects, 1)
	assert.Equal(t, "Wang Manchun", suspects[0].Character.Name)

	level := entities.KnowledgePartial
	updated, err := svc.UpdateKnowledge(t.Context(), identity.ID, edge.ID, KnowledgePatch{Level: &level})
	require.NoError(t, err)
	assert.Equal(t, entities.KnowledgePartial, updated.KnowledgeLevel)
	assert.Equal(t, "told directly", updated.DiscoveredHow)

	_, err = svc.UpdateKnowledge(t.Context(), "other-identity", edge.ID, KnowledgePatch{})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, svc.DeleteKnowledge(t.Context(), identity.ID, edge.ID))
	assert.ErrorIs(t, svc.DeleteKnowledge(t.Context(), identity.ID, edge.ID), apperrors.ErrNotFound)

	_, err = svc.WhoKnows(t.Context(), "nope", "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
