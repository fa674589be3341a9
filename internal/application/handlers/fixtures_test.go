package handlers

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ersonp/lore-novel/internal/domain/entities"
	"github.com/ersonp/lore-novel/internal/infrastructure/config"
	"github.com/ersonp/lore-novel/internal/infrastructure/relationaldb/sqlite"
)

func setupStore(t *testing.T) *sqlite.Repository {
	t.Helper()
	repo, err := sqlite.NewRepository(config.SQLiteConfig{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	require.NoError(t, repo.EnsureSchema(t.Context()))
	return repo
}

// spyWorld is a small project: Ming Lou works for Military Intelligence as
// Viper, his brother Ming Cheng does not know.
type spyWorld struct {
	project *entities.Project
	lou     *entities.Character
	cheng   *entities.Character
	org     *entities.Organization
	louReal *entities.Identity
	viper   *entities.Identity
	member  *entities.OrganizationMember
	chapter *entities.Chapter
}

func seedSpyWorld(t *testing.T, db *sqlite.Repository) *spyWorld {
	t.Helper()
	ctx := t.Context()
	w := &spyWorld{}

	w.project = &entities.Project{Title: "The Disguiser", Genre: "spy", OutlineMode: entities.OutlineOneToOne}
	require.NoError(t, db.SaveProject(ctx, w.project))

	w.lou = &entities.Character{ProjectID: w.project.ID, Name: "Ming Lou", RoleType: entities.RoleProtagonist}
	require.NoError(t, db.SaveCharacter(ctx, w.lou))
	w.cheng = &entities.Character{ProjectID: w.project.ID, Name: "Ming Cheng", RoleType: entities.RoleSupporting}
	require.NoError(t, db.SaveCharacter(ctx, w.cheng))

	orgCharacter := &entities.Character{ProjectID: w.project.ID, Name: "Military Intelligence", IsOrganization: true}
	require.NoError(t, db.SaveCharacter(ctx, orgCharacter))
	w.org = &entities.Organization{ProjectID: w.project.ID, CharacterID: orgCharacter.ID, Name: "Military Intelligence"}
	require.NoError(t, db.SaveOrganization(ctx, w.org))

	w.louReal = &entities.Identity{
		CharacterID: w.lou.ID, ProjectID: w.project.ID, Name: "Ming Lou",
		Type: entities.IdentityReal, IsPrimary: true,
	}
	require.NoError(t, db.InsertIdentity(ctx, w.louReal))
	w.viper = &entities.Identity{
		CharacterID: w.lou.ID, ProjectID: w.project.ID, Name: "Viper",
		Type: entities.IdentitySecret,
	}
	require.NoError(t, db.InsertIdentity(ctx, w.viper))
	require.NoError(t, db.InsertIdentity(ctx, &entities.Identity{
		CharacterID: w.cheng.ID, ProjectID: w.project.ID, Name: "Ming Cheng",
		Type: entities.IdentityReal, IsPrimary: true,
	}))

	w.member = &entities.OrganizationMember{
		OrganizationID: w.org.ID,
		CharacterID:    w.lou.ID,
		IdentityID:     &w.viper.ID,
		Loyalty:        80,
		Status:         entities.MembershipActive,
	}
	require.NoError(t, db.SaveMembership(ctx, w.member))

	w.chapter = &entities.Chapter{
		ProjectID:     w.project.ID,
		ChapterNumber: 7,
		Title:         "The Codebook",
		Content:       "Ming Cheng opened the drawer and found the codebook.",
	}
	require.NoError(t, db.SaveChapter(ctx, w.chapter))

	return w
}

func viperExposure() *entities.ChapterAnalysis {
	return &entities.ChapterAnalysis{
		IdentityExposures: []entities.ExposureEvent{
			{
				CharacterName:       "Ming Lou",
				ExposedIdentityName: "Viper",
				ExposureType:        entities.ExposureSecretRevealed,
				ExposureContext:     "Ming Cheng finds the codebook",
				Witnesses:           []string{"Ming Cheng"},
			},
		},
	}
}
