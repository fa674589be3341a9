package services

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

func seedProject(t *testing.T, db *sqlite.Repository, mode entities.OutlineMode) *entities.Project {
	t.Helper()
	p := &entities.Project{Title: "The Disguiser", Genre: "spy", Theme: "loyalty", OutlineMode: mode}
	require.NoError(t, db.SaveProject(t.Context(), p))
	return p
}

func seedCharacter(t *testing.T, db *sqlite.Repository, p *entities.Project, name string) *entities.Character {
	t.Helper()
	c := &entities.Character{
		ProjectID:   p.ID,
		Name:        name,
		RoleType:    entities.RoleSupporting,
		Personality: name + " keeps their own counsel",
	}
	require.NoError(t, db.SaveCharacter(t.Context(), c))
	return c
}

func seedOrganization(t *testing.T, db *sqlite.Repository, p *entities.Project, name string) *entities.Organization {
	t.Helper()
	c := &entities.Character{ProjectID: p.ID, Name: name, IsOrganization: true}
	require.NoError(t, db.SaveCharacter(t.Context(), c))
	org := &entities.Organization{ProjectID: p.ID, CharacterID: c.ID, Name: name}
	require.NoError(t, db.SaveOrganization(t.Context(), org))
	return org
}

func seedIdentity(
	t *testing.T,
	db *sqlite.Repository,
	c *entities.Character,
	name string,
	typ entities.IdentityType,
	primary bool,
) *entities.Identity {
	t.Helper()
	identity := &entities.Identity{
		CharacterID: c.ID,
		ProjectID:   c.ProjectID,
		Name:        name,
		Type:        typ,
		IsPrimary:   primary,
	}
	require.NoError(t, db.InsertIdentity(t.Context(), identity))
	return identity
}

func seedMembership(
	t *testing.T,
	db *sqlite.Repository,
	org *entities.Organization,
	c *entities.Character,
	identity *entities.Identity,
	status entities.MembershipStatus,
) *entities.OrganizationMember {
	t.Helper()
	m := &entities.OrganizationMember{
		OrganizationID: org.ID,
		CharacterID:    c.ID,
		Loyalty:        80,
		Status:         status,
	}
	if identity != nil {
		m.IdentityID = &identity.ID
	}
	require.NoError(t, db.SaveMembership(t.Context(), m))
	return m
}

func seedChapter(t *testing.T, db *sqlite.Repository, p *entities.Project, number int, content string) *entities.Chapter {
	t.Helper()
	ch := &entities.Chapter{
		ProjectID:     p.ID,
		ChapterNumber: number,
		Title:         "Chapter title",
		Content:       content,
	}
	require.NoError(t, db.SaveChapter(t.Context(), ch))
	return ch
}

func intPtr(v int) *int { return &v }

func boolPtr(v bool) *bool { return &v }

func strPtr(v string) *string { return &v }
