package ports

import (
	"context"

	"github.com/ersonp/lore-novel/internal/domain/entities"
)

// StoryDB is the relational store for story state. Lookups by key return
// nil without an error when the row does not exist.
type StoryDB interface {
	ProjectStore
	CharacterStore
	ChapterStore
	CareerStore
	IdentityStore
	KnowledgeStore
	MembershipStore
	MemoryStore
	ForeshadowStore
	AuditLog

	// EnsureSchema creates the database schema if it doesn't exist.
	EnsureSchema(ctx context.Context) error

	// WithTx runs fn inside a single transaction. The StoryDB passed to fn
	// is bound to that transaction; the transaction commits when fn returns
	// nil and rolls back otherwise. Calling WithTx on a transaction-bound
	// StoryDB reuses the open transaction.
	WithTx(ctx context.Context, fn func(tx StoryDB) error) error

	// Close closes the database connection.
	Close() error
}

// ProjectStore persists projects.
type ProjectStore interface {
	SaveProject(ctx context.Context, project *entities.Project) error
	FindProjectByID(ctx context.Context, id string) (*entities.Project, error)
	FindProjectByTitle(ctx context.Context, title string) (*entities.Project, error)
	ListProjects(ctx context.Context) ([]*entities.Project, error)
}

// CharacterStore persists characters and organizations.
type CharacterStore interface {
	SaveCharacter(ctx context.Context, character *entities.Character) error
	FindCharacterByID(ctx context.Context, id string) (*entities.Character, error)

	// FindCharacterByName finds a character of a project by exact name.
	FindCharacterByName(ctx context.Context, projectID, name string) (*entities.Character, error)

	// ListCharacters lists the characters of a project in creation order.
	ListCharacters(ctx context.Context, projectID string) ([]*entities.Character, error)

	// DeleteCharacter deletes the character row only. Callers cascade.
	DeleteCharacter(ctx context.Context, id string) (bool, error)

	SaveOrganization(ctx context.Context, org *entities.Organization) error
	FindOrganizationByID(ctx context.Context, id string) (*entities.Organization, error)
	FindOrganizationByCharacter(ctx context.Context, characterID string) (*entities.Organization, error)
}

// ChapterStore persists chapters and outlines.
type ChapterStore interface {
	SaveChapter(ctx context.Context, chapter *entities.Chapter) error
	FindChapterByID(ctx context.Context, id string) (*entities.Chapter, error)
	FindChapterByNumber(ctx context.Context, projectID string, number int) (*entities.Chapter, error)

	// ListCompletedChaptersBefore lists chapters numbered below the given
	// number that have content, ordered by chapter number.
	ListCompletedChaptersBefore(ctx context.Context, projectID string, number int) ([]*entities.Chapter, error)

	SaveOutline(ctx context.Context, outline *entities.Outline) error
	FindOutlineByID(ctx context.Context, id string) (*entities.Outline, error)
	FindOutlineByOrder(ctx context.Context, projectID string, orderIndex int) (*entities.Outline, error)
}

// CareerStore persists career definitions and identity career links.
type CareerStore interface {
	SaveCareer(ctx context.Context, career *entities.Career) error
	FindCareerByID(ctx context.Context, id string) (*entities.Career, error)
	FindCareerByName(ctx context.Context, projectID, name string) (*entities.Career, error)

	SaveIdentityCareer(ctx context.Context, link *entities.IdentityCareer) error
	FindIdentityCareer(ctx context.Context, identityID, careerID string) (*entities.IdentityCareer, error)
	ListIdentityCareers(ctx context.Context, identityID string) ([]*entities.IdentityCareer, error)
	DeleteIdentityCareer(ctx context.Context, identityID, careerID string) (bool, error)
	DeleteIdentityCareersByIdentity(ctx context.Context, identityID string) error
}

// IdentityFilter narrows ListIdentities. Empty fields match everything.
type IdentityFilter struct {
	ProjectID   string
	CharacterID string
	Type        entities.IdentityType
	Status      entities.IdentityStatus
}

// IdentityStore persists identities.
type IdentityStore interface {
	// InsertIdentity inserts a new identity row.
	InsertIdentity(ctx context.Context, identity *entities.Identity) error

	// UpdateIdentity writes every mutable field of an identity. A recorded
	// exposure chapter is never overwritten.
	UpdateIdentity(ctx context.Context, identity *entities.Identity) error

	FindIdentityByID(ctx context.Context, id string) (*entities.Identity, error)

	// FindIdentityByName finds an identity of a character by exact name.
	FindIdentityByName(ctx context.Context, characterID, name string) (*entities.Identity, error)

	// ListIdentitiesByCharacter lists a character's identities, primary
	// first, then by creation time.
	ListIdentitiesByCharacter(ctx context.Context, characterID string) ([]*entities.Identity, error)

	// ListIdentities lists identities matching the filter, newest first.
	ListIdentities(ctx context.Context, filter IdentityFilter) ([]*entities.Identity, error)

	FindPrimaryIdentity(ctx context.Context, characterID string) (*entities.Identity, error)

	// ClearPrimaryIdentities unsets is_primary on every identity of the
	// character except exceptID (which may be empty).
	ClearPrimaryIdentities(ctx context.Context, characterID, exceptID string) error

	// MarkIdentityBurned sets the status to burned and records chapter as
	// the exposure chapter when none is recorded yet, in a single
	// conditional write. It reports whether the row changed.
	MarkIdentityBurned(ctx context.Context, id string, chapter int) (bool, error)

	DeleteIdentity(ctx context.Context, id string) (bool, error)
}

// KnowledgeStore persists identity knowledge edges.
type KnowledgeStore interface {
	SaveKnowledge(ctx context.Context, knowledge *entities.IdentityKnowledge) error
	FindKnowledgeByID(ctx context.Context, id string) (*entities.IdentityKnowledge, error)
	FindKnowledge(ctx context.Context, identityID, knowerID string) (*entities.IdentityKnowledge, error)

	// ListKnowledgeByIdentity lists the edges of an identity, optionally
	// restricted to a single level.
	ListKnowledgeByIdentity(ctx context.Context, identityID string, level entities.KnowledgeLevel) ([]*entities.IdentityKnowledge, error)

	DeleteKnowledge(ctx context.Context, id string) (bool, error)
	DeleteKnowledgeByIdentity(ctx context.Context, identityID string) error
	DeleteKnowledgeByKnower(ctx context.Context, characterID string) error
}

// MembershipStore persists organization memberships.
type MembershipStore interface {
	SaveMembership(ctx context.Context, member *entities.OrganizationMember) error
	FindMembershipByID(ctx context.Context, id string) (*entities.OrganizationMember, error)
	ListMembershipsByIdentity(ctx context.Context, identityID string) ([]*entities.OrganizationMember, error)
	ListMembershipsByCharacter(ctx context.Context, characterID string) ([]*entities.OrganizationMember, error)
	DeleteMembershipsByCharacter(ctx context.Context, characterID string) error
}

// MemoryStore persists story memories.
type MemoryStore interface {
	SaveMemory(ctx context.Context, memory *entities.StoryMemory) error

	// FindMemoriesByTimeline lists memories of a type attached to a chapter
	// number, most important first.
	FindMemoriesByTimeline(ctx context.Context, projectID string, memoryType entities.MemoryType, chapter int) ([]*entities.StoryMemory, error)

	ListMemories(ctx context.Context, projectID string, memoryType entities.MemoryType) ([]*entities.StoryMemory, error)
}

// ForeshadowStore persists foreshadows.
type ForeshadowStore interface {
	SaveForeshadow(ctx context.Context, foreshadow *entities.Foreshadow) error
	ListForeshadows(ctx context.Context, projectID string, statuses ...entities.ForeshadowStatus) ([]*entities.Foreshadow, error)
}

// AuditLog records state changes.
type AuditLog interface {
	// LogAction records an action in the audit log.
	LogAction(ctx context.Context, entry *entities.AuditEntry) error

	// ListAudit returns the latest audit entries of a project.
	ListAudit(ctx context.Context, projectID string, limit int) ([]entities.AuditEntry, error)
}
