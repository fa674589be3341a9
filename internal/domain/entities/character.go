package entities

import "time"

// CharacterRole is the narrative role of a character.
type CharacterRole string

const (
	RoleProtagonist CharacterRole = "protagonist"
	RoleAntagonist  CharacterRole = "antagonist"
	RoleSupporting  CharacterRole = "supporting"
)

// Label returns the human-readable role label used in prompts.
func (r CharacterRole) Label() string {
	switch r {
	case RoleProtagonist:
		return "protagonist"
	case RoleAntagonist:
		return "antagonist"
	default:
		return "supporting"
	}
}

// Character is a story person or an organization. Organizations are
// characters with IsOrganization set and a matching Organization row.
type Character struct {
	ID             string        `json:"id"`
	ProjectID      string        `json:"project_id"`
	Name           string        `json:"name"`
	RoleType       CharacterRole `json:"role_type,omitempty"`
	Personality    string        `json:"personality,omitempty"`
	Background     string        `json:"background,omitempty"`
	IsOrganization bool          `json:"is_organization"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Organization holds organization-specific data for a character flagged
// as an organization.
type Organization struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	CharacterID string    `json:"character_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// MembershipStatus is the standing of a member inside an organization.
type MembershipStatus string

const (
	MembershipActive    MembershipStatus = "active"
	MembershipSuspected MembershipStatus = "suspected"
	MembershipExpelled  MembershipStatus = "expelled"
	MembershipRetired   MembershipStatus = "retired"
	MembershipDeceased  MembershipStatus = "deceased"
)

// OrganizationMember links a character, optionally through one of its
// identities, to an organization. A nil IdentityID means the character
// joined as itself.
type OrganizationMember struct {
	ID             string           `json:"id"`
	OrganizationID string           `json:"organization_id"`
	CharacterID    string           `json:"character_id"`
	IdentityID     *string          `json:"identity_id,omitempty"`
	Position       string           `json:"position,omitempty"`
	Rank           int              `json:"rank"`
	Loyalty        int              `json:"loyalty"`
	Status         MembershipStatus `json:"status"`
	JoinedAt       string           `json:"joined_at,omitempty"`
	Notes          string           `json:"notes,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}
