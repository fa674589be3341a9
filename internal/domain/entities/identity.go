package entities

import "time"

// IdentityType is the kind of persona an identity represents.
type IdentityType string

const (
	IdentityReal     IdentityType = "real"
	IdentityPublic   IdentityType = "public"
	IdentitySecret   IdentityType = "secret"
	IdentityDisguise IdentityType = "disguise"
)

// IsValid reports whether the identity type is known.
func (t IdentityType) IsValid() bool {
	switch t {
	case IdentityReal, IdentityPublic, IdentitySecret, IdentityDisguise:
		return true
	}
	return false
}

// IsConcealed reports whether identities of this type must be kept hidden
// from other characters until exposed.
func (t IdentityType) IsConcealed() bool {
	return t == IdentitySecret || t == IdentityDisguise
}

// Label returns the display name of the identity type.
func (t IdentityType) Label() string {
	switch t {
	case IdentityReal:
		return "true identity"
	case IdentityPublic:
		return "public identity"
	case IdentitySecret:
		return "secret identity"
	case IdentityDisguise:
		return "disguise"
	}
	return string(t)
}

// IdentityStatus is the latest known status of an identity.
type IdentityStatus string

const (
	IdentityActive   IdentityStatus = "active"
	IdentityInactive IdentityStatus = "inactive"
	IdentityBurned   IdentityStatus = "burned"
)

// IsValid reports whether the status is known.
func (s IdentityStatus) IsValid() bool {
	return s == IdentityActive || s == IdentityInactive || s == IdentityBurned
}

// Identity is one persona a character presents.
//
// Status is the latest known truth and is updated by exposure processing.
// ExposedAtChapter records the chapter in which the identity was first
// revealed; once set it never changes. Point-in-time questions are answered
// by StatusAtChapter and IsExposedAtChapter, never by Status alone.
type Identity struct {
	ID               string         `json:"id"`
	CharacterID      string         `json:"character_id"`
	ProjectID        string         `json:"project_id"`
	Name             string         `json:"name"`
	Type             IdentityType   `json:"identity_type"`
	IsPrimary        bool           `json:"is_primary"`
	Appearance       string         `json:"appearance,omitempty"`
	Personality      string         `json:"personality,omitempty"`
	Background       string         `json:"background,omitempty"`
	VoiceStyle       string         `json:"voice_style,omitempty"`
	Status           IdentityStatus `json:"status"`
	ExposedAtChapter *int           `json:"exposed_at_chapter,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// StatusAtChapter returns the identity's status as observable at the given
// chapter. Without a recorded exposure chapter the current status is
// returned for every chapter.
func (i *Identity) StatusAtChapter(chapter int) IdentityStatus {
	if i.ExposedAtChapter == nil {
		return i.Status
	}
	if chapter >= *i.ExposedAtChapter {
		return IdentityBurned
	}
	return IdentityActive
}

// IsExposedAtChapter reports whether the identity had been revealed by the
// given chapter. Identities burned before exposure chapters were tracked
// count as exposed everywhere.
func (i *Identity) IsExposedAtChapter(chapter int) bool {
	if i.ExposedAtChapter == nil {
		return i.Status == IdentityBurned
	}
	return chapter >= *i.ExposedAtChapter
}

// NewDefaultIdentity returns the primary real identity seeded for a
// character that has none yet.
func NewDefaultIdentity(c *Character) Identity {
	return Identity{
		CharacterID: c.ID,
		ProjectID:   c.ProjectID,
		Name:        c.Name,
		Type:        IdentityReal,
		IsPrimary:   true,
		Personality: c.Personality,
		Background:  c.Background,
		Status:      IdentityActive,
	}
}

// IdentityCareer links an identity to a career with its progression.
type IdentityCareer struct {
	ID            string     `json:"id"`
	IdentityID    string     `json:"identity_id"`
	CareerID      string     `json:"career_id"`
	CareerType    CareerType `json:"career_type"`
	CurrentStage  int        `json:"current_stage"`
	StageProgress int        `json:"stage_progress"`
	StartedAt     string     `json:"started_at,omitempty"`
	ReachedAt     string     `json:"reached_current_stage_at,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
