package entities

// ExposureType classifies how an identity was exposed.
type ExposureType string

const (
	ExposureSecretRevealed ExposureType = "secret_revealed"
	ExposureDisguiseBroken ExposureType = "disguise_broken"
)

// AffectsOrganizations reports whether the exposure changes the standing
// of memberships held through the exposed identity.
func (t ExposureType) AffectsOrganizations() bool {
	return t == ExposureSecretRevealed || t == ExposureDisguiseBroken
}

// ExposureEvent is a structured identity exposure detected in a chapter.
type ExposureEvent struct {
	CharacterName        string       `json:"character_name" yaml:"character_name"`
	ExposedIdentityName  string       `json:"exposed_identity_name" yaml:"exposed_identity_name"`
	ExposureType         ExposureType `json:"exposure_type" yaml:"exposure_type"`
	ExposureContext      string       `json:"exposure_context" yaml:"exposure_context"`
	Witnesses            []string     `json:"witnesses" yaml:"witnesses"`
	ImpactOnOrganization string       `json:"impact_on_organization" yaml:"impact_on_organization"`
}

// ChapterAnalysis is the analyzer output consumed by exposure processing.
type ChapterAnalysis struct {
	IdentityExposures []ExposureEvent `json:"identity_exposures" yaml:"identity_exposures"`
}

// MembershipTransition records a membership status change caused by an
// exposure.
type MembershipTransition struct {
	OrganizationID string           `json:"organization_id"`
	MembershipID   string           `json:"membership_id"`
	OldStatus      MembershipStatus `json:"old_status"`
	NewStatus      MembershipStatus `json:"new_status"`
	Reason         string           `json:"reason"`
}

// ExposureResult summarizes the effects of one exposure event.
type ExposureResult struct {
	CharacterName         string                 `json:"character_name"`
	IdentityName          string                 `json:"identity_name"`
	IdentityID            string                 `json:"identity_id,omitempty"`
	IdentityUpdated       bool                   `json:"identity_updated"`
	KnowledgeCreatedCount int                    `json:"knowledge_created_count"`
	KnowledgeRaisedCount  int                    `json:"knowledge_raised_count"`
	OrganizationsAffected []MembershipTransition `json:"organizations_affected"`
	MemoryRecorded        bool                   `json:"memory_recorded"`
	Memory                *StoryMemory           `json:"-"`
	Error                 string                 `json:"error,omitempty"`
}
