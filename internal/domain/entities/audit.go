package entities

import "time"

// Audit actions written by exposure processing.
const (
	AuditIdentityBurned       = "identity_burned"
	AuditMembershipTransition = "membership_transition"
	AuditKnowledgeRaised      = "knowledge_raised"
)

// AuditEntry represents a logged action in the system.
type AuditEntry struct {
	ID        int64          `json:"id"`
	ProjectID string         `json:"project_id,omitempty"`
	Action    string         `json:"action"`
	SubjectID string         `json:"subject_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
