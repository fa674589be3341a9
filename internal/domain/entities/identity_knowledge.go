package entities

import "time"

// KnowledgeLevel is how much a character knows about an identity.
// Levels form the ordered lattice suspected < partial < full.
type KnowledgeLevel string

const (
	KnowledgeSuspected KnowledgeLevel = "suspected"
	KnowledgePartial   KnowledgeLevel = "partial"
	KnowledgeFull      KnowledgeLevel = "full"
)

// IsValid reports whether the level is known.
func (l KnowledgeLevel) IsValid() bool {
	return l.rank() > 0
}

func (l KnowledgeLevel) rank() int {
	switch l {
	case KnowledgeSuspected:
		return 1
	case KnowledgePartial:
		return 2
	case KnowledgeFull:
		return 3
	}
	return 0
}

// Merge returns the higher of the two levels. Merging never lowers a level.
func (l KnowledgeLevel) Merge(other KnowledgeLevel) KnowledgeLevel {
	if other.rank() > l.rank() {
		return other
	}
	return l
}

// Label returns the display label for the level.
func (l KnowledgeLevel) Label() string {
	switch l {
	case KnowledgeFull:
		return "fully aware"
	case KnowledgePartial:
		return "partially aware"
	case KnowledgeSuspected:
		return "suspects"
	}
	return string(l)
}

// IdentityKnowledge records that a character knows about an identity.
type IdentityKnowledge struct {
	ID                string         `json:"id"`
	IdentityID        string         `json:"identity_id"`
	KnowerCharacterID string         `json:"knower_character_id"`
	KnowledgeLevel    KnowledgeLevel `json:"knowledge_level"`
	DiscoveredHow     string         `json:"discovered_how,omitempty"`
	SinceWhen         string         `json:"since_when,omitempty"`
	IsSecret          bool           `json:"is_secret"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}
