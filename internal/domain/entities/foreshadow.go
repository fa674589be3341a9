package entities

import "time"

// ForeshadowStatus tracks a foreshadow through its lifecycle.
type ForeshadowStatus string

const (
	ForeshadowPending  ForeshadowStatus = "pending"
	ForeshadowPlanted  ForeshadowStatus = "planted"
	ForeshadowResolved ForeshadowStatus = "resolved"
)

// IsValid reports whether the status is known.
func (s ForeshadowStatus) IsValid() bool {
	return s == ForeshadowPending || s == ForeshadowPlanted || s == ForeshadowResolved
}

// Foreshadow is a planted hint that a later chapter is expected to pay off.
type Foreshadow struct {
	ID                   string           `json:"id"`
	ProjectID            string           `json:"project_id"`
	Title                string           `json:"title"`
	Content              string           `json:"content"`
	PlantChapter         int              `json:"plant_chapter"`
	TargetResolveChapter int              `json:"target_resolve_chapter,omitempty"`
	Status               ForeshadowStatus `json:"status"`
	Importance           float64          `json:"importance"`
	CreatedAt            time.Time        `json:"created_at"`
}

// IsOverdue reports whether a planted foreshadow should have been resolved
// by the given chapter.
func (f *Foreshadow) IsOverdue(chapter int) bool {
	return f.Status == ForeshadowPlanted && f.TargetResolveChapter > 0 && f.TargetResolveChapter <= chapter
}
