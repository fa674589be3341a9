// Package entities contains core domain data structures.
package entities

import "time"

// OutlineMode describes how outlines map onto chapters.
type OutlineMode string

const (
	// OutlineOneToOne means every outline row describes exactly one chapter.
	OutlineOneToOne OutlineMode = "one-to-one"
	// OutlineOneToMany means an outline is expanded into several chapters,
	// each carrying its own structured expansion plan.
	OutlineOneToMany OutlineMode = "one-to-many"
)

// IsValid reports whether the mode is a known outline mode.
func (m OutlineMode) IsValid() bool {
	return m == OutlineOneToOne || m == OutlineOneToMany
}

// Project is a single novel.
type Project struct {
	ID                   string      `json:"id"`
	Title                string      `json:"title"`
	Genre                string      `json:"genre,omitempty"`
	Theme                string      `json:"theme,omitempty"`
	NarrativePerspective string      `json:"narrative_perspective,omitempty"`
	OutlineMode          OutlineMode `json:"outline_mode"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}
