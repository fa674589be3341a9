package entities

import (
	"encoding/json"
	"strings"
	"time"
)

// Chapter is one chapter of a project. Content is empty until the chapter
// has been written.
type Chapter struct {
	ID            string    `json:"id"`
	ProjectID     string    `json:"project_id"`
	OutlineID     string    `json:"outline_id,omitempty"`
	ChapterNumber int       `json:"chapter_number"`
	Title         string    `json:"title"`
	Summary       string    `json:"summary,omitempty"`
	Content       string    `json:"content,omitempty"`
	ExpansionPlan string    `json:"expansion_plan,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// IsCompleted reports whether the chapter has written content.
func (c *Chapter) IsCompleted() bool {
	return strings.TrimSpace(c.Content) != ""
}

// ExpansionPlan is the structured per-chapter plan produced when an
// outline is expanded into several chapters.
type ExpansionPlan struct {
	PlotSummary    string   `json:"plot_summary" yaml:"plot_summary"`
	KeyEvents      []string `json:"key_events" yaml:"key_events"`
	CharacterFocus []string `json:"character_focus" yaml:"character_focus"`
	EmotionalTone  string   `json:"emotional_tone" yaml:"emotional_tone"`
	NarrativeGoal  string   `json:"narrative_goal" yaml:"narrative_goal"`
	ConflictType   string   `json:"conflict_type" yaml:"conflict_type"`
}

// Plan decodes the chapter's expansion plan. It returns nil when the plan
// is absent or not valid JSON.
func (c *Chapter) Plan() *ExpansionPlan {
	if strings.TrimSpace(c.ExpansionPlan) == "" {
		return nil
	}
	var plan ExpansionPlan
	if err := json.Unmarshal([]byte(c.ExpansionPlan), &plan); err != nil {
		return nil
	}
	return &plan
}

// Outline is an author-written outline entry.
type Outline struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"project_id"`
	OrderIndex int       `json:"order_index"`
	Title      string    `json:"title"`
	Content    string    `json:"content,omitempty"`
	Structure  string    `json:"structure,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// OutlineStructure is the structured JSON attached to an outline.
type OutlineStructure struct {
	Characters    []string `json:"characters"`
	Emotion       string   `json:"emotion"`
	EmotionalTone string   `json:"emotional_tone" yaml:"emotional_tone"`
}

// ParsedStructure decodes the outline structure, returning nil when absent
// or malformed.
func (o *Outline) ParsedStructure() *OutlineStructure {
	if o == nil || strings.TrimSpace(o.Structure) == "" {
		return nil
	}
	var s OutlineStructure
	if err := json.Unmarshal([]byte(o.Structure), &s); err != nil {
		return nil
	}
	return &s
}
