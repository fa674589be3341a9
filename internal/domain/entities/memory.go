package entities

import "time"

// MemoryType tags a story memory. The values are shared with every writer
// and reader of story memories.
type MemoryType string

const (
	MemoryChapterSummary   MemoryType = "chapter_summary"
	MemoryPlotPoint        MemoryType = "plot_point"
	MemoryIdentityExposure MemoryType = "identity_exposure"
	MemoryCharacterEvent   MemoryType = "character_event"
	MemoryForeshadow       MemoryType = "foreshadow"
)

// StoryMemory is a narrative memory extracted from or written about a
// chapter. StoryTimeline is the chapter number the memory belongs to.
type StoryMemory struct {
	ID              string         `json:"id"`
	ProjectID       string         `json:"project_id"`
	ChapterID       string         `json:"chapter_id,omitempty"`
	MemoryType      MemoryType     `json:"memory_type"`
	Title           string         `json:"title,omitempty"`
	Content         string         `json:"content"`
	StoryTimeline   int            `json:"story_timeline"`
	ImportanceScore float64        `json:"importance_score"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	Embedding       []float32      `json:"-"`
	Score           float32        `json:"score,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}
