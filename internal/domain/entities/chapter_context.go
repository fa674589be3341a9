package entities

import "unicode/utf8"

// ChapterContext is the prompt bundle assembled for one chapter generation.
// Fields are grouped by priority; empty strings mean the layer was omitted.
type ChapterContext struct {
	ChapterNumber int    `json:"chapter_number"`
	ChapterTitle  string `json:"chapter_title"`

	// Core layer, always present.
	ChapterOutline       string   `json:"chapter_outline"`
	ContinuationPoint    string   `json:"continuation_point,omitempty"`
	PreviousSummary      string   `json:"previous_chapter_summary,omitempty"`
	PreviousKeyEvents    []string `json:"previous_key_events,omitempty"`
	TargetWordCount      int      `json:"target_word_count"`
	MinWordCount         int      `json:"min_word_count"`
	MaxWordCount         int      `json:"max_word_count"`
	NarrativePerspective string   `json:"narrative_perspective"`

	// Important layer.
	CharactersInfo string `json:"characters_info,omitempty"`
	EmotionalTone  string `json:"emotional_tone"`
	StyleContent   string `json:"style_instruction,omitempty"`

	// Reference layer.
	RelevantMemories    string `json:"relevant_memories,omitempty"`
	StorySkeleton       string `json:"story_skeleton,omitempty"`
	ForeshadowReminders string `json:"foreshadow_reminders,omitempty"`
	CharacterIdentities string `json:"character_identities,omitempty"`

	// Project metadata.
	Title string `json:"title"`
	Genre string `json:"genre,omitempty"`
	Theme string `json:"theme,omitempty"`

	Stats ContextStats `json:"stats"`
}

// ContextStats records the size of each populated field of a build.
type ContextStats struct {
	ChapterNumber      int  `json:"chapter_number"`
	HasContinuation    bool `json:"has_continuation"`
	OutlineLength      int  `json:"outline_length"`
	ContinuationLength int  `json:"continuation_length"`
	SummaryLength      int  `json:"summary_length"`
	CharactersLength   int  `json:"characters_length"`
	StyleLength        int  `json:"style_length"`
	MemoriesLength     int  `json:"memories_length"`
	SkeletonLength     int  `json:"skeleton_length"`
	ForeshadowLength   int  `json:"foreshadow_length"`
	IdentitiesLength   int  `json:"identities_length"`
	TotalLength        int  `json:"total_length"`
	EstimatedTokens    int  `json:"estimated_tokens,omitempty"`
}

// TotalLength returns the character count of every text field of the
// bundle.
func (c *ChapterContext) TotalLength() int {
	total := 0
	for _, s := range []string{
		c.ChapterOutline,
		c.ContinuationPoint,
		c.PreviousSummary,
		c.CharactersInfo,
		c.EmotionalTone,
		c.StyleContent,
		c.RelevantMemories,
		c.StorySkeleton,
		c.ForeshadowReminders,
		c.CharacterIdentities,
	} {
		total += utf8.RuneCountInString(s)
	}
	for _, e := range c.PreviousKeyEvents {
		total += utf8.RuneCountInString(e)
	}
	return total
}
