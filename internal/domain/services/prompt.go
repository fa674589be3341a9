package services

import (
	"fmt"
	"strings"

	"github.com/ersonp/lore-novel/internal/domain/entities"
)

// RenderPrompt lays out a chapter context as labelled prompt sections,
// most important first. Empty layers are left out.
func RenderPrompt(cc *entities.ChapterContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Chapter %d", cc.ChapterNumber)
	if cc.ChapterTitle != "" {
		fmt.Fprintf(&b, ": %s", cc.ChapterTitle)
	}
	b.WriteString("\n")

	meta := []string{"Novel: " + cc.Title}
	if cc.Genre != "" {
		meta = append(meta, "Genre: "+cc.Genre)
	}
	if cc.Theme != "" {
		meta = append(meta, "Theme: "+cc.Theme)
	}
	b.WriteString(strings.Join(meta, " | "))
	b.WriteString("\n")

	writeSection(&b, "Chapter outline", cc.ChapterOutline)

	if cc.PreviousSummary != "" || len(cc.PreviousKeyEvents) > 0 || cc.ContinuationPoint != "" {
		var prev strings.Builder
		if cc.PreviousSummary != "" {
			fmt.Fprintf(&prev, "Summary: %s\n", cc.PreviousSummary)
		}
		if len(cc.PreviousKeyEvents) > 0 {
			prev.WriteString("Key events:\n")
			for _, e := range cc.PreviousKeyEvents {
				fmt.Fprintf(&prev, "- %s\n", e)
			}
		}
		if cc.ContinuationPoint != "" {
			fmt.Fprintf(&prev, "Ending (continue from here):\n%s\n", cc.ContinuationPoint)
		}
		writeSection(&b, "Previous chapter", strings.TrimRight(prev.String(), "\n"))
	}

	writeSection(&b, "Characters", cc.CharactersInfo)
	writeSection(&b, "Character identities", cc.CharacterIdentities)
	writeSection(&b, "Emotional tone", cc.EmotionalTone)
	writeSection(&b, "Writing style", cc.StyleContent)
	writeSection(&b, "Relevant memories", cc.RelevantMemories)
	writeSection(&b, "Story skeleton", cc.StorySkeleton)
	writeSection(&b, "Foreshadowing", cc.ForeshadowReminders)

	writeSection(&b, "Requirements", fmt.Sprintf(
		"- Narrative perspective: %s\n- Length: %d-%d words (target %d)",
		cc.NarrativePerspective, cc.MinWordCount, cc.MaxWordCount, cc.TargetWordCount,
	))

	return b.String()
}

func writeSection(b *strings.Builder, title, body string) {
	if strings.TrimSpace(body) == "" {
		return
	}
	fmt.Fprintf(b, "\n## %s\n%s\n", title, body)
}
