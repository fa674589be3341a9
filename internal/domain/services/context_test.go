package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ersonp/lore-novel/internal/domain/apperrors"
	"github.com/ersonp/lore-novel/internal/domain/entities"
	"github.com/ersonp/lore-novel/internal/domain/mocks"
	"github.com/ersonp/lore-novel/internal/domain/ports"
	"github.com/ersonp/lore-novel/internal/infrastructure/relationaldb/sqlite"
)

func planJSON(t *testing.T, plan entities.ExpansionPlan) string {
	t.Helper()
	data, err := json.Marshal(plan)
	require.NoError(t, err)
	return string(data)
}

func seedPlannedChapter(t *testing.T, db *sqlite.Repository, p *entities.Project, number int, content string, plan entities.ExpansionPlan) *entities.Chapter {
	t.Helper()
	ch := &entities.Chapter{
		ProjectID:     p.ID,
		ChapterNumber: number,
		Title:         "Chapter title",
		Content:       content,
		ExpansionPlan: planJSON(t, plan),
	}
	require.NoError(t, db.SaveChapter(t.Context(), ch))
	return ch
}

func TestContextBuilder_Build_Rejections(t *testing.T) {
	db := setupStore(t)
	p := seedProject(t, db, entities.OutlineOneToMany)
	seedChapter(t, db, p, 1, "")
	b := NewContextBuilder(db, nil, nil, nil, nil, nil)

	tests := []struct {
		name     string
		req      BuildRequest
		sentinel error
	}{
		{"chapter zero", BuildRequest{ProjectID: p.ID, ChapterNumber: 0}, apperrors.ErrValidation},
		{"negative target", BuildRequest{ProjectID: p.ID, ChapterNumber: 1, TargetWordCount: -1}, apperrors.ErrValidation},
		{"missing project", BuildRequest{ProjectID: "nope", ChapterNumber: 1}, apperrors.ErrNotFound},
		{"missing chapter", BuildRequest{ProjectID: p.ID, ChapterNumber: 2}, apperrors.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Build(t.Context(), tt.req)
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

func TestContextBuilder_Build_FirstChapter(t *testing.T) {
	db := setupStore(t)
	p := seedProject(t, db, entities.OutlineOneToMany)
	seedChapter(t, db, p, 1, "")
	seedCharacter(t, db, p, "Ming Lou")
	metrics := &mocks.Metrics{}
	b := NewContextBuilder(db, nil, nil, mocks.TokenCounter{}, metrics, nil)

	cc, err := b.Build(t.Context(), BuildRequest{ProjectID: p.ID, ChapterNumber: 1})
	require.NoError(t, err)

	assert.Equal(t, "No outline available", cc.ChapterOutline)
	assert.Equal(t, 3000, cc.TargetWordCount)
	assert.Equal(t, 2500, cc.MinWordCount)
	assert.Equal(t, 4000, cc.MaxWordCount)
	assert.Equal(t, "third person", cc.NarrativePerspective)
	assert.Equal(t, "unset", cc.EmotionalTone)
	assert.Empty(t, cc.ContinuationPoint)
	assert.Empty(t, cc.PreviousSummary)
	assert.Empty(t, cc.RelevantMemories)
	assert.Empty(t, cc.StorySkeleton)
	assert.Empty(t, cc.CharacterIdentities)
	assert.Equal(t, "- Ming Lou (supporting): Ming Lou keeps their own counsel", cc.CharactersInfo)
	assert.Equal(t, "The Disguiser", cc.Title)

	assert.False(t, cc.Stats.HasContinuation)
	assert.Equal(t, cc.TotalLength(), cc.Stats.TotalLength)
	assert.Positive(t, cc.Stats.EstimatedTokens)
	require.Len(t, metrics.Contexts, 1)
	assert.Equal(t, cc.Stats, metrics.Contexts[0])
}

func TestContextBuilder_Build_WordCountsAndPerspective(t *testing.T) {
	db := setupStore(t)
	p := &entities.Project{Title: "Told by me", NarrativePerspective: "first person"}
	require.NoError(t, db.SaveProject(t.Context(), p))
	seedChapter(t, db, p, 1, "")
	b := NewContextBuilder(db, nil, nil, nil, nil, nil)

	cc, err := b.Build(t.Context(), BuildRequest{ProjectID: p.ID, ChapterNumber: 1, TargetWordCount: 800})
	require.NoError(t, err)
	assert.Equal(t, 800, cc.TargetWordCount)
	assert.Equal(t, 500, cc.MinWordCount)
	assert.Equal(t, 1800, cc.MaxWordCount)
	assert.Equal(t, "first person", cc.NarrativePerspective)

	cc, err = b.Build(t.Context(), BuildRequest{ProjectID: p.ID, ChapterNumber: 1, Perspective: "second person"})
	require.NoError(t, err)
	assert.Equal(t, "second person", cc.NarrativePerspective)
}

func TestContextBuilder_Build_OutlineSelection(t *testing.T) {
	t.Run("one-to-many prefers the expansion plan", func(t *testing.T) {
		db := setupStore(t)
		p := seedProject(t, db, entities.OutlineOneToMany)
		seedPlannedChapter(t, db, p, 1, "", entities.ExpansionPlan{
			PlotSummary:    "Ming Lou returns",
			KeyEvents:      []string{"arrival"},
			CharacterFocus: []string{"Ming Lou"},
			EmotionalTone:  "uneasy",
		})
		b := NewContextBuilder(db, nil, nil, nil, nil, nil)

		cc, err := b.Build(t.Context(), BuildRequest{ProjectID: p.ID, ChapterNumber: 1})
		require.NoError(t, err)
		expected := "Plot summary: Ming Lou returns\n\nKey events:\n- arrival\n\n" +
			"Character focus: Ming Lou\nEmotional tone: uneasy\nNarrative goal: unset\nConflict type: unset"
		assert.Equal(t, expected, cc.ChapterOutline)
		assert.Equal(t, "uneasy", cc.EmotionalTone)
	})

	t.Run("one-to-one prefers the outline entry", func(t *testing.T) {
		db := setupStore(t)
		p := seedProject(t, db, entities.OutlineOneToOne)
		require.NoError(t, db.SaveOutline(t.Context(), &entities.Outline{
			ProjectID:  p.ID,
			OrderIndex: 3,
			Title:      "Homecoming",
			Content:    "Ming Lou comes home",
			Structure:  `{"characters":["Ming Cheng"],"emotion":"tense"}`,
		}))
		seedPlannedChapter(t, db, p, 3, "", entities.ExpansionPlan{PlotSummary: "ignored", CharacterFocus: []string{"Ming Lou"}})
		seedCharacter(t, db, p, "Ming Lou")
		seedCharacter(t, db, p, "Ming Cheng")
		b := NewContextBuilder(db, nil, nil, nil, nil, nil)

		cc, err := b.Build(t.Context(), BuildRequest{ProjectID: p.ID, ChapterNumber: 3})
		require.NoError(t, err)
		assert.Equal(t, "Ming Lou comes home", cc.ChapterOutline)
		assert.Equal(t, "tense", cc.EmotionalTone)
		assert.Equal(t, "- Ming Cheng (supporting): Ming Cheng keeps their own counsel", cc.CharactersInfo)
	})

	t.Run("falls back to the chapter summary", func(t *testing.T) {
		db := setupStore(t)
		p := seedProject(t, db, entities.OutlineOneToMany)
		require.NoError(t, db.SaveChapter(t.Context(), &entities.Chapter{
			ProjectID: p.ID, ChapterNumber: 1, Title: "One", Summary: "a quiet start",
		}))
		b := NewContextBuilder(db, nil, nil, nil, nil, nil)

		cc, err := b.Build(t.Context(), BuildRequest{ProjectID: p.ID, ChapterNumber: 1})
		require.NoError(t, err)
		assert.Equal(t, "a quiet start", cc.ChapterOutline)
	})
}

func TestContextBuilder_Build_Continuation(t *testing.T) {
	tests := []struct {
		name          string
		chapter       int
		endingLength  int
		previousWords string
	}{
		{"early chapter", 2, 300, strings.Repeat("x", 100) + strings.Repeat("y", 300)},
		{"tenth chapter", 10, 300, strings.Repeat("x", 100) + strings.Repeat("y", 300)},
		{"later chapter", 11, 500, strings.Repeat("x", 100) + strings.Repeat("y", 500)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := setupStore(t)
			p := seedProject(t, db, entities.OutlineOneToMany)
			seedChapter(t, db, p, tt.chapter-1, "  "+tt.previousWords+"\n")
			seedChapter(t, db, p, tt.chapter, "")
			b := NewContextBuilder(db, nil, nil, nil, nil, nil)

			cc, err := b.Build(t.Context(), BuildRequest{ProjectID: p.ID, ChapterNumber: tt.chapter})
			require.NoError(t, err)
			assert.Equal(t, strings.Repeat("y", tt.endingLength), cc.ContinuationPoint)
			assert.True(t, cc.Stats.HasContinuation)
			assert.Equal(t, tt.endingLength, cc.Stats.ContinuationLength)
		})
	}
}

func TestContextBuilder_Build_PreviousSummaryAndEvents(t *testing.T) {
	t.Run("summary memory and plan events", func(t *testing.T) {
		db := setupStore(t)
		p := seedProject(t, db, entities.OutlineOneToMany)
		prev := seedPlannedChapter(t, db, p, 4, "done", entities.ExpansionPlan{
			PlotSummary: "plan summary",
			KeyEvents:   []string{"e1", "e2", "e3", "e4", "e5", "e6", "e7"},
		})
		prev.Summary = "row summary"
		require.NoError(t, db.SaveChapter(t.Context(), prev))
		require.NoError(t, db.SaveMemory(t.Context(), &entities.StoryMemory{
			ProjectID: p.ID, MemoryType: entities.MemoryChapterSummary, Content: "memory summary", StoryTimeline: 4,
		}))
		seedChapter(t, db, p, 5, "")
		b := NewContextBuilder(db, nil, nil, nil, nil, nil)

		cc, err := b.Build(t.Context(), BuildRequest{ProjectID: p.ID, ChapterNumber: 5})
		require.NoError(t, err)
		assert.Equal(t, "memory summary", cc.PreviousSummary)
		assert.Equal(t, []string{"e1", "e2", "e3", "e4", "e5"}, cc.PreviousKeyEvents)
	})

	t.Run("row summary and plot point memories", func(t *testing.T) {
		db := setupStore(t)
		p := seedProject(t, db, entities.OutlineOneToMany)
		require.NoError(t, db.SaveChapter(t.Context(), &entities.Chapter{
			ProjectID: p.ID, ChapterNumber: 4, Title: "Four", Content: "done", Summary: strings.Repeat("s", 400),
		}))
		for i, importance := range []float64{0.2, 0.9} {
			require.NoError(t, db.SaveMemory(t.Context(), &entities.StoryMemory{
				ProjectID:       p.ID,
				MemoryType:      entities.MemoryPlotPoint,
				Content:         fmt.Sprintf("point %d %s", i, strings.Repeat("p", 150)),
				StoryTimeline:   4,
				ImportanceScore: importance,
			}))
		}
		seedChapter(t, db, p, 5, "")
		b := NewContextBuilder(db, nil, nil, nil, nil, nil)

		cc, err := b.Build(t.Context(), BuildRequest{ProjectID: p.ID, ChapterNumber: 5})
		require.NoError(t, err)
		assert.Equal(t, strings.Repeat("s", 300), cc.PreviousSummary)
		require.Len(t, cc.PreviousKeyEvents, 2)
		assert.True(t, strings.HasPrefix(cc.PreviousKeyEvents[0], "point 1 "))
		assert.Equal(t, 100, utf8.RuneCountInString(cc.PreviousKeyEvents[0]))
	})

	t.Run("plan summary last", func(t *testing.T) {
		db := setupStore(t)
		p := seedProject(t, db, entities.OutlineOneToMany)
		seedPlannedChapter(t, db, p, 4, "done", entities.ExpansionPlan{PlotSummary: "plan summary"})
		seedChapter(t, db, p, 5, "")
		b := NewContextBuilder(db, nil, nil, nil, nil, nil)

		cc, err := b.Build(t.Context(), BuildRequest{ProjectID: p.ID, ChapterNumber: 5})
		require.NoError(t, err)
		assert.Equal(t, "plan summary", cc.PreviousSummary)
		assert.Empty(t, cc.PreviousKeyEvents)
	})
}

func TestContextBuilder_Build_RosterAndStyle(t *testing.T) {
	db := setupStore(t)
	p := seedProject(t, db, entities.OutlineOneToMany)
	for i := range 12 {
		seedCharacter(t, db, p, fmt.Sprintf("Extra %02d", i))
	}
	seedChapter(t, db, p, 1, "")
	b := NewContextBuilder(db, nil, nil, nil, nil, nil)

	cc, err := b.Build(t.Context(), BuildRequest{
		ProjectID:     p.ID,
		ChapterNumber: 1,
		StyleContent:  strings.Repeat("z", 250),
	})
	require.NoError(t, err)
	lines := strings.Split(cc.CharactersInfo, "\n")
	assert.Len(t, lines, 10)
	assert.Equal(t, "- Extra 00 (supporting): Extra 00 keeps their own counsel", lines[0])
	assert.Equal(t, strings.Repeat("z", 200)+"...", cc.StyleContent)
}

func TestContextBuilder_Build_RelevantMemories(t *testing.T) {
	memories := make([]entities.StoryMemory, 5)
	for i := range memories {
		memories[i] = entities.StoryMemory{Content: strings.Repeat(string(rune('a'+i)), 200), ImportanceScore: 0.8}
	}

	tests := []struct {
		name       string
		chapter    int
		wantSearch bool
		wantLimit  int
	}{
		{"early chapter skips search", 10, false, 0},
		{"middle chapter", 11, true, 3},
		{"fiftieth chapter", 50, true, 3},
		{"late chapter", 51, true, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := setupStore(t)
			p := seedProject(t, db, entities.OutlineOneToMany)
			seedChapter(t, db, p, tt.chapter, "")
			foreshadows := []*entities.Foreshadow{
				{PlantChapter: tt.chapter - 10, Content: strings.Repeat("f", 100)},
				{PlantChapter: tt.chapter - 3, Content: "too recent"},
				{PlantChapter: tt.chapter - 9, Content: "second due"},
				{PlantChapter: tt.chapter - 8, Content: "third due"},
			}
			searcher := &mocks.MemorySearcher{Memories: memories, Foreshadows: foreshadows}
			b := NewContextBuilder(db, searcher, nil, nil, nil, nil)

			cc, err := b.Build(t.Context(), BuildRequest{ProjectID: p.ID, ChapterNumber: tt.chapter})
			require.NoError(t, err)

			if !tt.wantSearch {
				assert.Equal(t, 0, searcher.SearchCallCount)
				assert.Empty(t, cc.RelevantMemories)
				return
			}
			assert.Equal(t, tt.wantLimit, searcher.LastLimit)
			assert.InDelta(t, 0.7, searcher.LastMinImportance, 1e-9)
			assert.Equal(t, "No outline available", searcher.LastQuery)

			assert.LessOrEqual(t, utf8.RuneCountInString(cc.RelevantMemories), 500)
			first := fmt.Sprintf("[Foreshadowing to resolve]\n- Planted in chapter %d: %s\n", tt.chapter-10, strings.Repeat("f", 60))
			assert.True(t, strings.HasPrefix(cc.RelevantMemories, first))
			assert.Contains(t, cc.RelevantMemories, fmt.Sprintf("- Planted in chapter %d: second due", tt.chapter-9))
			assert.NotContains(t, cc.RelevantMemories, "too recent")
			assert.NotContains(t, cc.RelevantMemories, "third due")
			assert.Contains(t, cc.RelevantMemories, "[Relevant memories]\n- "+strings.Repeat("a", 80))
			assert.NotContains(t, cc.RelevantMemories, strings.Repeat("a", 81))
		})
	}
}

func TestContextBuilder_Build_OptionalLayersDegrade(t *testing.T) {
	db := setupStore(t)
	p := seedProject(t, db, entities.OutlineOneToMany)
	seedChapter(t, db, p, 20, "")
	core, logs := observer.New(zap.WarnLevel)
	searcher := &mocks.MemorySearcher{SearchErr: errors.New("index down")}
	provider := &mocks.ForeshadowProvider{Err: errors.New("boom")}
	b := NewContextBuilder(db, searcher, provider, nil, nil, zap.New(core))

	cc, err := b.Build(t.Context(), BuildRequest{ProjectID: p.ID, ChapterNumber: 20})
	require.NoError(t, err)
	assert.Empty(t, cc.RelevantMemories)
	assert.Empty(t, cc.ForeshadowReminders)
	assert.Equal(t, 1, logs.FilterMessage("memory search unavailable").Len())
	assert.Equal(t, 1, logs.FilterMessage("foreshadow reminders unavailable").Len())

	searcher = &mocks.MemorySearcher{
		Memories:      []entities.StoryMemory{{Content: "still here"}},
		ForeshadowErr: errors.New("boom"),
	}
	b = NewContextBuilder(db, searcher, nil, nil, nil, zap.New(core))
	cc, err = b.Build(t.Context(), BuildRequest{ProjectID: p.ID, ChapterNumber: 20})
	require.NoError(t, err)
	assert.Equal(t, "[Relevant memories]\n- still here", cc.RelevantMemories)
	assert.Equal(t, 1, logs.FilterMessage("unresolved foreshadows unavailable").Len())
}

func TestContextBuilder_Build_ForeshadowReminders(t *testing.T) {
	db := setupStore(t)
	p := seedProject(t, db, entities.OutlineOneToMany)
	seedChapter(t, db, p, 3, "")
	provider := &mocks.ForeshadowProvider{Text: "[Due soon]\n- Ring"}
	b := NewContextBuilder(db, nil, provider, nil, nil, nil)

	cc, err := b.Build(t.Context(), BuildRequest{ProjectID: p.ID, ChapterNumber: 3})
	require.NoError(t, err)
	assert.Equal(t, "[Due soon]\n- Ring", cc.ForeshadowReminders)
	assert.Equal(t, ports.ForeshadowContextOptions{IncludePending: true, IncludeOverdue: true, Lookahead: 5}, provider.LastOptions)
}

func TestContextBuilder_Build_StorySkeleton(t *testing.T) {
	db := setupStore(t)
	p := seedProject(t, db, entities.OutlineOneToMany)
	for n := 1; n <= 50; n++ {
		seedChapter(t, db, p, n, "text")
	}
	seedChapter(t, db, p, 51, "")
	require.NoError(t, db.SaveMemory(t.Context(), &entities.StoryMemory{
		ProjectID: p.ID, MemoryType: entities.MemoryChapterSummary, Content: "summary of eleven", StoryTimeline: 11,
	}))
	b := NewContextBuilder(db, nil, nil, nil, nil, nil)

	cc, err := b.Build(t.Context(), BuildRequest{ProjectID: p.ID, ChapterNumber: 51})
	require.NoError(t, err)
	expected := "[Story skeleton]\n" +
		"Chapter 1 \"Chapter title\"\n" +
		"Chapter 11 \"Chapter title\": summary of eleven\n" +
		"Chapter 21 \"Chapter title\"\n" +
		"Chapter 31 \"Chapter title\"\n" +
		"Chapter 41 \"Chapter title\""
	assert.Equal(t, expected, cc.StorySkeleton)

	cc, err = b.Build(t.Context(), BuildRequest{ProjectID: p.ID, ChapterNumber: 50})
	require.NoError(t, err)
	assert.Empty(t, cc.StorySkeleton)
}

func TestContextBuilder_Build_StorySkeletonSamplesAndCaps(t *testing.T) {
	db := setupStore(t)
	p := seedProject(t, db, entities.OutlineOneToMany)
	for n := 1; n <= 51; n++ {
		seedChapter(t, db, p, n, "text")
	}
	seedChapter(t, db, p, 52, "")
	require.NoError(t, db.SaveMemory(t.Context(), &entities.StoryMemory{
		ProjectID: p.ID, MemoryType: entities.MemoryChapterSummary, Content: strings.Repeat("谍", 150), StoryTimeline: 51,
	}))
	b := NewContextBuilder(db, nil, nil, nil, nil, nil)

	cc, err := b.Build(t.Context(), BuildRequest{ProjectID: p.ID, ChapterNumber: 52})
	require.NoError(t, err)

	lines := strings.Split(cc.StorySkeleton, "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, "[Story skeleton]", lines[0])
	for i, n := range []int{1, 11, 21, 31, 41} {
		assert.Equal(t, fmt.Sprintf("Chapter %d \"Chapter title\"", n), lines[i+1])
	}

	prefix := "Chapter 51 \"Chapter title\": "
	require.True(t, strings.HasPrefix(lines[6], prefix))
	summary := strings.TrimPrefix(lines[6], prefix)
	assert.Equal(t, 100, utf8.RuneCountInString(summary))
	assert.Equal(t, strings.Repeat("谍", 100), summary)
}

func TestContextBuilder_Build_CharacterIdentities(t *testing.T) {
	db := setupStore(t)
	w := seedSpyWorld(t, db)
	changed, err := db.MarkIdentityBurned(t.Context(), w.viper.ID, 12)
	require.NoError(t, err)
	require.True(t, changed)
	seedChapter(t, db, w.project, 11, "")
	b := NewContextBuilder(db, nil, nil, nil, nil, nil)

	t.Run("before the exposure", func(t *testing.T) {
		cc, err := b.Build(t.Context(), BuildRequest{ProjectID: w.project.ID, ChapterNumber: 11})
		require.NoError(t, err)
		expected := "[Character identities]\n" +
			"Character: Ming Lou\n" +
			"  - Ming Lou [true identity, primary identity]\n" +
			"  - Viper [secret identity, secrecy required] [known by 1 people] | known by: Ming Cheng ✓ (suspects)\n" +
			"  - Economist [public identity]"
		assert.Equal(t, expected, cc.CharacterIdentities)
	})

	t.Run("after the exposure", func(t *testing.T) {
		cc, err := b.Build(t.Context(), BuildRequest{ProjectID: w.project.ID, ChapterNumber: 12})
		require.NoError(t, err)
		assert.Contains(t, cc.CharacterIdentities, "  - Viper [secret identity, exposed] [exposed] | known by: Ming Cheng ✓ (suspects)")
		assert.NotContains(t, cc.CharacterIdentities, "secrecy required")
	})
}

func TestContextBuilder_Build_IdentitiesHiddenFromChapterCast(t *testing.T) {
	db := setupStore(t)
	w := seedSpyWorld(t, db)
	seedPlannedChapter(t, db, w.project, 5, "", entities.ExpansionPlan{
		CharacterFocus: []string{"Ming Lou", "Wang Manchun"},
	})
	career := &entities.Career{
		ProjectID: w.project.ID,
		Name:      "Intelligence",
		Type:      entities.CareerMain,
		MaxStage:  3,
		Stages:    []entities.CareerStage{{Level: 1, Name: "Agent"}, {Level: 2, Name: "Section chief"}},
	}
	require.NoError(t, db.SaveCareer(t.Context(), career))
	require.NoError(t, db.SaveIdentityCareer(t.Context(), &entities.IdentityCareer{
		IdentityID: w.viper.ID, CareerID: career.ID, CareerType: entities.CareerMain, CurrentStage: 2,
	}))
	b := NewContextBuilder(db, nil, nil, nil, nil, nil)

	cc, err := b.Build(t.Context(), BuildRequest{ProjectID: w.project.ID, ChapterNumber: 5})
	require.NoError(t, err)
	assert.Contains(t, cc.CharacterIdentities,
		"  - Viper [secret identity, secrecy required] [characters in this chapter should not know]"+
			" | careers: Intelligence (Section chief) | known by: Ming Cheng (suspects)")
	assert.NotContains(t, cc.CharactersInfo, "Ming Cheng")
}

func TestContextBuilder_Build_LegacyBurnedIdentity(t *testing.T) {
	db := setupStore(t)
	w := seedSpyWorld(t, db)
	burned := entities.IdentityBurned
	_, err := NewIdentityService(db, nil).Update(t.Context(), w.economist.ID, IdentityPatch{Status: &burned})
	require.NoError(t, err)
	seedChapter(t, db, w.project, 2, "")
	b := NewContextBuilder(db, nil, nil, nil, nil, nil)

	cc, err := b.Build(t.Context(), BuildRequest{ProjectID: w.project.ID, ChapterNumber: 2})
	require.NoError(t, err)
	assert.Contains(t, cc.CharacterIdentities, "  - Economist [public identity, exposed] [exposed]")
}

func TestFormatMemoryBlock(t *testing.T) {
	tests := []struct {
		name     string
		memories []entities.StoryMemory
		due      []*entities.Foreshadow
		expected string
	}{
		{"empty", nil, nil, ""},
		{
			name:     "memories only",
			memories: []entities.StoryMemory{{Content: "one"}, {Content: "two"}},
			expected: "[Relevant memories]\n- one\n- two",
		},
		{
			name:     "foreshadows first",
			memories: []entities.StoryMemory{{Content: "one"}},
			due:      []*entities.Foreshadow{{PlantChapter: 3, Content: "the ring"}},
			expected: "[Foreshadowing to resolve]\n- Planted in chapter 3: the ring\n[Relevant memories]\n- one",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatMemoryBlock(tt.memories, tt.due))
		})
	}
}

func TestFormatMemoryBlock_RespectsBudget(t *testing.T) {
	memories := make([]entities.StoryMemory, 20)
	for i := range memories {
		memories[i] = entities.StoryMemory{Content: strings.Repeat("m", 80)}
	}

	block := formatMemoryBlock(memories, nil)
	assert.LessOrEqual(t, utf8.RuneCountInString(block), 500)
	// header (19) + 5 items of 82 runes + 5 newlines = 434; a sixth item would exceed the budget.
	assert.Equal(t, 5, strings.Count(block, "\n- "))
}
