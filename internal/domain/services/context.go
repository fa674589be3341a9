package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ersonp/lore-novel/internal/domain/apperrors"
	"github.com/ersonp/lore-novel/internal/domain/entities"
	"github.com/ersonp/lore-novel/internal/domain/ports"
)

// Context sizing policy. Chapter thresholds are inclusive upper bounds of
// the earlier tier.
const (
	shortEndingMaxChapter     = 10
	endingLengthShort         = 300
	endingLengthNormal        = 500
	summaryMaxLength          = 300
	keyEventLimit             = 5
	keyEventMaxLength         = 100
	rosterLimit               = 10
	personalityMaxLength      = 50
	styleMaxLength            = 200
	memoryMinChapter          = 10
	lightMemoryMaxChapter     = 50
	memoryCountLight          = 3
	memoryCountFull           = 5
	memoryImportanceThreshold = 0.7
	memoryBlockMaxLength      = 500
	memoryItemMaxLength       = 80
	dueForeshadowAge          = 5
	dueForeshadowLimit        = 2
	dueForeshadowMaxLength    = 60
	skeletonMinChapter        = 50
	skeletonSampleInterval    = 10
	skeletonSummaryMaxLength  = 100
	foreshadowLookahead       = 5
	identityCharacterLimit    = 8

	defaultTargetWordCount = 3000
	minWordCountFloor      = 500
	minWordCountSlack      = 500
	maxWordCountSlack      = 1000

	defaultPerspective = "third person"
	noOutline          = "No outline available"
	unsetTone          = "unset"
)

// BuildRequest selects the chapter to build a context for.
type BuildRequest struct {
	ProjectID       string
	ChapterNumber   int
	StyleContent    string
	TargetWordCount int
	// Perspective overrides the project's narrative perspective.
	Perspective string
}

// ContextBuilder assembles the prompt context for generating a chapter.
// The amount of history it pulls in grows with the chapter number.
type ContextBuilder struct {
	db          ports.StoryDB
	searcher    ports.MemorySearcher
	foreshadows ports.ForeshadowProvider
	tokens      ports.TokenCounter
	metrics     ports.Metrics
	logger      *zap.Logger
}

// NewContextBuilder creates a new ContextBuilder. Every collaborator except
// db may be nil, which disables the layer it feeds.
func NewContextBuilder(
	db ports.StoryDB,
	searcher ports.MemorySearcher,
	foreshadows ports.ForeshadowProvider,
	tokens ports.TokenCounter,
	metrics ports.Metrics,
	logger *zap.Logger,
) *ContextBuilder {
	return &ContextBuilder{
		db:          db,
		searcher:    searcher,
		foreshadows: foreshadows,
		tokens:      tokens,
		metrics:     metrics,
		logger:      namedLogger(logger, "context"),
	}
}

// Build assembles the context of one chapter.
func (b *ContextBuilder) Build(ctx context.Context, req BuildRequest) (*entities.ChapterContext, error) {
	if req.ChapterNumber < 1 {
		return nil, apperrors.Validation("chapter must be positive, got %d", req.ChapterNumber)
	}
	if req.TargetWordCount < 0 {
		return nil, apperrors.Validation("target word count must not be negative, got %d", req.TargetWordCount)
	}

	project, err := b.db.FindProjectByID(ctx, req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("finding project: %w", err)
	}
	if project == nil {
		return nil, apperrors.NotFound("project %s", req.ProjectID)
	}

	chapter, err := b.db.FindChapterByNumber(ctx, project.ID, req.ChapterNumber)
	if err != nil {
		return nil, fmt.Errorf("finding chapter: %w", err)
	}
	if chapter == nil {
		return nil, apperrors.NotFound("chapter %d of project %s", req.ChapterNumber, project.ID)
	}

	outline, err := b.findOutline(ctx, project, chapter)
	if err != nil {
		return nil, err
	}

	target := req.TargetWordCount
	if target == 0 {
		target = defaultTargetWordCount
	}
	n := chapter.ChapterNumber

	cc := &entities.ChapterContext{
		ChapterNumber:        n,
		ChapterTitle:         chapter.Title,
		TargetWordCount:      target,
		MinWordCount:         max(minWordCountFloor, target-minWordCountSlack),
		MaxWordCount:         target + maxWordCountSlack,
		NarrativePerspective: perspective(req.Perspective, project),
		Title:                project.Title,
		Genre:                project.Genre,
		Theme:                project.Theme,
	}
	log := b.logger.With(zap.String("project_id", project.ID), zap.Int("chapter", n))

	cc.ChapterOutline = chapterOutline(project, chapter, outline)

	if n > 1 {
		if err := b.continuation(ctx, chapter, cc); err != nil {
			return nil, err
		}
	}

	roster, err := b.roster(ctx, project, chapter, outline)
	if err != nil {
		return nil, err
	}
	cc.CharactersInfo = renderRoster(roster)
	cc.EmotionalTone = emotionalTone(chapter, outline)
	if req.StyleContent != "" {
		cc.StyleContent = truncateEllipsis(req.StyleContent, styleMaxLength)
	}

	if n > memoryMinChapter && b.searcher != nil {
		cc.RelevantMemories = b.relevantMemories(ctx, project.ID, n, cc.ChapterOutline, log)
	}

	if n > skeletonMinChapter {
		cc.StorySkeleton, err = b.storySkeleton(ctx, project.ID, n)
		if err != nil {
			return nil, err
		}
	}

	if b.foreshadows != nil {
		reminders, err := b.foreshadows.BuildChapterContext(ctx, project.ID, n, ports.ForeshadowContextOptions{
			IncludePending: true,
			IncludeOverdue: true,
			Lookahead:      foreshadowLookahead,
		})
		if err != nil {
			log.Warn("foreshadow reminders unavailable", zap.Error(err))
		} else {
			cc.ForeshadowReminders = reminders
		}
	}

	cc.CharacterIdentities, err = b.characterIdentities(ctx, n, roster)
	if err != nil {
		return nil, err
	}

	cc.Stats = b.stats(cc)
	if b.metrics != nil {
		b.metrics.ObserveContextBuild(cc.Stats)
	}

	log.Info("chapter context built",
		zap.Int("total_length", cc.Stats.TotalLength),
		zap.Int("estimated_tokens", cc.Stats.EstimatedTokens),
		zap.Bool("memories", cc.RelevantMemories != ""),
		zap.Bool("skeleton", cc.StorySkeleton != ""),
		zap.Bool("identities", cc.CharacterIdentities != ""),
	)
	return cc, nil
}

func (b *ContextBuilder) findOutline(ctx context.Context, project *entities.Project, chapter *entities.Chapter) (*entities.Outline, error) {
	if chapter.OutlineID != "" {
		outline, err := b.db.FindOutlineByID(ctx, chapter.OutlineID)
		if err != nil {
			return nil, fmt.Errorf("finding outline: %w", err)
		}
		return outline, nil
	}
	if project.OutlineMode == entities.OutlineOneToOne {
		outline, err := b.db.FindOutlineByOrder(ctx, project.ID, chapter.ChapterNumber)
		if err != nil {
			return nil, fmt.Errorf("finding outline: %w", err)
		}
		return outline, nil
	}
	return nil, nil
}

func perspective(override string, project *entities.Project) string {
	if p := strings.TrimSpace(override); p != "" {
		return p
	}
	if p := strings.TrimSpace(project.NarrativePerspective); p != "" {
		return p
	}
	return defaultPerspective
}

// chapterOutline picks the outline text. One-to-one projects prefer the
// outline entry, one-to-many projects the chapter's expansion plan.
func chapterOutline(project *entities.Project, chapter *entities.Chapter, outline *entities.Outline) string {
	var outlineContent, planText string
	if outline != nil {
		outlineContent = strings.TrimSpace(outline.Content)
	}
	if plan := chapter.Plan(); plan != nil {
		planText = renderPlan(plan)
	}

	candidates := []string{planText, outlineContent}
	if project.OutlineMode == entities.OutlineOneToOne {
		candidates = []string{outlineContent, planText}
	}
	candidates = append(candidates, strings.TrimSpace(chapter.Summary))

	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return noOutline
}

func orUnset(s string) string {
	if strings.TrimSpace(s) == "" {
		return unsetTone
	}
	return s
}

func renderPlan(plan *entities.ExpansionPlan) string {
	var b strings.Builder
	summary := plan.PlotSummary
	if summary == "" {
		summary = "none"
	}
	fmt.Fprintf(&b, "Plot summary: %s\n\nKey events:\n", summary)
	for _, e := range plan.KeyEvents {
		fmt.Fprintf(&b, "- %s\n", e)
	}
	fmt.Fprintf(&b, "\nCharacter focus: %s\n", strings.Join(plan.CharacterFocus, ", "))
	fmt.Fprintf(&b, "Emotional tone: %s\n", orUnset(plan.EmotionalTone))
	fmt.Fprintf(&b, "Narrative goal: %s\n", orUnset(plan.NarrativeGoal))
	fmt.Fprintf(&b, "Conflict type: %s", orUnset(plan.ConflictType))
	return b.String()
}

// continuation fills the previous-chapter anchor: its ending, summary and
// key events.
func (b *ContextBuilder) continuation(ctx context.Context, chapter *entities.Chapter, cc *entities.ChapterContext) error {
	prev, err := b.db.FindChapterByNumber(ctx, chapter.ProjectID, chapter.ChapterNumber-1)
	if err != nil {
		return fmt.Errorf("finding previous chapter: %w", err)
	}
	if prev == nil {
		return nil
	}

	endingLength := endingLengthNormal
	if chapter.ChapterNumber <= shortEndingMaxChapter {
		endingLength = endingLengthShort
	}
	if content := strings.TrimSpace(prev.Content); content != "" {
		cc.ContinuationPoint = tail(content, endingLength)
	}

	summaries, err := b.db.FindMemoriesByTimeline(ctx, chapter.ProjectID, entities.MemoryChapterSummary, prev.ChapterNumber)
	if err != nil {
		return fmt.Errorf("finding previous chapter summary: %w", err)
	}
	plan := prev.Plan()
	switch {
	case len(summaries) > 0 && summaries[0].Content != "":
		cc.PreviousSummary = truncate(summaries[0].Content, summaryMaxLength)
	case prev.Summary != "":
		cc.PreviousSummary = truncate(prev.Summary, summaryMaxLength)
	case plan != nil && plan.PlotSummary != "":
		cc.PreviousSummary = truncate(plan.PlotSummary, summaryMaxLength)
	}

	if plan != nil && len(plan.KeyEvents) > 0 {
		cc.PreviousKeyEvents = plan.KeyEvents[:min(len(plan.KeyEvents), keyEventLimit)]
		return nil
	}

	points, err := b.db.FindMemoriesByTimeline(ctx, chapter.ProjectID, entities.MemoryPlotPoint, prev.ChapterNumber)
	if err != nil {
		return fmt.Errorf("finding previous chapter events: %w", err)
	}
	for _, p := range points {
		if len(cc.PreviousKeyEvents) == keyEventLimit {
			break
		}
		cc.PreviousKeyEvents = append(cc.PreviousKeyEvents, truncate(p.Content, keyEventMaxLength))
	}
	return nil
}

// focusNames returns the character names the chapter is about, preferring
// the source that matches the project's outline mode.
func focusNames(project *entities.Project, chapter *entities.Chapter, outline *entities.Outline) []string {
	var fromPlan, fromOutline []string
	if plan := chapter.Plan(); plan != nil {
		fromPlan = plan.CharacterFocus
	}
	if s := outline.ParsedStructure(); s != nil {
		fromOutline = s.Characters
	}

	if project.OutlineMode == entities.OutlineOneToOne {
		if len(fromOutline) > 0 {
			return fromOutline
		}
		return fromPlan
	}
	if len(fromPlan) > 0 {
		return fromPlan
	}
	return fromOutline
}

// roster returns the project characters that appear in the chapter, or the
// whole cast when the chapter names nobody.
func (b *ContextBuilder) roster(
	ctx context.Context,
	project *entities.Project,
	chapter *entities.Chapter,
	outline *entities.Outline,
) ([]*entities.Character, error) {
	characters, err := b.db.ListCharacters(ctx, project.ID)
	if err != nil {
		return nil, fmt.Errorf("listing characters: %w", err)
	}

	names := uniqueNames(focusNames(project, chapter, outline))
	if len(names) == 0 {
		return characters, nil
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	filtered := make([]*entities.Character, 0, len(names))
	for _, c := range characters {
		if wanted[c.Name] {
			filtered = append(filtered, c)
		}
	}
	return filtered, nil
}

func roleLabel(c *entities.Character) string {
	if c.IsOrganization {
		return "organization"
	}
	return c.RoleType.Label()
}

func renderRoster(roster []*entities.Character) string {
	lines := make([]string, 0, rosterLimit)
	for _, c := range roster[:min(len(roster), rosterLimit)] {
		lines = append(lines, fmt.Sprintf("- %s (%s): %s",
			c.Name, roleLabel(c), truncateEllipsis(c.Personality, personalityMaxLength)))
	}
	return strings.Join(lines, "\n")
}

func emotionalTone(chapter *entities.Chapter, outline *entities.Outline) string {
	if plan := chapter.Plan(); plan != nil && plan.EmotionalTone != "" {
		return plan.EmotionalTone
	}
	if s := outline.ParsedStructure(); s != nil {
		if s.Emotion != "" {
			return s.Emotion
		}
		if s.EmotionalTone != "" {
			return s.EmotionalTone
		}
	}
	return unsetTone
}

// relevantMemories searches memories similar to the chapter outline and
// merges them with long-unresolved foreshadows. Search failures drop the
// layer.
func (b *ContextBuilder) relevantMemories(ctx context.Context, projectID string, chapter int, query string, log *zap.Logger) string {
	limit := memoryCountLight
	if chapter > lightMemoryMaxChapter {
		limit = memoryCountFull
	}

	memories, err := b.searcher.SearchMemories(ctx, projectID, query, limit, memoryImportanceThreshold)
	if err != nil {
		log.Warn("memory search unavailable", zap.Error(err))
		return ""
	}

	foreshadows, err := b.searcher.FindUnresolvedForeshadows(ctx, projectID, chapter)
	if err != nil {
		log.Warn("unresolved foreshadows unavailable", zap.Error(err))
		foreshadows = nil
	}

	return formatMemoryBlock(memories, dueForeshadows(foreshadows, chapter))
}

// dueForeshadows keeps foreshadows planted long enough ago to need a payoff.
func dueForeshadows(foreshadows []*entities.Foreshadow, chapter int) []*entities.Foreshadow {
	var due []*entities.Foreshadow
	for _, f := range foreshadows {
		if chapter-f.PlantChapter >= dueForeshadowAge {
			due = append(due, f)
			if len(due) == dueForeshadowLimit {
				break
			}
		}
	}
	return due
}

// memoryBlock accumulates lines up to a character budget that includes
// the newlines between lines.
type memoryBlock struct {
	lines []string
	used  int
	limit int
}

func (m *memoryBlock) add(lines ...string) bool {
	cost := len(lines)
	if len(m.lines) == 0 {
		cost--
	}
	for _, l := range lines {
		cost += runeLen(l)
	}
	if m.used+cost > m.limit {
		return false
	}
	m.lines = append(m.lines, lines...)
	m.used += cost
	return true
}

// section adds a header with as many items as fit. The header is only
// written together with its first item.
func (m *memoryBlock) section(header string, items []string) {
	for i, item := range items {
		ok := false
		if i == 0 {
			ok = m.add(header, item)
		} else {
			ok = m.add(item)
		}
		if !ok {
			return
		}
	}
}

func formatMemoryBlock(memories []entities.StoryMemory, due []*entities.Foreshadow) string {
	block := &memoryBlock{limit: memoryBlockMaxLength}

	foreshadowItems := make([]string, 0, len(due))
	for _, f := range due {
		foreshadowItems = append(foreshadowItems, fmt.Sprintf("- Planted in chapter %d: %s",
			f.PlantChapter, truncate(f.Content, dueForeshadowMaxLength)))
	}
	block.section("[Foreshadowing to resolve]", foreshadowItems)

	memoryItems := make([]string, 0, len(memories))
	for _, m := range memories {
		memoryItems = append(memoryItems, "- "+truncate(m.Content, memoryItemMaxLength))
	}
	block.section("[Relevant memories]", memoryItems)

	return strings.Join(block.lines, "\n")
}

// storySkeleton samples every tenth completed chapter before the current
// one.
func (b *ContextBuilder) storySkeleton(ctx context.Context, projectID string, chapter int) (string, error) {
	completed, err := b.db.ListCompletedChaptersBefore(ctx, projectID, chapter)
	if err != nil {
		return "", fmt.Errorf("listing completed chapters: %w", err)
	}

	var lines []string
	for i, ch := range completed {
		if i%skeletonSampleInterval != 0 {
			continue
		}
		summaries, err := b.db.FindMemoriesByTimeline(ctx, projectID, entities.MemoryChapterSummary, ch.ChapterNumber)
		if err != nil {
			return "", fmt.Errorf("finding summary of chapter %d: %w", ch.ChapterNumber, err)
		}
		if len(summaries) > 0 && summaries[0].Content != "" {
			lines = append(lines, fmt.Sprintf("Chapter %d %q: %s",
				ch.ChapterNumber, ch.Title, truncate(summaries[0].Content, skeletonSummaryMaxLength)))
		} else {
			lines = append(lines, fmt.Sprintf("Chapter %d %q", ch.ChapterNumber, ch.Title))
		}
	}
	if len(lines) == 0 {
		return "", nil
	}
	return "[Story skeleton]\n" + strings.Join(lines, "\n"), nil
}

// characterIdentities describes the identities of the chapter's characters
// as they stand at this chapter.
func (b *ContextBuilder) characterIdentities(ctx context.Context, chapter int, roster []*entities.Character) (string, error) {
	present := make(map[string]*entities.Character, len(roster))
	for _, c := range roster {
		present[c.ID] = c
	}

	var lines []string
	for _, c := range roster[:min(len(roster), identityCharacterLimit)] {
		identities, err := b.db.ListIdentitiesByCharacter(ctx, c.ID)
		if err != nil {
			return "", fmt.Errorf("listing identities of %s: %w", c.Name, err)
		}
		if len(identities) == 0 {
			continue
		}
		if len(identities) == 1 && identities[0].IsPrimary && identities[0].Status == entities.IdentityActive {
			continue
		}

		lines = append(lines, "Character: "+c.Name)
		for _, identity := range identities {
			line, err := b.identityLine(ctx, identity, c, chapter, present)
			if err != nil {
				return "", err
			}
			lines = append(lines, line)
		}
	}

	if len(lines) == 0 {
		return "", nil
	}
	return "[Character identities]\n" + strings.Join(lines, "\n"), nil
}

func (b *ContextBuilder) identityLine(
	ctx context.Context,
	identity *entities.Identity,
	owner *entities.Character,
	chapter int,
	present map[string]*entities.Character,
) (string, error) {
	edges, err := b.db.ListKnowledgeByIdentity(ctx, identity.ID, "")
	if err != nil {
		return "", fmt.Errorf("listing knowledge of %s: %w", identity.Name, err)
	}

	note := ""
	switch {
	case identity.IsExposedAtChapter(chapter):
		note = " [exposed]"
	case identity.Type.IsConcealed():
		knownHere := false
		for _, e := range edges {
			if e.KnowerCharacterID != owner.ID && present[e.KnowerCharacterID] != nil {
				knownHere = true
				break
			}
		}
		if knownHere {
			note = fmt.Sprintf(" [known by %d people]", len(edges))
		} else {
			note = " [characters in this chapter should not know]"
		}
	}

	labels := []string{identity.Type.Label()}
	if identity.IsPrimary {
		labels = append(labels, "primary identity")
	}
	if identity.StatusAtChapter(chapter) == entities.IdentityBurned {
		labels = append(labels, "exposed")
	} else if identity.Type.IsConcealed() {
		labels = append(labels, "secrecy required")
	}

	careers, err := b.careerNames(ctx, identity)
	if err != nil {
		return "", err
	}
	careerInfo := ""
	if len(careers) > 0 {
		careerInfo = " | careers: " + strings.Join(careers, ", ")
	}

	knowers, err := b.knowerNames(ctx, edges, present)
	if err != nil {
		return "", err
	}
	knowerInfo := ""
	if len(knowers) > 0 {
		knowerInfo = " | known by: " + strings.Join(knowers, ", ")
	}

	return fmt.Sprintf("  - %s [%s]%s%s%s", identity.Name, strings.Join(labels, ", "), note, careerInfo, knowerInfo), nil
}

func (b *ContextBuilder) careerNames(ctx context.Context, identity *entities.Identity) ([]string, error) {
	links, err := b.db.ListIdentityCareers(ctx, identity.ID)
	if err != nil {
		return nil, fmt.Errorf("listing careers of %s: %w", identity.Name, err)
	}

	names := make([]string, 0, len(links))
	for _, link := range links {
		career, err := b.db.FindCareerByID(ctx, link.CareerID)
		if err != nil {
			return nil, fmt.Errorf("finding career: %w", err)
		}
		if career == nil {
			continue
		}
		name := career.Name
		if stage := career.StageName(link.CurrentStage); stage != "" {
			name += " (" + stage + ")"
		}
		names = append(names, name)
	}
	return names, nil
}

func (b *ContextBuilder) knowerNames(
	ctx context.Context,
	edges []*entities.IdentityKnowledge,
	present map[string]*entities.Character,
) ([]string, error) {
	names := make([]string, 0, len(edges))
	for _, e := range edges {
		knower, inChapter := present[e.KnowerCharacterID], true
		if knower == nil {
			inChapter = false
			var err error
			knower, err = b.db.FindCharacterByID(ctx, e.KnowerCharacterID)
			if err != nil {
				return nil, fmt.Errorf("finding knower: %w", err)
			}
			if knower == nil {
				continue
			}
		}
		mark := ""
		if inChapter {
			mark = " ✓"
		}
		names = append(names, fmt.Sprintf("%s%s (%s)", knower.Name, mark, e.KnowledgeLevel.Label()))
	}
	return names, nil
}

func (b *ContextBuilder) stats(cc *entities.ChapterContext) entities.ContextStats {
	stats := entities.ContextStats{
		ChapterNumber:      cc.ChapterNumber,
		HasContinuation:    cc.ContinuationPoint != "",
		OutlineLength:      runeLen(cc.ChapterOutline),
		ContinuationLength: runeLen(cc.ContinuationPoint),
		SummaryLength:      runeLen(cc.PreviousSummary),
		CharactersLength:   runeLen(cc.CharactersInfo),
		StyleLength:        runeLen(cc.StyleContent),
		MemoriesLength:     runeLen(cc.RelevantMemories),
		SkeletonLength:     runeLen(cc.StorySkeleton),
		ForeshadowLength:   runeLen(cc.ForeshadowReminders),
		IdentitiesLength:   runeLen(cc.CharacterIdentities),
		TotalLength:        cc.TotalLength(),
	}
	if b.tokens != nil {
		stats.EstimatedTokens = b.tokens.Count(RenderPrompt(cc))
	}
	return stats
}
