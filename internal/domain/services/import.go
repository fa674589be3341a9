package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ersonp/lore-novel/internal/domain/apperrors"
	"github.com/ersonp/lore-novel/internal/domain/entities"
	"github.com/ersonp/lore-novel/internal/domain/ports"
	"github.com/ersonp/lore-novel/internal/infrastructure/parsers"
)

const (
	defaultMemberLoyalty    = 50
	defaultImportImportance = 0.5
)

// ImportOptions controls import behavior.
type ImportOptions struct {
	DryRun bool // Validate without saving
}

// ImportError describes an invalid bundle record.
type ImportError struct {
	Section string // Bundle section, e.g. "identities"
	Index   int    // Position in the section (1-indexed, 0 for the project)
	Message string
}

func (e ImportError) Error() string {
	if e.Index > 0 {
		return fmt.Sprintf("%s[%d]: %s", e.Section, e.Index, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Section, e.Message)
}

// ImportResult contains the result of an import operation.
type ImportResult struct {
	ProjectID         string
	Characters        int
	Organizations     int
	Careers           int
	Outlines          int
	Chapters          int
	Identities        int
	DefaultIdentities int
	Knowledge         int
	Memberships       int
	Memories          int
	Foreshadows       int
	Errors            []ImportError
}

// ImportService writes project bundles into the story store.
type ImportService struct {
	db       ports.StoryDB
	memories *MemoryService
	logger   *zap.Logger
}

// NewImportService creates a new import service. memories may be nil, in
// which case imported memories are stored but not indexed.
func NewImportService(db ports.StoryDB, memories *MemoryService, logger *zap.Logger) *ImportService {
	return &ImportService{
		db:       db,
		memories: memories,
		logger:   namedLogger(logger, "import"),
	}
}

// Import validates a bundle and writes it as a new project in a single
// transaction. Invalid records are reported in the result and nothing is
// written. A project with the same title already existing is a conflict.
func (s *ImportService) Import(ctx context.Context, bundle *parsers.Bundle, opts ImportOptions) (*ImportResult, error) {
	result := &ImportResult{Errors: validateBundle(bundle)}
	if len(result.Errors) > 0 {
		return result, nil
	}

	existing, err := s.db.FindProjectByTitle(ctx, strings.TrimSpace(bundle.Project.Title))
	if err != nil {
		return nil, fmt.Errorf("checking project title: %w", err)
	}
	if existing != nil {
		return nil, apperrors.Conflict("project %q already exists", existing.Title)
	}

	if opts.DryRun {
		countBundle(bundle, result)
		return result, nil
	}

	var memories []entities.StoryMemory
	err = s.db.WithTx(ctx, func(tx ports.StoryDB) error {
		w := &bundleWriter{tx: tx, result: result}
		if err := w.write(ctx, bundle); err != nil {
			return err
		}
		memories = w.memories
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("importing bundle: %w", err)
	}

	if s.memories != nil {
		s.memories.Index(ctx, memories...)
	}

	s.logger.Info("bundle imported",
		zap.String("project_id", result.ProjectID),
		zap.Int("characters", result.Characters),
		zap.Int("identities", result.Identities+result.DefaultIdentities),
		zap.Int("chapters", result.Chapters),
		zap.Int("memories", result.Memories),
	)
	return result, nil
}

func countBundle(b *parsers.Bundle, result *ImportResult) {
	withIdentities := make(map[string]bool)
	for _, rec := range b.Identities {
		withIdentities[strings.TrimSpace(rec.Character)] = true
	}
	for _, rec := range b.Characters {
		if rec.IsOrganization {
			result.Organizations++
			continue
		}
		result.Characters++
		if !withIdentities[strings.TrimSpace(rec.Name)] {
			result.DefaultIdentities++
		}
	}
	result.Careers = len(b.Careers)
	result.Outlines = len(b.Outlines)
	result.Chapters = len(b.Chapters)
	result.Identities = len(b.Identities)
	result.Knowledge = len(b.Knowledge)
	result.Memberships = len(b.Memberships)
	result.Memories = len(b.Memories)
	result.Foreshadows = len(b.Foreshadows)
}

// bundleIndex resolves the names used inside a bundle.
type bundleIndex struct {
	characters map[string]parsers.CharacterRecord
	careers    map[string]parsers.CareerRecord
	outlines   map[int]bool
	// identities maps character name to its identity names.
	identities map[string]map[string]bool
}

func identityKey(character, identity string) string {
	return character + "\x00" + identity
}

// validateBundle checks every record and every name reference.
func validateBundle(b *parsers.Bundle) []ImportError {
	var errs []ImportError
	fail := func(section string, index int, format string, args ...any) {
		errs = append(errs, ImportError{Section: section, Index: index, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(b.Project.Title) == "" {
		fail("project", 0, "title is required")
	}
	if m := entities.OutlineMode(b.Project.OutlineMode); m != "" && !m.IsValid() {
		fail("project", 0, "invalid outline mode %q", m)
	}

	idx := bundleIndex{
		characters: make(map[string]parsers.CharacterRecord),
		careers:    make(map[string]parsers.CareerRecord),
		outlines:   make(map[int]bool),
		identities: make(map[string]map[string]bool),
	}

	for i, rec := range b.Characters {
		name := strings.TrimSpace(rec.Name)
		switch {
		case name == "":
			fail("characters", i+1, "name is required")
		case idx.characters[name].Name != "":
			fail("characters", i+1, "duplicate character %q", name)
		default:
			idx.characters[name] = rec
		}
	}

	for i, rec := range b.Careers {
		name := strings.TrimSpace(rec.Name)
		switch {
		case name == "":
			fail("careers", i+1, "name is required")
		case idx.careers[name].Name != "":
			fail("careers", i+1, "duplicate career %q", name)
		case !entities.CareerType(rec.Type).IsValid():
			fail("careers", i+1, "invalid career type %q", rec.Type)
		default:
			idx.careers[name] = rec
		}
	}

	for i, rec := range b.Outlines {
		switch {
		case rec.Order < 1:
			fail("outlines", i+1, "order_index must be at least 1")
		case idx.outlines[rec.Order]:
			fail("outlines", i+1, "duplicate order_index %d", rec.Order)
		default:
			idx.outlines[rec.Order] = true
		}
	}

	chapters := make(map[int]bool)
	for i, rec := range b.Chapters {
		switch {
		case rec.Number < 1:
			fail("chapters", i+1, "chapter_number must be at least 1")
		case chapters[rec.Number]:
			fail("chapters", i+1, "duplicate chapter %d", rec.Number)
		case rec.Outline != nil && !idx.outlines[*rec.Outline]:
			fail("chapters", i+1, "unknown outline %d", *rec.Outline)
		default:
			chapters[rec.Number] = true
		}
	}

	primaries := make(map[string]int)
	for i, rec := range b.Identities {
		for _, msg := range validateIdentityRecord(rec, idx) {
			fail("identities", i+1, "%s", msg)
		}
		character, name := strings.TrimSpace(rec.Character), strings.TrimSpace(rec.Name)
		if idx.identities[character] == nil {
			idx.identities[character] = make(map[string]bool)
		}
		if idx.identities[character][name] {
			fail("identities", i+1, "duplicate identity %q for %q", name, character)
		}
		idx.identities[character][name] = true
		if rec.Primary {
			primaries[character]++
			if primaries[character] > 1 {
				fail("identities", i+1, "%q has more than one primary identity", character)
			}
		}
	}
	// Characters without identities get a default one named after them.
	for name, rec := range idx.characters {
		if !rec.IsOrganization && idx.identities[name] == nil {
			idx.identities[name] = map[string]bool{name: true}
		}
	}

	edges := make(map[string]bool)
	for i, rec := range b.Knowledge {
		character, identity := strings.TrimSpace(rec.Character), strings.TrimSpace(rec.Identity)
		knower := strings.TrimSpace(rec.Knower)
		switch {
		case !idx.identities[character][identity]:
			fail("knowledge", i+1, "unknown identity %q of %q", identity, character)
		case idx.characters[knower].Name == "":
			fail("knowledge", i+1, "unknown knower %q", knower)
		case rec.Level != "" && !entities.KnowledgeLevel(rec.Level).IsValid():
			fail("knowledge", i+1, "invalid knowledge level %q", rec.Level)
		case edges[identityKey(identityKey(character, identity), knower)]:
			fail("knowledge", i+1, "%q already knows %q", knower, identity)
		default:
			edges[identityKey(identityKey(character, identity), knower)] = true
		}
	}

	members := make(map[string]bool)
	for i, rec := range b.Memberships {
		org, character := strings.TrimSpace(rec.Organization), strings.TrimSpace(rec.Character)
		identity := strings.TrimSpace(rec.Identity)
		key := identityKey(org, identityKey(character, identity))
		switch {
		case !idx.characters[org].IsOrganization:
			fail("memberships", i+1, "unknown organization %q", org)
		case idx.characters[character].Name == "" || idx.characters[character].IsOrganization:
			fail("memberships", i+1, "unknown member %q", character)
		case identity != "" && !idx.identities[character][identity]:
			fail("memberships", i+1, "unknown identity %q of %q", identity, character)
		case rec.Status != "" && !validMembershipStatus(entities.MembershipStatus(rec.Status)):
			fail("memberships", i+1, "invalid membership status %q", rec.Status)
		case rec.Loyalty != nil && (*rec.Loyalty < 0 || *rec.Loyalty > 100):
			fail("memberships", i+1, "loyalty must be between 0 and 100")
		case members[key]:
			fail("memberships", i+1, "duplicate membership of %q in %q", character, org)
		default:
			members[key] = true
		}
	}

	for i, rec := range b.Memories {
		switch {
		case strings.TrimSpace(rec.Type) == "":
			fail("memories", i+1, "memory_type is required")
		case strings.TrimSpace(rec.Content) == "":
			fail("memories", i+1, "content is required")
		case rec.Importance != nil && (*rec.Importance < 0 || *rec.Importance > 1):
			fail("memories", i+1, "importance must be between 0 and 1")
		}
	}

	for i, rec := range b.Foreshadows {
		switch {
		case strings.TrimSpace(rec.Title) == "":
			fail("foreshadows", i+1, "title is required")
		case rec.PlantChapter < 1:
			fail("foreshadows", i+1, "plant_chapter must be at least 1")
		case rec.TargetResolveChapter != 0 && rec.TargetResolveChapter < rec.PlantChapter:
			fail("foreshadows", i+1, "target_resolve_chapter precedes plant_chapter")
		case rec.Status != "" && !entities.ForeshadowStatus(rec.Status).IsValid():
			fail("foreshadows", i+1, "invalid status %q", rec.Status)
		case rec.Importance != nil && (*rec.Importance < 0 || *rec.Importance > 1):
			fail("foreshadows", i+1, "importance must be between 0 and 1")
		}
	}

	return errs
}

func validateIdentityRecord(rec parsers.IdentityRecord, idx bundleIndex) []string {
	var msgs []string
	character := idx.characters[strings.TrimSpace(rec.Character)]
	switch {
	case character.Name == "":
		msgs = append(msgs, fmt.Sprintf("unknown character %q", rec.Character))
	case character.IsOrganization:
		msgs = append(msgs, fmt.Sprintf("%q is an organization", rec.Character))
	}
	if strings.TrimSpace(rec.Name) == "" {
		msgs = append(msgs, "name is required")
	}
	if rec.Type != "" && !entities.IdentityType(rec.Type).IsValid() {
		msgs = append(msgs, fmt.Sprintf("invalid identity type %q", rec.Type))
	}
	if rec.Status != "" && !entities.IdentityStatus(rec.Status).IsValid() {
		msgs = append(msgs, fmt.Sprintf("invalid identity status %q", rec.Status))
	}
	if rec.ExposedAtChapter != nil && *rec.ExposedAtChapter < 1 {
		msgs = append(msgs, "exposed_at_chapter must be at least 1")
	}

	seen := make(map[string]bool)
	for _, link := range rec.Careers {
		name := strings.TrimSpace(link.Career)
		career, ok := idx.careers[name]
		switch {
		case !ok:
			msgs = append(msgs, fmt.Sprintf("unknown career %q", name))
		case seen[name]:
			msgs = append(msgs, fmt.Sprintf("duplicate career %q", name))
		case link.Stage < 0 || (careerMaxStage(career) > 0 && link.Stage > careerMaxStage(career)):
			msgs = append(msgs, fmt.Sprintf("stage %d is outside career %q range", link.Stage, name))
		}
		seen[name] = true
	}
	return msgs
}

func careerMaxStage(rec parsers.CareerRecord) int {
	if rec.MaxStage > 0 {
		return rec.MaxStage
	}
	return len(rec.Stages)
}

func validMembershipStatus(s entities.MembershipStatus) bool {
	switch s {
	case entities.MembershipActive, entities.MembershipSuspected, entities.MembershipExpelled,
		entities.MembershipRetired, entities.MembershipDeceased:
		return true
	}
	return false
}

// bundleWriter writes a validated bundle, resolving names to the IDs it
// assigns along the way.
type bundleWriter struct {
	tx         ports.StoryDB
	result     *ImportResult
	project    *entities.Project
	characters map[string]*entities.Character
	orgs       map[string]*entities.Organization
	careers    map[string]*entities.Career
	outlines   map[int]string
	chapters   map[int]string
	identities map[string]string
	memories   []entities.StoryMemory
}

func (w *bundleWriter) write(ctx context.Context, b *parsers.Bundle) error {
	w.characters = make(map[string]*entities.Character)
	w.orgs = make(map[string]*entities.Organization)
	w.careers = make(map[string]*entities.Career)
	w.outlines = make(map[int]string)
	w.chapters = make(map[int]string)
	w.identities = make(map[string]string)

	steps := []func(context.Context, *parsers.Bundle) error{
		w.writeProject,
		w.writeCharacters,
		w.writeCareers,
		w.writeOutlines,
		w.writeChapters,
		w.writeIdentities,
		w.writeKnowledge,
		w.writeMemberships,
		w.writeMemories,
		w.writeForeshadows,
	}
	for _, step := range steps {
		if err := step(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

func (w *bundleWriter) writeProject(ctx context.Context, b *parsers.Bundle) error {
	w.project = &entities.Project{
		Title:                strings.TrimSpace(b.Project.Title),
		Genre:                b.Project.Genre,
		Theme:                b.Project.Theme,
		NarrativePerspective: b.Project.NarrativePerspective,
		OutlineMode:          entities.OutlineMode(b.Project.OutlineMode),
	}
	if err := w.tx.SaveProject(ctx, w.project); err != nil {
		return fmt.Errorf("saving project: %w", err)
	}
	w.result.ProjectID = w.project.ID
	return nil
}

func (w *bundleWriter) writeCharacters(ctx context.Context, b *parsers.Bundle) error {
	for _, rec := range b.Characters {
		character := &entities.Character{
			ProjectID:      w.project.ID,
			Name:           strings.TrimSpace(rec.Name),
			RoleType:       entities.CharacterRole(rec.Role),
			Personality:    rec.Personality,
			Background:     rec.Background,
			IsOrganization: rec.IsOrganization,
		}
		if err := w.tx.SaveCharacter(ctx, character); err != nil {
			return fmt.Errorf("saving character %q: %w", character.Name, err)
		}
		w.characters[character.Name] = character

		if !rec.IsOrganization {
			w.result.Characters++
			continue
		}
		org := &entities.Organization{
			ProjectID:   w.project.ID,
			CharacterID: character.ID,
			Name:        character.Name,
			Description: rec.Description,
		}
		if err := w.tx.SaveOrganization(ctx, org); err != nil {
			return fmt.Errorf("saving organization %q: %w", org.Name, err)
		}
		w.orgs[character.Name] = org
		w.result.Organizations++
	}
	return nil
}

func (w *bundleWriter) writeCareers(ctx context.Context, b *parsers.Bundle) error {
	for _, rec := range b.Careers {
		career := &entities.Career{
			ProjectID:   w.project.ID,
			Name:        strings.TrimSpace(rec.Name),
			Type:        entities.CareerType(rec.Type),
			Description: rec.Description,
			Stages:      rec.Stages,
		}
		career.MaxStage = careerMaxStage(rec)
		if err := w.tx.SaveCareer(ctx, career); err != nil {
			return fmt.Errorf("saving career %q: %w", career.Name, err)
		}
		w.careers[career.Name] = career
		w.result.Careers++
	}
	return nil
}

func (w *bundleWriter) writeOutlines(ctx context.Context, b *parsers.Bundle) error {
	for _, rec := range b.Outlines {
		outline := &entities.Outline{
			ProjectID:  w.project.ID,
			OrderIndex: rec.Order,
			Title:      rec.Title,
			Content:    rec.Content,
		}
		if len(rec.Structure) > 0 {
			data, err := json.Marshal(rec.Structure)
			if err != nil {
				return fmt.Errorf("encoding structure of outline %d: %w", rec.Order, err)
			}
			outline.Structure = string(data)
		}
		if err := w.tx.SaveOutline(ctx, outline); err != nil {
			return fmt.Errorf("saving outline %d: %w", rec.Order, err)
		}
		w.outlines[rec.Order] = outline.ID
		w.result.Outlines++
	}
	return nil
}

func (w *bundleWriter) writeChapters(ctx context.Context, b *parsers.Bundle) error {
	for _, rec := range b.Chapters {
		chapter := &entities.Chapter{
			ProjectID:     w.project.ID,
			ChapterNumber: rec.Number,
			Title:         rec.Title,
			Summary:       rec.Summary,
			Content:       rec.Content,
		}
		if rec.Outline != nil {
			chapter.OutlineID = w.outlines[*rec.Outline]
		}
		if rec.ExpansionPlan != nil {
			data, err := json.Marshal(rec.ExpansionPlan)
			if err != nil {
				return fmt.Errorf("encoding plan of chapter %d: %w", rec.Number, err)
			}
			chapter.ExpansionPlan = string(data)
		}
		if err := w.tx.SaveChapter(ctx, chapter); err != nil {
			return fmt.Errorf("saving chapter %d: %w", rec.Number, err)
		}
		w.chapters[rec.Number] = chapter.ID
		w.result.Chapters++
	}
	return nil
}

func (w *bundleWriter) writeIdentities(ctx context.Context, b *parsers.Bundle) error {
	for _, rec := range b.Identities {
		character := w.characters[strings.TrimSpace(rec.Character)]
		identity := &entities.Identity{
			CharacterID:      character.ID,
			ProjectID:        w.project.ID,
			Name:             strings.TrimSpace(rec.Name),
			Type:             entities.IdentityType(rec.Type),
			IsPrimary:        rec.Primary,
			Appearance:       rec.Appearance,
			Personality:      rec.Personality,
			Background:       rec.Background,
			VoiceStyle:       rec.VoiceStyle,
			Status:           entities.IdentityStatus(rec.Status),
			ExposedAtChapter: rec.ExposedAtChapter,
		}
		if identity.Type == "" {
			identity.Type = entities.IdentityPublic
		}
		if identity.ExposedAtChapter != nil && identity.Status == "" {
			identity.Status = entities.IdentityBurned
		}
		if err := w.tx.InsertIdentity(ctx, identity); err != nil {
			return fmt.Errorf("saving identity %q: %w", identity.Name, err)
		}
		w.identities[identityKey(character.Name, identity.Name)] = identity.ID
		w.result.Identities++

		for _, linkRec := range rec.Careers {
			career := w.careers[strings.TrimSpace(linkRec.Career)]
			link := &entities.IdentityCareer{
				IdentityID:   identity.ID,
				CareerID:     career.ID,
				CareerType:   career.Type,
				CurrentStage: max(linkRec.Stage, 1),
			}
			if err := w.tx.SaveIdentityCareer(ctx, link); err != nil {
				return fmt.Errorf("saving career %q of identity %q: %w", career.Name, identity.Name, err)
			}
		}
	}

	for _, rec := range b.Characters {
		character := w.characters[strings.TrimSpace(rec.Name)]
		if character.IsOrganization || w.hasIdentity(character.Name) {
			continue
		}
		identity := entities.NewDefaultIdentity(character)
		if err := w.tx.InsertIdentity(ctx, &identity); err != nil {
			return fmt.Errorf("seeding identity of %q: %w", character.Name, err)
		}
		w.identities[identityKey(character.Name, identity.Name)] = identity.ID
		w.result.DefaultIdentities++
	}
	return nil
}

func (w *bundleWriter) hasIdentity(character string) bool {
	prefix := character + "\x00"
	for key := range w.identities {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

func (w *bundleWriter) writeKnowledge(ctx context.Context, b *parsers.Bundle) error {
	for _, rec := range b.Knowledge {
		k := &entities.IdentityKnowledge{
			IdentityID:        w.identities[identityKey(strings.TrimSpace(rec.Character), strings.TrimSpace(rec.Identity))],
			KnowerCharacterID: w.characters[strings.TrimSpace(rec.Knower)].ID,
			KnowledgeLevel:    entities.KnowledgeLevel(rec.Level),
			DiscoveredHow:     rec.DiscoveredHow,
			SinceWhen:         rec.SinceWhen,
			IsSecret:          true,
		}
		if k.KnowledgeLevel == "" {
			k.KnowledgeLevel = entities.KnowledgeFull
		}
		if rec.IsSecret != nil {
			k.IsSecret = *rec.IsSecret
		}
		if err := w.tx.SaveKnowledge(ctx, k); err != nil {
			return fmt.Errorf("saving knowledge of %q: %w", rec.Knower, err)
		}
		w.result.Knowledge++
	}
	return nil
}

func (w *bundleWriter) writeMemberships(ctx context.Context, b *parsers.Bundle) error {
	for _, rec := range b.Memberships {
		character := w.characters[strings.TrimSpace(rec.Character)]
		m := &entities.OrganizationMember{
			OrganizationID: w.orgs[strings.TrimSpace(rec.Organization)].ID,
			CharacterID:    character.ID,
			Position:       rec.Position,
			Rank:           rec.Rank,
			Loyalty:        defaultMemberLoyalty,
			Status:         entities.MembershipStatus(rec.Status),
			JoinedAt:       rec.JoinedAt,
			Notes:          rec.Notes,
		}
		if rec.Loyalty != nil {
			m.Loyalty = *rec.Loyalty
		}
		if name := strings.TrimSpace(rec.Identity); name != "" {
			id := w.identities[identityKey(character.Name, name)]
			m.IdentityID = &id
		}
		if err := w.tx.SaveMembership(ctx, m); err != nil {
			return fmt.Errorf("saving membership of %q in %q: %w", rec.Character, rec.Organization, err)
		}
		w.result.Memberships++
	}
	return nil
}

func (w *bundleWriter) writeMemories(ctx context.Context, b *parsers.Bundle) error {
	for _, rec := range b.Memories {
		m := &entities.StoryMemory{
			ProjectID:       w.project.ID,
			ChapterID:       w.chapters[rec.Chapter],
			MemoryType:      entities.MemoryType(strings.TrimSpace(rec.Type)),
			Title:           rec.Title,
			Content:         rec.Content,
			StoryTimeline:   rec.Chapter,
			ImportanceScore: defaultImportImportance,
			Metadata:        rec.Metadata,
		}
		if rec.Importance != nil {
			m.ImportanceScore = *rec.Importance
		}
		if err := w.tx.SaveMemory(ctx, m); err != nil {
			return fmt.Errorf("saving memory: %w", err)
		}
		w.memories = append(w.memories, *m)
		w.result.Memories++
	}
	return nil
}

func (w *bundleWriter) writeForeshadows(ctx context.Context, b *parsers.Bundle) error {
	for _, rec := range b.Foreshadows {
		f := &entities.Foreshadow{
			ProjectID:            w.project.ID,
			Title:                strings.TrimSpace(rec.Title),
			Content:              rec.Content,
			PlantChapter:         rec.PlantChapter,
			TargetResolveChapter: rec.TargetResolveChapter,
			Status:               entities.ForeshadowStatus(rec.Status),
			Importance:           defaultImportImportance,
		}
		if rec.Importance != nil {
			f.Importance = *rec.Importance
		}
		if err := w.tx.SaveForeshadow(ctx, f); err != nil {
			return fmt.Errorf("saving foreshadow %q: %w", f.Title, err)
		}
		w.result.Foreshadows++
	}
	return nil
}
