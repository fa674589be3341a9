// Package parsers decodes project bundles and chapter analyses from JSON
// and YAML files.
package parsers

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/ersonp/lore-novel/internal/domain/entities"
)

// Bundle is a complete project described by names instead of IDs.
type Bundle struct {
	Project     ProjectRecord      `json:"project" yaml:"project"`
	Characters  []CharacterRecord  `json:"characters" yaml:"characters"`
	Careers     []CareerRecord     `json:"careers" yaml:"careers"`
	Outlines    []OutlineRecord    `json:"outlines" yaml:"outlines"`
	Chapters    []ChapterRecord    `json:"chapters" yaml:"chapters"`
	Identities  []IdentityRecord   `json:"identities" yaml:"identities"`
	Knowledge   []KnowledgeRecord  `json:"knowledge" yaml:"knowledge"`
	Memberships []MembershipRecord `json:"memberships" yaml:"memberships"`
	Memories    []MemoryRecord     `json:"memories" yaml:"memories"`
	Foreshadows []ForeshadowRecord `json:"foreshadows" yaml:"foreshadows"`
}

type ProjectRecord struct {
	Title                string `json:"title" yaml:"title"`
	Genre                string `json:"genre,omitempty" yaml:"genre,omitempty"`
	Theme                string `json:"theme,omitempty" yaml:"theme,omitempty"`
	NarrativePerspective string `json:"narrative_perspective,omitempty" yaml:"narrative_perspective,omitempty"`
	OutlineMode          string `json:"outline_mode,omitempty" yaml:"outline_mode,omitempty"`
}

// CharacterRecord describes a character. Organizations are characters with
// IsOrganization set; Description only applies to them.
type CharacterRecord struct {
	Name           string `json:"name" yaml:"name"`
	Role           string `json:"role,omitempty" yaml:"role,omitempty"`
	Personality    string `json:"personality,omitempty" yaml:"personality,omitempty"`
	Background     string `json:"background,omitempty" yaml:"background,omitempty"`
	IsOrganization bool   `json:"is_organization,omitempty" yaml:"is_organization,omitempty"`
	Description    string `json:"description,omitempty" yaml:"description,omitempty"`
}

type CareerRecord struct {
	Name        string                 `json:"name" yaml:"name"`
	Type        string                 `json:"type" yaml:"type"`
	Description string                 `json:"description,omitempty" yaml:"description,omitempty"`
	Stages      []entities.CareerStage `json:"stages,omitempty" yaml:"stages,omitempty"`
	MaxStage    int                    `json:"max_stage,omitempty" yaml:"max_stage,omitempty"`
}

type OutlineRecord struct {
	Order     int            `json:"order_index" yaml:"order_index"`
	Title     string         `json:"title" yaml:"title"`
	Content   string         `json:"content,omitempty" yaml:"content,omitempty"`
	Structure map[string]any `json:"structure,omitempty" yaml:"structure,omitempty"`
}

// ChapterRecord describes a chapter. Outline is the order index of the
// outline entry the chapter belongs to, if any.
type ChapterRecord struct {
	Number        int                     `json:"chapter_number" yaml:"chapter_number"`
	Title         string                  `json:"title" yaml:"title"`
	Summary       string                  `json:"summary,omitempty" yaml:"summary,omitempty"`
	Content       string                  `json:"content,omitempty" yaml:"content,omitempty"`
	Outline       *int                    `json:"outline,omitempty" yaml:"outline,omitempty"`
	ExpansionPlan *entities.ExpansionPlan `json:"expansion_plan,omitempty" yaml:"expansion_plan,omitempty"`
}

type IdentityCareerRecord struct {
	Career string `json:"career" yaml:"career"`
	Stage  int    `json:"stage,omitempty" yaml:"stage,omitempty"`
}

type IdentityRecord struct {
	Character        string                 `json:"character" yaml:"character"`
	Name             string                 `json:"name" yaml:"name"`
	Type             string                 `json:"type,omitempty" yaml:"type,omitempty"`
	Primary          bool                   `json:"is_primary,omitempty" yaml:"is_primary,omitempty"`
	Appearance       string                 `json:"appearance,omitempty" yaml:"appearance,omitempty"`
	Personality      string                 `json:"personality,omitempty" yaml:"personality,omitempty"`
	Background       string                 `json:"background,omitempty" yaml:"background,omitempty"`
	VoiceStyle       string                 `json:"voice_style,omitempty" yaml:"voice_style,omitempty"`
	Status           string                 `json:"status,omitempty" yaml:"status,omitempty"`
	ExposedAtChapter *int                   `json:"exposed_at_chapter,omitempty" yaml:"exposed_at_chapter,omitempty"`
	Careers          []IdentityCareerRecord `json:"careers,omitempty" yaml:"careers,omitempty"`
}

// KnowledgeRecord says that Knower knows the identity Identity of
// Character.
type KnowledgeRecord struct {
	Character     string `json:"character" yaml:"character"`
	Identity      string `json:"identity" yaml:"identity"`
	Knower        string `json:"knower" yaml:"knower"`
	Level         string `json:"level,omitempty" yaml:"level,omitempty"`
	DiscoveredHow string `json:"discovered_how,omitempty" yaml:"discovered_how,omitempty"`
	SinceWhen     string `json:"since_when,omitempty" yaml:"since_when,omitempty"`
	IsSecret      *bool  `json:"is_secret,omitempty" yaml:"is_secret,omitempty"`
}

// MembershipRecord places Character in Organization, through Identity when
// set.
type MembershipRecord struct {
	Organization string `json:"organization" yaml:"organization"`
	Character    string `json:"character" yaml:"character"`
	Identity     string `json:"identity,omitempty" yaml:"identity,omitempty"`
	Position     string `json:"position,omitempty" yaml:"position,omitempty"`
	Rank         int    `json:"rank,omitempty" yaml:"rank,omitempty"`
	Loyalty      *int   `json:"loyalty,omitempty" yaml:"loyalty,omitempty"`
	Status       string `json:"status,omitempty" yaml:"status,omitempty"`
	JoinedAt     string `json:"joined_at,omitempty" yaml:"joined_at,omitempty"`
	Notes        string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

type MemoryRecord struct {
	Type       string         `json:"memory_type" yaml:"memory_type"`
	Chapter    int            `json:"chapter,omitempty" yaml:"chapter,omitempty"`
	Title      string         `json:"title,omitempty" yaml:"title,omitempty"`
	Content    string         `json:"content" yaml:"content"`
	Importance *float64       `json:"importance,omitempty" yaml:"importance,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

type ForeshadowRecord struct {
	Title                string   `json:"title" yaml:"title"`
	Content              string   `json:"content" yaml:"content"`
	PlantChapter         int      `json:"plant_chapter" yaml:"plant_chapter"`
	TargetResolveChapter int      `json:"target_resolve_chapter,omitempty" yaml:"target_resolve_chapter,omitempty"`
	Status               string   `json:"status,omitempty" yaml:"status,omitempty"`
	Importance           *float64 `json:"importance,omitempty" yaml:"importance,omitempty"`
}

// Parser decodes bundles and chapter analyses.
type Parser interface {
	ParseBundle(r io.Reader) (*Bundle, error)
	ParseAnalysis(r io.Reader) (*entities.ChapterAnalysis, error)
}

// ForFormat returns the appropriate parser for the given format.
// Supported formats: "json", "yaml", "yml".
func ForFormat(format string) Parser {
	switch strings.ToLower(format) {
	case "json":
		return &JSONParser{}
	case "yaml", "yml":
		return &YAMLParser{}
	default:
		return nil
	}
}

// ForFile returns the appropriate parser based on file extension.
func ForFile(filename string) Parser {
	return ForFormat(strings.TrimPrefix(filepath.Ext(filename), "."))
}
