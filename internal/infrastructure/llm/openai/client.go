// Package openai provides a ChapterAnalyzer implementation using OpenAI.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/ersonp/lore-novel/internal/domain/entities"
	"github.com/ersonp/lore-novel/internal/domain/ports"
	"github.com/ersonp/lore-novel/internal/infrastructure/config"
)

// maxChapterRunes bounds the chapter text sent for analysis.
const maxChapterRunes = 12000

const analysisPrompt = `You track secret identities in a novel. Read the chapter and report every
moment where a character's identity is exposed to other characters.

Only report identities listed in the cast. For each exposure return:
- character_name: the character whose identity is exposed, exactly as in the cast
- exposed_identity_name: the exposed identity, exactly as in the cast
- exposure_type: "secret_revealed" when a hidden allegiance or role is revealed,
  "disguise_broken" when a disguise is seen through
- exposure_context: one sentence describing how it happened
- witnesses: names of cast characters who learned the truth
- impact_on_organization: consequence for the organizations involved, or ""

Return ONLY a JSON object, no other text.

Example:
{"identity_exposures": [
  {"character_name": "Ming Lou", "exposed_identity_name": "Viper",
   "exposure_type": "secret_revealed", "exposure_context": "Wang finds the codebook in his desk",
   "witnesses": ["Wang Manchun"], "impact_on_organization": "the Shanghai cell must relocate"}
]}
Return {"identity_exposures": []} if nothing is exposed.`

// Client implements ports.ChapterAnalyzer using OpenAI chat completions.
type Client struct {
	client *openai.Client
	model  string
}

// NewClient creates a new OpenAI LLM client.
func NewClient(cfg config.LLMConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := "gpt-4o-mini"
	if cfg.Model != "" {
		model = cfg.Model
	}

	return &Client{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}, nil
}

// AnalyzeIdentityExposures asks the model which identities the chapter
// exposes.
func (c *Client) AnalyzeIdentityExposures(
	ctx context.Context,
	chapter *entities.Chapter,
	cast []ports.AnalysisCharacter,
) (*entities.ChapterAnalysis, error) {
	if strings.TrimSpace(chapter.Content) == "" {
		return &entities.ChapterAnalysis{}, nil
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: analysisPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: chapterMessage(chapter, cast),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("calling OpenAI: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.New("no response from OpenAI")
	}

	content := cleanJSONResponse(resp.Choices[0].Message.Content)

	var analysis entities.ChapterAnalysis
	if err := json.Unmarshal([]byte(content), &analysis); err != nil {
		return nil, fmt.Errorf("parsing analysis JSON: %w (response: %s)", err, content)
	}

	for i := range analysis.IdentityExposures {
		normalizeEvent(&analysis.IdentityExposures[i])
	}
	return &analysis, nil
}

// chapterMessage lists the cast with their identities followed by the
// chapter text.
func chapterMessage(chapter *entities.Chapter, cast []ports.AnalysisCharacter) string {
	var b strings.Builder
	b.WriteString("Cast:\n")
	for _, member := range cast {
		if member.Character == nil {
			continue
		}
		names := make([]string, 0, len(member.Identities))
		for _, identity := range member.Identities {
			names = append(names, fmt.Sprintf("%s (%s)", identity.Name, identity.Type))
		}
		if len(names) == 0 {
			fmt.Fprintf(&b, "- %s\n", member.Character.Name)
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", member.Character.Name, strings.Join(names, ", "))
	}

	fmt.Fprintf(&b, "\nChapter %d", chapter.ChapterNumber)
	if chapter.Title != "" {
		fmt.Fprintf(&b, ": %s", chapter.Title)
	}
	b.WriteString("\n\n")

	content := []rune(strings.TrimSpace(chapter.Content))
	if len(content) > maxChapterRunes {
		content = content[:maxChapterRunes]
	}
	b.WriteString(string(content))
	return b.String()
}

func normalizeEvent(e *entities.ExposureEvent) {
	e.CharacterName = strings.TrimSpace(e.CharacterName)
	e.ExposedIdentityName = strings.TrimSpace(e.ExposedIdentityName)
	e.ExposureType = entities.ExposureType(strings.ToLower(strings.TrimSpace(string(e.ExposureType))))

	witnesses := e.Witnesses[:0]
	for _, w := range e.Witnesses {
		if w = strings.TrimSpace(w); w != "" {
			witnesses = append(witnesses, w)
		}
	}
	e.Witnesses = witnesses
}

// cleanJSONResponse removes markdown code blocks if present.
func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimSuffix(content, "```")
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
	}

	return strings.TrimSpace(content)
}
