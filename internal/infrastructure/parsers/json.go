package parsers

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ersonp/lore-novel/internal/domain/entities"
)

// JSONParser parses bundles and analyses from JSON.
type JSONParser struct{}

// ParseBundle reads a project bundle.
func (p *JSONParser) ParseBundle(r io.Reader) (*Bundle, error) {
	var bundle Bundle
	if err := json.NewDecoder(r).Decode(&bundle); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	return &bundle, nil
}

// ParseAnalysis reads a chapter analysis.
func (p *JSONParser) ParseAnalysis(r io.Reader) (*entities.ChapterAnalysis, error) {
	var analysis entities.ChapterAnalysis
	if err := json.NewDecoder(r).Decode(&analysis); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	return &analysis, nil
}
