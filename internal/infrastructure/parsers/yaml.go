package parsers

import (
	"errors"
	"fmt"
	"io"

	"github.com/ersonp/lore-novel/internal/domain/entities"
	"gopkg.in/yaml.v3"
)

// YAMLParser parses bundles and analyses from YAML.
type YAMLParser struct{}

// ParseBundle reads a project bundle.
func (p *YAMLParser) ParseBundle(r io.Reader) (*Bundle, error) {
	var bundle Bundle
	if err := decodeYAML(r, &bundle); err != nil {
		return nil, err
	}
	return &bundle, nil
}

// ParseAnalysis reads a chapter analysis.
func (p *YAMLParser) ParseAnalysis(r io.Reader) (*entities.ChapterAnalysis, error) {
	var analysis entities.ChapterAnalysis
	if err := decodeYAML(r, &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}

func decodeYAML(r io.Reader, out any) error {
	if err := yaml.NewDecoder(r).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("parsing YAML: empty document")
		}
		return fmt.Errorf("parsing YAML: %w", err)
	}
	return nil
}
