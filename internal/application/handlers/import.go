package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/ersonp/lore-novel/internal/domain/services"
	"github.com/ersonp/lore-novel/internal/infrastructure/parsers"
)

// ImportHandler handles importing project bundles from files.
type ImportHandler struct {
	service *services.ImportService
}

// NewImportHandler creates a new import handler.
func NewImportHandler(service *services.ImportService) *ImportHandler {
	return &ImportHandler{
		service: service,
	}
}

// ImportOptions controls import behavior.
type ImportOptions struct {
	Format string // "json", "yaml", or "auto"
	DryRun bool   // Validate without saving
}

// Handle imports a project bundle from a file.
func (h *ImportHandler) Handle(ctx context.Context, filePath string, opts ImportOptions) (*services.ImportResult, error) {
	var parser parsers.Parser
	if opts.Format == "" || opts.Format == "auto" {
		parser = parsers.ForFile(filePath)
	} else {
		parser = parsers.ForFormat(opts.Format)
	}

	if parser == nil {
		return nil, fmt.Errorf("unsupported format for file: %s", filePath)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer file.Close()

	bundle, err := parser.ParseBundle(file)
	if err != nil {
		return nil, fmt.Errorf("parsing file: %w", err)
	}

	return h.service.Import(ctx, bundle, services.ImportOptions{DryRun: opts.DryRun})
}
