package handlers

import (
	"context"
	"fmt"

	"github.com/ersonp/lore-novel/internal/domain/apperrors"
	"github.com/ersonp/lore-novel/internal/domain/entities"
	"github.com/ersonp/lore-novel/internal/domain/ports"
)

// ResolveProject finds a project by ID or, failing that, by title. An empty
// ref selects the only project of the store.
func ResolveProject(ctx context.Context, db ports.ProjectStore, ref string) (*entities.Project, error) {
	if ref == "" {
		projects, err := db.ListProjects(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing projects: %w", err)
		}
		switch len(projects) {
		case 0:
			return nil, apperrors.NotFound("no projects (run 'novel import' first)")
		case 1:
			return projects[0], nil
		default:
			return nil, apperrors.Validation("%d projects found, select one with --project", len(projects))
		}
	}

	project, err := db.FindProjectByID(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("finding project: %w", err)
	}
	if project != nil {
		return project, nil
	}

	project, err = db.FindProjectByTitle(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("finding project: %w", err)
	}
	if project == nil {
		return nil, apperrors.NotFound("project %s", ref)
	}
	return project, nil
}
