package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ersonp/lore-novel/internal/domain/entities"
)

// SaveProject saves or updates a project.
func (r *Repository) SaveProject(ctx context.Context, project *entities.Project) error {
	if project.ID == "" {
		project.ID = generateUUID()
	}
	now := timeNow()
	if project.CreatedAt.IsZero() {
		project.CreatedAt = now
	}
	project.UpdatedAt = now
	if project.OutlineMode == "" {
		project.OutlineMode = entities.OutlineOneToMany
	}

	query := `
		INSERT INTO projects (id, title, genre, theme, narrative_perspective, outline_mode, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			genre = excluded.genre,
			theme = excluded.theme,
			narrative_perspective = excluded.narrative_perspective,
			outline_mode = excluded.outline_mode,
			updated_at = excluded.updated_at
	`
	_, err := r.q.ExecContext(ctx, query,
		project.ID,
		project.Title,
		nullString(project.Genre),
		nullString(project.Theme),
		nullString(project.NarrativePerspective),
		string(project.OutlineMode),
		project.CreatedAt,
		project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving project: %w", err)
	}
	return nil
}

const projectColumns = `id, title, genre, theme, narrative_perspective, outline_mode, created_at, updated_at`

// FindProjectByID finds a project by its ID.
func (r *Repository) FindProjectByID(ctx context.Context, id string) (*entities.Project, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	return scanProject(row)
}

// FindProjectByTitle finds a project by its title.
func (r *Repository) FindProjectByTitle(ctx context.Context, title string) (*entities.Project, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE title = ?`, title)
	return scanProject(row)
}

// ListProjects lists all projects by title.
func (r *Repository) ListProjects(ctx context.Context) ([]*entities.Project, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY title ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	defer rows.Close()

	var result []*entities.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanProject(s scanner) (*entities.Project, error) {
	var p entities.Project
	var genre, theme, perspective sql.NullString
	var mode string
	err := s.Scan(&p.ID, &p.Title, &genre, &theme, &perspective, &mode, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning project: %w", err)
	}
	p.Genre = genre.String
	p.Theme = theme.String
	p.NarrativePerspective = perspective.String
	p.OutlineMode = entities.OutlineMode(mode)
	return &p, nil
}

// SaveCharacter saves or updates a character.
func (r *Repository) SaveCharacter(ctx context.Context, character *entities.Character) error {
	if character.ID == "" {
		character.ID = generateUUID()
	}
	now := timeNow()
	if character.CreatedAt.IsZero() {
		character.CreatedAt = now
	}
	character.UpdatedAt = now

	query := `
		INSERT INTO characters (id, project_id, name, role_type, personality, background, is_organization, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			role_type = excluded.role_type,
			personality = excluded.personality,
			background = excluded.background,
			is_organization = excluded.is_organization,
			updated_at = excluded.updated_at
	`
	_, err := r.q.ExecContext(ctx, query,
		character.ID,
		character.ProjectID,
		character.Name,
		nullString(string(character.RoleType)),
		nullString(character.Personality),
		nullString(character.Background),
		character.IsOrganization,
		character.CreatedAt,
		character.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving character: %w", err)
	}
	return nil
}

const characterColumns = `id, project_id, name, role_type, personality, background, is_organization, created_at, updated_at`

// FindCharacterByID finds a character by its ID.
func (r *Repository) FindCharacterByID(ctx context.Context, id string) (*entities.Character, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+characterColumns+` FROM characters WHERE id = ?`, id)
	return scanCharacter(row)
}

// FindCharacterByName finds a character of a project by exact name.
func (r *Repository) FindCharacterByName(ctx context.Context, projectID, name string) (*entities.Character, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+characterColumns+` FROM characters WHERE project_id = ? AND name = ?`,
		projectID, name,
	)
	return scanCharacter(row)
}

// ListCharacters lists the characters of a project in creation order.
func (r *Repository) ListCharacters(ctx context.Context, projectID string) ([]*entities.Character, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+characterColumns+` FROM characters WHERE project_id = ? ORDER BY created_at ASC, rowid ASC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying characters: %w", err)
	}
	defer rows.Close()

	var result []*entities.Character
	for rows.Next() {
		c, err := scanCharacter(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// DeleteCharacter deletes a character row.
func (r *Repository) DeleteCharacter(ctx context.Context, id string) (bool, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM characters WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting character: %w", err)
	}
	return affected(res)
}

func scanCharacter(s scanner) (*entities.Character, error) {
	var c entities.Character
	var role, personality, background sql.NullString
	err := s.Scan(&c.ID, &c.ProjectID, &c.Name, &role, &personality, &background, &c.IsOrganization, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning character: %w", err)
	}
	c.RoleType = entities.CharacterRole(role.String)
	c.Personality = personality.String
	c.Background = background.String
	return &c, nil
}

// SaveOrganization saves or updates an organization.
func (r *Repository) SaveOrganization(ctx context.Context, org *entities.Organization) error {
	if org.ID == "" {
		org.ID = generateUUID()
	}
	if org.CreatedAt.IsZero() {
		org.CreatedAt = timeNow()
	}

	query := `
		INSERT INTO organizations (id, project_id, character_id, name, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description
	`
	_, err := r.q.ExecContext(ctx, query,
		org.ID,
		org.ProjectID,
		org.CharacterID,
		org.Name,
		nullString(org.Description),
		org.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving organization: %w", err)
	}
	return nil
}

const organizationColumns = `id, project_id, character_id, name, description, created_at`

// FindOrganizationByID finds an organization by its ID.
func (r *Repository) FindOrganizationByID(ctx context.Context, id string) (*entities.Organization, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+organizationColumns+` FROM organizations WHERE id = ?`, id)
	return scanOrganization(row)
}

// FindOrganizationByCharacter finds the organization backed by a character.
func (r *Repository) FindOrganizationByCharacter(ctx context.Context, characterID string) (*entities.Organization, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+organizationColumns+` FROM organizations WHERE character_id = ?`, characterID)
	return scanOrganization(row)
}

func scanOrganization(s scanner) (*entities.Organization, error) {
	var o entities.Organization
	var description sql.NullString
	err := s.Scan(&o.ID, &o.ProjectID, &o.CharacterID, &o.Name, &description, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning organization: %w", err)
	}
	o.Description = description.String
	return &o, nil
}
