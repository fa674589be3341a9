package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ersonp/lore-novel/internal/domain/entities"
)

// SaveCareer saves or updates a career definition.
func (r *Repository) SaveCareer(ctx context.Context, career *entities.Career) error {
	if career.ID == "" {
		career.ID = generateUUID()
	}
	if career.CreatedAt.IsZero() {
		career.CreatedAt = timeNow()
	}

	var stages sql.NullString
	if len(career.Stages) > 0 {
		data, err := json.Marshal(career.Stages)
		if err != nil {
			return fmt.Errorf("marshaling stages: %w", err)
		}
		stages = sql.NullString{String: string(data), Valid: true}
	}

	query := `
		INSERT INTO careers (id, project_id, name, type, description, stages, max_stage, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			description = excluded.description,
			stages = excluded.stages,
			max_stage = excluded.max_stage
	`
	_, err := r.q.ExecContext(ctx, query,
		career.ID,
		career.ProjectID,
		career.Name,
		string(career.Type),
		nullString(career.Description),
		stages,
		career.MaxStage,
		career.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving career: %w", err)
	}
	return nil
}

const careerColumns = `id, project_id, name, type, description, stages, max_stage, created_at`

// FindCareerByID finds a career by its ID.
func (r *Repository) FindCareerByID(ctx context.Context, id string) (*entities.Career, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+careerColumns+` FROM careers WHERE id = ?`, id)
	return scanCareer(row)
}

// FindCareerByName finds a career of a project by name.
func (r *Repository) FindCareerByName(ctx context.Context, projectID, name string) (*entities.Career, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+careerColumns+` FROM careers WHERE project_id = ? AND name = ?`, projectID, name)
	return scanCareer(row)
}

func scanCareer(s scanner) (*entities.Career, error) {
	var c entities.Career
	var careerType string
	var description, stages sql.NullString
	err := s.Scan(&c.ID, &c.ProjectID, &c.Name, &careerType, &description, &stages, &c.MaxStage, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning career: %w", err)
	}
	c.Type = entities.CareerType(careerType)
	c.Description = description.String
	if stages.Valid && stages.String != "" {
		if err := json.Unmarshal([]byte(stages.String), &c.Stages); err != nil {
			return nil, fmt.Errorf("unmarshaling stages: %w", err)
		}
	}
	return &c, nil
}

// SaveIdentityCareer saves or updates an identity career link.
func (r *Repository) SaveIdentityCareer(ctx context.Context, link *entities.IdentityCareer) error {
	if link.ID == "" {
		link.ID = generateUUID()
	}
	now := timeNow()
	if link.CreatedAt.IsZero() {
		link.CreatedAt = now
	}
	link.UpdatedAt = now

	query := `
		INSERT INTO identity_careers (id, identity_id, career_id, career_type, current_stage, stage_progress,
			started_at, reached_current_stage_at, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			current_stage = excluded.current_stage,
			stage_progress = excluded.stage_progress,
			started_at = excluded.started_at,
			reached_current_stage_at = excluded.reached_current_stage_at,
			notes = excluded.notes,
			updated_at = excluded.updated_at
	`
	_, err := r.q.ExecContext(ctx, query,
		link.ID,
		link.IdentityID,
		link.CareerID,
		string(link.CareerType),
		link.CurrentStage,
		link.StageProgress,
		nullString(link.StartedAt),
		nullString(link.ReachedAt),
		nullString(link.Notes),
		link.CreatedAt,
		link.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving identity career: %w", err)
	}
	return nil
}

const identityCareerColumns = `id, identity_id, career_id, career_type, current_stage, stage_progress,
	started_at, reached_current_stage_at, notes, created_at, updated_at`

// FindIdentityCareer finds the link between an identity and a career.
func (r *Repository) FindIdentityCareer(ctx context.Context, identityID, careerID string) (*entities.IdentityCareer, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+identityCareerColumns+` FROM identity_careers WHERE identity_id = ? AND career_id = ?`,
		identityID, careerID,
	)
	return scanIdentityCareer(row)
}

// ListIdentityCareers lists the career links of an identity, main careers first.
func (r *Repository) ListIdentityCareers(ctx context.Context, identityID string) ([]*entities.IdentityCareer, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+identityCareerColumns+` FROM identity_careers WHERE identity_id = ?
		ORDER BY CASE career_type WHEN 'main' THEN 0 ELSE 1 END, created_at ASC, rowid ASC`,
		identityID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying identity careers: %w", err)
	}
	defer rows.Close()

	var result []*entities.IdentityCareer
	for rows.Next() {
		link, err := scanIdentityCareer(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, link)
	}
	return result, rows.Err()
}

// DeleteIdentityCareer deletes the link between an identity and a career.
func (r *Repository) DeleteIdentityCareer(ctx context.Context, identityID, careerID string) (bool, error) {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM identity_careers WHERE identity_id = ? AND career_id = ?`,
		identityID, careerID,
	)
	if err != nil {
		return false, fmt.Errorf("deleting identity career: %w", err)
	}
	return affected(res)
}

// DeleteIdentityCareersByIdentity deletes every career link of an identity.
func (r *Repository) DeleteIdentityCareersByIdentity(ctx context.Context, identityID string) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM identity_careers WHERE identity_id = ?`, identityID); err != nil {
		return fmt.Errorf("deleting identity careers: %w", err)
	}
	return nil
}

func scanIdentityCareer(s scanner) (*entities.IdentityCareer, error) {
	var link entities.IdentityCareer
	var careerType string
	var startedAt, reachedAt, notes sql.NullString
	err := s.Scan(
		&link.ID,
		&link.IdentityID,
		&link.CareerID,
		&careerType,
		&link.CurrentStage,
		&link.StageProgress,
		&startedAt,
		&reachedAt,
		&notes,
		&link.CreatedAt,
		&link.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning identity career: %w", err)
	}
	link.CareerType = entities.CareerType(careerType)
	link.StartedAt = startedAt.String
	link.ReachedAt = reachedAt.String
	link.Notes = notes.String
	return &link, nil
}
