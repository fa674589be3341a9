package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ersonp/lore-novel/internal/domain/entities"
	"github.com/ersonp/lore-novel/internal/domain/ports"
)

const identityColumns = `id, character_id, project_id, name, identity_type, is_primary, appearance, personality,
	background, voice_style, status, exposed_at_chapter, created_at, updated_at`

// InsertIdentity inserts a new identity.
func (r *Repository) InsertIdentity(ctx context.Context, identity *entities.Identity) error {
	if identity.ID == "" {
		identity.ID = generateUUID()
	}
	now := timeNow()
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = now
	}
	identity.UpdatedAt = now
	if identity.Status == "" {
		identity.Status = entities.IdentityActive
	}

	query := `
		INSERT INTO identities (` + identityColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.q.ExecContext(ctx, query,
		identity.ID,
		identity.CharacterID,
		identity.ProjectID,
		identity.Name,
		string(identity.Type),
		identity.IsPrimary,
		nullString(identity.Appearance),
		nullString(identity.Personality),
		nullString(identity.Background),
		nullString(identity.VoiceStyle),
		string(identity.Status),
		nullInt(identity.ExposedAtChapter),
		identity.CreatedAt,
		identity.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting identity: %w", err)
	}
	return nil
}

// UpdateIdentity writes the mutable fields of an identity. The exposure
// chapter is only written while it is still unset.
func (r *Repository) UpdateIdentity(ctx context.Context, identity *entities.Identity) error {
	identity.UpdatedAt = timeNow()

	query := `
		UPDATE identities SET
			name = ?,
			identity_type = ?,
			is_primary = ?,
			appearance = ?,
			personality = ?,
			background = ?,
			voice_style = ?,
			status = ?,
			exposed_at_chapter = COALESCE(exposed_at_chapter, ?),
			updated_at = ?
		WHERE id = ?
	`
	_, err := r.q.ExecContext(ctx, query,
		identity.Name,
		string(identity.Type),
		identity.IsPrimary,
		nullString(identity.Appearance),
		nullString(identity.Personality),
		nullString(identity.Background),
		nullString(identity.VoiceStyle),
		string(identity.Status),
		nullInt(identity.ExposedAtChapter),
		identity.UpdatedAt,
		identity.ID,
	)
	if err != nil {
		return fmt.Errorf("updating identity: %w", err)
	}
	return nil
}

// FindIdentityByID finds an identity by its ID.
func (r *Repository) FindIdentityByID(ctx context.Context, id string) (*entities.Identity, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+identityColumns+` FROM identities WHERE id = ?`, id)
	return scanIdentity(row)
}

// FindIdentityByName finds an identity of a character by exact name.
func (r *Repository) FindIdentityByName(ctx context.Context, characterID, name string) (*entities.Identity, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE character_id = ? AND name = ?
		ORDER BY created_at ASC, rowid ASC LIMIT 1`,
		characterID, name,
	)
	return scanIdentity(row)
}

// ListIdentitiesByCharacter lists identities primary first, then oldest first.
func (r *Repository) ListIdentitiesByCharacter(ctx context.Context, characterID string) ([]*entities.Identity, error) {
	query := `
		SELECT ` + identityColumns + `
		FROM identities
		WHERE character_id = ?
		ORDER BY is_primary DESC, created_at ASC, rowid ASC
	`
	return r.queryIdentities(ctx, query, characterID)
}

// ListIdentities lists identities matching the filter, newest first.
func (r *Repository) ListIdentities(ctx context.Context, filter ports.IdentityFilter) ([]*entities.Identity, error) {
	var conditions []string
	var args []any

	if filter.ProjectID != "" {
		conditions = append(conditions, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.CharacterID != "" {
		conditions = append(conditions, "character_id = ?")
		args = append(args, filter.CharacterID)
	}
	if filter.Type != "" {
		conditions = append(conditions, "identity_type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := `SELECT ` + identityColumns + ` FROM identities`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"

	return r.queryIdentities(ctx, query, args...)
}

// FindPrimaryIdentity finds the primary identity of a character.
func (r *Repository) FindPrimaryIdentity(ctx context.Context, characterID string) (*entities.Identity, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE character_id = ? AND is_primary = 1`,
		characterID,
	)
	return scanIdentity(row)
}

// ClearPrimaryIdentities unsets is_primary on the character's identities
// other than exceptID.
func (r *Repository) ClearPrimaryIdentities(ctx context.Context, characterID, exceptID string) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE identities SET is_primary = 0, updated_at = ? WHERE character_id = ? AND id != ? AND is_primary = 1`,
		timeNow(), characterID, exceptID,
	)
	if err != nil {
		return fmt.Errorf("clearing primary identities: %w", err)
	}
	return nil
}

// MarkIdentityBurned burns an active or inactive identity and records the
// first exposure chapter in one conditional statement, so concurrent
// callers cannot both record an exposure chapter. Already burned
// identities are left untouched.
func (r *Repository) MarkIdentityBurned(ctx context.Context, id string, chapter int) (bool, error) {
	query := `
		UPDATE identities SET
			status = 'burned',
			exposed_at_chapter = COALESCE(exposed_at_chapter, ?),
			updated_at = ?
		WHERE id = ? AND status != 'burned'
	`
	res, err := r.q.ExecContext(ctx, query, chapter, timeNow(), id)
	if err != nil {
		return false, fmt.Errorf("burning identity: %w", err)
	}
	return affected(res)
}

// DeleteIdentity deletes an identity row.
func (r *Repository) DeleteIdentity(ctx context.Context, id string) (bool, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM identities WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting identity: %w", err)
	}
	return affected(res)
}

func (r *Repository) queryIdentities(ctx context.Context, query string, args ...any) ([]*entities.Identity, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying identities: %w", err)
	}
	defer rows.Close()

	var result []*entities.Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, identity)
	}
	return result, rows.Err()
}

func scanIdentity(s scanner) (*entities.Identity, error) {
	var i entities.Identity
	var identityType, status string
	var appearance, personality, background, voice sql.NullString
	var exposed sql.NullInt64
	err := s.Scan(
		&i.ID,
		&i.CharacterID,
		&i.ProjectID,
		&i.Name,
		&identityType,
		&i.IsPrimary,
		&appearance,
		&personality,
		&background,
		&voice,
		&status,
		&exposed,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning identity: %w", err)
	}
	i.Type = entities.IdentityType(identityType)
	i.Status = entities.IdentityStatus(status)
	i.Appearance = appearance.String
	i.Personality = personality.String
	i.Background = background.String
	i.VoiceStyle = voice.String
	i.ExposedAtChapter = intPtr(exposed)
	return &i, nil
}
