package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ersonp/lore-novel/internal/domain/entities"
)

const knowledgeColumns = `id, identity_id, knower_character_id, knowledge_level, discovered_how, since_when,
	is_secret, created_at, updated_at`

// SaveKnowledge saves or updates a knowledge edge.
func (r *Repository) SaveKnowledge(ctx context.Context, k *entities.IdentityKnowledge) error {
	if k.ID == "" {
		k.ID = generateUUID()
	}
	now := timeNow()
	if k.CreatedAt.IsZero() {
		k.CreatedAt = now
	}
	k.UpdatedAt = now

	query := `
		INSERT INTO identity_knowledge (` + knowledgeColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			knowledge_level = excluded.knowledge_level,
			discovered_how = excluded.discovered_how,
			since_when = excluded.since_when,
			is_secret = excluded.is_secret,
			updated_at = excluded.updated_at
	`
	_, err := r.q.ExecContext(ctx, query,
		k.ID,
		k.IdentityID,
		k.KnowerCharacterID,
		string(k.KnowledgeLevel),
		nullString(k.DiscoveredHow),
		nullString(k.SinceWhen),
		k.IsSecret,
		k.CreatedAt,
		k.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving knowledge: %w", err)
	}
	return nil
}

// FindKnowledgeByID finds a knowledge edge by its ID.
func (r *Repository) FindKnowledgeByID(ctx context.Context, id string) (*entities.IdentityKnowledge, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+knowledgeColumns+` FROM identity_knowledge WHERE id = ?`, id)
	return scanKnowledge(row)
}

// FindKnowledge finds the edge between an identity and a knower.
func (r *Repository) FindKnowledge(ctx context.Context, identityID, knowerID string) (*entities.IdentityKnowledge, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+knowledgeColumns+` FROM identity_knowledge WHERE identity_id = ? AND knower_character_id = ?`,
		identityID, knowerID,
	)
	return scanKnowledge(row)
}

// ListKnowledgeByIdentity lists the edges of an identity. An empty level
// matches every level.
func (r *Repository) ListKnowledgeByIdentity(ctx context.Context, identityID string, level entities.KnowledgeLevel) ([]*entities.IdentityKnowledge, error) {
	query := `SELECT ` + knowledgeColumns + ` FROM identity_knowledge WHERE identity_id = ?`
	args := []any{identityID}
	if level != "" {
		query += ` AND knowledge_level = ?`
		args = append(args, string(level))
	}
	query += ` ORDER BY created_at ASC, rowid ASC`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying knowledge: %w", err)
	}
	defer rows.Close()

	var result []*entities.IdentityKnowledge
	for rows.Next() {
		k, err := scanKnowledge(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, k)
	}
	return result, rows.Err()
}

// DeleteKnowledge deletes a knowledge edge by ID.
func (r *Repository) DeleteKnowledge(ctx context.Context, id string) (bool, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM identity_knowledge WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting knowledge: %w", err)
	}
	return affected(res)
}

// DeleteKnowledgeByIdentity deletes every edge pointing at an identity.
func (r *Repository) DeleteKnowledgeByIdentity(ctx context.Context, identityID string) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM identity_knowledge WHERE identity_id = ?`, identityID); err != nil {
		return fmt.Errorf("deleting knowledge by identity: %w", err)
	}
	return nil
}

// DeleteKnowledgeByKnower deletes every edge held by a character.
func (r *Repository) DeleteKnowledgeByKnower(ctx context.Context, characterID string) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM identity_knowledge WHERE knower_character_id = ?`, characterID); err != nil {
		return fmt.Errorf("deleting knowledge by knower: %w", err)
	}
	return nil
}

func scanKnowledge(s scanner) (*entities.IdentityKnowledge, error) {
	var k entities.IdentityKnowledge
	var level string
	var discoveredHow, sinceWhen sql.NullString
	err := s.Scan(
		&k.ID,
		&k.IdentityID,
		&k.KnowerCharacterID,
		&level,
		&discoveredHow,
		&sinceWhen,
		&k.IsSecret,
		&k.CreatedAt,
		&k.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning knowledge: %w", err)
	}
	k.KnowledgeLevel = entities.KnowledgeLevel(level)
	k.DiscoveredHow = discoveredHow.String
	k.SinceWhen = sinceWhen.String
	return &k, nil
}
