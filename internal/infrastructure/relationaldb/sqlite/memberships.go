package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ersonp/lore-novel/internal/domain/entities"
)

const membershipColumns = `id, organization_id, character_id, identity_id, position, member_rank, loyalty, status,
	joined_at, notes, created_at, updated_at`

// SaveMembership saves or updates an organization membership.
func (r *Repository) SaveMembership(ctx context.Context, m *entities.OrganizationMember) error {
	if m.ID == "" {
		m.ID = generateUUID()
	}
	now := timeNow()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	if m.Status == "" {
		m.Status = entities.MembershipActive
	}

	var identityID sql.NullString
	if m.IdentityID != nil {
		identityID = sql.NullString{String: *m.IdentityID, Valid: true}
	}

	query := `
		INSERT INTO organization_members (` + membershipColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			identity_id = excluded.identity_id,
			position = excluded.position,
			member_rank = excluded.member_rank,
			loyalty = excluded.loyalty,
			status = excluded.status,
			joined_at = excluded.joined_at,
			notes = excluded.notes,
			updated_at = excluded.updated_at
	`
	_, err := r.q.ExecContext(ctx, query,
		m.ID,
		m.OrganizationID,
		m.CharacterID,
		identityID,
		nullString(m.Position),
		m.Rank,
		m.Loyalty,
		string(m.Status),
		nullString(m.JoinedAt),
		nullString(m.Notes),
		m.CreatedAt,
		m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving membership: %w", err)
	}
	return nil
}

// FindMembershipByID finds a membership by its ID.
func (r *Repository) FindMembershipByID(ctx context.Context, id string) (*entities.OrganizationMember, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+membershipColumns+` FROM organization_members WHERE id = ?`, id)
	return scanMembership(row)
}

// ListMembershipsByIdentity lists memberships held through an identity.
func (r *Repository) ListMembershipsByIdentity(ctx context.Context, identityID string) ([]*entities.OrganizationMember, error) {
	return r.queryMemberships(ctx,
		`SELECT `+membershipColumns+` FROM organization_members WHERE identity_id = ? ORDER BY created_at ASC, rowid ASC`,
		identityID,
	)
}

// ListMembershipsByCharacter lists every membership of a character.
func (r *Repository) ListMembershipsByCharacter(ctx context.Context, characterID string) ([]*entities.OrganizationMember, error) {
	return r.queryMemberships(ctx,
		`SELECT `+membershipColumns+` FROM organization_members WHERE character_id = ? ORDER BY created_at ASC, rowid ASC`,
		characterID,
	)
}

// DeleteMembershipsByCharacter deletes every membership of a character.
func (r *Repository) DeleteMembershipsByCharacter(ctx context.Context, characterID string) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM organization_members WHERE character_id = ?`, characterID); err != nil {
		return fmt.Errorf("deleting memberships: %w", err)
	}
	return nil
}

func (r *Repository) queryMemberships(ctx context.Context, query string, args ...any) ([]*entities.OrganizationMember, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying memberships: %w", err)
	}
	defer rows.Close()

	var result []*entities.OrganizationMember
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func scanMembership(s scanner) (*entities.OrganizationMember, error) {
	var m entities.OrganizationMember
	var status string
	var identityID, position, joinedAt, notes sql.NullString
	err := s.Scan(
		&m.ID,
		&m.OrganizationID,
		&m.CharacterID,
		&identityID,
		&position,
		&m.Rank,
		&m.Loyalty,
		&status,
		&joinedAt,
		&notes,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning membership: %w", err)
	}
	if identityID.Valid {
		id := identityID.String
		m.IdentityID = &id
	}
	m.Status = entities.MembershipStatus(status)
	m.Position = position.String
	m.JoinedAt = joinedAt.String
	m.Notes = notes.String
	return &m, nil
}
