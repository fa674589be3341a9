package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ersonp/lore-novel/internal/domain/entities"
)

// LogAction logs an action to the audit log.
func (r *Repository) LogAction(ctx context.Context, entry *entities.AuditEntry) error {
	var detailsJSON sql.NullString
	if entry.Details != nil {
		data, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("marshaling details: %w", err)
		}
		detailsJSON = sql.NullString{String: string(data), Valid: true}
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = timeNow()
	}

	query := `INSERT INTO audit_log (project_id, action, subject_id, details, created_at) VALUES (?, ?, ?, ?, ?)`
	res, err := r.q.ExecContext(ctx, query,
		nullString(entry.ProjectID),
		entry.Action,
		nullString(entry.SubjectID),
		detailsJSON,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("logging action: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		entry.ID = id
	}
	return nil
}

// ListAudit returns the latest audit entries of a project.
func (r *Repository) ListAudit(ctx context.Context, projectID string, limit int) ([]entities.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, project_id, action, subject_id, details, created_at
		FROM audit_log
		WHERE project_id = ?
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := r.q.QueryContext(ctx, query, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	entries := make([]entities.AuditEntry, 0, limit)
	for rows.Next() {
		var entry entities.AuditEntry
		var project, subject, details sql.NullString

		if err := rows.Scan(
			&entry.ID,
			&project,
			&entry.Action,
			&subject,
			&details,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}

		entry.ProjectID = project.String
		entry.SubjectID = subject.String

		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &entry.Details); err != nil {
				return nil, fmt.Errorf("unmarshaling details: %w", err)
			}
		}

		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
