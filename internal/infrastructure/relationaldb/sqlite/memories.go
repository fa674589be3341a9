package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ersonp/lore-novel/internal/domain/entities"
)

const memoryColumns = `id, project_id, chapter_id, memory_type, title, content, story_timeline, importance_score,
	metadata, created_at`

// SaveMemory saves or updates a story memory.
func (r *Repository) SaveMemory(ctx context.Context, m *entities.StoryMemory) error {
	if m.ID == "" {
		m.ID = generateUUID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = timeNow()
	}

	var metadata sql.NullString
	if m.Metadata != nil {
		data, err := json.Marshal(m.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata: %w", err)
		}
		metadata = sql.NullString{String: string(data), Valid: true}
	}

	query := `
		INSERT INTO story_memories (` + memoryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			memory_type = excluded.memory_type,
			title = excluded.title,
			content = excluded.content,
			story_timeline = excluded.story_timeline,
			importance_score = excluded.importance_score,
			metadata = excluded.metadata
	`
	_, err := r.q.ExecContext(ctx, query,
		m.ID,
		m.ProjectID,
		nullString(m.ChapterID),
		string(m.MemoryType),
		nullString(m.Title),
		m.Content,
		m.StoryTimeline,
		m.ImportanceScore,
		metadata,
		m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving memory: %w", err)
	}
	return nil
}

// FindMemoriesByTimeline lists memories of a type for a chapter number,
// most important first.
func (r *Repository) FindMemoriesByTimeline(ctx context.Context, projectID string, memoryType entities.MemoryType, chapter int) ([]*entities.StoryMemory, error) {
	query := `
		SELECT ` + memoryColumns + `
		FROM story_memories
		WHERE project_id = ? AND memory_type = ? AND story_timeline = ?
		ORDER BY importance_score DESC, created_at ASC, rowid ASC
	`
	return r.queryMemories(ctx, query, projectID, string(memoryType), chapter)
}

// ListMemories lists the memories of a project, optionally of one type.
func (r *Repository) ListMemories(ctx context.Context, projectID string, memoryType entities.MemoryType) ([]*entities.StoryMemory, error) {
	query := `SELECT ` + memoryColumns + ` FROM story_memories WHERE project_id = ?`
	args := []any{projectID}
	if memoryType != "" {
		query += ` AND memory_type = ?`
		args = append(args, string(memoryType))
	}
	query += ` ORDER BY story_timeline ASC, created_at ASC, rowid ASC`
	return r.queryMemories(ctx, query, args...)
}

func (r *Repository) queryMemories(ctx context.Context, query string, args ...any) ([]*entities.StoryMemory, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying memories: %w", err)
	}
	defer rows.Close()

	var result []*entities.StoryMemory
	for rows.Next() {
		var m entities.StoryMemory
		var memoryType string
		var chapterID, title, metadata sql.NullString
		if err := rows.Scan(
			&m.ID,
			&m.ProjectID,
			&chapterID,
			&memoryType,
			&title,
			&m.Content,
			&m.StoryTimeline,
			&m.ImportanceScore,
			&metadata,
			&m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning memory: %w", err)
		}
		m.MemoryType = entities.MemoryType(memoryType)
		m.ChapterID = chapterID.String
		m.Title = title.String
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &m.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshaling metadata: %w", err)
			}
		}
		result = append(result, &m)
	}
	return result, rows.Err()
}

// SaveForeshadow saves or updates a foreshadow.
func (r *Repository) SaveForeshadow(ctx context.Context, f *entities.Foreshadow) error {
	if f.ID == "" {
		f.ID = generateUUID()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = timeNow()
	}
	if f.Status == "" {
		f.Status = entities.ForeshadowPending
	}

	var target sql.NullInt64
	if f.TargetResolveChapter > 0 {
		target = sql.NullInt64{Int64: int64(f.TargetResolveChapter), Valid: true}
	}

	query := `
		INSERT INTO foreshadows (id, project_id, title, content, plant_chapter, target_resolve_chapter, status, importance, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			plant_chapter = excluded.plant_chapter,
			target_resolve_chapter = excluded.target_resolve_chapter,
			status = excluded.status,
			importance = excluded.importance
	`
	_, err := r.q.ExecContext(ctx, query,
		f.ID,
		f.ProjectID,
		f.Title,
		f.Content,
		f.PlantChapter,
		target,
		string(f.Status),
		f.Importance,
		f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving foreshadow: %w", err)
	}
	return nil
}

// ListForeshadows lists the foreshadows of a project in plant order. With
// no statuses every foreshadow is returned.
func (r *Repository) ListForeshadows(ctx context.Context, projectID string, statuses ...entities.ForeshadowStatus) ([]*entities.Foreshadow, error) {
	query := `
		SELECT id, project_id, title, content, plant_chapter, target_resolve_chapter, status, importance, created_at
		FROM foreshadows
		WHERE project_id = ?`
	args := []any{projectID}
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, s := range statuses {
			placeholders[i] = "?"
			args = append(args, string(s))
		}
		query += fmt.Sprintf(" AND status IN (%s)", strings.Join(placeholders, ","))
	}
	query += " ORDER BY plant_chapter ASC, importance DESC, rowid ASC"

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying foreshadows: %w", err)
	}
	defer rows.Close()

	var result []*entities.Foreshadow
	for rows.Next() {
		var f entities.Foreshadow
		var status string
		var target sql.NullInt64
		if err := rows.Scan(
			&f.ID,
			&f.ProjectID,
			&f.Title,
			&f.Content,
			&f.PlantChapter,
			&target,
			&status,
			&f.Importance,
			&f.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning foreshadow: %w", err)
		}
		f.Status = entities.ForeshadowStatus(status)
		f.TargetResolveChapter = int(target.Int64)
		result = append(result, &f)
	}
	return result, rows.Err()
}
