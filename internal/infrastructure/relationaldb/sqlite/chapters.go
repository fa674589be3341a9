package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ersonp/lore-novel/internal/domain/entities"
)

// SaveChapter saves or updates a chapter.
func (r *Repository) SaveChapter(ctx context.Context, chapter *entities.Chapter) error {
	if chapter.ID == "" {
		chapter.ID = generateUUID()
	}
	now := timeNow()
	if chapter.CreatedAt.IsZero() {
		chapter.CreatedAt = now
	}
	chapter.UpdatedAt = now

	query := `
		INSERT INTO chapters (id, project_id, outline_id, chapter_number, title, summary, content, expansion_plan, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			outline_id = excluded.outline_id,
			chapter_number = excluded.chapter_number,
			title = excluded.title,
			summary = excluded.summary,
			content = excluded.content,
			expansion_plan = excluded.expansion_plan,
			updated_at = excluded.updated_at
	`
	_, err := r.q.ExecContext(ctx, query,
		chapter.ID,
		chapter.ProjectID,
		nullString(chapter.OutlineID),
		chapter.ChapterNumber,
		chapter.Title,
		nullString(chapter.Summary),
		nullString(chapter.Content),
		nullString(chapter.ExpansionPlan),
		chapter.CreatedAt,
		chapter.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving chapter: %w", err)
	}
	return nil
}

const chapterColumns = `id, project_id, outline_id, chapter_number, title, summary, content, expansion_plan, created_at, updated_at`

// FindChapterByID finds a chapter by its ID.
func (r *Repository) FindChapterByID(ctx context.Context, id string) (*entities.Chapter, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+chapterColumns+` FROM chapters WHERE id = ?`, id)
	return scanChapter(row)
}

// FindChapterByNumber finds a chapter of a project by its number.
func (r *Repository) FindChapterByNumber(ctx context.Context, projectID string, number int) (*entities.Chapter, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+chapterColumns+` FROM chapters WHERE project_id = ? AND chapter_number = ?`,
		projectID, number,
	)
	return scanChapter(row)
}

// ListCompletedChaptersBefore lists written chapters numbered below number.
func (r *Repository) ListCompletedChaptersBefore(ctx context.Context, projectID string, number int) ([]*entities.Chapter, error) {
	query := `
		SELECT ` + chapterColumns + `
		FROM chapters
		WHERE project_id = ? AND chapter_number < ? AND content IS NOT NULL AND TRIM(content) != ''
		ORDER BY chapter_number ASC
	`
	rows, err := r.q.QueryContext(ctx, query, projectID, number)
	if err != nil {
		return nil, fmt.Errorf("querying chapters: %w", err)
	}
	defer rows.Close()

	var result []*entities.Chapter
	for rows.Next() {
		c, err := scanChapter(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func scanChapter(s scanner) (*entities.Chapter, error) {
	var c entities.Chapter
	var outlineID, summary, content, plan sql.NullString
	err := s.Scan(
		&c.ID,
		&c.ProjectID,
		&outlineID,
		&c.ChapterNumber,
		&c.Title,
		&summary,
		&content,
		&plan,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning chapter: %w", err)
	}
	c.OutlineID = outlineID.String
	c.Summary = summary.String
	c.Content = content.String
	c.ExpansionPlan = plan.String
	return &c, nil
}

// SaveOutline saves or updates an outline.
func (r *Repository) SaveOutline(ctx context.Context, outline *entities.Outline) error {
	if outline.ID == "" {
		outline.ID = generateUUID()
	}
	if outline.CreatedAt.IsZero() {
		outline.CreatedAt = timeNow()
	}

	query := `
		INSERT INTO outlines (id, project_id, order_index, title, content, structure, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			order_index = excluded.order_index,
			title = excluded.title,
			content = excluded.content,
			structure = excluded.structure
	`
	_, err := r.q.ExecContext(ctx, query,
		outline.ID,
		outline.ProjectID,
		outline.OrderIndex,
		outline.Title,
		nullString(outline.Content),
		nullString(outline.Structure),
		outline.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving outline: %w", err)
	}
	return nil
}

const outlineColumns = `id, project_id, order_index, title, content, structure, created_at`

// FindOutlineByID finds an outline by its ID.
func (r *Repository) FindOutlineByID(ctx context.Context, id string) (*entities.Outline, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+outlineColumns+` FROM outlines WHERE id = ?`, id)
	return scanOutline(row)
}

// FindOutlineByOrder finds the outline at a position of a project.
func (r *Repository) FindOutlineByOrder(ctx context.Context, projectID string, orderIndex int) (*entities.Outline, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+outlineColumns+` FROM outlines WHERE project_id = ? AND order_index = ? ORDER BY created_at ASC LIMIT 1`,
		projectID, orderIndex,
	)
	return scanOutline(row)
}

func scanOutline(s scanner) (*entities.Outline, error) {
	var o entities.Outline
	var content, structure sql.NullString
	err := s.Scan(&o.ID, &o.ProjectID, &o.OrderIndex, &o.Title, &content, &structure, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning outline: %w", err)
	}
	o.Content = content.String
	o.Structure = structure.String
	return &o, nil
}
