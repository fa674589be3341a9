// Package sqlite provides a SQLite implementation of the StoryDB interface.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/ersonp/lore-novel/internal/domain/ports"
	"github.com/ersonp/lore-novel/internal/infrastructure/config"
)

// generateUUID returns a new UUID string.
func generateUUID() string {
	return uuid.New().String()
}

// timeNow returns the current time (can be mocked in tests).
var timeNow = func() time.Time { return time.Now().UTC() }

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository implements ports.StoryDB using SQLite.
type Repository struct {
	db   *sql.DB
	q    querier
	path string
	inTx bool
}

var _ ports.StoryDB = (*Repository)(nil)

// NewRepository creates a new SQLite repository.
func NewRepository(cfg config.SQLiteConfig) (*Repository, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite path is required")
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// A single connection serializes writers and keeps ":memory:" databases
	// shared across statements.
	db.SetMaxOpenConns(1)

	// Enable foreign keys for referential integrity
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Set busy timeout to avoid "database is locked" errors
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	return &Repository{
		db:   db,
		q:    db,
		path: cfg.Path,
	}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.inTx {
		return nil
	}
	return r.db.Close()
}

// Path returns the database file path.
func (r *Repository) Path() string {
	return r.path
}

// WithTx runs fn inside a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(tx ports.StoryDB) error) error {
	if r.inTx {
		return fn(r)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	txRepo := &Repository{db: r.db, q: tx, path: r.path, inTx: true}
	if err := fn(txRepo); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rolling back transaction: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// EnsureSchema creates the database schema if it doesn't exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL UNIQUE,
		genre TEXT,
		theme TEXT,
		narrative_perspective TEXT,
		outline_mode TEXT NOT NULL DEFAULT 'one-to-many',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	-- Characters and organizations share one table
	CREATE TABLE IF NOT EXISTS characters (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		role_type TEXT,
		personality TEXT,
		background TEXT,
		is_organization INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE(project_id, name)
	);
	CREATE INDEX IF NOT EXISTS idx_characters_project ON characters(project_id);

	CREATE TABLE IF NOT EXISTS organizations (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		character_id TEXT NOT NULL UNIQUE REFERENCES characters(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		description TEXT,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chapters (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		outline_id TEXT,
		chapter_number INTEGER NOT NULL,
		title TEXT NOT NULL,
		summary TEXT,
		content TEXT,
		expansion_plan TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE(project_id, chapter_number)
	);

	CREATE TABLE IF NOT EXISTS outlines (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		order_index INTEGER NOT NULL,
		title TEXT NOT NULL,
		content TEXT,
		structure TEXT,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_outlines_order ON outlines(project_id, order_index);

	CREATE TABLE IF NOT EXISTS careers (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		description TEXT,
		stages TEXT,
		max_stage INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		UNIQUE(project_id, name)
	);

	CREATE TABLE IF NOT EXISTS identities (
		id TEXT PRIMARY KEY,
		character_id TEXT NOT NULL REFERENCES characters(id) ON DELETE CASCADE,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		identity_type TEXT NOT NULL,
		is_primary INTEGER NOT NULL DEFAULT 0,
		appearance TEXT,
		personality TEXT,
		background TEXT,
		voice_style TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		exposed_at_chapter INTEGER,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_identities_character ON identities(character_id);
	CREATE INDEX IF NOT EXISTS idx_identities_project ON identities(project_id);
	CREATE INDEX IF NOT EXISTS idx_identities_exposed ON identities(exposed_at_chapter);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_identities_one_primary ON identities(character_id) WHERE is_primary = 1;

	CREATE TABLE IF NOT EXISTS identity_careers (
		id TEXT PRIMARY KEY,
		identity_id TEXT NOT NULL REFERENCES identities(id) ON DELETE CASCADE,
		career_id TEXT NOT NULL REFERENCES careers(id) ON DELETE CASCADE,
		career_type TEXT NOT NULL,
		current_stage INTEGER NOT NULL DEFAULT 1,
		stage_progress INTEGER NOT NULL DEFAULT 0,
		started_at TEXT,
		reached_current_stage_at TEXT,
		notes TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE(identity_id, career_id)
	);

	CREATE TABLE IF NOT EXISTS identity_knowledge (
		id TEXT PRIMARY KEY,
		identity_id TEXT NOT NULL REFERENCES identities(id) ON DELETE CASCADE,
		knower_character_id TEXT NOT NULL REFERENCES characters(id) ON DELETE CASCADE,
		knowledge_level TEXT NOT NULL,
		discovered_how TEXT,
		since_when TEXT,
		is_secret INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE(identity_id, knower_character_id)
	);
	CREATE INDEX IF NOT EXISTS idx_identity_knowledge_knower ON identity_knowledge(knower_character_id);

	-- A character holds at most one identity-linked and one plain
	-- membership per organization
	CREATE TABLE IF NOT EXISTS organization_members (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
		character_id TEXT NOT NULL REFERENCES characters(id) ON DELETE CASCADE,
		identity_id TEXT REFERENCES identities(id) ON DELETE SET NULL,
		position TEXT,
		member_rank INTEGER NOT NULL DEFAULT 0,
		loyalty INTEGER NOT NULL DEFAULT 50,
		status TEXT NOT NULL DEFAULT 'active',
		joined_at TEXT,
		notes TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_org_members_identity ON organization_members(identity_id);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_org_member_identity_unique
		ON organization_members(organization_id, character_id) WHERE identity_id IS NOT NULL;
	CREATE UNIQUE INDEX IF NOT EXISTS idx_org_member_character_unique
		ON organization_members(organization_id, character_id) WHERE identity_id IS NULL;

	CREATE TABLE IF NOT EXISTS story_memories (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		chapter_id TEXT REFERENCES chapters(id) ON DELETE SET NULL,
		memory_type TEXT NOT NULL,
		title TEXT,
		content TEXT NOT NULL,
		story_timeline INTEGER NOT NULL DEFAULT 0,
		importance_score REAL NOT NULL DEFAULT 0.5,
		metadata TEXT,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_story_memories_timeline ON story_memories(project_id, memory_type, story_timeline);

	CREATE TABLE IF NOT EXISTS foreshadows (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		plant_chapter INTEGER NOT NULL,
		target_resolve_chapter INTEGER,
		status TEXT NOT NULL DEFAULT 'pending',
		importance REAL NOT NULL DEFAULT 0.5,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_foreshadows_project ON foreshadows(project_id, status);

	-- Audit log (tracks state changes)
	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id TEXT,
		action TEXT NOT NULL,
		subject_id TEXT,
		details TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_audit_log_subject ON audit_log(subject_id);
	CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(action);
	`

	_, err := r.q.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// nullString maps an empty string to NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullInt maps a nil pointer to NULL.
func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

// intPtr converts a nullable column back to a pointer.
func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

// affected reports whether a statement changed at least one row.
func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}
	return n > 0, nil
}
