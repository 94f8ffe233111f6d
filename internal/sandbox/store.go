// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sandbox is a local stand-in for the marketplace API. It keeps
// projects and applications in SQLite and serves the endpoints the
// reconciliation engine consumes, plus an owner-side status transition so
// the engine's precedence rules can be exercised end to end.
package sandbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/applytrack/pkg/types"
)

// Errors returned by Store methods.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

const timeFormat = time.RFC3339Nano

// Application is one row of project_applicants.
type Application struct {
	ID        string
	ProjectID types.ProjectID
	UserID    int64
	Status    types.Status
	Notes     string
	AppliedAt time.Time
	UpdatedAt time.Time
}

// Store manages the sandbox SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore opens or creates the database at path and creates the schema if
// it does not exist. ":memory:" gives a private in-memory database.
func NewStore(path string) (*Store, error) {
	dsn := path
	if path == ":memory:" {
		dsn = "file::memory:?_foreign_keys=on"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		dsn = path + "?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// Each connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id INTEGER PRIMARY KEY,
			title TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'open',
			budget TEXT,
			owner_name TEXT,
			updated_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS project_applicants (
			id TEXT PRIMARY KEY,
			project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			user_id INTEGER NOT NULL,
			status TEXT NOT NULL,
			notes TEXT,
			applied_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE(project_id, user_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_applicants_user ON project_applicants(user_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// UpsertProject inserts or replaces a project.
func (s *Store) UpsertProject(ctx context.Context, p types.ProjectSummary) error {
	if !p.ID.Valid() {
		return fmt.Errorf("project id %d is not positive", p.ID)
	}
	status := p.Status
	if status == "" {
		status = "open"
	}
	updated := s.now().UTC()
	if p.UpdatedAt != nil {
		updated = p.UpdatedAt.UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, title, status, budget, owner_name, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title = excluded.title, status = excluded.status, budget = excluded.budget,
			owner_name = excluded.owner_name, updated_at = excluded.updated_at`,
		int64(p.ID), p.Title, status, p.Budget, p.OwnerName, updated.Format(timeFormat))
	if err != nil {
		return fmt.Errorf("upserting project %d: %w", p.ID, err)
	}
	return nil
}

// Project loads one project.
func (s *Store) Project(ctx context.Context, id types.ProjectID) (types.ProjectSummary, error) {
	var (
		p             types.ProjectSummary
		budget, owner sql.NullString
		updated       sql.NullString
		rawID         int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, status, budget, owner_name, updated_at FROM projects WHERE id = ?`, int64(id),
	).Scan(&rawID, &p.Title, &p.Status, &budget, &owner, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return types.ProjectSummary{}, fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return types.ProjectSummary{}, fmt.Errorf("loading project %d: %w", id, err)
	}
	p.ID = types.ProjectID(rawID)
	p.Budget = budget.String
	p.OwnerName = owner.String
	p.UpdatedAt = parseTime(updated)
	return p, nil
}

// Apply records an application by userID. It returns ErrNotFound when the
// project does not exist and ErrConflict when the user already applied.
func (s *Store) Apply(ctx context.Context, userID int64, projectID types.ProjectID, notes string) (Application, error) {
	if _, err := s.Project(ctx, projectID); err != nil {
		return Application{}, err
	}
	now := s.now().UTC()
	app := Application{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		UserID:    userID,
		Status:    types.StatusApplied,
		Notes:     notes,
		AppliedAt: now,
		UpdatedAt: now,
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO project_applicants (id, project_id, user_id, status, notes, applied_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(project_id, user_id) DO NOTHING`,
		app.ID, int64(projectID), userID, string(app.Status), notes, now.Format(timeFormat), now.Format(timeFormat))
	if err != nil {
		return Application{}, fmt.Errorf("inserting application: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Application{}, fmt.Errorf("application to project %d: %w", projectID, ErrConflict)
	}
	return app, nil
}

// Withdraw deletes userID's application to projectID.
func (s *Store) Withdraw(ctx context.Context, userID int64, projectID types.ProjectID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM project_applicants WHERE project_id = ? AND user_id = ?`, int64(projectID), userID)
	if err != nil {
		return fmt.Errorf("deleting application: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("application to project %d: %w", projectID, ErrNotFound)
	}
	return nil
}

// SetStatus moves an application to status, as a project owner would.
func (s *Store) SetStatus(ctx context.Context, userID int64, projectID types.ProjectID, status types.Status) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE project_applicants SET status = ?, updated_at = ? WHERE project_id = ? AND user_id = ?`,
		string(status), s.now().UTC().Format(timeFormat), int64(projectID), userID)
	if err != nil {
		return fmt.Errorf("updating application status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("application to project %d: %w", projectID, ErrNotFound)
	}
	return nil
}

// Applications lists userID's applications, newest first.
func (s *Store) Applications(ctx context.Context, userID int64) ([]Application, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, user_id, status, notes, applied_at, updated_at
		 FROM project_applicants WHERE user_id = ?
		 ORDER BY applied_at DESC, project_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying applications: %w", err)
	}
	defer rows.Close()

	var apps []Application
	for rows.Next() {
		var (
			a                Application
			projectID        int64
			status           string
			notes            sql.NullString
			applied, updated sql.NullString
		)
		if err := rows.Scan(&a.ID, &projectID, &a.UserID, &status, &notes, &applied, &updated); err != nil {
			return nil, fmt.Errorf("scanning application: %w", err)
		}
		a.ProjectID = types.ProjectID(projectID)
		a.Status = types.Status(status)
		a.Notes = notes.String
		if t := parseTime(applied); t != nil {
			a.AppliedAt = *t
		}
		if t := parseTime(updated); t != nil {
			a.UpdatedAt = *t
		}
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

// Count returns how many applications userID holds.
func (s *Store) Count(ctx context.Context, userID int64) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM project_applicants WHERE user_id = ?`, userID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting applications: %w", err)
	}
	return n, nil
}

func parseTime(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t, err := time.Parse(timeFormat, v.String)
	if err != nil {
		return nil
	}
	return &t
}
