// Package cache keeps a local sqlite snapshot of project metadata documents.
// It is a read-side convenience for offline status and cost reporting: the
// snapshot is always potentially stale, is refreshed opportunistically after
// successful fetches, and is never consulted on the write path. The remote
// storage branch remains the single source of truth.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/claudestep/claudestep/internal/types"
)

// ErrMiss is returned when no snapshot exists for a project.
var ErrMiss = errors.New("no cached snapshot")

const schema = `
CREATE TABLE IF NOT EXISTS project_snapshots (
	project    TEXT PRIMARY KEY,
	revision   TEXT NOT NULL,
	fetched_at TEXT NOT NULL,
	document   TEXT NOT NULL
);
`

// Cache is a sqlite-backed snapshot store.
type Cache struct {
	db *sql.DB
}

// Open opens (creating if needed) the snapshot cache at path.
func Open(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	db, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close releases the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Put stores or replaces the snapshot for a project.
func (c *Cache) Put(ctx context.Context, doc *types.ProjectDocument, revision string, fetchedAt time.Time) error {
	content, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot for %s: %w", doc.ProjectName, err)
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO project_snapshots (project, revision, fetched_at, document)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(project) DO UPDATE SET
			revision = excluded.revision,
			fetched_at = excluded.fetched_at,
			document = excluded.document`,
		doc.ProjectName, revision, fetchedAt.UTC().Format(time.RFC3339), string(content))
	if err != nil {
		return fmt.Errorf("failed to store snapshot for %s: %w", doc.ProjectName, err)
	}
	return nil
}

// Get returns the cached snapshot for a project, its revision, and when it
// was fetched. Returns ErrMiss when no snapshot exists.
func (c *Cache) Get(ctx context.Context, project string) (*types.ProjectDocument, string, time.Time, error) {
	var revision, fetchedAt, document string
	err := c.db.QueryRowContext(ctx,
		`SELECT revision, fetched_at, document FROM project_snapshots WHERE project = ?`,
		project).Scan(&revision, &fetchedAt, &document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", time.Time{}, fmt.Errorf("%s: %w", project, ErrMiss)
	}
	if err != nil {
		return nil, "", time.Time{}, fmt.Errorf("failed to read snapshot for %s: %w", project, err)
	}

	var doc types.ProjectDocument
	if err := json.Unmarshal([]byte(document), &doc); err != nil {
		return nil, "", time.Time{}, fmt.Errorf("corrupt snapshot for %s: %w", project, err)
	}
	at, err := time.Parse(time.RFC3339, fetchedAt)
	if err != nil {
		return nil, "", time.Time{}, fmt.Errorf("corrupt snapshot timestamp for %s: %w", project, err)
	}
	return &doc, revision, at, nil
}

// Projects lists the projects with a cached snapshot.
func (c *Cache) Projects(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT project FROM project_snapshots ORDER BY project`)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var projects []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}
