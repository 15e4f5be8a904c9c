package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/leapstack-labs/pyblocks/internal/project"
)

// ErrSnapshotNotFound is returned when no snapshot matches a lookup.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Snapshot is one stored copy of a project document.
// Document is empty in listings.
type Snapshot struct {
	ID         string    `json:"id"`
	Project    string    `json:"project"`
	Version    string    `json:"version"`
	BlockCount int       `json:"block_count"`
	CreatedAt  time.Time `json:"created_at"`
	Document   []byte    `json:"document,omitempty"`
}

// Decode parses the stored document.
func (s *Snapshot) Decode() (*project.Document, error) {
	if len(s.Document) == 0 {
		return nil, fmt.Errorf("snapshot %s has no document", s.ID)
	}
	doc, err := project.Decode(s.Document)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", s.ID, err)
	}
	return doc, nil
}

// SaveSnapshot stores doc under the given project name.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, projectName string, doc *project.Document) (*Snapshot, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	if projectName == "" {
		return nil, fmt.Errorf("project name is required")
	}
	if doc == nil {
		return nil, fmt.Errorf("document is required")
	}

	data, err := project.Encode(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}

	snap := &Snapshot{
		ID:         generateID(),
		Project:    projectName,
		Version:    doc.Version,
		BlockCount: countBlocks(doc.Workspace.Blocks),
		CreatedAt:  time.Now().UTC(),
		Document:   data,
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, project, version, block_count, document, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, snap.ID, snap.Project, snap.Version, snap.BlockCount, string(snap.Document), snap.CreatedAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("insert snapshot: %w", err)
	}
	return snap, nil
}

// GetSnapshot returns the snapshot with the given ID, document included.
func (s *SQLiteStore) GetSnapshot(ctx context.Context, id string) (*Snapshot, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project, version, block_count, created_at, document
		FROM snapshots WHERE id = ?
	`, id)
	return scanSnapshot(row)
}

// LatestSnapshot returns the most recent snapshot of a project.
func (s *SQLiteStore) LatestSnapshot(ctx context.Context, projectName string) (*Snapshot, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project, version, block_count, created_at, document
		FROM snapshots WHERE project = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`, projectName)
	return scanSnapshot(row)
}

// ListSnapshots returns snapshots of a project, newest first, without their
// documents. A limit of zero or less returns all of them.
func (s *SQLiteStore) ListSnapshots(ctx context.Context, projectName string, limit int) ([]*Snapshot, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project, version, block_count, created_at
		FROM snapshots WHERE project = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, projectName, limit)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snaps []*Snapshot
	for rows.Next() {
		snap := &Snapshot{}
		var created int64
		if err := rows.Scan(&snap.ID, &snap.Project, &snap.Version, &snap.BlockCount, &created); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.CreatedAt = time.Unix(0, created).UTC()
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return snaps, nil
}

// PruneSnapshots deletes all but the newest keep snapshots of a project and
// returns the number removed.
func (s *SQLiteStore) PruneSnapshots(ctx context.Context, projectName string, keep int) (int64, error) {
	if s.db == nil {
		return 0, ErrNotOpen
	}
	if keep < 0 {
		return 0, fmt.Errorf("keep must not be negative, got %d", keep)
	}

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM snapshots
		WHERE project = ? AND id NOT IN (
			SELECT id FROM snapshots
			WHERE project = ?
			ORDER BY created_at DESC, rowid DESC
			LIMIT ?
		)
	`, projectName, projectName, keep)
	if err != nil {
		return 0, fmt.Errorf("delete old snapshots: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// Projects returns the names of all projects with at least one snapshot.
func (s *SQLiteStore) Projects(ctx context.Context) ([]string, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT project FROM snapshots ORDER BY project`)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return names, nil
}

func scanSnapshot(row *sql.Row) (*Snapshot, error) {
	snap := &Snapshot{}
	var created int64
	var doc string
	err := row.Scan(&snap.ID, &snap.Project, &snap.Version, &snap.BlockCount, &created, &doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	snap.CreatedAt = time.Unix(0, created).UTC()
	snap.Document = []byte(doc)
	return snap, nil
}

func countBlocks(blocks []project.Block) int {
	n := 0
	for _, b := range blocks {
		n++
		for _, in := range b.Inputs {
			if in.NestedBlock != nil {
				n += countBlocks([]project.Block{*in.NestedBlock})
			}
		}
		n += countBlocks(b.ChildBlocks)
		n += countBlocks(b.ElseBlocks)
	}
	return n
}
