package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/kadisync/internal/apperr"
	"github.com/starford/kadisync/internal/models"
)

// NoteRow is a row of the notes table.
type NoteRow struct {
	Path      string
	Title     string
	Checksum  string
	Tags      []string
	Status    models.SyncStatus
	UpdatedAt time.Time
}

// ListFilter narrows ListNotes. A nil Synced lists every note.
type ListFilter struct {
	Synced *bool
	Limit  int
	Offset int
}

// UpsertNote inserts or replaces a note row.
func (db *DB) UpsertNote(n NoteRow) error {
	tagsJSON, _ := json.Marshal(n.Tags)
	var recordID sql.NullInt64
	if n.Status.IsSynced() {
		recordID = sql.NullInt64{Int64: n.Status.RecordID, Valid: true}
	}
	_, err := db.conn.Exec(`
		INSERT INTO notes (path, title, checksum, tags, record_id, identifier, state, visibility, synced_at, modified_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title       = excluded.title,
			checksum    = excluded.checksum,
			tags        = excluded.tags,
			record_id   = excluded.record_id,
			identifier  = excluded.identifier,
			state       = excluded.state,
			visibility  = excluded.visibility,
			synced_at   = excluded.synced_at,
			modified_at = excluded.modified_at,
			updated_at  = excluded.updated_at
	`, n.Path, n.Title, n.Checksum, string(tagsJSON), recordID,
		n.Status.Identifier, n.Status.State, n.Status.Visibility, n.Status.Synced, n.Status.Modified, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}
	return nil
}

// DeleteNote removes a note row. Its sync history is kept.
func (db *DB) DeleteNote(path string) error {
	if _, err := db.conn.Exec(`DELETE FROM notes WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete note: %w", err)
	}
	return nil
}

// GetChecksum returns the stored checksum for a note, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM notes WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: checksum: %w", err)
	}
	return cs, nil
}

// AllChecksums maps every indexed path to its checksum.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

const noteColumns = `path, title, checksum, COALESCE(record_id, 0), identifier, state, visibility, synced_at, modified_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(s scanner) (models.NoteSummary, error) {
	var n models.NoteSummary
	err := s.Scan(&n.Path, &n.Title, &n.Checksum, &n.RecordID, &n.Identifier,
		&n.State, &n.Visibility, &n.SyncedAt, &n.ModifiedAt, &n.UpdatedAt)
	return n, err
}

// GetNote returns the ledger row of path.
func (db *DB) GetNote(path string) (*models.NoteSummary, error) {
	row := db.conn.QueryRow(`SELECT `+noteColumns+` FROM notes WHERE path = ?`, path)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: note %s: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get note: %w", err)
	}
	return &n, nil
}

// ListNotes returns ledger rows ordered by path and the total matching count.
func (db *DB) ListNotes(f ListFilter) ([]models.NoteSummary, int, error) {
	if f.Limit <= 0 {
		f.Limit = 100
	}
	where := ""
	if f.Synced != nil {
		if *f.Synced {
			where = ` WHERE record_id IS NOT NULL`
		} else {
			where = ` WHERE record_id IS NULL`
		}
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes` + where).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count notes: %w", err)
	}

	rows, err := db.conn.Query(`SELECT `+noteColumns+` FROM notes`+where+` ORDER BY path LIMIT ? OFFSET ?`, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list notes: %w", err)
	}
	defer rows.Close()

	var out []models.NoteSummary
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, n)
	}
	return out, total, rows.Err()
}

// RecordSync appends ev to the sync history.
func (db *DB) RecordSync(ctx context.Context, ev models.SyncEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	var recordID sql.NullInt64
	if ev.RecordID != 0 {
		recordID = sql.NullInt64{Int64: ev.RecordID, Valid: true}
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO sync_log (path, operation, outcome, record_id, message, status_code, at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, ev.Path, string(ev.Operation), string(ev.Outcome), recordID, ev.Message, ev.StatusCode, ev.At.UTC())
	if err != nil {
		return fmt.Errorf("index: record sync: %w", err)
	}
	return nil
}

// History returns the newest sync events of path first.
func (db *DB) History(path string, limit int) ([]models.SyncEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.Query(`
		SELECT id, path, operation, outcome, COALESCE(record_id, 0), message, status_code, at
		FROM sync_log
		WHERE path = ?
		ORDER BY id DESC
		LIMIT ?
	`, path, limit)
	if err != nil {
		return nil, fmt.Errorf("index: history: %w", err)
	}
	defer rows.Close()

	var out []models.SyncEvent
	for rows.Next() {
		var ev models.SyncEvent
		var op, outcome string
		if err := rows.Scan(&ev.ID, &ev.Path, &op, &outcome, &ev.RecordID, &ev.Message, &ev.StatusCode, &ev.At); err != nil {
			return nil, err
		}
		ev.Operation, ev.Outcome = models.Operation(op), models.Outcome(outcome)
		out = append(out, ev)
	}
	return out, rows.Err()
}
