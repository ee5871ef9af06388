package index

import (
	"errors"
	"log/slog"
	"time"

	"github.com/starford/kadisync/internal/apperr"
	"github.com/starford/kadisync/internal/checksum"
	"github.com/starford/kadisync/internal/frontmatter"
	"github.com/starford/kadisync/internal/models"
	"github.com/starford/kadisync/internal/parser"
	"github.com/starford/kadisync/internal/storage"
)

// Sync walks the vault and brings the ledger up to date:
//   - new/changed files are parsed and upserted
//   - files removed from disk are deleted from the ledger
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	files, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(files))
	for _, f := range files {
		disk[f.Path] = struct{}{}
		if checksums[f.Path] == f.Checksum {
			continue
		}
		if err := Refresh(db, store, f.Path); err != nil {
			logger.Warn("sync: index failed", slog.String("path", f.Path), slog.String("error", err.Error()))
			continue
		}
		logger.Debug("sync: indexed", slog.String("path", f.Path))
	}

	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := db.DeleteNote(p); err != nil {
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: removed stale", slog.String("path", p))
		}
	}
	return nil
}

// Refresh re-reads one note and updates its ledger row. A note that no
// longer exists is removed.
func Refresh(db *DB, store storage.Provider, path string) error {
	data, err := store.Read(path)
	if errors.Is(err, apperr.ErrNotFound) {
		return db.DeleteNote(path)
	}
	if err != nil {
		return err
	}
	return db.UpsertNote(buildRow(path, data))
}

// buildRow derives a ledger row from raw note bytes. A header that does not
// parse still yields a row, without sync status.
func buildRow(path string, data []byte) NoteRow {
	content := string(data)
	note := models.NewNote(path)
	h, _, err := frontmatter.Parse(content)
	if err != nil {
		h = nil
	}
	fields := frontmatter.Extract(note.Basename, h)

	title := fields.Title
	if _, explicit := h.Lookup(frontmatter.KeyTitle); !explicit {
		title = parser.Title(content, note.Basename)
	}

	return NoteRow{
		Path:      note.Path,
		Title:     title,
		Checksum:  checksum.Sum(data),
		Tags:      fields.Tags,
		Status:    models.StatusFromHeader(h),
		UpdatedAt: time.Now(),
	}
}
