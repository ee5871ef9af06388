package index

import (
	"context"

	"github.com/starford/kadisync/internal/models"
)

// Ledger is the read side of the index used by the outer surfaces.
// Consumers should depend on this interface rather than the concrete *DB.
type Ledger interface {
	GetNote(path string) (*models.NoteSummary, error)
	ListNotes(f ListFilter) ([]models.NoteSummary, int, error)
	History(path string, limit int) ([]models.SyncEvent, error)
	RecordSync(ctx context.Context, ev models.SyncEvent) error
}

// Verify *DB satisfies Ledger at compile time.
var _ Ledger = (*DB)(nil)
