package app

import (
	"context"
	"database/sql"
	"time"

	"github.com/abdulachik/inkbloom/internal/assembler"
	"github.com/abdulachik/inkbloom/internal/db"
)

// Ledger records chapter outcomes of one run in the store.
type Ledger struct {
	store *db.Store
	runID string
	now   func() time.Time
}

// NewLedger returns a recorder for the run with the given id.
func NewLedger(store *db.Store, runID string, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{store: store, runID: runID, now: now}
}

// Record implements assembler.Recorder. The chapter row and the run
// counters are written in one transaction.
func (l *Ledger) Record(ctx context.Context, o assembler.Outcome) error {
	params := db.CreateChapterParams{
		RunID:       l.runID,
		ItemID:      o.ItemID,
		Href:        o.Href,
		Status:      string(o.Status),
		Prompt:      o.Prompt,
		ImagePath:   o.ImagePath,
		AnchorFound: o.AnchorFound,
		CreatedAt:   l.now(),
	}
	if o.Sequence >= 0 {
		params.Sequence = sql.NullInt64{Int64: int64(o.Sequence), Valid: true}
	}
	if o.Err != nil {
		params.Error = o.Err.Error()
	}
	progress := db.AddRunProgressParams{ID: l.runID}
	switch o.Status {
	case assembler.StatusIllustrated:
		progress.Illustrated = 1
	case assembler.StatusFailed:
		progress.Failed = 1
	}

	ctx = context.WithoutCancel(ctx)
	return l.store.InTx(ctx, func(q *db.Queries) error {
		if _, err := q.CreateChapter(ctx, params); err != nil {
			return err
		}
		return q.AddRunProgress(ctx, progress)
	})
}
