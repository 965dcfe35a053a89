package domain

import (
	"context"
	"time"
)

// CurveRepository defines the interface for curve persistence operations.
// The latest-state projection and the history log live behind one interface
// because ReplaceBatch must write both inside a single transaction.
type CurveRepository interface {
	// HistoryForDate retrieves all history entries whose as-of date equals date
	HistoryForDate(ctx context.Context, date time.Time) ([]*CurveHistoryEntry, error)

	// ReplaceBatch atomically replaces the latest-state rows for the batch's
	// as-of date and appends the batch to history. When purgeHistory is true,
	// existing history entries for that date are deleted first (forced
	// re-ingestion). The success audit record is inserted inside the same
	// transaction so a committed batch is never unrecorded.
	// On any failure the whole transaction rolls back.
	ReplaceBatch(ctx context.Context, rows []*CurveRow, purgeHistory bool, run *IngestRun) error

	// Latest retrieves the whole latest-state projection, ordered by
	// metal then tenor
	Latest(ctx context.Context) ([]*LatestCurve, error)
}

// AuditRepository defines the interface for the append-only IngestRun audit
// trail. Record runs in its own unit of work; it is used for the error and
// skip paths, where the audit record must survive independently of any
// rolled-back data transaction.
type AuditRepository interface {
	// Record inserts one IngestRun audit record
	Record(ctx context.Context, run *IngestRun) error

	// HasSuccessForDate reports whether a success record exists for runDate
	HasSuccessForDate(ctx context.Context, runDate time.Time) (bool, error)

	// RecentRuns retrieves the most recent audit records, newest first
	RecentRuns(ctx context.Context, limit int) ([]*IngestRun, error)
}
