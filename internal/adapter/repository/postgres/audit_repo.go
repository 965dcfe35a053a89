package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/dmonteiro/curvevault/internal/domain"
)

// auditRepository implements domain.AuditRepository
type auditRepository struct {
	db *DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB) domain.AuditRepository {
	return &auditRepository{db: db}
}

// Record inserts one IngestRun audit record in its own unit of work
func (r *auditRepository) Record(ctx context.Context, run *domain.IngestRun) error {
	query := `
		INSERT INTO ingest_runs (id, run_date, trigger_source, status, reason, row_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		run.ID,
		run.RunDate,
		run.TriggerSource,
		string(run.Status),
		run.Reason,
		run.RowCount,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ingest run record: %w", err)
	}

	return nil
}

// HasSuccessForDate reports whether a success record exists for runDate
func (r *auditRepository) HasSuccessForDate(ctx context.Context, runDate time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM ingest_runs
			WHERE run_date = $1 AND status = $2
		)
	`

	var exists bool
	err := r.db.QueryRowContext(ctx, query, domain.DateOnly(runDate), string(domain.RunStatusSuccess)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query ingest runs for %s: %w",
			runDate.Format(domain.DateLayout), err)
	}

	return exists, nil
}

// RecentRuns retrieves the most recent audit records, newest first
func (r *auditRepository) RecentRuns(ctx context.Context, limit int) ([]*domain.IngestRun, error) {
	query := `
		SELECT id, run_date, trigger_source, status, reason, row_count, created_at
		FROM ingest_runs
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent ingest runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.IngestRun
	for rows.Next() {
		var run domain.IngestRun
		var status string

		err := rows.Scan(
			&run.ID,
			&run.RunDate,
			&run.TriggerSource,
			&status,
			&run.Reason,
			&run.RowCount,
			&run.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ingest run row: %w", err)
		}

		run.Status = domain.RunStatus(status)
		run.RunDate = domain.DateOnly(run.RunDate)
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ingest run rows: %w", err)
	}

	return runs, nil
}
