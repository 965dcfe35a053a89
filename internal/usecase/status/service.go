package status

import (
	"context"
	"fmt"
	"time"

	"github.com/dmonteiro/curvevault/internal/domain"
)

// Coverage summarizes what curve data the store currently holds
type Coverage struct {
	// AsOfDate is the date the reported rows belong to; zero when the
	// store is empty
	AsOfDate time.Time

	// RowsByMetal counts rows per metal for that date
	RowsByMetal map[domain.Metal]int

	// TotalRows is the overall row count for that date
	TotalRows int

	// LastRun is the most recent audit record, nil when no run has
	// ever been recorded
	LastRun *domain.IngestRun
}

// Service is the read-only query surface over the latest projection,
// the history log and the audit trail
type Service struct {
	CurveRepo domain.CurveRepository
	AuditRepo domain.AuditRepository
}

// NewService creates a new status reporter instance
func NewService(curveRepo domain.CurveRepository, auditRepo domain.AuditRepository) *Service {
	return &Service{
		CurveRepo: curveRepo,
		AuditRepo: auditRepo,
	}
}

// Coverage reports current latest-state coverage. With a date override it
// reports the history batch for that date instead.
func (s *Service) Coverage(ctx context.Context, date *time.Time) (*Coverage, error) {
	coverage := &Coverage{RowsByMetal: make(map[domain.Metal]int)}

	if date != nil {
		entries, err := s.CurveRepo.HistoryForDate(ctx, *date)
		if err != nil {
			return nil, fmt.Errorf("failed to query history for date: %w", err)
		}
		for _, entry := range entries {
			coverage.RowsByMetal[entry.Metal]++
			coverage.TotalRows++
			coverage.AsOfDate = entry.AsOfDate
		}
	} else {
		latest, err := s.CurveRepo.Latest(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query latest curves: %w", err)
		}
		for _, row := range latest {
			coverage.RowsByMetal[row.Metal]++
			coverage.TotalRows++
			// the latest projection always reflects the newest batch,
			// so the max as-of date is the coverage date
			if row.AsOfDate.After(coverage.AsOfDate) {
				coverage.AsOfDate = row.AsOfDate
			}
		}
	}

	runs, err := s.AuditRepo.RecentRuns(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit trail: %w", err)
	}
	if len(runs) > 0 {
		coverage.LastRun = runs[0]
	}

	return coverage, nil
}

// RecentRuns lists the newest audit records, capped at 100
func (s *Service) RecentRuns(ctx context.Context, limit int) ([]*domain.IngestRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	runs, err := s.AuditRepo.RecentRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent runs: %w", err)
	}
	return runs, nil
}
