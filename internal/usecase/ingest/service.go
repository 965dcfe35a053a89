package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dmonteiro/curvevault/internal/domain"
)

// Source supplies the raw curve export for one run. Fetching from the remote
// spreadsheet is a collaborator concern; the engine only sees the text.
type Source interface {
	FetchCSV(ctx context.Context) (string, error)
}

// RunParams are the invocation parameters handed in by the transport layer
type RunParams struct {
	// TriggerSource is free-form; sources beginning with the scheduled-run
	// prefix get skip-on-duplicate treatment
	TriggerSource string

	// Force is the operator-asserted override of the date-ambiguity,
	// date-mismatch and history-conflict safety checks
	Force bool
}

// OutcomeStatus classifies how a run ended
type OutcomeStatus string

const (
	OutcomeSuccess  OutcomeStatus = "success"
	OutcomeSkipped  OutcomeStatus = "skipped"
	OutcomeConflict OutcomeStatus = "conflict"
	OutcomeError    OutcomeStatus = "error"
)

// RunResult is the outcome surfaced to the caller. A conflict carries the
// existing history rows so the caller can decide to resubmit with force.
type RunResult struct {
	Status        OutcomeStatus
	Reason        string
	AsOfDate      time.Time
	RowCount      int
	DroppedRows   int
	TriggerSource string
	Existing      []*domain.CurveHistoryEntry
}

// Service is the ingestion engine: duplicate guard, date consistency check,
// history conflict check, and orchestration of the transactional write and
// the audit trail. One invocation is one logical run, executed to completion.
type Service struct {
	CurveRepo domain.CurveRepository
	AuditRepo domain.AuditRepository
	Source    Source

	log logrus.FieldLogger
	now func() time.Time
}

// NewService creates a new ingestion engine instance
func NewService(curveRepo domain.CurveRepository, auditRepo domain.AuditRepository, source Source, log logrus.FieldLogger) *Service {
	return &Service{
		CurveRepo: curveRepo,
		AuditRepo: auditRepo,
		Source:    source,
		log:       log,
		now:       time.Now,
	}
}

// Run executes one ingestion invocation end to end. Every return path has
// written exactly one IngestRun audit record. A non-nil error always comes
// with a RunResult describing the recorded outcome.
func (s *Service) Run(ctx context.Context, p RunParams) (*RunResult, error) {
	runDate, err := ResolveRunDate(s.now())
	if err != nil {
		// the audit row still needs a real date when the reference zone
		// cannot be loaded
		return s.fail(ctx, fallbackRunDate(s.now()), p, domain.ReasonUnhandledException, err)
	}

	// Duplicate guard: a scheduled source that already succeeded today is
	// skipped before any data is touched. Manual retries always proceed.
	if domain.IsScheduledSource(p.TriggerSource) && !p.Force {
		done, err := s.AuditRepo.HasSuccessForDate(ctx, runDate)
		if err != nil {
			return s.fail(ctx, runDate, p, domain.ReasonUnhandledException, err)
		}
		if done {
			return s.skip(ctx, runDate, p, domain.ReasonAlreadyIngestedToday, OutcomeSkipped, nil)
		}
	}

	raw, err := s.Source.FetchCSV(ctx)
	if err != nil {
		return s.fail(ctx, runDate, p, domain.ReasonUnhandledException,
			fmt.Errorf("failed to fetch curve export: %w", err))
	}

	parsed, err := ParseCurveCSV(raw)
	if err != nil {
		return s.fail(ctx, runDate, p, reasonForError(err), err)
	}
	if len(parsed.Rows) == 0 {
		return s.fail(ctx, runDate, p, domain.ReasonNoRowsInSource,
			errors.New("no parseable rows in source"))
	}

	sheetDate, err := resolveSheetDate(parsed.Rows, runDate, p.Force)
	if err != nil {
		return s.fail(ctx, runDate, p, reasonForError(err), err)
	}

	existing, err := s.CurveRepo.HistoryForDate(ctx, sheetDate)
	if err != nil {
		return s.fail(ctx, runDate, p, domain.ReasonUnhandledException, err)
	}
	if len(existing) > 0 && !p.Force {
		result, _ := s.skip(ctx, runDate, p, domain.ReasonHistoryExists, OutcomeConflict, existing)
		return result, nil
	}

	if err := validateRows(parsed.Rows); err != nil {
		return s.fail(ctx, runDate, p, domain.ReasonUnhandledException, err)
	}

	run := domain.NewIngestRun(runDate, p.TriggerSource, domain.RunStatusSuccess, "", len(parsed.Rows))
	purgeHistory := p.Force && len(existing) > 0
	if err := s.CurveRepo.ReplaceBatch(ctx, parsed.Rows, purgeHistory, run); err != nil {
		return s.fail(ctx, runDate, p, domain.ReasonUnhandledException, err)
	}

	s.log.WithFields(logrus.Fields{
		"run_date":       runDate.Format(domain.DateLayout),
		"trigger_source": p.TriggerSource,
		"force":          p.Force,
		"status":         domain.RunStatusSuccess,
		"row_count":      len(parsed.Rows),
		"dropped_rows":   parsed.Dropped,
	}).Info("curve batch ingested")

	return &RunResult{
		Status:        OutcomeSuccess,
		AsOfDate:      sheetDate,
		RowCount:      len(parsed.Rows),
		DroppedRows:   parsed.Dropped,
		TriggerSource: p.TriggerSource,
	}, nil
}

// validateRows enforces the domain invariants on every row before anything
// is persisted
func validateRows(rows []*domain.CurveRow) error {
	for _, row := range rows {
		if err := row.Validate(); err != nil {
			return fmt.Errorf("invalid curve row (%s, %d): %w", row.Metal, row.TenorMonths, err)
		}
	}
	return nil
}

// resolveSheetDate validates that all rows share a single as-of date
// matching the expected run date. When forcing, the rows' dates are
// overwritten with the run date and both checks are bypassed.
func resolveSheetDate(rows []*domain.CurveRow, runDate time.Time, force bool) (time.Time, error) {
	if force {
		for _, row := range rows {
			row.AsOfDate = runDate
		}
		return runDate, nil
	}

	distinct := distinctDates(rows)
	if len(distinct) != 1 {
		return time.Time{}, &domain.AmbiguousAsOfDateError{Dates: distinct}
	}

	sheetDate := distinct[0]
	if !SameDate(sheetDate, runDate) {
		return time.Time{}, &domain.DateMismatchError{SheetDate: sheetDate, ExpectedDate: runDate}
	}
	return sheetDate, nil
}

func distinctDates(rows []*domain.CurveRow) []time.Time {
	seen := make(map[time.Time]bool)
	var dates []time.Time
	for _, row := range rows {
		d := domain.DateOnly(row.AsOfDate)
		if !seen[d] {
			seen[d] = true
			dates = append(dates, d)
		}
	}
	return dates
}

// reasonForError maps typed validation errors to their diagnostic codes
func reasonForError(err error) string {
	var schemaErr *domain.SchemaMismatchError
	var ambiguousErr *domain.AmbiguousAsOfDateError
	var mismatchErr *domain.DateMismatchError
	switch {
	case errors.As(err, &schemaErr):
		return domain.ReasonSchemaMismatch
	case errors.As(err, &ambiguousErr):
		return domain.ReasonAmbiguousAsOfDate
	case errors.As(err, &mismatchErr):
		return domain.ReasonDateMismatch
	default:
		return domain.ReasonUnhandledException
	}
}

// skip records a skipped run and returns its result. Used both for the
// duplicate guard (outcome skipped) and the history conflict (outcome
// conflict, carrying the existing rows).
func (s *Service) skip(ctx context.Context, runDate time.Time, p RunParams, reason string, outcome OutcomeStatus, existing []*domain.CurveHistoryEntry) (*RunResult, error) {
	run := domain.NewIngestRun(runDate, p.TriggerSource, domain.RunStatusSkipped, reason, 0)
	if err := s.AuditRepo.Record(ctx, run); err != nil {
		s.log.WithError(err).Error("failed to record skipped run")
	}

	s.log.WithFields(logrus.Fields{
		"run_date":       runDate.Format(domain.DateLayout),
		"trigger_source": p.TriggerSource,
		"force":          p.Force,
		"status":         domain.RunStatusSkipped,
		"reason":         reason,
	}).Info("curve ingestion skipped")

	return &RunResult{
		Status:        outcome,
		Reason:        reason,
		AsOfDate:      runDate,
		TriggerSource: p.TriggerSource,
		Existing:      existing,
	}, nil
}

// fail records an errored run in its own unit of work, so the audit trail
// survives even when the data transaction rolled back, and returns the
// result together with the wrapped cause.
func (s *Service) fail(ctx context.Context, runDate time.Time, p RunParams, reason string, cause error) (*RunResult, error) {
	run := domain.NewIngestRun(runDate, p.TriggerSource, domain.RunStatusError, reason, 0)
	if err := s.AuditRepo.Record(ctx, run); err != nil {
		s.log.WithError(err).Error("failed to record errored run")
	}

	s.log.WithFields(logrus.Fields{
		"run_date":       runDate.Format(domain.DateLayout),
		"trigger_source": p.TriggerSource,
		"force":          p.Force,
		"status":         domain.RunStatusError,
		"reason":         reason,
	}).WithError(cause).Error("curve ingestion failed")

	return &RunResult{
		Status:        OutcomeError,
		Reason:        reason,
		AsOfDate:      runDate,
		TriggerSource: p.TriggerSource,
	}, cause
}
