package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// RunStatus is the terminal outcome of one ingestion invocation
type RunStatus string

const (
	RunStatusSuccess RunStatus = "success"
	RunStatusError   RunStatus = "error"
	RunStatusSkipped RunStatus = "skipped"
)

// Diagnostic reason codes recorded on non-success runs and surfaced to
// callers. These are stable identifiers, not display strings.
const (
	ReasonAlreadyIngestedToday = "already_ingested_today"
	ReasonSchemaMismatch       = "schema_mismatch"
	ReasonNoRowsInSource       = "no_rows_in_source"
	ReasonAmbiguousAsOfDate    = "ambiguous_as_of_date"
	ReasonDateMismatch         = "date_mismatch"
	ReasonHistoryExists        = "history_exists_for_date"
	ReasonUnhandledException   = "unhandled_exception"
)

// ScheduledSourcePrefix marks trigger sources fired by the scheduler.
// Only these get skip-on-duplicate treatment; a manual retry always
// proceeds to validation.
const ScheduledSourcePrefix = "cron"

// IsScheduledSource reports whether a trigger source came from the
// scheduler rather than a human.
func IsScheduledSource(triggerSource string) bool {
	return strings.HasPrefix(triggerSource, ScheduledSourcePrefix)
}

// IngestRun is the immutable audit record of one ingestion invocation.
// Exactly one is written per invocation, whether the data transaction
// committed or not. Never mutated after insert.
type IngestRun struct {
	ID            uuid.UUID
	RunDate       time.Time // date-only, midnight UTC
	TriggerSource string
	Status        RunStatus
	Reason        *string // NULL on success
	RowCount      int
	CreatedAt     time.Time
}

// NewIngestRun builds an audit record for the given outcome.
// reason is stored as NULL when empty.
func NewIngestRun(runDate time.Time, triggerSource string, status RunStatus, reason string, rowCount int) *IngestRun {
	run := &IngestRun{
		ID:            uuid.New(),
		RunDate:       DateOnly(runDate),
		TriggerSource: triggerSource,
		Status:        status,
		RowCount:      rowCount,
		CreatedAt:     time.Now().UTC(),
	}
	if reason != "" {
		run.Reason = &reason
	}
	return run
}
