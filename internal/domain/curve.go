package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Metal identifies the commodity a curve row belongs to
type Metal string

const (
	MetalGold   Metal = "gold"
	MetalSilver Metal = "silver"
)

// DateLayout is the canonical Y-M-D format for as-of dates and run dates
const DateLayout = "2006-01-02"

// CurveRow represents one curve observation in the domain layer.
// All rows of one ingestion batch share a single AsOfDate, and
// (Metal, TenorMonths) is unique within the batch.
type CurveRow struct {
	Metal         Metal
	TenorMonths   int
	Price         decimal.Decimal
	Real10yrYield *decimal.Decimal // NULL when the source column is blank or unparseable
	DollarIndex   *decimal.Decimal // NULL when the source column is blank or unparseable
	DeficitGdp    *bool            // tri-state: true / false / unknown
	AsOfDate      time.Time        // date-only, midnight UTC
}

// Validate ensures the row adheres to domain rules
func (r *CurveRow) Validate() error {
	if r.Metal == "" {
		return errors.New("curve row metal cannot be empty")
	}
	if r.TenorMonths < 0 {
		return errors.New("curve row tenor months cannot be negative")
	}
	if r.AsOfDate.IsZero() {
		return errors.New("curve row as-of date cannot be zero")
	}
	return nil
}

// LatestCurve is the mutable latest-state projection, at most one row per
// (Metal, TenorMonths) key. Older as-of dates are overwritten, never merged.
type LatestCurve struct {
	Metal         Metal
	TenorMonths   int
	Price         decimal.Decimal
	Real10yrYield *decimal.Decimal
	DollarIndex   *decimal.Decimal
	DeficitGdp    *bool
	AsOfDate      time.Time
	UpdatedAt     time.Time
}

// CurveHistoryEntry is one append-only history record. Under normal
// operation a given AsOfDate is written at most once; a forced re-ingestion
// purges the prior batch for that date before re-inserting.
type CurveHistoryEntry struct {
	ID            uuid.UUID
	Metal         Metal
	TenorMonths   int
	Price         decimal.Decimal
	Real10yrYield *decimal.Decimal
	DollarIndex   *decimal.Decimal
	DeficitGdp    *bool
	AsOfDate      time.Time
	InsertedAt    time.Time
}

// DateOnly truncates t to a date-only value at midnight UTC, the
// normalization used for every as-of date and run date in the system.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
