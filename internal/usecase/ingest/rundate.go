package ingest

import (
	"fmt"
	"time"

	"github.com/dmonteiro/curvevault/internal/domain"
)

// RunDateZone is the fixed reference timezone for run-date resolution.
// "Today" is whatever calendar day it currently is in this zone, regardless
// of the server's local timezone.
const RunDateZone = "America/New_York"

// ResolveRunDate projects the given instant into the reference zone and
// extracts its calendar date. The result is the default expected as-of date
// for a run and the key under which the audit log is queried.
func ResolveRunDate(now time.Time) (time.Time, error) {
	loc, err := time.LoadLocation(RunDateZone)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to load run-date timezone %s: %w", RunDateZone, err)
	}
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC), nil
}

// fallbackRunDate is the run date recorded when the reference zone cannot
// be loaded: UTC "today", so the audit row stays meaningful
func fallbackRunDate(now time.Time) time.Time {
	return domain.DateOnly(now.UTC())
}

// SameDate reports whether two normalized dates fall on the same calendar day
func SameDate(a, b time.Time) bool {
	return domain.DateOnly(a).Equal(domain.DateOnly(b))
}
