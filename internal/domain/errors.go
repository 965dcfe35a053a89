package domain

import (
	"fmt"
	"time"
)

// SchemaMismatchError means the source header is missing required columns.
// This is fatal for the whole batch: no rows are produced.
type SchemaMismatchError struct {
	MissingColumns []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("source header missing required columns: %v", e.MissingColumns)
}

// AmbiguousAsOfDateError means the surviving rows carried zero or more than
// one distinct as-of date, so the batch cannot be attributed to a single day.
type AmbiguousAsOfDateError struct {
	Dates []time.Time
}

func (e *AmbiguousAsOfDateError) Error() string {
	if len(e.Dates) == 0 {
		return "no as-of date present in any row"
	}
	dates := make([]string, len(e.Dates))
	for i, d := range e.Dates {
		dates[i] = d.Format(DateLayout)
	}
	return fmt.Sprintf("multiple as-of dates in one batch: %v", dates)
}

// DateMismatchError means the batch's single as-of date does not match the
// resolved run date.
type DateMismatchError struct {
	SheetDate    time.Time
	ExpectedDate time.Time
}

func (e *DateMismatchError) Error() string {
	return fmt.Sprintf("sheet as-of date %s does not match expected run date %s",
		e.SheetDate.Format(DateLayout), e.ExpectedDate.Format(DateLayout))
}
