package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmonteiro/curvevault/internal/domain"
)

// curveRepository implements domain.CurveRepository
type curveRepository struct {
	db *DB
}

// NewCurveRepository creates a new curve repository
func NewCurveRepository(db *DB) domain.CurveRepository {
	return &curveRepository{db: db}
}

// HistoryForDate retrieves all history entries for the given as-of date
func (r *curveRepository) HistoryForDate(ctx context.Context, date time.Time) ([]*domain.CurveHistoryEntry, error) {
	query := `
		SELECT id, metal, tenor_months, price, real_10yr_yield, dollar_index, deficit_gdp_flag, as_of_date, inserted_at
		FROM curve_history
		WHERE as_of_date = $1
		ORDER BY metal, tenor_months
	`

	rows, err := r.db.QueryContext(ctx, query, domain.DateOnly(date))
	if err != nil {
		return nil, fmt.Errorf("failed to query curve history: %w", err)
	}
	defer rows.Close()

	var entries []*domain.CurveHistoryEntry
	for rows.Next() {
		entry, err := scanHistoryEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate curve history rows: %w", err)
	}

	return entries, nil
}

// ReplaceBatch atomically replaces the latest-state rows for the batch's
// as-of date and appends the batch to history. The success audit record is
// inserted in the same transaction, so a committed batch always has its
// audit trace and a rolled-back one leaves no data behind.
func (r *curveRepository) ReplaceBatch(ctx context.Context, batch []*domain.CurveRow, purgeHistory bool, run *domain.IngestRun) error {
	if len(batch) == 0 {
		return fmt.Errorf("refusing to write an empty curve batch")
	}
	asOfDate := domain.DateOnly(batch[0].AsOfDate)

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	// Forced re-ingestion purges the prior batch for the date so history
	// keeps at-most-one-batch-per-date semantics
	if purgeHistory {
		if _, err := dbTx.ExecContext(ctx,
			`DELETE FROM curve_history WHERE as_of_date = $1`, asOfDate); err != nil {
			return fmt.Errorf("failed to purge curve history for %s: %w",
				asOfDate.Format(domain.DateLayout), err)
		}
	}

	// Clear latest rows for the date so stale tenors from a previous
	// partial run cannot linger
	if _, err := dbTx.ExecContext(ctx,
		`DELETE FROM latest_curve WHERE as_of_date = $1`, asOfDate); err != nil {
		return fmt.Errorf("failed to clear latest curves for %s: %w",
			asOfDate.Format(domain.DateLayout), err)
	}

	upsertQuery := `
		INSERT INTO latest_curve (metal, tenor_months, price, real_10yr_yield, dollar_index, deficit_gdp_flag, as_of_date, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (metal, tenor_months) DO UPDATE SET
			price = EXCLUDED.price,
			real_10yr_yield = EXCLUDED.real_10yr_yield,
			dollar_index = EXCLUDED.dollar_index,
			deficit_gdp_flag = EXCLUDED.deficit_gdp_flag,
			as_of_date = EXCLUDED.as_of_date,
			updated_at = NOW()
	`

	insertHistoryQuery := `
		INSERT INTO curve_history (id, metal, tenor_months, price, real_10yr_yield, dollar_index, deficit_gdp_flag, as_of_date, inserted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`

	for _, row := range batch {
		_, err = dbTx.ExecContext(ctx, upsertQuery,
			string(row.Metal),
			row.TenorMonths,
			row.Price.String(),
			nullDecimalString(row.Real10yrYield),
			nullDecimalString(row.DollarIndex),
			nullBool(row.DeficitGdp),
			domain.DateOnly(row.AsOfDate),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert latest curve (%s, %d): %w", row.Metal, row.TenorMonths, err)
		}

		_, err = dbTx.ExecContext(ctx, insertHistoryQuery,
			uuid.New(),
			string(row.Metal),
			row.TenorMonths,
			row.Price.String(),
			nullDecimalString(row.Real10yrYield),
			nullDecimalString(row.DollarIndex),
			nullBool(row.DeficitGdp),
			domain.DateOnly(row.AsOfDate),
		)
		if err != nil {
			return fmt.Errorf("failed to insert curve history (%s, %d): %w", row.Metal, row.TenorMonths, err)
		}
	}

	insertRunQuery := `
		INSERT INTO ingest_runs (id, run_date, trigger_source, status, reason, row_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = dbTx.ExecContext(ctx, insertRunQuery,
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

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Latest retrieves the whole latest-state projection
func (r *curveRepository) Latest(ctx context.Context) ([]*domain.LatestCurve, error) {
	query := `
		SELECT metal, tenor_months, price, real_10yr_yield, dollar_index, deficit_gdp_flag, as_of_date, updated_at
		FROM latest_curve
		ORDER BY metal, tenor_months
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest curves: %w", err)
	}
	defer rows.Close()

	var curves []*domain.LatestCurve
	for rows.Next() {
		var curve domain.LatestCurve
		var metal, priceStr string
		var yieldStr, dollarStr sql.NullString
		var deficit sql.NullBool

		err := rows.Scan(
			&metal,
			&curve.TenorMonths,
			&priceStr,
			&yieldStr,
			&dollarStr,
			&deficit,
			&curve.AsOfDate,
			&curve.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan latest curve row: %w", err)
		}

		curve.Metal = domain.Metal(metal)
		curve.Price, err = decimal.NewFromString(priceStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse price: %w", err)
		}
		curve.Real10yrYield, err = decimalFromNullString(yieldStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse real_10yr_yield: %w", err)
		}
		curve.DollarIndex, err = decimalFromNullString(dollarStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse dollar_index: %w", err)
		}
		if deficit.Valid {
			v := deficit.Bool
			curve.DeficitGdp = &v
		}
		curve.AsOfDate = domain.DateOnly(curve.AsOfDate)

		curves = append(curves, &curve)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate latest curve rows: %w", err)
	}

	return curves, nil
}

func scanHistoryEntry(rows *sql.Rows) (*domain.CurveHistoryEntry, error) {
	var entry domain.CurveHistoryEntry
	var metal, priceStr string
	var yieldStr, dollarStr sql.NullString
	var deficit sql.NullBool

	err := rows.Scan(
		&entry.ID,
		&metal,
		&entry.TenorMonths,
		&priceStr,
		&yieldStr,
		&dollarStr,
		&deficit,
		&entry.AsOfDate,
		&entry.InsertedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan curve history row: %w", err)
	}

	entry.Metal = domain.Metal(metal)
	entry.Price, err = decimal.NewFromString(priceStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse price: %w", err)
	}
	entry.Real10yrYield, err = decimalFromNullString(yieldStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse real_10yr_yield: %w", err)
	}
	entry.DollarIndex, err = decimalFromNullString(dollarStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dollar_index: %w", err)
	}
	if deficit.Valid {
		v := deficit.Bool
		entry.DeficitGdp = &v
	}
	entry.AsOfDate = domain.DateOnly(entry.AsOfDate)

	return &entry, nil
}

// nullDecimalString converts an optional decimal to a driver-friendly value
func nullDecimalString(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}

func nullBool(b *bool) interface{} {
	if b == nil {
		return nil
	}
	return *b
}

func decimalFromNullString(s sql.NullString) (*decimal.Decimal, error) {
	if !s.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
