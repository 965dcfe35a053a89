package ingest

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmonteiro/curvevault/internal/domain"
)

// Normalized names of the columns the curve export must carry. Matching is
// case- and whitespace-insensitive; a header missing any of these fails the
// whole batch with SchemaMismatchError.
const (
	colAsOfDate    = "date"
	colMetal       = "metal"
	colTenor       = "tenor (months)"
	colPrice       = "price"
	colYield       = "real 10yr yield"
	colDollarIndex = "dollar index"
	colDeficitGdp  = "deficit/gdp flag"
)

var requiredColumns = []string{
	colAsOfDate, colMetal, colTenor, colPrice, colYield, colDollarIndex, colDeficitGdp,
}

// Date layouts accepted in the export, tried in order.
var asOfDateLayouts = []string{domain.DateLayout, "1/2/2006", "01/02/2006"}

// ParseResult is the output of one parse: the surviving candidate rows in
// source order, plus how many data rows were dropped by row-level validation.
type ParseResult struct {
	Rows    []*domain.CurveRow
	Dropped int
}

// ParseCurveCSV turns the raw export text into typed candidate rows.
//
// Policy: a header missing a required column is fatal (zero rows, error); a
// single malformed data row is not fatal, it is silently dropped and counted.
// Required per row: metal, a parseable non-negative tenor, a parseable price
// and a parseable as-of date. Real yield, dollar index and the deficit/GDP
// flag default to NULL when blank or unparseable.
func ParseCurveCSV(raw string) (*ParseResult, error) {
	reader := csv.NewReader(strings.NewReader(raw))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read curve export: %w", err)
	}
	if len(records) == 0 {
		return nil, &domain.SchemaMismatchError{MissingColumns: requiredColumns}
	}

	index, err := headerIndex(records[0])
	if err != nil {
		return nil, err
	}

	result := &ParseResult{}
	for _, record := range records[1:] {
		row, ok := parseRow(record, index)
		if !ok {
			result.Dropped++
			continue
		}
		result.Rows = append(result.Rows, row)
	}
	return result, nil
}

// headerIndex maps each required column to its position in the header line
func headerIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, label := range header {
		index[normalizeLabel(label)] = i
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &domain.SchemaMismatchError{MissingColumns: missing}
	}
	return index, nil
}

// parseRow builds one CurveRow from a data record.
// Returns ok=false when a required field is missing or unparseable.
func parseRow(record []string, index map[string]int) (*domain.CurveRow, bool) {
	metal := strings.ToLower(field(record, index, colMetal))
	if metal == "" {
		return nil, false
	}

	tenor, err := strconv.Atoi(stripNumeric(field(record, index, colTenor)))
	if err != nil || tenor < 0 {
		return nil, false
	}

	price, err := parseDecimal(field(record, index, colPrice))
	if err != nil {
		return nil, false
	}

	asOfDate, ok := parseAsOfDate(field(record, index, colAsOfDate))
	if !ok {
		return nil, false
	}

	return &domain.CurveRow{
		Metal:         domain.Metal(metal),
		TenorMonths:   tenor,
		Price:         price,
		Real10yrYield: parseNullableDecimal(field(record, index, colYield)),
		DollarIndex:   parseNullableDecimal(field(record, index, colDollarIndex)),
		DeficitGdp:    parseNullableBool(field(record, index, colDeficitGdp)),
		AsOfDate:      asOfDate,
	}, true
}

// field returns the trimmed value of a column, or "" when the record is
// shorter than the header
func field(record []string, index map[string]int, col string) string {
	i := index[col]
	if i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func normalizeLabel(label string) string {
	return strings.Join(strings.Fields(strings.ToLower(label)), " ")
}

// stripNumeric removes thousands separators and currency markers that
// spreadsheet exports commonly embed in numeric cells
func stripNumeric(s string) string {
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "$")
	return strings.TrimSpace(s)
}

func parseDecimal(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(stripNumeric(s))
}

func parseNullableDecimal(s string) *decimal.Decimal {
	d, err := parseDecimal(s)
	if err != nil {
		return nil
	}
	return &d
}

func parseNullableBool(s string) *bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1":
		v := true
		return &v
	case "false", "no", "n", "0":
		v := false
		return &v
	default:
		return nil
	}
}

func parseAsOfDate(s string) (time.Time, bool) {
	for _, layout := range asOfDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return domain.DateOnly(t), true
		}
	}
	return time.Time{}, false
}
