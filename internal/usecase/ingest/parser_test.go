package ingest

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmonteiro/curvevault/internal/domain"
)

const curveHeader = "Date,Metal,Tenor (Months),Price,Real 10yr Yield,Dollar Index,Deficit/GDP Flag\n"

func TestParseCurveCSV_ValidBatch(t *testing.T) {
	raw := curveHeader +
		"2024-03-15,Gold,0,\"2,184.50\",1.85,103.2,true\n" +
		"2024-03-15,Gold,12,\"2,250.00\",1.85,103.2,true\n" +
		"2024-03-15,Silver,0,25.10,1.85,103.2,false\n"

	result, err := ParseCurveCSV(raw)

	require.NoError(t, err)
	require.Len(t, result.Rows, 3)
	assert.Equal(t, 0, result.Dropped)

	first := result.Rows[0]
	assert.Equal(t, domain.MetalGold, first.Metal)
	assert.Equal(t, 0, first.TenorMonths)
	assert.True(t, first.Price.Equal(decimal.RequireFromString("2184.50")))
	require.NotNil(t, first.Real10yrYield)
	assert.True(t, first.Real10yrYield.Equal(decimal.RequireFromString("1.85")))
	require.NotNil(t, first.DeficitGdp)
	assert.True(t, *first.DeficitGdp)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), first.AsOfDate)

	assert.Equal(t, domain.MetalSilver, result.Rows[2].Metal)
	require.NotNil(t, result.Rows[2].DeficitGdp)
	assert.False(t, *result.Rows[2].DeficitGdp)
}

func TestParseCurveCSV_HeaderCaseAndWhitespaceInsensitive(t *testing.T) {
	raw := "  DATE , metal ,TENOR  (MONTHS), price , REAL 10YR  YIELD ,Dollar   Index, DEFICIT/GDP FLAG \n" +
		"2024-03-15,gold,0,2184.50,,,\n"

	result, err := ParseCurveCSV(raw)

	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
}

func TestParseCurveCSV_MissingColumnIsFatal(t *testing.T) {
	raw := "Date,Metal,Price,Real 10yr Yield,Dollar Index,Deficit/GDP Flag\n" +
		"2024-03-15,gold,2184.50,1.85,103.2,true\n"

	result, err := ParseCurveCSV(raw)

	assert.Nil(t, result)
	var schemaErr *domain.SchemaMismatchError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, []string{"tenor (months)"}, schemaErr.MissingColumns)
}

func TestParseCurveCSV_MalformedRowsDroppedAndCounted(t *testing.T) {
	raw := curveHeader
	for i := 0; i < 8; i++ {
		raw += "2024-03-15,gold," + string(rune('0'+i)) + ",2184.50,1.85,103.2,true\n"
	}
	// two rows with non-numeric tenors must be dropped, not abort the batch
	raw += "2024-03-15,gold,abc,2184.50,1.85,103.2,true\n"
	raw += "2024-03-15,gold,,2184.50,1.85,103.2,true\n"

	result, err := ParseCurveCSV(raw)

	require.NoError(t, err)
	assert.Len(t, result.Rows, 8)
	assert.Equal(t, 2, result.Dropped)
}

func TestParseCurveCSV_RowLevelPolicy(t *testing.T) {
	tests := []struct {
		name    string
		row     string
		kept    bool
		checkFn func(t *testing.T, row *domain.CurveRow)
	}{
		{
			name: "blank optional fields default to null",
			row:  "2024-03-15,gold,6,2184.50,,,\n",
			kept: true,
			checkFn: func(t *testing.T, row *domain.CurveRow) {
				assert.Nil(t, row.Real10yrYield)
				assert.Nil(t, row.DollarIndex)
				assert.Nil(t, row.DeficitGdp)
			},
		},
		{
			name: "unparseable optional fields default to null",
			row:  "2024-03-15,gold,6,2184.50,n/a,n/a,maybe\n",
			kept: true,
			checkFn: func(t *testing.T, row *domain.CurveRow) {
				assert.Nil(t, row.Real10yrYield)
				assert.Nil(t, row.DollarIndex)
				assert.Nil(t, row.DeficitGdp)
			},
		},
		{name: "missing metal drops the row", row: "2024-03-15,,6,2184.50,1.85,103.2,true\n", kept: false},
		{name: "unparseable price drops the row", row: "2024-03-15,gold,6,n/a,1.85,103.2,true\n", kept: false},
		{name: "negative tenor drops the row", row: "2024-03-15,gold,-6,2184.50,1.85,103.2,true\n", kept: false},
		{name: "unparseable date drops the row", row: "someday,gold,6,2184.50,1.85,103.2,true\n", kept: false},
		{name: "slash date format accepted", row: "3/15/2024,gold,6,2184.50,1.85,103.2,true\n", kept: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseCurveCSV(curveHeader + tt.row)
			require.NoError(t, err)

			if !tt.kept {
				assert.Empty(t, result.Rows)
				assert.Equal(t, 1, result.Dropped)
				return
			}

			require.Len(t, result.Rows, 1)
			assert.Equal(t, 0, result.Dropped)
			if tt.checkFn != nil {
				tt.checkFn(t, result.Rows[0])
			}
		})
	}
}

func TestParseCurveCSV_EmptyInput(t *testing.T) {
	result, err := ParseCurveCSV("")

	assert.Nil(t, result)
	var schemaErr *domain.SchemaMismatchError
	assert.ErrorAs(t, err, &schemaErr)
}

func TestParseCurveCSV_HeaderOnlyProducesZeroRows(t *testing.T) {
	result, err := ParseCurveCSV(curveHeader)

	require.NoError(t, err)
	assert.Empty(t, result.Rows)
	assert.Equal(t, 0, result.Dropped)
}
