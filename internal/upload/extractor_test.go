package upload

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRowAction(t *testing.T) {
	tests := []struct {
		text string
		want RowAction
		ok   bool
	}{
		{"ADD_ONLY", AddOnly, true},
		{"add_only", AddOnly, true},
		{" Change_Only ", ChangeOnly, true},
		{"ADD_OR_CHANGE", AddOrChange, true},
		{"delete", Delete, true},
		{"", AddOnly, false},
		{"ADD", AddOnly, false},
		{"REMOVE", AddOnly, false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := ParseRowAction(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCoercion(t *testing.T) {
	t.Run("integer", func(t *testing.T) {
		v, ok := coerceInteger(" 42 ")
		assert.True(t, ok)
		assert.Equal(t, int64(42), v)
		_, ok = coerceInteger("4.2")
		assert.False(t, ok)
	})

	t.Run("decimal", func(t *testing.T) {
		v, ok := coerceDecimal(CellNumber, "3.5", "3.50")
		assert.True(t, ok)
		assert.Equal(t, 3.5, v)

		v, ok = coerceDecimal(CellText, "2.25", "2.25")
		assert.True(t, ok)
		assert.Equal(t, 2.25, v)

		_, ok = coerceDecimal(CellText, "3,5", "3,5")
		assert.False(t, ok)
		_, ok = coerceDecimal(CellText, "abc", "abc")
		assert.False(t, ok)
	})

	t.Run("date", func(t *testing.T) {
		want := time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)
		v, ok := coerceDate("2099-01-01", "2099-01-01")
		assert.True(t, ok)
		assert.Equal(t, want, v)

		// 45658 is 2025-01-01 in the 1900 date system.
		v, ok = coerceDate("45658", "01-01-25")
		assert.True(t, ok)
		assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), v)

		_, ok = coerceDate("01/02/2099", "01/02/2099")
		assert.False(t, ok)
		_, ok = coerceDate("-3", "-3")
		assert.False(t, ok)
	})

	t.Run("exact decimal", func(t *testing.T) {
		v, ok := coerceExactDecimal("0.1000000000000000000001")
		assert.True(t, ok)
		assert.Equal(t, "0.1000000000000000000001", v.String())
		_, ok = coerceExactDecimal("1,5")
		assert.False(t, ok)
	})
}

func TestCoercionMessages(t *testing.T) {
	col := BoundColumn{ColumnSpec: ColumnSpec{Name: "PARAMETER_VALUE", Type: Decimal}}
	assert.Contains(t, coercionMessage(col, "3,5"), "decimal separator")
	assert.Contains(t, coercionMessage(col, "x"), "must be a number")

	col = BoundColumn{ColumnSpec: ColumnSpec{Name: "EFFECTIVE_DATE", Type: Date}}
	assert.Contains(t, coercionMessage(col, "x"), "yyyy-MM-dd")
}

func verified(t *testing.T, s Sheet) *Run {
	t.Helper()
	run := newTestRun()
	require.True(t, Verify(context.Background(), s, run))
	return run
}

func TestExtract(t *testing.T) {
	s := newMemSheet(
		[]string{"UPLOAD_ACTION", "PART_12NC", "SITE", "EFFECTIVE_DATE", "PARAMETER_VALUE", "LOT_SIZE", "PRECISE_VALUE", "COMMENT"},
		[]string{"add_or_change", "12345", "ATKH", "2099-01-01", "3.5", "100", "1.25", " hello "},
		[]string{"ADD_ONLY", "12345", "ATKH", "2099-01-01", "3.5"},
		[]string{"ADD_ONLY", "12345", "ATKH", "2099-01-01", "3,5"},
		[]string{"ADD_ONLY", "12345", "ATKH", "2099-01-01", "3.5", "many"},
		[]string{"UPSERT", "12345", "ATKH", "2099-01-01", "3.5"},
	)
	run := verified(t, s)
	records := Extract(context.Background(), s, run)

	require.Len(t, records, 3)

	first := records[0]
	assert.Equal(t, AddOrChange, first.Action)
	assert.Equal(t, 2, first.Line())
	assert.Equal(t, "12345", first.Text("PART_12NC"))
	lot, _ := first.Int("LOT_SIZE")
	assert.Equal(t, int64(100), lot)
	precise, _ := first.Decimal("PRECISE_VALUE")
	assert.True(t, decimal.RequireFromString("1.25").Equal(precise))
	assert.Equal(t, "hello", first.Text("COMMENT"))

	second := records[1]
	assert.False(t, second.Has("LOT_SIZE"))
	assert.False(t, second.Has("COMMENT"))

	third := records[2]
	assert.Equal(t, 5, third.Line())
	assert.False(t, third.Has("LOT_SIZE"), "optional coercion failure keeps the row with a null value")

	assert.Equal(t, []int{4, 5, 6}, run.Result.ErrorRows())
	msgs := run.Result.ErrorMessages()
	assert.Contains(t, msgs[0], "decimal separator")
	assert.Contains(t, msgs[1], "LOT_SIZE")
	assert.Contains(t, msgs[2], `"UPSERT"`)
	assert.True(t, run.Skip.Contains(3))
	assert.True(t, run.Skip.Contains(5))
	assert.False(t, run.Skip.Contains(4))
}

func TestExtractWithoutActionColumnDefaultsToAdd(t *testing.T) {
	s := newMemSheet(
		[]string{"PART_12NC", "SITE", "EFFECTIVE_DATE", "PARAMETER_VALUE"},
		[]string{"1", "A", "2099-01-01", "1"},
	)
	run := verified(t, s)
	records := Extract(context.Background(), s, run)
	require.Len(t, records, 1)
	assert.Equal(t, AddOnly, records[0].Action)
}

func TestUnrecognisedActionReportedOnce(t *testing.T) {
	for _, action := range []string{"", "ADD", "MODIFY", "add only"} {
		t.Run(action, func(t *testing.T) {
			s := newMemSheet(testHeader, []string{action, "1", "A", "2099-01-01", "1"})
			run := verified(t, s)
			records := Extract(context.Background(), s, run)
			assert.Empty(t, records)
			assert.Equal(t, []int{2}, run.Result.ErrorRows())
		})
	}
}
