package rules

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"massupload/internal/store"
	"massupload/internal/upload"
)

func TestNormalizePart12NC(t *testing.T) {
	tests := []struct {
		in       string
		want     string
		errors   bool
		warnings bool
	}{
		{in: "000012345678", want: "000012345678"},
		{in: "12345", want: "000000012345", warnings: true},
		{in: " 12345678901 ", want: "012345678901", warnings: true},
		{in: "1234567890123", want: "1234567890123", errors: true},
		{in: "12A45", want: "12A45", errors: true},
		{in: "", want: "", errors: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var f upload.Findings
			assert.Equal(t, tt.want, NormalizePart12NC("PART_12NC", tt.in, &f))
			assert.Equal(t, tt.errors, f.HasErrors())
			assert.Equal(t, tt.warnings, len(f.Warnings()) > 0)
		})
	}
}

func TestCheckEffectiveDate(t *testing.T) {
	today := Day(time.Date(2026, 3, 10, 22, 0, 0, 0, time.UTC))
	yesterday := today.AddDate(0, 0, -1)
	tomorrow := today.AddDate(0, 0, 1)

	tests := []struct {
		name   string
		action upload.RowAction
		date   time.Time
		ok     bool
	}{
		{"add today", upload.AddOnly, today, true},
		{"add yesterday", upload.AddOnly, yesterday, false},
		{"change tomorrow", upload.ChangeOnly, tomorrow, true},
		{"add or change yesterday", upload.AddOrChange, yesterday, false},
		{"delete today", upload.Delete, today, false},
		{"delete yesterday", upload.Delete, yesterday, false},
		{"delete tomorrow", upload.Delete, tomorrow, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f upload.Findings
			CheckEffectiveDate("EFFECTIVE_DATE", tt.action, tt.date, today, &f)
			assert.Equal(t, !tt.ok, f.HasErrors())
		})
	}
}

func TestLimitText(t *testing.T) {
	var f upload.Findings
	assert.Equal(t, "abc", LimitText("C", "abc", 3, &f))
	assert.False(t, f.HasErrors())
	assert.Empty(t, f.Warnings())
	assert.Equal(t, "äb", LimitText("C", "äbc", 2, &f))
	assert.Len(t, f.Warnings(), 1)
}

func TestStoreError(t *testing.T) {
	assert.NoError(t, StoreError(nil))
	assert.ErrorIs(t, StoreError(fmt.Errorf("%w: dup", store.ErrUniqueViolation)), upload.ErrUniqueViolation)
	assert.ErrorIs(t, StoreError(store.ErrNotFound), upload.ErrNotFound)

	other := errors.New("boom")
	assert.Equal(t, other, StoreError(other))
}
