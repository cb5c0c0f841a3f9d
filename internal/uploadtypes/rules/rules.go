// Package rules holds the business rules and store glue shared by the
// upload types.
package rules

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"massupload/internal/store"
	"massupload/internal/upload"
)

// Part12NCLength is the number of digits of a 12NC part number.
const Part12NCLength = 12

// NormalizePart12NC validates a 12NC part number. Shorter numbers lose their
// leading zeros in spreadsheets, so they are padded back with a warning.
func NormalizePart12NC(column, value string, f *upload.Findings) string {
	value = strings.TrimSpace(value)
	if value == "" || strings.Trim(value, "0123456789") != "" {
		f.Errorf("%s %q must contain digits only", column, value)
		return value
	}
	if len(value) > Part12NCLength {
		f.Errorf("%s %q has more than %d digits", column, value, Part12NCLength)
		return value
	}
	if len(value) < Part12NCLength {
		padded := strings.Repeat("0", Part12NCLength-len(value)) + value
		f.Warnf("%s %s was padded to %s", column, value, padded)
		return padded
	}
	return value
}

// Day truncates t to its calendar day in UTC, the zone dates are read in.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CheckEffectiveDate applies the date rule of dated master data: records
// that add or change data may take effect from the batch start day on, a
// delete must target a date after it.
func CheckEffectiveDate(column string, action upload.RowAction, date, today time.Time, f *upload.Findings) {
	if action == upload.Delete {
		if !date.After(today) {
			f.Errorf("%s %s must be after %s to delete", column, date.Format(upload.DateLayout), today.Format(upload.DateLayout))
		}
		return
	}
	if date.Before(today) {
		f.Errorf("%s %s lies in the past", column, date.Format(upload.DateLayout))
	}
}

// LimitText truncates text longer than limit runes with a warning.
func LimitText(column, text string, limit int, f *upload.Findings) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	f.Warnf("%s was truncated to %d characters", column, limit)
	return string(runes[:limit])
}

// StoreError translates store failures to the errors the pipeline
// classifies.
func StoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrUniqueViolation):
		return fmt.Errorf("%w: %v", upload.ErrUniqueViolation, err)
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %v", upload.ErrNotFound, err)
	default:
		return err
	}
}
