package upload

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// DateLayout is the only textual date format accepted in upload sheets.
const DateLayout = "2006-01-02"

// Coercion never fails with an error: each function reports whether the cell
// could be read as the requested type and the caller words the diagnostic.

func coerceInteger(raw string) (int64, bool) {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	return v, err == nil
}

func coerceDecimal(kind CellKind, raw, text string) (float64, bool) {
	if kind == CellNumber {
		if v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			return v, true
		}
	}
	text = strings.TrimSpace(text)
	if strings.Contains(text, ",") {
		return 0, false
	}
	v, err := strconv.ParseFloat(text, 64)
	return v, err == nil
}

func coerceDate(raw, text string) (time.Time, bool) {
	for _, candidate := range []string{text, raw} {
		if t, err := time.Parse(DateLayout, strings.TrimSpace(candidate)); err == nil {
			return t, true
		}
	}
	serial, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, false
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
}

func coerceExactDecimal(text string) (decimal.Decimal, bool) {
	v, err := decimal.NewFromString(strings.TrimSpace(text))
	return v, err == nil
}

// coerce reads a cell as the declared type of col.
func coerce(s Sheet, row int, col BoundColumn) (any, bool) {
	kind := s.Kind(row, col.Index)
	if kind == CellError {
		return nil, false
	}
	raw, text := s.Raw(row, col.Index), s.Text(row, col.Index)

	switch col.Type {
	case Integer:
		return okOrNil(coerceInteger(raw))
	case Decimal:
		return okOrNil(coerceDecimal(kind, raw, text))
	case Date:
		return okOrNil(coerceDate(raw, text))
	case ExactDecimal:
		return okOrNil(coerceExactDecimal(text))
	default:
		return strings.TrimSpace(text), true
	}
}

func okOrNil[T any](v T, ok bool) (any, bool) {
	if !ok {
		return nil, false
	}
	return v, true
}

// coercionMessage words the diagnostic for a cell that failed coercion.
func coercionMessage(col BoundColumn, text string) string {
	text = strings.TrimSpace(text)
	switch col.Type {
	case Integer:
		return "column " + col.Name + " must be a whole number, got " + strconv.Quote(text)
	case Decimal:
		if strings.Contains(text, ",") {
			return "column " + col.Name + " must use a dot as decimal separator and no thousands separator, got " + strconv.Quote(text)
		}
		return "column " + col.Name + " must be a number, got " + strconv.Quote(text)
	case Date:
		return "column " + col.Name + " must be a date in the format yyyy-MM-dd, got " + strconv.Quote(text)
	case ExactDecimal:
		return "column " + col.Name + " must be an exact decimal number, got " + strconv.Quote(text)
	default:
		return "column " + col.Name + " could not be read as text, got " + strconv.Quote(text)
	}
}
