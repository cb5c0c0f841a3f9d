package upload

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

// Record is one content row after extraction. Fields holds the coerced cell
// values by column name; a column with no key is null.
type Record struct {
	Action RowAction
	// RowIndex is the zero based sheet index of the row.
	RowIndex int
	Fields   map[string]any
	// Entity is set by the transform phase.
	Entity Entity
}

// Line returns the 1-based row number used in diagnostics.
func (r *Record) Line() int { return r.RowIndex + 1 }

// Has reports whether a field is non-null.
func (r *Record) Has(name string) bool {
	_, ok := r.Fields[name]
	return ok
}

// Text returns a text field, or "" when it is null.
func (r *Record) Text(name string) string {
	v, _ := r.Fields[name].(string)
	return v
}

// Int returns an integer field.
func (r *Record) Int(name string) (int64, bool) {
	v, ok := r.Fields[name].(int64)
	return v, ok
}

// Float returns a decimal field.
func (r *Record) Float(name string) (float64, bool) {
	v, ok := r.Fields[name].(float64)
	return v, ok
}

// Time returns a date field.
func (r *Record) Time(name string) (time.Time, bool) {
	v, ok := r.Fields[name].(time.Time)
	return v, ok
}

// Decimal returns an exact decimal field.
func (r *Record) Decimal(name string) (decimal.Decimal, bool) {
	v, ok := r.Fields[name].(decimal.Decimal)
	return v, ok
}

// Extract converts every row that survived verification into a Record. Rows
// with an unrecognised action or an unreadable required cell are reported,
// skipped and left out of the result. Progress covers the first third of the
// upload.
func Extract(ctx context.Context, s Sheet, run *Run) []*Record {
	last := s.LastRow()
	progress := run.startPhase(PhaseExtract, last)
	records := make([]*Record, 0, run.Result.Counts().RecordsToBeLoaded)

	for row := 1; row <= last; row++ {
		if !run.Skip.Contains(row) {
			if rec, ok := extractRow(s, row, run); ok {
				records = append(records, rec)
			}
		}
		progress.step(ctx, row)
	}
	progress.finish(ctx)

	run.logger.InfoContext(ctx, "rows extracted", slog.Int("records", len(records)))
	return records
}

func extractRow(s Sheet, row int, run *Run) (*Record, bool) {
	res, layout := run.Result, run.Layout
	line := row + 1

	action, ok := ResolveAction(s, row, layout)
	if !ok {
		res.AddError(line, "unrecognised upload action %q, expected %s",
			cellText(s, row, layout.ActionIndex), actionList())
		run.Skip.Add(row)
		return nil, false
	}

	rec := &Record{Action: action, RowIndex: row, Fields: make(map[string]any)}
	complete := true
	for _, col := range layout.Resolved() {
		if isBlank(s, row, col.Index) {
			if col.Required {
				res.AddError(line, "required column %s is empty", col.Name)
				complete = false
			}
			continue
		}
		v, ok := coerce(s, row, col)
		if !ok {
			res.AddError(line, "%s", coercionMessage(col, s.Text(row, col.Index)))
			if col.Required {
				complete = false
			}
			continue
		}
		rec.Fields[col.Name] = v
	}

	if !complete {
		run.Skip.Add(row)
		return nil, false
	}
	return rec, true
}
