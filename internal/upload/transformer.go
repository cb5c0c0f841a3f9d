package upload

import (
	"context"
	"fmt"
	"log/slog"
)

// Entity is the domain object a record is transformed into. Two entities
// are equal, for duplicate detection, when their fingerprints are equal.
type Entity interface {
	Fingerprint() string
}

// Findings collects the business rule violations of one record.
type Findings struct {
	errors   []string
	warnings []string
}

// Errorf records a violation that keeps the record from loading.
func (f *Findings) Errorf(format string, args ...any) {
	f.errors = append(f.errors, fmt.Sprintf(format, args...))
}

// Warnf records a remark that does not keep the record from loading.
func (f *Findings) Warnf(format string, args ...any) {
	f.warnings = append(f.warnings, fmt.Sprintf(format, args...))
}

// HasErrors reports whether any violation was recorded.
func (f *Findings) HasErrors() bool { return len(f.errors) > 0 }

func (f *Findings) Errors() []string   { return append([]string(nil), f.errors...) }
func (f *Findings) Warnings() []string { return append([]string(nil), f.warnings...) }

// Transformer builds the entity of one upload type. Implementations record
// rule violations on f; the entity they return is discarded when f holds an
// error. A Transformer is created per batch and may keep the batch start
// instant for date rules.
type Transformer interface {
	Transform(rec *Record, f *Findings) Entity
}

// TransformerFunc adapts a function to Transformer.
type TransformerFunc func(rec *Record, f *Findings) Entity

func (fn TransformerFunc) Transform(rec *Record, f *Findings) Entity { return fn(rec, f) }

// Transform applies t to every record and returns those that produced an
// entity. Warnings are recorded and never block a row; any error skips it.
// Progress covers the second third of the upload.
func Transform(ctx context.Context, records []*Record, t Transformer, run *Run) []*Record {
	res := run.Result
	progress := run.startPhase(PhaseTransform, len(records))
	out := make([]*Record, 0, len(records))

	for i, rec := range records {
		var f Findings
		entity := t.Transform(rec, &f)

		for _, w := range f.warnings {
			res.AddWarning(rec.Line(), "%s", w)
		}
		switch {
		case f.HasErrors():
			for _, e := range f.errors {
				res.AddError(rec.Line(), "%s", e)
			}
			rec.Entity = nil
			run.Skip.Add(rec.RowIndex)
		case entity != nil:
			rec.Entity = entity
			out = append(out, rec)
		}
		progress.step(ctx, i+1)
	}
	progress.finish(ctx)

	run.logger.InfoContext(ctx, "records transformed",
		slog.Int("in", len(records)),
		slog.Int("out", len(out)))
	return out
}
