package upload

import (
	"context"
	"errors"
	"log/slog"
)

// Loader applies records of one upload type to the store. Each call is its
// own commit: a failing row never undoes rows applied before it. A unique key
// conflict must surface as ErrUniqueViolation and a missing target as
// ErrNotFound, wrapped or not.
//
// user is the id of the user who started the batch.
type Loader interface {
	Add(ctx context.Context, user string, rec *Record) error
	Change(ctx context.Context, user string, rec *Record) error
	// AddOrChange reports whether the record was inserted rather than updated.
	AddOrChange(ctx context.Context, user string, rec *Record) (inserted bool, err error)
	Delete(ctx context.Context, user string, rec *Record) error
}

// Load removes duplicates and applies the remaining records in order. Store
// failures are recorded against their row and counted as ignored; the batch
// always runs to the end. Progress covers the last third of the upload. It
// reports whether at least one row was applied.
func Load(ctx context.Context, records []*Record, loader Loader, run *Run) bool {
	accepted, _ := FilterDuplicates(records, run)
	progress := run.startPhase(PhaseLoad, len(accepted))
	before := run.Result.Counts().Success

	for i, rec := range accepted {
		loadRecord(ctx, rec, loader, run)
		progress.step(ctx, i+1)
	}
	progress.finish(ctx)

	counts := run.Result.Counts()
	run.logger.InfoContext(ctx, "records loaded",
		slog.Int("inserted", counts.Insert),
		slog.Int("updated", counts.Update),
		slog.Int("deleted", counts.Delete),
		slog.Int("ignored", counts.Ignore),
		slog.Int("duplicates", counts.Duplicate))
	return counts.Success > before
}

func loadRecord(ctx context.Context, rec *Record, loader Loader, run *Run) {
	var (
		inserted bool
		err      error
	)
	switch rec.Action {
	case AddOnly:
		err = loader.Add(ctx, run.User, rec)
	case ChangeOnly:
		err = loader.Change(ctx, run.User, rec)
	case AddOrChange:
		inserted, err = loader.AddOrChange(ctx, run.User, rec)
	case Delete:
		err = loader.Delete(ctx, run.User, rec)
	}

	res := run.Result
	if err == nil {
		res.CountApplied(rec.Action, rec.Line(), inserted)
		return
	}

	switch {
	case errors.Is(err, ErrUniqueViolation):
		res.AddError(rec.Line(), "could not %s the record: it already exists", rec.Action.Verb())
	case errors.Is(err, ErrNotFound):
		res.NotFoundError(rec.Action, rec.Line())
	default:
		res.ActionError(rec.Action, rec.Line(), err.Error())
		run.logger.ErrorContext(ctx, "store rejected record",
			slog.Int("row", rec.Line()),
			slog.String("action", rec.Action.String()),
			slog.String("error", err.Error()))
	}
	res.countIgnored(rec.Line())
}
