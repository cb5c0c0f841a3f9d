package upload

import (
	"context"
	"log/slog"
	"strings"
)

// Verify checks the structure of s against the run's catalog and screens
// every content row. It resolves run.Layout and reports whether the batch
// may proceed to extraction.
//
// A header with duplicate catalog names or missing required columns rejects
// the whole batch before any row is looked at. Rows with blank or broken
// required cells are reported and skipped; rows flagged N in the flag column
// are skipped silently.
func Verify(ctx context.Context, s Sheet, run *Run) bool {
	res := run.Result

	if s.LastRow() < 0 || rowIsEmpty(s, 0) {
		res.AddError(0, "The sheet has no header row")
		res.SetCritical()
		return false
	}

	run.Layout = Decorate(s, run.Config)
	layout := run.Layout
	for _, name := range layout.Duplicates {
		res.AddError(0, "Column %s appears more than once in the header row", name)
	}
	for _, name := range layout.Missing {
		res.AddError(0, "Required column %s is missing from the header row", name)
	}
	if layout.Broken() {
		res.SetCritical()
		run.logger.WarnContext(ctx, "header rejected",
			slog.Any("duplicates", layout.Duplicates),
			slog.Any("missing", layout.Missing))
		return false
	}

	for row := 1; row <= s.LastRow(); row++ {
		verifyRow(s, row, run)
	}

	counts := res.Counts()
	run.logger.InfoContext(ctx, "sheet verified",
		slog.Int("rows", s.LastRow()),
		slog.Int("to_be_loaded", counts.RecordsToBeLoaded),
		slog.Int("skipped", run.Skip.Len()))
	return !res.Critical()
}

func verifyRow(s Sheet, row int, run *Run) {
	res, layout := run.Result, run.Layout
	line := row + 1

	if rowIsEmpty(s, row) {
		run.Skip.Add(row)
		res.countIgnored(line)
		return
	}

	// Errors are held back until the flag column has been read: a row
	// flagged N is ignored together with whatever is wrong with it.
	var problems []string
	for _, col := range layout.Resolved() {
		if !col.Required {
			continue
		}
		switch {
		case col.Index < s.RowLength(row) && s.Kind(row, col.Index) == CellError:
			problems = append(problems, "column "+col.Name+" contains the error value "+strings.TrimSpace(s.Raw(row, col.Index)))
		case isBlank(s, row, col.Index):
			problems = append(problems, "required column "+col.Name+" is empty")
		}
	}

	if layout.FlagIndex >= 0 && cellText(s, row, layout.FlagIndex) == SkipFlag {
		run.Skip.Add(row)
		res.countIgnored(line)
		return
	}

	if len(problems) > 0 {
		for _, p := range problems {
			res.AddError(line, "%s", p)
		}
		run.Skip.Add(row)
		return
	}
	res.countToBeLoaded()
}
