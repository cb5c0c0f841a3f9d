package upload

import (
	"fmt"
	"sort"
)

// Severity classifies a diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic is one message produced while processing a batch. Row is the
// 1-based sheet row number shown to users; 0 marks a sheet level message.
type Diagnostic struct {
	Row      int      `json:"row,omitempty"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Counts are the running counters of a batch.
type Counts struct {
	Success           int `json:"successCount"`
	Insert            int `json:"insertCount"`
	Update            int `json:"updateCount"`
	Delete            int `json:"deleteCount"`
	Ignore            int `json:"ignoreCount"`
	Duplicate         int `json:"duplicateCount"`
	Error             int `json:"errorCount"`
	Warning           int `json:"warningCount"`
	RecordsToBeLoaded int `json:"recordsToBeLoaded"`
}

// Summary is the rendered form of a Result.
type Summary struct {
	Counts
	CriticalErrors bool         `json:"criticalErrors"`
	Errors         []Diagnostic `json:"errors"`
	Warnings       []Diagnostic `json:"warnings"`
}

// Result accumulates the outcome of one batch. It only ever grows: counters
// go up, diagnostics are appended and the critical flag cannot be cleared.
// A Result belongs to a single run and is not safe for concurrent use.
type Result struct {
	counts   Counts
	critical bool
	errors   []Diagnostic
	warnings []Diagnostic
	ignored  map[int]bool
	applied  map[int]RowAction
}

// NewResult returns an empty result.
func NewResult() *Result {
	return &Result{
		ignored: make(map[int]bool),
		applied: make(map[int]RowAction),
	}
}

// AddError records an error against a 1-based row, or the sheet when row is 0.
func (r *Result) AddError(row int, format string, args ...any) {
	r.errors = append(r.errors, Diagnostic{Row: row, Severity: SeverityError, Message: message(row, format, args...)})
	r.counts.Error++
}

// AddWarning records a warning against a 1-based row.
func (r *Result) AddWarning(row int, format string, args ...any) {
	r.warnings = append(r.warnings, Diagnostic{Row: row, Severity: SeverityWarning, Message: message(row, format, args...)})
	r.counts.Warning++
}

// ActionError records that applying action to a row failed with errorText.
func (r *Result) ActionError(action RowAction, row int, errorText string) {
	r.AddError(row, "could not %s the record: %s", action.Verb(), errorText)
}

// NotFoundError records that the record a row refers to does not exist.
func (r *Result) NotFoundError(action RowAction, row int) {
	r.AddError(row, "could not %s the record: it does not exist", action.Verb())
}

func message(row int, format string, args ...any) string {
	text := fmt.Sprintf(format, args...)
	if row <= 0 {
		return text
	}
	return fmt.Sprintf("Row %d: %s", row, text)
}

// SetCritical marks the batch as structurally rejected.
func (r *Result) SetCritical() { r.critical = true }

// Critical reports whether the batch was structurally rejected.
func (r *Result) Critical() bool { return r.critical }

// Counts returns a copy of the counters.
func (r *Result) Counts() Counts { return r.counts }

func (r *Result) countIgnored(row int) {
	r.counts.Ignore++
	r.ignored[row] = true
}

func (r *Result) countToBeLoaded() { r.counts.RecordsToBeLoaded++ }

func (r *Result) countDuplicate() { r.counts.Duplicate++ }

// CountApplied records a successful store mutation for a 1-based row.
// inserted distinguishes the two outcomes of AddOrChange.
func (r *Result) CountApplied(action RowAction, row int, inserted bool) {
	switch {
	case action == Delete:
		r.counts.Delete++
	case action == AddOnly, action == AddOrChange && inserted:
		r.counts.Insert++
	default:
		r.counts.Update++
	}
	r.counts.Success++
	r.applied[row] = action
}

// Errors returns the error diagnostics in the order they were recorded.
func (r *Result) Errors() []Diagnostic { return append([]Diagnostic(nil), r.errors...) }

// Warnings returns the warning diagnostics in the order they were recorded.
func (r *Result) Warnings() []Diagnostic { return append([]Diagnostic(nil), r.warnings...) }

// ErrorMessages and ErrorRows are the parallel list view of Errors.
func (r *Result) ErrorMessages() []string { return messagesOf(r.errors) }
func (r *Result) ErrorRows() []int        { return rowsOf(r.errors) }

// WarningMessages and WarningRows are the parallel list view of Warnings.
func (r *Result) WarningMessages() []string { return messagesOf(r.warnings) }
func (r *Result) WarningRows() []int        { return rowsOf(r.warnings) }

func messagesOf(ds []Diagnostic) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Message
	}
	return out
}

func rowsOf(ds []Diagnostic) []int {
	out := make([]int, len(ds))
	for i, d := range ds {
		out[i] = d.Row
	}
	return out
}

// Summary returns a snapshot suitable for rendering.
func (r *Result) Summary() Summary {
	return Summary{
		Counts:         r.counts,
		CriticalErrors: r.critical,
		Errors:         r.Errors(),
		Warnings:       r.Warnings(),
	}
}

// RowStatus is the outcome of one sheet row, used to annotate a copy of the
// uploaded sheet.
type RowStatus struct {
	Row      int
	Outcome  string
	Messages []string
}

const (
	OutcomeError   = "ERROR"
	OutcomeIgnored = "IGNORED"
	OutcomeWarning = "WARNING"
	OutcomeOK      = "OK"
)

// RowStatuses returns the outcome of every row that produced a diagnostic or
// a counter change, ordered by row.
func (r *Result) RowStatuses() []RowStatus {
	byRow := make(map[int]*RowStatus)
	get := func(row int) *RowStatus {
		st, ok := byRow[row]
		if !ok {
			st = &RowStatus{Row: row}
			byRow[row] = st
		}
		return st
	}
	for _, d := range r.errors {
		if d.Row > 0 {
			st := get(d.Row)
			st.Outcome = OutcomeError
			st.Messages = append(st.Messages, d.Message)
		}
	}
	for _, d := range r.warnings {
		if d.Row > 0 {
			st := get(d.Row)
			if st.Outcome == "" {
				st.Outcome = OutcomeWarning
			}
			st.Messages = append(st.Messages, d.Message)
		}
	}
	for row := range r.ignored {
		if st := get(row); st.Outcome == "" {
			st.Outcome = OutcomeIgnored
		}
	}
	for row, action := range r.applied {
		st := get(row)
		if st.Outcome == "" {
			st.Outcome = OutcomeOK
		}
		if st.Outcome != OutcomeError {
			st.Messages = append([]string{action.String()}, st.Messages...)
		}
	}

	out := make([]RowStatus, 0, len(byRow))
	for _, st := range byRow {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Row < out[j].Row })
	return out
}
