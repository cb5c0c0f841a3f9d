package upload

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// memSheet is an in-memory Sheet. Kinds are inferred from the cell text:
// "" is blank, "#...!" or "#N/A" is an error value, numbers are numeric.
type memSheet struct {
	rows [][]string
}

func newMemSheet(rows ...[]string) *memSheet { return &memSheet{rows: rows} }

func (m *memSheet) LastRow() int { return len(m.rows) - 1 }

func (m *memSheet) RowLength(row int) int {
	if row < 0 || row >= len(m.rows) {
		return 0
	}
	return len(m.rows[row])
}

func (m *memSheet) cell(row, col int) string {
	if col < 0 || col >= m.RowLength(row) {
		return ""
	}
	return m.rows[row][col]
}

func (m *memSheet) Kind(row, col int) CellKind {
	v := m.cell(row, col)
	switch {
	case v == "":
		return CellBlank
	case v == "#N/A" || (strings.HasPrefix(v, "#") && strings.HasSuffix(v, "!")):
		return CellError
	}
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return CellNumber
	}
	return CellText
}

func (m *memSheet) Text(row, col int) string { return m.cell(row, col) }
func (m *memSheet) Raw(row, col int) string  { return m.cell(row, col) }

// recordingProgress keeps every notification.
type recordingProgress struct {
	mu     sync.Mutex
	events []Progress
}

func (r *recordingProgress) Report(_ context.Context, p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, p)
}

func (r *recordingProgress) percents(phase Phase) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []float64
	for _, e := range r.events {
		if e.Phase == phase {
			out = append(out, e.Percent)
		}
	}
	return out
}

// testParam is the entity of the test catalog.
type testParam struct {
	Part  string
	Site  string
	Date  time.Time
	Value float64
}

func (p testParam) Fingerprint() string {
	return fmt.Sprintf("%s|%s|%s|%g", p.Part, p.Site, p.Date.Format(DateLayout), p.Value)
}

var testConfig = MustUploadTypeConfig(ConfigDefinition{
	Type: "TEST_PARAMETER",
	Name: "Test parameter",
	Required: []ColumnSpec{
		{Name: "PART_12NC", Type: Text},
		{Name: "SITE", Type: Text},
		{Name: "EFFECTIVE_DATE", Type: Date},
		{Name: "PARAMETER_VALUE", Type: Decimal},
	},
	Optional: []ColumnSpec{
		{Name: "LOT_SIZE", Type: Integer},
		{Name: "PRECISE_VALUE", Type: ExactDecimal},
		{Name: "COMMENT", Type: Text},
	},
	Prefilled: []ColumnSpec{{Name: "PART_DESCRIPTION"}},
})

var testHeader = []string{"UPLOAD_ACTION", "PART_12NC", "SITE", "EFFECTIVE_DATE", "PARAMETER_VALUE"}

// dateRuleTransformer accepts add and change dates from the batch start day
// on, and delete dates strictly after it.
func dateRuleTransformer(startedAt time.Time) Transformer {
	y, m, d := startedAt.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return TransformerFunc(func(rec *Record, f *Findings) Entity {
		date, _ := rec.Time("EFFECTIVE_DATE")
		value, _ := rec.Float("PARAMETER_VALUE")
		if rec.Action == Delete {
			if !date.After(today) {
				f.Errorf("effective date %s of a delete must be after today", date.Format(DateLayout))
			}
		} else if date.Before(today) {
			f.Errorf("effective date %s must not be in the past", date.Format(DateLayout))
		}
		if value > 100 {
			f.Warnf("parameter value %g is unusually high", value)
		}
		return testParam{Part: rec.Text("PART_12NC"), Site: rec.Text("SITE"), Date: date, Value: value}
	})
}

// memLoader is an in-memory store keyed by part and site.
type memLoader struct {
	mu      sync.Mutex
	rows    map[string]Entity
	failure map[int]error
	calls   []string
}

func newMemLoader() *memLoader {
	return &memLoader{rows: make(map[string]Entity), failure: make(map[int]error)}
}

func storeKey(rec *Record) string {
	p := rec.Entity.(testParam)
	return p.Part + "|" + p.Site
}

func (l *memLoader) record(op string, rec *Record) error {
	l.calls = append(l.calls, fmt.Sprintf("%s:%d", op, rec.Line()))
	return l.failure[rec.Line()]
}

func (l *memLoader) Add(_ context.Context, _ string, rec *Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.record("add", rec); err != nil {
		return err
	}
	key := storeKey(rec)
	if _, ok := l.rows[key]; ok {
		return ErrUniqueViolation
	}
	l.rows[key] = rec.Entity
	return nil
}

func (l *memLoader) Change(_ context.Context, _ string, rec *Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.record("change", rec); err != nil {
		return err
	}
	key := storeKey(rec)
	if _, ok := l.rows[key]; !ok {
		return ErrNotFound
	}
	l.rows[key] = rec.Entity
	return nil
}

func (l *memLoader) AddOrChange(_ context.Context, _ string, rec *Record) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.record("add_or_change", rec); err != nil {
		return false, err
	}
	key := storeKey(rec)
	_, exists := l.rows[key]
	l.rows[key] = rec.Entity
	return !exists, nil
}

func (l *memLoader) Delete(_ context.Context, _ string, rec *Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.record("delete", rec); err != nil {
		return err
	}
	key := storeKey(rec)
	if _, ok := l.rows[key]; !ok {
		return ErrNotFound
	}
	delete(l.rows, key)
	return nil
}

var testStart = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

func newTestPipeline(loader Loader) *Pipeline {
	registry, err := NewRegistry(Definition{
		Config:         testConfig,
		NewTransformer: dateRuleTransformer,
		Loader:         loader,
	})
	if err != nil {
		panic(err)
	}
	return NewPipeline(registry, WithClock(func() time.Time { return testStart }))
}

func newTestRun() *Run {
	return NewRun(testConfig, "tester", WithStartTime(testStart))
}
