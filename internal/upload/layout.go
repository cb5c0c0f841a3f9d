package upload

// BoundColumn is a catalog column together with the header position it was
// found at in one particular sheet. Index is -1 when the header is absent.
type BoundColumn struct {
	ColumnSpec
	Index int
}

// Resolved reports whether the column was found in the header row.
func (b BoundColumn) Resolved() bool { return b.Index >= 0 }

// Layout is the result of resolving a catalog against a header row. It is
// computed per run and never shared between batches.
type Layout struct {
	Columns     []BoundColumn
	ActionIndex int
	FlagIndex   int
	// Duplicates lists catalog names that occur more than once in the
	// header, once per name, in order of their second occurrence.
	Duplicates []string
	// Missing lists required columns absent from the header.
	Missing []string
}

// Decorate resolves the header row of s against cfg. Matching is exact and
// case sensitive on the trimmed cell text, and the first matching cell wins.
// Calling it twice on the same sheet yields the same layout.
func Decorate(s Sheet, cfg *UploadTypeConfig) *Layout {
	return resolveHeader(HeaderRow(s), cfg)
}

func resolveHeader(header []string, cfg *UploadTypeConfig) *Layout {
	first := make(map[string]int, len(header))
	catalog := cfg.catalogNames()
	reported := make(map[string]bool)

	layout := &Layout{ActionIndex: -1, FlagIndex: -1}
	for i, name := range header {
		if name == "" || !catalog[name] {
			continue
		}
		if _, ok := first[name]; ok {
			if !reported[name] {
				reported[name] = true
				layout.Duplicates = append(layout.Duplicates, name)
			}
			continue
		}
		first[name] = i
	}

	lookup := func(name string) int {
		if i, ok := first[name]; ok {
			return i
		}
		return -1
	}

	layout.ActionIndex = lookup(cfg.ActionColumn())
	layout.FlagIndex = lookup(cfg.FlagColumn())
	for _, col := range cfg.Columns() {
		bound := BoundColumn{ColumnSpec: col, Index: lookup(col.Name)}
		if col.Required && !bound.Resolved() {
			layout.Missing = append(layout.Missing, col.Name)
		}
		layout.Columns = append(layout.Columns, bound)
	}
	return layout
}

// Resolved returns the columns found in the header, required first.
func (l *Layout) Resolved() []BoundColumn {
	out := make([]BoundColumn, 0, len(l.Columns))
	for _, c := range l.Columns {
		if c.Resolved() {
			out = append(out, c)
		}
	}
	return out
}

// Index returns the header position of a catalog column, or -1.
func (l *Layout) Index(name string) int {
	for _, c := range l.Columns {
		if c.Name == name {
			return c.Index
		}
	}
	return -1
}

// Broken reports whether the header cannot be processed row by row.
func (l *Layout) Broken() bool {
	return len(l.Duplicates) > 0 || len(l.Missing) > 0
}
