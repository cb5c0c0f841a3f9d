package upload

import "sort"

// SkipSet holds the sheet row indexes later phases must leave alone. Rows
// are added, never removed.
type SkipSet struct {
	rows map[int]struct{}
}

// NewSkipSet returns an empty set.
func NewSkipSet() *SkipSet {
	return &SkipSet{rows: make(map[int]struct{})}
}

// Add marks a row index as skipped.
func (s *SkipSet) Add(row int) { s.rows[row] = struct{}{} }

// Contains reports whether a row index was skipped.
func (s *SkipSet) Contains(row int) bool {
	_, ok := s.rows[row]
	return ok
}

// Len returns the number of skipped rows.
func (s *SkipSet) Len() int { return len(s.rows) }

// Rows returns the skipped row indexes in ascending order.
func (s *SkipSet) Rows() []int {
	out := make([]int, 0, len(s.rows))
	for row := range s.rows {
		out = append(out, row)
	}
	sort.Ints(out)
	return out
}
