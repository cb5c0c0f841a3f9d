package upload

import "strings"

// CellKind is the stored type of a cell as reported by the workbook.
type CellKind int

const (
	CellBlank CellKind = iota
	CellText
	CellNumber
	CellBool
	CellDate
	CellError
)

// Sheet is the read side of a worksheet as the pipeline sees it. Row and
// column indexes are zero based; row 0 is the header row.
type Sheet interface {
	// LastRow returns the index of the last populated row, or -1 for an empty sheet.
	LastRow() int
	// RowLength returns the number of cells stored for a row.
	RowLength(row int) int
	// Kind returns the stored type of a cell.
	Kind(row, col int) CellKind
	// Text returns the cell as displayed, with number formats applied.
	Text(row, col int) string
	// Raw returns the stored cell value without formatting.
	Raw(row, col int) string
}

func isBlank(s Sheet, row, col int) bool {
	if col < 0 || col >= s.RowLength(row) {
		return true
	}
	if s.Kind(row, col) == CellBlank {
		return true
	}
	return strings.TrimSpace(s.Text(row, col)) == ""
}

func rowIsEmpty(s Sheet, row int) bool {
	for col := 0; col < s.RowLength(row); col++ {
		if !isBlank(s, row, col) {
			return false
		}
	}
	return true
}

func cellText(s Sheet, row, col int) string {
	if col < 0 || col >= s.RowLength(row) {
		return ""
	}
	return strings.TrimSpace(s.Text(row, col))
}

// HeaderRow returns the trimmed header cells of a sheet.
func HeaderRow(s Sheet) []string {
	if s.LastRow() < 0 {
		return nil
	}
	header := make([]string, s.RowLength(0))
	for col := range header {
		header[col] = cellText(s, 0, col)
	}
	return header
}
