// Package sheet adapts excelize workbooks to the upload pipeline and writes
// the files handed back to users: annotated copies and blank templates.
package sheet

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"massupload/internal/upload"
)

// ErrSheetNotFound is returned when the requested worksheet does not exist.
var ErrSheetNotFound = errors.New("worksheet not found")

// Workbook is an open spreadsheet whose upload worksheet is read into memory.
// It implements upload.Sheet.
type Workbook struct {
	file  *excelize.File
	sheet string
	text  [][]string
	raw   [][]string
}

var _ upload.Sheet = (*Workbook)(nil)

// Open reads the workbook at path. An empty sheetName selects the first worksheet.
func Open(path, sheetName string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	return load(f, sheetName)
}

// Read reads a workbook from r. An empty sheetName selects the first worksheet.
func Read(r io.Reader, sheetName string) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook: %w", err)
	}
	return load(f, sheetName)
}

// FromFile wraps an already open excelize file.
func FromFile(f *excelize.File, sheetName string) (*Workbook, error) {
	return load(f, sheetName)
}

func load(f *excelize.File, sheetName string) (*Workbook, error) {
	if sheetName == "" {
		list := f.GetSheetList()
		if len(list) == 0 {
			f.Close()
			return nil, ErrSheetNotFound
		}
		sheetName = list[0]
	}
	if idx, err := f.GetSheetIndex(sheetName); err != nil || idx < 0 {
		f.Close()
		return nil, fmt.Errorf("%w: %s", ErrSheetNotFound, sheetName)
	}

	text, err := f.GetRows(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read rows of %s: %w", sheetName, err)
	}
	raw, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read raw rows of %s: %w", sheetName, err)
	}
	return &Workbook{file: f, sheet: sheetName, text: text, raw: raw}, nil
}

// SheetName returns the name of the upload worksheet.
func (w *Workbook) SheetName() string { return w.sheet }

// File exposes the underlying excelize file.
func (w *Workbook) File() *excelize.File { return w.file }

func (w *Workbook) LastRow() int { return len(w.text) - 1 }

func (w *Workbook) RowLength(row int) int {
	if row < 0 || row >= len(w.text) {
		return 0
	}
	return max(len(w.text[row]), rowLen(w.raw, row))
}

func rowLen(rows [][]string, row int) int {
	if row >= len(rows) {
		return 0
	}
	return len(rows[row])
}

func cellOf(rows [][]string, row, col int) string {
	if row < 0 || row >= len(rows) || col < 0 || col >= len(rows[row]) {
		return ""
	}
	return rows[row][col]
}

func (w *Workbook) Text(row, col int) string { return cellOf(w.text, row, col) }

func (w *Workbook) Raw(row, col int) string { return cellOf(w.raw, row, col) }

// Kind maps the stored cell type. Numbers are written without a type
// attribute, so an untyped cell holding a number is numeric.
func (w *Workbook) Kind(row, col int) upload.CellKind {
	raw := w.Raw(row, col)
	if raw == "" {
		return upload.CellBlank
	}
	name, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return upload.CellText
	}
	typ, err := w.file.GetCellType(w.sheet, name)
	if err != nil {
		return upload.CellText
	}

	switch typ {
	case excelize.CellTypeBool:
		return upload.CellBool
	case excelize.CellTypeDate:
		return upload.CellDate
	case excelize.CellTypeError:
		return upload.CellError
	case excelize.CellTypeNumber:
		return upload.CellNumber
	case excelize.CellTypeUnset:
		if _, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			return upload.CellNumber
		}
	}
	return upload.CellText
}

// SetText writes a string cell on the upload worksheet.
func (w *Workbook) SetText(row, col int, value string) error {
	name, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return err
	}
	return w.file.SetCellStr(w.sheet, name, value)
}

// Write serialises the workbook.
func (w *Workbook) Write(out io.Writer) error {
	return w.file.Write(out)
}

// SaveAs writes the workbook to path.
func (w *Workbook) SaveAs(path string) error {
	return w.file.SaveAs(path)
}

// Close releases the workbook.
func (w *Workbook) Close() error {
	return w.file.Close()
}
