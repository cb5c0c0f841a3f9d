// Package uploadtest builds spreadsheets for tests of upload types and the
// layers above them.
package uploadtest

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"massupload/internal/sheet"
	"massupload/internal/upload"
)

// XLSX returns the bytes of a one-sheet workbook holding rows. Nil cells are
// left empty; other values are written with their native cell type.
func XLSX(t testing.TB, rows ...[]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for r, row := range rows {
		for c, v := range row {
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue("Sheet1", cell, v))
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

// Workbook opens the workbook XLSX builds.
func Workbook(t testing.TB, rows ...[]any) *sheet.Workbook {
	t.Helper()
	wb, err := sheet.Read(bytes.NewReader(XLSX(t, rows...)), "")
	require.NoError(t, err)
	t.Cleanup(func() { wb.Close() })
	return wb
}

// Row is shorthand for a row of cells.
func Row(cells ...any) []any { return cells }

// Progress records every notification it receives.
type Progress struct {
	mu     sync.Mutex
	Events []upload.Progress
}

func (p *Progress) Report(_ context.Context, ev upload.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, ev)
}

// Last returns the most recent notification.
func (p *Progress) Last() (upload.Progress, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Events) == 0 {
		return upload.Progress{}, false
	}
	return p.Events[len(p.Events)-1], true
}
