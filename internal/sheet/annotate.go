package sheet

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"massupload/internal/upload"
)

const (
	// ResultColumn is the header of the column Annotate adds to the upload sheet.
	ResultColumn = "UPLOAD_RESULT"
	// MessagesSheet lists every diagnostic of the batch, sheet level ones included.
	MessagesSheet = "UPLOAD_MESSAGES"
)

// Annotate writes the outcome of every row next to it and adds a worksheet
// listing all diagnostics. A result column left by an earlier annotation is
// reused and cleared.
func Annotate(w *Workbook, res *upload.Result) error {
	col := resultColumn(w)
	if err := w.SetText(0, col, ResultColumn); err != nil {
		return fmt.Errorf("failed to write result header: %w", err)
	}
	for row := 1; row <= w.LastRow(); row++ {
		if err := w.SetText(row, col, ""); err != nil {
			return err
		}
	}

	for _, st := range res.RowStatuses() {
		text := st.Outcome
		if len(st.Messages) > 0 {
			text += ": " + strings.Join(st.Messages, "; ")
		}
		if err := w.SetText(st.Row-1, col, text); err != nil {
			return fmt.Errorf("failed to annotate row %d: %w", st.Row, err)
		}
	}
	return writeMessages(w.file, res)
}

func resultColumn(w *Workbook) int {
	header := upload.HeaderRow(w)
	for i, name := range header {
		if name == ResultColumn {
			return i
		}
	}
	return len(header)
}

func writeMessages(f *excelize.File, res *upload.Result) error {
	if idx, _ := f.GetSheetIndex(MessagesSheet); idx >= 0 {
		if err := f.DeleteSheet(MessagesSheet); err != nil {
			return err
		}
	}
	if _, err := f.NewSheet(MessagesSheet); err != nil {
		return fmt.Errorf("failed to add %s: %w", MessagesSheet, err)
	}

	rows := [][]any{{"ROW", "SEVERITY", "MESSAGE"}}
	for _, d := range append(res.Errors(), res.Warnings()...) {
		var row any = ""
		if d.Row > 0 {
			row = d.Row
		}
		rows = append(rows, []any{row, strings.ToUpper(string(d.Severity)), d.Message})
	}
	for i, values := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(MessagesSheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write message %d: %w", i, err)
		}
	}
	return nil
}
