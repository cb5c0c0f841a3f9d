package sheet

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"massupload/internal/upload"
)

// BuildTemplate returns an empty workbook whose only worksheet carries the
// headers of an upload type.
func BuildTemplate(cfg *upload.UploadTypeConfig) (*excelize.File, error) {
	f := excelize.NewFile()
	name := string(cfg.Type())
	if err := f.SetSheetName("Sheet1", name); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name template sheet: %w", err)
	}

	headers := cfg.Headers()
	if err := f.SetSheetRow(name, "A1", &headers); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write template headers: %w", err)
	}
	last, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := f.SetColWidth(name, "A", last, 20); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// WriteTemplate writes the template of cfg to out.
func WriteTemplate(out io.Writer, cfg *upload.UploadTypeConfig) error {
	f, err := BuildTemplate(cfg)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(out)
}
