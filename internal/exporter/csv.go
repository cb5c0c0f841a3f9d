package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"massupload/internal/store"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// HistoryHeaders is the header row of a history export.
var HistoryHeaders = []string{
	"upload_id", "upload_type", "user_id", "file_name", "status",
	"started_at", "finished_at",
	"success", "inserted", "updated", "deleted", "ignored", "duplicates",
	"errors", "warnings", "records_to_be_loaded", "critical_errors",
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	BOMPrefix bool
}

// WriteCSV writes the header row followed by every record.
func WriteCSV(w io.Writer, options WriteOptions) error {
	if options.BOMPrefix {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)
	if len(options.Headers) > 0 {
		if err := writer.Write(options.Headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}
	for i, record := range options.Records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// HistoryRecords converts history entries into CSV rows matching
// HistoryHeaders.
func HistoryRecords(entries []store.UploadLog) [][]string {
	records := make([][]string, 0, len(entries))
	for _, e := range entries {
		finished := ""
		if e.FinishedAt.Valid {
			finished = e.FinishedAt.Time.UTC().Format(time.RFC3339)
		}
		records = append(records, []string{
			e.ID, e.UploadType, e.UserID, e.FileName, e.Status,
			e.StartedAt.UTC().Format(time.RFC3339), finished,
			strconv.Itoa(e.SuccessCount),
			strconv.Itoa(e.InsertCount),
			strconv.Itoa(e.UpdateCount),
			strconv.Itoa(e.DeleteCount),
			strconv.Itoa(e.IgnoreCount),
			strconv.Itoa(e.DuplicateCount),
			strconv.Itoa(e.ErrorCount),
			strconv.Itoa(e.WarningCount),
			strconv.Itoa(e.RecordsToBeLoaded),
			strconv.FormatBool(e.CriticalErrors),
		})
	}
	return records
}

// WriteHistoryCSV writes entries as a CSV document with a BOM.
func WriteHistoryCSV(w io.Writer, entries []store.UploadLog) error {
	return WriteCSV(w, WriteOptions{
		Headers:   HistoryHeaders,
		Records:   HistoryRecords(entries),
		BOMPrefix: true,
	})
}
