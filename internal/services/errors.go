package services

import "errors"

// Upload service errors
var (
	// The uploaded file is not a readable workbook or lacks the worksheet.
	ErrUnreadableWorkbook = errors.New("unreadable workbook")

	// The upload finished without an annotated copy on disk.
	ErrNoAnnotatedCopy = errors.New("no annotated copy for this upload")

	// History lookups for someone else's upload.
	ErrUploadNotFound = errors.New("upload not found")
)
