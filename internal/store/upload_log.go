package store

import (
	"context"
	"database/sql"
	"time"
)

// Upload statuses recorded in the log.
const (
	UploadStatusRunning   = "running"
	UploadStatusCompleted = "completed"
	UploadStatusRejected  = "rejected"
	UploadStatusFailed    = "failed"
)

// UploadLog is the history entry of one upload.
type UploadLog struct {
	ID                string         `db:"id" json:"id"`
	UploadType        string         `db:"upload_type" json:"uploadType"`
	UserID            string         `db:"user_id" json:"userId"`
	FileName          string         `db:"file_name" json:"fileName"`
	Status            string         `db:"status" json:"status"`
	StartedAt         time.Time      `db:"started_at" json:"startedAt"`
	FinishedAt        sql.NullTime   `db:"finished_at" json:"-"`
	SuccessCount      int            `db:"success_count" json:"successCount"`
	InsertCount       int            `db:"insert_count" json:"insertCount"`
	UpdateCount       int            `db:"update_count" json:"updateCount"`
	DeleteCount       int            `db:"delete_count" json:"deleteCount"`
	IgnoreCount       int            `db:"ignore_count" json:"ignoreCount"`
	DuplicateCount    int            `db:"duplicate_count" json:"duplicateCount"`
	ErrorCount        int            `db:"error_count" json:"errorCount"`
	WarningCount      int            `db:"warning_count" json:"warningCount"`
	RecordsToBeLoaded int            `db:"records_to_be_loaded" json:"recordsToBeLoaded"`
	CriticalErrors    bool           `db:"critical_errors" json:"criticalErrors"`
	AnnotatedPath     sql.NullString `db:"annotated_path" json:"-"`
}

// UploadLogRepository records the history of uploads.
type UploadLogRepository struct {
	db *DB
}

func NewUploadLogRepository(db *DB) *UploadLogRepository {
	return &UploadLogRepository{db: db}
}

// Start records an upload that has begun.
func (r *UploadLogRepository) Start(ctx context.Context, entry UploadLog) error {
	if entry.Status == "" {
		entry.Status = UploadStatusRunning
	}
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO upload_log (id, upload_type, user_id, file_name, status, started_at)
		VALUES (:id, :upload_type, :user_id, :file_name, :status, :started_at)`, entry)
	return classify(err)
}

// Finish stores the final status and counters of an upload.
func (r *UploadLogRepository) Finish(ctx context.Context, entry UploadLog) error {
	return affected(r.db.NamedExecContext(ctx, `
		UPDATE upload_log
		SET status = :status, finished_at = :finished_at,
		    success_count = :success_count, insert_count = :insert_count, update_count = :update_count,
		    delete_count = :delete_count, ignore_count = :ignore_count, duplicate_count = :duplicate_count,
		    error_count = :error_count, warning_count = :warning_count,
		    records_to_be_loaded = :records_to_be_loaded, critical_errors = :critical_errors,
		    annotated_path = :annotated_path
		WHERE id = :id`, entry))
}

func (r *UploadLogRepository) Get(ctx context.Context, id string) (UploadLog, error) {
	var entry UploadLog
	err := r.db.GetContext(ctx, &entry, r.db.Rebind(`SELECT * FROM upload_log WHERE id = ?`), id)
	return entry, classify(err)
}

// ListByUser returns the most recent uploads of a user, newest first.
func (r *UploadLogRepository) ListByUser(ctx context.Context, userID string, limit int) ([]UploadLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []UploadLog
	err := r.db.SelectContext(ctx, &entries, r.db.Rebind(`
		SELECT * FROM upload_log WHERE user_id = ? ORDER BY started_at DESC LIMIT ?`), userID, limit)
	return entries, err
}
