package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"massupload/internal/config"
	"massupload/internal/infrastructure"
	"massupload/internal/operations"
	"massupload/internal/sheet"
	"massupload/internal/store"
	"massupload/internal/upload"
)

// UploadLog is the history the service writes to.
type UploadLog interface {
	Start(ctx context.Context, entry store.UploadLog) error
	Finish(ctx context.Context, entry store.UploadLog) error
	Get(ctx context.Context, id string) (store.UploadLog, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]store.UploadLog, error)
}

// Submission is one uploaded file.
type Submission struct {
	Type     upload.UploadType
	User     string
	Filename string
	Data     []byte
	TraceID  string
}

// Outcome is what a finished upload reports back.
type Outcome struct {
	UploadID  string         `json:"uploadId"`
	Type      string         `json:"uploadType"`
	User      string         `json:"user"`
	Filename  string         `json:"fileName,omitempty"`
	Status    string         `json:"status"`
	Annotated bool           `json:"annotatedAvailable"`
	Summary   upload.Summary `json:"summary"`
}

// UploadServiceDeps are the collaborators of an UploadService. Queue,
// Status, Progress and Metrics are optional.
type UploadServiceDeps struct {
	Pipeline *upload.Pipeline
	Log      UploadLog
	Queue    *operations.JobQueue
	Status   *operations.StatusBroadcaster
	Progress upload.ProgressReporter
	Metrics  *infrastructure.UploadMetrics
	Config   config.UploadConfig
	Logger   *slog.Logger
}

// UploadService runs upload batches.
type UploadService struct {
	pipeline *upload.Pipeline
	log      UploadLog
	queue    *operations.JobQueue
	status   *operations.StatusBroadcaster
	progress upload.ProgressReporter
	metrics  *infrastructure.UploadMetrics
	cfg      config.UploadConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewUploadService creates the service.
func NewUploadService(deps UploadServiceDeps) *UploadService {
	logger := deps.Logger
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &UploadService{
		pipeline: deps.Pipeline,
		log:      deps.Log,
		queue:    deps.Queue,
		status:   deps.Status,
		progress: deps.Progress,
		metrics:  deps.Metrics,
		cfg:      deps.Config,
		logger:   logger.With(slog.String("component", "upload_service")),
		now:      time.Now,
	}
}

// Types lists the configuration of every registered upload type.
func (s *UploadService) Types() []*upload.UploadTypeConfig {
	return s.pipeline.Registry().Configs()
}

// Template writes a blank workbook for typ.
func (s *UploadService) Template(typ upload.UploadType, w io.Writer) error {
	def, err := s.pipeline.Registry().Lookup(typ)
	if err != nil {
		return err
	}
	return sheet.WriteTemplate(w, def.Config)
}

// Process runs a batch inline and returns its outcome. Only an unknown type,
// an unreadable workbook or a history write failure are errors; row problems
// are in the outcome's summary.
func (s *UploadService) Process(ctx context.Context, sub Submission) (*Outcome, error) {
	if _, err := s.pipeline.Registry().Lookup(sub.Type); err != nil {
		return nil, err
	}
	ctx, sub.TraceID = s.traceContext(ctx, sub.TraceID)
	id := uuid.New()
	s.track(ctx, id, sub)
	return s.process(ctx, id, sub)
}

// traceContext returns ctx carrying the submission's trace id, or the id
// ctx already has, or a new one.
func (s *UploadService) traceContext(ctx context.Context, traceID string) (context.Context, string) {
	if traceID != "" {
		return infrastructure.WithTraceID(ctx, traceID), traceID
	}
	return infrastructure.EnsureTraceID(ctx)
}

// Submit queues a batch and returns its job. The job id is the upload id.
func (s *UploadService) Submit(ctx context.Context, sub Submission) (*operations.Job, error) {
	if s.queue == nil {
		return nil, errors.New("asynchronous uploads are not enabled")
	}
	if _, err := s.pipeline.Registry().Lookup(sub.Type); err != nil {
		return nil, err
	}
	ctx, sub.TraceID = s.traceContext(ctx, sub.TraceID)

	id := uuid.New()
	job := &operations.Job{
		ID:       id.String(),
		Type:     string(sub.Type),
		User:     sub.User,
		Filename: sub.Filename,
		TraceID:  sub.TraceID,
	}
	s.track(ctx, id, sub)
	err := s.queue.Enqueue(job, func(ctx context.Context) (any, error) {
		return s.process(ctx, id, sub)
	})
	if err != nil {
		if s.status != nil {
			s.status.Fail(ctx, id.String(), err)
		}
		return nil, err
	}
	return s.queue.GetJob(job.ID)
}

// Job returns a queued upload.
func (s *UploadService) Job(id string) (*operations.Job, error) {
	if s.queue == nil {
		return nil, operations.ErrJobNotFound
	}
	return s.queue.GetJob(id)
}

// Status returns the live snapshot of an upload.
func (s *UploadService) Status(id string) (operations.UploadSnapshot, bool) {
	if s.status == nil {
		return operations.UploadSnapshot{}, false
	}
	return s.status.Snapshot(id)
}

// History returns the most recent uploads of user.
func (s *UploadService) History(ctx context.Context, user string, limit int) ([]store.UploadLog, error) {
	if limit <= 0 {
		limit = s.cfg.HistoryLimit
	}
	return s.log.ListByUser(ctx, user, limit)
}

// AnnotatedPath returns the file holding the annotated copy of an upload
// made by user.
func (s *UploadService) AnnotatedPath(ctx context.Context, id, user string) (string, error) {
	entry, err := s.log.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && entry.UserID != user) {
		return "", ErrUploadNotFound
	}
	if err != nil {
		return "", err
	}
	if !entry.AnnotatedPath.Valid {
		return "", ErrNoAnnotatedCopy
	}
	if _, err := os.Stat(entry.AnnotatedPath.String); err != nil {
		return "", ErrNoAnnotatedCopy
	}
	return entry.AnnotatedPath.String, nil
}

func (s *UploadService) track(ctx context.Context, id uuid.UUID, sub Submission) {
	if s.status != nil {
		s.status.Track(ctx, id.String(), string(sub.Type), sub.User)
	}
}

func (s *UploadService) process(ctx context.Context, id uuid.UUID, sub Submission) (*Outcome, error) {
	started := s.now()
	logger := s.logger.With(
		slog.String("upload_id", id.String()),
		slog.String("type", string(sub.Type)),
		slog.String("user", sub.User))

	entry := store.UploadLog{
		ID:         id.String(),
		UploadType: string(sub.Type),
		UserID:     sub.User,
		FileName:   sub.Filename,
		Status:     store.UploadStatusRunning,
		StartedAt:  started.UTC(),
	}
	if err := s.log.Start(ctx, entry); err != nil {
		s.fail(ctx, id, sub.Type, err, started)
		return nil, fmt.Errorf("failed to record upload start: %w", err)
	}

	wb, err := sheet.Read(bytes.NewReader(sub.Data), s.cfg.SheetName)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrUnreadableWorkbook, err)
		logger.WarnContext(ctx, "workbook could not be read", slog.String("error", err.Error()))
		entry.Status = store.UploadStatusFailed
		entry.FinishedAt = sql.NullTime{Time: s.now().UTC(), Valid: true}
		if ferr := s.log.Finish(ctx, entry); ferr != nil {
			logger.ErrorContext(ctx, "failed to record upload failure", slog.String("error", ferr.Error()))
		}
		s.fail(ctx, id, sub.Type, err, started)
		return nil, err
	}
	defer wb.Close()

	finished := s.metrics.BatchStarted(ctx, sub.Type)
	run, err := s.pipeline.Run(ctx, wb, upload.Request{
		Type:     sub.Type,
		User:     sub.User,
		ID:       id,
		Progress: s.progress,
	})
	finished()
	if err != nil {
		s.fail(ctx, id, sub.Type, err, started)
		return nil, err
	}

	summary := run.Result.Summary()
	status := store.UploadStatusCompleted
	if summary.CriticalErrors {
		status = store.UploadStatusRejected
	}

	annotated, err := s.writeAnnotated(wb, run)
	if err != nil {
		logger.WarnContext(ctx, "annotated copy not written", slog.String("error", err.Error()))
	}

	entry = finishedEntry(entry, status, summary, s.now())
	if annotated != "" {
		entry.AnnotatedPath = sql.NullString{String: annotated, Valid: true}
	}
	if err := s.log.Finish(ctx, entry); err != nil {
		logger.ErrorContext(ctx, "failed to record upload outcome", slog.String("error", err.Error()))
	}

	s.metrics.RecordBatch(ctx, sub.Type, status, summary.Counts, s.now().Sub(started))
	if s.status != nil {
		s.status.Complete(ctx, id.String(), summary)
	}

	logger.InfoContext(ctx, "upload processed",
		slog.String("status", status),
		slog.Int("success", summary.Success),
		slog.Int("errors", summary.Error))

	return &Outcome{
		UploadID:  id.String(),
		Type:      string(sub.Type),
		User:      sub.User,
		Filename:  sub.Filename,
		Status:    status,
		Annotated: annotated != "",
		Summary:   summary,
	}, nil
}

func (s *UploadService) writeAnnotated(wb *sheet.Workbook, run *upload.Run) (string, error) {
	if s.cfg.ResultsDir == "" {
		return "", nil
	}
	if err := os.MkdirAll(s.cfg.ResultsDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create results directory: %w", err)
	}
	if err := sheet.Annotate(wb, run.Result); err != nil {
		return "", err
	}
	path := filepath.Join(s.cfg.ResultsDir, run.ID.String()+".xlsx")
	if err := wb.SaveAs(path); err != nil {
		return "", err
	}
	return path, nil
}

func (s *UploadService) fail(ctx context.Context, id uuid.UUID, typ upload.UploadType, err error, started time.Time) {
	s.metrics.RecordBatch(ctx, typ, store.UploadStatusFailed, upload.Counts{}, s.now().Sub(started))
	if s.status != nil {
		s.status.Fail(ctx, id.String(), err)
	}
}

func finishedEntry(entry store.UploadLog, status string, summary upload.Summary, at time.Time) store.UploadLog {
	entry.Status = status
	entry.FinishedAt = sql.NullTime{Time: at.UTC(), Valid: true}
	entry.SuccessCount = summary.Success
	entry.InsertCount = summary.Insert
	entry.UpdateCount = summary.Update
	entry.DeleteCount = summary.Delete
	entry.IgnoreCount = summary.Ignore
	entry.DuplicateCount = summary.Duplicate
	entry.ErrorCount = summary.Error
	entry.WarningCount = summary.Warning
	entry.RecordsToBeLoaded = summary.RecordsToBeLoaded
	entry.CriticalErrors = summary.CriticalErrors
	return entry
}
