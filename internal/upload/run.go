package upload

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Run is the state of one batch. Every phase receives it explicitly; it is
// created per upload and dropped when the upload completes.
type Run struct {
	ID        uuid.UUID
	Type      UploadType
	User      string
	StartedAt time.Time
	Config    *UploadTypeConfig
	// Layout is set by Verify.
	Layout *Layout
	Result *Result
	Skip   *SkipSet

	progress ProgressReporter
	logger   *slog.Logger
}

// RunOption customises a Run.
type RunOption func(*Run)

// WithRunID sets the upload id instead of generating one.
func WithRunID(id uuid.UUID) RunOption {
	return func(r *Run) { r.ID = id }
}

// WithProgress sets the reporter notified during extract, transform and load.
func WithProgress(p ProgressReporter) RunOption {
	return func(r *Run) {
		if p != nil {
			r.progress = p
		}
	}
}

// WithRunLogger sets the logger diagnostics are traced to.
func WithRunLogger(l *slog.Logger) RunOption {
	return func(r *Run) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithStartTime fixes the instant the batch started. Business rules compare
// dates against it.
func WithStartTime(t time.Time) RunOption {
	return func(r *Run) { r.StartedAt = t }
}

// NewRun prepares the state of a batch of cfg's type started by user.
func NewRun(cfg *UploadTypeConfig, user string, opts ...RunOption) *Run {
	r := &Run{
		ID:        uuid.New(),
		Type:      cfg.Type(),
		User:      user,
		StartedAt: time.Now(),
		Config:    cfg,
		Result:    NewResult(),
		Skip:      NewSkipSet(),
		progress:  nopProgress{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(
		slog.String("upload_id", r.ID.String()),
		slog.String("upload_type", string(r.Type)),
		slog.String("user", user),
	)
	return r
}

// Logger returns the run scoped logger.
func (r *Run) Logger() *slog.Logger { return r.logger }
