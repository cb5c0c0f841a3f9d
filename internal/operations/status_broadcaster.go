package operations

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"massupload/internal/infrastructure"
	"massupload/internal/upload"
	"massupload/internal/websocket"
)

// Publisher delivers a message to every connection of one user.
type Publisher interface {
	SendToUser(ctx context.Context, user, msgType string, data any) int
}

// Upload statuses.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// UploadSnapshot is the complete state of one upload as the user sees it.
type UploadSnapshot struct {
	UploadID    string          `json:"upload_id"`
	Type        string          `json:"type"`
	User        string          `json:"user"`
	Status      string          `json:"status"`
	Phase       upload.Phase    `json:"phase,omitempty"`
	Percent     float64         `json:"percent"`
	Message     string          `json:"message,omitempty"`
	Error       string          `json:"error,omitempty"`
	Summary     *upload.Summary `json:"summary,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// StatusBroadcaster is the single authority for upload status. It keeps the
// latest snapshot of every upload and pushes changes to its user.
type StatusBroadcaster struct {
	mu        sync.RWMutex
	snapshots map[string]*UploadSnapshot
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewStatusBroadcaster creates a broadcaster. publisher may be nil, in which
// case snapshots are only kept.
func NewStatusBroadcaster(publisher Publisher, logger *slog.Logger) *StatusBroadcaster {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &StatusBroadcaster{
		snapshots: make(map[string]*UploadSnapshot),
		publisher: publisher,
		logger:    logger.With(slog.String("component", "status_broadcaster")),
		now:       time.Now,
	}
}

// update applies fn to the snapshot of uploadID under the lock and returns a
// copy to publish. It returns false when the upload is unknown.
func (sb *StatusBroadcaster) update(uploadID string, fn func(*UploadSnapshot) bool) (UploadSnapshot, bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	s, ok := sb.snapshots[uploadID]
	if !ok || !fn(s) {
		return UploadSnapshot{}, false
	}
	s.UpdatedAt = sb.now()
	return *s, true
}

// Track registers a new upload as pending and announces it.
func (sb *StatusBroadcaster) Track(ctx context.Context, uploadID, typ, user string) {
	now := sb.now()
	s := &UploadSnapshot{
		UploadID:  uploadID,
		Type:      typ,
		User:      user,
		Status:    StatusPending,
		Message:   "Upload queued",
		StartedAt: now,
		UpdatedAt: now,
	}
	sb.mu.Lock()
	sb.snapshots[uploadID] = s
	snapshot := *s
	sb.mu.Unlock()

	sb.publish(ctx, websocket.TypeUploadStatus, snapshot)
}

// Progress records a pipeline notification. Percentages never go backwards.
func (sb *StatusBroadcaster) Progress(ctx context.Context, p upload.Progress) {
	snapshot, ok := sb.update(p.UploadID, func(s *UploadSnapshot) bool {
		if s.Status == StatusCompleted || s.Status == StatusFailed {
			return false
		}
		s.Status = StatusRunning
		s.Phase = p.Phase
		if p.Percent > s.Percent {
			s.Percent = p.Percent
		}
		s.Message = ""
		return true
	})
	if !ok {
		return
	}
	sb.publish(ctx, websocket.TypeUploadProgress, snapshot)
}

// Complete marks the upload finished with its diagnostic summary.
func (sb *StatusBroadcaster) Complete(ctx context.Context, uploadID string, summary upload.Summary) {
	snapshot, ok := sb.update(uploadID, func(s *UploadSnapshot) bool {
		now := sb.now()
		s.Status = StatusCompleted
		s.Percent = 100
		s.Summary = &summary
		s.Message = "Upload completed"
		if summary.CriticalErrors {
			s.Message = "Upload rejected"
		}
		s.CompletedAt = &now
		return true
	})
	if ok {
		sb.publish(ctx, websocket.TypeUploadStatus, snapshot)
	}
}

// Fail marks the upload as failed before it could produce a result.
func (sb *StatusBroadcaster) Fail(ctx context.Context, uploadID string, err error) {
	snapshot, ok := sb.update(uploadID, func(s *UploadSnapshot) bool {
		now := sb.now()
		s.Status = StatusFailed
		s.Error = err.Error()
		s.Message = "Upload failed"
		s.CompletedAt = &now
		return true
	})
	if ok {
		sb.publish(ctx, websocket.TypeUploadStatus, snapshot)
	}
}

func (sb *StatusBroadcaster) publish(ctx context.Context, msgType string, s UploadSnapshot) {
	if sb.publisher == nil {
		return
	}
	n := sb.publisher.SendToUser(ctx, s.User, msgType, s)
	sb.logger.DebugContext(ctx, "upload snapshot published",
		slog.String("upload_id", s.UploadID),
		slog.String("status", s.Status),
		slog.Float64("percent", s.Percent),
		slog.Int("connections", n))
}

// Snapshot returns the current state of an upload.
func (sb *StatusBroadcaster) Snapshot(uploadID string) (UploadSnapshot, bool) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	s, ok := sb.snapshots[uploadID]
	if !ok {
		return UploadSnapshot{}, false
	}
	return *s, true
}

// Cleanup drops finished uploads older than maxAge and returns how many
// were removed.
func (sb *StatusBroadcaster) Cleanup(maxAge time.Duration) int {
	cutoff := sb.now().Add(-maxAge)
	sb.mu.Lock()
	defer sb.mu.Unlock()

	n := 0
	for id, s := range sb.snapshots {
		if s.CompletedAt != nil && s.CompletedAt.Before(cutoff) {
			delete(sb.snapshots, id)
			n++
		}
	}
	if n > 0 {
		sb.logger.Info("cleaned up finished uploads", slog.Int("removed", n))
	}
	return n
}
