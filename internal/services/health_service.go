package services

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"massupload/internal/infrastructure"
	"massupload/internal/websocket"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// QueueStats is the part of the job queue health looks at.
type QueueStats interface {
	Pending() int
}

// HubStats is the part of the websocket hub health looks at.
type HubStats interface {
	Stats() websocket.HubStats
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	db        Pinger
	queue     QueueStats
	hub       HubStats
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Version   string         `json:"version"`
	Runtime   map[string]any `json:"runtime,omitempty"`
	Services  map[string]any `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

// NewHealthService creates a health service. queue and hub may be nil.
func NewHealthService(version string, db Pinger, queue QueueStats, hub HubStats, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &HealthService{
		version:   version,
		db:        db,
		queue:     queue,
		hub:       hub,
		startTime: time.Now(),
		logger:    logger.With(slog.String("component", "health_service")),
	}
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]any{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// ReadinessCheck returns readiness status. The service is ready when the
// database answers.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services:  make(map[string]any),
	}

	db := hs.checkDatabase(ctx)
	status.Services["database"] = db
	if db.Status != "ready" {
		status.Status = "not_ready"
	}

	if hs.queue != nil {
		status.Services["jobs"] = ServiceHealth{Status: "ready", Details: map[string]int{"pending": hs.queue.Pending()}}
	}
	if hs.hub != nil {
		status.Services["websocket"] = ServiceHealth{Status: "ready", Details: hs.hub.Stats()}
	}

	hs.logger.DebugContext(ctx, "readiness check completed", slog.String("status", status.Status))
	return status
}

func (hs *HealthService) checkDatabase(ctx context.Context) ServiceHealth {
	if hs.db == nil {
		return ServiceHealth{Status: "not_ready", Message: "database not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := hs.db.PingContext(ctx); err != nil {
		hs.logger.WarnContext(ctx, "database ping failed", slog.String("error", err.Error()))
		return ServiceHealth{Status: "not_ready", Message: err.Error()}
	}
	return ServiceHealth{Status: "ready"}
}
