package infrastructure

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"massupload/internal/upload"
)

// UploadMetrics holds the instruments of the upload service.
type UploadMetrics struct {
	Uploads         metric.Int64Counter
	Rows            metric.Int64Counter
	Duration        metric.Float64Histogram
	ActiveBatches   metric.Int64UpDownCounter
	ProgressDropped metric.Int64Counter
}

// NewUploadMetrics creates the upload instruments on meter.
func NewUploadMetrics(meter metric.Meter) (*UploadMetrics, error) {
	uploads, err := meter.Int64Counter(
		"uploads_total",
		metric.WithDescription("Total number of upload batches by type and outcome"),
	)
	if err != nil {
		return nil, err
	}

	rows, err := meter.Int64Counter(
		"upload_rows_total",
		metric.WithDescription("Total number of uploaded rows by type and outcome"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"upload_duration_seconds",
		metric.WithDescription("Upload batch duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	active, err := meter.Int64UpDownCounter(
		"upload_active_batches",
		metric.WithDescription("Number of upload batches currently running"),
	)
	if err != nil {
		return nil, err
	}

	dropped, err := meter.Int64Counter(
		"progress_dropped_total",
		metric.WithDescription("Progress notifications dropped because the recipient was slow"),
	)
	if err != nil {
		return nil, err
	}

	return &UploadMetrics{
		Uploads:         uploads,
		Rows:            rows,
		Duration:        duration,
		ActiveBatches:   active,
		ProgressDropped: dropped,
	}, nil
}

// BatchStarted marks a batch of typ as running. The returned function marks
// it finished.
func (m *UploadMetrics) BatchStarted(ctx context.Context, typ upload.UploadType) func() {
	if m == nil {
		return func() {}
	}
	attrs := metric.WithAttributes(attribute.String("upload.type", string(typ)))
	m.ActiveBatches.Add(ctx, 1, attrs)
	return func() { m.ActiveBatches.Add(ctx, -1, attrs) }
}

// RecordBatch records the outcome of a finished batch.
func (m *UploadMetrics) RecordBatch(ctx context.Context, typ upload.UploadType, outcome string, counts upload.Counts, elapsed time.Duration) {
	if m == nil {
		return
	}
	typeAttr := attribute.String("upload.type", string(typ))

	m.Uploads.Add(ctx, 1, metric.WithAttributes(typeAttr, attribute.String("outcome", outcome)))
	m.Duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(typeAttr, attribute.String("outcome", outcome)))

	for _, row := range []struct {
		outcome string
		n       int
	}{
		{"inserted", counts.Insert},
		{"updated", counts.Update},
		{"deleted", counts.Delete},
		{"ignored", counts.Ignore},
		{"duplicate", counts.Duplicate},
	} {
		if row.n > 0 {
			m.Rows.Add(ctx, int64(row.n), metric.WithAttributes(typeAttr, attribute.String("outcome", row.outcome)))
		}
	}
}

// RecordProgressDropped counts a progress notification that was not delivered.
func (m *UploadMetrics) RecordProgressDropped(ctx context.Context) {
	if m == nil {
		return
	}
	m.ProgressDropped.Add(ctx, 1)
}
