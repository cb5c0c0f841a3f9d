package infrastructure

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"massupload/internal/config"
	"massupload/internal/upload"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInitializeOTel(t *testing.T) {
	tests := []struct {
		name        string
		cfg         config.TelemetryConfig
		wantErr     bool
		wantTracing bool
		wantMetrics bool
	}{
		{"everything off", config.TelemetryConfig{ServiceName: "t", TraceExporter: "none"}, false, false, false},
		{"metrics only", config.TelemetryConfig{ServiceName: "t", TraceExporter: "none", MetricsEnabled: true}, false, false, true},
		{"stdout tracing", config.TelemetryConfig{ServiceName: "t", TraceExporter: "stdout", MetricsEnabled: true}, false, true, true},
		{"unknown exporter", config.TelemetryConfig{ServiceName: "t", TraceExporter: "zipkin"}, true, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			providers, err := InitializeOTel(tt.cfg, "test", discardLogger())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			t.Cleanup(func() { providers.Shutdown(context.Background()) })

			assert.NotNil(t, providers.Meter)
			assert.Equal(t, tt.wantTracing, providers.TracerProvider != nil)
			assert.Equal(t, tt.wantMetrics, providers.PrometheusHTTP != nil)
		})
	}
}

func TestUploadMetricsExported(t *testing.T) {
	providers, err := InitializeOTel(config.TelemetryConfig{ServiceName: "t", TraceExporter: "none", MetricsEnabled: true}, "test", discardLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	metrics, err := NewUploadMetrics(providers.Meter)
	require.NoError(t, err)

	ctx := context.Background()
	done := metrics.BatchStarted(ctx, "PART_MASTER")
	metrics.RecordBatch(ctx, "PART_MASTER", "completed", upload.Counts{Insert: 3, Ignore: 1}, 1500*time.Millisecond)
	metrics.RecordProgressDropped(ctx)
	done()

	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "uploads_total")
	assert.Contains(t, body, `upload_type="PART_MASTER"`)
	assert.Contains(t, body, `outcome="inserted"`)
	assert.NotContains(t, body, `outcome="deleted"`)
	assert.Contains(t, body, "upload_duration_seconds")
	assert.Contains(t, body, "progress_dropped_total")
	assert.Contains(t, body, "go_goroutines")
}

func TestNilUploadMetrics(t *testing.T) {
	var m *UploadMetrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.BatchStarted(ctx, "PART_MASTER")()
		m.RecordBatch(ctx, "PART_MASTER", "failed", upload.Counts{}, time.Second)
		m.RecordProgressDropped(ctx)
	})
}
