package websocket

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HubMetrics records connection and delivery counters. A nil *HubMetrics
// records nothing.
type HubMetrics struct {
	connectionsTotal   metric.Int64Counter
	connectionsActive  metric.Int64UpDownCounter
	connectionDuration metric.Float64Histogram
	messages           metric.Int64Counter
}

// NewHubMetrics creates the websocket instruments on meter.
func NewHubMetrics(meter metric.Meter) (*HubMetrics, error) {
	connectionsTotal, err := meter.Int64Counter(
		"websocket_connections_total",
		metric.WithDescription("Total number of WebSocket connections"),
	)
	if err != nil {
		return nil, err
	}

	connectionsActive, err := meter.Int64UpDownCounter(
		"websocket_connections_active",
		metric.WithDescription("Number of active WebSocket connections"),
	)
	if err != nil {
		return nil, err
	}

	connectionDuration, err := meter.Float64Histogram(
		"websocket_connection_duration_seconds",
		metric.WithDescription("Duration of WebSocket connections"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	messages, err := meter.Int64Counter(
		"websocket_messages_total",
		metric.WithDescription("WebSocket messages by type and delivery outcome"),
	)
	if err != nil {
		return nil, err
	}

	return &HubMetrics{
		connectionsTotal:   connectionsTotal,
		connectionsActive:  connectionsActive,
		connectionDuration: connectionDuration,
		messages:           messages,
	}, nil
}

func (m *HubMetrics) connected(ctx context.Context) {
	if m == nil {
		return
	}
	m.connectionsTotal.Add(ctx, 1)
	m.connectionsActive.Add(ctx, 1)
}

func (m *HubMetrics) disconnected(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.connectionsActive.Add(ctx, -1)
	m.connectionDuration.Record(ctx, d.Seconds())
}

func (m *HubMetrics) delivered(ctx context.Context, msgType string, sent, dropped int) {
	if m == nil {
		return
	}
	if sent > 0 {
		m.messages.Add(ctx, int64(sent), metric.WithAttributes(
			attribute.String("type", msgType), attribute.String("outcome", "sent")))
	}
	if dropped > 0 {
		m.messages.Add(ctx, int64(dropped), metric.WithAttributes(
			attribute.String("type", msgType), attribute.String("outcome", "dropped")))
	}
}
