package websocket

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "pitchstats.websocket"

// OTelMetrics provides OpenTelemetry metrics for WebSocket operations
type OTelMetrics struct {
	// Connection metrics
	connectionsTotal   metric.Int64Counter
	connectionsActive  metric.Int64UpDownCounter
	connectionDuration metric.Float64Histogram
	connectionErrors   metric.Int64Counter

	// Message metrics
	messagesTotal  metric.Int64Counter
	messageBytes   metric.Int64Counter
	messageErrors  metric.Int64Counter
	messageLatency metric.Float64Histogram

	// Queue metrics
	queueDepth      metric.Int64Gauge
	queueOperations metric.Int64Counter
	droppedMessages metric.Int64Counter

	// Hub metrics
	broadcastOperations metric.Int64Counter
	clientCount         metric.Int64Gauge
	runEvents           metric.Int64Counter
}

// NewOTelMetrics registers the WebSocket instruments on the global meter.
func NewOTelMetrics() (*OTelMetrics, error) {
	meter := otel.Meter(meterName)

	var err error

	counter := func(name, desc string) metric.Int64Counter {
		if err != nil {
			return nil
		}
		var c metric.Int64Counter
		c, err = meter.Int64Counter(name, metric.WithDescription(desc))
		return c
	}
	upDown := func(name, desc string) metric.Int64UpDownCounter {
		if err != nil {
			return nil
		}
		var u metric.Int64UpDownCounter
		u, err = meter.Int64UpDownCounter(name, metric.WithDescription(desc))
		return u
	}
	histogram := func(name, desc string) metric.Float64Histogram {
		if err != nil {
			return nil
		}
		var h metric.Float64Histogram
		h, err = meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("s"))
		return h
	}
	gauge := func(name, desc string) metric.Int64Gauge {
		if err != nil {
			return nil
		}
		var g metric.Int64Gauge
		g, err = meter.Int64Gauge(name, metric.WithDescription(desc))
		return g
	}

	m := &OTelMetrics{
		connectionsTotal:   counter("websocket_connections_total", "Total number of WebSocket connections"),
		connectionsActive:  upDown("websocket_connections_active", "Number of active WebSocket connections"),
		connectionDuration: histogram("websocket_connection_duration_seconds", "Duration of WebSocket connections"),
		connectionErrors:   counter("websocket_connection_errors_total", "Total number of WebSocket connection errors"),

		messagesTotal:  counter("websocket_messages_total", "Total number of WebSocket messages"),
		messageBytes:   counter("websocket_message_bytes_total", "Total bytes of WebSocket messages"),
		messageErrors:  counter("websocket_message_errors_total", "Total number of WebSocket message errors"),
		messageLatency: histogram("websocket_message_latency_seconds", "Time spent writing a message to the wire"),

		queueDepth:      gauge("websocket_queue_depth", "Current depth of WebSocket message queue"),
		queueOperations: counter("websocket_queue_operations_total", "Total number of WebSocket queue operations"),
		droppedMessages: counter("websocket_dropped_messages_total", "Total number of dropped WebSocket messages"),

		broadcastOperations: counter("websocket_broadcast_operations_total", "Total number of WebSocket broadcast operations"),
		clientCount:         gauge("websocket_client_count", "Current number of connected WebSocket clients"),
		runEvents:           counter("websocket_run_events_total", "Total number of run lifecycle events broadcast"),
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RecordConnection records a new WebSocket connection
func (m *OTelMetrics) RecordConnection(ctx context.Context, clientID, remoteAddr string) {
	attrs := metric.WithAttributes(
		attribute.String("client_id", clientID),
		attribute.String("remote_addr", remoteAddr),
	)
	m.connectionsTotal.Add(ctx, 1, attrs)
	m.connectionsActive.Add(ctx, 1, attrs)
}

// RecordDisconnection records a WebSocket disconnection
func (m *OTelMetrics) RecordDisconnection(ctx context.Context, clientID string, duration time.Duration, reason string) {
	attrs := metric.WithAttributes(
		attribute.String("client_id", clientID),
		attribute.String("disconnect_reason", reason),
	)
	m.connectionsActive.Add(ctx, -1, attrs)
	m.connectionDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordConnectionError records a failed upgrade or abnormal close
func (m *OTelMetrics) RecordConnectionError(ctx context.Context, clientID, errorType string, err error) {
	m.connectionErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("client_id", clientID),
		attribute.String("error_type", errorType),
		attribute.String("error", err.Error()),
	))
}

// RecordMessageSent records an outbound WebSocket message
func (m *OTelMetrics) RecordMessageSent(ctx context.Context, messageType, clientID string, size int64) {
	m.recordMessage(ctx, "outbound", messageType, clientID, size)
}

// RecordMessageReceived records an inbound WebSocket message
func (m *OTelMetrics) RecordMessageReceived(ctx context.Context, messageType, clientID string, size int64) {
	m.recordMessage(ctx, "inbound", messageType, clientID, size)
}

func (m *OTelMetrics) recordMessage(ctx context.Context, direction, messageType, clientID string, size int64) {
	attrs := metric.WithAttributes(
		attribute.String("direction", direction),
		attribute.String("message_type", messageType),
		attribute.String("client_id", clientID),
	)
	m.messagesTotal.Add(ctx, 1, attrs)
	m.messageBytes.Add(ctx, size, attrs)
}

// RecordMessageLatency records how long a message write took
func (m *OTelMetrics) RecordMessageLatency(ctx context.Context, direction, messageType string, elapsed time.Duration) {
	m.messageLatency.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("direction", direction),
		attribute.String("message_type", messageType),
	))
}

// RecordMessageError records a failed message write
func (m *OTelMetrics) RecordMessageError(ctx context.Context, messageType, clientID, errorType string, err error) {
	m.messageErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("message_type", messageType),
		attribute.String("client_id", clientID),
		attribute.String("error_type", errorType),
		attribute.String("error", err.Error()),
	))
}

// RecordQueueDepth records the current message queue depth
func (m *OTelMetrics) RecordQueueDepth(ctx context.Context, depth int64, queueType string) {
	m.queueDepth.Record(ctx, depth, metric.WithAttributes(
		attribute.String("queue_type", queueType),
	))
}

// RecordQueueOperation records an enqueue or dequeue on the broadcast queue
func (m *OTelMetrics) RecordQueueOperation(ctx context.Context, operation, queueType string) {
	m.queueOperations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("queue_type", queueType),
	))
}

// RecordDroppedMessage records a message dropped on the way to a client
func (m *OTelMetrics) RecordDroppedMessage(ctx context.Context, messageType, reason string) {
	m.droppedMessages.Add(ctx, 1, metric.WithAttributes(
		attribute.String("message_type", messageType),
		attribute.String("drop_reason", reason),
	))
}

// RecordBroadcast records one fan-out to the connected clients
func (m *OTelMetrics) RecordBroadcast(ctx context.Context, messageType string, clientCount, successCount, failCount int64) {
	m.broadcastOperations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("message_type", messageType),
		attribute.Int64("client_count", clientCount),
		attribute.Int64("success_count", successCount),
		attribute.Int64("fail_count", failCount),
	))
}

// RecordClientCount records the current number of connected clients
func (m *OTelMetrics) RecordClientCount(ctx context.Context, count int64) {
	m.clientCount.Record(ctx, count)
}

// RecordRunEvent records a run lifecycle event reaching the stream
func (m *OTelMetrics) RecordRunEvent(ctx context.Context, runID, eventType, stage string) {
	m.runEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("run_id", runID),
		attribute.String("event_type", eventType),
		attribute.String("stage", stage),
	))
}

// Global OTel metrics instance
var globalOTelMetrics *OTelMetrics

// InitOTelMetrics initializes the global OpenTelemetry metrics
func InitOTelMetrics() error {
	metrics, err := NewOTelMetrics()
	if err != nil {
		return err
	}
	globalOTelMetrics = metrics
	return nil
}

// GetOTelMetrics returns the global instance, nil before InitOTelMetrics.
func GetOTelMetrics() *OTelMetrics {
	return globalOTelMetrics
}
