package websocket

import (
	"sync"
	"time"
)

// connectionTimeWindow is how many recent connections feed AvgConnectionTime.
const connectionTimeWindow = 100

// Metrics tracks hub-level WebSocket counters. Per-message instrumentation
// lives in the OpenTelemetry layer; this tracker backs the stats endpoint.
type Metrics struct {
	mu sync.RWMutex

	// Connection metrics
	TotalConnections  int64
	ActiveConnections int64
	MaxConcurrent     int64
	AvgConnectionTime time.Duration

	// Broadcast metrics
	AvgQueueDepth   int64
	MaxQueueDepth   int64
	DroppedMessages int64

	LastReset time.Time

	// Ring buffer of recent connection durations backing the average.
	durations [connectionTimeWindow]time.Duration
	durCount  int
	durNext   int
	durSum    time.Duration
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{LastReset: time.Now()}
}

// RecordConnection records a new connection
func (m *Metrics) RecordConnection() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalConnections++
	m.ActiveConnections++
	if m.ActiveConnections > m.MaxConcurrent {
		m.MaxConcurrent = m.ActiveConnections
	}
}

// RecordDisconnection records a disconnection and folds the connection's
// lifetime into the rolling average.
func (m *Metrics) RecordDisconnection(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ActiveConnections--

	if m.durCount == len(m.durations) {
		m.durSum -= m.durations[m.durNext]
	} else {
		m.durCount++
	}
	m.durations[m.durNext] = duration
	m.durSum += duration
	m.durNext = (m.durNext + 1) % len(m.durations)

	m.AvgConnectionTime = m.durSum / time.Duration(m.durCount)
}

// RecordQueueDepth records the current broadcast queue depth
func (m *Metrics) RecordQueueDepth(depth int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if depth > m.MaxQueueDepth {
		m.MaxQueueDepth = depth
	}

	// Exponentially weighted average, seeded by the first sample
	if m.AvgQueueDepth == 0 {
		m.AvgQueueDepth = depth
	} else {
		m.AvgQueueDepth = (m.AvgQueueDepth*9 + depth) / 10
	}
}

// RecordDroppedMessage records a message dropped because a client buffer was full
func (m *Metrics) RecordDroppedMessage() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DroppedMessages++
}

// GetSnapshot returns a snapshot of current metrics
func (m *Metrics) GetSnapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"connections": map[string]interface{}{
			"total":           m.TotalConnections,
			"active":          m.ActiveConnections,
			"max_concurrent":  m.MaxConcurrent,
			"avg_duration_ms": m.AvgConnectionTime.Milliseconds(),
		},
		"broadcast": map[string]interface{}{
			"avg_queue_depth": m.AvgQueueDepth,
			"max_queue_depth": m.MaxQueueDepth,
			"dropped":         m.DroppedMessages,
		},
		"uptime_seconds": time.Since(m.LastReset).Seconds(),
	}
}

// Reset resets all metrics
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalConnections = 0
	m.ActiveConnections = 0
	m.MaxConcurrent = 0
	m.AvgConnectionTime = 0
	m.AvgQueueDepth = 0
	m.MaxQueueDepth = 0
	m.DroppedMessages = 0
	m.LastReset = time.Now()
	m.durations = [connectionTimeWindow]time.Duration{}
	m.durCount = 0
	m.durNext = 0
	m.durSum = 0
}

// Global metrics instance backing the stats endpoint.
var globalMetrics = NewMetrics()

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	return globalMetrics
}
