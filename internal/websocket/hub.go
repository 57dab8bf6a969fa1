package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"pitchstats/internal/infrastructure"
	"pitchstats/pkg/contracts"
	"pitchstats/pkg/contracts/events"
)

// Hub maintains the set of active clients and broadcasts run events to them
type Hub struct {
	// Registered clients, guarded by mu
	clients map[*Client]bool
	mu      sync.RWMutex

	// Messages queued for fan-out to every client
	broadcast chan []byte

	// Register and unregister requests from the clients
	register   chan *Client
	unregister chan *Client

	logger *slog.Logger
	stats  hubStats

	quit    chan struct{}
	running bool
}

// hubStats aggregates lifetime counters behind its own lock so metric reads
// never contend with the client map.
type hubStats struct {
	mu               sync.Mutex
	totalConnections int64
	messagesSent     int64
	messagesReceived int64
	connectionErrors int64
}

func (s *hubStats) connectionOpened() {
	s.mu.Lock()
	s.totalConnections++
	s.mu.Unlock()
}

// connectionClosed folds the departing client's receive counter into the
// hub totals.
func (s *hubStats) connectionClosed(received int64) {
	s.mu.Lock()
	s.messagesReceived += received
	s.mu.Unlock()
}

func (s *hubStats) delivered(n int) {
	s.mu.Lock()
	s.messagesSent += int64(n)
	s.mu.Unlock()
}

func (s *hubStats) connectionFailed() {
	s.mu.Lock()
	s.connectionErrors++
	s.mu.Unlock()
}

func (s *hubStats) totals() (connections, sent, received, errs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalConnections, s.messagesSent, s.messagesReceived, s.connectionErrors
}

// NewHub creates a new Hub instance with dependency injection
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		quit:       make(chan struct{}),
	}
}

// Start starts the hub's goroutines
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.Run()
	go h.reportMetrics()
}

// Stop gracefully stops the hub
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.quit)
}

// Run is the hub's main loop. All channel closes on client send buffers
// happen here, so no other goroutine can race a send against a close.
func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			h.logger.Info("Hub shutting down")
			h.closeAllClients()
			return

		case client := <-h.register:
			h.handleRegister(client)

		case client := <-h.unregister:
			h.handleUnregister(client)

		case message := <-h.broadcast:
			h.handleBroadcast(message)
		}
	}
}

func (h *Hub) handleRegister(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	h.stats.connectionOpened()

	ctx := client.ctx()
	h.logger.InfoContext(ctx, "Client registered",
		slog.Int("total_clients", count),
		slog.String("client_id", client.id),
		slog.String("remote_addr", client.remoteAddr))

	GetMetrics().RecordConnection()
	if otelMetrics := GetOTelMetrics(); otelMetrics != nil {
		otelMetrics.RecordConnection(ctx, client.id, client.remoteAddr)
		otelMetrics.RecordClientCount(ctx, int64(count))
	}

	h.welcome(ctx, client)
}

// welcome acknowledges a new subscription on the client's own channel.
func (h *Hub) welcome(ctx context.Context, client *Client) {
	msg := events.WebSocketMessage{
		BaseMessage: newBaseMessage(events.MessageTypeConnect, client.traceID),
		Data: map[string]interface{}{
			"status":    "connected",
			"message":   "Connected to run event stream",
			"client_id": client.id,
		},
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.ErrorContext(ctx, "Error marshaling connect message",
			slog.String("error", err.Error()))
		return
	}

	select {
	case client.send <- payload:
	default:
		h.logger.WarnContext(ctx, "Connect message dropped, client buffer full",
			slog.String("client_id", client.id))
	}
}

func (h *Hub) handleUnregister(client *Client) {
	h.mu.Lock()
	_, known := h.clients[client]
	if known {
		delete(h.clients, client)
		close(client.send)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if !known {
		return
	}

	duration := time.Since(client.connectedAt)
	h.stats.connectionClosed(client.messagesReceived)

	ctx := client.ctx()
	h.logger.InfoContext(ctx, "Client unregistered",
		slog.Int("total_clients", count),
		slog.String("client_id", client.id),
		slog.Duration("connection_duration", duration))

	GetMetrics().RecordDisconnection(duration)
	if otelMetrics := GetOTelMetrics(); otelMetrics != nil {
		otelMetrics.RecordDisconnection(ctx, client.id, duration, "normal")
		otelMetrics.RecordClientCount(ctx, int64(count))
	}
}

func (h *Hub) handleBroadcast(message []byte) {
	if otelMetrics := GetOTelMetrics(); otelMetrics != nil {
		otelMetrics.RecordQueueOperation(context.Background(), "dequeue", "broadcast")
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	h.logger.Debug("Broadcasting message to clients",
		slog.Int("client_count", len(targets)),
		slog.Int("message_size", len(message)))

	delivered := 0
	for _, client := range targets {
		if h.deliver(client, message) {
			delivered++
		}
	}
	dropped := len(targets) - delivered

	h.stats.delivered(delivered)

	if dropped > 0 {
		h.logger.Warn("Some clients failed to receive broadcast",
			slog.Int("success_count", delivered),
			slog.Int("fail_count", dropped))
	}

	if otelMetrics := GetOTelMetrics(); otelMetrics != nil {
		otelMetrics.RecordBroadcast(context.Background(), "broadcast",
			int64(len(targets)), int64(delivered), int64(dropped))
	}
}

// deliver queues a message on one client. A full buffer means the reader is
// gone or wedged, so the client is dropped rather than blocking the hub.
func (h *Hub) deliver(client *Client, message []byte) bool {
	select {
	case client.send <- message:
		return true
	default:
	}

	h.mu.Lock()
	if _, known := h.clients[client]; known {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()

	GetMetrics().RecordDroppedMessage()

	ctx := client.ctx()
	if otelMetrics := GetOTelMetrics(); otelMetrics != nil {
		otelMetrics.RecordDroppedMessage(ctx, "broadcast", "buffer_full")
	}
	h.logger.WarnContext(ctx, "Client send buffer full, disconnecting",
		slog.String("client_id", client.id))
	return false
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

// BroadcastRunSnapshot sends a run:snapshot event to all connected clients.
// The snapshot is a full projection of the run state, so clients never need
// to reconcile deltas.
func (h *Hub) BroadcastRunSnapshot(snap events.RunSnapshot, traceID string) {
	h.publish(events.WebSocketMessage{
		BaseMessage: newBaseMessage(events.MessageTypeRunSnapshot, traceID),
		Data:        snap,
	}, events.MessageTypeRunSnapshot, traceID)

	if otelMetrics := GetOTelMetrics(); otelMetrics != nil {
		otelMetrics.RecordRunEvent(context.Background(), snap.RunID, "snapshot", snap.CurrentStage)
	}
}

// BroadcastSystemStatus sends a system:status event to all connected clients.
func (h *Hub) BroadcastSystemStatus(status string, components map[string]string, uptime time.Duration) {
	evt := events.SystemStatusEvent{BaseMessage: newBaseMessage(events.MessageTypeSystemStatus, "")}
	evt.Data.Status = status
	evt.Data.Components = components
	evt.Data.Uptime = uptime.Round(time.Second).String()
	evt.Data.Version = contracts.Version

	h.publish(evt, events.MessageTypeSystemStatus, "")
}

// BroadcastError sends a structured error event to all connected clients.
func (h *Hub) BroadcastError(code, message string, fatal bool) {
	evt := events.ErrorMessage{BaseMessage: newBaseMessage(events.MessageTypeError, "")}
	evt.Data.Code = code
	evt.Data.Message = message
	evt.Data.Fatal = fatal

	h.publish(evt, events.MessageTypeError, "")
}

// Broadcast sends an arbitrary typed event to all connected clients. It
// exists so the services layer can depend on a narrow interface.
func (h *Hub) Broadcast(messageType string, data interface{}) {
	msgType := events.MessageType(messageType)
	h.publish(events.WebSocketMessage{
		BaseMessage: newBaseMessage(msgType, ""),
		Data:        data,
	}, msgType, "")
}

// publish marshals an event and hands it to the broadcast loop.
func (h *Hub) publish(evt interface{}, msgType events.MessageType, traceID string) {
	payload, err := json.Marshal(evt)
	if err != nil {
		ctx := context.Background()
		if traceID != "" {
			ctx = infrastructure.WithTraceID(ctx, traceID)
		}
		h.logger.ErrorContext(ctx, "Error marshaling message",
			slog.String("error", err.Error()),
			slog.String("message_type", string(msgType)))
		return
	}

	if otelMetrics := GetOTelMetrics(); otelMetrics != nil {
		otelMetrics.RecordQueueOperation(context.Background(), "enqueue", "broadcast")
	}
	h.broadcast <- payload
}

func newBaseMessage(msgType events.MessageType, traceID string) events.BaseMessage {
	return events.BaseMessage{
		ID:        uuid.New().String(),
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		TraceID:   traceID,
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RecordConnectionError counts a failed upgrade or abnormal close against
// the stats endpoint.
func (h *Hub) RecordConnectionError() {
	h.stats.connectionFailed()
}

// reportMetrics logs a stats line and refreshes the queue gauges until the
// hub stops.
func (h *Hub) reportMetrics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.quit:
			return
		case <-ticker.C:
			h.logStats()
		}
	}
}

func (h *Hub) logStats() {
	depth := int64(len(h.broadcast))
	GetMetrics().RecordQueueDepth(depth)
	if otelMetrics := GetOTelMetrics(); otelMetrics != nil {
		otelMetrics.RecordQueueDepth(context.Background(), depth, "broadcast")
	}

	connections, sent, received, _ := h.stats.totals()
	h.logger.Info("WebSocket hub metrics",
		slog.Int("active_clients", h.ClientCount()),
		slog.Int64("total_connections", connections),
		slog.Int64("messages_sent", sent),
		slog.Int64("messages_received", received),
		slog.Int64("broadcast_queue", depth))
}

// GetHubMetrics returns current hub metrics
func (h *Hub) GetHubMetrics() map[string]interface{} {
	h.mu.RLock()
	active := len(h.clients)
	h.mu.RUnlock()

	connections, sent, received, errs := h.stats.totals()
	return map[string]interface{}{
		"active_clients":    active,
		"total_connections": connections,
		"messages_sent":     sent,
		"messages_received": received,
		"connection_errors": errs,
	}
}
