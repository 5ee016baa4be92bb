package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/bannerscan/internal/pipeline"
)

const (
	pongWait     = 60 * time.Second
	pingPeriod   = 30 * time.Second
	writeWait    = 10 * time.Second
	clientBuffer = 64
)

// WebSocketMessage is one progress event pushed to subscribers.
type WebSocketMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Message types sent on /api/v1/progress.
const (
	MessageStart    = "start"
	MessageProgress = "progress"
	MessageError    = "error"
	MessageComplete = "complete"
)

type startPayload struct {
	Total int `json:"total"`
}

type errorPayload struct {
	ImageID string `json:"image_id"`
	Error   string `json:"error"`
}

// progressHub fans batch progress out to every connected client. A client
// that cannot keep up loses messages instead of stalling the batch.
type progressHub struct {
	mu      sync.Mutex
	clients map[chan []byte]struct{}
	closed  bool
}

func newProgressHub() *progressHub {
	return &progressHub{clients: make(map[chan []byte]struct{})}
}

func (h *progressHub) subscribe() (chan []byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	ch := make(chan []byte, clientBuffer)
	h.clients[ch] = struct{}{}
	return ch, true
}

func (h *progressHub) unsubscribe(ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
}

func (h *progressHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		delete(h.clients, ch)
		close(ch)
	}
	h.closed = true
}

func (h *progressHub) broadcast(msg WebSocketMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to marshal WebSocket message", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- data:
		default:
			websocketMessagesTotal.WithLabelValues("dropped").Inc()
		}
	}
}

func (h *progressHub) OnStart(total int) {
	h.broadcast(WebSocketMessage{Type: MessageStart, Payload: startPayload{Total: total}})
}

func (h *progressHub) OnProgress(p pipeline.Progress) {
	h.broadcast(WebSocketMessage{Type: MessageProgress, Payload: p})
}

func (h *progressHub) OnComplete() {
	h.broadcast(WebSocketMessage{Type: MessageComplete})
}

func (h *progressHub) OnError(imageID string, err error) {
	h.broadcast(WebSocketMessage{Type: MessageError, Payload: errorPayload{ImageID: imageID, Error: err.Error()}})
}

// progressWebSocketHandler streams batch progress to a WebSocket client.
func (s *Server) progressWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.allowOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	ch, ok := s.hub.subscribe()
	if !ok {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		return
	}
	defer s.hub.unsubscribe(ch)

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	// Clients only listen; reading detects disconnects and answers pings.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					slog.Error("WebSocket error", "error", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-readDone:
			return
		case data, open := <-ch:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !open {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				slog.Error("Failed to send WebSocket message", "error", err)
				return
			}
			websocketMessagesTotal.WithLabelValues("sent").Inc()
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
