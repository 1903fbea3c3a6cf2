package notify

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pmg5408/grocery-meal-agent/internal/types"
)

// WebSocket timeout constants following Gorilla best practices.
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait).
	pingPeriod = 54 * time.Second

	// Maximum message size allowed from peer. Clients never send payloads,
	// only control frames, so this stays tight.
	maxMessageSize = 512
)

// wsConnection adapts a gorilla websocket to the registry's Connection
// interface. Writes are serialized by a mutex: pings and event pushes come
// from different goroutines.
type wsConnection struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newWSConnection(conn *websocket.Conn) *wsConnection {
	return &wsConnection{conn: conn}
}

func (c *wsConnection) Send(_ context.Context, event types.MealEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(event)
}

func (c *wsConnection) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

func (c *wsConnection) Close() error {
	return c.conn.Close()
}

// WSHandler upgrades HTTP requests to websocket connections and wires them
// into the registry.
type WSHandler struct {
	registry *Registry
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWSHandler creates a WSHandler over the given registry.
func NewWSHandler(registry *Registry, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
	}
}

// ServeHTTP handles GET /ws?userId=N. The connection becomes the user's live
// push channel; an existing connection for the same user is closed and
// replaced.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("userId"), 10, 64)
	if err != nil || userID <= 0 {
		http.Error(w, "userId query parameter is required", http.StatusBadRequest)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.logger.Warn("websocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	conn := newWSConnection(ws)
	h.registry.Register(userID, conn)
	h.logger.Info("websocket connected", "user_id", userID)

	go h.readLoop(userID, conn, ws)
	go h.pingLoop(userID, conn, ws)
}

// readLoop drains the socket to process control frames and detect closure.
// When the socket dies, the connection is removed from the registry unless a
// reconnect already replaced it.
func (h *WSHandler) readLoop(userID int64, conn *wsConnection, ws *websocket.Conn) {
	defer func() {
		h.registry.Unregister(userID, conn)
		_ = ws.Close()
		h.logger.Info("websocket disconnected", "user_id", userID)
	}()

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

// pingLoop keeps the connection alive. A failed ping lets the read deadline
// expire, which tears the connection down through readLoop.
func (h *WSHandler) pingLoop(userID int64, conn *wsConnection, ws *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		if err := conn.ping(); err != nil {
			h.logger.Debug("ping failed", "user_id", userID, "error", err)
			return
		}
	}
}
