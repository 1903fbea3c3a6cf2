// Package notify implements the live-connection layer of the gateway: a
// per-user connection registry, the websocket transport, and the queue
// consumer that turns meal events into pushes.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pmg5408/grocery-meal-agent/internal/types"
)

// Connection is one live client connection the registry can push to.
type Connection interface {
	Send(ctx context.Context, event types.MealEvent) error
	Close() error
}

// DeliveryStatus is the outcome of a push attempt.
type DeliveryStatus int

const (
	// Delivered means the event reached the user's live connection.
	Delivered DeliveryStatus = iota
	// NotConnected means the user has no live connection; not an error, the
	// user simply fetches on next open.
	NotConnected
	// Failed means the connection was live but the push errored; the
	// connection has been evicted and closed.
	Failed
)

// Registry tracks at most one live connection per user. A new connection for
// a user replaces and closes the previous one (last connection wins), which
// keeps reconnecting clients from leaking stale sockets.
type Registry struct {
	mu     sync.Mutex
	conns  map[int64]Connection
	logger *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		conns:  make(map[int64]Connection),
		logger: logger,
	}
}

// Register installs conn as the user's live connection, closing any previous
// one.
func (r *Registry) Register(userID int64, conn Connection) {
	r.mu.Lock()
	prev := r.conns[userID]
	r.conns[userID] = conn
	r.mu.Unlock()

	if prev != nil {
		if err := prev.Close(); err != nil {
			r.logger.Debug("closing superseded connection", "user_id", userID, "error", err)
		}
		r.logger.Info("connection replaced", "user_id", userID)
	}
}

// Unregister removes the user's connection only if it is still conn. A
// reader that noticed its own socket die must not evict the replacement a
// faster reconnect already installed.
func (r *Registry) Unregister(userID int64, conn Connection) {
	r.mu.Lock()
	if r.conns[userID] == conn {
		delete(r.conns, userID)
	}
	r.mu.Unlock()
}

// Notify pushes the event to the user's live connection, if any. A failed
// push evicts and closes the connection: a socket that cannot accept writes
// is dead and the client will reconnect.
func (r *Registry) Notify(ctx context.Context, event types.MealEvent) DeliveryStatus {
	r.mu.Lock()
	conn := r.conns[event.UserID]
	r.mu.Unlock()

	if conn == nil {
		return NotConnected
	}

	if err := conn.Send(ctx, event); err != nil {
		r.Unregister(event.UserID, conn)
		_ = conn.Close()
		r.logger.WarnContext(ctx, "push failed, connection evicted",
			"user_id", event.UserID, "kind", string(event.Kind), "error", err)
		return Failed
	}

	return Delivered
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// CloseAll closes every connection, for graceful shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[int64]Connection)
	r.mu.Unlock()

	for userID, conn := range conns {
		if err := conn.Close(); err != nil {
			r.logger.Debug("closing connection at shutdown", "user_id", userID, "error", err)
		}
	}
}
