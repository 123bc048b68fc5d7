package hub

import (
	"sync"

	"go-chat-stream/internal/infrastructure/logger"
)

// Registry is the authoritative set of live connections. It is an owned
// object injected into the Hub, not a package-level singleton.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Connection

	logger logger.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log logger.Logger) *Registry {
	return &Registry{
		conns:  make(map[string]Connection),
		logger: log.WithField("component", "registry"),
	}
}

// Register adds a connection to the live set. Registering the same
// connection twice is a no-op.
func (r *Registry) Register(conn Connection) {
	r.mu.Lock()
	_, exists := r.conns[conn.ID()]
	if !exists {
		r.conns[conn.ID()] = conn
	}
	r.mu.Unlock()

	if !exists {
		r.logger.Infof("connection %s registered (transport: %s, user: %s)",
			conn.ID(), conn.Transport(), conn.Identity())
	}
}

// Unregister removes a connection by id. Removal is idempotent.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	_, exists := r.conns[connID]
	delete(r.conns, connID)
	r.mu.Unlock()

	if exists {
		r.logger.Infof("connection %s unregistered", connID)
	}
}

// Get returns a connection by id.
func (r *Registry) Get(connID string) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, exists := r.conns[connID]
	return conn, exists
}

// List returns all live connections.
func (r *Registry) List() []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	return conns
}

// ListByTransport returns the live connections of one transport.
func (r *Registry) ListByTransport(transport string) []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var conns []Connection
	for _, conn := range r.conns {
		if conn.Transport() == transport {
			conns = append(conns, conn)
		}
	}
	return conns
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// closedIDs returns the ids of connections that report themselves closed
// without having gone through Detach yet.
func (r *Registry) closedIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id, conn := range r.conns {
		if conn.IsClosed() {
			ids = append(ids, id)
		}
	}
	return ids
}
