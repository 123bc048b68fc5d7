package hub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go-chat-stream/internal/infrastructure/logger"
)

// Hub pairs the event broker with the connection registry. Attach and
// Detach are the only paths that touch both, so the set of bus
// subscriptions is always exactly the set of open connections: never
// registered-but-not-subscribed, never subscribed-but-unregistered.
type Hub struct {
	broker   *Broker
	registry *Registry

	// attachMu serializes attach/detach pairs so the two structures
	// cannot drift while a teardown races a registration.
	attachMu sync.Mutex
	subs     map[string]Subscription
	bySub    map[uint64]string

	running   bool
	runningMu sync.RWMutex

	logger logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Hub instance.
func New(log logger.Logger) *Hub {
	return &Hub{
		broker:   NewBroker(log),
		registry: NewRegistry(log),
		subs:     make(map[string]Subscription),
		bySub:    make(map[uint64]string),
		logger:   log.WithField("component", "hub"),
	}
}

// Start starts the hub's background sweep of connections that closed
// without being detached.
func (h *Hub) Start(ctx context.Context) error {
	h.runningMu.Lock()
	defer h.runningMu.Unlock()

	if h.running {
		return fmt.Errorf("hub is already running")
	}

	h.ctx, h.cancel = context.WithCancel(ctx)
	h.running = true

	go h.sweepLoop()

	h.logger.Info("hub started")
	return nil
}

// Stop detaches and closes every live connection and stops the hub.
func (h *Hub) Stop(ctx context.Context) error {
	h.runningMu.Lock()
	defer h.runningMu.Unlock()

	if !h.running {
		return nil
	}

	h.cancel()

	for _, conn := range h.registry.List() {
		h.Detach(conn.ID())
	}

	h.running = false
	h.logger.Info("hub stopped")
	return nil
}

// IsRunning returns true if the hub is currently running.
func (h *Hub) IsRunning() bool {
	h.runningMu.RLock()
	defer h.runningMu.RUnlock()
	return h.running
}

// Attach registers an authenticated connection and subscribes its delivery
// callback, as one unit. Callers must have authenticated the connection
// before calling Attach; the hub never sees unauthenticated sockets.
func (h *Hub) Attach(conn Connection) error {
	if !h.IsRunning() {
		return fmt.Errorf("hub is not running")
	}

	h.attachMu.Lock()
	defer h.attachMu.Unlock()

	if _, exists := h.subs[conn.ID()]; exists {
		return fmt.Errorf("connection %s is already attached", conn.ID())
	}

	h.registry.Register(conn)
	sub := h.broker.Subscribe(conn.Send)
	h.subs[conn.ID()] = sub
	h.bySub[sub.id] = conn.ID()

	// Drive the common teardown path when the transport dies first.
	go func() {
		<-conn.Context().Done()
		h.Detach(conn.ID())
	}()

	return nil
}

// Detach unsubscribes, unregisters, and closes a connection as one unit.
// Closing cancels the connection's keep-alive timer. Detach is idempotent;
// every close path (client disconnect, write failure, keep-alive failure,
// server shutdown) funnels into it exactly once effectively.
func (h *Hub) Detach(connID string) {
	h.attachMu.Lock()

	sub, attached := h.subs[connID]
	if attached {
		h.broker.Unsubscribe(sub)
		delete(h.subs, connID)
		delete(h.bySub, sub.id)
	}

	conn, registered := h.registry.Get(connID)
	if registered {
		h.registry.Unregister(connID)
	}

	// Close touches the network (WebSocket close frame), so it must not
	// run under attachMu: a stalled consumer would block every other
	// attach and detach for the duration of the write deadline.
	h.attachMu.Unlock()

	if registered {
		if err := conn.Close(); err != nil {
			h.logger.Errorf("failed to close connection %s: %v", connID, err)
		}
	}
}

// Publish delivers an event to every attached connection. Failed
// connections are torn down before Publish returns; the caller never sees
// per-subscriber failures.
func (h *Hub) Publish(event *Event) {
	if !h.IsRunning() {
		return
	}

	failed := h.broker.Publish(event)
	for _, sub := range failed {
		h.attachMu.Lock()
		connID, known := h.bySub[sub.id]
		h.attachMu.Unlock()
		if known {
			h.Detach(connID)
		}
	}
}

// GetConnection returns a live connection by id.
func (h *Hub) GetConnection(connID string) (Connection, bool) {
	return h.registry.Get(connID)
}

// GetConnections returns all live connections.
func (h *Hub) GetConnections() []Connection {
	return h.registry.List()
}

// GetConnectionsByTransport returns live connections of one transport.
func (h *Hub) GetConnectionsByTransport(transport string) []Connection {
	return h.registry.ListByTransport(transport)
}

// ConnectionCount returns the number of live connections.
func (h *Hub) ConnectionCount() int {
	return h.registry.Count()
}

// SubscriberCount returns the number of bus subscriptions. It always
// matches ConnectionCount while no attach or detach is in flight.
func (h *Hub) SubscriberCount() int {
	return h.broker.SubscriberCount()
}

// sweepLoop periodically detaches connections that report closed without
// having been torn down, a safety net behind the synchronous close paths.
func (h *Hub) sweepLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, id := range h.registry.closedIDs() {
				h.logger.Infof("sweeping closed connection %s", id)
				h.Detach(id)
			}
		case <-h.ctx.Done():
			h.logger.Info("hub sweep loop stopped")
			return
		}
	}
}
