package hub

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"go-chat-stream/internal/infrastructure/logger"
)

func TestHub_StartStop(t *testing.T) {
	h := New(&mockLogger{})
	ctx := context.Background()

	if err := h.Start(ctx); err != nil {
		t.Fatalf("failed to start hub: %v", err)
	}
	if !h.IsRunning() {
		t.Error("hub should be running after start")
	}
	if err := h.Start(ctx); err == nil {
		t.Error("starting a running hub should fail")
	}

	if err := h.Stop(ctx); err != nil {
		t.Fatalf("failed to stop hub: %v", err)
	}
	if h.IsRunning() {
		t.Error("hub should not be running after stop")
	}
}

func TestBroker_FanOutPreservesOrder(t *testing.T) {
	b := NewBroker(&mockLogger{})

	var got []EventType
	b.Subscribe(func(e *Event) error {
		got = append(got, e.Type)
		return nil
	})

	b.Publish(NewMessageEvent(nil))
	b.Publish(NewTypingEvent(nil))

	if len(got) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(got))
	}
	if got[0] != EventTypeMessage || got[1] != EventTypeTyping {
		t.Errorf("events delivered out of order: %v", got)
	}
}

func TestBroker_UnsubscribeStopsDelivery(t *testing.T) {
	b := NewBroker(&mockLogger{})

	delivered := 0
	sub := b.Subscribe(func(e *Event) error {
		delivered++
		return nil
	})

	b.Publish(NewMessageEvent(nil))
	b.Unsubscribe(sub)
	b.Publish(NewMessageEvent(nil))

	if delivered != 1 {
		t.Errorf("expected 1 delivery before unsubscribe, got %d", delivered)
	}

	// Unsubscribing twice is a no-op, not an error.
	b.Unsubscribe(sub)
	if b.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers, got %d", b.SubscriberCount())
	}
}

func TestBroker_FailingSubscriberIsIsolated(t *testing.T) {
	b := NewBroker(&mockLogger{})

	b.Subscribe(func(e *Event) error {
		return errors.New("socket write failed")
	})

	healthy := 0
	b.Subscribe(func(e *Event) error {
		healthy++
		return nil
	})

	failed := b.Publish(NewMessageEvent(nil))

	if healthy != 1 {
		t.Errorf("healthy subscriber should receive the event, got %d deliveries", healthy)
	}
	if len(failed) != 1 {
		t.Fatalf("expected 1 failed subscription, got %d", len(failed))
	}
	if b.SubscriberCount() != 1 {
		t.Errorf("failing subscriber should be removed, count = %d", b.SubscriberCount())
	}

	// The failed subscriber receives nothing further.
	b.Publish(NewMessageEvent(nil))
	if healthy != 2 {
		t.Errorf("expected 2 deliveries to healthy subscriber, got %d", healthy)
	}
}

func TestHub_AttachDetachKeepRegistryAndBusInSync(t *testing.T) {
	h := New(&mockLogger{})
	ctx := context.Background()
	h.Start(ctx)
	defer h.Stop(ctx)

	conn := newMockConnection("conn-1")
	if err := h.Attach(conn); err != nil {
		t.Fatalf("failed to attach connection: %v", err)
	}

	if h.ConnectionCount() != 1 || h.SubscriberCount() != 1 {
		t.Errorf("expected 1/1 after attach, got %d/%d",
			h.ConnectionCount(), h.SubscriberCount())
	}

	if err := h.Attach(conn); err == nil {
		t.Error("attaching the same connection twice should fail")
	}

	h.Detach(conn.ID())

	if h.ConnectionCount() != 0 || h.SubscriberCount() != 0 {
		t.Errorf("expected 0/0 after detach, got %d/%d",
			h.ConnectionCount(), h.SubscriberCount())
	}
	if !conn.IsClosed() {
		t.Error("detach should close the connection")
	}

	// Detach is idempotent.
	h.Detach(conn.ID())
}

func TestHub_PublishReachesAttachedConnections(t *testing.T) {
	h := New(&mockLogger{})
	ctx := context.Background()
	h.Start(ctx)
	defer h.Stop(ctx)

	conn1 := newMockConnection("conn-1")
	conn2 := newMockConnection("conn-2")
	h.Attach(conn1)
	h.Attach(conn2)

	h.Publish(NewMessageEvent(map[string]any{"id": "msg_1", "channel_id": "ch_1"}))

	if conn1.eventCount() != 1 {
		t.Errorf("conn1 should have received 1 event, got %d", conn1.eventCount())
	}
	if conn2.eventCount() != 1 {
		t.Errorf("conn2 should have received 1 event, got %d", conn2.eventCount())
	}
}

func TestHub_DetachedConnectionReceivesNothing(t *testing.T) {
	h := New(&mockLogger{})
	ctx := context.Background()
	h.Start(ctx)
	defer h.Stop(ctx)

	conn := newMockConnection("conn-1")
	h.Attach(conn)
	h.Publish(NewMessageEvent(nil))
	h.Detach(conn.ID())
	h.Publish(NewMessageEvent(nil))

	if conn.eventCount() != 1 {
		t.Errorf("detached connection should not receive events, got %d", conn.eventCount())
	}
}

func TestHub_WriteFailureTearsDownBothSides(t *testing.T) {
	h := New(&mockLogger{})
	ctx := context.Background()
	h.Start(ctx)
	defer h.Stop(ctx)

	bad := newMockConnection("bad")
	bad.sendErr = errors.New("broken pipe")
	good := newMockConnection("good")
	h.Attach(bad)
	h.Attach(good)

	h.Publish(NewMessageEvent(nil))

	if good.eventCount() != 1 {
		t.Errorf("healthy connection should receive the event, got %d", good.eventCount())
	}
	if _, exists := h.GetConnection("bad"); exists {
		t.Error("failed connection should be gone from the registry")
	}
	if h.ConnectionCount() != 1 || h.SubscriberCount() != 1 {
		t.Errorf("expected 1/1 after teardown, got %d/%d",
			h.ConnectionCount(), h.SubscriberCount())
	}
	if !bad.IsClosed() {
		t.Error("failed connection should be closed")
	}
}

func TestHub_DetachDoesNotBlockOnSlowClose(t *testing.T) {
	h := New(&mockLogger{})
	ctx := context.Background()
	h.Start(ctx)
	defer h.Stop(ctx)

	slow := newMockConnection("slow")
	slow.closeGate = make(chan struct{})
	h.Attach(slow)

	detachDone := make(chan struct{})
	go func() {
		h.Detach(slow.ID())
		close(detachDone)
	}()

	// A close stalled on the network must not hold up unrelated
	// attaches or deliveries.
	other := newMockConnection("other")
	attached := make(chan error, 1)
	go func() { attached <- h.Attach(other) }()

	select {
	case err := <-attached:
		if err != nil {
			t.Fatalf("failed to attach unrelated connection: %v", err)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("attach of an unrelated connection blocked behind a stalled close")
	}

	h.Publish(NewMessageEvent(nil))
	if other.eventCount() != 1 {
		t.Errorf("unrelated connection should receive the event, got %d", other.eventCount())
	}

	close(slow.closeGate)
	<-detachDone

	if !slow.IsClosed() {
		t.Error("stalled connection should still end up closed")
	}
}

func TestHub_StopClosesAllConnections(t *testing.T) {
	h := New(&mockLogger{})
	ctx := context.Background()
	h.Start(ctx)

	conn := newMockConnection("conn-1")
	h.Attach(conn)

	if err := h.Stop(ctx); err != nil {
		t.Fatalf("failed to stop hub: %v", err)
	}
	if !conn.IsClosed() {
		t.Error("stop should close live connections")
	}
	if h.ConnectionCount() != 0 {
		t.Errorf("expected 0 connections after stop, got %d", h.ConnectionCount())
	}
}

func TestEvent_Validate(t *testing.T) {
	if err := NewMessageEvent(map[string]string{"id": "msg_1"}).Validate(); err != nil {
		t.Errorf("valid event should pass validation: %v", err)
	}
	if err := (&Event{Type: "bogus"}).Validate(); err == nil {
		t.Error("unknown event type should fail validation")
	}
	if err := (&Event{Type: EventTypeMessage, Payload: make(chan int)}).Validate(); err == nil {
		t.Error("unserializable payload should fail validation")
	}
}

// Mock implementations for testing

type mockLogger struct{}

func (m *mockLogger) Debug(msg string)                              {}
func (m *mockLogger) Debugf(format string, args ...any)             {}
func (m *mockLogger) Info(msg string)                               {}
func (m *mockLogger) Infof(format string, args ...any)              {}
func (m *mockLogger) Warn(msg string)                               {}
func (m *mockLogger) Warnf(format string, args ...any)              {}
func (m *mockLogger) Error(msg string)                              {}
func (m *mockLogger) Errorf(format string, args ...any)             {}
func (m *mockLogger) Fatal(msg string)                              {}
func (m *mockLogger) Fatalf(format string, args ...any)             {}
func (m *mockLogger) WithField(key string, value any) logger.Logger { return m }
func (m *mockLogger) WithFields(fields logger.Fields) logger.Logger { return m }
func (m *mockLogger) WithContext(ctx context.Context) logger.Logger { return m }
func (m *mockLogger) SetLevel(level logger.Level)                   {}
func (m *mockLogger) SetOutput(output io.Writer)                    {}

type mockConnection struct {
	id       string
	identity string
	ctx      context.Context
	cancel   context.CancelFunc
	sendErr  error

	// closeGate, when set, makes Close block until the gate is closed,
	// standing in for a close-frame write to a stalled peer.
	closeGate chan struct{}

	mu       sync.Mutex
	closed   bool
	received []*Event
}

func newMockConnection(id string) *mockConnection {
	ctx, cancel := context.WithCancel(context.Background())
	return &mockConnection{id: id, identity: "tester", ctx: ctx, cancel: cancel}
}

func (m *mockConnection) ID() string        { return m.id }
func (m *mockConnection) Transport() string { return "mock" }
func (m *mockConnection) Identity() string  { return m.identity }

func (m *mockConnection) Send(event *Event) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.mu.Lock()
	m.received = append(m.received, event)
	m.mu.Unlock()
	return nil
}

func (m *mockConnection) Close() error {
	if m.closeGate != nil {
		<-m.closeGate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		m.cancel()
	}
	return nil
}

func (m *mockConnection) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *mockConnection) Context() context.Context { return m.ctx }

func (m *mockConnection) eventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.received)
}
