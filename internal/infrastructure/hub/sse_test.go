package hub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSSEConnectionStreamsEvents(t *testing.T) {
	rec := httptest.NewRecorder()

	conn, err := NewSSEConnection(
		context.Background(), "sse-test-1", "alice", rec, 20*time.Millisecond, &mockLogger{})
	if err != nil {
		t.Fatalf("failed to create SSE connection: %v", err)
	}

	if err := conn.Send(NewMessageEvent(map[string]string{"content": "hello"})); err != nil {
		t.Fatalf("failed to enqueue event: %v", err)
	}

	done := make(chan struct{})
	go func() {
		conn.Run()
		close(done)
	}()

	// Let the event and at least one keep-alive tick go out.
	time.Sleep(60 * time.Millisecond)
	conn.Close()
	<-done

	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("expected text/event-stream content type, got %q", got)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "data:") {
		t.Errorf("expected a data frame in stream, got %q", body)
	}
	if !strings.Contains(body, `"type":"message"`) {
		t.Errorf("expected message event in stream, got %q", body)
	}
	if !strings.Contains(body, ": keepalive") {
		t.Errorf("expected keep-alive comment in stream, got %q", body)
	}
}

func TestSSEConnectionSendOverflowCloses(t *testing.T) {
	rec := httptest.NewRecorder()

	conn, err := NewSSEConnection(
		context.Background(), "sse-test-2", "alice", rec, time.Second, &mockLogger{})
	if err != nil {
		t.Fatalf("failed to create SSE connection: %v", err)
	}

	// Nothing drains the queue, so filling it exercises the overflow path.
	for i := 0; i < sendQueueSize; i++ {
		if err := conn.Send(NewMessageEvent(i)); err != nil {
			t.Fatalf("unexpected error filling queue at %d: %v", i, err)
		}
	}

	if err := conn.Send(NewMessageEvent("overflow")); err != ErrSendBufferFull {
		t.Fatalf("expected ErrSendBufferFull, got %v", err)
	}
	if !conn.IsClosed() {
		t.Error("expected connection to be closed after overflow")
	}
	if err := conn.Send(NewMessageEvent("late")); err != ErrConnectionClosed {
		t.Fatalf("expected ErrConnectionClosed after close, got %v", err)
	}
}

type plainResponseWriter struct {
	header http.Header
}

func (w *plainResponseWriter) Header() http.Header        { return w.header }
func (w *plainResponseWriter) Write(b []byte) (int, error) { return len(b), nil }
func (w *plainResponseWriter) WriteHeader(statusCode int)  {}

func TestSSEConnectionRequiresFlusher(t *testing.T) {
	w := &plainResponseWriter{header: http.Header{}}

	_, err := NewSSEConnection(
		context.Background(), "sse-test-3", "alice", w, time.Second, &mockLogger{})
	if err == nil {
		t.Fatal("expected error for a writer without flush support")
	}
}
