package sse

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"go-chat-stream/internal/infrastructure/auth"
	"go-chat-stream/internal/infrastructure/hub"
	"go-chat-stream/internal/infrastructure/logger"
)

func newTestServer(t *testing.T) (*httptest.Server, *hub.Hub, *auth.TokenAuthenticator) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := &mockLogger{}
	hubInstance := hub.New(log)
	if err := hubInstance.Start(context.Background()); err != nil {
		t.Fatalf("failed to start hub: %v", err)
	}

	authenticator := auth.NewTokenAuthenticator("test-secret", time.Hour, log)

	router := gin.New()
	InitSSERouter(log, hubInstance, authenticator, 20*time.Millisecond, router.Group(""))

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		hubInstance.Stop(context.Background())
	})

	return srv, hubInstance, authenticator
}

func TestStreamRejectsMissingSession(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := srv.Client().Get(srv.URL + "/api/messages/stream")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestStreamDeliversPublishedEvents(t *testing.T) {
	srv, hubInstance, authenticator := newTestServer(t)

	token, err := authenticator.IssueToken("alice", "member", "approved")
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/messages/stream", nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: token})

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("expected text/event-stream, got %q", got)
	}

	waitForConnections(t, hubInstance, 1)

	hubInstance.Publish(hub.NewMessageEvent(map[string]string{"content": "hello"}))

	lines := make(chan string, 64)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatal("stream closed before event was delivered")
			}
			if strings.Contains(line, "data:") && strings.Contains(line, "hello") {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for event on stream")
		}
	}
}

func waitForConnections(t *testing.T, hubInstance *hub.Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hubInstance.ConnectionCount() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d connections, got %d", want, hubInstance.ConnectionCount())
}

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
