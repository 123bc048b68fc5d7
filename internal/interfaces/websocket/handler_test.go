package websocket

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"

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
	InitWebSocketRouter(log, hubInstance, authenticator, 50*time.Millisecond, router.Group(""))

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		hubInstance.Stop(context.Background())
	})

	return srv, hubInstance, authenticator
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
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

func TestConnectRejectsMissingSession(t *testing.T) {
	srv, hubInstance, _ := newTestServer(t)

	conn, resp, err := gorilla.DefaultDialer.Dial(wsURL(srv), nil)
	if err == nil {
		conn.Close()
		t.Fatal("expected handshake to fail without a session cookie")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 response, got %+v", resp)
	}

	// A rejected attempt never becomes a connection: nothing registered,
	// nothing subscribed, and a publish right after reaches no one.
	if hubInstance.ConnectionCount() != 0 {
		t.Errorf("expected 0 connections after rejection, got %d", hubInstance.ConnectionCount())
	}
	hubInstance.Publish(hub.NewMessageEvent(map[string]string{"content": "unheard"}))
	if hubInstance.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers after rejection, got %d", hubInstance.SubscriberCount())
	}
}

func TestConnectedClientReceivesEvents(t *testing.T) {
	srv, hubInstance, authenticator := newTestServer(t)

	token, err := authenticator.IssueToken("alice", "member", "approved")
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	header := http.Header{}
	header.Set("Cookie", auth.SessionCookieName+"="+token)

	conn, _, err := gorilla.DefaultDialer.Dial(wsURL(srv), header)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	defer conn.Close()

	waitForConnections(t, hubInstance, 1)

	hubInstance.Publish(hub.NewMessageEvent(map[string]string{"content": "hello"}))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var received struct {
		Type    string            `json:"type"`
		Payload map[string]string `json:"payload"`
	}
	if err := conn.ReadJSON(&received); err != nil {
		t.Fatalf("failed to read event: %v", err)
	}
	if received.Type != "message" {
		t.Errorf("expected message event, got %q", received.Type)
	}
	if received.Payload["content"] != "hello" {
		t.Errorf("expected payload content hello, got %q", received.Payload["content"])
	}
}

func TestClientCloseDetachesConnection(t *testing.T) {
	srv, hubInstance, authenticator := newTestServer(t)

	token, err := authenticator.IssueToken("bob", "member", "approved")
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	header := http.Header{}
	header.Set("Cookie", auth.SessionCookieName+"="+token)

	conn, _, err := gorilla.DefaultDialer.Dial(wsURL(srv), header)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}

	waitForConnections(t, hubInstance, 1)
	conn.Close()
	waitForConnections(t, hubInstance, 0)

	if hubInstance.SubscriberCount() != 0 {
		t.Errorf("expected no subscribers after detach, got %d", hubInstance.SubscriberCount())
	}
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
