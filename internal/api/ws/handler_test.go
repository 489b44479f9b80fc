package ws

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coderone/termbridge/internal/infrastructure/config"
	"github.com/coderone/termbridge/internal/infrastructure/logging"
	"github.com/coderone/termbridge/internal/infrastructure/monitoring"
	"github.com/coderone/termbridge/internal/infrastructure/resilience"
	"github.com/coderone/termbridge/internal/terminal"
	"github.com/coderone/termbridge/internal/terminal/manager"
	"github.com/coderone/termbridge/internal/terminal/pty"
	"github.com/coderone/termbridge/internal/terminal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testStream struct {
	mgr    *manager.Manager
	server *httptest.Server
	conn   *websocket.Conn
}

// dialTestStream stands up the streaming endpoint on a manager whose
// allocator always fails, dials it, and consumes the system greeting.
func dialTestStream(t *testing.T) *testStream {
	t.Helper()

	return dialTestStreamWith(t, func(spec pty.Spec) (terminal.Handle, error) {
		return nil, errors.New("forkpty: resource temporarily unavailable")
	})
}

// dialTestStreamWith does the same with a caller-supplied allocator.
func dialTestStreamWith(t *testing.T, allocate func(pty.Spec) (terminal.Handle, error)) *testStream {
	t.Helper()

	policy := resilience.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	factory := pty.NewWithAllocator(policy, logging.NewNop(), monitoring.NewMetrics(), allocate)

	mgr := manager.New(factory, session.NewRegistry(), config.Default().Terminal, logging.NewNop(), monitoring.NewMetrics())
	handler := NewHandler(mgr, logging.NewNop(), monitoring.NewMetrics())

	router := gin.New()
	router.GET("/terminal", handler.HandleConnection)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/terminal"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	ts := &testStream{mgr: mgr, server: server, conn: conn}
	greeting := ts.read(t)
	require.Equal(t, "system", greeting["type"])
	return ts
}

func (ts *testStream) send(t *testing.T, msg Message) {
	t.Helper()
	require.NoError(t, ts.conn.WriteJSON(msg))
}

func (ts *testStream) read(t *testing.T) map[string]any {
	t.Helper()
	ts.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg map[string]any
	require.NoError(t, ts.conn.ReadJSON(&msg))
	return msg
}

// readUntil skips frames until one of the wanted type arrives.
func (ts *testStream) readUntil(t *testing.T, wantType string) map[string]any {
	t.Helper()
	for {
		msg := ts.read(t)
		if msg["type"] == wantType {
			return msg
		}
	}
}

func createStreamSession(t *testing.T, ts *testStream) string {
	t.Helper()
	ts.send(t, Message{Type: "create", Cwd: "/tmp"})
	created := ts.readUntil(t, "created")
	id, ok := created["sessionId"].(string)
	require.True(t, ok)
	require.NotEmpty(t, id)
	return id
}

func TestCreateStreamsSessionAndWarning(t *testing.T) {
	ts := dialTestStream(t)

	ts.send(t, Message{Type: "create", Cwd: "/tmp"})
	created := ts.readUntil(t, "created")
	assert.NotEmpty(t, created["sessionId"])
	assert.Greater(t, created["pid"].(float64), float64(0))
	assert.Equal(t, "mock", created["mode"])

	warning := ts.readUntil(t, "warning")
	assert.NotEmpty(t, warning["message"])
	assert.NotEmpty(t, warning["hint"])
}

func TestInputEchoesOutputInOrder(t *testing.T) {
	ts := dialTestStream(t)
	id := createStreamSession(t, ts)

	ts.send(t, Message{Type: "input", SessionID: id, Data: "echo hi\n"})

	var collected strings.Builder
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		msg := ts.readUntil(t, "output")
		assert.Equal(t, id, msg["sessionId"])
		collected.WriteString(msg["data"].(string))
		if strings.Contains(collected.String(), "hi") {
			return
		}
	}
	t.Fatalf("never saw echoed input, got %q", collected.String())
}

func TestSecondCreateOnSameConnectionFails(t *testing.T) {
	ts := dialTestStream(t)
	createStreamSession(t, ts)

	ts.send(t, Message{Type: "create", Cwd: "/tmp"})
	errMsg := ts.readUntil(t, "error")
	assert.Contains(t, errMsg["message"], "already owns a session")
}

func TestAttachAlwaysRefused(t *testing.T) {
	ts := dialTestStream(t)
	id := createStreamSession(t, ts)

	other := dialTestStream(t)
	other.send(t, Message{Type: "attach", SessionID: id})
	errMsg := other.readUntil(t, "error")
	assert.Contains(t, errMsg["message"], "owned by another transport")
}

func TestInputWithoutSession(t *testing.T) {
	ts := dialTestStream(t)

	ts.send(t, Message{Type: "input", Data: "ls\n"})
	errMsg := ts.readUntil(t, "error")
	assert.Contains(t, errMsg["message"], "no session attached")
}

func TestPing(t *testing.T) {
	ts := dialTestStream(t)

	ts.send(t, Message{Type: "ping"})
	pong := ts.readUntil(t, "pong")
	assert.Equal(t, "pong", pong["type"])
}

func TestUnknownMessageType(t *testing.T) {
	ts := dialTestStream(t)

	ts.send(t, Message{Type: "bogus"})
	errMsg := ts.readUntil(t, "error")
	assert.Contains(t, errMsg["message"], "unknown message type")
}

// scriptedHandle is a handle whose output and exit timing the test controls.
type scriptedHandle struct {
	pid  int
	data chan []byte
	exit chan terminal.ExitStatus
}

func (h *scriptedHandle) PID() int                         { return h.pid }
func (h *scriptedHandle) Write(p []byte) (int, error)      { return len(p), nil }
func (h *scriptedHandle) Resize(cols, rows uint16) error   { return nil }
func (h *scriptedHandle) Kill() error                      { return nil }
func (h *scriptedHandle) Data() <-chan []byte              { return h.data }
func (h *scriptedHandle) Exit() <-chan terminal.ExitStatus { return h.exit }

func TestExitFrameCarriesRealStatus(t *testing.T) {
	h := &scriptedHandle{pid: 4242, data: make(chan []byte), exit: make(chan terminal.ExitStatus, 1)}
	ts := dialTestStreamWith(t, func(spec pty.Spec) (terminal.Handle, error) { return h, nil })

	ts.send(t, Message{Type: "create", Cwd: "/tmp"})
	created := ts.readUntil(t, "created")
	assert.Equal(t, "real", created["mode"])
	id := created["sessionId"].(string)

	// Output closes before the status is known, the way a real PTY reader
	// hits EOF ahead of the process reaper
	close(h.data)
	go func() {
		time.Sleep(30 * time.Millisecond)
		h.exit <- terminal.ExitStatus{Code: 7}
	}()

	exitMsg := ts.readUntil(t, "exit")
	assert.Equal(t, id, exitMsg["sessionId"])
	assert.Equal(t, float64(7), exitMsg["code"])

	assert.Eventually(t, func() bool {
		_, ok := ts.mgr.Get(id)
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestDisconnectTearsDownSession(t *testing.T) {
	ts := dialTestStream(t)
	id := createStreamSession(t, ts)

	_, ok := ts.mgr.Get(id)
	require.True(t, ok)

	ts.conn.Close()

	assert.Eventually(t, func() bool {
		_, ok := ts.mgr.Get(id)
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}
