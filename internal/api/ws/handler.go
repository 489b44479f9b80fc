package ws

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/coderone/termbridge/internal/infrastructure/logging"
	"github.com/coderone/termbridge/internal/infrastructure/monitoring"
	"github.com/coderone/termbridge/internal/terminal/manager"
	"github.com/coderone/termbridge/internal/terminal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in dev
	},
}

// Message is the JSON frame exchanged over the streaming channel.
type Message struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      string `json:"data,omitempty"`
	Shell     string `json:"shell,omitempty"`
	Cwd       string `json:"cwd,omitempty"`
	Cols      uint16 `json:"cols,omitempty"`
	Rows      uint16 `json:"rows,omitempty"`
}

// Handler manages streaming WebSocket connections. Each connection owns at
// most one session; on disconnect the session is killed and removed — there
// is no reconnect or resume path.
type Handler struct {
	manager *manager.Manager
	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// NewHandler creates a new streaming handler.
func NewHandler(mgr *manager.Manager, logger *logging.Logger, metrics *monitoring.Metrics) *Handler {
	return &Handler{
		manager: mgr,
		logger:  logger,
		metrics: metrics,
	}
}

// conn wraps a websocket connection with a write lock: the read loop and the
// output forwarder both send frames.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) send(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}

// HandleConnection upgrades the request and runs the message loop.
func (h *Handler) HandleConnection(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	connID := uuid.NewString()
	h.metrics.WSConnections.Inc()
	defer h.metrics.WSConnections.Dec()

	cn := &conn{ws: ws}
	defer ws.Close()

	cn.send(map[string]interface{}{
		"type":    "system",
		"message": "connected to terminal stream",
	})

	var sess *session.Session
	defer func() {
		// Sole owner: disconnect tears the session down
		if sess != nil {
			h.manager.Close(sess.ID)
		}
	}()

	for {
		var msg Message
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case "create":
			if sess != nil {
				h.sendError(cn, "connection already owns a session")
				continue
			}
			sess = h.handleCreate(c, cn, connID, msg)
		case "attach":
			// Every live session is owned by its creating transport; there
			// is no reattach path
			h.sendError(cn, "session is owned by another transport")
		case "input":
			if sess == nil {
				h.sendError(cn, "no session attached")
				continue
			}
			if err := h.manager.Write(sess.ID, []byte(msg.Data)); err != nil {
				h.sendError(cn, err.Error())
			}
		case "resize":
			if sess == nil {
				h.sendError(cn, "no session attached")
				continue
			}
			if err := h.manager.Resize(sess.ID, msg.Cols, msg.Rows); err != nil {
				h.sendError(cn, err.Error())
			}
		case "ping":
			cn.send(map[string]interface{}{"type": "pong"})
		default:
			h.sendError(cn, "unknown message type")
		}
	}
}

// handleCreate allocates a session owned by this connection and starts the
// output forwarder.
func (h *Handler) handleCreate(c *gin.Context, cn *conn, connID string, msg Message) *session.Session {
	sess, warning, err := h.manager.Create(c.Request.Context(), manager.Options{
		Shell: msg.Shell,
		Dir:   msg.Cwd,
		Cols:  msg.Cols,
		Rows:  msg.Rows,
	}, session.StreamOwner(connID))
	if err != nil {
		h.sendError(cn, err.Error())
		return nil
	}

	cn.send(map[string]interface{}{
		"type":      "created",
		"sessionId": sess.ID,
		"pid":       sess.Handle.PID(),
		"mode":      sess.Mode,
	})
	if warning != nil {
		cn.send(map[string]interface{}{
			"type":    "warning",
			"message": warning.Message,
			"hint":    warning.Hint,
		})
	}

	go h.forward(cn, sess)
	return sess
}

// forward pushes process output to the connection strictly in arrival order,
// then reports the exit event and removes the session.
func (h *Handler) forward(cn *conn, sess *session.Session) {
	for chunk := range sess.Handle.Data() {
		sess.Touch()
		h.metrics.BytesOut.Add(float64(len(chunk)))
		if err := cn.send(map[string]interface{}{
			"type":      "output",
			"sessionId": sess.ID,
			"data":      string(chunk),
		}); err != nil {
			// Connection is gone; the read loop's deferred close handles
			// session teardown
			return
		}
	}

	// Data closing precedes the status send; every handle delivers the
	// status exactly once on a buffered channel, so this receive never hangs.
	status := <-sess.Handle.Exit()

	cn.send(map[string]interface{}{
		"type":      "exit",
		"sessionId": sess.ID,
		"code":      status.Code,
		"signal":    status.Signal,
	})
	h.manager.HandleExited(sess.ID, status)
}

func (h *Handler) sendError(cn *conn, msg string) {
	cn.send(map[string]interface{}{
		"type":    "error",
		"message": msg,
	})
}
