package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coderone/termbridge/internal/terminal/manager"
	"github.com/coderone/termbridge/internal/terminal/session"
)

// Handlers is the pull-based polling transport: creation returns
// immediately, and reads destructively drain the server-side output buffer.
type Handlers struct {
	manager *manager.Manager
}

// NewHandlers creates the handler set.
func NewHandlers(mgr *manager.Manager) *Handlers {
	return &Handlers{manager: mgr}
}

// createRequest is the body of POST /sessions.
type createRequest struct {
	Shell string `json:"shell"`
	Cwd   string `json:"cwd"`
	Cols  uint16 `json:"cols"`
	Rows  uint16 `json:"rows"`
}

// writeRequest is the body of POST /sessions/:id/write.
type writeRequest struct {
	Data string `json:"data" binding:"required"`
}

// resizeRequest is the body of POST /sessions/:id/resize.
type resizeRequest struct {
	Cols uint16 `json:"cols" binding:"required"`
	Rows uint16 `json:"rows" binding:"required"`
}

// Health handles the health check.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"sessions": len(h.manager.List()),
	})
}

// CreateSession allocates a new session. Allocation never hard-fails:
// persistent PTY problems surface as mode "mock" plus an advisory warning.
// Only the session pool limit refuses creation.
func (h *Handlers) CreateSession(c *gin.Context) {
	var req createRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	sess, warning, err := h.manager.Create(c.Request.Context(), manager.Options{
		Shell: req.Shell,
		Dir:   req.Cwd,
		Cols:  req.Cols,
		Rows:  req.Rows,
	}, session.OwnerPolling)
	if err != nil {
		if errors.Is(err, manager.ErrSessionLimit) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{
		"sessionId": sess.ID,
		"pid":       sess.Handle.PID(),
		"mode":      sess.Mode,
	}
	if warning != nil {
		resp["warning"] = warning
	}
	c.JSON(http.StatusOK, resp)
}

// WriteSession forwards input to the session's handle.
func (h *Handlers) WriteSession(c *gin.Context) {
	var req writeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.manager.Write(c.Param("id"), []byte(req.Data)); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ReadOutput atomically drains the session's output buffer. Each byte is
// delivered to exactly one caller; the drain is destructive.
func (h *Handlers) ReadOutput(c *gin.Context) {
	output, pid, err := h.manager.Drain(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"output": string(output),
		"pid":    pid,
	})
}

// ResizeSession changes terminal dimensions.
func (h *Handlers) ResizeSession(c *gin.Context) {
	var req resizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.manager.Resize(c.Param("id"), req.Cols, req.Rows); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ListSessions lists metadata for all active sessions.
func (h *Handlers) ListSessions(c *gin.Context) {
	infos := h.manager.List()
	c.JSON(http.StatusOK, gin.H{
		"sessions": infos,
		"count":    len(infos),
	})
}

// CloseSession kills and removes a session.
func (h *Handlers) CloseSession(c *gin.Context) {
	if err := h.manager.Close(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Diagnostics reports platform, PTY availability, and resource-limit hints.
func (h *Handlers) Diagnostics(c *gin.Context) {
	c.JSON(http.StatusOK, h.manager.Diagnostics())
}
