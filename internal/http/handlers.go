package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"termserve/internal/registry"
	"termserve/internal/terminal"
)

// Handlers contains all debug HTTP handlers
type Handlers struct {
	registry *registry.Registry
}

// NewHandlers creates a new handler set
func NewHandlers(reg *registry.Registry) *Handlers {
	return &Handlers{registry: reg}
}

// Root handles health check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "termserve",
		"version": "0.1.0",
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"sessions": gin.H{"active": h.registry.Count()},
	})
}

// ListSessions lists all live terminal sessions
func (h *Handlers) ListSessions(c *gin.Context) {
	sessions := h.registry.List()

	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"stats":    gin.H{"active": len(sessions)},
	})
}

// GetSession gets details of a specific session
func (h *Handlers) GetSession(c *gin.Context) {
	id, err := parseSessionID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tc, ok := h.registry.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	info := registry.Info{
		ID:          tc.ID().String(),
		Open:        tc.IsOpen(),
		Environment: tc.String(),
	}
	if u, ok := tc.Env().User(); ok {
		info.User = u.String()
	}

	c.JSON(http.StatusOK, info)
}

// CloseSession force-closes a live session
func (h *Handlers) CloseSession(c *gin.Context) {
	id, err := parseSessionID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tc, ok := h.registry.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	if err := tc.Exit(nil); err != nil && err != terminal.ErrClosed {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"session_id": id.String(),
	})
}

func parseSessionID(raw string) (terminal.ID, error) {
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return terminal.ID(n), nil
}
