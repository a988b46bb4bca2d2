package events

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ideaflow/server/internal/middleware"
)

const keepAliveInterval = 25 * time.Second

type Handler struct {
	hub *Hub
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	rg.GET("/events", authMW, h.stream)
}

func (h *Handler) stream(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	id, ch := h.hub.Subscribe(userID)
	defer h.hub.Unsubscribe(userID, id)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(ev.Type, ev)
			return true
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"at": time.Now().Unix()})
			return true
		}
	})
}
