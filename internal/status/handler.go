package status

import (
	"net/http"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"underwriting-backend/internal/shared/telemetry"
)

const defaultKeepAlive = 15 * time.Second

// Handler streams hub events as server-sent events.
type Handler struct {
	Hub       *Hub
	KeepAlive time.Duration
}

// RegisterRoutes wires GET /status.
func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/status", h.stream)
}

func (h *Handler) stream(c *gin.Context) {
	requestID := c.Query("request_id")
	sub := h.Hub.Subscribe(requestID)
	defer sub.Close()

	w := c.Writer
	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	w.WriteString(": connected\n\n")
	w.Flush()

	telemetry.Info("status.subscribe", map[string]any{
		"request_id":  c.GetString("requestId"),
		"filter":      requestID,
		"subscribers": h.Hub.SubscriberCount(),
	})

	keepAlive := h.KeepAlive
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.WriteString(": keep-alive\n\n"); err != nil {
				return
			}
			w.Flush()
		case <-sub.Ready():
			for _, ev := range sub.Drain() {
				if err := sse.Encode(w, sse.Event{Data: ev}); err != nil {
					return
				}
			}
			w.Flush()
		}
	}
}
