package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/timmy/talentscore/internal/logger"
	"github.com/timmy/talentscore/internal/notify"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// EventsHandler streams job events over a websocket.
type EventsHandler struct {
	hub      *notify.Hub
	upgrader websocket.Upgrader
}

// NewEventsHandler creates a websocket handler. checkOrigin decides which
// browser origins may connect; nil allows all.
func NewEventsHandler(hub *notify.Hub, checkOrigin func(origin string) bool) *EventsHandler {
	return &EventsHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || checkOrigin == nil {
					return true
				}
				return checkOrigin(origin)
			},
		},
	}
}

// Stream handles GET /api/v1/events[?job_id=...].
func (h *EventsHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.CtxWarn(ctx, "Websocket upgrade failed: error=%v", err)
		return
	}
	defer conn.Close()

	jobID := c.Query("job_id")
	sub := h.hub.Subscribe(jobID, 0)
	defer sub.Close()
	logger.CtxInfo(ctx, "Websocket subscribed: job_id=%q", jobID)

	// The read side only exists to observe pongs and client close.
	closed := make(chan struct{})
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				logger.CtxDebug(ctx, "Websocket write failed: error=%v", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
