package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocomet/ride-pooling/internal/api/middleware"
	"github.com/gocomet/ride-pooling/pkg/logger"
	"github.com/gocomet/ride-pooling/pkg/websocket"
	"github.com/google/uuid"
)

// HandleWebSocket handles GET /v1/ws. Clients subscribe to rides they are
// allowed to review.
func (h *Handlers) HandleWebSocket(c *gin.Context) {
	if h.Hub == nil {
		h.fail(c, "websocket", time.Now(), errRealTimeDisabled)
		return
	}
	actor := middleware.ActorFrom(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Error("Failed to upgrade to WebSocket", logger.Err(err))
		return
	}

	authorize := func(_, rideID uuid.UUID) bool {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := h.Manager.Review(ctx, actor, rideID)
		return err == nil
	}

	client := websocket.NewClient(h.Hub, conn, actor.UserID, authorize, h.Logger)
	h.Hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
