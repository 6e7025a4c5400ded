package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocomet/ride-pooling/internal/api/dto"
	"github.com/gocomet/ride-pooling/internal/api/middleware"
	"github.com/gocomet/ride-pooling/internal/service/lifecycle"
	"github.com/gocomet/ride-pooling/pkg/cache"
	apperrors "github.com/gocomet/ride-pooling/pkg/errors"
	"github.com/gocomet/ride-pooling/pkg/logger"
	"github.com/gocomet/ride-pooling/pkg/monitoring"
	"github.com/gocomet/ride-pooling/pkg/websocket"
	"github.com/google/uuid"
	gorilla "github.com/gorilla/websocket"
)

// IdempotencyHeader lets clients retry a mutating request safely
const IdempotencyHeader = "Idempotency-Key"

// Notifier forwards committed events to the notice service
type Notifier interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// Handlers holds all handler dependencies. Idempotency, Hub and Notices are
// optional.
type Handlers struct {
	Manager     *lifecycle.Manager
	Idempotency *cache.Idempotency
	Hub         *websocket.Hub
	Notices     Notifier
	NewRelic    *monitoring.NewRelicApp
	Logger      *logger.Logger
	upgrader    gorilla.Upgrader
}

// NewHandlers creates a new Handlers instance
func NewHandlers(manager *lifecycle.Manager, idem *cache.Idempotency, hub *websocket.Hub, notices Notifier, nr *monitoring.NewRelicApp, log *logger.Logger, readBuffer, writeBuffer int) *Handlers {
	return &Handlers{
		Manager:     manager,
		Idempotency: idem,
		Hub:         hub,
		Notices:     notices,
		NewRelic:    nr,
		Logger:      log,
		upgrader: gorilla.Upgrader{
			ReadBufferSize:  readBuffer,
			WriteBufferSize: writeBuffer,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

var errRealTimeDisabled = apperrors.ServiceUnavailable("Real-time updates are disabled", nil)

type operation func(ctx context.Context, actor lifecycle.Actor) (*lifecycle.Outcome, error)

// mutate runs a lifecycle operation for the authenticated actor, replays
// the stored response of a repeated Idempotency-Key and fans the committed
// events out.
func (h *Handlers) mutate(c *gin.Context, op string, status int, fn operation) {
	start := time.Now()
	ctx := c.Request.Context()
	actor := middleware.ActorFrom(c)

	key := ""
	if clientKey := c.GetHeader(IdempotencyHeader); clientKey != "" && h.Idempotency != nil {
		key = cache.Key(actor.UserID.String(), c.FullPath()+":"+c.Param("id"), clientKey)
		stored, proceed, err := h.Idempotency.Begin(ctx, key)
		switch {
		case errors.Is(err, cache.ErrInFlight):
			h.fail(c, op, start, apperrors.ErrDuplicateRequest)
			return
		case err != nil:
			h.Logger.Warn("Idempotency store unavailable, running request without it",
				logger.String("operation", op),
				logger.Err(err),
			)
			key = ""
		case !proceed:
			c.Header("Idempotent-Replayed", "true")
			c.Data(stored.Status, "application/json; charset=utf-8", stored.Body)
			return
		}
	}

	out, err := fn(ctx, actor)
	if err != nil {
		if key != "" {
			if abortErr := h.Idempotency.Abort(ctx, key); abortErr != nil {
				h.Logger.Warn("Failed to release idempotency key", logger.Err(abortErr))
			}
		}
		h.fail(c, op, start, err)
		return
	}

	h.fanOut(ctx, actor, out)
	if key != "" {
		if err := h.Idempotency.Finish(ctx, key, status, out); err != nil {
			h.Logger.Warn("Failed to store idempotent response", logger.Err(err))
		}
	}
	h.NewRelic.RecordOperation(op, time.Since(start), "")
	c.JSON(status, out)
}

// fanOut publishes committed events to ride subscribers, the notice
// exchange and New Relic. Failures here never undo the commit.
func (h *Handlers) fanOut(ctx context.Context, actor lifecycle.Actor, out *lifecycle.Outcome) {
	for _, ev := range out.Events {
		membershipID := ""
		if ev.MembershipID != nil {
			membershipID = ev.MembershipID.String()
		}
		h.NewRelic.RecordLifecycleEvent(string(ev.Type), ev.RideID.String(), membershipID, string(ev.Status))

		if h.Hub != nil {
			h.Hub.BroadcastToRide(ev.RideID, websocket.Message{Type: string(ev.Type), Data: ev})
		}
		if h.Notices != nil {
			if err := h.Notices.Publish(ctx, string(ev.Type), ev); err != nil {
				h.Logger.Error("Failed to publish notice",
					logger.String("event", string(ev.Type)),
					logger.RideID(ev.RideID),
					logger.Err(err),
				)
			}
		}
	}

	// keep the caller's other sessions in step
	if h.Hub != nil && actor.UserID != uuid.Nil && len(out.Events) > 0 {
		h.Hub.SendToUser(actor.UserID, websocket.Message{Type: "outcome", Data: out})
	}
}

func (h *Handlers) fail(c *gin.Context, op string, start time.Time, err error) {
	appErr := apperrors.GetAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.Logger.Error("Request failed",
			logger.String("operation", op),
			logger.String("path", c.FullPath()),
			logger.Err(err),
		)
	}
	h.NewRelic.RecordOperation(op, time.Since(start), appErr.Code)
	c.JSON(appErr.Status, dto.ErrorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
	})
}

// bindJSON decodes the body, answering 400 on failure
func (h *Handlers) bindJSON(c *gin.Context, op string, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		h.fail(c, op, time.Now(), apperrors.Validation("Invalid request payload", err).WithDetail("body", err.Error()))
		return false
	}
	return true
}

// pathID parses the :id path parameter, answering 400 on failure
func (h *Handlers) pathID(c *gin.Context, op string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.fail(c, op, time.Now(), apperrors.Validation("Invalid id", err).WithDetail("id", c.Param("id")))
		return uuid.Nil, false
	}
	return id, true
}
