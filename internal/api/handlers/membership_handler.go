package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gocomet/ride-pooling/internal/api/dto"
	"github.com/gocomet/ride-pooling/internal/domain/membership"
	"github.com/gocomet/ride-pooling/internal/service/lifecycle"
	"github.com/google/uuid"
)

// idOp is a lifecycle operation on one ride or membership without a body
type idOp func(ctx context.Context, actor lifecycle.Actor, id uuid.UUID) (*lifecycle.Outcome, error)

func (h *Handlers) onID(c *gin.Context, op string, fn idOp) {
	id, ok := h.pathID(c, op)
	if !ok {
		return
	}
	h.mutate(c, op, http.StatusOK, func(ctx context.Context, actor lifecycle.Actor) (*lifecycle.Outcome, error) {
		return fn(ctx, actor, id)
	})
}

// Apply handles POST /v1/rides/:id/applications
func (h *Handlers) Apply(c *gin.Context) {
	rideID, ok := h.pathID(c, "apply")
	if !ok {
		return
	}
	var req dto.ApplyRequest
	if !h.bindJSON(c, "apply", &req) {
		return
	}

	h.mutate(c, "apply", http.StatusCreated, func(ctx context.Context, actor lifecycle.Actor) (*lifecycle.Outcome, error) {
		return h.Manager.Apply(ctx, actor, rideID, req.RiderID, req.Terms)
	})
}

// UpdateApplication handles PUT /v1/memberships/:id/application
func (h *Handlers) UpdateApplication(c *gin.Context) {
	id, ok := h.pathID(c, "update_application")
	if !ok {
		return
	}
	var req dto.UpdateApplicationRequest
	if !h.bindJSON(c, "update_application", &req) {
		return
	}

	h.mutate(c, "update_application", http.StatusOK, func(ctx context.Context, actor lifecycle.Actor) (*lifecycle.Outcome, error) {
		return h.Manager.UpdateApplication(ctx, actor, id, req.Terms)
	})
}

// CancelApplication handles DELETE /v1/memberships/:id/application
func (h *Handlers) CancelApplication(c *gin.Context) {
	h.onID(c, "cancel_application", h.Manager.CancelApplication)
}

// Save handles POST /v1/rides/:id/saves
func (h *Handlers) Save(c *gin.Context) {
	rideID, ok := h.pathID(c, "save")
	if !ok {
		return
	}
	var req dto.SaveRequest
	if !h.bindJSON(c, "save", &req) {
		return
	}

	h.mutate(c, "save", http.StatusCreated, func(ctx context.Context, actor lifecycle.Actor) (*lifecycle.Outcome, error) {
		return h.Manager.Save(ctx, actor, rideID, req.RiderID)
	})
}

// Unsave handles DELETE /v1/memberships/:id/save
func (h *Handlers) Unsave(c *gin.Context) {
	h.onID(c, "unsave", h.Manager.Unsave)
}

// Admit handles POST /v1/memberships/:id/admit. The body is optional.
func (h *Handlers) Admit(c *gin.Context) {
	id, ok := h.pathID(c, "admit")
	if !ok {
		return
	}
	var req dto.AdmitRequest
	if c.Request.ContentLength > 0 && !h.bindJSON(c, "admit", &req) {
		return
	}

	opts := lifecycle.AdmitOptions{AcceptRequest: req.AcceptRequest, AsAdmin: req.AsAdmin}
	h.mutate(c, "admit", http.StatusOK, func(ctx context.Context, actor lifecycle.Actor) (*lifecycle.Outcome, error) {
		return h.Manager.Admit(ctx, actor, id, opts)
	})
}

// Deny handles POST /v1/memberships/:id/deny
func (h *Handlers) Deny(c *gin.Context) {
	h.onID(c, "deny", h.Manager.Deny)
}

// Expel handles POST /v1/memberships/:id/expel
func (h *Handlers) Expel(c *gin.Context) {
	id, ok := h.pathID(c, "expel")
	if !ok {
		return
	}
	var req dto.ExpelRequest
	if c.Request.ContentLength > 0 && !h.bindJSON(c, "expel", &req) {
		return
	}

	h.mutate(c, "expel", http.StatusOK, func(ctx context.Context, actor lifecycle.Actor) (*lifecycle.Outcome, error) {
		return h.Manager.Expel(ctx, actor, id, membership.Status(req.Status))
	})
}

// Leave handles POST /v1/memberships/:id/leave
func (h *Handlers) Leave(c *gin.Context) {
	h.onID(c, "leave", h.Manager.Leave)
}

// KillOff handles POST /v1/admin/memberships/:id/kill-off
func (h *Handlers) KillOff(c *gin.Context) {
	h.onID(c, "kill_off", h.Manager.KillOff)
}
