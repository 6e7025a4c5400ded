package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gocomet/ride-pooling/internal/api/dto"
	"github.com/gocomet/ride-pooling/internal/service/lifecycle"
	"github.com/google/uuid"
)

// CreateRider handles POST /v1/riders
func (h *Handlers) CreateRider(c *gin.Context) {
	var req dto.RiderRequest
	if !h.bindJSON(c, "create_rider", &req) {
		return
	}

	h.mutate(c, "create_rider", http.StatusCreated, func(ctx context.Context, actor lifecycle.Actor) (*lifecycle.Outcome, error) {
		return h.Manager.CreateRider(ctx, actor, req.ToRider(uuid.Nil))
	})
}

// UpdateRider handles PUT /v1/riders/:id
func (h *Handlers) UpdateRider(c *gin.Context) {
	id, ok := h.pathID(c, "update_rider")
	if !ok {
		return
	}
	var req dto.RiderRequest
	if !h.bindJSON(c, "update_rider", &req) {
		return
	}

	h.mutate(c, "update_rider", http.StatusOK, func(ctx context.Context, actor lifecycle.Actor) (*lifecycle.Outcome, error) {
		return h.Manager.UpdateRider(ctx, actor, req.ToRider(id))
	})
}

// DeleteRider handles DELETE /v1/riders/:id
func (h *Handlers) DeleteRider(c *gin.Context) {
	id, ok := h.pathID(c, "delete_riders")
	if !ok {
		return
	}

	h.mutate(c, "delete_riders", http.StatusOK, func(ctx context.Context, actor lifecycle.Actor) (*lifecycle.Outcome, error) {
		return h.Manager.DeleteRiders(ctx, actor, []uuid.UUID{id})
	})
}

// DeleteRiders handles POST /v1/riders/delete
func (h *Handlers) DeleteRiders(c *gin.Context) {
	var req dto.DeleteRidersRequest
	if !h.bindJSON(c, "delete_riders", &req) {
		return
	}

	h.mutate(c, "delete_riders", http.StatusOK, func(ctx context.Context, actor lifecycle.Actor) (*lifecycle.Outcome, error) {
		return h.Manager.DeleteRiders(ctx, actor, req.RiderIDs)
	})
}
