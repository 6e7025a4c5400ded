package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gocomet/ride-pooling/internal/api/dto"
	"github.com/gocomet/ride-pooling/internal/domain/negotiation"
	"github.com/gocomet/ride-pooling/internal/service/lifecycle"
	"github.com/google/uuid"
)

type termsOp func(ctx context.Context, actor lifecycle.Actor, membershipID uuid.UUID, terms negotiation.Terms) (*lifecycle.Outcome, error)

func (h *Handlers) withTerms(c *gin.Context, op string, status int, fn termsOp) {
	id, ok := h.pathID(c, op)
	if !ok {
		return
	}
	var req dto.TermsRequest
	if !h.bindJSON(c, op, &req) {
		return
	}

	h.mutate(c, op, status, func(ctx context.Context, actor lifecycle.Actor) (*lifecycle.Outcome, error) {
		return fn(ctx, actor, id, req.Terms)
	})
}

// ProposeCounter handles POST /v1/memberships/:id/counter
func (h *Handlers) ProposeCounter(c *gin.Context) {
	h.withTerms(c, "propose_counter", http.StatusCreated, h.Manager.ProposeCounter)
}

// UpdateCounter handles PUT /v1/memberships/:id/counter
func (h *Handlers) UpdateCounter(c *gin.Context) {
	h.withTerms(c, "update_counter", http.StatusOK, h.Manager.UpdateCounter)
}

// Agree handles POST /v1/memberships/:id/agree. The body repeats the
// counter terms the applicant saw.
func (h *Handlers) Agree(c *gin.Context) {
	h.withTerms(c, "agree", http.StatusOK, h.Manager.Agree)
}
