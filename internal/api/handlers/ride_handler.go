package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocomet/ride-pooling/internal/api/middleware"
)

// GetRide handles GET /v1/rides/:id
func (h *Handlers) GetRide(c *gin.Context) {
	start := time.Now()
	id, ok := h.pathID(c, "review")
	if !ok {
		return
	}

	agg, err := h.Manager.Review(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		h.fail(c, "review", start, err)
		return
	}
	h.NewRelic.RecordOperation("review", time.Since(start), "")
	c.JSON(http.StatusOK, agg)
}

// GetMembership handles GET /v1/memberships/:id
func (h *Handlers) GetMembership(c *gin.Context) {
	start := time.Now()
	id, ok := h.pathID(c, "review_membership")
	if !ok {
		return
	}

	member, err := h.Manager.ReviewMembership(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		h.fail(c, "review_membership", start, err)
		return
	}
	h.NewRelic.RecordOperation("review_membership", time.Since(start), "")
	c.JSON(http.StatusOK, member)
}

// ResetRide handles POST /v1/rides/:id/reset
func (h *Handlers) ResetRide(c *gin.Context) {
	h.onID(c, "reset_ride", h.Manager.ResetRide)
}
