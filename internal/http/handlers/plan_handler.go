package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/tributaria/internal/domain"
	"github.com/tbourn/tributaria/internal/http/middleware"
)

// PlansResponse lists the subscription plans, cheapest first.
type PlansResponse struct {
	Plans []domain.SubscriptionPlan `json:"plans"`
}

// SubscriptionResponse holds the caller's active subscription, or null.
type SubscriptionResponse struct {
	Subscription *domain.Subscription `json:"subscription"`
}

// ListPlans godoc
// @ID          listPlans
// @Summary     Subscription plans
// @Tags        Plans
// @Produce     json
// @Success     200  {object}  handlers.PlansResponse
// @Router      /plans [get]
func (h *Handlers) ListPlans(c *gin.Context) {
	c.Header("Cache-Control", "public, max-age=300")
	ok(c, http.StatusOK, PlansResponse{Plans: h.planSvc.Plans(c.Request.Context())})
}

// CurrentSubscription godoc
// @ID          currentSubscription
// @Summary     Active subscription of the caller
// @Tags        Plans
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.SubscriptionResponse
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /subscription [get]
func (h *Handlers) CurrentSubscription(c *gin.Context) {
	sub, err := h.planSvc.Current(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, SubscriptionResponse{Subscription: sub})
}
