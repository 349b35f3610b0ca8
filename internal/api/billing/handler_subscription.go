package billing

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GET /payment/subscription-status
func (h *Handler) SubscriptionStatus(c *gin.Context) {
	v, err := h.svc.Status(c.Request.Context(), c.GetUint("user_id"))
	if err != nil {
		h.fail(c, "subscription status", err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// POST /payment/cancel-subscription
func (h *Handler) CancelSubscription(c *gin.Context) {
	m, err := h.svc.Cancel(c.Request.Context(), c.GetUint("user_id"))
	if err != nil {
		h.fail(c, "cancel subscription", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Subscription cancelled", "membership": m})
}
