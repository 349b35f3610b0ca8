package stripewebhooks

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v75"
)

func (h *Handler) handleSubscriptionDeleted(c *gin.Context, event *stripe.Event, eventAt time.Time) (string, error) {
	sub, err := decodeSubscription(event)
	if err != nil {
		return "", err
	}
	out, err := h.reconciler.SubscriptionDeleted(c.Request.Context(), changeOf(sub, eventAt))
	return string(out), err
}
