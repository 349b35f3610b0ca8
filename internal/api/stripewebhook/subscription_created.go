package stripewebhooks

import (
	"time"

	"ats-scanner/internal/infra/stripe"
	"ats-scanner/internal/membership"

	"github.com/gin-gonic/gin"
	stripeapi "github.com/stripe/stripe-go/v75"
	"go.uber.org/zap"
)

// A created subscription is only applied when it names its user.
func (h *Handler) handleSubscriptionCreated(c *gin.Context, event *stripeapi.Event, eventAt time.Time, log *zap.Logger) (string, error) {
	sub, err := decodeSubscription(event)
	if err != nil {
		return "", err
	}

	userID := userIDFromMetadata(stripe.UserIDFrom(sub.Metadata))
	if userID == 0 {
		log.Info("subscription created without user tag", zap.String("subscription_id", sub.ID))
		return string(membership.OutcomeUnmatched), nil
	}

	out, err := h.reconciler.SubscriptionCreated(c.Request.Context(), userID, changeOf(sub, eventAt))
	return string(out), err
}

func changeOf(sub *stripeapi.Subscription, eventAt time.Time) membership.SubscriptionChange {
	return membership.SubscriptionChange{
		SubscriptionID:   sub.ID,
		Status:           string(sub.Status),
		CurrentPeriodEnd: stripe.UnixTime(sub.CurrentPeriodEnd),
		EventAt:          eventAt,
	}
}
