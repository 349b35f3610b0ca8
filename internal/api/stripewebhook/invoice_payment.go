package stripewebhooks

import (
	"encoding/json"

	"github.com/stripe/stripe-go/v75"
	"go.uber.org/zap"
)

// Invoice outcomes do not change memberships; subscription events carry the
// resulting status.
func (h *Handler) handleInvoicePayment(event *stripe.Event, log *zap.Logger) (string, error) {
	var inv stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		log.Warn("invoice payload not decodable", zap.Error(err))
		return outcomeLogged, nil
	}

	fields := []zap.Field{
		zap.String("invoice_id", inv.ID),
		zap.Int64("amount_paid", inv.AmountPaid),
		zap.String("status", string(inv.Status)),
	}
	if inv.Subscription != nil {
		fields = append(fields, zap.String("subscription_id", inv.Subscription.ID))
	}
	if event.Type == "invoice.payment_failed" {
		log.Warn("invoice payment failed", fields...)
	} else {
		log.Info("invoice paid", fields...)
	}
	return outcomeLogged, nil
}
