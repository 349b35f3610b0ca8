package stripewebhooks

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"ats-scanner/internal/apperr"
	"ats-scanner/internal/logger"
	"ats-scanner/internal/membership"
	"ats-scanner/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/webhook"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxBodyBytes = 65536

// Outcomes recorded for an event besides the reconciler's own.
const (
	outcomeLogged    = "logged"
	outcomeIgnored   = "ignored"
	outcomeInvalid   = "invalid"
	outcomeDuplicate = "duplicate"
	outcomeFailed    = "failed"
)

var errUndecodable = errors.New("undecodable event object")

type Handler struct {
	secret     string
	db         *gorm.DB
	reconciler *membership.Reconciler
	logger     *zap.Logger
}

func NewHandler(secret string, db *gorm.DB, reconciler *membership.Reconciler, log *zap.Logger) *Handler {
	return &Handler{secret: secret, db: db, reconciler: reconciler, logger: logger.OrNop(log)}
}

// StripeWebhook verifies and applies one provider event. Accepted, ignored
// and repeated events answer 200; a missing secret or a bad signature answers
// 400; a storage failure answers 500 so the provider retries.
func (h *Handler) StripeWebhook(c *gin.Context) {
	if h.secret == "" {
		h.logger.Error("webhook rejected", zap.Error(apperr.ErrConfigurationMissing))
		c.JSON(http.StatusBadRequest, gin.H{"error": "webhook secret not configured"})
		return
	}

	payload, err := readStripeBody(c, maxBodyBytes)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Error reading request body"})
		return
	}

	event, err := webhook.ConstructEventWithOptions(
		payload,
		c.GetHeader("Stripe-Signature"),
		h.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		h.logger.Warn("webhook signature verification failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": apperr.ErrSignatureInvalid.Error()})
		return
	}

	ctx := c.Request.Context()
	eventType := string(event.Type)
	log := h.logger.With(zap.String("event_id", event.ID), zap.String("event_type", eventType))

	seen, err := alreadyProcessed(ctx, h.db, event.ID)
	if err != nil {
		log.Error("event log lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": apperr.Message(err)})
		return
	}
	if seen {
		metrics.WebhookEvents.WithLabelValues(eventType, outcomeDuplicate).Inc()
		log.Info("duplicate webhook event acknowledged")
		c.JSON(http.StatusOK, gin.H{"status": outcomeDuplicate})
		return
	}

	eventAt := time.Unix(event.Created, 0).UTC()
	outcome, err := h.dispatch(c, &event, eventAt, log)
	switch {
	case errors.Is(err, errUndecodable):
		outcome = outcomeInvalid
		log.Warn("webhook event object could not be decoded", zap.Error(err))
	case err != nil:
		metrics.WebhookEvents.WithLabelValues(eventType, outcomeFailed).Inc()
		log.Error("webhook event failed", zap.Error(err))
		_ = recordEvent(ctx, h.db, &event, eventAt, outcomeFailed)
		c.JSON(http.StatusInternalServerError, gin.H{"error": apperr.Message(err)})
		return
	}

	if err := recordEvent(ctx, h.db, &event, eventAt, outcome); err != nil {
		log.Error("event log write failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": apperr.Message(err)})
		return
	}
	metrics.WebhookEvents.WithLabelValues(eventType, outcome).Inc()
	c.JSON(http.StatusOK, gin.H{"status": outcome})
}

func (h *Handler) dispatch(c *gin.Context, event *stripe.Event, eventAt time.Time, log *zap.Logger) (string, error) {
	switch event.Type {
	case "customer.subscription.created":
		return h.handleSubscriptionCreated(c, event, eventAt, log)
	case "customer.subscription.updated":
		return h.handleSubscriptionUpdated(c, event, eventAt)
	case "customer.subscription.deleted":
		return h.handleSubscriptionDeleted(c, event, eventAt)
	case "invoice.payment_succeeded", "invoice.payment_failed":
		return h.handleInvoicePayment(event, log)
	default:
		// Acknowledge unknown events to avoid retries
		return outcomeIgnored, nil
	}
}

func decodeSubscription(event *stripe.Event) (*stripe.Subscription, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return nil, fmt.Errorf("%w: %w", errUndecodable, err)
	}
	if sub.ID == "" {
		return nil, fmt.Errorf("%w: subscription without id", errUndecodable)
	}
	return &sub, nil
}

func userIDFromMetadata(v string) uint {
	if v == "" {
		return 0
	}
	uid, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0
	}
	return uint(uid)
}

func readStripeBody(c *gin.Context, maxBytes int64) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	return io.ReadAll(c.Request.Body)
}
