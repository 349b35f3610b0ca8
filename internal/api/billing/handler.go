// Package billing exposes the purchase and membership endpoints under
// /payment.
package billing

import (
	"context"
	"net/http"

	"ats-scanner/internal/apperr"
	"ats-scanner/internal/domain/billing"
	"ats-scanner/internal/domain/membership"
	"ats-scanner/internal/infra/stripe"
	"ats-scanner/internal/logger"
	membershipsvc "ats-scanner/internal/membership"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Memberships is the part of the membership service the handlers call.
type Memberships interface {
	CreatePaymentIntent(ctx context.Context, userID, planID uint) (*membershipsvc.PaymentIntentResult, error)
	Subscribe(ctx context.Context, userID, planID uint) (*membershipsvc.SubscribeResult, error)
	ConfirmOneTimePayment(ctx context.Context, userID, planID uint, paymentIntentID string) (*membership.Membership, error)
	Cancel(ctx context.Context, userID uint) (*membership.Membership, error)
	Status(ctx context.Context, userID uint) (*membershipsvc.StatusView, error)
	ListPaymentMethods(ctx context.Context, userID uint) ([]stripe.PaymentMethod, error)
	PaymentHistory(ctx context.Context, userID uint) ([]billing.Payment, error)
	BillingPortalURL(ctx context.Context, userID uint) (string, error)
}

type Handler struct {
	svc    Memberships
	logger *zap.Logger
}

func NewHandler(svc Memberships, log *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger.OrNop(log)}
}

type planRequest struct {
	PlanID uint `json:"plan_id" binding:"required"`
}

// POST /payment/create-payment-intent
func (h *Handler) CreatePaymentIntent(c *gin.Context) {
	var body planRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "plan_id is required"})
		return
	}

	res, err := h.svc.CreatePaymentIntent(c.Request.Context(), c.GetUint("user_id"), body.PlanID)
	if err != nil {
		h.fail(c, "create payment intent", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /payment/create-subscription
func (h *Handler) CreateSubscription(c *gin.Context) {
	var body planRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "plan_id is required"})
		return
	}

	res, err := h.svc.Subscribe(c.Request.Context(), c.GetUint("user_id"), body.PlanID)
	if err != nil {
		h.fail(c, "create subscription", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /payment/confirm-payment
func (h *Handler) ConfirmPayment(c *gin.Context) {
	var body struct {
		PlanID          uint   `json:"plan_id" binding:"required"`
		PaymentIntentID string `json:"payment_intent_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "plan_id and payment_intent_id are required"})
		return
	}

	m, err := h.svc.ConfirmOneTimePayment(c.Request.Context(), c.GetUint("user_id"), body.PlanID, body.PaymentIntentID)
	if err != nil {
		h.fail(c, "confirm payment", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Payment confirmed", "membership": m})
}

// fail answers with the status the error taxonomy maps to. Internal errors
// are logged and masked.
func (h *Handler) fail(c *gin.Context, op string, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", zap.Uint("user_id", c.GetUint("user_id")), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": apperr.Message(err)})
}
