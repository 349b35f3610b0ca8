package billing

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GET /payment/history
func (h *Handler) PaymentHistory(c *gin.Context) {
	payments, err := h.svc.PaymentHistory(c.Request.Context(), c.GetUint("user_id"))
	if err != nil {
		h.fail(c, "payment history", err)
		return
	}
	c.JSON(http.StatusOK, payments)
}

// GET /payment/payment-methods
func (h *Handler) PaymentMethods(c *gin.Context) {
	methods, err := h.svc.ListPaymentMethods(c.Request.Context(), c.GetUint("user_id"))
	if err != nil {
		h.fail(c, "list payment methods", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment_methods": methods})
}

// POST /payment/billing-portal
func (h *Handler) BillingPortal(c *gin.Context) {
	url, err := h.svc.BillingPortalURL(c.Request.Context(), c.GetUint("user_id"))
	if err != nil {
		h.fail(c, "billing portal", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}
