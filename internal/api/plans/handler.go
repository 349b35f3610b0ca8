// Package plans serves the plan catalog and its price sync with the billing
// provider.
package plans

import (
	"context"
	"net/http"

	"ats-scanner/internal/domain/plans"
	"ats-scanner/internal/infra/stripe"
	"ats-scanner/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PriceLister returns the provider's active recurring prices.
type PriceLister interface {
	ListRecurringPrices(ctx context.Context) ([]stripe.Price, error)
}

type Handler struct {
	catalog  *plans.Catalog
	prices   PriceLister
	currency string
	logger   *zap.Logger
}

func NewHandler(catalog *plans.Catalog, prices PriceLister, currency string, log *zap.Logger) *Handler {
	return &Handler{catalog: catalog, prices: prices, currency: currency, logger: logger.OrNop(log)}
}

type planResponse struct {
	plans.Plan
	TypeName    string          `json:"type_name"`
	Features    []plans.Feature `json:"features"`
	Purchasable bool            `json:"purchasable"`
}

// GET /plans
func (h *Handler) ListPlans(c *gin.Context) {
	list, err := h.catalog.ListActive(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load plans"})
		return
	}

	out := make([]planResponse, 0, len(list))
	for i := range list {
		p := &list[i]
		out = append(out, planResponse{Plan: *p, TypeName: p.Type.String(), Features: p.Features(), Purchasable: p.Purchasable()})
	}
	c.JSON(http.StatusOK, out)
}
