package plans

import (
	"errors"
	"net/http"
	"strings"

	"ats-scanner/internal/apperr"
	"ats-scanner/internal/domain/plans"
	"ats-scanner/internal/infra/stripe"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// POST /admin/sync-plans
//
// Binds each active recurring price to the catalog entry named by its
// plan_type metadata. Prices in another currency, hidden prices and prices
// for the free tier are skipped.
func (h *Handler) SyncPlans(c *gin.Context) {
	ctx := c.Request.Context()
	prices, err := h.prices.ListRecurringPrices(ctx)
	if err != nil {
		h.logger.Warn("list provider prices failed", zap.Error(err))
		c.JSON(apperr.Status(err), gin.H{"error": apperr.Message(err)})
		return
	}

	synced, skipped := 0, 0
	for _, p := range prices {
		typ, ok := h.planTypeOf(p)
		if !ok {
			skipped++
			continue
		}

		err := h.catalog.BindPrice(ctx, typ, p.ID, float64(p.UnitAmount)/100.0)
		if errors.Is(err, plans.ErrPlanNotFound) {
			skipped++
			continue
		}
		if err != nil {
			h.logger.Error("bind price failed", zap.String("price_id", p.ID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update plan"})
			return
		}
		h.logger.Info("plan price bound", zap.String("plan", typ.String()), zap.String("price_id", p.ID))
		synced++
	}

	c.JSON(http.StatusOK, gin.H{"synced": synced, "skipped": skipped})
}

func (h *Handler) planTypeOf(p stripe.Price) (plans.Type, bool) {
	if h.currency != "" && !strings.EqualFold(p.Currency, h.currency) {
		return 0, false
	}
	if p.Metadata["visible"] == "false" {
		return 0, false
	}
	typ, err := plans.ParseType(p.Metadata[stripe.MetadataPlanType])
	if err != nil || !typ.Paid() {
		return 0, false
	}
	return typ, true
}
