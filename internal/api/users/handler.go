// Package users serves the signed-in caller's own account view.
package users

import (
	"errors"
	"net/http"
	"time"

	"ats-scanner/internal/domain/access"
	"ats-scanner/internal/domain/plans"
	"ats-scanner/internal/domain/users"
	"ats-scanner/internal/logger"
	"ats-scanner/internal/quota"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Handler struct {
	db      *gorm.DB
	catalog *plans.Catalog
	ledger  *quota.Ledger
	now     func() time.Time
	logger  *zap.Logger
}

func NewHandler(db *gorm.DB, ledger *quota.Ledger, now func() time.Time, log *zap.Logger) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{db: db, catalog: plans.NewCatalog(db), ledger: ledger, now: now, logger: logger.OrNop(log)}
}

// GET /me
func (h *Handler) GetCurrentUser(c *gin.Context) {
	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	ctx := c.Request.Context()

	// The quota check runs first so that a lapsed membership is already
	// switched off when the profile is read.
	d, err := h.ledger.CheckRegisteredLimit(ctx, userID)
	if err != nil {
		h.logger.Error("usage check failed", zap.Uint("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
		return
	}
	if d.Reason == quota.ReasonUserNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	var user users.User
	if err := h.db.WithContext(ctx).Preload("Membership").First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	var plan *plans.Plan
	if user.Membership != nil {
		plan, err = h.catalog.ByType(ctx, user.Membership.Type)
		if err != nil && !errors.Is(err, plans.ErrPlanNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load plan"})
			return
		}
	}

	now := h.now().UTC()
	policy := access.ComputePolicy(now, user, plan)

	billing := BillingDTO{Subscription: BuildSubscriptionDTO(now, user.Membership)}
	if policy.State == access.AccessMember {
		billing.Plan = BuildPlanDTO(plan)
	}

	c.JSON(http.StatusOK, MeResponse{
		User:    BuildUserDTO(user),
		Billing: billing,
		Access:  BuildAccessDTO(policy),
		Usage:   BuildUsageDTO(user, d),
	})
}
