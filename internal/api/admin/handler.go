package admin

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"ats-scanner/internal/domain/billing"
	"ats-scanner/internal/domain/membership"
	"ats-scanner/internal/domain/plans"
	"ats-scanner/internal/domain/scans"
	"ats-scanner/internal/domain/users"
	"ats-scanner/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type AdminUser struct {
	ID               uint       `json:"id"`
	Username         string     `json:"username"`
	Email            string     `json:"email"`
	Role             string     `json:"role"`
	AuthProvider     string     `json:"auth_provider"`
	ScanCount        int        `json:"scan_count"`
	LastScanDate     *time.Time `json:"last_scan_date,omitempty"`
	StripeCustomerID *string    `json:"stripe_customer_id,omitempty"`
	MembershipType   *string    `json:"membership_type,omitempty"`
	MembershipActive bool       `json:"membership_active"`
	MembershipEnd    *time.Time `json:"membership_end,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

type AdminPayment struct {
	ID                   uint      `json:"id"`
	UserID               uint      `json:"user_id"`
	Email                string    `json:"email"`
	PlanName             *string   `json:"plan_name,omitempty"`
	Kind                 string    `json:"kind"`
	AmountUSD            float64   `json:"amount"`
	Status               string    `json:"status"`
	StripeSubscriptionID *string   `json:"stripe_subscription_id,omitempty"`
	PaymentIntentID      *string   `json:"payment_intent_id,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

type AdminStats struct {
	TotalUsers        int            `json:"total_users"`
	TotalRevenue      float64        `json:"total_revenue"`
	RecentRevenue     float64        `json:"recent_revenue"`
	ActiveMemberships int            `json:"active_memberships"`
	TotalScans        int            `json:"total_scans"`
	MembersPerPlan    map[string]int `json:"members_per_plan"`
}

type Handler struct {
	db     *gorm.DB
	now    func() time.Time
	logger *zap.Logger
}

func NewHandler(db *gorm.DB, now func() time.Time, log *zap.Logger) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{db: db, now: now, logger: logger.OrNop(log)}
}

// GET /admin/users
func (h *Handler) ListAllUsers(c *gin.Context) {
	var list []users.User
	err := h.db.WithContext(c.Request.Context()).Preload("Membership").Order("id").Find(&list).Error
	if err != nil {
		h.logger.Error("admin list users failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load users"})
		return
	}

	now := h.now().UTC()
	out := make([]AdminUser, 0, len(list))
	for _, u := range list {
		au := AdminUser{
			ID:               u.ID,
			Username:         u.Username,
			Email:            u.Email,
			Role:             u.Role,
			AuthProvider:     u.AuthProvider,
			ScanCount:        u.ScanCount,
			LastScanDate:     u.LastScanDate,
			StripeCustomerID: u.StripeCustomerID,
			CreatedAt:        u.CreatedAt,
		}
		if m := u.Membership; m != nil {
			typ := m.Type.String()
			au.MembershipType = &typ
			au.MembershipActive = m.EffectivelyActive(now)
			au.MembershipEnd = m.EndDate
		}
		out = append(out, au)
	}

	c.JSON(http.StatusOK, out)
}

// GET /admin/payments
func (h *Handler) ListAllPayments(c *gin.Context) {
	var out []AdminPayment
	err := h.db.WithContext(c.Request.Context()).
		Table("payments").
		Select(`payments.id, payments.user_id, users.email, plans.name AS plan_name, payments.kind,
			payments.amount_usd, payments.status, payments.stripe_subscription_id,
			payments.payment_intent_id, payments.created_at`).
		Joins("JOIN users ON users.id = payments.user_id").
		Joins("LEFT JOIN plans ON plans.id = payments.plan_id").
		Order("payments.created_at DESC, payments.id DESC").
		Scan(&out).Error
	if err != nil {
		h.logger.Error("admin list payments failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load payments"})
		return
	}
	if out == nil {
		out = []AdminPayment{}
	}
	c.JSON(http.StatusOK, out)
}

// GET /admin/stats
func (h *Handler) GetAdminStats(c *gin.Context) {
	db := h.db.WithContext(c.Request.Context())
	now := h.now().UTC()

	var totalUsers, activeMembers, totalScans int64
	var totalRevenue, recentRevenue float64

	err := errors.Join(
		db.Model(&users.User{}).Count(&totalUsers).Error,
		db.Model(&scans.Scan{}).Count(&totalScans).Error,
		db.Model(&billing.Payment{}).
			Where("status IN ?", billing.Collected).
			Select("COALESCE(SUM(amount_usd), 0)").Scan(&totalRevenue).Error,
		db.Model(&billing.Payment{}).
			Where("status IN ? AND created_at >= ?", billing.Collected, now.AddDate(0, 0, -30)).
			Select("COALESCE(SUM(amount_usd), 0)").Scan(&recentRevenue).Error,
		db.Model(&membership.Membership{}).
			Where("is_active = ? AND (end_date IS NULL OR end_date > ?)", true, now).
			Count(&activeMembers).Error,
	)
	if err != nil {
		h.logger.Error("admin stats failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load stats"})
		return
	}

	type typeCount struct {
		Type  plans.Type
		Count int
	}
	var counts []typeCount
	if err := db.Model(&membership.Membership{}).
		Select("type, COUNT(*) AS count").
		Where("is_active = ? AND (end_date IS NULL OR end_date > ?)", true, now).
		Group("type").
		Scan(&counts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load stats"})
		return
	}

	perPlan := map[string]int{}
	for _, tc := range counts {
		perPlan[tc.Type.String()] = tc.Count
	}

	c.JSON(http.StatusOK, AdminStats{
		TotalUsers:        int(totalUsers),
		TotalRevenue:      totalRevenue,
		RecentRevenue:     recentRevenue,
		ActiveMemberships: int(activeMembers),
		TotalScans:        int(totalScans),
		MembersPerPlan:    perPlan,
	})
}

// GET /admin/user/:id
func (h *Handler) GetUserDetails(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}
	db := h.db.WithContext(c.Request.Context())

	var user users.User
	if err := db.Preload("Membership").First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
		return
	}

	var history []membership.History
	var payments []billing.Payment
	if err := errors.Join(
		db.Where("user_id = ?", id).Order("archived_at DESC").Find(&history).Error,
		db.Preload("Plan").Where("user_id = ?", id).Order("created_at DESC").Find(&payments).Error,
	); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch user details"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":               user,
		"membership_history": history,
		"payments":           payments,
	})
}
