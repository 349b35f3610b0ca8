package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"ats-scanner/internal/domain/billing"
	"ats-scanner/internal/domain/membership"
	"ats-scanner/internal/domain/plans"
	"ats-scanner/internal/domain/scans"
	"ats-scanner/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var now = time.Date(2026, time.June, 15, 9, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(db *gorm.DB) *gin.Engine {
	h := NewHandler(db, func() time.Time { return now }, nil)
	r := gin.New()
	r.GET("/admin/users", h.ListAllUsers)
	r.GET("/admin/user/:id", h.GetUserDetails)
	r.GET("/admin/payments", h.ListAllPayments)
	r.GET("/admin/stats", h.GetAdminStats)
	return r
}

func get(t *testing.T, r *gin.Engine, path string, out any) int {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	if w.Code == http.StatusOK && out != nil {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}
	return w.Code
}

// seed stores a premium member, a lapsed basic member and a free user.
func seed(t *testing.T, db *gorm.DB) (member, lapsed, free uint) {
	t.Helper()
	catalog := testutil.SeedPlans(t, db)

	m := testutil.NewUser(t, db, 0)
	testutil.GiveMembership(t, db, m.ID, membership.Membership{
		Type:      plans.TypePremium,
		Source:    membership.SourceSubscription,
		IsActive:  true,
		StartDate: testutil.Ptr(now.AddDate(0, 0, -5)),
		EndDate:   testutil.Ptr(now.AddDate(0, 0, 25)),
	})
	l := testutil.NewUser(t, db, 0)
	testutil.GiveMembership(t, db, l.ID, membership.Membership{
		Type:      plans.TypeBasic,
		Source:    membership.SourceOneTime,
		IsActive:  true,
		StartDate: testutil.Ptr(now.AddDate(0, -2, 0)),
		EndDate:   testutil.Ptr(now.AddDate(0, -1, 0)),
	})
	f := testutil.NewUser(t, db, 2)

	premium, basic := catalog[plans.TypePremium].ID, catalog[plans.TypeBasic].ID
	require.NoError(t, db.Create(&[]billing.Payment{
		{UserID: m.ID, PlanID: &premium, Kind: billing.KindSubscription, AmountUSD: 19.99,
			Status: billing.StatusActive, StripeSubscriptionID: testutil.Ptr("sub_1"), CreatedAt: now.AddDate(0, 0, -5)},
		{UserID: l.ID, PlanID: &basic, Kind: billing.KindOneTime, AmountUSD: 9.99,
			Status: billing.StatusSucceeded, PaymentIntentID: testutil.Ptr("pi_1"), CreatedAt: now.AddDate(0, -2, 0)},
		{UserID: f.ID, PlanID: &basic, Kind: billing.KindOneTime, AmountUSD: 9.99,
			Status: billing.StatusIncomplete, PaymentIntentID: testutil.Ptr("pi_2"), CreatedAt: now.AddDate(0, 0, -1)},
	}).Error)

	require.NoError(t, db.Create(&[]scans.Scan{
		{UserID: &f.ID, FileName: "a.txt", Score: 70},
		{UserID: &f.ID, FileName: "b.txt", Score: 55},
		{IPAddress: "198.51.100.7", FileName: "c.txt", Score: 81},
	}).Error)

	require.NoError(t, db.Create(&membership.History{
		UserID: l.ID, MembershipID: 2, Type: plans.TypeBasic, EndReason: membership.EndReasonReplaced, ArchivedAt: now.AddDate(0, -2, 0),
	}).Error)
	return m.ID, l.ID, f.ID
}

func TestListAllUsers(t *testing.T) {
	db := testutil.NewDB(t)
	member, lapsed, free := seed(t, db)

	var out []AdminUser
	require.Equal(t, http.StatusOK, get(t, newRouter(db), "/admin/users", &out))
	require.Len(t, out, 3)

	byID := map[uint]AdminUser{}
	for _, u := range out {
		byID[u.ID] = u
	}
	require.NotNil(t, byID[member].MembershipType)
	assert.Equal(t, "premium", *byID[member].MembershipType)
	assert.True(t, byID[member].MembershipActive)

	require.NotNil(t, byID[lapsed].MembershipType)
	assert.False(t, byID[lapsed].MembershipActive, "past end date reads as inactive")

	assert.Nil(t, byID[free].MembershipType)
	assert.Equal(t, 2, byID[free].ScanCount)
}

func TestListAllPayments(t *testing.T) {
	db := testutil.NewDB(t)
	member, _, _ := seed(t, db)

	var out []AdminPayment
	require.Equal(t, http.StatusOK, get(t, newRouter(db), "/admin/payments", &out))
	require.Len(t, out, 3)

	newest := out[0]
	assert.Equal(t, billing.StatusIncomplete, newest.Status)
	assert.Equal(t, "user3@example.com", newest.Email)

	assert.Equal(t, member, out[1].UserID)
	require.NotNil(t, out[1].PlanName)
	assert.Equal(t, "Premium", *out[1].PlanName)
	assert.InDelta(t, 19.99, out[1].AmountUSD, 0.001)
}

func TestAdminStats(t *testing.T) {
	db := testutil.NewDB(t)
	seed(t, db)

	var stats AdminStats
	require.Equal(t, http.StatusOK, get(t, newRouter(db), "/admin/stats", &stats))
	assert.Equal(t, 3, stats.TotalUsers)
	assert.Equal(t, 3, stats.TotalScans)
	assert.Equal(t, 1, stats.ActiveMemberships)
	assert.InDelta(t, 29.98, stats.TotalRevenue, 0.001, "incomplete payments are not revenue")
	assert.InDelta(t, 19.99, stats.RecentRevenue, 0.001)
	assert.Equal(t, map[string]int{"premium": 1}, stats.MembersPerPlan)
}

func TestGetUserDetails(t *testing.T) {
	db := testutil.NewDB(t)
	_, lapsed, _ := seed(t, db)
	r := newRouter(db)

	var out struct {
		User struct {
			ID uint
		} `json:"user"`
		History  []membership.History `json:"membership_history"`
		Payments []billing.Payment    `json:"payments"`
	}
	require.Equal(t, http.StatusOK, get(t, r, "/admin/user/"+strconv.FormatUint(uint64(lapsed), 10), &out))
	assert.Equal(t, lapsed, out.User.ID)
	require.Len(t, out.History, 1)
	assert.Equal(t, membership.EndReasonReplaced, out.History[0].EndReason)
	require.Len(t, out.Payments, 1)
	require.NotNil(t, out.Payments[0].Plan)
	assert.Equal(t, plans.TypeBasic, out.Payments[0].Plan.Type)

	assert.Equal(t, http.StatusNotFound, get(t, r, "/admin/user/999", nil))
	assert.Equal(t, http.StatusBadRequest, get(t, r, "/admin/user/abc", nil))
}
