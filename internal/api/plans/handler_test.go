package plans

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ats-scanner/internal/domain/plans"
	"ats-scanner/internal/infra/stripe"
	"ats-scanner/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubPrices []stripe.Price

func (s stubPrices) ListRecurringPrices(context.Context) ([]stripe.Price, error) {
	return s, nil
}

func price(id, currency, planType string, cents int64) stripe.Price {
	return stripe.Price{
		ID:         id,
		UnitAmount: cents,
		Currency:   currency,
		Metadata:   map[string]string{stripe.MetadataPlanType: planType},
	}
}

func TestSyncThenList(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.SeedPlans(t, db)

	prices := stubPrices{
		price("price_basic", "usd", "basic", 1299),
		price("price_premium", "usd", "Premium", 2499),
		price("price_eur", "eur", "basic", 999),
		price("price_free", "usd", "free", 0),
		price("price_unknown", "usd", "gold", 100),
	}
	hidden := price("price_hidden", "usd", "premium", 1)
	hidden.Metadata["visible"] = "false"
	prices = append(prices, hidden)

	h := NewHandler(plans.NewCatalog(db), prices, "usd", nil)
	r := gin.New()
	r.GET("/plans", h.ListPlans)
	r.POST("/admin/sync-plans", h.SyncPlans)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/sync-plans", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"synced":2,"skipped":4}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/plans", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var out []struct {
		Name          string          `json:"name"`
		TypeName      string          `json:"type_name"`
		Price         float64         `json:"price"`
		StripePriceID *string         `json:"stripe_price_id"`
		Features      []plans.Feature `json:"features"`
		Purchasable   bool            `json:"purchasable"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out, 3, "enterprise is not for sale")

	assert.Equal(t, "free", out[0].TypeName)
	assert.False(t, out[0].Purchasable)
	assert.Equal(t, "basic", out[1].TypeName)
	assert.Equal(t, 12.99, out[1].Price)
	assert.True(t, out[1].Purchasable)
	assert.Equal(t, "premium", out[2].TypeName)
	assert.Contains(t, out[2].Features, plans.FeatureBulkUpload)
	require.NotNil(t, out[2].StripePriceID)
	assert.Equal(t, "price_premium", *out[2].StripePriceID)
}
