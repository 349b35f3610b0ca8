package stripe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeStatus(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":                   StatusNone,
		"  ":                 StatusNone,
		"active":             StatusActive,
		" trialing ":         StatusTrialing,
		"unpaid":             StatusPastDue,
		"past_due":           StatusPastDue,
		"incomplete_expired": StatusCanceled,
		"canceled":           StatusCanceled,
		"incomplete":         "incomplete",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeStatus(in), "status %q", in)
	}
}

func TestGrantsMembership(t *testing.T) {
	t.Parallel()

	assert.True(t, GrantsMembership("active"))
	assert.False(t, GrantsMembership("trialing"))
	assert.False(t, GrantsMembership("past_due"))
	assert.False(t, GrantsMembership("canceled"))
}

func TestUserIDFrom(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "7", UserIDFrom(map[string]string{"user_id": "7", "userId": "9"}))
	assert.Equal(t, "9", UserIDFrom(map[string]string{"userId": "9"}))
	assert.Empty(t, UserIDFrom(nil))
}

func TestSubscriptionIdempotencyKey(t *testing.T) {
	t.Parallel()

	in := SubscriptionInput{CustomerID: "cus_1", PriceID: "price_2", UserID: 4}
	assert.Equal(t, "sub-cus_1-price_2-0", in.IdempotencyKey())

	in.Term = 2
	assert.Equal(t, "sub-cus_1-price_2-2", in.IdempotencyKey())
}

func TestUnixTime(t *testing.T) {
	t.Parallel()

	assert.Nil(t, UnixTime(0))
	got := UnixTime(1767225600)
	if assert.NotNil(t, got) {
		assert.Equal(t, "2026-01-01T00:00:00Z", got.Format("2006-01-02T15:04:05Z07:00"))
	}
}
