package stripe

import "time"

type PaymentIntent struct {
	ID           string
	ClientSecret string
	Status       string
	AmountCents  int64
	Metadata     map[string]string
}

// Succeeded reports whether the funds were captured.
func (p *PaymentIntent) Succeeded() bool {
	return p != nil && p.Status == "succeeded"
}

type Subscription struct {
	ID               string
	Status           string
	CurrentPeriodEnd *time.Time
	// Provider clock, whole seconds.
	Created    *time.Time
	CanceledAt *time.Time
	// Secret of the first invoice's payment intent, when the subscription
	// still needs a payment confirmation on the client.
	ClientSecret string
}

type PaymentMethod struct {
	ID       string `json:"id"`
	Brand    string `json:"brand"`
	Last4    string `json:"last4"`
	ExpMonth int64  `json:"exp_month"`
	ExpYear  int64  `json:"exp_year"`
}

type Price struct {
	ID          string
	UnitAmount  int64
	Currency    string
	Metadata    map[string]string
	ProductName string
}

// Metadata keys stamped on provider objects.
const (
	MetadataUserID       = "user_id"
	MetadataPlanID       = "plan_id"
	MetadataPlanType     = "plan_type"
	legacyMetadataUserID = "userId"
)

// UserIDFrom reads the user tag, accepting the camelCase key older objects
// were created with.
func UserIDFrom(md map[string]string) string {
	if v := md[MetadataUserID]; v != "" {
		return v
	}
	return md[legacyMetadataUserID]
}
