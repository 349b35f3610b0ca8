// Package stripe wraps the billing provider's API behind the small set of
// calls the service makes.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"ats-scanner/internal/apperr"

	stripeapi "github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/client"
)

type Provider struct {
	api      *client.API
	currency string
}

// NewProvider builds a client bound to secretKey. Nothing touches the
// package-level stripe.Key.
func NewProvider(secretKey, currency string) *Provider {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &Provider{api: sc, currency: currency}
}

func (p *Provider) CreateCustomer(ctx context.Context, email string, userID uint) (string, error) {
	params := &stripeapi.CustomerParams{
		Email: stripeapi.String(email),
		Metadata: map[string]string{
			MetadataUserID: strconv.FormatUint(uint64(userID), 10),
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey(fmt.Sprintf("cus-user-%d", userID))

	cus, err := p.api.Customers.New(params)
	if err != nil {
		return "", external("create customer", err)
	}
	return cus.ID, nil
}

type PaymentIntentInput struct {
	CustomerID  string
	AmountCents int64
	UserID      uint
	PlanID      uint
}

func (p *Provider) CreatePaymentIntent(ctx context.Context, in PaymentIntentInput) (*PaymentIntent, error) {
	params := &stripeapi.PaymentIntentParams{
		Amount:   stripeapi.Int64(in.AmountCents),
		Currency: stripeapi.String(p.currency),
		AutomaticPaymentMethods: &stripeapi.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripeapi.Bool(true),
		},
		Metadata: map[string]string{
			MetadataUserID: strconv.FormatUint(uint64(in.UserID), 10),
			MetadataPlanID: strconv.FormatUint(uint64(in.PlanID), 10),
		},
	}
	if in.CustomerID != "" {
		params.Customer = stripeapi.String(in.CustomerID)
	}
	params.Context = ctx

	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return nil, external("create payment intent", err)
	}
	return toPaymentIntent(pi), nil
}

func (p *Provider) GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	params := &stripeapi.PaymentIntentParams{}
	params.Context = ctx

	pi, err := p.api.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, external("get payment intent", err)
	}
	return toPaymentIntent(pi), nil
}

type SubscriptionInput struct {
	CustomerID string
	PriceID    string
	UserID     uint
	// Number of terms the user already finished. It keeps a new subscription
	// after a cancellation from replaying the idempotency key of the old one.
	Term int
}

func (in SubscriptionInput) IdempotencyKey() string {
	return fmt.Sprintf("sub-%s-%s-%d", in.CustomerID, in.PriceID, in.Term)
}

// CreateSubscription is idempotent per customer, price and term: a retried
// request returns the subscription created by the first one.
func (p *Provider) CreateSubscription(ctx context.Context, in SubscriptionInput) (*Subscription, error) {
	params := &stripeapi.SubscriptionParams{
		Customer: stripeapi.String(in.CustomerID),
		Items: []*stripeapi.SubscriptionItemsParams{
			{Price: stripeapi.String(in.PriceID)},
		},
		PaymentBehavior: stripeapi.String("default_incomplete"),
		Metadata: map[string]string{
			MetadataUserID: strconv.FormatUint(uint64(in.UserID), 10),
		},
	}
	params.Context = ctx
	params.AddExpand("latest_invoice.payment_intent")
	params.SetIdempotencyKey(in.IdempotencyKey())

	sub, err := p.api.Subscriptions.New(params)
	if err != nil {
		return nil, external("create subscription", err)
	}

	out := &Subscription{
		ID:               sub.ID,
		Status:           string(sub.Status),
		CurrentPeriodEnd: UnixTime(sub.CurrentPeriodEnd),
		Created:          UnixTime(sub.Created),
	}
	if sub.LatestInvoice != nil && sub.LatestInvoice.PaymentIntent != nil {
		out.ClientSecret = sub.LatestInvoice.PaymentIntent.ClientSecret
	}
	return out, nil
}

// CancelSubscription cancels immediately and reports the provider's view of
// the cancelled subscription.
func (p *Provider) CancelSubscription(ctx context.Context, id string) (*Subscription, error) {
	params := &stripeapi.SubscriptionCancelParams{}
	params.Context = ctx

	sub, err := p.api.Subscriptions.Cancel(id, params)
	if err != nil {
		return nil, external("cancel subscription", err)
	}
	return &Subscription{
		ID:         sub.ID,
		Status:     string(sub.Status),
		Created:    UnixTime(sub.Created),
		CanceledAt: UnixTime(sub.CanceledAt),
	}, nil
}

func (p *Provider) ListPaymentMethods(ctx context.Context, customerID string) ([]PaymentMethod, error) {
	params := &stripeapi.PaymentMethodListParams{
		Customer: stripeapi.String(customerID),
		Type:     stripeapi.String(string(stripeapi.PaymentMethodTypeCard)),
	}
	params.Context = ctx

	out := []PaymentMethod{}
	it := p.api.PaymentMethods.List(params)
	for it.Next() {
		pm := it.PaymentMethod()
		if pm.Card == nil {
			continue
		}
		out = append(out, PaymentMethod{
			ID:       pm.ID,
			Brand:    string(pm.Card.Brand),
			Last4:    pm.Card.Last4,
			ExpMonth: pm.Card.ExpMonth,
			ExpYear:  pm.Card.ExpYear,
		})
	}
	if err := it.Err(); err != nil {
		return nil, external("list payment methods", err)
	}
	return out, nil
}

func (p *Provider) BillingPortalURL(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripeapi.BillingPortalSessionParams{
		Customer:  stripeapi.String(customerID),
		ReturnURL: stripeapi.String(returnURL),
	}
	params.Context = ctx

	s, err := p.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", external("create billing portal session", err)
	}
	return s.URL, nil
}

// ListRecurringPrices returns active recurring prices of active products.
func (p *Provider) ListRecurringPrices(ctx context.Context) ([]Price, error) {
	params := &stripeapi.PriceListParams{
		Active: stripeapi.Bool(true),
		Type:   stripeapi.String(string(stripeapi.PriceTypeRecurring)),
	}
	params.Context = ctx
	params.AddExpand("data.product")

	out := []Price{}
	it := p.api.Prices.List(params)
	for it.Next() {
		pr := it.Price()
		if !pr.Active || pr.Recurring == nil || pr.Product == nil || !pr.Product.Active {
			continue
		}
		out = append(out, Price{
			ID:          pr.ID,
			UnitAmount:  pr.UnitAmount,
			Currency:    string(pr.Currency),
			Metadata:    pr.Metadata,
			ProductName: pr.Product.Name,
		})
	}
	if err := it.Err(); err != nil {
		return nil, external("list prices", err)
	}
	return out, nil
}

func toPaymentIntent(pi *stripeapi.PaymentIntent) *PaymentIntent {
	return &PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		AmountCents:  pi.Amount,
		Metadata:     pi.Metadata,
	}
}

// UnixTime converts a provider timestamp, nil for zero.
func UnixTime(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

// external tags a provider failure, keeping the provider's own message.
func external(op string, err error) error {
	var se *stripeapi.Error
	if errors.As(err, &se) && se.Msg != "" {
		return fmt.Errorf("%w: %s: %s", apperr.ErrExternalService, op, se.Msg)
	}
	return fmt.Errorf("%w: %s: %w", apperr.ErrExternalService, op, err)
}
