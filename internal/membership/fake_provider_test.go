package membership_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ats-scanner/internal/apperr"
	"ats-scanner/internal/infra/stripe"
)

type fakeProvider struct {
	mu sync.Mutex

	intents       map[string]*stripe.PaymentIntent
	subscriptions map[string]string // idempotency key -> subscription id
	nextSub       int
	keys          []string
	cancelled     []string
	customers     int

	cancelErr error
	methods   []stripe.PaymentMethod

	// clock is the provider's own clock; it reports whole seconds.
	clock func() time.Time
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		intents:       map[string]*stripe.PaymentIntent{},
		subscriptions: map[string]string{},
		clock:         time.Now,
	}
}

func (f *fakeProvider) stamp() *time.Time {
	t := f.clock().UTC().Truncate(time.Second)
	return &t
}

func (f *fakeProvider) CreateCustomer(_ context.Context, _ string, userID uint) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.customers++
	return fmt.Sprintf("cus_%d", userID), nil
}

func (f *fakeProvider) CreatePaymentIntent(_ context.Context, in stripe.PaymentIntentInput) (*stripe.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := fmt.Sprintf("pi_%d", len(f.intents)+1)
	pi := &stripe.PaymentIntent{
		ID:           id,
		ClientSecret: id + "_secret",
		Status:       "requires_payment_method",
		AmountCents:  in.AmountCents,
		Metadata: map[string]string{
			stripe.MetadataUserID: fmt.Sprint(in.UserID),
			stripe.MetadataPlanID: fmt.Sprint(in.PlanID),
		},
	}
	f.intents[id] = pi
	return pi, nil
}

func (f *fakeProvider) succeed(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intents[id].Status = "succeeded"
}

func (f *fakeProvider) GetPaymentIntent(_ context.Context, id string) (*stripe.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pi, ok := f.intents[id]
	if !ok {
		return nil, fmt.Errorf("%w: no such payment intent", apperr.ErrExternalService)
	}
	cp := *pi
	return &cp, nil
}

func (f *fakeProvider) CreateSubscription(_ context.Context, in stripe.SubscriptionInput) (*stripe.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := in.IdempotencyKey()
	f.keys = append(f.keys, key)
	id, ok := f.subscriptions[key]
	if !ok {
		f.nextSub++
		id = fmt.Sprintf("sub_%d", f.nextSub)
		f.subscriptions[key] = id
	}
	return &stripe.Subscription{ID: id, Status: "incomplete", ClientSecret: id + "_secret", Created: f.stamp()}, nil
}

func (f *fakeProvider) CancelSubscription(_ context.Context, id string) (*stripe.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	f.cancelled = append(f.cancelled, id)
	return &stripe.Subscription{ID: id, Status: "canceled", CanceledAt: f.stamp()}, nil
}

func (f *fakeProvider) ListPaymentMethods(context.Context, string) ([]stripe.PaymentMethod, error) {
	return f.methods, nil
}

func (f *fakeProvider) BillingPortalURL(_ context.Context, customerID, returnURL string) (string, error) {
	return "https://billing.example.com/" + customerID + "?return=" + returnURL, nil
}
