// Package membership runs the paid-plan flows: purchases, cancellation and
// the reconciliation of billing provider events.
package membership

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"ats-scanner/internal/domain/access"
	"ats-scanner/internal/domain/billing"
	"ats-scanner/internal/domain/membership"
	"ats-scanner/internal/domain/plans"
	"ats-scanner/internal/domain/users"
	"ats-scanner/internal/infra/stripe"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Provider is the part of the billing provider the service calls.
type Provider interface {
	CreateCustomer(ctx context.Context, email string, userID uint) (string, error)
	CreatePaymentIntent(ctx context.Context, in stripe.PaymentIntentInput) (*stripe.PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error)
	CreateSubscription(ctx context.Context, in stripe.SubscriptionInput) (*stripe.Subscription, error)
	CancelSubscription(ctx context.Context, id string) (*stripe.Subscription, error)
	ListPaymentMethods(ctx context.Context, customerID string) ([]stripe.PaymentMethod, error)
	BillingPortalURL(ctx context.Context, customerID, returnURL string) (string, error)
}

type Service struct {
	db       *gorm.DB
	catalog  *plans.Catalog
	provider Provider
	opts     options
}

func NewService(db *gorm.DB, provider Provider, opts ...Option) *Service {
	return &Service{
		db:       db,
		catalog:  plans.NewCatalog(db),
		provider: provider,
		opts:     buildOptions(opts),
	}
}

type PaymentIntentResult struct {
	ClientSecret    string  `json:"client_secret"`
	PaymentIntentID string  `json:"payment_intent_id"`
	PlanID          uint    `json:"plan_id"`
	Amount          float64 `json:"amount"`
}

// CreatePaymentIntent starts a one-time purchase of planID. Nothing is
// stored locally until the payment is confirmed.
func (s *Service) CreatePaymentIntent(ctx context.Context, userID, planID uint) (*PaymentIntentResult, error) {
	plan, err := s.paidPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	in := stripe.PaymentIntentInput{AmountCents: plan.PriceCents(), UserID: u.ID, PlanID: plan.ID}
	if u.StripeCustomerID != nil {
		in.CustomerID = *u.StripeCustomerID
	}
	pi, err := s.provider.CreatePaymentIntent(ctx, in)
	if err != nil {
		s.opts.logger.Warn("create payment intent failed", zap.Uint("user_id", userID), zap.Error(err))
		return nil, err
	}

	return &PaymentIntentResult{
		ClientSecret:    pi.ClientSecret,
		PaymentIntentID: pi.ID,
		PlanID:          plan.ID,
		Amount:          plan.PriceUSD,
	}, nil
}

type SubscribeResult struct {
	SubscriptionID string                 `json:"subscription_id"`
	Status         string                 `json:"status"`
	ClientSecret   string                 `json:"client_secret,omitempty"`
	Membership     *membership.Membership `json:"membership"`
}

// Subscribe creates a recurring subscription and activates the membership
// for one period. A retry of the same purchase reuses the provider
// subscription.
func (s *Service) Subscribe(ctx context.Context, userID, planID uint) (*SubscribeResult, error) {
	plan, err := s.paidPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if !plan.Purchasable() {
		return nil, plans.ErrPlanNoPrice
	}

	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.opts.clock()
	if u.Membership.EffectivelyActive(now) {
		return nil, ErrAlreadySubscribed
	}

	customerID, err := s.ensureCustomer(ctx, u)
	if err != nil {
		return nil, err
	}

	var term int64
	if err := s.db.WithContext(ctx).Model(&membership.History{}).
		Where("user_id = ?", u.ID).
		Count(&term).Error; err != nil {
		return nil, err
	}
	if m := u.Membership; m != nil && m.StartDate != nil {
		// the live row's term is archived below
		term++
	}

	sub, err := s.provider.CreateSubscription(ctx, stripe.SubscriptionInput{
		CustomerID: customerID,
		PriceID:    *plan.StripePriceID,
		UserID:     u.ID,
		Term:       int(term),
	})
	if err != nil {
		s.opts.logger.Warn("create subscription failed", zap.Uint("user_id", userID), zap.Error(err))
		return nil, err
	}

	m := u.Membership
	if m == nil {
		m = &membership.Membership{UserID: u.ID}
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := archive(tx, m, now); err != nil {
			return err
		}
		m.Activate(membership.Activation{
			Type:                 plan.Type,
			Source:               membership.SourceSubscription,
			StripeSubscriptionID: &sub.ID,
			StripePriceID:        plan.StripePriceID,
			ProviderAt:           sub.Created,
		}, now)
		if err := tx.Save(m).Error; err != nil {
			return fmt.Errorf("save membership: %w", err)
		}
		return tx.Create(&billing.Payment{
			UserID:               u.ID,
			PlanID:               &plan.ID,
			Kind:                 billing.KindSubscription,
			StripeSubscriptionID: &sub.ID,
			AmountUSD:            plan.PriceUSD,
			Status:               sub.Status,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	s.opts.logger.Info("membership activated",
		zap.Uint("user_id", u.ID),
		zap.Stringer("type", plan.Type),
		zap.String("subscription_id", sub.ID),
	)
	return &SubscribeResult{SubscriptionID: sub.ID, Status: sub.Status, ClientSecret: sub.ClientSecret, Membership: m}, nil
}

// ConfirmOneTimePayment grants one period of planID after the provider
// reports the payment intent as paid by this user, and gives the user a
// fresh free-tier counter.
func (s *Service) ConfirmOneTimePayment(ctx context.Context, userID, planID uint, paymentIntentID string) (*membership.Membership, error) {
	plan, err := s.paidPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.opts.clock()
	if u.Membership.EffectivelyActive(now) {
		return nil, ErrAlreadySubscribed
	}

	var applied int64
	if err := s.db.WithContext(ctx).Model(&billing.Payment{}).
		Where("payment_intent_id = ?", paymentIntentID).
		Count(&applied).Error; err != nil {
		return nil, err
	}
	if applied > 0 {
		return nil, ErrPaymentApplied
	}

	pi, err := s.provider.GetPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		return nil, err
	}
	if !pi.Succeeded() {
		return nil, ErrPaymentNotSucceeded
	}
	if err := matchIntent(pi, u.ID, plan); err != nil {
		return nil, err
	}

	m := u.Membership
	if m == nil {
		m = &membership.Membership{UserID: u.ID}
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := archive(tx, m, now); err != nil {
			return err
		}
		m.Activate(membership.Activation{Type: plan.Type, Source: membership.SourceOneTime}, now)
		if err := tx.Save(m).Error; err != nil {
			return fmt.Errorf("save membership: %w", err)
		}
		if err := tx.Model(&users.User{}).Where("id = ?", u.ID).Update("scan_count", 0).Error; err != nil {
			return fmt.Errorf("reset scan count: %w", err)
		}
		return tx.Create(&billing.Payment{
			UserID:          u.ID,
			PlanID:          &plan.ID,
			Kind:            billing.KindOneTime,
			PaymentIntentID: &pi.ID,
			AmountUSD:       float64(pi.AmountCents) / 100,
			Status:          billing.StatusSucceeded,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	s.opts.logger.Info("one-time membership granted",
		zap.Uint("user_id", u.ID),
		zap.Stringer("type", plan.Type),
		zap.String("payment_intent_id", pi.ID),
	)
	return m, nil
}

func matchIntent(pi *stripe.PaymentIntent, userID uint, plan *plans.Plan) error {
	if stripe.UserIDFrom(pi.Metadata) != strconv.FormatUint(uint64(userID), 10) {
		return ErrPaymentMismatch
	}
	if id := pi.Metadata[stripe.MetadataPlanID]; id != "" && id != strconv.FormatUint(uint64(plan.ID), 10) {
		return ErrPaymentMismatch
	}
	if pi.AmountCents < plan.PriceCents() {
		return ErrPaymentMismatch
	}
	return nil
}

// Cancel stops the provider subscription and only then ends the local term.
// When the provider call fails the membership is left exactly as it was.
func (s *Service) Cancel(ctx context.Context, userID uint) (*membership.Membership, error) {
	var m membership.Membership
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoActiveMembership
	}
	if err != nil {
		return nil, err
	}
	if !m.IsActive {
		return nil, ErrNoActiveMembership
	}

	var canceledAt *time.Time
	if m.StripeSubscriptionID != nil && *m.StripeSubscriptionID != "" {
		sub, err := s.provider.CancelSubscription(ctx, *m.StripeSubscriptionID)
		if err != nil {
			s.opts.logger.Warn("provider cancellation failed, membership unchanged",
				zap.Uint("user_id", userID),
				zap.String("subscription_id", *m.StripeSubscriptionID),
				zap.Error(err),
			)
			return nil, err
		}
		canceledAt = sub.CanceledAt
	}

	m.Terminate(s.opts.clock(), canceledAt)
	if err := s.db.WithContext(ctx).Save(&m).Error; err != nil {
		return nil, fmt.Errorf("save membership: %w", err)
	}

	s.opts.logger.Info("membership cancelled by user", zap.Uint("user_id", userID))
	return &m, nil
}

type StatusView struct {
	UserID              uint       `json:"user_id"`
	ScanCount           int        `json:"scan_count"`
	LastScanDate        *time.Time `json:"last_scan_date"`
	HasActiveMembership bool       `json:"has_active_membership"`
	MembershipType      string     `json:"membership_type"`
	StartDate           *time.Time `json:"start_date"`
	EndDate             *time.Time `json:"end_date"`
	RemainingScans      int        `json:"remaining_scans"`
}

// Status is a read-only view. A stale active row is reported as not active
// without being written.
func (s *Service) Status(ctx context.Context, userID uint) (*StatusView, error) {
	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.opts.clock()

	v := &StatusView{
		UserID:         u.ID,
		ScanCount:      u.ScanCount,
		LastScanDate:   u.LastScanDate,
		MembershipType: plans.TypeFree.String(),
		RemainingScans: max(0, plans.FreeScanLimit-u.ScanCount),
	}
	if m := u.Membership; m.EffectivelyActive(now) {
		v.HasActiveMembership = true
		v.MembershipType = m.Type.String()
		v.StartDate = m.StartDate
		v.EndDate = m.EndDate
		v.RemainingScans = plans.Unlimited
	}
	return v, nil
}

// Policy resolves the capabilities userID holds right now.
func (s *Service) Policy(ctx context.Context, userID uint) (access.Policy, error) {
	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return access.Policy{}, err
	}

	var plan *plans.Plan
	if u.Membership != nil {
		plan, err = s.catalog.ByType(ctx, u.Membership.Type)
		if err != nil && !errors.Is(err, plans.ErrPlanNotFound) {
			return access.Policy{}, err
		}
	}
	return access.ComputePolicy(s.opts.clock(), *u, plan), nil
}

func (s *Service) ListPaymentMethods(ctx context.Context, userID uint) ([]stripe.PaymentMethod, error) {
	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.StripeCustomerID == nil || *u.StripeCustomerID == "" {
		return []stripe.PaymentMethod{}, nil
	}
	return s.provider.ListPaymentMethods(ctx, *u.StripeCustomerID)
}

func (s *Service) PaymentHistory(ctx context.Context, userID uint) ([]billing.Payment, error) {
	var payments []billing.Payment
	err := s.db.WithContext(ctx).
		Preload("Plan").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&payments).Error
	return payments, err
}

func (s *Service) BillingPortalURL(ctx context.Context, userID uint) (string, error) {
	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if u.StripeCustomerID == nil || *u.StripeCustomerID == "" {
		return "", ErrNoCustomer
	}
	return s.provider.BillingPortalURL(ctx, *u.StripeCustomerID, s.opts.returnURL)
}

func (s *Service) paidPlan(ctx context.Context, planID uint) (*plans.Plan, error) {
	plan, err := s.catalog.ByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if !plan.Type.Paid() {
		return nil, ErrFreePlan
	}
	return plan, nil
}

func (s *Service) loadUser(ctx context.Context, userID uint) (*users.User, error) {
	var u users.User
	err := s.db.WithContext(ctx).Preload("Membership").First(&u, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Service) ensureCustomer(ctx context.Context, u *users.User) (string, error) {
	if u.StripeCustomerID != nil && *u.StripeCustomerID != "" {
		return *u.StripeCustomerID, nil
	}
	id, err := s.provider.CreateCustomer(ctx, u.Email, u.ID)
	if err != nil {
		return "", err
	}
	if err := s.db.WithContext(ctx).Model(&users.User{}).
		Where("id = ?", u.ID).
		Update("stripe_customer_id", id).Error; err != nil {
		return "", fmt.Errorf("store customer id: %w", err)
	}
	u.StripeCustomerID = &id
	return id, nil
}

// archive copies a finished term into the history table before the row is
// reused. Rows that never held a term are skipped.
func archive(tx *gorm.DB, m *membership.Membership, now time.Time) error {
	if m.ID == 0 || m.StartDate == nil {
		return nil
	}
	h := m.Archive(membership.ArchiveReason(m, now), now)
	if err := tx.Create(&h).Error; err != nil {
		return fmt.Errorf("archive membership: %w", err)
	}
	return nil
}
