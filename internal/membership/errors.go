package membership

import (
	"fmt"

	"ats-scanner/internal/apperr"
)

var (
	ErrUserNotFound        = fmt.Errorf("user: %w", apperr.ErrNotFound)
	ErrNoActiveMembership  = fmt.Errorf("no active membership: %w", apperr.ErrNotFound)
	ErrAlreadySubscribed   = fmt.Errorf("%w: user already has an active membership", apperr.ErrValidation)
	ErrFreePlan            = fmt.Errorf("%w: the free plan cannot be purchased", apperr.ErrValidation)
	ErrPaymentNotSucceeded = fmt.Errorf("%w: payment has not succeeded", apperr.ErrValidation)
	ErrPaymentMismatch     = fmt.Errorf("%w: payment does not match this purchase", apperr.ErrValidation)
	ErrPaymentApplied      = fmt.Errorf("%w: payment was already applied", apperr.ErrValidation)
	ErrNoCustomer          = fmt.Errorf("%w: no billing customer yet, subscribe first", apperr.ErrValidation)
)
