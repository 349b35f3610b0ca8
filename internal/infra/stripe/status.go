package stripe

import "strings"

// Normalized subscription statuses. Only StatusActive grants a membership.
const (
	StatusNone     = "none"
	StatusActive   = "active"
	StatusTrialing = "trialing"
	StatusPastDue  = "past_due"
	StatusCanceled = "canceled"
)

// NormalizeStatus folds the provider's subscription statuses into the set
// the membership code branches on.
func NormalizeStatus(s string) string {
	switch strings.TrimSpace(s) {
	case "":
		return StatusNone
	case "active":
		return StatusActive
	case "trialing":
		return StatusTrialing
	case "past_due", "unpaid":
		return StatusPastDue
	case "canceled", "incomplete_expired":
		return StatusCanceled
	default:
		return strings.TrimSpace(s)
	}
}

// GrantsMembership reports whether a subscription in status s keeps the
// membership active.
func GrantsMembership(s string) bool {
	return NormalizeStatus(s) == StatusActive
}
