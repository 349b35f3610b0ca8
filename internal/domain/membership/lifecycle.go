package membership

import (
	"time"

	"ats-scanner/internal/domain/plans"
)

// State is the lifecycle position of a user's membership at a given instant.
type State string

const (
	StateNone     State = "none"
	StateActive   State = "active"
	StateExpired  State = "expired"
	StateInactive State = "inactive"
)

// TermEnd is the end of a paid period starting at start.
func TermEnd(start time.Time) time.Time {
	return start.AddDate(0, 1, 0)
}

// StateOf classifies m at now. An active row whose end date has passed is
// Expired even though nobody has written IsActive=false yet.
func StateOf(m *Membership, now time.Time) State {
	switch {
	case m == nil:
		return StateNone
	case !m.IsActive:
		return StateInactive
	case m.EndDate != nil && !m.EndDate.After(now):
		return StateExpired
	default:
		return StateActive
	}
}

// EffectivelyActive applies the read-time staleness rule.
func (m *Membership) EffectivelyActive(now time.Time) bool {
	return StateOf(m, now) == StateActive
}

// EffectiveType is the tier the holder is entitled to at now.
func (m *Membership) EffectiveType(now time.Time) plans.Type {
	if m.EffectivelyActive(now) {
		return m.Type
	}
	return plans.TypeFree
}

// Activation describes a fresh paid term.
type Activation struct {
	Type                 plans.Type
	Source               Source
	StripeSubscriptionID *string
	StripePriceID        *string
	// Provider time the term was created at. Nil for purchases the provider
	// sends no subscription events about.
	ProviderAt           *time.Time
}

// Activate starts a new term on m. Any previous subscription id is replaced;
// callers archive the old term first.
func (m *Membership) Activate(a Activation, now time.Time) {
	start := now
	end := TermEnd(now)
	m.Type = a.Type
	m.Source = a.Source
	m.StartDate = &start
	m.EndDate = &end
	m.IsActive = true
	m.StripeSubscriptionID = a.StripeSubscriptionID
	m.StripePriceID = a.StripePriceID
	m.LastEventAt = nil
	if a.ProviderAt != nil {
		at := a.ProviderAt.UTC()
		m.LastEventAt = &at
	}
}

// Archive snapshots the current term.
func (m *Membership) Archive(reason string, now time.Time) History {
	return History{
		UserID:               m.UserID,
		MembershipID:         m.ID,
		Type:                 m.Type,
		Source:               m.Source,
		StartDate:            m.StartDate,
		EndDate:              m.EndDate,
		StripeSubscriptionID: m.StripeSubscriptionID,
		EndReason:            reason,
		ArchivedAt:           now,
	}
}

// Accepts reports whether a fact observed at eventAt is not older than the
// last one applied.
func (m *Membership) Accepts(eventAt time.Time) bool {
	return m.LastEventAt == nil || !eventAt.Before(*m.LastEventAt)
}

const (
	EndReasonCancelled = "cancelled"
	EndReasonExpired   = "expired"
	EndReasonReplaced  = "replaced"
)

// ArchiveReason names why the term being replaced ended.
func ArchiveReason(m *Membership, now time.Time) string {
	switch StateOf(m, now) {
	case StateExpired:
		return EndReasonExpired
	case StateInactive:
		return EndReasonCancelled
	default:
		return EndReasonReplaced
	}
}

// Terminate ends the term at now. providerAt is the provider's own
// cancellation time; it advances the event stamp so older provider facts stay
// skipped. The local clock never feeds the stamp.
func (m *Membership) Terminate(now time.Time, providerAt *time.Time) {
	end := now
	m.IsActive = false
	m.EndDate = &end
	if providerAt != nil && m.Accepts(*providerAt) {
		at := providerAt.UTC()
		m.LastEventAt = &at
	}
}
