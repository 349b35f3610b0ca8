package access

import (
	"time"

	"ats-scanner/internal/domain/membership"
	"ats-scanner/internal/domain/users"
)

// Effective access for UI/product: free|member|expired
func ComputeEffectiveAccessState(now time.Time, u users.User) AccessState {
	switch membership.StateOf(u.Membership, now) {
	case membership.StateActive:
		return AccessMember
	case membership.StateExpired:
		// Paid-through date passed but nobody has flipped the row yet.
		return AccessExpired
	default:
		return AccessFree
	}
}
