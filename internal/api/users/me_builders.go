package users

import (
	"time"

	"ats-scanner/internal/domain/access"
	"ats-scanner/internal/domain/membership"
	"ats-scanner/internal/domain/plans"
	"ats-scanner/internal/domain/users"
	"ats-scanner/internal/quota"
)

func BuildUserDTO(u users.User) UserDTO {
	return UserDTO{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		Role:         u.Role,
		AuthProvider: u.AuthProvider,
		HasPassword:  u.HasPassword(),
		CreatedAt:    u.CreatedAt,
	}
}

func BuildPlanDTO(p *plans.Plan) *PlanDTO {
	if p == nil {
		return nil
	}
	return &PlanDTO{
		ID:        p.ID,
		Name:      p.Name,
		Type:      p.Type.String(),
		Price:     p.PriceUSD,
		ScanLimit: p.ScanLimit,
	}
}

func BuildSubscriptionDTO(now time.Time, m *membership.Membership) *SubscriptionDTO {
	if m == nil {
		return nil
	}
	return &SubscriptionDTO{
		Type:                 m.Type.String(),
		Source:               string(m.Source),
		IsActive:             m.EffectivelyActive(now),
		Expired:              membership.StateOf(m, now) == membership.StateExpired,
		StartDate:            m.StartDate,
		EndDate:              m.EndDate,
		StripeSubscriptionID: m.StripeSubscriptionID,
		CanCancel:            m.IsActive && m.StripeSubscriptionID != nil && *m.StripeSubscriptionID != "",
	}
}

func BuildAccessDTO(p access.Policy) AccessDTO {
	caps := make([]string, 0, len(p.Capabilities))
	for _, f := range p.Capabilities {
		caps = append(caps, string(f))
	}
	return AccessDTO{
		State:        string(p.State),
		Plan:         p.Plan.String(),
		ScanMode:     string(p.ScanMode),
		Capabilities: caps,
	}
}

func BuildUsageDTO(u users.User, d quota.Decision) UsageDTO {
	return UsageDTO{
		CanScan:        d.CanScan,
		ScanCount:      u.ScanCount,
		RemainingScans: d.RemainingScans,
		LastScanDate:   u.LastScanDate,
	}
}
