package access

import "ats-scanner/internal/domain/plans"

// CapabilitiesFor lists the features a caller may use. Anything short of an
// active membership falls back to the free tier.
func CapabilitiesFor(state AccessState, plan *plans.Plan) []plans.Feature {
	if state != AccessMember {
		return []plans.Feature{plans.FeatureScan}
	}
	return plan.Features()
}

func ScanModeFromState(state AccessState, plan *plans.Plan) ScanMode {
	if state == AccessMember && plan.Unlimited() {
		return ScanUnlimited
	}
	return ScanMetered
}
