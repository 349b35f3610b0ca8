package access

import (
	"time"

	"ats-scanner/internal/domain/plans"
	"ats-scanner/internal/domain/users"
)

type Policy struct {
	State        AccessState
	Plan         plans.Type
	ScanMode     ScanMode
	Capabilities []plans.Feature
}

// ComputePolicy derives what u may do at now. plan is the catalog entry for
// the user's membership type, nil when they have none.
func ComputePolicy(now time.Time, u users.User, plan *plans.Plan) Policy {
	state := ComputeEffectiveAccessState(now, u)

	tier := plans.TypeFree
	if state == AccessMember && plan != nil {
		tier = plan.Type
	}

	return Policy{
		State:        state,
		Plan:         tier,
		ScanMode:     ScanModeFromState(state, plan),
		Capabilities: CapabilitiesFor(state, plan),
	}
}

func (p Policy) Allows(f plans.Feature) bool {
	for _, c := range p.Capabilities {
		if c == f {
			return true
		}
	}
	return false
}
