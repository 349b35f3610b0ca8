package plans

import (
	"fmt"
	"strings"
)

// Type is the plan tier. Stored as an integer; the numbering is part of the
// persisted data and must not be reordered.
type Type int

const (
	TypeFree Type = iota
	TypeBasic
	TypePremium
	TypeEnterprise
)

// AllTypes lists every tier in ascending order.
var AllTypes = []Type{TypeFree, TypeBasic, TypePremium, TypeEnterprise}

func (t Type) String() string {
	switch t {
	case TypeFree:
		return "free"
	case TypeBasic:
		return "basic"
	case TypePremium:
		return "premium"
	case TypeEnterprise:
		return "enterprise"
	default:
		return fmt.Sprintf("plan_type(%d)", int(t))
	}
}

func (t Type) Valid() bool {
	switch t {
	case TypeFree, TypeBasic, TypePremium, TypeEnterprise:
		return true
	default:
		return false
	}
}

// Paid reports whether the tier is sold through the billing provider.
func (t Type) Paid() bool {
	switch t {
	case TypeBasic, TypePremium, TypeEnterprise:
		return true
	default:
		return false
	}
}

// ParseType accepts the lowercase name ("premium") or the numeric form ("2").
func ParseType(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, t := range AllTypes {
		if s == t.String() || s == fmt.Sprint(int(t)) {
			return t, nil
		}
	}
	return TypeFree, fmt.Errorf("unknown plan type %q", s)
}
