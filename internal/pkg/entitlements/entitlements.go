package entitlements

import "strings"

type Plan string

const (
	PlanFree  Plan = "free"
	PlanBasic Plan = "basic"
	PlanPro   Plan = "pro"
	PlanMax   Plan = "max"
)

// CreditPacks lists the purchasable one-time credit pack sizes. The webhook
// engine accepts any positive credits value; this catalog is for the checkout
// surface and admin tooling.
var CreditPacks = []int64{1000, 5000, 10000, 50000}

// NormalizePlan maps arbitrary provider plan names onto the internal plan set.
func NormalizePlan(plan string) Plan {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case string(PlanBasic):
		return PlanBasic
	case string(PlanPro):
		return PlanPro
	case string(PlanMax):
		return PlanMax
	default:
		return PlanFree
	}
}

// PlanRank orders plans so the best entitling plan can be selected.
func PlanRank(plan Plan) int {
	switch plan {
	case PlanMax:
		return 3
	case PlanPro:
		return 2
	case PlanBasic:
		return 1
	default:
		return 0
	}
}

// NormalizeCycle maps billing cycle metadata onto the internal cycle set.
// Anything that is not explicitly yearly bills monthly.
func NormalizeCycle(cycle string) string {
	if strings.ToLower(strings.TrimSpace(cycle)) == "yearly" {
		return "yearly"
	}
	return "monthly"
}
