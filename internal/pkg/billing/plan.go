package billing

import "strings"

type Plan string

const (
	PlanFree     Plan = "free"
	PlanPro      Plan = "pro"
	PlanBusiness Plan = "business"
)

func normalizePlan(plan string) string {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case string(PlanPro):
		return string(PlanPro)
	case string(PlanBusiness):
		return string(PlanBusiness)
	default:
		return string(PlanFree)
	}
}

func planRank(plan string) int {
	switch normalizePlan(plan) {
	case string(PlanBusiness):
		return 2
	case string(PlanPro):
		return 1
	default:
		return 0
	}
}

func normalizeInterval(interval string) string {
	i := strings.ToLower(strings.TrimSpace(interval))
	switch i {
	case "month", "year":
		return i
	case "monthly":
		return "month"
	case "yearly", "annual":
		return "year"
	default:
		return "unknown"
	}
}

func isEntitlingStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "active", "trialing", "past_due":
		return true
	default:
		return false
	}
}

func normalizeStatus(status string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	switch s {
	case "active", "trialing", "past_due", "paused", "expired", "unpaid":
		return s
	case "on_trial":
		return "trialing"
	case "cancelled", "canceled":
		return "canceled"
	default:
		return ""
	}
}

// subscriptionStatus prefers the status reported in the payload and falls
// back to what the event name implies.
func subscriptionStatus(eventType, reported string) string {
	if s := normalizeStatus(reported); s != "" {
		return s
	}
	switch eventType {
	case "subscription_cancelled", "subscription_canceled":
		return "canceled"
	case "subscription_expired":
		return "expired"
	case "subscription_paused":
		return "paused"
	case "subscription_payment_failed":
		return "past_due"
	default:
		return "active"
	}
}
