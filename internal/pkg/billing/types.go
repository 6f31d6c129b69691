package billing

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// NormalizedSubscription is the provider-agnostic shape used by the billing
// service when syncing external subscription state into local tables.
type NormalizedSubscription struct {
	Provider               string
	ProviderSubscriptionID string
	CustomerID             string
	CustomerEmail          string
	ProviderPlanRef        string
	BillingInterval        string
	Status                 string
	CurrentPeriodEnd       *time.Time
	CancelAtPeriodEnd      bool
	EventType              string
	RawPayloadJSON         string
}

// flexibleID accepts provider ids sent as JSON strings or numbers.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexibleID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %s", string(b))
	}
	*f = flexibleID(n.String())
	return nil
}

// subscriptionEnvelope accepts ids inside "data" and at the top level. The
// "data" object wins, the same order the logical id lookup uses.
type subscriptionEnvelope struct {
	Data *subscriptionScope `json:"data"`
	subscriptionScope
}

type subscriptionScope struct {
	Subscription   *subscriptionObject `json:"subscription"`
	SubscriptionID flexibleID          `json:"subscription_id"`
	Customer       *customerObject     `json:"customer"`
	CustomerID     flexibleID          `json:"customer_id"`
	PlanID         flexibleID          `json:"plan_id"`
}

func (e *subscriptionEnvelope) scopes() []*subscriptionScope {
	if e.Data == nil {
		return []*subscriptionScope{&e.subscriptionScope}
	}
	return []*subscriptionScope{e.Data, &e.subscriptionScope}
}

func (s *subscriptionScope) subscriptionID() string {
	if s.Subscription != nil && s.Subscription.ID != "" {
		return string(s.Subscription.ID)
	}
	return string(s.SubscriptionID)
}

func (s *subscriptionScope) planRef() string {
	if s.Subscription != nil && s.Subscription.PlanID != "" {
		return string(s.Subscription.PlanID)
	}
	return string(s.PlanID)
}

func (s *subscriptionScope) customerID() string {
	if s.Customer != nil && s.Customer.ID != "" {
		return string(s.Customer.ID)
	}
	if s.CustomerID != "" || s.Subscription == nil {
		return string(s.CustomerID)
	}
	return string(s.Subscription.CustomerID)
}

func (s *subscriptionScope) customerEmail() string {
	if s.Customer == nil {
		return ""
	}
	return s.Customer.Email
}

func firstOf(scopes []*subscriptionScope, get func(*subscriptionScope) string) string {
	for _, scope := range scopes {
		if v := get(scope); v != "" {
			return v
		}
	}
	return ""
}

type subscriptionObject struct {
	ID                flexibleID `json:"id"`
	Status            string     `json:"status"`
	PlanID            flexibleID `json:"plan_id"`
	CustomerID        flexibleID `json:"customer_id"`
	Interval          string     `json:"interval"`
	CurrentPeriodEnd  *time.Time `json:"current_period_end"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
}

type customerObject struct {
	ID    flexibleID `json:"id"`
	Email string     `json:"email"`
}
