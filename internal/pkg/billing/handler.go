package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ManuelReschke/CoinFox/internal/pkg/webhooks"
	"github.com/gofiber/fiber/v2/log"
)

// WebhookHandler applies billing provider events to local subscription
// state. It implements webhooks.DomainHandler.
type WebhookHandler struct {
	service  *Service
	provider string
}

func NewWebhookHandler(service *Service, provider string) *WebhookHandler {
	return &WebhookHandler{service: service, provider: strings.ToLower(strings.TrimSpace(provider))}
}

func (h *WebhookHandler) Handle(ctx context.Context, eventType string, payload []byte) error {
	switch {
	case strings.HasPrefix(eventType, "subscription_"):
		in, err := parseSubscriptionEvent(h.provider, eventType, payload)
		if err != nil {
			return err
		}
		sub, plan, err := h.service.SyncSubscription(ctx, in)
		if err != nil {
			return fmt.Errorf("sync subscription %s: %w", in.ProviderSubscriptionID, err)
		}
		log.Infof("[Billing] Subscription %s is %s (plan %s, customer plan %s)",
			sub.ProviderSubscriptionID, sub.Status, sub.InternalPlan, plan)
		return nil
	case strings.HasPrefix(eventType, "order_"):
		// Orders carry no recurring entitlement; subscription events follow.
		log.Infof("[Billing] Acknowledged %s", eventType)
		return nil
	default:
		log.Debugf("[Billing] Ignoring unhandled event %s", eventType)
		return nil
	}
}

func parseSubscriptionEvent(provider, eventType string, payload []byte) (NormalizedSubscription, error) {
	var envelope subscriptionEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return NormalizedSubscription{}, fmt.Errorf("%w: %v", webhooks.ErrInvalidPayload, err)
	}

	scopes := envelope.scopes()
	in := NormalizedSubscription{
		Provider:               provider,
		ProviderSubscriptionID: firstOf(scopes, (*subscriptionScope).subscriptionID),
		CustomerID:             firstOf(scopes, (*subscriptionScope).customerID),
		CustomerEmail:          firstOf(scopes, (*subscriptionScope).customerEmail),
		ProviderPlanRef:        firstOf(scopes, (*subscriptionScope).planRef),
		EventType:              eventType,
		RawPayloadJSON:         string(payload),
	}

	reported := ""
	for _, scope := range scopes {
		if sub := scope.Subscription; sub != nil {
			reported = sub.Status
			in.BillingInterval = sub.Interval
			in.CurrentPeriodEnd = sub.CurrentPeriodEnd
			in.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
			break
		}
	}
	in.Status = subscriptionStatus(eventType, reported)

	if in.ProviderSubscriptionID == "" {
		return NormalizedSubscription{}, fmt.Errorf("%w: %s without subscription id", webhooks.ErrInvalidPayload, eventType)
	}
	return in, nil
}
