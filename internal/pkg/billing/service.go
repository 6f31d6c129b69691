package billing

import (
	"context"
	"errors"
	"strings"

	"github.com/ManuelReschke/CoinFox/app/models"
	"gorm.io/gorm"
)

// Service provides provider-neutral subscription synchronization.
type Service struct {
	repo Repository
}

// NewService creates a billing service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// ResolveMappedPlan resolves provider plan references to an internal plan.
// Unmapped references resolve to the free plan with gorm.ErrRecordNotFound.
func (s *Service) ResolveMappedPlan(ctx context.Context, provider, providerPlanRef, interval string) (string, error) {
	p := strings.ToLower(strings.TrimSpace(provider))
	ref := strings.TrimSpace(providerPlanRef)
	i := normalizeInterval(interval)
	if p == "" || ref == "" {
		return string(PlanFree), gorm.ErrRecordNotFound
	}

	// Prefer exact interval match.
	m, err := s.repo.FindActivePlanMapping(ctx, p, ref, i)
	if err == nil {
		return normalizePlan(m.InternalPlan), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	// Fallback for mappings that intentionally use "unknown".
	m, err = s.repo.FindActivePlanMapping(ctx, p, ref, models.BillingIntervalUnknown)
	if err == nil {
		return normalizePlan(m.InternalPlan), nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return string(PlanFree), gorm.ErrRecordNotFound
	}
	return "", err
}

// SyncSubscription upserts provider subscription data and returns the
// customer's effective plan across all of their subscriptions.
func (s *Service) SyncSubscription(ctx context.Context, in NormalizedSubscription) (*models.BillingSubscription, string, error) {
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" || strings.TrimSpace(in.ProviderSubscriptionID) == "" {
		return nil, "", errors.New("provider and provider_subscription_id are required")
	}

	interval := normalizeInterval(in.BillingInterval)
	status := normalizeStatus(in.Status)
	if status == "" {
		status = models.BillingStatusActive
	}

	internalPlan, err := s.ResolveMappedPlan(ctx, provider, in.ProviderPlanRef, interval)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", err
	}
	if internalPlan == "" {
		internalPlan = string(PlanFree)
	}

	sub := &models.BillingSubscription{
		Provider:               provider,
		ProviderSubscriptionID: strings.TrimSpace(in.ProviderSubscriptionID),
		CustomerID:             strings.TrimSpace(in.CustomerID),
		CustomerEmail:          strings.TrimSpace(in.CustomerEmail),
		ProviderPlanRef:        strings.TrimSpace(in.ProviderPlanRef),
		InternalPlan:           internalPlan,
		BillingInterval:        interval,
		Status:                 status,
		CurrentPeriodEnd:       in.CurrentPeriodEnd,
		CancelAtPeriodEnd:      in.CancelAtPeriodEnd,
		LastEventType:          in.EventType,
		RawPayloadJSON:         in.RawPayloadJSON,
	}
	if err := s.repo.UpsertSubscription(ctx, sub); err != nil {
		return nil, "", err
	}

	if sub.CustomerID == "" {
		return sub, effectivePlan([]models.BillingSubscription{*sub}), nil
	}
	subs, err := s.repo.ListSubscriptionsByCustomer(ctx, provider, sub.CustomerID)
	if err != nil {
		return sub, "", err
	}
	return sub, effectivePlan(subs), nil
}

// effectivePlan picks the best plan among entitling subscriptions.
func effectivePlan(subs []models.BillingSubscription) string {
	best := string(PlanFree)
	for _, sub := range subs {
		if !isEntitlingStatus(sub.Status) {
			continue
		}
		candidate := normalizePlan(sub.InternalPlan)
		if planRank(candidate) > planRank(best) {
			best = candidate
		}
	}
	return best
}
