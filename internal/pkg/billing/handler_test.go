package billing

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ManuelReschke/CoinFox/app/models"
	"github.com/ManuelReschke/CoinFox/internal/pkg/database"
	"github.com/ManuelReschke/CoinFox/internal/pkg/webhooks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestHandler(t *testing.T) (*WebhookHandler, *gorm.DB) {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.OpenSQLite(fmt.Sprintf("file:billing_%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	require.NoError(t, db.Create(&models.BillingPlanMapping{
		Provider:        "lemonsqueezy",
		ProviderPlanRef: "variant_pro",
		InternalPlan:    "pro",
		BillingInterval: models.BillingIntervalUnknown,
		IsActive:        true,
	}).Error)
	require.NoError(t, db.Create(&models.BillingPlanMapping{
		Provider:        "lemonsqueezy",
		ProviderPlanRef: "variant_business",
		InternalPlan:    "business",
		BillingInterval: models.BillingIntervalYear,
		IsActive:        true,
	}).Error)

	return NewWebhookHandler(NewServiceFromDB(db), "LemonSqueezy"), db
}

func loadSubscription(t *testing.T, db *gorm.DB, id string) models.BillingSubscription {
	t.Helper()

	var sub models.BillingSubscription
	require.NoError(t, db.Where("provider = ? AND provider_subscription_id = ?", "lemonsqueezy", id).First(&sub).Error)
	return sub
}

func TestHandlerCreatesAndUpdatesSubscription(t *testing.T) {
	handler, db := newTestHandler(t)
	ctx := context.Background()

	created := `{"event":"subscription_created","data":{"subscription":{"id":1001,"status":"active","plan_id":"variant_pro","interval":"month","current_period_end":"2026-11-15T00:00:00Z"},"customer":{"id":"cus_1","email":"ada@example.com"}}}`
	require.NoError(t, handler.Handle(ctx, "subscription_created", []byte(created)))

	sub := loadSubscription(t, db, "1001")
	assert.Equal(t, "cus_1", sub.CustomerID)
	assert.Equal(t, "ada@example.com", sub.CustomerEmail)
	assert.Equal(t, "pro", sub.InternalPlan)
	assert.Equal(t, "month", sub.BillingInterval)
	assert.Equal(t, "active", sub.Status)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.True(t, time.Date(2026, 11, 15, 0, 0, 0, 0, time.UTC).Equal(*sub.CurrentPeriodEnd))

	cancelled := `{"event":"subscription_cancelled","data":{"subscription":{"id":"1001","plan_id":"variant_pro","cancel_at_period_end":true},"customer_id":"cus_1"}}`
	require.NoError(t, handler.Handle(ctx, "subscription_cancelled", []byte(cancelled)))

	sub = loadSubscription(t, db, "1001")
	assert.Equal(t, "canceled", sub.Status)
	assert.True(t, sub.CancelAtPeriodEnd)
	assert.Equal(t, "subscription_cancelled", sub.LastEventType)

	var n int64
	require.NoError(t, db.Model(&models.BillingSubscription{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestHandlerResolvesPlanMappings(t *testing.T) {
	handler, db := newTestHandler(t)
	ctx := context.Background()

	require.NoError(t, handler.Handle(ctx, "subscription_created",
		[]byte(`{"data":{"subscription_id":"y1","plan_id":"variant_business","subscription":{"interval":"year"}}}`)))
	require.NoError(t, handler.Handle(ctx, "subscription_created",
		[]byte(`{"data":{"subscription_id":"m1","plan_id":"variant_business","subscription":{"interval":"month"}}}`)))
	require.NoError(t, handler.Handle(ctx, "subscription_created",
		[]byte(`{"data":{"subscription_id":"u1"}}`)))

	assert.Equal(t, "business", loadSubscription(t, db, "y1").InternalPlan)
	assert.Equal(t, "free", loadSubscription(t, db, "m1").InternalPlan)
	assert.Equal(t, "free", loadSubscription(t, db, "u1").InternalPlan)
}

func TestHandlerEffectivePlanAcrossSubscriptions(t *testing.T) {
	handler, _ := newTestHandler(t)
	ctx := context.Background()

	_, plan, err := handler.service.SyncSubscription(ctx, NormalizedSubscription{
		Provider: "lemonsqueezy", ProviderSubscriptionID: "a", CustomerID: "c9",
		ProviderPlanRef: "variant_pro", Status: "active",
	})
	require.NoError(t, err)
	assert.Equal(t, "pro", plan)

	_, plan, err = handler.service.SyncSubscription(ctx, NormalizedSubscription{
		Provider: "lemonsqueezy", ProviderSubscriptionID: "b", CustomerID: "c9",
		ProviderPlanRef: "variant_business", BillingInterval: "year", Status: "expired",
	})
	require.NoError(t, err)
	assert.Equal(t, "pro", plan, "expired subscriptions do not entitle")
}

func TestHandlerIgnoresOrdersAndUnknownEvents(t *testing.T) {
	handler, db := newTestHandler(t)
	ctx := context.Background()

	assert.NoError(t, handler.Handle(ctx, "order_created", []byte(`{"data":{"order_id":5}}`)))
	assert.NoError(t, handler.Handle(ctx, "license_key_created", []byte(`{}`)))

	var n int64
	require.NoError(t, db.Model(&models.BillingSubscription{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestHandlerRejectsMalformedSubscriptionPayloads(t *testing.T) {
	handler, _ := newTestHandler(t)
	ctx := context.Background()

	for _, payload := range []string{
		`{"data":{"customer_id":"c1"}}`,
		`{"data":{"subscription":{"id":{"nested":true}}}}`,
		`{"data":{"subscription":{"id":"s1","current_period_end":"tomorrow"}}}`,
	} {
		err := handler.Handle(ctx, "subscription_updated", []byte(payload))
		assert.ErrorIs(t, err, webhooks.ErrInvalidPayload, payload)
	}
}

func TestHandlerReadsTopLevelIdentifiers(t *testing.T) {
	handler, db := newTestHandler(t)
	ctx := context.Background()

	tests := []struct {
		payload string
		wantID  string
	}{
		{`{"event":"subscription_created","subscription_id":"top1","plan_id":"variant_pro","customer":{"id":"cus_9","email":"grace@example.com"}}`, "top1"},
		{`{"event":"subscription_updated","subscription":{"id":2002,"plan_id":"variant_pro","customer_id":"cus_7"}}`, "2002"},
		{`{"event":"subscription_updated","subscription_id":"root_id","data":{"subscription_id":"data_id"}}`, "data_id"},
	}
	for _, tt := range tests {
		require.NoError(t, handler.Handle(ctx, "subscription_updated", []byte(tt.payload)), tt.payload)
		loadSubscription(t, db, tt.wantID)

		// the ledger key and the synced subscription agree on the id
		logical := webhooks.ExtractLogicalID("subscription_updated", []byte(tt.payload), time.Now())
		assert.Equal(t, "subscription_"+tt.wantID, logical.Value, tt.payload)
	}

	top := loadSubscription(t, db, "top1")
	assert.Equal(t, "cus_9", top.CustomerID)
	assert.Equal(t, "grace@example.com", top.CustomerEmail)
	assert.Equal(t, "pro", top.InternalPlan)

	nested := loadSubscription(t, db, "2002")
	assert.Equal(t, "cus_7", nested.CustomerID)
	assert.Equal(t, "pro", nested.InternalPlan)

	var n int64
	require.NoError(t, db.Model(&models.BillingSubscription{}).
		Where("provider_subscription_id = ?", "root_id").Count(&n).Error)
	assert.Zero(t, n)
}
