package webhooks

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExtractLogicalID(t *testing.T) {
	receivedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"nested subscription in data", `{"event":"subscription_created","data":{"subscription":{"id":12345}}}`, "subscription_12345"},
		{"top level subscription_id", `{"subscription_id":"abc"}`, "subscription_abc"},
		{"subscription beats order in data", `{"data":{"order_id":7},"subscription_id":"s1"}`, "subscription_s1"},
		{"data beats top level", `{"data":{"customer_id":1},"customer_id":2}`, "customer_1"},
		{"order beats customer", `{"data":{"order":{"id":"o-9"},"customer":{"id":3}}}`, "order_o-9"},
		{"empty id is absent", `{"data":{"subscription_id":"","order_id":"5"}}`, "order_5"},
		{"null object is absent", `{"data":{"subscription":null,"customer_id":8}}`, "customer_8"},
		{"large numeric id kept verbatim", `{"data":{"order_id":12345678901234567890}}`, "order_12345678901234567890"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractLogicalID("subscription_created", []byte(tt.payload), receivedAt)
			assert.Equal(t, tt.want, got.Value)
			assert.True(t, got.Stable)
		})
	}
}

func TestExtractLogicalIDFallback(t *testing.T) {
	receivedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	want := fmt.Sprintf("order_refunded_%d", receivedAt.UnixMilli())

	for _, payload := range []string{`{"data":{"foo":"bar"}}`, `[1,2,3]`, `"text"`, `{"data":{"subscription":{"id":true}}}`} {
		got := ExtractLogicalID("order_refunded", []byte(payload), receivedAt)
		assert.Equal(t, want, got.Value, payload)
		assert.False(t, got.Stable, payload)
	}

	got := ExtractLogicalID("", []byte(`{}`), receivedAt)
	assert.Equal(t, fmt.Sprintf("unknown_%d", receivedAt.UnixMilli()), got.Value)
}

func TestEventTypeFromPayload(t *testing.T) {
	tests := []struct {
		payload  string
		fallback string
		want     string
	}{
		{`{"event":"subscription_created","meta":{"event_name":"ignored"}}`, "header", "subscription_created"},
		{`{"meta":{"event_name":"order_created"}}`, "header", "order_created"},
		{`{"data":{}}`, "subscription_updated", "subscription_updated"},
		{`{"event":"  "}`, "", "unknown"},
		{`not json`, " ", "unknown"},
	}

	for _, tt := range tests {
		if got := EventTypeFromPayload([]byte(tt.payload), tt.fallback); got != tt.want {
			t.Fatalf("EventTypeFromPayload(%q, %q) = %q, want %q", tt.payload, tt.fallback, got, tt.want)
		}
	}
}
