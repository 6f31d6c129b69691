package controllers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CoinFox/internal/pkg/webhooks"
)

const receiveTimeout = 10 * time.Second

type WebhookController struct {
	receiver *webhooks.Receiver
}

func NewWebhookController(receiver *webhooks.Receiver) *WebhookController {
	return &WebhookController{receiver: receiver}
}

// HandleBillingWebhook stores the delivery and acknowledges it with 200 no
// matter what happened internally. An error status would make the provider
// retry deliveries we cannot track yet.
func (wc *WebhookController) HandleBillingWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	eventType := webhooks.EventTypeFromPayload(rawBody, firstHeaderValue(c, "X-Event-Name"))

	ctx, cancel := context.WithTimeout(context.Background(), receiveTimeout)
	defer cancel()

	result := wc.receiver.Receive(ctx, eventType, rawBody)
	if !result.Persisted() {
		log.Errorf("[Webhooks] %s delivery acknowledged without being stored (%d bytes): %v", eventType, len(rawBody), result.Err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
}

func firstHeaderValue(c *fiber.Ctx, keys ...string) string {
	for _, k := range keys {
		v := strings.TrimSpace(c.Get(k))
		if v != "" {
			return v
		}
	}
	return ""
}
