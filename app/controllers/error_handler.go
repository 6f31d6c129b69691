package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CoinFox/internal/pkg/webhooks"
)

const BillingWebhookPath = "/webhooks/billing"

// NewErrorHandler acknowledges billing deliveries that fiber rejects before
// HandleBillingWebhook runs, such as bodies above the configured BodyLimit.
// Every other request gets fiber's default error response.
func NewErrorHandler(recorder webhooks.OutcomeRecorder) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		if c.Method() != fiber.MethodPost || c.Path() != BillingWebhookPath {
			return fiber.DefaultErrorHandler(c, err)
		}

		log.Errorf("[Webhooks] Delivery acknowledged without being stored (%d bytes declared): %v",
			c.Request().Header.ContentLength(), err)
		if recorder != nil {
			recorder.Record(webhooks.OutcomePersistFailed)
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
	}
}
