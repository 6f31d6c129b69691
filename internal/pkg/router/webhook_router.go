package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/CoinFox/app/controllers"
)

type WebhookRouter struct {
	controller *controllers.WebhookController
}

func (h WebhookRouter) InstallRouter(app *fiber.App) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	// Provider deliveries. No auth, no rate limit: every request is stored and
	// acknowledged.
	app.Post(controllers.BillingWebhookPath, h.controller.HandleBillingWebhook)
}

func NewWebhookRouter(controller *controllers.WebhookController) *WebhookRouter {
	return &WebhookRouter{controller: controller}
}
