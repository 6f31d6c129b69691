package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/CoinFox/app/controllers"
	"github.com/ManuelReschke/CoinFox/internal/pkg/config"
	"github.com/ManuelReschke/CoinFox/internal/pkg/middleware"
)

type CronRouter struct {
	controller *controllers.CronController
	cfg        config.CronConfig
	storage    fiber.Storage
}

func (h CronRouter) InstallRouter(app *fiber.App) {
	limiterCfg := limiter.Config{
		Max:        h.cfg.RateLimitMax,
		Expiration: h.cfg.RateLimitWindow,
	}
	// shared counters across instances when redis is available
	if h.storage != nil {
		limiterCfg.Storage = h.storage
	}

	cron := app.Group("/cron", middleware.CronSecretMiddleware(h.cfg.Secret), limiter.New(limiterCfg))
	cron.Get("/webhooks/retry", h.controller.HandleRetrySweep)
	cron.Post("/webhooks/retry", h.controller.HandleRetrySweep)
	cron.Get("/webhooks/stats", h.controller.HandleWebhookStats)
}

// NewCronRouter creates the scheduler routes. storage may be nil, then the
// limiter keeps its counters in memory.
func NewCronRouter(controller *controllers.CronController, cfg config.CronConfig, storage fiber.Storage) *CronRouter {
	return &CronRouter{controller: controller, cfg: cfg, storage: storage}
}
