package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/CoinFox/app/controllers"
	"github.com/ManuelReschke/CoinFox/internal/pkg/cache"
	"github.com/ManuelReschke/CoinFox/internal/pkg/config"
	"github.com/ManuelReschke/CoinFox/internal/pkg/database"
	"github.com/ManuelReschke/CoinFox/internal/pkg/env"
	"github.com/ManuelReschke/CoinFox/internal/pkg/pipeline"
	"github.com/ManuelReschke/CoinFox/internal/pkg/router"
)

const shutdownTimeout = 20 * time.Second

func main() {
	env.SetupEnvFile()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if !cfg.App.IsDev() {
		fiberlog.SetLevel(fiberlog.LevelInfo)
	}

	app, pipe := NewApplication(cfg)
	pipe.Start()

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			log.Printf("HTTP server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	pipe.Stop(shutdownTimeout)
}

func NewApplication(cfg config.Config) (*fiber.App, *pipeline.Pipeline) {
	db, err := database.SetupDatabase(cfg.Database)
	if err != nil {
		log.Fatal(err)
	}

	var client *redis.Client
	var limiterStorage fiber.Storage
	if cfg.Cache.Enabled() {
		client = cache.SetupCache(cfg.Cache)
		limiterStorage = cache.NewFiberStorage(cfg.Cache)
	}

	pipe := pipeline.New(context.Background(), cfg, db, client)

	// init fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    cfg.Webhooks.BodyLimit,
		ErrorHandler: controllers.NewErrorHandler(pipe.Counters),
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	if cfg.App.MonitorUser != "" && cfg.App.MonitorPassword != "" {
		app.Get("/metrics", basicauth.New(basicauth.Config{
			Users: map[string]string{
				cfg.App.MonitorUser: cfg.App.MonitorPassword,
			},
		}), monitor.New())
	}

	// ROUTER
	router.InstallRouter(app,
		router.NewWebhookRouter(controllers.NewWebhookController(pipe.Receiver)),
		router.NewCronRouter(
			controllers.NewCronController(pipe.Sweeper, pipe.Repo, pipe.Counters, pipe.Queue, cfg.Webhooks.MaxRetries),
			cfg.Cron,
			limiterStorage,
		),
	)

	return app, pipe
}
