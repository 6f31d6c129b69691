package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/CoinFox/internal/pkg/cache"
	"github.com/ManuelReschke/CoinFox/internal/pkg/config"
	"github.com/ManuelReschke/CoinFox/internal/pkg/database"
	"github.com/ManuelReschke/CoinFox/internal/pkg/env"
	"github.com/ManuelReschke/CoinFox/internal/pkg/pipeline"
)

const (
	runTimeout   = 10 * time.Minute
	flushTimeout = 5 * time.Second
)

// sweeper runs one retry batch and exits. Meant for an external cron when
// WEBHOOK_SWEEP_INTERVAL_SECONDS=0 disables the in-process ticker.
//
//	sweeper [maxRetries]
func main() {
	env.SetupEnvFile()
	os.Exit(run(os.Args[1:], os.Stdout))
}

// run returns the exit code so deferred cleanup happens before the process
// exits.
func run(args []string, stdout io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		log.Print(err)
		return 1
	}

	maxRetries := cfg.Webhooks.MaxRetries
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Fprintln(stdout, "Usage: sweeper [maxRetries]")
			return 2
		}
		maxRetries = n
	}

	db, err := database.SetupDatabase(cfg.Database)
	if err != nil {
		log.Print(err)
		return 1
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	var client *redis.Client
	if cfg.Cache.Enabled() {
		client = cache.SetupCache(cfg.Cache)
		defer client.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	// queue workers are never started here, only the sweeper is used
	pipe := pipeline.New(ctx, cfg, db, client)
	defer pipe.Stop(flushTimeout)

	report, err := pipe.Sweeper.Sweep(ctx, maxRetries)
	if err != nil {
		log.Printf("Sweep failed: %v", err)
		return 1
	}

	if cfg.Webhooks.StalePending > 0 {
		recovered, err := pipe.Sweeper.RecoverStale(ctx, cfg.Webhooks.StalePending)
		if err != nil {
			log.Printf("Stale pending recovery failed: %v", err)
		} else if recovered > 0 {
			log.Printf("Recovered %d stale pending events", recovered)
		}
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Print(err)
		return 1
	}
	fmt.Fprintln(stdout, string(out))
	return 0
}
