package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	DispatchModeQueue  = "queue"
	DispatchModeInline = "inline"
	DispatchModeNone   = "none"
)

type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Cache      CacheConfig
	Webhooks   WebhookConfig
	Cron       CronConfig
	DeadLetter DeadLetterConfig
	Billing    BillingConfig
}

type AppConfig struct {
	Host            string `validate:"required"`
	Port            int    `validate:"min=1,max=65535"`
	Env             string `validate:"oneof=dev prod test"`
	MonitorUser     string
	MonitorPassword string
}

func (c AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c AppConfig) IsDev() bool {
	return c.Env == "dev"
}

type DatabaseConfig struct {
	Driver      string `validate:"oneof=mysql postgres sqlite"`
	Host        string `validate:"required_unless=Driver sqlite"`
	Port        int    `validate:"min=0,max=65535"`
	User        string
	Password    string
	Name        string `validate:"required_unless=Driver sqlite"`
	Path        string `validate:"required_if=Driver sqlite"`
	SSLMode     string
	AutoMigrate bool
}

type CacheConfig struct {
	Host     string
	Port     int `validate:"min=0,max=65535"`
	Password string
	DB       int `validate:"min=0"`
}

// Enabled reports whether a Redis/Dragonfly cache is configured.
func (c CacheConfig) Enabled() bool {
	return c.Host != ""
}

func (c CacheConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type WebhookConfig struct {
	MaxRetries     int    `validate:"min=1"`
	SweepBatchSize int    `validate:"min=1,max=10000"`
	SweepInterval  time.Duration
	DispatchMode   string `validate:"oneof=queue inline none"`
	QueueWorkers   int    `validate:"min=1,max=64"`
	HandlerTimeout time.Duration
	StalePending   time.Duration
	LockTTL        time.Duration
	BodyLimit      int `validate:"min=1024"`
}

type CronConfig struct {
	Secret          string
	RateLimitMax    int `validate:"min=1"`
	RateLimitWindow time.Duration
}

type DeadLetterConfig struct {
	Enabled   bool
	Bucket    string `validate:"required_if=Enabled true"`
	Region    string `validate:"required_if=Enabled true"`
	Endpoint  string
	AccessKey string
	SecretKey string
	Prefix    string
}

type BillingConfig struct {
	Provider string `validate:"required"`
}

var validate = validator.New()

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_host", "0.0.0.0")
	v.SetDefault("app_port", 4000)
	v.SetDefault("app_env", "prod")
	v.SetDefault("monitor_user", "")
	v.SetDefault("monitor_password", "")

	v.SetDefault("db_driver", "mysql")
	v.SetDefault("db_host", "127.0.0.1")
	v.SetDefault("db_port", 3306)
	v.SetDefault("db_user", "")
	v.SetDefault("db_password", "")
	v.SetDefault("db_name", "")
	v.SetDefault("db_path", "coinfox.db")
	v.SetDefault("db_sslmode", "disable")
	v.SetDefault("db_auto_migrate", false)

	v.SetDefault("cache_host", "")
	v.SetDefault("cache_port", 6379)
	v.SetDefault("cache_password", "")
	v.SetDefault("cache_db", 0)

	v.SetDefault("webhook_max_retries", 5)
	v.SetDefault("webhook_sweep_batch_size", 100)
	v.SetDefault("webhook_sweep_interval_seconds", 300)
	v.SetDefault("webhook_dispatch_mode", DispatchModeInline)
	v.SetDefault("webhook_queue_workers", 3)
	v.SetDefault("webhook_handler_timeout_seconds", 30)
	v.SetDefault("webhook_stale_pending_minutes", 15)
	v.SetDefault("webhook_lock_ttl_seconds", 120)
	v.SetDefault("webhook_body_limit_bytes", 1<<20)

	v.SetDefault("cron_secret", "")
	v.SetDefault("cron_rate_limit_max", 10)
	v.SetDefault("cron_rate_limit_window_seconds", 60)

	v.SetDefault("s3_deadletter_enabled", false)
	v.SetDefault("s3_bucket_name", "")
	v.SetDefault("s3_region", "")
	v.SetDefault("s3_endpoint_url", "")
	v.SetDefault("s3_access_key_id", "")
	v.SetDefault("s3_secret_access_key", "")
	v.SetDefault("s3_deadletter_prefix", "deadletter")

	v.SetDefault("billing_provider", "lemonsqueezy")
}

// Load reads the configuration from the process environment (after
// env.SetupEnvFile has merged the .env file) and validates it.
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	seconds := func(key string) time.Duration { return time.Duration(v.GetInt(key)) * time.Second }

	cfg := Config{
		App: AppConfig{
			Host:            v.GetString("app_host"),
			Port:            v.GetInt("app_port"),
			Env:             v.GetString("app_env"),
			MonitorUser:     v.GetString("monitor_user"),
			MonitorPassword: v.GetString("monitor_password"),
		},
		Database: DatabaseConfig{
			Driver:      v.GetString("db_driver"),
			Host:        v.GetString("db_host"),
			Port:        v.GetInt("db_port"),
			User:        v.GetString("db_user"),
			Password:    v.GetString("db_password"),
			Name:        v.GetString("db_name"),
			Path:        v.GetString("db_path"),
			SSLMode:     v.GetString("db_sslmode"),
			AutoMigrate: v.GetBool("db_auto_migrate"),
		},
		Cache: CacheConfig{
			Host:     v.GetString("cache_host"),
			Port:     v.GetInt("cache_port"),
			Password: v.GetString("cache_password"),
			DB:       v.GetInt("cache_db"),
		},
		Webhooks: WebhookConfig{
			MaxRetries:     v.GetInt("webhook_max_retries"),
			SweepBatchSize: v.GetInt("webhook_sweep_batch_size"),
			SweepInterval:  seconds("webhook_sweep_interval_seconds"),
			DispatchMode:   v.GetString("webhook_dispatch_mode"),
			QueueWorkers:   v.GetInt("webhook_queue_workers"),
			HandlerTimeout: seconds("webhook_handler_timeout_seconds"),
			StalePending:   time.Duration(v.GetInt("webhook_stale_pending_minutes")) * time.Minute,
			LockTTL:        seconds("webhook_lock_ttl_seconds"),
			BodyLimit:      v.GetInt("webhook_body_limit_bytes"),
		},
		Cron: CronConfig{
			Secret:          v.GetString("cron_secret"),
			RateLimitMax:    v.GetInt("cron_rate_limit_max"),
			RateLimitWindow: seconds("cron_rate_limit_window_seconds"),
		},
		DeadLetter: DeadLetterConfig{
			Enabled:   v.GetBool("s3_deadletter_enabled"),
			Bucket:    v.GetString("s3_bucket_name"),
			Region:    v.GetString("s3_region"),
			Endpoint:  v.GetString("s3_endpoint_url"),
			AccessKey: v.GetString("s3_access_key_id"),
			SecretKey: v.GetString("s3_secret_access_key"),
			Prefix:    v.GetString("s3_deadletter_prefix"),
		},
		Billing: BillingConfig{
			Provider: v.GetString("billing_provider"),
		},
	}

	if cfg.Webhooks.DispatchMode == DispatchModeQueue && !cfg.Cache.Enabled() {
		return Config{}, fmt.Errorf("invalid config: WEBHOOK_DISPATCH_MODE=queue requires CACHE_HOST")
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
