package s3backup

import (
	"fmt"
	"strings"
	"time"

	appconfig "github.com/ManuelReschke/CoinFox/internal/pkg/config"
)

const defaultPrefix = "deadletter"

// Config holds the dead-letter archive configuration
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	Prefix          string
	Enabled         bool
}

// FromAppConfig maps the validated application config.
func FromAppConfig(cfg appconfig.DeadLetterConfig) *Config {
	return &Config{
		AccessKeyID:     cfg.AccessKey,
		SecretAccessKey: cfg.SecretKey,
		Region:          cfg.Region,
		BucketName:      cfg.Bucket,
		EndpointURL:     cfg.Endpoint,
		Prefix:          cfg.Prefix,
		Enabled:         cfg.Enabled,
	}
}

func (c *Config) IsEnabled() bool {
	return c.Enabled
}

// GetObjectKey returns <prefix>/YYYY/MM/<eventID>.json, dated by receipt.
func (c *Config) GetObjectKey(eventID string, receivedAt time.Time) string {
	prefix := strings.Trim(c.Prefix, "/")
	if prefix == "" {
		prefix = defaultPrefix
	}
	receivedAt = receivedAt.UTC()
	return fmt.Sprintf("%s/%04d/%02d/%s.json", prefix, receivedAt.Year(), int(receivedAt.Month()), eventID)
}
