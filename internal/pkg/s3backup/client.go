package s3backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ManuelReschke/CoinFox/app/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2/log"
)

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Client archives dead-lettered webhook events to S3 so they survive
// database cleanups and can be replayed by hand.
type Client struct {
	s3Client objectPutter
	config   *Config
}

// deadLetterDocument is the archived JSON shape.
type deadLetterDocument struct {
	Event      *models.WebhookEvent `json:"event"`
	ArchivedAt time.Time            `json:"archived_at"`
}

// NewClient creates a new dead-letter archive client
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	if !cfg.IsEnabled() {
		return nil, fmt.Errorf("dead-letter archive is disabled")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			// MinIO / Backblaze B2
			o.UsePathStyle = true
		}
	})

	log.Infof("[DeadLetter] Archiving exhausted webhook events to bucket: %s", cfg.BucketName)
	return &Client{s3Client: s3Client, config: cfg}, nil
}

// Archive implements webhooks.DeadLetterSink.
func (c *Client) Archive(ctx context.Context, event *models.WebhookEvent) error {
	body, err := json.MarshalIndent(deadLetterDocument{Event: event, ArchivedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", event.ID, err)
	}

	objectKey := c.config.GetObjectKey(event.ID, event.ReceivedAt)
	_, err = c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.config.BucketName),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"event-type":  event.EventType,
			"retry-count": fmt.Sprintf("%d", event.RetryCount),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", objectKey, err)
	}

	log.Infof("[DeadLetter] Archived event %s to s3://%s/%s", event.ID, c.config.BucketName, objectKey)
	return nil
}
