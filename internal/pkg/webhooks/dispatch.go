package webhooks

import (
	"context"
	"sync"
	"time"

	"github.com/ManuelReschke/CoinFox/app/models"
	"github.com/gofiber/fiber/v2/log"
)

// InlineDispatcher processes events in a goroutine of the receiving process.
type InlineDispatcher struct {
	processor EventProcessor
	timeout   time.Duration
	wg        sync.WaitGroup
}

func NewInlineDispatcher(processor EventProcessor, timeout time.Duration) *InlineDispatcher {
	return &InlineDispatcher{processor: processor, timeout: timeout}
}

func (d *InlineDispatcher) Dispatch(_ context.Context, event *models.WebhookEvent) error {
	copied := *event
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		// Detached from the request context, which ends with the response.
		ctx := context.Background()
		if d.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d.timeout)
			defer cancel()
		}
		if err := d.processor.Process(ctx, &copied); err != nil {
			log.Warnf("[Webhooks] Inline processing of %s did not complete: %v", copied.ID, err)
		}
	}()
	return nil
}

// Wait blocks until all in-flight inline work is done.
func (d *InlineDispatcher) Wait() {
	d.wg.Wait()
}
