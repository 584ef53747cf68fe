package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/conference-reservation/internal/queue"
)

const publishTimeout = 5 * time.Second

// EventPublisher delivers committed-transaction events to downstream
// consumers.  queue.Publisher and queue.NopPublisher implement it.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.Event) error
}

// publishAsync sends ev off the request path.  The ledger has already
// committed, so a failed publish is only logged.
func publishAsync(p EventPublisher, log *zap.Logger, ev queue.Event) {
	if p == nil {
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := p.Publish(ctx, ev); err != nil {
			log.Warn("publish event failed",
				zap.String("event_id", ev.ID),
				zap.String("type", string(ev.Type)),
				zap.Error(err))
		}
	}()
}
