package eventbus

import (
	"context"

	"github.com/annel0/coin-collector/internal/logging"
)

// StartForwarder пересылает события из локальной шины во внешнюю (JetStream).
// Ошибки внешней шины логируются и не возвращаются в симуляцию.
func StartForwarder(ctx context.Context, from, to EventBus, f Filter, logger *logging.Logger) (Subscription, error) {
	return from.Subscribe(ctx, f, func(ctx context.Context, ev *Envelope) {
		if err := to.Publish(ctx, ev); err != nil {
			logger.Warn("Forward %s %s failed: %v", ev.EventType, ev.ID, err)
		}
	})
}
