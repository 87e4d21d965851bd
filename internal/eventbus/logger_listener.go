package eventbus

import (
	"context"
	"fmt"

	"github.com/annel0/coin-collector/internal/logging"
	"github.com/annel0/coin-collector/internal/protocol/events"
)

// StartLoggingListener подписывается на все события шины и пишет их в лог в читаемом виде.
// Вход и выход игроков идут в INFO, подбор монет - в DEBUG.
func StartLoggingListener(bus EventBus, logger *logging.Logger) (Subscription, error) {
	sub, err := bus.Subscribe(context.Background(), Filter{}, func(_ context.Context, env *Envelope) {
		ev, err := events.Unmarshal(env.EventType, env.Payload)
		if err != nil {
			logger.Warn("[EventBus] %s from %s: %v", env.ID, env.Source, err)
			return
		}
		switch e := ev.(type) {
		case events.PlayerJoined, events.PlayerLeft:
			logger.Info("[EventBus] %s", Describe(e))
		default:
			logger.Debug("[EventBus] %s", Describe(e))
		}
	})
	if err != nil {
		return nil, err
	}
	logger.Info("🪵 Журнал игровых событий подключён к шине")
	return sub, nil
}

// Describe возвращает однострочное описание игрового события
func Describe(ev events.Event) string {
	switch e := ev.(type) {
	case events.PlayerJoined:
		return fmt.Sprintf("player %d joined at (%.1f, %.1f), session %s", e.PlayerID, e.X, e.Y, e.SessionID)
	case events.PlayerLeft:
		return fmt.Sprintf("player %d left with score %d, session %s", e.PlayerID, e.Score, e.SessionID)
	case events.CoinCollected:
		return fmt.Sprintf("player %d collected coin %d at tick %d, score %d", e.PlayerID, e.CoinID, e.Tick, e.Score)
	default:
		return ev.EventType()
	}
}
