package eventbus

import (
	"context"
	"strconv"
	"time"

	"github.com/annel0/coin-collector/internal/game"
	"github.com/annel0/coin-collector/internal/logging"
	"github.com/annel0/coin-collector/internal/protocol/events"
	"github.com/google/uuid"
)

// GamePublisher превращает события сервера в Envelope и публикует их в шину.
// Подключается к серверу как hook; публикация в memory bus не блокирует симуляцию.
type GamePublisher struct {
	bus    EventBus
	source string
	logger *logging.Logger
	now    func() time.Time
}

// NewGamePublisher создаёт публикатор с именем источника source
func NewGamePublisher(bus EventBus, source string, logger *logging.Logger) *GamePublisher {
	return &GamePublisher{bus: bus, source: source, logger: logger, now: time.Now}
}

// Emit оборачивает событие в Envelope и публикует его
func (p *GamePublisher) Emit(ev events.Event, correlationID string, tick uint32) {
	env := &Envelope{
		ID:            uuid.NewString(),
		Timestamp:     p.now().UTC(),
		Source:        p.source,
		EventType:     ev.EventType(),
		Version:       1,
		CorrelationID: correlationID,
		Priority:      PriorityNormal,
		Payload:       ev.Marshal(),
		Metadata:      map[string]string{"tick": strconv.FormatUint(uint64(tick), 10)},
	}
	if err := p.bus.Publish(context.Background(), env); err != nil {
		p.logger.Warn("Publish %s failed: %v", env.EventType, err)
	}
}

func (p *GamePublisher) OnPlayerJoined(tick uint32, sessionID string, pl game.PlayerState) {
	p.Emit(events.PlayerJoined{
		PlayerID:  pl.ID,
		SessionID: sessionID,
		X:         pl.Position.X,
		Y:         pl.Position.Y,
	}, sessionID, tick)
}

func (p *GamePublisher) OnPlayerLeft(tick uint32, sessionID string, pl game.PlayerState) {
	p.Emit(events.PlayerLeft{PlayerID: pl.ID, SessionID: sessionID, Score: pl.Score}, sessionID, tick)
}

func (p *GamePublisher) OnCoinCollected(tick uint32, sessionID string, pl game.PlayerState, coinID uint32) {
	p.Emit(events.CoinCollected{Tick: tick, PlayerID: pl.ID, CoinID: coinID, Score: pl.Score}, sessionID, tick)
}

func (p *GamePublisher) OnWorldState(*game.WorldState) {}
