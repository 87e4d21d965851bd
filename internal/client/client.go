// Package client реализует клиентскую симуляцию: предсказание своего игрока,
// сверку с сервером и интерполяцию чужих игроков.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/annel0/coin-collector/internal/game"
	"github.com/annel0/coin-collector/internal/interpolation"
	"github.com/annel0/coin-collector/internal/logging"
	"github.com/annel0/coin-collector/internal/metrics"
	"github.com/annel0/coin-collector/internal/network"
	"github.com/annel0/coin-collector/internal/prediction"
	"github.com/annel0/coin-collector/internal/protocol"
	"github.com/annel0/coin-collector/internal/vec"
)

// ErrHandshakeTimeout - сервер не выдал идентификатор игрока за отведённое время
var ErrHandshakeTimeout = errors.New("handshake timeout")

// InputSource выдаёт ввод на очередной тик
type InputSource interface {
	Sample(view *View) game.InputState
}

// View - копия состояния клиента для отображения
type View struct {
	PlayerID game.PlayerID
	Local    game.PlayerState
	Remote   []game.PlayerState
	Coins    []game.CoinState
	Tick     uint32 // тик последнего применённого снимка
	RTT      time.Duration
	Pending  int // неподтверждённых вводов
}

// Options - параметры клиента. Нулевые значения заменяются значениями по умолчанию.
type Options struct {
	OutboundDelay      time.Duration
	InboundDelay       time.Duration
	InterpolationDelay time.Duration
	PingInterval       time.Duration
	HandshakeTimeout   time.Duration
	HandshakePoll      time.Duration

	Logger  *logging.Logger
	Metrics *metrics.ClientMetrics
	Clock   func() time.Time
}

func (o *Options) applyDefaults() {
	if o.InterpolationDelay <= 0 {
		o.InterpolationDelay = interpolation.RenderDelay
	}
	if o.PingInterval <= 0 {
		o.PingInterval = time.Second
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = time.Second
	}
	if o.HandshakePoll <= 0 {
		o.HandshakePoll = 10 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = logging.GetClientLogger()
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
}

// GameClient - клиентская симуляция. Step и Run вызываются из одной горутины; View - из любой.
type GameClient struct {
	opts    Options
	net     *ClientNetwork
	predict *prediction.Engine
	interp  *interpolation.Engine
	input   InputSource
	logger  *logging.Logger
	metrics *metrics.ClientMetrics
	now     func() time.Time

	local    game.PlayerState
	remote   []game.PlayerState
	coins    []game.CoinState
	lastTick uint32
	rtt      time.Duration
	lastPing time.Time
	pingSeq  uint32

	viewMu sync.RWMutex
	view   View
}

// NewGameClient создаёт клиента поверх установленного транспорта
func NewGameClient(t network.Transport, input InputSource, opts Options) *GameClient {
	opts.applyDefaults()

	return &GameClient{
		opts:    opts,
		net:     NewClientNetwork(t, opts.OutboundDelay, opts.InboundDelay, opts.Clock, opts.Logger, opts.Metrics),
		predict: prediction.NewEngine(),
		interp:  interpolation.NewEngineWithClock(opts.InterpolationDelay, opts.Clock),
		input:   input,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		now:     opts.Clock,
		local:   game.NewPlayerState(0, vec.Vec2{X: game.WorldWidth / 2, Y: game.WorldHeight / 2}),
	}
}

// Connect отправляет рукопожатие и ждёт идентификатор игрока
func (c *GameClient) Connect(ctx context.Context) error {
	c.net.Send(protocol.SerializeHandshake(0))

	deadline := time.NewTimer(c.opts.HandshakeTimeout)
	defer deadline.Stop()
	poll := time.NewTicker(c.opts.HandshakePoll)
	defer poll.Stop()

	for {
		if err := c.net.Update(); err != nil {
			return fmt.Errorf("handshake: %w", err)
		}
		if id := c.net.PlayerID(); id != 0 {
			c.local.ID = id
			c.publishView()
			c.logger.Info("Connected as player %d", id)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return ErrHandshakeTimeout
		case <-poll.C:
		}
	}
}

// Step выполняет один тик клиента
func (c *GameClient) Step() error {
	view := c.View()
	var input game.InputState
	if c.input != nil {
		input = c.input.Sample(&view)
	}

	seq := c.predict.ApplyInput(&c.local, input, game.FixedDT)
	c.net.Send(protocol.SerializeInput(seq, input))
	c.maybePing()

	if err := c.net.Update(); err != nil {
		c.handleConnectionLost(err)
		return err
	}

	for {
		pkt, ok := c.net.PopPacket()
		if !ok {
			break
		}
		if pkt.Header.Type == protocol.PacketWorldState {
			c.applyWorldState(pkt)
			break
		}
		c.handlePacket(pkt)
	}

	c.rebuildRemote()
	c.publishView()
	return nil
}

// Run крутит тики с фиксированным шагом до отмены ctx или потери соединения
func (c *GameClient) Run(ctx context.Context) error {
	tickDur := game.TickDuration(game.TickRate)
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	last := c.now()
	var acc time.Duration
	for {
		select {
		case <-ctx.Done():
			c.net.Close()
			return nil
		case <-ticker.C:
		}

		now := c.now()
		acc = game.Accumulate(acc, now.Sub(last))
		last = now
		for acc >= tickDur {
			if err := c.Step(); err != nil {
				c.net.Close()
				return err
			}
			acc -= tickDur
		}
	}
}

func (c *GameClient) maybePing() {
	now := c.now()
	if now.Sub(c.lastPing) < c.opts.PingInterval {
		return
	}
	c.lastPing = now
	c.pingSeq++
	c.net.Send(protocol.SerializePing(c.pingSeq, uint64(now.UnixMilli())))
}

func (c *GameClient) handlePacket(pkt protocol.Packet) {
	switch pkt.Header.Type {
	case protocol.PacketPong:
		ts, err := protocol.DeserializeTimestamp(pkt.Payload)
		if err != nil {
			logging.LogProtocolError(c.logger, "server", err, pkt.Payload)
			c.metrics.IncMalformed()
			return
		}
		c.rtt = c.now().Sub(time.UnixMilli(int64(ts)))
		c.metrics.SetRTT(c.rtt)
	case protocol.PacketEvent:
		ev, err := protocol.DeserializeEvent(pkt.Payload)
		if err != nil {
			logging.LogProtocolError(c.logger, "server", err, pkt.Payload)
			c.metrics.IncMalformed()
			return
		}
		c.metrics.IncCoinEvent()
		if ev.PlayerID == c.local.ID {
			c.logger.Debug("Coin %d collected, score %d", ev.CoinID, ev.Score)
		}
	}
}

// applyWorldState сверяет своего игрока и пополняет буферы интерполяции чужих
func (c *GameClient) applyWorldState(pkt protocol.Packet) {
	ws, err := protocol.DeserializeWorldState(pkt.Payload)
	if err != nil {
		logging.LogProtocolError(c.logger, "server", err, pkt.Payload)
		c.metrics.IncMalformed()
	}
	c.lastTick = ws.Tick

	present := make(map[game.PlayerID]struct{}, len(ws.Players))
	for _, p := range ws.Players {
		if p.ID == c.local.ID {
			res := c.predict.Reconcile(p, pkt.Header.Sequence, &c.local, game.FixedDT)
			c.metrics.ObserveReconcile(res.Corrected, res.Resynced, res.Error, res.Pending)
			if res.Corrected {
				c.logger.Debug("Prediction corrected: error=%.2f replayed=%d", res.Error, res.Replayed)
			}
			continue
		}
		present[p.ID] = struct{}{}
		c.interp.AddSnapshot(p, ws.Tick)
	}
	c.interp.RetainOnly(present)
	c.coins = ws.Coins
}

func (c *GameClient) rebuildRemote() {
	c.remote = c.remote[:0]
	for _, id := range c.interp.EntityIDs() {
		if st, ok := c.interp.InterpolatedState(id); ok {
			c.remote = append(c.remote, st)
		}
	}
}

func (c *GameClient) handleConnectionLost(err error) {
	c.logger.Warn("Connection lost: %v", err)
	c.predict.Clear()
	c.interp.Clear()
	c.remote = nil
	c.publishView()
}

func (c *GameClient) publishView() {
	v := View{
		PlayerID: c.local.ID,
		Local:    c.local,
		Remote:   append([]game.PlayerState(nil), c.remote...),
		Coins:    append([]game.CoinState(nil), c.coins...),
		Tick:     c.lastTick,
		RTT:      c.rtt,
		Pending:  c.predict.HistorySize(),
	}
	c.viewMu.Lock()
	c.view = v
	c.viewMu.Unlock()
}

// View возвращает копию состояния на конец последнего тика
func (c *GameClient) View() View {
	c.viewMu.RLock()
	defer c.viewMu.RUnlock()
	return c.view
}

// PlayerID возвращает идентификатор своего игрока
func (c *GameClient) PlayerID() game.PlayerID {
	return c.local.ID
}

// Network возвращает сетевой слой клиента
func (c *GameClient) Network() *ClientNetwork {
	return c.net
}

// Close закрывает соединение
func (c *GameClient) Close() error {
	return c.net.Close()
}
