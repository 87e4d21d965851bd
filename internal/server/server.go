// Package server реализует авторитетную симуляцию игры с фиксированным шагом.
package server

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/annel0/coin-collector/internal/delivery"
	"github.com/annel0/coin-collector/internal/game"
	"github.com/annel0/coin-collector/internal/logging"
	"github.com/annel0/coin-collector/internal/metrics"
	"github.com/annel0/coin-collector/internal/network"
	"github.com/annel0/coin-collector/internal/physics"
	"github.com/annel0/coin-collector/internal/protocol"
	"github.com/google/uuid"
)

// ErrCommandQueueFull - команда управления не принята, симуляция не успевает их разбирать
var ErrCommandQueueFull = errors.New("server command queue full")

// Acceptor отдаёт принятые соединения без блокировки
type Acceptor interface {
	Poll() network.Transport
}

// Options - параметры сервера. Нулевые значения заменяются значениями по умолчанию.
type Options struct {
	TickRate       int
	BroadcastEvery int
	MaxPlayers     int
	MaxCoins       int

	InboundDelay  time.Duration // задержка вводов клиента перед применением
	OutboundDelay time.Duration // задержка исходящих пакетов

	Logger  *logging.Logger
	Metrics *metrics.ServerMetrics
	Hooks   []Hook
	Rand    *rand.Rand
	Clock   func() time.Time
}

func (o *Options) applyDefaults() {
	if o.TickRate <= 0 {
		o.TickRate = game.TickRate
	}
	if o.BroadcastEvery <= 0 {
		o.BroadcastEvery = game.BroadcastEvery
	}
	if o.MaxPlayers <= 0 || o.MaxPlayers > game.MaxPlayersPerServer {
		o.MaxPlayers = game.MaxPlayersPerServer
	}
	if o.MaxCoins <= 0 || o.MaxCoins > protocol.MaxEntityCount {
		o.MaxCoins = game.MaxCoins
	}
	if o.Logger == nil {
		o.Logger = logging.GetServerLogger()
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
}

// PlayerInfo - сведения об игроке для внешних наблюдателей
type PlayerInfo struct {
	SessionID   string           `json:"session_id"`
	State       game.PlayerState `json:"state"`
	LastAck     uint32           `json:"last_ack"`
	RemoteAddr  string           `json:"remote_addr"`
	ConnectedAt time.Time        `json:"connected_at"`
}

// Snapshot - копия состояния сервера на конец последнего тика
type Snapshot struct {
	Tick          uint32           `json:"tick"`
	Players       []PlayerInfo     `json:"players"`
	Coins         []game.CoinState `json:"coins"`
	StartedAt     time.Time        `json:"started_at"`
	InboundDelay  time.Duration    `json:"inbound_delay"`
	OutboundDelay time.Duration    `json:"outbound_delay"`
}

// GameServer - авторитетная симуляция. Tick и Run вызываются из одной горутины;
// Snapshot, SetLatency и Kick безопасны из любых горутин.
type GameServer struct {
	opts     Options
	acceptor Acceptor
	logger   *logging.Logger
	metrics  *metrics.ServerMetrics
	rng      *rand.Rand
	now      func() time.Time

	sessions     *Sessions
	coins        []game.CoinState
	tick         uint32
	nextPlayerID game.PlayerID
	startedAt    time.Time

	inboundDelay  time.Duration
	outboundDelay time.Duration

	commands chan func()

	snapMu   sync.RWMutex
	snapshot Snapshot
}

// NewGameServer создаёт сервер и раскладывает монеты
func NewGameServer(acceptor Acceptor, opts Options) *GameServer {
	opts.applyDefaults()

	s := &GameServer{
		opts:          opts,
		acceptor:      acceptor,
		logger:        opts.Logger,
		metrics:       opts.Metrics,
		rng:           opts.Rand,
		now:           opts.Clock,
		sessions:      NewSessions(),
		nextPlayerID:  1,
		inboundDelay:  opts.InboundDelay,
		outboundDelay: opts.OutboundDelay,
		commands:      make(chan func(), 64),
	}
	s.startedAt = s.now()
	s.spawnCoins()
	s.publishSnapshot()
	return s
}

func (s *GameServer) spawnCoins() {
	s.coins = make([]game.CoinState, s.opts.MaxCoins)
	for i := range s.coins {
		s.coins[i] = game.CoinState{
			ID:       uint32(i),
			Position: physics.RandomCoinPosition(s.rng),
			Active:   true,
		}
	}
	s.logger.Info("Spawned %d coins", len(s.coins))
}

// Run крутит симуляцию с фиксированным шагом до отмены ctx
func (s *GameServer) Run(ctx context.Context) error {
	tickDur := game.TickDuration(s.opts.TickRate)
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	s.logger.Info("🎮 Simulation started: %d Hz, broadcast every %d ticks", s.opts.TickRate, s.opts.BroadcastEvery)

	last := s.now()
	var acc time.Duration
	for {
		select {
		case <-ctx.Done():
			s.Shutdown()
			return nil
		case <-ticker.C:
		}

		now := s.now()
		acc = game.Accumulate(acc, now.Sub(last))
		last = now
		for acc >= tickDur {
			s.Tick()
			acc -= tickDur
		}
	}
}

// Tick выполняет один шаг симуляции
func (s *GameServer) Tick() {
	start := time.Now()

	s.runCommands()
	s.acceptConnections()
	s.receiveAll()
	s.dropLostSessions()
	s.processInputs()
	s.checkCollisions()
	if s.tick%uint32(s.opts.BroadcastEvery) == 0 {
		s.broadcastWorldState()
	}
	s.flushOutbound()
	s.publishSnapshot()

	s.tick++
	s.metrics.ObserveTick(time.Since(start))
}

// CurrentTick возвращает номер следующего тика
func (s *GameServer) CurrentTick() uint32 {
	return s.tick
}

// Sessions возвращает арену сессий. Только для горутины симуляции.
func (s *GameServer) Sessions() *Sessions {
	return s.sessions
}

// Coins возвращает монеты. Только для горутины симуляции.
func (s *GameServer) Coins() []game.CoinState {
	return s.coins
}

// acceptConnections создаёт сессии для новых соединений
func (s *GameServer) acceptConnections() {
	if s.acceptor == nil {
		return
	}
	for {
		t := s.acceptor.Poll()
		if t == nil {
			return
		}
		if s.sessions.Len() >= s.opts.MaxPlayers {
			s.logger.Warn("Server full (%d players), rejecting %s", s.sessions.Len(), t.RemoteAddr())
			_ = t.Close()
			continue
		}
		s.addSession(t)
	}
}

func (s *GameServer) addSession(t network.Transport) *Session {
	id := s.nextPlayerID
	s.nextPlayerID++

	state := game.NewPlayerState(id, physics.RandomSpawnPosition(s.rng))
	sess := newSession(uuid.NewString(), t, state, s.now(), s.inboundDelay, s.outboundDelay, delivery.Clock(s.now))
	s.sessions.Add(sess)

	sess.Send(protocol.SerializeHandshakeResponse(0, id))

	s.logger.Info("👋 Client connected: player=%d session=%s addr=%s", id, sess.ID, sess.RemoteAddr)
	s.metrics.IncConnect()
	s.metrics.SetPlayers(s.sessions.Len())
	for _, h := range s.opts.Hooks {
		h.OnPlayerJoined(s.tick, sess.ID, sess.State)
	}
	return sess
}

// receiveAll забирает всё, что пришло от клиентов, и разбирает пакеты
func (s *GameServer) receiveAll() {
	for _, sess := range s.sessions.All() {
		if sess.lost != nil {
			continue
		}
		for {
			chunk, err := sess.Transport.Receive()
			if err != nil {
				sess.lost = err
				break
			}
			if chunk == nil {
				break
			}
			s.metrics.AddBytesReceived(len(chunk))
			sess.framer.Feed(chunk)
		}
		sess.framer.Drain(func(pkt protocol.Packet) {
			s.handlePacket(sess, pkt)
		})
	}
}

func (s *GameServer) handlePacket(sess *Session, pkt protocol.Packet) {
	switch pkt.Header.Type {
	case protocol.PacketInput:
		input, err := protocol.DeserializeInput(pkt.Payload)
		if err != nil {
			logging.LogProtocolError(s.logger, sess.ID, err, pkt.Payload)
			s.metrics.IncMalformed(pkt.Header.Type.String())
		}
		sess.inbound.Push(pendingInput{Sequence: pkt.Header.Sequence, Input: input})

	case protocol.PacketPing:
		ts, err := protocol.DeserializeTimestamp(pkt.Payload)
		if err != nil {
			logging.LogProtocolError(s.logger, sess.ID, err, pkt.Payload)
			s.metrics.IncMalformed(pkt.Header.Type.String())
			return
		}
		sess.Send(protocol.SerializePong(pkt.Header.Sequence, ts))

	case protocol.PacketHandshake:
		// ID уже выдан при подключении
		s.logger.Trace("Handshake from player %d ignored", sess.PlayerID())

	default:
		s.logger.Debug("Unexpected packet %s from player %d", pkt.Header.Type, sess.PlayerID())
		s.metrics.IncMalformed(pkt.Header.Type.String())
	}
}

// dropLostSessions удаляет сессии с оборванным соединением
func (s *GameServer) dropLostSessions() {
	var lost []*Session
	for _, sess := range s.sessions.All() {
		if sess.lost != nil {
			lost = append(lost, sess)
		}
	}
	for _, sess := range lost {
		s.logger.Info("Client disconnected: player=%d reason=%v", sess.PlayerID(), sess.lost)
		s.removeSession(sess)
	}
}

func (s *GameServer) removeSession(sess *Session) {
	if _, ok := s.sessions.Remove(sess.ID); !ok {
		return
	}
	sess.teardown()

	s.metrics.IncDisconnect()
	s.metrics.SetPlayers(s.sessions.Len())
	for _, h := range s.opts.Hooks {
		h.OnPlayerLeft(s.tick, sess.ID, sess.State)
	}
}

// processInputs применяет не больше одного готового ввода на соединение
func (s *GameServer) processInputs() {
	for _, sess := range s.sessions.All() {
		in, ok := sess.inbound.TryPop()
		if !ok {
			continue
		}
		physics.ApplyInput(&sess.State, in.Input, game.FixedDT)
		sess.LastAck = in.Sequence
		s.metrics.IncInput()
	}
}

// checkCollisions засчитывает подобранные монеты и сразу переставляет их
func (s *GameServer) checkCollisions() {
	for _, sess := range s.sessions.All() {
		for i := range s.coins {
			coin := &s.coins[i]
			if !coin.Active || !physics.CheckCollision(sess.State.Position, coin.Position) {
				continue
			}

			sess.State.Score++
			coin.Active = false
			coin.Position = physics.RandomCoinPosition(s.rng)
			coin.Active = true

			s.logger.Debug("Player %d collected coin %d, score %d", sess.PlayerID(), coin.ID, sess.State.Score)
			s.metrics.IncCoinCollected()

			event := protocol.SerializeEvent(0, protocol.CoinEvent{
				PlayerID: sess.PlayerID(),
				CoinID:   coin.ID,
				Score:    sess.State.Score,
			})
			for _, other := range s.sessions.All() {
				other.Send(event)
			}
			for _, h := range s.opts.Hooks {
				h.OnCoinCollected(s.tick, sess.ID, sess.State, coin.ID)
			}
		}
	}
}

// worldState собирает снимок мира в порядке подключения игроков
func (s *GameServer) worldState() *game.WorldState {
	ws := &game.WorldState{
		Tick:    s.tick,
		Players: make([]game.PlayerState, 0, s.sessions.Len()),
		Coins:   make([]game.CoinState, len(s.coins)),
	}
	for _, sess := range s.sessions.All() {
		ws.Players = append(ws.Players, sess.State)
	}
	copy(ws.Coins, s.coins)
	return ws
}

// broadcastWorldState рассылает снимок. В номере пакета каждый получатель видит
// последний применённый сервером ввод своего игрока.
func (s *GameServer) broadcastWorldState() {
	ws := s.worldState()
	base, err := protocol.SerializeWorldState(0, ws)
	if err != nil {
		s.logger.Error("Failed to serialize world state: %v", err)
		return
	}

	for _, sess := range s.sessions.All() {
		sess.Send(protocol.WithSequence(base, sess.LastAck))
	}
	s.metrics.IncBroadcast()
	for _, h := range s.opts.Hooks {
		h.OnWorldState(ws)
	}
}

// flushOutbound передаёт транспорту все пакеты, чья задержка истекла
func (s *GameServer) flushOutbound() {
	pending := 0
	for _, sess := range s.sessions.All() {
		for sess.lost == nil {
			data, ok := sess.outbound.TryPop()
			if !ok {
				break
			}
			err := sess.Transport.Send(data)
			switch {
			case err == nil:
				s.metrics.AddBytesSent(len(data))
			case errors.Is(err, network.ErrSendBufferFull):
				s.logger.Debug("Send buffer full for player %d, packet dropped", sess.PlayerID())
				s.metrics.IncSendDropped()
			default:
				sess.lost = err
			}
		}
		pending += sess.outbound.Len()
	}
	s.metrics.SetOutboundQueueLen(pending)
}

func (s *GameServer) publishSnapshot() {
	snap := Snapshot{
		Tick:          s.tick,
		Players:       make([]PlayerInfo, 0, s.sessions.Len()),
		Coins:         make([]game.CoinState, len(s.coins)),
		StartedAt:     s.startedAt,
		InboundDelay:  s.inboundDelay,
		OutboundDelay: s.outboundDelay,
	}
	copy(snap.Coins, s.coins)
	for _, sess := range s.sessions.All() {
		snap.Players = append(snap.Players, PlayerInfo{
			SessionID:   sess.ID,
			State:       sess.State,
			LastAck:     sess.LastAck,
			RemoteAddr:  sess.RemoteAddr,
			ConnectedAt: sess.ConnectedAt,
		})
	}

	s.snapMu.Lock()
	s.snapshot = snap
	s.snapMu.Unlock()
}

// Snapshot возвращает состояние на конец последнего тика
func (s *GameServer) Snapshot() Snapshot {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.snapshot
}

// enqueue передаёт команду в горутину симуляции
func (s *GameServer) enqueue(cmd func()) error {
	select {
	case s.commands <- cmd:
		return nil
	default:
		return ErrCommandQueueFull
	}
}

func (s *GameServer) runCommands() {
	for {
		select {
		case cmd := <-s.commands:
			cmd()
		default:
			return
		}
	}
}

// SetLatency меняет искусственные задержки для всех текущих и будущих сессий.
// Уже поставленные в очередь пакеты сохраняют своё время выдачи.
func (s *GameServer) SetLatency(inbound, outbound time.Duration) error {
	if inbound < 0 || outbound < 0 {
		return fmt.Errorf("latency must be non-negative: inbound=%s outbound=%s", inbound, outbound)
	}
	return s.enqueue(func() {
		s.inboundDelay = inbound
		s.outboundDelay = outbound
		for _, sess := range s.sessions.All() {
			sess.inbound.SetDelay(inbound)
			sess.outbound.SetDelay(outbound)
		}
		s.logger.Info("Latency changed: inbound=%s outbound=%s", inbound, outbound)
	})
}

// Kick закрывает соединение игрока на следующем тике
func (s *GameServer) Kick(id game.PlayerID) error {
	return s.enqueue(func() {
		if sess, ok := s.sessions.ByPlayer(id); ok {
			s.logger.Info("Player %d kicked", id)
			s.removeSession(sess)
		}
	})
}

// Shutdown закрывает все сессии. Неотправленные пакеты отбрасываются.
func (s *GameServer) Shutdown() {
	for _, sess := range append([]*Session(nil), s.sessions.All()...) {
		s.removeSession(sess)
	}
	s.publishSnapshot()
	s.logger.Info("🛑 Simulation stopped at tick %d", s.tick)
}
