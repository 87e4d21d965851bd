package server

import (
	"time"

	"github.com/annel0/coin-collector/internal/delivery"
	"github.com/annel0/coin-collector/internal/game"
	"github.com/annel0/coin-collector/internal/network"
	"github.com/annel0/coin-collector/internal/protocol"
)

// pendingInput - ввод клиента, ожидающий применения
type pendingInput struct {
	Sequence game.SequenceID
	Input    game.InputState
}

// Session - состояние одного подключения. Принадлежит горутине симуляции.
type Session struct {
	ID          string
	Transport   network.Transport
	State       game.PlayerState
	LastAck     game.SequenceID
	ConnectedAt time.Time
	RemoteAddr  string

	framer   *protocol.Framer
	inbound  *delivery.Queue[pendingInput]
	outbound *delivery.Queue[[]byte]
	lost     error
}

func newSession(id string, t network.Transport, state game.PlayerState, now time.Time,
	inboundDelay, outboundDelay time.Duration, clock delivery.Clock) *Session {
	return &Session{
		ID:          id,
		Transport:   t,
		State:       state,
		ConnectedAt: now,
		RemoteAddr:  t.RemoteAddr(),
		framer:      protocol.NewFramer(),
		inbound:     delivery.NewQueueWithClock[pendingInput](inboundDelay, clock),
		outbound:    delivery.NewQueueWithClock[[]byte](outboundDelay, clock),
	}
}

// PlayerID возвращает идентификатор игрока сессии
func (s *Session) PlayerID() game.PlayerID {
	return s.State.ID
}

// Send ставит пакет в исходящую очередь задержки
func (s *Session) Send(packet []byte) {
	s.outbound.Push(packet)
}

// PendingOutbound возвращает длину исходящей очереди
func (s *Session) PendingOutbound() int {
	return s.outbound.Len()
}

// teardown отбрасывает всё, что ещё не доставлено
func (s *Session) teardown() {
	s.inbound.Clear()
	s.outbound.Clear()
	s.framer.Reset()
	_ = s.Transport.Close()
}

// Sessions - арена сессий: поиск по ID сессии и по игроку, обход в порядке подключения
type Sessions struct {
	byID     map[string]*Session
	byPlayer map[game.PlayerID]*Session
	order    []*Session
}

// NewSessions создаёт пустую арену
func NewSessions() *Sessions {
	return &Sessions{
		byID:     make(map[string]*Session),
		byPlayer: make(map[game.PlayerID]*Session),
	}
}

// Add добавляет сессию в конец порядка обхода
func (ss *Sessions) Add(s *Session) {
	ss.byID[s.ID] = s
	ss.byPlayer[s.PlayerID()] = s
	ss.order = append(ss.order, s)
}

// Remove удаляет сессию. Возвращает false, если её нет.
func (ss *Sessions) Remove(id string) (*Session, bool) {
	s, ok := ss.byID[id]
	if !ok {
		return nil, false
	}
	delete(ss.byID, id)
	delete(ss.byPlayer, s.PlayerID())
	for i, o := range ss.order {
		if o == s {
			ss.order = append(ss.order[:i], ss.order[i+1:]...)
			break
		}
	}
	return s, true
}

// Get ищет сессию по ID
func (ss *Sessions) Get(id string) (*Session, bool) {
	s, ok := ss.byID[id]
	return s, ok
}

// ByPlayer ищет сессию по игроку
func (ss *Sessions) ByPlayer(id game.PlayerID) (*Session, bool) {
	s, ok := ss.byPlayer[id]
	return s, ok
}

// All возвращает сессии в порядке подключения. Срез нельзя менять.
func (ss *Sessions) All() []*Session {
	return ss.order
}

// Len возвращает число сессий
func (ss *Sessions) Len() int {
	return len(ss.order)
}
