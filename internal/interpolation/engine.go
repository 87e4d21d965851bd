// Package interpolation сглаживает движение удалённых игроков между снимками сервера.
//
// Клиент показывает чужих игроков с отставанием RenderDelay: к этому моменту у него
// обычно уже есть два снимка по обе стороны от времени отрисовки.
package interpolation

import (
	"sort"
	"sync"
	"time"

	"github.com/annel0/coin-collector/internal/game"
	"github.com/annel0/coin-collector/internal/vec"
)

const (
	// BufferCapacity - сколько последних снимков хранится на игрока (1 секунда при 60 Гц)
	BufferCapacity = 60
	// RenderDelay - отставание отрисовки от времени получения снимков
	RenderDelay = game.InterpolationDelay
)

// Snapshot - состояние игрока на момент получения снимка
type Snapshot struct {
	State      game.PlayerState
	ReceivedAt time.Time
	Tick       uint32
}

// Engine хранит буферы снимков по игрокам
type Engine struct {
	mu      sync.RWMutex
	buffers map[game.PlayerID][]Snapshot
	delay   time.Duration
	now     func() time.Time
}

// NewEngine создаёт движок с задержкой RenderDelay и системными часами
func NewEngine() *Engine {
	return NewEngineWithClock(RenderDelay, time.Now)
}

// NewEngineWithClock создаёт движок с заданной задержкой и часами
func NewEngineWithClock(delay time.Duration, now func() time.Time) *Engine {
	return &Engine{
		buffers: make(map[game.PlayerID][]Snapshot),
		delay:   delay,
		now:     now,
	}
}

// AddSnapshot добавляет снимок игрока с текущим временем получения
func (e *Engine) AddSnapshot(state game.PlayerState, tick uint32) {
	snap := Snapshot{State: state, ReceivedAt: e.now(), Tick: tick}

	e.mu.Lock()
	defer e.mu.Unlock()

	buf := append(e.buffers[state.ID], snap)
	if len(buf) > BufferCapacity {
		n := copy(buf, buf[len(buf)-BufferCapacity:])
		buf = buf[:n]
	}
	e.buffers[state.ID] = buf
}

// InterpolatedState возвращает состояние игрока на момент now - delay.
// Возвращает false, пока у игрока меньше двух снимков.
func (e *Engine) InterpolatedState(id game.PlayerID) (game.PlayerState, bool) {
	renderTime := e.now().Add(-e.Delay())

	e.mu.RLock()
	defer e.mu.RUnlock()

	buf := e.buffers[id]
	if len(buf) < 2 {
		return game.PlayerState{}, false
	}

	first, last := buf[0], buf[len(buf)-1]
	if !renderTime.After(first.ReceivedAt) {
		return first.State, true
	}
	if !renderTime.Before(last.ReceivedAt) {
		return last.State, true
	}

	// Первый снимок, полученный позже времени отрисовки
	i := sort.Search(len(buf), func(i int) bool {
		return buf[i].ReceivedAt.After(renderTime)
	})
	from, to := buf[i-1], buf[i]

	t := float32(1)
	if span := to.ReceivedAt.Sub(from.ReceivedAt); span > 0 {
		t = float32(float64(renderTime.Sub(from.ReceivedAt)) / float64(span))
	}
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	return game.PlayerState{
		ID:       id,
		Position: vec.Lerp(from.State.Position, to.State.Position, t),
		Velocity: to.State.Velocity,
		Score:    to.State.Score,
	}, true
}

// RemoveEntity удаляет буфер игрока
func (e *Engine) RemoveEntity(id game.PlayerID) {
	e.mu.Lock()
	delete(e.buffers, id)
	e.mu.Unlock()
}

// RetainOnly удаляет буферы игроков, отсутствующих в present.
// Возвращает удалённые идентификаторы.
func (e *Engine) RetainOnly(present map[game.PlayerID]struct{}) []game.PlayerID {
	e.mu.Lock()
	defer e.mu.Unlock()

	var removed []game.PlayerID
	for id := range e.buffers {
		if _, ok := present[id]; !ok {
			delete(e.buffers, id)
			removed = append(removed, id)
		}
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })
	return removed
}

// Clear удаляет все буферы
func (e *Engine) Clear() {
	e.mu.Lock()
	e.buffers = make(map[game.PlayerID][]Snapshot)
	e.mu.Unlock()
}

// EntityIDs возвращает отсортированный список игроков с буферами
func (e *Engine) EntityIDs() []game.PlayerID {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ids := make([]game.PlayerID, 0, len(e.buffers))
	for id := range e.buffers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// BufferSize возвращает число снимков игрока
func (e *Engine) BufferSize(id game.PlayerID) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.buffers[id])
}

// SetDelay меняет задержку отрисовки
func (e *Engine) SetDelay(d time.Duration) {
	e.mu.Lock()
	e.delay = d
	e.mu.Unlock()
}

// Delay возвращает задержку отрисовки
func (e *Engine) Delay() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.delay
}
