package storage

import (
	"context"
	"sync"
	"time"

	"github.com/annel0/coin-collector/internal/game"
	"github.com/annel0/coin-collector/internal/logging"
)

// Recorder сохраняет счёт сессий в фоне.
// Подключается к серверу как hook: события кладутся в буферизованный канал без блокировки,
// при переполнении запись отбрасывается.
type Recorder struct {
	repo    ScoreRepo
	queue   chan ScoreRecord
	logger  *logging.Logger
	timeout time.Duration
	now     func() time.Time

	mu      sync.Mutex
	closed  bool
	dropped uint64
	wg      sync.WaitGroup
}

// NewRecorder создаёт recorder с очередью на capacity записей
func NewRecorder(repo ScoreRepo, capacity int, logger *logging.Logger) *Recorder {
	if capacity <= 0 {
		capacity = 256
	}
	return &Recorder{
		repo:    repo,
		queue:   make(chan ScoreRecord, capacity),
		logger:  logger,
		timeout: 2 * time.Second,
		now:     time.Now,
	}
}

// Start запускает фоновую запись
func (r *Recorder) Start() {
	r.wg.Add(1)
	go r.loop()
}

// Close дописывает очередь и останавливает recorder
func (r *Recorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

// Dropped возвращает число отброшенных записей
func (r *Recorder) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

func (r *Recorder) loop() {
	defer r.wg.Done()
	for rec := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		if err := r.repo.Save(ctx, rec); err != nil {
			r.logger.Warn("Не удалось сохранить счёт сессии %s: %v", rec.SessionID, err)
		}
		cancel()
	}
}

func (r *Recorder) enqueue(sessionID string, p game.PlayerState) {
	rec := ScoreRecord{SessionID: sessionID, PlayerID: p.ID, Score: p.Score, UpdatedAt: r.now().UTC()}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		r.dropped++
		return
	}
	select {
	case r.queue <- rec:
	default:
		r.dropped++
	}
}

func (r *Recorder) OnPlayerJoined(_ uint32, sessionID string, p game.PlayerState) {
	r.enqueue(sessionID, p)
}

func (r *Recorder) OnPlayerLeft(_ uint32, sessionID string, p game.PlayerState) {
	r.enqueue(sessionID, p)
}

func (r *Recorder) OnCoinCollected(_ uint32, sessionID string, p game.PlayerState, _ uint32) {
	r.enqueue(sessionID, p)
}

func (r *Recorder) OnWorldState(*game.WorldState) {}
