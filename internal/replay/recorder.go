package replay

import (
	"sync"
	"time"

	"github.com/annel0/coin-collector/internal/game"
	"github.com/annel0/coin-collector/internal/logging"
)

// Recorder пишет каждый every-й разосланный снимок.
// Подключается к серверу как hook; запись идёт в отдельной горутине, при переполнении очереди кадр пропускается.
type Recorder struct {
	store   *Store
	session string
	every   int
	seen    int
	queue   chan *game.WorldState
	logger  *logging.Logger
	now     func() time.Time

	mu      sync.Mutex
	closed  bool
	dropped uint64
	wg      sync.WaitGroup
}

// NewRecorder создаёт recorder для сессии session
func NewRecorder(store *Store, session string, every int, logger *logging.Logger) *Recorder {
	if every < 1 {
		every = 1
	}
	return &Recorder{
		store:   store,
		session: session,
		every:   every,
		queue:   make(chan *game.WorldState, 64),
		logger:  logger,
		now:     time.Now,
	}
}

// Session возвращает id записываемой сессии
func (r *Recorder) Session() string {
	return r.session
}

// Start запускает фоновую запись
func (r *Recorder) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for ws := range r.queue {
			if err := r.store.SaveFrame(r.session, ws, r.now()); err != nil {
				r.logger.Warn("Replay frame %d not saved: %v", ws.Tick, err)
			}
		}
	}()
}

// Close дописывает очередь и останавливает запись
func (r *Recorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

// Dropped возвращает число пропущенных кадров
func (r *Recorder) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

func (r *Recorder) OnWorldState(ws *game.WorldState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seen++
	if r.closed || (r.seen-1)%r.every != 0 {
		return
	}
	select {
	case r.queue <- ws:
	default:
		r.dropped++
	}
}

func (r *Recorder) OnPlayerJoined(uint32, string, game.PlayerState)          {}
func (r *Recorder) OnPlayerLeft(uint32, string, game.PlayerState)            {}
func (r *Recorder) OnCoinCollected(uint32, string, game.PlayerState, uint32) {}
