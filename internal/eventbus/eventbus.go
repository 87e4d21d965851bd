// Package eventbus разносит игровые события сервера по подписчикам внутри процесса и за его пределы.
package eventbus

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Приоритеты событий. При заполненной очереди события ниже PriorityHigh отбрасываются.
const (
	PriorityLow    = 1
	PriorityNormal = 3
	PriorityHigh   = 5
)

// Envelope - событие вместе с адресными данными
type Envelope struct {
	ID            string // UUID, по нему JetStream отсекает повторы
	Timestamp     time.Time
	Source        string // имя сервера
	EventType     string // events.Type*
	Version       int
	CorrelationID string // id сессии игрока
	Priority      int
	Payload       []byte // events.Event.Marshal
	Metadata      map[string]string
}

// Filter отбирает события по типу и источнику; пустой список пропускает всё
type Filter struct {
	Types   []string
	Sources []string
}

func (f Filter) match(ev *Envelope) bool {
	return (len(f.Types) == 0 || slices.Contains(f.Types, ev.EventType)) &&
		(len(f.Sources) == 0 || slices.Contains(f.Sources, ev.Source))
}

type Subscription interface {
	Unsubscribe()
}

type Handler func(ctx context.Context, ev *Envelope)

// Stats - счётчики шины
type Stats struct {
	Published uint64
	Consumed  uint64
	Dropped   uint64
	InFlight  int
}

// EventBus - шина событий
type EventBus interface {
	Publish(ctx context.Context, ev *Envelope) error
	Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error)
	Metrics() Stats
	Close() error
}

// memoryBus раздаёт события из общей очереди в очереди подписчиков.
// Каждый подписчик обрабатывает свои события по одному в порядке публикации.
type memoryBus struct {
	capacity int
	queue    chan *Envelope

	mu     sync.RWMutex
	subs   map[uint64]*memSub
	nextID uint64

	published atomic.Uint64
	consumed  atomic.Uint64
	dropped   atomic.Uint64

	closeOnce sync.Once
	done      chan struct{}
	stopped   chan struct{}
	workers   sync.WaitGroup
}

type memSub struct {
	bus    *memoryBus
	id     uint64
	filter Filter
	inbox  chan *Envelope
	cancel context.CancelFunc
}

// NewMemoryBus создаёт шину в памяти с очередью на capacity событий
func NewMemoryBus(capacity int) EventBus {
	if capacity <= 0 {
		capacity = 1024
	}
	mb := &memoryBus{
		capacity: capacity,
		queue:    make(chan *Envelope, capacity),
		subs:     make(map[uint64]*memSub),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go mb.dispatchLoop()
	return mb
}

// Publish ставит событие в очередь. Если очередь полна, обычные события
// отбрасываются без ошибки, а PriorityHigh ждут места или отмены ctx.
func (mb *memoryBus) Publish(ctx context.Context, ev *Envelope) error {
	select {
	case <-mb.done:
		return ErrBusClosed
	default:
	}

	select {
	case mb.queue <- ev:
		mb.published.Add(1)
		return nil
	default:
	}
	if ev.Priority < PriorityHigh {
		mb.dropped.Add(1)
		return nil
	}
	select {
	case mb.queue <- ev:
		mb.published.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-mb.done:
		return ErrBusClosed
	}
}

func (mb *memoryBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	select {
	case <-mb.done:
		return nil, ErrBusClosed
	default:
	}

	sctx, cancel := context.WithCancel(ctx)
	mb.mu.Lock()
	sub := &memSub{bus: mb, id: mb.nextID, filter: f, inbox: make(chan *Envelope, mb.capacity), cancel: cancel}
	mb.nextID++
	mb.subs[sub.id] = sub
	mb.mu.Unlock()

	mb.workers.Add(1)
	go mb.consume(sctx, sub.inbox, h)
	return sub, nil
}

func (mb *memoryBus) consume(ctx context.Context, inbox <-chan *Envelope, h Handler) {
	defer mb.workers.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-inbox:
			if !ok || ctx.Err() != nil {
				return
			}
			h(ctx, ev)
			mb.consumed.Add(1)
		}
	}
}

func (mb *memoryBus) Metrics() Stats {
	return Stats{
		Published: mb.published.Load(),
		Consumed:  mb.consumed.Load(),
		Dropped:   mb.dropped.Load(),
		InFlight:  len(mb.queue),
	}
}

// Close перестаёт принимать события и ждёт, пока подписчики разберут свои очереди
func (mb *memoryBus) Close() error {
	mb.closeOnce.Do(func() { close(mb.done) })
	<-mb.stopped
	mb.workers.Wait()
	return nil
}

func (mb *memoryBus) dispatchLoop() {
	defer close(mb.stopped)
	for {
		select {
		case ev := <-mb.queue:
			mb.dispatch(ev)
		case <-mb.done:
			for {
				select {
				case ev := <-mb.queue:
					mb.dispatch(ev)
				default:
					mb.closeInboxes()
					return
				}
			}
		}
	}
}

// dispatch раскладывает событие по подписчикам; переполненный подписчик теряет событие
func (mb *memoryBus) dispatch(ev *Envelope) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	for _, sub := range mb.subs {
		if !sub.filter.match(ev) {
			continue
		}
		select {
		case sub.inbox <- ev:
		default:
			mb.dropped.Add(1)
		}
	}
}

// closeInboxes вызывается только из dispatchLoop, единственного писателя в inbox
func (mb *memoryBus) closeInboxes() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	for id, sub := range mb.subs {
		close(sub.inbox)
		delete(mb.subs, id)
	}
}

func (s *memSub) Unsubscribe() {
	s.bus.mu.Lock()
	delete(s.bus.subs, s.id)
	s.bus.mu.Unlock()
	s.cancel()
}
