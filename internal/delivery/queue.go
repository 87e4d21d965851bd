// Package delivery реализует очередь с искусственной задержкой доставки.
//
// Очередь служит точкой синхронизации между горутинами ввода-вывода и тиком симуляции:
// производитель кладёт элемент, потребитель забирает его не раньше, чем пройдёт задержка.
package delivery

import (
	"sync"
	"time"
)

// Clock возвращает текущее время. В тестах подменяется.
type Clock func() time.Time

type item[T any] struct {
	value     T
	releaseAt time.Time
}

// Queue - FIFO очередь с задержкой. Безопасна для конкурентного использования, ничего не блокирует.
type Queue[T any] struct {
	mu    sync.Mutex
	items []item[T]
	head  int
	delay time.Duration
	now   Clock
}

// NewQueue создаёт очередь с задержкой delay и системными часами
func NewQueue[T any](delay time.Duration) *Queue[T] {
	return NewQueueWithClock[T](delay, time.Now)
}

// NewQueueWithClock создаёт очередь с заданными часами
func NewQueueWithClock[T any](delay time.Duration, now Clock) *Queue[T] {
	if delay < 0 {
		delay = 0
	}
	return &Queue[T]{delay: delay, now: now}
}

// Push ставит элемент в очередь. Время выдачи фиксируется в момент вызова.
func (q *Queue[T]) Push(v T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item[T]{value: v, releaseAt: q.now().Add(q.delay)})
}

// TryPop возвращает голову очереди, если её время выдачи наступило.
// Элементы за головой не рассматриваются, даже если их время уже прошло.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if q.head >= len(q.items) {
		return zero, false
	}
	it := q.items[q.head]
	if it.releaseAt.After(q.now()) {
		return zero, false
	}

	q.items[q.head] = item[T]{}
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > 64 && q.head*2 > len(q.items) {
		n := copy(q.items, q.items[q.head:])
		q.items = q.items[:n]
		q.head = 0
	}
	return it.value, true
}

// SetDelay меняет задержку. Уже поставленные элементы сохраняют своё время выдачи.
func (q *Queue[T]) SetDelay(d time.Duration) {
	if d < 0 {
		d = 0
	}
	q.mu.Lock()
	q.delay = d
	q.mu.Unlock()
}

// Delay возвращает текущую задержку
func (q *Queue[T]) Delay() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.delay
}

// Len возвращает число элементов в очереди, включая ещё не готовые
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Clear отбрасывает все элементы
func (q *Queue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
	q.head = 0
}
