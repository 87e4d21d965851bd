package delivery

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock - управляемые часы для тестов
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestQueue_ReleasesAfterDelay(t *testing.T) {
	clock := newFakeClock()
	q := NewQueueWithClock[int](200*time.Millisecond, clock.Now)

	q.Push(1)
	_, ok := q.TryPop()
	assert.False(t, ok, "до истечения задержки элемент недоступен")

	clock.Advance(199 * time.Millisecond)
	_, ok = q.TryPop()
	assert.False(t, ok)

	clock.Advance(time.Millisecond)
	v, ok := q.TryPop()
	require.True(t, ok, "ровно на границе элемент уже доступен")
	assert.Equal(t, 1, v)
	assert.Zero(t, q.Len())
}

func TestQueue_ZeroDelay(t *testing.T) {
	q := NewQueue[string](0)
	q.Push("a")
	v, ok := q.TryPop()
	require.True(t, ok)
	assert.Equal(t, "a", v)

	_, ok = q.TryPop()
	assert.False(t, ok, "пустая очередь")
}

func TestQueue_FIFO(t *testing.T) {
	clock := newFakeClock()
	q := NewQueueWithClock[int](50*time.Millisecond, clock.Now)

	for i := 0; i < 100; i++ {
		q.Push(i)
		clock.Advance(time.Millisecond)
	}
	clock.Advance(time.Second)

	for i := 0; i < 100; i++ {
		v, ok := q.TryPop()
		require.True(t, ok)
		require.Equal(t, i, v)
	}
}

// Уменьшение задержки не даёт новому элементу обогнать голову
func TestQueue_HeadOfLineBlocking(t *testing.T) {
	clock := newFakeClock()
	q := NewQueueWithClock[string](time.Second, clock.Now)

	q.Push("slow")
	q.SetDelay(0)
	q.Push("fast")

	_, ok := q.TryPop()
	assert.False(t, ok, "голова ещё не готова, хвост ждёт")
	assert.Equal(t, 2, q.Len())

	clock.Advance(time.Second)
	v, _ := q.TryPop()
	assert.Equal(t, "slow", v)
	v, _ = q.TryPop()
	assert.Equal(t, "fast", v)
}

func TestQueue_SetDelayAffectsOnlyFuturePushes(t *testing.T) {
	clock := newFakeClock()
	q := NewQueueWithClock[int](100*time.Millisecond, clock.Now)

	q.Push(1)
	q.SetDelay(500 * time.Millisecond)
	assert.Equal(t, 500*time.Millisecond, q.Delay())

	clock.Advance(100 * time.Millisecond)
	v, ok := q.TryPop()
	require.True(t, ok, "старый элемент сохраняет прежнее время выдачи")
	assert.Equal(t, 1, v)

	q.Push(2)
	clock.Advance(400 * time.Millisecond)
	_, ok = q.TryPop()
	assert.False(t, ok)
	clock.Advance(100 * time.Millisecond)
	_, ok = q.TryPop()
	assert.True(t, ok)
}

func TestQueue_NegativeDelayClamped(t *testing.T) {
	q := NewQueue[int](-time.Second)
	assert.Zero(t, q.Delay())
	q.SetDelay(-1)
	assert.Zero(t, q.Delay())
}

func TestQueue_Clear(t *testing.T) {
	q := NewQueue[int](0)
	q.Push(1)
	q.Push(2)
	q.Clear()
	assert.Zero(t, q.Len())
	_, ok := q.TryPop()
	assert.False(t, ok)

	q.Push(3)
	v, ok := q.TryPop()
	require.True(t, ok)
	assert.Equal(t, 3, v)
}

// Длинная очередь с чередованием Push/TryPop не теряет порядок при уплотнении
func TestQueue_CompactionKeepsOrder(t *testing.T) {
	q := NewQueue[int](0)
	next := 0
	expected := 0
	for round := 0; round < 50; round++ {
		for i := 0; i < 100; i++ {
			q.Push(next)
			next++
		}
		for i := 0; i < 70; i++ {
			v, ok := q.TryPop()
			require.True(t, ok)
			require.Equal(t, expected, v)
			expected++
		}
	}
	assert.Equal(t, next-expected, q.Len())
}

func TestQueue_Concurrent(t *testing.T) {
	q := NewQueue[int](0)
	const producers = 8
	const perProducer = 500

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(i)
			}
		}()
	}

	got := 0
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	for {
		if _, ok := q.TryPop(); ok {
			got++
			continue
		}
		select {
		case <-done:
			for {
				if _, ok := q.TryPop(); !ok {
					assert.Equal(t, producers*perProducer, got)
					return
				}
				got++
			}
		default:
		}
	}
}
