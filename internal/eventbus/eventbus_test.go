package eventbus

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/annel0/coin-collector/internal/game"
	"github.com/annel0/coin-collector/internal/logging"
	"github.com/annel0/coin-collector/internal/protocol/events"
	"github.com/annel0/coin-collector/internal/vec"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collector накапливает полученные события
type collector struct {
	mu  sync.Mutex
	got []*Envelope
}

func (c *collector) handle(_ context.Context, ev *Envelope) {
	c.mu.Lock()
	c.got = append(c.got, ev)
	c.mu.Unlock()
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.got)
}

func (c *collector) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.got))
	for _, ev := range c.got {
		out = append(out, ev.EventType)
	}
	return out
}

func TestMemoryBus_FilterByType(t *testing.T) {
	bus := NewMemoryBus(16)
	defer bus.Close()

	all, coins := &collector{}, &collector{}
	_, err := bus.Subscribe(context.Background(), Filter{}, all.handle)
	require.NoError(t, err)
	_, err = bus.Subscribe(context.Background(), Filter{Types: []string{events.TypeCoinCollected}}, coins.handle)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), &Envelope{EventType: events.TypePlayerJoined}))
	require.NoError(t, bus.Publish(context.Background(), &Envelope{EventType: events.TypeCoinCollected}))

	assert.Eventually(t, func() bool { return all.len() == 2 && coins.len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{events.TypeCoinCollected}, coins.types())

	stats := bus.Metrics()
	assert.Equal(t, uint64(2), stats.Published)
}

func TestMemoryBus_Unsubscribe(t *testing.T) {
	bus := NewMemoryBus(16)
	defer bus.Close()

	c := &collector{}
	sub, err := bus.Subscribe(context.Background(), Filter{}, c.handle)
	require.NoError(t, err)
	sub.Unsubscribe()

	require.NoError(t, bus.Publish(context.Background(), &Envelope{EventType: "x"}))
	assert.Eventually(t, func() bool { return bus.Metrics().InFlight == 0 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, c.len())
}

func TestMemoryBus_Closed(t *testing.T) {
	bus := NewMemoryBus(4)
	require.NoError(t, bus.Close())
	assert.ErrorIs(t, bus.Publish(context.Background(), &Envelope{}), ErrBusClosed)
}

func TestGamePublisher_EncodesEvents(t *testing.T) {
	bus := NewMemoryBus(16)
	defer bus.Close()

	c := &collector{}
	_, err := bus.Subscribe(context.Background(), Filter{}, c.handle)
	require.NoError(t, err)

	pub := NewGamePublisher(bus, "test-server", logging.NewWriterLogger("test", io.Discard, logging.ERROR))
	player := game.PlayerState{ID: 3, Position: vec.Vec2{X: 10, Y: 20}, Score: 2}
	pub.OnPlayerJoined(1, "sess-1", player)
	pub.OnCoinCollected(2, "sess-1", player, 7)
	pub.OnWorldState(&game.WorldState{})

	require.Eventually(t, func() bool { return c.len() == 2 }, time.Second, 5*time.Millisecond)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, env := range c.got {
		assert.NotEmpty(t, env.ID)
		assert.Equal(t, "test-server", env.Source)
		assert.Equal(t, "sess-1", env.CorrelationID)

		ev, err := events.Unmarshal(env.EventType, env.Payload)
		require.NoError(t, err)
		switch e := ev.(type) {
		case events.CoinCollected:
			assert.Equal(t, events.CoinCollected{Tick: 2, PlayerID: 3, CoinID: 7, Score: 2}, e)
			assert.Equal(t, "2", env.Metadata["tick"])
		case events.PlayerJoined:
			assert.Equal(t, float32(10), e.X)
		default:
			t.Fatalf("неожиданное событие %T", ev)
		}
	}
}

func TestForwarder(t *testing.T) {
	local, remote := NewMemoryBus(16), NewMemoryBus(16)
	defer local.Close()
	defer remote.Close()

	c := &collector{}
	_, err := remote.Subscribe(context.Background(), Filter{}, c.handle)
	require.NoError(t, err)

	_, err = StartForwarder(context.Background(), local, remote, Filter{Types: []string{events.TypePlayerLeft}},
		logging.NewWriterLogger("test", io.Discard, logging.ERROR))
	require.NoError(t, err)

	require.NoError(t, local.Publish(context.Background(), &Envelope{EventType: events.TypePlayerJoined}))
	require.NoError(t, local.Publish(context.Background(), &Envelope{EventType: events.TypePlayerLeft}))

	assert.Eventually(t, func() bool { return c.len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{events.TypePlayerLeft}, c.types())
}

type fixedStats struct {
	EventBus
	stats Stats
}

func (f *fixedStats) Metrics() Stats { return f.stats }

func TestMetricsExporter_Collect(t *testing.T) {
	bus := &fixedStats{stats: Stats{Published: 5, Dropped: 1, InFlight: 3}}
	me := NewMetricsExporter(bus, prometheus.NewRegistry(), time.Second)

	prev := me.Collect(Stats{})
	assert.Equal(t, 5.0, testutil.ToFloat64(me.published))
	assert.Equal(t, 3.0, testutil.ToFloat64(me.inflight))

	bus.stats.Published = 8
	me.Collect(prev)
	assert.Equal(t, 8.0, testutil.ToFloat64(me.published))
	assert.Equal(t, 1.0, testutil.ToFloat64(me.dropped))
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "game.CoinCollected", Subject(events.TypeCoinCollected))
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "player 4 left with score 9, session s-1",
		Describe(events.PlayerLeft{PlayerID: 4, SessionID: "s-1", Score: 9}))
	assert.Equal(t, "player 2 collected coin 5 at tick 30, score 1",
		Describe(events.CoinCollected{Tick: 30, PlayerID: 2, CoinID: 5, Score: 1}))
}

func TestMemoryBus_PreservesOrderPerSubscriber(t *testing.T) {
	bus := NewMemoryBus(64)
	c := &collector{}
	_, err := bus.Subscribe(context.Background(), Filter{}, c.handle)
	require.NoError(t, err)

	want := []string{"a", "b", "c", "d"}
	for _, typ := range want {
		require.NoError(t, bus.Publish(context.Background(), &Envelope{EventType: typ}))
	}
	require.NoError(t, bus.Close())
	assert.Equal(t, want, c.types())
}
