package interpolation

import (
	"testing"
	"time"

	"github.com/annel0/coin-collector/internal/game"
	"github.com/annel0/coin-collector/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestEngine() (*Engine, *testClock) {
	clock := &testClock{now: time.Unix(1_700_000_000, 0)}
	return NewEngineWithClock(100*time.Millisecond, clock.Now), clock
}

func player(id game.PlayerID, x, y float32, score uint32) game.PlayerState {
	return game.PlayerState{ID: id, Position: vec.Vec2{X: x, Y: y}, Score: score}
}

func TestInterpolatedState_NeedsTwoSnapshots(t *testing.T) {
	e, clock := newTestEngine()

	_, ok := e.InterpolatedState(5)
	assert.False(t, ok, "нет буфера")

	e.AddSnapshot(player(5, 10, 10, 0), 1)
	clock.Advance(time.Second)
	_, ok = e.InterpolatedState(5)
	assert.False(t, ok, "один снимок")
}

func TestInterpolatedState_Midpoint(t *testing.T) {
	e, clock := newTestEngine()

	e.AddSnapshot(player(2, 0, 0, 1), 3)
	clock.Advance(50 * time.Millisecond)
	e.AddSnapshot(player(2, 100, 50, 2), 6)

	// время отрисовки = середина между снимками
	clock.Advance(75 * time.Millisecond)
	got, ok := e.InterpolatedState(2)
	require.True(t, ok)
	assert.InDelta(t, 50, got.Position.X, 1e-3)
	assert.InDelta(t, 25, got.Position.Y, 1e-3)
	assert.Equal(t, uint32(2), got.Score, "счёт берётся из более позднего снимка")
	assert.Equal(t, game.PlayerID(2), got.ID)
}

func TestInterpolatedState_ClampsOutsideBuffer(t *testing.T) {
	e, clock := newTestEngine()

	e.AddSnapshot(player(1, 10, 10, 0), 3)
	clock.Advance(50 * time.Millisecond)
	e.AddSnapshot(player(1, 20, 20, 0), 6)

	// renderTime раньше первого снимка
	got, ok := e.InterpolatedState(1)
	require.True(t, ok)
	assert.Equal(t, vec.Vec2{X: 10, Y: 10}, got.Position)

	// renderTime позже последнего
	clock.Advance(time.Second)
	got, ok = e.InterpolatedState(1)
	require.True(t, ok)
	assert.Equal(t, vec.Vec2{X: 20, Y: 20}, got.Position)
}

func TestInterpolatedState_PicksSurroundingPair(t *testing.T) {
	e, clock := newTestEngine()
	for i := 0; i < 5; i++ {
		e.AddSnapshot(player(1, float32(i*10), 0, uint32(i)), uint32(i*3))
		clock.Advance(50 * time.Millisecond)
	}
	// снимки в t=0,50,100,150,200; сейчас 275, отрисовка на 175 -> между 3 и 4
	clock.Advance(25 * time.Millisecond)

	got, ok := e.InterpolatedState(1)
	require.True(t, ok)
	assert.InDelta(t, 35, got.Position.X, 1e-3)
	assert.Equal(t, uint32(4), got.Score)
}

func TestAddSnapshot_CapacityBounded(t *testing.T) {
	e, clock := newTestEngine()
	for i := 0; i < 100; i++ {
		e.AddSnapshot(player(1, float32(i), 0, 0), uint32(i))
		clock.Advance(16 * time.Millisecond)
	}
	assert.Equal(t, BufferCapacity, e.BufferSize(1))
}

func TestRemoveAndRetain(t *testing.T) {
	e, _ := newTestEngine()
	for _, id := range []game.PlayerID{3, 1, 2} {
		e.AddSnapshot(player(id, 0, 0, 0), 1)
	}
	assert.Equal(t, []game.PlayerID{1, 2, 3}, e.EntityIDs())

	e.RemoveEntity(2)
	assert.Equal(t, []game.PlayerID{1, 3}, e.EntityIDs())
	assert.Zero(t, e.BufferSize(2))

	removed := e.RetainOnly(map[game.PlayerID]struct{}{3: {}})
	assert.Equal(t, []game.PlayerID{1}, removed)
	assert.Equal(t, []game.PlayerID{3}, e.EntityIDs())

	e.Clear()
	assert.Empty(t, e.EntityIDs())
}

func TestSetDelay(t *testing.T) {
	e, clock := newTestEngine()
	e.AddSnapshot(player(1, 0, 0, 0), 1)
	clock.Advance(100 * time.Millisecond)
	e.AddSnapshot(player(1, 100, 0, 0), 2)

	e.SetDelay(50 * time.Millisecond)
	assert.Equal(t, 50*time.Millisecond, e.Delay())

	got, ok := e.InterpolatedState(1)
	require.True(t, ok)
	assert.InDelta(t, 50, got.Position.X, 1e-3)
}
