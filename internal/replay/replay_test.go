package replay

import (
	"io"
	"testing"
	"time"

	"github.com/annel0/coin-collector/internal/game"
	"github.com/annel0/coin-collector/internal/logging"
	"github.com/annel0/coin-collector/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleWorld(tick uint32) *game.WorldState {
	return &game.WorldState{
		Tick: tick,
		Players: []game.PlayerState{
			{ID: 1, Position: vec.Vec2{X: 100.5, Y: 200.25}, Velocity: vec.Vec2{X: 300}, Score: tick},
		},
		Coins: []game.CoinState{{ID: 0, Position: vec.Vec2{X: 50, Y: 60}, Active: true}},
	}
}

func TestStore_SaveAndLoad(t *testing.T) {
	s := openStore(t)
	at := time.UnixMilli(1_700_000_000_123).UTC()

	for _, tick := range []uint32{0, 3, 6, 9, 12} {
		require.NoError(t, s.SaveFrame("run-a", sampleWorld(tick), at))
	}

	frames, err := s.Load("run-a", 5, 2)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, uint32(6), frames[0].Tick)
	assert.Equal(t, uint32(9), frames[1].Tick)
	assert.Equal(t, at, frames[0].RecordedAt)
	assert.Equal(t, *sampleWorld(6), frames[0].State)

	all, err := s.Load("run-a", 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestStore_TicksSortNumerically(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.SaveFrame("r", sampleWorld(100), time.Now()))
	require.NoError(t, s.SaveFrame("r", sampleWorld(99), time.Now()))

	frames, err := s.Load("r", 0, 0)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, uint32(99), frames[0].Tick)
}

func TestStore_Sessions(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.SaveFrame("a", sampleWorld(3), time.Now()))
	require.NoError(t, s.SaveFrame("a", sampleWorld(6), time.Now()))
	require.NoError(t, s.SaveFrame("b", sampleWorld(0), time.Now()))

	sessions, err := s.Sessions()
	require.NoError(t, err)
	assert.Equal(t, []SessionInfo{
		{ID: "a", Frames: 2, FirstTick: 3, LastTick: 6},
		{ID: "b", Frames: 1, FirstTick: 0, LastTick: 0},
	}, sessions)

	frames, err := s.Load("missing", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, frames)
}

func TestStore_RejectsBadSession(t *testing.T) {
	s := openStore(t)
	assert.Error(t, s.SaveFrame("", sampleWorld(0), time.Now()))
	assert.Error(t, s.SaveFrame("a/b", sampleWorld(0), time.Now()))
}

func TestStore_Closed(t *testing.T) {
	s, err := OpenInMemory()
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.SaveFrame("a", sampleWorld(0), time.Now()), ErrStoreClosed)
	_, err = s.Sessions()
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestRecorder_EveryNth(t *testing.T) {
	s := openStore(t)
	rec := NewRecorder(s, "run", 2, logging.NewWriterLogger("test", io.Discard, logging.ERROR))
	rec.Start()

	for tick := uint32(0); tick < 15; tick += 3 {
		rec.OnWorldState(sampleWorld(tick))
	}
	rec.Close()
	rec.OnWorldState(sampleWorld(99))

	frames, err := s.Load("run", 0, 0)
	require.NoError(t, err)
	ticks := make([]uint32, 0, len(frames))
	for _, f := range frames {
		ticks = append(ticks, f.Tick)
	}
	assert.Equal(t, []uint32{0, 6, 12}, ticks)
	assert.Equal(t, "run", rec.Session())
}
