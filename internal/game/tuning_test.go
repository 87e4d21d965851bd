package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAccumulate(t *testing.T) {
	assert.Equal(t, 10*time.Millisecond, Accumulate(0, 10*time.Millisecond))
	assert.Equal(t, MaxFrameTime+time.Millisecond, Accumulate(time.Millisecond, 5*time.Second))
	assert.Equal(t, time.Millisecond, Accumulate(time.Millisecond, -time.Second))
}

func TestTickDuration(t *testing.T) {
	assert.Equal(t, time.Second/60, TickDuration(60))
	assert.Equal(t, time.Second/TickRate, TickDuration(0))
}

func TestWorldState_FindPlayer(t *testing.T) {
	ws := WorldState{Players: []PlayerState{{ID: 1}, {ID: 4, Score: 3}}}

	p, ok := ws.FindPlayer(4)
	assert.True(t, ok)
	assert.Equal(t, uint32(3), p.Score)

	_, ok = ws.FindPlayer(9)
	assert.False(t, ok)
}

func TestInputState_HasMovement(t *testing.T) {
	assert.False(t, InputState{}.HasMovement())
	assert.True(t, InputState{Left: true}.HasMovement())
}
