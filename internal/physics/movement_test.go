package physics

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
	"math/rand"
	"testing"

	"github.com/annel0/coin-collector/internal/game"
	"github.com/annel0/coin-collector/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allInputs() []game.InputState {
	inputs := make([]game.InputState, 0, 16)
	for mask := 0; mask < 16; mask++ {
		inputs = append(inputs, game.InputState{
			Up:    mask&1 != 0,
			Down:  mask&2 != 0,
			Left:  mask&4 != 0,
			Right: mask&8 != 0,
		})
	}
	return inputs
}

func bits(v vec.Vec2) [2]uint32 {
	return [2]uint32{math.Float32bits(v.X), math.Float32bits(v.Y)}
}

func TestApplyInput_Deterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		start := game.PlayerState{
			ID:       1,
			Position: vec.Vec2{X: rng.Float32() * 1200, Y: rng.Float32()*800 - 100},
		}
		input := allInputs()[rng.Intn(16)]

		a := Step(start, input, game.FixedDT)
		b := Step(start, input, game.FixedDT)

		require.Equal(t, bits(a.Position), bits(b.Position), "позиция должна совпадать бит в бит")
		require.Equal(t, bits(a.Velocity), bits(b.Velocity), "скорость должна совпадать бит в бит")
	}
}

// Повтор одной и той же последовательности вводов должен давать одинаковый отпечаток.
func TestApplyInput_SequenceChecksumStable(t *testing.T) {
	run := func() [32]byte {
		rng := rand.New(rand.NewSource(7))
		player := game.NewPlayerState(1, vec.Vec2{X: 475, Y: 275})
		h := sha256.New()
		buf := make([]byte, 8)
		for tick := 0; tick < 600; tick++ {
			ApplyInput(&player, allInputs()[rng.Intn(16)], game.FixedDT)
			binary.LittleEndian.PutUint32(buf, math.Float32bits(player.Position.X))
			binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(player.Position.Y))
			h.Write(buf)
		}
		var sum [32]byte
		copy(sum[:], h.Sum(nil))
		return sum
	}

	assert.Equal(t, run(), run())
}

func TestApplyInput_DiagonalNotFaster(t *testing.T) {
	straight := Step(game.NewPlayerState(1, vec.Vec2{X: 400, Y: 300}), game.InputState{Right: true}, game.FixedDT)
	diagonal := Step(game.NewPlayerState(1, vec.Vec2{X: 400, Y: 300}), game.InputState{Right: true, Down: true}, game.FixedDT)

	assert.InDelta(t, game.MaxPlayerSpeed, straight.Velocity.Length(), 1e-3)
	assert.InDelta(t, game.MaxPlayerSpeed, diagonal.Velocity.Length(), 1e-3)
}

func TestApplyInput_NoInputStops(t *testing.T) {
	p := game.NewPlayerState(1, vec.Vec2{X: 400, Y: 300})
	p.Velocity = vec.Vec2{X: 100, Y: 100}

	ApplyInput(&p, game.InputState{}, game.FixedDT)
	assert.Equal(t, vec.Vec2{}, p.Velocity)
	assert.Equal(t, vec.Vec2{X: 400, Y: 300}, p.Position)
}

func TestApplyInput_OpposingKeysCancel(t *testing.T) {
	p := Step(game.NewPlayerState(1, vec.Vec2{X: 400, Y: 300}), game.InputState{Left: true, Right: true}, game.FixedDT)
	assert.Equal(t, vec.Vec2{X: 400, Y: 300}, p.Position)
}

func TestClampPosition(t *testing.T) {
	pos := ClampPosition(vec.Vec2{X: game.WorldWidth + 100, Y: -50})
	assert.Equal(t, game.WorldWidth-game.PlayerRadius, pos.X)
	assert.Equal(t, game.PlayerRadius, pos.Y)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		p := ClampPosition(vec.Vec2{
			X: (rng.Float32() - 0.5) * 4000,
			Y: (rng.Float32() - 0.5) * 4000,
		})
		require.GreaterOrEqual(t, p.X, game.PlayerRadius)
		require.LessOrEqual(t, p.X, game.WorldWidth-game.PlayerRadius)
		require.GreaterOrEqual(t, p.Y, game.PlayerRadius)
		require.LessOrEqual(t, p.Y, game.WorldHeight-game.PlayerRadius)
	}
}

func TestApplyInput_StaysInBounds(t *testing.T) {
	p := game.NewPlayerState(1, vec.Vec2{X: game.PlayerRadius + 1, Y: game.PlayerRadius + 1})
	for i := 0; i < 120; i++ {
		ApplyInput(&p, game.InputState{Up: true, Left: true}, game.FixedDT)
	}
	assert.Equal(t, vec.Vec2{X: game.PlayerRadius, Y: game.PlayerRadius}, p.Position)
}

// Клиент применил три ввода, сервер - два. Повтор третьего поверх серверного состояния
// должен совпасть с предсказанием клиента.
func TestInputReplay(t *testing.T) {
	client := game.NewPlayerState(1, vec.Vec2{X: 100, Y: 100})
	server := client

	in1 := game.InputState{Right: true}
	in2 := game.InputState{Right: true}
	in3 := game.InputState{Up: true}

	ApplyInput(&client, in1, game.FixedDT)
	ApplyInput(&client, in2, game.FixedDT)
	ApplyInput(&client, in3, game.FixedDT)

	ApplyInput(&server, in1, game.FixedDT)
	ApplyInput(&server, in2, game.FixedDT)

	reconciled := Step(server, in3, game.FixedDT)
	assert.Equal(t, bits(client.Position), bits(reconciled.Position))
}
