package physics

import (
	"math/rand"
	"testing"

	"github.com/annel0/coin-collector/internal/game"
	"github.com/annel0/coin-collector/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckCollision(t *testing.T) {
	player := vec.Vec2{X: 100, Y: 100}
	touch := game.PlayerRadius + game.CoinRadius

	tests := []struct {
		name string
		coin vec.Vec2
		want bool
	}{
		{"same point", player, true},
		{"just inside", vec.Vec2{X: 100 + touch - 0.01, Y: 100}, true},
		{"exactly touching is not a hit", vec.Vec2{X: 100 + touch, Y: 100}, false},
		{"far away", vec.Vec2{X: 500, Y: 500}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckCollision(player, tt.coin))
		})
	}
}

func TestRandomCoinPosition_InBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	for i := 0; i < 1000; i++ {
		p := RandomCoinPosition(rng)
		require.GreaterOrEqual(t, p.X, game.CoinRadius)
		require.Less(t, p.X, game.WorldWidth-game.CoinRadius)
		require.GreaterOrEqual(t, p.Y, game.CoinRadius)
		require.Less(t, p.Y, game.WorldHeight-game.CoinRadius)
	}
}

func TestRandomSpawnPosition_Margin(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	for i := 0; i < 200; i++ {
		p := RandomSpawnPosition(rng)
		require.GreaterOrEqual(t, p.X, game.SpawnMargin)
		require.LessOrEqual(t, p.X, game.WorldWidth-game.SpawnMargin)
		require.GreaterOrEqual(t, p.Y, game.SpawnMargin)
		require.LessOrEqual(t, p.Y, game.WorldHeight-game.SpawnMargin)
	}
}
