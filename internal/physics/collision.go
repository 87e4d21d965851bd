package physics

import (
	"math/rand"

	"github.com/annel0/coin-collector/internal/game"
	"github.com/annel0/coin-collector/internal/vec"
)

// CircleCollider - круглый коллайдер
type CircleCollider struct {
	Radius float32
}

var (
	// PlayerCollider - коллайдер игрока
	PlayerCollider = CircleCollider{Radius: game.PlayerRadius}
	// CoinCollider - коллайдер монеты
	CoinCollider = CircleCollider{Radius: game.CoinRadius}
)

// CheckCircleCollision проверяет пересечение двух кругов: квадрат расстояния меньше квадрата суммы радиусов
func CheckCircleCollision(pos1 vec.Vec2, c1 CircleCollider, pos2 vec.Vec2, c2 CircleCollider) bool {
	distSq := pos1.Sub(pos2).LengthSquared()
	radiusSum := c1.Radius + c2.Radius
	return distSq < float32(radiusSum*radiusSum)
}

// CheckCollision проверяет, касается ли игрок монеты
func CheckCollision(playerPos, coinPos vec.Vec2) bool {
	return CheckCircleCollision(playerPos, PlayerCollider, coinPos, CoinCollider)
}

// RandomCoinPosition возвращает равномерно распределённую точку, в которой монета целиком внутри мира
func RandomCoinPosition(rng *rand.Rand) vec.Vec2 {
	return RandomPositionInset(rng, game.CoinRadius)
}

// RandomSpawnPosition возвращает точку появления игрока с отступом SpawnMargin от краёв
func RandomSpawnPosition(rng *rand.Rand) vec.Vec2 {
	return RandomPositionInset(rng, game.SpawnMargin)
}

// RandomPositionInset возвращает равномерно распределённую точку в [inset, size-inset] по обеим осям
func RandomPositionInset(rng *rand.Rand, inset float32) vec.Vec2 {
	w := game.WorldWidth - 2*inset
	h := game.WorldHeight - 2*inset
	return vec.Vec2{
		X: inset + rng.Float32()*w,
		Y: inset + rng.Float32()*h,
	}
}
