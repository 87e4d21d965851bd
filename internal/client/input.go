package client

import (
	"math/rand"

	"github.com/annel0/coin-collector/internal/game"
	"github.com/annel0/coin-collector/internal/vec"
)

// StaticInput всегда возвращает один и тот же ввод
type StaticInput game.InputState

// Sample реализует InputSource
func (s StaticInput) Sample(*View) game.InputState {
	return game.InputState(s)
}

// RandomWalk держит случайное направление несколько тиков, затем выбирает новое
type RandomWalk struct {
	rng      *rand.Rand
	minHold  int
	maxHold  int
	current  game.InputState
	holdLeft int
}

// NewRandomWalk создаёт случайное блуждание со сменой направления раз в minHold..maxHold тиков
func NewRandomWalk(rng *rand.Rand, minHold, maxHold int) *RandomWalk {
	if minHold < 1 {
		minHold = 1
	}
	if maxHold < minHold {
		maxHold = minHold
	}
	return &RandomWalk{rng: rng, minHold: minHold, maxHold: maxHold}
}

// Sample реализует InputSource
func (w *RandomWalk) Sample(*View) game.InputState {
	if w.holdLeft <= 0 {
		mask := w.rng.Intn(16)
		w.current = game.InputState{
			Up:    mask&1 != 0,
			Down:  mask&2 != 0,
			Left:  mask&4 != 0,
			Right: mask&8 != 0,
		}
		w.holdLeft = w.minHold + w.rng.Intn(w.maxHold-w.minHold+1)
	}
	w.holdLeft--
	return w.current
}

// CoinSeeker ведёт игрока к ближайшей активной монете; без монет блуждает
type CoinSeeker struct {
	fallback InputSource
	deadZone float32
}

// NewCoinSeeker создаёт бота-сборщика
func NewCoinSeeker(fallback InputSource) *CoinSeeker {
	return &CoinSeeker{fallback: fallback, deadZone: game.PlayerRadius / 4}
}

// Sample реализует InputSource
func (s *CoinSeeker) Sample(view *View) game.InputState {
	target, ok := nearestCoin(view)
	if !ok {
		if s.fallback == nil {
			return game.InputState{}
		}
		return s.fallback.Sample(view)
	}

	d := target.Sub(view.Local.Position)
	return game.InputState{
		Up:    d.Y < -s.deadZone,
		Down:  d.Y > s.deadZone,
		Left:  d.X < -s.deadZone,
		Right: d.X > s.deadZone,
	}
}

func nearestCoin(view *View) (vec.Vec2, bool) {
	var best vec.Vec2
	var bestDist float32
	found := false
	for _, c := range view.Coins {
		if !c.Active {
			continue
		}
		d := c.Position.Sub(view.Local.Position).LengthSquared()
		if !found || d < bestDist {
			best, bestDist, found = c.Position, d, true
		}
	}
	return best, found
}
