package vec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVec2_Arithmetic(t *testing.T) {
	a := Vec2{X: 3, Y: 4}
	b := Vec2{X: 1, Y: -2}

	assert.Equal(t, Vec2{X: 4, Y: 2}, a.Add(b))
	assert.Equal(t, Vec2{X: 2, Y: 6}, a.Sub(b))
	assert.Equal(t, Vec2{X: 6, Y: 8}, a.Mul(2))
	assert.Equal(t, float32(25), a.LengthSquared())
	assert.Equal(t, float32(5), a.Length())
	assert.Equal(t, float32(5), a.DistanceTo(Vec2{}))
}

func TestVec2_Normalized(t *testing.T) {
	n := Vec2{X: 3, Y: 4}.Normalized()
	assert.InDelta(t, 0.6, n.X, 1e-6)
	assert.InDelta(t, 0.8, n.Y, 1e-6)
	assert.InDelta(t, 1.0, n.Length(), 1e-6)

	assert.Equal(t, Vec2{}, Zero().Normalized(), "нулевой вектор остаётся нулевым")
}

func TestLerp(t *testing.T) {
	a := Vec2{X: 0, Y: 0}
	b := Vec2{X: 100, Y: 100}

	assert.Equal(t, a, Lerp(a, b, 0))
	assert.Equal(t, Vec2{X: 50, Y: 50}, Lerp(a, b, 0.5))
	assert.Equal(t, b, Lerp(a, b, 1))

	neg := Lerp(Vec2{X: -50, Y: -50}, Vec2{X: 50, Y: 50}, 0.5)
	assert.Equal(t, Vec2{}, neg)

	same := Vec2{X: 42, Y: 42}
	assert.Equal(t, same, Lerp(same, same, 0.7))
}
