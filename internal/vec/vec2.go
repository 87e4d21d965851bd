package vec

import "math"

// Vec2 представляет 2D вектор с одинарной точностью.
// Координаты уходят в сеть как 4-байтовые IEEE-754, физика считается в том же формате.
//
// Каждая операция округляет результат явным приведением к float32: так компилятор
// не склеит умножение и сложение в FMA, и результат совпадёт бит в бит на любой архитектуре.
type Vec2 struct {
	X, Y float32
}

// Zero возвращает нулевой вектор
func Zero() Vec2 {
	return Vec2{}
}

// Add складывает два вектора
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: float32(v.X + other.X), Y: float32(v.Y + other.Y)}
}

// Sub вычитает вектор
func (v Vec2) Sub(other Vec2) Vec2 {
	return Vec2{X: float32(v.X - other.X), Y: float32(v.Y - other.Y)}
}

// Mul умножает вектор на скаляр
func (v Vec2) Mul(scalar float32) Vec2 {
	return Vec2{X: float32(v.X * scalar), Y: float32(v.Y * scalar)}
}

// LengthSquared возвращает квадрат длины вектора
func (v Vec2) LengthSquared() float32 {
	return float32(float32(v.X*v.X) + float32(v.Y*v.Y))
}

// Length возвращает длину вектора
func (v Vec2) Length() float32 {
	return float32(math.Sqrt(float64(v.LengthSquared())))
}

// Normalized возвращает нормализованный вектор; для нулевого вектора - нулевой
func (v Vec2) Normalized() Vec2 {
	length := v.Length()
	if length > 0 {
		return Vec2{X: float32(v.X / length), Y: float32(v.Y / length)}
	}
	return Vec2{}
}

// DistanceTo вычисляет расстояние до другой точки
func (v Vec2) DistanceTo(other Vec2) float32 {
	return v.Sub(other).Length()
}

// Lerp возвращает a + (b - a) * t. Концы отрезка возвращаются без пересчёта.
func Lerp(a, b Vec2, t float32) Vec2 {
	switch {
	case t <= 0:
		return a
	case t >= 1:
		return b
	}
	return a.Add(b.Sub(a).Mul(t))
}
