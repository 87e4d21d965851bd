// Package physics содержит детерминированную физику, общую для клиента и сервера.
//
// Функции пакета чистые: одинаковые входные данные дают бит в бит одинаковый результат.
// На этом держится повтор ввода при согласовании предсказания с сервером.
package physics

import (
	"github.com/annel0/coin-collector/internal/game"
	"github.com/annel0/coin-collector/internal/vec"
)

// InputDirection переводит нажатые клавиши в вектор ускорения единичной длины (или нулевой).
// Диагональ нормализуется, чтобы не двигаться по ней быстрее, чем вдоль оси.
func InputDirection(input game.InputState) vec.Vec2 {
	var acc vec.Vec2
	if input.Up {
		acc.Y -= 1
	}
	if input.Down {
		acc.Y += 1
	}
	if input.Left {
		acc.X -= 1
	}
	if input.Right {
		acc.X += 1
	}

	if acc.LengthSquared() > 0 {
		acc = acc.Normalized()
	}
	return acc
}

// ApplyInput применяет ввод к игроку и интегрирует позицию за dt.
// Скорость выставляется мгновенно, без разгона.
func ApplyInput(player *game.PlayerState, input game.InputState, dt float32) {
	player.Velocity = InputDirection(input).Mul(game.MaxPlayerSpeed)
	player.Position = player.Position.Add(player.Velocity.Mul(dt))
	player.Position = ClampPosition(player.Position)
}

// Step возвращает новое состояние, не меняя исходное
func Step(player game.PlayerState, input game.InputState, dt float32) game.PlayerState {
	ApplyInput(&player, input, dt)
	return player
}

// ClampPosition удерживает центр игрока внутри мира с отступом на радиус
func ClampPosition(pos vec.Vec2) vec.Vec2 {
	return ClampInset(pos, game.PlayerRadius)
}

// ClampInset удерживает точку в прямоугольнике мира, уменьшенном на inset со всех сторон
func ClampInset(pos vec.Vec2, inset float32) vec.Vec2 {
	if pos.X < inset {
		pos.X = inset
	}
	if pos.X > game.WorldWidth-inset {
		pos.X = game.WorldWidth - inset
	}
	if pos.Y < inset {
		pos.Y = inset
	}
	if pos.Y > game.WorldHeight-inset {
		pos.Y = game.WorldHeight - inset
	}
	return pos
}
