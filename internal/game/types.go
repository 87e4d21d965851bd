// Package game содержит общие для клиента и сервера типы состояния.
package game

import "github.com/annel0/coin-collector/internal/vec"

// PlayerID - идентификатор игрока, выдаётся сервером начиная с 1 и не переиспользуется
type PlayerID = uint32

// SequenceID - номер клиентского ввода
type SequenceID = uint32

// InputState - направления, нажатые игроком за тик
type InputState struct {
	Up    bool
	Down  bool
	Left  bool
	Right bool
}

// HasMovement сообщает, нажато ли хоть одно направление
func (in InputState) HasMovement() bool {
	return in.Up || in.Down || in.Left || in.Right
}

// PlayerState - состояние игрока
type PlayerState struct {
	ID       PlayerID
	Position vec.Vec2
	Velocity vec.Vec2
	Score    uint32
}

// NewPlayerState создаёт игрока в указанной точке
func NewPlayerState(id PlayerID, pos vec.Vec2) PlayerState {
	return PlayerState{ID: id, Position: pos}
}

// CoinState - состояние монеты. Авторитетная копия есть только у сервера.
type CoinState struct {
	ID       uint32
	Position vec.Vec2
	Active   bool
}

// WorldState - полный снимок мира за один тик сервера
type WorldState struct {
	Tick    uint32
	Players []PlayerState
	Coins   []CoinState
}

// FindPlayer ищет игрока в снимке
func (ws *WorldState) FindPlayer(id PlayerID) (PlayerState, bool) {
	for _, p := range ws.Players {
		if p.ID == id {
			return p, true
		}
	}
	return PlayerState{}, false
}
