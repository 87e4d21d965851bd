package server

import "github.com/annel0/coin-collector/internal/game"

// Hook получает игровые события сервера.
// Методы вызываются из горутины симуляции и не должны блокироваться.
type Hook interface {
	OnPlayerJoined(tick uint32, sessionID string, p game.PlayerState)
	OnPlayerLeft(tick uint32, sessionID string, p game.PlayerState)
	OnCoinCollected(tick uint32, sessionID string, p game.PlayerState, coinID uint32)
	// OnWorldState получает разосланный снимок; снимок можно хранить, сервер его больше не меняет
	OnWorldState(ws *game.WorldState)
}

// NopHook - пустая реализация для встраивания
type NopHook struct{}

func (NopHook) OnPlayerJoined(uint32, string, game.PlayerState)          {}
func (NopHook) OnPlayerLeft(uint32, string, game.PlayerState)            {}
func (NopHook) OnCoinCollected(uint32, string, game.PlayerState, uint32) {}
func (NopHook) OnWorldState(*game.WorldState)                            {}
