package game

import "time"

// Параметры мира и симуляции. Клиент и сервер обязаны использовать одни и те же значения,
// иначе повтор ввода при согласовании разойдётся с сервером.
const (
	WorldWidth  float32 = 950
	WorldHeight float32 = 550

	PlayerRadius   float32 = 20
	CoinRadius     float32 = 15
	MaxPlayerSpeed float32 = 300 // единиц в секунду

	MaxCoins = 10

	TickRate       = 60 // Гц
	FixedDT        = float32(1.0) / TickRate
	BroadcastEvery = 3 // рассылка каждые 3 тика = 20 Гц

	// MaxFrameTime ограничивает накопитель после зависания
	MaxFrameTime = 250 * time.Millisecond

	// SpawnMargin - отступ от края мира при появлении игрока
	SpawnMargin float32 = 50

	SimulatedLatency    = 200 * time.Millisecond
	InterpolationDelay  = 100 * time.Millisecond
	DefaultServerPort   = 8888
	MaxPlayersPerServer = 255 // счётчик игроков в пакете WorldState - один байт
)

// TickDuration возвращает длительность одного тика для частоты hz
func TickDuration(hz int) time.Duration {
	if hz <= 0 {
		hz = TickRate
	}
	return time.Second / time.Duration(hz)
}

// Accumulate добавляет прошедшее время к накопителю, ограничивая кадр MaxFrameTime
func Accumulate(acc, frame time.Duration) time.Duration {
	if frame > MaxFrameTime {
		frame = MaxFrameTime
	}
	if frame < 0 {
		frame = 0
	}
	return acc + frame
}
