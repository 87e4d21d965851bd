package protocol

import (
	"fmt"

	"github.com/annel0/coin-collector/internal/game"
	"github.com/annel0/coin-collector/internal/vec"
)

// CoinEvent - уведомление о подборе монеты (пакет Event)
type CoinEvent struct {
	PlayerID game.PlayerID
	CoinID   uint32
	Score    uint32
}

// WorldStatePayloadSize возвращает длину полезной нагрузки WorldState
func WorldStatePayloadSize(players, coins int) int {
	return 4 + 1 + players*PlayerWireSize + 1 + coins*CoinWireSize
}

// newPacket готовит буфер с заголовком под полезную нагрузку известного размера
func newPacket(t PacketType, seq uint32, payloadSize int) *ByteBuffer {
	b := NewByteBuffer(HeaderSize + payloadSize)
	WriteHeader(b, Header{Type: t, Sequence: seq, PayloadSize: uint16(payloadSize)})
	return b
}

// SerializeHandshake - запрос клиента на подключение, без полезной нагрузки
func SerializeHandshake(seq uint32) []byte {
	return newPacket(PacketHandshake, seq, 0).Bytes()
}

// SerializeHandshakeResponse - ответ сервера с выданным PlayerID
func SerializeHandshakeResponse(seq uint32, id game.PlayerID) []byte {
	b := newPacket(PacketHandshake, seq, HandshakeResponsePayloadSize)
	b.WriteUint32(id)
	return b.Bytes()
}

// SerializeInput - ввод клиента; seq - номер ввода
func SerializeInput(seq game.SequenceID, input game.InputState) []byte {
	b := newPacket(PacketInput, seq, InputPayloadSize)
	b.WriteBool(input.Up)
	b.WriteBool(input.Down)
	b.WriteBool(input.Left)
	b.WriteBool(input.Right)
	return b.Bytes()
}

// SerializeWorldState - снимок мира. В seq сервер кладёт номер последнего
// обработанного ввода получателя.
func SerializeWorldState(seq uint32, ws *game.WorldState) ([]byte, error) {
	if len(ws.Players) > MaxEntityCount || len(ws.Coins) > MaxEntityCount {
		return nil, fmt.Errorf("%w: %d players, %d coins", ErrTooManyEntities, len(ws.Players), len(ws.Coins))
	}

	b := newPacket(PacketWorldState, seq, WorldStatePayloadSize(len(ws.Players), len(ws.Coins)))
	b.WriteUint32(ws.Tick)

	b.WriteUint8(uint8(len(ws.Players)))
	for i := range ws.Players {
		p := &ws.Players[i]
		b.WriteUint32(p.ID)
		b.WriteFloat32(p.Position.X)
		b.WriteFloat32(p.Position.Y)
		b.WriteFloat32(p.Velocity.X)
		b.WriteFloat32(p.Velocity.Y)
		b.WriteUint32(p.Score)
	}

	b.WriteUint8(uint8(len(ws.Coins)))
	for i := range ws.Coins {
		c := &ws.Coins[i]
		b.WriteUint32(c.ID)
		b.WriteFloat32(c.Position.X)
		b.WriteFloat32(c.Position.Y)
		b.WriteBool(c.Active)
	}
	return b.Bytes(), nil
}

// SerializePing - пинг с отметкой времени отправителя в миллисекундах
func SerializePing(seq uint32, timestampMs uint64) []byte {
	b := newPacket(PacketPing, seq, TimestampPayloadSize)
	b.WriteUint64(timestampMs)
	return b.Bytes()
}

// SerializePong - ответ на пинг, отметка времени возвращается без изменений
func SerializePong(seq uint32, timestampMs uint64) []byte {
	b := newPacket(PacketPong, seq, TimestampPayloadSize)
	b.WriteUint64(timestampMs)
	return b.Bytes()
}

// SerializeEvent - событие подбора монеты
func SerializeEvent(seq uint32, ev CoinEvent) []byte {
	b := newPacket(PacketEvent, seq, EventPayloadSize)
	b.WriteUint32(ev.PlayerID)
	b.WriteUint32(ev.CoinID)
	b.WriteUint32(ev.Score)
	return b.Bytes()
}

// DeserializeHandshakeResponse читает выданный сервером PlayerID
func DeserializeHandshakeResponse(payload []byte) (game.PlayerID, error) {
	r := NewReader(payload)
	id := r.ReadUint32()
	return id, r.Err()
}

// DeserializeInput читает ввод. При нехватке байт недостающие клавиши считаются отпущенными.
func DeserializeInput(payload []byte) (game.InputState, error) {
	r := NewReader(payload)
	in := game.InputState{
		Up:    r.ReadBool(),
		Down:  r.ReadBool(),
		Left:  r.ReadBool(),
		Right: r.ReadBool(),
	}
	return in, r.Err()
}

// DeserializeWorldState читает снимок мира.
//
// Разбор снисходительный: недостающие поля заполняются нулями и возвращается
// ErrMalformedPacket. Сущности, от которых в буфере не осталось ни одного байта,
// в результат не попадают.
func DeserializeWorldState(payload []byte) (game.WorldState, error) {
	r := NewReader(payload)
	var ws game.WorldState
	ws.Tick = r.ReadUint32()

	playerCount := int(r.ReadUint8())
	ws.Players = make([]game.PlayerState, 0, playerCount)
	for i := 0; i < playerCount && r.Err() == nil; i++ {
		var p game.PlayerState
		p.ID = r.ReadUint32()
		p.Position = vec.Vec2{X: r.ReadFloat32(), Y: r.ReadFloat32()}
		p.Velocity = vec.Vec2{X: r.ReadFloat32(), Y: r.ReadFloat32()}
		p.Score = r.ReadUint32()
		ws.Players = append(ws.Players, p)
	}

	coinCount := int(r.ReadUint8())
	ws.Coins = make([]game.CoinState, 0, coinCount)
	for i := 0; i < coinCount && r.Err() == nil; i++ {
		var c game.CoinState
		c.ID = r.ReadUint32()
		c.Position = vec.Vec2{X: r.ReadFloat32(), Y: r.ReadFloat32()}
		c.Active = r.ReadBool()
		ws.Coins = append(ws.Coins, c)
	}

	return ws, r.Err()
}

// DeserializeTimestamp читает отметку времени из Ping или Pong
func DeserializeTimestamp(payload []byte) (uint64, error) {
	r := NewReader(payload)
	ts := r.ReadUint64()
	return ts, r.Err()
}

// DeserializeEvent читает событие подбора монеты
func DeserializeEvent(payload []byte) (CoinEvent, error) {
	r := NewReader(payload)
	ev := CoinEvent{
		PlayerID: r.ReadUint32(),
		CoinID:   r.ReadUint32(),
		Score:    r.ReadUint32(),
	}
	return ev, r.Err()
}
