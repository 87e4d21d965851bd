// Package events содержит игровые события для шины событий.
//
// Полезная нагрузка кодируется в формате protobuf wire (protowire) без сгенерированного кода:
// номера полей фиксированы, неизвестные поля пропускаются при разборе.
package events

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Типы событий. Используются как Envelope.EventType и как суффикс subject в NATS.
const (
	TypePlayerJoined  = "PlayerJoined"
	TypePlayerLeft    = "PlayerLeft"
	TypeCoinCollected = "CoinCollected"
)

// ErrUnknownEvent - тип события не поддерживается
var ErrUnknownEvent = errors.New("unknown event type")

// Event - игровое событие с собственной сериализацией
type Event interface {
	EventType() string
	Marshal() []byte
}

// PlayerJoined - игрок подключился и появился в мире
type PlayerJoined struct {
	PlayerID  uint32
	SessionID string
	X, Y      float32
}

// PlayerLeft - соединение игрока закрыто
type PlayerLeft struct {
	PlayerID  uint32
	SessionID string
	Score     uint32
}

// CoinCollected - игрок подобрал монету
type CoinCollected struct {
	Tick     uint32
	PlayerID uint32
	CoinID   uint32
	Score    uint32
}

func (PlayerJoined) EventType() string  { return TypePlayerJoined }
func (PlayerLeft) EventType() string    { return TypePlayerLeft }
func (CoinCollected) EventType() string { return TypeCoinCollected }

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendFloat(b []byte, num protowire.Number, f float32) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, math.Float32bits(f))
}

func (e PlayerJoined) Marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(e.PlayerID))
	b = appendString(b, 2, e.SessionID)
	b = appendFloat(b, 3, e.X)
	b = appendFloat(b, 4, e.Y)
	return b
}

func (e PlayerLeft) Marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(e.PlayerID))
	b = appendString(b, 2, e.SessionID)
	b = appendVarint(b, 3, uint64(e.Score))
	return b
}

func (e CoinCollected) Marshal() []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(e.Tick))
	b = appendVarint(b, 2, uint64(e.PlayerID))
	b = appendVarint(b, 3, uint64(e.CoinID))
	b = appendVarint(b, 4, uint64(e.Score))
	return b
}

// field - одно разобранное поле сообщения
type field struct {
	num    protowire.Number
	varint uint64
	fixed  uint32
	bytes  []byte
}

// parseFields разбирает сообщение в список полей
func parseFields(b []byte) ([]field, error) {
	var fields []field
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]

		f := field{num: num}
		switch typ {
		case protowire.VarintType:
			f.varint, n = protowire.ConsumeVarint(b)
		case protowire.Fixed32Type:
			f.fixed, n = protowire.ConsumeFixed32(b)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		fields = append(fields, f)
	}
	return fields, nil
}

// Unmarshal восстанавливает событие по типу и полезной нагрузке
func Unmarshal(eventType string, payload []byte) (Event, error) {
	fields, err := parseFields(payload)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", eventType, err)
	}

	switch eventType {
	case TypePlayerJoined:
		var e PlayerJoined
		for _, f := range fields {
			switch f.num {
			case 1:
				e.PlayerID = uint32(f.varint)
			case 2:
				e.SessionID = string(f.bytes)
			case 3:
				e.X = math.Float32frombits(f.fixed)
			case 4:
				e.Y = math.Float32frombits(f.fixed)
			}
		}
		return e, nil
	case TypePlayerLeft:
		var e PlayerLeft
		for _, f := range fields {
			switch f.num {
			case 1:
				e.PlayerID = uint32(f.varint)
			case 2:
				e.SessionID = string(f.bytes)
			case 3:
				e.Score = uint32(f.varint)
			}
		}
		return e, nil
	case TypeCoinCollected:
		var e CoinCollected
		for _, f := range fields {
			switch f.num {
			case 1:
				e.Tick = uint32(f.varint)
			case 2:
				e.PlayerID = uint32(f.varint)
			case 3:
				e.CoinID = uint32(f.varint)
			case 4:
				e.Score = uint32(f.varint)
			}
		}
		return e, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, eventType)
	}
}
