// Package protocol реализует бинарный сетевой протокол игры.
//
// Формат пакета: заголовок из 7 байт (тип u8, номер u32, длина полезной нагрузки u16)
// и полезная нагрузка. Все числа little-endian, float32 передаётся битовым образом IEEE-754.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// PacketType определяет тип пакета
type PacketType uint8

const (
	PacketHandshake  PacketType = 1
	PacketInput      PacketType = 2
	PacketWorldState PacketType = 3
	PacketEvent      PacketType = 4
	PacketPing       PacketType = 5
	PacketPong       PacketType = 6
)

// String возвращает имя типа пакета
func (t PacketType) String() string {
	switch t {
	case PacketHandshake:
		return "Handshake"
	case PacketInput:
		return "Input"
	case PacketWorldState:
		return "WorldState"
	case PacketEvent:
		return "Event"
	case PacketPing:
		return "Ping"
	case PacketPong:
		return "Pong"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(t))
	}
}

// Known сообщает, известен ли тип пакета
func (t PacketType) Known() bool {
	return t >= PacketHandshake && t <= PacketPong
}

const (
	// HeaderSize - размер заголовка: тип(1) + номер(4) + длина(2)
	HeaderSize = 7
	// MaxPayloadSize - длина полезной нагрузки хранится в 16 битах
	MaxPayloadSize = 0xFFFF
	// MaxEntityCount - счётчики игроков и монет в WorldState занимают один байт
	MaxEntityCount = 0xFF
)

// Точные размеры полей полезной нагрузки
const (
	InputPayloadSize             = 4                     // 4 bool
	HandshakeResponsePayloadSize = 4                     // PlayerID
	PlayerWireSize               = 4 + 4 + 4 + 4 + 4 + 4 // id + pos + vel + score
	CoinWireSize                 = 4 + 4 + 4 + 1         // id + pos + active
	TimestampPayloadSize         = 8                     // ping/pong
	EventPayloadSize             = 4 + 4 + 4             // игрок + монета + счёт
)

var (
	// ErrMalformedPacket - в буфере меньше байт, чем требует объявленный формат
	ErrMalformedPacket = errors.New("malformed packet")
	// ErrPayloadTooLarge - полезная нагрузка не помещается в 16-битную длину
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrTooManyEntities - игроков или монет больше, чем помещается в однобайтовый счётчик
	ErrTooManyEntities = errors.New("too many entities for world state packet")
)

// Header - заголовок пакета
type Header struct {
	Type        PacketType
	Sequence    uint32
	PayloadSize uint16
}

// TotalSize возвращает полный размер пакета вместе с заголовком
func (h Header) TotalSize() int {
	return HeaderSize + int(h.PayloadSize)
}

// Packet - разобранный пакет: заголовок и копия полезной нагрузки
type Packet struct {
	Header  Header
	Payload []byte
}

// WriteHeader записывает заголовок в буфер
func WriteHeader(b *ByteBuffer, h Header) {
	b.WriteUint8(uint8(h.Type))
	b.WriteUint32(h.Sequence)
	b.WriteUint16(h.PayloadSize)
}

// ReadHeader читает заголовок из буфера
func ReadHeader(b *ByteBuffer) Header {
	var h Header
	h.Type = PacketType(b.ReadUint8())
	h.Sequence = b.ReadUint32()
	h.PayloadSize = b.ReadUint16()
	return h
}

// PeekHeader разбирает заголовок из начала data, не требуя полного пакета.
// Возвращает false, если байт меньше HeaderSize.
func PeekHeader(data []byte) (Header, bool) {
	if len(data) < HeaderSize {
		return Header{}, false
	}
	return ReadHeader(NewReader(data[:HeaderSize])), true
}

// EncodePacket собирает пакет из заголовка и уже сериализованной полезной нагрузки
func EncodePacket(t PacketType, seq uint32, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}
	b := NewByteBuffer(HeaderSize + len(payload))
	WriteHeader(b, Header{Type: t, Sequence: seq, PayloadSize: uint16(len(payload))})
	b.WriteBytes(payload)
	return b.Bytes(), nil
}

// WithSequence возвращает копию пакета с другим номером в заголовке.
// Используется, чтобы сериализовать общий снимок мира один раз на всех получателей.
func WithSequence(packet []byte, seq uint32) []byte {
	out := make([]byte, len(packet))
	copy(out, packet)
	if len(out) >= HeaderSize {
		binary.LittleEndian.PutUint32(out[1:5], seq)
	}
	return out
}
