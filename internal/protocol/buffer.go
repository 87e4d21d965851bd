package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ByteBuffer - буфер для записи и чтения полей протокола в little-endian.
//
// Чтение снисходительное: если байт не хватает, метод возвращает ноль,
// а буфер запоминает первую ошибку ErrMalformedPacket (см. Err).
type ByteBuffer struct {
	data    []byte
	readPos int
	err     error
}

// NewByteBuffer создаёт пустой буфер для записи
func NewByteBuffer(capacity int) *ByteBuffer {
	return &ByteBuffer{data: make([]byte, 0, capacity)}
}

// NewReader создаёт буфер для чтения поверх data (без копирования)
func NewReader(data []byte) *ByteBuffer {
	return &ByteBuffer{data: data}
}

func (b *ByteBuffer) WriteUint8(v uint8) {
	b.data = append(b.data, v)
}

func (b *ByteBuffer) WriteUint16(v uint16) {
	b.data = binary.LittleEndian.AppendUint16(b.data, v)
}

func (b *ByteBuffer) WriteUint32(v uint32) {
	b.data = binary.LittleEndian.AppendUint32(b.data, v)
}

func (b *ByteBuffer) WriteUint64(v uint64) {
	b.data = binary.LittleEndian.AppendUint64(b.data, v)
}

func (b *ByteBuffer) WriteFloat32(v float32) {
	b.WriteUint32(math.Float32bits(v))
}

func (b *ByteBuffer) WriteBool(v bool) {
	if v {
		b.WriteUint8(1)
		return
	}
	b.WriteUint8(0)
}

func (b *ByteBuffer) WriteBytes(p []byte) {
	b.data = append(b.data, p...)
}

// take возвращает следующие n байт или nil, если их не хватает
func (b *ByteBuffer) take(n int) []byte {
	if b.readPos+n > len(b.data) {
		if b.err == nil {
			b.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d",
				ErrMalformedPacket, n, b.readPos, len(b.data)-b.readPos)
		}
		return nil
	}
	p := b.data[b.readPos : b.readPos+n]
	b.readPos += n
	return p
}

func (b *ByteBuffer) ReadUint8() uint8 {
	p := b.take(1)
	if p == nil {
		return 0
	}
	return p[0]
}

func (b *ByteBuffer) ReadUint16() uint16 {
	p := b.take(2)
	if p == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(p)
}

func (b *ByteBuffer) ReadUint32() uint32 {
	p := b.take(4)
	if p == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(p)
}

func (b *ByteBuffer) ReadUint64() uint64 {
	p := b.take(8)
	if p == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(p)
}

func (b *ByteBuffer) ReadFloat32() float32 {
	return math.Float32frombits(b.ReadUint32())
}

func (b *ByteBuffer) ReadBool() bool {
	return b.ReadUint8() != 0
}

// Bytes возвращает записанные данные
func (b *ByteBuffer) Bytes() []byte { return b.data }

// Len возвращает общий размер данных
func (b *ByteBuffer) Len() int { return len(b.data) }

// Remaining возвращает количество непрочитанных байт
func (b *ByteBuffer) Remaining() int { return len(b.data) - b.readPos }

// Err возвращает первую ошибку чтения
func (b *ByteBuffer) Err() error { return b.err }

// Reset очищает буфер, сохраняя выделенную память
func (b *ByteBuffer) Reset() {
	b.data = b.data[:0]
	b.readPos = 0
	b.err = nil
}
