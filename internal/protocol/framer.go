package protocol

// Framer собирает пакеты из потока байт, пришедшего произвольными кусками.
//
// Неполный хвост остаётся в буфере до следующего Feed. Полезная нагрузка
// возвращаемых пакетов копируется, так что их можно хранить после следующего Feed.
// Framer не безопасен для конкурентного использования.
type Framer struct {
	buf []byte
}

// NewFramer создаёт сборщик пакетов
func NewFramer() *Framer {
	return &Framer{buf: make([]byte, 0, 4096)}
}

// Feed добавляет очередной кусок потока
func (f *Framer) Feed(chunk []byte) {
	f.buf = append(f.buf, chunk...)
}

// Next извлекает следующий полный пакет. Возвращает false, если пакет ещё не дошёл целиком.
func (f *Framer) Next() (Packet, bool) {
	h, ok := PeekHeader(f.buf)
	if !ok {
		return Packet{}, false
	}
	total := h.TotalSize()
	if len(f.buf) < total {
		return Packet{}, false
	}

	payload := make([]byte, h.PayloadSize)
	copy(payload, f.buf[HeaderSize:total])
	f.buf = f.buf[:copy(f.buf, f.buf[total:])]

	return Packet{Header: h, Payload: payload}, true
}

// Drain передаёт handler все полные пакеты в порядке поступления и возвращает их число
func (f *Framer) Drain(handler func(Packet)) int {
	n := 0
	for {
		pkt, ok := f.Next()
		if !ok {
			return n
		}
		handler(pkt)
		n++
	}
}

// Buffered возвращает число байт, ожидающих продолжения пакета
func (f *Framer) Buffered() int {
	return len(f.buf)
}

// Reset сбрасывает накопленные байты
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
}
