// Package network предоставляет неблокирующий байтовый транспорт поверх TCP и KCP.
//
// Симуляция никогда не ждёт сеть: чтение и запись выполняют отдельные горутины,
// а Receive и Send только забирают и кладут данные в буферы.
package network

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrConnectionLost - удалённая сторона закрыла соединение или произошла ошибка сокета
	ErrConnectionLost = errors.New("connection lost")
	// ErrSendBufferFull - очередь отправки переполнена, данные не приняты
	ErrSendBufferFull = errors.New("send buffer full")
)

// Transport - двунаправленный поток байт без собственной разметки пакетов
type Transport interface {
	// Receive возвращает очередной полученный кусок потока или nil, если ничего не пришло.
	// После потери соединения возвращает ошибку, обёртывающую ErrConnectionLost.
	Receive() ([]byte, error)
	// Send ставит данные в очередь отправки и сразу возвращается
	Send(data []byte) error
	Close() error
	RemoteAddr() string
}

// ChannelType определяет тип канала связи
type ChannelType int

const (
	ChannelTCP ChannelType = iota
	ChannelKCP
)

// String возвращает имя типа канала
func (t ChannelType) String() string {
	switch t {
	case ChannelTCP:
		return "tcp"
	case ChannelKCP:
		return "kcp"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// ParseChannelType разбирает имя транспорта из конфигурации
func ParseChannelType(s string) (ChannelType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "tcp":
		return ChannelTCP, nil
	case "kcp":
		return ChannelKCP, nil
	default:
		return ChannelTCP, fmt.Errorf("unknown transport %q", s)
	}
}

// ConnectionStats содержит статистику соединения
type ConnectionStats struct {
	BytesSent      uint64    // Отправлено байт
	BytesReceived  uint64    // Получено байт
	ChunksSent     uint64    // Записей в сокет
	ChunksReceived uint64    // Чтений из сокета
	SendDropped    uint64    // Отклонено из-за переполнения очереди
	LastActivity   time.Time // Последняя активность
	Connected      bool      // Статус соединения
	RemoteAddr     string    // Адрес удалённого узла
}

// ChannelConfig содержит конфигурацию канала
type ChannelConfig struct {
	Type           ChannelType
	BufferSize     int           // Ёмкость очередей отправки и приёма, в кусках
	ReadBufferSize int           // Размер буфера одного чтения из сокета
	DialTimeout    time.Duration // Таймаут установки соединения
	KeepAlive      time.Duration // Период TCP keep-alive
}

// DefaultChannelConfig возвращает конфигурацию канала по умолчанию
func DefaultChannelConfig(channelType ChannelType) *ChannelConfig {
	return &ChannelConfig{
		Type:           channelType,
		BufferSize:     1024,
		ReadBufferSize: 16 * 1024,
		DialTimeout:    10 * time.Second,
		KeepAlive:      10 * time.Second,
	}
}
