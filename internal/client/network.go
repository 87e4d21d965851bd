package client

import (
	"errors"
	"time"

	"github.com/annel0/coin-collector/internal/delivery"
	"github.com/annel0/coin-collector/internal/game"
	"github.com/annel0/coin-collector/internal/logging"
	"github.com/annel0/coin-collector/internal/metrics"
	"github.com/annel0/coin-collector/internal/network"
	"github.com/annel0/coin-collector/internal/protocol"
)

// ClientNetwork связывает транспорт с очередями задержки клиента.
// Ответ на рукопожатие обрабатывается сразу, остальные пакеты проходят через входящую очередь.
type ClientNetwork struct {
	transport network.Transport
	framer    *protocol.Framer
	outgoing  *delivery.Queue[[]byte]
	incoming  *delivery.Queue[protocol.Packet]
	playerID  game.PlayerID
	lost      error

	logger  *logging.Logger
	metrics *metrics.ClientMetrics
}

// NewClientNetwork создаёт сетевой слой поверх готового транспорта
func NewClientNetwork(t network.Transport, outboundDelay, inboundDelay time.Duration, clock delivery.Clock,
	logger *logging.Logger, m *metrics.ClientMetrics) *ClientNetwork {
	return &ClientNetwork{
		transport: t,
		framer:    protocol.NewFramer(),
		outgoing:  delivery.NewQueueWithClock[[]byte](outboundDelay, clock),
		incoming:  delivery.NewQueueWithClock[protocol.Packet](inboundDelay, clock),
		logger:    logger,
		metrics:   m,
	}
}

// Send ставит пакет в исходящую очередь задержки
func (n *ClientNetwork) Send(packet []byte) {
	n.outgoing.Push(packet)
}

// Update читает транспорт, разбирает пакеты и отправляет всё, чья задержка истекла.
// После потери соединения возвращает ошибку, обёртывающую network.ErrConnectionLost.
func (n *ClientNetwork) Update() error {
	if n.lost != nil {
		return n.lost
	}

	for {
		chunk, err := n.transport.Receive()
		if err != nil {
			n.lost = err
			break
		}
		if chunk == nil {
			break
		}
		n.framer.Feed(chunk)
	}
	n.framer.Drain(n.dispatch)

	for n.lost == nil {
		data, ok := n.outgoing.TryPop()
		if !ok {
			break
		}
		err := n.transport.Send(data)
		if errors.Is(err, network.ErrSendBufferFull) {
			n.logger.Debug("Send buffer full, packet dropped")
			continue
		}
		if err != nil {
			n.lost = err
		}
	}
	return n.lost
}

func (n *ClientNetwork) dispatch(pkt protocol.Packet) {
	switch pkt.Header.Type {
	case protocol.PacketHandshake:
		id, err := protocol.DeserializeHandshakeResponse(pkt.Payload)
		if err != nil {
			logging.LogProtocolError(n.logger, "server", err, pkt.Payload)
			n.metrics.IncMalformed()
			return
		}
		n.playerID = id
	case protocol.PacketWorldState, protocol.PacketEvent, protocol.PacketPong:
		n.incoming.Push(pkt)
	default:
		n.logger.Debug("Unexpected packet %s from server", pkt.Header.Type)
		n.metrics.IncMalformed()
	}
}

// PopPacket возвращает следующий пакет, чья входящая задержка истекла
func (n *ClientNetwork) PopPacket() (protocol.Packet, bool) {
	return n.incoming.TryPop()
}

// PlayerID возвращает выданный сервером идентификатор или 0
func (n *ClientNetwork) PlayerID() game.PlayerID {
	return n.playerID
}

// SetLatency меняет задержки для будущих пакетов
func (n *ClientNetwork) SetLatency(outbound, inbound time.Duration) {
	n.outgoing.SetDelay(outbound)
	n.incoming.SetDelay(inbound)
}

// Close закрывает транспорт и отбрасывает недоставленное
func (n *ClientNetwork) Close() error {
	n.outgoing.Clear()
	n.incoming.Clear()
	n.framer.Reset()
	return n.transport.Close()
}
