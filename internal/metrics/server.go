// Package metrics содержит Prometheus-метрики сервера и клиента.
//
// Все методы безопасны для nil-получателя, чтобы тесты и бот могли работать без метрик.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "coin_collector"

// ServerMetrics - метрики игрового сервера
type ServerMetrics struct {
	players          prometheus.Gauge
	ticks            prometheus.Counter
	tickDuration     prometheus.Histogram
	broadcasts       prometheus.Counter
	bytesSent        prometheus.Counter
	bytesReceived    prometheus.Counter
	inputs           prometheus.Counter
	coinsCollected   prometheus.Counter
	malformed        *prometheus.CounterVec
	connections      *prometheus.CounterVec
	sendDropped      prometheus.Counter
	outboundQueueLen prometheus.Gauge
}

// NewServerMetrics создаёт метрики сервера и регистрирует их в reg
func NewServerMetrics(reg prometheus.Registerer) *ServerMetrics {
	m := &ServerMetrics{
		players: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "players",
			Help:      "Количество подключённых игроков.",
		}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "ticks_total",
			Help:      "Общее число выполненных тиков симуляции.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "tick_duration_seconds",
			Help:      "Длительность одного тика симуляции.",
			Buckets:   []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.016, 0.033},
		}),
		broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "broadcasts_total",
			Help:      "Число рассылок снимка мира.",
		}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "bytes_sent_total",
			Help:      "Байт передано в транспорт.",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "bytes_received_total",
			Help:      "Байт получено из транспорта.",
		}),
		inputs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "inputs_processed_total",
			Help:      "Применённых вводов игроков.",
		}),
		coinsCollected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "coins_collected_total",
			Help:      "Подобранных монет.",
		}),
		malformed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "malformed_packets_total",
			Help:      "Пакетов с нехваткой байт или неизвестным типом.",
		}, []string{"type"}),
		connections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "connections_total",
			Help:      "Подключения и отключения.",
		}, []string{"event"}),
		sendDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "send_dropped_total",
			Help:      "Пакетов, не принятых транспортом из-за переполнения.",
		}),
		outboundQueueLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "outbound_queue_length",
			Help:      "Суммарная длина исходящих очередей задержки.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.players, m.ticks, m.tickDuration, m.broadcasts, m.bytesSent, m.bytesReceived,
			m.inputs, m.coinsCollected, m.malformed, m.connections, m.sendDropped, m.outboundQueueLen,
		)
	}
	return m
}

func (m *ServerMetrics) SetPlayers(n int) {
	if m == nil {
		return
	}
	m.players.Set(float64(n))
}

func (m *ServerMetrics) ObserveTick(d time.Duration) {
	if m == nil {
		return
	}
	m.ticks.Inc()
	m.tickDuration.Observe(d.Seconds())
}

func (m *ServerMetrics) IncBroadcast() {
	if m == nil {
		return
	}
	m.broadcasts.Inc()
}

func (m *ServerMetrics) AddBytesSent(n int) {
	if m == nil {
		return
	}
	m.bytesSent.Add(float64(n))
}

func (m *ServerMetrics) AddBytesReceived(n int) {
	if m == nil {
		return
	}
	m.bytesReceived.Add(float64(n))
}

func (m *ServerMetrics) IncInput() {
	if m == nil {
		return
	}
	m.inputs.Inc()
}

func (m *ServerMetrics) IncCoinCollected() {
	if m == nil {
		return
	}
	m.coinsCollected.Inc()
}

// IncMalformed учитывает битый пакет; packetType - имя типа пакета
func (m *ServerMetrics) IncMalformed(packetType string) {
	if m == nil {
		return
	}
	m.malformed.WithLabelValues(packetType).Inc()
}

func (m *ServerMetrics) IncConnect() {
	if m == nil {
		return
	}
	m.connections.WithLabelValues("connect").Inc()
}

func (m *ServerMetrics) IncDisconnect() {
	if m == nil {
		return
	}
	m.connections.WithLabelValues("disconnect").Inc()
}

func (m *ServerMetrics) IncSendDropped() {
	if m == nil {
		return
	}
	m.sendDropped.Inc()
}

func (m *ServerMetrics) SetOutboundQueueLen(n int) {
	if m == nil {
		return
	}
	m.outboundQueueLen.Set(float64(n))
}
