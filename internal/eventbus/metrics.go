package eventbus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsExporter периодически переносит Stats шины в Prometheus-метрики.
type MetricsExporter struct {
	bus      EventBus
	interval time.Duration
	quit     chan struct{}
	done     chan struct{}

	published prometheus.Counter
	consumed  prometheus.Counter
	dropped   prometheus.Counter
	inflight  prometheus.Gauge
}

// NewMetricsExporter создаёт экспортер и регистрирует метрики в reg.
func NewMetricsExporter(bus EventBus, reg prometheus.Registerer, interval time.Duration) *MetricsExporter {
	if interval <= 0 {
		interval = time.Second
	}
	labels := prometheus.Labels{"bus": busName(bus)}
	me := &MetricsExporter{
		bus:      bus,
		interval: interval,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "coin_collector",
			Subsystem:   "eventbus",
			Name:        "messages_published_total",
			Help:        "Общее число опубликованных сообщений.",
			ConstLabels: labels,
		}),
		consumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "coin_collector",
			Subsystem:   "eventbus",
			Name:        "messages_consumed_total",
			Help:        "Общее число доставленных сообщений подписчикам.",
			ConstLabels: labels,
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "coin_collector",
			Subsystem:   "eventbus",
			Name:        "messages_dropped_total",
			Help:        "Сообщений, отброшенных из-за ошибок или ограничения back-pressure.",
			ConstLabels: labels,
		}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "coin_collector",
			Subsystem:   "eventbus",
			Name:        "messages_inflight",
			Help:        "Количество сообщений, находящихся в очереди (не доставленных).",
			ConstLabels: labels,
		}),
	}

	if reg != nil {
		reg.MustRegister(me.published, me.consumed, me.dropped, me.inflight)
	}
	return me
}

func busName(bus EventBus) string {
	if _, ok := bus.(*JetStreamBus); ok {
		return "nats"
	}
	return "memory"
}

// Start запускает обновление метрик в отдельной горутине
func (m *MetricsExporter) Start() {
	go m.loop()
}

// Stop останавливает обновление метрик.
func (m *MetricsExporter) Stop() {
	close(m.quit)
	<-m.done
}

// Collect переносит текущие Stats в метрики
func (m *MetricsExporter) Collect(prev Stats) Stats {
	stats := m.bus.Metrics()

	// Для Counter храним прошлое значение и прибавляем дельту
	if stats.Published > prev.Published {
		m.published.Add(float64(stats.Published - prev.Published))
	}
	if stats.Consumed > prev.Consumed {
		m.consumed.Add(float64(stats.Consumed - prev.Consumed))
	}
	if stats.Dropped > prev.Dropped {
		m.dropped.Add(float64(stats.Dropped - prev.Dropped))
	}
	m.inflight.Set(float64(stats.InFlight))
	return stats
}

func (m *MetricsExporter) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	defer close(m.done)

	var prev Stats
	for {
		select {
		case <-ticker.C:
			prev = m.Collect(prev)
		case <-m.quit:
			return
		}
	}
}
