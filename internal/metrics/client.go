package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ClientMetrics - метрики клиента (бота)
type ClientMetrics struct {
	corrections     prometheus.Counter
	resyncs         prometheus.Counter
	predictionError prometheus.Histogram
	pendingInputs   prometheus.Gauge
	rtt             prometheus.Gauge
	snapshots       prometheus.Counter
	malformed       prometheus.Counter
	coinEvents      prometheus.Counter
}

// NewClientMetrics создаёт метрики клиента и регистрирует их в reg
func NewClientMetrics(reg prometheus.Registerer) *ClientMetrics {
	m := &ClientMetrics{
		corrections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "prediction_corrections_total",
			Help:      "Сколько раз предсказание разошлось с сервером больше порога.",
		}),
		resyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "prediction_resyncs_total",
			Help:      "Пересборок состояния без опорной записи истории.",
		}),
		predictionError: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "prediction_error_units",
			Help:      "Расхождение предсказанной и серверной позиции.",
			Buckets:   []float64{0.001, 0.01, 0.1, 1, 2.5, 5, 10, 25, 50, 100},
		}),
		pendingInputs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "pending_inputs",
			Help:      "Неподтверждённых вводов в истории.",
		}),
		rtt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "rtt_seconds",
			Help:      "Последнее измеренное время пинг-понга.",
		}),
		snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "world_states_total",
			Help:      "Применённых снимков мира.",
		}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "malformed_packets_total",
			Help:      "Пакетов с нехваткой байт или неизвестным типом.",
		}),
		coinEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "coin_events_total",
			Help:      "Полученных уведомлений о подборе монет.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.corrections, m.resyncs, m.predictionError, m.pendingInputs,
			m.rtt, m.snapshots, m.malformed, m.coinEvents)
	}
	return m
}

// ObserveReconcile учитывает итог сверки
func (m *ClientMetrics) ObserveReconcile(corrected, resynced bool, errUnits float32, pending int) {
	if m == nil {
		return
	}
	if corrected {
		m.corrections.Inc()
	}
	if resynced {
		m.resyncs.Inc()
	} else {
		m.predictionError.Observe(float64(errUnits))
	}
	m.pendingInputs.Set(float64(pending))
	m.snapshots.Inc()
}

func (m *ClientMetrics) SetRTT(d time.Duration) {
	if m == nil {
		return
	}
	m.rtt.Set(d.Seconds())
}

func (m *ClientMetrics) IncMalformed() {
	if m == nil {
		return
	}
	m.malformed.Inc()
}

func (m *ClientMetrics) IncCoinEvent() {
	if m == nil {
		return
	}
	m.coinEvents.Inc()
}
