package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// unmatchedPath - метка для запросов мимо маршрутов, чтобы произвольные URL не раздували кардинальность
const unmatchedPath = "unmatched"

// PrometheusMiddleware считает запросы REST API.
//
//	http_request_duration_seconds{method,path,status}
//	http_requests_inflight
//	http_request_errors_total{method,path,status}   только 4xx и 5xx
type PrometheusMiddleware struct {
	reqDuration *prometheus.HistogramVec
	reqInflight prometheus.Gauge
	reqErrors   *prometheus.CounterVec
}

// NewPrometheusMiddleware создаёт метрики с префиксом namespace; reg == nil - без регистрации
func NewPrometheusMiddleware(namespace string, reg prometheus.Registerer) *PrometheusMiddleware {
	labels := []string{"method", "path", "status"}
	pm := &PrometheusMiddleware{
		reqDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Длительность обработки запроса к API.",
			// API отвечает из памяти, поэтому сетка смещена в миллисекунды
			Buckets: prometheus.ExponentialBuckets(0.0005, 2.5, 10),
		}, labels),
		reqInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_inflight",
			Help:      "Запросы к API в обработке.",
		}),
		reqErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_request_errors_total",
			Help:      "Запросы к API, завершившиеся 4xx или 5xx.",
		}, labels),
	}
	if reg != nil {
		reg.MustRegister(pm.reqDuration, pm.reqInflight, pm.reqErrors)
	}
	return pm
}

// Handler подключается через router.Use
func (pm *PrometheusMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		pm.reqInflight.Inc()
		defer pm.reqInflight.Dec()

		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = unmatchedPath
		}
		code := c.Writer.Status()
		lv := []string{c.Request.Method, path, strconv.Itoa(code)}

		pm.reqDuration.WithLabelValues(lv...).Observe(time.Since(start).Seconds())
		if code >= 400 {
			pm.reqErrors.WithLabelValues(lv...).Inc()
		}
	}
}

// RegisterMetricsEndpoint вешает GET /metrics с содержимым g
func (pm *PrometheusMiddleware) RegisterMetricsEndpoint(r *gin.Engine, g prometheus.Gatherer) {
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(g, promhttp.HandlerOpts{ErrorHandling: promhttp.ContinueOnError})))
}
