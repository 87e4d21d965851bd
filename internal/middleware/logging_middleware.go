// Package middleware - общие gin-обработчики REST API.
package middleware

import (
	"net/http"
	"time"

	"github.com/annel0/coin-collector/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// TraceIDKey - ключ gin.Context с идентификатором трассы запроса
const TraceIDKey = "trace_id"

// Служебные маршруты, которые опрашиваются постоянно и пишутся только в DEBUG
var quietPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// RequestLogger присваивает запросу trace-ID и пишет одну строку по его завершении
type RequestLogger struct {
	logger *logging.Logger
}

func NewRequestLogger(logger *logging.Logger) *RequestLogger { return &RequestLogger{logger: logger} }

func traceIDOf(c *gin.Context) string {
	if sc := trace.SpanFromContext(c.Request.Context()).SpanContext(); sc.IsValid() {
		return sc.TraceID().String()
	}
	return uuid.NewString()
}

func (rl *RequestLogger) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := traceIDOf(c)
		c.Set(TraceIDKey, traceID)
		c.Header("X-Trace-Id", traceID)

		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		status := c.Writer.Status()
		line := "[HTTP] %s %s %d %s ip=%s trace=%s"
		args := []interface{}{c.Request.Method, path, status, time.Since(start), c.ClientIP(), traceID}

		switch {
		case status >= http.StatusInternalServerError:
			if len(c.Errors) > 0 {
				line += " err=%s"
				args = append(args, c.Errors.String())
			}
			rl.logger.Warn(line, args...)
		case quietPaths[path]:
			rl.logger.Debug(line, args...)
		default:
			rl.logger.Info(line, args...)
		}
	}
}
