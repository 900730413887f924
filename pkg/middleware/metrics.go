package middleware

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 認証ゲートの結果を表すラベル値。
const (
	authOutcomeAdmitted = "admitted"
	authOutcomeMissing  = "missing_credential"
	authOutcomeInvalid  = "invalid_credential"
)

// Metrics はHTTPリクエストと認証ゲートの結果を集計するPrometheusメトリクス。
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	auth     *prometheus.CounterVec
}

// NewMetrics はメトリクスを生成してregに登録する。
func NewMetrics(reg prometheus.Registerer, service string) *Metrics {
	factory := promauto.With(reg)
	constLabels := prometheus.Labels{"service": service}

	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "authgate",
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests.",
			ConstLabels: constLabels,
		}, []string{"method", "route", "code"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "authgate",
			Name:        "http_request_duration_seconds",
			Help:        "Duration of HTTP requests.",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"method", "route"}),
		auth: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "authgate",
			Name:        "auth_decisions_total",
			Help:        "Authentication gate decisions by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
	}
}

// Handler はメトリクスを記録するGinミドルウェアを返す。
// 認証ゲートの結果はc.Errorsとコンテキストのユーザーから判定する。
func (m *Metrics) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.duration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()

		if outcome, ok := authOutcome(c); ok {
			m.auth.WithLabelValues(outcome).Inc()
		}
	}
}

// authOutcome は認証ゲートを通過したリクエストの結果を返す。
// ゲートが適用されていないルートではfalseを返す。
func authOutcome(c *gin.Context) (string, bool) {
	for _, e := range c.Errors {
		switch {
		case errors.Is(e.Err, ErrMissingCredential):
			return authOutcomeMissing, true
		case errors.Is(e.Err, ErrInvalidCredential):
			return authOutcomeInvalid, true
		}
	}
	if _, ok := GetUser(c); ok {
		return authOutcomeAdmitted, true
	}
	return "", false
}
