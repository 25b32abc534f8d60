package metrics

import (
	"database/sql"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector 指标收集器
type MetricsCollector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 数据库连接池指标
	dbConnectionsOpen  prometheus.Gauge
	dbConnectionsInUse prometheus.Gauge
	dbConnectionsIdle  prometheus.Gauge
	dbWaitCount        prometheus.Gauge

	// 入场指标
	checkInsTotal    *prometheus.CounterVec
	tokenIssuesTotal *prometheus.CounterVec
	tokensSwept      prometheus.Counter
}

// NewMetricsCollector 在 reg 上注册全部指标，测试中可传入独立的 Registry
func NewMetricsCollector(reg prometheus.Registerer) *MetricsCollector {
	factory := promauto.With(reg)

	return &MetricsCollector{
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		dbConnectionsOpen: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "db_connections_open",
				Help: "Number of open database connections",
			},
		),

		dbConnectionsInUse: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "db_connections_in_use",
				Help: "Number of database connections in use",
			},
		),

		dbConnectionsIdle: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "db_connections_idle",
				Help: "Number of idle database connections",
			},
		),

		dbWaitCount: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "db_connections_wait_count",
				Help: "Total number of connections waited for",
			},
		),

		checkInsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkins_total",
				Help: "Check-in attempts by method and outcome",
			},
			[]string{"method", "outcome"},
		),

		tokenIssuesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkin_token_issues_total",
				Help: "Check-in token requests by result",
			},
			[]string{"result"},
		),

		tokensSwept: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "checkin_tokens_swept_total",
				Help: "Stale check-in tokens deleted by the sweeper",
			},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *MetricsCollector) RecordHTTPRequest(method, endpoint string, status int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, getStatusCategory(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordCheckIn 记录一次入场尝试
func (m *MetricsCollector) RecordCheckIn(method, outcome string) {
	m.checkInsTotal.WithLabelValues(method, outcome).Inc()
}

// RecordTokenIssue 记录入场码签发结果
func (m *MetricsCollector) RecordTokenIssue(result string) {
	m.tokenIssuesTotal.WithLabelValues(result).Inc()
}

// RecordTokensSwept 记录清理掉的过期码数量
func (m *MetricsCollector) RecordTokensSwept(n int64) {
	m.tokensSwept.Add(float64(n))
}

// UpdateDBStats 更新数据库连接池指标
func (m *MetricsCollector) UpdateDBStats(stats sql.DBStats) {
	m.dbConnectionsOpen.Set(float64(stats.OpenConnections))
	m.dbConnectionsInUse.Set(float64(stats.InUse))
	m.dbConnectionsIdle.Set(float64(stats.Idle))
	m.dbWaitCount.Set(float64(stats.WaitCount))
}

// getStatusCategory 获取状态分类
func getStatusCategory(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return strconv.Itoa(status)
	}
}

var (
	globalCollector *MetricsCollector
	globalOnce      sync.Once
)

// GetGlobalCollector 获取注册在默认 Registry 上的全局收集器
func GetGlobalCollector() *MetricsCollector {
	globalOnce.Do(func() {
		globalCollector = NewMetricsCollector(prometheus.DefaultRegisterer)
	})
	return globalCollector
}
