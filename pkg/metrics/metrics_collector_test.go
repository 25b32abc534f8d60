package metrics

import (
	"database/sql"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordCheckIn(t *testing.T) {
	c := NewMetricsCollector(prometheus.NewRegistry())

	c.RecordCheckIn("qr", "success")
	c.RecordCheckIn("qr", "success")
	c.RecordCheckIn("qr", "token_consumed")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.checkInsTotal.WithLabelValues("qr", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.checkInsTotal.WithLabelValues("qr", "token_consumed")))
}

func TestRecordTokenIssueAndSweep(t *testing.T) {
	c := NewMetricsCollector(prometheus.NewRegistry())

	c.RecordTokenIssue("issued")
	c.RecordTokenIssue("reused")
	c.RecordTokensSwept(5)
	c.RecordTokensSwept(0)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.tokenIssuesTotal.WithLabelValues("issued")))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.tokensSwept))
}

func TestRecordHTTPRequest(t *testing.T) {
	c := NewMetricsCollector(prometheus.NewRegistry())

	c.RecordHTTPRequest("POST", "/checkins/scan", 200, 20*time.Millisecond)
	c.RecordHTTPRequest("POST", "/checkins/scan", 409, 5*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("POST", "/checkins/scan", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("POST", "/checkins/scan", "4xx")))
}

func TestUpdateDBStats(t *testing.T) {
	c := NewMetricsCollector(prometheus.NewRegistry())

	c.UpdateDBStats(sql.DBStats{OpenConnections: 8, InUse: 3, Idle: 5, WaitCount: 2})

	assert.Equal(t, 8.0, testutil.ToFloat64(c.dbConnectionsOpen))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.dbConnectionsInUse))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.dbConnectionsIdle))
}

func TestStatusCategory(t *testing.T) {
	assert.Equal(t, "2xx", getStatusCategory(201))
	assert.Equal(t, "4xx", getStatusCategory(429))
	assert.Equal(t, "5xx", getStatusCategory(503))
	assert.Equal(t, "0", getStatusCategory(0))
}

func TestGlobalCollectorIsSingleton(t *testing.T) {
	assert.Same(t, GetGlobalCollector(), GetGlobalCollector())
}
