package database

import (
	"context"
	"database/sql"
	"time"
)

// StatsSource 提供连接池统计，*sql.DB 满足该接口
type StatsSource interface {
	Stats() sql.DBStats
}

// StatsRecorder 接收连接池统计
type StatsRecorder interface {
	UpdateDBStats(stats sql.DBStats)
}

// PoolMonitor 定期把连接池统计写入指标
type PoolMonitor struct {
	source   StatsSource
	recorder StatsRecorder
	interval time.Duration
}

func NewPoolMonitor(source StatsSource, recorder StatsRecorder, interval time.Duration) *PoolMonitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &PoolMonitor{source: source, recorder: recorder, interval: interval}
}

// Run 阻塞直到 ctx 取消
func (m *PoolMonitor) Run(ctx context.Context) error {
	m.collect()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.collect()
		}
	}
}

func (m *PoolMonitor) collect() {
	m.recorder.UpdateDBStats(m.source.Stats())
}
