package worker

import (
	"context"
	"fitclub/pkg/logger"
	"time"

	"go.uber.org/zap"
)

// TokenStore 清理过期入场码所需的存储能力
type TokenStore interface {
	DeleteStaleTokens(ctx context.Context, before time.Time) (int64, error)
}

// SweepRecorder 清理结果上报
type SweepRecorder interface {
	RecordTokensSwept(n int64)
}

// Sweeper 定期删除过期或作废且未使用的入场码。
// 只做清理，入场时总会重新检查过期时间。
type Sweeper struct {
	store     TokenStore
	recorder  SweepRecorder
	interval  time.Duration
	retention time.Duration // 过期后保留多久再删除，便于排查扫码问题
	now       func() time.Time
}

func NewSweeper(store TokenStore, recorder SweepRecorder, interval, retention time.Duration) *Sweeper {
	return &Sweeper{
		store:     store,
		recorder:  recorder,
		interval:  interval,
		retention: retention,
		now:       time.Now,
	}
}

// Run 按周期执行清理，直到 ctx 被取消。单次失败只记录日志，下个周期重试。
func (s *Sweeper) Run(ctx context.Context) error {
	if s.interval <= 0 {
		logger.L().Info("token sweeper disabled")
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger.L().Info("token sweeper started",
		zap.Duration("interval", s.interval),
		zap.Duration("retention", s.retention),
	)
	for {
		select {
		case <-ctx.Done():
			logger.L().Info("token sweeper stopped")
			return nil
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				logger.L().Error("token sweep failed", zap.Error(err))
			}
		}
	}
}

// SweepOnce 执行一次清理，返回删除的数量
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	before := s.now().Add(-s.retention)
	n, err := s.store.DeleteStaleTokens(ctx, before)
	if err != nil {
		return 0, err
	}
	if s.recorder != nil {
		s.recorder.RecordTokensSwept(n)
	}
	if n > 0 {
		logger.L().Info("stale check-in tokens deleted", zap.Int64("count", n), zap.Time("before", before))
	}
	return n, nil
}
