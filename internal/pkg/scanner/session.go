package scanner

import (
	"context"
	"fitclub/pkg/logger"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultCooldown 一次扫码处理完后到重新接收之间的间隔
const DefaultCooldown = 1500 * time.Millisecond

// Consumer 把解码出的入场码提交给服务端核销
type Consumer interface {
	Consume(ctx context.Context, token string) (*Result, error)
}

// Cue 扫码结果提示，例如提示音或闪屏
type Cue interface {
	Success(res *Result)
	Failure(res *Result, err error)
}

// Session 扫码会话。核销请求进行中以及之后的冷却期内暂停接收，期间到达的帧直接丢弃，
// 同一个码被摄像头连续解码多次时只会提交一次。
type Session struct {
	consumer Consumer
	cue      Cue
	cooldown time.Duration
	timeout  time.Duration

	busy    atomic.Bool
	dropped atomic.Int64
	wg      sync.WaitGroup
}

// Options 会话参数，零值使用默认值
type Options struct {
	Cooldown       time.Duration
	RequestTimeout time.Duration
}

func NewSession(consumer Consumer, cue Cue, opts Options) *Session {
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	return &Session{
		consumer: consumer,
		cue:      cue,
		cooldown: opts.Cooldown,
		timeout:  opts.RequestTimeout,
	}
}

// Submit 提交一帧解码结果，不阻塞。会话暂停时丢弃并返回 false
func (s *Session) Submit(ctx context.Context, raw string) bool {
	token := strings.TrimSpace(raw)
	if token == "" {
		return false
	}
	if !s.busy.CompareAndSwap(false, true) {
		s.dropped.Add(1)
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.busy.Store(false)

		s.handle(ctx, token)

		// 无论成功失败都等冷却结束再恢复
		timer := time.NewTimer(s.cooldown)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	}()
	return true
}

func (s *Session) handle(ctx context.Context, token string) {
	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.consumer.Consume(reqCtx, token)
	if err != nil || res == nil || !res.OK() {
		logger.L().Info("scan rejected", zap.Stringer("result", res), zap.Error(err))
		s.cue.Failure(res, err)
		return
	}
	logger.L().Info("scan accepted", zap.Stringer("result", res))
	s.cue.Success(res)
}

// Paused 会话当前是否暂停接收
func (s *Session) Paused() bool {
	return s.busy.Load()
}

// Dropped 暂停期间被丢弃的帧数
func (s *Session) Dropped() int64 {
	return s.dropped.Load()
}

// Wait 等待进行中的核销和冷却结束
func (s *Session) Wait() {
	s.wg.Wait()
}
