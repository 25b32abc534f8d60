package service

import "context"

// Recorder 入场相关指标上报，由 metrics 包实现
type Recorder interface {
	RecordCheckIn(method, outcome string)
	RecordTokenIssue(result string)
}

type nopRecorder struct{}

func (nopRecorder) RecordCheckIn(string, string) {}
func (nopRecorder) RecordTokenIssue(string)      {}

// CacheInvalidator 入场成功后清理会员卡缓存
type CacheInvalidator interface {
	Invalidate(ctx context.Context, membershipID, userID string)
}
