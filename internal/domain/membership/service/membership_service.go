package service

import (
	"context"
	"errors"
	"fitclub/internal/domain/membership/entitlement"
	"fitclub/internal/domain/membership/model"
	"fitclub/internal/domain/membership/repository"
	"fitclub/pkg/cache"
	"fitclub/pkg/logger"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var (
	ErrInvalidPeriod = errors.New("end date must not be before start date")
	ErrInvalidQuota  = errors.New("max visits must not be negative")
)

// 缓存键常量。只缓存原始记录，实际状态每次读取时重新计算。
const (
	membershipCacheKeyPrefix     = "membership:"
	userMembershipCacheKeyPrefix = "membership:user:"
	membershipCacheTTL           = 10 * time.Minute
)

// CreateInput 支付确认后开卡的参数，日期按天计算，两端都包含
type CreateInput struct {
	UserID    string
	TariffID  string
	PaymentID string
	StartDate time.Time
	EndDate   time.Time
	MaxVisits *int
}

// MembershipService 会员卡服务接口
type MembershipService interface {
	Create(ctx context.Context, input CreateInput) (*model.Membership, error)
	GetByID(ctx context.Context, id string) (*model.Membership, error)
	ListByUser(ctx context.Context, userID string) ([]model.Membership, error)
	GetActive(ctx context.Context, userID string, now time.Time) (*model.Membership, error)
	Freeze(ctx context.Context, id string) (*model.Membership, error)
	Unfreeze(ctx context.Context, id string) (*model.Membership, error)
	Cancel(ctx context.Context, id string) (*model.Membership, error)
	Invalidate(ctx context.Context, membershipID, userID string)
}

type membershipService struct {
	repo  repository.MembershipRepository
	cache cache.CacheService
	loc   *time.Location
}

// NewMembershipService loc 为俱乐部所在时区，用于把日期换算成当天的起止时刻
func NewMembershipService(repo repository.MembershipRepository, cache cache.CacheService, loc *time.Location) MembershipService {
	if loc == nil {
		loc = time.UTC
	}
	return &membershipService{repo: repo, cache: cache, loc: loc}
}

// DayBounds 返回 start 当天 00:00 与 end 当天最后一刻
func DayBounds(start, end time.Time, loc *time.Location) (time.Time, time.Time) {
	s := start.In(loc)
	e := end.In(loc)
	from := time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, loc)
	to := time.Date(e.Year(), e.Month(), e.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1).Add(-time.Nanosecond)
	return from, to
}

func (s *membershipService) Create(ctx context.Context, input CreateInput) (*model.Membership, error) {
	if input.EndDate.Before(input.StartDate) {
		return nil, ErrInvalidPeriod
	}
	if input.MaxVisits != nil && *input.MaxVisits < 0 {
		return nil, ErrInvalidQuota
	}

	from, to := DayBounds(input.StartDate, input.EndDate, s.loc)
	m := &model.Membership{
		UserID:    input.UserID,
		TariffID:  input.TariffID,
		PaymentID: input.PaymentID,
		StartDate: from,
		EndDate:   to,
		MaxVisits: input.MaxVisits,
		Status:    model.StatusActive,
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("create membership: %w", err)
	}

	s.Invalidate(ctx, m.ID, m.UserID)
	logger.L().Info("membership created",
		zap.String("membership_id", m.ID),
		zap.String("user_id", m.UserID),
		zap.String("payment_id", m.PaymentID),
	)
	return m, nil
}

// GetByID 获取会员卡（带缓存）
func (s *membershipService) GetByID(ctx context.Context, id string) (*model.Membership, error) {
	key := membershipCacheKeyPrefix + id

	var cached model.Membership
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	}

	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, m, membershipCacheTTL); err != nil {
		// 缓存失败不影响业务逻辑，只记录日志
		logger.L().Warn("failed to cache membership", zap.String("membership_id", id), zap.Error(err))
	}
	return m, nil
}

// ListByUser 获取会员名下全部会员卡（带缓存）
func (s *membershipService) ListByUser(ctx context.Context, userID string) ([]model.Membership, error) {
	key := userMembershipCacheKeyPrefix + userID

	var cached []model.Membership
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	}

	list, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, list, membershipCacheTTL); err != nil {
		logger.L().Warn("failed to cache user memberships", zap.String("user_id", userID), zap.Error(err))
	}
	return list, nil
}

// GetActive 返回当前驱动入场的会员卡
func (s *membershipService) GetActive(ctx context.Context, userID string, now time.Time) (*model.Membership, error) {
	list, err := s.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	active := entitlement.SelectActive(list, now)
	if active == nil {
		return nil, entitlement.ErrNoActiveMembership
	}
	return active, nil
}

func (s *membershipService) Freeze(ctx context.Context, id string) (*model.Membership, error) {
	return s.transition(ctx, id, []model.Status{model.StatusActive}, model.StatusFrozen)
}

func (s *membershipService) Unfreeze(ctx context.Context, id string) (*model.Membership, error) {
	return s.transition(ctx, id, []model.Status{model.StatusFrozen}, model.StatusActive)
}

func (s *membershipService) Cancel(ctx context.Context, id string) (*model.Membership, error) {
	return s.transition(ctx, id, []model.Status{model.StatusActive, model.StatusFrozen}, model.StatusCancelled)
}

func (s *membershipService) transition(ctx context.Context, id string, from []model.Status, to model.Status) (*model.Membership, error) {
	if err := s.repo.TransitionStatus(ctx, id, from, to); err != nil {
		return nil, err
	}

	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Invalidate(ctx, m.ID, m.UserID)

	logger.L().Info("membership status changed",
		zap.String("membership_id", m.ID),
		zap.String("status", string(to)),
	)
	return m, nil
}

// Invalidate 清除会员卡相关缓存，入场成功后也需要调用
func (s *membershipService) Invalidate(ctx context.Context, membershipID, userID string) {
	if err := s.cache.Delete(ctx, membershipCacheKeyPrefix+membershipID, userMembershipCacheKeyPrefix+userID); err != nil {
		logger.L().Warn("failed to invalidate membership cache",
			zap.String("membership_id", membershipID),
			zap.Error(err),
		)
	}
}
