package service

import (
	"context"
	"errors"
	"fitclub/internal/domain/checkin/model"
	"fitclub/internal/domain/checkin/repository"
	"fitclub/internal/domain/membership/entitlement"
	membershipModel "fitclub/internal/domain/membership/model"
	membershipRepo "fitclub/internal/domain/membership/repository"
	"fitclub/pkg/logger"
	"time"

	"go.uber.org/zap"
)

// ManualInput 人工登记参数，MembershipID 为空时使用当前有效的会员卡
type ManualInput struct {
	UserID       string
	MembershipID string
	Notes        string
	Method       model.Method
	StaffID      string
}

// CheckInResult 入场成功后的记录与最新的会员卡概览
type CheckInResult struct {
	Visit      *model.Visit        `json:"visit"`
	Membership entitlement.Summary `json:"membership"`
}

// Ledger 入场流水：核销入场码、人工登记、查询入场记录
type Ledger interface {
	Consume(ctx context.Context, value string, now time.Time, method model.Method, staffID string) (*CheckInResult, error)
	CreateManual(ctx context.Context, input ManualInput, now time.Time) (*CheckInResult, error)
	ListVisitsByUser(ctx context.Context, userID string, page, limit int) ([]model.Visit, int64, error)
	ListVisitsByMembership(ctx context.Context, membershipID string, page, limit int) ([]model.Visit, int64, error)
}

type ledger struct {
	repo     repository.CheckInRepository
	cache    CacheInvalidator
	recorder Recorder
}

func NewLedger(repo repository.CheckInRepository, cache CacheInvalidator, recorder Recorder) Ledger {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &ledger{repo: repo, cache: cache, recorder: recorder}
}

// Consume 在一个事务内完成校验、核销、扣次和写入记录。
// 加锁顺序固定为先会员卡后入场码，和签发入场码一致，避免两条路径互相等待。
func (l *ledger) Consume(ctx context.Context, value string, now time.Time, method model.Method, staffID string) (*CheckInResult, error) {
	if !method.Valid() {
		return nil, ErrInvalidMethod
	}

	var result *CheckInResult
	err := l.repo.Transaction(ctx, func(tx repository.CheckInRepository) error {
		// 不加锁读一次，只为拿到会员卡 ID
		peeked, err := tx.GetToken(ctx, value)
		if errors.Is(err, repository.ErrTokenNotFound) {
			return ErrTokenInvalid
		}
		if err != nil {
			return err
		}

		m, err := tx.GetMembershipForUpdate(ctx, peeked.MembershipID)
		if errors.Is(err, membershipRepo.ErrMembershipNotFound) {
			return ErrTokenInvalid
		}
		if err != nil {
			return err
		}

		// 持有会员卡锁后再锁码，并以这次读取的状态为准
		token, err := tx.GetTokenForUpdate(ctx, value)
		if errors.Is(err, repository.ErrTokenNotFound) {
			return ErrTokenInvalid
		}
		if err != nil {
			return err
		}
		if err := checkToken(token, now); err != nil {
			return err
		}
		if err := entitlement.Check(m, now); err != nil {
			return err
		}

		if err := tx.MarkTokenConsumed(ctx, token.Value, now); err != nil {
			if errors.Is(err, repository.ErrTokenNotConsumable) {
				return ErrTokenAlreadyConsumed
			}
			return err
		}

		tokenValue := token.Value
		result, err = l.recordVisit(ctx, tx, m, &model.Visit{
			Method:     method,
			TokenValue: &tokenValue,
			StaffID:    staffID,
		}, now)
		return err
	})

	return l.finish(ctx, result, method, err)
}

func checkToken(token *model.CheckInToken, now time.Time) error {
	switch {
	case token.RevokedAt != nil:
		return ErrTokenInvalid
	case token.ConsumedAt != nil:
		return ErrTokenAlreadyConsumed
	case !now.Before(token.ExpiresAt):
		return ErrTokenExpired
	}
	return nil
}

// CreateManual 不经过入场码，但和扫码走同一个受保护的扣次逻辑
func (l *ledger) CreateManual(ctx context.Context, input ManualInput, now time.Time) (*CheckInResult, error) {
	if input.Method != model.MethodManual && input.Method != model.MethodAdminOverride {
		return nil, ErrInvalidMethod
	}

	var result *CheckInResult
	err := l.repo.Transaction(ctx, func(tx repository.CheckInRepository) error {
		m, err := l.lockManualTarget(ctx, tx, input, now)
		if err != nil {
			return err
		}
		if err := entitlement.Check(m, now); err != nil {
			return err
		}

		result, err = l.recordVisit(ctx, tx, m, &model.Visit{
			Method:  input.Method,
			StaffID: input.StaffID,
			Notes:   input.Notes,
		}, now)
		return err
	})

	return l.finish(ctx, result, input.Method, err)
}

// lockManualTarget 锁定人工登记的目标会员卡，找不到或不属于该会员时视为没有可用会员卡
func (l *ledger) lockManualTarget(ctx context.Context, tx repository.CheckInRepository, input ManualInput, now time.Time) (*membershipModel.Membership, error) {
	if input.MembershipID == "" {
		list, err := tx.ListMembershipsForUpdate(ctx, input.UserID)
		if err != nil {
			return nil, err
		}
		m := entitlement.SelectActive(list, now)
		if m == nil {
			return nil, entitlement.ErrNoActiveMembership
		}
		return m, nil
	}

	m, err := tx.GetMembershipForUpdate(ctx, input.MembershipID)
	if errors.Is(err, membershipRepo.ErrMembershipNotFound) {
		return nil, entitlement.ErrNoActiveMembership
	}
	if err != nil {
		return nil, err
	}
	if m.UserID != input.UserID {
		return nil, entitlement.ErrNoActiveMembership
	}
	return m, nil
}

// recordVisit 受保护的扣次加写入入场记录，扫码和人工登记共用
func (l *ledger) recordVisit(ctx context.Context, tx repository.CheckInRepository, m *membershipModel.Membership, visit *model.Visit, now time.Time) (*CheckInResult, error) {
	if err := tx.IncrementUsedVisits(ctx, m.ID, now); err != nil {
		if errors.Is(err, repository.ErrQuotaGuard) {
			return nil, &entitlement.NotEntitledError{Reason: entitlement.QuotaExhausted}
		}
		return nil, err
	}

	visit.MembershipID = m.ID
	visit.UserID = m.UserID
	visit.VisitedAt = now
	if err := tx.CreateVisit(ctx, visit); err != nil {
		return nil, err
	}

	updated := *m
	updated.UsedVisits++
	return &CheckInResult{Visit: visit, Membership: entitlement.Summarize(&updated, now)}, nil
}

func (l *ledger) finish(ctx context.Context, result *CheckInResult, method model.Method, err error) (*CheckInResult, error) {
	if err != nil {
		l.recorder.RecordCheckIn(string(method), outcomeOf(err))
		return nil, err
	}

	visit := result.Visit
	if l.cache != nil {
		l.cache.Invalidate(ctx, visit.MembershipID, visit.UserID)
	}
	l.recorder.RecordCheckIn(string(method), "success")
	logger.L().Info("check-in recorded",
		zap.String("visit_id", visit.ID),
		zap.String("membership_id", visit.MembershipID),
		zap.String("user_id", visit.UserID),
		zap.String("method", string(method)),
		zap.String("staff_id", visit.StaffID),
	)
	return result, nil
}

// outcomeOf 把错误归类为指标标签
func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrTokenInvalid):
		return "token_invalid"
	case errors.Is(err, ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, ErrTokenAlreadyConsumed):
		return "token_consumed"
	case errors.Is(err, entitlement.ErrNoActiveMembership):
		return "no_active_membership"
	}
	if reason := entitlement.ReasonOf(err); reason != "" {
		return "not_entitled_" + string(reason)
	}
	return "error"
}

func (l *ledger) ListVisitsByUser(ctx context.Context, userID string, page, limit int) ([]model.Visit, int64, error) {
	offset := (page - 1) * limit
	return l.repo.ListVisitsByUser(ctx, userID, offset, limit)
}

func (l *ledger) ListVisitsByMembership(ctx context.Context, membershipID string, page, limit int) ([]model.Visit, int64, error) {
	offset := (page - 1) * limit
	return l.repo.ListVisitsByMembership(ctx, membershipID, offset, limit)
}
