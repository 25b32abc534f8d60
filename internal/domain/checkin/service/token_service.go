package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
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

const (
	tokenBytes          = 32
	maxCollisionRetries = 3
)

// Peek 的拒绝原因，入场码自身的问题之外其余取 entitlement.Status
const (
	ReasonInvalid         = "invalid"
	ReasonExpired         = "expired"
	ReasonAlreadyConsumed = "already_consumed"
)

// TokenOptions 入场码有效期与刷新冷却时间
type TokenOptions struct {
	TTL             time.Duration
	RefreshCooldown time.Duration
}

// IssueResult 签发结果，Reused 表示冷却期内返回了上一个码
type IssueResult struct {
	Token      *model.CheckInToken `json:"-"`
	Value      string              `json:"token"`
	ExpiresAt  time.Time           `json:"expiresAt"`
	ExpiresIn  int                 `json:"expiresIn"` // 秒
	Reused     bool                `json:"reused"`
	Membership entitlement.Summary `json:"membership"`
}

// PeekResult 只读预检结果，仅供扫码界面展示，入场以 Consume 为准
type PeekResult struct {
	Valid        bool       `json:"valid"`
	Reason       string     `json:"reason,omitempty"`
	MembershipID string     `json:"membershipId,omitempty"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
}

// TokenService 入场码服务接口
type TokenService interface {
	Issue(ctx context.Context, userID, membershipID string, now time.Time) (*IssueResult, error)
	IssueForActive(ctx context.Context, userID string, now time.Time) (*IssueResult, error)
	Peek(ctx context.Context, value string, now time.Time) (*PeekResult, error)
}

type tokenService struct {
	repo     repository.CheckInRepository
	opts     TokenOptions
	recorder Recorder
	generate func() (string, error)
}

func NewTokenService(repo repository.CheckInRepository, opts TokenOptions, recorder Recorder) TokenService {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &tokenService{
		repo:     repo,
		opts:     opts,
		recorder: recorder,
		generate: generateTokenValue,
	}
}

// generateTokenValue 32 字节随机数，base64url 编码
func generateTokenValue() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Issue 为指定会员卡签发入场码，会员卡必须属于 userID
func (s *tokenService) Issue(ctx context.Context, userID, membershipID string, now time.Time) (*IssueResult, error) {
	return s.issue(ctx, now, func(tx repository.CheckInRepository) (*membershipModel.Membership, error) {
		m, err := tx.GetMembershipForUpdate(ctx, membershipID)
		if err != nil {
			return nil, err
		}
		if m.UserID != userID {
			return nil, membershipRepo.ErrMembershipNotFound
		}
		if err := entitlement.Check(m, now); err != nil {
			return nil, err
		}
		return m, nil
	})
}

// IssueForActive 为会员当前有效的会员卡签发入场码
func (s *tokenService) IssueForActive(ctx context.Context, userID string, now time.Time) (*IssueResult, error) {
	return s.issue(ctx, now, func(tx repository.CheckInRepository) (*membershipModel.Membership, error) {
		list, err := tx.ListMembershipsForUpdate(ctx, userID)
		if err != nil {
			return nil, err
		}
		m := entitlement.SelectActive(list, now)
		if m == nil {
			return nil, entitlement.ErrNoActiveMembership
		}
		return m, nil
	})
}

func (s *tokenService) issue(ctx context.Context, now time.Time, load func(tx repository.CheckInRepository) (*membershipModel.Membership, error)) (*IssueResult, error) {
	var result *IssueResult
	var err error

	for attempt := 1; attempt <= maxCollisionRetries; attempt++ {
		err = s.repo.Transaction(ctx, func(tx repository.CheckInRepository) error {
			// 会员卡行锁保证同一张卡同时只有一个有效码
			m, err := load(tx)
			if err != nil {
				return err
			}
			result, err = s.issueLocked(ctx, tx, m, now)
			return err
		})
		if !errors.Is(err, repository.ErrTokenCollision) {
			break
		}
		logger.L().Warn("check-in token collision, retrying", zap.Int("attempt", attempt))
	}

	if err != nil {
		if reason := entitlement.ReasonOf(err); reason != "" {
			s.recorder.RecordTokenIssue("rejected_" + string(reason))
		}
		return nil, err
	}

	if result.Reused {
		s.recorder.RecordTokenIssue("reused")
	} else {
		s.recorder.RecordTokenIssue("issued")
		logger.L().Info("check-in token issued",
			zap.String("membership_id", result.Token.MembershipID),
			zap.String("user_id", result.Token.UserID),
			zap.Time("expires_at", result.ExpiresAt),
		)
	}
	return result, nil
}

func (s *tokenService) issueLocked(ctx context.Context, tx repository.CheckInRepository, m *membershipModel.Membership, now time.Time) (*IssueResult, error) {
	live, err := tx.FindLiveToken(ctx, m.ID, now)
	if err != nil {
		return nil, err
	}
	// 冷却期内重复请求返回同一个码
	if live != nil && now.Sub(live.IssuedAt) < s.opts.RefreshCooldown {
		return s.result(live, m, now, true), nil
	}

	if _, err := tx.RevokeLiveTokens(ctx, m.ID, now); err != nil {
		return nil, err
	}

	value, err := s.generate()
	if err != nil {
		return nil, err
	}
	token := &model.CheckInToken{
		Value:        value,
		MembershipID: m.ID,
		UserID:       m.UserID,
		IssuedAt:     now,
		ExpiresAt:    now.Add(s.opts.TTL),
	}
	if err := tx.CreateToken(ctx, token); err != nil {
		return nil, err
	}
	return s.result(token, m, now, false), nil
}

func (s *tokenService) result(token *model.CheckInToken, m *membershipModel.Membership, now time.Time, reused bool) *IssueResult {
	return &IssueResult{
		Token:      token,
		Value:      token.Value,
		ExpiresAt:  token.ExpiresAt,
		ExpiresIn:  int(token.ExpiresAt.Sub(now).Seconds()),
		Reused:     reused,
		Membership: entitlement.Summarize(m, now),
	}
}

// Peek 只读检查，不加锁也不修改任何状态
func (s *tokenService) Peek(ctx context.Context, value string, now time.Time) (*PeekResult, error) {
	token, err := s.repo.GetToken(ctx, value)
	if errors.Is(err, repository.ErrTokenNotFound) {
		return &PeekResult{Reason: ReasonInvalid}, nil
	}
	if err != nil {
		return nil, err
	}

	res := &PeekResult{MembershipID: token.MembershipID, ExpiresAt: &token.ExpiresAt}
	switch {
	case token.RevokedAt != nil:
		res.Reason = ReasonInvalid
		return res, nil
	case token.ConsumedAt != nil:
		res.Reason = ReasonAlreadyConsumed
		return res, nil
	case !now.Before(token.ExpiresAt):
		res.Reason = ReasonExpired
		return res, nil
	}

	m, err := s.repo.GetMembership(ctx, token.MembershipID)
	if errors.Is(err, membershipRepo.ErrMembershipNotFound) {
		res.Reason = ReasonInvalid
		return res, nil
	}
	if err != nil {
		return nil, err
	}
	if status := entitlement.EffectiveStatus(m, now); status != entitlement.Active {
		res.Reason = string(status)
		return res, nil
	}

	res.Valid = true
	return res, nil
}
