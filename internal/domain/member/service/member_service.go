package service

import (
	"context"
	"errors"
	"fitclub/internal/domain/member/model"
	"fitclub/internal/domain/member/repository"
	"fitclub/internal/pkg/telegram"
	"fitclub/pkg/logger"
	"fitclub/pkg/utils"
	"fmt"

	"go.uber.org/zap"
)

var (
	ErrMemberBanned = errors.New("account is banned")
	ErrInvalidRole  = errors.New("invalid role")
)

// InitDataVerifier 校验 Telegram 登录数据
type InitDataVerifier interface {
	Verify(fields map[string]string) (*telegram.InitData, error)
}

// LoginResult 登录结果
type LoginResult struct {
	Token  string        `json:"token"`
	Member *model.Member `json:"member"`
}

// MemberService 会员账号服务接口
type MemberService interface {
	LoginWithTelegram(ctx context.Context, fields map[string]string) (*LoginResult, error)
	GetMember(ctx context.Context, id string) (*model.Member, error)
	GetMembers(ctx context.Context, page, limit int) ([]model.Member, int64, error)
	UpdateRole(ctx context.Context, id string, role int) error
}

type memberService struct {
	repo     repository.MemberRepository
	verifier InitDataVerifier
}

// NewMemberService 创建会员服务
func NewMemberService(repo repository.MemberRepository, verifier InitDataVerifier) MemberService {
	return &memberService{repo: repo, verifier: verifier}
}

// LoginWithTelegram 校验 initData，不存在则注册，返回 JWT
func (s *memberService) LoginWithTelegram(ctx context.Context, fields map[string]string) (*LoginResult, error) {
	// 1. 校验签名
	data, err := s.verifier.Verify(fields)
	if err != nil {
		return nil, err
	}

	// 2. 查询会员是否存在
	member, err := s.repo.GetByTelegramID(ctx, data.User.ID)
	switch {
	case errors.Is(err, repository.ErrMemberNotFound):
		// 3. 不存在则注册
		member = &model.Member{
			TelegramID: data.User.ID,
			FirstName:  data.User.FirstName,
			LastName:   data.User.LastName,
			Username:   data.User.Username,
			PhotoURL:   data.User.PhotoURL,
			Role:       model.RoleMember,
			Status:     model.StatusNormal,
		}
		if err := s.repo.Create(ctx, member); err != nil {
			return nil, fmt.Errorf("create member: %w", err)
		}
		logger.L().Info("member registered", zap.String("member_id", member.ID), zap.Int64("telegram_id", member.TelegramID))
	case err != nil:
		return nil, err
	default:
		// 资料以 Telegram 最新数据为准
		if member.FirstName != data.User.FirstName || member.LastName != data.User.LastName ||
			member.Username != data.User.Username || member.PhotoURL != data.User.PhotoURL {
			member.FirstName = data.User.FirstName
			member.LastName = data.User.LastName
			member.Username = data.User.Username
			member.PhotoURL = data.User.PhotoURL
			if err := s.repo.Update(ctx, member); err != nil {
				return nil, fmt.Errorf("update member profile: %w", err)
			}
		}
	}

	// 4. 检查账号状态
	if member.Status == model.StatusBanned {
		return nil, ErrMemberBanned
	}

	// 5. 生成 Token
	token, _, err := utils.GenerateToken(member.ID, member.Role)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, Member: member}, nil
}

func (s *memberService) GetMember(ctx context.Context, id string) (*model.Member, error) {
	return s.repo.GetByID(ctx, id)
}

// GetMembers 获取会员列表（分页）
func (s *memberService) GetMembers(ctx context.Context, page, limit int) ([]model.Member, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}
	offset := (page - 1) * limit
	return s.repo.GetList(ctx, offset, limit)
}

func (s *memberService) UpdateRole(ctx context.Context, id string, role int) error {
	if !model.ValidRole(role) {
		return ErrInvalidRole
	}
	return s.repo.UpdateRole(ctx, id, role)
}
