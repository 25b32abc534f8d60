package repository

import (
	"context"
	"errors"
	"fitclub/internal/domain/member/model"

	"gorm.io/gorm"
)

var ErrMemberNotFound = errors.New("member not found")

// MemberRepository 接口定义
type MemberRepository interface {
	Create(ctx context.Context, member *model.Member) error
	GetByID(ctx context.Context, id string) (*model.Member, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*model.Member, error)
	GetList(ctx context.Context, offset, limit int) ([]model.Member, int64, error)
	Update(ctx context.Context, member *model.Member) error
	UpdateRole(ctx context.Context, id string, role int) error
}

type memberRepository struct {
	db *gorm.DB
}

// NewMemberRepository 创建新的仓库实例
func NewMemberRepository(db *gorm.DB) MemberRepository {
	return &memberRepository{db: db}
}

func (r *memberRepository) Create(ctx context.Context, member *model.Member) error {
	return r.db.WithContext(ctx).Create(member).Error
}

func (r *memberRepository) GetByID(ctx context.Context, id string) (*model.Member, error) {
	var member model.Member
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return &member, nil
}

func (r *memberRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*model.Member, error) {
	var member model.Member
	if err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return &member, nil
}

// GetList 获取会员列表（分页）
func (r *memberRepository) GetList(ctx context.Context, offset, limit int) ([]model.Member, int64, error) {
	var members []model.Member
	var total int64

	db := r.db.WithContext(ctx)
	if err := db.Model(&model.Member{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&members).Error; err != nil {
		return nil, 0, err
	}
	return members, total, nil
}

func (r *memberRepository) Update(ctx context.Context, member *model.Member) error {
	return r.db.WithContext(ctx).Save(member).Error
}

func (r *memberRepository) UpdateRole(ctx context.Context, id string, role int) error {
	result := r.db.WithContext(ctx).Model(&model.Member{}).Where("id = ?", id).Update("role", role)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMemberNotFound
	}
	return nil
}
