package repository

import (
	"context"
	"errors"
	"fitclub/internal/domain/membership/model"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrMembershipNotFound = errors.New("membership not found")
	ErrInvalidTransition  = errors.New("membership status transition not allowed")

	// ErrDuplicatePayment 同一笔支付只能开一张卡
	ErrDuplicatePayment = errors.New("membership for this payment already exists")
)

// MembershipRepository 会员卡仓库。
// 注意：used_visits 只能由入场流水里的受保护自增修改，这里不提供写入口。
type MembershipRepository interface {
	Create(ctx context.Context, m *model.Membership) error
	GetByID(ctx context.Context, id string) (*model.Membership, error)
	ListByUser(ctx context.Context, userID string) ([]model.Membership, error)
	TransitionStatus(ctx context.Context, id string, from []model.Status, to model.Status) error
}

type membershipRepository struct {
	db *gorm.DB
}

func NewMembershipRepository(db *gorm.DB) MembershipRepository {
	return &membershipRepository{db: db}
}

func (r *membershipRepository) Create(ctx context.Context, m *model.Membership) error {
	err := r.db.WithContext(ctx).Create(m).Error
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicatePayment
	}
	return err
}

func (r *membershipRepository) GetByID(ctx context.Context, id string) (*model.Membership, error) {
	var m model.Membership
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMembershipNotFound
		}
		return nil, err
	}
	return &m, nil
}

// ListByUser 按到期时间升序返回会员的全部会员卡
func (r *membershipRepository) ListByUser(ctx context.Context, userID string) ([]model.Membership, error) {
	var list []model.Membership
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("end_date ASC").
		Find(&list).Error
	return list, err
}

// TransitionStatus 条件更新状态，只有当前状态在 from 中时才生效
func (r *membershipRepository) TransitionStatus(ctx context.Context, id string, from []model.Status, to model.Status) error {
	result := r.db.WithContext(ctx).Model(&model.Membership{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// 区分不存在和状态不允许
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrInvalidTransition
}
