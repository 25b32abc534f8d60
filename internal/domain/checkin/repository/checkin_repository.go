package repository

import (
	"context"
	"errors"
	"fitclub/internal/domain/checkin/model"
	membershipModel "fitclub/internal/domain/membership/model"
	membershipRepo "fitclub/internal/domain/membership/repository"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrTokenNotFound = errors.New("check-in token not found")

	// ErrTokenNotConsumable 条件更新未命中：码已被使用、已作废或已过期
	ErrTokenNotConsumable = errors.New("check-in token is no longer consumable")

	// ErrQuotaGuard 条件自增未命中：次数已满或会员卡不是 active
	ErrQuotaGuard = errors.New("membership quota guard rejected increment")

	// ErrTokenCollision 入场码主键冲突
	ErrTokenCollision = errors.New("check-in token value collision")
)

const uniqueViolation = "23505"

// CheckInRepository 入场码与入场记录仓库。
// memberships.used_visits 只在这里通过 IncrementUsedVisits 修改。
type CheckInRepository interface {
	// Transaction 在同一个数据库事务中执行 fn，fn 返回错误时回滚
	Transaction(ctx context.Context, fn func(tx CheckInRepository) error) error

	CreateToken(ctx context.Context, token *model.CheckInToken) error
	GetToken(ctx context.Context, value string) (*model.CheckInToken, error)
	GetTokenForUpdate(ctx context.Context, value string) (*model.CheckInToken, error)
	FindLiveToken(ctx context.Context, membershipID string, now time.Time) (*model.CheckInToken, error)
	RevokeLiveTokens(ctx context.Context, membershipID string, now time.Time) (int64, error)
	MarkTokenConsumed(ctx context.Context, value string, now time.Time) error
	DeleteStaleTokens(ctx context.Context, before time.Time) (int64, error)

	GetMembership(ctx context.Context, id string) (*membershipModel.Membership, error)
	GetMembershipForUpdate(ctx context.Context, id string) (*membershipModel.Membership, error)
	ListMembershipsForUpdate(ctx context.Context, userID string) ([]membershipModel.Membership, error)
	IncrementUsedVisits(ctx context.Context, membershipID string, now time.Time) error

	CreateVisit(ctx context.Context, visit *model.Visit) error
	ListVisitsByUser(ctx context.Context, userID string, offset, limit int) ([]model.Visit, int64, error)
	ListVisitsByMembership(ctx context.Context, membershipID string, offset, limit int) ([]model.Visit, int64, error)
}

type checkInRepository struct {
	db *gorm.DB
}

func NewCheckInRepository(db *gorm.DB) CheckInRepository {
	return &checkInRepository{db: db}
}

func (r *checkInRepository) Transaction(ctx context.Context, fn func(tx CheckInRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&checkInRepository{db: tx})
	})
}

func (r *checkInRepository) CreateToken(ctx context.Context, token *model.CheckInToken) error {
	err := r.db.WithContext(ctx).Create(token).Error
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrTokenCollision
	}
	return err
}

func (r *checkInRepository) GetToken(ctx context.Context, value string) (*model.CheckInToken, error) {
	return r.findToken(r.db.WithContext(ctx), value)
}

// GetTokenForUpdate 行锁读取，同一个码的并发扫码在这里排队
func (r *checkInRepository) GetTokenForUpdate(ctx context.Context, value string) (*model.CheckInToken, error) {
	return r.findToken(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), value)
}

func (r *checkInRepository) findToken(db *gorm.DB, value string) (*model.CheckInToken, error) {
	var token model.CheckInToken
	if err := db.Where("value = ?", value).Take(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	return &token, nil
}

// FindLiveToken 返回会员卡当前有效的入场码，没有时返回 nil
func (r *checkInRepository) FindLiveToken(ctx context.Context, membershipID string, now time.Time) (*model.CheckInToken, error) {
	var token model.CheckInToken
	err := r.db.WithContext(ctx).
		Where("membership_id = ? AND consumed_at IS NULL AND revoked_at IS NULL AND expires_at > ?", membershipID, now).
		Order("expires_at DESC").
		Take(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// RevokeLiveTokens 作废会员卡名下所有未使用的码
func (r *checkInRepository) RevokeLiveTokens(ctx context.Context, membershipID string, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.CheckInToken{}).
		Where("membership_id = ? AND consumed_at IS NULL AND revoked_at IS NULL", membershipID).
		Update("revoked_at", now)
	return result.RowsAffected, result.Error
}

// MarkTokenConsumed 条件更新，只有未使用、未作废且未过期的码才能被标记
func (r *checkInRepository) MarkTokenConsumed(ctx context.Context, value string, now time.Time) error {
	result := r.db.WithContext(ctx).Model(&model.CheckInToken{}).
		Where("value = ? AND consumed_at IS NULL AND revoked_at IS NULL AND expires_at > ?", value, now).
		Update("consumed_at", now)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTokenNotConsumable
	}
	return nil
}

// DeleteStaleTokens 删除 before 之前过期或作废且未使用的码，已使用的码保留给入场记录
func (r *checkInRepository) DeleteStaleTokens(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("consumed_at IS NULL AND (expires_at < ? OR revoked_at < ?)", before, before).
		Delete(&model.CheckInToken{})
	return result.RowsAffected, result.Error
}

func (r *checkInRepository) GetMembership(ctx context.Context, id string) (*membershipModel.Membership, error) {
	return r.findMembership(r.db.WithContext(ctx), id)
}

func (r *checkInRepository) GetMembershipForUpdate(ctx context.Context, id string) (*membershipModel.Membership, error) {
	return r.findMembership(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *checkInRepository) findMembership(db *gorm.DB, id string) (*membershipModel.Membership, error) {
	var m membershipModel.Membership
	if err := db.Where("id = ?", id).Take(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, membershipRepo.ErrMembershipNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *checkInRepository) ListMembershipsForUpdate(ctx context.Context, userID string) ([]membershipModel.Membership, error) {
	var list []membershipModel.Membership
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		Order("end_date ASC").
		Find(&list).Error
	return list, err
}

// IncrementUsedVisits 受保护的自增：次数未满且状态为 active 时才 +1
func (r *checkInRepository) IncrementUsedVisits(ctx context.Context, membershipID string, now time.Time) error {
	result := r.db.WithContext(ctx).Model(&membershipModel.Membership{}).
		Where("id = ? AND status = ? AND (max_visits IS NULL OR used_visits < max_visits)", membershipID, membershipModel.StatusActive).
		Updates(map[string]interface{}{
			"used_visits": gorm.Expr("used_visits + 1"),
			"updated_at":  now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrQuotaGuard
	}
	return nil
}

func (r *checkInRepository) CreateVisit(ctx context.Context, visit *model.Visit) error {
	return r.db.WithContext(ctx).Create(visit).Error
}

func (r *checkInRepository) ListVisitsByUser(ctx context.Context, userID string, offset, limit int) ([]model.Visit, int64, error) {
	return r.listVisits(ctx, "user_id = ?", userID, offset, limit)
}

func (r *checkInRepository) ListVisitsByMembership(ctx context.Context, membershipID string, offset, limit int) ([]model.Visit, int64, error) {
	return r.listVisits(ctx, "membership_id = ?", membershipID, offset, limit)
}

func (r *checkInRepository) listVisits(ctx context.Context, cond string, arg string, offset, limit int) ([]model.Visit, int64, error) {
	var visits []model.Visit
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Visit{}).Where(cond, arg)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Order("visited_at DESC").Offset(offset).Limit(limit).Find(&visits).Error; err != nil {
		return nil, 0, err
	}
	return visits, total, nil
}
