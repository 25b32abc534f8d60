package model

import (
	baseModel "fitclub/pkg/model"
	"time"
)

// Status 管理员设置的会员卡状态，只表达管理意图，
// 过期、次数用尽等派生状态由 entitlement 包计算
type Status string

const (
	StatusActive    Status = "active"
	StatusFrozen    Status = "frozen"
	StatusCancelled Status = "cancelled"
)

// Membership 会员卡：有效期 [StartDate, EndDate]，可选次数上限
type Membership struct {
	baseModel.BaseModel
	UserID     string    `gorm:"type:uuid;index;not null" json:"userId"`
	TariffID   string    `gorm:"type:varchar(64);not null" json:"tariffId"`
	PaymentID  string    `gorm:"type:varchar(64);uniqueIndex" json:"paymentId"`
	StartDate  time.Time `gorm:"not null" json:"startDate"`
	EndDate    time.Time `gorm:"not null" json:"endDate"`
	MaxVisits  *int      `json:"maxVisits"` // nil 表示不限次数
	UsedVisits int       `gorm:"not null;default:0" json:"usedVisits"`
	Status     Status    `gorm:"type:varchar(16);not null;default:'active'" json:"status"`
}

func (Membership) TableName() string {
	return "memberships"
}
