package model

import (
	baseModel "fitclub/pkg/model"
	"time"

	"gorm.io/gorm"
)

// Method 入场方式
type Method string

const (
	MethodQR            Method = "qr"
	MethodManual        Method = "manual"
	MethodAdminOverride Method = "admin_override"
)

// Valid 是否为已知的入场方式
func (m Method) Valid() bool {
	return m == MethodQR || m == MethodManual || m == MethodAdminOverride
}

// CheckInToken 短时效、一次性的入场码，value 即二维码内容
type CheckInToken struct {
	Value        string     `gorm:"primaryKey;type:varchar(64)" json:"token"`
	MembershipID string     `gorm:"type:uuid;index;not null" json:"membershipId"`
	UserID       string     `gorm:"type:uuid;not null" json:"userId"`
	IssuedAt     time.Time  `gorm:"not null" json:"issuedAt"`
	ExpiresAt    time.Time  `gorm:"index;not null" json:"expiresAt"`
	ConsumedAt   *time.Time `json:"consumedAt,omitempty"`
	RevokedAt    *time.Time `json:"revokedAt,omitempty"` // 重新签发时作废
}

func (CheckInToken) TableName() string {
	return "check_in_tokens"
}

// Live 未使用、未作废且未过期。过期边界 now == ExpiresAt 视为已过期。
func (t *CheckInToken) Live(now time.Time) bool {
	return t.ConsumedAt == nil && t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

// Visit 入场记录，只追加不修改
type Visit struct {
	ID           string    `gorm:"primaryKey;type:uuid" json:"id"`
	MembershipID string    `gorm:"type:uuid;index;not null" json:"membershipId"`
	UserID       string    `gorm:"type:uuid;index;not null" json:"userId"`
	Method       Method    `gorm:"column:checkin_method;type:varchar(20);not null" json:"checkinMethod"`
	TokenValue   *string   `gorm:"type:varchar(64)" json:"-"`
	StaffID      string    `gorm:"type:uuid" json:"staffId,omitempty"`
	VisitedAt    time.Time `gorm:"index;not null" json:"visitedAt"`
	Notes        string    `gorm:"type:text" json:"notes,omitempty"`
}

func (Visit) TableName() string {
	return "visits"
}

func (v *Visit) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = baseModel.NewID()
	}
	return nil
}
