package model

import baseModel "fitclub/pkg/model"

// 角色
const (
	RoleMember = 1 // 普通会员
	RoleStaff  = 2 // 前台工作人员
	RoleAdmin  = 3 // 管理员
)

// 账号状态
const (
	StatusNormal = 1
	StatusBanned = 2
)

// Member 会员账号，身份来自 Telegram
type Member struct {
	baseModel.BaseModel
	TelegramID int64  `gorm:"uniqueIndex;not null" json:"telegramId"`
	FirstName  string `gorm:"type:varchar(100)" json:"firstName"`
	LastName   string `gorm:"type:varchar(100)" json:"lastName"`
	Username   string `gorm:"type:varchar(100)" json:"username"`
	PhotoURL   string `gorm:"type:varchar(255)" json:"photoUrl"`
	Role       int    `gorm:"default:1" json:"role"`
	Status     int    `gorm:"default:1" json:"status"`
}

func (Member) TableName() string {
	return "members"
}

// ValidRole 判断角色值是否合法
func ValidRole(role int) bool {
	return role == RoleMember || role == RoleStaff || role == RoleAdmin
}
