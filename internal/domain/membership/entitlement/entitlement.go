// Package entitlement 根据会员卡记录和当前时间计算实际可用状态。
// 纯函数，无 I/O，结果只取决于 (membership, now)。
package entitlement

import (
	"fitclub/internal/domain/membership/model"
	"math"
	"time"
)

// Status 实际可用状态
type Status string

const (
	Active         Status = "active"
	Expired        Status = "expired"
	QuotaExhausted Status = "quota_exhausted"
	Frozen         Status = "frozen"
	Cancelled      Status = "cancelled"
)

// EffectiveStatus 计算实际状态：管理员的冻结/注销优先，其次是有效期，最后是次数
func EffectiveStatus(m *model.Membership, now time.Time) Status {
	switch m.Status {
	case model.StatusCancelled:
		return Cancelled
	case model.StatusFrozen:
		return Frozen
	}
	if now.Before(m.StartDate) || now.After(m.EndDate) {
		return Expired
	}
	if m.MaxVisits != nil && m.UsedVisits >= *m.MaxVisits {
		return QuotaExhausted
	}
	return Active
}

// IsActive 是否可以入场
func IsActive(m *model.Membership, now time.Time) bool {
	return EffectiveStatus(m, now) == Active
}

// RemainingVisits 剩余次数，nil 表示不限次数
func RemainingVisits(m *model.Membership) *int {
	if m.MaxVisits == nil {
		return nil
	}
	remaining := *m.MaxVisits - m.UsedVisits
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}

// Summary 客户端展示用的会员卡概览
type Summary struct {
	MembershipID    string    `json:"membershipId"`
	Status          Status    `json:"status"`
	RemainingVisits *int      `json:"remainingVisits"`
	UsedVisits      int       `json:"usedVisits"`
	MaxVisits       *int      `json:"maxVisits"`
	UsedPercent     *float64  `json:"usedPercent"`
	StartDate       time.Time `json:"startDate"`
	EndDate         time.Time `json:"endDate"`
	DaysLeft        int       `json:"daysLeft"`
}

// Summarize 汇总展示数据，所有界面都应使用这里的结果
func Summarize(m *model.Membership, now time.Time) Summary {
	s := Summary{
		MembershipID:    m.ID,
		Status:          EffectiveStatus(m, now),
		RemainingVisits: RemainingVisits(m),
		UsedVisits:      m.UsedVisits,
		MaxVisits:       m.MaxVisits,
		StartDate:       m.StartDate,
		EndDate:         m.EndDate,
	}
	if m.MaxVisits != nil && *m.MaxVisits > 0 {
		p := math.Min(100, float64(m.UsedVisits)*100/float64(*m.MaxVisits))
		s.UsedPercent = &p
	}
	if left := m.EndDate.Sub(now); left > 0 {
		s.DaysLeft = int(math.Ceil(left.Hours() / 24))
	}
	return s
}

// SelectActive 从多张卡中选出驱动入场的那一张：
// 只看实际可用的卡，续费重叠时优先使用最早到期的
func SelectActive(memberships []model.Membership, now time.Time) *model.Membership {
	var selected *model.Membership
	for i := range memberships {
		m := &memberships[i]
		if !IsActive(m, now) {
			continue
		}
		if selected == nil || m.EndDate.Before(selected.EndDate) {
			selected = m
		}
	}
	return selected
}
