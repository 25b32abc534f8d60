package entitlement

import (
	"errors"
	"fitclub/internal/domain/membership/model"
	"fmt"
	"time"
)

// ErrNoActiveMembership 会员名下没有可用于入场的会员卡
var ErrNoActiveMembership = errors.New("no active membership")

// NotEntitledError 会员卡存在但当前不可入场，Reason 给出具体原因
type NotEntitledError struct {
	Reason Status
}

func (e *NotEntitledError) Error() string {
	return fmt.Sprintf("membership not entitled: %s", e.Reason)
}

// Check 可入场时返回 nil，否则返回 *NotEntitledError
func Check(m *model.Membership, now time.Time) error {
	if status := EffectiveStatus(m, now); status != Active {
		return &NotEntitledError{Reason: status}
	}
	return nil
}

// ReasonOf 取出 NotEntitledError 的原因，其他错误返回空字符串
func ReasonOf(err error) Status {
	var notEntitled *NotEntitledError
	if errors.As(err, &notEntitled) {
		return notEntitled.Reason
	}
	return ""
}
