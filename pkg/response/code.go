package response

// 业务状态码
const (
	CodeSuccess = 0
	CodeError   = 1

	// 会员账号错误 100xx
	ErrMemberNotFound = 10001
	ErrAuthFailed     = 10002
	ErrTokenInvalid   = 10003
	ErrNoPermission   = 10004

	// 会员卡错误 200xx
	ErrMembershipNotFound     = 20001
	ErrMembershipInvalidState = 20002
	ErrNotEntitled            = 20003
	ErrNoActiveMembership     = 20004

	// 入场错误 300xx
	ErrCheckInTokenInvalid  = 30001
	ErrCheckInTokenExpired  = 30002
	ErrCheckInTokenConsumed = 30003

	// 系统错误 500xx
	ErrServerInternal  = 50001
	ErrInvalidParam    = 50002
	ErrTooManyRequests = 50003
)
