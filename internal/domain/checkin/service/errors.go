package service

import "errors"

// 入场码校验失败的三种情况，其余拒绝原因见 entitlement.NotEntitledError
var (
	ErrTokenInvalid         = errors.New("check-in token invalid")
	ErrTokenExpired         = errors.New("check-in token expired")
	ErrTokenAlreadyConsumed = errors.New("check-in token already consumed")
)

// ErrInvalidMethod 扫码入口只接受 qr，人工入口只接受 manual 或 admin_override
var ErrInvalidMethod = errors.New("check-in method not allowed here")
