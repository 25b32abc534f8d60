package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log 全局日志实例，未初始化时为 nil
var Log *zap.Logger

// InitLogger 根据运行环境初始化 zap 日志
// dev 环境使用彩色控制台输出，其余环境输出 JSON
func InitLogger(env string, debug bool) error {
	var cfg zap.Config
	if env == "" || env == "dev" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "time"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	l, err := cfg.Build()
	if err != nil {
		return err
	}
	Log = l
	return nil
}

// L 返回全局日志，未初始化时返回 Nop 日志，方便测试
func L() *zap.Logger {
	if Log == nil {
		return zap.NewNop()
	}
	return Log
}

// Sync 刷新缓冲
func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}
