package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"js-backend/internal/common"
)

var log = zap.NewNop()

// Init 根据配置构建全局 logger，控制台和滚动文件可以同时输出
func Init(cfg common.LogConfig) *zap.Logger {
	log = New(cfg)
	zap.ReplaceGlobals(log)
	log.Info("logger initialized", zap.String("level", cfg.Level), zap.String("file", cfg.File))
	return log
}

// New 构建 logger 但不替换全局实例
func New(cfg common.LogConfig) *zap.Logger {
	level := zap.NewAtomicLevelAt(parseLevel(cfg.Level))
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var cores []zapcore.Core
	if cfg.Console || cfg.File == "" {
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.Lock(os.Stdout), level))
	}
	if cfg.File != "" {
		w := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			LocalTime:  true,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), w, level))
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller())
}

// L 返回全局 logger，未初始化时是 Nop
func L() *zap.Logger { return log }

func Sync() { _ = log.Sync() }

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
