package db

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"js-backend/internal/common"
	"js-backend/internal/logger"
)

// Open 连接数据库，唯一键冲突会被翻译成 gorm.ErrDuplicatedKey
func Open(cfg common.DatabaseConfig) (*gorm.DB, error) {
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}
	return OpenDialector(dialector)
}

// OpenDialector SQL 日志写到全局 zap logger
func OpenDialector(dialector gorm.Dialector) (*gorm.DB, error) {
	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newGormLogger(logger.L()),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return gdb, nil
}

// zapWriter 把 gorm 的日志转给 zap
type zapWriter struct {
	log *zap.Logger
}

func (w zapWriter) Printf(format string, args ...any) {
	w.log.Warn(fmt.Sprintf(format, args...))
}

// newGormLogger 只记录慢查询和错误，找不到记录是正常分支
func newGormLogger(log *zap.Logger) gormlogger.Interface {
	return gormlogger.New(zapWriter{log: log.Named("gorm")}, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// Migrate 自动迁移表结构
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
