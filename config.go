package main

import (
	gomysql "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"js-backend/internal/common"
	"js-backend/internal/db"
)

// redactedDSN 打印用的连接串，不带密码
func redactedDSN(cfg common.DatabaseConfig) string {
	switch cfg.Driver {
	case "", "mysql":
		parsed, err := gomysql.ParseDSN(db.MySQLDSN(cfg))
		if err != nil {
			return "<invalid>"
		}
		if parsed.Passwd != "" {
			parsed.Passwd = "***"
		}
		return parsed.FormatDSN()
	case "sqlite":
		return cfg.DSN
	default:
		if cfg.DSN == "" {
			return ""
		}
		return "<set>"
	}
}

// configFields 启动时打印的配置摘要
func configFields(cfg *common.Config) []zap.Field {
	return []zap.Field{
		zap.String("addr", cfg.Server.Addr),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("db_dsn", redactedDSN(cfg.Database)),
		zap.String("timezone", cfg.Bot.Timezone),
		zap.Uints("admin_ids", cfg.Bot.AdminIDs),
		zap.Bool("telegram", cfg.Telegram.Token != ""),
		zap.Bool("beary_token", cfg.Beary.Token != ""),
		zap.Bool("scheduler", cfg.Scheduler.Enabled),
	}
}
