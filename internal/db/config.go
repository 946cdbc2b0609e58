package db

import (
	"fmt"

	gomysql "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"js-backend/internal/common"
)

// Dialector 根据配置选择数据库驱动
func Dialector(cfg common.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", "mysql":
		return mysql.Open(MySQLDSN(cfg)), nil
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres requires a dsn")
		}
		return postgres.Open(cfg.DSN), nil
	case "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "js.db"
		}
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// MySQLDSN 优先使用配置的 DSN，否则按各字段拼接
func MySQLDSN(cfg common.DatabaseConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	c := gomysql.NewConfig()
	c.User = cfg.User
	c.Passwd = cfg.Password
	c.Net = "tcp"
	c.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	c.DBName = cfg.Name
	c.ParseTime = true
	c.Params = map[string]string{"charset": "utf8mb4"}
	return c.FormatDSN()
}
