package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Log       LogConfig       `yaml:"log"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Beary     BearyConfig     `yaml:"beary"`
	Bot       BotConfig       `yaml:"bot"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig 数据库配置，DSN 为空时按 mysql 各字段拼接
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // mysql/postgres/sqlite
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	Console    bool   `yaml:"console"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type TelegramConfig struct {
	Token       string        `yaml:"token"`
	APIBase     string        `yaml:"api_base"`
	SendTimeout time.Duration `yaml:"send_timeout"`
}

type BearyConfig struct {
	Token       string `yaml:"token"`
	TriggerWord string `yaml:"trigger_word"`
}

type BotConfig struct {
	Timezone   string `yaml:"timezone"`
	AdminIDs   []uint `yaml:"admin_ids"`
	RecentDays int    `yaml:"recent_days"`
}

type SchedulerConfig struct {
	Enabled bool `yaml:"enabled"`
	Hour    int  `yaml:"hour"`
	Minute  int  `yaml:"minute"`
}

// DefaultConfig 本地开发用的默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:   ServerConfig{Addr: ":8080"},
		Database: DatabaseConfig{Driver: "mysql", Host: "127.0.0.1", Port: 3306, User: "root", Name: "js"},
		Log:      LogConfig{Level: "info", Console: true, MaxSizeMB: 100, MaxBackups: 3, MaxAgeDays: 30},
		Telegram: TelegramConfig{APIBase: "https://api.telegram.org", SendTimeout: 3 * time.Second},
		Beary:    BearyConfig{TriggerWord: "!js"},
		Bot: BotConfig{
			Timezone:   DefaultTimezone,
			AdminIDs:   append([]uint(nil), DefaultAdminIDs...),
			RecentDays: DefaultRecentDays,
		},
		Scheduler: SchedulerConfig{Enabled: true, Hour: 20, Minute: 30},
	}
}

// LoadConfig 读取配置文件，再用环境变量覆盖
func LoadConfig(path string) (*Config, error) {
	c := DefaultConfig()

	paths := []string{"etc/js.yaml", "/etc/js/js.yaml"}
	if path != "" {
		paths = []string{path}
	}
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			if path != "" {
				return nil, fmt.Errorf("read config %s: %w", p, err)
			}
			continue
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", p, err)
		}
		break
	}

	envOverride(&c.Server.Addr, "JS_HTTP_ADDR")
	envOverride(&c.Database.Driver, "JS_DB_DRIVER")
	envOverride(&c.Database.DSN, "MYSQL_DSN")
	envOverride(&c.Database.DSN, "JS_DB_DSN")
	envOverride(&c.Log.Level, "JS_LOG_LEVEL")
	envOverride(&c.Log.File, "JS_LOG_FILE")
	envOverride(&c.Telegram.Token, "JS_TELEGRAM_TOKEN")
	envOverride(&c.Beary.Token, "JS_BEARY_TOKEN")
	envOverride(&c.Bot.Timezone, "JS_TIMEZONE")
	if v := os.Getenv("JS_ADMIN_IDS"); v != "" {
		ids, err := parseIDs(v)
		if err != nil {
			return nil, fmt.Errorf("JS_ADMIN_IDS: %w", err)
		}
		c.Bot.AdminIDs = ids
	}

	if _, err := c.Location(); err != nil {
		return nil, err
	}
	return c, nil
}

// Location 统计日期用的时区
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Bot.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Bot.Timezone, err)
	}
	return loc, nil
}

func envOverride(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func parseIDs(s string) ([]uint, error) {
	var ids []uint
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		ids = append(ids, uint(n))
	}
	return ids, nil
}
