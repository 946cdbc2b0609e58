package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

func TestGormLoggerSkipsRecordNotFound(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := newGormLogger(zap.New(core))
	sql := func() (string, int64) { return "SELECT * FROM users WHERE name = 'ghost'", 0 }

	l.Trace(context.Background(), time.Now(), sql, gorm.ErrRecordNotFound)
	assert.Zero(t, logs.Len(), "找不到记录不记日志")

	l.Trace(context.Background(), time.Now(), sql, errors.New("no such table: users"))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, "gorm", entry.LoggerName)
	assert.Contains(t, entry.Message, "no such table: users")
	assert.NotContains(t, entry.Message, "\x1b[", "不输出颜色")
}

func TestGormLoggerSlowQuery(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := newGormLogger(zap.New(core))

	l.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 1 }, nil)
	assert.Zero(t, logs.Len())

	l.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) { return "SELECT 1", 1 }, nil)
	require.Equal(t, 1, logs.Len())
	assert.Contains(t, logs.All()[0].Message, "SLOW SQL")
}
