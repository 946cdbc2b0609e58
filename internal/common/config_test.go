package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "js.yaml")
	content := `
server:
  addr: ":9000"
database:
  driver: sqlite
  dsn: "file::memory:"
telegram:
  token: abc
  send_timeout: 5s
bot:
  admin_ids: [7]
  recent_days: 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "abc", cfg.Telegram.Token)
	assert.Equal(t, 5*time.Second, cfg.Telegram.SendTimeout)
	assert.Equal(t, []uint{7}, cfg.Bot.AdminIDs)
	assert.Equal(t, 5, cfg.Bot.RecentDays)
	// 文件里没写的字段保留默认值
	assert.Equal(t, "!js", cfg.Beary.TriggerWord)
	assert.Equal(t, DefaultTimezone, cfg.Bot.Timezone)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("JS_DB_DRIVER", "postgres")
	t.Setenv("JS_DB_DSN", "postgres://u:p@localhost/js")
	t.Setenv("JS_ADMIN_IDS", "1, 9")
	t.Setenv("JS_TIMEZONE", "UTC")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err, "显式指定的配置文件不存在时应该报错")
	assert.Nil(t, cfg)

	cfg, err = LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://u:p@localhost/js", cfg.Database.DSN)
	assert.Equal(t, []uint{1, 9}, cfg.Bot.AdminIDs)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())
}

func TestLoadConfigBadTimezone(t *testing.T) {
	t.Setenv("JS_TIMEZONE", "Mars/Olympus")
	_, err := LoadConfig("")
	assert.Error(t, err)
}

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs("1,2,,3")
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 2, 3}, ids)

	_, err = parseIDs("1,x")
	assert.Error(t, err)
}
