package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"

	"js-backend/internal/challenge"
	"js-backend/internal/db"
)

func useSqlite(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "js.db")
	t.Setenv("JS_DB_DRIVER", "sqlite")
	t.Setenv("JS_DB_DSN", path)
	t.Setenv("JS_LOG_LEVEL", "error")
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func openStore(t *testing.T, path string) *db.Store {
	t.Helper()
	gdb, err := db.OpenDialector(sqlite.Open(path))
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db.NewStore(gdb)
}

func TestMigrateAndBootstrap(t *testing.T) {
	useSqlite(t)
	out, err := execute(t, "migrate")
	require.NoError(t, err)
	assert.Equal(t, "migrated\n", out)

	out, err = execute(t, "bootstrap")
	require.NoError(t, err)
	want := "bootstrapped " + strconv.Itoa(len(db.BuiltinWorkouts())) + " workouts, " + strconv.Itoa(len(db.BuiltinChallenges())) + " challenges\n"
	assert.Equal(t, want, out)

	// 可以重复执行
	_, err = execute(t, "bootstrap")
	require.NoError(t, err)
}

func TestRename(t *testing.T) {
	path := useSqlite(t)
	_, err := execute(t, "migrate")
	require.NoError(t, err)

	ctx := context.Background()
	s := openStore(t, path)
	for _, name := range []string{"ycqian", "zlji"} {
		_, _, err := s.GetOrCreateUser(ctx, name)
		require.NoError(t, err)
	}

	out, err := execute(t, "rename", "ycqian", "qian")
	require.NoError(t, err)
	assert.Equal(t, "renamed ycqian to qian\n", out)
	_, err = s.FindUser(ctx, "qian")
	assert.NoError(t, err)

	_, err = execute(t, "rename", "nobody", "x")
	assert.EqualError(t, err, "user nobody not found")
	_, err = execute(t, "rename", "qian", "zlji")
	assert.EqualError(t, err, "user zlji already exists")
	_, err = execute(t, "rename", "only-one")
	assert.Error(t, err)
}

func TestRecalculate(t *testing.T) {
	path := useSqlite(t)
	_, err := execute(t, "bootstrap")
	require.NoError(t, err)

	ctx := context.Background()
	s := openStore(t, path)
	user, _, err := s.GetOrCreateUser(ctx, "ycqian")
	require.NoError(t, err)
	engine := challenge.NewEngine(nil, nil)
	_, err = engine.Join(ctx, s, user, "pullup-100")
	require.NoError(t, err)
	pullup, err := s.FindWorkout(ctx, "pullup")
	require.NoError(t, err)
	_, err = s.AddRecords(ctx, user.ID, pullup, []int{10, 10, 5}, time.Now())
	require.NoError(t, err)

	out, err := execute(t, "recalculate", "ycqian")
	require.NoError(t, err)
	assert.Equal(t, "💪️ycqian 引体向上100次挑战 :: 25/100\n", out)

	_, err = execute(t, "recalculate", "nobody")
	assert.EqualError(t, err, "user nobody not found")
}
