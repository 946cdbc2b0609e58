package logic

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"js-backend/internal/challenge"
	"js-backend/internal/common"
	"js-backend/internal/db"
	"js-backend/internal/testsupport"
)

var cst = time.FixedZone("CST", 8*3600)

type recordingSender struct {
	sent []string
	fail map[string]bool
}

func (s *recordingSender) Send(_ context.Context, chatID, text string) error {
	if s.fail[chatID] {
		return errors.New("blocked")
	}
	s.sent = append(s.sent, chatID+":"+text)
	return nil
}

func TestNextRun(t *testing.T) {
	s := NewScheduler(nil, nil, common.SchedulerConfig{Hour: 20, Minute: 30}, cst, nil)

	now := time.Date(2019, 4, 1, 9, 0, 0, 0, cst)
	assert.Equal(t, time.Date(2019, 4, 1, 20, 30, 0, 0, cst), s.NextRun(now))

	now = time.Date(2019, 4, 1, 20, 30, 0, 0, cst)
	assert.Equal(t, time.Date(2019, 4, 2, 20, 30, 0, 0, cst), s.NextRun(now))

	// UTC 时间也按配置时区计算
	now = time.Date(2019, 4, 1, 13, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2019, 4, 2, 20, 30, 0, 0, cst), s.NextRun(now))
}

func TestCheckAndSendReminders(t *testing.T) {
	ctx := context.Background()
	store := testsupport.NewBootstrappedStore(t)
	engine := challenge.NewEngine(cst, nil)
	now := time.Date(2019, 4, 2, 20, 30, 0, 0, cst)

	join := func(name, chatID string) *db.User {
		u, _, err := store.GetOrCreateUser(ctx, name)
		require.NoError(t, err)
		require.NoError(t, store.SetChatID(ctx, u.ID, chatID))
		_, err = engine.Join(ctx, store, u, "workout-30")
		require.NoError(t, err)
		return u
	}
	join("lazy", "c-lazy")
	busy := join("busy", "c-busy")
	join("blocked", "c-blocked")
	// 没有会话的用户无法提醒
	silent, _, err := store.GetOrCreateUser(ctx, "silent")
	require.NoError(t, err)
	_, err = engine.Join(ctx, store, silent, "workout-30")
	require.NoError(t, err)

	pullup, err := store.FindWorkout(ctx, "pullup")
	require.NoError(t, err)
	_, err = store.AddRecords(ctx, busy.ID, pullup, []int{10}, now.Add(-2*time.Hour))
	require.NoError(t, err)

	sender := &recordingSender{fail: map[string]bool{"c-blocked": true}}
	s := NewScheduler(store, sender, common.SchedulerConfig{Hour: 20, Minute: 30}, cst, nil)
	s.now = func() time.Time { return now }

	reminded, sent, err := s.CheckAndSendReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, reminded)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []string{"c-lazy:⏰lazy 今天还没有训练，别让连续打卡中断"}, sender.sent)
}

func TestSchedulerRunStops(t *testing.T) {
	s := NewScheduler(nil, &recordingSender{}, common.SchedulerConfig{Hour: 20, Minute: 30}, cst, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
