package logic

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"js-backend/internal/common"
	"js-backend/internal/db"
	"js-backend/internal/observability"
)

// ReminderStore 提醒需要的查询
type ReminderStore interface {
	UsersWithOpenStreaks(ctx context.Context) ([]db.User, error)
	HasRecordSince(ctx context.Context, userID uint, since time.Time) (bool, error)
}

// Scheduler 每天定时提醒还没有训练的连续打卡用户
type Scheduler struct {
	store  ReminderStore
	sender Sender
	loc    *time.Location
	hour   int
	minute int
	log    *zap.Logger
	now    func() time.Time
}

func NewScheduler(store ReminderStore, sender Sender, cfg common.SchedulerConfig, loc *time.Location, log *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{store: store, sender: sender, loc: loc, hour: cfg.Hour, minute: cfg.Minute, log: log, now: time.Now}
}

// NextRun 下一次提醒时间，今天已经过了就是明天
func (s *Scheduler) NextRun(now time.Time) time.Time {
	now = now.In(s.loc)
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, s.loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Run 阻塞直到 ctx 结束
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("启动定时任务调度器", zap.Int("hour", s.hour), zap.Int("minute", s.minute))
	for {
		now := s.now()
		next := s.NextRun(now)
		wait := next.Sub(now)
		s.log.Info("下次打卡提醒检查时间", zap.Time("next", next), zap.Duration("wait", wait))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		if _, _, err := s.CheckAndSendReminders(ctx); err != nil {
			s.log.Error("打卡提醒检查失败", zap.Error(err))
		}
	}
}

// CheckAndSendReminders 检查今天还没有训练的用户并发送提醒，返回需要提醒和成功发送的人数
func (s *Scheduler) CheckAndSendReminders(ctx context.Context) (reminded, sent int, err error) {
	users, err := s.store.UsersWithOpenStreaks(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("获取连续打卡用户失败: %w", err)
	}
	now := s.now().In(s.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)

	for _, user := range users {
		trained, err := s.store.HasRecordSince(ctx, user.ID, today)
		if err != nil {
			s.log.Warn("检查用户训练记录失败", zap.String("user", user.Name), zap.Error(err))
			continue
		}
		if trained {
			continue
		}
		reminded++
		text := fmt.Sprintf("⏰%s 今天还没有训练，别让连续打卡中断", user.Name)
		if err := s.sender.Send(ctx, user.ChatID, text); err != nil {
			observability.RecordDeliveryFailure("reminder")
			s.log.Warn("发送提醒失败", zap.String("user", user.Name), zap.Error(err))
			continue
		}
		sent++
	}
	s.log.Info("打卡提醒检查完成", zap.Int("reminded", reminded), zap.Int("sent", sent))
	return reminded, sent, nil
}
