package command_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"js-backend/internal/challenge"
	"js-backend/internal/command"
	"js-backend/internal/db"
	"js-backend/internal/testsupport"
)

var cst = time.FixedZone("CST", 8*3600)

type bot struct {
	t     *testing.T
	store *db.Store
	proc  *command.Processor
	now   time.Time
}

// newBot 第一个发言的用户 ID 为 1，是管理员
func newBot(t *testing.T) *bot {
	t.Helper()
	s := testsupport.NewBootstrappedStore(t)
	engine := challenge.NewEngine(cst, nil)
	handlers := command.NewHandlers(engine, command.Options{Location: cst, AdminIDs: []uint{1}, RecentDays: 3}, nil)
	b := &bot{t: t, store: s, now: time.Date(2019, 4, 3, 10, 0, 0, 0, cst)}
	b.proc = command.NewProcessor(s, handlers.Registry(), nil, command.WithClock(func() time.Time { return b.now }))
	return b
}

func (b *bot) send(user, text string) string {
	b.t.Helper()
	reply, err := b.proc.Process(context.Background(), command.Request{User: user, ChatID: "chat-1", Text: text})
	require.NoError(b.t, err, text)
	return reply
}

func TestWorkoutShorthandCreatesUserAndRecords(t *testing.T) {
	b := newBot(t)
	reply := b.send("ycqian", "kbsw-16 50x3")
	assert.Equal(t, "ycqian 完成 16公斤壶铃摆荡: 50x3", reply)

	ctx := context.Background()
	user, err := b.store.FindUser(ctx, "ycqian")
	require.NoError(t, err)
	assert.Equal(t, "chat-1", user.ChatID)

	records, err := b.store.RecordsAfter(ctx, user.ID, 0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, r := range records {
		assert.Equal(t, "kbsw-16", r.Workout.Name)
		assert.Equal(t, 50, r.Times)
	}

	var commands int64
	require.NoError(t, b.store.DB().Model(&db.Command{}).Where("user_id = ?", user.ID).Count(&commands).Error)
	assert.EqualValues(t, 1, commands)
}

func TestWorkoutUpdatesJoinedChallenges(t *testing.T) {
	b := newBot(t)
	assert.Equal(t, "ycqian 开始挑战 壶铃摆荡1000次挑战", b.send("ycqian", "challenge kbsw-1000"))
	assert.Equal(t, "ycqian 开始挑战 连续打卡30天挑战", b.send("ycqian", "challenge workout-30"))

	reply := b.send("ycqian", "kbsw-16 50x3,60")
	assert.Equal(t, "ycqian 完成 16公斤壶铃摆荡: 50x3,60\n"+
		"💪️ycqian 壶铃摆荡1000次挑战 :: 210/1000\n"+
		"💪️ycqian 连续打卡30天挑战 :: 1/30", reply)

	// 当天第二次只更新次数挑战
	reply = b.send("ycqian", "pullup 10")
	assert.Equal(t, "ycqian 完成 引体向上: 10", reply)

	assert.Equal(t, "💪️ycqian 壶铃摆荡1000次挑战 :: 210/1000\n💪️ycqian 连续打卡30天挑战 :: 1/30", b.send("ycqian", "challenge"))
	assert.Equal(t, "重新计算完成:\n💪️ycqian 壶铃摆荡1000次挑战 :: 210/1000\n💪️ycqian 连续打卡30天挑战 :: 1/30",
		b.send("ycqian", "challenge recalculate"))
}

func TestJoinErrorsAreReplies(t *testing.T) {
	b := newBot(t)
	require.NoError(t, b.store.CreateChallenge(context.Background(),
		&db.Challenge{Name: "old-100", Description: "旧挑战", Kind: db.KindCount, Workouts: "pullup", Total: 100, Closed: true}))

	assert.Equal(t, "挑战-old-100 已经结束，不能再参加", b.send("ycqian", "challenge old-100"))
	assert.Equal(t, "不存在该挑战项目: nope", b.send("ycqian", "challenge nope"))

	b.send("ycqian", "challenge pullup-100")
	assert.Equal(t, "ycqian 已经参加了挑战-引体向上100次挑战", b.send("ycqian", "challenge pullup-100"))

	user, err := b.store.FindUser(context.Background(), "ycqian")
	require.NoError(t, err)
	progresses, err := b.store.ProgressesForUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Len(t, progresses, 1)

	b.send("ycqian", "pullup 50x2")
	assert.Equal(t, "ycqian 已经完成了挑战-引体向上100次挑战", b.send("ycqian", "challenge pullup-100"))
}

func TestChallengeWithoutProgressListsChallenges(t *testing.T) {
	b := newBot(t)
	reply := b.send("ycqian", "challenge")
	assert.Contains(t, reply, "正在进行中的挑战项目有:")
	assert.Contains(t, reply, "squat-50 :: 累计负重深蹲50吨挑战")
	assert.Equal(t, reply, b.send("ycqian", "challenge list"))
	assert.Equal(t, "ycqian 没有参加任何挑战", b.send("ycqian", "challenge show"))
	assert.Contains(t, b.send("ycqian", "challenge a b"), "格式应为")
}

func TestUnknownWorkout(t *testing.T) {
	b := newBot(t)
	b.send("admin", "help")

	// 非管理员：命令回滚，用户也不会被创建
	assert.Equal(t, "项目: plank 不存在，发送 list 查看支持的项目", b.send("newbie", "plank 60"))
	_, err := b.store.FindUser(context.Background(), "newbie")
	assert.True(t, errors.Is(err, db.ErrNotFound))

	assert.Equal(t, "admin 完成 plank: 60x2", b.send("admin", "plank 60x2"))
	w, err := b.store.FindWorkout(context.Background(), "plank")
	require.NoError(t, err)
	assert.Equal(t, "plank", w.Description)
	assert.Equal(t, "newbie 完成 plank: 30", b.send("newbie", "plank 30"))
}

func TestAddWorkout(t *testing.T) {
	b := newBot(t)
	b.send("admin", "help")

	assert.Equal(t, "只有管理员可以添加训练项目", b.send("ycqian", "addworkout plank 平板支撑"))
	assert.Equal(t, "格式应为: addworkout <项目> <描述>", b.send("admin", "addworkout plank"))
	assert.Equal(t, "添加训练项目 plank: 平板支撑 计时", b.send("admin", "addworkout plank 平板支撑 计时"))
	assert.Equal(t, "项目: plank 已经存在", b.send("admin", "addworkout plank 平板支撑"))

	for _, reserved := range []string{"show", "challenge", "recalculate", "list"} {
		assert.Equal(t, reserved+" 是保留的命令名，不能作为训练项目", b.send("admin", "addworkout "+reserved+" x"))
	}
	assert.Contains(t, b.send("admin", "list"), "plank: 平板支撑 计时")
}

func TestShowRecentRecords(t *testing.T) {
	b := newBot(t)
	b.now = time.Date(2019, 3, 30, 9, 0, 0, 0, cst)
	b.send("ycqian", "pullup 10")
	b.now = time.Date(2019, 4, 1, 23, 30, 0, 0, cst)
	b.send("ycqian", "kbsw-16 50x3")
	b.send("ycqian", "kbsw-16 60")
	b.now = time.Date(2019, 4, 3, 7, 0, 0, 0, cst)
	b.send("ycqian", "pullup 10,8,8")

	assert.Equal(t, "ycqian 最近3天的训练记录:\n"+
		"2019-04-01 16公斤壶铃摆荡: 50x3,60\n"+
		"2019-04-03 引体向上: 10,8x2", b.send("ycqian", "show"))
	assert.Equal(t, "zlji 最近3天没有训练记录", b.send("zlji", "show"))
	assert.Contains(t, b.send("zlji", "show ycqian"), "2019-04-03 引体向上: 10,8x2")
	assert.Equal(t, "用户 nobody 不存在", b.send("zlji", "show nobody"))

	assert.Equal(t, "ycqian 的训练记录已隐藏", b.send("ycqian", "hideme"))
	assert.Equal(t, "ycqian 隐藏了训练记录", b.send("zlji", "show ycqian"))
	assert.Contains(t, b.send("ycqian", "show ycqian"), "ycqian 最近3天的训练记录")
	assert.Equal(t, "ycqian 的训练记录已公开", b.send("ycqian", "showme"))
	assert.Contains(t, b.send("zlji", "show ycqian"), "ycqian 最近3天的训练记录")
}

func TestUserFacingErrors(t *testing.T) {
	b := newBot(t)
	assert.Equal(t, "不支持的命令: recalculate，发送 help 查看帮助", b.send("ycqian", "recalculate"))
	assert.Contains(t, b.send("ycqian", "kbsw-16 50y3"), "无法解析")
	assert.Contains(t, b.send("ycqian", "kbsw-16"), "格式应为")
	assert.Equal(t, "没有可以记录的次数", b.send("ycqian", "kbsw-16 ,"))
	assert.Equal(t, "排行榜还在开发中", b.send("ycqian", "rank"))
	assert.Equal(t, "kbsw 的教程还在编写中", b.send("ycqian", "tutorial kbsw"))
	assert.Equal(t, "没有这个命令: nope", b.send("ycqian", "help nope"))
	assert.Equal(t, "list: 支持的训练项目", b.send("ycqian", "help list"))

	help := b.send("ycqian", "help")
	assert.Contains(t, help, "支持的命令:")
	assert.Contains(t, help, "<项目> <次数>: 记录训练")
}

func TestListGroupsBuiltinCatalog(t *testing.T) {
	b := newBot(t)
	reply := b.send("ycqian", "list")
	assert.Contains(t, reply, "支持的训练项目:\n")
	assert.Contains(t, reply, "kbsw[-4|-6|-8|-10|-12|-14|-16|-20|-24|-28|-32]: [4|6|8|10|12|14|16|20|24|28|32]公斤壶铃摆荡")
	assert.Contains(t, reply, "pullup: 引体向上")
}

func TestListSkipsClosedWorkouts(t *testing.T) {
	b := newBot(t)
	require.NoError(t, b.store.DB().Model(&db.Workout{}).Where("name = ?", "muscleup").Update("closed", true).Error)
	require.NoError(t, b.store.DB().Model(&db.Workout{}).Where("name = ?", "kbsw-4").Update("closed", true).Error)

	reply := b.send("ycqian", "list")
	assert.NotContains(t, reply, "muscleup")
	assert.NotContains(t, reply, "双力臂")
	assert.Contains(t, reply, "kbsw[-6|-8|-10|-12|-14|-16|-20|-24|-28|-32]: ")
	assert.Contains(t, reply, "pullup: 引体向上")

	// 关闭的项目仍然可以记录
	assert.Equal(t, "ycqian 完成 双力臂: 5", b.send("ycqian", "muscleup 5"))
}

func TestEmptyUserIsInternalError(t *testing.T) {
	b := newBot(t)
	reply, err := b.proc.Process(context.Background(), command.Request{Text: "help"})
	assert.Error(t, err)
	assert.Equal(t, command.InternalErrorReply, reply)
}
