package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"js-backend/internal/challenge"
	"js-backend/internal/common"
	"js-backend/internal/db"
	"js-backend/internal/observability"
)

// Options 命令处理的配置
type Options struct {
	Location   *time.Location
	AdminIDs   []uint
	RecentDays int
}

// Handlers 所有聊天命令的实现
type Handlers struct {
	engine     *challenge.Engine
	loc        *time.Location
	admins     map[uint]struct{}
	recentDays int
	log        *zap.Logger
	registry   *Registry
}

// NewHandlers 构造命令实现和命令表
func NewHandlers(engine *challenge.Engine, opts Options, log *zap.Logger) *Handlers {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.RecentDays <= 0 {
		opts.RecentDays = common.DefaultRecentDays
	}
	if opts.AdminIDs == nil {
		opts.AdminIDs = common.DefaultAdminIDs
	}
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handlers{
		engine:     engine,
		loc:        opts.Location,
		admins:     make(map[uint]struct{}, len(opts.AdminIDs)),
		recentDays: opts.RecentDays,
		log:        log,
	}
	for _, id := range opts.AdminIDs {
		h.admins[id] = struct{}{}
	}
	h.registry = h.buildRegistry()
	return h
}

func (h *Handlers) Registry() *Registry { return h.registry }

// buildRegistry 注册顺序就是匹配顺序
func (h *Handlers) buildRegistry() *Registry {
	return NewRegistry(
		Handler{
			Name:    "workout",
			Help:    "<项目> <次数>: 记录训练，例如 kbsw-16 50x3 或 pullup 10,8,6",
			Process: Records(h.workout),
		},
		Handler{Name: "help", Help: "help [命令]: 查看帮助", Process: TextArgs(h.help)},
		Handler{Name: "list", Help: "list: 支持的训练项目", Process: TextArgs(h.list)},
		Handler{Name: "tutorial", Help: "tutorial <项目>: 训练教程", Process: TextArgs(h.tutorial)},
		Handler{Name: "show", Help: fmt.Sprintf("show [用户]: 最近%d天的训练记录", h.recentDays), Process: TextArgs(h.show)},
		Handler{Name: "rank", Help: "rank: 排行榜", Process: TextArgs(h.rank)},
		Handler{Name: "hideme", Help: "hideme: 不让别人看到我的训练记录", Process: TextArgs(h.hideme)},
		Handler{Name: "showme", Help: "showme: 公开我的训练记录", Process: TextArgs(h.showme)},
		Handler{
			Name:    "challenge",
			Help:    "challenge [list|show|recalculate|<挑战>]: 查看进度、列出挑战、重新计算或参加挑战",
			Process: TextArgs(h.challenge),
		},
		Handler{Name: "addworkout", Help: "addworkout <项目> <描述>: 添加训练项目(管理员)", Process: TextArgs(h.addWorkout)},
	)
}

func (h *Handlers) isAdmin(u *db.User) bool {
	_, ok := h.admins[u.ID]
	return ok
}

// help 列出全部命令或者单个命令的帮助
func (h *Handlers) help(_ context.Context, _ *Call, _ string, args []string) (string, error) {
	if len(args) > 0 {
		if handler, ok := h.registry.Lookup(args[0]); ok {
			return handler.Help, nil
		}
		return "", domainErr("没有这个命令: %s", args[0])
	}
	lines := []string{"支持的命令:"}
	for _, handler := range h.registry.Handlers() {
		lines = append(lines, handler.Help)
	}
	lines = append(lines, h.registry.Fallback().Help)
	return strings.Join(lines, "\n"), nil
}

// list 按前缀分组列出训练项目
func (h *Handlers) list(ctx context.Context, c *Call, _ string, _ []string) (string, error) {
	workouts, err := c.Store.ListWorkouts(ctx, false)
	if err != nil {
		return "", err
	}
	if len(workouts) == 0 {
		return "还没有训练项目", nil
	}
	return "支持的训练项目:\n" + strings.Join(GroupWorkouts(workouts), "\n"), nil
}

func (h *Handlers) tutorial(_ context.Context, _ *Call, _ string, args []string) (string, error) {
	if len(args) == 0 {
		return "教程还在编写中", nil
	}
	return fmt.Sprintf("%s 的教程还在编写中", args[0]), nil
}

func (h *Handlers) rank(_ context.Context, _ *Call, _ string, _ []string) (string, error) {
	return "排行榜还在开发中", nil
}

func (h *Handlers) hideme(ctx context.Context, c *Call, _ string, _ []string) (string, error) {
	if err := c.Store.SetHidden(ctx, c.User.ID, true); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s 的训练记录已隐藏", c.User.Name), nil
}

func (h *Handlers) showme(ctx context.Context, c *Call, _ string, _ []string) (string, error) {
	if err := c.Store.SetHidden(ctx, c.User.ID, false); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s 的训练记录已公开", c.User.Name), nil
}

type dayGroup struct {
	date string
	desc string
	reps []int
}

// show 最近几天的训练记录，按日期和项目分组
func (h *Handlers) show(ctx context.Context, c *Call, _ string, args []string) (string, error) {
	target := c.User
	if len(args) > 0 && args[0] != c.User.Name {
		u, err := c.Store.FindUser(ctx, args[0])
		if errors.Is(err, db.ErrNotFound) {
			return "", domainErr("用户 %s 不存在", args[0])
		}
		if err != nil {
			return "", err
		}
		if u.Hidden {
			return "", domainErr("%s 隐藏了训练记录", u.Name)
		}
		target = u
	}

	now := c.Now.In(h.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, h.loc)
	since := today.AddDate(0, 0, -(h.recentDays - 1))
	records, err := c.Store.RecordsSince(ctx, target.ID, since)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return fmt.Sprintf("%s 最近%d天没有训练记录", target.Name, h.recentDays), nil
	}

	var groups []*dayGroup
	index := map[[2]string]*dayGroup{}
	for _, r := range records {
		key := [2]string{r.Ts.In(h.loc).Format(common.DateLayout), r.Workout.Description}
		g, ok := index[key]
		if !ok {
			g = &dayGroup{date: key[0], desc: key[1]}
			index[key] = g
			groups = append(groups, g)
		}
		g.reps = append(g.reps, r.Times)
	}
	lines := []string{fmt.Sprintf("%s 最近%d天的训练记录:", target.Name, h.recentDays)}
	for _, g := range groups {
		lines = append(lines, fmt.Sprintf("%s %s: %s", g.date, g.desc, RunLength(g.reps)))
	}
	return strings.Join(lines, "\n"), nil
}

// challenge 没有参数时有进度就显示进度，否则列出挑战
func (h *Handlers) challenge(ctx context.Context, c *Call, _ string, args []string) (string, error) {
	if len(args) > 1 {
		return "", domainErr("格式应为: challenge [list|show|recalculate|<挑战>]")
	}
	if len(args) == 0 {
		progresses, err := c.Store.ProgressesForUser(ctx, c.User.ID)
		if err != nil {
			return "", err
		}
		if len(progresses) == 0 {
			return h.engine.ListChallenges(ctx, c.Store)
		}
		return h.engine.ShowProgresses(ctx, c.Store, c.User)
	}

	switch op := args[0]; op {
	case "list":
		return h.engine.ListChallenges(ctx, c.Store)
	case "show":
		return h.engine.ShowProgresses(ctx, c.Store, c.User)
	case "recalculate":
		progresses, err := h.engine.RecalculateForUser(ctx, c.Store, c.User)
		if err != nil {
			return "", err
		}
		if len(progresses) == 0 {
			return fmt.Sprintf("%s 没有参加任何挑战", c.User.Name), nil
		}
		return "重新计算完成:\n" + h.engine.RenderAll(progresses), nil
	default:
		return h.join(ctx, c, op)
	}
}

func (h *Handlers) join(ctx context.Context, c *Call, name string) (string, error) {
	p, err := h.engine.Join(ctx, c.Store, c.User, name)
	switch {
	case err == nil:
		return fmt.Sprintf("%s 开始挑战 %s", c.User.Name, p.Challenge.Description), nil
	case errors.Is(err, challenge.ErrChallengeNotFound):
		return "", domainErr("不存在该挑战项目: %s", name)
	case errors.Is(err, challenge.ErrChallengeClosed):
		return "", domainErr("挑战-%s 已经结束，不能再参加", name)
	case errors.Is(err, challenge.ErrAlreadyFinished):
		return "", domainErr("%s 已经完成了挑战-%s", c.User.Name, describe(p, name))
	case errors.Is(err, challenge.ErrAlreadyJoined):
		return "", domainErr("%s 已经参加了挑战-%s", c.User.Name, describe(p, name))
	case errors.Is(err, challenge.ErrNoDefinition):
		h.log.Warn("join challenge without definition", zap.String("challenge", name), zap.Error(err))
		return "", domainErr("抱歉，挑战活动-%s 的规则还没有开发完成.", name)
	default:
		return "", err
	}
}

func describe(p *db.ChallengeProgress, name string) string {
	if p != nil && p.Challenge.Description != "" {
		return p.Challenge.Description
	}
	return name
}

// addWorkout 管理员添加训练项目，名字不能和命令冲突
func (h *Handlers) addWorkout(ctx context.Context, c *Call, _ string, args []string) (string, error) {
	if !h.isAdmin(c.User) {
		return "", domainErr("只有管理员可以添加训练项目")
	}
	if len(args) < 2 {
		return "", domainErr("格式应为: addworkout <项目> <描述>")
	}
	name, desc := args[0], strings.Join(args[1:], " ")
	w, err := h.createWorkout(ctx, c, name, desc)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("添加训练项目 %s: %s", w.Name, w.Description), nil
}

func (h *Handlers) createWorkout(ctx context.Context, c *Call, name, desc string) (*db.Workout, error) {
	if h.registry.IsReserved(name) {
		return nil, domainErr("%s 是保留的命令名，不能作为训练项目", name)
	}
	w := &db.Workout{Name: name, Description: desc}
	err := c.Store.CreateWorkout(ctx, w)
	if errors.Is(err, db.ErrDuplicate) {
		return nil, domainErr("项目: %s 已经存在", name)
	}
	if err != nil {
		return nil, err
	}
	h.log.Info("workout created", zap.String("workout", name), zap.String("by", c.User.Name))
	return w, nil
}

// workout 记录训练并更新挑战进度
func (h *Handlers) workout(ctx context.Context, c *Call, name string, reps []int) (string, error) {
	if len(reps) == 0 {
		return "", domainErr("没有可以记录的次数")
	}
	w, err := c.Store.FindWorkout(ctx, name)
	if errors.Is(err, db.ErrNotFound) {
		if !h.isAdmin(c.User) {
			return "", domainErr("项目: %s 不存在，发送 list 查看支持的项目", name)
		}
		w, err = h.createWorkout(ctx, c, name, name)
	}
	if err != nil {
		return "", err
	}

	records, err := c.Store.AddRecords(ctx, c.User.ID, w, reps, c.Now)
	if err != nil {
		return "", err
	}
	observability.RecordWorkoutRecords(len(records))
	updated, err := h.engine.UpdateForUser(ctx, c.Store, c.User, records)
	if err != nil {
		return "", err
	}

	lines := []string{fmt.Sprintf("%s 完成 %s: %s", c.User.Name, w.Description, RunLength(reps))}
	if len(updated) > 0 {
		lines = append(lines, h.engine.RenderAll(updated))
	}
	return strings.Join(lines, "\n"), nil
}
