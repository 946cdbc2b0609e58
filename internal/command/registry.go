// Package command routes chat command lines to their handlers and runs each
// command as one unit of work against the store.
package command

import (
	"context"
	"fmt"
	"time"

	"js-backend/internal/common"
	"js-backend/internal/db"
	"js-backend/internal/parser"
)

// Call 一条命令的执行环境，Store 绑定在命令的事务上
type Call struct {
	Store *db.Store
	User  *db.User
	Now   time.Time
	Line  string
}

// ProcessFunc 处理一行命令，返回回复文本
type ProcessFunc func(ctx context.Context, c *Call) (string, error)

// TextFunc 文本参数模式
type TextFunc func(ctx context.Context, c *Call, cmd string, args []string) (string, error)

// RecordFunc 记录模式，例如 kbsw-16 50x3
type RecordFunc func(ctx context.Context, c *Call, name string, reps []int) (string, error)

// TextArgs 绑定文本参数解析
func TextArgs(fn TextFunc) ProcessFunc {
	return func(ctx context.Context, c *Call) (string, error) {
		cmd, args, err := parser.ParseTextArguments(c.Line)
		if err != nil {
			return "", err
		}
		return fn(ctx, c, cmd, args)
	}
}

// Records 绑定记录解析
func Records(fn RecordFunc) ProcessFunc {
	return func(ctx context.Context, c *Call) (string, error) {
		name, reps, err := parser.ParseCommandWithRecords(c.Line)
		if err != nil {
			return "", err
		}
		return fn(ctx, c, name, reps)
	}
}

// Handler 一个已注册的命令
type Handler struct {
	Name string
	Help string
	// Match 为空时按命令名相等匹配
	Match   func(cmd string) bool
	Process ProcessFunc
}

func (h *Handler) matches(cmd string) bool {
	if h.Match != nil {
		return h.Match(cmd)
	}
	return cmd == h.Name
}

// Registry 有序的命令表，进程启动时构造一次
// 按注册顺序第一个匹配的命令胜出，都不匹配时当作训练项目简写
type Registry struct {
	handlers []Handler
	reserved map[string]struct{}
	fallback Handler
}

// NewRegistry 构造命令表，命令名重复或与保留字冲突时 panic
func NewRegistry(fallback Handler, handlers ...Handler) *Registry {
	r := &Registry{
		reserved: make(map[string]struct{}),
		fallback: fallback,
	}
	for _, kw := range common.ChallengeSubCommands {
		r.reserved[kw] = struct{}{}
	}
	names := make(map[string]struct{}, len(handlers))
	for _, h := range handlers {
		if h.Name == "" || h.Process == nil {
			panic("command: handler needs a name and a process func")
		}
		if _, ok := names[h.Name]; ok {
			panic(fmt.Sprintf("command: duplicate handler %q", h.Name))
		}
		names[h.Name] = struct{}{}
		r.reserved[h.Name] = struct{}{}
		r.handlers = append(r.handlers, h)
	}
	if fallback.Process == nil {
		panic("command: fallback handler needs a process func")
	}
	if _, ok := names[fallback.Name]; ok {
		panic(fmt.Sprintf("command: fallback %q shadows a named handler", fallback.Name))
	}
	return r
}

// IsReserved 命令名和 challenge 子命令都不能用作训练项目名
func (r *Registry) IsReserved(name string) bool {
	_, ok := r.reserved[name]
	return ok
}

// Resolve 找到处理这行命令的 Handler
func (r *Registry) Resolve(line string) (*Handler, error) {
	name := parser.CommandName(line)
	if name == "" {
		return nil, &unrecognizedError{}
	}
	for i := range r.handlers {
		if r.handlers[i].matches(name) {
			return &r.handlers[i], nil
		}
	}
	if r.IsReserved(name) {
		return nil, &unrecognizedError{name: name}
	}
	return &r.fallback, nil
}

// Handlers 按注册顺序返回命令
func (r *Registry) Handlers() []Handler {
	out := make([]Handler, len(r.handlers))
	copy(out, r.handlers)
	return out
}

func (r *Registry) Fallback() Handler { return r.fallback }

// Lookup 按名字找已注册的命令
func (r *Registry) Lookup(name string) (*Handler, bool) {
	for i := range r.handlers {
		if r.handlers[i].Name == name {
			return &r.handlers[i], true
		}
	}
	return nil, false
}
