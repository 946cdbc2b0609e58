package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"js-backend/internal/db"
	"js-backend/internal/observability"
)

// InternalErrorReply 内部错误时回复给用户的文本
const InternalErrorReply = "服务器开小差了，请稍后再试"

// Request 一条收到的聊天命令
type Request struct {
	User   string
	ChatID string
	Text   string
}

// Processor 每条命令一个事务：创建用户、记录命令、执行处理函数
// 处理函数出错时整条命令回滚
type Processor struct {
	store    *db.Store
	registry *Registry
	log      *zap.Logger
	now      func() time.Time
}

type ProcessorOption func(*Processor)

// WithClock 替换当前时间，测试用
func WithClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) { p.now = now }
}

func NewProcessor(store *db.Store, registry *Registry, log *zap.Logger, opts ...ProcessorOption) *Processor {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Processor{store: store, registry: registry, log: log, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process 执行命令并返回回复文本
// 面向用户的错误转换成回复，返回的 error 只表示内部错误，此时回复为 InternalErrorReply
func (p *Processor) Process(ctx context.Context, req Request) (string, error) {
	line := strings.TrimSpace(req.Text)
	name := strings.TrimSpace(req.User)
	if name == "" {
		return InternalErrorReply, errors.New("command without user")
	}

	handler, err := p.registry.Resolve(line)
	if err != nil {
		return p.finish("", line, name, "", err)
	}

	var reply string
	err = p.store.Transaction(ctx, func(tx *db.Store) error {
		user, created, err := tx.GetOrCreateUser(ctx, name)
		if err != nil {
			return err
		}
		if created {
			p.log.Info("user created", zap.String("user", name), zap.Uint("id", user.ID))
		}
		// 同一用户的命令串行执行
		if user, err = tx.LockUser(ctx, user.ID); err != nil {
			return fmt.Errorf("lock user %s: %w", name, err)
		}
		if req.ChatID != "" && req.ChatID != user.ChatID {
			if err := tx.SetChatID(ctx, user.ID, req.ChatID); err != nil {
				return err
			}
			user.ChatID = req.ChatID
		}
		if err := tx.AddCommand(ctx, user.ID, line); err != nil {
			return fmt.Errorf("audit command: %w", err)
		}
		reply, err = handler.Process(ctx, &Call{Store: tx, User: user, Now: p.now(), Line: line})
		return err
	})
	return p.finish(handler.Name, line, name, reply, err)
}

func (p *Processor) finish(handler, line, user, reply string, err error) (string, error) {
	text, outcome, userFacing := ReplyFor(err)
	observability.RecordCommand(handler, string(outcome))
	switch {
	case err == nil:
		p.log.Debug("command processed", zap.String("user", user), zap.String("handler", handler), zap.String("line", line))
		return reply, nil
	case userFacing:
		p.log.Info("command rejected", zap.String("user", user), zap.String("handler", handler),
			zap.String("line", line), zap.String("reason", text))
		return text, nil
	default:
		p.log.Error("command failed", zap.String("user", user), zap.String("handler", handler),
			zap.String("line", line), zap.Error(err))
		return InternalErrorReply, err
	}
}
