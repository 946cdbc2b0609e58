package challenge

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

var (
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrChallengeClosed   = errors.New("challenge closed")
	ErrAlreadyJoined     = errors.New("challenge already joined")
	ErrAlreadyFinished   = errors.New("challenge already finished")
)

// Store 引擎需要的持久化操作，db.Store 实现了它
type Store interface {
	FindChallenge(ctx context.Context, name string) (*db.Challenge, error)
	ListOpenChallenges(ctx context.Context) ([]db.Challenge, error)
	ProgressesForUser(ctx context.Context, userID uint) ([]db.ChallengeProgress, error)
	FindProgress(ctx context.Context, userID, challengeID uint) (*db.ChallengeProgress, error)
	CreateProgress(ctx context.Context, p *db.ChallengeProgress) error
	SaveProgress(ctx context.Context, p *db.ChallengeProgress) error
	MaxRecordID(ctx context.Context) (uint, error)
	RecordsAfter(ctx context.Context, userID, afterID uint) ([]db.WorkOutRecord, error)
}

// Engine 把新记录应用到挑战进度上，本身不持有状态
type Engine struct {
	loc *time.Location
	log *zap.Logger
}

func NewEngine(loc *time.Location, log *zap.Logger) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{loc: loc, log: log}
}

// Definition 找到挑战对应的规则
func (e *Engine) Definition(c *db.Challenge) (Definition, error) {
	def, err := NewDefinition(c, e.loc, e.log)
	if err != nil {
		return nil, err
	}
	if !def.Matches(c) {
		return nil, fmt.Errorf("%w: %s is not a %s challenge", ErrNoDefinition, c.Name, def.Kind())
	}
	return def, nil
}

// Join 参加挑战，起始游标是当前最大记录 ID，加入之前的记录不计入
func (e *Engine) Join(ctx context.Context, s Store, user *db.User, name string) (*db.ChallengeProgress, error) {
	ch, err := s.FindChallenge(ctx, name)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrChallengeNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	if ch.Closed {
		return nil, fmt.Errorf("%w: %s", ErrChallengeClosed, name)
	}
	existing, err := s.FindProgress(ctx, user.ID, ch.ID)
	switch {
	case err == nil && existing.Finished:
		return existing, fmt.Errorf("%w: %s", ErrAlreadyFinished, name)
	case err == nil:
		return existing, fmt.Errorf("%w: %s", ErrAlreadyJoined, name)
	case !errors.Is(err, db.ErrNotFound):
		return nil, err
	}
	def, err := e.Definition(ch)
	if err != nil {
		return nil, err
	}
	start, err := s.MaxRecordID(ctx)
	if err != nil {
		return nil, err
	}
	p := &db.ChallengeProgress{
		UserID:         user.ID,
		ChallengeID:    ch.ID,
		StartRecordID:  start,
		LatestRecordID: start,
		State:          def.InitialState(),
	}
	if err := s.CreateProgress(ctx, p); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyJoined, name)
		}
		return nil, err
	}
	p.User = *user
	p.Challenge = *ch
	e.log.Info("challenge joined", zap.String("user", user.Name), zap.String("challenge", ch.Name), zap.Uint("start_record_id", start))
	return p, nil
}

// UpdateForUser 按顺序应用新记录，只返回进度有变化的条目
func (e *Engine) UpdateForUser(ctx context.Context, s Store, user *db.User, records []db.WorkOutRecord) ([]db.ChallengeProgress, error) {
	if len(records) == 0 {
		return nil, nil
	}
	progresses, err := s.ProgressesForUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load progresses: %w", err)
	}
	var updated []db.ChallengeProgress
	for i := range progresses {
		p := &progresses[i]
		if p.Finished {
			continue
		}
		p.User = *user
		def, err := e.Definition(&p.Challenge)
		if err != nil {
			e.log.Warn("no definition found, skip progress", zap.Uint("progress_id", p.ID), zap.Error(err))
			continue
		}
		cursor := p.LatestRecordID
		changed := false
		for j := range records {
			changed = e.apply(def, p, &records[j]) || changed
		}
		if p.LatestRecordID == cursor {
			continue
		}
		if err := s.SaveProgress(ctx, p); err != nil {
			return nil, fmt.Errorf("save progress %d: %w", p.ID, err)
		}
		if changed {
			observability.RecordProgressUpdate(string(def.Kind()))
			updated = append(updated, *p)
		}
	}
	return updated, nil
}

// RecalculateForUser 重置所有进度并重放加入之后的记录
func (e *Engine) RecalculateForUser(ctx context.Context, s Store, user *db.User) ([]db.ChallengeProgress, error) {
	progresses, err := s.ProgressesForUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load progresses: %w", err)
	}
	if len(progresses) == 0 {
		return nil, nil
	}
	from := progresses[0].StartRecordID
	for _, p := range progresses {
		if p.StartRecordID < from {
			from = p.StartRecordID
		}
	}
	records, err := s.RecordsAfter(ctx, user.ID, from)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}

	var result []db.ChallengeProgress
	for i := range progresses {
		p := &progresses[i]
		p.User = *user
		def, err := e.Definition(&p.Challenge)
		if err != nil {
			e.log.Warn("no definition found, skip progress", zap.Uint("progress_id", p.ID), zap.Error(err))
			continue
		}
		p.Achieved = 0
		p.Finished = false
		p.LatestRecordID = p.StartRecordID
		p.State = def.InitialState()
		for j := range records {
			if records[j].ID > p.StartRecordID {
				e.apply(def, p, &records[j])
			}
		}
		if err := s.SaveProgress(ctx, p); err != nil {
			return nil, fmt.Errorf("save progress %d: %w", p.ID, err)
		}
		result = append(result, *p)
	}
	e.log.Info("challenge progress recalculated", zap.String("user", user.Name), zap.Int("progresses", len(result)), zap.Int("records", len(records)))
	return result, nil
}

// apply 触发判断、更新、推进游标
func (e *Engine) apply(def Definition, p *db.ChallengeProgress, r *db.WorkOutRecord) bool {
	if p.Finished || r.ID <= p.LatestRecordID {
		return false
	}
	if !def.IsTriggered(r) {
		return false
	}
	before := def.Render(p)
	updated := def.ApplyUpdate(p, r)
	p.LatestRecordID = r.ID
	e.log.Debug("update progress",
		zap.String("user", p.User.Name),
		zap.String("from", before),
		zap.String("to", def.Render(p)),
		zap.Uint("record_id", r.ID))
	return updated
}

// Render 进度的文字描述
func (e *Engine) Render(p *db.ChallengeProgress) string {
	def, err := e.Definition(&p.Challenge)
	if err != nil {
		e.log.Warn("no definition found for render", zap.String("challenge", p.Challenge.Name), zap.Error(err))
		return ""
	}
	return def.Render(p)
}

// RenderAll 逐行渲染，没有规则的挑战跳过
func (e *Engine) RenderAll(progresses []db.ChallengeProgress) string {
	lines := make([]string, 0, len(progresses))
	for i := range progresses {
		if line := e.Render(&progresses[i]); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// ShowProgresses 用户参加的所有挑战的进度
func (e *Engine) ShowProgresses(ctx context.Context, s Store, user *db.User) (string, error) {
	progresses, err := s.ProgressesForUser(ctx, user.ID)
	if err != nil {
		return "", err
	}
	if len(progresses) == 0 {
		return fmt.Sprintf("%s 没有参加任何挑战", user.Name), nil
	}
	for i := range progresses {
		progresses[i].User = *user
	}
	return e.RenderAll(progresses), nil
}

// ListChallenges 正在进行中的挑战
func (e *Engine) ListChallenges(ctx context.Context, s Store) (string, error) {
	challenges, err := s.ListOpenChallenges(ctx)
	if err != nil {
		return "", err
	}
	if len(challenges) == 0 {
		return "目前没有进行中的挑战", nil
	}
	var sb strings.Builder
	sb.WriteString("正在进行中的挑战项目有:")
	for _, c := range challenges {
		fmt.Fprintf(&sb, "\n%s :: %s", c.Name, c.Description)
	}
	return sb.String(), nil
}
