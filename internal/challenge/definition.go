// Package challenge implements challenge progress rules and the engine that
// applies new workout records to a user's progresses.
package challenge

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"js-backend/internal/common"
	"js-backend/internal/db"
)

// ErrNoDefinition 挑战的 Kind 没有对应的规则
var ErrNoDefinition = errors.New("no challenge definition")

// Definition 一类挑战的规则
type Definition interface {
	Kind() db.ChallengeKind
	// Matches 该规则是否负责这个挑战
	Matches(c *db.Challenge) bool
	// IsTriggered 这条记录是否计入挑战
	IsTriggered(r *db.WorkOutRecord) bool
	// InitialState 进度的附加状态初始值
	InitialState() datatypes.JSON
	// ApplyUpdate 用新记录更新进度，返回进度是否变化；已完成的进度不再变化
	ApplyUpdate(p *db.ChallengeProgress, r *db.WorkOutRecord) bool
	Render(p *db.ChallengeProgress) string
}

// NewDefinition 按挑战的 Kind 构造规则，参数来自挑战本身
func NewDefinition(c *db.Challenge, loc *time.Location, log *zap.Logger) (Definition, error) {
	prefixes := splitPrefixes(c.Workouts)
	switch c.Kind {
	case db.KindCount:
		if len(prefixes) == 0 {
			return nil, fmt.Errorf("%w: %s has no workout prefix", ErrNoDefinition, c.Name)
		}
		return &countRule{prefixes: prefixes}, nil
	case db.KindWeighted:
		if len(prefixes) == 0 {
			return nil, fmt.Errorf("%w: %s has no workout prefix", ErrNoDefinition, c.Name)
		}
		return &weightedRule{prefixes: prefixes}, nil
	case db.KindStreak:
		if loc == nil {
			loc = time.UTC
		}
		if log == nil {
			log = zap.NewNop()
		}
		return &streakRule{loc: loc, log: log}, nil
	default:
		return nil, fmt.Errorf("%w: %s has kind %q", ErrNoDefinition, c.Name, c.Kind)
	}
}

func splitPrefixes(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// render 未完成时显示进度，完成后显示祝贺；总数和描述实时读取挑战
func render(p *db.ChallengeProgress, achieved, total string, done bool) string {
	desc := p.Challenge.Description
	if done {
		return fmt.Sprintf("👍恭喜%s完成%s :: %s/%s", p.User.Name, desc, achieved, total)
	}
	return fmt.Sprintf("💪️%s %s :: %s/%s", p.User.Name, desc, achieved, total)
}

// reach 累加并检查是否完成
func reach(p *db.ChallengeProgress, amount int) bool {
	total := p.Challenge.Total
	if p.Finished || p.Achieved >= total {
		return false
	}
	p.Achieved += amount
	if p.Achieved >= total {
		p.Finished = true
	}
	return true
}

// countRule 累计次数，例如壶铃摆荡、引体向上
type countRule struct {
	prefixes []string
}

func (d *countRule) Kind() db.ChallengeKind { return db.KindCount }

func (d *countRule) Matches(c *db.Challenge) bool { return c.Kind == db.KindCount }

func (d *countRule) IsTriggered(r *db.WorkOutRecord) bool {
	for _, prefix := range d.prefixes {
		if strings.HasPrefix(r.Workout.Name, prefix) {
			return true
		}
	}
	return false
}

func (d *countRule) InitialState() datatypes.JSON { return nil }

func (d *countRule) ApplyUpdate(p *db.ChallengeProgress, r *db.WorkOutRecord) bool {
	return reach(p, r.Times)
}

func (d *countRule) Render(p *db.ChallengeProgress) string {
	return render(p, strconv.Itoa(p.Achieved), strconv.Itoa(p.Challenge.Total), p.Achieved >= p.Challenge.Total)
}

// weightedRule 累计负重，项目名形如 squat-60，按公斤计
type weightedRule struct {
	prefixes []string
}

func (d *weightedRule) Kind() db.ChallengeKind { return db.KindWeighted }

func (d *weightedRule) Matches(c *db.Challenge) bool { return c.Kind == db.KindWeighted }

// weight 解析项目名里的重量
func (d *weightedRule) weight(name string) (int, bool) {
	parts := strings.SplitN(name, "-", 2)
	if len(parts) != 2 {
		return 0, false
	}
	matched := false
	for _, prefix := range d.prefixes {
		if parts[0] == prefix {
			matched = true
			break
		}
	}
	if !matched || parts[1] == "" {
		return 0, false
	}
	for _, c := range parts[1] {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	kg, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	return kg, true
}

func (d *weightedRule) IsTriggered(r *db.WorkOutRecord) bool {
	_, ok := d.weight(r.Workout.Name)
	return ok
}

func (d *weightedRule) InitialState() datatypes.JSON { return nil }

func (d *weightedRule) ApplyUpdate(p *db.ChallengeProgress, r *db.WorkOutRecord) bool {
	kg, ok := d.weight(r.Workout.Name)
	if !ok {
		return false
	}
	return reach(p, kg*r.Times)
}

func (d *weightedRule) Render(p *db.ChallengeProgress) string {
	tons := func(kg int) string { return strconv.FormatFloat(float64(kg)/1000, 'f', -1, 64) }
	return render(p, tons(p.Achieved), tons(p.Challenge.Total), p.Achieved >= p.Challenge.Total)
}

// streakState 连续打卡的附加状态
type streakState struct {
	LastRecordAt *time.Time `json:"last_record_at,omitempty"`
}

// streakRule 连续打卡，任何记录都计入，间隔超过 48 小时重新计数
type streakRule struct {
	loc *time.Location
	log *zap.Logger
}

func (d *streakRule) Kind() db.ChallengeKind { return db.KindStreak }

func (d *streakRule) Matches(c *db.Challenge) bool { return c.Kind == db.KindStreak }

func (d *streakRule) IsTriggered(r *db.WorkOutRecord) bool { return true }

func (d *streakRule) InitialState() datatypes.JSON { return datatypes.JSON("{}") }

func (d *streakRule) ApplyUpdate(p *db.ChallengeProgress, r *db.WorkOutRecord) bool {
	if p.Finished || p.Achieved >= p.Challenge.Total {
		return false
	}
	st := decodeStreak(p.State)
	last := st.LastRecordAt
	ts := r.Ts
	st.LastRecordAt = &ts
	p.State = encodeStreak(st)

	if last == nil {
		return d.count(p, 1)
	}
	if sameDay(*last, r.Ts, d.loc) {
		// 当天加入挑战时还没有计数
		if p.Achieved == 0 {
			p.Achieved++
			return true
		}
		return false
	}
	delta := r.Ts.Sub(*last)
	if delta < common.StreakGrace {
		return d.count(p, p.Achieved+1)
	}
	d.log.Info("休息时间超过48小时，连续打卡重新计数",
		zap.String("user", p.User.Name),
		zap.String("challenge", p.Challenge.Name),
		zap.Int("previous", p.Achieved),
		zap.Duration("gap", delta))
	return d.count(p, 1)
}

func (d *streakRule) count(p *db.ChallengeProgress, achieved int) bool {
	p.Achieved = achieved
	if p.Achieved >= p.Challenge.Total {
		p.Finished = true
	}
	return true
}

func (d *streakRule) Render(p *db.ChallengeProgress) string {
	return render(p, strconv.Itoa(p.Achieved), strconv.Itoa(p.Challenge.Total), p.Achieved >= p.Challenge.Total)
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	return a.In(loc).Format(common.DateLayout) == b.In(loc).Format(common.DateLayout)
}

func decodeStreak(raw datatypes.JSON) streakState {
	var st streakState
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &st)
	}
	return st
}

func encodeStreak(st streakState) datatypes.JSON {
	data, _ := json.Marshal(st)
	return datatypes.JSON(data)
}
