package db

import (
	"time"

	"gorm.io/datatypes"
)

// User 群成员，第一次发命令时创建
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:80;uniqueIndex;not null" json:"name"`
	ChatID    string    `gorm:"size:64" json:"chat_id"` // 最近一次发言的会话，用于提醒
	Hidden    bool      `gorm:"not null;default:false" json:"hidden"`
	CreatedAt time.Time `json:"created_at"`
}

func (u User) String() string { return u.Name }

// Command 收到的原始命令，只做审计
type Command struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Text      string    `gorm:"size:256;not null" json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Workout 训练项目，例如 kbsw-16 表示 16 公斤壶铃摆荡
type Workout struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:80;uniqueIndex;not null" json:"name"`
	Description string    `gorm:"size:128" json:"description"`
	Builtin     bool      `gorm:"not null;default:false" json:"builtin"`
	Closed      bool      `gorm:"not null;default:false" json:"closed"` // 不在 list 中展示
	CreatedAt   time.Time `json:"created_at"`
}

// WorkOutRecord 一组训练记录，只追加不修改
// ID 全局递增，作为挑战进度的游标
type WorkOutRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	WorkoutID uint      `gorm:"index;not null" json:"workout_id"`
	Workout   Workout   `json:"workout"`
	Times     int       `gorm:"not null" json:"times"`
	Ts        time.Time `gorm:"index;not null" json:"ts"`
}

// ChallengeKind 决定挑战使用哪种进度规则
type ChallengeKind string

const (
	KindCount    ChallengeKind = "count"    // 累计次数
	KindWeighted ChallengeKind = "weighted" // 累计负重(公斤)
	KindStreak   ChallengeKind = "streak"   // 连续打卡天数
)

// Challenge 挑战定义
// Workouts 是逗号分隔的训练项目前缀，streak 类型忽略
// weighted 类型的 Total 以公斤为单位
type Challenge struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	Name        string        `gorm:"size:80;uniqueIndex;not null" json:"name"`
	Description string        `gorm:"size:128" json:"description"`
	Kind        ChallengeKind `gorm:"size:16" json:"kind"`
	Workouts    string        `gorm:"size:128" json:"workouts"`
	Total       int           `gorm:"not null" json:"total"`
	Closed      bool          `gorm:"not null;default:false" json:"closed"`
	CreatedAt   time.Time     `json:"created_at"`
}

// ChallengeProgress 用户在某个挑战上的进度，每个 (用户, 挑战) 只有一行
type ChallengeProgress struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	UserID         uint           `gorm:"not null;uniqueIndex:ux_progress_user_challenge,priority:1" json:"user_id"`
	User           User           `json:"-"`
	ChallengeID    uint           `gorm:"not null;uniqueIndex:ux_progress_user_challenge,priority:2" json:"challenge_id"`
	Challenge      Challenge      `json:"challenge"`
	Achieved       int            `gorm:"not null;default:0" json:"achieved"`
	Finished       bool           `gorm:"not null;default:false" json:"finished"`
	StartRecordID  uint           `gorm:"not null" json:"start_record_id"`
	LatestRecordID uint           `gorm:"not null" json:"latest_record_id"`
	State          datatypes.JSON `json:"state,omitempty"`
	Memo           string         `gorm:"size:256" json:"memo,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (ChallengeProgress) TableName() string { return "challenge_progresses" }

// AllModels 需要迁移的表
func AllModels() []interface{} {
	return []interface{}{&User{}, &Command{}, &Workout{}, &WorkOutRecord{}, &Challenge{}, &ChallengeProgress{}}
}
