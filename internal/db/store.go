package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// Store 封装所有持久化操作，事务内外用法一致
type Store struct {
	db *gorm.DB
}

func NewStore(gdb *gorm.DB) *Store {
	return &Store{db: gdb}
}

func (s *Store) DB() *gorm.DB { return s.db }

// Transaction 在同一个事务里执行 fn，fn 返回错误则全部回滚
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}

// GetOrCreateUser 通过名字获取用户，不存在则创建
func (s *Store) GetOrCreateUser(ctx context.Context, name string) (*User, bool, error) {
	user, err := s.FindUser(ctx, name)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}
	user = &User{Name: name}
	// 冲突时不报错，postgres 的事务不会因此中止
	res := s.conn(ctx).Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).Create(user)
	if res.Error != nil {
		return nil, false, fmt.Errorf("create user %s: %w", name, res.Error)
	}
	if res.RowsAffected == 0 {
		// 并发请求已经创建
		user, err = s.FindUser(ctx, name)
		return user, false, err
	}
	return user, true, nil
}

func (s *Store) FindUser(ctx context.Context, name string) (*User, error) {
	var user User
	if err := s.conn(ctx).Where("name = ?", name).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// LockUser 锁住用户行，同一用户的命令串行执行
func (s *Store) LockUser(ctx context.Context, userID uint) (*User, error) {
	var user User
	err := s.conn(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, userID).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *Store) SetHidden(ctx context.Context, userID uint, hidden bool) error {
	return s.conn(ctx).Model(&User{}).Where("id = ?", userID).Update("hidden", hidden).Error
}

func (s *Store) SetChatID(ctx context.Context, userID uint, chatID string) error {
	return s.conn(ctx).Model(&User{}).Where("id = ?", userID).Update("chat_id", chatID).Error
}

// RenameUser 修改用户名
func (s *Store) RenameUser(ctx context.Context, oldName, newName string) error {
	user, err := s.FindUser(ctx, oldName)
	if err != nil {
		return err
	}
	err = s.conn(ctx).Model(user).Update("name", newName).Error
	return translate(err)
}

func (s *Store) AddCommand(ctx context.Context, userID uint, text string) error {
	if r := []rune(text); len(r) > 256 {
		text = string(r[:256])
	}
	return s.conn(ctx).Create(&Command{UserID: userID, Text: text}).Error
}

func (s *Store) FindWorkout(ctx context.Context, name string) (*Workout, error) {
	var w Workout
	if err := s.conn(ctx).Where("name = ?", name).First(&w).Error; err != nil {
		return nil, translate(err)
	}
	return &w, nil
}

func (s *Store) CreateWorkout(ctx context.Context, w *Workout) error {
	return translate(s.conn(ctx).Create(w).Error)
}

// ListWorkouts 按名字排序返回训练项目
func (s *Store) ListWorkouts(ctx context.Context, includeClosed bool) ([]Workout, error) {
	var workouts []Workout
	q := s.conn(ctx).Order("name asc")
	if !includeClosed {
		q = q.Where("closed = ?", false)
	}
	if err := q.Find(&workouts).Error; err != nil {
		return nil, err
	}
	return workouts, nil
}

// AddRecords 追加一组记录，返回带 ID 的记录
func (s *Store) AddRecords(ctx context.Context, userID uint, workout *Workout, reps []int, ts time.Time) ([]WorkOutRecord, error) {
	if len(reps) == 0 {
		return nil, nil
	}
	records := make([]WorkOutRecord, len(reps))
	for i, times := range reps {
		records[i] = WorkOutRecord{UserID: userID, WorkoutID: workout.ID, Times: times, Ts: ts.UTC()}
	}
	if err := s.conn(ctx).Omit(clause.Associations).Create(&records).Error; err != nil {
		return nil, fmt.Errorf("insert records: %w", err)
	}
	for i := range records {
		records[i].Workout = *workout
	}
	return records, nil
}

// MaxRecordID 当前最大的记录 ID，没有记录时为 0
func (s *Store) MaxRecordID(ctx context.Context) (uint, error) {
	var max int64
	err := s.conn(ctx).Model(&WorkOutRecord{}).Select("COALESCE(MAX(id), 0)").Scan(&max).Error
	if err != nil {
		return 0, err
	}
	return uint(max), nil
}

// RecordsAfter 用户 ID 大于 afterID 的记录，按 ID 升序
func (s *Store) RecordsAfter(ctx context.Context, userID, afterID uint) ([]WorkOutRecord, error) {
	var records []WorkOutRecord
	err := s.conn(ctx).Preload("Workout").
		Where("user_id = ? AND id > ?", userID, afterID).
		Order("id asc").Find(&records).Error
	return records, err
}

// RecordsSince 用户在 since 之后的记录，按 ID 升序
func (s *Store) RecordsSince(ctx context.Context, userID uint, since time.Time) ([]WorkOutRecord, error) {
	var records []WorkOutRecord
	err := s.conn(ctx).Preload("Workout").
		Where("user_id = ? AND ts >= ?", userID, since.UTC()).
		Order("id asc").Find(&records).Error
	return records, err
}

func (s *Store) HasRecordSince(ctx context.Context, userID uint, since time.Time) (bool, error) {
	var count int64
	err := s.conn(ctx).Model(&WorkOutRecord{}).Where("user_id = ? AND ts >= ?", userID, since.UTC()).Count(&count).Error
	return count > 0, err
}

func (s *Store) FindChallenge(ctx context.Context, name string) (*Challenge, error) {
	var c Challenge
	if err := s.conn(ctx).Where("name = ?", name).First(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (s *Store) CreateChallenge(ctx context.Context, c *Challenge) error {
	return translate(s.conn(ctx).Create(c).Error)
}

func (s *Store) ListOpenChallenges(ctx context.Context) ([]Challenge, error) {
	var challenges []Challenge
	err := s.conn(ctx).Where("closed = ?", false).Order("id asc").Find(&challenges).Error
	return challenges, err
}

// ProgressesForUser 用户参加的所有挑战，带上挑战定义
func (s *Store) ProgressesForUser(ctx context.Context, userID uint) ([]ChallengeProgress, error) {
	var progresses []ChallengeProgress
	err := s.conn(ctx).Preload("Challenge").Preload("User").
		Where("user_id = ?", userID).Order("id asc").Find(&progresses).Error
	return progresses, err
}

func (s *Store) FindProgress(ctx context.Context, userID, challengeID uint) (*ChallengeProgress, error) {
	var p ChallengeProgress
	err := s.conn(ctx).Preload("Challenge").Preload("User").
		Where("user_id = ? AND challenge_id = ?", userID, challengeID).First(&p).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// CreateProgress 创建进度，违反 (用户, 挑战) 唯一约束时返回 ErrDuplicate
func (s *Store) CreateProgress(ctx context.Context, p *ChallengeProgress) error {
	return translate(s.conn(ctx).Omit(clause.Associations).Create(p).Error)
}

// SaveProgress 只写回可变字段
func (s *Store) SaveProgress(ctx context.Context, p *ChallengeProgress) error {
	return s.conn(ctx).Model(p).Omit(clause.Associations).
		Select("achieved", "finished", "latest_record_id", "state", "memo", "updated_at").
		Updates(p).Error
}

// UsersWithOpenStreaks 有未完成连续打卡挑战、并且知道会话的用户
func (s *Store) UsersWithOpenStreaks(ctx context.Context) ([]User, error) {
	var users []User
	err := s.conn(ctx).Model(&User{}).Distinct("users.*").
		Joins("JOIN challenge_progresses p ON p.user_id = users.id AND p.finished = ?", false).
		Joins("JOIN challenges c ON c.id = p.challenge_id AND c.kind = ?", string(KindStreak)).
		Where("users.chat_id <> ''").
		Order("users.id asc").
		Find(&users).Error
	return users, err
}
