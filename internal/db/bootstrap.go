package db

import (
	"context"
	"fmt"
)

var kettlebellWeights = []int{4, 6, 8, 10, 12, 14, 16, 20, 24, 28, 32}

// BuiltinWorkouts 内置训练项目
func BuiltinWorkouts() []Workout {
	var workouts []Workout
	for _, w := range kettlebellWeights {
		workouts = append(workouts,
			Workout{Name: fmt.Sprintf("kbsw-%d", w), Description: fmt.Sprintf("%d公斤壶铃摆荡", w)},
			Workout{Name: fmt.Sprintf("kbsq-%d", w), Description: fmt.Sprintf("%d公斤壶铃深蹲", w)},
		)
	}
	for w := 20; w <= 140; w += 20 {
		workouts = append(workouts, Workout{Name: fmt.Sprintf("squat-%d", w), Description: fmt.Sprintf("%d公斤负重深蹲", w)})
	}
	workouts = append(workouts,
		Workout{Name: "pullup", Description: "引体向上"},
		Workout{Name: "pbpress", Description: "双杠臂屈伸"},
		Workout{Name: "muscleup", Description: "双力臂"},
		Workout{Name: "pushup", Description: "俯卧撑"},
	)
	for i := range workouts {
		workouts[i].Builtin = true
	}
	return workouts
}

// BuiltinChallenges 内置挑战
func BuiltinChallenges() []Challenge {
	var challenges []Challenge
	count := func(prefix, desc string, totals ...int) {
		for _, total := range totals {
			challenges = append(challenges, Challenge{
				Name:        fmt.Sprintf("%s-%d", prefix, total),
				Description: fmt.Sprintf(desc, total),
				Kind:        KindCount,
				Workouts:    prefix,
				Total:       total,
			})
		}
	}
	count("kbsw", "壶铃摆荡%d次挑战", 1000, 3000, 5000, 10000)
	count("pullup", "引体向上%d次挑战", 100, 300, 500, 1000, 3000, 5000, 10000)
	count("pbpress", "双杠臂屈伸%d次挑战", 500, 1000, 3000, 5000, 10000)
	count("muscleup", "双力臂%d次挑战", 500, 1000)

	for _, tons := range []int{50, 100, 200, 400, 800} {
		challenges = append(challenges, Challenge{
			Name:        fmt.Sprintf("squat-%d", tons),
			Description: fmt.Sprintf("累计负重深蹲%d吨挑战", tons),
			Kind:        KindWeighted,
			Workouts:    "squat,kbsq",
			Total:       tons * 1000,
		})
	}
	for _, days := range []int{30, 60, 100} {
		challenges = append(challenges, Challenge{
			Name:        fmt.Sprintf("workout-%d", days),
			Description: fmt.Sprintf("连续打卡%d天挑战", days),
			Kind:        KindStreak,
			Total:       days,
		})
	}
	return challenges
}

// Bootstrap 写入内置项目和挑战，可以重复执行
// 内置项目的描述会被更新，已有挑战保持不变
func Bootstrap(ctx context.Context, s *Store) (workouts, challenges int, err error) {
	err = s.Transaction(ctx, func(tx *Store) error {
		for _, w := range BuiltinWorkouts() {
			w := w
			res := tx.conn(ctx).Where(Workout{Name: w.Name}).
				Assign(Workout{Description: w.Description, Builtin: true}).
				FirstOrCreate(&w)
			if res.Error != nil {
				return fmt.Errorf("bootstrap workout %s: %w", w.Name, res.Error)
			}
			workouts++
		}
		for _, c := range BuiltinChallenges() {
			c := c
			res := tx.conn(ctx).Where(Challenge{Name: c.Name}).Attrs(c).FirstOrCreate(&c)
			if res.Error != nil {
				return fmt.Errorf("bootstrap challenge %s: %w", c.Name, res.Error)
			}
			challenges++
		}
		return nil
	})
	return workouts, challenges, err
}
