package common

import "time"

const (
	// DefaultRecentDays show 命令默认展示的天数
	DefaultRecentDays = 3
	// StreakGrace 连续打卡允许的最长间隔
	StreakGrace = 48 * time.Hour
	// DefaultTimezone 日期统计使用的时区
	DefaultTimezone = "Asia/Shanghai"
	DateLayout      = "2006-01-02"
)

// DefaultAdminIDs 可以创建训练项目的用户
var DefaultAdminIDs = []uint{1, 2, 3}

// ChallengeSubCommands challenge 命令的子操作，不能作为挑战或训练项目名
var ChallengeSubCommands = []string{"list", "show", "recalculate"}
