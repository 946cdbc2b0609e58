package command

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"js-backend/internal/db"
)

// RunLength 相同的连续次数合并
//
//	[50, 50, 50, 60] -> "50x3,60"
func RunLength(reps []int) string {
	var parts []string
	for i := 0; i < len(reps); {
		j := i
		for j < len(reps) && reps[j] == reps[i] {
			j++
		}
		if n := j - i; n > 1 {
			parts = append(parts, fmt.Sprintf("%dx%d", reps[i], n))
		} else {
			parts = append(parts, strconv.Itoa(reps[i]))
		}
		i = j
	}
	return strings.Join(parts, ",")
}

type workoutGroup struct {
	prefix  string
	members []db.Workout
}

func groupPrefix(name string) string {
	prefix, _, _ := strings.Cut(name, "-")
	return prefix
}

// lessSuffix 数字后缀按数值排序，排在非数字后缀前面
func lessSuffix(a, b string) bool {
	na, errA := strconv.Atoi(strings.TrimPrefix(a, "-"))
	nb, errB := strconv.Atoi(strings.TrimPrefix(b, "-"))
	switch {
	case errA == nil && errB == nil:
		return na < nb
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a < b
	}
}

// GroupWorkouts 按 "-" 前的前缀分组，组内按重量排序
//
//	kbsw-4, kbsw-8, kbsw-12 -> kbsw[-4|-8|-12]: [4|8|12]公斤壶铃摆荡
func GroupWorkouts(workouts []db.Workout) []string {
	groups := map[string]*workoutGroup{}
	var order []string
	for _, w := range workouts {
		p := groupPrefix(w.Name)
		g, ok := groups[p]
		if !ok {
			g = &workoutGroup{prefix: p}
			groups[p] = g
			order = append(order, p)
		}
		g.members = append(g.members, w)
	}
	sort.Strings(order)

	lines := make([]string, 0, len(order))
	for _, p := range order {
		g := groups[p]
		if len(g.members) == 1 {
			w := g.members[0]
			lines = append(lines, fmt.Sprintf("%s: %s", w.Name, w.Description))
			continue
		}
		sort.SliceStable(g.members, func(i, j int) bool {
			return lessSuffix(strings.TrimPrefix(g.members[i].Name, p), strings.TrimPrefix(g.members[j].Name, p))
		})
		suffixes := make([]string, len(g.members))
		descs := make([]string, len(g.members))
		for i, w := range g.members {
			suffixes[i] = strings.TrimPrefix(w.Name, p)
			descs[i] = w.Description
		}
		lines = append(lines, fmt.Sprintf("%s[%s]: %s", p, strings.Join(suffixes, "|"), mergeDescriptions(descs)))
	}
	return lines
}

// mergeDescriptions 提取公共前后缀，数字不会被拆开
//
//	4公斤壶铃摆荡, 8公斤壶铃摆荡 -> [4|8]公斤壶铃摆荡
func mergeDescriptions(descs []string) string {
	runes := make([][]rune, len(descs))
	for i, d := range descs {
		runes[i] = []rune(d)
	}
	first := runes[0]
	same := true
	for _, r := range runes[1:] {
		if string(r) != string(first) {
			same = false
			break
		}
	}
	if same {
		return descs[0]
	}

	prefix := len(first)
	suffix := len(first)
	shortest := len(first)
	for _, r := range runes[1:] {
		prefix = min(prefix, commonPrefixLen(first, r))
		suffix = min(suffix, commonSuffixLen(first, r))
		shortest = min(shortest, len(r))
	}
	// 前后缀不能重叠，例如 "a" 和 "aa"
	suffix = min(suffix, shortest-prefix)
	for prefix > 0 && unicode.IsDigit(first[prefix-1]) {
		prefix--
	}
	for suffix > 0 && unicode.IsDigit(first[len(first)-suffix]) {
		suffix--
	}
	middles := make([]string, len(runes))
	for i, r := range runes {
		middles[i] = string(r[prefix : len(r)-suffix])
	}
	return string(first[:prefix]) + "[" + strings.Join(middles, "|") + "]" + string(first[len(first)-suffix:])
}

func commonPrefixLen(a, b []rune) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

func commonSuffixLen(a, b []rune) int {
	n := 0
	for n < len(a) && n < len(b) && a[len(a)-1-n] == b[len(b)-1-n] {
		n++
	}
	return n
}
