// Package parser turns chat command lines into typed values.
//
// Record notation:
//
//	''         -> []
//	50         -> [50]
//	50x5, 50*5 -> [50, 50, 50, 50, 50]
//	50,40x4    -> [50, 40, 40, 40, 40]
package parser

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	recordChars = "*x,0123456789"
	// MaxSets 单条命令允许的最大组数
	MaxSets = 100
)

// ParseError 命令或记录格式错误，Text 是出错的那一段
type ParseError struct {
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("无法解析 %q: %s", e.Text, e.Reason)
	}
	return fmt.Sprintf("无法解析 %q", e.Text)
}

// ParseRecords 解析每组次数
func ParseRecords(text string) ([]int, error) {
	for _, c := range text {
		if !strings.ContainsRune(recordChars, c) {
			return nil, &ParseError{Text: text, Reason: "只能包含数字和 * x ,"}
		}
	}
	var result []int
	for _, sub := range strings.Split(text, ",") {
		reps, err := parseGroup(sub)
		if err != nil {
			return nil, err
		}
		result = append(result, reps...)
		if len(result) > MaxSets {
			return nil, &ParseError{Text: text, Reason: fmt.Sprintf("最多 %d 组", MaxSets)}
		}
	}
	if result == nil {
		result = []int{}
	}
	return result, nil
}

func parseGroup(content string) ([]int, error) {
	if content == "" {
		return nil, nil
	}
	if isDecimal(content) {
		n, err := parseTimes(content)
		if err != nil {
			return nil, err
		}
		return []int{n}, nil
	}
	for _, op := range "*x" {
		if strings.ContainsRune(content, op) {
			return parseMulti(string(op), content)
		}
	}
	return nil, &ParseError{Text: content}
}

// parseMulti 解析 <次数><op><组数>
func parseMulti(op, content string) ([]int, error) {
	parts := strings.Split(content, op)
	if len(parts) != 2 || !isDecimal(parts[0]) || !isDecimal(parts[1]) {
		return nil, &ParseError{Text: content}
	}
	times, err := parseTimes(parts[0])
	if err != nil {
		return nil, err
	}
	groups, err := strconv.Atoi(parts[1])
	if err != nil || groups <= 0 {
		return nil, &ParseError{Text: content, Reason: "组数必须大于0"}
	}
	if groups > MaxSets {
		return nil, &ParseError{Text: content, Reason: fmt.Sprintf("最多 %d 组", MaxSets)}
	}
	reps := make([]int, groups)
	for i := range reps {
		reps[i] = times
	}
	return reps, nil
}

func parseTimes(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, &ParseError{Text: s, Reason: "次数必须是正整数"}
	}
	return n, nil
}

func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// ParseTextArguments 拆出命令名和文本参数
//
//	'show' -> ('show', [])
//	'show ycqian zlji' -> ('show', ['ycqian', 'zlji'])
func ParseTextArguments(line string) (string, []string, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return "", nil, &ParseError{Text: line, Reason: "命令为空"}
	}
	return parts[0], parts[1:], nil
}

// ParseCommandWithRecords 拆出训练项目名和每组次数
//
//	'kbsw-12 50x3,60' -> ('kbsw-12', [50, 50, 50, 60])
func ParseCommandWithRecords(line string) (string, []int, error) {
	parts := strings.Fields(line)
	if len(parts) != 2 {
		return "", nil, &ParseError{Text: line, Reason: "格式应为: <项目> <次数>，例如 kbsw-16 50x3"}
	}
	reps, err := ParseRecords(parts[1])
	if err != nil {
		return "", nil, err
	}
	return parts[0], reps, nil
}

// CommandName 取第一个空白分隔的词
func CommandName(line string) string {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}
