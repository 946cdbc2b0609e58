package command

import (
	"errors"
	"fmt"

	"js-backend/internal/parser"
)

// ErrUnrecognized 没有处理函数能处理这条命令
var ErrUnrecognized = errors.New("unrecognized command")

// DomainError 业务错误，Msg 直接回复给用户
type DomainError struct {
	Msg string
}

func (e *DomainError) Error() string { return e.Msg }

func domainErr(format string, args ...any) error {
	return &DomainError{Msg: fmt.Sprintf(format, args...)}
}

// Outcome 命令处理结果，用于指标
type Outcome string

const (
	OutcomeOK           Outcome = "ok"
	OutcomeUserError    Outcome = "user_error"
	OutcomeUnrecognized Outcome = "unrecognized"
	OutcomeError        Outcome = "error"
)

// ReplyFor 把面向用户的错误转换成回复文本，内部错误返回 false
func ReplyFor(err error) (string, Outcome, bool) {
	var de *DomainError
	var pe *parser.ParseError
	switch {
	case err == nil:
		return "", OutcomeOK, true
	case errors.As(err, &de):
		return de.Msg, OutcomeUserError, true
	case errors.As(err, &pe):
		return pe.Error(), OutcomeUserError, true
	case errors.Is(err, ErrUnrecognized):
		name := unrecognizedName(err)
		if name == "" {
			return "发送 help 查看帮助", OutcomeUnrecognized, true
		}
		return fmt.Sprintf("不支持的命令: %s，发送 help 查看帮助", name), OutcomeUnrecognized, true
	default:
		return "", OutcomeError, false
	}
}

type unrecognizedError struct {
	name string
}

func (e *unrecognizedError) Error() string { return fmt.Sprintf("%s: %s", ErrUnrecognized, e.name) }

func (e *unrecognizedError) Unwrap() error { return ErrUnrecognized }

func unrecognizedName(err error) string {
	var ue *unrecognizedError
	if errors.As(err, &ue) {
		return ue.name
	}
	return ""
}
