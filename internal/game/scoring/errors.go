package scoring

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSide 回合胜方必须是 A 或 B
var ErrInvalidSide = errors.New("无效的比赛方")

// InvalidTransitionError 在不允许的状态下执行生命周期操作
type InvalidTransitionError struct {
	Op      string
	From    Status
	Allowed []Status
}

func (e *InvalidTransitionError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, s := range e.Allowed {
		allowed[i] = string(s)
	}
	return fmt.Sprintf("%s 需要状态 [%s]，当前状态 %s", e.Op, strings.Join(allowed, ", "), e.From)
}

// NoActionError 没有可撤销的回合
type NoActionError struct {
	Op string
}

func (e *NoActionError) Error() string {
	return fmt.Sprintf("%s: 回合记录为空", e.Op)
}

// IsInvalidTransition 判断是否为状态转换错误
func IsInvalidTransition(err error) bool {
	var target *InvalidTransitionError
	return errors.As(err, &target)
}

// IsNoAction 判断是否为无可撤销操作错误
func IsNoAction(err error) bool {
	var target *NoActionError
	return errors.As(err, &target)
}
