package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/wfunc/rally-scorer/internal/game/scoring"
)

// ErrorsTestSuite 错误包测试套件
type ErrorsTestSuite struct {
	suite.Suite
}

// 测试创建新错误
func (suite *ErrorsTestSuite) TestNew() {
	err := New(ErrInvalidParam)
	suite.Equal(ErrInvalidParam, err.Code)
	suite.Equal("无效的参数", err.Message)
	suite.Empty(err.Details)

	err = New(ErrMatchNotFound, "match-1")
	suite.Equal("比赛不存在", err.Message)
	suite.Equal("match-1", err.Details)
	suite.Equal("[2000] 比赛不存在: match-1", err.Error())

	err = New(ErrDatabaseConnect, "连接失败", "主机: localhost")
	suite.Equal("连接失败; 主机: localhost", err.Details)

	err = Newf(ErrVersionConflict, "期望 %d，实际 %d", 3, 5)
	suite.Equal("期望 3，实际 5", err.Details)
}

// 测试错误包装
func (suite *ErrorsTestSuite) TestWrap() {
	originalErr := errors.New("原始错误")
	wrappedErr := Wrap(originalErr, ErrDatabaseQuery)
	suite.Equal(ErrDatabaseQuery, wrappedErr.Code)
	suite.Equal("原始错误", wrappedErr.Details)
	suite.ErrorIs(wrappedErr, originalErr)

	suite.Nil(Wrap(nil, ErrUnknown))

	// 已有的AppError保留原始错误码
	appErr := New(ErrMatchNotFound, "m-1")
	rewrapped := Wrap(fmt.Errorf("加载: %w", appErr), ErrDatabaseQuery, "额外信息")
	suite.Equal(ErrMatchNotFound, rewrapped.Code)
	suite.Contains(rewrapped.Details, "额外信息")

	wrapped := Wrapf(originalErr, ErrDatabaseConnect, "数据库 %s 连接失败", "MySQL")
	suite.Equal("数据库 MySQL 连接失败", wrapped.Details)
}

// 测试计分引擎错误转换
func (suite *ErrorsTestSuite) TestFromScoring() {
	transition := &scoring.InvalidTransitionError{
		Op:      "pause_game",
		From:    scoring.StatusNotStarted,
		Allowed: []scoring.Status{scoring.StatusInProgress},
	}

	tests := []struct {
		err    error
		code   ErrorCode
		status int
	}{
		{transition, ErrInvalidTransition, 409},
		{fmt.Errorf("第 3 回合: %w", transition), ErrInvalidTransition, 409},
		{&scoring.NoActionError{Op: "undo"}, ErrNoAction, 422},
		{scoring.ErrPositionsLocked, ErrPositionsLocked, 409},
		{scoring.ErrInvalidBestOf, ErrInvalidSettings, 400},
		{scoring.ErrUnknownPlayer, ErrInvalidTeam, 400},
		{scoring.ErrInvalidSide, ErrInvalidRally, 400},
		{scoring.ErrInvalidMatchID, ErrInvalidParam, 400},
		{errors.New("其他"), ErrUnknown, 500},
	}

	for _, tt := range tests {
		appErr := FromScoring(tt.err)
		suite.Equal(tt.code, appErr.Code, tt.err.Error())
		suite.Equal(tt.status, appErr.HTTPStatus(), tt.err.Error())
		suite.ErrorIs(appErr, tt.err)
	}

	suite.Nil(FromScoring(nil))

	// 转换结果可还原出原始错误
	var target *scoring.InvalidTransitionError
	suite.ErrorAs(FromScoring(transition), &target)
	suite.Equal(scoring.StatusNotStarted, target.From)

	existing := New(ErrVersionConflict)
	suite.Same(existing, FromScoring(existing))
}

// 测试错误码判断
func (suite *ErrorsTestSuite) TestIsAndGetCode() {
	err := New(ErrPermissionDenied)
	suite.True(Is(err, ErrPermissionDenied))
	suite.True(Is(fmt.Errorf("wrap: %w", err), ErrPermissionDenied))
	suite.False(Is(err, ErrNotFound))
	suite.False(Is(nil, ErrPermissionDenied))
	suite.False(Is(errors.New("标准错误"), ErrUnknown))

	suite.Equal(ErrTokenExpired, GetCode(New(ErrTokenExpired)))
	suite.Equal(ErrorCode(0), GetCode(nil))
	suite.Equal(ErrUnknown, GetCode(errors.New("标准错误")))
}

// 测试HTTP状态码映射
func (suite *ErrorsTestSuite) TestHTTPStatus() {
	tests := []struct {
		code   ErrorCode
		status int
	}{
		{ErrInvalidParam, 400},
		{ErrNotFound, 404},
		{ErrMatchNotFound, 404},
		{ErrPermissionDenied, 403},
		{ErrAuthentication, 401},
		{ErrTokenExpired, 401},
		{ErrTimeout, 408},
		{ErrInvalidTransition, 409},
		{ErrVersionConflict, 409},
		{ErrMatchAlreadyExists, 409},
		{ErrNoAction, 422},
		{ErrTooManyMatches, 429},
		{ErrDatabaseConnect, 503},
		{ErrCacheUnavailable, 503},
		{ErrMatchStateCorrupt, 500},
		{ErrUnknown, 500},
	}

	for _, tt := range tests {
		suite.Equal(tt.status, New(tt.code).HTTPStatus(), "code %d", tt.code)
	}
}

// 测试可重试与严重错误
func (suite *ErrorsTestSuite) TestRetryableAndCritical() {
	suite.True(IsRetryable(New(ErrVersionConflict)))
	suite.True(IsRetryable(New(ErrDatabaseConnect)))
	suite.False(IsRetryable(New(ErrInvalidTransition)))
	suite.False(IsRetryable(nil))

	suite.True(IsCritical(New(ErrMatchStateCorrupt)))
	suite.True(IsCritical(New(ErrConfigLoad)))
	suite.False(IsCritical(New(ErrNoAction)))
	suite.False(IsCritical(nil))
}

// 测试调用栈捕获
func (suite *ErrorsTestSuite) TestStackCapture() {
	err := New(ErrUnknown)
	suite.NotEmpty(err.Stack)
	suite.NotEmpty(err.GetStack())
	suite.LessOrEqual(len(err.Stack), 10)
}

// 测试错误响应
func (suite *ErrorsTestSuite) TestErrorResponse() {
	err := New(ErrMatchNotFound, "m-1")
	response := NewErrorResponse(err, "req-123")

	suite.False(response.Success)
	suite.Equal(err, response.Error)
	suite.Equal("req-123", response.RequestID)
	suite.Greater(response.Timestamp, int64(0))
}

// 测试未知错误码
func (suite *ErrorsTestSuite) TestUnknownErrorCode() {
	err := New(ErrorCode(99999))
	suite.Equal(ErrorCode(99999), err.Code)
	suite.Equal("未知错误", err.Message)
}

func TestErrorsSuite(t *testing.T) {
	suite.Run(t, new(ErrorsTestSuite))
}
