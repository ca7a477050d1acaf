package types

import (
	"errors"
	"fmt"
)

// 基础错误类型
var (
	ErrValidation  = errors.New("输入校验失败")
	ErrBackend     = errors.New("后端返回非成功状态")
	ErrApplication = errors.New("后端返回业务错误")
	ErrDecode      = errors.New("后端响应无法解析")
	ErrNoCareer    = errors.New("后端未给出职业推荐")
	ErrNetwork     = errors.New("无法完成后端请求")
)

// 状态相关错误
var (
	ErrNotFinalStep   = errors.New("只能在最后一步提交问卷")
	ErrSubmitInFlight = errors.New("问卷正在提交中")
	ErrWrongView      = errors.New("当前视图不支持该操作")
	ErrFirstStep      = errors.New("已经是第一步")
	ErrLastStep       = errors.New("已经是最后一步")
	ErrNoSession      = errors.New("尚未登录")
	ErrChatClosed     = errors.New("聊天会话已关闭")
	ErrChatQueueFull  = errors.New("待发送的聊天消息过多")
)

// ValidationError 用户输入不合法
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Detail)
	}
	return fmt.Sprintf("%s (字段:%s): %s", ErrValidation, e.Field, e.Detail)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError 构造校验错误
func NewValidationError(field, detail string) error {
	return &ValidationError{Field: field, Detail: detail}
}

// BackendCallError 外部服务调用失败的详细信息
type BackendCallError struct {
	Op         string // predict, roadmap, mentors, jobs, chat
	StatusCode int    // 0 表示没有拿到响应
	BaseErr    error
	Detail     string
	Cause      error
}

func (e *BackendCallError) Error() string {
	msg := fmt.Sprintf("%s (操作:%s", e.BaseErr, e.Op)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(", 状态码:%d", e.StatusCode)
	}
	msg += ")"
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *BackendCallError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口，同时匹配基础错误和底层原因
func (e *BackendCallError) Is(target error) bool {
	if errors.Is(e.BaseErr, target) {
		return true
	}
	return e.Cause != nil && errors.Is(e.Cause, target)
}

// 错误构造函数
func NewBackendError(op string, statusCode int, detail string) error {
	return &BackendCallError{Op: op, StatusCode: statusCode, BaseErr: ErrBackend, Detail: detail}
}

func NewApplicationError(op string, statusCode int, detail string) error {
	return &BackendCallError{Op: op, StatusCode: statusCode, BaseErr: ErrApplication, Detail: detail}
}

func NewDecodeError(op string, statusCode int, cause error) error {
	return &BackendCallError{Op: op, StatusCode: statusCode, BaseErr: ErrDecode, Cause: cause}
}

func NewNoCareerError(op string) error {
	return &BackendCallError{Op: op, BaseErr: ErrNoCareer}
}

func NewNetworkError(op string, cause error) error {
	return &BackendCallError{Op: op, BaseErr: ErrNetwork, Cause: cause}
}

// IsBackendFailure 判断是否为外部服务相关错误
func IsBackendFailure(err error) bool {
	var callErr *BackendCallError
	return errors.As(err, &callErr)
}

// ErrorKind 返回错误分类，用于 API 响应和指标标签
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrBackend):
		return "backend"
	case errors.Is(err, ErrApplication):
		return "application"
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrNoCareer):
		return "no_career"
	case errors.Is(err, ErrNoSession):
		return "session"
	case errors.Is(err, ErrNotFinalStep), errors.Is(err, ErrSubmitInFlight),
		errors.Is(err, ErrWrongView), errors.Is(err, ErrFirstStep),
		errors.Is(err, ErrLastStep), errors.Is(err, ErrChatClosed),
		errors.Is(err, ErrChatQueueFull):
		return "state"
	default:
		return "internal"
	}
}
