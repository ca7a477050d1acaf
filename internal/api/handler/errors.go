package handler

import (
	"errors"

	"career-compass/internal/constants"
	"career-compass/internal/types"

	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// ErrorResponse 统一的错误响应，notice 是给用户看的提示
type ErrorResponse struct {
	Error  string `json:"error"`
	Kind   string `json:"kind"`
	Notice string `json:"notice,omitempty"`
}

// StatusFor 把错误分类映射为 HTTP 状态码
func StatusFor(err error) int {
	switch types.ErrorKind(err) {
	case "validation":
		return consts.StatusBadRequest
	case "session":
		return consts.StatusUnauthorized
	case "state":
		return consts.StatusConflict
	case "network", "backend", "application", "decode", "no_career":
		return consts.StatusBadGateway
	default:
		return consts.StatusInternalServerError
	}
}

// NoticeFor 错误对应的用户提示
func NoticeFor(err error) string {
	var ve *types.ValidationError
	switch {
	case errors.As(err, &ve) && ve.Field == "name":
		return constants.NoticeSignInNameRequired
	case errors.Is(err, types.ErrNetwork):
		return constants.NoticeBackendUnreachable
	case errors.Is(err, types.ErrNoCareer):
		return constants.NoticeNoCareer
	case types.IsBackendFailure(err):
		return constants.NoticeBackendError
	default:
		return ""
	}
}

func newErrorResponse(err error) ErrorResponse {
	return ErrorResponse{
		Error:  err.Error(),
		Kind:   types.ErrorKind(err),
		Notice: NoticeFor(err),
	}
}
