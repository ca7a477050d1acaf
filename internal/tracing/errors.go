package tracing

import (
	"errors"

	"career-compass/internal/types"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrorType 定义错误类型，便于分类和过滤
type ErrorType string

const (
	// ErrorTypeHTTP 后端返回非成功状态
	ErrorTypeHTTP ErrorType = "http"
	// ErrorTypeRedis Redis错误
	ErrorTypeRedis ErrorType = "redis"
	// ErrorTypeRabbitMQ RabbitMQ错误
	ErrorTypeRabbitMQ ErrorType = "rabbitmq"
	// ErrorTypeValidation 验证错误
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeApplication 后端业务错误
	ErrorTypeApplication ErrorType = "application"
	// ErrorTypeDecode 响应解析错误
	ErrorTypeDecode ErrorType = "decode"
	// ErrorTypeNoCareer 没有得到职业推荐
	ErrorTypeNoCareer ErrorType = "no_career"
	// ErrorTypeNetwork 网络错误
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeInternal 内部错误
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeTimeout 超时错误
	ErrorTypeTimeout ErrorType = "timeout"
)

// RecordError 记录错误，添加统一的错误类型和详情
func RecordError(span trace.Span, err error, errorType ErrorType) {
	RecordErrorWithInfo(span, err, errorType)
}

// RecordErrorWithInfo 记录错误并添加额外信息
func RecordErrorWithInfo(span trace.Span, err error, errorType ErrorType, attributes ...attribute.KeyValue) {
	if span == nil || err == nil {
		return
	}

	span.RecordError(err)
	span.SetAttributes(
		attribute.String("error.type", string(errorType)),
		attribute.String("error.message", TruncateString(err.Error(), DefaultMaxLength)),
	)
	if len(attributes) > 0 {
		span.SetAttributes(attributes...)
	}
	span.SetStatus(codes.Error, err.Error())
}

// ClassifyError 把错误映射到 span 上使用的错误类型
func ClassifyError(err error) ErrorType {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, types.ErrNetwork):
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return ErrorTypeTimeout
		}
		return ErrorTypeNetwork
	case errors.Is(err, types.ErrBackend):
		return ErrorTypeHTTP
	case errors.Is(err, types.ErrApplication):
		return ErrorTypeApplication
	case errors.Is(err, types.ErrDecode):
		return ErrorTypeDecode
	case errors.Is(err, types.ErrNoCareer):
		return ErrorTypeNoCareer
	case errors.Is(err, types.ErrValidation):
		return ErrorTypeValidation
	default:
		return ErrorTypeInternal
	}
}

// RecordBackendError 记录后端调用错误，statusCode 为 0 表示没有拿到响应
func RecordBackendError(span trace.Span, err error, statusCode int) {
	if span == nil || err == nil {
		return
	}

	var attrs []attribute.KeyValue
	if statusCode != 0 {
		// 根据HTTP状态码分类错误
		category := "unknown"
		switch {
		case statusCode >= 400 && statusCode < 500:
			category = "client_error"
		case statusCode >= 500:
			category = "server_error"
		}
		attrs = append(attrs,
			attribute.Int("http.status_code", statusCode),
			attribute.String("error.category", category),
		)
	}
	RecordErrorWithInfo(span, err, ClassifyError(err), attrs...)
}

// RecordRabbitMQNack 记录RabbitMQ消息被拒绝的错误
func RecordRabbitMQNack(span trace.Span, messageID string, reason string) {
	if span == nil {
		return
	}

	errMsg := "message not acknowledged by broker"
	if reason != "" {
		errMsg = reason
	}

	span.SetAttributes(
		attribute.String("error.type", string(ErrorTypeRabbitMQ)),
		attribute.String("error.message", errMsg),
		attribute.String("messaging.message_id", messageID),
		attribute.String("messaging.error_type", "nack"),
		attribute.Bool("messaging.rabbitmq.confirmed", false),
	)
	span.SetStatus(codes.Error, errMsg)
}
