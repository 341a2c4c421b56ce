package shared

import (
	"github.com/punchcard-next/internal/constants"
	"github.com/punchcard-next/internal/http/response"
	"github.com/punchcard-next/internal/i18n"
	"github.com/punchcard-next/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog 提供携带 request_id 的日志实例。
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	if requestID, ok := c.Get("request_id"); ok {
		if id, ok := requestID.(string); ok && id != "" {
			return logger.SW("request_id", id)
		}
	}
	return logger.S()
}

// RespondError 返回国际化错误响应，并在有原始错误时记录日志。
func RespondError(c *gin.Context, code int, key string, err error) {
	RespondErrorWithKind(c, code, key, KindForCode(code), "", err)
}

// RespondErrorWithKind 返回带错误类别的国际化错误响应。
func RespondErrorWithKind(c *gin.Context, code int, key, kind, reason string, err error) {
	locale := i18n.ResolveLocale(c)
	msg := i18n.T(locale, key)
	appErr := response.WrapError(code, msg, err).WithKind(kind, reason)
	if err != nil {
		RequestLog(c).Errorw("handler_error",
			"code", appErr.Code,
			"kind", appErr.Kind,
			"message", appErr.Message,
			"error", err,
		)
	}
	response.Fail(c, appErr.Code, appErr.Message, appErr.Kind, appErr.Reason)
}

// RespondErrorWithMsg 返回自定义消息错误响应，并在有原始错误时记录日志。
func RespondErrorWithMsg(c *gin.Context, code int, msg string, err error) {
	appErr := response.WrapError(code, msg, err).WithKind(KindForCode(code), "")
	if err != nil {
		RequestLog(c).Errorw("handler_error",
			"code", appErr.Code,
			"message", appErr.Message,
			"error", err,
		)
	}
	response.Fail(c, appErr.Code, appErr.Message, appErr.Kind, appErr.Reason)
}

// KindForCode 业务状态码对应的默认错误类别。
func KindForCode(code int) string {
	switch code {
	case response.CodeBadRequest:
		return constants.ErrorKindInvalidArgument
	case response.CodeUnauthorized:
		return constants.ErrorKindUnauthenticated
	case response.CodeForbidden:
		return constants.ErrorKindPermissionDenied
	case response.CodeNotFound:
		return constants.ErrorKindNotFound
	case response.CodeConflict:
		return constants.ErrorKindFailedPrecondition
	case response.CodeExpired:
		return constants.ErrorKindExpired
	case response.CodeTooManyRequests:
		return constants.ErrorKindRateLimited
	default:
		return constants.ErrorKindInternal
	}
}
