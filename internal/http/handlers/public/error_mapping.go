package public

import (
	"errors"

	handlershared "github.com/punchcard-next/internal/http/handlers/shared"
	"github.com/punchcard-next/internal/http/response"
	"github.com/punchcard-next/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	key    string
}

// respondWithMappedError 按规则表翻译业务错误，未命中时按兜底错误处理并记录原始错误。
func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackKey string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			handlershared.RespondErrorWithKind(c, rule.code, rule.key, service.KindOf(err), service.ReasonOf(err), nil)
			return
		}
	}
	handlershared.RespondErrorWithKind(c, fallbackCode, fallbackKey, handlershared.KindForCode(fallbackCode), service.ReasonOf(err), err)
}

func concatMappedHandlerErrors(groups ...[]mappedHandlerError) []mappedHandlerError {
	total := 0
	for _, group := range groups {
		total += len(group)
	}
	result := make([]mappedHandlerError, 0, total)
	for _, group := range groups {
		result = append(result, group...)
	}
	return result
}

var identityErrorRules = []mappedHandlerError{
	{target: service.ErrUnauthenticated, code: response.CodeUnauthorized, key: "error.unauthorized"},
	{target: service.ErrUserDisabled, code: response.CodeForbidden, key: "error.user_disabled"},
	{target: service.ErrUserNotFound, code: response.CodeNotFound, key: "error.user_not_found"},
}

var loginErrorRules = []mappedHandlerError{
	{target: service.ErrInvalidCredentials, code: response.CodeUnauthorized, key: "error.invalid_credentials"},
	{target: service.ErrUserDisabled, code: response.CodeForbidden, key: "error.user_disabled"},
}

var businessErrorRules = []mappedHandlerError{
	{target: service.ErrBusinessInvalid, code: response.CodeBadRequest, key: "error.business_invalid"},
	{target: service.ErrBusinessNotFound, code: response.CodeNotFound, key: "error.business_not_found"},
	{target: service.ErrBusinessDisabled, code: response.CodeConflict, key: "error.business_disabled"},
	{target: service.ErrBusinessForbidden, code: response.CodeForbidden, key: "error.business_forbidden"},
}

var cardErrorRules = []mappedHandlerError{
	{target: service.ErrCardInvalid, code: response.CodeBadRequest, key: "error.card_invalid"},
	{target: service.ErrCardNotFound, code: response.CodeNotFound, key: "error.card_not_found"},
	{target: service.ErrCardForbidden, code: response.CodeForbidden, key: "error.card_forbidden"},
	{target: service.ErrCardExpired, code: response.CodeConflict, key: "error.card_expired"},
	{target: service.ErrCardComplete, code: response.CodeConflict, key: "error.card_complete"},
	{target: service.ErrCardActiveExists, code: response.CodeConflict, key: "error.card_active_exists"},
}

var punchCodeGenerateErrorRules = []mappedHandlerError{
	{target: service.ErrPunchCodeActive, code: response.CodeConflict, key: "error.punch_code_active"},
	{target: service.ErrPunchCodeNoneActive, code: response.CodeNotFound, key: "error.punch_code_none_active"},
	{target: service.ErrRateLimited, code: response.CodeTooManyRequests, key: "error.punch_code_rate_limited"},
	{target: service.ErrRateLimitUnavailable, code: response.CodeInternal, key: "error.rate_limit_unavailable"},
}

var punchRedeemErrorRules = []mappedHandlerError{
	{target: service.ErrPunchCodeInvalid, code: response.CodeBadRequest, key: "error.punch_code_invalid"},
	{target: service.ErrPunchCodeNotFound, code: response.CodeNotFound, key: "error.punch_code_not_found"},
	{target: service.ErrPunchCodeExpired, code: response.CodeExpired, key: "error.punch_code_expired"},
	{target: service.ErrPunchCodeForbidden, code: response.CodeForbidden, key: "error.punch_code_forbidden"},
}

func respondLoginError(c *gin.Context, err error) {
	respondWithMappedError(c, err, loginErrorRules, response.CodeInternal, "error.login_failed")
}

func respondIdentityError(c *gin.Context, err error) {
	respondWithMappedError(c, err, identityErrorRules, response.CodeInternal, "error.internal")
}

func respondBusinessError(c *gin.Context, err error, fallbackKey string) {
	rules := concatMappedHandlerErrors(identityErrorRules, businessErrorRules)
	respondWithMappedError(c, err, rules, response.CodeInternal, fallbackKey)
}

func respondCardError(c *gin.Context, err error, fallbackKey string) {
	rules := concatMappedHandlerErrors(identityErrorRules, businessErrorRules, cardErrorRules)
	respondWithMappedError(c, err, rules, response.CodeInternal, fallbackKey)
}

func respondPunchCodeError(c *gin.Context, err error) {
	rules := concatMappedHandlerErrors(identityErrorRules, cardErrorRules, punchCodeGenerateErrorRules)
	respondWithMappedError(c, err, rules, response.CodeInternal, "error.punch_code_generate_failed")
}

func respondRedeemError(c *gin.Context, err error) {
	rules := concatMappedHandlerErrors(identityErrorRules, punchRedeemErrorRules, cardErrorRules)
	respondWithMappedError(c, err, rules, response.CodeInternal, "error.punch_redeem_failed")
}
