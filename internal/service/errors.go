package service

import (
	"errors"

	"github.com/punchcard-next/internal/constants"
)

var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserDisabled       = errors.New("user disabled")
	ErrUserNotFound       = errors.New("user not found")
	ErrAuthzUnavailable   = errors.New("authorization unavailable")
)

var (
	ErrBusinessInvalid      = errors.New("business invalid")
	ErrBusinessNotFound     = errors.New("business not found")
	ErrBusinessDisabled     = errors.New("business disabled")
	ErrBusinessForbidden    = errors.New("business forbidden")
	ErrBusinessCreateFailed = errors.New("business create failed")
)

var (
	ErrCardInvalid      = errors.New("card invalid")
	ErrCardNotFound     = errors.New("card not found")
	ErrCardForbidden    = errors.New("card forbidden")
	ErrCardExpired      = errors.New("card expired")
	ErrCardComplete     = errors.New("card already complete")
	ErrCardActiveExists = errors.New("active card exists")
)

var (
	ErrPunchCodeInvalid     = errors.New("punch code invalid")
	ErrPunchCodeNotFound    = errors.New("invalid or already used code")
	ErrPunchCodeExpired     = errors.New("punch code expired")
	ErrPunchCodeForbidden   = errors.New("punch code belongs to another business")
	ErrPunchCodeActive      = errors.New("active punch code already exists")
	ErrPunchCodeNoneActive  = errors.New("no active punch code")
	ErrRateLimited          = errors.New("rate limited")
	ErrRateLimitUnavailable = errors.New("rate limiter unavailable")
	ErrGenerationExhausted  = errors.New("punch code generation exhausted")
)

type errorClass struct {
	target error
	kind   string
	reason string
}

// errorClasses 错误到对外类别的映射，按顺序匹配
var errorClasses = []errorClass{
	{target: ErrUnauthenticated, kind: constants.ErrorKindUnauthenticated},
	{target: ErrInvalidCredentials, kind: constants.ErrorKindUnauthenticated},
	{target: ErrUserDisabled, kind: constants.ErrorKindPermissionDenied},
	{target: ErrUserNotFound, kind: constants.ErrorKindNotFound},
	{target: ErrBusinessInvalid, kind: constants.ErrorKindInvalidArgument},
	{target: ErrBusinessNotFound, kind: constants.ErrorKindNotFound},
	{target: ErrBusinessDisabled, kind: constants.ErrorKindFailedPrecondition},
	{target: ErrBusinessForbidden, kind: constants.ErrorKindPermissionDenied},
	{target: ErrCardInvalid, kind: constants.ErrorKindInvalidArgument},
	{target: ErrCardNotFound, kind: constants.ErrorKindNotFound},
	{target: ErrCardForbidden, kind: constants.ErrorKindPermissionDenied},
	{target: ErrCardExpired, kind: constants.ErrorKindFailedPrecondition, reason: constants.ErrorReasonCardExpired},
	{target: ErrCardComplete, kind: constants.ErrorKindFailedPrecondition, reason: constants.ErrorReasonCardComplete},
	{target: ErrCardActiveExists, kind: constants.ErrorKindFailedPrecondition, reason: constants.ErrorReasonCardActiveExists},
	{target: ErrPunchCodeInvalid, kind: constants.ErrorKindInvalidArgument},
	{target: ErrPunchCodeNotFound, kind: constants.ErrorKindNotFound, reason: constants.ErrorReasonCodeUsed},
	{target: ErrPunchCodeExpired, kind: constants.ErrorKindExpired},
	{target: ErrPunchCodeForbidden, kind: constants.ErrorKindPermissionDenied},
	{target: ErrPunchCodeActive, kind: constants.ErrorKindFailedPrecondition, reason: constants.ErrorReasonAlreadyActive},
	{target: ErrPunchCodeNoneActive, kind: constants.ErrorKindNotFound},
	{target: ErrRateLimited, kind: constants.ErrorKindRateLimited},
	{target: ErrGenerationExhausted, kind: constants.ErrorKindInternal, reason: constants.ErrorReasonGenerateExhausted},
}

func classify(err error) (errorClass, bool) {
	if err == nil {
		return errorClass{}, false
	}
	for _, class := range errorClasses {
		if errors.Is(err, class.target) {
			return class, true
		}
	}
	return errorClass{}, false
}

// KindOf 返回错误的对外类别，未知错误一律视为 INTERNAL
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	if class, ok := classify(err); ok {
		return class.kind
	}
	return constants.ErrorKindInternal
}

// ReasonOf 返回错误的细分原因，可能为空
func ReasonOf(err error) string {
	class, _ := classify(err)
	return class.reason
}
