package constants

// 用户状态常量
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// 商家状态常量
const (
	BusinessStatusActive   = "active"
	BusinessStatusDisabled = "disabled"
)

// 商家角色常量
const (
	BusinessRoleOwner = "owner"
	BusinessRoleStaff = "staff"
)

// 商家授权动作
const (
	BusinessActionRedeem = "redeem"
	BusinessActionManage = "manage"
)

// 集点卡状态（派生状态，仅用于展示）
const (
	CardStatusActive    = "active"
	CardStatusCompleted = "completed"
	CardStatusExpired   = "expired"
)

// 错误类别（对外暴露的机器可读类型）
const (
	ErrorKindUnauthenticated    = "UNAUTHENTICATED"
	ErrorKindInvalidArgument    = "INVALID_ARGUMENT"
	ErrorKindPermissionDenied   = "PERMISSION_DENIED"
	ErrorKindNotFound           = "NOT_FOUND"
	ErrorKindExpired            = "EXPIRED"
	ErrorKindFailedPrecondition = "FAILED_PRECONDITION"
	ErrorKindRateLimited        = "RATE_LIMITED"
	ErrorKindInternal           = "INTERNAL"
)

// 错误细分原因
const (
	ErrorReasonAlreadyActive     = "already_active"
	ErrorReasonCardComplete      = "card_complete"
	ErrorReasonCardExpired       = "card_expired"
	ErrorReasonCardActiveExists  = "card_active_exists"
	ErrorReasonCodeUsed          = "code_used"
	ErrorReasonGenerateExhausted = "generation_exhausted"
)

// 限流后端
const (
	RateLimitBackendMemory = "memory"
	RateLimitBackendRedis  = "redis"
)

// 队列名称
const (
	QueueDefault  = "default"
	QueueCritical = "critical"
)

// 异步任务类型
const (
	TaskCardCompleted = "card:completed"
)
