package i18n

var catalogs = map[string]map[string]string{
	LocaleZhCN: {
		"success.punch_redeemed":            "打卡成功",
		"success.card_completed":            "打卡成功，集点卡已集满",
		"error.bad_request":                 "请求参数错误",
		"error.unauthorized":                "未登录或登录已失效",
		"error.forbidden":                   "无权访问",
		"error.internal":                    "服务器内部错误",
		"error.auth_header_missing":         "缺少 Authorization 请求头",
		"error.auth_header_invalid":         "Authorization 格式错误",
		"error.jwt_secret_missing":          "JWT 密钥未配置",
		"error.token_invalid":               "Token 无效",
		"error.token_revoked":               "Token 已失效，请重新登录",
		"error.user_disabled":               "账号已被禁用",
		"error.user_id_invalid":             "用户 ID 无效",
		"error.user_id_type_invalid":        "用户 ID 类型错误",
		"error.invalid_credentials":         "邮箱或密码错误",
		"error.login_failed":                "登录失败",
		"error.user_not_found":              "用户不存在",
		"error.rate_limited":                "请求过于频繁，请 %d 秒后重试",
		"error.rate_limit_unavailable":      "限流服务不可用",
		"error.too_many_requests":           "请求过于频繁，请稍后再试",
		"error.business_invalid":            "商家参数错误",
		"error.business_not_found":          "商家不存在",
		"error.business_disabled":           "商家已停用",
		"error.business_forbidden":          "无权操作该商家",
		"error.business_create_failed":      "创建商家失败",
		"error.business_staff_failed":       "添加店员失败",
		"error.card_invalid":                "集点卡参数错误",
		"error.card_not_found":              "集点卡不存在",
		"error.card_forbidden":              "无权访问该集点卡",
		"error.card_expired":                "集点卡已过期",
		"error.card_active_exists":          "已有进行中的集点卡",
		"error.card_complete":               "集点卡已集满",
		"error.card_create_failed":          "创建集点卡失败",
		"error.card_fetch_failed":           "获取集点卡失败",
		"error.punch_code_invalid":          "打卡码格式错误",
		"error.punch_code_not_found":        "打卡码无效或已被使用",
		"error.punch_code_expired":          "打卡码已过期，请重新生成",
		"error.punch_code_forbidden":        "该打卡码不属于当前商家",
		"error.punch_code_active":           "已有未使用的打卡码，请直接出示",
		"error.punch_code_rate_limited":     "生成打卡码过于频繁，请稍后再试",
		"error.punch_code_generate_failed":  "生成打卡码失败，请重试",
		"error.punch_code_none_active":      "当前没有可用的打卡码",
		"error.punch_redeem_failed":         "打卡失败",
		"error.login_too_many":              "登录尝试过于频繁，请稍后再试",
		"error.punch_validate_rate_limited": "核销过于频繁，请稍后再试",
		"error.business_fetch_failed":       "获取商家失败",
	},
	LocaleEnUS: {
		"success.punch_redeemed":            "Punch recorded",
		"success.card_completed":            "Punch recorded, card complete",
		"error.bad_request":                 "Invalid request",
		"error.unauthorized":                "Not signed in or session expired",
		"error.forbidden":                   "Forbidden",
		"error.internal":                    "Internal server error",
		"error.auth_header_missing":         "Missing Authorization header",
		"error.auth_header_invalid":         "Malformed Authorization header",
		"error.jwt_secret_missing":          "JWT secret is not configured",
		"error.token_invalid":               "Invalid token",
		"error.token_revoked":               "Token revoked, please sign in again",
		"error.user_disabled":               "Account disabled",
		"error.user_id_invalid":             "Invalid user id",
		"error.user_id_type_invalid":        "Invalid user id type",
		"error.invalid_credentials":         "Invalid email or password",
		"error.login_failed":                "Login failed",
		"error.user_not_found":              "User not found",
		"error.rate_limited":                "Too many requests, retry in %d seconds",
		"error.rate_limit_unavailable":      "Rate limiter unavailable",
		"error.too_many_requests":           "Too many requests, try again later",
		"error.business_invalid":            "Invalid business parameters",
		"error.business_not_found":          "Business not found",
		"error.business_disabled":           "Business disabled",
		"error.business_forbidden":          "Not allowed to manage this business",
		"error.business_create_failed":      "Failed to create business",
		"error.business_staff_failed":       "Failed to add staff",
		"error.card_invalid":                "Invalid card parameters",
		"error.card_not_found":              "Card not found",
		"error.card_forbidden":              "Not allowed to access this card",
		"error.card_expired":                "Card expired",
		"error.card_active_exists":          "An active card already exists",
		"error.card_complete":               "Card already complete",
		"error.card_create_failed":          "Failed to create card",
		"error.card_fetch_failed":           "Failed to load card",
		"error.punch_code_invalid":          "Malformed punch code",
		"error.punch_code_not_found":        "Invalid or already used code",
		"error.punch_code_expired":          "Code expired, please generate a new one",
		"error.punch_code_forbidden":        "This code belongs to another business",
		"error.punch_code_active":           "An unused code is still active, show it instead",
		"error.punch_code_rate_limited":     "Too many code requests, try again later",
		"error.punch_code_generate_failed":  "Failed to generate code, please retry",
		"error.punch_code_none_active":      "No active code",
		"error.punch_redeem_failed":         "Punch failed",
		"error.login_too_many":              "Too many login attempts, try again later",
		"error.punch_validate_rate_limited": "Too many redeem attempts, try again later",
		"error.business_fetch_failed":       "Failed to load business",
	},
}
