package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/punchcard-next/internal/cache"
	"github.com/punchcard-next/internal/constants"
	"github.com/punchcard-next/internal/http/response"
	"github.com/punchcard-next/internal/i18n"
	"github.com/punchcard-next/internal/logger"
	"github.com/punchcard-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimitKeyFunc 生成限流 key 的函数
type RateLimitKeyFunc func(*gin.Context) string

// RateLimitRule 限流规则
type RateLimitRule struct {
	Prefix        string
	WindowSeconds int
	MaxRequests   int
	MessageKey    string
}

// RateLimitMiddleware Redis 频率限制中间件
func RateLimitMiddleware(client *redis.Client, rule RateLimitRule, keyFunc RateLimitKeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil || rule.WindowSeconds <= 0 || rule.MaxRequests <= 0 {
			c.Next()
			return
		}

		key := ""
		if keyFunc != nil {
			key = strings.TrimSpace(keyFunc(c))
		}
		if key == "" {
			key = c.ClientIP()
		}
		if rule.Prefix != "" {
			key = fmt.Sprintf("%s:%s", rule.Prefix, key)
		}

		counter, err := cache.IncrWindow(c.Request.Context(), client, key, rule.WindowSeconds)
		if err != nil {
			logger.Warnw("rate_limit_counter_failed", "key", key, "error", err)
			abortRateLimitUnavailable(c)
			return
		}
		if counter.Count > int64(rule.MaxRequests) {
			waitSeconds := int(counter.TTL / time.Second)
			if waitSeconds < 1 {
				waitSeconds = rule.WindowSeconds
			}
			if waitSeconds < 1 {
				waitSeconds = 1
			}
			msgKey := strings.TrimSpace(rule.MessageKey)
			if msgKey == "" {
				msgKey = "error.rate_limited"
			}
			msg := i18n.Sprintf(i18n.ResolveLocale(c), msgKey, waitSeconds)
			response.Fail(c, response.CodeTooManyRequests, msg, constants.ErrorKindRateLimited, "")
			c.Abort()
			return
		}

		c.Next()
	}
}

// LimiterMiddleware 按登录用户维度调用业务限流器
// 未登录的请求回落到客户端 IP
func LimiterMiddleware(limiter service.RateLimiter, msgKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		identity := "ip:" + c.ClientIP()
		if raw, ok := c.Get("user_id"); ok {
			if userID, ok := raw.(uint); ok && userID > 0 {
				identity = fmt.Sprintf("user:%d", userID)
			}
		}
		allowed, err := limiter.CheckAndConsume(c.Request.Context(), identity)
		if err != nil {
			logger.Warnw("rate_limiter_check_failed", "identity", identity, "error", err)
			abortRateLimitUnavailable(c)
			return
		}
		if !allowed {
			key := strings.TrimSpace(msgKey)
			if key == "" {
				key = "error.too_many_requests"
			}
			msg := i18n.T(i18n.ResolveLocale(c), key)
			response.Fail(c, response.CodeTooManyRequests, msg, constants.ErrorKindRateLimited, "")
			c.Abort()
			return
		}
		c.Next()
	}
}

func abortRateLimitUnavailable(c *gin.Context) {
	msg := i18n.T(i18n.ResolveLocale(c), "error.rate_limit_unavailable")
	response.Fail(c, response.CodeInternal, msg, constants.ErrorKindInternal, "")
	c.Abort()
}

// KeyByIP 使用 IP 作为限流 key
func KeyByIP(c *gin.Context) string {
	return c.ClientIP()
}

// KeyByIPAndJSONField 使用 IP + JSON 字段作为限流 key
func KeyByIPAndJSONField(field string) RateLimitKeyFunc {
	return func(c *gin.Context) string {
		value := strings.ToLower(strings.TrimSpace(readJSONField(c, field)))
		if value == "" {
			return c.ClientIP()
		}
		return fmt.Sprintf("%s|%s", value, c.ClientIP())
	}
}

func readJSONField(c *gin.Context, field string) string {
	if c == nil || c.Request == nil || c.Request.Body == nil {
		return ""
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return ""
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
	if len(body) == 0 {
		return ""
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	value, ok := payload[field]
	if !ok {
		return ""
	}
	if text, ok := value.(string); ok {
		return strings.TrimSpace(text)
	}
	return ""
}
