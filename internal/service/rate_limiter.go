package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/punchcard-next/internal/cache"
	"github.com/punchcard-next/internal/config"
	"github.com/punchcard-next/internal/constants"
	"github.com/punchcard-next/internal/logger"

	"github.com/redis/go-redis/v9"
)

// RateLimiter 按身份的固定窗口限流
type RateLimiter interface {
	CheckAndConsume(ctx context.Context, identity string) (bool, error)
}

// RateLimitPolicy 固定窗口策略
type RateLimitPolicy struct {
	Window      time.Duration
	MaxRequests int
}

// Enabled 策略是否生效
func (p RateLimitPolicy) Enabled() bool {
	return p.Window > 0 && p.MaxRequests > 0
}

// PolicyFromConfig 由配置构建策略
func PolicyFromConfig(cfg config.RateLimitConfig) RateLimitPolicy {
	return RateLimitPolicy{
		Window:      time.Duration(cfg.WindowSeconds) * time.Second,
		MaxRequests: cfg.MaxRequests,
	}
}

type rateLimitWindow struct {
	count   int
	resetAt time.Time
}

// MemoryRateLimiter 进程内限流，多实例部署时各实例独立计数
type MemoryRateLimiter struct {
	policy    RateLimitPolicy
	now       func() time.Time
	mu        sync.Mutex
	windows   map[string]*rateLimitWindow
	lastSweep time.Time
}

// NewMemoryRateLimiter 创建进程内限流器
func NewMemoryRateLimiter(policy RateLimitPolicy) *MemoryRateLimiter {
	return &MemoryRateLimiter{
		policy:  policy,
		now:     time.Now,
		windows: make(map[string]*rateLimitWindow),
	}
}

// CheckAndConsume 检查并消耗一次额度
// 窗口过期后整体替换为新窗口；达到上限时拒绝且不再累加
func (l *MemoryRateLimiter) CheckAndConsume(_ context.Context, identity string) (bool, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return false, ErrUnauthenticated
	}
	if !l.policy.Enabled() {
		return true, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweepLocked(now)

	window, ok := l.windows[identity]
	if !ok || !now.Before(window.resetAt) {
		l.windows[identity] = &rateLimitWindow{count: 1, resetAt: now.Add(l.policy.Window)}
		return true, nil
	}
	if window.count >= l.policy.MaxRequests {
		return false, nil
	}
	window.count++
	return true, nil
}

// sweepLocked 每个窗口周期清理一次过期窗口
func (l *MemoryRateLimiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < l.policy.Window {
		return
	}
	for identity, window := range l.windows {
		if !now.Before(window.resetAt) {
			delete(l.windows, identity)
		}
	}
	l.lastSweep = now
}

// size 当前持有的窗口数
func (l *MemoryRateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// RedisRateLimiter 基于 Redis 的共享限流，多实例共用计数
type RedisRateLimiter struct {
	client *redis.Client
	prefix string
	policy RateLimitPolicy
}

// NewRedisRateLimiter 创建 Redis 限流器
func NewRedisRateLimiter(client *redis.Client, prefix string, policy RateLimitPolicy) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, prefix: strings.TrimSpace(prefix), policy: policy}
}

// CheckAndConsume 检查并消耗一次额度
func (l *RedisRateLimiter) CheckAndConsume(ctx context.Context, identity string) (bool, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return false, ErrUnauthenticated
	}
	if !l.policy.Enabled() {
		return true, nil
	}
	seconds := int(l.policy.Window / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	key := identity
	if l.prefix != "" {
		key = fmt.Sprintf("%s:%s", l.prefix, identity)
	}
	result, err := cache.IncrWindow(ctx, l.client, key, seconds)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRateLimitUnavailable, err)
	}
	return result.Count <= int64(l.policy.MaxRequests), nil
}

// NewRateLimiter 按配置选择限流后端，Redis 不可用时回退到进程内实现
func NewRateLimiter(name string, cfg config.RateLimitConfig, client *redis.Client) RateLimiter {
	policy := PolicyFromConfig(cfg)
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == constants.RateLimitBackendRedis {
		if client != nil {
			return NewRedisRateLimiter(client, cache.BuildKey("ratelimit:"+name), policy)
		}
		logger.Warnw("rate_limiter_redis_unavailable", "limiter", name, "fallback", constants.RateLimitBackendMemory)
	}
	logger.Warnw("rate_limiter_process_local",
		"limiter", name,
		"window_seconds", cfg.WindowSeconds,
		"max_requests", cfg.MaxRequests,
		"note", "counters are not shared across instances",
	)
	return NewMemoryRateLimiter(policy)
}
