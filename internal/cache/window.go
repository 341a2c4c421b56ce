package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// 首次计数时设置过期时间，窗口到期后 key 消失即开启新窗口
var windowCounterScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("TTL", KEYS[1])
return {current, ttl}
`)

// ErrWindowCounterResult 脚本返回结构异常
var ErrWindowCounterResult = errors.New("unexpected window counter result")

// WindowCount 固定窗口计数结果
type WindowCount struct {
	Count int64
	TTL   time.Duration
}

// IncrWindow 在固定窗口内对 key 计数，key 由调用方决定是否带前缀
func IncrWindow(ctx context.Context, client *redis.Client, key string, windowSeconds int) (WindowCount, error) {
	if client == nil {
		return WindowCount{}, errors.New("redis client is nil")
	}
	if windowSeconds <= 0 {
		return WindowCount{}, fmt.Errorf("invalid window seconds: %d", windowSeconds)
	}
	result, err := windowCounterScript.Run(ctx, client, []string{key}, windowSeconds).Result()
	if err != nil {
		return WindowCount{}, err
	}
	values, ok := result.([]interface{})
	if !ok || len(values) < 2 {
		return WindowCount{}, ErrWindowCounterResult
	}
	count, ok := toInt64(values[0])
	if !ok {
		return WindowCount{}, ErrWindowCounterResult
	}
	ttlSeconds, _ := toInt64(values[1])
	if ttlSeconds < 0 {
		ttlSeconds = 0
	}
	return WindowCount{Count: count, TTL: time.Duration(ttlSeconds) * time.Second}, nil
}

func toInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case uint64:
		return int64(v), true
	default:
		return 0, false
	}
}
