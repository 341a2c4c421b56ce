package cache

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/punchcard-next/internal/config"

	"github.com/redis/go-redis/v9"
)

const (
	defaultPrefix = "pc"
	defaultHost   = "127.0.0.1"
	defaultPort   = 6379
)

// store 进程级 Redis 连接，未启用时所有读写均为空操作
type store struct {
	mu     sync.RWMutex
	client *redis.Client
	prefix string
}

var shared = &store{prefix: defaultPrefix}

func (s *store) set(client *redis.Client, prefix string) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultPrefix
	}
	s.mu.Lock()
	s.client = client
	s.prefix = prefix
	s.mu.Unlock()
}

func (s *store) get() (*redis.Client, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client, s.prefix
}

// InitRedis 初始化 Redis 客户端
func InitRedis(cfg *config.RedisConfig) error {
	if cfg == nil || !cfg.Enabled {
		shared.set(nil, "")
		return nil
	}
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = defaultHost
	}
	port := cfg.Port
	if port <= 0 {
		port = defaultPort
	}
	shared.set(redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(host, strconv.Itoa(port)),
		Password: cfg.Password,
		DB:       cfg.DB,
	}), cfg.Prefix)
	return nil
}

// Use 注入外部创建的 Redis 客户端（测试或共享连接）
func Use(client *redis.Client, prefix string) {
	shared.set(client, prefix)
}

// Enabled 判断缓存是否启用
func Enabled() bool {
	client, _ := shared.get()
	return client != nil
}

// Client 获取 Redis 客户端，未启用时为 nil
func Client() *redis.Client {
	client, _ := shared.get()
	return client
}

// GetJSON 读取 JSON 缓存
func GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	client, prefix := shared.get()
	if client == nil {
		return false, nil
	}
	raw, err := client.Get(ctx, joinKey(prefix, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON 写入 JSON 缓存
func SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	client, prefix := shared.get()
	if client == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return client.Set(ctx, joinKey(prefix, key), payload, ttl).Err()
}

// Del 删除缓存
func Del(ctx context.Context, key string) error {
	client, prefix := shared.get()
	if client == nil {
		return nil
	}
	return client.Del(ctx, joinKey(prefix, key)).Err()
}

// Close 关闭 Redis 客户端
func Close() error {
	client, _ := shared.get()
	shared.set(nil, "")
	if client == nil {
		return nil
	}
	return client.Close()
}

// BuildKey 生成带前缀的缓存 key
func BuildKey(key string) string {
	_, prefix := shared.get()
	return joinKey(prefix, key)
}

func joinKey(prefix, key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return prefix
	}
	return prefix + ":" + key
}
