package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/punchcard-next/internal/constants"
)

// Validate 校验启动必需的配置组合，返回全部问题
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	var errs []error

	switch strings.ToLower(strings.TrimSpace(c.Database.Driver)) {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not supported", c.Database.Driver))
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if c.Punch.CodeTTLSeconds <= 0 {
		errs = append(errs, errors.New("punch.code_ttl_seconds must be positive"))
	}

	limits := map[string]RateLimitConfig{
		"punch.rate_limit":          c.Punch.RateLimit,
		"punch.validate_rate_limit": c.Punch.ValidateRateLimit,
	}
	for name, limit := range limits {
		errs = append(errs, c.validateRateLimit(name, limit)...)
	}
	if c.Queue.Enabled && len(c.Queue.Queues) == 0 {
		errs = append(errs, errors.New("queue.queues must not be empty when queue is enabled"))
	}
	return errors.Join(errs...)
}

func (c *Config) validateRateLimit(name string, limit RateLimitConfig) []error {
	var errs []error
	switch strings.ToLower(strings.TrimSpace(limit.Backend)) {
	case "", constants.RateLimitBackendMemory:
	case constants.RateLimitBackendRedis:
		if !c.Redis.Enabled {
			errs = append(errs, fmt.Errorf("%s.backend redis requires redis.enabled", name))
		}
	default:
		errs = append(errs, fmt.Errorf("%s.backend %q is not supported", name, limit.Backend))
	}
	if limit.WindowSeconds <= 0 || limit.MaxRequests <= 0 {
		errs = append(errs, fmt.Errorf("%s window_seconds and max_requests must be positive", name))
	}
	return errs
}
