package router

import (
	"fmt"
	"strings"

	"github.com/punchcard-next/internal/cache"
	"github.com/punchcard-next/internal/config"
	publichandlers "github.com/punchcard-next/internal/http/handlers/public"
	"github.com/punchcard-next/internal/logger"
	"github.com/punchcard-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	handler := publichandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "pc"
	}
	loginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:login", redisPrefix),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxRequests,
		MessageKey:    "error.login_too_many",
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	apiV1 := r.Group("/api/v1")
	{
		auth := apiV1.Group("/auth")
		{
			auth.POST("/login", RateLimitMiddleware(cache.Client(), loginRule, KeyByIPAndJSONField("email")), handler.Login)
		}

		// 用户接口（需鉴权）
		user := apiV1.Group("")
		user.Use(UserJWTAuthMiddleware(cfg.UserJWT.SecretKey, c.UserRepo))
		{
			user.GET("/me", handler.GetMe)

			user.GET("/businesses", handler.ListBusinesses)
			user.POST("/businesses", handler.CreateBusiness)
			user.GET("/businesses/:id", handler.GetBusiness)
			user.POST("/businesses/:id/staff", handler.GrantStaff)

			user.POST("/cards", handler.CreateCard)
			user.GET("/cards", handler.ListCards)
			user.GET("/cards/:id", handler.GetCard)
			user.GET("/cards/:id/punch-code", handler.GetActivePunchCode)

			// 生成限流在服务层按用户维度执行
			user.POST("/punch-codes", handler.GeneratePunchCode)
			user.POST("/punch-codes/validate", LimiterMiddleware(c.ValidateRateLimiter, "error.punch_validate_rate_limited"), handler.ValidatePunchCode)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
