package router

import (
	"fmt"
	"strings"

	"github.com/qaznet/partner-core/internal/cache"
	"github.com/qaznet/partner-core/internal/config"
	adminhandlers "github.com/qaznet/partner-core/internal/http/handlers/admin"
	publichandlers "github.com/qaznet/partner-core/internal/http/handlers/public"
	"github.com/qaznet/partner-core/internal/logger"
	"github.com/qaznet/partner-core/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按合伙人/管理端分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "pc"
	}
	redisClient := cache.Client()
	loginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:login", redisPrefix),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxAttempts,
		BlockSeconds:  cfg.Security.LoginRateLimit.BlockSeconds,
		Message:       "登录尝试过于频繁",
	}
	adminLoginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:admin_login", redisPrefix),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxAttempts,
		BlockSeconds:  cfg.Security.LoginRateLimit.BlockSeconds,
		Message:       "登录尝试过于频繁",
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 认证接口
		auth := apiV1.Group("/auth")
		{
			auth.POST("/register", publicHandler.Register)
			auth.POST("/login", RateLimitMiddleware(redisClient, loginRule, KeyByIPAndJSONField("phone")), publicHandler.Login)
		}

		// 内部服务事件上报（计费/订单系统回调）
		events := apiV1.Group("/events")
		events.Use(ServiceTokenAuthMiddleware(cfg.Security.ServiceToken))
		{
			events.POST("", publicHandler.RecordEvent)
		}

		// 合伙人接口（需鉴权）
		partner := apiV1.Group("")
		partner.Use(MemberJWTAuthMiddleware(cfg.PartnerJWT.SecretKey, c.MemberRepo))
		{
			partner.GET("/me", publicHandler.GetMe)
			partner.POST("/me/sponsor", publicHandler.BindSponsor)
			partner.GET("/me/network", publicHandler.GetMyNetwork)
			partner.GET("/me/stats", publicHandler.GetMyStats)
			partner.GET("/me/balance", publicHandler.GetMyBalance)
			partner.GET("/me/commissions", publicHandler.ListMyCommissions)
			partner.GET("/me/skips", publicHandler.ListMySkips)
			partner.GET("/me/withdrawals", publicHandler.ListMyWithdraws)
			partner.POST("/me/withdrawals", publicHandler.ApplyWithdraw)
		}

		// 管理员接口
		admin := apiV1.Group("/admin")
		{
			// 登录接口（无需鉴权）
			admin.POST("/login", RateLimitMiddleware(redisClient, adminLoginRule, KeyByIP), adminHandler.AdminLogin)

			// 需要鉴权的接口
			authorized := admin.Use(AdminJWTAuthMiddleware(cfg.JWT.SecretKey, c.AdminRepo))
			{
				authorized.PUT("/password", adminHandler.UpdateAdminPassword)

				// 合伙人管理
				authorized.GET("/members", adminHandler.ListMembers)
				authorized.GET("/members/:id", adminHandler.GetMember)
				authorized.PATCH("/members/:id/status", adminHandler.SetMemberStatus)
				authorized.PATCH("/members/:id/marketing-exempt", adminHandler.SetMarketingExempt)
				authorized.PUT("/members/:id/product-sponsor", adminHandler.OverrideProductSponsor)
				authorized.GET("/members/:id/network", adminHandler.GetMemberNetwork)
				authorized.GET("/members/:id/balance", adminHandler.GetMemberBalance)
				authorized.GET("/members/:id/audit", adminHandler.AuditMember)

				// 事件与佣金
				authorized.GET("/events", adminHandler.ListEvents)
				authorized.GET("/events/:id/entries", adminHandler.ListEventEntries)
				authorized.POST("/events/:id/reverse", adminHandler.ReverseEvent)
				authorized.POST("/commissions/backfill", adminHandler.Backfill)
				authorized.POST("/commissions/sweep", adminHandler.ThawCommissions)

				// 规则管理
				authorized.GET("/rules", adminHandler.ListRules)
				authorized.GET("/rules/active", adminHandler.GetActiveRules)
				authorized.POST("/rules", adminHandler.CreateRule)

				// 提现审核
				authorized.GET("/withdrawals", adminHandler.ListWithdraws)
				authorized.POST("/withdrawals/:id/review", adminHandler.ReviewWithdraw)

				// 人工余额调整
				authorized.POST("/adjustments", adminHandler.CreateAdjustment)
				authorized.GET("/adjustments", adminHandler.ListAdjustments)
			}
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
