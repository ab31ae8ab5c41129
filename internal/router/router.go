package router

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/raffle-next/internal/cache"
	"github.com/raffle-next/internal/config"
	"github.com/raffle-next/internal/constants"
	adminhandlers "github.com/raffle-next/internal/http/handlers/admin"
	publichandlers "github.com/raffle-next/internal/http/handlers/public"
	"github.com/raffle-next/internal/http/response"
	"github.com/raffle-next/internal/logger"
	"github.com/raffle-next/internal/provider"

	"github.com/gin-gonic/gin"
)

const adminRoutePrefix = "/api/v1/admin/"

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按前台/后台分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = constants.RedisPrefixDefault
	}
	purchaseRule := purchaseRateLimitRule(redisPrefix, cfg.Security.PurchaseRateLimit)

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	r.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiV1 := r.Group("/api/v1")
	{
		// 公开接口
		public := apiV1.Group("/public")
		{
			public.GET("/raffles", publicHandler.ListRaffles)
			public.GET("/raffles/:id", publicHandler.GetRaffle)
			public.GET("/raffles/:id/stats", publicHandler.GetRaffleStats)
			public.GET("/raffles/:id/prizes", publicHandler.ListPrizes)
			public.POST("/raffles/:id/purchases",
				RateLimitMiddleware(cache.Client(), purchaseRule, KeyByIPAndJSONField("owner_ref")),
				publicHandler.PurchaseTickets,
			)
		}

		// 管理员接口
		admin := apiV1.Group("/admin")
		admin.Use(AdminJWTAuthMiddleware(cfg.JWT.SecretKey, cfg.JWT.Issuer))
		{
			admin.GET("/raffles", adminHandler.ListRaffles)
			admin.POST("/raffles", adminHandler.CreateRaffle)
			admin.GET("/raffles/:id", adminHandler.GetRaffle)
			admin.PATCH("/raffles/:id", adminHandler.UpdateRaffle)
			admin.POST("/raffles/:id/status", adminHandler.ChangeRaffleStatus)
			admin.GET("/raffles/:id/stats", adminHandler.GetRaffleStats)
			admin.POST("/raffles/:id/reveal", adminHandler.RevealRaffle)
			admin.POST("/raffles/rescan", adminHandler.RescanRaffles)

			admin.GET("/raffles/:id/pool", adminHandler.GetTicketPool)
			admin.POST("/raffles/:id/pool", adminHandler.CreateTicketPool)
			admin.PUT("/raffles/:id/pool", adminHandler.RegenerateTicketPool)
			admin.DELETE("/raffles/:id/pool", adminHandler.PurgeTicketPool)
			admin.GET("/raffles/:id/tickets", adminHandler.ListTickets)
			admin.POST("/raffles/:id/sales", adminHandler.CreateManualSale)

			admin.GET("/raffles/:id/prizes", adminHandler.ListPrizes)
			admin.POST("/raffles/:id/prizes", adminHandler.CreatePrize)
			admin.PATCH("/prizes/:prize_id", adminHandler.UpdatePrize)
			admin.POST("/prizes/:prize_id/winner", adminHandler.AssignPrizeWinner)

			admin.GET("/routes", func(ctx *gin.Context) {
				response.Success(ctx, buildAdminRouteCatalog(r))
			})
		}
	}

	return r
}

type adminRouteCatalogItem struct {
	Module string `json:"module"`
	Method string `json:"method"`
	Path   string `json:"path"`
}

// buildAdminRouteCatalog 列出后台接口，供外部认证服务配置授权范围
func buildAdminRouteCatalog(engine *gin.Engine) []adminRouteCatalogItem {
	if engine == nil {
		return []adminRouteCatalogItem{}
	}

	routes := engine.Routes()
	seen := make(map[string]struct{}, len(routes))
	items := make([]adminRouteCatalogItem, 0, len(routes))

	for _, item := range routes {
		method := strings.ToUpper(strings.TrimSpace(item.Method))
		if method == "" || method == "OPTIONS" || method == "HEAD" {
			continue
		}
		if !strings.HasPrefix(item.Path, adminRoutePrefix) {
			continue
		}
		key := method + ":" + item.Path
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		items = append(items, adminRouteCatalogItem{
			Module: deriveAdminRouteModule(item.Path),
			Method: method,
			Path:   item.Path,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Module == items[j].Module {
			if items[i].Path == items[j].Path {
				return items[i].Method < items[j].Method
			}
			return items[i].Path < items[j].Path
		}
		return items[i].Module < items[j].Module
	})

	return items
}

func deriveAdminRouteModule(path string) string {
	normalized := strings.TrimPrefix(strings.TrimSpace(path), adminRoutePrefix)
	if normalized == "" {
		return "system"
	}
	segments := strings.Split(normalized, "/")
	if len(segments) >= 3 && segments[0] == "raffles" && strings.HasPrefix(segments[1], ":") {
		return segments[2]
	}
	return segments[0]
}

// purchaseRateLimitRule 购券接口限流规则，按持有人与 IP 计数
func purchaseRateLimitRule(redisPrefix string, limit config.RateLimitConfig) RateLimitRule {
	return RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:purchase", redisPrefix),
		WindowSeconds: limit.WindowSeconds,
		MaxRequests:   limit.MaxRequests,
		Message:       "购券请求过于频繁",
	}
}
