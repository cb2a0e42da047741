package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/mwanafrika/mwanafrika-backend/internal/http/handlers"
	httpMW "github.com/mwanafrika/mwanafrika-backend/internal/http/middleware"
	"github.com/mwanafrika/mwanafrika-backend/internal/observability"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	ServiceName    string
	Tracing        bool
	AllowedOrigins []string

	AuthMiddleware  *httpMW.AuthMiddleware
	RateLimiter     *httpMW.RateLimiter
	RateLimitPerMin int
	TwilioSignature gin.HandlerFunc

	HealthHandler     *httpH.HealthHandler
	AuthHandler       *httpH.AuthHandler
	UserHandler       *httpH.UserHandler
	LessonHandler     *httpH.LessonHandler
	ChatHandler       *httpH.ChatHandler
	CurriculumHandler *httpH.CurriculumHandler
	StoreHandler      *httpH.StoreHandler
	RewardHandler     *httpH.RewardHandler
	WellnessHandler   *httpH.WellnessHandler
	WhatsAppHandler   *httpH.WhatsAppHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Tracing {
		name := cfg.ServiceName
		if name == "" {
			name = "mwanafrika-api"
		}
		r.Use(otelgin.Middleware(name))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.Metrics(cfg.Metrics))
	if cfg.Log != nil {
		r.Use(httpMW.RequestLogger(cfg.Log))
	}
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	limit := func(scope string) gin.HandlerFunc {
		if cfg.RateLimiter == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return cfg.RateLimiter.Limit(scope, cfg.RateLimitPerMin, time.Minute)
	}
	optionalAuth := func(c *gin.Context) { c.Next() }
	if cfg.AuthMiddleware != nil {
		optionalAuth = cfg.AuthMiddleware.OptionalAuth()
	}

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	// WhatsApp webhook. Deliveries come from the provider's shared IPs and
	// always get a TwiML reply, so no rate limit here.
	if cfg.WhatsAppHandler != nil {
		chain := []gin.HandlerFunc{}
		if cfg.TwilioSignature != nil {
			chain = append(chain, cfg.TwilioSignature)
		}
		chain = append(chain, cfg.WhatsAppHandler.Webhook)
		r.POST("/webhooks/whatsapp", chain...)
	}

	// Voucher images (local storage)
	if cfg.RewardHandler != nil {
		r.GET("/vouchers/:file", cfg.RewardHandler.Voucher)
	}

	api := r.Group("/api")
	{
		if cfg.AuthHandler != nil {
			api.POST("/auth/register", limit("auth"), cfg.AuthHandler.Register)
			api.POST("/auth/login", limit("auth"), cfg.AuthHandler.Login)
		}
		if cfg.LessonHandler != nil {
			api.GET("/subjects", cfg.LessonHandler.Subjects)
			api.GET("/lessons", cfg.LessonHandler.List)
			api.GET("/lessons/:id", cfg.LessonHandler.Get)
		}
		if cfg.UserHandler != nil {
			api.GET("/leaderboard", cfg.UserHandler.Leaderboard)
		}
		if cfg.RewardHandler != nil {
			api.GET("/rewards", cfg.RewardHandler.List)
		}
		if cfg.StoreHandler != nil {
			api.POST("/stores/search", limit("stores"), cfg.StoreHandler.Search)
			api.GET("/rewards/:id/stores", limit("stores"), cfg.StoreHandler.ForReward)
		}
		if cfg.WellnessHandler != nil {
			api.POST("/wellness/message", cfg.WellnessHandler.Message)
		}
	}

	// AI endpoints work anonymously; signed-in users get quest progress.
	ai := api.Group("/")
	ai.Use(optionalAuth, limit("ai"))
	{
		if cfg.ChatHandler != nil {
			ai.POST("/chat", cfg.ChatHandler.Chat)
		}
		if cfg.CurriculumHandler != nil {
			ai.POST("/curriculum", cfg.CurriculumHandler.Curriculum)
			ai.POST("/quiz", cfg.CurriculumHandler.Quiz)
			ai.POST("/quiz/analyze", cfg.CurriculumHandler.Analyze)
		}
	}

	protected := api.Group("/")
	if cfg.AuthMiddleware != nil {
		protected.Use(cfg.AuthMiddleware.RequireAuth())
	}
	{
		if cfg.UserHandler != nil {
			protected.GET("/me", cfg.UserHandler.Me)
			protected.PATCH("/me/preferences", cfg.UserHandler.UpdatePreferences)
			protected.GET("/me/redemptions", cfg.UserHandler.Redemptions)
		}
		if cfg.LessonHandler != nil {
			protected.POST("/lessons/:id/complete", cfg.LessonHandler.Complete)
		}
		if cfg.RewardHandler != nil {
			protected.POST("/rewards/:id/redeem", limit("redeem"), cfg.RewardHandler.Redeem)
		}
	}

	return r
}
