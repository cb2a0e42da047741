package app

import (
	"github.com/mwanafrika/mwanafrika-backend/internal/http"
	"github.com/mwanafrika/mwanafrika-backend/internal/observability"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/logger"
)

func wireServer(log *logger.Logger, cfg Config, handlers Handlers, middleware Middleware, metrics *observability.Metrics) *http.Server {
	return http.NewServer(http.RouterConfig{
		Log:            log,
		Metrics:        metrics,
		ServiceName:    serviceName,
		Tracing:        cfg.OtelEnabled,
		AllowedOrigins: cfg.AllowedOrigins(),

		AuthMiddleware:  middleware.Auth,
		RateLimiter:     middleware.RateLimiter,
		RateLimitPerMin: cfg.RateLimitPerMinute,
		TwilioSignature: middleware.TwilioSignature,

		HealthHandler:     handlers.Health,
		AuthHandler:       handlers.Auth,
		UserHandler:       handlers.User,
		LessonHandler:     handlers.Lesson,
		ChatHandler:       handlers.Chat,
		CurriculumHandler: handlers.Curriculum,
		StoreHandler:      handlers.Store,
		RewardHandler:     handlers.Reward,
		WellnessHandler:   handlers.Wellness,
		WhatsAppHandler:   handlers.WhatsApp,
	})
}
