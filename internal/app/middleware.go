package app

import (
	"github.com/gin-gonic/gin"

	httpMW "github.com/mwanafrika/mwanafrika-backend/internal/http/middleware"
	"github.com/mwanafrika/mwanafrika-backend/internal/observability"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/logger"
)

type Middleware struct {
	Auth            *httpMW.AuthMiddleware
	RateLimiter     *httpMW.RateLimiter
	TwilioSignature gin.HandlerFunc
}

func wireMiddleware(log *logger.Logger, cfg Config, clients Clients, services Services, metrics *observability.Metrics) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth:        httpMW.NewAuthMiddleware(log, services.Auth),
		RateLimiter: httpMW.NewRateLimiter(log, clients.Redis, metrics),
		TwilioSignature: httpMW.TwilioSignature(log, httpMW.TwilioSignatureConfig{
			AuthToken:      cfg.TwilioAuthToken,
			PublicURL:      cfg.WebhookPublicURL,
			SkipValidation: cfg.SkipTwilioValidation(),
		}),
	}
}
