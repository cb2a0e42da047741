package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/mwanafrika/mwanafrika-backend/internal/content"
	"github.com/mwanafrika/mwanafrika-backend/internal/observability"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/logger"
	"github.com/mwanafrika/mwanafrika-backend/internal/services"
)

const (
	conversationCacheSize = 5000
)

type Services struct {
	Auth       services.AuthService
	Profile    services.ProfileService
	Lesson     services.LessonService
	Tutor      services.TutorService
	Curriculum services.CurriculumService
	Store      services.StoreService
	Reward     services.RewardService
	Wellness   services.WellnessService
	WhatsApp   *services.WhatsAppService
	Relay      *services.Relay
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, catalog *content.Catalog, clients Clients, reposet Repos, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")

	profile := services.NewProfileService(log, reposet.Profile, reposet.User, catalog)
	auth := services.NewAuthService(db, log, reposet.User, profile, cfg.JWTSecretKey, cfg.AccessTokenTTL())
	tutor := services.NewTutorService(log, clients.Gemini)

	renderer, err := services.NewVoucherRenderer(log)
	if err != nil {
		return Services{}, fmt.Errorf("init voucher renderer: %w", err)
	}

	var memory services.ConversationMemory
	if clients.Redis != nil {
		memory = services.NewRedisConversationMemory(clients.Redis, services.DefaultMemoryTurns, services.DefaultMemoryTTL)
	} else {
		memory, err = services.NewLRUConversationMemory(conversationCacheSize, services.DefaultMemoryTurns, services.DefaultMemoryTTL)
		if err != nil {
			return Services{}, fmt.Errorf("init conversation memory: %w", err)
		}
	}
	whatsapp := services.NewWhatsAppService(log, tutor, memory, reposet.User, profile)

	relay := services.NewRelay(log, whatsapp, services.NewTwilioFollowupSender(clients.Twilio), services.RelayConfig{
		Timeout:     cfg.RelayTimeout(),
		Placeholder: cfg.RelayPlaceholder,
		Apology:     cfg.RelayApology,
		OnSettled: func(_ services.InboundMessage, outcome services.RelayOutcome) {
			metrics.IncRelayOutcome(string(outcome))
		},
	})

	return Services{
		Auth:       auth,
		Profile:    profile,
		Lesson:     services.NewLessonService(log, catalog),
		Tutor:      tutor,
		Curriculum: services.NewCurriculumService(log, clients.Gemini, catalog),
		Store:      services.NewStoreService(log, clients.Places, catalog, cfg.PlacesRadiusMeters),
		Reward:     services.NewRewardService(log, catalog, profile, reposet.Profile, reposet.User, renderer, clients.Bucket, clients.SendGrid),
		Wellness:   services.NewWellnessService(log, catalog),
		WhatsApp:   whatsapp,
		Relay:      relay,
	}, nil
}
