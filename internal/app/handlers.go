package app

import (
	httpH "github.com/mwanafrika/mwanafrika-backend/internal/http/handlers"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/logger"
)

type Handlers struct {
	Health     *httpH.HealthHandler
	Auth       *httpH.AuthHandler
	User       *httpH.UserHandler
	Lesson     *httpH.LessonHandler
	Chat       *httpH.ChatHandler
	Curriculum *httpH.CurriculumHandler
	Store      *httpH.StoreHandler
	Reward     *httpH.RewardHandler
	Wellness   *httpH.WellnessHandler
	WhatsApp   *httpH.WhatsAppHandler
}

func wireHandlers(log *logger.Logger, services Services, clients Clients) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:     httpH.NewHealthHandler(),
		Auth:       httpH.NewAuthHandler(services.Auth),
		User:       httpH.NewUserHandler(services.Profile, services.Reward),
		Lesson:     httpH.NewLessonHandler(services.Lesson, services.Profile),
		Chat:       httpH.NewChatHandler(log, services.Tutor, services.Profile),
		Curriculum: httpH.NewCurriculumHandler(services.Curriculum),
		Store:      httpH.NewStoreHandler(services.Store),
		Reward:     httpH.NewRewardHandler(log, services.Reward, clients.Bucket),
		Wellness:   httpH.NewWellnessHandler(services.Wellness),
		WhatsApp:   httpH.NewWhatsAppHandler(log, services.Relay),
	}
}
