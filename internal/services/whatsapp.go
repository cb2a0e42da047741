package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/mwanafrika/mwanafrika-backend/internal/clients/gemini"
	"github.com/mwanafrika/mwanafrika-backend/internal/clients/twilio"
	"github.com/mwanafrika/mwanafrika-backend/internal/data/repos"
	types "github.com/mwanafrika/mwanafrika-backend/internal/domain"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/logger"
)

const whatsAppResetReply = "Okay, let's start fresh! What would you like to learn about?"

var whatsAppResetCommands = map[string]bool{"reset": true, "restart": true, "new chat": true}

// WhatsAppService generates tutor replies for the messaging channel. It is
// the relay's ReplyGenerator.
type WhatsAppService struct {
	log            *logger.Logger
	tutor          TutorService
	memory         ConversationMemory
	userRepo       repos.UserRepo
	profileService ProfileService
}

// NewWhatsAppService accepts nil userRepo/profileService; replies are then anonymous.
func NewWhatsAppService(log *logger.Logger, tutor TutorService, memory ConversationMemory, userRepo repos.UserRepo, profileService ProfileService) *WhatsAppService {
	return &WhatsAppService{
		log:            log.With("service", "WhatsAppService"),
		tutor:          tutor,
		memory:         memory,
		userRepo:       userRepo,
		profileService: profileService,
	}
}

func (ws *WhatsAppService) Reply(ctx context.Context, msg InboundMessage) (string, error) {
	body := strings.TrimSpace(msg.Body)
	if whatsAppResetCommands[strings.ToLower(body)] {
		if err := ws.memory.Clear(ctx, msg.From); err != nil {
			ws.log.Warn("Conversation reset failed", "from", msg.From, "error", err)
		}
		return whatsAppResetReply, nil
	}

	history, err := ws.memory.Load(ctx, msg.From)
	if err != nil {
		// Answer without context rather than not at all.
		ws.log.Warn("Conversation memory unavailable", "from", msg.From, "error", err)
		history = nil
	}
	userTurn := gemini.Turn{Role: gemini.RoleUser, Text: body}
	if msg.NumMedia > 0 {
		userTurn.Text += "\n(The student also sent a photo, which you cannot see. Ask them to type the question.)"
	}
	turns := append(history, userTurn)

	policy := whatsAppPolicy
	linked := ws.linkedUser(ctx, msg.From)
	if linked != nil && linked.DisplayName != "" {
		policy += fmt.Sprintf("\nThe student's name is %s.", linked.DisplayName)
	}

	answer, err := ws.tutor.Answer(ctx, policy, turns)
	if err != nil {
		return "", err
	}

	if err := ws.memory.Append(ctx, msg.From, gemini.Turn{Role: gemini.RoleUser, Text: body}, gemini.Turn{Role: gemini.RoleModel, Text: answer}); err != nil {
		ws.log.Warn("Conversation memory write failed", "from", msg.From, "error", err)
	}
	if linked != nil && ws.profileService != nil {
		if err := ws.profileService.RecordTutorQuestion(ctx, linked.ID); err != nil {
			ws.log.Warn("Tutor quest progress not recorded", "user_id", linked.ID, "error", err)
		}
	}
	return answer, nil
}

// linkedUser returns the account registered with the sender's number, if any.
func (ws *WhatsAppService) linkedUser(ctx context.Context, from string) *types.User {
	if ws.userRepo == nil {
		return nil
	}
	u, err := ws.userRepo.GetByPhone(ctx, nil, NormalizeWhatsAppNumber(from))
	if err != nil {
		ws.log.Warn("Sender lookup failed", "from", from, "error", err)
		return nil
	}
	return u
}

// twilioFollowupSender delivers relay follow-ups over the Twilio Messages API.
type twilioFollowupSender struct {
	client twilio.Client
}

func NewTwilioFollowupSender(client twilio.Client) FollowupSender {
	return &twilioFollowupSender{client: client}
}

func (s *twilioFollowupSender) SendFollowup(ctx context.Context, to, from, body string) error {
	if s.client == nil {
		return fmt.Errorf("twilio client not configured")
	}
	_, err := s.client.SendMessage(ctx, twilio.SendMessageRequest{To: to, From: from, Body: body})
	return err
}
