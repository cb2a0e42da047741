package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/mwanafrika/mwanafrika-backend/internal/clients/gemini"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/apierr"
	apperr "github.com/mwanafrika/mwanafrika-backend/internal/pkg/errors"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/logger"
)

const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"

	maxChatMessages = 40
)

type ChatImage struct {
	MimeType string `json:"mime_type" binding:"required"`
	Data     string `json:"data" binding:"required"`
}

type ChatMessage struct {
	Role    string     `json:"role" binding:"required"`
	Content string     `json:"content"`
	Image   *ChatImage `json:"image,omitempty"`
}

type TutorRequest struct {
	Messages []ChatMessage `json:"messages"`
	Subject  string        `json:"subject"`
	Language string        `json:"language"`
}

type TutorService interface {
	// Chat answers the last user message of a web conversation.
	Chat(ctx context.Context, req TutorRequest) (string, error)
	// Answer runs a conversation under an explicit system policy.
	Answer(ctx context.Context, policy string, turns []gemini.Turn) (string, error)
}

type tutorService struct {
	log *logger.Logger
	ai  gemini.Client
}

// NewTutorService accepts a nil client; every call then fails with not_configured.
func NewTutorService(log *logger.Logger, ai gemini.Client) TutorService {
	return &tutorService{
		log: log.With("service", "TutorService"),
		ai:  ai,
	}
}

func (ts *tutorService) Chat(ctx context.Context, req TutorRequest) (string, error) {
	turns, err := validateChat(req.Messages)
	if err != nil {
		return "", err
	}
	return ts.Answer(ctx, tutorSystemPrompt(tutorPolicy, req.Subject, req.Language), turns)
}

func (ts *tutorService) Answer(ctx context.Context, policy string, turns []gemini.Turn) (string, error) {
	if ts.ai == nil {
		return "", apierr.NotConfigured(fmt.Errorf("tutor: %w: GEMINI_API_KEY", apperr.ErrNotConfigured))
	}
	text, err := ts.ai.GenerateText(ctx, policy, turns)
	if err != nil {
		ts.log.Error("Tutor generation failed", "error", err, "quota", gemini.IsQuotaError(err))
		return "", apierr.Upstream(fmt.Errorf("the tutor is unavailable right now, please try again"))
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apierr.Upstream(fmt.Errorf("the tutor returned an empty answer"))
	}
	return text, nil
}

func validateChat(msgs []ChatMessage) ([]gemini.Turn, error) {
	if len(msgs) == 0 {
		return nil, apierr.BadRequest("invalid_request", "at least one message is required")
	}
	if len(msgs) > maxChatMessages {
		msgs = msgs[len(msgs)-maxChatMessages:]
	}
	turns := make([]gemini.Turn, 0, len(msgs))
	for i, m := range msgs {
		t := gemini.Turn{Text: strings.TrimSpace(m.Content)}
		switch m.Role {
		case ChatRoleUser:
			t.Role = gemini.RoleUser
		case ChatRoleAssistant:
			t.Role = gemini.RoleModel
		default:
			return nil, apierr.BadRequest("invalid_request", "message %d has unsupported role %q", i, m.Role)
		}
		if m.Image != nil {
			if !strings.HasPrefix(m.Image.MimeType, "image/") {
				return nil, apierr.BadRequest("invalid_request", "message %d image must be an image type", i)
			}
			t.Images = []gemini.InlineImage{{MimeType: m.Image.MimeType, Data: m.Image.Data}}
		}
		if t.Text == "" && len(t.Images) == 0 {
			return nil, apierr.BadRequest("invalid_request", "message %d is empty", i)
		}
		turns = append(turns, t)
	}
	if msgs[len(msgs)-1].Role != ChatRoleUser {
		return nil, apierr.BadRequest("invalid_request", "the last message must be from the user")
	}
	return turns, nil
}
