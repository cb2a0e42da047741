package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mwanafrika/mwanafrika-backend/internal/clients/gemini"
	"github.com/mwanafrika/mwanafrika-backend/internal/clients/twilio"
	"github.com/mwanafrika/mwanafrika-backend/internal/content"
	"github.com/mwanafrika/mwanafrika-backend/internal/data/repos"
	"github.com/mwanafrika/mwanafrika-backend/internal/data/repos/testutil"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/logger"
)

func newTestWhatsApp(t *testing.T, ai *fakeAI) (*WhatsAppService, ConversationMemory) {
	t.Helper()
	mem, err := NewLRUConversationMemory(16, 10, time.Hour)
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	return NewWhatsAppService(logger.Nop(), NewTutorService(logger.Nop(), ai), mem, nil, nil), mem
}

func TestWhatsAppReplyKeepsConversation(t *testing.T) {
	ai := &fakeAI{text: "Photosynthesis is how plants make food."}
	ws, mem := newTestWhatsApp(t, ai)
	msg := testMessage()

	if _, err := ws.Reply(context.Background(), msg); err != nil {
		t.Fatalf("reply: %v", err)
	}
	msg.Body = "Why do they need light?"
	if _, err := ws.Reply(context.Background(), msg); err != nil {
		t.Fatalf("second reply: %v", err)
	}

	if len(ai.lastTurns) != 3 {
		t.Fatalf("expected history plus new turn, got %d turns", len(ai.lastTurns))
	}
	if ai.lastTurns[1].Role != gemini.RoleModel || ai.lastTurns[2].Text != "Why do they need light?" {
		t.Fatalf("turns: %+v", ai.lastTurns)
	}
	if !strings.Contains(ai.lastSystem, "WhatsApp") {
		t.Fatalf("whatsapp policy not applied")
	}
	stored, _ := mem.Load(context.Background(), msg.From)
	if len(stored) != 4 {
		t.Fatalf("stored turns: %d", len(stored))
	}
}

func TestWhatsAppResetCommand(t *testing.T) {
	ai := &fakeAI{text: "answer"}
	ws, mem := newTestWhatsApp(t, ai)
	msg := testMessage()
	_, _ = ws.Reply(context.Background(), msg)

	msg.Body = " RESET "
	reply, err := ws.Reply(context.Background(), msg)
	if err != nil || reply != whatsAppResetReply {
		t.Fatalf("reset reply: %q %v", reply, err)
	}
	if stored, _ := mem.Load(context.Background(), msg.From); len(stored) != 0 {
		t.Fatalf("memory not cleared")
	}
	if ai.calls != 1 {
		t.Fatalf("reset should not call the model")
	}
}

func TestWhatsAppReplyErrorLeavesMemory(t *testing.T) {
	ws, mem := newTestWhatsApp(t, &fakeAI{err: errors.New("down")})
	if _, err := ws.Reply(context.Background(), testMessage()); err == nil {
		t.Fatalf("expected error")
	}
	if stored, _ := mem.Load(context.Background(), testMessage().From); len(stored) != 0 {
		t.Fatalf("failed exchange was stored")
	}
}

func TestWhatsAppLinkedSenderEarnsQuestProgress(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()
	userRepo := repos.NewUserRepo(db, log)
	ps := NewProfileService(log, repos.NewProfileRepo(db, log), userRepo, content.MustLoad())

	u := testutil.SeedUser(t, ctx, db, "linked@example.com")
	if err := userRepo.UpdatePhone(ctx, nil, u.ID, "whatsapp:+254700000001"); err != nil {
		t.Fatalf("phone: %v", err)
	}
	if _, err := ps.Get(ctx, u.ID); err != nil {
		t.Fatalf("profile: %v", err)
	}

	ai := &fakeAI{text: "answer"}
	mem, _ := NewLRUConversationMemory(4, 10, time.Hour)
	ws := NewWhatsAppService(log, NewTutorService(log, ai), mem, userRepo, ps)
	if _, err := ws.Reply(ctx, testMessage()); err != nil {
		t.Fatalf("reply: %v", err)
	}
	if !strings.Contains(ai.lastSystem, "Amina") {
		t.Fatalf("policy not personalised: %q", ai.lastSystem)
	}
	p, err := ps.Get(ctx, u.ID)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	var asked bool
	for _, q := range p.DailyQuests {
		if q.Kind == "ask_tutor" && q.Completed {
			asked = true
		}
	}
	if !asked {
		t.Fatalf("ask_tutor quest not progressed: %+v", p.DailyQuests)
	}
}

type fakeTwilio struct {
	reqs []twilio.SendMessageRequest
	err  error
}

func (f *fakeTwilio) SendMessage(ctx context.Context, req twilio.SendMessageRequest) (*twilio.Message, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &twilio.Message{SID: "SM1"}, nil
}

func (f *fakeTwilio) SendWhatsApp(ctx context.Context, to, body string) (*twilio.Message, error) {
	return f.SendMessage(ctx, twilio.SendMessageRequest{To: to, Body: body})
}

func TestTwilioFollowupSender(t *testing.T) {
	ft := &fakeTwilio{}
	s := NewTwilioFollowupSender(ft)
	if err := s.SendFollowup(context.Background(), "whatsapp:+1", "whatsapp:+2", "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(ft.reqs) != 1 || ft.reqs[0].To != "whatsapp:+1" || ft.reqs[0].From != "whatsapp:+2" || ft.reqs[0].Body != "hello" {
		t.Fatalf("request: %+v", ft.reqs)
	}
	if err := NewTwilioFollowupSender(nil).SendFollowup(context.Background(), "a", "b", "c"); err == nil {
		t.Fatalf("expected error without client")
	}
}
