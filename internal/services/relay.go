package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/logger"
)

type RelayOutcome string

const (
	// Answered inside the webhook response (success or apology).
	OutcomeRespondedSync RelayOutcome = "responded_sync"
	// Placeholder returned; a follow-up is pending.
	OutcomeRespondedPlaceholder RelayOutcome = "responded_placeholder"
	OutcomeFollowupSent         RelayOutcome = "followup_sent"
	OutcomeFollowupDropped      RelayOutcome = "followup_dropped"
)

const (
	DefaultRelayTimeout     = 10 * time.Second
	DefaultRelayPlaceholder = "Great question! I'm thinking about it and will send you my answer in a moment."
	DefaultRelayApology     = "Sorry, I couldn't answer that right now. Please try again in a little while."
)

// InboundMessage is a user message delivered by the messaging webhook.
type InboundMessage struct {
	MessageSID  string
	Body        string
	From        string
	To          string
	ProfileName string
	NumMedia    int
	ReceivedAt  time.Time
}

type RelayReply struct {
	Body    string
	Outcome RelayOutcome
}

// ReplyGenerator produces the answer to an inbound message. It may take
// arbitrarily long; the relay never cancels it.
type ReplyGenerator interface {
	Reply(ctx context.Context, msg InboundMessage) (string, error)
}

// FollowupSender delivers a late answer as a new outbound message.
type FollowupSender interface {
	SendFollowup(ctx context.Context, to, from, body string) error
}

type RelayConfig struct {
	Timeout     time.Duration
	Placeholder string
	Apology     string
	SendTimeout time.Duration
	// OnSettled observes terminal outcomes. It runs on the settling goroutine.
	OnSettled func(msg InboundMessage, outcome RelayOutcome)
}

// Relay answers a webhook within a fixed budget. Fast answers are returned
// inline; slow ones get a placeholder now and exactly one follow-up message later.
type Relay struct {
	log    *logger.Logger
	gen    ReplyGenerator
	sender FollowupSender
	cfg    RelayConfig

	pending sync.WaitGroup
}

func NewRelay(log *logger.Logger, gen ReplyGenerator, sender FollowupSender, cfg RelayConfig) *Relay {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRelayTimeout
	}
	if strings.TrimSpace(cfg.Placeholder) == "" {
		cfg.Placeholder = DefaultRelayPlaceholder
	}
	if strings.TrimSpace(cfg.Apology) == "" {
		cfg.Apology = DefaultRelayApology
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	return &Relay{
		log:    log.With("service", "Relay"),
		gen:    gen,
		sender: sender,
		cfg:    cfg,
	}
}

func (r *Relay) Apology() string { return r.cfg.Apology }

type generation struct {
	text string
	err  error
}

// Handle always returns a well-formed reply within roughly cfg.Timeout.
func (r *Relay) Handle(ctx context.Context, msg InboundMessage) RelayReply {
	if strings.TrimSpace(msg.Body) == "" || strings.TrimSpace(msg.From) == "" || strings.TrimSpace(msg.To) == "" {
		r.log.Warn("Rejecting malformed inbound message", "message_sid", msg.MessageSID, "from", msg.From)
		r.settle(msg, OutcomeRespondedSync)
		return RelayReply{Body: r.cfg.Apology, Outcome: OutcomeRespondedSync}
	}

	// The generator outlives the webhook request.
	genCtx := context.WithoutCancel(ctx)
	results := make(chan generation, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				results <- generation{err: fmt.Errorf("reply generator panic: %v", p)}
			}
		}()
		text, err := r.gen.Reply(genCtx, msg)
		results <- generation{text: strings.TrimSpace(text), err: err}
	}()

	timer := time.NewTimer(r.cfg.Timeout)
	defer timer.Stop()

	select {
	case res := <-results:
		if res.err != nil || res.text == "" {
			r.log.Warn("Reply generation failed", "message_sid", msg.MessageSID, "from", msg.From, "error", errString(res.err))
			r.settle(msg, OutcomeRespondedSync)
			return RelayReply{Body: r.cfg.Apology, Outcome: OutcomeRespondedSync}
		}
		r.log.Debug("Replied inline", "message_sid", msg.MessageSID, "chars", len(res.text))
		r.settle(msg, OutcomeRespondedSync)
		return RelayReply{Body: res.text, Outcome: OutcomeRespondedSync}

	case <-timer.C:
		r.log.Info("Reply budget exceeded, deferring to follow-up",
			"message_sid", msg.MessageSID,
			"from", msg.From,
			"budget", r.cfg.Timeout.String(),
		)
		r.pending.Add(1)
		go r.followUp(genCtx, msg, results)
		return RelayReply{Body: r.cfg.Placeholder, Outcome: OutcomeRespondedPlaceholder}
	}
}

func (r *Relay) followUp(ctx context.Context, msg InboundMessage, results <-chan generation) {
	defer r.pending.Done()

	// No deadline here: a late answer is still delivered. Shutdown bounds
	// the wait through Wait(ctx).
	res := <-results
	if res.err != nil || res.text == "" {
		r.log.Error("Follow-up dropped, generation failed", "message_sid", msg.MessageSID, "from", msg.From, "error", errString(res.err))
		r.settle(msg, OutcomeFollowupDropped)
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, r.cfg.SendTimeout)
	defer cancel()
	// The reply goes back to the user from the number they wrote to.
	if err := r.sender.SendFollowup(sendCtx, msg.From, msg.To, res.text); err != nil {
		r.log.Error("Follow-up dropped, send failed", "message_sid", msg.MessageSID, "to", msg.From, "error", err.Error())
		r.settle(msg, OutcomeFollowupDropped)
		return
	}
	r.log.Info("Follow-up sent", "message_sid", msg.MessageSID, "to", msg.From)
	r.settle(msg, OutcomeFollowupSent)
}

func (r *Relay) settle(msg InboundMessage, outcome RelayOutcome) {
	if r.cfg.OnSettled != nil {
		r.cfg.OnSettled(msg, outcome)
	}
}

// Wait blocks until every pending follow-up has settled or ctx is done.
func (r *Relay) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func errString(err error) string {
	if err == nil {
		return "empty reply"
	}
	return err.Error()
}
