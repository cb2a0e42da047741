package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mwanafrika/mwanafrika-backend/internal/clients/twilio"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/logger"
	"github.com/mwanafrika/mwanafrika-backend/internal/services"
)

// MessageRelay answers an inbound message within the webhook deadline.
type MessageRelay interface {
	Handle(ctx context.Context, msg services.InboundMessage) services.RelayReply
	Apology() string
}

type WhatsAppHandler struct {
	log   *logger.Logger
	relay MessageRelay
}

func NewWhatsAppHandler(log *logger.Logger, relay MessageRelay) *WhatsAppHandler {
	return &WhatsAppHandler{log: log.With("handler", "WhatsAppHandler"), relay: relay}
}

// POST /webhooks/whatsapp
//
// The provider treats any non-200 answer as a delivery failure, so every path
// ends in a 200 TwiML document.
func (h *WhatsAppHandler) Webhook(c *gin.Context) {
	body := h.relay.Apology()
	defer func() {
		if p := recover(); p != nil {
			h.log.Error("whatsapp webhook panic", "panic", p)
			body = h.relay.Apology()
		}
		h.writeTwiML(c, body)
	}()

	if err := c.Request.ParseForm(); err != nil {
		h.log.Warn("unparsable whatsapp webhook", "error", err)
		return
	}
	in := twilio.ParseInbound(c.Request.PostForm)
	numMedia, _ := strconv.Atoi(in.NumMedia)

	reply := h.relay.Handle(c.Request.Context(), services.InboundMessage{
		MessageSID:  in.MessageSID,
		Body:        in.Body,
		From:        in.From,
		To:          in.To,
		ProfileName: in.ProfileName,
		NumMedia:    numMedia,
		ReceivedAt:  time.Now().UTC(),
	})
	h.log.Debug("whatsapp webhook answered", "message_sid", in.MessageSID, "outcome", string(reply.Outcome))
	body = reply.Body
}

func (h *WhatsAppHandler) writeTwiML(c *gin.Context, body string) {
	doc, err := twilio.TwiML(body)
	if err != nil {
		h.log.Error("twiml render failed", "error", err)
		doc = []byte(`<?xml version="1.0" encoding="UTF-8"?>` + "\n<Response></Response>")
	}
	c.Data(http.StatusOK, "application/xml; charset=utf-8", doc)
}
