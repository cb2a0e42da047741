package app

import (
	"context"
	"errors"

	"github.com/mwanafrika/mwanafrika-backend/internal/clients/gemini"
	"github.com/mwanafrika/mwanafrika-backend/internal/clients/places"
	"github.com/mwanafrika/mwanafrika-backend/internal/clients/sendgrid"
	"github.com/mwanafrika/mwanafrika-backend/internal/clients/twilio"
	"github.com/mwanafrika/mwanafrika-backend/internal/observability"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/geo"
)

// instrumentClients wraps the upstream providers so every failed call is
// counted under mwanafrika_upstream_errors_total. Nil clients stay nil.
func instrumentClients(c Clients, metrics *observability.Metrics) Clients {
	if metrics == nil {
		return c
	}
	if c.Gemini != nil {
		c.Gemini = &instrumentedGemini{inner: c.Gemini, metrics: metrics}
	}
	if c.Places != nil {
		c.Places = &instrumentedPlaces{inner: c.Places, metrics: metrics}
	}
	if c.Twilio != nil {
		c.Twilio = &instrumentedTwilio{inner: c.Twilio, metrics: metrics}
	}
	if c.SendGrid != nil {
		c.SendGrid = &instrumentedSendGrid{inner: c.SendGrid, metrics: metrics}
	}
	return c
}

func observeUpstream(metrics *observability.Metrics, provider string, err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	metrics.IncUpstreamError(provider)
}

type instrumentedGemini struct {
	inner   gemini.Client
	metrics *observability.Metrics
}

func (g *instrumentedGemini) GenerateText(ctx context.Context, system string, turns []gemini.Turn) (string, error) {
	out, err := g.inner.GenerateText(ctx, system, turns)
	observeUpstream(g.metrics, "gemini", err)
	return out, err
}

func (g *instrumentedGemini) GenerateJSON(ctx context.Context, system string, user string, out any) error {
	err := g.inner.GenerateJSON(ctx, system, user, out)
	observeUpstream(g.metrics, "gemini", err)
	return err
}

type instrumentedPlaces struct {
	inner   places.Client
	metrics *observability.Metrics
}

func (p *instrumentedPlaces) Geocode(ctx context.Context, address string) (places.Location, error) {
	loc, err := p.inner.Geocode(ctx, address)
	p.observe(err)
	return loc, err
}

func (p *instrumentedPlaces) Nearby(ctx context.Context, origin geo.Point, keyword string, radiusMeters int) ([]places.Place, error) {
	out, err := p.inner.Nearby(ctx, origin, keyword, radiusMeters)
	p.observe(err)
	return out, err
}

// An unknown address is a user error, not a provider failure.
func (p *instrumentedPlaces) observe(err error) {
	if errors.Is(err, places.ErrAddressNotFound) {
		return
	}
	observeUpstream(p.metrics, "places", err)
}

type instrumentedTwilio struct {
	inner   twilio.Client
	metrics *observability.Metrics
}

func (t *instrumentedTwilio) SendMessage(ctx context.Context, req twilio.SendMessageRequest) (*twilio.Message, error) {
	msg, err := t.inner.SendMessage(ctx, req)
	observeUpstream(t.metrics, "twilio", err)
	return msg, err
}

func (t *instrumentedTwilio) SendWhatsApp(ctx context.Context, to, body string) (*twilio.Message, error) {
	msg, err := t.inner.SendWhatsApp(ctx, to, body)
	observeUpstream(t.metrics, "twilio", err)
	return msg, err
}

type instrumentedSendGrid struct {
	inner   sendgrid.Client
	metrics *observability.Metrics
}

func (s *instrumentedSendGrid) Send(ctx context.Context, req sendgrid.SendEmailRequest) (*sendgrid.SendEmailResult, error) {
	res, err := s.inner.Send(ctx, req)
	observeUpstream(s.metrics, "sendgrid", err)
	return res, err
}
