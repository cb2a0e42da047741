package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/ctxutil"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/httpx"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/logger"
)

// Client is the outbound half of the WhatsApp channel.
type Client interface {
	SendMessage(ctx context.Context, req SendMessageRequest) (*Message, error)
	SendWhatsApp(ctx context.Context, to, body string) (*Message, error)
}

type Config struct {
	AccountSID   string
	AuthToken    string
	APIKey       string
	APIKeySecret string
	BaseURL      string
	// DefaultFrom is the sandbox or business sender, e.g. "whatsapp:+14155238886".
	DefaultFrom string
	Timeout     time.Duration
	MaxRetries  int
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	cfg.AccountSID = strings.TrimSpace(cfg.AccountSID)
	if cfg.AccountSID == "" {
		return nil, fmt.Errorf("missing TWILIO_ACCOUNT_SID")
	}

	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.APIKeySecret = strings.TrimSpace(cfg.APIKeySecret)
	cfg.AuthToken = strings.TrimSpace(cfg.AuthToken)
	if cfg.APIKey != "" {
		if cfg.APIKeySecret == "" {
			return nil, fmt.Errorf("missing TWILIO_API_KEY_SECRET (required when TWILIO_API_KEY is set)")
		}
	} else if cfg.AuthToken == "" {
		return nil, fmt.Errorf("missing TWILIO_AUTH_TOKEN (or provide TWILIO_API_KEY + TWILIO_API_KEY_SECRET)")
	}

	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.twilio.com/2010-04-01"
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.DefaultFrom = normalizeWhatsAppAddress(cfg.DefaultFrom)

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	return &client{
		log:        log.With("client", "TwilioClient"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type client struct {
	log        *logger.Logger
	cfg        Config
	httpClient *http.Client
}

type SendMessageRequest struct {
	To                string
	From              string
	Body              string
	MediaURLs         []string
	StatusCallbackURL string
}

type Message struct {
	SID          string  `json:"sid,omitempty"`
	AccountSID   string  `json:"account_sid,omitempty"`
	To           string  `json:"to,omitempty"`
	From         string  `json:"from,omitempty"`
	Body         string  `json:"body,omitempty"`
	Status       string  `json:"status,omitempty"`
	NumSegments  string  `json:"num_segments,omitempty"`
	ErrorCode    *int    `json:"error_code,omitempty"`
	ErrorMessage *string `json:"error_message,omitempty"`
	DateCreated  string  `json:"date_created,omitempty"`
}

func (c *client) SendWhatsApp(ctx context.Context, to, body string) (*Message, error) {
	return c.SendMessage(ctx, SendMessageRequest{
		To:   normalizeWhatsAppAddress(to),
		Body: body,
	})
}

func (c *client) SendMessage(ctx context.Context, req SendMessageRequest) (*Message, error) {
	if c == nil || c.httpClient == nil {
		return nil, fmt.Errorf("twilio client unavailable")
	}

	req.To = strings.TrimSpace(req.To)
	req.From = strings.TrimSpace(req.From)
	req.Body = strings.TrimSpace(req.Body)
	req.StatusCallbackURL = strings.TrimSpace(req.StatusCallbackURL)

	if req.To == "" {
		return nil, fmt.Errorf("twilio: To required")
	}
	if req.From == "" {
		req.From = c.cfg.DefaultFrom
	}
	if req.From == "" {
		return nil, fmt.Errorf("twilio: sender required (From or TWILIO_WHATSAPP_FROM)")
	}

	hasMedia := false
	for _, u := range req.MediaURLs {
		if strings.TrimSpace(u) != "" {
			hasMedia = true
			break
		}
	}
	if req.Body == "" && !hasMedia {
		return nil, fmt.Errorf("twilio: content required (Body or MediaURLs)")
	}

	form := url.Values{}
	form.Set("To", req.To)
	form.Set("From", req.From)
	if req.Body != "" {
		form.Set("Body", truncateBody(req.Body))
	}
	for _, mu := range req.MediaURLs {
		if mu = strings.TrimSpace(mu); mu != "" {
			form.Add("MediaUrl", mu)
		}
	}
	if req.StatusCallbackURL != "" {
		form.Set("StatusCallback", req.StatusCallbackURL)
	}

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", c.cfg.BaseURL, c.cfg.AccountSID)
	msg, err := doForm[Message](c, ctx, http.MethodPost, endpoint, form)
	if err != nil {
		return nil, err
	}
	c.log.Debug("Twilio message queued", "sid", msg.SID, "status", msg.Status, "to", req.To)
	return msg, nil
}

// WhatsApp bodies are capped at 1600 characters by the API.
const maxBodyRunes = 1600

func truncateBody(body string) string {
	runes := []rune(body)
	if len(runes) <= maxBodyRunes {
		return body
	}
	return string(runes[:maxBodyRunes-1]) + "…"
}

func normalizeWhatsAppAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" || strings.HasPrefix(addr, "whatsapp:") {
		return addr
	}
	return "whatsapp:" + addr
}

// ---------- HTTP / retry helpers ----------

type apiError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

type HTTPError struct {
	StatusCode int
	Body       string
	APIError   *apiError
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "twilio: <nil error>"
	}
	if e.APIError != nil && strings.TrimSpace(e.APIError.Message) != "" {
		if e.APIError.Code != 0 {
			return fmt.Sprintf("twilio http %d: %s (code=%d)", e.StatusCode, e.APIError.Message, e.APIError.Code)
		}
		return fmt.Sprintf("twilio http %d: %s", e.StatusCode, e.APIError.Message)
	}
	msg := strings.TrimSpace(e.Body)
	if msg == "" {
		msg = "<empty body>"
	}
	if len(msg) > 4000 {
		msg = msg[:4000] + "..."
	}
	return fmt.Sprintf("twilio http %d: %s", e.StatusCode, msg)
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (c *client) basicAuth() (user, pass string) {
	if c.cfg.APIKey != "" {
		return c.cfg.APIKey, c.cfg.APIKeySecret
	}
	return c.cfg.AccountSID, c.cfg.AuthToken
}

func doForm[T any](c *client, ctx context.Context, method, urlStr string, form url.Values) (*T, error) {
	var out *T
	policy := httpx.RetryPolicy{Name: "twilio", MaxRetries: c.cfg.MaxRetries}
	err := httpx.Do(ctxutil.Default(ctx), c.log, policy, func(ctx context.Context) (*http.Response, error) {
		res, resp, err := doFormOnce[T](c, ctx, method, urlStr, form)
		if err == nil {
			out = res
		}
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func doFormOnce[T any](c *client, ctx context.Context, method, urlStr string, form url.Values) (*T, *http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, urlStr, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	u, p := c.basicAuth()
	req.SetBasicAuth(u, p)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, resp, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, resp, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var ae apiError
		if json.Unmarshal(raw, &ae) == nil && strings.TrimSpace(ae.Message) != "" {
			return nil, resp, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw), APIError: &ae}
		}
		return nil, resp, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var out T
	if len(raw) == 0 {
		return &out, resp, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, resp, fmt.Errorf("twilio decode error: %w; raw=%s", err, string(raw))
	}
	return &out, resp, nil
}
