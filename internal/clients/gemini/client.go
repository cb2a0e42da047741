package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
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

// Role values accepted by generateContent.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// InlineImage is a base64 encoded image attached to a turn.
type InlineImage struct {
	MimeType string
	Data     string
}

type Turn struct {
	Role   string
	Text   string
	Images []InlineImage
}

// Client is the generative-language client used by the tutor, curriculum and WhatsApp services.
type Client interface {
	// Plain text completion over a multi-turn conversation.
	GenerateText(ctx context.Context, system string, turns []Turn) (string, error)

	// JSON mode: the model is asked for application/json and the reply is decoded into out.
	GenerateJSON(ctx context.Context, system string, user string, out any) error
}

type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Timeout     time.Duration
	MaxRetries  int
	Temperature float64
}

var ErrQuotaExhausted = errors.New("gemini: quota exhausted")

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com"
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.7
	}
	return &client{
		log:        log.With("client", "GeminiClient"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type client struct {
	log        *logger.Logger
	cfg        Config
	httpClient *http.Client
}

// HTTPError is a non-2xx reply from the API.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 2000 {
		body = body[:2000] + "..."
	}
	return fmt.Sprintf("gemini http %d: %s", e.StatusCode, body)
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// quotaError deliberately carries no status code so the retry loop stops on it.
type quotaError struct{ body string }

func (e *quotaError) Error() string { return ErrQuotaExhausted.Error() + ": " + e.body }
func (e *quotaError) Unwrap() error { return ErrQuotaExhausted }

// IsQuotaError reports whether err is an upstream quota/rate exhaustion.
func IsQuotaError(err error) bool {
	return errors.Is(err, ErrQuotaExhausted)
}

// ---------- wire types ----------

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type generateRequest struct {
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// ---------- API ----------

func (c *client) GenerateText(ctx context.Context, system string, turns []Turn) (string, error) {
	if len(turns) == 0 {
		return "", fmt.Errorf("gemini: at least one turn required")
	}
	req := generateRequest{
		Contents:         make([]content, 0, len(turns)),
		GenerationConfig: generationConfig{Temperature: c.cfg.Temperature},
	}
	if s := strings.TrimSpace(system); s != "" {
		req.SystemInstruction = &content{Parts: []part{{Text: s}}}
	}
	for _, t := range turns {
		role := RoleUser
		if t.Role == RoleModel {
			role = RoleModel
		}
		parts := make([]part, 0, 1+len(t.Images))
		if txt := strings.TrimSpace(t.Text); txt != "" {
			parts = append(parts, part{Text: txt})
		}
		for _, img := range t.Images {
			if img.Data == "" {
				continue
			}
			parts = append(parts, part{InlineData: &inlineData{MimeType: img.MimeType, Data: img.Data}})
		}
		if len(parts) == 0 {
			continue
		}
		req.Contents = append(req.Contents, content{Role: role, Parts: parts})
	}
	if len(req.Contents) == 0 {
		return "", fmt.Errorf("gemini: empty conversation")
	}
	return c.generate(ctx, req)
}

func (c *client) GenerateJSON(ctx context.Context, system string, user string, out any) error {
	req := generateRequest{
		Contents: []content{{Role: RoleUser, Parts: []part{{Text: user}}}},
		GenerationConfig: generationConfig{
			Temperature:      c.cfg.Temperature,
			ResponseMimeType: "application/json",
		},
	}
	if s := strings.TrimSpace(system); s != "" {
		req.SystemInstruction = &content{Parts: []part{{Text: s}}}
	}
	text, err := c.generate(ctx, req)
	if err != nil {
		return err
	}
	cleaned := StripCodeFences(text)
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return fmt.Errorf("gemini: decode json reply: %w", err)
	}
	return nil
}

// StripCodeFences removes a surrounding ``` or ```json fence the model sometimes adds.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func (c *client) generate(ctx context.Context, body generateRequest) (string, error) {
	path := fmt.Sprintf("/v1beta/models/%s:generateContent", url.PathEscape(c.cfg.Model))

	var out generateResponse
	policy := httpx.RetryPolicy{Name: "gemini", MaxRetries: c.cfg.MaxRetries}
	err := httpx.Do(ctxutil.Default(ctx), c.log, policy, func(ctx context.Context) (*http.Response, error) {
		resp, raw, err := c.doOnce(ctx, path, body)
		if err != nil {
			return resp, err
		}
		if uErr := json.Unmarshal(raw, &out); uErr != nil {
			return resp, fmt.Errorf("gemini decode error: %w", uErr)
		}
		return resp, nil
	})
	if err != nil {
		return "", err
	}

	if out.PromptFeedback != nil && out.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("gemini: prompt blocked (%s)", out.PromptFeedback.BlockReason)
	}
	var b strings.Builder
	for _, cand := range out.Candidates {
		for _, p := range cand.Content.Parts {
			b.WriteString(p.Text)
		}
		if b.Len() > 0 {
			break
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("gemini: empty response")
	}
	return text, nil
}

func (c *client) doOnce(ctx context.Context, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, nil, err
	}

	endpoint := c.cfg.BaseURL + path + "?key=" + url.QueryEscape(c.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var env errorEnvelope
		_ = json.Unmarshal(raw, &env)
		if resp.StatusCode == http.StatusTooManyRequests || env.Error.Status == "RESOURCE_EXHAUSTED" {
			return resp, raw, &quotaError{body: env.Error.Message}
		}
		return resp, raw, &HTTPError{StatusCode: resp.StatusCode, Status: env.Error.Status, Body: string(raw)}
	}
	return resp, raw, nil
}
