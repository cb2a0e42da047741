package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/logger"
)

func newTestClient(t *testing.T, h http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(logger.Nop(), Config{APIKey: "k", Model: "test-model", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func reply(text string) string {
	b, _ := json.Marshal(map[string]any{
		"candidates": []any{map[string]any{
			"content": map[string]any{"role": "model", "parts": []any{map[string]any{"text": text}}},
		}},
	})
	return string(b)
}

func TestGenerateTextSendsConversation(t *testing.T) {
	var got generateRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/test-model:generateContent" {
			t.Fatalf("path=%s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "k" {
			t.Fatalf("missing key")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(reply("Habari! ")))
	})

	out, err := c.GenerateText(context.Background(), "be kind", []Turn{
		{Role: RoleUser, Text: "hi"},
		{Role: RoleModel, Text: "hello"},
		{Role: RoleUser, Text: "what is 2+2?", Images: []InlineImage{{MimeType: "image/png", Data: "AAAA"}}},
	})
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if out != "Habari!" {
		t.Fatalf("out=%q", out)
	}
	if got.SystemInstruction == nil || got.SystemInstruction.Parts[0].Text != "be kind" {
		t.Fatalf("system instruction missing: %#v", got.SystemInstruction)
	}
	if len(got.Contents) != 3 || got.Contents[1].Role != RoleModel {
		t.Fatalf("contents=%#v", got.Contents)
	}
	last := got.Contents[2]
	if len(last.Parts) != 2 || last.Parts[1].InlineData == nil || last.Parts[1].InlineData.MimeType != "image/png" {
		t.Fatalf("image part missing: %#v", last)
	}
}

func TestGenerateJSONStripsFences(t *testing.T) {
	var mime string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		mime = req.GenerationConfig.ResponseMimeType
		_, _ = w.Write([]byte(reply("```json\n{\"topic\":\"fractions\"}\n```")))
	})

	var out struct {
		Topic string `json:"topic"`
	}
	if err := c.GenerateJSON(context.Background(), "", "make a quiz", &out); err != nil {
		t.Fatalf("GenerateJSON: %v", err)
	}
	if out.Topic != "fractions" {
		t.Fatalf("topic=%q", out.Topic)
	}
	if mime != "application/json" {
		t.Fatalf("mime=%q", mime)
	}
}

func TestQuotaErrorIsNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`))
	})
	_, err := c.GenerateText(context.Background(), "", []Turn{{Role: RoleUser, Text: "hi"}})
	if !IsQuotaError(err) {
		t.Fatalf("err=%v want quota", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("calls=%d", calls)
	}
}

func TestUpstreamErrorSurfaces(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"bad","status":"INVALID_ARGUMENT"}}`))
	})
	_, err := c.GenerateText(context.Background(), "", []Turn{{Role: RoleUser, Text: "hi"}})
	he, ok := err.(*HTTPError)
	if !ok || he.StatusCode != http.StatusBadRequest || he.Status != "INVALID_ARGUMENT" {
		t.Fatalf("err=%#v", err)
	}
	if IsQuotaError(err) {
		t.Fatalf("400 classified as quota")
	}
}

func TestStripCodeFences(t *testing.T) {
	cases := map[string]string{
		`{"a":1}`:                 `{"a":1}`,
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n[1,2]\n```":         `[1,2]`,
		"  plain  ":               "plain",
	}
	for in, want := range cases {
		if got := StripCodeFences(in); got != want {
			t.Fatalf("StripCodeFences(%q)=%q want %q", in, got, want)
		}
	}
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New(logger.Nop(), Config{})
	if err == nil || !strings.Contains(err.Error(), "GEMINI_API_KEY") {
		t.Fatalf("err=%v", err)
	}
}
