package logger

import (
	"strings"
	"testing"
)

func TestSanitizeKVs(t *testing.T) {
	out := sanitizeKVs([]interface{}{
		"auth_token", "abc",
		"from", "whatsapp:+254700000001",
		"path", "/webhooks/whatsapp",
		"dangling",
	})
	if len(out) != 7 {
		t.Fatalf("unexpected length: %d", len(out))
	}
	if out[1] != "[REDACTED]" {
		t.Fatalf("token not redacted: %v", out[1])
	}
	hashed, _ := out[3].(string)
	if !strings.HasPrefix(hashed, "hash:") || strings.Contains(hashed, "254700000001") {
		t.Fatalf("phone not hashed: %v", out[3])
	}
	if out[5] != "/webhooks/whatsapp" {
		t.Fatalf("plain value changed: %v", out[5])
	}
	if out[6] != "dangling" {
		t.Fatalf("dangling key dropped: %v", out[6])
	}
}

func TestHashValueStable(t *testing.T) {
	a := hashValue("whatsapp:+254700000001")
	b := hashValue("whatsapp:+254700000001")
	if a != b {
		t.Fatalf("hash not stable: %q vs %q", a, b)
	}
	if hashValue("") != "" {
		t.Fatalf("empty value should hash to empty string")
	}
}
