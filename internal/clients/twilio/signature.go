package twilio

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"sort"
	"strings"
)

const SignatureHeader = "X-Twilio-Signature"

// ComputeSignature returns the request signature Twilio sends for a
// form-encoded webhook: base64(HMAC-SHA1(authToken, url + k1 + v1 + k2 + v2 ...))
// with POST parameters sorted by key. Repeated keys contribute every value, sorted.
func ComputeSignature(authToken, fullURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		vals := append([]string(nil), params[k]...)
		sort.Strings(vals)
		for _, v := range vals {
			b.WriteString(k)
			b.WriteString(v)
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	_, _ = mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// ValidateSignature reports whether signature matches the computed value.
// An empty token or signature never validates.
func ValidateSignature(authToken, fullURL string, params url.Values, signature string) bool {
	authToken = strings.TrimSpace(authToken)
	signature = strings.TrimSpace(signature)
	if authToken == "" || signature == "" {
		return false
	}
	expected := ComputeSignature(authToken, fullURL, params)
	return hmac.Equal([]byte(expected), []byte(signature))
}
