package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/mwanafrika/mwanafrika-backend/internal/clients/twilio"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/logger"
)

const testAuthToken = "twilio-test-token"

func webhookForm() url.Values {
	return url.Values{
		"Body":       {"What is photosynthesis?"},
		"From":       {"whatsapp:+254700000001"},
		"To":         {"whatsapp:+14155238886"},
		"MessageSid": {"SM123"},
	}
}

func signedRouter(cfg TwilioSignatureConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhooks/whatsapp", TwilioSignature(logger.Nop(), cfg), func(c *gin.Context) {
		c.String(http.StatusOK, c.PostForm("Body"))
	})
	return r
}

func TestTwilioSignature(t *testing.T) {
	t.Parallel()

	form := webhookForm()
	publicSig := twilio.ComputeSignature(testAuthToken, "https://api.mwanafrika.org/webhooks/whatsapp", form)

	cases := []struct {
		name       string
		cfg        TwilioSignatureConfig
		signature  string
		headers    map[string]string
		wantStatus int
	}{
		{
			name:       "public url",
			cfg:        TwilioSignatureConfig{AuthToken: testAuthToken, PublicURL: "https://api.mwanafrika.org/"},
			signature:  publicSig,
			wantStatus: http.StatusOK,
		},
		{
			name:      "forwarded headers",
			cfg:       TwilioSignatureConfig{AuthToken: testAuthToken},
			signature: publicSig,
			headers: map[string]string{
				"X-Forwarded-Proto": "https, http",
				"X-Forwarded-Host":  "api.mwanafrika.org",
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing signature",
			cfg:        TwilioSignatureConfig{AuthToken: testAuthToken, PublicURL: "https://api.mwanafrika.org"},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "wrong token",
			cfg:        TwilioSignatureConfig{AuthToken: "other", PublicURL: "https://api.mwanafrika.org"},
			signature:  publicSig,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "development skip",
			cfg:        TwilioSignatureConfig{SkipValidation: true},
			wantStatus: http.StatusOK,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			if tc.signature != "" {
				req.Header.Set(twilio.SignatureHeader, tc.signature)
			}
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			signedRouter(tc.cfg).ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status: got=%d want=%d body=%s", rec.Code, tc.wantStatus, rec.Body.String())
			}
			if tc.wantStatus == http.StatusOK && rec.Body.String() != "What is photosynthesis?" {
				t.Fatalf("form not available downstream: %q", rec.Body.String())
			}
		})
	}
}
