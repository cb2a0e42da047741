package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mwanafrika/mwanafrika-backend/internal/clients/twilio"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/logger"
)

type TwilioSignatureConfig struct {
	AuthToken string
	// PublicURL is the externally visible base URL (scheme://host[/prefix]).
	// When empty the URL is rebuilt from forwarded headers.
	PublicURL string
	// SkipValidation disables the check. Only honoured in development.
	SkipValidation bool
}

// TwilioSignature rejects webhook calls whose X-Twilio-Signature does not
// match the request URL and form parameters.
func TwilioSignature(log *logger.Logger, cfg TwilioSignatureConfig) gin.HandlerFunc {
	mlog := log.With("middleware", "TwilioSignature")
	if cfg.SkipValidation {
		mlog.Warn("twilio signature validation disabled (development mode)")
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		if err := c.Request.ParseForm(); err != nil {
			mlog.Warn("unparsable webhook form", "error", err)
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}
		fullURL := webhookURL(c.Request, cfg.PublicURL)
		signature := c.GetHeader(twilio.SignatureHeader)
		if !twilio.ValidateSignature(cfg.AuthToken, fullURL, c.Request.PostForm, signature) {
			mlog.Warn("twilio signature mismatch", "url", fullURL, "has_signature", signature != "")
			c.String(http.StatusForbidden, "forbidden")
			c.Abort()
			return
		}
		c.Next()
	}
}

func webhookURL(r *http.Request, publicURL string) string {
	if base := strings.TrimRight(strings.TrimSpace(publicURL), "/"); base != "" {
		return base + r.URL.RequestURI()
	}
	scheme := firstHeaderValue(r.Header.Get("X-Forwarded-Proto"))
	if scheme == "" {
		scheme = "http"
		if r.TLS != nil {
			scheme = "https"
		}
	}
	host := firstHeaderValue(r.Header.Get("X-Forwarded-Host"))
	if host == "" {
		host = r.Host
	}
	return scheme + "://" + host + r.URL.RequestURI()
}

// firstHeaderValue returns the first entry of a comma-joined proxy header.
func firstHeaderValue(v string) string {
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}
