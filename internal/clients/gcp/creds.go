package gcp

import (
	"strings"

	"google.golang.org/api/option"
)

// ClientOptions turns a credentials value into client options. The value may be
// inline service-account JSON or a path to a credentials file; empty means ADC.
func ClientOptions(creds string) []option.ClientOption {
	creds = strings.TrimSpace(creds)
	opts := []option.ClientOption{}
	if creds == "" {
		return opts
	}
	if strings.HasPrefix(creds, "{") {
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	} else {
		opts = append(opts, option.WithCredentialsFile(creds))
	}
	return opts
}
