package app

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port    string `mapstructure:"PORT"`
	LogMode string `mapstructure:"LOG_MODE"`
	AppEnv  string `mapstructure:"APP_ENV"`

	DBDriver         string `mapstructure:"DB_DRIVER"`
	SQLitePath       string `mapstructure:"SQLITE_PATH"`
	PostgresHost     string `mapstructure:"POSTGRES_HOST"`
	PostgresPort     string `mapstructure:"POSTGRES_PORT"`
	PostgresUser     string `mapstructure:"POSTGRES_USER"`
	PostgresPassword string `mapstructure:"POSTGRES_PASSWORD"`
	PostgresName     string `mapstructure:"POSTGRES_NAME"`

	ProfileStore  string `mapstructure:"PROFILE_STORE"`
	MongoURI      string `mapstructure:"MONGO_URI"`
	MongoDatabase string `mapstructure:"MONGO_DATABASE"`

	JWTSecretKey          string `mapstructure:"JWT_SECRET_KEY"`
	AccessTokenTTLSeconds int    `mapstructure:"ACCESS_TOKEN_TTL"`

	GeminiAPIKey         string `mapstructure:"GEMINI_API_KEY"`
	GeminiModel          string `mapstructure:"GEMINI_MODEL"`
	GeminiBaseURL        string `mapstructure:"GEMINI_BASE_URL"`
	GeminiTimeoutSeconds int    `mapstructure:"GEMINI_TIMEOUT_SECONDS"`
	GeminiMaxRetries     int    `mapstructure:"GEMINI_MAX_RETRIES"`

	MapsAPIKey         string `mapstructure:"MAPS_API_KEY"`
	MapsBaseURL        string `mapstructure:"MAPS_BASE_URL"`
	PlacesRadiusMeters int    `mapstructure:"PLACES_RADIUS_METERS"`

	TwilioAccountSID     string `mapstructure:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken      string `mapstructure:"TWILIO_AUTH_TOKEN"`
	TwilioWhatsAppFrom   string `mapstructure:"TWILIO_WHATSAPP_FROM"`
	TwilioBaseURL        string `mapstructure:"TWILIO_BASE_URL"`
	WebhookPublicURL     string `mapstructure:"WEBHOOK_PUBLIC_URL"`
	TwilioSkipValidation bool   `mapstructure:"TWILIO_SKIP_VALIDATION"`

	RelayTimeoutSeconds int    `mapstructure:"RELAY_TIMEOUT_SECONDS"`
	RelayPlaceholder    string `mapstructure:"RELAY_PLACEHOLDER"`
	RelayApology        string `mapstructure:"RELAY_APOLOGY"`

	RedisAddr          string `mapstructure:"REDIS_ADDR"`
	RedisPassword      string `mapstructure:"REDIS_PASSWORD"`
	RateLimitPerMinute int    `mapstructure:"RATE_LIMIT_PER_MINUTE"`
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`

	GCSBucketName     string `mapstructure:"GCS_BUCKET_NAME"`
	GCSCDNDomain      string `mapstructure:"GCS_CDN_DOMAIN"`
	GCSCredentials    string `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS_JSON"`
	VoucherDir        string `mapstructure:"VOUCHER_DIR"`
	SendGridAPIKey    string `mapstructure:"SENDGRID_API_KEY"`
	SendGridFromEmail string `mapstructure:"SENDGRID_FROM_EMAIL"`
	SendGridFromName  string `mapstructure:"SENDGRID_FROM_NAME"`

	OtelEnabled     bool    `mapstructure:"OTEL_ENABLED"`
	OtelEndpoint    string  `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OtelInsecure    bool    `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	OtelSampleRatio float64 `mapstructure:"OTEL_SAMPLE_RATIO"`
	ServiceVersion  string  `mapstructure:"SERVICE_VERSION"`
}

var configDefaults = map[string]any{
	"PORT":                                "8080",
	"LOG_MODE":                            "development",
	"APP_ENV":                             "production",
	"DB_DRIVER":                           "sqlite",
	"SQLITE_PATH":                         "mwanafrika.db",
	"POSTGRES_HOST":                       "localhost",
	"POSTGRES_PORT":                       "5432",
	"POSTGRES_USER":                       "postgres",
	"POSTGRES_PASSWORD":                   "",
	"POSTGRES_NAME":                       "mwanafrika",
	"PROFILE_STORE":                       "sql",
	"MONGO_URI":                           "",
	"MONGO_DATABASE":                      "mwanafrika",
	"JWT_SECRET_KEY":                      "",
	"ACCESS_TOKEN_TTL":                    86400,
	"GEMINI_API_KEY":                      "",
	"GEMINI_MODEL":                        "gemini-1.5-flash",
	"GEMINI_BASE_URL":                     "",
	"GEMINI_TIMEOUT_SECONDS":              60,
	"GEMINI_MAX_RETRIES":                  2,
	"MAPS_API_KEY":                        "",
	"MAPS_BASE_URL":                       "",
	"PLACES_RADIUS_METERS":                5000,
	"TWILIO_ACCOUNT_SID":                  "",
	"TWILIO_AUTH_TOKEN":                   "",
	"TWILIO_WHATSAPP_FROM":                "",
	"TWILIO_BASE_URL":                     "",
	"WEBHOOK_PUBLIC_URL":                  "",
	"TWILIO_SKIP_VALIDATION":              false,
	"RELAY_TIMEOUT_SECONDS":               10,
	"RELAY_PLACEHOLDER":                   "",
	"RELAY_APOLOGY":                       "",
	"REDIS_ADDR":                          "",
	"REDIS_PASSWORD":                      "",
	"RATE_LIMIT_PER_MINUTE":               30,
	"CORS_ALLOWED_ORIGINS":                "",
	"GCS_BUCKET_NAME":                     "",
	"GCS_CDN_DOMAIN":                      "",
	"GOOGLE_APPLICATION_CREDENTIALS_JSON": "",
	"VOUCHER_DIR":                         "./vouchers",
	"SENDGRID_API_KEY":                    "",
	"SENDGRID_FROM_EMAIL":                 "",
	"SENDGRID_FROM_NAME":                  "MwanAfrika",
	"OTEL_ENABLED":                        false,
	"OTEL_EXPORTER_OTLP_ENDPOINT":         "",
	"OTEL_EXPORTER_OTLP_INSECURE":         false,
	"OTEL_SAMPLE_RATIO":                   0.1,
	"SERVICE_VERSION":                     "dev",
}

// LoadConfig reads the environment and, when present, <path>/app.env.
// Environment variables win over the file.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	if path == "" {
		path = "."
	}
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")
	for k, d := range configDefaults {
		v.SetDefault(k, d)
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.JWTSecretKey) == "" {
		if !cfg.IsDevelopment() {
			return Config{}, errors.New("JWT_SECRET_KEY is required outside development")
		}
		cfg.JWTSecretKey = "dev-only-secret"
	}
	return cfg, nil
}

// IsDevelopment reports whether APP_ENV names a local/dev deployment.
func (c Config) IsDevelopment() bool {
	switch strings.ToLower(strings.TrimSpace(c.AppEnv)) {
	case "development", "dev", "local":
		return true
	}
	return false
}

// SkipTwilioValidation is true only when explicitly requested in development.
func (c Config) SkipTwilioValidation() bool {
	return c.TwilioSkipValidation && c.IsDevelopment()
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLSeconds) * time.Second
}

func (c Config) RelayTimeout() time.Duration {
	return time.Duration(c.RelayTimeoutSeconds) * time.Second
}

func (c Config) GeminiTimeout() time.Duration {
	return time.Duration(c.GeminiTimeoutSeconds) * time.Second
}

func (c Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
