package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/mwanafrika/mwanafrika-backend/internal/clients/gcp"
	"github.com/mwanafrika/mwanafrika-backend/internal/clients/gemini"
	"github.com/mwanafrika/mwanafrika-backend/internal/clients/places"
	"github.com/mwanafrika/mwanafrika-backend/internal/clients/redis"
	"github.com/mwanafrika/mwanafrika-backend/internal/clients/sendgrid"
	"github.com/mwanafrika/mwanafrika-backend/internal/clients/twilio"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/logger"
)

// Clients holds the external providers. Optional providers stay nil when
// unconfigured; services report not_configured or skip the feature.
type Clients struct {
	Redis    *goredis.Client
	Mongo    *mongo.Client
	Gemini   gemini.Client
	Places   places.Client
	Twilio   twilio.Client
	SendGrid sendgrid.Client
	Bucket   gcp.BucketService
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var c Clients

	// Redis
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		rdb, err := redis.New(ctx, log, redis.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err != nil {
			log.Warn("Redis unavailable, using in-process limiter and memory", "error", err)
		} else {
			c.Redis = rdb
		}
	}

	// Mongo
	if strings.EqualFold(strings.TrimSpace(cfg.ProfileStore), "mongo") {
		mc, err := connectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return Clients{}, fmt.Errorf("init mongo: %w", err)
		}
		c.Mongo = mc
		log.Info("Connected to mongo", "database", cfg.MongoDatabase)
	}

	// Gemini
	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		g, err := gemini.New(log, gemini.Config{
			APIKey:     cfg.GeminiAPIKey,
			Model:      cfg.GeminiModel,
			BaseURL:    cfg.GeminiBaseURL,
			Timeout:    cfg.GeminiTimeout(),
			MaxRetries: cfg.GeminiMaxRetries,
		})
		if err != nil {
			return Clients{}, fmt.Errorf("init gemini client: %w", err)
		}
		c.Gemini = g
	} else {
		log.Warn("GEMINI_API_KEY not set; AI endpoints will report not_configured")
	}

	// Maps
	if strings.TrimSpace(cfg.MapsAPIKey) != "" {
		p, err := places.New(log, places.Config{
			APIKey:        cfg.MapsAPIKey,
			BaseURL:       cfg.MapsBaseURL,
			DefaultRadius: cfg.PlacesRadiusMeters,
		})
		if err != nil {
			return Clients{}, fmt.Errorf("init places client: %w", err)
		}
		c.Places = p
	} else {
		log.Warn("MAPS_API_KEY not set; store search will report not_configured")
	}

	// Twilio
	if strings.TrimSpace(cfg.TwilioAccountSID) != "" {
		tc, err := twilio.New(log, twilio.Config{
			AccountSID:  cfg.TwilioAccountSID,
			AuthToken:   cfg.TwilioAuthToken,
			BaseURL:     cfg.TwilioBaseURL,
			DefaultFrom: cfg.TwilioWhatsAppFrom,
		})
		if err != nil {
			return Clients{}, fmt.Errorf("init twilio client: %w", err)
		}
		c.Twilio = tc
	} else {
		log.Warn("TWILIO_ACCOUNT_SID not set; late WhatsApp answers will be dropped")
	}

	// SendGrid
	if strings.TrimSpace(cfg.SendGridAPIKey) != "" {
		sg, err := sendgrid.New(log, sendgrid.Config{
			APIKey:           cfg.SendGridAPIKey,
			DefaultFromEmail: cfg.SendGridFromEmail,
			DefaultFromName:  cfg.SendGridFromName,
		})
		if err != nil {
			return Clients{}, fmt.Errorf("init sendgrid client: %w", err)
		}
		c.SendGrid = sg
	}

	// Voucher storage
	if strings.TrimSpace(cfg.GCSBucketName) != "" {
		b, err := gcp.NewBucketService(ctx, log, gcp.BucketConfig{
			BucketName:  cfg.GCSBucketName,
			CDNDomain:   cfg.GCSCDNDomain,
			Credentials: cfg.GCSCredentials,
		})
		if err != nil {
			return Clients{}, fmt.Errorf("init bucket client: %w", err)
		}
		c.Bucket = b
	} else {
		b, err := gcp.NewLocalBucket(log, cfg.VoucherDir, "/vouchers")
		if err != nil {
			return Clients{}, fmt.Errorf("init local voucher store: %w", err)
		}
		c.Bucket = b
	}

	return c, nil
}

func connectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	if strings.TrimSpace(uri) == "" {
		return nil, fmt.Errorf("missing MONGO_URI (required when PROFILE_STORE=mongo)")
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	mc, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := mc.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = mc.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return mc, nil
}

func (c *Clients) Close(ctx context.Context) {
	if c == nil {
		return
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.Mongo != nil {
		_ = c.Mongo.Disconnect(ctx)
	}
}
