package app

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mwanafrika/mwanafrika-backend/internal/content"
	"github.com/mwanafrika/mwanafrika-backend/internal/data/repos"
	"github.com/mwanafrika/mwanafrika-backend/internal/db"
	"github.com/mwanafrika/mwanafrika-backend/internal/http"
	"github.com/mwanafrika/mwanafrika-backend/internal/observability"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/logger"
)

const serviceName = "mwanafrika-api"

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Clients  Clients
	Repos    Repos
	Services Services
	Metrics  *observability.Metrics
	Server   *http.Server

	dbService    *db.Service
	shutdownOTel func(context.Context) error
}

// Bootstrap opens the stores and wires repos and services without the HTTP
// layer. The admin CLI uses it directly.
func Bootstrap(ctx context.Context, log *logger.Logger, cfg Config) (*App, error) {
	catalog, err := content.Load()
	if err != nil {
		return nil, fmt.Errorf("load content catalog: %w", err)
	}

	dbService, err := db.New(log, db.Config{
		Driver:           cfg.DBDriver,
		SQLitePath:       cfg.SQLitePath,
		PostgresHost:     cfg.PostgresHost,
		PostgresPort:     cfg.PostgresPort,
		PostgresUser:     cfg.PostgresUser,
		PostgresPassword: cfg.PostgresPassword,
		PostgresName:     cfg.PostgresName,
	})
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := dbService.AutoMigrateAll(); err != nil {
		_ = dbService.Close()
		return nil, fmt.Errorf("automigrate: %w", err)
	}

	clientset, err := wireClients(ctx, log, cfg)
	if err != nil {
		_ = dbService.Close()
		return nil, err
	}
	if clientset.Mongo != nil {
		if err := repos.EnsureMongoProfileIndexes(ctx, clientset.Mongo.Database(cfg.MongoDatabase)); err != nil {
			log.Warn("Mongo profile index creation failed", "error", err)
		}
	}

	metrics := observability.NewMetrics()
	clientset = instrumentClients(clientset, metrics)
	reposet := wireRepos(dbService.DB(), log, cfg, clientset)
	serviceset, err := wireServices(dbService.DB(), log, cfg, catalog, clientset, reposet, metrics)
	if err != nil {
		clientset.Close(ctx)
		_ = dbService.Close()
		return nil, err
	}

	return &App{
		Log:          log,
		DB:           dbService.DB(),
		Cfg:          cfg,
		Clients:      clientset,
		Repos:        reposet,
		Services:     serviceset,
		Metrics:      metrics,
		dbService:    dbService,
		shutdownOTel: func(context.Context) error { return nil },
	}, nil
}

// New builds the full API process: stores, services, tracing and HTTP server.
func New(ctx context.Context, log *logger.Logger, cfg Config) (*App, error) {
	a, err := Bootstrap(ctx, log, cfg)
	if err != nil {
		return nil, err
	}
	a.shutdownOTel = observability.InitOTel(ctx, log, observability.OtelConfig{
		Enabled:     cfg.OtelEnabled,
		ServiceName: serviceName,
		Environment: cfg.AppEnv,
		Version:     cfg.ServiceVersion,
		Endpoint:    cfg.OtelEndpoint,
		Insecure:    cfg.OtelInsecure,
		SampleRatio: cfg.OtelSampleRatio,
	})

	handlerset := wireHandlers(log, a.Services, a.Clients)
	middleware := wireMiddleware(log, cfg, a.Clients, a.Services, a.Metrics)
	a.Server = wireServer(log, cfg, handlerset, middleware, a.Metrics)
	return a, nil
}

func (a *App) Run() error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	addr := ":" + a.Cfg.Port
	a.Log.Info("Server listening", "addr", addr)
	return a.Server.Run(addr)
}

// Shutdown stops accepting requests, waits for pending WhatsApp follow-ups,
// then releases clients and the database.
func (a *App) Shutdown(ctx context.Context) {
	if a == nil {
		return
	}
	if a.Server != nil {
		if err := a.Server.Shutdown(ctx); err != nil {
			a.Log.Warn("HTTP shutdown incomplete", "error", err)
		}
	}
	if a.Services.Relay != nil {
		if err := a.Services.Relay.Wait(ctx); err != nil {
			a.Log.Warn("Abandoning pending WhatsApp follow-ups", "error", err)
		}
	}
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := a.shutdownOTel(flushCtx); err != nil {
		a.Log.Warn("Trace flush failed", "error", err)
	}
	a.Clients.Close(flushCtx)
	if a.dbService != nil {
		_ = a.dbService.Close()
	}
	a.Log.Sync()
}
