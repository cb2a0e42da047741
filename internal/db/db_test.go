package db

import (
	"path/filepath"
	"testing"

	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/logger"
)

func TestNewSQLiteAndMigrate(t *testing.T) {
	svc, err := New(logger.Nop(), Config{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer svc.Close()
	if err := svc.AutoMigrateAll(); err != nil {
		t.Fatalf("AutoMigrateAll: %v", err)
	}
	for _, table := range []string{"user", "profile"} {
		if !svc.DB().Migrator().HasTable(table) {
			t.Fatalf("missing table %q", table)
		}
	}
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	if _, err := New(logger.Nop(), Config{Driver: "oracle"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestPostgresDSN(t *testing.T) {
	cfg := Config{PostgresHost: "h", PostgresPort: "5432", PostgresUser: "u", PostgresPassword: "p", PostgresName: "n"}
	if got := cfg.PostgresDSN(); got != "postgres://u:p@h:5432/n?sslmode=disable" {
		t.Fatalf("dsn=%q", got)
	}
}
