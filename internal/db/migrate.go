package db

import (
	"gorm.io/gorm"

	types "github.com/mwanafrika/mwanafrika-backend/internal/domain"
)

// Models lists every table owned by the relational store.
func Models() []any {
	return []any{
		&types.User{},
		&types.Profile{},
	}
}

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

func (s *Service) AutoMigrateAll() error {
	s.log.Info("Auto migrating tables...")
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	s.log.Info("Auto migration complete")
	return nil
}
