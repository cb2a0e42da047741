package app

import (
	"gorm.io/gorm"

	"github.com/mwanafrika/mwanafrika-backend/internal/data/repos"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/logger"
)

type Repos struct {
	User    repos.UserRepo
	Profile repos.ProfileRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger, cfg Config, clients Clients) Repos {
	log.Info("Wiring repos...")
	profiles := repos.NewProfileRepo(db, log)
	if clients.Mongo != nil {
		log.Info("Profiles stored in mongo", "database", cfg.MongoDatabase)
		profiles = repos.NewMongoProfileRepo(clients.Mongo.Database(cfg.MongoDatabase), log)
	}
	return Repos{
		User:    repos.NewUserRepo(db, log),
		Profile: profiles,
	}
}
