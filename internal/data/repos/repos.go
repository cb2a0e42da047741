package repos

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"

	"github.com/mwanafrika/mwanafrika-backend/internal/data/repos/user"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/logger"
)

type UserRepo = user.UserRepo
type ProfileRepo = user.ProfileRepo

func NewUserRepo(db *gorm.DB, log *logger.Logger) UserRepo { return user.NewUserRepo(db, log) }

func NewProfileRepo(db *gorm.DB, log *logger.Logger) ProfileRepo {
	return user.NewProfileRepo(db, log)
}

func NewMongoProfileRepo(database *mongo.Database, log *logger.Logger) ProfileRepo {
	return user.NewMongoProfileRepo(database, log)
}

func EnsureMongoProfileIndexes(ctx context.Context, database *mongo.Database) error {
	return user.EnsureMongoProfileIndexes(ctx, database)
}
