package user

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mwanafrika/mwanafrika-backend/internal/data/repos/testutil"
	types "github.com/mwanafrika/mwanafrika-backend/internal/domain"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/dbctx"
	apperr "github.com/mwanafrika/mwanafrika-backend/internal/pkg/errors"
)

func mongoTestDB(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("set MONGO_URI to run mongo profile repo tests")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	database := client.Database(fmt.Sprintf("mwanafrika_test_%d", time.Now().UnixNano()))
	t.Cleanup(func() {
		_ = database.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return database
}

func TestMongoProfileRepo(t *testing.T) {
	database := mongoTestDB(t)
	repo := NewMongoProfileRepo(database, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}
	if err := EnsureMongoProfileIndexes(dbc.Ctx, database); err != nil {
		t.Fatalf("EnsureMongoProfileIndexes: %v", err)
	}

	id := uuid.New()
	if err := repo.Create(dbc, &types.Profile{UserID: id, DisplayName: "Zola", Country: "ZA", Coins: 40}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := repo.Get(dbc, id)
	if err != nil || got.UserID != id || got.Coins != 40 {
		t.Fatalf("Get: %+v %v", got, err)
	}

	_, err = repo.Update(dbc, id, func(p *types.Profile) error {
		p.Coins -= 50
		return nil
	})
	if !errors.Is(err, apperr.ErrInsufficientCoins) {
		t.Fatalf("overdraw err=%v", err)
	}

	updated, err := repo.Update(dbc, id, func(p *types.Profile) error {
		p.AwardBadge(types.BadgeFirstLesson)
		p.AddXP(250)
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Level != 2 || updated.Version != 2 {
		t.Fatalf("level=%d version=%d", updated.Level, updated.Version)
	}

	board, err := repo.Leaderboard(dbc, "za", 5)
	if err != nil || len(board) != 1 || board[0].UserID != id {
		t.Fatalf("Leaderboard: %+v %v", board, err)
	}
}
