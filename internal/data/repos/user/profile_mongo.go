package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	types "github.com/mwanafrika/mwanafrika-backend/internal/domain"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/dbctx"
	apperr "github.com/mwanafrika/mwanafrika-backend/internal/pkg/errors"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/logger"
)

const mongoProfileCollection = "profiles"

// Conditional replaces that lose a race are retried this many times.
const mongoUpdateAttempts = 5

type mongoProfile struct {
	ID            string `bson:"_id"`
	types.Profile `bson:",inline"`
}

type mongoProfileRepo struct {
	coll *mongo.Collection
	log  *logger.Logger
}

// NewMongoProfileRepo stores profiles as documents keyed by the user id string.
func NewMongoProfileRepo(database *mongo.Database, baseLog *logger.Logger) ProfileRepo {
	return &mongoProfileRepo{
		coll: database.Collection(mongoProfileCollection),
		log:  baseLog.With("repo", "MongoProfileRepo"),
	}
}

// EnsureIndexes creates the leaderboard index. Safe to call repeatedly.
func EnsureMongoProfileIndexes(ctx context.Context, database *mongo.Database) error {
	_, err := database.Collection(mongoProfileCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "country", Value: 1}, {Key: "xp", Value: -1}, {Key: "coins", Value: -1}},
	})
	return err
}

func ctxOf(dbc dbctx.Context) context.Context {
	if dbc.Ctx == nil {
		return context.Background()
	}
	return dbc.Ctx
}

func (mr *mongoProfileRepo) Create(dbc dbctx.Context, p *types.Profile) error {
	if p == nil || p.UserID == uuid.Nil {
		return apperr.ErrInvalidArgument
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	p.Version = 1
	p.Normalize()
	_, err := mr.coll.InsertOne(ctxOf(dbc), mongoProfile{ID: p.UserID.String(), Profile: *p})
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("profile %s already exists: %w", p.UserID, err)
	}
	return err
}

func (mr *mongoProfileRepo) Get(dbc dbctx.Context, userID uuid.UUID) (*types.Profile, error) {
	var doc mongoProfile
	err := mr.coll.FindOne(ctxOf(dbc), bson.M{"_id": userID.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toProfile()
}

func (doc *mongoProfile) toProfile() (*types.Profile, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("profile document id %q: %w", doc.ID, err)
	}
	p := doc.Profile
	p.UserID = id
	p.Normalize()
	return &p, nil
}

// Update uses the version field as an optimistic lock: the replace only
// matches the revision that was read.
func (mr *mongoProfileRepo) Update(dbc dbctx.Context, userID uuid.UUID, fn func(p *types.Profile) error) (*types.Profile, error) {
	ctx := ctxOf(dbc)
	for attempt := 0; attempt < mongoUpdateAttempts; attempt++ {
		p, err := mr.Get(dbc, userID)
		if err != nil {
			return nil, err
		}
		readVersion := p.Version
		if err := fn(p); err != nil {
			return nil, err
		}
		if p.Coins < 0 {
			return nil, apperr.ErrInsufficientCoins
		}
		p.Normalize()
		p.Version = readVersion + 1
		p.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)

		res, err := mr.coll.ReplaceOne(ctx,
			bson.M{"_id": userID.String(), "version": readVersion},
			mongoProfile{ID: userID.String(), Profile: *p},
		)
		if err != nil {
			return nil, err
		}
		if res.MatchedCount == 1 {
			return p, nil
		}
		mr.log.Debug("Profile write conflict, retrying", "user_id", userID.String(), "attempt", attempt+1)
	}
	return nil, fmt.Errorf("profile %s: too much write contention", userID)
}

func (mr *mongoProfileRepo) Leaderboard(dbc dbctx.Context, country string, limit int) ([]*types.Profile, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	filter := bson.M{}
	if c := strings.ToUpper(strings.TrimSpace(country)); c != "" {
		filter["country"] = c
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "xp", Value: -1}, {Key: "coins", Value: -1}, {Key: "display_name", Value: 1}}).
		SetLimit(int64(limit))

	ctx := ctxOf(dbc)
	cur, err := mr.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []*types.Profile{}
	for cur.Next(ctx) {
		var doc mongoProfile
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		p, err := doc.toProfile()
		if err != nil {
			mr.log.Warn("Skipping malformed profile document", "id", doc.ID, "error", err)
			continue
		}
		out = append(out, p)
	}
	return out, cur.Err()
}
