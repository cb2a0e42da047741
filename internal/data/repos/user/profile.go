package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/mwanafrika/mwanafrika-backend/internal/domain"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/dbctx"
	apperr "github.com/mwanafrika/mwanafrika-backend/internal/pkg/errors"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/logger"
)

// ProfileRepo stores one gamified profile document per user. Both the SQL and
// the document-store implementations satisfy it.
type ProfileRepo interface {
	// Create inserts p; it fails if a profile already exists for p.UserID.
	Create(dbc dbctx.Context, p *types.Profile) error
	// Get returns apperr.ErrNotFound when the user has no profile.
	Get(dbc dbctx.Context, userID uuid.UUID) (*types.Profile, error)
	// Update reads the profile, applies fn and writes the result back
	// atomically. An error from fn aborts the write and is returned as is.
	Update(dbc dbctx.Context, userID uuid.UUID, fn func(p *types.Profile) error) (*types.Profile, error)
	// Leaderboard orders by xp then coins, descending. Empty country means global.
	Leaderboard(dbc dbctx.Context, country string, limit int) ([]*types.Profile, error)
}

type profileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProfileRepo(db *gorm.DB, baseLog *logger.Logger) ProfileRepo {
	return &profileRepo{db: db, log: baseLog.With("repo", "ProfileRepo")}
}

func (pr *profileRepo) tx(dbc dbctx.Context) *gorm.DB {
	t := dbc.Tx
	if t == nil {
		t = pr.db
	}
	ctx := dbc.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return t.WithContext(ctx)
}

func (pr *profileRepo) Create(dbc dbctx.Context, p *types.Profile) error {
	if p == nil || p.UserID == uuid.Nil {
		return apperr.ErrInvalidArgument
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	p.Version = 1
	p.Normalize()
	return pr.tx(dbc).Create(p).Error
}

func (pr *profileRepo) Get(dbc dbctx.Context, userID uuid.UUID) (*types.Profile, error) {
	var p types.Profile
	err := pr.tx(dbc).Where("user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Normalize()
	return &p, nil
}

func (pr *profileRepo) Update(dbc dbctx.Context, userID uuid.UUID, fn func(p *types.Profile) error) (*types.Profile, error) {
	var out *types.Profile
	err := pr.tx(dbc).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("user_id = ?", userID)
		if tx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var p types.Profile
		if err := q.First(&p).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrNotFound
			}
			return err
		}
		p.Normalize()
		if err := fn(&p); err != nil {
			return err
		}
		if p.Coins < 0 {
			return apperr.ErrInsufficientCoins
		}
		p.Normalize()
		p.Version++
		p.UpdatedAt = time.Now().UTC()
		if err := tx.Save(&p).Error; err != nil {
			return err
		}
		out = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (pr *profileRepo) Leaderboard(dbc dbctx.Context, country string, limit int) ([]*types.Profile, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	q := pr.tx(dbc).Model(&types.Profile{})
	if c := strings.ToUpper(strings.TrimSpace(country)); c != "" {
		q = q.Where("country = ?", c)
	}
	var out []*types.Profile
	if err := q.Order("xp DESC").Order("coins DESC").Order("display_name ASC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	for _, p := range out {
		p.Normalize()
	}
	return out, nil
}
