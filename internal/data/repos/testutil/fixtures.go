package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/mwanafrika/mwanafrika-backend/internal/domain"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, email string) *types.User {
	tb.Helper()
	u := &types.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: "hash",
		DisplayName:  "Amina",
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedProfile(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, coins, xp int64) *types.Profile {
	tb.Helper()
	now := time.Now().UTC()
	p := &types.Profile{
		UserID:      userID,
		DisplayName: "Amina",
		Country:     "KE",
		Coins:       coins,
		XP:          xp,
		Level:       types.LevelForXP(xp),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	p.Normalize()
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed profile: %v", err)
	}
	return p
}
