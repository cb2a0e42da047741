package user

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/mwanafrika/mwanafrika-backend/internal/domain"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/logger"
)

type UserRepo interface {
	Create(ctx context.Context, tx *gorm.DB, users []*types.User) ([]*types.User, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.User, error)
	GetByEmails(ctx context.Context, tx *gorm.DB, userEmails []string) ([]*types.User, error)
	GetByPhone(ctx context.Context, tx *gorm.DB, phone string) (*types.User, error)
	EmailExists(ctx context.Context, tx *gorm.DB, userEmail string) (bool, error)
	UpdatePhone(ctx context.Context, tx *gorm.DB, userID uuid.UUID, phone string) error
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	repoLog := baseLog.With("repo", "UserRepo")
	return &userRepo{db: db, log: repoLog}
}

func (ur *userRepo) tx(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return ur.db
	}
	return tx
}

func (ur *userRepo) Create(ctx context.Context, tx *gorm.DB, users []*types.User) ([]*types.User, error) {
	if len(users) == 0 {
		return []*types.User{}, nil
	}
	for _, u := range users {
		u.Email = normalizeEmail(u.Email)
	}
	if err := ur.tx(tx).WithContext(ctx).Create(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (ur *userRepo) GetByIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.User, error) {
	var results []*types.User
	if len(userIDs) == 0 {
		return results, nil
	}
	if err := ur.tx(tx).WithContext(ctx).
		Where("id IN ?", userIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (ur *userRepo) GetByEmails(ctx context.Context, tx *gorm.DB, userEmails []string) ([]*types.User, error) {
	var results []*types.User
	if len(userEmails) == 0 {
		return results, nil
	}
	normalized := make([]string, 0, len(userEmails))
	for _, e := range userEmails {
		normalized = append(normalized, normalizeEmail(e))
	}
	if err := ur.tx(tx).WithContext(ctx).
		Where("email IN ?", normalized).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetByPhone returns nil, nil when no account is linked to phone.
func (ur *userRepo) GetByPhone(ctx context.Context, tx *gorm.DB, phone string) (*types.User, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, nil
	}
	var u types.User
	err := ur.tx(tx).WithContext(ctx).Where("phone = ?", phone).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (ur *userRepo) EmailExists(ctx context.Context, tx *gorm.DB, userEmail string) (bool, error) {
	var count int64
	if err := ur.tx(tx).WithContext(ctx).
		Model(&types.User{}).
		Where("email = ?", normalizeEmail(userEmail)).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (ur *userRepo) UpdatePhone(ctx context.Context, tx *gorm.DB, userID uuid.UUID, phone string) error {
	return ur.tx(tx).WithContext(ctx).
		Model(&types.User{}).
		Where("id = ?", userID).
		Update("phone", strings.TrimSpace(phone)).Error
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}
