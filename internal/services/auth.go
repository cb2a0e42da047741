package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/mwanafrika/mwanafrika-backend/internal/data/repos"
	types "github.com/mwanafrika/mwanafrika-backend/internal/domain"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/apierr"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/ctxutil"
	apperr "github.com/mwanafrika/mwanafrika-backend/internal/pkg/errors"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/logger"
)

const minPasswordLength = 8

type RegisterRequest struct {
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name" binding:"required"`
	Country     string `json:"country"`
	// Phone links WhatsApp messages from this number to the account.
	Phone string `json:"phone"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthResult struct {
	AccessToken string         `json:"access_token"`
	ExpiresIn   int64          `json:"expires_in"`
	Profile     *types.Profile `json:"profile"`
}

type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResult, error)
	Login(ctx context.Context, req LoginRequest) (*AuthResult, error)
	// SetContextFromToken validates a bearer token and returns ctx carrying the user id.
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	GetAccessTTL() time.Duration
}

type authService struct {
	db             *gorm.DB
	log            *logger.Logger
	userRepo       repos.UserRepo
	profileService ProfileService
	jwtSecretKey   string
	accessTTL      time.Duration
	bcryptCost     int
}

func NewAuthService(
	db *gorm.DB,
	log *logger.Logger,
	userRepo repos.UserRepo,
	profileService ProfileService,
	jwtSecretKey string,
	accessTTL time.Duration,
) AuthService {
	if accessTTL <= 0 {
		accessTTL = 24 * time.Hour
	}
	return &authService{
		db:             db,
		log:            log.With("service", "AuthService"),
		userRepo:       userRepo,
		profileService: profileService,
		jwtSecretKey:   jwtSecretKey,
		accessTTL:      accessTTL,
		bcryptCost:     bcrypt.DefaultCost,
	}
}

func (as *authService) GetAccessTTL() time.Duration { return as.accessTTL }

func (as *authService) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	name := strings.TrimSpace(req.DisplayName)
	if !strings.Contains(email, "@") || strings.HasPrefix(email, "@") || strings.HasSuffix(email, "@") {
		return nil, apierr.BadRequest("invalid_email", "a valid email is required")
	}
	if len(req.Password) < minPasswordLength {
		return nil, apierr.BadRequest("weak_password", "password must be at least %d characters", minPasswordLength)
	}
	if name == "" {
		return nil, apierr.BadRequest("invalid_request", "display_name is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), as.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &types.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  name,
		Phone:        NormalizeWhatsAppNumber(req.Phone),
	}
	err = as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := as.userRepo.EmailExists(ctx, tx, email)
		if err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if exists {
			return apierr.Conflict("email_taken", fmt.Errorf("an account with this email already exists"))
		}
		if _, err := as.userRepo.Create(ctx, tx, []*types.User{user}); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	as.log.Info("Registered user", "user_id", user.ID)
	return as.issue(ctx, user, req.Country)
}

func (as *authService) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	users, err := as.userRepo.GetByEmails(ctx, nil, []string{email})
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	invalid := apierr.New(http.StatusUnauthorized, "invalid_credentials", fmt.Errorf("invalid email or password"))
	if len(users) == 0 {
		return nil, invalid
	}
	user := users[0]
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, invalid
	}
	return as.issue(ctx, user, "")
}

// issue signs an access token and ensures the profile exists (first sign-in).
func (as *authService) issue(ctx context.Context, user *types.User, country string) (*AuthResult, error) {
	token, err := as.generateAccessToken(user)
	if err != nil {
		return nil, err
	}
	profile, err := as.profileService.Ensure(ctx, user.ID, user.DisplayName, country)
	if err != nil {
		return nil, fmt.Errorf("ensure profile: %w", err)
	}
	return &AuthResult{
		AccessToken: token,
		ExpiresIn:   int64(as.accessTTL.Seconds()),
		Profile:     profile,
	}, nil
}

func (as *authService) generateAccessToken(user *types.User) (string, error) {
	if as.jwtSecretKey == "" {
		return "", apierr.NotConfigured(fmt.Errorf("auth: %w: JWT_SECRET_KEY", apperr.ErrNotConfigured))
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   user.ID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(as.accessTTL)),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(as.jwtSecretKey))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	if as.jwtSecretKey == "" {
		return ctx, apperr.ErrUnauthorized
	}
	claims := &jwt.RegisteredClaims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(as.jwtSecretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ctx, fmt.Errorf("%w: token expired", apperr.ErrUnauthorized)
		}
		return ctx, apperr.ErrUnauthorized
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, apperr.ErrUnauthorized
	}
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil {
		rd = &ctxutil.RequestData{}
		ctx = ctxutil.WithRequestData(ctx, rd)
	}
	rd.UserID = userID
	return ctx, nil
}

// NormalizeWhatsAppNumber returns the "whatsapp:+<digits>" form used by the messaging webhook.
func NormalizeWhatsAppNumber(phone string) string {
	phone = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(phone), "whatsapp:"))
	if phone == "" {
		return ""
	}
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "whatsapp:+" + b.String()
}
