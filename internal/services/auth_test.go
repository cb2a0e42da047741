package services

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mwanafrika/mwanafrika-backend/internal/content"
	"github.com/mwanafrika/mwanafrika-backend/internal/data/repos"
	"github.com/mwanafrika/mwanafrika-backend/internal/data/repos/testutil"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/apierr"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/ctxutil"
	apperr "github.com/mwanafrika/mwanafrika-backend/internal/pkg/errors"
)

func newTestAuthService(t *testing.T, secret string) *authService {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	userRepo := repos.NewUserRepo(db, log)
	ps := NewProfileService(log, repos.NewProfileRepo(db, log), userRepo, content.MustLoad())
	as := NewAuthService(db, log, userRepo, ps, secret, time.Hour).(*authService)
	as.bcryptCost = bcrypt.MinCost
	return as
}

func TestRegisterAndLogin(t *testing.T) {
	as := newTestAuthService(t, "test-secret")
	ctx := context.Background()

	res, err := as.Register(ctx, RegisterRequest{
		Email:       " Amina@Example.com ",
		Password:    "correct horse",
		DisplayName: "Amina",
		Country:     "ke",
		Phone:       "+254 700 000 001",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if res.AccessToken == "" || res.ExpiresIn != 3600 {
		t.Fatalf("result: %+v", res)
	}
	if res.Profile == nil || res.Profile.Country != "KE" || res.Profile.Level != 1 {
		t.Fatalf("profile: %+v", res.Profile)
	}

	linked, err := as.userRepo.GetByPhone(ctx, nil, "whatsapp:+254700000001")
	if err != nil || linked == nil {
		t.Fatalf("phone not linked: %v", err)
	}

	login, err := as.Login(ctx, LoginRequest{Email: "amina@example.com", Password: "correct horse"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	authed, err := as.SetContextFromToken(ctx, login.AccessToken)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if ctxutil.UserID(authed) != res.Profile.UserID {
		t.Fatalf("user id mismatch")
	}
}

func TestRegisterValidation(t *testing.T) {
	as := newTestAuthService(t, "test-secret")
	ctx := context.Background()
	tests := []struct {
		name string
		req  RegisterRequest
		code string
	}{
		{name: "bad email", req: RegisterRequest{Email: "nope", Password: "longenough", DisplayName: "x"}, code: "invalid_email"},
		{name: "short password", req: RegisterRequest{Email: "a@b.co", Password: "short", DisplayName: "x"}, code: "weak_password"},
		{name: "no name", req: RegisterRequest{Email: "a@b.co", Password: "longenough", DisplayName: " "}, code: "invalid_request"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := as.Register(ctx, tc.req)
			ae, ok := apierr.As(err)
			if !ok || ae.Code != tc.code || ae.Status != http.StatusBadRequest {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
		})
	}

	req := RegisterRequest{Email: "dup@example.com", Password: "longenough", DisplayName: "Dup"}
	if _, err := as.Register(ctx, req); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := as.Register(ctx, req)
	if ae, ok := apierr.As(err); !ok || ae.Code != "email_taken" {
		t.Fatalf("expected email_taken, got %v", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	as := newTestAuthService(t, "test-secret")
	ctx := context.Background()
	if _, err := as.Register(ctx, RegisterRequest{Email: "k@example.com", Password: "longenough", DisplayName: "K"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	for _, req := range []LoginRequest{
		{Email: "k@example.com", Password: "wrongpass"},
		{Email: "missing@example.com", Password: "longenough"},
	} {
		_, err := as.Login(ctx, req)
		if ae, ok := apierr.As(err); !ok || ae.Status != http.StatusUnauthorized {
			t.Fatalf("expected 401 for %s, got %v", req.Email, err)
		}
	}
}

func TestSetContextFromTokenRejects(t *testing.T) {
	as := newTestAuthService(t, "test-secret")
	other := newTestAuthService(t, "other-secret")
	ctx := context.Background()
	res, err := other.Register(ctx, RegisterRequest{Email: "o@example.com", Password: "longenough", DisplayName: "O"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	for _, tok := range []string{"", "garbage", res.AccessToken} {
		if _, err := as.SetContextFromToken(ctx, tok); !errors.Is(err, apperr.ErrUnauthorized) {
			t.Fatalf("token %q accepted: %v", tok, err)
		}
	}
}

func TestNormalizeWhatsAppNumber(t *testing.T) {
	tests := map[string]string{
		"":                       "",
		"+254 700 000 001":       "whatsapp:+254700000001",
		"whatsapp:+254700000001": "whatsapp:+254700000001",
		"abc":                    "",
	}
	for in, want := range tests {
		if got := NormalizeWhatsAppNumber(in); got != want {
			t.Fatalf("%q: got %q want %q", in, got, want)
		}
	}
}
