package services

import (
	"bytes"
	"context"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mwanafrika/mwanafrika-backend/internal/clients/gcp"
	"github.com/mwanafrika/mwanafrika-backend/internal/clients/sendgrid"
	"github.com/mwanafrika/mwanafrika-backend/internal/content"
	"github.com/mwanafrika/mwanafrika-backend/internal/data/repos"
	"github.com/mwanafrika/mwanafrika-backend/internal/data/repos/testutil"
	types "github.com/mwanafrika/mwanafrika-backend/internal/domain"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/apierr"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/dbctx"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []sendgrid.SendEmailRequest
}

func (m *fakeMailer) Send(ctx context.Context, req sendgrid.SendEmailRequest) (*sendgrid.SendEmailResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, req)
	return &sendgrid.SendEmailResult{StatusCode: http.StatusAccepted}, nil
}

type rewardsFixture struct {
	db          *gorm.DB
	svc         RewardService
	profileRepo repos.ProfileRepo
	mailer      *fakeMailer
	voucherDir  string
}

func newRewardsFixture(t *testing.T) *rewardsFixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	catalog := content.MustLoad()
	userRepo := repos.NewUserRepo(db, log)
	profileRepo := repos.NewProfileRepo(db, log)
	ps := NewProfileService(log, profileRepo, userRepo, catalog)

	dir := t.TempDir()
	bucket, err := gcp.NewLocalBucket(log, dir, "/vouchers")
	if err != nil {
		t.Fatalf("bucket: %v", err)
	}
	renderer, err := NewVoucherRenderer(log)
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}
	mailer := &fakeMailer{}
	return &rewardsFixture{
		db:          db,
		svc:         NewRewardService(log, catalog, ps, profileRepo, userRepo, renderer, bucket, mailer),
		profileRepo: profileRepo,
		mailer:      mailer,
		voucherDir:  dir,
	}
}

func seedUserWithCoins(t *testing.T, fx *rewardsFixture, email string, coins int64) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	u := testutil.SeedUser(t, ctx, fx.db, email)
	testutil.SeedProfile(t, ctx, fx.db, u.ID, coins, 0)
	return u.ID
}

var voucherCodePattern = regexp.MustCompile(`^MWA-[A-HJ-NP-Z2-9]{4}-[A-HJ-NP-Z2-9]{4}$`)

func TestNewVoucherCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		code, err := NewVoucherCode()
		if err != nil {
			t.Fatalf("code: %v", err)
		}
		if !voucherCodePattern.MatchString(code) {
			t.Fatalf("bad code %q", code)
		}
		seen[code] = true
	}
	if len(seen) < 195 {
		t.Fatalf("codes collide too often: %d unique", len(seen))
	}
}

func TestVoucherRendererProducesPNG(t *testing.T) {
	r, err := NewVoucherRenderer(testutil.Logger(t))
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}
	raw, err := r.RenderPNG(VoucherData{Code: "MWA-ABCD-EFGH", RewardName: "Football", Cost: 300})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 900 || b.Dy() != 480 {
		t.Fatalf("size: %v", b)
	}
}

func TestRedeem(t *testing.T) {
	fx := newRewardsFixture(t)
	ctx := context.Background()

	u := seedUserWithCoins(t, fx, "redeem@example.com", 120)

	res, err := fx.svc.Redeem(ctx, u, "airtime-50")
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if res.Coins != 70 || res.Redemption.Status != types.RedemptionPending || res.Redemption.Cost != 50 {
		t.Fatalf("result: %+v", res)
	}
	if !voucherCodePattern.MatchString(res.Redemption.Code) {
		t.Fatalf("code: %q", res.Redemption.Code)
	}
	if !strings.HasPrefix(res.Redemption.VoucherURL, "/vouchers/") {
		t.Fatalf("voucher url: %q", res.Redemption.VoucherURL)
	}
	file := filepath.Join(fx.voucherDir, strings.TrimPrefix(res.Redemption.VoucherURL, "/vouchers/"))
	if _, err := os.Stat(file); err != nil {
		t.Fatalf("voucher image not stored: %v", err)
	}
	if !res.Profile.HasBadge(types.BadgeFirstRedemption) {
		t.Fatalf("badge missing: %v", res.Profile.Badges)
	}
	if len(fx.mailer.sent) != 1 || len(fx.mailer.sent[0].Attachments) != 1 {
		t.Fatalf("receipt: %+v", fx.mailer.sent)
	}

	_, err = fx.svc.Redeem(ctx, u, "maths-set")
	if ae, ok := apierr.As(err); !ok || ae.Code != "insufficient_coins" || ae.Status != http.StatusConflict {
		t.Fatalf("expected insufficient_coins, got %v", err)
	}

	list, err := fx.svc.Redemptions(ctx, u)
	if err != nil || len(list) != 1 {
		t.Fatalf("redemptions: %+v %v", list, err)
	}

	_, err = fx.svc.Redeem(ctx, u, "unicorn")
	if ae, ok := apierr.As(err); !ok || ae.Status != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestConcurrentRedeemNeverOverdraws(t *testing.T) {
	fx := newRewardsFixture(t)
	ctx := context.Background()
	u := seedUserWithCoins(t, fx, "race@example.com", 100)

	const attempts = 5
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := fx.svc.Redeem(ctx, u, "airtime-50"); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	p, err := fx.profileRepo.Get(dbctx.From(ctx), u)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if success != 2 || p.Coins != 0 || len(p.Redemptions) != 2 {
		t.Fatalf("success=%d coins=%d redemptions=%d", success, p.Coins, len(p.Redemptions))
	}
}

func TestRewardListSortedByCost(t *testing.T) {
	fx := newRewardsFixture(t)
	list := fx.svc.List()
	for i := 1; i < len(list); i++ {
		if list[i-1].Cost > list[i].Cost {
			t.Fatalf("not sorted: %+v", list)
		}
	}
}
