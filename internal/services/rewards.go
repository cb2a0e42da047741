package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mwanafrika/mwanafrika-backend/internal/clients/gcp"
	"github.com/mwanafrika/mwanafrika-backend/internal/clients/sendgrid"
	"github.com/mwanafrika/mwanafrika-backend/internal/content"
	"github.com/mwanafrika/mwanafrika-backend/internal/data/repos"
	types "github.com/mwanafrika/mwanafrika-backend/internal/domain"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/apierr"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/dbctx"
	apperr "github.com/mwanafrika/mwanafrika-backend/internal/pkg/errors"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/logger"
)

type RedeemResult struct {
	Redemption types.Redemption `json:"redemption"`
	Coins      int64            `json:"coins"`
	Profile    *types.Profile   `json:"profile"`
}

type RewardService interface {
	List() []content.Reward
	// Redeem debits the reward cost, never letting the balance go negative.
	Redeem(ctx context.Context, userID uuid.UUID, rewardID string) (*RedeemResult, error)
	Redemptions(ctx context.Context, userID uuid.UUID) ([]types.Redemption, error)
}

type rewardService struct {
	log            *logger.Logger
	catalog        *content.Catalog
	profileService ProfileService
	profileRepo    repos.ProfileRepo
	userRepo       repos.UserRepo
	renderer       VoucherRenderer
	bucket         gcp.BucketService
	mailer         sendgrid.Client
	now            func() time.Time
}

// NewRewardService accepts a nil bucket (no voucher image) and a nil mailer (no receipt).
func NewRewardService(
	log *logger.Logger,
	catalog *content.Catalog,
	profileService ProfileService,
	profileRepo repos.ProfileRepo,
	userRepo repos.UserRepo,
	renderer VoucherRenderer,
	bucket gcp.BucketService,
	mailer sendgrid.Client,
) RewardService {
	return &rewardService{
		log:            log.With("service", "RewardService"),
		catalog:        catalog,
		profileService: profileService,
		profileRepo:    profileRepo,
		userRepo:       userRepo,
		renderer:       renderer,
		bucket:         bucket,
		mailer:         mailer,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

func (rs *rewardService) List() []content.Reward {
	out := append([]content.Reward(nil), rs.catalog.Rewards...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Cost < out[j].Cost })
	return out
}

func insufficientCoins(have, need int64) error {
	return apierr.Conflict("insufficient_coins", fmt.Errorf("%w: have %d, need %d", apperr.ErrInsufficientCoins, have, need))
}

func (rs *rewardService) Redeem(ctx context.Context, userID uuid.UUID, rewardID string) (*RedeemResult, error) {
	reward, ok := rs.catalog.Reward(rewardID)
	if !ok {
		return nil, apierr.NotFound("reward_not_found", "reward %q not found", rewardID)
	}
	profile, err := rs.profileService.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile.Coins < reward.Cost {
		return nil, insufficientCoins(profile.Coins, reward.Cost)
	}

	code, err := NewVoucherCode()
	if err != nil {
		return nil, err
	}
	redemption := types.Redemption{
		ID:         uuid.NewString(),
		RewardID:   reward.ID,
		RewardName: reward.Name,
		Cost:       reward.Cost,
		Code:       code,
		Status:     types.RedemptionPending,
		RedeemedAt: rs.now(),
	}
	png := rs.storeVoucher(ctx, &redemption, reward, profile.DisplayName)

	updated, err := rs.profileRepo.Update(dbctx.From(ctx), userID, func(p *types.Profile) error {
		// Balance is re-read under the write; the pre-check above may be stale.
		if p.Coins < reward.Cost {
			return insufficientCoins(p.Coins, reward.Cost)
		}
		p.Coins -= reward.Cost
		p.Redemptions = append(p.Redemptions, redemption)
		p.AwardBadge(types.BadgeFirstRedemption)
		return nil
	})
	if err != nil {
		if errors.Is(err, apperr.ErrInsufficientCoins) {
			if _, ok := apierr.As(err); !ok {
				return nil, insufficientCoins(0, reward.Cost)
			}
		}
		return nil, err
	}
	rs.log.Info("Reward redeemed", "user_id", userID, "reward_id", reward.ID, "cost", reward.Cost)

	rs.sendReceipt(ctx, userID, redemption, png)

	return &RedeemResult{Redemption: redemption, Coins: updated.Coins, Profile: updated}, nil
}

// storeVoucher renders and uploads the voucher image. Failures leave the
// redemption without an image; the code alone is enough to claim it.
func (rs *rewardService) storeVoucher(ctx context.Context, r *types.Redemption, reward *content.Reward, student string) []byte {
	if rs.renderer == nil {
		return nil
	}
	png, err := rs.renderer.RenderPNG(VoucherData{
		Code:        r.Code,
		RewardName:  reward.Name,
		Partner:     reward.Partner,
		Cost:        reward.Cost,
		StudentName: student,
		IssuedAt:    r.RedeemedAt,
	})
	if err != nil {
		rs.log.Warn("Voucher render failed", "reward_id", reward.ID, "error", err)
		return nil
	}
	if rs.bucket == nil {
		return png
	}
	key := strings.ToLower(r.Code) + ".png"
	if err := rs.bucket.UploadFile(ctx, key, bytes.NewReader(png)); err != nil {
		rs.log.Warn("Voucher upload failed", "key", key, "error", err)
		return png
	}
	r.VoucherURL = rs.bucket.GetPublicURL(key)
	return png
}

func (rs *rewardService) sendReceipt(ctx context.Context, userID uuid.UUID, r types.Redemption, png []byte) {
	if rs.mailer == nil || rs.userRepo == nil {
		return
	}
	users, err := rs.userRepo.GetByIDs(ctx, nil, []uuid.UUID{userID})
	if err != nil || len(users) == 0 || users[0].Email == "" {
		return
	}
	u := users[0]
	req := sendgrid.SendEmailRequest{
		To:      []sendgrid.EmailAddress{{Email: u.Email, Name: u.DisplayName}},
		Subject: "Your MwanAfrika reward: " + r.RewardName,
		Text: fmt.Sprintf("Hi %s,\n\nYou redeemed %s for %d coins.\nYour voucher code is %s.\nShow this code at the partner store to collect your reward.\n\nKeep learning!\nMwanAfrika",
			u.DisplayName, r.RewardName, r.Cost, r.Code),
		Categories: []string{"redemption"},
	}
	if len(png) > 0 {
		req.Attachments = []sendgrid.Attachment{{
			Filename:    strings.ToLower(r.Code) + ".png",
			MIMEType:    "image/png",
			Content:     png,
			Disposition: "attachment",
		}}
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if _, err := rs.mailer.Send(sendCtx, req); err != nil {
		rs.log.Warn("Redemption receipt not sent", "user_id", userID, "error", err)
	}
}

func (rs *rewardService) Redemptions(ctx context.Context, userID uuid.UUID) ([]types.Redemption, error) {
	p, err := rs.profileService.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := append([]types.Redemption(nil), p.Redemptions...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].RedeemedAt.After(out[j].RedeemedAt) })
	return out, nil
}
