package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mwanafrika/mwanafrika-backend/internal/content"
	"github.com/mwanafrika/mwanafrika-backend/internal/data/repos"
	types "github.com/mwanafrika/mwanafrika-backend/internal/domain"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/apierr"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/dbctx"
	apperr "github.com/mwanafrika/mwanafrika-backend/internal/pkg/errors"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/logger"
)

const dayLayout = "2006-01-02"

// Preferences is a partial update; nil fields are left unchanged.
type Preferences struct {
	DisplayName *string `json:"display_name"`
	Country     *string `json:"country"`
	School      *string `json:"school"`
	Grade       *string `json:"grade"`
	Language    *string `json:"language"`
	Avatar      *string `json:"avatar"`
}

type LessonCompletion struct {
	Profile          *types.Profile `json:"profile"`
	AlreadyCompleted bool           `json:"already_completed"`
	CoinsAwarded     int64          `json:"coins_awarded"`
	XPAwarded        int64          `json:"xp_awarded"`
	NewBadges        []string       `json:"new_badges"`
}

type LeaderboardEntry struct {
	Rank        int       `json:"rank"`
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Country     string    `json:"country,omitempty"`
	Level       int       `json:"level"`
	XP          int64     `json:"xp"`
	Coins       int64     `json:"coins"`
	Streak      int       `json:"streak"`
}

type ProfileService interface {
	// Ensure returns the user's profile, creating the default one on first sign-in.
	Ensure(ctx context.Context, userID uuid.UUID, displayName, country string) (*types.Profile, error)
	Get(ctx context.Context, userID uuid.UUID) (*types.Profile, error)
	UpdatePreferences(ctx context.Context, userID uuid.UUID, prefs Preferences) (*types.Profile, error)
	CompleteLesson(ctx context.Context, userID uuid.UUID, lessonID string) (*LessonCompletion, error)
	RecordTutorQuestion(ctx context.Context, userID uuid.UUID) error
	GrantCoins(ctx context.Context, userID uuid.UUID, amount int64) (*types.Profile, error)
	Leaderboard(ctx context.Context, country string, limit int) ([]LeaderboardEntry, error)
}

type profileService struct {
	log         *logger.Logger
	profileRepo repos.ProfileRepo
	userRepo    repos.UserRepo
	catalog     *content.Catalog
	now         func() time.Time
}

func NewProfileService(log *logger.Logger, profileRepo repos.ProfileRepo, userRepo repos.UserRepo, catalog *content.Catalog) ProfileService {
	return &profileService{
		log:         log.With("service", "ProfileService"),
		profileRepo: profileRepo,
		userRepo:    userRepo,
		catalog:     catalog,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (ps *profileService) today() string { return ps.now().Format(dayLayout) }

// NewDefaultProfile builds the first-sign-in document.
func NewDefaultProfile(catalog *content.Catalog, userID uuid.UUID, displayName, country, today string) *types.Profile {
	p := &types.Profile{
		UserID:      userID,
		DisplayName: strings.TrimSpace(displayName),
		Country:     strings.ToUpper(strings.TrimSpace(country)),
		Level:       1,
	}
	p.Normalize()
	syncSubjectRows(p, catalog)
	refreshQuests(p, catalog, today)
	return p
}

func (ps *profileService) Ensure(ctx context.Context, userID uuid.UUID, displayName, country string) (*types.Profile, error) {
	dbc := dbctx.From(ctx)
	p, err := ps.profileRepo.Get(dbc, userID)
	if err == nil {
		return ps.refreshIfStale(ctx, p)
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	p = NewDefaultProfile(ps.catalog, userID, displayName, country, ps.today())
	if err := ps.profileRepo.Create(dbc, p); err != nil {
		// Lost a first-sign-in race; the other writer's document wins.
		if existing, gerr := ps.profileRepo.Get(dbc, userID); gerr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("create profile: %w", err)
	}
	ps.log.Info("Created profile", "user_id", userID)
	return p, nil
}

func (ps *profileService) Get(ctx context.Context, userID uuid.UUID) (*types.Profile, error) {
	if userID == uuid.Nil {
		return nil, apierr.New(http.StatusUnauthorized, "unauthorized", apperr.ErrUnauthorized)
	}
	displayName, country := "", ""
	if ps.userRepo != nil {
		users, err := ps.userRepo.GetByIDs(ctx, nil, []uuid.UUID{userID})
		if err != nil {
			return nil, fmt.Errorf("load user: %w", err)
		}
		if len(users) == 0 {
			return nil, apierr.NotFound("user_not_found", "user not found")
		}
		displayName = users[0].DisplayName
	}
	return ps.Ensure(ctx, userID, displayName, country)
}

func (ps *profileService) refreshIfStale(ctx context.Context, p *types.Profile) (*types.Profile, error) {
	if p.QuestsDate == ps.today() && len(p.SubjectProgress) >= len(ps.catalog.Subjects) {
		return p, nil
	}
	return ps.update(ctx, p.UserID, func(p *types.Profile) error { return nil })
}

// update applies fn inside the repo's atomic read-modify-write, after the
// daily housekeeping every write performs.
func (ps *profileService) update(ctx context.Context, userID uuid.UUID, fn func(p *types.Profile) error) (*types.Profile, error) {
	today := ps.today()
	p, err := ps.profileRepo.Update(dbctx.From(ctx), userID, func(p *types.Profile) error {
		syncSubjectRows(p, ps.catalog)
		refreshQuests(p, ps.catalog, today)
		return fn(p)
	})
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apierr.NotFound("profile_not_found", "profile not found")
	}
	return p, err
}

func (ps *profileService) UpdatePreferences(ctx context.Context, userID uuid.UUID, prefs Preferences) (*types.Profile, error) {
	if _, err := ps.Get(ctx, userID); err != nil {
		return nil, err
	}
	if prefs.DisplayName != nil && strings.TrimSpace(*prefs.DisplayName) == "" {
		return nil, apierr.BadRequest("invalid_request", "display_name cannot be empty")
	}
	return ps.update(ctx, userID, func(p *types.Profile) error {
		set := func(dst *string, src *string) {
			if src != nil {
				*dst = strings.TrimSpace(*src)
			}
		}
		set(&p.DisplayName, prefs.DisplayName)
		set(&p.School, prefs.School)
		set(&p.Grade, prefs.Grade)
		set(&p.Language, prefs.Language)
		set(&p.Avatar, prefs.Avatar)
		if prefs.Country != nil {
			p.Country = strings.ToUpper(strings.TrimSpace(*prefs.Country))
		}
		return nil
	})
}

func (ps *profileService) CompleteLesson(ctx context.Context, userID uuid.UUID, lessonID string) (*LessonCompletion, error) {
	lesson, ok := ps.catalog.Lesson(lessonID)
	if !ok {
		return nil, apierr.NotFound("lesson_not_found", "lesson %q not found", lessonID)
	}
	if _, err := ps.Get(ctx, userID); err != nil {
		return nil, err
	}

	today := ps.today()
	yesterday := ps.now().AddDate(0, 0, -1).Format(dayLayout)
	var result LessonCompletion
	p, err := ps.update(ctx, userID, func(p *types.Profile) error {
		result = LessonCompletion{NewBadges: []string{}}
		if p.HasCompletedLesson(lesson.ID) {
			result.AlreadyCompleted = true
			return nil
		}
		p.CompletedLessons = append(p.CompletedLessons, lesson.ID)

		for i := range p.SubjectProgress {
			sp := &p.SubjectProgress[i]
			if sp.Subject == lesson.Subject && sp.Completed < sp.Total {
				sp.Completed++
			}
		}

		switch p.LastActiveOn {
		case today:
		case yesterday:
			p.Streak++
		default:
			p.Streak = 1
		}
		p.LastActiveOn = today

		p.Coins += lesson.Coins
		p.AddXP(lesson.XP)
		result.CoinsAwarded = lesson.Coins
		result.XPAwarded = lesson.XP

		result.CoinsAwarded += progressQuest(p, types.QuestCompleteLessons, 1)
		result.CoinsAwarded += progressQuest(p, types.QuestEarnCoins, int(lesson.Coins))

		result.NewBadges = awardProgressBadges(p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Profile = p
	if !result.AlreadyCompleted {
		ps.log.Info("Lesson completed", "user_id", userID, "lesson_id", lesson.ID, "coins", result.CoinsAwarded, "xp", result.XPAwarded)
	}
	return &result, nil
}

func (ps *profileService) RecordTutorQuestion(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return nil
	}
	_, err := ps.update(ctx, userID, func(p *types.Profile) error {
		progressQuest(p, types.QuestAskTutor, 1)
		awardProgressBadges(p)
		return nil
	})
	return err
}

func (ps *profileService) GrantCoins(ctx context.Context, userID uuid.UUID, amount int64) (*types.Profile, error) {
	if amount == 0 {
		return nil, apierr.BadRequest("invalid_request", "amount must be non-zero")
	}
	p, err := ps.update(ctx, userID, func(p *types.Profile) error {
		p.Coins += amount
		awardProgressBadges(p)
		return nil
	})
	if errors.Is(err, apperr.ErrInsufficientCoins) {
		return nil, apierr.Conflict("insufficient_coins", err)
	}
	return p, err
}

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

func (ps *profileService) Leaderboard(ctx context.Context, country string, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}
	profiles, err := ps.profileRepo.Leaderboard(dbctx.From(ctx), strings.ToUpper(strings.TrimSpace(country)), limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	out := make([]LeaderboardEntry, 0, len(profiles))
	for i, p := range profiles {
		out = append(out, LeaderboardEntry{
			Rank:        i + 1,
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			Country:     p.Country,
			Level:       p.Level,
			XP:          p.XP,
			Coins:       p.Coins,
			Streak:      p.Streak,
		})
	}
	return out, nil
}

// ---------- gamification rules ----------

// syncSubjectRows keeps one progress row per catalog subject with the current lesson total.
func syncSubjectRows(p *types.Profile, catalog *content.Catalog) {
	totals := catalog.SubjectTotals()
	have := make(map[string]int, len(p.SubjectProgress))
	for i, sp := range p.SubjectProgress {
		have[sp.Subject] = i
	}
	for _, s := range catalog.Subjects {
		if i, ok := have[s.ID]; ok {
			p.SubjectProgress[i].Total = totals[s.ID]
			continue
		}
		p.SubjectProgress = append(p.SubjectProgress, types.SubjectProgress{Subject: s.ID, Total: totals[s.ID]})
	}
}

func refreshQuests(p *types.Profile, catalog *content.Catalog, today string) {
	if p.QuestsDate == today && len(p.DailyQuests) > 0 {
		return
	}
	p.DailyQuests = p.DailyQuests[:0]
	for _, qt := range catalog.DailyQuests {
		p.DailyQuests = append(p.DailyQuests, types.Quest{
			ID:     qt.ID,
			Title:  qt.Title,
			Kind:   qt.Kind,
			Total:  qt.Total,
			Reward: qt.Reward,
		})
	}
	p.QuestsDate = today
}

// progressQuest advances open quests of kind and pays out the ones it completes.
func progressQuest(p *types.Profile, kind string, delta int) int64 {
	var paid int64
	for i := range p.DailyQuests {
		q := &p.DailyQuests[i]
		if q.Kind != kind || q.Completed {
			continue
		}
		q.Progress += delta
		if q.Progress >= q.Total {
			q.Progress = q.Total
			q.Completed = true
			p.Coins += q.Reward
			paid += q.Reward
		}
	}
	return paid
}

func awardProgressBadges(p *types.Profile) []string {
	awarded := []string{}
	award := func(id string) {
		if p.AwardBadge(id) {
			awarded = append(awarded, id)
		}
	}
	if len(p.CompletedLessons) > 0 {
		award(types.BadgeFirstLesson)
	}
	if p.Streak >= 3 {
		award(types.BadgeStreak3)
	}
	if p.Streak >= 7 {
		award(types.BadgeStreak7)
	}
	if p.Coins >= 100 {
		award(types.BadgeCoins100)
	}
	for _, sp := range p.SubjectProgress {
		if sp.Total > 0 && sp.Completed >= sp.Total {
			award(sp.Subject + "_master")
		}
	}
	return awarded
}
