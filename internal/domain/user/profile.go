package user

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// XPPerLevel is the experience needed to advance one level.
const XPPerLevel = 250

// Quest kinds.
const (
	QuestCompleteLessons = "complete_lessons"
	QuestEarnCoins       = "earn_coins"
	QuestAskTutor        = "ask_tutor"
)

// Badge identifiers. Subject mastery badges are "<subject>_master".
const (
	BadgeFirstLesson     = "first_lesson"
	BadgeStreak3         = "streak_3"
	BadgeStreak7         = "streak_7"
	BadgeCoins100        = "coins_100"
	BadgeFirstRedemption = "first_redemption"
)

// Redemption statuses.
const (
	RedemptionPending   = "pending"
	RedemptionFulfilled = "fulfilled"
)

type SubjectProgress struct {
	Subject   string `json:"subject" bson:"subject"`
	Completed int    `json:"completed" bson:"completed"`
	Total     int    `json:"total" bson:"total"`
}

type Quest struct {
	ID        string `json:"id" bson:"id"`
	Title     string `json:"title" bson:"title"`
	Kind      string `json:"kind" bson:"kind"`
	Progress  int    `json:"progress" bson:"progress"`
	Total     int    `json:"total" bson:"total"`
	Reward    int64  `json:"reward" bson:"reward"`
	Completed bool   `json:"completed" bson:"completed"`
}

type Redemption struct {
	ID         string    `json:"id" bson:"id"`
	RewardID   string    `json:"reward_id" bson:"reward_id"`
	RewardName string    `json:"reward_name" bson:"reward_name"`
	Cost       int64     `json:"cost" bson:"cost"`
	Code       string    `json:"code" bson:"code"`
	Status     string    `json:"status" bson:"status"`
	VoucherURL string    `json:"voucher_url,omitempty" bson:"voucher_url,omitempty"`
	RedeemedAt time.Time `json:"redeemed_at" bson:"redeemed_at"`
}

// Profile is the gamified per-user document. It is keyed by the user id and
// written whole (last writer wins) except for coin debits.
type Profile struct {
	UserID uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id" bson:"-"`

	DisplayName string `gorm:"column:display_name" json:"display_name" bson:"display_name"`
	Country     string `gorm:"column:country;index" json:"country,omitempty" bson:"country,omitempty"`
	School      string `gorm:"column:school" json:"school,omitempty" bson:"school,omitempty"`
	Grade       string `gorm:"column:grade" json:"grade,omitempty" bson:"grade,omitempty"`
	Language    string `gorm:"column:language" json:"language,omitempty" bson:"language,omitempty"`
	Avatar      string `gorm:"column:avatar" json:"avatar,omitempty" bson:"avatar,omitempty"`

	Coins        int64  `gorm:"column:coins;not null;default:0" json:"coins" bson:"coins"`
	Level        int    `gorm:"column:level;not null;default:1" json:"level" bson:"level"`
	XP           int64  `gorm:"column:xp;not null;default:0;index" json:"xp" bson:"xp"`
	Streak       int    `gorm:"column:streak;not null;default:0" json:"streak" bson:"streak"`
	LastActiveOn string `gorm:"column:last_active_on" json:"last_active_on,omitempty" bson:"last_active_on,omitempty"`

	Badges           datatypes.JSONSlice[string]          `gorm:"column:badges" json:"badges" bson:"badges"`
	SubjectProgress  datatypes.JSONSlice[SubjectProgress] `gorm:"column:subject_progress" json:"subject_progress" bson:"subject_progress"`
	DailyQuests      datatypes.JSONSlice[Quest]           `gorm:"column:daily_quests" json:"daily_quests" bson:"daily_quests"`
	QuestsDate       string                               `gorm:"column:quests_date" json:"quests_date" bson:"quests_date"`
	CompletedLessons datatypes.JSONSlice[string]          `gorm:"column:completed_lessons" json:"completed_lessons" bson:"completed_lessons"`
	Redemptions      datatypes.JSONSlice[Redemption]      `gorm:"column:redemptions" json:"redemptions" bson:"redemptions"`

	// Version increments on every write; the document store uses it for conditional replaces.
	Version int64 `gorm:"column:version;not null;default:0" json:"-" bson:"version"`

	CreatedAt time.Time `gorm:"not null" json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at" bson:"updated_at"`
}

func (Profile) TableName() string { return "profile" }

// LevelForXP is 1 + xp/XPPerLevel. Negative xp is treated as zero.
func LevelForXP(xp int64) int {
	if xp < 0 {
		xp = 0
	}
	return 1 + int(xp/XPPerLevel)
}

// AddXP adds xp and recomputes the level.
func (p *Profile) AddXP(n int64) {
	p.XP += n
	if p.XP < 0 {
		p.XP = 0
	}
	p.Level = LevelForXP(p.XP)
}

func (p *Profile) HasBadge(id string) bool {
	for _, b := range p.Badges {
		if b == id {
			return true
		}
	}
	return false
}

// AwardBadge adds id unless present and reports whether it was new.
func (p *Profile) AwardBadge(id string) bool {
	if id == "" || p.HasBadge(id) {
		return false
	}
	p.Badges = append(p.Badges, id)
	return true
}

func (p *Profile) HasCompletedLesson(id string) bool {
	for _, l := range p.CompletedLessons {
		if l == id {
			return true
		}
	}
	return false
}

// Normalize restores the invariants on a document read from storage.
func (p *Profile) Normalize() {
	if p.Coins < 0 {
		p.Coins = 0
	}
	p.Level = LevelForXP(p.XP)
	if p.Badges == nil {
		p.Badges = datatypes.JSONSlice[string]{}
	}
	seen := make(map[string]struct{}, len(p.Badges))
	badges := p.Badges[:0]
	for _, b := range p.Badges {
		if _, ok := seen[b]; ok || b == "" {
			continue
		}
		seen[b] = struct{}{}
		badges = append(badges, b)
	}
	p.Badges = badges
	if p.SubjectProgress == nil {
		p.SubjectProgress = datatypes.JSONSlice[SubjectProgress]{}
	}
	if p.DailyQuests == nil {
		p.DailyQuests = datatypes.JSONSlice[Quest]{}
	}
	if p.CompletedLessons == nil {
		p.CompletedLessons = datatypes.JSONSlice[string]{}
	}
	if p.Redemptions == nil {
		p.Redemptions = datatypes.JSONSlice[Redemption]{}
	}
}
