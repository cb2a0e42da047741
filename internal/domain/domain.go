package domain

import (
	"github.com/mwanafrika/mwanafrika-backend/internal/domain/learning"
	"github.com/mwanafrika/mwanafrika-backend/internal/domain/user"
)

type (
	User            = user.User
	Profile         = user.Profile
	SubjectProgress = user.SubjectProgress
	Quest           = user.Quest
	Redemption      = user.Redemption

	Curriculum       = learning.Curriculum
	CurriculumUnit   = learning.CurriculumUnit
	CurriculumLesson = learning.CurriculumLesson
	Quiz             = learning.Quiz
	QuizQuestion     = learning.QuizQuestion
	QuizAnalysis     = learning.QuizAnalysis
)

var LevelForXP = user.LevelForXP

const (
	XPPerLevel = user.XPPerLevel

	QuestCompleteLessons = user.QuestCompleteLessons
	QuestEarnCoins       = user.QuestEarnCoins
	QuestAskTutor        = user.QuestAskTutor

	BadgeFirstLesson     = user.BadgeFirstLesson
	BadgeStreak3         = user.BadgeStreak3
	BadgeStreak7         = user.BadgeStreak7
	BadgeCoins100        = user.BadgeCoins100
	BadgeFirstRedemption = user.BadgeFirstRedemption

	RedemptionPending   = user.RedemptionPending
	RedemptionFulfilled = user.RedemptionFulfilled
)
