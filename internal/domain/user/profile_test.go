package user

import "testing"

func TestLevelForXP(t *testing.T) {
	cases := []struct {
		xp   int64
		want int
	}{
		{-5, 1},
		{0, 1},
		{249, 1},
		{250, 2},
		{499, 2},
		{1000, 5},
	}
	for _, tc := range cases {
		if got := LevelForXP(tc.xp); got != tc.want {
			t.Fatalf("LevelForXP(%d)=%d want %d", tc.xp, got, tc.want)
		}
	}
}

func TestAddXPRecomputesLevel(t *testing.T) {
	p := &Profile{Level: 1}
	p.AddXP(260)
	if p.Level != 2 || p.XP != 260 {
		t.Fatalf("level=%d xp=%d", p.Level, p.XP)
	}
}

func TestAwardBadgeDeduplicates(t *testing.T) {
	p := &Profile{}
	if !p.AwardBadge(BadgeFirstLesson) {
		t.Fatalf("first award should be new")
	}
	if p.AwardBadge(BadgeFirstLesson) {
		t.Fatalf("second award should be a no-op")
	}
	if len(p.Badges) != 1 {
		t.Fatalf("badges=%v", p.Badges)
	}
}

func TestNormalizeRestoresInvariants(t *testing.T) {
	p := &Profile{Coins: -3, XP: 600, Level: 9, Badges: []string{"a", "a", "", "b"}}
	p.Normalize()
	if p.Coins != 0 || p.Level != 3 {
		t.Fatalf("coins=%d level=%d", p.Coins, p.Level)
	}
	if len(p.Badges) != 2 || p.Badges[0] != "a" || p.Badges[1] != "b" {
		t.Fatalf("badges=%v", p.Badges)
	}
	if p.Redemptions == nil || p.DailyQuests == nil || p.CompletedLessons == nil || p.SubjectProgress == nil {
		t.Fatalf("nil slices after Normalize")
	}
}
