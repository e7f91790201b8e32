package domain

import (
	"math"
	"time"
)

// ─── Badges ─────────────────────────────────────────────────────────────────
// A badge is granted once per account, the first time its rule holds, and
// is never revoked.

// Badge codes seeded on first start.
const (
	BadgePioneer           = "pioneer"
	BadgeFirstUpload       = "first_upload"
	BadgeActiveContributor = "active_contributor"
	BadgePopularAuthor     = "popular_author"
	BadgeCommentator       = "commentator"
)

// Badge is a named achievement definition.
type Badge struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// AccountBadge is a badge held by an account, annotated with how rare it is.
type AccountBadge struct {
	Badge
	EarnedAt time.Time `json:"earned_at"`
	Holders  int       `json:"holders"`
	Rarity   int       `json:"rarity"` // percent of accounts holding it, 1..100
}

// BadgeRarity returns round(100 × holders / total) clamped to [1, 100].
func BadgeRarity(holders, total int) int {
	if total <= 0 {
		return 100
	}
	r := int(math.Round(100 * float64(holders) / float64(total)))
	return min(max(r, 1), 100)
}

// DefaultBadges returns the seeded badge definitions.
func DefaultBadges() []Badge {
	return []Badge{
		{Code: BadgePioneer, Name: "Pioneer", Description: "One of the first members of the community", Icon: "🚀"},
		{Code: BadgeFirstUpload, Name: "First Upload", Description: "Shared a first study material", Icon: "🌱"},
		{Code: BadgeActiveContributor, Name: "Active Contributor", Description: "Shared at least 5 study materials", Icon: "🔥"},
		{Code: BadgePopularAuthor, Name: "Popular Author", Description: "Materials favorited 50 times in total", Icon: "⭐"},
		{Code: BadgeCommentator, Name: "Commentator", Description: "Wrote at least 10 comments", Icon: "💬"},
	}
}
