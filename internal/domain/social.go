package domain

import "time"

// ─── Contribution Records ───────────────────────────────────────────────────
// Study materials and community activity. These rows feed both the reward
// schedule and the badge rules.

// Material is an uploaded study material. File contents live elsewhere.
type Material struct {
	ID        int64     `json:"id"`
	AccountID int64     `json:"account_id"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}

// Comment is a comment on a material.
type Comment struct {
	ID         int64     `json:"id"`
	MaterialID int64     `json:"material_id"`
	AccountID  int64     `json:"account_id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// Rating is one account's 1–5 score of a material.
type Rating struct {
	MaterialID int64 `json:"material_id"`
	AccountID  int64 `json:"account_id"`
	Score      int   `json:"score"`
	First      bool  `json:"first"` // true when this call created the rating
}

// Post is a community post.
type Post struct {
	ID        int64     `json:"id"`
	AccountID int64     `json:"account_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// PostComment is a comment on a community post.
type PostComment struct {
	ID        int64     `json:"id"`
	PostID    int64     `json:"post_id"`
	AccountID int64     `json:"account_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// PostLikes is the like state of a post as seen by one account.
type PostLikes struct {
	PostID int64 `json:"post_id"`
	Liked  bool  `json:"liked"`
	Likes  int   `json:"likes"`
}

// AnswerComment is a comment on a bounty answer. It pays no XP.
type AnswerComment struct {
	ID        int64     `json:"id"`
	AnswerID  int64     `json:"answer_id"`
	AccountID int64     `json:"account_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidScore reports whether s is an allowed rating score.
func ValidScore(s int) bool { return s >= 1 && s <= 5 }

// ─── Leaderboard Types ──────────────────────────────────────────────────────

// LeaderboardEntry is an account's position on the XP leaderboard.
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	ID       int64  `json:"id"`
	Username string `json:"username"`
	XP       int64  `json:"xp"`
	Level    int    `json:"level"`
}

// LeaderboardConfig bounds leaderboard queries.
type LeaderboardConfig struct {
	DefaultN int `json:"default_n"`
	TopN     int `json:"top_n"`
}

// DefaultLeaderboardConfig returns the standard leaderboard bounds.
func DefaultLeaderboardConfig() LeaderboardConfig {
	return LeaderboardConfig{DefaultN: 20, TopN: 100}
}

// Clamp normalizes a requested leaderboard size.
func (c LeaderboardConfig) Clamp(n int) int {
	if n <= 0 {
		return c.DefaultN
	}
	return min(n, c.TopN)
}

// ─── Search ─────────────────────────────────────────────────────────────────

// SearchResult is a username match ranked by fuzzy score.
type SearchResult struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Level    int    `json:"level"`
	Score    int    `json:"score"`
}
