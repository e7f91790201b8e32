// Package models holds the bun row types for the relational store.
package models

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/xueban-network/xueban/internal/domain"
)

// Account is a participant with an XP balance.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Username  string    `bun:"username,notnull,unique"`
	Role      string    `bun:"role,notnull"`
	XP        int64     `bun:"xp,notnull"`
	Level     int       `bun:"level,notnull"`
	Banned    bool      `bun:"banned,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// ToDomain converts the row to its domain form.
func (a *Account) ToDomain() domain.Account {
	return domain.Account{
		ID:        a.ID,
		Username:  a.Username,
		Role:      domain.Role(a.Role),
		XP:        a.XP,
		Level:     a.Level,
		Banned:    a.Banned,
		CreatedAt: a.CreatedAt,
	}
}

// LedgerEntry is an append-only audit row for one balance mutation.
type LedgerEntry struct {
	bun.BaseModel `bun:"table:ledger_entries,alias:le"`

	ID        int64     `bun:"id,pk,autoincrement"`
	AccountID int64     `bun:"account_id,notnull"`
	Type      string    `bun:"type,notnull"`
	EntryType string    `bun:"entry_type,notnull"`
	Reason    string    `bun:"reason,notnull"`
	Amount    int64     `bun:"amount,notnull"`
	Balance   int64     `bun:"balance,notnull"`
	Ref       string    `bun:"ref,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

// ToDomain converts the row to its domain form.
func (e *LedgerEntry) ToDomain() domain.LedgerEntry {
	return domain.LedgerEntry{
		ID:        e.ID,
		Timestamp: e.CreatedAt,
		Type:      domain.TransactionType(e.Type),
		EntryType: domain.EntryType(e.EntryType),
		AccountID: e.AccountID,
		Amount:    e.Amount,
		Reason:    domain.Reason(e.Reason),
		Ref:       e.Ref,
		Balance:   e.Balance,
	}
}

// Badge is a badge definition.
type Badge struct {
	bun.BaseModel `bun:"table:badges,alias:b"`

	ID          int64     `bun:"id,pk,autoincrement"`
	Code        string    `bun:"code,notnull,unique"`
	Name        string    `bun:"name,notnull"`
	Description string    `bun:"description,notnull"`
	Icon        string    `bun:"icon,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
}

// ToDomain converts the row to its domain form.
func (b *Badge) ToDomain() domain.Badge {
	return domain.Badge{
		ID:          b.ID,
		Code:        b.Code,
		Name:        b.Name,
		Description: b.Description,
		Icon:        b.Icon,
	}
}

// AccountBadge is a badge grant. One per (account, badge).
type AccountBadge struct {
	bun.BaseModel `bun:"table:account_badges,alias:ab"`

	ID        int64     `bun:"id,pk,autoincrement"`
	AccountID int64     `bun:"account_id,notnull,unique:account_badges_account_badge_key"`
	BadgeID   int64     `bun:"badge_id,notnull,unique:account_badges_account_badge_key"`
	EarnedAt  time.Time `bun:"earned_at,notnull"`
}

// Bounty is a question with escrowed XP.
type Bounty struct {
	bun.BaseModel `bun:"table:bounties,alias:bo"`

	ID          int64      `bun:"id,pk,autoincrement"`
	PosterID    int64      `bun:"poster_id,notnull"`
	Title       string     `bun:"title,notnull"`
	Description string     `bun:"description,notnull"`
	Stake       int64      `bun:"stake,notnull"`
	Status      string     `bun:"status,notnull"`
	SolverID    *int64     `bun:"solver_id"`
	CreatedAt   time.Time  `bun:"created_at,notnull"`
	SolvedAt    *time.Time `bun:"solved_at"`
}

// ToDomain converts the row to its domain form.
func (b *Bounty) ToDomain() domain.Bounty {
	return domain.Bounty{
		ID:          b.ID,
		PosterID:    b.PosterID,
		Title:       b.Title,
		Description: b.Description,
		Stake:       b.Stake,
		Status:      domain.BountyStatus(b.Status),
		SolverID:    b.SolverID,
		CreatedAt:   b.CreatedAt,
		SolvedAt:    b.SolvedAt,
	}
}

// BountyAnswer is an answer to a bounty.
type BountyAnswer struct {
	bun.BaseModel `bun:"table:bounty_answers,alias:ba"`

	ID        int64     `bun:"id,pk,autoincrement"`
	BountyID  int64     `bun:"bounty_id,notnull"`
	AuthorID  int64     `bun:"author_id,notnull"`
	Content   string    `bun:"content,notnull"`
	Accepted  bool      `bun:"accepted,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

// ToDomain converts the row to its domain form.
func (a *BountyAnswer) ToDomain() domain.BountyAnswer {
	return domain.BountyAnswer{
		ID:        a.ID,
		BountyID:  a.BountyID,
		AuthorID:  a.AuthorID,
		Content:   a.Content,
		Accepted:  a.Accepted,
		CreatedAt: a.CreatedAt,
	}
}

// Material is an uploaded study material.
type Material struct {
	bun.BaseModel `bun:"table:materials,alias:m"`

	ID        int64     `bun:"id,pk,autoincrement"`
	AccountID int64     `bun:"account_id,notnull"`
	Title     string    `bun:"title,notnull"`
	Category  string    `bun:"category,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

// ToDomain converts the row to its domain form.
func (m *Material) ToDomain() domain.Material {
	return domain.Material{
		ID:        m.ID,
		AccountID: m.AccountID,
		Title:     m.Title,
		Category:  m.Category,
		CreatedAt: m.CreatedAt,
	}
}

// MaterialComment is a comment on a material.
type MaterialComment struct {
	bun.BaseModel `bun:"table:material_comments,alias:mc"`

	ID         int64     `bun:"id,pk,autoincrement"`
	MaterialID int64     `bun:"material_id,notnull"`
	AccountID  int64     `bun:"account_id,notnull"`
	Content    string    `bun:"content,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
}

// Rating is a 1–5 score. One per (material, account).
type Rating struct {
	bun.BaseModel `bun:"table:ratings,alias:r"`

	ID         int64     `bun:"id,pk,autoincrement"`
	MaterialID int64     `bun:"material_id,notnull,unique:ratings_material_account_key"`
	AccountID  int64     `bun:"account_id,notnull,unique:ratings_material_account_key"`
	Score      int       `bun:"score,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
	UpdatedAt  time.Time `bun:"updated_at,notnull"`
}

// Favorite marks a material as favorited. One per (material, account).
type Favorite struct {
	bun.BaseModel `bun:"table:favorites,alias:f"`

	ID         int64     `bun:"id,pk,autoincrement"`
	MaterialID int64     `bun:"material_id,notnull,unique:favorites_material_account_key"`
	AccountID  int64     `bun:"account_id,notnull,unique:favorites_material_account_key"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
}

// Post is a community post.
type Post struct {
	bun.BaseModel `bun:"table:posts,alias:p"`

	ID        int64     `bun:"id,pk,autoincrement"`
	AccountID int64     `bun:"account_id,notnull"`
	Content   string    `bun:"content,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

// PostComment is a comment on a community post.
type PostComment struct {
	bun.BaseModel `bun:"table:post_comments,alias:pc"`

	ID        int64     `bun:"id,pk,autoincrement"`
	PostID    int64     `bun:"post_id,notnull"`
	AccountID int64     `bun:"account_id,notnull"`
	Content   string    `bun:"content,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

// ToDomain converts the row to its domain form.
func (c *PostComment) ToDomain() domain.PostComment {
	return domain.PostComment{
		ID:        c.ID,
		PostID:    c.PostID,
		AccountID: c.AccountID,
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
	}
}

// PostLike is one account's like of a post. One per (post, account).
type PostLike struct {
	bun.BaseModel `bun:"table:post_likes,alias:pl"`

	ID        int64     `bun:"id,pk,autoincrement"`
	PostID    int64     `bun:"post_id,notnull,unique:post_likes_post_account_key"`
	AccountID int64     `bun:"account_id,notnull,unique:post_likes_post_account_key"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

// AnswerComment is a comment on a bounty answer.
type AnswerComment struct {
	bun.BaseModel `bun:"table:answer_comments,alias:ac"`

	ID        int64     `bun:"id,pk,autoincrement"`
	AnswerID  int64     `bun:"answer_id,notnull"`
	AccountID int64     `bun:"account_id,notnull"`
	Content   string    `bun:"content,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

// ToDomain converts the row to its domain form.
func (c *AnswerComment) ToDomain() domain.AnswerComment {
	return domain.AnswerComment{
		ID:        c.ID,
		AnswerID:  c.AnswerID,
		AccountID: c.AccountID,
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
	}
}
