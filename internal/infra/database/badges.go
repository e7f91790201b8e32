package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xueban-network/xueban/internal/domain"
	"github.com/xueban-network/xueban/internal/infra/database/models"
)

// ─── Badges ─────────────────────────────────────────────────────────────────

// ListBadges returns every badge definition.
func (q *Queries) ListBadges(ctx context.Context) ([]domain.Badge, error) {
	var rows []models.Badge
	if err := q.idb.NewSelect().Model(&rows).Order("id").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	out := make([]domain.Badge, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

// GetBadgeByCode loads a badge definition by its code.
func (q *Queries) GetBadgeByCode(ctx context.Context, code string) (*domain.Badge, error) {
	row := new(models.Badge)
	if err := q.idb.NewSelect().Model(row).Where("code = ?", code).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBadgeNotFound
		}
		return nil, fmt.Errorf("get badge %q: %w", code, err)
	}
	b := row.ToDomain()
	return &b, nil
}

// GrantBadge records that an account holds a badge. It reports false when
// the grant already existed.
func (q *Queries) GrantBadge(ctx context.Context, accountID, badgeID int64, at time.Time) (bool, error) {
	row := &models.AccountBadge{
		AccountID: accountID,
		BadgeID:   badgeID,
		EarnedAt:  at.UTC(),
	}
	res, err := q.idb.NewInsert().
		Model(row).
		On("CONFLICT (account_id, badge_id) DO NOTHING").
		Returning("NULL").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("grant badge %d to account %d: %w", badgeID, accountID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// HeldBadgeCodes returns the codes of badges an account holds.
func (q *Queries) HeldBadgeCodes(ctx context.Context, accountID int64) ([]string, error) {
	var codes []string
	err := q.idb.NewSelect().
		TableExpr("account_badges AS ab").
		Join("JOIN badges AS b ON b.id = ab.badge_id").
		ColumnExpr("b.code").
		Where("ab.account_id = ?", accountID).
		Scan(ctx, &codes)
	if err != nil {
		return nil, fmt.Errorf("list held badges: %w", err)
	}
	return codes, nil
}

type accountBadgeRow struct {
	ID          int64     `bun:"id"`
	Code        string    `bun:"code"`
	Name        string    `bun:"name"`
	Description string    `bun:"description"`
	Icon        string    `bun:"icon"`
	EarnedAt    time.Time `bun:"earned_at"`
	Holders     int       `bun:"holders"`
}

// ListAccountBadges returns an account's badges, most recently earned
// first, each with its current holder count. Rarity is left to the caller.
func (q *Queries) ListAccountBadges(ctx context.Context, accountID int64) ([]domain.AccountBadge, error) {
	var rows []accountBadgeRow
	err := q.idb.NewRaw(`
		SELECT b.id, b.code, b.name, b.description, b.icon, ab.earned_at,
			(SELECT COUNT(*) FROM account_badges AS h WHERE h.badge_id = b.id) AS holders
		FROM account_badges AS ab
		JOIN badges AS b ON b.id = ab.badge_id
		WHERE ab.account_id = ?
		ORDER BY ab.earned_at DESC, ab.id DESC
	`, accountID).Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("list account badges: %w", err)
	}

	out := make([]domain.AccountBadge, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.AccountBadge{
			Badge: domain.Badge{
				ID:          r.ID,
				Code:        r.Code,
				Name:        r.Name,
				Description: r.Description,
				Icon:        r.Icon,
			},
			EarnedAt: r.EarnedAt,
			Holders:  r.Holders,
		})
	}
	return out, nil
}
