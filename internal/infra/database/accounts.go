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

// ─── Accounts ───────────────────────────────────────────────────────────────

// CreateAccount inserts an account with a zero balance at level 1.
func (q *Queries) CreateAccount(ctx context.Context, username string, role domain.Role) (*domain.Account, error) {
	now := time.Now().UTC()
	row := &models.Account{
		Username:  username,
		Role:      string(role),
		Level:     1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := q.idb.NewInsert().Model(row).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrUsernameTaken
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}

	a := row.ToDomain()
	return &a, nil
}

// GetAccount loads an account by id.
func (q *Queries) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	return q.getAccount(ctx, id, false)
}

// GetAccountForUpdate loads an account and locks its row until the
// transaction ends.
func (q *Queries) GetAccountForUpdate(ctx context.Context, id int64) (*domain.Account, error) {
	return q.getAccount(ctx, id, true)
}

func (q *Queries) getAccount(ctx context.Context, id int64, lock bool) (*domain.Account, error) {
	row := new(models.Account)
	sel := q.idb.NewSelect().Model(row).Where("id = ?", id)
	if lock {
		sel = q.forUpdate(sel)
	}
	if err := sel.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account %d: %w", id, err)
	}
	a := row.ToDomain()
	return &a, nil
}

// CompareAndSwapBalance writes a new balance and level only if the row still
// holds the expected ones. It reports whether the write happened.
func (q *Queries) CompareAndSwapBalance(
	ctx context.Context, id int64, oldXP int64, oldLevel int, newXP int64, newLevel int,
) (bool, error) {
	res, err := q.idb.NewUpdate().
		Model((*models.Account)(nil)).
		Set("xp = ?", newXP).
		Set("level = ?", newLevel).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Where("xp = ?", oldXP).
		Where("level = ?", oldLevel).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("update balance for account %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// DebitBalance subtracts amount if the balance covers it and reports whether
// it did. Level is left unchanged.
func (q *Queries) DebitBalance(ctx context.Context, id int64, amount int64) (bool, error) {
	res, err := q.idb.NewUpdate().
		Model((*models.Account)(nil)).
		Set("xp = xp - ?", amount).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Where("xp >= ?", amount).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("debit account %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CreditBalance adds amount without touching level.
func (q *Queries) CreditBalance(ctx context.Context, id int64, amount int64) error {
	res, err := q.idb.NewUpdate().
		Model((*models.Account)(nil)).
		Set("xp = xp + ?", amount).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("credit account %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// SetBanned sets or clears the ban flag.
func (q *Queries) SetBanned(ctx context.Context, id int64, banned bool) error {
	res, err := q.idb.NewUpdate().
		Model((*models.Account)(nil)).
		Set("banned = ?", banned).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set banned for account %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// CountAccounts returns the number of registered accounts.
func (q *Queries) CountAccounts(ctx context.Context) (int, error) {
	n, err := q.idb.NewSelect().Model((*models.Account)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return n, nil
}

// TopAccounts returns accounts ordered by balance, highest first.
func (q *Queries) TopAccounts(ctx context.Context, limit int) ([]domain.Account, error) {
	var rows []models.Account
	err := q.idb.NewSelect().
		Model(&rows).
		Where("banned = ?", false).
		OrderExpr("xp DESC, level DESC, id ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list top accounts: %w", err)
	}
	return toAccounts(rows), nil
}

// ListAccounts returns up to limit accounts in id order.
func (q *Queries) ListAccounts(ctx context.Context, limit int) ([]domain.Account, error) {
	var rows []models.Account
	err := q.idb.NewSelect().
		Model(&rows).
		Order("id").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return toAccounts(rows), nil
}

func toAccounts(rows []models.Account) []domain.Account {
	out := make([]domain.Account, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out
}
