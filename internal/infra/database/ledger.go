package database

import (
	"context"
	"fmt"

	"github.com/xueban-network/xueban/internal/domain"
	"github.com/xueban-network/xueban/internal/infra/database/models"
)

// ─── XP Ledger ──────────────────────────────────────────────────────────────

// InsertLedgerEntry appends an audit row. e.ID is set on return.
func (q *Queries) InsertLedgerEntry(ctx context.Context, e *domain.LedgerEntry) error {
	row := &models.LedgerEntry{
		AccountID: e.AccountID,
		Type:      string(e.Type),
		EntryType: string(e.EntryType),
		Reason:    string(e.Reason),
		Amount:    e.Amount,
		Balance:   e.Balance,
		Ref:       e.Ref,
		CreatedAt: e.Timestamp.UTC(),
	}
	if _, err := q.idb.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	e.ID = row.ID
	return nil
}

// ListLedgerEntries returns an account's entries, newest first.
func (q *Queries) ListLedgerEntries(ctx context.Context, accountID int64, limit int) ([]domain.LedgerEntry, error) {
	var rows []models.LedgerEntry
	err := q.idb.NewSelect().
		Model(&rows).
		Where("account_id = ?", accountID).
		OrderExpr("id DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}

	out := make([]domain.LedgerEntry, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

// SumLedger returns the signed sum of an account's ledger amounts.
func (q *Queries) SumLedger(ctx context.Context, accountID int64) (int64, error) {
	var sum int64
	err := q.idb.NewSelect().
		Model((*models.LedgerEntry)(nil)).
		ColumnExpr("COALESCE(SUM(amount), 0)").
		Where("account_id = ?", accountID).
		Scan(ctx, &sum)
	if err != nil {
		return 0, fmt.Errorf("sum ledger: %w", err)
	}
	return sum, nil
}
