// Package ledger owns every XP balance mutation.
//
// Grants apply the leveling function and persist balance and level in a
// single compare-and-swap. Stakes and refunds move XP in and out of escrow
// without touching level. Each mutation appends an audit entry.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xueban-network/xueban/internal/domain"
	"github.com/xueban-network/xueban/internal/infra/database"
	"github.com/xueban-network/xueban/internal/infra/observability"
)

// Result is an account's state after a grant.
type Result struct {
	AccountID int64 `json:"account_id"`
	Balance   int64 `json:"balance"`
	Level     int   `json:"level"`
	LeveledUp bool  `json:"leveled_up"`
}

// Ledger applies XP mutations.
type Ledger struct {
	db     *database.DB
	logger *zap.Logger
	now    func() time.Time
}

// New creates a ledger over db.
func New(db *database.DB, logger *zap.Logger) *Ledger {
	return &Ledger{
		db:     db,
		logger: logger.Named("ledger"),
		now:    time.Now,
	}
}

// NewRef returns an id linking the entries written by one operation.
func NewRef() string { return uuid.NewString() }

// Grant credits amount to an account in its own transaction.
func (l *Ledger) Grant(ctx context.Context, accountID, amount int64, txType domain.TransactionType, reason domain.Reason) (*Result, error) {
	var res *Result
	err := l.db.RunInTx(ctx, func(ctx context.Context, q *database.Queries) error {
		var err error
		res, err = l.GrantTx(ctx, q, accountID, amount, txType, reason, NewRef())
		return err
	})
	if err != nil {
		return nil, err
	}
	l.observe(res, amount, reason)
	return res, nil
}

// GrantTx credits amount inside the caller's transaction and applies
// single-step promotion. Metrics are recorded only by Grant; callers using
// GrantTx directly report through Observe after commit.
func (l *Ledger) GrantTx(
	ctx context.Context, q *database.Queries,
	accountID, amount int64, txType domain.TransactionType, reason domain.Reason, ref string,
) (*Result, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	acct, err := q.GetAccountForUpdate(ctx, accountID)
	if err != nil {
		return nil, err
	}

	newXP, newLevel, up := domain.ApplyXP(acct.XP, acct.Level, amount)
	ok, err := q.CompareAndSwapBalance(ctx, accountID, acct.XP, acct.Level, newXP, newLevel)
	if err != nil {
		return nil, err
	}
	if !ok {
		observability.LedgerConflicts.Inc()
		return nil, fmt.Errorf("grant %d XP to account %d: %w", amount, accountID, domain.ErrBalanceConflict)
	}

	if err := l.record(ctx, q, accountID, amount, newXP, txType, reason, ref); err != nil {
		return nil, err
	}

	return &Result{
		AccountID: accountID,
		Balance:   newXP,
		Level:     newLevel,
		LeveledUp: up,
	}, nil
}

// StakeTx debits amount into escrow. It fails with ErrInsufficientBalance
// and changes nothing when the balance does not cover it.
func (l *Ledger) StakeTx(ctx context.Context, q *database.Queries, accountID, amount int64, ref string) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}

	acct, err := q.GetAccountForUpdate(ctx, accountID)
	if err != nil {
		return 0, err
	}
	if acct.XP < amount {
		return 0, domain.ErrInsufficientBalance
	}

	ok, err := q.DebitBalance(ctx, accountID, amount)
	if err != nil {
		return 0, err
	}
	if !ok {
		// The balance dropped between read and write.
		return 0, domain.ErrInsufficientBalance
	}

	balance := acct.XP - amount
	if err := l.record(ctx, q, accountID, -amount, balance, domain.TxStake, domain.ReasonBounty, ref); err != nil {
		return 0, err
	}
	return balance, nil
}

// RefundTx returns a previous stake. Level is not recomputed: the stake
// never lowered it, so restoring the balance restores the prior state.
func (l *Ledger) RefundTx(ctx context.Context, q *database.Queries, accountID, amount int64, ref string) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	if err := q.CreditBalance(ctx, accountID, amount); err != nil {
		return 0, err
	}
	acct, err := q.GetAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	if err := l.record(ctx, q, accountID, amount, acct.XP, domain.TxRefund, domain.ReasonBounty, ref); err != nil {
		return 0, err
	}
	return acct.XP, nil
}

func (l *Ledger) record(
	ctx context.Context, q *database.Queries,
	accountID, amount, balance int64, txType domain.TransactionType, reason domain.Reason, ref string,
) error {
	return q.InsertLedgerEntry(ctx, &domain.LedgerEntry{
		Timestamp: l.now(),
		Type:      txType,
		EntryType: domain.EntryTypeFor(txType),
		AccountID: accountID,
		Amount:    amount,
		Reason:    reason,
		Ref:       ref,
		Balance:   balance,
	})
}

// Observe records metrics and logs for a committed grant.
func (l *Ledger) Observe(res *Result, amount int64, reason domain.Reason) {
	l.observe(res, amount, reason)
}

func (l *Ledger) observe(res *Result, amount int64, reason domain.Reason) {
	if res == nil {
		return
	}
	observability.XPGranted.WithLabelValues(string(reason)).Add(float64(amount))
	if res.LeveledUp {
		observability.LevelUps.Inc()
		l.logger.Info("Account leveled up",
			zap.Int64("accountID", res.AccountID),
			zap.Int("level", res.Level),
			zap.Int64("balance", res.Balance))
	}
}

// History returns an account's ledger entries, newest first.
func (l *Ledger) History(ctx context.Context, accountID int64, limit int) ([]domain.LedgerEntry, error) {
	if _, err := l.db.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	limit = min(limit, 200)
	return l.db.ListLedgerEntries(ctx, accountID, limit)
}
