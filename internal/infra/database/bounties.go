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

// ─── Bounties ───────────────────────────────────────────────────────────────

// InsertBounty creates an open bounty. b.ID and b.CreatedAt are set on return.
func (q *Queries) InsertBounty(ctx context.Context, b *domain.Bounty) error {
	row := &models.Bounty{
		PosterID:    b.PosterID,
		Title:       b.Title,
		Description: b.Description,
		Stake:       b.Stake,
		Status:      string(domain.BountyOpen),
		CreatedAt:   time.Now().UTC(),
	}
	if _, err := q.idb.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("insert bounty: %w", err)
	}
	*b = row.ToDomain()
	return nil
}

// GetBounty loads a bounty by id.
func (q *Queries) GetBounty(ctx context.Context, id int64) (*domain.Bounty, error) {
	return q.getBounty(ctx, id, false)
}

// GetBountyForUpdate loads a bounty and locks its row.
func (q *Queries) GetBountyForUpdate(ctx context.Context, id int64) (*domain.Bounty, error) {
	return q.getBounty(ctx, id, true)
}

func (q *Queries) getBounty(ctx context.Context, id int64, lock bool) (*domain.Bounty, error) {
	row := new(models.Bounty)
	sel := q.idb.NewSelect().Model(row).Where("id = ?", id)
	if lock {
		sel = q.forUpdate(sel)
	}
	if err := sel.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBountyNotFound
		}
		return nil, fmt.Errorf("get bounty %d: %w", id, err)
	}
	b := row.ToDomain()
	return &b, nil
}

// ListBounties returns bounties, open ones first, newest first. An empty
// status lists every status.
func (q *Queries) ListBounties(ctx context.Context, status domain.BountyStatus, limit int) ([]domain.Bounty, error) {
	var rows []models.Bounty
	sel := q.idb.NewSelect().Model(&rows)
	if status != "" {
		sel = sel.Where("status = ?", string(status))
	}
	err := sel.
		OrderExpr("CASE WHEN status = ? THEN 0 ELSE 1 END", string(domain.BountyOpen)).
		OrderExpr("created_at DESC, id DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list bounties: %w", err)
	}

	out := make([]domain.Bounty, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

// MarkBountySolved moves an open bounty to solved. It reports false when the
// bounty was no longer open, so of two racing callers exactly one wins.
func (q *Queries) MarkBountySolved(ctx context.Context, id, solverID int64) (bool, error) {
	res, err := q.idb.NewUpdate().
		Model((*models.Bounty)(nil)).
		Set("status = ?", string(domain.BountySolved)).
		Set("solver_id = ?", solverID).
		Set("solved_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Where("status = ?", string(domain.BountyOpen)).
		Where("solver_id IS NULL").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("mark bounty %d solved: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// DeleteOpenBounty removes an open bounty and its answers. It reports false
// when the bounty was no longer open.
func (q *Queries) DeleteOpenBounty(ctx context.Context, id int64) (bool, error) {
	res, err := q.idb.NewDelete().
		Model((*models.Bounty)(nil)).
		Where("id = ?", id).
		Where("status = ?", string(domain.BountyOpen)).
		Where("solver_id IS NULL").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("delete bounty %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	answers := q.idb.NewSelect().
		Model((*models.BountyAnswer)(nil)).
		Column("id").
		Where("bounty_id = ?", id)
	if _, err := q.idb.NewDelete().
		Model((*models.AnswerComment)(nil)).
		Where("answer_id IN (?)", answers).
		Exec(ctx); err != nil {
		return false, fmt.Errorf("delete answer comments of bounty %d: %w", id, err)
	}
	if _, err := q.idb.NewDelete().
		Model((*models.BountyAnswer)(nil)).
		Where("bounty_id = ?", id).
		Exec(ctx); err != nil {
		return false, fmt.Errorf("delete answers of bounty %d: %w", id, err)
	}
	return true, nil
}

// InsertAnswer adds an answer. a.ID and a.CreatedAt are set on return.
func (q *Queries) InsertAnswer(ctx context.Context, a *domain.BountyAnswer) error {
	row := &models.BountyAnswer{
		BountyID:  a.BountyID,
		AuthorID:  a.AuthorID,
		Content:   a.Content,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := q.idb.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}
	*a = row.ToDomain()
	return nil
}

// GetAnswer loads an answer that belongs to the given bounty.
func (q *Queries) GetAnswer(ctx context.Context, bountyID, answerID int64) (*domain.BountyAnswer, error) {
	row := new(models.BountyAnswer)
	err := q.idb.NewSelect().
		Model(row).
		Where("id = ?", answerID).
		Where("bounty_id = ?", bountyID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAnswerNotFound
		}
		return nil, fmt.Errorf("get answer %d: %w", answerID, err)
	}
	a := row.ToDomain()
	return &a, nil
}

// GetAnswerByID loads an answer regardless of its bounty.
func (q *Queries) GetAnswerByID(ctx context.Context, answerID int64) (*domain.BountyAnswer, error) {
	row := new(models.BountyAnswer)
	if err := q.idb.NewSelect().Model(row).Where("id = ?", answerID).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAnswerNotFound
		}
		return nil, fmt.Errorf("get answer %d: %w", answerID, err)
	}
	a := row.ToDomain()
	return &a, nil
}

// InsertAnswerComment records a comment on an answer. c.ID and c.CreatedAt
// are set on return.
func (q *Queries) InsertAnswerComment(ctx context.Context, c *domain.AnswerComment) error {
	row := &models.AnswerComment{
		AnswerID:  c.AnswerID,
		AccountID: c.AccountID,
		Content:   c.Content,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := q.idb.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("insert answer comment: %w", err)
	}
	*c = row.ToDomain()
	return nil
}

// ListAnswerComments returns an answer's comments, oldest first.
func (q *Queries) ListAnswerComments(ctx context.Context, answerID int64) ([]domain.AnswerComment, error) {
	var rows []models.AnswerComment
	err := q.idb.NewSelect().
		Model(&rows).
		Where("answer_id = ?", answerID).
		OrderExpr("created_at ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list answer comments: %w", err)
	}

	out := make([]domain.AnswerComment, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

// MarkAnswerAccepted flags an answer as the accepted one.
func (q *Queries) MarkAnswerAccepted(ctx context.Context, answerID int64) error {
	_, err := q.idb.NewUpdate().
		Model((*models.BountyAnswer)(nil)).
		Set("accepted = ?", true).
		Where("id = ?", answerID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("accept answer %d: %w", answerID, err)
	}
	return nil
}

// ListAnswers returns a bounty's answers, accepted first, then oldest first.
func (q *Queries) ListAnswers(ctx context.Context, bountyID int64) ([]domain.BountyAnswer, error) {
	var rows []models.BountyAnswer
	err := q.idb.NewSelect().
		Model(&rows).
		Where("bounty_id = ?", bountyID).
		OrderExpr("accepted DESC, created_at ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}

	out := make([]domain.BountyAnswer, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

// SumOpenStakes returns the XP currently held in escrow.
func (q *Queries) SumOpenStakes(ctx context.Context) (int64, error) {
	var sum int64
	err := q.idb.NewSelect().
		Model((*models.Bounty)(nil)).
		ColumnExpr("COALESCE(SUM(stake), 0)").
		Where("status = ?", string(domain.BountyOpen)).
		Scan(ctx, &sum)
	if err != nil {
		return 0, fmt.Errorf("sum open stakes: %w", err)
	}
	return sum, nil
}
