// Package escrow runs the bounty lifecycle.
//
// Creating a bounty moves its stake out of the poster's balance. The stake
// then leaves escrow exactly once: to the author of the accepted answer, or
// back to the poster on cancellation. Each operation is one transaction.
package escrow

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/xueban-network/xueban/internal/app/ledger"
	"github.com/xueban-network/xueban/internal/domain"
	"github.com/xueban-network/xueban/internal/infra/database"
	"github.com/xueban-network/xueban/internal/infra/observability"
)

// Service coordinates bounties and the ledger.
type Service struct {
	db      *database.DB
	ledger  *ledger.Ledger
	rewards domain.RewardSchedule
	logger  *zap.Logger
}

// New creates an escrow service.
func New(db *database.DB, l *ledger.Ledger, rewards domain.RewardSchedule, logger *zap.Logger) *Service {
	return &Service{
		db:      db,
		ledger:  l,
		rewards: rewards,
		logger:  logger.Named("escrow"),
	}
}

// CreateInput describes a new bounty.
type CreateInput struct {
	PosterID    int64  `json:"-"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Stake       int64  `json:"reward"`
}

// Create escrows the stake and opens the bounty. Nothing changes when the
// poster cannot cover the stake.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Bounty, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if in.Stake <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if in.Title == "" {
		return nil, domain.ErrInvalidTitle
	}

	bounty := &domain.Bounty{
		PosterID:    in.PosterID,
		Title:       in.Title,
		Description: in.Description,
		Stake:       in.Stake,
	}
	err := s.db.RunInTx(ctx, func(ctx context.Context, q *database.Queries) error {
		poster, err := q.GetAccount(ctx, in.PosterID)
		if err != nil {
			return err
		}
		if poster.Banned {
			return domain.ErrAccountBanned
		}

		ref := ledger.NewRef()
		if _, err := s.ledger.StakeTx(ctx, q, in.PosterID, in.Stake, ref); err != nil {
			return err
		}
		return q.InsertBounty(ctx, bounty)
	})
	if err != nil {
		s.logger.Debug("Bounty rejected", zap.Int64("posterID", in.PosterID), zap.Error(err))
		return nil, err
	}

	observability.EscrowEvents.WithLabelValues("created").Inc()
	observability.EscrowXP.WithLabelValues("staked").Add(float64(bounty.Stake))
	s.logger.Info("Bounty created",
		zap.Int64("bountyID", bounty.ID),
		zap.Int64("posterID", bounty.PosterID),
		zap.Int64("stake", bounty.Stake))
	return bounty, nil
}

// Answer adds an answer to an open bounty and rewards its author.
func (s *Service) Answer(ctx context.Context, bountyID, authorID int64, content string) (*domain.BountyAnswer, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.ErrEmptyContent
	}

	answer := &domain.BountyAnswer{BountyID: bountyID, AuthorID: authorID, Content: content}
	var grant *ledger.Result
	err := s.db.RunInTx(ctx, func(ctx context.Context, q *database.Queries) error {
		bounty, err := q.GetBounty(ctx, bountyID)
		if err != nil {
			return err
		}
		if !bounty.IsOpen() {
			return domain.ErrBountyNotOpen
		}

		author, err := q.GetAccount(ctx, authorID)
		if err != nil {
			return err
		}
		if author.Banned {
			return domain.ErrAccountBanned
		}

		if err := q.InsertAnswer(ctx, answer); err != nil {
			return err
		}
		if s.rewards.Answer <= 0 {
			return nil
		}
		grant, err = s.ledger.GrantTx(ctx, q, authorID, s.rewards.Answer, domain.TxEarn, domain.ReasonAnswer, ledger.NewRef())
		return err
	})
	if err != nil {
		return nil, err
	}

	s.ledger.Observe(grant, s.rewards.Answer, domain.ReasonAnswer)
	observability.EscrowEvents.WithLabelValues("answered").Inc()
	return answer, nil
}

// Accept pays the stake to the author of answerID and closes the bounty.
// Only the poster may accept, and only while the bounty is open. Of two
// concurrent accepts exactly one succeeds; the other gets ErrBountyNotOpen.
func (s *Service) Accept(ctx context.Context, bountyID, answerID, actorID int64) (*domain.Bounty, error) {
	var (
		bounty *domain.Bounty
		answer *domain.BountyAnswer
		grant  *ledger.Result
	)
	err := s.db.RunInTx(ctx, func(ctx context.Context, q *database.Queries) error {
		var err error
		bounty, err = q.GetBountyForUpdate(ctx, bountyID)
		if err != nil {
			return err
		}
		if bounty.PosterID != actorID {
			return domain.ErrNotBountyPoster
		}
		if !bounty.IsOpen() {
			return domain.ErrBountyNotOpen
		}

		answer, err = q.GetAnswer(ctx, bountyID, answerID)
		if err != nil {
			return err
		}

		won, err := q.MarkBountySolved(ctx, bountyID, answer.AuthorID)
		if err != nil {
			return err
		}
		if !won {
			return domain.ErrBountyNotOpen
		}
		if err := q.MarkAnswerAccepted(ctx, answerID); err != nil {
			return err
		}

		grant, err = s.ledger.GrantTx(ctx, q, answer.AuthorID, bounty.Stake, domain.TxPayout, domain.ReasonBounty, ledger.NewRef())
		if err != nil {
			return err
		}

		bounty, err = q.GetBounty(ctx, bountyID)
		return err
	})
	if err != nil {
		s.logger.Debug("Accept rejected",
			zap.Int64("bountyID", bountyID),
			zap.Int64("answerID", answerID),
			zap.Error(err))
		return nil, err
	}

	s.ledger.Observe(grant, bounty.Stake, domain.ReasonBounty)
	observability.EscrowEvents.WithLabelValues("accepted").Inc()
	observability.EscrowXP.WithLabelValues("paid").Add(float64(bounty.Stake))
	s.logger.Info("Bounty solved",
		zap.Int64("bountyID", bountyID),
		zap.Int64("solverID", answer.AuthorID),
		zap.Int64("stake", bounty.Stake))
	return bounty, nil
}

// Cancel refunds the stake and removes the bounty with its answers. The
// poster or an administrator may cancel, and only while it is open.
func (s *Service) Cancel(ctx context.Context, bountyID, actorID int64) error {
	var bounty *domain.Bounty
	err := s.db.RunInTx(ctx, func(ctx context.Context, q *database.Queries) error {
		var err error
		bounty, err = q.GetBountyForUpdate(ctx, bountyID)
		if err != nil {
			return err
		}

		if bounty.PosterID != actorID {
			actor, err := q.GetAccount(ctx, actorID)
			if err != nil {
				return err
			}
			if !actor.IsAdmin() {
				return domain.ErrNotBountyPoster
			}
		}
		if !bounty.IsOpen() {
			return domain.ErrBountyNotOpen
		}

		deleted, err := q.DeleteOpenBounty(ctx, bountyID)
		if err != nil {
			return err
		}
		if !deleted {
			return domain.ErrBountyNotOpen
		}

		_, err = s.ledger.RefundTx(ctx, q, bounty.PosterID, bounty.Stake, ledger.NewRef())
		return err
	})
	if err != nil {
		return err
	}

	observability.EscrowEvents.WithLabelValues("cancelled").Inc()
	observability.EscrowXP.WithLabelValues("refunded").Add(float64(bounty.Stake))
	s.logger.Info("Bounty cancelled",
		zap.Int64("bountyID", bountyID),
		zap.Int64("actorID", actorID),
		zap.Int64("refund", bounty.Stake))
	return nil
}

// Get returns a bounty with its answers.
func (s *Service) Get(ctx context.Context, bountyID int64) (*domain.BountyDetail, error) {
	bounty, err := s.db.GetBounty(ctx, bountyID)
	if err != nil {
		return nil, err
	}
	answers, err := s.db.ListAnswers(ctx, bountyID)
	if err != nil {
		return nil, err
	}
	return &domain.BountyDetail{Bounty: *bounty, Answers: answers}, nil
}

// List returns bounties, open first. An empty status lists all.
func (s *Service) List(ctx context.Context, status domain.BountyStatus, limit int) ([]domain.Bounty, error) {
	if limit <= 0 {
		limit = 50
	}
	limit = min(limit, 100)
	return s.db.ListBounties(ctx, status, limit)
}

// Escrowed returns the XP currently held by open bounties.
func (s *Service) Escrowed(ctx context.Context) (int64, error) {
	return s.db.SumOpenStakes(ctx)
}
