// Package activity records contributions and pays their XP rewards.
package activity

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xueban-network/xueban/internal/app/ledger"
	"github.com/xueban-network/xueban/internal/domain"
	"github.com/xueban-network/xueban/internal/infra/database"
	"github.com/xueban-network/xueban/internal/infra/observability"
)

const (
	// DefaultPostInterval is the minimum gap between two posts, or two post
	// comments, by one account.
	DefaultPostInterval = 10 * time.Second

	// DuplicateWindow is how long an account may not repeat a post comment.
	DuplicateWindow = 5 * time.Minute
)

// Service handles contribution events.
type Service struct {
	db           *database.DB
	ledger       *ledger.Ledger
	rewards      domain.RewardSchedule
	limiter      domain.RateLimiter
	notifier     domain.BadgeNotifier
	postInterval time.Duration
	logger       *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithRateLimiter limits community posts and post comments per account.
func WithRateLimiter(l domain.RateLimiter, interval time.Duration) Option {
	return func(s *Service) {
		s.limiter = l
		if interval > 0 {
			s.postInterval = interval
		}
	}
}

// WithBadgeNotifier is told about every account whose contributions changed.
func WithBadgeNotifier(n domain.BadgeNotifier) Option {
	return func(s *Service) { s.notifier = n }
}

// New creates an activity service.
func New(db *database.DB, l *ledger.Ledger, rewards domain.RewardSchedule, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		db:           db,
		ledger:       l,
		rewards:      rewards,
		postInterval: DefaultPostInterval,
		logger:       logger.Named("activity"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload records a study material and rewards the uploader.
func (s *Service) Upload(ctx context.Context, accountID int64, title, category string) (*domain.Material, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, domain.ErrInvalidTitle
	}

	m := &domain.Material{AccountID: accountID, Title: title, Category: strings.TrimSpace(category)}
	err := s.reward(ctx, accountID, s.rewards.Upload, domain.ReasonUpload, func(ctx context.Context, q *database.Queries) error {
		return q.InsertMaterial(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Comment records a comment on a material and rewards its author.
func (s *Service) Comment(ctx context.Context, accountID, materialID int64, content string) (*domain.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.ErrEmptyContent
	}

	c := &domain.Comment{AccountID: accountID, MaterialID: materialID, Content: content}
	err := s.reward(ctx, accountID, s.rewards.Comment, domain.ReasonComment, func(ctx context.Context, q *database.Queries) error {
		if _, err := q.GetMaterial(ctx, materialID); err != nil {
			return err
		}
		return q.InsertComment(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Rate sets the account's score for a material. Only the first rating of a
// material earns XP; later calls update the score.
func (s *Service) Rate(ctx context.Context, accountID, materialID int64, score int) (*domain.Rating, error) {
	if !domain.ValidScore(score) {
		return nil, domain.ErrInvalidRating
	}

	r := &domain.Rating{AccountID: accountID, MaterialID: materialID, Score: score}
	var grant *ledger.Result
	err := s.db.RunInTx(ctx, func(ctx context.Context, q *database.Queries) error {
		if err := checkActive(ctx, q, accountID); err != nil {
			return err
		}
		if _, err := q.GetMaterial(ctx, materialID); err != nil {
			return err
		}

		var err error
		grant = nil
		r.First, err = q.UpsertRating(ctx, materialID, accountID, score)
		if err != nil || !r.First || s.rewards.Rating <= 0 {
			return err
		}
		grant, err = s.ledger.GrantTx(ctx, q, accountID, s.rewards.Rating, domain.TxEarn, domain.ReasonRating, ledger.NewRef())
		return err
	})
	if err != nil {
		return nil, err
	}

	if grant != nil {
		s.ledger.Observe(grant, s.rewards.Rating, domain.ReasonRating)
	}
	return r, nil
}

// Favorite marks a material as a favorite. It pays no XP but counts toward
// the material owner's badges, so the owner is the account notified.
func (s *Service) Favorite(ctx context.Context, accountID, materialID int64) (bool, error) {
	var (
		owner   int64
		created bool
	)
	err := s.db.RunInTx(ctx, func(ctx context.Context, q *database.Queries) error {
		if err := checkActive(ctx, q, accountID); err != nil {
			return err
		}
		m, err := q.GetMaterial(ctx, materialID)
		if err != nil {
			return err
		}
		owner = m.AccountID
		created, err = q.InsertFavorite(ctx, materialID, accountID)
		return err
	})
	if err != nil {
		return false, err
	}

	if created {
		s.notify(owner)
	}
	return created, nil
}

// Unfavorite removes a favorite and reports whether there was one. Badges
// already granted for the favorite are kept.
func (s *Service) Unfavorite(ctx context.Context, accountID, materialID int64) (bool, error) {
	var removed bool
	err := s.db.RunInTx(ctx, func(ctx context.Context, q *database.Queries) error {
		if _, err := q.GetMaterial(ctx, materialID); err != nil {
			return err
		}
		var err error
		removed, err = q.DeleteFavorite(ctx, materialID, accountID)
		return err
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// Post publishes a community post. An account may post once per interval.
func (s *Service) Post(ctx context.Context, accountID int64, content string) (*domain.Post, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.ErrEmptyContent
	}
	key, err := s.allow(ctx, "post", accountID)
	if err != nil {
		return nil, err
	}

	p := &domain.Post{AccountID: accountID, Content: content}
	err = s.reward(ctx, accountID, s.rewards.Post, domain.ReasonPost, func(ctx context.Context, q *database.Queries) error {
		return q.InsertPost(ctx, p)
	})
	if err != nil {
		s.release(ctx, key)
		return nil, err
	}
	return p, nil
}

// CommentOnPost comments on a community post and rewards the author. An
// account may comment once per interval and may not repeat the same text
// within DuplicateWindow.
func (s *Service) CommentOnPost(ctx context.Context, accountID, postID int64, content string) (*domain.PostComment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.ErrEmptyContent
	}
	key, err := s.allow(ctx, "comment", accountID)
	if err != nil {
		return nil, err
	}

	c := &domain.PostComment{AccountID: accountID, PostID: postID, Content: content}
	err = s.reward(ctx, accountID, s.rewards.Comment, domain.ReasonComment, func(ctx context.Context, q *database.Queries) error {
		if _, err := q.GetPost(ctx, postID); err != nil {
			return err
		}
		dup, err := q.HasPostCommentSince(ctx, accountID, content, time.Now().Add(-DuplicateWindow))
		if err != nil {
			return err
		}
		if dup {
			return domain.ErrDuplicateComment
		}
		return q.InsertPostComment(ctx, c)
	})
	if err != nil {
		s.release(ctx, key)
		return nil, err
	}
	return c, nil
}

// PostComments lists a post's comments, oldest first.
func (s *Service) PostComments(ctx context.Context, postID int64) ([]domain.PostComment, error) {
	if _, err := s.db.GetPost(ctx, postID); err != nil {
		return nil, err
	}
	return s.db.ListPostComments(ctx, postID)
}

// ToggleLike likes a post, or takes the like back when the account already
// liked it.
func (s *Service) ToggleLike(ctx context.Context, accountID, postID int64) (*domain.PostLikes, error) {
	state := &domain.PostLikes{PostID: postID}
	err := s.db.RunInTx(ctx, func(ctx context.Context, q *database.Queries) error {
		if err := checkActive(ctx, q, accountID); err != nil {
			return err
		}
		if _, err := q.GetPost(ctx, postID); err != nil {
			return err
		}
		var err error
		if state.Liked, err = q.TogglePostLike(ctx, postID, accountID); err != nil {
			return err
		}
		state.Likes, err = q.CountPostLikes(ctx, postID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// CommentOnAnswer comments on a bounty answer. Answer discussion pays no XP.
func (s *Service) CommentOnAnswer(ctx context.Context, accountID, answerID int64, content string) (*domain.AnswerComment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.ErrEmptyContent
	}

	c := &domain.AnswerComment{AccountID: accountID, AnswerID: answerID, Content: content}
	err := s.db.RunInTx(ctx, func(ctx context.Context, q *database.Queries) error {
		if err := checkActive(ctx, q, accountID); err != nil {
			return err
		}
		if _, err := q.GetAnswerByID(ctx, answerID); err != nil {
			return err
		}
		return q.InsertAnswerComment(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// AnswerComments lists an answer's comments, oldest first.
func (s *Service) AnswerComments(ctx context.Context, answerID int64) ([]domain.AnswerComment, error) {
	if _, err := s.db.GetAnswerByID(ctx, answerID); err != nil {
		return nil, err
	}
	return s.db.ListAnswerComments(ctx, answerID)
}

// allow takes the account's slot for kind and returns the limiter key, or
// "" when no slot was taken.
func (s *Service) allow(ctx context.Context, kind string, accountID int64) (string, error) {
	if s.limiter == nil {
		return "", nil
	}
	key := kind + ":" + strconv.FormatInt(accountID, 10)
	ok, err := s.limiter.Allow(ctx, key, s.postInterval)
	if err != nil {
		// The limiter is advisory; a broken backend must not block posting.
		s.logger.Warn("Rate limiter unavailable", zap.Int64("accountID", accountID), zap.Error(err))
		return "", nil
	}
	if !ok {
		observability.RateLimitRejections.WithLabelValues(kind).Inc()
		return "", domain.ErrRateLimited
	}
	return key, nil
}

// release hands back a slot whose event was not stored.
func (s *Service) release(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.limiter.Release(context.WithoutCancel(ctx), key); err != nil {
		s.logger.Warn("Failed to release rate limit", zap.String("key", key), zap.Error(err))
	}
}

// DeleteMaterial removes a material owned by accountID. Badges already
// granted for it are kept.
func (s *Service) DeleteMaterial(ctx context.Context, accountID, materialID int64) error {
	return s.db.RunInTx(ctx, func(ctx context.Context, q *database.Queries) error {
		m, err := q.GetMaterial(ctx, materialID)
		if err != nil {
			return err
		}
		if m.AccountID != accountID {
			return domain.ErrNotMaterialOwner
		}
		return q.DeleteMaterial(ctx, materialID)
	})
}

// reward runs write and the XP grant for it in one transaction, then
// reports the grant and queues a badge refresh.
func (s *Service) reward(
	ctx context.Context, accountID, amount int64, reason domain.Reason,
	write func(ctx context.Context, q *database.Queries) error,
) error {
	var grant *ledger.Result
	err := s.db.RunInTx(ctx, func(ctx context.Context, q *database.Queries) error {
		if err := checkActive(ctx, q, accountID); err != nil {
			return err
		}
		if err := write(ctx, q); err != nil {
			return err
		}
		if amount <= 0 {
			return nil
		}
		var err error
		grant, err = s.ledger.GrantTx(ctx, q, accountID, amount, domain.TxEarn, reason, ledger.NewRef())
		return err
	})
	if err != nil {
		s.logger.Debug("Contribution rejected",
			zap.Int64("accountID", accountID),
			zap.String("reason", string(reason)),
			zap.Error(err))
		return err
	}

	if grant != nil {
		s.ledger.Observe(grant, amount, reason)
	}
	s.notify(accountID)
	return nil
}

func (s *Service) notify(accountID int64) {
	if s.notifier != nil {
		s.notifier.Notify(accountID)
	}
}

func checkActive(ctx context.Context, q *database.Queries, accountID int64) error {
	acct, err := q.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if acct.Banned {
		return domain.ErrAccountBanned
	}
	return nil
}
