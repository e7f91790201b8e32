// Package badges evaluates badge rules and records grants.
//
// Evaluation and persistence are separate phases. Evaluate only reads and
// can run anywhere; Persist inserts grants idempotently. ForAccount runs both
// and then reads the account's badges with their rarity, which is what the
// profile page shows. Grants are never revoked.
package badges

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xueban-network/xueban/internal/domain"
	"github.com/xueban-network/xueban/internal/infra/database"
	"github.com/xueban-network/xueban/internal/infra/observability"
)

// Config tunes the evaluator.
type Config struct {
	PioneerCutoff int64 `toml:"pioneer_cutoff"` // highest account id that earns "pioneer"
	CacheSize     int   `toml:"cache_size"`     // badge definitions kept in memory
	Workers       int   `toml:"workers"`        // rules evaluated concurrently
	RefreshQueue  int   `toml:"refresh_queue"`  // pending background refreshes
}

// DefaultConfig returns the standard evaluator settings.
func DefaultConfig() Config {
	return Config{
		PioneerCutoff: 100,
		CacheSize:     64,
		Workers:       4,
		RefreshQueue:  256,
	}
}

// Service evaluates and persists badges.
type Service struct {
	db      *database.DB
	rules   []Rule
	workers int
	defs    *lru.Cache // code → domain.Badge
	flight  singleflight.Group
	logger  *zap.Logger
	now     func() time.Time
}

// New creates a badge service using the default rules.
func New(db *database.DB, cfg Config, logger *zap.Logger) (*Service, error) {
	return NewWithRules(db, cfg, DefaultRules(cfg), logger)
}

// NewWithRules creates a badge service with a custom rule set.
func NewWithRules(db *database.DB, cfg Config, rules []Rule, logger *zap.Logger) (*Service, error) {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultConfig().CacheSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	cache, err := lru.New(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create badge cache: %w", err)
	}
	return &Service{
		db:      db,
		rules:   rules,
		workers: cfg.Workers,
		defs:    cache,
		logger:  logger.Named("badges"),
		now:     time.Now,
	}, nil
}

// Evaluate returns the codes of every badge whose rule currently holds for
// the account. A rule that fails or panics is logged and treated as not
// satisfied; the others are unaffected.
func (s *Service) Evaluate(ctx context.Context, accountID int64) ([]string, error) {
	if _, err := s.db.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}

	satisfied := make([]bool, len(s.rules))
	p := pool.New().WithMaxGoroutines(s.workers)
	for i, rule := range s.rules {
		p.Go(func() {
			satisfied[i] = s.check(ctx, rule, accountID)
		})
	}
	p.Wait()

	var codes []string
	for i, ok := range satisfied {
		if ok {
			codes = append(codes, s.rules[i].Code)
		}
	}
	return codes, nil
}

func (s *Service) check(ctx context.Context, rule Rule, accountID int64) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			observability.BadgeRuleErrors.WithLabelValues(rule.Code).Inc()
			s.logger.Error("Badge rule panicked",
				zap.String("code", rule.Code),
				zap.Int64("accountID", accountID),
				zap.Any("panic", r))
			ok = false
		}
	}()

	ok, err := rule.Check(ctx, s.db, accountID)
	if err != nil {
		observability.BadgeRuleErrors.WithLabelValues(rule.Code).Inc()
		s.logger.Warn("Badge rule failed",
			zap.String("code", rule.Code),
			zap.Int64("accountID", accountID),
			zap.Error(err))
		return false
	}
	return ok
}

// Persist grants the given badges and returns the codes that were newly
// granted. Already-held badges are left untouched.
func (s *Service) Persist(ctx context.Context, accountID int64, codes []string) ([]string, error) {
	if len(codes) == 0 {
		return nil, nil
	}

	var granted []string
	err := s.db.RunInTx(ctx, func(ctx context.Context, q *database.Queries) error {
		granted = granted[:0]
		now := s.now()
		for _, code := range codes {
			def, err := s.definition(ctx, q, code)
			if err != nil {
				if errors.Is(err, domain.ErrBadgeNotFound) {
					s.logger.Warn("Rule names an unknown badge", zap.String("code", code))
					continue
				}
				return err
			}

			created, err := q.GrantBadge(ctx, accountID, def.ID, now)
			if err != nil {
				return err
			}
			if created {
				granted = append(granted, code)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, code := range granted {
		observability.BadgesGranted.WithLabelValues(code).Inc()
		s.logger.Info("Badge granted", zap.Int64("accountID", accountID), zap.String("code", code))
	}
	return granted, nil
}

func (s *Service) definition(ctx context.Context, q *database.Queries, code string) (domain.Badge, error) {
	if v, ok := s.defs.Get(code); ok {
		return v.(domain.Badge), nil
	}
	b, err := q.GetBadgeByCode(ctx, code)
	if err != nil {
		return domain.Badge{}, err
	}
	s.defs.Add(code, *b)
	return *b, nil
}

// Refresh evaluates and persists in one step and returns the new grants.
func (s *Service) Refresh(ctx context.Context, accountID int64) ([]string, error) {
	codes, err := s.Evaluate(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.Persist(ctx, accountID, codes)
}

// List returns the badges an account holds, most recently earned first,
// without evaluating rules.
func (s *Service) List(ctx context.Context, accountID int64) ([]domain.AccountBadge, error) {
	held, err := s.db.ListAccountBadges(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if len(held) == 0 {
		return held, nil
	}

	total, err := s.db.CountAccounts(ctx)
	if err != nil {
		return nil, err
	}
	for i := range held {
		held[i].Rarity = domain.BadgeRarity(held[i].Holders, total)
	}
	return held, nil
}

// evaluationTimeout bounds a shared ForAccount evaluation.
const evaluationTimeout = 30 * time.Second

// ForAccount brings the account's grants up to date and returns its
// badges. Concurrent calls for the same account share one evaluation; a
// caller that gives up early does not cancel it for the others.
func (s *Service) ForAccount(ctx context.Context, accountID int64) ([]domain.AccountBadge, error) {
	ch := s.flight.DoChan(strconv.FormatInt(accountID, 10), func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), evaluationTimeout)
		defer cancel()

		if _, err := s.Refresh(ctx, accountID); err != nil {
			return nil, err
		}
		return s.List(ctx, accountID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]domain.AccountBadge), nil
	}
}

// Definitions returns every badge definition.
func (s *Service) Definitions(ctx context.Context) ([]domain.Badge, error) {
	return s.db.ListBadges(ctx)
}
