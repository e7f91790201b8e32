// Package accounts manages registrations, profiles and rankings.
package accounts

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/sahilm/fuzzy"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/xueban-network/xueban/internal/domain"
	"github.com/xueban-network/xueban/internal/infra/database"
)

const (
	minUsername = 3
	maxUsername = 32

	// searchScope caps how many accounts a search scans.
	searchScope = 10000
)

// Service manages accounts.
type Service struct {
	db          *database.DB
	leaderboard domain.LeaderboardConfig
	logger      *zap.Logger
}

// New creates an account service.
func New(db *database.DB, logger *zap.Logger) *Service {
	return &Service{
		db:          db,
		leaderboard: domain.DefaultLeaderboardConfig(),
		logger:      logger.Named("accounts"),
	}
}

// NormalizeUsername trims and NFKC-normalizes a username and checks its
// length.
func NormalizeUsername(name string) (string, error) {
	name = norm.NFKC.String(strings.TrimSpace(name))
	if n := utf8.RuneCountInString(name); n < minUsername || n > maxUsername {
		return "", domain.ErrInvalidUsername
	}
	return name, nil
}

// Create registers an account with a zero balance at level 1. An empty role
// means RoleUser.
func (s *Service) Create(ctx context.Context, username string, role domain.Role) (*domain.Account, error) {
	name, err := NormalizeUsername(username)
	if err != nil {
		return nil, err
	}
	if role == "" {
		role = domain.RoleUser
	}
	if !role.Valid() {
		return nil, domain.ErrInvalidRole
	}

	acct, err := s.db.CreateAccount(ctx, name, role)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Account created",
		zap.Int64("accountID", acct.ID),
		zap.String("username", acct.Username),
		zap.String("role", string(acct.Role)))
	return acct, nil
}

// Get returns an account.
func (s *Service) Get(ctx context.Context, id int64) (*domain.Account, error) {
	return s.db.GetAccount(ctx, id)
}

// Profile returns an account with its level progress.
func (s *Service) Profile(ctx context.Context, id int64) (*domain.Profile, error) {
	acct, err := s.db.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	return &domain.Profile{
		Account:  *acct,
		Progress: domain.ProgressFor(acct.XP, acct.Level),
	}, nil
}

// SetBanned bans or unbans an account. Only administrators may do this.
func (s *Service) SetBanned(ctx context.Context, actorID, id int64, banned bool) error {
	actor, err := s.db.GetAccount(ctx, actorID)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return domain.ErrForbidden
	}
	if err := s.db.SetBanned(ctx, id, banned); err != nil {
		return err
	}

	s.logger.Warn("Account ban changed",
		zap.Int64("accountID", id),
		zap.Int64("actorID", actorID),
		zap.Bool("banned", banned))
	return nil
}

// Leaderboard returns the top accounts by XP. Banned accounts are omitted.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	accts, err := s.db.TopAccounts(ctx, s.leaderboard.Clamp(limit))
	if err != nil {
		return nil, err
	}

	entries := make([]domain.LeaderboardEntry, len(accts))
	for i, a := range accts {
		entries[i] = domain.LeaderboardEntry{
			Rank:     i + 1,
			ID:       a.ID,
			Username: a.Username,
			XP:       a.XP,
			Level:    a.Level,
		}
	}
	return entries, nil
}

// usernames implements fuzzy.Source over case-folded usernames.
type usernames struct {
	accts  []domain.Account
	folded []string
}

func (u usernames) String(i int) string { return u.folded[i] }
func (u usernames) Len() int            { return len(u.folded) }

// Search fuzzy-matches usernames, best match first.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]domain.SearchResult, error) {
	// A Caser is stateful; each search gets its own.
	fold := cases.Fold()
	query = fold.String(norm.NFKC.String(strings.TrimSpace(query)))
	if query == "" {
		return []domain.SearchResult{}, nil
	}

	accts, err := s.db.ListAccounts(ctx, searchScope)
	if err != nil {
		return nil, err
	}
	src := usernames{accts: accts, folded: make([]string, len(accts))}
	for i, a := range accts {
		src.folded[i] = fold.String(a.Username)
	}

	matches := fuzzy.FindFrom(query, src)
	limit = s.leaderboard.Clamp(limit)
	if len(matches) > limit {
		matches = matches[:limit]
	}

	results := make([]domain.SearchResult, len(matches))
	for i, m := range matches {
		a := src.accts[m.Index]
		results[i] = domain.SearchResult{
			ID:       a.ID,
			Username: a.Username,
			Level:    a.Level,
			Score:    m.Score,
		}
	}
	return results, nil
}
