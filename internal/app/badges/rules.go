package badges

import (
	"context"

	"github.com/xueban-network/xueban/internal/domain"
)

// Counter supplies the facts badge rules decide on. database.Queries
// implements it.
type Counter interface {
	GetAccount(ctx context.Context, id int64) (*domain.Account, error)
	CountMaterials(ctx context.Context, accountID int64) (int, error)
	CountComments(ctx context.Context, accountID int64) (int, error)
	CountFavoritesReceived(ctx context.Context, accountID int64) (int, error)
}

// Rule decides whether an account qualifies for the badge named by Code.
// Check must only read.
type Rule struct {
	Code  string
	Check func(ctx context.Context, c Counter, accountID int64) (bool, error)
}

// DefaultRules returns the rules for the seeded badges.
func DefaultRules(cfg Config) []Rule {
	return []Rule{
		{
			Code: domain.BadgePioneer,
			Check: func(ctx context.Context, c Counter, id int64) (bool, error) {
				a, err := c.GetAccount(ctx, id)
				if err != nil {
					return false, err
				}
				return a.ID <= cfg.PioneerCutoff, nil
			},
		},
		{Code: domain.BadgeFirstUpload, Check: atLeast(Counter.CountMaterials, 1)},
		{Code: domain.BadgeActiveContributor, Check: atLeast(Counter.CountMaterials, 5)},
		{Code: domain.BadgePopularAuthor, Check: atLeast(Counter.CountFavoritesReceived, 50)},
		{Code: domain.BadgeCommentator, Check: atLeast(Counter.CountComments, 10)},
	}
}

func atLeast(
	count func(Counter, context.Context, int64) (int, error), n int,
) func(context.Context, Counter, int64) (bool, error) {
	return func(ctx context.Context, c Counter, id int64) (bool, error) {
		got, err := count(c, ctx, id)
		if err != nil {
			return false, err
		}
		return got >= n, nil
	}
}
