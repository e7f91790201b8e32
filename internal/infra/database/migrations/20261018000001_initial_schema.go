package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/xueban-network/xueban/internal/infra/database/models"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		tables := []struct {
			model       any
			foreignKeys []string
		}{
			{model: (*models.Account)(nil)},
			{
				model:       (*models.LedgerEntry)(nil),
				foreignKeys: []string{`("account_id") REFERENCES "accounts" ("id")`},
			},
			{model: (*models.Badge)(nil)},
			{
				model: (*models.AccountBadge)(nil),
				foreignKeys: []string{
					`("account_id") REFERENCES "accounts" ("id")`,
					`("badge_id") REFERENCES "badges" ("id")`,
				},
			},
			{
				model:       (*models.Bounty)(nil),
				foreignKeys: []string{`("poster_id") REFERENCES "accounts" ("id")`},
			},
			{
				model: (*models.BountyAnswer)(nil),
				foreignKeys: []string{
					`("bounty_id") REFERENCES "bounties" ("id") ON DELETE CASCADE`,
					`("author_id") REFERENCES "accounts" ("id")`,
				},
			},
			{
				model:       (*models.Material)(nil),
				foreignKeys: []string{`("account_id") REFERENCES "accounts" ("id")`},
			},
			{
				model: (*models.MaterialComment)(nil),
				foreignKeys: []string{
					`("material_id") REFERENCES "materials" ("id") ON DELETE CASCADE`,
					`("account_id") REFERENCES "accounts" ("id")`,
				},
			},
			{
				model: (*models.Rating)(nil),
				foreignKeys: []string{
					`("material_id") REFERENCES "materials" ("id") ON DELETE CASCADE`,
					`("account_id") REFERENCES "accounts" ("id")`,
				},
			},
			{
				model: (*models.Favorite)(nil),
				foreignKeys: []string{
					`("material_id") REFERENCES "materials" ("id") ON DELETE CASCADE`,
					`("account_id") REFERENCES "accounts" ("id")`,
				},
			},
			{
				model:       (*models.Post)(nil),
				foreignKeys: []string{`("account_id") REFERENCES "accounts" ("id")`},
			},
		}

		for _, table := range tables {
			q := db.NewCreateTable().Model(table.model).IfNotExists()
			for _, fk := range table.foreignKeys {
				q = q.ForeignKey(fk)
			}
			if _, err := q.Exec(ctx); err != nil {
				return fmt.Errorf("failed to create table for %T: %w", table.model, err)
			}
		}

		indexes := []struct {
			model   any
			name    string
			columns []string
		}{
			{(*models.LedgerEntry)(nil), "ledger_entries_account_idx", []string{"account_id", "created_at"}},
			{(*models.AccountBadge)(nil), "account_badges_badge_idx", []string{"badge_id"}},
			{(*models.Bounty)(nil), "bounties_status_idx", []string{"status", "created_at"}},
			{(*models.BountyAnswer)(nil), "bounty_answers_bounty_idx", []string{"bounty_id"}},
			{(*models.Material)(nil), "materials_account_idx", []string{"account_id"}},
			{(*models.MaterialComment)(nil), "material_comments_account_idx", []string{"account_id"}},
			{(*models.Favorite)(nil), "favorites_material_idx", []string{"material_id"}},
			{(*models.Post)(nil), "posts_account_idx", []string{"account_id", "created_at"}},
			{(*models.Account)(nil), "accounts_xp_idx", []string{"xp", "level"}},
		}

		for _, idx := range indexes {
			_, err := db.NewCreateIndex().
				Model(idx.model).
				Index(idx.name).
				Column(idx.columns...).
				IfNotExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to create index %s: %w", idx.name, err)
			}
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		// Children first so foreign keys never dangle.
		tables := []any{
			(*models.Post)(nil),
			(*models.Favorite)(nil),
			(*models.Rating)(nil),
			(*models.MaterialComment)(nil),
			(*models.Material)(nil),
			(*models.BountyAnswer)(nil),
			(*models.Bounty)(nil),
			(*models.AccountBadge)(nil),
			(*models.Badge)(nil),
			(*models.LedgerEntry)(nil),
			(*models.Account)(nil),
		}

		for _, model := range tables {
			if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
				return fmt.Errorf("failed to drop table for %T: %w", model, err)
			}
		}
		return nil
	})
}
