package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/xueban-network/xueban/internal/infra/database/models"
)

// Post comments, post likes and answer comments.
func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		tables := []struct {
			model       any
			foreignKeys []string
		}{
			{
				model: (*models.PostComment)(nil),
				foreignKeys: []string{
					`("post_id") REFERENCES "posts" ("id") ON DELETE CASCADE`,
					`("account_id") REFERENCES "accounts" ("id")`,
				},
			},
			{
				model: (*models.PostLike)(nil),
				foreignKeys: []string{
					`("post_id") REFERENCES "posts" ("id") ON DELETE CASCADE`,
					`("account_id") REFERENCES "accounts" ("id")`,
				},
			},
			{
				model: (*models.AnswerComment)(nil),
				foreignKeys: []string{
					`("answer_id") REFERENCES "bounty_answers" ("id") ON DELETE CASCADE`,
					`("account_id") REFERENCES "accounts" ("id")`,
				},
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
			{(*models.PostComment)(nil), "post_comments_post_idx", []string{"post_id", "created_at"}},
			{(*models.PostComment)(nil), "post_comments_account_idx", []string{"account_id", "created_at"}},
			{(*models.AnswerComment)(nil), "answer_comments_answer_idx", []string{"answer_id", "created_at"}},
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
		tables := []any{
			(*models.AnswerComment)(nil),
			(*models.PostLike)(nil),
			(*models.PostComment)(nil),
		}
		for _, model := range tables {
			if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
				return fmt.Errorf("failed to drop table for %T: %w", model, err)
			}
		}
		return nil
	})
}
