package migrations

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/xueban-network/xueban/internal/domain"
	"github.com/xueban-network/xueban/internal/infra/database/models"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		count, err := db.NewSelect().Model((*models.Badge)(nil)).Count(ctx)
		if err != nil {
			return fmt.Errorf("failed to count badges: %w", err)
		}
		if count > 0 {
			return nil
		}

		now := time.Now().UTC()
		defs := domain.DefaultBadges()
		rows := make([]models.Badge, 0, len(defs))
		for _, def := range defs {
			rows = append(rows, models.Badge{
				Code:        def.Code,
				Name:        def.Name,
				Description: def.Description,
				Icon:        def.Icon,
				CreatedAt:   now,
			})
		}

		if _, err := db.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return fmt.Errorf("failed to seed badges: %w", err)
		}
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		codes := make([]string, 0, 5)
		for _, def := range domain.DefaultBadges() {
			codes = append(codes, def.Code)
		}
		ids := db.NewSelect().
			Model((*models.Badge)(nil)).
			Column("id").
			Where("code IN (?)", bun.In(codes))
		_, err := db.NewDelete().
			Model((*models.AccountBadge)(nil)).
			Where("badge_id IN (?)", ids).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete badge grants: %w", err)
		}
		_, err = db.NewDelete().
			Model((*models.Badge)(nil)).
			Where("code IN (?)", bun.In(codes)).
			Exec(ctx)
		return err
	})
}
