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

// ─── Materials ──────────────────────────────────────────────────────────────

// InsertMaterial records an upload. m.ID and m.CreatedAt are set on return.
func (q *Queries) InsertMaterial(ctx context.Context, m *domain.Material) error {
	row := &models.Material{
		AccountID: m.AccountID,
		Title:     m.Title,
		Category:  m.Category,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := q.idb.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("insert material: %w", err)
	}
	*m = row.ToDomain()
	return nil
}

// GetMaterial loads a material by id.
func (q *Queries) GetMaterial(ctx context.Context, id int64) (*domain.Material, error) {
	row := new(models.Material)
	if err := q.idb.NewSelect().Model(row).Where("id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMaterialNotFound
		}
		return nil, fmt.Errorf("get material %d: %w", id, err)
	}
	m := row.ToDomain()
	return &m, nil
}

// DeleteMaterial removes a material together with its comments, ratings and
// favorites.
func (q *Queries) DeleteMaterial(ctx context.Context, id int64) error {
	children := []any{
		(*models.MaterialComment)(nil),
		(*models.Rating)(nil),
		(*models.Favorite)(nil),
	}
	for _, model := range children {
		if _, err := q.idb.NewDelete().Model(model).Where("material_id = ?", id).Exec(ctx); err != nil {
			return fmt.Errorf("delete %T of material %d: %w", model, id, err)
		}
	}

	res, err := q.idb.NewDelete().Model((*models.Material)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete material %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrMaterialNotFound
	}
	return nil
}

// InsertComment records a comment. c.ID and c.CreatedAt are set on return.
func (q *Queries) InsertComment(ctx context.Context, c *domain.Comment) error {
	row := &models.MaterialComment{
		MaterialID: c.MaterialID,
		AccountID:  c.AccountID,
		Content:    c.Content,
		CreatedAt:  time.Now().UTC(),
	}
	if _, err := q.idb.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	c.ID = row.ID
	c.CreatedAt = row.CreatedAt
	return nil
}

// UpsertRating sets an account's score for a material and reports whether
// the rating was created rather than updated.
func (q *Queries) UpsertRating(ctx context.Context, materialID, accountID int64, score int) (bool, error) {
	now := time.Now().UTC()
	res, err := q.idb.NewUpdate().
		Model((*models.Rating)(nil)).
		Set("score = ?", score).
		Set("updated_at = ?", now).
		Where("material_id = ?", materialID).
		Where("account_id = ?", accountID).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("update rating: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return false, nil
	}

	row := &models.Rating{
		MaterialID: materialID,
		AccountID:  accountID,
		Score:      score,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := q.idb.NewInsert().Model(row).Exec(ctx); err != nil {
		return false, fmt.Errorf("insert rating: %w", err)
	}
	return true, nil
}

// InsertFavorite favorites a material and reports false when it already was.
func (q *Queries) InsertFavorite(ctx context.Context, materialID, accountID int64) (bool, error) {
	row := &models.Favorite{
		MaterialID: materialID,
		AccountID:  accountID,
		CreatedAt:  time.Now().UTC(),
	}
	res, err := q.idb.NewInsert().
		Model(row).
		On("CONFLICT (material_id, account_id) DO NOTHING").
		Returning("NULL").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("insert favorite: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// InsertPost records a community post. p.ID and p.CreatedAt are set on return.
func (q *Queries) InsertPost(ctx context.Context, p *domain.Post) error {
	row := &models.Post{
		AccountID: p.AccountID,
		Content:   p.Content,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := q.idb.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	p.ID = row.ID
	p.CreatedAt = row.CreatedAt
	return nil
}

// DeleteFavorite removes a favorite and reports false when there was none.
func (q *Queries) DeleteFavorite(ctx context.Context, materialID, accountID int64) (bool, error) {
	res, err := q.idb.NewDelete().
		Model((*models.Favorite)(nil)).
		Where("material_id = ?", materialID).
		Where("account_id = ?", accountID).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("delete favorite: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ─── Community ──────────────────────────────────────────────────────────────

// GetPost loads a community post by id.
func (q *Queries) GetPost(ctx context.Context, id int64) (*domain.Post, error) {
	row := new(models.Post)
	if err := q.idb.NewSelect().Model(row).Where("id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPostNotFound
		}
		return nil, fmt.Errorf("get post %d: %w", id, err)
	}
	return &domain.Post{
		ID:        row.ID,
		AccountID: row.AccountID,
		Content:   row.Content,
		CreatedAt: row.CreatedAt,
	}, nil
}

// InsertPostComment records a comment on a post. c.ID and c.CreatedAt are
// set on return.
func (q *Queries) InsertPostComment(ctx context.Context, c *domain.PostComment) error {
	row := &models.PostComment{
		PostID:    c.PostID,
		AccountID: c.AccountID,
		Content:   c.Content,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := q.idb.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("insert post comment: %w", err)
	}
	*c = row.ToDomain()
	return nil
}

// HasPostCommentSince reports whether the account posted a comment with
// exactly this content on any post at or after since.
func (q *Queries) HasPostCommentSince(ctx context.Context, accountID int64, content string, since time.Time) (bool, error) {
	ok, err := q.idb.NewSelect().
		Model((*models.PostComment)(nil)).
		Where("account_id = ?", accountID).
		Where("content = ?", content).
		Where("created_at >= ?", since.UTC()).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("find recent post comment: %w", err)
	}
	return ok, nil
}

// ListPostComments returns a post's comments, oldest first.
func (q *Queries) ListPostComments(ctx context.Context, postID int64) ([]domain.PostComment, error) {
	var rows []models.PostComment
	err := q.idb.NewSelect().
		Model(&rows).
		Where("post_id = ?", postID).
		OrderExpr("created_at ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list post comments: %w", err)
	}

	out := make([]domain.PostComment, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

// TogglePostLike likes the post, or removes the like when the account
// already liked it. It reports whether the post is liked afterwards.
func (q *Queries) TogglePostLike(ctx context.Context, postID, accountID int64) (bool, error) {
	res, err := q.idb.NewDelete().
		Model((*models.PostLike)(nil)).
		Where("post_id = ?", postID).
		Where("account_id = ?", accountID).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("unlike post %d: %w", postID, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return false, nil
	}

	row := &models.PostLike{
		PostID:    postID,
		AccountID: accountID,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := q.idb.NewInsert().Model(row).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return true, nil
		}
		return false, fmt.Errorf("like post %d: %w", postID, err)
	}
	return true, nil
}

// CountPostLikes returns how many accounts like a post.
func (q *Queries) CountPostLikes(ctx context.Context, postID int64) (int, error) {
	n, err := q.idb.NewSelect().
		Model((*models.PostLike)(nil)).
		Where("post_id = ?", postID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count post likes: %w", err)
	}
	return n, nil
}

// ─── Badge Rule Inputs ──────────────────────────────────────────────────────

// CountMaterials returns how many materials an account has uploaded.
func (q *Queries) CountMaterials(ctx context.Context, accountID int64) (int, error) {
	n, err := q.idb.NewSelect().
		Model((*models.Material)(nil)).
		Where("account_id = ?", accountID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count materials: %w", err)
	}
	return n, nil
}

// CountComments returns how many rewarded comments an account has written,
// on materials and on community posts.
func (q *Queries) CountComments(ctx context.Context, accountID int64) (int, error) {
	total := 0
	for _, model := range []any{(*models.MaterialComment)(nil), (*models.PostComment)(nil)} {
		n, err := q.idb.NewSelect().
			Model(model).
			Where("account_id = ?", accountID).
			Count(ctx)
		if err != nil {
			return 0, fmt.Errorf("count %T: %w", model, err)
		}
		total += n
	}
	return total, nil
}

// CountFavoritesReceived returns the favorites across all of an account's
// materials.
func (q *Queries) CountFavoritesReceived(ctx context.Context, accountID int64) (int, error) {
	n, err := q.idb.NewSelect().
		TableExpr("favorites AS f").
		Join("JOIN materials AS m ON m.id = f.material_id").
		Where("m.account_id = ?", accountID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count favorites received: %w", err)
	}
	return n, nil
}
