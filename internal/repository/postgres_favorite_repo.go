package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresFavoriteRepo はPostgreSQLを使用したお気に入りリポジトリ。
type PostgresFavoriteRepo struct {
	db *sql.DB
}

// NewPostgresFavoriteRepo はPostgresFavoriteRepoを生成する。
func NewPostgresFavoriteRepo(db *sql.DB) *PostgresFavoriteRepo {
	return &PostgresFavoriteRepo{db: db}
}

// ListIDsByOwner は指定アカウントのお気に入りレシピID一覧を返す。
func (r *PostgresFavoriteRepo) ListIDsByOwner(ctx context.Context, accountID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT recipe_id FROM favorites WHERE owner_account_id = $1 ORDER BY created_at`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("お気に入り一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("お気に入り行の読み取りに失敗しました: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("お気に入り一覧の走査に失敗しました: %w", err)
	}
	return ids, nil
}

// Add はお気に入りを冪等に追加する。
func (r *PostgresFavoriteRepo) Add(ctx context.Context, accountID, recipeID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO favorites (owner_account_id, recipe_id)
		 VALUES ($1, $2)
		 ON CONFLICT (owner_account_id, recipe_id) DO NOTHING`,
		accountID, recipeID,
	)
	if err != nil {
		return fmt.Errorf("お気に入りの追加に失敗しました: %w", err)
	}
	return nil
}

// Remove はお気に入りを削除する。存在しないキーは何もしない。
func (r *PostgresFavoriteRepo) Remove(ctx context.Context, accountID, recipeID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM favorites WHERE owner_account_id = $1 AND recipe_id = $2`,
		accountID, recipeID,
	)
	if err != nil {
		return fmt.Errorf("お気に入りの削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ FavoriteRepository = (*PostgresFavoriteRepo)(nil)
