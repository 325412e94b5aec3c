package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/brewlog/internal/model"
)

// PostgresCoffeeItemRepo はPostgreSQLを使用したコーヒーアイテムリポジトリ。
// コレクションとウィッシュリストはスキーマが同一のため、
// 対象テーブル名だけが異なる同一実装を共有する。
type PostgresCoffeeItemRepo struct {
	db    *sql.DB
	table string
}

// NewPostgresCollectionRepo はコレクション用リポジトリを生成する。
func NewPostgresCollectionRepo(db *sql.DB) *PostgresCoffeeItemRepo {
	return &PostgresCoffeeItemRepo{db: db, table: "collection_items"}
}

// NewPostgresWishlistRepo はウィッシュリスト用リポジトリを生成する。
func NewPostgresWishlistRepo(db *sql.DB) *PostgresCoffeeItemRepo {
	return &PostgresCoffeeItemRepo{db: db, table: "wishlist_items"}
}

// ListByOwner は指定アカウントのアイテム一覧を取得する。
func (r *PostgresCoffeeItemRepo) ListByOwner(ctx context.Context, accountID string) ([]model.CoffeeItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, roaster, image_ref, origin, process, roast_level, added_at, owner_account_id
		 FROM `+r.table+`
		 WHERE owner_account_id = $1
		 ORDER BY added_at DESC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("アイテム一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var items []model.CoffeeItem
	for rows.Next() {
		var item model.CoffeeItem
		if err := rows.Scan(
			&item.ID, &item.Name, &item.Roaster, &item.ImageRef,
			&item.Origin, &item.Process, &item.RoastLevel,
			&item.Timestamp, &item.OwnerAccountID,
		); err != nil {
			return nil, fmt.Errorf("アイテム行の読み取りに失敗しました: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("アイテム一覧の走査に失敗しました: %w", err)
	}
	return items, nil
}

// Upsert はアイテムを冪等に保存する。
// (owner_account_id, id) の複合主キーを利用したINSERT ON CONFLICTで実装する。
// 既存キーへの再追加はセット意味論に従い既存行を維持する。
func (r *PostgresCoffeeItemRepo) Upsert(ctx context.Context, item *model.CoffeeItem) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO `+r.table+`
		     (id, name, roaster, image_ref, origin, process, roast_level, added_at, owner_account_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (owner_account_id, id) DO NOTHING`,
		item.ID, item.Name, item.Roaster, item.ImageRef,
		item.Origin, item.Process, item.RoastLevel,
		item.Timestamp, item.OwnerAccountID,
	)
	if err != nil {
		return fmt.Errorf("アイテムの保存に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定アカウントの指定アイテムを削除する。存在しないキーは何もしない。
func (r *PostgresCoffeeItemRepo) Delete(ctx context.Context, accountID, itemID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM `+r.table+` WHERE owner_account_id = $1 AND id = $2`,
		accountID, itemID,
	)
	if err != nil {
		return fmt.Errorf("アイテムの削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ CoffeeItemRepository = (*PostgresCoffeeItemRepo)(nil)
