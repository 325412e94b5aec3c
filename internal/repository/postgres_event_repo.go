package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/brewlog/internal/model"
)

// PostgresEventRepo はPostgreSQLを使用した抽出イベントリポジトリ。
type PostgresEventRepo struct {
	db *sql.DB
}

// NewPostgresEventRepo はPostgresEventRepoを生成する。
func NewPostgresEventRepo(db *sql.DB) *PostgresEventRepo {
	return &PostgresEventRepo{db: db}
}

const eventColumns = `id, coffee_id, coffee_name, roaster, image_ref, rating,
	brewed_at, brewing_method, grind_size, notes, owner_account_id, friends`

// ListAll は全アカウントの公開イベントを新しい順に取得する。
func (r *PostgresEventRepo) ListAll(ctx context.Context) ([]model.BrewEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM brew_events ORDER BY brewed_at DESC, created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("イベント一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListByOwner は指定アカウントが所有するイベントを新しい順に取得する。
func (r *PostgresEventRepo) ListByOwner(ctx context.Context, accountID string) ([]model.BrewEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM brew_events
		 WHERE owner_account_id = $1
		 ORDER BY brewed_at DESC, created_at DESC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("アカウントのイベント取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]model.BrewEvent, error) {
	var events []model.BrewEvent
	for rows.Next() {
		var e model.BrewEvent
		var friends pq.StringArray
		if err := rows.Scan(
			&e.ID, &e.CoffeeID, &e.CoffeeName, &e.Roaster, &e.ImageRef, &e.Rating,
			&e.Timestamp, &e.BrewingMethod, &e.GrindSize, &e.Notes,
			&e.OwnerAccountID, &friends,
		); err != nil {
			return nil, fmt.Errorf("イベント行の読み取りに失敗しました: %w", err)
		}
		e.Friends = []string(friends)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("イベント一覧の走査に失敗しました: %w", err)
	}
	return events, nil
}

// Insert はイベントを保存する。
func (r *PostgresEventRepo) Insert(ctx context.Context, event *model.BrewEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO brew_events
		     (id, coffee_id, coffee_name, roaster, image_ref, rating,
		      brewed_at, brewing_method, grind_size, notes, owner_account_id, friends)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		event.ID, event.CoffeeID, event.CoffeeName, event.Roaster, event.ImageRef,
		event.Rating, event.Timestamp, event.BrewingMethod, event.GrindSize,
		event.Notes, event.OwnerAccountID, pq.Array(event.Friends),
	)
	if err != nil {
		return fmt.Errorf("イベントの保存に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定IDのイベントを削除する。存在しないIDは何もしない。
func (r *PostgresEventRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM brew_events WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("イベントの削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ EventRepository = (*PostgresEventRepo)(nil)
