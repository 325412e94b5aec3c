package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/brewlog/internal/model"
)

// PostgresNotificationRepo はPostgreSQLを使用した通知リポジトリ。
// 取得系はaccountsテーブルとLEFT JOINし、actorプロフィール結合済みの
// 通知を返す（生のプッシュペイロードは信頼しない方針のため）。
type PostgresNotificationRepo struct {
	db *sql.DB
}

// NewPostgresNotificationRepo はPostgresNotificationRepoを生成する。
func NewPostgresNotificationRepo(db *sql.DB) *PostgresNotificationRepo {
	return &PostgresNotificationRepo{db: db}
}

const notificationSelect = `
	SELECT n.id, n.type, n.actor_id,
	       COALESCE(a.display_name, ''), COALESCE(a.avatar_ref, ''),
	       n.target_account_id, n.created_at, n.read,
	       COALESCE(n.recipe_id, ''), COALESCE(n.event_id, ''), COALESCE(n.message, ''), COALESCE(n.image_ref, '')
	FROM notifications n
	LEFT JOIN accounts a ON a.id = n.actor_id`

func scanNotification(row interface {
	Scan(dest ...any) error
}) (*model.Notification, error) {
	n := &model.Notification{Origin: model.NotificationOriginRemote}
	err := row.Scan(
		&n.ID, &n.Type, &n.ActorID,
		&n.ActorName, &n.ActorAvatarRef,
		&n.TargetAccountID, &n.CreatedAt, &n.Read,
		&n.Payload.RecipeID, &n.Payload.EventID, &n.Payload.Message, &n.Payload.ImageRef,
	)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// ListByTarget は指定アカウント宛の通知をactor結合済みで新しい順に取得する。
func (r *PostgresNotificationRepo) ListByTarget(ctx context.Context, accountID string) ([]model.Notification, error) {
	rows, err := r.db.QueryContext(ctx,
		notificationSelect+`
		 WHERE n.target_account_id = $1
		 ORDER BY n.created_at DESC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("通知一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("通知行の読み取りに失敗しました: %w", err)
		}
		out = append(out, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("通知一覧の走査に失敗しました: %w", err)
	}
	return out, nil
}

// FindByID は指定IDの通知をactor結合済みで取得する。見つからない場合はnilを返す。
func (r *PostgresNotificationRepo) FindByID(ctx context.Context, id string) (*model.Notification, error) {
	row := r.db.QueryRowContext(ctx,
		notificationSelect+` WHERE n.id = $1`,
		id,
	)

	n, err := scanNotification(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("通知の取得に失敗しました: %w", err)
	}
	return n, nil
}

// Insert は通知を保存する。
func (r *PostgresNotificationRepo) Insert(ctx context.Context, n *model.Notification) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications
		     (id, type, actor_id, target_account_id, created_at, read,
		      recipe_id, event_id, message, image_ref)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		n.ID, n.Type, n.ActorID, n.TargetAccountID, n.CreatedAt, n.Read,
		nullIfEmpty(n.Payload.RecipeID), nullIfEmpty(n.Payload.EventID),
		nullIfEmpty(n.Payload.Message), nullIfEmpty(n.Payload.ImageRef),
	)
	if err != nil {
		return fmt.Errorf("通知の保存に失敗しました: %w", err)
	}
	return nil
}

// UpdateReadFlag は既読フラグを更新する。
func (r *PostgresNotificationRepo) UpdateReadFlag(ctx context.Context, id string, read bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET read = $2 WHERE id = $1`,
		id, read,
	)
	if err != nil {
		return fmt.Errorf("既読フラグの更新に失敗しました: %w", err)
	}
	return nil
}

// DeleteRateReminder は複合キーに一致するリマインダー通知を削除する。
func (r *PostgresNotificationRepo) DeleteRateReminder(ctx context.Context, recipeID, targetAccountID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications
		 WHERE type = $1 AND recipe_id = $2 AND target_account_id = $3`,
		model.NotificationTypeRateRecipeReminder, recipeID, targetAccountID,
	)
	if err != nil {
		return fmt.Errorf("リマインダー通知の削除に失敗しました: %w", err)
	}
	return nil
}

// nullIfEmpty は空文字列をNULLに変換する。
func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// compile-time interface check
var _ NotificationRepository = (*PostgresNotificationRepo)(nil)
