// Package reminder はレシピ評価リマインダーの生成ジョブを提供する。
// 他のアカウントが作成したレシピのコーヒーを未評価のまま抽出記録している
// アカウントへ、rate_recipe_reminder通知を定期バッチで生成する。
// (type, recipe_id, target_account_id) の部分一意インデックスにより
// 同一レシピへのリマインダーは1件に抑えられ、ジョブは冪等に再実行できる。
package reminder

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/brewlog/internal/model"
)

// DB はジョブが必要とするSQL操作を抽象化するインターフェース。
// *sql.DB を受け付けることができる。
type DB interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// candidate はリマインダー生成対象の1件を表す。
type candidate struct {
	recipeID  string
	creatorID string
	targetID  string
}

// ReminderJob はレシピ評価リマインダーの生成ジョブ。
type ReminderJob struct {
	db     DB
	logger *slog.Logger
	// MinAge は抽出記録からリマインダー生成までの猶予期間（デフォルト: 24時間）。
	MinAge time.Duration
}

// NewReminderJob は新しいReminderJobを生成する。
func NewReminderJob(db DB, logger *slog.Logger) *ReminderJob {
	return &ReminderJob{
		db:     db,
		logger: logger,
		MinAge: 24 * time.Hour,
	}
}

// Run はリマインダー生成を1サイクル実行する。
// 評価(rating)が未設定の抽出イベントのうち、コーヒーに他者作成のレシピが
// 存在し、かつ同一複合キーのリマインダーが未生成のものを対象とする。
func (j *ReminderJob) Run(ctx context.Context) error {
	start := time.Now()

	candidates, err := j.findCandidates(ctx)
	if err != nil {
		return err
	}

	created := 0
	for _, c := range candidates {
		inserted, err := j.insertReminder(ctx, c)
		if err != nil {
			j.logger.Error("リマインダー通知の生成に失敗しました",
				slog.String("recipe_id", c.recipeID),
				slog.String("target_account_id", c.targetID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if inserted {
			created++
		}
	}

	j.logger.Info("リマインダー生成ジョブが完了しました",
		slog.Int("candidates", len(candidates)),
		slog.Int("created", created),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// findCandidates はリマインダー生成対象の組を抽出する。
func (j *ReminderJob) findCandidates(ctx context.Context) ([]candidate, error) {
	interval := fmt.Sprintf("%d seconds", int(j.MinAge.Seconds()))

	rows, err := j.db.QueryContext(ctx,
		`SELECT DISTINCT r.id, r.creator_id, e.owner_account_id
		 FROM brew_events e
		 JOIN recipes r ON r.coffee_id = e.coffee_id
		 WHERE e.rating = 0
		   AND r.creator_id <> e.owner_account_id
		   AND e.brewed_at < now() - $1::interval
		   AND NOT EXISTS (
		       SELECT 1 FROM notifications n
		       WHERE n.type = $2
		         AND n.recipe_id = r.id
		         AND n.target_account_id = e.owner_account_id
		   )`,
		interval, model.NotificationTypeRateRecipeReminder,
	)
	if err != nil {
		return nil, fmt.Errorf("リマインダー対象の抽出に失敗しました: %w", err)
	}
	defer rows.Close()

	var out []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.recipeID, &c.creatorID, &c.targetID); err != nil {
			return nil, fmt.Errorf("リマインダー対象行の読み取りに失敗しました: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("リマインダー対象の走査に失敗しました: %w", err)
	}
	return out, nil
}

// insertReminder はリマインダー通知を1件生成する。
// 部分一意インデックスとの競合はON CONFLICTで無視し、冪等性を保つ。
func (j *ReminderJob) insertReminder(ctx context.Context, c candidate) (bool, error) {
	result, err := j.db.ExecContext(ctx,
		`INSERT INTO notifications
		     (id, type, actor_id, target_account_id, created_at, read, recipe_id, message)
		 VALUES ($1, $2, $3, $4, now(), FALSE, $5, $6)
		 ON CONFLICT (recipe_id, target_account_id)
		     WHERE type = 'rate_recipe_reminder'
		     DO NOTHING`,
		uuid.New().String(),
		model.NotificationTypeRateRecipeReminder,
		c.creatorID,
		c.targetID,
		c.recipeID,
		"抽出したレシピを評価しましょう。",
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// Start は指定間隔でRunを繰り返し実行する。起動直後に1回実行し、
// コンテキストのキャンセルで停止する（ブロッキング）。
func (j *ReminderJob) Start(ctx context.Context, interval time.Duration) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("リマインダー生成ジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("リマインダー生成ジョブの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
