// Package cleanup は既読通知の自動削除ジョブを提供する。
// 保持期間を超過した既読通知を日次バッチで削除する。
// 未読通知は保持期間に関わらず削除対象にならない。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// defaultRetentionDays は既読通知を保持する既定の日数。
const defaultRetentionDays = 90

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB と *sql.Tx のどちらも満たす。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// CleanupJob は保持期間を超過した既読通知を削除するバッチジョブ。
// 何度実行しても安全で、削除対象がなければ何もしない。
type CleanupJob struct {
	db     Executor
	logger *slog.Logger

	// RetentionDays は既読通知の保持日数。
	RetentionDays int
}

// NewCleanupJob はCleanupJobを生成する。
func NewCleanupJob(db Executor, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		db:            db,
		logger:        logger,
		RetentionDays: defaultRetentionDays,
	}
}

// Run は既読かつcreated_atが保持期間より古い通知を削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()
	retention := fmt.Sprintf("%d days", j.RetentionDays)

	result, err := j.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE read AND created_at < now() - $1::interval`,
		retention,
	)
	if err != nil {
		return fmt.Errorf("通知クリーンアップの実行に失敗: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	j.logger.Info("通知クリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}
