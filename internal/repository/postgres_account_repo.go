package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/brewlog/internal/model"
)

// PostgresAccountRepo はPostgreSQLを使用したアカウントプロフィールリポジトリ。
type PostgresAccountRepo struct {
	db *sql.DB
}

// NewPostgresAccountRepo はPostgresAccountRepoを生成する。
func NewPostgresAccountRepo(db *sql.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db}
}

// UpsertAll はアカウント一覧を冪等に登録する。
// 起動時にAccountRegistryの内容をリモートストアへ同期し、
// 通知のactor結合が常にプロフィールを解決できるようにする。
func (r *PostgresAccountRepo) UpsertAll(ctx context.Context, accounts []model.Account) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	for _, a := range accounts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO accounts (id, display_name, avatar_ref, email_ref)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (id) DO UPDATE SET
			     display_name = EXCLUDED.display_name,
			     avatar_ref = EXCLUDED.avatar_ref,
			     email_ref = EXCLUDED.email_ref`,
			a.ID, a.DisplayName, a.AvatarRef, a.EmailRef,
		); err != nil {
			return fmt.Errorf("アカウントの登録に失敗しました: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ AccountRepository = (*PostgresAccountRepo)(nil)
