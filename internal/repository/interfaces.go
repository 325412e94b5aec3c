// Package repository はリモートストア（RemoteStore）へのアクセスインターフェースを定義する。
// リモートストアはイベント・コレクション・通知を永続化し、
// 通知のリアルタイム購読プリミティブを提供する外部コラボレータとして扱う。
package repository

import (
	"context"

	"github.com/hitoshi/brewlog/internal/model"
)

// AccountRepository はアカウントプロフィールの永続化インターフェース。
// 通知のactor結合に使用するため、起動時にレジストリの内容を同期する。
type AccountRepository interface {
	// UpsertAll はアカウント一覧を冪等に登録する。
	UpsertAll(ctx context.Context, accounts []model.Account) error
}

// EventRepository は抽出イベントの永続化インターフェース。
type EventRepository interface {
	// ListAll は全アカウントの公開イベントを新しい順に取得する。
	ListAll(ctx context.Context) ([]model.BrewEvent, error)

	// ListByOwner は指定アカウントが所有するイベントを新しい順に取得する。
	ListByOwner(ctx context.Context, accountID string) ([]model.BrewEvent, error)

	// Insert はイベントを保存する。
	Insert(ctx context.Context, event *model.BrewEvent) error

	// Delete は指定IDのイベントを削除する。存在しないIDは何もしない。
	Delete(ctx context.Context, id string) error
}

// CoffeeItemRepository はコレクション／ウィッシュリストの永続化インターフェース。
// (owner_account_id, id) をキーとするセット意味論で、同一キーのUpsertは冪等。
type CoffeeItemRepository interface {
	// ListByOwner は指定アカウントのアイテム一覧を取得する。
	ListByOwner(ctx context.Context, accountID string) ([]model.CoffeeItem, error)

	// Upsert はアイテムを冪等に保存する。
	Upsert(ctx context.Context, item *model.CoffeeItem) error

	// Delete は指定アカウントの指定アイテムを削除する。存在しないキーは何もしない。
	Delete(ctx context.Context, accountID, itemID string) error
}

// FavoriteRepository はお気に入りレシピID集合の永続化インターフェース。
type FavoriteRepository interface {
	// ListIDsByOwner は指定アカウントのお気に入りレシピID一覧を返す。
	ListIDsByOwner(ctx context.Context, accountID string) ([]string, error)

	// Add はお気に入りを冪等に追加する。
	Add(ctx context.Context, accountID, recipeID string) error

	// Remove はお気に入りを削除する。存在しないキーは何もしない。
	Remove(ctx context.Context, accountID, recipeID string) error
}

// RecipeRepository は共有レシピプールの永続化インターフェース。
type RecipeRepository interface {
	// ListAll は共有レシピプールの全レシピを取得する。
	// IsSavedは派生フラグのため永続化されず、常にfalseで返る。
	ListAll(ctx context.Context) ([]model.Recipe, error)

	// Upsert はレシピを保存する。既存IDは置き換える。
	Upsert(ctx context.Context, recipe *model.Recipe) error
}

// NotificationRepository は通知の永続化インターフェース。
type NotificationRepository interface {
	// ListByTarget は指定アカウント宛の通知をactorプロフィール結合済みで
	// 新しい順に取得する。
	ListByTarget(ctx context.Context, accountID string) ([]model.Notification, error)

	// FindByID は指定IDの通知をactorプロフィール結合済みで取得する。
	// 見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Notification, error)

	// Insert は通知を保存する。
	Insert(ctx context.Context, n *model.Notification) error

	// UpdateReadFlag は既読フラグを更新する。
	UpdateReadFlag(ctx context.Context, id string, read bool) error

	// DeleteRateReminder は (rate_recipe_reminder, recipeID, targetAccountID) の
	// 複合キーに一致するリマインダー通知を削除する。
	DeleteRateReminder(ctx context.Context, recipeID, targetAccountID string) error
}
