package model

import "time"

// NotificationType は通知の種別を表す。
type NotificationType string

const (
	// NotificationTypeRateRecipeReminder はレシピ評価リマインダー通知。
	// (type, recipeID, targetAccountID) の複合キーで重複排除される。
	NotificationTypeRateRecipeReminder NotificationType = "rate_recipe_reminder"
	// NotificationTypeNewFollower は新規フォロワー通知。
	NotificationTypeNewFollower NotificationType = "new_follower"
	// NotificationTypeRecipeShared はレシピ共有通知。
	NotificationTypeRecipeShared NotificationType = "recipe_shared"
	// NotificationTypeBrewLiked は抽出ログへのいいね通知。
	NotificationTypeBrewLiked NotificationType = "brew_liked"
)

// NotificationOrigin は通知の取得元を表す。
// シード由来の通知は既読フラグをリモートに永続化しない。
type NotificationOrigin string

const (
	// NotificationOriginRemote はリモートストア由来の通知。
	NotificationOriginRemote NotificationOrigin = "remote"
	// NotificationOriginSeed はシードデータ由来のフォールバック通知。
	NotificationOriginSeed NotificationOrigin = "seed"
)

// NotificationPayload は通知種別ごとの付加情報を表す。
type NotificationPayload struct {
	RecipeID string
	EventID  string
	Message  string
	ImageRef string
}

// Notification はアカウント宛の通知1件を表す。
// 通常の同一性はIDで判定するが、rate_recipe_reminder型のみ
// (Type, Payload.RecipeID, TargetAccountID) の複合キーで重複排除する。
type Notification struct {
	ID              string
	Type            NotificationType
	ActorID         string
	ActorName       string // actorプロフィールとの結合で付与される
	ActorAvatarRef  string
	TargetAccountID string
	CreatedAt       time.Time
	Read            bool
	Origin          NotificationOrigin
	Payload         NotificationPayload
}

// AlertLevel はアプリ内トランジェントアラートの重要度を表す。
type AlertLevel string

const (
	// AlertLevelInfo は情報レベルのアラート。
	AlertLevelInfo AlertLevel = "info"
	// AlertLevelError はエラーレベルのアラート。
	AlertLevelError AlertLevel = "error"
)

// Alert はUIシェルが消費するトランジェントアラートを表す。
type Alert struct {
	Level          AlertLevel
	Title          string
	Message        string
	NotificationID string
}
