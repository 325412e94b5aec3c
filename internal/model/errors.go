package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, sync, notification, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAccountNotFound       = "ACCOUNT_NOT_FOUND"
	ErrCodeLoadFailure           = "LOAD_FAILURE"
	ErrCodeValidationFailure     = "VALIDATION_FAILURE"
	ErrCodeNotificationIngestion = "NOTIFICATION_INGESTION_FAILURE"
	ErrCodeRecipeNotFound        = "RECIPE_NOT_FOUND"
	ErrCodeNotSignedIn           = "NOT_SIGNED_IN"
)

// NewAccountNotFoundError はアカウント未検出エラーを生成する。
// セッションは設定済みデフォルトアカウントへフォールバックして回復する。
func NewAccountNotFoundError(accountID string) *APIError {
	return &APIError{
		Code:     ErrCodeAccountNotFound,
		Message:  fmt.Sprintf("指定されたアカウントが見つかりません: %s", accountID),
		Category: "auth",
		Action:   "アカウント一覧から有効なアカウントを選択してください。",
	}
}

// NewLoadFailureError はデータ読み込み失敗エラーを生成する。
// 直前の状態は保持され、エラーフラグとしてセッション状態に記録される。
func NewLoadFailureError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeLoadFailure,
		Message:  fmt.Sprintf("アカウントデータの読み込みに失敗しました: %s", reason),
		Category: "sync",
		Action:   "通信状態を確認し、しばらく待ってから再度お試しください。",
	}
}

// NewValidationError は必須項目欠落などの入力検証エラーを生成する。
// 部分的な書き込みは行われず、呼び出し元へ同期的に報告される。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailure,
		Message:  fmt.Sprintf("入力内容に誤りがあります: %s", reason),
		Category: "validation",
		Action:   "必須項目を入力してから再度保存してください。",
	}
}

// NewNotificationIngestionError は通知取り込み失敗エラーを生成する。
// ログに記録するのみで、既存の通知一覧には影響を与えない。
func NewNotificationIngestionError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeNotificationIngestion,
		Message:  fmt.Sprintf("通知の取り込みに失敗しました: %s", reason),
		Category: "notification",
		Action:   "通知は次回の受信時に再取得されます。",
	}
}

// NewRecipeNotFoundError はレシピ未検出エラーを生成する。
func NewRecipeNotFoundError(recipeID string) *APIError {
	return &APIError{
		Code:     ErrCodeRecipeNotFound,
		Message:  fmt.Sprintf("指定されたレシピが見つかりません: %s", recipeID),
		Category: "validation",
		Action:   "レシピIDを確認してください。",
	}
}

// NewNotSignedInError は未サインイン状態での操作エラーを生成する。
func NewNotSignedInError() *APIError {
	return &APIError{
		Code:     ErrCodeNotSignedIn,
		Message:  "サインインしていません。",
		Category: "auth",
		Action:   "サインインしてから再度お試しください。",
	}
}
