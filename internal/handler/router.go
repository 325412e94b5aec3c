package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/brewlog/internal/middleware"
)

// HealthChecker はヘルスチェックに必要なDB疎通確認のインターフェース。
// *sql.DB を受け付けることができる。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	HealthChecker HealthChecker
	Logger        *slog.Logger
	RateLimiter   *middleware.RateLimiter

	Session       SessionAPI
	Notifier      IdentityNotifier
	Notifications NotificationAPI

	// MetricsHandler はPrometheusスクレイプ用ハンドラー。nil可。
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを
// 構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → RateLimit(General)
//
// ヘルスチェックとメトリクスはミドルウェアチェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	sessionHandler := NewSessionHandler(deps.Session, deps.Notifier)
	notificationHandler := NewNotificationHandler(deps.Notifications)

	// --- 運用ルート（レート制限・リクエストログの対象外） ---

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := deps.HealthChecker.PingContext(req.Context()); err != nil {
			deps.Logger.Error("ヘルスチェックに失敗しました",
				slog.String("error", err.Error()),
			)
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- APIルート ---

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		mutation := deps.RateLimiter.MutationMiddleware()

		// セッション管理
		r.Route("/api/session", func(r chi.Router) {
			r.Get("/", sessionHandler.GetSnapshot)
			r.With(mutation).Post("/signin", sessionHandler.SignIn)
			r.With(mutation).Post("/signout", sessionHandler.SignOut)
			r.With(mutation).Post("/switch", sessionHandler.SwitchAccount)
		})

		// 抽出イベント
		r.Route("/api/events", func(r chi.Router) {
			r.With(mutation).Post("/", sessionHandler.AddEvent)
			r.Delete("/{id}", sessionHandler.RemoveEvent)
		})

		// コレクション / ウィッシュリスト
		r.Route("/api/collection", func(r chi.Router) {
			r.With(mutation).Post("/", sessionHandler.AddCollectionItem)
			r.Delete("/{id}", sessionHandler.RemoveCollectionItem)
		})
		r.Route("/api/wishlist", func(r chi.Router) {
			r.With(mutation).Post("/", sessionHandler.AddWishlistItem)
			r.Delete("/{id}", sessionHandler.RemoveWishlistItem)
		})

		// レシピ
		r.Route("/api/recipes", func(r chi.Router) {
			r.With(mutation).Post("/", sessionHandler.AddRecipe)
			r.With(mutation).Put("/{id}", sessionHandler.UpdateRecipe)
			r.With(mutation).Post("/{id}/favorite", sessionHandler.ToggleFavorite)
		})

		// 通知
		r.Route("/api/notifications", func(r chi.Router) {
			r.Get("/", notificationHandler.List)
			r.Post("/read-all", notificationHandler.MarkAllAsRead)
			r.Post("/{id}/read", notificationHandler.MarkAsRead)
			r.Delete("/{id}", notificationHandler.Delete)
			r.Delete("/rate-reminders/{recipeID}", notificationHandler.RemoveRateReminder)
		})
	})

	return r
}
