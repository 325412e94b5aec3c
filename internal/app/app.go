// Package app はアプリケーションの起動モード選択と依存関係のワイヤリングを担う。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/brewlog/internal/config"
	"github.com/hitoshi/brewlog/internal/database"
	"github.com/hitoshi/brewlog/internal/handler"
	"github.com/hitoshi/brewlog/internal/localstore"
	"github.com/hitoshi/brewlog/internal/logger"
	"github.com/hitoshi/brewlog/internal/metrics"
	"github.com/hitoshi/brewlog/internal/middleware"
	"github.com/hitoshi/brewlog/internal/notification"
	"github.com/hitoshi/brewlog/internal/repository"
	"github.com/hitoshi/brewlog/internal/security"
	"github.com/hitoshi/brewlog/internal/seed"
	"github.com/hitoshi/brewlog/internal/session"
	"github.com/hitoshi/brewlog/internal/worker/cleanup"
	"github.com/hitoshi/brewlog/internal/worker/reminder"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. シードカタログの読み込み
	catalog, err := seed.Load()
	if err != nil {
		return fmt.Errorf("failed to load seed catalog: %w", err)
	}
	registry := session.NewRegistry(catalog.Accounts(), cfg.DefaultAccountID)

	// 3. リポジトリの初期化
	accountRepo := repository.NewPostgresAccountRepo(db)
	eventRepo := repository.NewPostgresEventRepo(db)
	collectionRepo := repository.NewPostgresCollectionRepo(db)
	wishlistRepo := repository.NewPostgresWishlistRepo(db)
	favoriteRepo := repository.NewPostgresFavoriteRepo(db)
	recipeRepo := repository.NewPostgresRecipeRepo(db)
	notificationRepo := repository.NewPostgresNotificationRepo(db)

	// 起動時にシードのアカウントプロフィールをリモートへ同期する
	// （通知のactor結合が表示名を解決できるようにするため）
	syncCtx, cancelSync := context.WithTimeout(context.Background(), cfg.LoadTimeout)
	if err := accountRepo.UpsertAll(syncCtx, catalog.Accounts()); err != nil {
		cancelSync()
		return fmt.Errorf("failed to sync seed accounts: %w", err)
	}
	cancelSync()

	// 4. ローカル永続化とセキュリティサービスの初期化
	local, err := localstore.NewFileStore(cfg.LocalStorePath)
	if err != nil {
		return fmt.Errorf("failed to open local store: %w", err)
	}
	sanitizer := security.NewNoteSanitizer()

	// 5. メトリクスの初期化
	promRegistry := prometheus.NewRegistry()
	collector := metrics.NewCollector(promRegistry)

	// 6. ドメインコンポーネントの初期化
	sess := session.NewSession(session.Deps{
		Catalog:     catalog,
		Registry:    registry,
		States:      session.NewStateRepository(),
		Events:      eventRepo,
		Collection:  collectionRepo,
		Wishlist:    wishlistRepo,
		Favorites:   favoriteRepo,
		Recipes:     recipeRepo,
		Local:       local,
		Sanitizer:   sanitizer,
		Logger:      slog.Default(),
		Metrics:     collector,
		Exclusions:  cfg.ExcludedAccountIDs,
		LoadTimeout: cfg.LoadTimeout,
	})

	listener := repository.NewPqNotificationListener(
		cfg.DatabaseURL, cfg.RealtimeMinRetry, cfg.RealtimeMaxRetry,
		slog.Default(), collector,
	)
	center := notification.NewCenter(notification.Deps{
		Repo:            notificationRepo,
		Listener:        listener,
		Catalog:         catalog,
		Logger:          slog.Default(),
		Metrics:         collector,
		SeedLimit:       cfg.SeedNotificationLimit,
		AlertBufferSize: cfg.AlertBufferSize,
	})

	// 7. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		HealthChecker:  db,
		Logger:         slog.Default(),
		RateLimiter:    rateLimiter,
		Session:        sess,
		Notifier:       center,
		Notifications:  center,
		MetricsHandler: metrics.Handler(promRegistry),
	})

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	// アラートはUIシェル不在のサーバーモードではログへ流す
	go func() {
		for alert := range center.Alerts() {
			slog.Info("in-app alert",
				slog.String("level", string(alert.Level)),
				slog.String("title", alert.Title),
				slog.String("notification_id", alert.NotificationID),
			)
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	center.Clear()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、リマインダー生成ジョブと通知クリーンアップジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. ジョブの初期化
	reminderJob := reminder.NewReminderJob(db, slog.Default())
	cleanupJob := cleanup.NewCleanupJob(db, slog.Default())

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Int("cleanup_retention_days", cleanupJob.RetentionDays),
	)

	// クリーンアップジョブを日次でバックグラウンド実行
	go func() {
		// 起動直後に1回実行
		if err := cleanupJob.Run(ctx); err != nil {
			slog.Error("cleanup job failed", slog.String("error", err.Error()))
		}

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := cleanupJob.Run(ctx); err != nil {
					slog.Error("cleanup job failed", slog.String("error", err.Error()))
				}
			}
		}
	}()

	// リマインダー生成ジョブをメインgoroutineで実行（ブロッキング）
	reminderJob.Start(ctx, time.Hour)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
