// Package app はコマンドの起動処理と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/adledger/internal/config"
	"github.com/hitoshi/adledger/internal/database"
	"github.com/hitoshi/adledger/internal/handler"
	"github.com/hitoshi/adledger/internal/logger"
	"github.com/hitoshi/adledger/internal/messages"
	"github.com/hitoshi/adledger/internal/metrics"
	"github.com/hitoshi/adledger/internal/middleware"
	"github.com/hitoshi/adledger/internal/mirror"
	"github.com/hitoshi/adledger/internal/telegram"
)

// sessionName はgotdのセッションを保存する行の名前。
const sessionName = "bot"

// cleanupInterval は期限切れセッションの削除間隔。
const cleanupInterval = time.Hour

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップしてから環境変数の設定を読み込む。
// SENTRY_DSN が設定されていればERROR以上のログをSentryへ転送する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. Sentry
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", slog.String("error", err.Error()))
		} else {
			logger.SetupDefaultWithSentry(w, sentry.CurrentHub())
		}
	}

	return cfg, nil
}

// openDB はDB接続を開いて疎通を確認する。
func openDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.DefaultPoolOptions)
	if err != nil {
		return nil, err
	}
	if err := database.Ping(ctx, db, 5*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established")
	return db, nil
}

// newMirrorStore はスプレッドシート連携の実装を返す。認証情報がなければ何もしない実装。
func newMirrorStore(ctx context.Context, cfg *config.Config) (mirror.Store, error) {
	if !cfg.MirrorEnabled() {
		slog.Info("spreadsheet mirror disabled")
		return mirror.Noop{}, nil
	}
	store, err := mirror.NewSheetsStore(ctx, cfg.GoogleCredentialsFile)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// newTelegramClient はDBにセッションを保存するTelegramクライアントを生成する。
func newTelegramClient(cfg *config.Config, db *sql.DB, repos Repositories) *telegram.Client {
	return telegram.NewClient(telegram.Options{
		AppID:    cfg.TelegramAppID,
		AppHash:  cfg.TelegramAppHash,
		BotToken: cfg.BotToken,
		Storage:  telegram.NewDBSessionStorage(db, sessionName),
		SendRate: cfg.TelegramRate,
	}, repos.Users, slog.Default())
}

// ServeOptions はserveコマンドのフラグ。
type ServeOptions struct {
	Sweeper bool // 同じプロセスでリマインダーを送信する
	Migrate bool // 起動前にマイグレーションを適用する
}

// runServe はボット、HTTPサーバー、定期ジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config, opts ServeOptions) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer sentry.Flush(2 * time.Second)

	if opts.Migrate {
		if err := runMigrateUp(cfg); err != nil {
			return err
		}
	}

	// 1. DB接続
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 3. 外部サービス
	store, err := newMirrorStore(ctx, cfg)
	if err != nil {
		return err
	}
	repos := PostgresRepositories(db)
	client := newTelegramClient(cfg, db, repos)

	// 4. ワイヤリング
	comps := Build(repos, store, client, collector, slog.Default(), OptionsFromConfig(cfg))
	client.Listen(comps.Router)

	if err := client.Connect(ctx); err != nil {
		return err
	}

	// 5. 定期ジョブ
	var wg sync.WaitGroup
	if opts.Sweeper {
		wg.Add(1)
		go func() {
			defer wg.Done()
			comps.Sweeper.Start(ctx, cfg.ReminderSweepInterval)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		comps.Cleanup.Start(ctx, cleanupInterval)
	}()

	// 6. HTTPサーバー
	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(), slog.Default())
	defer limiter.Stop()

	server := &http.Server{
		Addr: ":" + cfg.ServerPort,
		Handler: handler.NewRouter(&handler.RouterDeps{
			HealthChecker: db,
			Gatherer:      registry,
			RateLimiter:   limiter,
			Logger:        slog.Default(),
			TrustProxy:    cfg.TrustProxy,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		slog.Error("server listen error", slog.String("error", err.Error()))
		stop()
	}
	slog.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", slog.String("error", err.Error()))
	}
	// 受信済みの更新を処理し終えてから切断する
	comps.Router.Wait()
	wg.Wait()
	if err := client.Close(); err != nil {
		slog.Error("telegram close failed", slog.String("error", err.Error()))
	}

	slog.Info("stopped gracefully")
	return nil
}

// runSweep はリマインダーのスイープを1回だけ実行する。
// cronなど外部のスケジューラから起動する場合に使う。
func runSweep(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer sentry.Flush(2 * time.Second)

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	repos := PostgresRepositories(db)
	client := newTelegramClient(cfg, db, repos)
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Close()

	sweeper := newSweeper(repos.Reminders, client, messages.Default(), metrics.Nop{}, slog.Default(), OptionsFromConfig(cfg))
	sent, err := sweeper.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}
	slog.Info("sweep completed", slog.Int("sent", sent))
	return nil
}

// runMigrateUp は未適用のマイグレーションをすべて適用する。
func runMigrateUp(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	slog.Info("database migrations completed successfully")
	return nil
}

// runMigrateDown は指定した段数だけマイグレーションを戻す。
func runMigrateDown(cfg *config.Config, steps int) error {
	slog.Info("rolling back database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		slog.Int("steps", steps),
	)
	if err := database.RollbackMigrations(cfg.DatabaseURL, steps); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}
	slog.Info("database rollback completed successfully")
	return nil
}

// runMigrateVersion は適用済みのマイグレーションのバージョンを書き出す。
func runMigrateVersion(cfg *config.Config, w io.Writer) error {
	version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	fmt.Fprintf(w, "version=%d dirty=%t\n", version, dirty)
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

// healthcheckPort はヘルスチェックの宛先ポートを返す。設定の読み込みは行わない。
func healthcheckPort() string {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		return port
	}
	return "8080"
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
