package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/readshare/internal/auth"
	"github.com/hitoshi/readshare/internal/book"
	"github.com/hitoshi/readshare/internal/bookmark"
	"github.com/hitoshi/readshare/internal/config"
	"github.com/hitoshi/readshare/internal/database"
	"github.com/hitoshi/readshare/internal/handler"
	"github.com/hitoshi/readshare/internal/logger"
	"github.com/hitoshi/readshare/internal/metrics"
	"github.com/hitoshi/readshare/internal/middleware"
	"github.com/hitoshi/readshare/internal/repository"
	"github.com/hitoshi/readshare/internal/security"
	"github.com/hitoshi/readshare/internal/tracing"
	"github.com/hitoshi/readshare/internal/translation"
	"github.com/hitoshi/readshare/internal/user"
	"github.com/hitoshi/readshare/internal/worker/cleanup"
)

const (
	dbPingTimeout       = 5 * time.Second
	shutdownTimeout     = 30 * time.Second
	tracingFlushTimeout = 5 * time.Second
	nonceCookieAge      = 10 * 60 // 秒
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

	// 3. 設定されたログレベルで再設定する
	logger.SetupDefaultWithLevel(w, logger.ParseLevel(cfg.LogLevel))

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
		slog.String("base_url", cfg.BaseURL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cmd != CommandMigrate {
		shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
			Endpoint:    cfg.OTelTracesEndpoint,
			ServiceName: cfg.OTelServiceName,
		})
		if err != nil {
			return fmt.Errorf("failed to set up tracing: %w", err)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), tracingFlushTimeout)
			defer cancel()
			if err := shutdownTracing(flushCtx); err != nil {
				slog.Warn("failed to flush traces", slog.String("error", err.Error()))
			}
		}()
	}

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされる（SIGINT/SIGTERM）とグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := database.Ping(ctx, db, dbPingTimeout); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	bookRepo := repository.NewPostgresBookRepo(db)
	translationRepo := repository.NewPostgresTranslationRepo(db)
	bookmarkRepo := repository.NewPostgresBookmarkRepo(db)

	// 4. 認証コンポーネントの初期化
	idpClient := &http.Client{Timeout: cfg.OAuthHTTPTimeout}

	verifier := auth.NewGoogleIDTokenVerifier(ctx, auth.IDTokenVerifierConfig{
		ClientID:   cfg.GoogleClientID,
		HTTPClient: idpClient,
		Issuers:    issuersFor(cfg.GoogleIssuerURL),
	}).WithLatencyObserver(collector.RecordIdPLatency)

	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		HTTPClient:   idpClient,
	}).WithLatencyObserver(collector.RecordIdPLatency)

	sessions := auth.NewSessionManager(sessionRepo, userRepo).WithMetrics(collector)
	directory := user.NewDirectory(userRepo)
	authService := auth.NewService(verifier, oauthProvider, directory, sessions, collector)

	// 5. ドメインサービスの初期化
	sanitizer := security.NewTextSanitizer()
	bookService := book.NewService(bookRepo, translationRepo, sanitizer)
	translationService := translation.NewService(translationRepo, bookRepo, sanitizer)
	bookmarkService := bookmark.NewService(bookmarkRepo)

	// 6. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAuth),
	)
	defer rateLimiter.Stop()

	cookies := securecookie.New([]byte(cfg.SessionSecret), nil)
	cookies.MaxAge(nonceCookieAge)

	deps := &handler.RouterDeps{
		Authenticator:      sessions,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        rateLimiter,
		Logger:             slog.Default(),
		Metrics:            collector,

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(registry),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			Cookies:        cookies,
			CookieSecure:   cfg.CookieSecure,
			AllowedOrigins: cfg.CORSAllowedOrigins,
		},

		BookService:        bookService,
		TranslationService: translationService,
		BookmarkService:    bookmarkService,
	}

	router := handler.NewRouter(deps)

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// 期限切れセッションの削除が残っていれば完了を待つ
	sessions.Wait()

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、期限切れセッションの定期削除ジョブを実行する。
// ctxがキャンセルされる（SIGINT/SIGTERM）と停止する。
func runWorker(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := database.Ping(ctx, db, dbPingTimeout); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. クリーンアップジョブの初期化
	sessionRepo := repository.NewPostgresSessionRepo(db)
	collector := metrics.NewCollector(prometheus.NewRegistry())
	job := cleanup.NewSessionCleanupJob(sessionRepo, slog.Default(), collector)

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.SessionCleanupInterval),
	)

	// ctxがキャンセルされるまでブロックする
	job.Start(ctx, cfg.SessionCleanupInterval)

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

// issuersFor は設定されたissuer URLから、IDトークンのissとして許可する値を返す。
// Googleはスキーム付きとホスト名のみの2種類の表記を使う。
func issuersFor(issuerURL string) []string {
	issuerURL = strings.TrimSuffix(issuerURL, "/")
	if issuerURL == "" {
		return nil
	}
	host := strings.TrimPrefix(strings.TrimPrefix(issuerURL, "https://"), "http://")
	if host == issuerURL {
		return []string{issuerURL, "https://" + issuerURL}
	}
	return []string{host, issuerURL}
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
