package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/readshare/internal/metrics"
	"github.com/hitoshi/readshare/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Authenticator      middleware.Authenticator
	CORSAllowedOrigins []string
	RateLimiter        *middleware.RateLimiter
	Logger             *slog.Logger
	Metrics            metrics.MetricsCollector

	// 運用エンドポイント
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ライブラリ
	BookService        BookServiceInterface
	TranslationService TranslationServiceInterface
	BookmarkService    BookmarkServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Logging → Recovery → SecurityHeaders → CORS → (Session) → RateLimit
//
// /auth のログイン系はIP単位、セッション必須のルートはユーザー単位でレート制限する。
// 書籍・翻訳の参照系はセッション不要。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	bookHandler := NewBookHandler(deps.BookService)
	translationHandler := NewTranslationHandler(deps.TranslationService)
	bookmarkHandler := NewBookmarkHandler(deps.BookmarkService)

	session := middleware.NewSessionMiddleware(deps.Authenticator)
	perUser := deps.RateLimiter.GeneralMiddleware()

	r.Method(http.MethodGet, "/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/auth", func(r chi.Router) {
		// ログインフロー（セッション不要）
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.AuthMiddleware())
			r.Post("/validate-token", authHandler.ValidateToken)
			r.Get("/google/url", authHandler.GoogleURL)
			r.Post("/google/callback", authHandler.GoogleCallback)
		})

		// セッション確認
		r.Group(func(r chi.Router) {
			r.Use(session, perUser)
			r.Get("/verify/{userId}", authHandler.Verify)
			r.Get("/me", authHandler.Me)
			r.Post("/logout", authHandler.Logout)
			r.Post("/logout-all", authHandler.LogoutAll)
		})
	})

	r.Route("/api/books", func(r chi.Router) {
		r.Get("/", bookHandler.ListBooks)
		r.Get("/{id}", bookHandler.GetBook)
		r.With(session, perUser).Post("/", bookHandler.CreateBook)
	})

	r.Route("/api/translations", func(r chi.Router) {
		r.Get("/", translationHandler.ListTranslations)
		r.Get("/book/{bookId}", translationHandler.ListBookTranslations)
		r.Get("/{id}", translationHandler.GetTranslation)
		r.With(session, perUser).Post("/", translationHandler.CreateTranslation)
		r.With(session, perUser).Put("/{id}", translationHandler.UpdateTranslation)
	})

	r.Route("/api/bookmarks", func(r chi.Router) {
		r.Use(session, perUser)
		r.Get("/", bookmarkHandler.ListBookmarks)
		r.Post("/", bookmarkHandler.AddBookmark)
		r.Delete("/{id}", bookmarkHandler.RemoveBookmark)
	})

	return r
}
