package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/newsdeck/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// インフラ
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// ドメイン
	DiscoverService    DiscoverServiceInterface
	FollowService      FollowServiceInterface
	FollowedItems      FollowedItemsService
	InteractionService InteractionServiceInterface
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → SecurityHeaders → CORS → Identity → RateLimit(General)
//
// /health と /metrics はIdentity以降のチェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	discoverHandler := NewDiscoverHandler(deps.DiscoverService, deps.Logger)
	followHandler := NewFollowHandler(deps.FollowService, deps.FollowedItems, deps.Logger)
	articleHandler := NewArticleHandler(deps.InteractionService, deps.Logger)

	// --- 認証不要のルート ---
	r.Get("/health", Health(deps.HealthChecker, deps.Logger))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- ユーザーIDが必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewIdentityMiddleware(true))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/discover", func(r chi.Router) {
			r.Get("/", discoverHandler.Discover)
			r.Get("/categories", discoverHandler.Categories)
			r.Get("/search", discoverHandler.Search)
			r.Get("/preview", discoverHandler.Preview)
			r.Get("/articles", discoverHandler.Articles)
			r.Get("/reddit", discoverHandler.Reddit)
		})
		r.Get("/api/news", discoverHandler.News)

		// フォロー操作には専用のレート制限を追加する
		r.With(deps.RateLimiter.FollowMiddleware()).Post("/api/follow", followHandler.Follow)
		r.Post("/api/unfollow", followHandler.Unfollow)
		r.Route("/api/following", func(r chi.Router) {
			r.Get("/", followHandler.Following)
			r.Get("/items", followHandler.FollowingItems)
			r.Get("/check", followHandler.Check)
		})

		r.Route("/api/articles", func(r chi.Router) {
			r.Post("/save", articleHandler.Save)
			r.Post("/read", articleHandler.Read)
			r.Post("/memo", articleHandler.Memo)
		})
		r.Get("/api/saved", articleHandler.Saved)
	})

	return r
}
