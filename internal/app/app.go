package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/newsdeck/internal/config"
	"github.com/hitoshi/newsdeck/internal/database"
	"github.com/hitoshi/newsdeck/internal/discover"
	"github.com/hitoshi/newsdeck/internal/feed"
	"github.com/hitoshi/newsdeck/internal/follow"
	"github.com/hitoshi/newsdeck/internal/handler"
	"github.com/hitoshi/newsdeck/internal/interaction"
	"github.com/hitoshi/newsdeck/internal/logger"
	"github.com/hitoshi/newsdeck/internal/metrics"
	"github.com/hitoshi/newsdeck/internal/middleware"
	"github.com/hitoshi/newsdeck/internal/newsapi"
	"github.com/hitoshi/newsdeck/internal/repository"
	"github.com/hitoshi/newsdeck/internal/security"
)

const (
	// newsAPICacheEntries はインメモリキャッシュの最大エントリ数。
	newsAPICacheEntries = 512
	// newsAPITimeout はNews API呼び出し1回あたりのタイムアウト。
	newsAPITimeout = 10 * time.Second
	dbPingTimeout  = 5 * time.Second
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、LOG_LEVELに従ってJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, *slog.Logger, error) {
	// 設定読み込み前にログを使えるようにする
	log := logger.SetupDefault(w, slog.LevelInfo)

	cfg, err := config.Load()
	if err != nil {
		log.Error("設定の読み込みに失敗しました", slog.String("error", err.Error()))
		return nil, nil, fmt.Errorf("設定の読み込みに失敗しました: %w", err)
	}

	return cfg, logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel)), nil
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

	cfg, log, err := Init(w)
	if err != nil {
		return fmt.Errorf("初期化に失敗しました: %w", err)
	}

	log.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg, log)
	default:
		return runServe(cfg, log)
	}
}

// runServe はAPIサーバーモードで起動する。
// DBに接続して全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config, log *slog.Logger) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Ping(context.Background(), db, dbPingTimeout); err != nil {
		return err
	}
	log.Info("database connection established")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec := metrics.NewCollector(reg)

	newsCache, closeCache := newNewsAPICache(cfg, log)
	defer closeCache()

	deps := wire(cfg, log, services{
		follows:      repository.NewPostgresFollowRepo(db),
		catalog:      repository.NewPostgresCatalogRepo(db),
		interactions: repository.NewPostgresInteractionRepo(db),
		newsCache:    newsCache,
		metrics:      rec,
	})
	deps.HealthChecker = db
	deps.MetricsHandler = metrics.Handler(reg)
	defer deps.RateLimiter.Stop()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      handler.NewRouter(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTPサーバーの起動に失敗しました: %w", err)
	case <-stop:
	}
	log.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTPサーバーの停止に失敗しました: %w", err)
	}

	log.Info("API server stopped gracefully")
	return nil
}

// services はwireに渡す外部リソース依存のコンポーネント。
type services struct {
	follows      repository.FollowRepository
	catalog      repository.CatalogRepository
	interactions repository.InteractionRepository
	newsCache    newsapi.Cache
	metrics      metrics.Recorder
}

// wire はドメインサービスとハンドラーの依存関係を構築する。
// HealthCheckerとMetricsHandlerは呼び出し側で設定する。
func wire(cfg *config.Config, log *slog.Logger, s services) *handler.RouterDeps {
	var guard feed.Guard
	if cfg.SSRFProtection {
		guard = security.NewURLGuard()
	} else {
		log.Warn("SSRF protection is disabled")
	}

	fetcher := feed.NewHTTPFetcher(feed.FetcherConfig{
		ConnectTimeout: cfg.FetchConnectTimeout,
		ReadTimeout:    cfg.FetchReadTimeout,
		MaxBodySize:    cfg.FetchMaxSize,
	}, guard, s.metrics)
	feedService := feed.NewService(fetcher, feed.NewResolver(fetcher, log), s.metrics, log)

	if cfg.NewsAPIKey == "" {
		log.Warn("NEWSAPI_KEY is not set; News API results will be empty")
	}
	newsConfig := newsapi.ClientConfig{
		BaseURL:    cfg.NewsAPIBaseURL,
		APIKey:     cfg.NewsAPIKey,
		RatePerSec: cfg.NewsAPIRatePerSec,
	}
	log.Info("news api client configured", slog.String("config", newsConfig.String()))
	newsClient := newsapi.NewClient(&http.Client{Timeout: newsAPITimeout}, newsConfig, s.newsCache, s.metrics, log)

	followService := follow.NewService(s.follows, log)
	discoverService := discover.NewService(feedService, newsClient, s.catalog, followService, s.metrics, log, cfg.AggregateMaxConcurrent)
	interactionService := interaction.NewService(s.interactions, security.NewTextSanitizer(), log)

	return &handler.RouterDeps{
		Logger:             log,
		CORSAllowedOrigin:  cfg.CORSAllowedOrigin,
		RateLimiter:        middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitFollow), log),
		DiscoverService:    discoverService,
		FollowService:      followService,
		FollowedItems:      discoverService,
		InteractionService: interactionService,
	}
}

// newNewsAPICache はREDIS_ADDRが設定されていればRedis、なければインメモリのキャッシュを返す。
func newNewsAPICache(cfg *config.Config, log *slog.Logger) (newsapi.Cache, func()) {
	if cfg.RedisAddr == "" {
		return newsapi.NewMemoryCache(cfg.NewsAPICacheTTL, newsAPICacheEntries), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	log.Info("using redis cache for news api", slog.String("addr", cfg.RedisAddr), slog.Int("db", cfg.RedisDB))
	return newsapi.NewRedisCache(client, cfg.NewsAPICacheTTL, log), func() {
		if err := client.Close(); err != nil {
			log.Warn("failed to close redis client", slog.String("error", err.Error()))
		}
	}
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config, log *slog.Logger) error {
	log.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL, log); err != nil {
		return err
	}

	log.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("ヘルスチェックに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ヘルスチェックのステータスが異常です: %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードを伏せる。解析できない場合は全体を伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
