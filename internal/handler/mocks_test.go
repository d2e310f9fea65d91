package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/newsdeck/internal/discover"
	"github.com/hitoshi/newsdeck/internal/middleware"
	"github.com/hitoshi/newsdeck/internal/model"
)

// --- モック定義 ---

type mockDiscoverService struct {
	allCategoriesFn    func(ctx context.Context) ([]string, error)
	feedsByCategoryFn  func(ctx context.Context, userID, category string) ([]model.DiscoveredFeed, error)
	searchFeedsFn      func(ctx context.Context, userID, query string) model.DiscoverResult
	newsSourcesFn      func(ctx context.Context, userID, category string) ([]model.DiscoveredFeed, error)
	topHeadlinesFn     func(ctx context.Context, q discover.HeadlinesQuery) []model.FeedItem
	articlesBySourceFn func(ctx context.Context, sourceID string) []model.FeedItem
	searchArticlesFn   func(ctx context.Context, query string) ([]model.FeedItem, error)
	previewFeedFn      func(ctx context.Context, userID, rawURL string) (*model.DiscoveredFeed, error)
	redditFeedFn       func(ctx context.Context, userID, subreddit string) (*model.SubredditFeed, error)
	searchSubredditsFn func(ctx context.Context, userID, query string) []model.SubredditFeed
}

func (m *mockDiscoverService) AllCategories(ctx context.Context) ([]string, error) {
	if m.allCategoriesFn != nil {
		return m.allCategoriesFn(ctx)
	}
	return []string{"Technology"}, nil
}

func (m *mockDiscoverService) FeedsByCategory(ctx context.Context, userID, category string) ([]model.DiscoveredFeed, error) {
	if m.feedsByCategoryFn != nil {
		return m.feedsByCategoryFn(ctx, userID, category)
	}
	return nil, nil
}

func (m *mockDiscoverService) SearchFeeds(ctx context.Context, userID, query string) model.DiscoverResult {
	if m.searchFeedsFn != nil {
		return m.searchFeedsFn(ctx, userID, query)
	}
	return model.DiscoverResult{Query: query, Feeds: []model.DiscoveredFeed{}}
}

func (m *mockDiscoverService) NewsAPISourcesByCategory(ctx context.Context, userID, category string) ([]model.DiscoveredFeed, error) {
	if m.newsSourcesFn != nil {
		return m.newsSourcesFn(ctx, userID, category)
	}
	return nil, nil
}

func (m *mockDiscoverService) TopHeadlines(ctx context.Context, q discover.HeadlinesQuery) []model.FeedItem {
	if m.topHeadlinesFn != nil {
		return m.topHeadlinesFn(ctx, q)
	}
	return nil
}

func (m *mockDiscoverService) ArticlesBySource(ctx context.Context, sourceID string) []model.FeedItem {
	if m.articlesBySourceFn != nil {
		return m.articlesBySourceFn(ctx, sourceID)
	}
	return []model.FeedItem{}
}

func (m *mockDiscoverService) SearchArticles(ctx context.Context, query string) ([]model.FeedItem, error) {
	if m.searchArticlesFn != nil {
		return m.searchArticlesFn(ctx, query)
	}
	return nil, nil
}

func (m *mockDiscoverService) PreviewFeed(ctx context.Context, userID, rawURL string) (*model.DiscoveredFeed, error) {
	if m.previewFeedFn != nil {
		return m.previewFeedFn(ctx, userID, rawURL)
	}
	return nil, model.NewFeedNotParsedError(rawURL)
}

func (m *mockDiscoverService) RedditFeed(ctx context.Context, userID, subreddit string) (*model.SubredditFeed, error) {
	if m.redditFeedFn != nil {
		return m.redditFeedFn(ctx, userID, subreddit)
	}
	return nil, model.NewFeedNotParsedError(subreddit)
}

func (m *mockDiscoverService) SearchSubreddits(ctx context.Context, userID, query string) []model.SubredditFeed {
	if m.searchSubredditsFn != nil {
		return m.searchSubredditsFn(ctx, userID, query)
	}
	return nil
}

type mockFollowService struct {
	followFn       func(ctx context.Context, userID string, req model.FollowRequest) (*model.UserFeed, error)
	unfollowFn     func(ctx context.Context, userID, feedURL string) (int64, error)
	isFollowingFn  func(ctx context.Context, userID, feedURL string) (bool, error)
	listFollowedFn func(ctx context.Context, userID string) ([]*model.UserFeed, error)
	itemsFn        func(ctx context.Context, userID string) ([]model.FeedItem, error)
}

func (m *mockFollowService) Follow(ctx context.Context, userID string, req model.FollowRequest) (*model.UserFeed, error) {
	if m.followFn != nil {
		return m.followFn(ctx, userID, req)
	}
	return &model.UserFeed{ID: "uf-1", UserID: userID, FeedURL: req.FeedURL, FeedTitle: req.Title}, nil
}

func (m *mockFollowService) Unfollow(ctx context.Context, userID, feedURL string) (int64, error) {
	if m.unfollowFn != nil {
		return m.unfollowFn(ctx, userID, feedURL)
	}
	return 1, nil
}

func (m *mockFollowService) IsFollowing(ctx context.Context, userID, feedURL string) (bool, error) {
	if m.isFollowingFn != nil {
		return m.isFollowingFn(ctx, userID, feedURL)
	}
	return false, nil
}

func (m *mockFollowService) ListFollowed(ctx context.Context, userID string) ([]*model.UserFeed, error) {
	if m.listFollowedFn != nil {
		return m.listFollowedFn(ctx, userID)
	}
	return []*model.UserFeed{}, nil
}

func (m *mockFollowService) FollowedFeedItems(ctx context.Context, userID string) ([]model.FeedItem, error) {
	if m.itemsFn != nil {
		return m.itemsFn(ctx, userID)
	}
	return []model.FeedItem{}, nil
}

type mockInteractionService struct {
	toggleSaveFn func(ctx context.Context, userID string, snap model.ArticleSnapshot) (bool, error)
	markAsReadFn func(ctx context.Context, userID string, snap model.ArticleSnapshot) error
	updateMemoFn func(ctx context.Context, userID, memo string, snap model.ArticleSnapshot) error
	listSavedFn  func(ctx context.Context, userID string) ([]*model.ArticleInteraction, error)
}

func (m *mockInteractionService) ToggleSave(ctx context.Context, userID string, snap model.ArticleSnapshot) (bool, error) {
	if m.toggleSaveFn != nil {
		return m.toggleSaveFn(ctx, userID, snap)
	}
	return true, nil
}

func (m *mockInteractionService) MarkAsRead(ctx context.Context, userID string, snap model.ArticleSnapshot) error {
	if m.markAsReadFn != nil {
		return m.markAsReadFn(ctx, userID, snap)
	}
	return nil
}

func (m *mockInteractionService) UpdateMemo(ctx context.Context, userID, memo string, snap model.ArticleSnapshot) error {
	if m.updateMemoFn != nil {
		return m.updateMemoFn(ctx, userID, memo, snap)
	}
	return nil
}

func (m *mockInteractionService) ListSaved(ctx context.Context, userID string) ([]*model.ArticleInteraction, error) {
	if m.listSavedFn != nil {
		return m.listSavedFn(ctx, userID)
	}
	return []*model.ArticleInteraction{}, nil
}

type mockHealthChecker struct{ err error }

func (m mockHealthChecker) PingContext(context.Context) error { return m.err }

// --- テストヘルパー ---

type testEnv struct {
	discover    *mockDiscoverService
	follow      *mockFollowService
	interaction *mockInteractionService
	health      mockHealthChecker
	logs        *bytes.Buffer
	router      http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		discover:    &mockDiscoverService{},
		follow:      &mockFollowService{},
		interaction: &mockInteractionService{},
		logs:        &bytes.Buffer{},
	}
	return env
}

func (env *testEnv) build(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(env.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	rl := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(1000, 1000), logger)
	t.Cleanup(rl.Stop)

	env.router = NewRouter(&RouterDeps{
		Logger:             logger,
		CORSAllowedOrigin:  "http://localhost:5173",
		RateLimiter:        rl,
		HealthChecker:      env.health,
		MetricsHandler:     http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { _, _ = io.WriteString(w, "# metrics") }),
		DiscoverService:    env.discover,
		FollowService:      env.follow,
		FollowedItems:      env.follow,
		InteractionService: env.interaction,
	})
	return env.router
}

// do はユーザーID付きでリクエストを送信する。userIDが空の場合はヘッダーを付けない。
func (env *testEnv) do(t *testing.T, method, target, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	if env.router == nil {
		env.build(t)
	}
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set(middleware.UserIDHeader, userID)
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response: %v\nraw: %s", err, w.Body.String())
	}
	return out
}

func assertErrorCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d, body = %s", w.Code, status, w.Body.String())
	}
	if got := decodeBody(t, w)["code"]; got != code {
		t.Errorf("code = %v, want %s", got, code)
	}
}

var errDB = errors.New("db down")

func ts(h int) *time.Time {
	t := time.Date(2024, 6, 1, h, 0, 0, 0, time.UTC)
	return &t
}

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func contains(s, sub string) bool { return strings.Contains(s, sub) }
