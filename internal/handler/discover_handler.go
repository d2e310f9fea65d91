package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/newsdeck/internal/discover"
	"github.com/hitoshi/newsdeck/internal/feed"
	"github.com/hitoshi/newsdeck/internal/model"
	"github.com/hitoshi/newsdeck/internal/newsapi"
)

const (
	// discoverHeadlinesLimit は探索画面に返すヘッドラインの最大件数。
	discoverHeadlinesLimit = 20
	// redditSuggestionLimit はサブレディット検索の候補の最大件数。
	redditSuggestionLimit = 4
)

// DiscoverServiceInterface は探索ハンドラーが必要とするサービスインターフェース。
type DiscoverServiceInterface interface {
	AllCategories(ctx context.Context) ([]string, error)
	FeedsByCategory(ctx context.Context, userID, category string) ([]model.DiscoveredFeed, error)
	SearchFeeds(ctx context.Context, userID, query string) model.DiscoverResult
	NewsAPISourcesByCategory(ctx context.Context, userID, category string) ([]model.DiscoveredFeed, error)
	TopHeadlines(ctx context.Context, q discover.HeadlinesQuery) []model.FeedItem
	ArticlesBySource(ctx context.Context, sourceID string) []model.FeedItem
	SearchArticles(ctx context.Context, query string) ([]model.FeedItem, error)
	PreviewFeed(ctx context.Context, userID, rawURL string) (*model.DiscoveredFeed, error)
	RedditFeed(ctx context.Context, userID, subreddit string) (*model.SubredditFeed, error)
	SearchSubreddits(ctx context.Context, userID, query string) []model.SubredditFeed
}

// DiscoverHandler はフィード探索・ニュースのHTTPハンドラー。
type DiscoverHandler struct {
	service DiscoverServiceInterface
	logger  *slog.Logger
}

// NewDiscoverHandler はDiscoverHandlerを生成する。
func NewDiscoverHandler(service DiscoverServiceInterface, logger *slog.Logger) *DiscoverHandler {
	return &DiscoverHandler{service: service, logger: logger}
}

type discoverResponse struct {
	Categories       []string               `json:"categories"`
	SelectedCategory string                 `json:"selectedCategory"`
	Query            string                 `json:"query"`
	View             string                 `json:"view"`
	Feeds            []model.DiscoveredFeed `json:"feeds,omitempty"`
	FeedCount        *int                   `json:"feedCount,omitempty"`
	Headlines        []model.FeedItem       `json:"headlines,omitempty"`
}

// Discover は探索画面のデータを返す。
// GET /api/discover?query=&category=&source=&view=headlines|feeds|all
func (h *DiscoverHandler) Discover(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("query"))
	category := strings.TrimSpace(q.Get("category"))
	source := q.Get("source")
	view := q.Get("view")
	if view == "" {
		view = "headlines"
	}

	categories, err := h.service.AllCategories(r.Context())
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	resp := discoverResponse{
		Categories:       categories,
		SelectedCategory: category,
		Query:            query,
		View:             view,
	}

	if view == "feeds" || view == "all" || query != "" {
		var feeds []model.DiscoveredFeed
		switch {
		case query != "":
			feeds = h.service.SearchFeeds(r.Context(), userID, query).Feeds
		case source == "newsapi":
			feeds, err = h.service.NewsAPISourcesByCategory(r.Context(), userID, strings.ToLower(category))
		default:
			feeds, err = h.service.FeedsByCategory(r.Context(), userID, category)
		}
		if err != nil {
			handleServiceError(w, r, h.logger, err)
			return
		}
		if feeds == nil {
			feeds = []model.DiscoveredFeed{}
		}
		count := len(feeds)
		resp.Feeds = feeds
		resp.FeedCount = &count
	}

	if (view == "headlines" || view == "all") && query == "" {
		headlines := h.service.TopHeadlines(r.Context(), discover.HeadlinesQuery{Category: category})
		if len(headlines) > discoverHeadlinesLimit {
			headlines = headlines[:discoverHeadlinesLimit]
		}
		resp.Headlines = headlines
	}

	writeJSON(w, http.StatusOK, resp)
}

// Categories は全カテゴリを返す。
// GET /api/discover/categories
func (h *DiscoverHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.AllCategories(r.Context())
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

// Search はキーワードでフィードを検索する。エラーはMessageに格納され、常に200を返す。
// GET /api/discover/search?q=
func (h *DiscoverHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		handleServiceError(w, r, h.logger, model.NewQueryRequiredError())
		return
	}
	writeJSON(w, http.StatusOK, h.service.SearchFeeds(r.Context(), userID, query))
}

// Preview はフィードの記事プレビューを返す。
// GET /api/discover/preview?feedUrl=
func (h *DiscoverHandler) Preview(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	df, err := h.service.PreviewFeed(r.Context(), userID, r.URL.Query().Get("feedUrl"))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "成功", Data: df})
}

// Articles はNews APIソースの最新記事を返す。
// GET /api/discover/articles?sourceId=
func (h *DiscoverHandler) Articles(w http.ResponseWriter, r *http.Request) {
	sourceID := strings.TrimSpace(r.URL.Query().Get("sourceId"))
	if sourceID == "" {
		handleServiceError(w, r, h.logger, model.NewSourceIDRequiredError())
		return
	}

	articles := h.service.ArticlesBySource(r.Context(), sourceID)
	writeJSON(w, http.StatusOK, apiResponse{
		Success: true,
		Message: fmt.Sprintf("%d件の記事が見つかりました。", len(articles)),
		Data:    articles,
	})
}

type redditResponse struct {
	Query        string                `json:"query"`
	Found        bool                  `json:"found"`
	Subreddit    *model.SubredditFeed  `json:"subreddit,omitempty"`
	ErrorMessage string                `json:"errorMessage,omitempty"`
	Suggestions  []model.SubredditFeed `json:"suggestions"`
}

// Reddit はサブレディットの投稿と関連サブレディットの候補を返す。
// 見つからない場合も200で応答し、errorMessageに理由を格納する。
// GET /api/discover/reddit?query=
func (h *DiscoverHandler) Reddit(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	name := feed.NormalizeSubreddit(query)

	resp := redditResponse{Query: query, Suggestions: []model.SubredditFeed{}}

	sf, err := h.service.RedditFeed(r.Context(), userID, query)
	switch {
	case err == nil:
		resp.Found = true
		resp.Subreddit = sf
	case isCode(err, model.ErrCodeFeedNotParsed):
		resp.ErrorMessage = fmt.Sprintf("サブレディット 'r/%s' が見つかりませんでした。", name)
	default:
		handleServiceError(w, r, h.logger, err)
		return
	}

	for _, s := range h.service.SearchSubreddits(r.Context(), userID, query) {
		if len(resp.Suggestions) >= redditSuggestionLimit {
			break
		}
		if strings.EqualFold(s.Subreddit, name) {
			continue
		}
		resp.Suggestions = append(resp.Suggestions, s)
	}

	writeJSON(w, http.StatusOK, resp)
}

type newsResponse struct {
	Query            string            `json:"query"`
	SelectedCategory string            `json:"selectedCategory"`
	SelectedCountry  string            `json:"selectedCountry"`
	Categories       []string          `json:"categories"`
	Countries        []newsapi.Country `json:"countries"`
	Articles         []model.FeedItem  `json:"articles"`
	ArticleCount     int               `json:"articleCount"`
}

// News はヘッドラインまたはキーワード検索の記事一覧を返す。
// GET /api/news?query=&category=&country=us
func (h *DiscoverHandler) News(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("query"))
	category := strings.TrimSpace(q.Get("category"))
	country := strings.TrimSpace(q.Get("country"))
	if country == "" {
		country = newsapi.DefaultCountry
	}

	var articles []model.FeedItem
	if query != "" {
		var err error
		articles, err = h.service.SearchArticles(r.Context(), query)
		if err != nil {
			handleServiceError(w, r, h.logger, err)
			return
		}
	} else {
		articles = h.service.TopHeadlines(r.Context(), discover.HeadlinesQuery{
			Country:  country,
			Category: category,
		})
	}
	if articles == nil {
		articles = []model.FeedItem{}
	}

	categories := newsapi.Categories()
	for i, c := range categories {
		categories[i] = newsapi.TitleCase(c)
	}

	writeJSON(w, http.StatusOK, newsResponse{
		Query:            query,
		SelectedCategory: category,
		SelectedCountry:  country,
		Categories:       categories,
		Countries:        newsapi.Countries(),
		Articles:         articles,
		ArticleCount:     len(articles),
	})
}
