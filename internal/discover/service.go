// Package discover はフィード探索・記事集約のドメインロジックを提供する。
// News API、人気フィードカタログ、RSS/Atom、Redditの各ソースを統合する。
package discover

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/hitoshi/newsdeck/internal/feed"
	"github.com/hitoshi/newsdeck/internal/metrics"
	"github.com/hitoshi/newsdeck/internal/model"
	"github.com/hitoshi/newsdeck/internal/newsapi"
)

const (
	// FollowedItemsPerSource はフォロー中ソース1件あたりの集約件数。
	FollowedItemsPerSource = 5
	// FollowedItemsLimit はフォロー中フィード集約の最大件数。
	FollowedItemsLimit = 50
	// DefaultMaxConcurrent はソース取得の既定の最大並列数。
	DefaultMaxConcurrent = 4
)

// popularSubreddits はサブレディット検索の候補。
var popularSubreddits = []string{
	"programming", "kotlin", "java", "javascript", "python",
	"webdev", "android", "ios", "devops", "linux",
	"technology", "tech", "coding", "learnprogramming",
}

// FeedParser はRSS/Atom・Redditフィードの取得と解析を行う。
type FeedParser interface {
	ParseFeed(ctx context.Context, feedURL string) (*model.DiscoveredFeed, bool)
	ParseRedditFeed(ctx context.Context, subreddit string) (*model.SubredditFeed, bool)
}

// NewsSource はNews APIへの問い合わせを行う。
type NewsSource interface {
	Sources(ctx context.Context, p newsapi.SourcesParams) []newsapi.Source
	SourcesByCategory(ctx context.Context, category string) []newsapi.Source
	SearchSources(ctx context.Context, query, category string) []newsapi.Source
	TopHeadlines(ctx context.Context, p newsapi.HeadlinesParams) []newsapi.Article
	Everything(ctx context.Context, p newsapi.EverythingParams) ([]newsapi.Article, error)
	ArticlesBySource(ctx context.Context, sourceID string, size int) []newsapi.Article
}

// Catalog は人気フィードカタログを参照する。
type Catalog interface {
	Search(ctx context.Context, query string) ([]*model.CatalogEntry, error)
	FindByCategory(ctx context.Context, category string) ([]*model.CatalogEntry, error)
	ListAll(ctx context.Context) ([]*model.CatalogEntry, error)
	DistinctCategories(ctx context.Context) ([]string, error)
}

// FollowLookup はユーザーのフォロー状態を参照する。
type FollowLookup interface {
	IsFollowing(ctx context.Context, userID, feedURL string) (bool, error)
	ListFollowed(ctx context.Context, userID string) ([]*model.UserFeed, error)
	FollowedURLs(ctx context.Context, userID string) (map[string]struct{}, error)
}

// HeadlinesQuery はヘッドライン取得の条件。
type HeadlinesQuery struct {
	Country  string
	Category string
	Query    string
	PageSize int
}

// Service はフィード探索と記事集約のサービス層。
type Service struct {
	parser        FeedParser
	news          NewsSource
	catalog       Catalog
	follows       FollowLookup
	metrics       metrics.Recorder
	logger        *slog.Logger
	maxConcurrent int
}

// NewService はServiceの新しいインスタンスを生成する。
// maxConcurrentが0以下の場合はDefaultMaxConcurrentを用いる。
func NewService(
	parser FeedParser,
	news NewsSource,
	catalog Catalog,
	follows FollowLookup,
	rec metrics.Recorder,
	logger *slog.Logger,
	maxConcurrent int,
) *Service {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &Service{
		parser:        parser,
		news:          news,
		catalog:       catalog,
		follows:       follows,
		metrics:       rec,
		logger:        logger,
		maxConcurrent: maxConcurrent,
	}
}

// FeedsByCategory はNews APIのソースとカタログのフィードをカテゴリで絞り込んで統合する。
// categoryが空の場合は全件を対象とする。feedURLが重複した場合はNews API側を優先する。
func (s *Service) FeedsByCategory(ctx context.Context, userID, category string) ([]model.DiscoveredFeed, error) {
	category = strings.TrimSpace(category)

	followed, err := s.follows.FollowedURLs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("フォロー中URLの取得に失敗しました: %w", err)
	}

	var sources []newsapi.Source
	if category == "" {
		sources = s.news.Sources(ctx, newsapi.SourcesParams{})
	} else {
		sources = s.news.SourcesByCategory(ctx, category)
	}

	var entries []*model.CatalogEntry
	if category == "" {
		entries, err = s.catalog.ListAll(ctx)
	} else {
		entries, err = s.catalog.FindByCategory(ctx, category)
	}
	if err != nil {
		return nil, fmt.Errorf("カタログの取得に失敗しました: %w", err)
	}

	return mergeFeeds(sourceFeeds(sources, followed), catalogFeeds(entries, followed)), nil
}

// SearchFeeds はNews APIのソースとカタログをキーワードで検索して統合する。
// エラーは返さず、結果のMessageに格納する。
func (s *Service) SearchFeeds(ctx context.Context, userID, query string) model.DiscoverResult {
	query = strings.TrimSpace(query)
	result := model.DiscoverResult{Query: query, Feeds: []model.DiscoveredFeed{}}

	followed, err := s.follows.FollowedURLs(ctx, userID)
	if err != nil {
		return s.searchFailed(result, err)
	}

	sources := s.news.SearchSources(ctx, query, "")

	entries, err := s.catalog.Search(ctx, query)
	if err != nil {
		return s.searchFailed(result, err)
	}

	result.Feeds = mergeFeeds(sourceFeeds(sources, followed), catalogFeeds(entries, followed))
	result.TotalCount = len(result.Feeds)
	return result
}

func (s *Service) searchFailed(result model.DiscoverResult, err error) model.DiscoverResult {
	s.logger.Error("フィード検索に失敗しました",
		slog.String("query", result.Query),
		slog.String("error", err.Error()),
	)
	msg := fmt.Sprintf("検索中にエラーが発生しました: %s", err.Error())
	result.Message = &msg
	return result
}

// NewsAPISources はNews APIのソースをキーワードとカテゴリで検索する。
func (s *Service) NewsAPISources(ctx context.Context, userID, query, category string) ([]model.DiscoveredFeed, error) {
	followed, err := s.follows.FollowedURLs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("フォロー中URLの取得に失敗しました: %w", err)
	}
	return sourceFeeds(s.news.SearchSources(ctx, query, category), followed), nil
}

// NewsAPISourcesByCategory はNews APIのソースをカテゴリで取得する。空の場合は全件。
func (s *Service) NewsAPISourcesByCategory(ctx context.Context, userID, category string) ([]model.DiscoveredFeed, error) {
	followed, err := s.follows.FollowedURLs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("フォロー中URLの取得に失敗しました: %w", err)
	}

	var sources []newsapi.Source
	if strings.TrimSpace(category) == "" {
		sources = s.news.Sources(ctx, newsapi.SourcesParams{})
	} else {
		sources = s.news.SourcesByCategory(ctx, category)
	}
	return sourceFeeds(sources, followed), nil
}

// TopHeadlines はヘッドライン記事をFeedItemとして返す。
func (s *Service) TopHeadlines(ctx context.Context, q HeadlinesQuery) []model.FeedItem {
	articles := s.news.TopHeadlines(ctx, newsapi.HeadlinesParams{
		Country:  strings.TrimSpace(q.Country),
		Category: strings.ToLower(strings.TrimSpace(q.Category)),
		Query:    strings.TrimSpace(q.Query),
		PageSize: q.PageSize,
	})
	return newsapi.FeedItems(articles)
}

// ArticlesBySource は指定ソースの最新記事を返す。
func (s *Service) ArticlesBySource(ctx context.Context, sourceID string) []model.FeedItem {
	return newsapi.FeedItems(s.news.ArticlesBySource(ctx, sourceID, newsapi.SourcePreviewSize))
}

// SearchArticles はキーワードで記事を検索する。キーワードが空の場合は入力エラーを返す。
func (s *Service) SearchArticles(ctx context.Context, query string) ([]model.FeedItem, error) {
	articles, err := s.news.Everything(ctx, newsapi.EverythingParams{Query: query})
	if err != nil {
		return nil, err
	}
	return newsapi.FeedItems(articles), nil
}

// PreviewFeed はURL（フィードまたはサイトページ）を解決して記事プレビューを返す。
func (s *Service) PreviewFeed(ctx context.Context, userID, rawURL string) (*model.DiscoveredFeed, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, model.NewFeedURLRequiredError()
	}

	df, ok := s.parser.ParseFeed(ctx, rawURL)
	if !ok {
		return nil, model.NewFeedNotParsedError(rawURL)
	}

	followed, err := s.isFollowingAny(ctx, userID, df.FeedURL, rawURL)
	if err != nil {
		return nil, err
	}
	df.IsFollowed = followed
	return df, nil
}

// RedditFeed はサブレディットの投稿一覧を返す。
func (s *Service) RedditFeed(ctx context.Context, userID, subreddit string) (*model.SubredditFeed, error) {
	if feed.NormalizeSubreddit(subreddit) == "" {
		return nil, model.NewSubredditRequiredError()
	}

	sf, ok := s.parser.ParseRedditFeed(ctx, subreddit)
	if !ok {
		return nil, model.NewFeedNotParsedError(feed.SubredditFeedURL(feed.NormalizeSubreddit(subreddit)))
	}

	followed, err := s.follows.IsFollowing(ctx, userID, sf.FeedURL)
	if err != nil {
		return nil, fmt.Errorf("フォロー状態の確認に失敗しました: %w", err)
	}
	sf.IsFollowed = followed
	return sf, nil
}

// SearchSubreddits は人気サブレディットの中からqueryを含むものを取得する。
// 取得に失敗したサブレディットは除き、候補リストの順序を保つ。
func (s *Service) SearchSubreddits(ctx context.Context, userID, query string) []model.SubredditFeed {
	query = strings.ToLower(feed.NormalizeSubreddit(query))

	var names []string
	for _, name := range popularSubreddits {
		if strings.Contains(name, query) {
			names = append(names, name)
		}
	}

	feeds := gather(ctx, s.logger, s.maxConcurrent, names, func(ctx context.Context, name string) (model.SubredditFeed, bool) {
		sf, ok := s.parser.ParseRedditFeed(ctx, name)
		if !ok {
			return model.SubredditFeed{}, false
		}
		return *sf, true
	})

	followed, err := s.follows.FollowedURLs(ctx, userID)
	if err != nil {
		s.logger.Warn("フォロー中URLの取得に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return feeds
	}
	for i := range feeds {
		_, feeds[i].IsFollowed = followed[feeds[i].FeedURL]
	}
	return feeds
}

// FollowedFeedItems はフォロー中の各ソースから最新記事を取得し、公開日時の新しい順に最大50件を返す。
// ソースごとの失敗は他のソースに影響しない。公開日時のない記事は末尾に並ぶ。
func (s *Service) FollowedFeedItems(ctx context.Context, userID string) ([]model.FeedItem, error) {
	start := time.Now()

	follows, err := s.follows.ListFollowed(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("フォロー一覧の取得に失敗しました: %w", err)
	}
	if len(follows) == 0 {
		s.metrics.RecordAggregateItems(0)
		return []model.FeedItem{}, nil
	}

	perSource := gather(ctx, s.logger, s.maxConcurrent, follows, s.sourceItems)

	items := make([]model.FeedItem, 0, len(follows)*FollowedItemsPerSource)
	for _, list := range perSource {
		items = append(items, list...)
	}
	sortByPublishedDesc(items)
	if len(items) > FollowedItemsLimit {
		items = items[:FollowedItemsLimit]
	}

	s.metrics.RecordAggregateItems(len(items))
	s.logger.Info("フォロー中フィードを集約しました",
		slog.String("user_id", userID),
		slog.Int("source_count", len(follows)),
		slog.Int("succeeded_count", len(perSource)),
		slog.Int("item_count", len(items)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return items, nil
}

// sourceItems はフォロー中ソース1件の先頭記事を取得する。
func (s *Service) sourceItems(ctx context.Context, uf *model.UserFeed) ([]model.FeedItem, bool) {
	if feed.IsRedditURL(uf.FeedURL) {
		name := feed.SubredditFromURL(uf.FeedURL)
		if name == "" {
			s.logger.Warn("フィードURLからサブレディット名を特定できません",
				slog.String("feed_url", uf.FeedURL),
			)
			return nil, false
		}
		sf, ok := s.parser.ParseRedditFeed(ctx, name)
		if !ok {
			return nil, false
		}
		items := make([]model.FeedItem, 0, FollowedItemsPerSource)
		for _, p := range sf.Posts {
			if len(items) >= FollowedItemsPerSource {
				break
			}
			items = append(items, p.ToFeedItem())
		}
		return items, true
	}

	df, ok := s.parser.ParseFeed(ctx, uf.FeedURL)
	if !ok {
		return nil, false
	}
	items := make([]model.FeedItem, 0, FollowedItemsPerSource)
	for _, it := range df.Items {
		if len(items) >= FollowedItemsPerSource {
			break
		}
		if uf.FeedTitle != nil && *uf.FeedTitle != "" {
			title := *uf.FeedTitle
			it.SourceName = &title
		}
		items = append(items, it)
	}
	return items, true
}

// AllCategories はNews APIのカテゴリとカタログのカテゴリを統合し、
// 先頭を大文字にして重複を除き、辞書順で返す。
func (s *Service) AllCategories(ctx context.Context) ([]string, error) {
	catalogCategories, err := s.catalog.DistinctCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("カテゴリ一覧の取得に失敗しました: %w", err)
	}
	return mergeCategories(newsapi.Categories(), catalogCategories), nil
}

func (s *Service) isFollowingAny(ctx context.Context, userID string, urls ...string) (bool, error) {
	for _, u := range urls {
		ok, err := s.follows.IsFollowing(ctx, userID, u)
		if err != nil {
			return false, fmt.Errorf("フォロー状態の確認に失敗しました: %w", err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func sortByPublishedDesc(items []model.FeedItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].PublishedDate, items[j].PublishedDate
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}
