// Package feed は外部フィードの取得・解析・正規化を提供する。
package feed

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hitoshi/newsdeck/internal/metrics"
	"github.com/hitoshi/newsdeck/internal/model"
)

const (
	// PreviewSize はDiscoveredFeedに含める記事数。
	PreviewSize = 5
	// RedditPostLimit はサブレディットから取得する投稿数の上限。
	RedditPostLimit = 25
	// FeedDescriptionLimit はフィード概要とRedditの本文の最大文字数。
	FeedDescriptionLimit = 300
	// UnknownFeedTitle はタイトルのないフィードに使う名前。
	UnknownFeedTitle = "Unknown Feed"
)

// Fetcher はフィード取得のインターフェース。
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// URLResolver は入力URLをフィードURLに解決するインターフェース。
type URLResolver interface {
	Resolve(ctx context.Context, input string) string
}

// Service はフィードとサブレディットを解析してドメインモデルに変換する。
// 失敗はエラーとして返さず、ログに記録してokをfalseにする。
type Service struct {
	fetcher  Fetcher
	resolver URLResolver
	metrics  metrics.Recorder
	logger   *slog.Logger
}

// NewService はServiceを生成する。resolverがnilの場合は入力URLをそのまま使う。
func NewService(fetcher Fetcher, resolver URLResolver, rec metrics.Recorder, logger *slog.Logger) *Service {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Service{
		fetcher:  fetcher,
		resolver: resolver,
		metrics:  rec,
		logger:   logger,
	}
}

// ParseFeed はURLを解決してフィードを取得し、先頭PreviewSize件の記事を含むDiscoveredFeedを返す。
// IsFollowedは設定しない。
func (s *Service) ParseFeed(ctx context.Context, feedURL string) (*model.DiscoveredFeed, bool) {
	actual := strings.TrimSpace(feedURL)
	if s.resolver != nil {
		actual = s.resolver.Resolve(ctx, actual)
	}

	doc, ok := s.load(ctx, actual)
	if !ok {
		return nil, false
	}

	siteURL := doc.Link
	if siteURL == "" {
		siteURL = SiteURLFromFeedURL(actual)
	}
	title := doc.Title
	if title == "" {
		title = UnknownFeedTitle
	}

	result := &model.DiscoveredFeed{
		FeedURL:     actual,
		SiteURL:     siteURL,
		Title:       title,
		Description: model.StringPtr(Truncate(StripHTML(doc.Description), FeedDescriptionLimit)),
		FaviconURL:  model.StringPtr(FaviconURL(siteURL)),
		FeedType:    doc.Type,
		Items:       doc.Items(PreviewSize),
	}

	s.logger.Info("フィードを解析しました",
		slog.String("feed_url", actual),
		slog.String("title", title),
		slog.Int("items_count", len(result.Items)),
	)
	return result, true
}

// ParseRedditFeed はサブレディットのRSSを取得し、最大RedditPostLimit件の投稿を返す。
// IsFollowedは設定しない。
func (s *Service) ParseRedditFeed(ctx context.Context, subreddit string) (*model.SubredditFeed, bool) {
	name := NormalizeSubreddit(subreddit)
	if name == "" {
		s.logger.Warn("サブレディット名が空です", slog.String("input", subreddit))
		return nil, false
	}
	feedURL := SubredditFeedURL(name)

	doc, ok := s.load(ctx, feedURL)
	if !ok {
		return nil, false
	}

	posts := make([]model.RedditPost, 0, RedditPostLimit)
	for _, e := range doc.Entries {
		if len(posts) >= RedditPostLimit {
			break
		}
		if post, ok := redditPost(e, name); ok {
			posts = append(posts, post)
		}
	}

	title := doc.Title
	if title == "" {
		title = "r/" + name
	}

	s.logger.Info("サブレディットを解析しました",
		slog.String("subreddit", name),
		slog.Int("posts_count", len(posts)),
	)
	return &model.SubredditFeed{
		Subreddit:   name,
		FeedURL:     feedURL,
		Title:       title,
		Description: model.StringPtr(Truncate(StripHTML(doc.Description), FeedDescriptionLimit)),
		IconURL:     RedditIconURL,
		Posts:       posts,
	}, true
}

// load は取得とパースを行い、失敗時はログを出力する。
func (s *Service) load(ctx context.Context, feedURL string) (*Document, bool) {
	raw, err := s.fetcher.Fetch(ctx, feedURL)
	if err != nil {
		s.logger.Warn("フィードの取得に失敗しました",
			slog.String("feed_url", feedURL),
			slog.String("error", err.Error()),
		)
		return nil, false
	}

	doc, err := ParseDocument(raw)
	if err != nil {
		s.metrics.RecordParseFailure()
		s.logger.Warn("フィードのパースに失敗しました",
			slog.String("feed_url", feedURL),
			slog.String("error", err.Error()),
		)
		return nil, false
	}
	return doc, true
}

func redditPost(e Entry, subreddit string) (model.RedditPost, bool) {
	link := e.ResolvedLink()
	if link == "" {
		return model.RedditPost{}, false
	}

	title := strings.TrimSpace(e.Title)
	if title == "" {
		title = UntitledItem
	}

	author := strings.TrimPrefix(strings.TrimSpace(e.Author), "/u/")
	if author == "" {
		author = "unknown"
	}

	return model.RedditPost{
		Title:         title,
		Link:          link,
		Author:        author,
		Subreddit:     subreddit,
		PublishedDate: e.Published,
		SelfText:      model.StringPtr(Truncate(StripHTML(e.Body()), FeedDescriptionLimit)),
		ThumbnailURL:  model.StringPtr(redditThumbnail(e)),
	}, true
}

// redditThumbnail は画像の添付、なければ本文中の最初の<img>を使う。
func redditThumbnail(e Entry) string {
	if u := e.ImageEnclosure(); u != "" {
		return u
	}
	return FirstImageSrc(e.Body(), RedditStaticMarker)
}
