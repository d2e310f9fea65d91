package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

const (
	// RedditFeedTemplate はサブレディットのRSSエンドポイント。
	RedditFeedTemplate = "https://www.reddit.com/r/%s/.rss"
	// RedditIconURL はサブレディットに表示する固定アイコン。
	RedditIconURL = "https://www.redditstatic.com/desktop2x/img/favicon/android-icon-192x192.png"
	// RedditStaticMarker はサムネイル候補から除外するReddit静的アセットのURL断片。
	RedditStaticMarker = "reddit.com/static"
)

// PageFetcher はHTMLページ取得のインターフェース。
type PageFetcher interface {
	FetchPage(ctx context.Context, rawURL string) ([]byte, error)
}

// Resolver は入力URLを実際のフィードURLに解決する。
type Resolver struct {
	pages  PageFetcher
	logger *slog.Logger
}

// NewResolver はResolverを生成する。
func NewResolver(pages PageFetcher, logger *slog.Logger) *Resolver {
	return &Resolver{pages: pages, logger: logger}
}

// LooksLikePage はURLがフィードではなくWebページらしいかを判定する。
// 末尾が "/"、または .xml/.rss/.atom をいずれも含まない場合にtrue。
func LooksLikePage(rawURL string) bool {
	if strings.HasSuffix(rawURL, "/") {
		return true
	}
	return !strings.Contains(rawURL, ".xml") &&
		!strings.Contains(rawURL, ".rss") &&
		!strings.Contains(rawURL, ".atom")
}

// Resolve はWebページらしいURLならHTMLからフィードリンクを探す。
// 見つからない場合は入力をそのままフィードURLとして返す。
func (r *Resolver) Resolve(ctx context.Context, input string) string {
	input = strings.TrimSpace(input)
	if !LooksLikePage(input) {
		return input
	}
	if link, ok := r.ExtractFeedLink(ctx, input); ok {
		return link
	}
	return input
}

// ExtractFeedLink はページを取得し、最初のRSS/Atom代替リンクを返す。
func (r *Resolver) ExtractFeedLink(ctx context.Context, pageURL string) (string, bool) {
	body, err := r.pages.FetchPage(ctx, pageURL)
	if err != nil {
		r.logger.Debug("フィードリンク検出用のページ取得に失敗しました",
			slog.String("page_url", pageURL),
			slog.String("error", err.Error()),
		)
		return "", false
	}

	link := FeedLinkFromHTML(body, pageURL)
	if link == "" {
		r.logger.Debug("ページにフィードリンクがありません", slog.String("page_url", pageURL))
		return "", false
	}
	return link, true
}

// NormalizeSubreddit は前後の空白と先頭の "r/" を取り除く。大文字小文字は保持する。
func NormalizeSubreddit(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "r/")
	return strings.TrimSpace(name)
}

// SubredditFeedURL はサブレディット名からRSSエンドポイントを組み立てる。
func SubredditFeedURL(name string) string {
	return fmt.Sprintf(RedditFeedTemplate, url.PathEscape(NormalizeSubreddit(name)))
}

// IsRedditURL はURLがRedditのものかを判定する。
func IsRedditURL(rawURL string) bool {
	return strings.Contains(rawURL, "reddit.com")
}

// SubredditFromURL はRedditのURLから "/r/" 直後のセグメントを取り出す。
// 該当しない場合は空文字列を返す。
func SubredditFromURL(rawURL string) string {
	_, rest, ok := strings.Cut(rawURL, "/r/")
	if !ok {
		return ""
	}
	name, _, _ := strings.Cut(rest, "/")
	return name
}
