// Package model はドメインモデルを定義する。
package model

import "time"

// FeedType はフィードソースの種類を表す。
type FeedType string

const (
	// FeedTypeRSS はRSSフィード（RSS 1.0/2.0）。
	FeedTypeRSS FeedType = "RSS"
	// FeedTypeAtom はAtomフィード。
	FeedTypeAtom FeedType = "Atom"
	// FeedTypeNewsAPI はNews API由来のソース。
	FeedTypeNewsAPI FeedType = "NewsAPI"
)

// FeedItem は正規化済みの記事1件を表す。
// Linkは同一性判定キーであり、空のFeedItemは生成されない。
type FeedItem struct {
	Title         string     `json:"title"`
	Link          string     `json:"link"`
	Description   *string    `json:"description"`
	Author        *string    `json:"author"`
	PublishedDate *time.Time `json:"publishedDate"`
	ThumbnailURL  *string    `json:"thumbnailUrl"`
	Categories    []string   `json:"categories"`
	SourceName    *string    `json:"sourceName"`
}

// DiscoveredFeed はフィードソースのメタデータと記事プレビューを表す。
type DiscoveredFeed struct {
	FeedURL         string     `json:"feedUrl"`
	SiteURL         string     `json:"siteUrl"`
	Title           string     `json:"title"`
	Description     *string    `json:"description"`
	FaviconURL      *string    `json:"faviconUrl"`
	FeedType        FeedType   `json:"feedType"`
	Category        *string    `json:"category"`
	SubscriberCount int        `json:"subscriberCount"`
	Items           []FeedItem `json:"items"`
	IsFollowed      bool       `json:"isFollowed"`
}

// SubredditFeed はサブレディットのフィードを表す。
type SubredditFeed struct {
	Subreddit   string       `json:"subreddit"`
	FeedURL     string       `json:"feedUrl"`
	Title       string       `json:"title"`
	Description *string      `json:"description"`
	IconURL     string       `json:"iconUrl"`
	Posts       []RedditPost `json:"posts"`
	IsFollowed  bool         `json:"isFollowed"`
}

// RedditPost はサブレディットの投稿1件を表す。
// Score、CommentCount、IsNSFWはRSSから取得できないため常にゼロ値となる。
type RedditPost struct {
	Title         string     `json:"title"`
	Link          string     `json:"link"`
	Author        string     `json:"author"`
	Subreddit     string     `json:"subreddit"`
	PublishedDate *time.Time `json:"publishedDate"`
	SelfText      *string    `json:"selfText"`
	ThumbnailURL  *string    `json:"thumbnailUrl"`
	Score         int        `json:"score"`
	CommentCount  int        `json:"commentCount"`
	IsNSFW        bool       `json:"isNsfw"`
}

// ToFeedItem はRedditPostを集約用のFeedItemに変換する。
// 著者は "u/<author>"、ソース名は "r/<subreddit>" となる。
func (p RedditPost) ToFeedItem() FeedItem {
	author := "u/" + p.Author
	source := "r/" + p.Subreddit
	return FeedItem{
		Title:         p.Title,
		Link:          p.Link,
		Description:   p.SelfText,
		Author:        &author,
		PublishedDate: p.PublishedDate,
		ThumbnailURL:  p.ThumbnailURL,
		Categories:    []string{},
		SourceName:    &source,
	}
}

// DiscoverResult はフィード検索の結果を表す。
// 検索中のエラーは返さず、Messageに格納する。
type DiscoverResult struct {
	Query      string           `json:"query"`
	Feeds      []DiscoveredFeed `json:"feeds"`
	TotalCount int              `json:"totalCount"`
	Message    *string          `json:"message"`
}

// CatalogEntry はローカルに登録された人気フィードを表す。
type CatalogEntry struct {
	ID              string
	FeedURL         string
	SiteURL         *string
	Title           string
	Description     *string
	Category        *string
	FaviconURL      *string
	SubscriberCount int
	CreatedAt       time.Time
}

// StringPtr は空文字列をnilとして扱うポインタを返す。
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
