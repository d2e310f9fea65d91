package newsapi

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/hitoshi/newsdeck/internal/feed"
	"github.com/hitoshi/newsdeck/internal/model"
)

// localDateLayout はタイムゾーン表記のない日時の形式。
const localDateLayout = "2006-01-02T15:04:05"

// ToFeedItem は記事をFeedItemに変換する。URLのない記事はfalseを返す。
func (a Article) ToFeedItem() (model.FeedItem, bool) {
	link := strings.TrimSpace(a.URL)
	if link == "" {
		return model.FeedItem{}, false
	}

	title := strings.TrimSpace(a.Title)
	if title == "" {
		title = feed.UntitledItem
	}

	item := model.FeedItem{
		Title:         title,
		Link:          link,
		Description:   model.StringPtr(feed.Truncate(feed.StripHTML(a.Description), feed.ItemDescriptionLimit)),
		Author:        model.StringPtr(strings.TrimSpace(a.Author)),
		PublishedDate: parseDate(a.PublishedAt),
		ThumbnailURL:  model.StringPtr(strings.TrimSpace(a.URLToImage)),
		Categories:    []string{},
	}
	if a.Source != nil {
		item.SourceName = model.StringPtr(strings.TrimSpace(a.Source.Name))
	}
	return item, true
}

// FeedItems は記事の一覧をFeedItemに変換する。URLのない記事は除外する。
func FeedItems(articles []Article) []model.FeedItem {
	items := make([]model.FeedItem, 0, len(articles))
	for _, a := range articles {
		if item, ok := a.ToFeedItem(); ok {
			items = append(items, item)
		}
	}
	return items
}

// ToDiscoveredFeed はソースをDiscoveredFeedに変換する。
// ソースのURLをフィードURLとサイトURLの両方に用いる。
func (s Source) ToDiscoveredFeed(followed bool) model.DiscoveredFeed {
	return model.DiscoveredFeed{
		FeedURL:     s.URL,
		SiteURL:     s.URL,
		Title:       s.Name,
		Description: model.StringPtr(feed.Truncate(s.Description, feed.FeedDescriptionLimit)),
		FaviconURL:  model.StringPtr(feed.FaviconURL(s.URL)),
		FeedType:    model.FeedTypeNewsAPI,
		Category:    model.StringPtr(TitleCase(s.Category)),
		Items:       []model.FeedItem{},
		IsFollowed:  followed,
	}
}

// TitleCase は先頭の1文字を大文字にする。
func TitleCase(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// parseDate はISO 8601の日時を解釈してUTCで返す。
// オフセットのない日時はローカル時刻として扱う。どちらでもなければnilを返す。
func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		t = t.UTC()
		return &t
	}
	t, err := time.ParseInLocation(localDateLayout, strings.ReplaceAll(s, "Z", ""), time.Local)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
