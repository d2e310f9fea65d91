package discover

import (
	"sort"
	"strings"

	"github.com/hitoshi/newsdeck/internal/feed"
	"github.com/hitoshi/newsdeck/internal/model"
	"github.com/hitoshi/newsdeck/internal/newsapi"
)

func sourceFeeds(sources []newsapi.Source, followed map[string]struct{}) []model.DiscoveredFeed {
	feeds := make([]model.DiscoveredFeed, 0, len(sources))
	for _, src := range sources {
		_, ok := followed[src.URL]
		feeds = append(feeds, src.ToDiscoveredFeed(ok))
	}
	return feeds
}

// catalogFeeds はカタログのエントリをDiscoveredFeedに変換する。
// サイトURLとfaviconが未登録の場合はフィードURLから求める。
func catalogFeeds(entries []*model.CatalogEntry, followed map[string]struct{}) []model.DiscoveredFeed {
	feeds := make([]model.DiscoveredFeed, 0, len(entries))
	for _, e := range entries {
		siteURL := feed.SiteURLFromFeedURL(e.FeedURL)
		if e.SiteURL != nil && *e.SiteURL != "" {
			siteURL = *e.SiteURL
		}
		favicon := e.FaviconURL
		if favicon == nil || *favicon == "" {
			favicon = model.StringPtr(feed.FaviconURL(siteURL))
		}
		description := e.Description
		if description != nil {
			description = model.StringPtr(feed.Truncate(*description, feed.FeedDescriptionLimit))
		}
		_, ok := followed[e.FeedURL]
		feeds = append(feeds, model.DiscoveredFeed{
			FeedURL:         e.FeedURL,
			SiteURL:         siteURL,
			Title:           e.Title,
			Description:     description,
			FaviconURL:      favicon,
			FeedType:        model.FeedTypeRSS,
			Category:        e.Category,
			SubscriberCount: e.SubscriberCount,
			Items:           []model.FeedItem{},
			IsFollowed:      ok,
		})
	}
	return feeds
}

// mergeFeeds はFeedURLで重複を除いて連結する。先に現れたものを残す。
func mergeFeeds(groups ...[]model.DiscoveredFeed) []model.DiscoveredFeed {
	seen := make(map[string]struct{})
	out := make([]model.DiscoveredFeed, 0)
	for _, g := range groups {
		for _, f := range g {
			if _, dup := seen[f.FeedURL]; dup {
				continue
			}
			seen[f.FeedURL] = struct{}{}
			out = append(out, f)
		}
	}
	return out
}

func mergeCategories(groups ...[]string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, g := range groups {
		for _, c := range g {
			c = newsapi.TitleCase(strings.TrimSpace(c))
			if c == "" {
				continue
			}
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}
