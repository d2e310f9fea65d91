package feed

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/newsdeck/internal/model"
)

const (
	// UntitledItem はタイトルのない記事に使用するプレースホルダー。
	UntitledItem = "(タイトルなし)"
	// ItemDescriptionLimit は記事概要の最大文字数。
	ItemDescriptionLimit = 200
)

// ErrNotFeed はRSS/Atom以外の文書を受け取ったことを示す。
var ErrNotFeed = errors.New("document is not an RSS or Atom feed")

// Document はパース済みフィードの中間表現。
type Document struct {
	Title       string
	Description string
	Link        string
	Type        model.FeedType
	Entries     []Entry
}

// Enclosure は記事の添付メディア。
type Enclosure struct {
	URL  string
	Type string
}

// Entry はフィード内の記事1件の中間表現。
// 値はフィードに書かれたものをそのまま保持し、正規化はToFeedItemで行う。
type Entry struct {
	Title       string
	Link        string
	GUID        string
	Description string
	Content     string
	Author      string
	Published   *time.Time
	Enclosures  []Enclosure
	Categories  []string
}

// ParseDocument はRSS 1.0/2.0またはAtomのバイト列をパースする。
// 形式はgofeedが自動判定する。JSON Feedなど他の形式はErrNotFeedとなる。
func ParseDocument(raw []byte) (*Document, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("フィードのパースに失敗しました: %w", ErrNotFeed)
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("フィードのパースに失敗しました: %w", err)
	}

	var feedType model.FeedType
	switch t := strings.ToLower(parsed.FeedType); {
	case strings.Contains(t, "atom"):
		feedType = model.FeedTypeAtom
	case strings.Contains(t, "rss"):
		feedType = model.FeedTypeRSS
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotFeed, parsed.FeedType)
	}

	doc := &Document{
		Title:       strings.TrimSpace(parsed.Title),
		Description: parsed.Description,
		Link:        strings.TrimSpace(parsed.Link),
		Type:        feedType,
		Entries:     make([]Entry, 0, len(parsed.Items)),
	}
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		doc.Entries = append(doc.Entries, entryFromItem(item))
	}
	return doc, nil
}

func entryFromItem(item *gofeed.Item) Entry {
	e := Entry{
		Title:       item.Title,
		Link:        strings.TrimSpace(item.Link),
		GUID:        strings.TrimSpace(item.GUID),
		Description: item.Description,
		Content:     item.Content,
	}

	if item.Author != nil {
		e.Author = item.Author.Name
	}
	if e.Author == "" && len(item.Authors) > 0 && item.Authors[0] != nil {
		e.Author = item.Authors[0].Name
	}

	// 公開日時がなければ更新日時を使う。どちらも解析できなければnil
	switch {
	case item.PublishedParsed != nil:
		t := item.PublishedParsed.UTC()
		e.Published = &t
	case item.UpdatedParsed != nil:
		t := item.UpdatedParsed.UTC()
		e.Published = &t
	}

	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		e.Enclosures = append(e.Enclosures, Enclosure{URL: enc.URL, Type: enc.Type})
	}

	for _, c := range item.Categories {
		if c = strings.TrimSpace(c); c != "" {
			e.Categories = append(e.Categories, c)
		}
	}
	return e
}

// ResolvedLink は記事のリンクを返す。linkがない場合はURL形式のGUIDを使う。
func (e Entry) ResolvedLink() string {
	if e.Link != "" {
		return e.Link
	}
	if strings.HasPrefix(e.GUID, "http://") || strings.HasPrefix(e.GUID, "https://") {
		return e.GUID
	}
	return ""
}

// ImageEnclosure はMIMEタイプがimageで始まる最初の添付のURLを返す。
func (e Entry) ImageEnclosure() string {
	for _, enc := range e.Enclosures {
		if strings.HasPrefix(strings.ToLower(enc.Type), "image") {
			return enc.URL
		}
	}
	return ""
}

// Body は概要、なければ本文を返す。
func (e Entry) Body() string {
	if strings.TrimSpace(e.Description) != "" {
		return e.Description
	}
	return e.Content
}

// ToFeedItem はEntryをFeedItemに正規化する。
// リンクを特定できない記事はokがfalseとなる。
func (e Entry) ToFeedItem() (model.FeedItem, bool) {
	link := e.ResolvedLink()
	if link == "" {
		return model.FeedItem{}, false
	}

	title := strings.TrimSpace(e.Title)
	if title == "" {
		title = UntitledItem
	}

	categories := make([]string, len(e.Categories))
	copy(categories, e.Categories)

	item := model.FeedItem{
		Title:         title,
		Link:          link,
		Description:   model.StringPtr(Truncate(StripHTML(e.Body()), ItemDescriptionLimit)),
		Author:        model.StringPtr(strings.TrimSpace(e.Author)),
		PublishedDate: e.Published,
		ThumbnailURL:  model.StringPtr(e.ImageEnclosure()),
		Categories:    categories,
	}
	return item, true
}

// Items はリンクを持つ記事をフィード順に最大limit件返す。limitが0以下なら全件。
func (d *Document) Items(limit int) []model.FeedItem {
	items := make([]model.FeedItem, 0)
	for _, e := range d.Entries {
		if limit > 0 && len(items) >= limit {
			break
		}
		if item, ok := e.ToFeedItem(); ok {
			items = append(items, item)
		}
	}
	return items
}
