package model

import (
	"testing"
	"time"
)

func strp(s string) *string { return &s }

// TestMergeSnapshot_OverwritesOnlyNonNilFields はnilのフィールドが既存値を維持することを検証する。
func TestMergeSnapshot_OverwritesOnlyNonNilFields(t *testing.T) {
	base := ArticleInteraction{
		UserID:       "user-1",
		ArticleURL:   "https://example.com/a",
		Title:        strp("old title"),
		Description:  strp("old desc"),
		ThumbnailURL: strp("https://example.com/old.png"),
	}

	merged := MergeSnapshot(base, ArticleSnapshot{
		URL:      "https://example.com/a",
		Title:    strp("new title"),
		SiteName: strp("Example"),
	})

	if *merged.Title != "new title" {
		t.Errorf("Title = %q, want %q", *merged.Title, "new title")
	}
	if *merged.Description != "old desc" {
		t.Errorf("Description = %q, want %q", *merged.Description, "old desc")
	}
	if *merged.ThumbnailURL != "https://example.com/old.png" {
		t.Errorf("ThumbnailURL = %q, want old value", *merged.ThumbnailURL)
	}
	if merged.SiteName == nil || *merged.SiteName != "Example" {
		t.Errorf("SiteName = %v, want Example", merged.SiteName)
	}
}

// TestMergeSnapshot_DoesNotMutateBase はbaseが変更されないことを検証する。
func TestMergeSnapshot_DoesNotMutateBase(t *testing.T) {
	title := "original"
	base := ArticleInteraction{Title: &title}

	merged := MergeSnapshot(base, ArticleSnapshot{Title: strp("changed")})
	*merged.Title = "mutated after merge"

	if *base.Title != "original" {
		t.Errorf("base.Title = %q, want %q", *base.Title, "original")
	}
}

// TestMergeSnapshot_EmptyPatch は空のパッチで値が変わらないことを検証する。
func TestMergeSnapshot_EmptyPatch(t *testing.T) {
	base := ArticleInteraction{Title: strp("t"), Memo: strp("memo")}
	merged := MergeSnapshot(base, ArticleSnapshot{})
	if *merged.Title != "t" || *merged.Memo != "memo" {
		t.Errorf("merged = %+v, want unchanged", merged)
	}
}

// TestRedditPost_ToFeedItem は著者とソース名の書式を検証する。
func TestRedditPost_ToFeedItem(t *testing.T) {
	published := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	post := RedditPost{
		Title:         "Hello",
		Link:          "https://www.reddit.com/r/golang/comments/abc",
		Author:        "gopher",
		Subreddit:     "golang",
		PublishedDate: &published,
		SelfText:      strp("body"),
	}

	item := post.ToFeedItem()

	if *item.Author != "u/gopher" {
		t.Errorf("Author = %q, want %q", *item.Author, "u/gopher")
	}
	if *item.SourceName != "r/golang" {
		t.Errorf("SourceName = %q, want %q", *item.SourceName, "r/golang")
	}
	if *item.Description != "body" {
		t.Errorf("Description = %q, want %q", *item.Description, "body")
	}
	if !item.PublishedDate.Equal(published) {
		t.Errorf("PublishedDate = %v, want %v", item.PublishedDate, published)
	}
}

// TestStringPtr_Empty は空文字列がnilになることを検証する。
func TestStringPtr_Empty(t *testing.T) {
	if StringPtr("") != nil {
		t.Error("StringPtr(\"\") は nil を返すべき")
	}
	if p := StringPtr("x"); p == nil || *p != "x" {
		t.Errorf("StringPtr(\"x\") = %v, want x", p)
	}
}

// TestArticleURLHash はハッシュが64文字の16進数で決定的であることを検証する。
func TestArticleURLHash(t *testing.T) {
	h := ArticleURLHash("https://example.com/a")
	if len(h) != 64 {
		t.Fatalf("len = %d, want 64", len(h))
	}
	if h != ArticleURLHash("https://example.com/a") {
		t.Error("同じURLのハッシュは一致するべき")
	}
	if h == ArticleURLHash("https://example.com/b") {
		t.Error("異なるURLのハッシュは一致してはならない")
	}
	// echo -n "" | sha256sum
	if got := ArticleURLHash(""); got != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Errorf("ArticleURLHash(\"\") = %s", got)
	}
}
