package feed

import (
	"fmt"
	"net/url"
)

const faviconServiceURL = "https://www.google.com/s2/favicons?domain=%s&sz=64"

// SiteURLFromFeedURL はフィードURLのスキームとホストからサイトURLを求める。
// 解析できない場合はフィードURLをそのまま返す。
func SiteURLFromFeedURL(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return feedURL
	}
	return u.Scheme + "://" + u.Host
}

// FaviconURL はサイトのホスト名からfaviconサービスのURLを組み立てる。
// ホスト名を特定できない場合は空文字列を返す。
func FaviconURL(siteURL string) string {
	u, err := url.Parse(siteURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return fmt.Sprintf(faviconServiceURL, url.QueryEscape(u.Hostname()))
}
