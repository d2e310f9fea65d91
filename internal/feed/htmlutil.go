package feed

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// tagPattern はHTMLパースに失敗した場合のタグ除去に使用する。
var tagPattern = regexp.MustCompile(`<[^>]*>`)

// blockElements はテキスト抽出時に前後を空白で区切る要素。
var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Br: true, atom.Div: true, atom.Li: true,
	atom.Ul: true, atom.Ol: true, atom.Blockquote: true, atom.Pre: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Tr: true, atom.Td: true, atom.Th: true, atom.Table: true,
	atom.Section: true, atom.Article: true, atom.Header: true, atom.Footer: true,
	atom.Hr: true, atom.Img: true,
}

// StripHTML はHTML断片からテキストのみを取り出し、連続する空白を1つにまとめる。
// script/styleの中身は出力しない。パースに失敗した場合は正規表現でタグを除去する。
func StripHTML(s string) string {
	if s == "" {
		return ""
	}
	if !strings.ContainsAny(s, "<&") {
		return collapseSpace(s)
	}

	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return collapseSpace(html.UnescapeString(tagPattern.ReplaceAllString(s, " ")))
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if n.DataAtom == atom.Script || n.DataAtom == atom.Style {
				return
			}
			if blockElements[n.DataAtom] {
				b.WriteByte(' ')
				defer b.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return collapseSpace(b.String())
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate は文字列を先頭からmaxRunes文字（rune単位）に切り詰める。
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxRunes])
}

// FeedLinkFromHTML はHTML文書から最初のRSS/Atom代替リンクを探し、絶対URLで返す。
// 見つからない場合は空文字列を返す。
func FeedLinkFromHTML(body []byte, pageURL string) string {
	base, _ := url.Parse(pageURL)

	z := html.NewTokenizer(bytes.NewReader(body))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if !hasAttr || string(name) != "link" {
				continue
			}
			attrs := readAttrs(z)
			if !hasToken(attrs["rel"], "alternate") {
				continue
			}
			switch strings.ToLower(strings.TrimSpace(attrs["type"])) {
			case "application/rss+xml", "application/atom+xml":
			default:
				continue
			}
			if abs := absoluteURL(base, attrs["href"]); abs != "" {
				return abs
			}
		}
	}
}

// FirstImageSrc はHTML断片の<img>を順に調べ、rejectを含まない最初のsrcを返す。
func FirstImageSrc(fragment, reject string) string {
	if fragment == "" {
		return ""
	}

	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if !hasAttr || string(name) != "img" {
				continue
			}
			src := strings.TrimSpace(readAttrs(z)["src"])
			if src == "" || (reject != "" && strings.Contains(src, reject)) {
				continue
			}
			return src
		}
	}
}

// readAttrs は現在のタグの属性をキー小文字のマップとして読み出す。
func readAttrs(z *html.Tokenizer) map[string]string {
	attrs := make(map[string]string)
	for {
		key, val, more := z.TagAttr()
		k := strings.ToLower(string(key))
		if _, seen := attrs[k]; !seen {
			attrs[k] = string(val)
		}
		if !more {
			return attrs
		}
	}
}

// hasToken は空白区切りの属性値にtokenが含まれるかを判定する。
func hasToken(value, token string) bool {
	for _, f := range strings.Fields(value) {
		if strings.EqualFold(f, token) {
			return true
		}
	}
	return false
}

func absoluteURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if !ref.IsAbs() {
		return ""
	}
	return ref.String()
}
