package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はクライアントから受け取った記事スナップショットを
// プレーンテキストに正規化する。タグはすべて除去される。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はStrictPolicyを使うTextSanitizerを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// Clean はHTMLタグを除去し、エンティティを復元して前後の空白を取り除く。
func (s *TextSanitizer) Clean(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}

// CleanPtr はnilを保持したままCleanを適用する。結果が空の場合はnilを返す。
func (s *TextSanitizer) CleanPtr(raw *string) *string {
	if raw == nil {
		return nil
	}
	cleaned := s.Clean(*raw)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}
