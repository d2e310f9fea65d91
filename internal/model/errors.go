package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, feed, follow, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidURL         = "INVALID_URL"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeFeedURLRequired    = "FEED_URL_REQUIRED"
	ErrCodeArticleURLRequired = "ARTICLE_URL_REQUIRED"
	ErrCodeQueryRequired      = "QUERY_REQUIRED"
	ErrCodeSubredditRequired  = "SUBREDDIT_REQUIRED"
	ErrCodeSourceIDRequired   = "SOURCE_ID_REQUIRED"
	ErrCodeAlreadyFollowing   = "ALREADY_FOLLOWING"
	ErrCodeNotFollowing       = "NOT_FOLLOWING"
	ErrCodeFeedNotParsed      = "FEED_NOT_PARSED"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewUnauthorizedError はユーザーIDが特定できない場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "validation",
		Action:   "ログインしてください。",
	}
}

// NewFeedURLRequiredError はfeedUrlが未指定の場合のエラーを生成する。
func NewFeedURLRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeFeedURLRequired,
		Message:  "feedUrlが必要です。",
		Category: "validation",
		Action:   "フィードのURLを指定してください。",
	}
}

// NewArticleURLRequiredError は記事URLが未指定の場合のエラーを生成する。
func NewArticleURLRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeArticleURLRequired,
		Message:  "記事のURLが必要です。",
		Category: "validation",
		Action:   "記事のURLを指定してください。",
	}
}

// NewQueryRequiredError は検索キーワードが未指定の場合のエラーを生成する。
func NewQueryRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeQueryRequired,
		Message:  "検索キーワードが必要です。",
		Category: "validation",
		Action:   "キーワードを入力してから検索してください。",
	}
}

// NewSubredditRequiredError はサブレディット名が空の場合のエラーを生成する。
func NewSubredditRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeSubredditRequired,
		Message:  "サブレディット名が必要です。",
		Category: "validation",
		Action:   "r/programming のようにサブレディット名を入力してください。",
	}
}

// NewSourceIDRequiredError はNews APIのソースIDが未指定の場合のエラーを生成する。
func NewSourceIDRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeSourceIDRequired,
		Message:  "ソースIDが必要です。",
		Category: "validation",
		Action:   "sourceId を指定してください。",
	}
}

// NewAlreadyFollowingError はフォロー済みのフィードを再度フォローしようとした場合のエラーを生成する。
func NewAlreadyFollowingError(feedURL string) *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyFollowing,
		Message:  fmt.Sprintf("既にフォローしているフィードです: %s", feedURL),
		Category: "follow",
		Action:   "フォロー一覧から該当フィードを確認してください。",
	}
}

// NewNotFollowingError はフォローしていないフィードのフォロー解除エラーを生成する。
func NewNotFollowingError(feedURL string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFollowing,
		Message:  fmt.Sprintf("フォロー中のフィードではありません: %s", feedURL),
		Category: "follow",
		Action:   "フォロー一覧を再読み込みしてください。",
	}
}

// NewFeedNotParsedError はフィードを解析できなかった場合のエラーを生成する。
func NewFeedNotParsedError(feedURL string) *APIError {
	return &APIError{
		Code:     ErrCodeFeedNotParsed,
		Message:  fmt.Sprintf("フィードを解析できませんでした: %s", feedURL),
		Category: "feed",
		Action:   "RSS/AtomフィードのURLを直接入力するか、しばらく待ってから再度お試しください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterヘッダーの秒数だけ待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
