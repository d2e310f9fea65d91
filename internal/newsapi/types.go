package newsapi

// statusOK はNews APIが成功時に返すstatusフィールドの値。
const statusOK = "ok"

// sourcesResponse は /sources エンドポイントのレスポンス。
type sourcesResponse struct {
	Status  string   `json:"status"`
	Sources []Source `json:"sources"`
	Code    string   `json:"code"`
	Message string   `json:"message"`
}

// Source はNews APIのニュースソースを表す。
type Source struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Category    string `json:"category"`
	Language    string `json:"language"`
	Country     string `json:"country"`
}

// articlesResponse は /top-headlines と /everything エンドポイントのレスポンス。
type articlesResponse struct {
	Status       string    `json:"status"`
	TotalResults int       `json:"totalResults"`
	Articles     []Article `json:"articles"`
	Code         string    `json:"code"`
	Message      string    `json:"message"`
}

// Article はNews APIの記事を表す。
type Article struct {
	Source      *ArticleSource `json:"source"`
	Author      string         `json:"author"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	URL         string         `json:"url"`
	URLToImage  string         `json:"urlToImage"`
	PublishedAt string         `json:"publishedAt"`
	Content     string         `json:"content"`
}

// ArticleSource は記事に付随するソース情報。
type ArticleSource struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Country はNews APIで扱う国コードと表示名の組。
type Country struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// SourcesParams は /sources の検索条件。空のフィールドは送信しない。
type SourcesParams struct {
	Category string
	Language string
	Country  string
}

// HeadlinesParams は /top-headlines の検索条件。
// Sourcesを指定した場合、CountryとCategoryは送信しない。
type HeadlinesParams struct {
	Country  string
	Category string
	Sources  string
	Query    string
	PageSize int
}

// EverythingParams は /everything の検索条件。Queryは必須。
type EverythingParams struct {
	Query    string
	Sources  string
	Domains  string
	From     string
	To       string
	Language string
	SortBy   string
	PageSize int
}
