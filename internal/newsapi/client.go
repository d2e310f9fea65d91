// Package newsapi はNews API（https://newsapi.org）のクライアントを提供する。
// ソース一覧・ヘッドライン・記事検索の呼び出しと、応答のキャッシュを含む。
package newsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/hitoshi/newsdeck/internal/metrics"
	"github.com/hitoshi/newsdeck/internal/model"
)

const (
	// DefaultBaseURL はNews API v2のベースURL。
	DefaultBaseURL = "https://newsapi.org/v2"
	// DefaultCountry はヘッドライン取得時の既定の国コード。
	DefaultCountry = "us"
	// DefaultPageSize はページサイズ未指定時の件数。
	DefaultPageSize = 10
	// MaxPageSize はNews APIが受け付けるページサイズの上限。
	MaxPageSize = 100
	// SourcePreviewSize はソース別記事プレビューの既定件数。
	SourcePreviewSize = 5

	defaultLanguage = "en"
	defaultSortBy   = "publishedAt"

	// maxResponseSize はレスポンスボディの読み取り上限。
	maxResponseSize = 5 << 20

	endpointSources   = "sources"
	endpointHeadlines = "top-headlines"
	endpointSearch    = "everything"
)

var categories = []string{
	"business", "entertainment", "general",
	"health", "science", "sports", "technology",
}

var countries = []Country{
	{Code: "us", Name: "アメリカ"},
	{Code: "gb", Name: "イギリス"},
	{Code: "kr", Name: "韓国"},
	{Code: "jp", Name: "日本"},
	{Code: "de", Name: "ドイツ"},
	{Code: "fr", Name: "フランス"},
}

// ClientConfig はClientの接続設定を保持する。
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	RatePerSec float64 // 0以下の場合は無制限
}

// Client はNews APIのクライアント。
// 呼び出しの失敗はエラーとして返さず、ログとメトリクスに記録して空の結果を返す。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string // テスト用にエンドポイントを差し替え可能
	apiKey     string
	limiter    *rate.Limiter
	cache      Cache
	metrics    metrics.Recorder
}

// NewClient はClientの新しいインスタンスを生成する。
// cacheがnilの場合はキャッシュしない。recがnilの場合はメトリクスを記録しない。
func NewClient(httpClient *http.Client, cfg ClientConfig, cache Cache, rec metrics.Recorder, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if cache == nil {
		cache = noCache{}
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	endpoint := strings.TrimRight(cfg.BaseURL, "/")
	if endpoint == "" {
		endpoint = DefaultBaseURL
	}
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   endpoint,
		apiKey:     cfg.APIKey,
		limiter:    rate.NewLimiter(limit, 1),
		cache:      cache,
		metrics:    rec,
	}
}

// Categories はNews APIのカテゴリ一覧を返す。
func Categories() []string {
	out := make([]string, len(categories))
	copy(out, categories)
	return out
}

// Countries はヘッドライン取得に対応する国の一覧を返す。
func Countries() []Country {
	out := make([]Country, len(countries))
	copy(out, countries)
	return out
}

// Sources はニュースソース一覧を取得する。
func (c *Client) Sources(ctx context.Context, p SourcesParams) []Source {
	q := url.Values{}
	setIfNotEmpty(q, "category", p.Category)
	setIfNotEmpty(q, "language", p.Language)
	setIfNotEmpty(q, "country", p.Country)

	var resp sourcesResponse
	if !c.get(ctx, endpointSources, q, &resp) {
		return []Source{}
	}
	if !c.statusOK(endpointSources, resp.Status, resp.Code, resp.Message) {
		return []Source{}
	}

	c.logger.Debug("ニュースソースを取得しました",
		slog.String("category", p.Category),
		slog.Int("count", len(resp.Sources)),
	)
	if resp.Sources == nil {
		return []Source{}
	}
	return resp.Sources
}

// SourcesByCategory はカテゴリ（大文字小文字を区別しない）でソースを取得する。
func (c *Client) SourcesByCategory(ctx context.Context, category string) []Source {
	return c.Sources(ctx, SourcesParams{Category: strings.ToLower(category)})
}

// SearchSources はソース一覧を取得し、名前・説明・カテゴリの部分一致で絞り込む。
// 照合は大文字小文字を区別しない。queryが空の場合は絞り込まない。
func (c *Client) SearchSources(ctx context.Context, query, category string) []Source {
	all := c.Sources(ctx, SourcesParams{Category: strings.ToLower(category)})

	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return all
	}

	matched := make([]Source, 0, len(all))
	for _, s := range all {
		if strings.Contains(strings.ToLower(s.Name), query) ||
			strings.Contains(strings.ToLower(s.Description), query) ||
			strings.Contains(strings.ToLower(s.Category), query) {
			matched = append(matched, s)
		}
	}
	return matched
}

// TopHeadlines はヘッドライン記事を取得する。
// Sourcesを指定した場合はCountryとCategoryを無視する（News APIの制約）。
func (c *Client) TopHeadlines(ctx context.Context, p HeadlinesParams) []Article {
	p.PageSize = clampPageSize(p.PageSize)
	if p.Sources == "" && p.Country == "" {
		p.Country = DefaultCountry
	}

	key := strings.Join([]string{
		endpointHeadlines, p.Country, p.Category, p.Sources, p.Query, strconv.Itoa(p.PageSize),
	}, "|")
	if cached, ok := c.cache.Get(ctx, key); ok {
		c.metrics.RecordCache(endpointHeadlines, true)
		return cached
	}
	c.metrics.RecordCache(endpointHeadlines, false)

	q := url.Values{}
	if p.Sources != "" {
		q.Set("sources", p.Sources)
	} else {
		setIfNotEmpty(q, "country", p.Country)
		setIfNotEmpty(q, "category", p.Category)
	}
	setIfNotEmpty(q, "q", p.Query)
	q.Set("pageSize", strconv.Itoa(p.PageSize))

	articles := c.articles(ctx, endpointHeadlines, q)
	if len(articles) > 0 {
		c.cache.Set(ctx, key, articles)
	}
	return articles
}

// Everything はキーワードで記事を全文検索する。
// キーワードが空の場合は外部呼び出しを行わずに入力エラーを返す。
func (c *Client) Everything(ctx context.Context, p EverythingParams) ([]Article, error) {
	p.Query = strings.TrimSpace(p.Query)
	if p.Query == "" {
		return nil, model.NewQueryRequiredError()
	}
	if p.Language == "" {
		p.Language = defaultLanguage
	}
	if p.SortBy == "" {
		p.SortBy = defaultSortBy
	}
	p.PageSize = clampPageSize(p.PageSize)

	key := strings.Join([]string{
		endpointSearch, p.Query, p.Sources, p.Domains, p.From, p.To, p.Language, p.SortBy, strconv.Itoa(p.PageSize),
	}, "|")
	if cached, ok := c.cache.Get(ctx, key); ok {
		c.metrics.RecordCache(endpointSearch, true)
		return cached, nil
	}
	c.metrics.RecordCache(endpointSearch, false)

	q := url.Values{}
	q.Set("q", p.Query)
	setIfNotEmpty(q, "sources", p.Sources)
	setIfNotEmpty(q, "domains", p.Domains)
	setIfNotEmpty(q, "from", p.From)
	setIfNotEmpty(q, "to", p.To)
	q.Set("language", p.Language)
	q.Set("sortBy", p.SortBy)
	q.Set("pageSize", strconv.Itoa(p.PageSize))

	articles := c.articles(ctx, endpointSearch, q)
	if len(articles) > 0 {
		c.cache.Set(ctx, key, articles)
	}
	return articles, nil
}

// ArticlesBySource は指定ソースの最新記事を取得する。sizeが0以下の場合は5件。
func (c *Client) ArticlesBySource(ctx context.Context, sourceID string, size int) []Article {
	sourceID = strings.TrimSpace(sourceID)
	if sourceID == "" {
		return []Article{}
	}
	if size <= 0 {
		size = SourcePreviewSize
	}
	return c.TopHeadlines(ctx, HeadlinesParams{Sources: sourceID, PageSize: size})
}

func (c *Client) articles(ctx context.Context, endpoint string, q url.Values) []Article {
	var resp articlesResponse
	if !c.get(ctx, endpoint, q, &resp) {
		return []Article{}
	}
	if !c.statusOK(endpoint, resp.Status, resp.Code, resp.Message) {
		return []Article{}
	}

	c.logger.Debug("記事を取得しました",
		slog.String("endpoint", endpoint),
		slog.Int("count", len(resp.Articles)),
	)
	if resp.Articles == nil {
		return []Article{}
	}
	return resp.Articles
}

// get はエンドポイントを呼び出してJSONをoutにデコードする。
// 失敗した場合はログとメトリクスに記録してfalseを返す。
func (c *Client) get(ctx context.Context, endpoint string, q url.Values, out any) bool {
	if c.apiKey == "" {
		c.logger.Debug("NEWSAPI_KEYが未設定のためNews APIを呼び出しません",
			slog.String("endpoint", endpoint),
		)
		return false
	}

	if err := c.limiter.Wait(ctx); err != nil {
		c.logger.Warn("News APIのレート制限待機が中断されました",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		c.metrics.RecordNewsAPIError(endpoint)
		return false
	}

	reqURL, err := url.Parse(c.endpoint + "/" + endpoint)
	if err != nil {
		c.logger.Error("エンドポイントURLのパースに失敗しました",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		c.metrics.RecordNewsAPIError(endpoint)
		return false
	}
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		c.logger.Error("HTTPリクエストの作成に失敗しました",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		c.metrics.RecordNewsAPIError(endpoint)
		return false
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("News APIの呼び出しに失敗しました",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		c.metrics.RecordNewsAPIError(endpoint)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("News APIがエラーステータスを返しました",
			slog.String("endpoint", endpoint),
			slog.Int("http_status", resp.StatusCode),
		)
		c.metrics.RecordNewsAPIError(endpoint)
		return false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		c.logger.Error("レスポンスボディの読み取りに失敗しました",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		c.metrics.RecordNewsAPIError(endpoint)
		return false
	}

	if err := json.Unmarshal(body, out); err != nil {
		c.logger.Error("News APIのレスポンスのパースに失敗しました",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		c.metrics.RecordNewsAPIError(endpoint)
		return false
	}
	return true
}

// statusOK はレスポンス本文のstatusを検査する。
func (c *Client) statusOK(endpoint, status, code, message string) bool {
	if status == statusOK {
		return true
	}
	c.logger.Warn("News APIがエラーを返しました",
		slog.String("endpoint", endpoint),
		slog.String("status", status),
		slog.String("code", code),
		slog.String("message", message),
	)
	c.metrics.RecordNewsAPIError(endpoint)
	return false
}

func setIfNotEmpty(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

func clampPageSize(n int) int {
	switch {
	case n <= 0:
		return DefaultPageSize
	case n > MaxPageSize:
		return MaxPageSize
	default:
		return n
	}
}

// String はデバッグ表示用にAPIキーを伏せた設定を返す。
func (cfg ClientConfig) String() string {
	return fmt.Sprintf("ClientConfig{BaseURL: %s, RatePerSec: %g}", cfg.BaseURL, cfg.RatePerSec)
}
