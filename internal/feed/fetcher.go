package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/newsdeck/internal/metrics"
)

const (
	// UserAgent は外部ソースへのリクエストに付与する固定のUser-Agent。
	UserAgent = "Mozilla/5.0 (compatible; Newsdeck/1.0; +https://newsdeck.app)"

	feedAccept = "application/rss+xml, application/atom+xml, application/xml, text/xml"
	pageAccept = "text/html, application/xhtml+xml, application/xml;q=0.9, */*;q=0.8"

	defaultMaxBodySize = 5 * 1024 * 1024
)

// ErrBodyTooLarge はレスポンスボディが上限を超えたことを示す。
var ErrBodyTooLarge = errors.New("response body too large")

// StatusClass はHTTPステータスコードの分類。
type StatusClass int

const (
	// StatusOK は2xx。
	StatusOK StatusClass = iota
	// StatusGone は404/410。
	StatusGone
	// StatusDenied は401/403。
	StatusDenied
	// StatusThrottled は429。
	StatusThrottled
	// StatusServerError は5xx。
	StatusServerError
	// StatusUnexpected はその他（3xxの未追従、4xxの残り）。
	StatusUnexpected
)

// ClassifyHTTPStatus はHTTPステータスコードを分類する。
func ClassifyHTTPStatus(statusCode int) StatusClass {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return StatusOK
	case statusCode == 404 || statusCode == 410:
		return StatusGone
	case statusCode == 401 || statusCode == 403:
		return StatusDenied
	case statusCode == 429:
		return StatusThrottled
	case statusCode >= 500:
		return StatusServerError
	default:
		return StatusUnexpected
	}
}

// String はメトリクスのreasonラベルとして使う名前を返す。
func (c StatusClass) String() string {
	switch c {
	case StatusOK:
		return "ok"
	case StatusGone:
		return "gone"
	case StatusDenied:
		return "denied"
	case StatusThrottled:
		return "throttled"
	case StatusServerError:
		return "server_error"
	default:
		return "unexpected_status"
	}
}

// FetchError はソース取得の失敗を表す。
// StatusCodeはHTTPレスポンスを受け取れた場合のみ非ゼロとなる。
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Guard は宛先制御のインターフェース。security.URLGuardを満たす。
type Guard interface {
	Check(rawURL string) error
	Client(connect, read time.Duration) *http.Client
}

// FetcherConfig はHTTPFetcherのタイムアウトとサイズ上限。
type FetcherConfig struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	MaxBodySize    int64
}

// HTTPFetcher はフィードとHTMLページを取得する。
// 失敗はすべて*FetchErrorとして返し、ログ出力は呼び出し側に任せる。
type HTTPFetcher struct {
	client  *http.Client
	guard   Guard
	maxBody int64
	metrics metrics.Recorder
}

// NewHTTPFetcher はHTTPFetcherを生成する。
// guardがnilの場合は宛先制御なしの通常クライアントを使う。
func NewHTTPFetcher(cfg FetcherConfig, guard Guard, rec metrics.Recorder) *HTTPFetcher {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = defaultMaxBodySize
	}

	var client *http.Client
	if guard != nil {
		client = guard.Client(cfg.ConnectTimeout, cfg.ReadTimeout)
	} else {
		client = &http.Client{
			Timeout: cfg.ConnectTimeout + cfg.ReadTimeout,
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
				TLSHandshakeTimeout:   cfg.ConnectTimeout,
				ResponseHeaderTimeout: cfg.ReadTimeout,
				MaxIdleConnsPerHost:   4,
			},
		}
	}

	return &HTTPFetcher{
		client:  client,
		guard:   guard,
		maxBody: cfg.MaxBodySize,
		metrics: rec,
	}
}

// Fetch はRSS/Atomフィードを取得する。2xx以外は失敗として扱う。
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	kind := metrics.KindFeed
	if IsRedditURL(rawURL) {
		kind = metrics.KindReddit
	}
	return f.get(ctx, rawURL, feedAccept, kind)
}

// FetchPage はフィードリンク検出用にHTMLページを取得する。
func (f *HTTPFetcher) FetchPage(ctx context.Context, rawURL string) ([]byte, error) {
	return f.get(ctx, rawURL, pageAccept, metrics.KindPage)
}

func (f *HTTPFetcher) get(ctx context.Context, rawURL, accept, kind string) ([]byte, error) {
	start := time.Now()

	if f.guard != nil {
		if err := f.guard.Check(rawURL); err != nil {
			return nil, f.fail(kind, "blocked", &FetchError{URL: rawURL, Err: err})
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, f.fail(kind, "invalid_url", &FetchError{URL: rawURL, Err: err})
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", accept)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, f.fail(kind, networkReason(err), &FetchError{URL: rawURL, Err: err})
	}
	defer resp.Body.Close()

	f.metrics.RecordHTTPStatus(resp.StatusCode)
	if class := ClassifyHTTPStatus(resp.StatusCode); class != StatusOK {
		// コネクション再利用のため少量だけ読み捨てる
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, f.fail(kind, class.String(), &FetchError{URL: rawURL, StatusCode: resp.StatusCode})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return nil, f.fail(kind, networkReason(err), &FetchError{URL: rawURL, Err: err})
	}
	if int64(len(body)) > f.maxBody {
		return nil, f.fail(kind, "too_large", &FetchError{URL: rawURL, Err: ErrBodyTooLarge})
	}

	f.metrics.RecordFetchLatency(time.Since(start))
	f.metrics.RecordFetch(kind, true)
	return body, nil
}

func (f *HTTPFetcher) fail(kind, reason string, err *FetchError) error {
	f.metrics.RecordFetch(kind, false)
	f.metrics.RecordFetchFailure(reason)
	return err
}

func networkReason(err error) string {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "dns"
	}
	if strings.Contains(err.Error(), "x509") || strings.Contains(err.Error(), "tls") {
		return "tls"
	}
	return "network"
}
