package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/newsdeck/internal/security"
)

// spyRecorder は記録されたメトリクスを保持するテスト用Recorder。
type spyRecorder struct {
	mu        sync.Mutex
	fetches   map[string]int
	failures  []string
	statuses  []int
	parseFail int
	latencies int
	cache     map[string]int
	apiErrors []string
	aggregate []int
}

func newSpyRecorder() *spyRecorder {
	return &spyRecorder{fetches: map[string]int{}, cache: map[string]int{}}
}

func (s *spyRecorder) RecordFetch(kind string, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches[fmt.Sprintf("%s/%t", kind, success)]++
}

func (s *spyRecorder) RecordFetchFailure(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, reason)
}

func (s *spyRecorder) RecordParseFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parseFail++
}

func (s *spyRecorder) RecordHTTPStatus(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, code)
}

func (s *spyRecorder) RecordFetchLatency(time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latencies++
}

func (s *spyRecorder) RecordCache(op string, hit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[fmt.Sprintf("%s/%t", op, hit)]++
}

func (s *spyRecorder) RecordNewsAPIError(endpoint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiErrors = append(s.apiErrors, endpoint)
}

func (s *spyRecorder) RecordAggregateItems(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aggregate = append(s.aggregate, n)
}

// mockGuard はGuardのテスト用モック。
type mockGuard struct {
	checkErr error
	checked  []string
}

func (m *mockGuard) Check(rawURL string) error {
	m.checked = append(m.checked, rawURL)
	return m.checkErr
}

func (m *mockGuard) Client(connect, read time.Duration) *http.Client {
	return &http.Client{Timeout: connect + read}
}

func testFetcherConfig() FetcherConfig {
	return FetcherConfig{
		ConnectTimeout: 2 * time.Second,
		ReadTimeout:    2 * time.Second,
		MaxBodySize:    1024,
	}
}

func TestNewHTTPFetcher_ReturnsNonNil(t *testing.T) {
	if f := NewHTTPFetcher(testFetcherConfig(), nil, nil); f == nil {
		t.Fatal("NewHTTPFetcher は nil を返してはならない")
	}
}

// TestNewHTTPFetcher_GuardedClientKeepsSplitTimeouts は宛先制御ありでも接続と読み取りのタイムアウトが個別に設定されることを検証する。
func TestNewHTTPFetcher_GuardedClientKeepsSplitTimeouts(t *testing.T) {
	f := NewHTTPFetcher(FetcherConfig{
		ConnectTimeout: 10 * time.Second,
		ReadTimeout:    15 * time.Second,
	}, security.NewURLGuard(), nil)

	if f.client.Timeout != 25*time.Second {
		t.Errorf("Timeout = %v, want %v", f.client.Timeout, 25*time.Second)
	}
	tr, ok := f.client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("Transport = %T, want *http.Transport", f.client.Transport)
	}
	if tr.TLSHandshakeTimeout != 10*time.Second {
		t.Errorf("TLSHandshakeTimeout = %v, want %v", tr.TLSHandshakeTimeout, 10*time.Second)
	}
	if tr.ResponseHeaderTimeout != 15*time.Second {
		t.Errorf("ResponseHeaderTimeout = %v, want %v", tr.ResponseHeaderTimeout, 15*time.Second)
	}
}

func TestHTTPFetcher_Fetch_SendsFixedHeaders(t *testing.T) {
	var gotUA, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		fmt.Fprint(w, "<rss/>")
	}))
	defer server.Close()

	rec := newSpyRecorder()
	f := NewHTTPFetcher(testFetcherConfig(), nil, rec)

	body, err := f.Fetch(context.Background(), server.URL+"/feed.xml")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(body) != "<rss/>" {
		t.Errorf("body = %q, want %q", body, "<rss/>")
	}
	if gotUA != UserAgent {
		t.Errorf("User-Agent = %q, want %q", gotUA, UserAgent)
	}
	for _, mt := range []string{"application/rss+xml", "application/atom+xml", "application/xml", "text/xml"} {
		if !strings.Contains(gotAccept, mt) {
			t.Errorf("Accept = %q, should contain %q", gotAccept, mt)
		}
	}
	if rec.fetches["feed/true"] != 1 {
		t.Errorf("成功フェッチが記録されるべき: %v", rec.fetches)
	}
	if rec.latencies != 1 {
		t.Errorf("latencies = %d, want 1", rec.latencies)
	}
}

func TestHTTPFetcher_FetchPage_UsesHTMLAccept(t *testing.T) {
	var gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		fmt.Fprint(w, "<html></html>")
	}))
	defer server.Close()

	f := NewHTTPFetcher(testFetcherConfig(), nil, nil)
	if _, err := f.FetchPage(context.Background(), server.URL); err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}
	if !strings.HasPrefix(gotAccept, "text/html") {
		t.Errorf("Accept = %q, want text/html first", gotAccept)
	}
}

func TestHTTPFetcher_Fetch_Non2xxReturnsFetchError(t *testing.T) {
	tests := []struct {
		status int
		reason string
	}{
		{http.StatusNotFound, "gone"},
		{http.StatusForbidden, "denied"},
		{http.StatusTooManyRequests, "throttled"},
		{http.StatusBadGateway, "server_error"},
		{http.StatusTeapot, "unexpected_status"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			rec := newSpyRecorder()
			f := NewHTTPFetcher(testFetcherConfig(), nil, rec)

			_, err := f.Fetch(context.Background(), server.URL)
			var fe *FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("error = %v, want *FetchError", err)
			}
			if fe.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", fe.StatusCode, tt.status)
			}
			if len(rec.failures) != 1 || rec.failures[0] != tt.reason {
				t.Errorf("failures = %v, want [%s]", rec.failures, tt.reason)
			}
			if len(rec.statuses) != 1 || rec.statuses[0] != tt.status {
				t.Errorf("statuses = %v, want [%d]", rec.statuses, tt.status)
			}
		})
	}
}

func TestHTTPFetcher_Fetch_BodyTooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, strings.Repeat("x", 2048))
	}))
	defer server.Close()

	f := NewHTTPFetcher(testFetcherConfig(), nil, nil)
	_, err := f.Fetch(context.Background(), server.URL)
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Errorf("error = %v, want ErrBodyTooLarge", err)
	}
}

func TestHTTPFetcher_Fetch_GuardBlocksBeforeRequest(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	blocked := errors.New("blocked")
	guard := &mockGuard{checkErr: blocked}
	rec := newSpyRecorder()
	f := NewHTTPFetcher(testFetcherConfig(), guard, rec)

	_, err := f.Fetch(context.Background(), server.URL)
	if !errors.Is(err, blocked) {
		t.Errorf("error = %v, want guard error", err)
	}
	if called {
		t.Error("宛先チェックに失敗した場合はリクエストを送信してはならない")
	}
	if len(rec.failures) != 1 || rec.failures[0] != "blocked" {
		t.Errorf("failures = %v, want [blocked]", rec.failures)
	}
}

func TestHTTPFetcher_Fetch_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	rec := newSpyRecorder()
	f := NewHTTPFetcher(FetcherConfig{
		ConnectTimeout: 100 * time.Millisecond,
		ReadTimeout:    100 * time.Millisecond,
		MaxBodySize:    1024,
	}, nil, rec)

	_, err := f.Fetch(context.Background(), server.URL)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want *FetchError", err)
	}
	if fe.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0", fe.StatusCode)
	}
	if len(rec.failures) != 1 || rec.failures[0] != "timeout" {
		t.Errorf("failures = %v, want [timeout]", rec.failures)
	}
}

func TestHTTPFetcher_Fetch_RedditKind(t *testing.T) {
	rec := newSpyRecorder()
	f := NewHTTPFetcher(testFetcherConfig(), &mockGuard{checkErr: errors.New("offline")}, rec)

	_, _ = f.Fetch(context.Background(), "https://www.reddit.com/r/golang/.rss")
	if rec.fetches["reddit/false"] != 1 {
		t.Errorf("Reddit URLはkind=redditで記録されるべき: %v", rec.fetches)
	}
}

func TestClassifyHTTPStatus(t *testing.T) {
	tests := []struct {
		code int
		want StatusClass
	}{
		{200, StatusOK},
		{204, StatusOK},
		{304, StatusUnexpected},
		{400, StatusUnexpected},
		{401, StatusDenied},
		{403, StatusDenied},
		{404, StatusGone},
		{410, StatusGone},
		{429, StatusThrottled},
		{500, StatusServerError},
		{503, StatusServerError},
	}

	for _, tt := range tests {
		if got := ClassifyHTTPStatus(tt.code); got != tt.want {
			t.Errorf("ClassifyHTTPStatus(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestFetchError_Message(t *testing.T) {
	withStatus := &FetchError{URL: "https://example.com/feed", StatusCode: 500}
	if !strings.Contains(withStatus.Error(), "HTTP 500") {
		t.Errorf("Error() = %q, should contain status", withStatus.Error())
	}

	cause := errors.New("connection refused")
	withErr := &FetchError{URL: "https://example.com/feed", Err: cause}
	if !errors.Is(withErr, cause) {
		t.Error("FetchError は原因エラーをUnwrapできるべき")
	}
}
