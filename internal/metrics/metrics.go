// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ソース種別（kindラベル）
const (
	KindFeed   = "feed"
	KindReddit = "reddit"
	KindPage   = "page"
)

// Recorder はメトリクス記録のインターフェース。
// フェッチャー、News APIクライアント、アグリゲーターから利用する。
type Recorder interface {
	RecordFetch(kind string, success bool)
	RecordFetchFailure(reason string)
	RecordParseFailure()
	RecordHTTPStatus(statusCode int)
	RecordFetchLatency(duration time.Duration)
	RecordCache(op string, hit bool)
	RecordNewsAPIError(endpoint string)
	RecordAggregateItems(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	sourceFetch    *prometheus.CounterVec
	fetchFailure   *prometheus.CounterVec
	parseFail      prometheus.Counter
	upstreamStatus *prometheus.CounterVec
	fetchLatency   prometheus.Histogram
	newsCache      *prometheus.CounterVec
	newsAPIError   *prometheus.CounterVec
	aggregateItems prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sourceFetch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsdeck_source_fetch_total",
			Help: "ソース種別・結果別のフェッチ数",
		}, []string{"kind", "result"}),
		fetchFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsdeck_source_fetch_failure_total",
			Help: "原因別のフェッチ失敗数",
		}, []string{"reason"}),
		parseFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsdeck_parse_fail_total",
			Help: "フィードパース失敗の合計数",
		}),
		upstreamStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsdeck_upstream_http_status_total",
			Help: "外部ソースのHTTPステータスコード別レスポンス数",
		}, []string{"status_code"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "newsdeck_source_fetch_latency_seconds",
			Help:    "外部ソースフェッチのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		newsCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsdeck_newsapi_cache_total",
			Help: "News APIキャッシュの参照結果",
		}, []string{"op", "result"}),
		newsAPIError: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsdeck_newsapi_error_total",
			Help: "エンドポイント別のNews APIエラー数",
		}, []string{"endpoint"}),
		aggregateItems: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "newsdeck_aggregate_items",
			Help:    "フォロー中フィード集約1回あたりの記事数",
			Buckets: []float64{0, 5, 10, 20, 30, 40, 50},
		}),
	}

	reg.MustRegister(
		c.sourceFetch,
		c.fetchFailure,
		c.parseFail,
		c.upstreamStatus,
		c.fetchLatency,
		c.newsCache,
		c.newsAPIError,
		c.aggregateItems,
	)

	return c
}

// RecordFetch はソースフェッチの成否を記録する。
func (c *Collector) RecordFetch(kind string, success bool) {
	c.sourceFetch.WithLabelValues(kind, resultLabel(success, "success", "failure")).Inc()
}

// RecordFetchFailure はフェッチ失敗の原因を記録する。
func (c *Collector) RecordFetchFailure(reason string) {
	c.fetchFailure.WithLabelValues(reason).Inc()
}

// RecordParseFailure はパース失敗を記録する。
func (c *Collector) RecordParseFailure() {
	c.parseFail.Inc()
}

// RecordHTTPStatus は外部ソースのHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.upstreamStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordFetchLatency はフェッチのレイテンシを記録する。
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordCache はキャッシュのヒット/ミスを記録する。
func (c *Collector) RecordCache(op string, hit bool) {
	c.newsCache.WithLabelValues(op, resultLabel(hit, "hit", "miss")).Inc()
}

// RecordNewsAPIError はNews APIのエラー（通信失敗、非ok応答）を記録する。
func (c *Collector) RecordNewsAPIError(endpoint string) {
	c.newsAPIError.WithLabelValues(endpoint).Inc()
}

// RecordAggregateItems は集約結果の記事数を記録する。
func (c *Collector) RecordAggregateItems(count int) {
	c.aggregateItems.Observe(float64(count))
}

func resultLabel(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}

// Nop は何も記録しないRecorder。テストやメトリクス無効時に使用する。
type Nop struct{}

func (Nop) RecordFetch(string, bool) {}
func (Nop) RecordFetchFailure(string) {}
func (Nop) RecordParseFailure() {}
func (Nop) RecordHTTPStatus(int) {}
func (Nop) RecordFetchLatency(time.Duration) {}
func (Nop) RecordCache(string, bool) {}
func (Nop) RecordNewsAPIError(string) {}
func (Nop) RecordAggregateItems(int) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
