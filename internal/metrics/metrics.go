// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// リモートクライアント、キャッシュ、インサイト取得から利用する。
type MetricsCollector interface {
	RecordRemoteRequest(method string, resource string, statusCode int, duration time.Duration)
	RecordCacheHit(resource string)
	RecordCacheMiss(resource string)
	RecordCacheInvalidation(resource string, reason string, entries int)
	RecordInsightFailure()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	remoteRequests     *prometheus.CounterVec
	remoteLatency      *prometheus.HistogramVec
	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	cacheInvalidations *prometheus.CounterVec
	insightFailures    prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		remoteRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flextime_remote_requests_total",
			Help: "リモートAPI呼び出しの合計数（メソッド・リソース・ステータス別）",
		}, []string{"method", "resource", "status_code"}),
		remoteLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flextime_remote_latency_seconds",
			Help:    "リモートAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flextime_cache_hits_total",
			Help: "キャッシュヒットの合計数",
		}, []string{"resource"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flextime_cache_misses_total",
			Help: "キャッシュミス（強制再取得を含む）の合計数",
		}, []string{"resource"}),
		cacheInvalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flextime_cache_invalidated_entries_total",
			Help: "無効化されたキャッシュエントリの合計数",
		}, []string{"resource", "reason"}),
		insightFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flextime_insight_failures_total",
			Help: "インサイト取得失敗の合計数",
		}),
	}

	reg.MustRegister(
		c.remoteRequests,
		c.remoteLatency,
		c.cacheHits,
		c.cacheMisses,
		c.cacheInvalidations,
		c.insightFailures,
	)

	return c
}

// RecordRemoteRequest はリモートAPI呼び出しを記録する。通信エラー時のstatusCodeは0。
func (c *Collector) RecordRemoteRequest(method string, resource string, statusCode int, duration time.Duration) {
	c.remoteRequests.WithLabelValues(method, resource, strconv.Itoa(statusCode)).Inc()
	c.remoteLatency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordCacheHit はキャッシュヒットを記録する。
func (c *Collector) RecordCacheHit(resource string) {
	c.cacheHits.WithLabelValues(resource).Inc()
}

// RecordCacheMiss はキャッシュミスを記録する。
func (c *Collector) RecordCacheMiss(resource string) {
	c.cacheMisses.WithLabelValues(resource).Inc()
}

// RecordCacheInvalidation は無効化されたエントリ数を記録する。
func (c *Collector) RecordCacheInvalidation(resource string, reason string, entries int) {
	c.cacheInvalidations.WithLabelValues(resource, reason).Add(float64(entries))
}

// RecordInsightFailure はインサイト取得失敗を記録する。
func (c *Collector) RecordInsightFailure() {
	c.insightFailures.Inc()
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordRemoteRequest(string, string, int, time.Duration) {}
func (Nop) RecordCacheHit(string)                                  {}
func (Nop) RecordCacheMiss(string)                                 {}
func (Nop) RecordCacheInvalidation(string, string, int)            {}
func (Nop) RecordInsightFailure()                                  {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
